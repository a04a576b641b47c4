package httpx

import (
	"context"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

type ctxKey string

const (
	CtxKeyUserID ctxKey = "user_id"
	CtxKeyClaims ctxKey = "claims"
	CtxKeyReauth ctxKey = "reauth"
)

func contextWithAuth(ctx context.Context, c *jwtx.PrimaryClaims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

// UserIDFromContext returns the subject of the verified access token.
func UserIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(CtxKeyUserID).(string)
	return v, ok && v != ""
}

// ClaimsFromContext returns the verified access token claims.
func ClaimsFromContext(ctx context.Context) (*jwtx.PrimaryClaims, bool) {
	v, ok := ctx.Value(CtxKeyClaims).(*jwtx.PrimaryClaims)
	return v, ok && v != nil
}

// ReauthFromContext returns the verified step-up token claims.
func ReauthFromContext(ctx context.Context) (*jwtx.PrimaryClaims, bool) {
	v, ok := ctx.Value(CtxKeyReauth).(*jwtx.PrimaryClaims)
	return v, ok && v != nil
}
