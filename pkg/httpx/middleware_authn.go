package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
)

// ReauthHeader carries the step-up token on sensitive requests.
const ReauthHeader = "X-Reauth-Token"

// TokenVerifier checks a raw token and returns its claims. Implementations
// decide which token kind they accept.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error)
}

// TokenVerifierFunc adapts a function to TokenVerifier.
type TokenVerifierFunc func(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error)

func (f TokenVerifierFunc) Verify(ctx context.Context, raw string) (*jwtx.PrimaryClaims, error) {
	return f(ctx, raw)
}

// ErrorWriter renders a verification failure. A nil ErrorWriter answers
// every failure with a bearer 401.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// AuthnMiddleware requires a valid "Authorization: Bearer" access token and
// puts its subject and claims into the request context.
func AuthnMiddleware(v TokenVerifier, onErr ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			claims, err := v.Verify(ctx, raw)
			if err != nil {
				log.Warn("access token rejected", "err", err)
				if onErr != nil {
					onErr(w, r, err)
					return
				}
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = contextWithAuth(ctx, claims)
			ctx = slogx.With(ctx, "user_id", claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ReauthMiddleware requires a valid step-up token in the X-Reauth-Token
// header. When an access token was verified earlier in the chain, both must
// belong to the same subject.
func ReauthMiddleware(v TokenVerifier, onErr ErrorWriter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			raw := strings.TrimSpace(r.Header.Get(ReauthHeader))
			if raw == "" {
				writeBearerError(w, "missing reauth token")
				return
			}

			claims, err := v.Verify(ctx, raw)
			if err != nil {
				slogx.FromContext(ctx).Warn("reauth token rejected", "err", err)
				if onErr != nil {
					onErr(w, r, err)
					return
				}
				writeBearerError(w, "reauth verification failed")
				return
			}

			if uid, ok := UserIDFromContext(ctx); ok && uid != claims.Subject {
				writeBearerError(w, "reauth token subject mismatch")
				return
			}

			ctx = context.WithValue(ctx, CtxKeyReauth, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	if len(authz) < len("Bearer ") || !strings.EqualFold(authz[:len("Bearer ")], "Bearer ") {
		return "", false
	}
	raw := strings.TrimSpace(authz[len("Bearer "):])
	return raw, raw != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteJSON(w, http.StatusUnauthorized, map[string]string{
		"error":             "invalid_token",
		"error_description": desc,
	})
}
