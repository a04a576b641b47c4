package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants. These provide sensible security defaults but
// are overridden by service configuration.
const (
	// DefaultAccessTokenTTL is the default lifetime for access and reauth tokens.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is the default lifetime for refresh tokens.
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour

	// DefaultSessionTokenTTL is the default lifetime for session (display) tokens.
	DefaultSessionTokenTTL = 7 * 24 * time.Hour
)

// KindedClaims is implemented by claim shapes that carry the "knd" claim, so a
// verifier can refuse a token minted for a different purpose.
type KindedClaims interface {
	jwt.Claims
	TokenKind() string
}

// PrimaryClaims are carried by access, refresh and reauth tokens.
//
// ID (jti) identifies this token. RJTI identifies the refresh token family it
// was derived from, so for a refresh token ID == RJTI.
type PrimaryClaims struct {
	jwt.RegisteredClaims

	RJTI string `json:"rjti,omitempty"`
	Kind string `json:"knd"`
}

// TokenKind implements KindedClaims.
func (c *PrimaryClaims) TokenKind() string { return c.Kind }

// ExtendedClaims are carried by the session token. They hold display
// attributes only and grant nothing.
type ExtendedClaims struct {
	jwt.RegisteredClaims

	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	PhotoURL string `json:"photo_url,omitempty"`
	Kind     string `json:"knd"`
}

// TokenKind implements KindedClaims.
func (c *ExtendedClaims) TokenKind() string { return c.Kind }

// NewRegisteredClaims builds the registered set with iat == nbf == now and
// exp = now + ttl.
func NewRegisteredClaims(subject, jti string, ttl time.Duration, now time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

// NewPrimaryClaims builds minimally-correct primary claims. An empty rjti
// defaults to jti, which is what a refresh token wants.
func NewPrimaryClaims(kind, subject, jti, rjti string, ttl time.Duration, now time.Time) PrimaryClaims {
	if rjti == "" {
		rjti = jti
	}
	return PrimaryClaims{
		RegisteredClaims: NewRegisteredClaims(subject, jti, ttl, now),
		RJTI:             rjti,
		Kind:             kind,
	}
}

// NewExtendedClaims builds session claims with the display attributes set.
func NewExtendedClaims(kind, subject, jti string, ttl time.Duration, now time.Time, email, name, photoURL string) ExtendedClaims {
	return ExtendedClaims{
		RegisteredClaims: NewRegisteredClaims(subject, jti, ttl, now),
		Email:            email,
		Name:             name,
		PhotoURL:         photoURL,
		Kind:             kind,
	}
}

// Remaining returns how long the claims stay valid from now, or zero once exp
// has passed. Missing exp yields zero.
func Remaining(c jwt.RegisteredClaims, now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	d := c.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
