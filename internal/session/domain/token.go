package domain

import "time"

// IssuedTokens is everything a successful login hands back to the caller.
type IssuedTokens struct {
	RefreshToken     string
	RJTI             string
	RefreshExpiresAt time.Time

	AccessToken     string
	AJTI            string
	AccessExpiresAt time.Time

	SessionToken     string
	SessionExpiresAt time.Time
}
