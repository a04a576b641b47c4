package domain

import "time"

// Session is a ledger row: one per live refresh token family. ID is the
// refresh token's jti (rjti).
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired reports whether the row is past its expiry at t.
func (s Session) Expired(t time.Time) bool {
	return !s.ExpiresAt.After(t)
}
