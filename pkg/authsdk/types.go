package authsdk

import (
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

// ============================================================================
// Transport Names
// ============================================================================

const (
	// HeaderNewAccessToken carries a freshly minted access token on login
	// and refresh responses.
	HeaderNewAccessToken = "X-New-Access-Token"

	// HeaderReauthToken carries the step-up token on sensitive requests.
	HeaderReauthToken = "X-Reauth-Token"

	// CookieRefreshToken holds the refresh token. It is HttpOnly.
	CookieRefreshToken = "sessiond_refresh_token"

	// CookieSessionToken holds the display token. Scripts may read it.
	CookieSessionToken = "sessiond_session_token"
)

// ============================================================================
// Internal Response Types (used for JSON unmarshaling)
// ============================================================================

// ErrorResponse is the wire form of an APIError.
type ErrorResponse struct {
	// Error is the error code (e.g., "invalid_request", "invalid_token")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// StatusResponse is the body of endpoints that only acknowledge success.
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ============================================================================
// Auth Types
// ============================================================================

// RegisterRequest creates an account.
type RegisterRequest struct {
	// Email must contain "@". It is stored lower-cased.
	Email string `json:"email" example:"ada@example.com"`

	// Name is the display name (1-64 chars)
	Name string `json:"name" example:"Ada Lovelace"`

	// Password is 8-128 chars
	Password string `json:"password" example:"correct horse battery"`
}

// LoginRequest exchanges credentials for a token bundle. The access token is
// returned in the X-New-Access-Token header, the refresh and session tokens
// as cookies.
type LoginRequest struct {
	Email    string `json:"email" example:"ada@example.com"`
	Password string `json:"password" example:"correct horse battery"`
}

// RefreshResponse carries the rotated access token. The same token is also
// set in the X-New-Access-Token header.
type RefreshResponse struct {
	AccessToken string `json:"access_token"`
}

// ReauthRequest re-checks the password of the authenticated user.
type ReauthRequest struct {
	Password string `json:"password"`
}

// ReauthResponse carries a short-lived step-up token for the X-Reauth-Token header.
type ReauthResponse struct {
	ReauthToken string `json:"reauth_token"`
}

// ============================================================================
// User Types
// ============================================================================

// UserProfile is the public view of an account.
type UserProfile struct {
	ID       string `json:"id" example:"01JBZ5X0Q3M8V6W2C1H4K7N9PT"`
	Email    string `json:"email" example:"ada@example.com"`
	Name     string `json:"name" example:"Ada Lovelace"`
	PhotoURL string `json:"photo_url" example:"https://api.dicebear.com/9.x/notionists/svg?seed=Ada+Lovelace"`
}

// ProfileResponse is returned from GET and PATCH /v1/me.
type ProfileResponse struct {
	User UserProfile `json:"user"`
}

// UpdateProfileRequest changes the non-nil fields only.
type UpdateProfileRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// SessionInfo is one active login of the user. ID is the refresh token
// family identifier.
type SessionInfo struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	// Current marks the login the access token of the request belongs to
	Current bool `json:"current"`
}

// SessionsResponse is returned from GET /v1/me/sessions.
type SessionsResponse struct {
	Sessions []SessionInfo `json:"sessions"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse represents the response structure for health check endpoints.
// Used by both /livez and /readyz endpoints (readyz includes additional Checks field).
type HealthResponse struct {
	// Status indicates the overall health status ("ok" or "degraded")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks represents the status of critical service dependencies.
type HealthChecks struct {
	// Ledger indicates the relational store status
	Ledger string `json:"ledger"`

	// Registry indicates the credential registry (Redis) status
	Registry string `json:"registry"`
}

// ============================================================================
// JWKS Types
// ============================================================================

// JWKSResponse contains the JSON Web Key Set.
// This is returned from the GET /.well-known/jwks.json endpoint and contains
// the public keys of the access and session tokens.
type JWKSResponse jwtx.JWKS
