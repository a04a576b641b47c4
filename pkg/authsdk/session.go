package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
	"github.com/golang-jwt/jwt/v5"
)

// expiryBuffer makes the session refresh a little before the server would
// reject the token.
const expiryBuffer = 30 * time.Second

// Session represents an authenticated login with automatic access token refresh.
type Session struct {
	client *SDKClient

	mu          sync.RWMutex
	accessToken string
	expiresAt   time.Time
}

func newSession(client *SDKClient, accessToken string) *Session {
	s := &Session{client: client}
	s.setToken(accessToken)
	return s
}

// setToken stores token and reads its expiry. The signature is not checked
// here; the server does that on every request. Caller must hold mu or own s.
func (s *Session) setToken(token string) {
	s.accessToken = token
	s.expiresAt = time.Time{}

	now := time.Now()
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err == nil {
		if left := jwtx.Remaining(claims, now); left > 0 {
			s.expiresAt = now.Add(left - expiryBuffer)
		}
	}
}

// getValidToken returns a valid access token, automatically refreshing if expired.
func (s *Session) getValidToken(ctx context.Context) (string, error) {
	s.mu.RLock()
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		token := s.accessToken
		s.mu.RUnlock()
		return token, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock (another goroutine may have refreshed)
	if s.accessToken != "" && time.Now().Before(s.expiresAt) {
		return s.accessToken, nil
	}

	return s.refreshLocked(ctx)
}

// Refresh rotates the access token using the refresh cookie. The previous
// access token stops working immediately.
func (s *Session) Refresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshLocked(ctx)
}

func (s *Session) refreshLocked(ctx context.Context) (string, error) {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/auth/refresh", nil, nil)
	if err != nil {
		return "", err
	}

	var out RefreshResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}

	s.setToken(out.AccessToken)
	return s.accessToken, nil
}

// Logout revokes the refresh token family of this session. Both cookies are
// expired by the server.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.client.doRequest(ctx, http.MethodPost, "/v1/auth/logout", nil, nil)
	if err != nil {
		return err
	}

	var status StatusResponse
	if err := decodeJSON(resp, &status, http.StatusOK); err != nil {
		return err
	}

	s.mu.Lock()
	s.accessToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()
	return nil
}

// AccessToken returns the current access token without checking expiration.
// For most use cases, prefer using the Session methods which handle refresh automatically.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// SessionToken returns the display token from the session cookie.
func (s *Session) SessionToken() string {
	return s.client.cookie(CookieSessionToken)
}

// RefreshToken returns the refresh token from the cookie jar.
func (s *Session) RefreshToken() string {
	return s.client.cookie(CookieRefreshToken)
}
