package authsdk

import (
	"context"
	"net/http"
)

// User operations - account and login management for the authenticated user

// ============================================================================
// Profile
// ============================================================================

// GetProfile retrieves the profile of the authenticated user.
func (s *Session) GetProfile(ctx context.Context) (*UserProfile, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/me", nil, nil)
	if err != nil {
		return nil, err
	}

	var out ProfileResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out.User, nil
}

// UpdateProfile changes the non-nil fields of req and returns the new profile.
func (s *Session) UpdateProfile(ctx context.Context, req UpdateProfileRequest) (*UserProfile, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPatch, "/v1/me", req, nil)
	if err != nil {
		return nil, err
	}

	var out ProfileResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return &out.User, nil
}

// ============================================================================
// Logins
// ============================================================================

// ListSessions lists the active logins of the authenticated user.
func (s *Session) ListSessions(ctx context.Context) ([]SessionInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/me/sessions", nil, nil)
	if err != nil {
		return nil, err
	}

	var out SessionsResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}

	return out.Sessions, nil
}

// ============================================================================
// Sensitive Operations
// ============================================================================

// Reauth re-checks the password and returns a short-lived step-up token.
func (s *Session) Reauth(ctx context.Context, password string) (string, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/reauth", ReauthRequest{Password: password}, nil)
	if err != nil {
		return "", err
	}

	var out ReauthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return "", err
	}

	return out.ReauthToken, nil
}

// DeleteAccount removes the account and revokes every login of the user.
// reauthToken comes from Reauth.
func (s *Session) DeleteAccount(ctx context.Context, reauthToken string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodDelete, "/v1/me", nil, map[string]string{
		HeaderReauthToken: reauthToken,
	})
	if err != nil {
		return err
	}

	return checkStatusNoContent(resp)
}
