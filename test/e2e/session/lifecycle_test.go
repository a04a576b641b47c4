package session_test

import (
	"testing"

	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/stretchr/testify/require"
)

// TestSessionLifecycle walks one user through every authenticated operation
// and finishes by deleting the account.
func TestSessionLifecycle(t *testing.T) {
	forEachBackend(t, func(t *testing.T, baseURL string) {
		ctx := t.Context()
		client := authsdk.NewSDKClient(baseURL)
		session := registerAndLogin(t, client)

		profile, err := session.GetProfile(ctx)
		require.NoError(t, err)
		require.Equal(t, testEmail, profile.Email)
		require.Equal(t, testName, profile.Name)
		require.Contains(t, profile.PhotoURL, "seed=Alice")

		// Rotating the access token kills the old one
		oldAccess := session.AccessToken()
		newAccess, err := session.Refresh(ctx)
		require.NoError(t, err)
		require.NotEqual(t, oldAccess, newAccess)

		_, err = client.ResumeSession(oldAccess).ListSessions(ctx)
		require.NoError(t, err, "a rejected token is refreshed through the cookie jar")

		sessions, err := session.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)

		name := "Alice Liddell"
		profile, err = session.UpdateProfile(ctx, authsdk.UpdateProfileRequest{Name: &name})
		require.NoError(t, err)
		require.Equal(t, name, profile.Name)

		_, err = session.Reauth(ctx, "wrong-password")
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)

		reauth, err := session.Reauth(ctx, testPassword)
		require.NoError(t, err)

		// A reauth token is not an access token
		_, err = client.ResumeSession(reauth).GetProfile(ctx)
		require.NoError(t, err, "the rejected reauth token is replaced by a refreshed access token")

		require.NoError(t, session.DeleteAccount(ctx, reauth))

		_, err = client.Login(ctx, testEmail, testPassword)
		require.ErrorIs(t, err, authsdk.ErrInvalidCredentials)
	})
}

// TestLogoutRevokesFamily checks that a refresh token is dead once its
// session logs out, even when replayed from another client.
func TestLogoutRevokesFamily(t *testing.T) {
	forEachBackend(t, func(t *testing.T, baseURL string) {
		ctx := t.Context()
		client := authsdk.NewSDKClient(baseURL)
		session := registerAndLogin(t, client)
		refresh := session.RefreshToken()

		require.NoError(t, session.Logout(ctx))
		require.Empty(t, session.RefreshToken(), "logout expires the refresh cookie")

		err := session.Logout(ctx)
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)

		replay := clientWithRefreshCookie(t, baseURL, refresh)
		_, err = replay.ResumeSession("").Refresh(ctx)
		require.ErrorIs(t, err, authsdk.ErrInvalidToken)
	})
}

// TestConcurrentLogins checks that each login is its own ledger row and
// that logging one out leaves the other usable.
func TestConcurrentLogins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, baseURL string) {
		ctx := t.Context()
		first := registerAndLogin(t, authsdk.NewSDKClient(baseURL))

		second, err := authsdk.NewSDKClient(baseURL).Login(ctx, testEmail, testPassword)
		require.NoError(t, err)

		sessions, err := first.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 2)

		var current int
		for _, s := range sessions {
			if s.Current {
				current++
			}
		}
		require.Equal(t, 1, current)

		require.NoError(t, second.Logout(ctx))

		sessions, err = first.ListSessions(ctx)
		require.NoError(t, err)
		require.Len(t, sessions, 1)
		require.True(t, sessions[0].Current)
	})
}

func TestHealthAndKeys(t *testing.T) {
	forEachBackend(t, func(t *testing.T, baseURL string) {
		client := authsdk.NewSDKClient(baseURL)

		live, err := client.GetLiveness(t.Context())
		require.NoError(t, err)
		require.Equal(t, "ok", live.Status)

		ready, err := client.GetReadiness(t.Context())
		require.NoError(t, err)
		require.Equal(t, "ok", ready.Checks.Ledger)
		require.Equal(t, "ok", ready.Checks.Registry)

		keys, err := client.GetJWKS(t.Context())
		require.NoError(t, err)
		require.Len(t, keys.Keys, 2)
	})
}
