package httpx_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
	"github.com/stretchr/testify/require"
)

func TestChainOrder(t *testing.T) {
	var order []string
	mw := func(name string) httpx.Middleware {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}), mw("first"), nil, mw("second"))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, []string{"first", "second", "handler"}, order)
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Email string `json:"email"`
	}

	tests := []struct {
		name    string
		ct      string
		payload string
		wantErr bool
	}{
		{"valid", "application/json", `{"email":"a@b.c"}`, false},
		{"charset suffix", "application/json; charset=utf-8", `{"email":"a@b.c"}`, false},
		{"no content type", "", `{"email":"a@b.c"}`, false},
		{"wrong content type", "text/plain", `{"email":"a@b.c"}`, true},
		{"unknown field", "application/json", `{"email":"a@b.c","admin":true}`, true},
		{"trailing data", "application/json", `{"email":"a@b.c"}{}`, true},
		{"not json", "application/json", `email=a`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.payload))
			if tt.ct != "" {
				req.Header.Set("Content-Type", tt.ct)
			}

			var b body
			err := httpx.DecodeJSON(req, &b)
			if tt.wantErr {
				require.ErrorIs(t, err, httpx.ErrBadJSON)
				return
			}
			require.NoError(t, err)
			require.Equal(t, "a@b.c", b.Email)
		})
	}
}

func TestCookieConfig(t *testing.T) {
	cfg := httpx.CookieConfig{Domain: "example.com", Secure: true}

	rec := httptest.NewRecorder()
	cfg.Set(rec, "refresh", "tok", 2*time.Hour, true)
	cfg.Clear(rec, "session", false)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 2)

	set := cookies[0]
	require.Equal(t, "refresh", set.Name)
	require.Equal(t, "tok", set.Value)
	require.Equal(t, "/", set.Path)
	require.Equal(t, "example.com", set.Domain)
	require.Equal(t, 7200, set.MaxAge)
	require.True(t, set.HttpOnly)
	require.True(t, set.Secure)
	require.Equal(t, http.SameSiteLaxMode, set.SameSite)

	cleared := cookies[1]
	require.Equal(t, "session", cleared.Name)
	require.Empty(t, cleared.Value)
	require.Equal(t, -1, cleared.MaxAge)
	require.False(t, cleared.HttpOnly)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "refresh", Value: "tok"})
	v, ok := httpx.ReadCookie(req, "refresh")
	require.True(t, ok)
	require.Equal(t, "tok", v)

	_, ok = httpx.ReadCookie(req, "missing")
	require.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	for header, want := range map[string]string{
		"Bearer abc":   "abc",
		"bearer abc ":  "abc",
		"Bearer ":      "",
		"Basic abc":    "",
		"":             "",
		"BearerNoGap":  "",
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		got, ok := httpx.BearerToken(req)
		require.Equal(t, want, got, header)
		require.Equal(t, want != "", ok, header)
	}
}

func stubVerifier(valid map[string]string) httpx.TokenVerifierFunc {
	return func(_ context.Context, raw string) (*jwtx.PrimaryClaims, error) {
		sub, ok := valid[raw]
		if !ok {
			return nil, errors.New("rejected")
		}
		c := jwtx.NewPrimaryClaims("access", sub, raw, raw, time.Minute, time.Now())
		return &c, nil
	}
}

func TestAuthnMiddleware(t *testing.T) {
	var gotUser string
	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = httpx.UserIDFromContext(r.Context())
		claims, ok := httpx.ClaimsFromContext(r.Context())
		require.True(t, ok)
		require.Equal(t, gotUser, claims.Subject)
		w.WriteHeader(http.StatusNoContent)
	}), httpx.AuthnMiddleware(stubVerifier(map[string]string{"good": "u1"}), nil))

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusNoContent, rec.Code)
		require.Equal(t, "u1", gotUser)
	})

	t.Run("missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
	})

	t.Run("rejected token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer bad")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("custom error writer", func(t *testing.T) {
		custom := httpx.AuthnMiddleware(stubVerifier(nil), func(w http.ResponseWriter, r *http.Request, err error) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})(okHandler())

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer any")
		rec := httptest.NewRecorder()
		custom.ServeHTTP(rec, req)

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestReauthMiddleware(t *testing.T) {
	access := stubVerifier(map[string]string{"acc-u1": "u1"})
	reauth := stubVerifier(map[string]string{"re-u1": "u1", "re-u2": "u2"})

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, ok := httpx.ReauthFromContext(r.Context())
		require.True(t, ok)
		w.WriteHeader(http.StatusNoContent)
	}),
		httpx.AuthnMiddleware(access, nil),
		httpx.ReauthMiddleware(reauth, nil),
	)

	send := func(reauthToken string) int {
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		req.Header.Set("Authorization", "Bearer acc-u1")
		if reauthToken != "" {
			req.Header.Set(httpx.ReauthHeader, reauthToken)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusNoContent, send("re-u1"))
	require.Equal(t, http.StatusUnauthorized, send(""))
	require.Equal(t, http.StatusUnauthorized, send("garbage"))
	require.Equal(t, http.StatusUnauthorized, send("re-u2"))
}
