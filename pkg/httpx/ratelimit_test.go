package httpx_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"peer address", nil, "192.168.1.1"},
		{"first forwarded hop", map[string]string{"X-Forwarded-For": "203.0.113.1, 192.168.1.1"}, "203.0.113.1"},
		{"real ip", map[string]string{"X-Real-IP": " 203.0.113.2 "}, "203.0.113.2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			require.Equal(t, tt.want, httpx.ClientIP(req))
		})
	}
}

func TestJSONField(t *testing.T) {
	t.Run("extracts and lower-cases the field", func(t *testing.T) {
		body := `{"email":"  Ada@Example.com ","password":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		require.Equal(t, "ada@example.com", httpx.JSONField("email")(req))

		// The handler still sees the full body
		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	for _, body := range []string{`{"email":42}`, `{}`, `nope`} {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
		require.Empty(t, httpx.JSONField("email")(req), body)
	}
}

func TestKeys(t *testing.T) {
	key := httpx.Keys(httpx.ClientIP, httpx.JSONField("email"))

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"alice@example.com"}`))
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1:alice@example.com", key(req))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
	req.RemoteAddr = "192.168.1.1:12345"
	require.Equal(t, "192.168.1.1", key(req))
}

func TestAuthenticatedUser(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Empty(t, httpx.AuthenticatedUser(req))

	ctx := context.WithValue(req.Context(), httpx.CtxKeyUserID, "user-1")
	require.Equal(t, "user-1", httpx.AuthenticatedUser(req.WithContext(ctx)))
}

func TestRateLimit(t *testing.T) {
	t.Run("blocks requests over the burst", func(t *testing.T) {
		limited := httpx.RateLimit(httpx.Limit{Requests: 3, Window: time.Minute, Burst: 3}, httpx.ClientIP)(okHandler())

		send := func() *httptest.ResponseRecorder {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			return rec
		}

		for i := range 3 {
			require.Equal(t, http.StatusOK, send().Code, "request %d", i+1)
		}

		rec := send()
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Equal(t, "20", rec.Header().Get("Retry-After"))
		require.Equal(t, "3", rec.Header().Get("X-RateLimit-Limit"))
		require.Contains(t, rec.Body.String(), "rate_limit_exceeded")
	})

	t.Run("keys are tracked separately", func(t *testing.T) {
		limited := httpx.RateLimitByIP(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1})(okHandler())

		for _, addr := range []string{"10.0.0.1:1", "10.0.0.2:1"} {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = addr
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, addr)
		}
	})

	t.Run("empty key is not limited", func(t *testing.T) {
		empty := func(*http.Request) string { return "" }
		limited := httpx.RateLimit(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1}, empty)(okHandler())

		for range 3 {
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitByIPAndJSONField(t *testing.T) {
	limited := httpx.RateLimitByIPAndJSONField(httpx.Limit{Requests: 1, Window: time.Minute, Burst: 1}, "email")(okHandler())

	send := func(email string) int {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"`+email+`"}`))
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("a@example.com"))
	require.Equal(t, http.StatusTooManyRequests, send("a@example.com"))
	require.Equal(t, http.StatusTooManyRequests, send("A@EXAMPLE.COM"))
	require.Equal(t, http.StatusOK, send("b@example.com"))
}

func TestDefaultLimits(t *testing.T) {
	l := httpx.DefaultLimits()
	require.Less(t, l.Strict.Requests, l.Moderate.Requests)
	require.Less(t, l.Moderate.Requests, l.Lenient.Requests)
	require.Less(t, l.Lenient.Requests, l.Public.Requests)
}
