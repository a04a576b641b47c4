package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aussiebroadwan/sessiond/internal/session/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *metrics.Metrics

	m.TokenIssued("access")
	m.TokenVerified("access", metrics.ResultOK)
	m.Rotated(metrics.ResultOK)
	m.Revoked(metrics.ScopeAll, 3)
	require.Nil(t, m.Registry())

	h := m.HTTPMiddleware("login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)
}

func TestCounters(t *testing.T) {
	m := metrics.New()

	m.TokenIssued("access")
	m.TokenIssued("access")
	m.TokenIssued("refresh")
	m.TokenVerified("access", metrics.ResultRejected)
	m.Rotated(metrics.ResultOK)
	m.Revoked(metrics.ScopeAll, 2)
	m.Revoked(metrics.ScopeSingle, 0)

	expected := `
# HELP sessiond_tokens_issued_total Tokens signed, by kind.
# TYPE sessiond_tokens_issued_total counter
sessiond_tokens_issued_total{kind="access"} 2
sessiond_tokens_issued_total{kind="refresh"} 1
# HELP sessiond_token_revocations_total Refresh families revoked, by scope.
# TYPE sessiond_token_revocations_total counter
sessiond_token_revocations_total{scope="all"} 2
`
	require.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected),
		"sessiond_tokens_issued_total", "sessiond_token_revocations_total"))
}

func TestHTTPMiddlewareAndHandler(t *testing.T) {
	m := metrics.New()

	h := m.HTTPMiddleware("login")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/auth/login", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `sessiond_http_requests_total{code="401",route="login"} 1`)
	require.Contains(t, string(body), `sessiond_http_request_duration_seconds_count{route="login"} 1`)
}
