package session_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/sessiond/internal/session/app"
	"github.com/aussiebroadwan/sessiond/internal/session/sessiontest"
	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

/*
 * Common constants and helpers for the session service end-to-end tests.
 * The service runs in-process behind httptest; its registry and ledger are
 * either in-memory (miniredis + sqlite) or real containers (redis + postgres).
 */

const (
	testEmail    = "alice@example.com"
	testName     = "Alice"
	testPassword = "correct-horse"
)

// backend prepares the registry and ledger settings for one run.
type backend struct {
	name  string
	apply func(t *testing.T, cfg *app.Config)
}

var backends = []backend{
	{name: "memory", apply: memoryBackend},
	{name: "containers", apply: containerBackend},
}

// forEachBackend runs fn once per backend, each against a fresh service.
func forEachBackend(t *testing.T, fn func(t *testing.T, baseURL string)) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			fn(t, startService(t, b))
		})
	}
}

func memoryBackend(t *testing.T, cfg *app.Config) {
	mr := miniredis.RunT(t)
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.DatabaseDriver = app.DriverSQLite
	cfg.DatabaseFile = filepath.Join(t.TempDir(), "sessiond.db")
}

func containerBackend(t *testing.T, cfg *app.Config) {
	if testing.Short() {
		t.Skip("container backend skipped in short mode")
	}
	testcontainers.SkipIfProviderIsNotHealthy(t)

	cfg.RedisURL = startContainer(t, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}, "6379", "redis://%s:%s/0")

	cfg.DatabaseDriver = app.DriverPostgres
	cfg.DatabaseURL = startContainer(t, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "sessiond",
			"POSTGRES_PASSWORD": "sessiond",
			"POSTGRES_DB":       "sessiond",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}, "5432", "postgres://sessiond:sessiond@%s:%s/sessiond?sslmode=disable")
}

// startContainer starts req and formats its mapped address into urlFormat.
func startContainer(t *testing.T, req testcontainers.ContainerRequest, port nat.Port, urlFormat string) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	mapped, err := container.MappedPort(ctx, port)
	require.NoError(t, err)

	return fmt.Sprintf(urlFormat, host, mapped.Port())
}

// startService builds the application for b and serves it until t ends.
func startService(t *testing.T, b backend) string {
	t.Helper()

	raw := sessiontest.RawKeys(t)
	pair := func(k cryptox.RSAKeyPair) app.KeyConfig {
		return app.KeyConfig{PrivateKey: k.PrivateBase64(), PublicKey: k.PublicBase64()}
	}

	cfg := app.LoadConfig()
	cfg.AccessKey, cfg.RefreshKey, cfg.SessionKey = pair(raw[0]), pair(raw[1]), pair(raw[2])
	cfg.PepperFile = filepath.Join(t.TempDir(), "pepper")
	cfg.LogLevel = "error"
	b.apply(t, &cfg)

	application, err := app.New(cfg)
	require.NoError(t, err)

	srv := httptest.NewServer(application.Handler())
	t.Cleanup(func() {
		srv.Close()
		if err := application.Close(); err != nil {
			t.Logf("failed to close application: %v", err)
		}
	})

	return srv.URL
}

// registerAndLogin creates the test user and returns a logged in session.
func registerAndLogin(t *testing.T, client *authsdk.SDKClient) *authsdk.Session {
	t.Helper()

	err := client.Register(t.Context(), authsdk.RegisterRequest{
		Email:    testEmail,
		Name:     testName,
		Password: testPassword,
	})
	require.NoError(t, err)

	session, err := client.Login(t.Context(), testEmail, testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, session.AccessToken())
	require.NotEmpty(t, session.RefreshToken())
	require.NotEmpty(t, session.SessionToken())
	return session
}

// clientWithRefreshCookie returns a fresh client whose jar holds only the
// given refresh token.
func clientWithRefreshCookie(t *testing.T, baseURL, refreshToken string) *authsdk.SDKClient {
	t.Helper()

	client := authsdk.NewSDKClient(baseURL)
	u, err := url.Parse(baseURL)
	require.NoError(t, err)
	client.HTTPClient.Jar.SetCookies(u, []*http.Cookie{{
		Name:  authsdk.CookieRefreshToken,
		Value: refreshToken,
		Path:  "/",
	}})
	return client
}
