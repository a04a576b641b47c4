package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/sessiond/internal/session/http"
	"github.com/aussiebroadwan/sessiond/internal/session/metrics"
	"github.com/aussiebroadwan/sessiond/internal/session/registry"
	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/internal/session/store/drivers/postgres"
	"github.com/aussiebroadwan/sessiond/internal/session/store/drivers/sqlite"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/cryptox"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags.
	BuildVersion = "v0.1.0"

	connectTimeout = 10 * time.Second
)

// Application encapsulates the session service with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	registry *registry.Redis
	metrics  *metrics.Metrics

	// Services
	tokens              *token.Service
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New validates cfg and builds every dependency. Resources opened before a
// failure are released again.
func New(cfg Config) (_ *Application, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "sessiond",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}
	defer func() {
		if err != nil {
			_ = app.closeDependencies()
		}
	}()

	// Pepper must be readable before the first password is hashed
	cryptox.SetPepperPath(cfg.PepperFile)
	if err := cryptox.LoadPepper(); err != nil {
		return nil, fmt.Errorf("failed to load pepper: %w", err)
	}

	keys, err := LoadKeys(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load signing keys: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := app.initDatabase(ctx); err != nil {
		return nil, err
	}
	if err := app.initRegistry(ctx); err != nil {
		return nil, err
	}

	app.metrics = metrics.New()
	if err := app.initServices(keys); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the root HTTP handler, for serving without Run.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	// Start housekeeping service
	app.housekeepingService.Start()

	app.logger.Info("session service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		app.closeDependencies()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		// Perform graceful shutdown
		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down session service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	// Stop the housekeeping service and wait for login cleanup to drain
	app.housekeepingService.Stop()
	app.authService.Wait()

	if err := app.closeDependencies(); err != nil {
		return err
	}

	app.logger.Info("session service stopped")
	return nil
}

// Close releases the store and registry without touching the HTTP server.
// Use it after serving through Handler.
func (app *Application) Close() error {
	app.authService.Wait()
	return app.closeDependencies()
}

func (app *Application) closeDependencies() error {
	var errs []error
	if app.registry != nil {
		if err := app.registry.Close(); err != nil {
			app.logger.Error("error closing registry", "error", err)
			errs = append(errs, err)
		}
		app.registry = nil
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database", "error", err)
			errs = append(errs, err)
		}
		app.db = nil
	}
	return errors.Join(errs...)
}

// initDatabase opens the configured driver and applies migrations
func (app *Application) initDatabase(ctx context.Context) error {
	var (
		db  store.Store
		err error
	)

	switch app.cfg.DatabaseDriver {
	case DriverPostgres:
		db, err = postgres.NewStore(ctx, app.cfg.DatabaseURL)
	default:
		host := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)", app.cfg.DatabaseFile)
		db, err = sqlite.NewStore(host)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully", "driver", app.cfg.DatabaseDriver)
	return nil
}

func (app *Application) initRegistry(ctx context.Context) error {
	reg, err := registry.OpenRedis(ctx, app.cfg.RedisURL, app.cfg.RedisKeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to connect to credential registry: %w", err)
	}
	app.registry = reg

	app.logger.Info("credential registry connected", "prefix", app.cfg.RedisKeyPrefix)
	return nil
}

// initServices initializes the token engine and the business logic services
func (app *Application) initServices(keys token.Keys) error {
	tokens, err := token.NewService(token.Config{
		Keys: keys,
		TTLs: token.TTLs{
			Access:  app.cfg.AccessTTL,
			Refresh: app.cfg.RefreshTTL,
			Session: app.cfg.SessionTTL,
		},
		Leeway: app.cfg.TokenLeeway,
	}, app.registry, app.db.Sessions(), app.logger, token.WithMetrics(app.metrics))
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	app.tokens = tokens

	app.authService = &service.AuthService{
		Store:          app.db,
		Tokens:         tokens,
		Logger:         app.logger,
		CleanupTimeout: app.cfg.StoreTimeout,
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db.Sessions(),
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	app.housekeepingService.Timeout = app.cfg.StoreTimeout

	return nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	router := httpapi.NewRouter(
		app.authService,
		app.db,
		app.registry,
		app.metrics,
		httpx.CookieConfig{
			Domain:   app.cfg.CookieDomain,
			Path:     "/",
			Secure:   app.cfg.SecureCookies(),
			SameSite: http.SameSiteLaxMode,
		},
		BuildVersion,
		app.logger,
	)
	router.Limits = app.cfg.RateLimits
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
