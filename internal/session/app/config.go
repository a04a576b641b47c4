package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/jwtx"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// KeyConfig is one base64 PEM encoded RSA pair as read from the environment.
type KeyConfig struct {
	PrivateKey string
	PublicKey  string
}

type Config struct {
	AccessKey  KeyConfig // Required: also signs reauth tokens
	RefreshKey KeyConfig // Required
	SessionKey KeyConfig // Required

	AccessTTL   time.Duration // Access and reauth lifetime (default: 15m)
	RefreshTTL  time.Duration // Refresh lifetime, ledger row expiry and refresh cookie max-age (default: 168h)
	SessionTTL  time.Duration // Session token lifetime and cookie max-age (default: 168h)
	TokenLeeway time.Duration // Clock skew allowed when verifying (default: 0)

	RedisURL       string // Credential registry (default: redis://localhost:6379/0)
	RedisKeyPrefix string // Optional namespace before "<kind>:<id>"

	DatabaseDriver string // sqlite or postgres (default: sqlite)
	DatabaseFile   string // SQLite path (default: ./sessiond.db)
	DatabaseURL    string // Postgres DSN, required with the postgres driver

	PepperFile   string // Path to file containing pepper for password hashing (default: ./pepper)
	CookieDomain string // Optional Domain attribute of the token cookies

	Env                  string        // Environment (dev, staging, prod) (default: dev)
	LogLevel             string        // Log level (debug, info, warn, error) (default: info)
	LogFormat            string        // Log format (json, text) (default: json)
	Port                 int           // HTTP server port (default: 8080)
	ShutdownGracePeriod  time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval time.Duration // Expired ledger sweep interval (default: 1h)
	StoreTimeout         time.Duration // Bound for background cleanup calls (default: 3s)

	RateLimits httpx.Limits // RATELIMIT_<TIER>_{REQUESTS,WINDOW,BURST} (default: httpx.DefaultLimits)
}

func LoadConfig() Config {
	return Config{
		AccessKey: KeyConfig{
			PrivateKey: os.Getenv("ACCESS_TOKEN_PRIVATE_KEY"),
			PublicKey:  os.Getenv("ACCESS_TOKEN_PUBLIC_KEY"),
		},
		RefreshKey: KeyConfig{
			PrivateKey: os.Getenv("REFRESH_TOKEN_PRIVATE_KEY"),
			PublicKey:  os.Getenv("REFRESH_TOKEN_PUBLIC_KEY"),
		},
		SessionKey: KeyConfig{
			PrivateKey: os.Getenv("SESSION_TOKEN_PRIVATE_KEY"),
			PublicKey:  os.Getenv("SESSION_TOKEN_PUBLIC_KEY"),
		},

		AccessTTL:   getEnvDurationOrDefault("ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTTL:  getEnvDurationOrDefault("REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		SessionTTL:  getEnvDurationOrDefault("SESSION_TOKEN_TTL", jwtx.DefaultSessionTokenTTL),
		TokenLeeway: getEnvDurationOrDefault("TOKEN_LEEWAY", 0),

		RedisURL:       getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix: os.Getenv("REDIS_KEY_PREFIX"),

		DatabaseDriver: strings.ToLower(getEnvOrDefault("DATABASE_DRIVER", DriverSQLite)),
		DatabaseFile:   getEnvOrDefault("DATABASE_FILE", "sessiond.db"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),

		PepperFile:   getEnvOrDefault("PEPPER_FILE", "pepper"),
		CookieDomain: os.Getenv("COOKIE_DOMAIN"),

		Env:                  getEnvOrDefault("ENV", "dev"),
		LogLevel:             getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:            getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                 getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:  getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval: getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		StoreTimeout:         getEnvDurationOrDefault("STORE_TIMEOUT", 3*time.Second),

		RateLimits: loadRateLimits(httpx.DefaultLimits()),
	}
}

func loadRateLimits(d httpx.Limits) httpx.Limits {
	tier := func(name string, l httpx.Limit) httpx.Limit {
		return httpx.Limit{
			Requests: getEnvIntOrDefault("RATELIMIT_"+name+"_REQUESTS", l.Requests),
			Window:   getEnvDurationOrDefault("RATELIMIT_"+name+"_WINDOW", l.Window),
			Burst:    getEnvIntOrDefault("RATELIMIT_"+name+"_BURST", l.Burst),
		}
	}
	return httpx.Limits{
		Strict:   tier("STRICT", d.Strict),
		Moderate: tier("MODERATE", d.Moderate),
		Lenient:  tier("LENIENT", d.Lenient),
		Public:   tier("PUBLIC", d.Public),
	}
}

// Validate reports every missing or inconsistent setting at once. Key
// material itself is parsed later by LoadKeys.
func (c Config) Validate() error {
	var errs []error

	for name, k := range map[string]KeyConfig{
		"ACCESS_TOKEN":  c.AccessKey,
		"REFRESH_TOKEN": c.RefreshKey,
		"SESSION_TOKEN": c.SessionKey,
	} {
		if k.PrivateKey == "" || k.PublicKey == "" {
			errs = append(errs, fmt.Errorf("%s_PRIVATE_KEY and %s_PUBLIC_KEY are required", name, name))
		}
	}

	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 || c.SessionTTL <= 0 {
		errs = append(errs, errors.New("token ttls must be positive"))
	}
	if c.AccessTTL > c.RefreshTTL {
		errs = append(errs, errors.New("ACCESS_TOKEN_TTL must not exceed REFRESH_TOKEN_TTL"))
	}
	if c.TokenLeeway < 0 {
		errs = append(errs, errors.New("TOKEN_LEEWAY must not be negative"))
	}

	switch c.DatabaseDriver {
	case DriverSQLite:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required with the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown DATABASE_DRIVER %q", c.DatabaseDriver))
	}

	if c.RedisURL == "" {
		errs = append(errs, errors.New("REDIS_URL is required"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}

	for name, l := range map[string]httpx.Limit{
		"STRICT":   c.RateLimits.Strict,
		"MODERATE": c.RateLimits.Moderate,
		"LENIENT":  c.RateLimits.Lenient,
		"PUBLIC":   c.RateLimits.Public,
	} {
		if l.Requests <= 0 || l.Burst <= 0 || l.Window <= 0 {
			errs = append(errs, fmt.Errorf("RATELIMIT_%s values must be positive", name))
		}
	}

	return errors.Join(errs...)
}

// SecureCookies is true in production.
func (c Config) SecureCookies() bool {
	return c.Env == "prod"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer seconds
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}

	return defaultValue
}
