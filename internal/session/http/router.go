package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessiond/internal/session/metrics"
	"github.com/aussiebroadwan/sessiond/internal/session/registry"
	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/internal/session/store"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"

	_ "github.com/aussiebroadwan/sessiond/api/session" // Swagger docs
	httpSwagger "github.com/swaggo/http-swagger"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store    store.Store
	registry registry.Registry
	metrics  *metrics.Metrics

	Auth    *service.AuthService
	Tokens  *token.Service
	Cookies httpx.CookieConfig

	// Limits may be replaced before ApplyRoutes.
	Limits httpx.Limits
}

func NewRouter(
	auth *service.AuthService,
	st store.Store,
	reg registry.Registry,
	m *metrics.Metrics,
	cookies httpx.CookieConfig,
	buildVersion string,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		store:        st,
		registry:     reg,
		metrics:      m,
		Auth:         auth,
		Tokens:       auth.Tokens,
		Cookies:      cookies,
		Limits:       httpx.DefaultLimits(),
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerMe()
	r.registerSystem()

	r.Mux.Handle("/swagger/", httpSwagger.Handler())
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
//
//	@title			sessiond API
//	@version		0.1.0
//	@description	First-party session issuance: short-lived access tokens, rotating refresh tokens,
//	@description	a display session token and step-up reauth tokens.
//	@description
//	@description				Access and session tokens are signed using RS256 (RSA-SHA256) and can be verified using the JWKS endpoint.
//
//	@contact.name				AussieBroadWAN Team
//	@contact.url				https://github.com/aussiebroadwan/sessiond
//
//	@license.name				MIT
//	@license.url				https://opensource.org/licenses/MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@schemes					http https
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT access token. Format: "Bearer {token}".
//
//	@securityDefinitions.apikey	ReauthToken
//	@in							header
//	@name						X-Reauth-Token
//	@description				Step-up token from POST /v1/auth/reauth.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// handle registers h under pattern, counted in metrics as route.
func (r *Router) handle(pattern, route string, h http.Handler, mws ...httpx.Middleware) {
	mws = append([]httpx.Middleware{r.metrics.HTTPMiddleware(route)}, mws...)
	r.Mux.Handle(pattern, httpx.Chain(h, mws...))
}

func (r *Router) authn() httpx.Middleware {
	return httpx.AuthnMiddleware(r.Tokens.AccessVerifier(), writeError)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{Auth: r.Auth, Tokens: r.Tokens, Cookies: r.Cookies}

	// Credential endpoints are limited by IP + email to slow down guessing
	r.handle("POST /v1/auth/register", "register", http.HandlerFunc(h.HandleRegister),
		httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
	)
	r.handle("POST /v1/auth/login", "login", http.HandlerFunc(h.HandleLogin),
		httpx.RateLimitByIPAndJSONField(r.Limits.Strict, "email"),
	)

	// Cookie authenticated - moderate rate limit by IP
	r.handle("POST /v1/auth/refresh", "refresh", http.HandlerFunc(h.HandleRefresh),
		httpx.RateLimitByIP(r.Limits.Moderate),
	)
	r.handle("POST /v1/auth/logout", "logout", http.HandlerFunc(h.HandleLogout),
		httpx.RateLimitByIP(r.Limits.Moderate),
	)

	// Password re-check - strict rate limit by user
	r.handle("POST /v1/auth/reauth", "reauth", http.HandlerFunc(h.HandleReauth),
		r.authn(),
		httpx.RateLimitByUser(r.Limits.Strict),
	)
}

func (r *Router) registerMe() {
	h := &MeHandler{Auth: r.Auth, Cookies: r.Cookies}

	r.handle("GET /v1/me", "me", http.HandlerFunc(h.HandleGet),
		r.authn(),
		httpx.RateLimitByUser(r.Limits.Lenient),
	)
	r.handle("PATCH /v1/me", "me_update", http.HandlerFunc(h.HandleUpdate),
		r.authn(),
		httpx.RateLimitByUser(r.Limits.Moderate),
	)

	// DELETE requires a step-up token issued to the same user
	r.handle("DELETE /v1/me", "me_delete", http.HandlerFunc(h.HandleDelete),
		r.authn(),
		httpx.ReauthMiddleware(r.Tokens.ReauthVerifier(), writeError),
		httpx.RateLimitByUser(r.Limits.Moderate),
	)
	r.handle("GET /v1/me/sessions", "me_sessions", http.HandlerFunc(h.HandleSessions),
		r.authn(),
		httpx.RateLimitByUser(r.Limits.Lenient),
	)
}

func (r *Router) registerSystem() {
	r.handle("GET /livez", "livez", LivezHandler(r.startTime, r.buildVersion))
	r.handle("GET /readyz", "readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.registry))

	r.handle("GET /.well-known/jwks.json", "jwks", JWKSHandler(r.Tokens.JWKS()),
		httpx.RateLimitByIP(r.Limits.Public),
	)

	r.Mux.Handle("GET /metrics", r.metrics.Handler())
}
