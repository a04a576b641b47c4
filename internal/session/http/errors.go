package http

import (
	"errors"
	"net/http"

	"github.com/aussiebroadwan/sessiond/internal/session/service"
	"github.com/aussiebroadwan/sessiond/internal/session/token"
	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"github.com/aussiebroadwan/sessiond/pkg/slogx"
)

// apiError maps service and token errors onto the public error set. Anything
// unrecognised is a server error; its detail stays in the log.
func apiError(err error) *authsdk.APIError {
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		return authsdk.ErrInvalidCredentials
	case errors.Is(err, service.ErrInvalidRequest), errors.Is(err, httpx.ErrBadJSON):
		return authsdk.ErrInvalidRequest
	case errors.Is(err, service.ErrEmailTaken):
		return authsdk.ErrEmailTaken
	case errors.Is(err, service.ErrSessionMismatch):
		return authsdk.ErrSessionMismatch
	case errors.Is(err, service.ErrUserNotFound):
		return authsdk.ErrNotFound
	case token.IsUnauthorized(err):
		return authsdk.ErrInvalidToken
	default:
		return authsdk.ErrServerError
	}
}

// writeError also serves as the httpx.ErrorWriter of the authn middlewares,
// so a registry outage during verification surfaces as 500 rather than 401.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apiError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		slogx.FromContext(r.Context()).Error("request failed", "err", err, "transient", token.IsTransient(err))
	}
	apiErr.WriteError(w)
}
