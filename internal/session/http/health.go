package http

import (
	"context"
	"net/http"
	"time"

	"github.com/aussiebroadwan/sessiond/pkg/authsdk"
	"github.com/aussiebroadwan/sessiond/pkg/httpx"
	"golang.org/x/sync/errgroup"
)

const probeTimeout = 2 * time.Second

// Pinger is a dependency the readiness probe checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process is serving.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
		})
	}
}

// ReadyzHandler godoc
//
//	@Summary		Readiness probe
//	@Description	Pings the session ledger and the credential registry concurrently. Any failure answers 503.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version, checks"
//	@Failure		503	{object}	authsdk.HealthResponse	"one or more dependencies unreachable"
//	@Router			/readyz [get].
func ReadyzHandler(startTime time.Time, version string, ledger, registry Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
		defer cancel()

		var ledgerErr, registryErr error
		var g errgroup.Group
		g.Go(func() error { ledgerErr = ledger.Ping(ctx); return nil })
		g.Go(func() error { registryErr = registry.Ping(ctx); return nil })
		_ = g.Wait()

		resp := authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  time.Since(startTime).String(),
			Version: version,
			Checks: &authsdk.HealthChecks{
				Ledger:   probeResult(ledgerErr),
				Registry: probeResult(registryErr),
			},
		}

		code := http.StatusOK
		if ledgerErr != nil || registryErr != nil {
			resp.Status = "degraded"
			code = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, code, resp)
	}
}

func probeResult(err error) string {
	if err != nil {
		return "error: " + err.Error()
	}
	return "ok"
}
