package marketdatahttp

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"entsoe-etl/internal/auth"
)

// Handlers groups the API handlers mounted by NewMux.
type Handlers struct {
	Runs     http.Handler
	Backfill http.Handler
	Records  http.Handler
	Exports  http.Handler
}

// NewMux mounts the API behind auth. /healthz and /metrics stay public.
func NewMux(h Handlers, mw *auth.Middleware) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/healthz", HealthHandler())
	mux.Handle("/metrics", promhttp.Handler())
	if h.Runs != nil {
		mux.Handle("/api/v1/runs", h.Runs)
	}
	if h.Backfill != nil {
		mux.Handle("/api/v1/backfill", h.Backfill)
	}
	if h.Records != nil {
		mux.Handle("/api/v1/records", h.Records)
	}
	if h.Exports != nil {
		mux.Handle("/api/v1/exports/", h.Exports)
	}
	if mw == nil {
		return mux
	}
	return mw.Wrap(mux)
}
