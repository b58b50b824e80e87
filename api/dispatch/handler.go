// Package dispatch exposes optimization runs, marginal costs and the run log
// over HTTP.
package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kilianp07/chpdispatch/config"
	"github.com/kilianp07/chpdispatch/core/dispatch"
	"github.com/kilianp07/chpdispatch/core/dispatch/logging"
	"github.com/kilianp07/chpdispatch/core/margins"
	"github.com/kilianp07/chpdispatch/core/model"
	"github.com/kilianp07/chpdispatch/pkg/timeseries"
)

// Service is the dispatch backend used by the handlers.
type Service interface {
	Optimize(ctx context.Context, site string, series model.Series) (*dispatch.Plan, error)
	Margins(site string, electricity, gas, heat float64) (margins.SweepPoint, error)
	Defaults(site string) (timeseries.Defaults, error)
}

// Options configures NewMux.
type Options struct {
	// Token enables bearer authentication when non-empty.
	Token string
	// MaxBody bounds request bodies in bytes. Zero means no limit.
	MaxBody int64
	// Metrics, when set, is mounted on /metrics without authentication.
	Metrics http.Handler
}

// NewMux routes the dispatch API.
func NewMux(svc Service, store logging.RunStore, opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("POST /api/dispatch/optimize", withToken(opts.Token, NewOptimizeHandler(svc, opts.MaxBody)))
	mux.Handle("GET /api/dispatch/margins", withToken(opts.Token, NewMarginsHandler(svc)))
	mux.Handle("GET /api/dispatch/runs", NewRunsHandler(store, opts.Token))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	return mux
}

// withToken requires an Authorization header with "Bearer <token>" when token
// is non-empty.
func withToken(token string, next http.Handler) http.Handler {
	if token == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, config.ErrUnknownSite):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNoSolution):
		return http.StatusUnprocessableEntity
	case errors.Is(err, model.ErrInvalidSeries),
		errors.Is(err, dispatch.ErrEmptySeries),
		errors.Is(err, dispatch.ErrHorizonTooShort),
		errors.Is(err, timeseries.ErrMissingColumn):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
