package httptransport

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"attendsync/internal/platform/metrics"
	"attendsync/internal/platform/middleware"
	"attendsync/internal/sync/handler"
	dErrors "attendsync/pkg/domain-errors"
	"attendsync/pkg/platform/httputil"
)

const readyTimeout = 2 * time.Second

// ReadinessChecker reports whether the backing stores answer.
type ReadinessChecker interface {
	Ready(ctx context.Context) error
}

// Deps are the collaborators the router wires into handlers.
type Deps struct {
	Logger   *slog.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	Ready    ReadinessChecker
	Sync     handler.Service
}

// NewRouter wires the public endpoints. Handlers stay thin and delegate to
// the sync service.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger, d.Metrics))
	r.Use(chimw.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(d.Ready, d.Logger))
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	handler.New(d.Sync, d.Logger).Register(r)
	return r
}

func readyHandler(check ReadinessChecker, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
		defer cancel()
		if err := check.Ready(ctx); err != nil {
			logger.WarnContext(ctx, "readiness check failed", "error", err)
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"error": string(dErrors.CodeInternal), "status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
