package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/fleetdesk/fleetdesk/internal/dispatch"
	"github.com/fleetdesk/fleetdesk/internal/observability"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

// RouterResult exposes handles constructed while mounting routes.
type RouterResult struct {
	Handler  http.Handler
	Dispatch *dispatch.Service
}

// NewRouter constructs the chi.Router with FleetDesk defaults.
func NewRouter(params RouterParams) RouterResult {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)
	r.Use(params.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", params.Metrics.Handler())

	svc := dispatch.MountRoutes(r, params.Pool, params.Redis, params.Logger,
		params.Config.DepotLocation, params.Config.SummaryTTL)
	if params.Metrics != nil {
		svc.WithMetrics(params.Metrics)
	}

	return RouterResult{Handler: r, Dispatch: svc}
}
