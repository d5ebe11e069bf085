package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/Harshitk-cp/vidocq/internal/api/handlers"
	mw "github.com/Harshitk-cp/vidocq/internal/api/middleware"
	"github.com/Harshitk-cp/vidocq/internal/buildconfig"
	"github.com/Harshitk-cp/vidocq/internal/config"
	"github.com/Harshitk-cp/vidocq/internal/domain"
	"github.com/Harshitk-cp/vidocq/internal/metrics"
	"github.com/Harshitk-cp/vidocq/internal/service"
	"github.com/Harshitk-cp/vidocq/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Stores groups the persistence backends of the engine.
type Stores struct {
	Claims   domain.ClaimStore
	Versions domain.VersionStore
	Facts    domain.FactStore
}

// PostgresStores returns pgx-backed stores sharing one pool.
func PostgresStores(db *pgxpool.Pool) Stores {
	return Stores{
		Claims:   store.NewClaimStore(db),
		Versions: store.NewVersionStore(db),
		Facts:    store.NewFactStore(db),
	}
}

// InMemoryStores returns process-local stores.
func InMemoryStores() Stores {
	return Stores{
		Claims:   store.NewInMemoryClaimStore(),
		Versions: store.NewInMemoryVersionStore(),
		Facts:    store.NewInMemoryFactStore(),
	}
}

// App holds the router and background services for lifecycle management.
type App struct {
	Router      *chi.Mux
	Coordinator *service.Coordinator
	Ingest      *service.IngestService
	Versions    *service.VersioningService
	Auditor     *service.AuditorService
	Metrics     *metrics.Metrics
}

// Pinger reports backend health. A nil Pinger means there is nothing to ping.
type Pinger interface {
	Ping(ctx context.Context) error
}

func NewApp(stores Stores, policy *domain.TrustPolicy, db Pinger, reg *prometheus.Registry, logger *zap.Logger) *App {
	m := metrics.New(reg)

	// Services
	engine := service.NewFusionEngine(policy, logger)
	versionSvc := service.NewVersioningService(stores.Versions, policy, logger)
	versionSvc.SetMetrics(m)

	coordinator := service.NewCoordinator(stores.Claims, stores.Facts, engine, versionSvc, logger)
	coordinator.SetMetrics(m)
	coordinator.SetIdleTimeout(config.KeyIdleTimeout())

	ingestSvc := service.NewIngestService(coordinator, policy, logger)
	ingestSvc.SetMetrics(m)

	auditor := service.NewAuditorService(versionSvc, logger)
	auditor.SetInterval(config.AuditInterval())

	// Handlers
	claimHandler := handlers.NewClaimHandler(ingestSvc)
	factHandler := handlers.NewFactHandler(coordinator, versionSvc)

	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Metrics(m))
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", healthHandler(db))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/claims", func(r chi.Router) {
			r.Post("/", claimHandler.Create)
			r.Post("/batch", claimHandler.CreateBatch)
		})

		r.Route("/facts", func(r chi.Router) {
			r.Get("/", factHandler.Get)
			r.Get("/claims", factHandler.Claims)
			r.Get("/as-of", factHandler.AsOf)
			r.Get("/history", factHandler.History)
		})
	})

	return &App{
		Router:      r,
		Coordinator: coordinator,
		Ingest:      ingestSvc,
		Versions:    versionSvc,
		Auditor:     auditor,
		Metrics:     m,
	}
}

func healthHandler(db Pinger) http.HandlerFunc {
	started := time.Now()
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":         "ok",
			"uptime_seconds": time.Since(started).Seconds(),
			"build":          buildconfig.Current(),
		})
	}
}

// Ensure stores satisfy interfaces at compile time.
var (
	_ domain.ClaimStore   = (*store.ClaimStore)(nil)
	_ domain.VersionStore = (*store.VersionStore)(nil)
	_ domain.Reconciler   = (*store.VersionStore)(nil)
	_ domain.FactStore    = (*store.FactStore)(nil)
	_ domain.ClaimStore   = (*store.InMemoryClaimStore)(nil)
	_ domain.VersionStore = (*store.InMemoryVersionStore)(nil)
	_ domain.Reconciler   = (*store.InMemoryVersionStore)(nil)
	_ domain.FactStore    = (*store.InMemoryFactStore)(nil)
	_ service.Enqueuer    = (*service.Coordinator)(nil)
)
