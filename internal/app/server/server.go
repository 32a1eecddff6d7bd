package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"paycore/internal/db"
	"paycore/internal/domain/payrun"
	"paycore/internal/domain/tax"
	"paycore/internal/platform/config"
	"paycore/internal/platform/metrics"
	"paycore/internal/transport/http/api"
	payrunhandler "paycore/internal/transport/http/handlers/payrun"
	taxeshandler "paycore/internal/transport/http/handlers/taxes"
	"paycore/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, "migrations"); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}

	if err := db.Seed(ctx, pool, cfg); err != nil {
		log.Fatalf("seed failed: %v", err)
	}

	taxCfg, err := loadTaxConfig(cfg)
	if err != nil {
		log.Fatalf("tax config failed: %v", err)
	}
	engine := tax.NewEngine(taxCfg)

	store := payrun.NewStore(pool)
	service := payrun.NewService(store, engine, cfg.RunLockTTL, cfg.RunWorkers)

	collector := metrics.New()

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.Auth(cfg.JWTSecret))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		taxeshandler.NewHandler(engine).RegisterRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RunRateLimit(cfg.RateLimitPerMinute, time.Minute))
			payrunhandler.NewHandler(service, collector).RegisterRoutes(r)
		})
	})

	log.Printf("payroll server listening on %s (tax year %d)", cfg.Addr, engine.Year())
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func loadTaxConfig(cfg config.Config) (*tax.Config, error) {
	if cfg.TaxConfigFile != "" {
		return tax.LoadFile(cfg.TaxConfigFile)
	}
	return tax.Load(cfg.TaxYear), nil
}
