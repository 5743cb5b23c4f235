package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"firmpay/internal/domain/audit"
	"firmpay/internal/domain/auth"
	"firmpay/internal/domain/employees"
	"firmpay/internal/domain/ledger"
	"firmpay/internal/domain/payroll"
	"firmpay/internal/platform/config"
	cryptoutil "firmpay/internal/platform/crypto"
	"firmpay/internal/platform/db"
	"firmpay/internal/platform/metrics"
	"firmpay/internal/transport/http/api"
	audithandler "firmpay/internal/transport/http/handlers/audit"
	authhandler "firmpay/internal/transport/http/handlers/auth"
	employeeshandler "firmpay/internal/transport/http/handlers/employees"
	payrollhandler "firmpay/internal/transport/http/handlers/payroll"
	"firmpay/internal/transport/http/middleware"
)

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config invalid: %v", err)
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
			log.Fatalf("migrations failed: %v", err)
		}
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, pool, cfg); err != nil {
			log.Fatalf("seed failed: %v", err)
		}
	}

	cryptoSvc, err := cryptoutil.New(cfg.DataEncryptionKey)
	if err != nil {
		log.Fatalf("encryption key invalid: %v", err)
	}

	authStore := auth.NewStore(pool)
	employeeStore := employees.NewStore(pool)
	payrollStore := payroll.NewStore(pool)
	auditSvc := audit.New(pool)
	idemStore := middleware.NewIdempotencyStore(pool)
	collector := metrics.New()

	payrollSvc := payroll.NewService(payrollStore, employeeStore, ledger.New(), cryptoSvc, cfg.SlipStorageDir, cfg.PayrollCalcTimeout)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

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
		authhandler.NewHandler(authStore, cfg.JWTSecret, cryptoSvc).RegisterRoutes(r)
		employeeshandler.NewHandler(employeeStore, auditSvc, authStore).RegisterRoutes(r)
		payrollhandler.NewHandler(payrollSvc, auditSvc, idemStore, authStore).RegisterRoutes(r)
		audithandler.NewHandler(auditSvc, authStore).RegisterRoutes(r)
	})

	log.Printf("firmpay server listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
