package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/s1natex/task-management-system/internal/config"
	"github.com/s1natex/task-management-system/internal/logging"
	"github.com/s1natex/task-management-system/internal/middleware"
	"github.com/s1natex/task-management-system/internal/tasks"
	"github.com/s1natex/task-management-system/internal/telemetry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger) // for third-party packages that use slog

	if err := run(cfg, logger); err != nil {
		logger.Error("server_error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.Tracing.Exporter, cfg.Tracing.ServiceName)
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	repo, closeRepo, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = closeRepo() }()
	logger.Info("store_ready", slog.String("driver", cfg.Store.Driver))

	svc := tasks.NewService(repo, logger)
	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(svc, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server_listen", slog.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("server_shutdown")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("server_stopped")
	return nil
}

// openStore opens the configured store and makes sure the tasks table exists.
func openStore(ctx context.Context, cfg *config.Config) (tasks.Repository, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Store.Driver {
	case config.DriverMemory:
		return tasks.NewInMemoryRepo(), noop, nil

	case config.DriverSQLite:
		dsn, err := tasks.SQLiteFileDSN(cfg.Store.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		repo, err := tasks.NewSQLiteRepo(dsn)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case config.DriverGorm:
		// reuse the DSN helper for its directory creation
		if _, err := tasks.SQLiteFileDSN(cfg.Store.SQLitePath); err != nil {
			return nil, nil, err
		}
		repo, err := tasks.OpenGormSQLite(cfg.Store.SQLitePath, cfg.Store.Debug)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case config.DriverPostgres:
		repo, err := tasks.NewPostgresRepo(ctx, cfg.Store.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.ApplyMigrations(ctx); err != nil {
			_ = repo.Close()
			return nil, nil, err
		}
		return repo, repo.Close, nil

	case config.DriverMongo:
		repo, err := tasks.NewMongoRepo(ctx, cfg.Store.MongoURI, cfg.Store.MongoDB)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

// newRouter wires the health endpoint, task routes, and middleware stack
func newRouter(svc *tasks.Service, cfg *config.Config, logger *slog.Logger) *chi.Mux {
	r := chi.NewRouter()

	// ---- Middleware stack (order matters a bit) ----
	// RequestID first so downstream can include it (logger, errors, etc.)
	r.Use(chimw.RequestID)

	// Panic recovery: never crash the server; returns 500 on panics
	r.Use(chimw.Recoverer)

	// Timeouts: cancel handlers that exceed this duration
	r.Use(chimw.Timeout(cfg.RequestTimeout))

	// CORS: the UI origin only, any method or header
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.CORSAllowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS", "HEAD"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Location", "X-Request-ID", "Trace-Id"},
		AllowCredentials: false,
		MaxAge:           300, // 5 minutes
	}))

	r.Use(middleware.TracingMiddleware)
	r.Use(middleware.NewHTTPMetrics(prometheus.DefaultRegisterer, "taskapi").Handler)
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.RateLimitMiddleware(middleware.NewClientLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)))

	// ---- Routes ----

	// health
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := svc.Ping(ctx); err != nil {
			logger.Warn("health_check_failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
			return
		}
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	r.Handle("/metrics", middleware.MetricsHandler(prometheus.DefaultGatherer))

	// /api/task CRUD
	tasks.RegisterRoutes(r, svc, logger)

	return r
}
