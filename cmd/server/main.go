// CodeAndo - HTML/CSS playground and challenge evaluator server
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ashureev/codeando/content"
	"github.com/ashureev/codeando/internal/api"
	"github.com/ashureev/codeando/internal/catalog"
	"github.com/ashureev/codeando/internal/config"
	"github.com/ashureev/codeando/internal/evaluator"
	"github.com/ashureev/codeando/internal/grpchealth"
	"github.com/ashureev/codeando/internal/identity"
	"github.com/ashureev/codeando/internal/metrics"
	"github.com/ashureev/codeando/internal/middleware"
	"github.com/ashureev/codeando/internal/playground"
	"github.com/ashureev/codeando/internal/progress"
	"github.com/ashureev/codeando/internal/retention"
	"github.com/ashureev/codeando/internal/store"
	"github.com/ashureev/codeando/web"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
)

const contentReloadDebounce = 300 * time.Millisecond

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(ctx); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "path", cfg.DBPath)

	m := metrics.NewMetrics()

	eval := evaluator.New(cfg.Evaluation.RegexTimeout)
	registry, err := loadCatalog(cfg, m, eval)
	if err != nil {
		slog.Error("Failed to load content catalog", "error", err)
		os.Exit(1)
	}
	if cfg.Content.Dir != "" && cfg.Content.Watch {
		go func() {
			if err := registry.Watch(ctx, cfg.Content.Dir, contentReloadDebounce); err != nil {
				slog.Error("Content watcher stopped", "error", err)
			}
		}()
	}

	// Initialize services.
	tracker := progress.NewTracker(repo, registry, eval, m)
	sm := playground.NewSessionManager(m)

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, registry, tracker, api.Options{
		FrontendURL:    cfg.FrontendURL,
		MaxBufferBytes: cfg.Evaluation.MaxBufferBytes,
		TeacherPINHash: cfg.TeacherPINHash,
	})
	healthHandler := api.NewHealthHandler(repo, registry)
	wsHandler := playground.NewWebSocketHandler(tracker, sm, playground.Options{
		AllowedOrigin:  cfg.FrontendURL,
		IsDev:          cfg.IsDevelopment(),
		Debounce:       cfg.Evaluation.Debounce,
		MaxBufferBytes: cfg.Evaluation.MaxBufferBytes,
	})

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Heartbeat("/ping"))
	r.Use(m.Middleware)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	healthHandler.RegisterHealth(r)
	r.Handle("/metrics", metrics.Handler())

	// Learner routes carry an anonymous identity.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, cfg.IsDevelopment()))
		apiHandler.RegisterRoutes(r)
		r.Get("/ws/playground", wsHandler.ServeHTTP)
	})

	// Serve embedded frontend (SPA catch-all).
	r.Handle("/*", web.SPAHandler())

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // websocket sessions are long-lived
		IdleTimeout:  120 * time.Second,
	}

	// Background workers.
	retention.StartWorker(ctx, repo, m, cfg.Retention.MaxIdle, cfg.Retention.Interval)

	var grpcServer *grpchealth.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC", "error", err, "port", cfg.GRPCPort)
			os.Exit(1)
		}
		grpcServer = grpchealth.NewServer(repo)
		grpcServer.Watch(ctx, 0)
		go func() {
			if err := grpcServer.Serve(lis); err != nil {
				slog.Error("gRPC health server failed", "error", err)
			}
		}()
	}

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Stop()
	}
	sm.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server stopped successfully")
}

// loadCatalog reads lessons and projects from CONTENT_DIR, or the embedded
// catalog when no directory is configured. Every reload drops the compiled
// matchers of the previous content.
func loadCatalog(cfg *config.Config, m *metrics.Metrics, eval *evaluator.Evaluator) (*catalog.Registry, error) {
	var fsys fs.FS = content.FS
	if cfg.Content.Dir != "" {
		dir, err := catalog.DirFS(cfg.Content.Dir)
		if err != nil {
			m.RecordCatalog(0, 0, err)
			return nil, err
		}
		fsys = dir
	}

	registry, err := catalog.NewRegistry(fsys)
	if err != nil {
		m.RecordCatalog(0, 0, err)
		return nil, err
	}
	registry.OnLoad(func(c *catalog.Catalog) {
		eval.Reset()
		m.RecordCatalog(len(c.Lessons()), len(c.Projects()), nil)
	})
	registry.OnError(func(err error) {
		m.RecordCatalog(0, 0, err)
	})

	c := registry.Current()
	slog.Info("Content catalog loaded", "lessons", len(c.Lessons()), "projects", len(c.Projects()), "dir", cfg.Content.Dir)
	return registry, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" || cfg.IsDevelopment() {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
