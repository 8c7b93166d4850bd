package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	levhttp "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/http"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/litellm"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/mcp"
	levnats "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/nats"
	levotel "github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/otel"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/postgres"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/ristretto"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/adapter/ws"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/config"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/logger"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/port/toolregistry"
	"github.com/gianmatteo-arcana/engine-lever-sub004/internal/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logCloser.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"max_iterations", cfg.Reasoner.MaxIterations,
		"recovery_interval", cfg.Recovery.Interval,
	)

	ctx := context.Background()

	// --- Telemetry ---
	otelShutdown, err := levotel.Init(ctx, cfg.Logging.Service, cfg.Otel.Endpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := levotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Infrastructure ---
	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer pool.Close()
	slog.Info("postgres connected")

	if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	slog.Info("migrations applied")

	queue, err := levnats.Connect(ctx, cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("nats: %w", err)
	}
	defer func() { _ = queue.Drain() }()

	snapshots, err := ristretto.New(cfg.Cache.MaxSizeMB << 20)
	if err != nil {
		return fmt.Errorf("snapshot cache: %w", err)
	}
	defer snapshots.Close()

	// --- Services ---
	hub := ws.NewHub()
	contextLog := postgres.NewContextLog(pool)
	taskStore := postgres.NewTaskStore(pool)

	ctxsvc := service.NewContextService(contextLog, taskStore, snapshots, hub, cfg.Cache.StateTTL, log)

	decider := litellm.NewClient(cfg.LiteLLM.URL, cfg.LiteLLM.MasterKey, cfg.LiteLLM.Model)
	tools := toolregistry.NewInProcess()
	reasoner := service.NewReasonerService(decider, tools, cfg.Reasoner.MaxIterations, cfg.Reasoner.ToolTimeout, log)

	executor := service.NewExecutorService(ctxsvc, reasoner, taskStore, queue, metrics, log)
	orchestrator := service.NewOrchestratorService(executor, ctxsvc, taskStore)
	recovery := service.NewRecoveryService(taskStore, ctxsvc, queue, metrics, orchestrator, cfg.Recovery.MaxParallel, log)

	// Sweep tasks orphaned by the previous process before serving traffic.
	if recovered, err := recovery.Run(ctx); err != nil {
		slog.Error("startup recovery sweep failed", "error", err)
	} else if recovered > 0 {
		slog.Info("startup recovery sweep", "recovered", recovered)
	}
	stopSweep := recovery.Start(ctx, cfg.Recovery.Interval)
	defer stopSweep()

	// --- MCP ---
	if cfg.MCP.Enabled {
		mcpSrv := mcp.NewServer(cfg.MCP.Addr, ctxsvc, taskStore)
		go func() {
			if err := mcpSrv.Start(); err != nil {
				slog.Error("mcp server failed", "error", err)
			}
		}()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
	}

	// --- HTTP ---
	handlers := levhttp.NewHandlers(ctxsvc, executor, orchestrator, recovery, queue)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(levotel.HTTPMiddleware(cfg.Logging.Service))
	r.Use(chimw.Timeout(120 * time.Second))

	levhttp.MountRoutes(r, handlers, hub.HandleWS)

	addr := ":" + cfg.Server.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	<-done
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
