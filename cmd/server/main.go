package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/reactant-dev/reactant"
	"github.com/reactant-dev/reactant/internal/infrastructure/config"
	"github.com/reactant-dev/reactant/internal/infrastructure/logger"
)

func main() {
	var (
		port = flag.String("port", "", "Server port (overrides config)")
	)
	flag.Parse()

	cfg := config.Load()
	if *port != "" {
		cfg.Port = *port
	}

	log := logger.Setup(cfg.LogLevel)
	log.Info("starting reactant notebook server",
		"version", reactant.Version,
		"port", cfg.Port,
		"evaluator_request", cfg.Evaluator.RequestEndpoint,
		"evaluator_stream", cfg.Evaluator.StreamEndpoint,
	)

	ctx := context.Background()
	core, err := reactant.NewCore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to assemble core", "error", err)
		os.Exit(1)
	}
	if err := core.Start(); err != nil {
		log.Error("failed to start core", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      core.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", "address", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	log.Info("available endpoints",
		"health", "GET /health",
		"index", "GET /",
		"session", "GET /ws?notebook=<id>",
		"notebooks", "GET /api/v1/notebooks",
		"create_notebook", "POST /api/v1/notebooks",
		"reorder", "POST /reorder",
	)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	core.Shutdown()

	log.Info("server exited gracefully")
}
