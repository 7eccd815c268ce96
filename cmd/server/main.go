// Package main is the entry point for the underwriter HTTP service.
//
// The service exposes the deterministic underwriting core over HTTP:
// snapshots, policy evaluation, stress testing, pricing and memos, with
// every run recorded in an append-only audit trail that can be replayed.
//
// Two SQLite databases live under UNDERWRITER_DATA_DIR:
// - registry.db: metric registry versions (draft/published)
// - audit.db: immutable underwriting audit records
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/underwriter/internal/config"
	"github.com/aristath/underwriter/internal/di"
	"github.com/aristath/underwriter/internal/server"
	"github.com/aristath/underwriter/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{
			Level:  "info",
			Pretty: true,
		})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})

	log.Info().Str("data_dir", cfg.DataDir).Msg("Starting underwriter")

	container, jobs, err := di.Wire(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	defer container.Close()

	// Fail fast on a corrupt audit trail rather than appending to it
	if err := container.Scheduler.RunNow(jobs.CheckDatabases); err != nil {
		log.Fatal().Err(err).Msg("Database integrity check failed")
	}

	srv := server.New(container.ServerConfig(cfg, log))

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	container.Scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")
	container.Scheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
