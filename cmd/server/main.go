// Package main is the entry point for the synthbench API server. It accepts
// benchmark runs over HTTP, streams their progress over websockets, keeps a
// ledger of finished runs and prunes it on a schedule.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/di"
	"github.com/aristath/synthbench/internal/scheduler"
	"github.com/aristath/synthbench/internal/server"
	"github.com/aristath/synthbench/pkg/logger"
)

// defaultLedgerPath keeps a ledger even when SYNTHBENCH_LEDGER_PATH is unset,
// since the API reads runs back from it.
const defaultLedgerPath = "data/synthbench.db"

func main() {
	// Load configuration first to get log level
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
		Pretty: cfg.LogPretty,
		File:   cfg.LogFile,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting synthbench server")

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// Wire all dependencies using DI container
	container, err := di.Wire(context.Background(), cfg, di.Options{
		Entry:             "api",
		Events:            true,
		DefaultLedgerPath: defaultLedgerPath,
		Registry:          registry,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to wire dependencies")
	}
	// Closing the ledger writes its WAL checkpoint
	defer container.Close()

	registry.MustRegister(collectors.NewDBStatsCollector(container.LedgerDB.Conn(), "runs"))

	sched := scheduler.New(log)
	jobs, err := di.RegisterJobs(container, cfg, sched, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to register jobs")
	}
	sched.Start()

	srvCfg := server.Config{
		Log:                log,
		DB:                 container.LedgerDB,
		Store:              container.Ledger,
		Runner:             container.Runner,
		Builder:            container.Engine,
		Bus:                container.Bus,
		Gatherer:           registry,
		ApproximationDepth: cfg.Engine.ApproximationDepth,
		LogFile:            cfg.LogFile,
		Port:               cfg.Port,
		DevMode:            cfg.DevMode,
	}
	if jobs.Retention != nil {
		srvCfg.Jobs = append(srvCfg.Jobs, jobs.Retention)
	}
	if jobs.LedgerCheck != nil {
		srvCfg.Jobs = append(srvCfg.Jobs, jobs.LedgerCheck)
	}
	if jobs.Backup != nil {
		srvCfg.Jobs = append(srvCfg.Jobs, jobs.Backup)
	}
	srv := server.New(srvCfg)

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// In-flight runs are cancelled and given until the deadline to record
	// their results
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	sched.Stop()
	log.Info().Msg("Server stopped")
}
