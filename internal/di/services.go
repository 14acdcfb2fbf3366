package di

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/engine"
	"github.com/aristath/synthbench/internal/events"
	"github.com/aristath/synthbench/internal/metrics"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/fidelity"
	"github.com/aristath/synthbench/internal/modules/persistence"
	"github.com/aristath/synthbench/internal/modules/synthesis"
)

// InitializeServices builds the synthesis pipeline and its reporters.
// The ledger, when present, must already be set on the container.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, opts Options, log zerolog.Logger) error {
	eng, err := engine.New(cfg.Engine.ToEngineConfig(), log)
	if err != nil {
		return fmt.Errorf("failed to create synthesis engine: %w", err)
	}
	container.Engine = eng
	container.Orchestrator = synthesis.NewOrchestrator(eng, log)
	container.Evaluator = fidelity.NewEvaluator()

	container.Persister = persistence.NewPersister(cfg.OutputDir, log)
	if cfg.S3.Enabled() {
		mirror, err := persistence.NewS3Mirror(ctx, cfg.S3.ToPersistenceConfig(), log)
		if err != nil {
			return fmt.Errorf("failed to create S3 artifact mirror: %w", err)
		}
		container.Mirror = mirror
		container.Persister.SetMirror(mirror)
		log.Info().Str("bucket", cfg.S3.Bucket).Msg("Artifact mirror enabled")
	}

	container.Recorder = benchmark.NewRecorder(nil, log)

	// Console output comes first so the summary is printed before anything
	// slower reacts to the same event
	var reporters benchmark.MultiReporter
	if opts.Console != nil {
		container.Console = benchmark.NewConsoleReporter(opts.Console)
		container.Console.Timing = opts.Timing
		container.Console.Table = opts.Table
		container.Console.Brief = opts.Brief
		reporters = append(reporters, container.Console)
	}
	reporters = append(reporters, benchmark.NewLogReporter(log))

	container.Registry = opts.Registry
	if container.Registry == nil {
		container.Registry = prometheus.NewRegistry()
	}
	container.Metrics = metrics.NewReporter(container.Registry)
	reporters = append(reporters, container.Metrics)

	if opts.Events {
		bus, err := events.NewBus(events.DefaultHistorySize, log)
		if err != nil {
			return err
		}
		container.Bus = bus
		reporters = append(reporters, events.NewProgressReporter(bus))
	}

	container.Runner = benchmark.NewRunner(
		container.Orchestrator,
		container.Evaluator,
		container.Persister,
		container.Recorder,
		reporters,
		log,
	)
	container.Runner.SetParallel(cfg.Parallel)
	if container.Ledger != nil {
		container.Runner.SetLedger(container.Ledger)
	}

	return nil
}
