// Package di wires the benchmark harness together for the CLIs and the API server.
package di

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aristath/synthbench/internal/database"
	"github.com/aristath/synthbench/internal/engine"
	"github.com/aristath/synthbench/internal/events"
	"github.com/aristath/synthbench/internal/metrics"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/fidelity"
	"github.com/aristath/synthbench/internal/modules/ledger"
	"github.com/aristath/synthbench/internal/modules/persistence"
	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/scheduler"
)

// Options selects the pieces an entry point needs
type Options struct {
	// Entry names the entry point recorded with every run
	Entry string
	// Console receives the human summary; nil disables it
	Console io.Writer
	// Timing prints per-branch synthesis times on the console
	Timing bool
	// Table renders a summary table on the console
	Table bool
	// Brief drops the gate-set and distance report from the console
	Brief bool
	// Events publishes run progress on an event bus
	Events bool
	// DefaultLedgerPath is used when the configuration names no ledger
	DefaultLedgerPath string
	// Registry receives the benchmark metrics; nil creates a private one
	Registry *prometheus.Registry
}

// Container holds all dependencies for an entry point.
// Optional pieces (ledger, bus, console) are nil when disabled.
type Container struct {
	// Run ledger
	LedgerDB *database.DB
	Ledger   *ledger.Repository

	// Synthesis pipeline
	Engine       *engine.Engine
	Orchestrator *synthesis.Orchestrator
	Evaluator    *fidelity.Evaluator
	Persister    *persistence.Persister
	Mirror       *persistence.S3Mirror
	Recorder     *benchmark.Recorder
	Runner       *benchmark.Runner

	// Reporting
	Console  *benchmark.ConsoleReporter
	Metrics  *metrics.Reporter
	Registry *prometheus.Registry
	Bus      *events.Bus
}

// JobInstances holds the registered background jobs
type JobInstances struct {
	Retention   *scheduler.RetentionJob
	LedgerCheck *scheduler.LedgerCheckJob
	Backup      *scheduler.LedgerBackupJob
}

// Close releases the ledger database, if any
func (c *Container) Close() error {
	if c.LedgerDB == nil {
		return nil
	}
	return c.LedgerDB.Close()
}
