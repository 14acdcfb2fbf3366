package cliapp

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/di"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/synthesis"
)

// RunOptions are the per-invocation settings of a benchmark command
type RunOptions struct {
	Timeout     time.Duration
	Repeat      int
	Depth       int
	Timing      bool
	Table       bool
	Brief       bool
	MetricsFile string
	Stdout      io.Writer
}

// Run executes job against cfg: one run, or Repeat runs followed by a timing
// summary. The returned error decides the exit code.
func Run(ctx context.Context, cfg *config.Config, job Job, opts RunOptions, log zerolog.Logger) error {
	if opts.Repeat < 1 {
		return UsageError("--repeat must be at least 1, got %d", opts.Repeat)
	}
	if opts.Depth < 0 {
		return UsageError("--ft_depth must not be negative, got %d", opts.Depth)
	}
	// Fail before loading anything
	if _, err := synthesis.NewPrecisionConfig(job.Precision); err != nil {
		return err
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	container, err := di.Wire(ctx, cfg, di.Options{
		Entry:   job.Entry,
		Console: opts.Stdout,
		Timing:  opts.Timing,
		Table:   opts.Table,
		Brief:   opts.Brief,
	}, log)
	if err != nil {
		return err
	}
	defer container.Close()
	defer writeMetrics(opts.MetricsFile, container.Registry, log)

	problem, err := job.Problem(container)
	if err != nil {
		return err
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	req := benchmark.Request{
		Entry:              job.Entry,
		Problem:            problem,
		Precision:          job.Precision,
		ApproximationDepth: opts.Depth,
	}

	if opts.Repeat == 1 {
		_, err := container.Runner.Run(ctx, req)
		return err
	}

	runs, err := container.Runner.RunRepeated(ctx, req, opts.Repeat)
	if len(runs) > 0 {
		fmt.Fprintf(opts.Stdout, "\nTiming over %d runs:\n", len(runs))
		container.Console.ReportStats(benchmark.Summarize(runs))
	}
	return err
}
