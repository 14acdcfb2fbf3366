package benchmark

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/modules/target"
	"github.com/aristath/synthbench/internal/quantum"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Synthesizer runs one synthesis branch.
type Synthesizer interface {
	Synthesize(ctx context.Context, problem string, source *quantum.Circuit, cfg synthesis.SynthesisConfig) (*quantum.Circuit, error)
}

// Scorer measures how far a circuit is from its target.
type Scorer interface {
	EvaluateCircuit(target quantum.UnitaryMatrix, c *quantum.Circuit) (float64, error)
}

// Saver persists a synthesized circuit and returns where it went.
type Saver interface {
	Save(ctx context.Context, c *quantum.Circuit, label, problem string, precision int) (string, error)
}

// Ledger records finished runs.
type Ledger interface {
	RecordRun(ctx context.Context, run *RunResult) error
}

// Request describes one benchmark run.
type Request struct {
	// ID names the run; empty generates a random one.
	ID string
	// Entry names the entry point that started the run (qftbench, qasmbench, api).
	Entry     string
	Problem   *target.Problem
	Precision int
	// ApproximationDepth overrides the Clifford+T recursion depth when positive.
	ApproximationDepth int
}

// Runner executes both synthesis branches of a request, scores each result
// against the original target and persists it.
type Runner struct {
	synth    Synthesizer
	scorer   Scorer
	saver    Saver
	recorder *Recorder
	reporter Reporter
	ledger   Ledger
	parallel bool
	log      zerolog.Logger

	mu sync.Mutex // serializes reporter calls and branch writes
}

// NewRunner creates a runner. A nil reporter discards progress.
func NewRunner(synth Synthesizer, scorer Scorer, saver Saver, recorder *Recorder, reporter Reporter, log zerolog.Logger) *Runner {
	if reporter == nil {
		reporter = NopReporter{}
	}
	return &Runner{
		synth:    synth,
		scorer:   scorer,
		saver:    saver,
		recorder: recorder,
		reporter: reporter,
		log:      log.With().Str("component", "runner").Logger(),
	}
}

// SetParallel runs the two branches concurrently when enabled.
func (r *Runner) SetParallel(parallel bool) {
	r.parallel = parallel
}

// SetLedger records every finished run in l.
func (r *Runner) SetLedger(l Ledger) {
	r.ledger = l
}

// Run validates the request, runs both branches and returns the aggregated
// result. Validation errors return a nil result before any synthesis starts.
// A failed branch never suppresses the other: the result always carries both
// branches and the returned error joins their failures.
func (r *Runner) Run(ctx context.Context, req Request) (*RunResult, error) {
	if req.Problem == nil || req.Problem.Circuit == nil {
		return nil, fmt.Errorf("problem has no source circuit")
	}
	source := req.Problem.Circuit

	precisionCfg, err := synthesis.NewPrecisionConfig(req.Precision)
	if err != nil {
		return nil, err
	}
	alphabetCfg, err := synthesis.NewAlphabetConfig(synthesis.FaultTolerantAlphabet(source.NumQudits()), source)
	if err != nil {
		return nil, err
	}
	if req.ApproximationDepth > 0 {
		alphabetCfg.ApproximationDepth = req.ApproximationDepth
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	run := &RunResult{
		ID:        id,
		Entry:     req.Entry,
		Problem:   req.Problem.Name,
		Display:   displayName(req.Problem),
		Precision: req.Precision,
		NumQudits: source.NumQudits(),
		StartedAt: time.Now().UTC(),
	}
	configs := []synthesis.SynthesisConfig{precisionCfg, alphabetCfg}
	run.Branches = make([]BranchResult, len(configs))
	for i, cfg := range configs {
		run.Branches[i] = BranchResult{Label: cfg.Branch()}
	}

	r.mu.Lock()
	r.reporter.RunStarted(run)
	r.mu.Unlock()

	finish := func(i int, res BranchResult) {
		r.mu.Lock()
		defer r.mu.Unlock()
		run.Branches[i] = res
		r.reporter.BranchFinished(run, res)
	}

	if r.parallel {
		var g errgroup.Group
		g.SetLimit(len(configs))
		for i, cfg := range configs {
			g.Go(func() error {
				finish(i, r.runBranch(ctx, req, cfg))
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, cfg := range configs {
			finish(i, r.runBranch(ctx, req, cfg))
		}
	}

	r.mu.Lock()
	r.reporter.RunFinished(run)
	r.mu.Unlock()

	if r.ledger != nil {
		if err := r.ledger.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			r.log.Error().Err(err).Str("run_id", run.ID).Msg("Failed to record run")
		}
	}

	return run, run.Err()
}

// RunRepeated runs the request times times and returns every result. It stops
// early only on validation errors or cancellation.
func (r *Runner) RunRepeated(ctx context.Context, req Request, times int) ([]*RunResult, error) {
	if times <= 0 {
		return nil, fmt.Errorf("repeat count must be positive, got %d", times)
	}
	req.ID = "" // every repetition is its own run
	runs := make([]*RunResult, 0, times)
	var errs []error
	for i := 0; i < times; i++ {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		run, err := r.Run(ctx, req)
		if run == nil {
			return runs, err
		}
		runs = append(runs, run)
		if err != nil {
			errs = append(errs, fmt.Errorf("run %d: %w", i+1, err))
		}
	}
	return runs, errors.Join(errs...)
}

func (r *Runner) runBranch(ctx context.Context, req Request, cfg synthesis.SynthesisConfig) BranchResult {
	label := cfg.Branch()
	res := BranchResult{Label: label}

	var out *quantum.Circuit
	elapsed, err := r.recorder.Measure(label+" synthesis", func() error {
		var err error
		out, err = r.synth.Synthesize(ctx, req.Problem.Name, req.Problem.Circuit, cfg)
		return err
	})
	res.Elapsed = elapsed
	if err != nil {
		res.Err = err
		return res
	}

	res.Circuit = out
	res.GateSet = out.GateSet()
	res.GateCount = out.NumOperations()

	d, err := r.scorer.EvaluateCircuit(req.Problem.Target, out)
	if err != nil {
		res.Err = fmt.Errorf("failed to score %s circuit: %w", label, err)
		return res
	}
	res.Distance = d

	path, err := r.saver.Save(ctx, out, label, req.Problem.Name, req.Precision)
	if err != nil {
		res.Err = err
		return res
	}
	res.ArtifactPath = path
	return res
}

func displayName(p *target.Problem) string {
	if p.Name == target.QFTName {
		return fmt.Sprintf("QFT(num_qubits=%d)", p.Circuit.NumQudits())
	}
	return p.Name
}
