// Package synthesis drives a synthesis engine under the unconstrained and
// the fault-tolerant configuration.
package synthesis

import (
	"context"
	"fmt"

	"github.com/aristath/synthbench/internal/engine"
	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
)

// Engine is the synthesis collaborator the orchestrator drives.
type Engine interface {
	BuildFromUnitary(u quantum.UnitaryMatrix) *quantum.Circuit
	LoadFromFile(path string) (*quantum.Circuit, error)
	SynthesizeWithPrecision(ctx context.Context, c *quantum.Circuit, epsilon float64) (*quantum.Circuit, error)
	SynthesizeWithModel(ctx context.Context, c *quantum.Circuit, model engine.MachineModel) (*quantum.Circuit, error)
}

// Orchestrator dispatches a synthesis request to the engine according to its
// configuration.
type Orchestrator struct {
	engine Engine
	log    zerolog.Logger
}

// NewOrchestrator creates a new orchestrator.
func NewOrchestrator(e Engine, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		engine: e,
		log:    log.With().Str("component", "synthesis").Logger(),
	}
}

// Engine returns the underlying engine.
func (o *Orchestrator) Engine() Engine {
	return o.engine
}

// Synthesize runs one branch. The source circuit is cloned first, so callers
// may share it between branches. problem names the target in errors.
// Engine failures are returned as *SynthesisFailureError; nothing is retried.
func (o *Orchestrator) Synthesize(ctx context.Context, problem string, source *quantum.Circuit, cfg SynthesisConfig) (*quantum.Circuit, error) {
	if source == nil {
		return nil, fmt.Errorf("source circuit is nil")
	}
	c := source.Clone()

	var (
		out *quantum.Circuit
		err error
	)
	switch cfg := cfg.(type) {
	case PrecisionConfig:
		if cfg.Precision <= 0 || cfg.Epsilon <= 0 {
			return nil, &InvalidPrecisionError{Precision: cfg.Precision}
		}
		o.log.Debug().
			Str("problem", problem).
			Int("precision", cfg.Precision).
			Msg("Running unconstrained synthesis")
		out, err = o.engine.SynthesizeWithPrecision(ctx, c, cfg.Epsilon)
	case AlphabetConfig:
		if cfg.Alphabet.NumQudits() != c.NumQudits() {
			return nil, &ConfigurationMismatchError{
				AlphabetQudits: cfg.Alphabet.NumQudits(),
				CircuitQudits:  c.NumQudits(),
			}
		}
		o.log.Debug().
			Str("problem", problem).
			Str("alphabet", cfg.Alphabet.Name()).
			Msg("Running constrained synthesis")
		out, err = o.engine.SynthesizeWithModel(ctx, c, engine.MachineModel{
			NumQudits:          cfg.Alphabet.NumQudits(),
			GateSet:            cfg.Alphabet.Gates(),
			ApproximationDepth: cfg.ApproximationDepth,
		})
	default:
		return nil, fmt.Errorf("unsupported synthesis config %T", cfg)
	}

	if err != nil {
		o.log.Error().
			Err(err).
			Str("branch", cfg.Branch()).
			Str("problem", problem).
			Msg("Synthesis failed")
		return nil, &SynthesisFailureError{Branch: cfg.Branch(), Target: problem, Source: source, Err: err}
	}
	if out == nil {
		return nil, &SynthesisFailureError{Branch: cfg.Branch(), Target: problem, Source: source, Err: fmt.Errorf("engine returned no circuit")}
	}
	if alpha, ok := cfg.(AlphabetConfig); ok && !alpha.Alphabet.Covers(out.GateSet()) {
		return nil, &SynthesisFailureError{
			Branch: cfg.Branch(),
			Target: problem,
			Source: source,
			Err:    fmt.Errorf("result gate set %v is not within %s", out.GateSet(), alpha.Alphabet.Name()),
		}
	}
	return out, nil
}
