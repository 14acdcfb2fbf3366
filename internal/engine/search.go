package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aristath/synthbench/internal/quantum"
)

// search grows the ansatz one entangling layer at a time until the
// instantiated circuit is within epsilon of target. At each depth every
// qudit pair is tried and the best-fitting extension is kept.
func (e *Engine) search(ctx context.Context, target quantum.UnitaryMatrix, epsilon float64) (*quantum.Circuit, error) {
	n := target.NumQudits()
	data := target.Data()
	threshold := costThreshold(epsilon)
	rng := rand.New(rand.NewPCG(e.cfg.Seed, e.cfg.Seed^0x9e3779b97f4a7c15))
	pairs := candidatePairs(n)

	current := ansatz{numQudits: n}
	fit, err := e.instantiate(ctx, data, current, nil, rng, threshold)
	if err != nil {
		return nil, err
	}

	for depth := 0; ; depth++ {
		distance := quantum.DistanceFromInfidelity(fit.cost)
		e.log.Debug().
			Int("layers", depth).
			Float64("distance", distance).
			Msg("Instantiated ansatz")

		if fit.cost <= threshold {
			c, err := current.circuit(fit.params)
			if err != nil {
				return nil, fmt.Errorf("failed to build circuit: %w", err)
			}
			verified, err := target.DistanceFrom(c.RealizedUnitary())
			if err != nil {
				return nil, err
			}
			if verified <= epsilon {
				e.log.Info().
					Int("layers", depth).
					Int("cx", len(current.pairs)).
					Float64("distance", verified).
					Msg("Synthesis converged")
				return c, nil
			}
		}

		if depth >= e.cfg.MaxLayers || len(pairs) == 0 {
			return nil, fmt.Errorf("%w: best distance %.3g after %d layers", ErrNoConvergence, distance, depth)
		}

		next := current
		nextFit := instantiation{cost: math.Inf(1)}
		for _, pair := range pairs {
			candidate := current.extend(pair)
			f, err := e.instantiate(ctx, data, candidate, fit.params, rng, threshold)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				e.log.Debug().Err(err).Ints("pair", pair[:]).Msg("Candidate layer failed")
				continue
			}
			if f.cost < nextFit.cost {
				next, nextFit = candidate, f
			}
			if nextFit.cost <= threshold {
				break
			}
		}
		if nextFit.params == nil {
			return nil, fmt.Errorf("%w: no candidate layer could be instantiated at depth %d", ErrNoConvergence, depth+1)
		}
		current, fit = next, nextFit
	}
}
