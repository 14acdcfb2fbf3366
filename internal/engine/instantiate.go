package engine

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aristath/synthbench/internal/quantum"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// instantiation is the best parameter vector found for an ansatz.
type instantiation struct {
	params []float64
	cost   float64
}

// costThreshold converts a distance bound into the matching infidelity bound:
// d = sqrt(c(2-c)) <= eps  <=>  c <= 1 - sqrt(1-eps²).
func costThreshold(epsilon float64) float64 {
	if epsilon >= 1 {
		return 1
	}
	// 1 - sqrt(1-x) rewritten to avoid cancellation for small eps
	e2 := epsilon * epsilon
	return e2 / (1 + math.Sqrt(1-e2))
}

// instantiate fits the ansatz angles to target. The first restart starts from
// warm (padded with zeros) when given, the rest from uniform random angles.
// Restarts stop early once the cost reaches threshold.
func (e *Engine) instantiate(ctx context.Context, target []complex128, a ansatz, warm []float64, rng *rand.Rand, threshold float64) (instantiation, error) {
	n := a.numParams()
	dim := 1 << a.numQudits

	cost := func(x []float64) float64 {
		return quantum.Infidelity(target, a.unitary(x), dim)
	}
	problem := optimize.Problem{
		Func: cost,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, cost, x, &fd.Settings{Formula: fd.Central})
		},
		Status: func() (optimize.Status, error) {
			if err := ctx.Err(); err != nil {
				return optimize.Failure, err
			}
			return optimize.NotTerminated, nil
		},
	}

	best := instantiation{cost: math.Inf(1)}
	for r := 0; r < e.cfg.Restarts; r++ {
		if err := ctx.Err(); err != nil {
			return best, err
		}

		initial := make([]float64, n)
		if r == 0 && warm != nil {
			copy(initial, warm)
		} else {
			for i := range initial {
				initial[i] = rng.Float64() * 2 * math.Pi
			}
		}

		x, f, err := minimize(problem, initial)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return best, ctxErr
			}
			e.log.Debug().Err(err).Int("restart", r).Msg("Instantiation restart failed")
			continue
		}
		if f < best.cost {
			best = instantiation{params: x, cost: f}
		}
		if best.cost <= threshold {
			break
		}
	}

	if best.params == nil {
		return best, fmt.Errorf("all %d instantiation restarts failed", e.cfg.Restarts)
	}
	return best, nil
}

func minimizerSettings() *optimize.Settings {
	return &optimize.Settings{
		GradientThreshold: 1e-13,
		MajorIterations:   3000,
		Converger: &optimize.FunctionConverge{
			Absolute:   1e-17,
			Iterations: 20,
		},
	}
}

// minimize runs BFGS and falls back to Nelder-Mead, continuing from wherever
// BFGS stopped, when the line search gives up.
func minimize(problem optimize.Problem, initial []float64) ([]float64, float64, error) {
	result, err := optimize.Minimize(problem, initial, minimizerSettings(), &optimize.BFGS{})
	if err == nil {
		return result.X, result.F, nil
	}
	if result == nil {
		return nil, 0, fmt.Errorf("optimization failed: %w", err)
	}

	start := result.X
	if math.IsInf(result.F, 1) || math.IsNaN(result.F) {
		start = initial
	}
	fallback, fbErr := optimize.Minimize(problem, start, minimizerSettings(), &optimize.NelderMead{})
	if fallback == nil {
		return nil, 0, fmt.Errorf("optimization failed: %w", fbErr)
	}
	if problem.Status != nil {
		if _, statusErr := problem.Status(); statusErr != nil {
			return nil, 0, statusErr
		}
	}
	if fallback.F < result.F || math.IsInf(result.F, 1) {
		return fallback.X, fallback.F, nil
	}
	return result.X, result.F, nil
}
