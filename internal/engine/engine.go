// Package engine synthesizes circuits from unitaries.
//
// Unconstrained synthesis grows a layered u3/cx ansatz and fits its angles
// with gonum's optimizers. Constrained synthesis runs the unconstrained search
// first and then compiles every single-qudit block into a Clifford+T word with
// the Solovay-Kitaev algorithm.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
)

// ErrNoConvergence is returned when the search exhausts its layer budget
// without reaching the requested precision.
var ErrNoConvergence = errors.New("synthesis did not converge")

// innerEpsilon is the precision of the unconstrained pass that precedes
// Clifford+T compilation. The compilation error dominates well above it.
const innerEpsilon = 1e-6

// Config tunes the search.
type Config struct {
	Seed               uint64
	MaxLayers          int
	Restarts           int
	ApproximationDepth int
	CacheSize          int
}

// DefaultConfig returns the settings used when a field is left at zero.
func DefaultConfig() Config {
	return Config{
		Seed:               1,
		MaxLayers:          12,
		Restarts:           6,
		ApproximationDepth: 2,
		CacheSize:          4096,
	}
}

// MachineModel restricts constrained synthesis to a gate set.
type MachineModel struct {
	NumQudits int
	GateSet   []string
	// ApproximationDepth overrides Config.ApproximationDepth when positive.
	ApproximationDepth int
}

// Engine implements circuit loading and both synthesis modes. It is safe for
// concurrent use; each call derives its own random stream from the seed.
type Engine struct {
	cfg    Config
	approx *approximator
	log    zerolog.Logger
}

// New creates an engine. Zero-valued config fields take their defaults.
func New(cfg Config, log zerolog.Logger) (*Engine, error) {
	def := DefaultConfig()
	if cfg.MaxLayers <= 0 {
		cfg.MaxLayers = def.MaxLayers
	}
	if cfg.Restarts <= 0 {
		cfg.Restarts = def.Restarts
	}
	if cfg.ApproximationDepth <= 0 {
		cfg.ApproximationDepth = def.ApproximationDepth
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}

	approx, err := newApproximator(cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create approximation cache: %w", err)
	}

	return &Engine{
		cfg:    cfg,
		approx: approx,
		log:    log.With().Str("component", "engine").Logger(),
	}, nil
}

// BuildFromUnitary wraps a target matrix as a single opaque operation.
func (e *Engine) BuildFromUnitary(u quantum.UnitaryMatrix) *quantum.Circuit {
	return quantum.FromUnitary(u)
}

// LoadFromFile parses an OpenQASM 2.0 file.
func (e *Engine) LoadFromFile(path string) (*quantum.Circuit, error) {
	return quantum.LoadFromFile(path)
}

// SynthesizeWithPrecision returns a u3/cx circuit whose realized unitary is
// within epsilon of the input circuit's.
func (e *Engine) SynthesizeWithPrecision(ctx context.Context, c *quantum.Circuit, epsilon float64) (*quantum.Circuit, error) {
	if epsilon <= 0 {
		return nil, fmt.Errorf("epsilon must be positive, got %g", epsilon)
	}
	if c.NumQudits() == 0 {
		return quantum.NewCircuit(0), nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	target := c.RealizedUnitary()
	e.log.Debug().
		Int("qudits", c.NumQudits()).
		Float64("epsilon", epsilon).
		Msg("Starting unconstrained synthesis")
	return e.search(ctx, target, epsilon)
}

// SynthesizeWithModel returns a circuit that uses only the model's gates. The
// model must include h, t and tdg, plus cx for more than one qudit.
func (e *Engine) SynthesizeWithModel(ctx context.Context, c *quantum.Circuit, model MachineModel) (*quantum.Circuit, error) {
	n := c.NumQudits()
	if model.NumQudits != n {
		return nil, fmt.Errorf("machine model has %d qudits, circuit has %d", model.NumQudits, n)
	}
	allowed := make(map[string]bool, len(model.GateSet))
	for _, g := range model.GateSet {
		allowed[g] = true
	}
	required := []string{"h", "t", "tdg"}
	if n > 1 {
		required = append(required, "cx")
	}
	for _, g := range required {
		if !allowed[g] {
			return nil, fmt.Errorf("machine model gate set %v lacks %q", model.GateSet, g)
		}
	}

	depth := model.ApproximationDepth
	if depth <= 0 {
		depth = e.cfg.ApproximationDepth
	}

	inner, err := e.SynthesizeWithPrecision(ctx, c, innerEpsilon)
	if err != nil {
		return nil, fmt.Errorf("failed unconstrained pass: %w", err)
	}

	out, err := e.compileCliffordT(ctx, inner, depth, allowed)
	if err != nil {
		return nil, err
	}

	for _, g := range out.GateSet() {
		if !allowed[g] {
			return nil, fmt.Errorf("compiled circuit uses %q outside the machine model", g)
		}
	}
	e.log.Info().
		Int("gates", out.NumOperations()).
		Strs("gate_set", out.GateSet()).
		Int("depth", depth).
		Msg("Clifford+T compilation finished")
	return out, nil
}

// compileCliffordT merges runs of single-qudit gates per qudit, replaces each
// run with an approximating word and keeps two-qudit gates as they are.
func (e *Engine) compileCliffordT(ctx context.Context, inner *quantum.Circuit, depth int, allowed map[string]bool) (*quantum.Circuit, error) {
	n := inner.NumQudits()
	out := quantum.NewCircuit(n)
	pending := make([]*su2, n)

	flush := func(q int) error {
		if pending[q] == nil {
			return nil
		}
		u := *pending[q]
		pending[q] = nil
		if u.distance(identity2) < 1e-7 {
			return nil
		}
		w := simplify(e.approx.approximate(u, depth), allowed)
		for _, name := range w {
			gate, ok := quantum.LookupGate(name)
			if !ok {
				return fmt.Errorf("unknown gate %q in approximation", name)
			}
			if err := out.Append(gate, []int{q}); err != nil {
				return err
			}
		}
		return nil
	}

	for _, op := range inner.Operations() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(op.Qudits) == 1 {
			local := op.LocalMatrix()
			m := su2{local[0], local[1], local[2], local[3]}
			q := op.Qudits[0]
			if pending[q] != nil {
				m = m.mul(*pending[q])
			}
			pending[q] = &m
			continue
		}

		if !allowed[op.Gate.Name] {
			return nil, fmt.Errorf("two-qudit gate %q is not in the machine model", op.Gate.Name)
		}
		for _, q := range op.Qudits {
			if err := flush(q); err != nil {
				return nil, err
			}
		}
		if err := out.Append(op.Gate, op.Qudits, op.Params...); err != nil {
			return nil, err
		}
	}
	for q := 0; q < n; q++ {
		if err := flush(q); err != nil {
			return nil, err
		}
	}
	return cancelAdjacentPairs(out), nil
}

// cancelAdjacentPairs removes consecutive identical self-inverse two-qudit
// gates that no other operation separates.
func cancelAdjacentPairs(c *quantum.Circuit) *quantum.Circuit {
	ops := c.Operations()
	keep := make([]bool, len(ops))
	last := make(map[int]int) // qudit -> index of last kept op
	for i, op := range ops {
		keep[i] = true
		if len(op.Qudits) == 2 && (op.Gate.Name == "cx" || op.Gate.Name == "cz" || op.Gate.Name == "swap") {
			j, ok0 := last[op.Qudits[0]]
			k, ok1 := last[op.Qudits[1]]
			if ok0 && ok1 && j == k && keep[j] && sameOperation(ops[j], op) {
				keep[i], keep[j] = false, false
				delete(last, op.Qudits[0])
				delete(last, op.Qudits[1])
				continue
			}
		}
		for _, q := range op.Qudits {
			last[q] = i
		}
	}

	out := quantum.NewCircuit(c.NumQudits())
	for i, op := range ops {
		if keep[i] {
			// ops came from a valid circuit of the same width
			_ = out.Append(op.Gate, op.Qudits, op.Params...)
		}
	}
	return out
}

func sameOperation(a, b quantum.Operation) bool {
	if a.Gate.Name != b.Gate.Name || len(a.Qudits) != len(b.Qudits) {
		return false
	}
	for i := range a.Qudits {
		if a.Qudits[i] != b.Qudits[i] {
			return false
		}
	}
	return true
}
