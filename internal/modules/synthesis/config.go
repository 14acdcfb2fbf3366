package synthesis

import (
	"math"

	"github.com/aristath/synthbench/internal/quantum"
)

// Branch labels. They prefix artifact names and summary lines.
const (
	BranchRegular        = "reg"
	BranchFaultTolerant  = "ft"
	DefaultApproximation = 2
)

// SynthesisConfig selects how a circuit is synthesized. It is either a
// PrecisionConfig or an AlphabetConfig, never both.
type SynthesisConfig interface {
	// Branch returns the label of the synthesis strategy.
	Branch() string
	isSynthesisConfig()
}

// PrecisionConfig requests unconstrained synthesis to within Epsilon.
type PrecisionConfig struct {
	Precision int
	Epsilon   float64
}

// NewPrecisionConfig validates precision and derives ε = 10^-precision.
func NewPrecisionConfig(precision int) (PrecisionConfig, error) {
	if precision <= 0 {
		return PrecisionConfig{}, &InvalidPrecisionError{Precision: precision}
	}
	return PrecisionConfig{Precision: precision, Epsilon: math.Pow(10, -float64(precision))}, nil
}

func (PrecisionConfig) Branch() string     { return BranchRegular }
func (PrecisionConfig) isSynthesisConfig() {}

// AlphabetConfig requests synthesis restricted to an alphabet.
type AlphabetConfig struct {
	Alphabet GateAlphabet
	// ApproximationDepth is the recursion depth used to compile single-qudit
	// gates into the alphabet.
	ApproximationDepth int
}

// NewAlphabetConfig binds an alphabet to the circuit it will constrain. The
// alphabet's qudit count must equal the circuit's.
func NewAlphabetConfig(alphabet GateAlphabet, source *quantum.Circuit) (AlphabetConfig, error) {
	if alphabet.NumQudits() != source.NumQudits() {
		return AlphabetConfig{}, &ConfigurationMismatchError{
			AlphabetQudits: alphabet.NumQudits(),
			CircuitQudits:  source.NumQudits(),
		}
	}
	return AlphabetConfig{Alphabet: alphabet, ApproximationDepth: DefaultApproximation}, nil
}

func (AlphabetConfig) Branch() string     { return BranchFaultTolerant }
func (AlphabetConfig) isSynthesisConfig() {}
