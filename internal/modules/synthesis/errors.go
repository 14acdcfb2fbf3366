package synthesis

import (
	"errors"
	"fmt"

	"github.com/aristath/synthbench/internal/quantum"
)

// Sentinel errors matched with errors.Is.
var (
	ErrInvalidPrecision      = errors.New("invalid precision")
	ErrConfigurationMismatch = errors.New("configuration mismatch")
	ErrSynthesisFailure      = errors.New("synthesis failure")
)

// InvalidPrecisionError reports a precision that is not a positive integer.
type InvalidPrecisionError struct {
	Precision int
}

func (e *InvalidPrecisionError) Error() string {
	return fmt.Sprintf("invalid precision %d: must be a positive integer", e.Precision)
}

func (e *InvalidPrecisionError) Is(target error) bool {
	return target == ErrInvalidPrecision
}

// ConfigurationMismatchError reports an alphabet bound to a different width
// than the circuit it would constrain.
type ConfigurationMismatchError struct {
	AlphabetQudits int
	CircuitQudits  int
}

func (e *ConfigurationMismatchError) Error() string {
	return fmt.Sprintf("configuration mismatch: alphabet has %d qudits, circuit has %d", e.AlphabetQudits, e.CircuitQudits)
}

func (e *ConfigurationMismatchError) Is(target error) bool {
	return target == ErrConfigurationMismatch
}

// SynthesisFailureError wraps an engine error with the branch and problem it
// happened on. Source is the unmodified input circuit, kept for diagnostics.
type SynthesisFailureError struct {
	Branch string
	Target string
	Source *quantum.Circuit
	Err    error
}

func (e *SynthesisFailureError) Error() string {
	if e.Source == nil {
		return fmt.Sprintf("%s synthesis of %s failed: %v", e.Branch, e.Target, e.Err)
	}
	return fmt.Sprintf("%s synthesis of %s (%d qudits) failed: %v", e.Branch, e.Target, e.Source.NumQudits(), e.Err)
}

// TargetUnitary returns the unitary the failed synthesis was approximating.
// ok is false when no source circuit was recorded.
func (e *SynthesisFailureError) TargetUnitary() (u quantum.UnitaryMatrix, ok bool) {
	if e.Source == nil {
		return quantum.UnitaryMatrix{}, false
	}
	return e.Source.RealizedUnitary(), true
}

func (e *SynthesisFailureError) Unwrap() error {
	return e.Err
}

func (e *SynthesisFailureError) Is(target error) bool {
	return target == ErrSynthesisFailure
}
