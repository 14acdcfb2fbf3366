// Package fidelity scores synthesized circuits against their target unitary.
package fidelity

import (
	"errors"
	"fmt"
	"math"

	"github.com/aristath/synthbench/internal/quantum"
)

// ErrDimensionMismatch matches every *DimensionMismatchError.
var ErrDimensionMismatch = errors.New("dimension mismatch")

// DimensionMismatchError reports matrices of different size.
type DimensionMismatchError struct {
	Target   int
	Realized int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: target is %dx%d, realized is %dx%d", e.Target, e.Target, e.Realized, e.Realized)
}

func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch || target == quantum.ErrDimensionMismatch
}

// Evaluator computes the global-phase-invariant Hilbert-Schmidt distance
//
//	d(A, B) = sqrt(1 - (|Tr(A†B)| / N)²)
//
// which is 0 for equal unitaries (up to phase) and 1 for orthogonal ones.
type Evaluator struct{}

// NewEvaluator creates a new evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Evaluate returns d(target, realized). Callers always pass the original
// target, never another branch's result.
func (e *Evaluator) Evaluate(target, realized quantum.UnitaryMatrix) (float64, error) {
	if target.Dim() != realized.Dim() {
		return 0, &DimensionMismatchError{Target: target.Dim(), Realized: realized.Dim()}
	}
	d, err := target.DistanceFrom(realized)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(d) {
		return 0, fmt.Errorf("distance is not a number")
	}
	return d, nil
}

// EvaluateCircuit scores a circuit's realized unitary against target.
func (e *Evaluator) EvaluateCircuit(target quantum.UnitaryMatrix, c *quantum.Circuit) (float64, error) {
	if c == nil {
		return 0, fmt.Errorf("circuit is nil")
	}
	if 1<<c.NumQudits() != target.Dim() {
		return 0, &DimensionMismatchError{Target: target.Dim(), Realized: 1 << c.NumQudits()}
	}
	return e.Evaluate(target, c.RealizedUnitary())
}
