// Package target builds the unitaries that the benchmark synthesizes.
package target

import (
	"math"
	"math/cmplx"
	"path/filepath"
	"strings"

	"github.com/aristath/synthbench/internal/quantum"
)

// QFT returns the n-qudit quantum Fourier transform: entry (x, y) is
// ω^(x·y)/√N with ω = e^(2πi/N) and N = 2^n. n = 0 yields the 1x1 identity.
//
// The exponent is reduced modulo N before it reaches the exponential so that
// large products do not lose precision.
func QFT(n int) (quantum.UnitaryMatrix, error) {
	if err := quantum.CheckWidth(n); err != nil {
		return quantum.UnitaryMatrix{}, err
	}

	dim := 1 << n
	norm := complex(1/math.Sqrt(float64(dim)), 0)
	data := make([]complex128, dim*dim)
	for x := 0; x < dim; x++ {
		for y := 0; y < dim; y++ {
			k := (x * y) % dim
			angle := 2 * math.Pi * float64(k) / float64(dim)
			data[x*dim+y] = cmplx.Exp(complex(0, angle)) * norm
		}
	}
	return quantum.NewUnitaryMatrix(dim, data)
}

// Loader reads a circuit description from disk.
type Loader interface {
	LoadFromFile(path string) (*quantum.Circuit, error)
}

// Problem is a named synthesis input: the source circuit and the unitary it
// realizes, which both branches are scored against.
type Problem struct {
	Name    string
	Circuit *quantum.Circuit
	Target  quantum.UnitaryMatrix
}

// QFTName is the problem name used for generated Fourier transforms.
const QFTName = "qft"

// Builder wraps a target matrix as a circuit.
type Builder interface {
	BuildFromUnitary(u quantum.UnitaryMatrix) *quantum.Circuit
}

// NewQFTProblem builds the Fourier-transform problem on n qudits.
func NewQFTProblem(b Builder, n int) (*Problem, error) {
	u, err := QFT(n)
	if err != nil {
		return nil, err
	}
	return &Problem{Name: QFTName, Circuit: b.BuildFromUnitary(u), Target: u}, nil
}

// FromFile loads a circuit file and uses its realized unitary as the target.
func FromFile(l Loader, path string) (*Problem, error) {
	c, err := l.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	return &Problem{Name: NameFromPath(path), Circuit: c, Target: c.RealizedUnitary()}, nil
}

// NameFromPath returns the file's base name with its extension stripped.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
