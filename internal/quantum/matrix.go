// Package quantum provides the circuit and unitary-matrix model shared by the
// synthesis engine and the benchmark pipeline.
//
// Qudits are qubits (radix 2). Qudit 0 is the most significant bit of a basis
// index, so the basis state |q0 q1 ... q(n-1)> has index q0*2^(n-1) + ... + q(n-1).
package quantum

import (
	"errors"
	"fmt"
	"math"
	"math/bits"
	"math/cmplx"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/cblas128"
	"gonum.org/v1/gonum/mat"
)

// ErrDimensionMismatch is returned when two matrices of different size are combined.
var ErrDimensionMismatch = errors.New("matrix dimension mismatch")

// UnitaryMatrix is an immutable square complex matrix whose dimension is a power of two.
// Unitarity is a precondition, not something the constructor enforces.
type UnitaryMatrix struct {
	m   *mat.CDense
	dim int
}

// NewUnitaryMatrix builds a matrix from row-major data. The data slice is copied.
func NewUnitaryMatrix(dim int, data []complex128) (UnitaryMatrix, error) {
	if dim < 1 || bits.OnesCount(uint(dim)) != 1 {
		return UnitaryMatrix{}, fmt.Errorf("dimension %d is not a power of two", dim)
	}
	if len(data) != dim*dim {
		return UnitaryMatrix{}, fmt.Errorf("expected %d entries for a %dx%d matrix, got %d", dim*dim, dim, dim, len(data))
	}
	buf := make([]complex128, len(data))
	copy(buf, data)
	return UnitaryMatrix{m: mat.NewCDense(dim, dim, buf), dim: dim}, nil
}

// MustUnitaryMatrix is NewUnitaryMatrix for package-level tables and tests.
func MustUnitaryMatrix(dim int, data []complex128) UnitaryMatrix {
	u, err := NewUnitaryMatrix(dim, data)
	if err != nil {
		panic(err)
	}
	return u
}

// Identity returns the dim x dim identity.
func Identity(dim int) UnitaryMatrix {
	data := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		data[i*dim+i] = 1
	}
	return MustUnitaryMatrix(dim, data)
}

// Dim returns the number of rows (and columns).
func (u UnitaryMatrix) Dim() int {
	return u.dim
}

// NumQudits returns log2 of the dimension.
func (u UnitaryMatrix) NumQudits() int {
	if u.dim == 0 {
		return 0
	}
	return bits.TrailingZeros(uint(u.dim))
}

// At returns entry (i, j).
func (u UnitaryMatrix) At(i, j int) complex128 {
	return u.m.At(i, j)
}

// Data returns a row-major copy of the entries.
func (u UnitaryMatrix) Data() []complex128 {
	out := make([]complex128, 0, u.dim*u.dim)
	raw := u.m.RawCMatrix()
	for i := 0; i < u.dim; i++ {
		out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+u.dim]...)
	}
	return out
}

// Mul returns u·other.
func (u UnitaryMatrix) Mul(other UnitaryMatrix) (UnitaryMatrix, error) {
	if u.dim != other.dim {
		return UnitaryMatrix{}, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, u.dim, other.dim)
	}
	out := mat.NewCDense(u.dim, u.dim, nil)
	cblas128.Gemm(blas.NoTrans, blas.NoTrans, 1, u.m.RawCMatrix(), other.m.RawCMatrix(), 0, out.RawCMatrix())
	return UnitaryMatrix{m: out, dim: u.dim}, nil
}

// Dagger returns the conjugate transpose.
func (u UnitaryMatrix) Dagger() UnitaryMatrix {
	data := make([]complex128, u.dim*u.dim)
	for i := 0; i < u.dim; i++ {
		for j := 0; j < u.dim; j++ {
			data[j*u.dim+i] = cmplx.Conj(u.m.At(i, j))
		}
	}
	return UnitaryMatrix{m: mat.NewCDense(u.dim, u.dim, data), dim: u.dim}
}

// IsUnitary reports whether u·u† is the identity within tol (max-abs entry error).
func (u UnitaryMatrix) IsUnitary(tol float64) bool {
	if u.dim == 0 {
		return false
	}
	prod, err := u.Mul(u.Dagger())
	if err != nil {
		return false
	}
	for i := 0; i < u.dim; i++ {
		for j := 0; j < u.dim; j++ {
			want := complex(0, 0)
			if i == j {
				want = 1
			}
			if cmplx.Abs(prod.At(i, j)-want) > tol {
				return false
			}
		}
	}
	return true
}

// InnerProduct returns Tr(u†·other).
func (u UnitaryMatrix) InnerProduct(other UnitaryMatrix) (complex128, error) {
	if u.dim != other.dim {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, u.dim, other.dim)
	}
	var sum complex128
	a := u.m.RawCMatrix()
	b := other.m.RawCMatrix()
	for i := 0; i < u.dim; i++ {
		for j := 0; j < u.dim; j++ {
			sum += cmplx.Conj(a.Data[i*a.Stride+j]) * b.Data[i*b.Stride+j]
		}
	}
	return sum, nil
}

// DistanceFrom returns the global-phase-invariant Hilbert-Schmidt distance
// sqrt(1 - (|Tr(u†·other)|/N)^2). It is symmetric and zero for equal matrices.
func (u UnitaryMatrix) DistanceFrom(other UnitaryMatrix) (float64, error) {
	if u.dim != other.dim {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, u.dim, other.dim)
	}
	return DistanceFromInfidelity(Infidelity(u.Data(), other.Data(), u.dim)), nil
}

// Infidelity returns 1 - |Tr(a†·b)|/N for row-major N x N unitaries.
//
// It is evaluated as ||a - e^{iα}b||²/(2N) with the phase α that aligns b
// to a, which stays accurate far below the 1e-16 floor of subtracting the
// overlap from one.
func Infidelity(a, b []complex128, dim int) float64 {
	var tr complex128
	for i := range a {
		tr += cmplx.Conj(a[i]) * b[i]
	}
	mag := cmplx.Abs(tr)
	if mag == 0 {
		return 1
	}
	phase := cmplx.Conj(tr) / complex(mag, 0)

	var sum float64
	for i := range a {
		d := a[i] - phase*b[i]
		sum += real(d)*real(d) + imag(d)*imag(d)
	}
	c := sum / float64(2*dim)
	if c > 1 {
		return 1
	}
	return c
}

// DistanceFromInfidelity converts c = 1 - overlap into sqrt(1 - overlap²).
func DistanceFromInfidelity(c float64) float64 {
	d := c * (2 - c)
	if d <= 0 {
		return 0
	}
	return math.Sqrt(d)
}

// ApproxEqual compares entries with an absolute tolerance. Global phase matters here.
func (u UnitaryMatrix) ApproxEqual(other UnitaryMatrix, tol float64) bool {
	if u.dim != other.dim {
		return false
	}
	for i := 0; i < u.dim; i++ {
		for j := 0; j < u.dim; j++ {
			if cmplx.Abs(u.At(i, j)-other.At(i, j)) > tol {
				return false
			}
		}
	}
	return true
}
