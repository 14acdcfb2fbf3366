package quantum

import (
	"math"
	"math/cmplx"
)

// Gate describes an elementary operation. Gates are immutable values; the
// package-level gate variables are shared by every circuit.
type Gate struct {
	Name      string
	NumQudits int
	NumParams int
	matrix    func(params []float64) []complex128
}

// Matrix returns the row-major local unitary of the gate for the given parameters.
func (g Gate) Matrix(params []float64) []complex128 {
	if g.matrix == nil {
		return nil
	}
	return g.matrix(params)
}

// IsParameterized reports whether the gate takes angles.
func (g Gate) IsParameterized() bool {
	return g.NumParams > 0
}

func fixed(data ...complex128) func([]float64) []complex128 {
	return func([]float64) []complex128 {
		out := make([]complex128, len(data))
		copy(out, data)
		return out
	}
}

func expi(theta float64) complex128 {
	return cmplx.Exp(complex(0, theta))
}

var invSqrt2 = complex(1/math.Sqrt2, 0)

// Gate catalogue. Names match the OpenQASM 2.0 qelib1.inc identifiers.
var (
	H   = Gate{Name: "h", NumQudits: 1, matrix: fixed(invSqrt2, invSqrt2, invSqrt2, -invSqrt2)}
	X   = Gate{Name: "x", NumQudits: 1, matrix: fixed(0, 1, 1, 0)}
	Y   = Gate{Name: "y", NumQudits: 1, matrix: fixed(0, -1i, 1i, 0)}
	Z   = Gate{Name: "z", NumQudits: 1, matrix: fixed(1, 0, 0, -1)}
	S   = Gate{Name: "s", NumQudits: 1, matrix: fixed(1, 0, 0, 1i)}
	Sdg = Gate{Name: "sdg", NumQudits: 1, matrix: fixed(1, 0, 0, -1i)}
	T   = Gate{Name: "t", NumQudits: 1, matrix: fixed(1, 0, 0, expi(math.Pi/4))}
	Tdg = Gate{Name: "tdg", NumQudits: 1, matrix: fixed(1, 0, 0, expi(-math.Pi/4))}

	CX   = Gate{Name: "cx", NumQudits: 2, matrix: fixed(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0)}
	CZ   = Gate{Name: "cz", NumQudits: 2, matrix: fixed(1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, -1)}
	Swap = Gate{Name: "swap", NumQudits: 2, matrix: fixed(1, 0, 0, 0, 0, 0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 1)}

	U3 = Gate{Name: "u3", NumQudits: 1, NumParams: 3, matrix: u3Matrix}
	U2 = Gate{Name: "u2", NumQudits: 1, NumParams: 2, matrix: func(p []float64) []complex128 {
		return u3Matrix([]float64{math.Pi / 2, p[0], p[1]})
	}}
	U1 = Gate{Name: "u1", NumQudits: 1, NumParams: 1, matrix: phaseMatrix}
	P  = Gate{Name: "p", NumQudits: 1, NumParams: 1, matrix: phaseMatrix}
	RX = Gate{Name: "rx", NumQudits: 1, NumParams: 1, matrix: func(p []float64) []complex128 {
		c, s := complex(math.Cos(p[0]/2), 0), complex(0, -math.Sin(p[0]/2))
		return []complex128{c, s, s, c}
	}}
	RY = Gate{Name: "ry", NumQudits: 1, NumParams: 1, matrix: func(p []float64) []complex128 {
		c, s := complex(math.Cos(p[0]/2), 0), complex(math.Sin(p[0]/2), 0)
		return []complex128{c, -s, s, c}
	}}
	RZ = Gate{Name: "rz", NumQudits: 1, NumParams: 1, matrix: func(p []float64) []complex128 {
		return []complex128{expi(-p[0] / 2), 0, 0, expi(p[0] / 2)}
	}}

	// UnitaryGate is the opaque placeholder produced by FromUnitary; its matrix
	// travels with the operation.
	UnitaryGate = Gate{Name: "unitary"}
)

func u3Matrix(p []float64) []complex128 {
	theta, phi, lambda := p[0], p[1], p[2]
	c, s := math.Cos(theta/2), math.Sin(theta/2)
	return []complex128{
		complex(c, 0), -expi(lambda) * complex(s, 0),
		expi(phi) * complex(s, 0), expi(phi+lambda) * complex(c, 0),
	}
}

func phaseMatrix(p []float64) []complex128 {
	return []complex128{1, 0, 0, expi(p[0])}
}

var gateRegistry = map[string]Gate{}

func init() {
	for _, g := range []Gate{H, X, Y, Z, S, Sdg, T, Tdg, CX, CZ, Swap, U3, U2, U1, P, RX, RY, RZ} {
		gateRegistry[g.Name] = g
	}
	// qelib1.inc aliases
	gateRegistry["u"] = U3
	gateRegistry["cnot"] = CX
}

// LookupGate resolves an OpenQASM gate identifier.
func LookupGate(name string) (Gate, bool) {
	g, ok := gateRegistry[name]
	return g, ok
}

// controlled builds the gate that applies base when every control qudit is |1>.
// Controls come first in the qudit list.
func controlled(name string, base Gate, controls int) Gate {
	return Gate{
		Name:      name,
		NumQudits: base.NumQudits + controls,
		NumParams: base.NumParams,
		matrix: func(p []float64) []complex128 {
			bm := base.Matrix(p)
			bd := 1 << base.NumQudits
			d := bd << controls
			out := make([]complex128, d*d)
			for i := 0; i < d-bd; i++ {
				out[i*d+i] = 1
			}
			off := d - bd
			for r := 0; r < bd; r++ {
				for c := 0; c < bd; c++ {
					out[(off+r)*d+off+c] = bm[r*bd+c]
				}
			}
			return out
		},
	}
}

// Controlled gates from qelib1.inc.
var (
	CY    = controlled("cy", Y, 1)
	CH    = controlled("ch", H, 1)
	CRX   = controlled("crx", RX, 1)
	CRY   = controlled("cry", RY, 1)
	CRZ   = controlled("crz", RZ, 1)
	CU1   = controlled("cu1", U1, 1)
	CP    = controlled("cp", P, 1)
	CU3   = controlled("cu3", U3, 1)
	CCX   = controlled("ccx", X, 2)
	CSwap = controlled("cswap", Swap, 1)
	RZZ   = Gate{Name: "rzz", NumQudits: 2, NumParams: 1, matrix: func(p []float64) []complex128 {
		a, b := expi(-p[0]/2), expi(p[0]/2)
		return []complex128{a, 0, 0, 0, 0, b, 0, 0, 0, 0, b, 0, 0, 0, 0, a}
	}}
)

func init() {
	for _, g := range []Gate{CY, CH, CRX, CRY, CRZ, CU1, CP, CU3, CCX, CSwap, RZZ} {
		gateRegistry[g.Name] = g
	}
}
