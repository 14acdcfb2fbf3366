package engine

import (
	"github.com/aristath/synthbench/internal/quantum"
)

// ansatz is a parameterized circuit template: one u3 per qudit, followed by
// layers of cx(a, b) + u3(a) + u3(b).
type ansatz struct {
	numQudits int
	pairs     [][2]int
}

func (a ansatz) numParams() int {
	return 3*a.numQudits + 6*len(a.pairs)
}

func (a ansatz) extend(pair [2]int) ansatz {
	pairs := make([][2]int, len(a.pairs), len(a.pairs)+1)
	copy(pairs, a.pairs)
	return ansatz{numQudits: a.numQudits, pairs: append(pairs, pair)}
}

// unitary returns the row-major realized matrix for params.
func (a ansatz) unitary(params []float64) []complex128 {
	dim := 1 << a.numQudits
	data := make([]complex128, dim*dim)
	for i := 0; i < dim; i++ {
		data[i*dim+i] = 1
	}
	cx := quantum.CX.Matrix(nil)
	q1 := make([]int, 1)
	q2 := make([]int, 2)

	p := 0
	for q := 0; q < a.numQudits; q++ {
		q1[0] = q
		quantum.ApplyLocal(data, a.numQudits, quantum.U3.Matrix(params[p:p+3]), q1)
		p += 3
	}
	for _, pair := range a.pairs {
		q2[0], q2[1] = pair[0], pair[1]
		quantum.ApplyLocal(data, a.numQudits, cx, q2)
		for _, q := range pair {
			q1[0] = q
			quantum.ApplyLocal(data, a.numQudits, quantum.U3.Matrix(params[p:p+3]), q1)
			p += 3
		}
	}
	return data
}

// circuit materializes the template with concrete angles.
func (a ansatz) circuit(params []float64) (*quantum.Circuit, error) {
	c := quantum.NewCircuit(a.numQudits)
	p := 0
	for q := 0; q < a.numQudits; q++ {
		if err := c.Append(quantum.U3, []int{q}, params[p:p+3]...); err != nil {
			return nil, err
		}
		p += 3
	}
	for _, pair := range a.pairs {
		if err := c.Append(quantum.CX, []int{pair[0], pair[1]}); err != nil {
			return nil, err
		}
		for _, q := range pair {
			if err := c.Append(quantum.U3, []int{q}, params[p:p+3]...); err != nil {
				return nil, err
			}
			p += 3
		}
	}
	return c, nil
}

// candidatePairs lists every unordered qudit pair. The u3 layers absorb the
// direction of the cx, so (b, a) adds nothing over (a, b).
func candidatePairs(numQudits int) [][2]int {
	var pairs [][2]int
	for a := 0; a < numQudits; a++ {
		for b := a + 1; b < numQudits; b++ {
			pairs = append(pairs, [2]int{a, b})
		}
	}
	return pairs
}
