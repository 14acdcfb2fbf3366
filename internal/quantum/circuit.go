package quantum

import (
	"fmt"
	"sort"
)

// Operation is one gate application inside a circuit.
type Operation struct {
	Gate   Gate
	Qudits []int
	Params []float64
	// Unitary is set only for UnitaryGate operations.
	Unitary *UnitaryMatrix
}

// LocalMatrix returns the row-major unitary acting on the operation's qudits.
func (op Operation) LocalMatrix() []complex128 {
	if op.Unitary != nil {
		return op.Unitary.Data()
	}
	return op.Gate.Matrix(op.Params)
}

func (op Operation) clone() Operation {
	out := Operation{Gate: op.Gate, Unitary: op.Unitary}
	out.Qudits = append([]int(nil), op.Qudits...)
	if op.Params != nil {
		out.Params = append([]float64(nil), op.Params...)
	}
	return out
}

// Circuit is an ordered gate sequence on a fixed number of qudits.
type Circuit struct {
	numQudits int
	ops       []Operation
}

// MaxQudits is the widest circuit whose unitary is materialized. A dense
// 2^n x 2^n matrix past this width does not fit in memory.
const MaxQudits = 12

// CheckWidth reports an error when n qudits cannot be represented.
func CheckWidth(n int) error {
	if n < 0 {
		return fmt.Errorf("qudit count must be non-negative, got %d", n)
	}
	if n > MaxQudits {
		return fmt.Errorf("qudit count %d exceeds the supported maximum of %d", n, MaxQudits)
	}
	return nil
}

// NewCircuit creates an empty circuit. It panics when numQudits fails
// CheckWidth; callers building from external input check first.
func NewCircuit(numQudits int) *Circuit {
	if err := CheckWidth(numQudits); err != nil {
		panic(err)
	}
	return &Circuit{numQudits: numQudits}
}

// FromUnitary embeds a target matrix as a single opaque operation over all qudits.
func FromUnitary(u UnitaryMatrix) *Circuit {
	c := NewCircuit(u.NumQudits())
	if u.Dim() <= 1 {
		return c
	}
	qudits := make([]int, c.numQudits)
	for i := range qudits {
		qudits[i] = i
	}
	m := u
	c.ops = append(c.ops, Operation{Gate: UnitaryGate, Qudits: qudits, Unitary: &m})
	return c
}

// NumQudits returns the declared qudit count.
func (c *Circuit) NumQudits() int {
	return c.numQudits
}

// NumOperations returns the gate count.
func (c *Circuit) NumOperations() int {
	return len(c.ops)
}

// Operations returns a copy of the operation list.
func (c *Circuit) Operations() []Operation {
	out := make([]Operation, len(c.ops))
	for i, op := range c.ops {
		out[i] = op.clone()
	}
	return out
}

// Append adds a gate application after validating arity and qudit indices.
func (c *Circuit) Append(gate Gate, qudits []int, params ...float64) error {
	if gate.Name == UnitaryGate.Name {
		return fmt.Errorf("use AppendUnitary for opaque unitaries")
	}
	if len(qudits) != gate.NumQudits {
		return fmt.Errorf("gate %s acts on %d qudits, got %d", gate.Name, gate.NumQudits, len(qudits))
	}
	if len(params) != gate.NumParams {
		return fmt.Errorf("gate %s takes %d parameters, got %d", gate.Name, gate.NumParams, len(params))
	}
	if err := c.checkQudits(qudits); err != nil {
		return fmt.Errorf("gate %s: %w", gate.Name, err)
	}
	op := Operation{Gate: gate, Qudits: append([]int(nil), qudits...)}
	if len(params) > 0 {
		op.Params = append([]float64(nil), params...)
	}
	c.ops = append(c.ops, op)
	return nil
}

// AppendUnitary adds an opaque unitary on the given qudits.
func (c *Circuit) AppendUnitary(u UnitaryMatrix, qudits []int) error {
	if 1<<len(qudits) != u.Dim() {
		return fmt.Errorf("unitary of dimension %d cannot act on %d qudits", u.Dim(), len(qudits))
	}
	if err := c.checkQudits(qudits); err != nil {
		return err
	}
	m := u
	c.ops = append(c.ops, Operation{Gate: UnitaryGate, Qudits: append([]int(nil), qudits...), Unitary: &m})
	return nil
}

func (c *Circuit) checkQudits(qudits []int) error {
	seen := make(map[int]bool, len(qudits))
	for _, q := range qudits {
		if q < 0 || q >= c.numQudits {
			return fmt.Errorf("qudit %d out of range [0,%d)", q, c.numQudits)
		}
		if seen[q] {
			return fmt.Errorf("qudit %d repeated", q)
		}
		seen[q] = true
	}
	return nil
}

// Clone returns a deep copy.
func (c *Circuit) Clone() *Circuit {
	return &Circuit{numQudits: c.numQudits, ops: c.Operations()}
}

// GateSet returns the sorted distinct gate names used by the circuit.
func (c *Circuit) GateSet() []string {
	counts := c.GateCounts()
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GateCounts returns how often each gate name occurs.
func (c *Circuit) GateCounts() map[string]int {
	counts := make(map[string]int)
	for _, op := range c.ops {
		counts[op.Gate.Name]++
	}
	return counts
}

// RealizedUnitary multiplies out the gate sequence. The first operation is
// applied first, so the result is G_k ... G_2 G_1.
func (c *Circuit) RealizedUnitary() UnitaryMatrix {
	dim := 1 << c.numQudits
	data := Identity(dim).Data()
	for _, op := range c.ops {
		ApplyLocal(data, c.numQudits, op.LocalMatrix(), op.Qudits)
	}
	return MustUnitaryMatrix(dim, data)
}

// ApplyLocal left-multiplies the row-major dim x dim matrix in data by the
// embedding of local (acting on qudits) into the full space. data is updated in place.
func ApplyLocal(data []complex128, numQudits int, local []complex128, qudits []int) {
	dim := 1 << numQudits
	k := len(qudits)
	ld := 1 << k

	masks := make([]int, k)
	var opMask int
	for i, q := range qudits {
		masks[i] = 1 << (numQudits - 1 - q)
		opMask |= masks[i]
	}

	// offsets[l] is the basis offset of local index l (local bit 0 = MSB = qudits[0])
	offsets := make([]int, ld)
	for l := 0; l < ld; l++ {
		off := 0
		for i := 0; i < k; i++ {
			if l&(1<<(k-1-i)) != 0 {
				off |= masks[i]
			}
		}
		offsets[l] = off
	}

	in := make([]complex128, ld)
	for col := 0; col < dim; col++ {
		for base := 0; base < dim; base++ {
			if base&opMask != 0 {
				continue
			}
			for l := 0; l < ld; l++ {
				in[l] = data[(base|offsets[l])*dim+col]
			}
			for r := 0; r < ld; r++ {
				var sum complex128
				row := local[r*ld : r*ld+ld]
				for l := 0; l < ld; l++ {
					sum += row[l] * in[l]
				}
				data[(base|offsets[r])*dim+col] = sum
			}
		}
	}
}
