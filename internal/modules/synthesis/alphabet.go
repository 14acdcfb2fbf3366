package synthesis

import (
	"sort"
)

// GateAlphabet is an immutable named gate set for a fixed number of qudits.
type GateAlphabet struct {
	name      string
	numQudits int
	gates     []string
}

// cliffordTNames is the Clifford+T gate basis, sorted.
var cliffordTNames = []string{"cx", "h", "s", "sdg", "t", "tdg", "x", "y", "z"}

// CliffordTGates is the process-wide Clifford+T alphabet. Its qudit count is
// zero; FaultTolerantAlphabet binds it to a circuit width.
var CliffordTGates = GateAlphabet{name: "clifford+t", gates: cliffordTNames}

// NewGateAlphabet creates an alphabet. Gate names are copied, de-duplicated and sorted.
func NewGateAlphabet(name string, numQudits int, gates []string) GateAlphabet {
	seen := make(map[string]bool, len(gates))
	out := make([]string, 0, len(gates))
	for _, g := range gates {
		if !seen[g] {
			seen[g] = true
			out = append(out, g)
		}
	}
	sort.Strings(out)
	return GateAlphabet{name: name, numQudits: numQudits, gates: out}
}

// FaultTolerantAlphabet returns the Clifford+T alphabet for k qudits.
func FaultTolerantAlphabet(k int) GateAlphabet {
	return NewGateAlphabet(CliffordTGates.name, k, cliffordTNames)
}

// Name returns the alphabet's display name.
func (a GateAlphabet) Name() string {
	return a.name
}

// NumQudits returns the circuit width the alphabet is bound to.
func (a GateAlphabet) NumQudits() int {
	return a.numQudits
}

// Gates returns a sorted copy of the gate names.
func (a GateAlphabet) Gates() []string {
	out := make([]string, len(a.gates))
	copy(out, a.gates)
	return out
}

// Contains reports whether the gate is in the alphabet.
func (a GateAlphabet) Contains(gate string) bool {
	i := sort.SearchStrings(a.gates, gate)
	return i < len(a.gates) && a.gates[i] == gate
}

// Covers reports whether every gate in set is in the alphabet.
func (a GateAlphabet) Covers(set []string) bool {
	for _, g := range set {
		if !a.Contains(g) {
			return false
		}
	}
	return true
}
