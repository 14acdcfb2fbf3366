package testing

import (
	"testing"
	"time"

	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/quantum"
)

// BellCircuit returns h(0) followed by cx(0, 1).
func BellCircuit(t *testing.T) *quantum.Circuit {
	t.Helper()

	c := quantum.NewCircuit(2)
	if err := c.Append(quantum.H, []int{0}); err != nil {
		t.Fatalf("Failed to build fixture circuit: %v", err)
	}
	if err := c.Append(quantum.CX, []int{0, 1}); err != nil {
		t.Fatalf("Failed to build fixture circuit: %v", err)
	}
	return c
}

// CliffordTCircuit returns a short two-qudit circuit over the Clifford+T gates.
func CliffordTCircuit(t *testing.T) *quantum.Circuit {
	t.Helper()

	c := BellCircuit(t)
	for _, g := range []quantum.Gate{quantum.T, quantum.H, quantum.Tdg} {
		if err := c.Append(g, []int{1}); err != nil {
			t.Fatalf("Failed to build fixture circuit: %v", err)
		}
	}
	return c
}

// SampleRun returns a finished two-branch run on a 2-qudit QFT at precision 2.
// elapsed is the regular branch's time; the fault-tolerant branch has none.
func SampleRun(t *testing.T, id string, startedAt time.Time) *benchmark.RunResult {
	t.Helper()

	elapsed := 1.5
	reg := BellCircuit(t)
	ft := CliffordTCircuit(t)
	return &benchmark.RunResult{
		ID:        id,
		Entry:     "qftbench",
		Problem:   "qft",
		Display:   "QFT(num_qubits=2)",
		Precision: 2,
		NumQudits: 2,
		StartedAt: startedAt,
		Branches: []benchmark.BranchResult{
			{
				Label:        synthesis.BranchRegular,
				Circuit:      reg,
				GateSet:      reg.GateSet(),
				GateCount:    reg.NumOperations(),
				Distance:     4e-3,
				Elapsed:      &elapsed,
				ArtifactPath: "outputs/reg_qft_2.qasm",
			},
			{
				Label:        synthesis.BranchFaultTolerant,
				Circuit:      ft,
				GateSet:      ft.GateSet(),
				GateCount:    ft.NumOperations(),
				Distance:     0.03,
				ArtifactPath: "outputs/ft_qft_2.qasm",
			},
		},
	}
}
