package quantum

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bellQASM = `OPENQASM 2.0;
include "qelib1.inc";
qreg q[2];
creg c[2];
h q[0];
cx q[0], q[1];
barrier q;
measure q -> c;
`

func TestParseQASM_Basic(t *testing.T) {
	c, err := ParseQASM(bellQASM)
	require.NoError(t, err)

	assert.Equal(t, 2, c.NumQudits())
	assert.Equal(t, 2, c.NumOperations())
	assert.Equal(t, []string{"cx", "h"}, c.GateSet())
}

func TestParseQASM_Expressions(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want float64
	}{
		{name: "pi", expr: "pi", want: math.Pi},
		{name: "fraction", expr: "pi/4", want: math.Pi / 4},
		{name: "unary minus", expr: "-pi/2", want: -math.Pi / 2},
		{name: "precedence", expr: "1+2*3", want: 7},
		{name: "parentheses", expr: "(1+2)*3", want: 9},
		{name: "power", expr: "2^3", want: 8},
		{name: "function", expr: "cos(0)", want: 1},
		{name: "scientific", expr: "1.5e-3", want: 0.0015},
		{name: "sqrt", expr: "sqrt(4)*pi", want: 2 * math.Pi},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := "OPENQASM 2.0;\nqreg q[1];\nrz(" + tt.expr + ") q[0];\n"
			c, err := ParseQASM(src)
			require.NoError(t, err)
			ops := c.Operations()
			require.Len(t, ops, 1)
			assert.InDelta(t, tt.want, ops[0].Params[0], 1e-12)
		})
	}
}

func TestParseQASM_MultipleRegistersAndBroadcast(t *testing.T) {
	src := `OPENQASM 2.0;
qreg a[2];
qreg b[2];
h a;
cx a, b;
x b[1];
`
	c, err := ParseQASM(src)
	require.NoError(t, err)
	assert.Equal(t, 4, c.NumQudits())

	ops := c.Operations()
	require.Len(t, ops, 5)
	assert.Equal(t, []int{0}, ops[0].Qudits)
	assert.Equal(t, []int{1}, ops[1].Qudits)
	assert.Equal(t, []int{0, 2}, ops[2].Qudits)
	assert.Equal(t, []int{1, 3}, ops[3].Qudits)
	assert.Equal(t, []int{3}, ops[4].Qudits)
}

func TestParseQASM_CustomGate(t *testing.T) {
	src := `OPENQASM 2.0;
include "qelib1.inc";
gate mycz a, b { h b; cx a, b; h b; }
gate twist(theta) a { rz(theta/2) a; rz(theta/2) a; }
qreg q[2];
mycz q[0], q[1];
twist(pi) q[1];
`
	c, err := ParseQASM(src)
	require.NoError(t, err)

	ops := c.Operations()
	require.Len(t, ops, 5)
	assert.Equal(t, "h", ops[0].Gate.Name)
	assert.Equal(t, []int{1}, ops[0].Qudits)
	assert.Equal(t, []int{0, 1}, ops[1].Qudits)
	assert.InDelta(t, math.Pi/2, ops[3].Params[0], 1e-12)

	want := NewCircuit(2)
	require.NoError(t, want.Append(CZ, []int{0, 1}))
	first := NewCircuit(2)
	for _, op := range ops[:3] {
		require.NoError(t, first.Append(op.Gate, op.Qudits, op.Params...))
	}
	assert.True(t, first.RealizedUnitary().ApproxEqual(want.RealizedUnitary(), 1e-12))
}

func TestParseQASM_Errors(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
		contains string
	}{
		{name: "unknown gate", src: "qreg q[1];\nfoo q[0];", wantLine: 2, contains: "unknown gate"},
		{name: "unknown register", src: "qreg q[1];\nh r[0];", wantLine: 2, contains: "unknown register"},
		{name: "index out of range", src: "qreg q[1];\nh q[3];", wantLine: 2, contains: "out of range"},
		{name: "missing semicolon", src: "qreg q[1];\nh q[0]", wantLine: 2, contains: "expected"},
		{name: "reset rejected", src: "qreg q[1];\nreset q[0];", wantLine: 2, contains: "not supported"},
		{name: "classical control rejected", src: "qreg q[1];\ncreg c[1];\nif (c==1) x q[0];", wantLine: 3, contains: "not supported"},
		{name: "wrong parameter count", src: "qreg q[1];\nrz q[0];", wantLine: 2, contains: "parameters"},
		{name: "repeated qudit", src: "qreg q[2];\ncx q[0], q[0];", wantLine: 2, contains: "repeats"},
		{name: "bad version", src: "OPENQASM 3.0;", wantLine: 1, contains: "version"},
		{name: "bad character", src: "qreg q[1];\nh q[0]; @", wantLine: 2, contains: "unexpected character"},
		{name: "register too wide", src: "qreg q[64];\nh q[0];", wantLine: 1, contains: "more than 12 qubits"},
		{name: "registers too wide together", src: "qreg a[8];\nqreg b[5];", wantLine: 2, contains: "more than 12 qubits"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseQASM(tt.src)
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.wantLine, perr.Line)
			assert.Contains(t, perr.Error(), tt.contains)
		})
	}
}

func TestWriteQASM_RoundTrip(t *testing.T) {
	c := NewCircuit(3)
	require.NoError(t, c.Append(U3, []int{0}, 0.123456789, -1.5, math.Pi))
	require.NoError(t, c.Append(CX, []int{0, 2}))
	require.NoError(t, c.Append(T, []int{1}))

	text, err := c.QASM()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "OPENQASM 2.0;\ninclude \"qelib1.inc\";\nqreg q[3];\n"))
	assert.Contains(t, text, "cx q[0], q[2];\n")
	assert.Contains(t, text, "t q[1];\n")

	parsed, err := ParseQASM(text)
	require.NoError(t, err)
	assert.Equal(t, c.NumOperations(), parsed.NumOperations())
	assert.True(t, parsed.RealizedUnitary().ApproxEqual(c.RealizedUnitary(), 1e-12))
}

func TestWriteQASM_RejectsOpaqueUnitary(t *testing.T) {
	c := FromUnitary(MustUnitaryMatrix(2, H.Matrix(nil)))
	_, err := c.QASM()
	assert.Error(t, err)
}

func TestSaveAndLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bell.qasm")

	c, err := ParseQASM(bellQASM)
	require.NoError(t, err)
	require.NoError(t, c.Save(path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.True(t, loaded.RealizedUnitary().ApproxEqual(c.RealizedUnitary(), 1e-12))

	_, err = LoadFromFile(filepath.Join(dir, "missing.qasm"))
	assert.Error(t, err)

	wide := filepath.Join(dir, "wide.qasm")
	require.NoError(t, os.WriteFile(wide, []byte("OPENQASM 2.0;\nqreg q[64];\nh q[0];\n"), 0o644))
	_, err = LoadFromFile(wide)
	var perr *ParseError
	assert.True(t, errors.As(err, &perr), "got %v", err)

	require.NoError(t, os.WriteFile(path, []byte("qreg q[1];\nbogus q[0];\n"), 0o644))
	_, err = LoadFromFile(path)
	perr = nil
	assert.True(t, errors.As(err, &perr))
}
