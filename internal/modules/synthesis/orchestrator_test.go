package synthesis

import (
	"context"
	"errors"
	"testing"

	"github.com/aristath/synthbench/internal/engine"
	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEngine records its calls and returns canned circuits.
type fakeEngine struct {
	precisionOut *quantum.Circuit
	modelOut     *quantum.Circuit
	err          error

	gotEpsilon float64
	gotModel   engine.MachineModel
	gotCircuit *quantum.Circuit
}

func (f *fakeEngine) BuildFromUnitary(u quantum.UnitaryMatrix) *quantum.Circuit {
	return quantum.FromUnitary(u)
}

func (f *fakeEngine) LoadFromFile(string) (*quantum.Circuit, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeEngine) SynthesizeWithPrecision(_ context.Context, c *quantum.Circuit, epsilon float64) (*quantum.Circuit, error) {
	f.gotEpsilon = epsilon
	f.gotCircuit = c
	return f.precisionOut, f.err
}

func (f *fakeEngine) SynthesizeWithModel(_ context.Context, c *quantum.Circuit, model engine.MachineModel) (*quantum.Circuit, error) {
	f.gotModel = model
	f.gotCircuit = c
	return f.modelOut, f.err
}

func twoQuditSource(t *testing.T) *quantum.Circuit {
	t.Helper()
	c := quantum.NewCircuit(2)
	require.NoError(t, c.Append(quantum.H, []int{0}))
	require.NoError(t, c.Append(quantum.CX, []int{0, 1}))
	return c
}

func TestNewPrecisionConfig(t *testing.T) {
	tests := []struct {
		name      string
		precision int
		wantErr   bool
		epsilon   float64
	}{
		{name: "zero", precision: 0, wantErr: true},
		{name: "negative", precision: -1, wantErr: true},
		{name: "one", precision: 1, epsilon: 0.1},
		{name: "three", precision: 3, epsilon: 1e-3},
		{name: "ten", precision: 10, epsilon: 1e-10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := NewPrecisionConfig(tt.precision)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPrecision)
				var ip *InvalidPrecisionError
				require.True(t, errors.As(err, &ip))
				assert.Equal(t, tt.precision, ip.Precision)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.precision, cfg.Precision)
			assert.InDelta(t, tt.epsilon, cfg.Epsilon, tt.epsilon*1e-12)
			assert.Equal(t, BranchRegular, cfg.Branch())
		})
	}
}

func TestNewAlphabetConfig(t *testing.T) {
	source := twoQuditSource(t)

	cfg, err := NewAlphabetConfig(FaultTolerantAlphabet(2), source)
	require.NoError(t, err)
	assert.Equal(t, BranchFaultTolerant, cfg.Branch())
	assert.Equal(t, DefaultApproximation, cfg.ApproximationDepth)

	_, err = NewAlphabetConfig(FaultTolerantAlphabet(3), source)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfigurationMismatch)
	var cm *ConfigurationMismatchError
	require.True(t, errors.As(err, &cm))
	assert.Equal(t, 3, cm.AlphabetQudits)
	assert.Equal(t, 2, cm.CircuitQudits)
}

func TestFaultTolerantAlphabet(t *testing.T) {
	a := FaultTolerantAlphabet(4)
	assert.Equal(t, 4, a.NumQudits())
	assert.Equal(t, []string{"cx", "h", "s", "sdg", "t", "tdg", "x", "y", "z"}, a.Gates())
	assert.True(t, a.Contains("t"))
	assert.False(t, a.Contains("u3"))
	assert.True(t, a.Covers([]string{"cx", "h", "t"}))
	assert.False(t, a.Covers([]string{"cx", "rz"}))

	// the shared constant cannot be mutated through Gates
	gates := CliffordTGates.Gates()
	gates[0] = "u3"
	assert.Equal(t, "cx", CliffordTGates.Gates()[0])
}

func TestNewGateAlphabet_Dedup(t *testing.T) {
	a := NewGateAlphabet("custom", 1, []string{"t", "h", "t"})
	assert.Equal(t, []string{"h", "t"}, a.Gates())
	assert.Equal(t, "custom", a.Name())
}

func TestOrchestrator_Precision(t *testing.T) {
	source := twoQuditSource(t)
	out := quantum.NewCircuit(2)
	fe := &fakeEngine{precisionOut: out}
	o := NewOrchestrator(fe, zerolog.Nop())

	cfg, err := NewPrecisionConfig(3)
	require.NoError(t, err)

	got, err := o.Synthesize(context.Background(), "qft", source, cfg)
	require.NoError(t, err)
	assert.Same(t, out, got)
	assert.InDelta(t, 1e-3, fe.gotEpsilon, 1e-15)
	// the engine saw a clone, not the caller's circuit
	assert.NotSame(t, source, fe.gotCircuit)
	assert.Equal(t, source.NumOperations(), fe.gotCircuit.NumOperations())
}

func TestOrchestrator_Alphabet(t *testing.T) {
	source := twoQuditSource(t)
	out := quantum.NewCircuit(2)
	require.NoError(t, out.Append(quantum.T, []int{0}))
	require.NoError(t, out.Append(quantum.CX, []int{0, 1}))
	fe := &fakeEngine{modelOut: out}
	o := NewOrchestrator(fe, zerolog.Nop())

	cfg, err := NewAlphabetConfig(FaultTolerantAlphabet(2), source)
	require.NoError(t, err)

	got, err := o.Synthesize(context.Background(), "qft", source, cfg)
	require.NoError(t, err)
	assert.Same(t, out, got)
	assert.Equal(t, 2, fe.gotModel.NumQudits)
	assert.Equal(t, FaultTolerantAlphabet(2).Gates(), fe.gotModel.GateSet)
	assert.Equal(t, DefaultApproximation, fe.gotModel.ApproximationDepth)
}

func TestOrchestrator_AlphabetViolation(t *testing.T) {
	source := twoQuditSource(t)
	out := quantum.NewCircuit(2)
	require.NoError(t, out.Append(quantum.U3, []int{0}, 1, 2, 3))
	o := NewOrchestrator(&fakeEngine{modelOut: out}, zerolog.Nop())

	cfg, err := NewAlphabetConfig(FaultTolerantAlphabet(2), source)
	require.NoError(t, err)

	_, err = o.Synthesize(context.Background(), "qft", source, cfg)
	assert.ErrorIs(t, err, ErrSynthesisFailure)
}

func TestOrchestrator_EngineFailure(t *testing.T) {
	source := twoQuditSource(t)
	cause := errors.New("engine exploded")
	o := NewOrchestrator(&fakeEngine{err: cause}, zerolog.Nop())

	cfg, err := NewPrecisionConfig(2)
	require.NoError(t, err)

	_, err = o.Synthesize(context.Background(), "qft", source, cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSynthesisFailure)
	assert.ErrorIs(t, err, cause)

	var sf *SynthesisFailureError
	require.True(t, errors.As(err, &sf))
	assert.Equal(t, BranchRegular, sf.Branch)
	assert.Equal(t, "qft", sf.Target)
	assert.Contains(t, sf.Error(), "engine exploded")
	assert.Contains(t, sf.Error(), "(2 qudits)")

	u, ok := sf.TargetUnitary()
	require.True(t, ok)
	assert.True(t, u.ApproxEqual(source.RealizedUnitary(), 1e-12))

	_, ok = (&SynthesisFailureError{Branch: BranchRegular, Target: "qft", Err: cause}).TargetUnitary()
	assert.False(t, ok)
}

func TestOrchestrator_RejectsInvalidConfigs(t *testing.T) {
	source := twoQuditSource(t)
	fe := &fakeEngine{precisionOut: quantum.NewCircuit(2)}
	o := NewOrchestrator(fe, zerolog.Nop())

	_, err := o.Synthesize(context.Background(), "qft", source, PrecisionConfig{Precision: 0, Epsilon: 1})
	assert.ErrorIs(t, err, ErrInvalidPrecision)

	_, err = o.Synthesize(context.Background(), "qft", source, AlphabetConfig{Alphabet: FaultTolerantAlphabet(5)})
	assert.ErrorIs(t, err, ErrConfigurationMismatch)

	_, err = o.Synthesize(context.Background(), "qft", nil, PrecisionConfig{Precision: 1, Epsilon: 0.1})
	assert.Error(t, err)

	assert.Zero(t, fe.gotEpsilon, "engine must not be called for rejected configs")
}
