package benchmark

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/aristath/synthbench/internal/modules/fidelity"
	"github.com/aristath/synthbench/internal/modules/synthesis"
	"github.com/aristath/synthbench/internal/modules/target"
	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSynth returns a copy of the branch's canned circuit or error.
type fakeSynth struct {
	mu    sync.Mutex
	out   map[string]*quantum.Circuit
	errs  map[string]error
	calls []string
}

func (f *fakeSynth) Synthesize(_ context.Context, problem string, _ *quantum.Circuit, cfg synthesis.SynthesisConfig) (*quantum.Circuit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, cfg.Branch())
	if err := f.errs[cfg.Branch()]; err != nil {
		return nil, &synthesis.SynthesisFailureError{Branch: cfg.Branch(), Target: problem, Err: err}
	}
	return f.out[cfg.Branch()].Clone(), nil
}

type fakeSaver struct {
	mu    sync.Mutex
	saved []string
	err   error
}

func (f *fakeSaver) Save(_ context.Context, _ *quantum.Circuit, label, problem string, precision int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	name := fmt.Sprintf("out/%s_%s_%d.qasm", label, problem, precision)
	f.saved = append(f.saved, name)
	return name, nil
}

type fakeLedger struct {
	runs []*RunResult
}

func (f *fakeLedger) RecordRun(_ context.Context, run *RunResult) error {
	f.runs = append(f.runs, run)
	return nil
}

// recordingReporter captures the call sequence.
type recordingReporter struct {
	events []string
}

func (r *recordingReporter) RunStarted(run *RunResult) {
	r.events = append(r.events, "start:"+run.Problem)
}

func (r *recordingReporter) BranchFinished(_ *RunResult, b BranchResult) {
	r.events = append(r.events, "branch:"+b.Label)
}

func (r *recordingReporter) RunFinished(run *RunResult) {
	r.events = append(r.events, "finish:"+run.Status())
}

func hProblem(t *testing.T) *target.Problem {
	t.Helper()
	c := quantum.NewCircuit(1)
	require.NoError(t, c.Append(quantum.H, []int{0}))
	return &target.Problem{Name: "hadamard", Circuit: c, Target: c.RealizedUnitary()}
}

func hSynth(t *testing.T) *fakeSynth {
	t.Helper()
	reg := quantum.NewCircuit(1)
	require.NoError(t, reg.Append(quantum.U3, []int{0}, 1.5707963267948966, 0, 3.141592653589793))
	ft := quantum.NewCircuit(1)
	require.NoError(t, ft.Append(quantum.H, []int{0}))
	return &fakeSynth{out: map[string]*quantum.Circuit{
		synthesis.BranchRegular:       reg,
		synthesis.BranchFaultTolerant: ft,
	}}
}

func newTestRunner(synth Synthesizer, saver Saver, rep Reporter) *Runner {
	return NewRunner(synth, fidelity.NewEvaluator(), saver, NewRecorder(nil, zerolog.Nop()), rep, zerolog.Nop())
}

func TestRunner_Success(t *testing.T) {
	synth := hSynth(t)
	saver := &fakeSaver{}
	rep := &recordingReporter{}
	ledger := &fakeLedger{}
	r := newTestRunner(synth, saver, rep)
	r.SetLedger(ledger)

	run, err := r.Run(context.Background(), Request{Entry: "test", Problem: hProblem(t), Precision: 3})
	require.NoError(t, err)
	require.NotNil(t, run)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, StatusSucceeded, run.Status())
	assert.Equal(t, 1, run.NumQudits)
	assert.Equal(t, "hadamard", run.Display)
	require.Len(t, run.Branches, 2)

	reg, ok := run.Branch(synthesis.BranchRegular)
	require.True(t, ok)
	assert.Equal(t, []string{"u3"}, reg.GateSet)
	assert.InDelta(t, 0, reg.Distance, 1e-9)
	assert.NotNil(t, reg.Elapsed)
	assert.Equal(t, "out/reg_hadamard_3.qasm", reg.ArtifactPath)

	ft, ok := run.Branch(synthesis.BranchFaultTolerant)
	require.True(t, ok)
	assert.Equal(t, []string{"h"}, ft.GateSet)
	assert.Equal(t, 1, ft.GateCount)
	assert.Equal(t, "out/ft_hadamard_3.qasm", ft.ArtifactPath)

	assert.Equal(t, []string{"start:hadamard", "branch:reg", "branch:ft", "finish:succeeded"}, rep.events)
	assert.Len(t, ledger.runs, 1)
}

func TestRunner_InvalidPrecision(t *testing.T) {
	for _, p := range []int{0, -1} {
		synth := hSynth(t)
		rep := &recordingReporter{}
		r := newTestRunner(synth, &fakeSaver{}, rep)

		run, err := r.Run(context.Background(), Request{Problem: hProblem(t), Precision: p})
		assert.Nil(t, run)
		assert.ErrorIs(t, err, synthesis.ErrInvalidPrecision)
		assert.Empty(t, synth.calls, "no synthesis may start on invalid precision")
		assert.Empty(t, rep.events)
	}
}

func TestRunner_BranchFailureKeepsOtherBranch(t *testing.T) {
	synth := hSynth(t)
	synth.errs = map[string]error{synthesis.BranchRegular: errors.New("no convergence")}
	saver := &fakeSaver{}
	ledger := &fakeLedger{}
	r := newTestRunner(synth, saver, nil)
	r.SetLedger(ledger)

	run, err := r.Run(context.Background(), Request{Problem: hProblem(t), Precision: 2})
	require.Error(t, err)
	require.NotNil(t, run)
	assert.ErrorIs(t, err, synthesis.ErrSynthesisFailure)
	assert.Equal(t, StatusFailed, run.Status())

	ft, _ := run.Branch(synthesis.BranchFaultTolerant)
	assert.True(t, ft.OK())
	assert.Equal(t, []string{"out/ft_hadamard_2.qasm"}, saver.saved)

	require.Len(t, ledger.runs, 1, "failed runs are recorded too")
}

func TestRunner_PersistenceFailure(t *testing.T) {
	saveErr := errors.New("disk full")
	r := newTestRunner(hSynth(t), &fakeSaver{err: saveErr}, nil)

	run, err := r.Run(context.Background(), Request{Problem: hProblem(t), Precision: 2})
	require.NotNil(t, run)
	assert.ErrorIs(t, err, saveErr)
	for _, b := range run.Branches {
		assert.False(t, b.OK())
		assert.Empty(t, b.ArtifactPath)
	}
}

func TestRunner_DimensionMismatch(t *testing.T) {
	p := hProblem(t)
	p.Target = quantum.Identity(4)
	r := newTestRunner(hSynth(t), &fakeSaver{}, nil)

	_, err := r.Run(context.Background(), Request{Problem: p, Precision: 2})
	assert.ErrorIs(t, err, fidelity.ErrDimensionMismatch)
}

func TestRunner_Parallel(t *testing.T) {
	synth := hSynth(t)
	saver := &fakeSaver{}
	rep := &recordingReporter{}
	r := newTestRunner(synth, saver, rep)
	r.SetParallel(true)

	run, err := r.Run(context.Background(), Request{Problem: hProblem(t), Precision: 4})
	require.NoError(t, err)
	assert.Equal(t, synthesis.BranchRegular, run.Branches[0].Label)
	assert.Equal(t, synthesis.BranchFaultTolerant, run.Branches[1].Label)
	assert.ElementsMatch(t, []string{"out/reg_hadamard_4.qasm", "out/ft_hadamard_4.qasm"}, saver.saved)
	assert.Len(t, rep.events, 4)
	assert.Equal(t, "finish:succeeded", rep.events[3])
}

func TestRunner_QFTDisplayName(t *testing.T) {
	p := hProblem(t)
	p.Name = target.QFTName
	var buf bytes.Buffer
	r := newTestRunner(hSynth(t), &fakeSaver{}, NewConsoleReporter(&buf))

	_, err := r.Run(context.Background(), Request{Problem: p, Precision: 2})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Starting synthesis for QFT(num_qubits=1) with precision 10^-2...")
}

func TestRunner_RunRepeated(t *testing.T) {
	r := newTestRunner(hSynth(t), &fakeSaver{}, nil)

	runs, err := r.RunRepeated(context.Background(), Request{Problem: hProblem(t), Precision: 2}, 3)
	require.NoError(t, err)
	assert.Len(t, runs, 3)

	stats := Summarize(runs)
	require.Len(t, stats, 2)
	assert.Equal(t, 3, stats[0].Runs)
	assert.Equal(t, 3, stats[0].Timed)

	_, err = r.RunRepeated(context.Background(), Request{Problem: hProblem(t), Precision: 2}, 0)
	assert.Error(t, err)

	runs, err = r.RunRepeated(context.Background(), Request{Problem: hProblem(t), Precision: 0}, 2)
	assert.Empty(t, runs)
	assert.ErrorIs(t, err, synthesis.ErrInvalidPrecision)
}

func TestRunner_RunRepeatedCancelled(t *testing.T) {
	r := newTestRunner(hSynth(t), &fakeSaver{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runs, err := r.RunRepeated(ctx, Request{Problem: hProblem(t), Precision: 2}, 2)
	assert.Empty(t, runs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunner_RequestID(t *testing.T) {
	r := newTestRunner(hSynth(t), &fakeSaver{}, nil)

	run, err := r.Run(context.Background(), Request{ID: "fixed", Problem: hProblem(t), Precision: 2})
	require.NoError(t, err)
	assert.Equal(t, "fixed", run.ID)

	runs, err := r.RunRepeated(context.Background(), Request{ID: "fixed", Problem: hProblem(t), Precision: 2}, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.NotEqual(t, runs[0].ID, runs[1].ID)
	assert.NotEqual(t, "fixed", runs[0].ID)
}
