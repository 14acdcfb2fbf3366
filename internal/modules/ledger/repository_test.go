package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/synthbench/internal/quantum"
	testhelpers "github.com/aristath/synthbench/internal/testing"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	db, _ := testhelpers.NewTestDB(t, "runs")
	host := HostInfo{Hostname: "bench-1", Platform: "linux", CPUModel: "test cpu", CPUCores: 8, TotalMemory: 16 << 30}
	return NewRepository(db.Conn(), host, zerolog.Nop())
}

func TestRepository_RecordAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	run := testhelpers.SampleRun(t, "run-1", started)

	require.NoError(t, repo.RecordRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "qftbench", got.Entry)
	assert.Equal(t, "qft", got.Problem)
	assert.Equal(t, 2, got.Precision)
	assert.Equal(t, 2, got.NumQudits)
	assert.Equal(t, "succeeded", got.Status)
	assert.Empty(t, got.Error)
	assert.True(t, started.Equal(got.StartedAt))
	assert.Equal(t, "bench-1", got.Host.Hostname)
	assert.Equal(t, uint64(16<<30), got.Host.TotalMemory)

	require.Len(t, got.Branches, 2)
	reg := got.Branches[0]
	assert.Equal(t, "reg", reg.Label)
	require.NotNil(t, reg.Distance)
	assert.InDelta(t, 4e-3, *reg.Distance, 1e-15)
	require.NotNil(t, reg.ElapsedSeconds)
	assert.InDelta(t, 1.5, *reg.ElapsedSeconds, 1e-15)
	assert.Equal(t, []string{"cx", "h"}, reg.GateSet)
	assert.True(t, reg.HasSnapshot)

	ft := got.Branches[1]
	assert.Nil(t, ft.ElapsedSeconds, "unknown elapsed time stays unknown")
	assert.Equal(t, []string{"cx", "h", "t", "tdg"}, ft.GateSet)
	assert.Equal(t, 5, ft.GateCount)
}

func TestRepository_RecordFailedRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := testhelpers.SampleRun(t, "run-failed", time.Now())
	run.Branches[1].Err = errors.New("no convergence")
	run.Branches[1].Circuit = nil

	require.NoError(t, repo.RecordRun(ctx, run))

	got, err := repo.GetRun(ctx, "run-failed")
	require.NoError(t, err)
	assert.Equal(t, "failed", got.Status)
	assert.Contains(t, got.Error, "no convergence")
	assert.Nil(t, got.Branches[1].Distance)
	assert.Equal(t, "no convergence", got.Branches[1].Error)
	assert.False(t, got.Branches[1].HasSnapshot)
}

func TestRepository_RecordReplaces(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := testhelpers.SampleRun(t, "run-1", time.Now())
	require.NoError(t, repo.RecordRun(ctx, run))
	run.Precision = 5
	require.NoError(t, repo.RecordRun(ctx, run))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := repo.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 5, got.Precision)
	assert.Len(t, got.Branches, 2)
}

func TestRepository_RecordRequiresID(t *testing.T) {
	repo := newTestRepo(t)
	assert.Error(t, repo.RecordRun(context.Background(), nil))
	run := testhelpers.SampleRun(t, "", time.Now())
	assert.Error(t, repo.RecordRun(context.Background(), run))
}

func TestRepository_GetRunNotFound(t *testing.T) {
	repo := newTestRepo(t)
	_, err := repo.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_ListRuns(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, repo.RecordRun(ctx, testhelpers.SampleRun(t, id, base.Add(time.Duration(i)*time.Hour))))
	}

	runs, err := repo.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "c", runs[0].ID, "newest first")
	assert.Empty(t, runs[0].Branches)

	runs, err = repo.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestRepository_ListRunsEmpty(t *testing.T) {
	repo := newTestRepo(t)
	runs, err := repo.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestRepository_Snapshot(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	run := testhelpers.SampleRun(t, "run-1", time.Now())
	require.NoError(t, repo.RecordRun(ctx, run))

	c, err := repo.Snapshot(ctx, "run-1", "ft")
	require.NoError(t, err)
	assert.True(t, c.RealizedUnitary().ApproxEqual(run.Branches[1].Circuit.RealizedUnitary(), 1e-12))

	_, err = repo.Snapshot(ctx, "run-1", "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestRepository_Prune(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, repo.RecordRun(ctx, testhelpers.SampleRun(t, "old", now.Add(-40*24*time.Hour))))
	require.NoError(t, repo.RecordRun(ctx, testhelpers.SampleRun(t, "new", now.Add(-time.Hour))))

	n, err := repo.Prune(ctx, now.Add(-30*24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.GetRun(ctx, "old")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = repo.Snapshot(ctx, "old", "reg")
	assert.ErrorIs(t, err, ErrRunNotFound, "branches are removed with their run")

	_, err = repo.GetRun(ctx, "new")
	assert.NoError(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	c := quantum.NewCircuit(3)
	require.NoError(t, c.Append(quantum.U3, []int{2}, 0.1, -0.2, 3.3))
	require.NoError(t, c.Append(quantum.CX, []int{2, 0}))
	require.NoError(t, c.Append(quantum.Tdg, []int{1}))

	data, err := EncodeSnapshot(c)
	require.NoError(t, err)

	back, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, 3, back.NumQudits())
	want, got := c.Operations(), back.Operations()
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Gate.Name, got[i].Gate.Name)
		assert.Equal(t, want[i].Qudits, got[i].Qudits)
		assert.Equal(t, want[i].Params, got[i].Params)
	}
}

func TestSnapshot_Errors(t *testing.T) {
	_, err := EncodeSnapshot(quantum.FromUnitary(quantum.Identity(2)))
	assert.Error(t, err)

	_, err = DecodeSnapshot([]byte("not zstd"))
	assert.Error(t, err)
}

func TestCollectHostInfo(t *testing.T) {
	info := CollectHostInfo(zerolog.Nop())
	assert.NotEmpty(t, info.Platform)
	assert.Positive(t, info.CPUCores)
}
