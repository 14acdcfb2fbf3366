package scheduler

import (
	"archive/tar"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/synthbench/internal/database"
	"github.com/aristath/synthbench/internal/modules/ledger"
	testhelpers "github.com/aristath/synthbench/internal/testing"
)

type fakeSink struct {
	names []string
	data  [][]byte
	err   error
}

func (f *fakeSink) Mirror(_ context.Context, name string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.names = append(f.names, name)
	f.data = append(f.data, data)
	return nil
}

type failingSource struct{}

func (failingSource) Name() string { return "runs" }
func (failingSource) BackupTo(context.Context, string) error {
	return errors.New("disk full")
}

// unpack returns the archive's files by name
func unpack(t *testing.T, archive []byte) map[string][]byte {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	require.NoError(t, err)
	tr := tar.NewReader(gz)

	files := map[string][]byte{}
	for {
		h, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		files[h.Name] = data
	}
	return files
}

func TestLedgerBackupJob(t *testing.T) {
	db, _ := testhelpers.NewTestDB(t, "runs")
	repo := ledger.NewRepository(db.Conn(), ledger.HostInfo{Hostname: "bench-1"}, zerolog.Nop())
	require.NoError(t, repo.RecordRun(context.Background(), testhelpers.SampleRun(t, "kept", time.Now())))

	sink := &fakeSink{}
	job := NewLedgerBackupJob(db, sink, zerolog.Nop())
	job.now = func() time.Time { return time.Date(2024, 6, 10, 4, 0, 0, 0, time.UTC) }
	assert.Equal(t, "ledger_backup", job.Name())

	require.NoError(t, job.Run())
	require.Len(t, sink.names, 1)
	assert.Equal(t, "synthbench-runs-2024-06-10-040000.tar.gz", sink.names[0])

	files := unpack(t, sink.data[0])
	require.Contains(t, files, "runs.db")
	require.Contains(t, files, backupMetadataFile)

	var meta BackupMetadata
	require.NoError(t, json.Unmarshal(files[backupMetadataFile], &meta))
	assert.Equal(t, "runs", meta.Database)
	assert.Equal(t, int64(len(files["runs.db"])), meta.SizeBytes)
	assert.Regexp(t, `^sha256:[0-9a-f]{64}$`, meta.Checksum)

	// The snapshot is a working ledger
	restored := filepath.Join(t.TempDir(), "restored.db")
	require.NoError(t, os.WriteFile(restored, files["runs.db"], 0o644))
	rdb, err := database.New(database.Config{Path: restored, Profile: database.ProfileStandard, Name: "restored"})
	require.NoError(t, err)
	defer rdb.Close()
	got, err := ledger.NewRepository(rdb.Conn(), ledger.HostInfo{}, zerolog.Nop()).GetRun(context.Background(), "kept")
	require.NoError(t, err)
	assert.Equal(t, "bench-1", got.Host.Hostname)
}

func TestLedgerBackupJob_Errors(t *testing.T) {
	err := NewLedgerBackupJob(failingSource{}, &fakeSink{}, zerolog.Nop()).Run()
	assert.ErrorContains(t, err, "disk full")

	db, _ := testhelpers.NewTestDB(t, "runs")
	err = NewLedgerBackupJob(db, &fakeSink{err: errors.New("bucket gone")}, zerolog.Nop()).Run()
	assert.ErrorContains(t, err, "bucket gone")
}
