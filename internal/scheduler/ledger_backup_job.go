package scheduler

import (
	"archive/tar"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
)

// BackupSource writes a consistent copy of a database to a file
type BackupSource interface {
	Name() string
	BackupTo(ctx context.Context, path string) error
}

// BackupSink stores a finished archive under name
type BackupSink interface {
	Mirror(ctx context.Context, name string, data []byte) error
}

// BackupMetadata describes an archive's contents
type BackupMetadata struct {
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database"`
	Filename  string    `json:"filename"`
	SizeBytes int64     `json:"size_bytes"`
	Checksum  string    `json:"checksum"`
}

const backupMetadataFile = "backup-metadata.json"

// LedgerBackupJob snapshots the ledger into a tar.gz archive, with a metadata
// file carrying its checksum, and uploads it.
type LedgerBackupJob struct {
	db      BackupSource
	sink    BackupSink
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// NewLedgerBackupJob creates a backup job uploading db's snapshots to sink
func NewLedgerBackupJob(db BackupSource, sink BackupSink, log zerolog.Logger) *LedgerBackupJob {
	return &LedgerBackupJob{
		db:      db,
		sink:    sink,
		timeout: 10 * time.Minute,
		now:     time.Now,
		log:     log.With().Str("job", "ledger_backup").Logger(),
	}
}

// Name returns the job name
func (j *LedgerBackupJob) Name() string {
	return "ledger_backup"
}

// Run executes the backup
func (j *LedgerBackupJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	j.log.Info().Msg("Starting ledger backup")
	start := j.now()

	stagingDir, err := os.MkdirTemp("", "synthbench-backup-")
	if err != nil {
		return fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	filename := j.db.Name() + ".db"
	dbPath := filepath.Join(stagingDir, filename)
	if err := j.db.BackupTo(ctx, dbPath); err != nil {
		return fmt.Errorf("failed to snapshot %s: %w", j.db.Name(), err)
	}

	info, err := os.Stat(dbPath)
	if err != nil {
		return fmt.Errorf("failed to stat %s backup: %w", j.db.Name(), err)
	}
	checksum, err := fileChecksum(dbPath)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum for %s: %w", j.db.Name(), err)
	}

	metadata, err := json.MarshalIndent(BackupMetadata{
		Timestamp: start.UTC(),
		Database:  j.db.Name(),
		Filename:  filename,
		SizeBytes: info.Size(),
		Checksum:  checksum,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	archive, err := buildArchive(dbPath, filename, metadata, start)
	if err != nil {
		return fmt.Errorf("failed to create archive: %w", err)
	}

	archiveName := fmt.Sprintf("synthbench-%s-%s.tar.gz", j.db.Name(), start.UTC().Format("2006-01-02-150405"))
	if err := j.sink.Mirror(ctx, archiveName, archive); err != nil {
		return fmt.Errorf("failed to upload backup: %w", err)
	}

	j.log.Info().
		Dur("duration_ms", time.Since(start)).
		Str("archive", archiveName).
		Int("size_bytes", len(archive)).
		Msg("Ledger backup completed")
	return nil
}

// fileChecksum calculates the SHA256 checksum of a file
func fileChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

func buildArchive(dbPath, dbName string, metadata []byte, modTime time.Time) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	if err := addFileToArchive(tw, dbPath, dbName); err != nil {
		return nil, err
	}
	header := &tar.Header{Name: backupMetadataFile, Size: int64(len(metadata)), Mode: 0o644, ModTime: modTime}
	if err := tw.WriteHeader(header); err != nil {
		return nil, err
	}
	if _, err := tw.Write(metadata); err != nil {
		return nil, err
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gz.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFileToArchive(tw *tar.Writer, path, nameInArchive string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	header := &tar.Header{
		Name:    nameInArchive,
		Size:    info.Size(),
		Mode:    int64(info.Mode().Perm()),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(header); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}
