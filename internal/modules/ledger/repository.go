// Package ledger keeps a history of benchmark runs in SQLite.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/synthbench/internal/database"
	"github.com/aristath/synthbench/internal/modules/benchmark"
	"github.com/aristath/synthbench/internal/quantum"
	"github.com/rs/zerolog"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// Run is a recorded benchmark run.
type Run struct {
	ID         string    `json:"id"`
	Entry      string    `json:"entry"`
	Problem    string    `json:"problem"`
	Precision  int       `json:"precision"`
	NumQudits  int       `json:"num_qudits"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Host       HostInfo  `json:"host"`
	StartedAt  time.Time `json:"started_at"`
	RecordedAt time.Time `json:"recorded_at"`
	Branches   []Branch  `json:"branches,omitempty"`
}

// Branch is a recorded branch of a run.
type Branch struct {
	Label          string   `json:"label"`
	Distance       *float64 `json:"distance,omitempty"`
	ElapsedSeconds *float64 `json:"elapsed_seconds"`
	GateSet        []string `json:"gate_set"`
	GateCount      int      `json:"gate_count"`
	ArtifactPath   string   `json:"artifact_path,omitempty"`
	Error          string   `json:"error,omitempty"`
	HasSnapshot    bool     `json:"has_snapshot"`
}

// Repository stores runs in the "runs" database.
type Repository struct {
	db   *sql.DB
	host HostInfo
	log  zerolog.Logger
}

// NewRepository creates a run repository. host is stamped on every recorded run.
func NewRepository(db *sql.DB, host HostInfo, log zerolog.Logger) *Repository {
	return &Repository{
		db:   db,
		host: host,
		log:  log.With().Str("repo", "ledger").Logger(),
	}
}

// RecordRun stores a finished run and its branches in one transaction.
// Recording the same id again replaces the earlier record.
func (r *Repository) RecordRun(ctx context.Context, run *benchmark.RunResult) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	errText := ""
	if err := run.Err(); err != nil {
		errText = err.Error()
	}

	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, run.ID); err != nil {
			return fmt.Errorf("failed to replace run %s: %w", run.ID, err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO runs (id, entry, problem, precision, num_qudits, status, error,
				hostname, platform, cpu_model, cpu_cores, total_memory, started_at, recorded_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			run.ID, run.Entry, run.Problem, run.Precision, run.NumQudits, run.Status(), errText,
			r.host.Hostname, r.host.Platform, r.host.CPUModel, r.host.CPUCores, int64(r.host.TotalMemory),
			run.StartedAt.Unix(), time.Now().Unix(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert run %s: %w", run.ID, err)
		}

		for _, b := range run.Branches {
			if err := r.insertBranch(ctx, tx, run.ID, b); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *Repository) insertBranch(ctx context.Context, tx *sql.Tx, runID string, b benchmark.BranchResult) error {
	var (
		distance interface{}
		elapsed  interface{}
		snapshot []byte
		errText  string
	)
	if b.Elapsed != nil {
		elapsed = *b.Elapsed
	}
	if b.Err != nil {
		errText = b.Err.Error()
	} else {
		distance = b.Distance
	}
	if b.Circuit != nil {
		s, err := EncodeSnapshot(b.Circuit)
		if err != nil {
			r.log.Warn().Err(err).Str("run_id", runID).Str("branch", b.Label).Msg("Skipping circuit snapshot")
		} else {
			snapshot = s
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO branches (run_id, label, distance, elapsed_seconds, gate_set, gate_count,
			artifact_path, error, snapshot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, b.Label, distance, elapsed, strings.Join(b.GateSet, ","), b.GateCount,
		b.ArtifactPath, errText, snapshot,
	)
	if err != nil {
		return fmt.Errorf("failed to insert branch %s of run %s: %w", b.Label, runID, err)
	}
	return nil
}

const runColumns = `id, entry, problem, precision, num_qudits, status, error,
	hostname, platform, cpu_model, cpu_cores, total_memory, started_at, recorded_at`

func scanRun(row interface{ Scan(...interface{}) error }) (*Run, error) {
	var (
		run                 Run
		totalMemory         int64
		started, recordedAt int64
	)
	err := row.Scan(&run.ID, &run.Entry, &run.Problem, &run.Precision, &run.NumQudits, &run.Status, &run.Error,
		&run.Host.Hostname, &run.Host.Platform, &run.Host.CPUModel, &run.Host.CPUCores, &totalMemory,
		&started, &recordedAt)
	if err != nil {
		return nil, err
	}
	run.Host.TotalMemory = uint64(totalMemory)
	run.StartedAt = time.Unix(started, 0).UTC()
	run.RecordedAt = time.Unix(recordedAt, 0).UTC()
	return &run, nil
}

// ListRuns returns the most recent runs first, without branches. A limit of
// zero or less returns every run.
func (r *Repository) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, recorded_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun returns one run with its branches.
func (r *Repository) GetRun(ctx context.Context, id string) (*Run, error) {
	run, err := scanRun(r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT label, distance, elapsed_seconds, gate_set, gate_count, artifact_path, error,
			snapshot IS NOT NULL
		FROM branches WHERE run_id = ? ORDER BY rowid`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get branches of run %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			b        Branch
			distance sql.NullFloat64
			elapsed  sql.NullFloat64
			gateSet  string
		)
		if err := rows.Scan(&b.Label, &distance, &elapsed, &gateSet, &b.GateCount, &b.ArtifactPath, &b.Error, &b.HasSnapshot); err != nil {
			return nil, fmt.Errorf("failed to scan branch: %w", err)
		}
		if distance.Valid {
			b.Distance = &distance.Float64
		}
		if elapsed.Valid {
			b.ElapsedSeconds = &elapsed.Float64
		}
		b.GateSet = []string{}
		if gateSet != "" {
			b.GateSet = strings.Split(gateSet, ",")
		}
		run.Branches = append(run.Branches, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate branches: %w", err)
	}
	return run, nil
}

// Snapshot decodes the circuit stored for a branch.
func (r *Repository) Snapshot(ctx context.Context, runID, label string) (*quantum.Circuit, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT snapshot FROM branches WHERE run_id = ? AND label = ?`, runID, label).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("branch %s of run %s has no snapshot", label, runID)
	}
	return DecodeSnapshot(data)
}

// Prune deletes runs that started before cutoff, with their branches, and
// returns how many runs were removed.
func (r *Repository) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned runs: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("deleted", n).Time("cutoff", cutoff).Msg("Pruned old runs")
	}
	return n, nil
}

// Count returns the number of recorded runs.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return n, nil
}
