package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunPruner deletes ledger runs started before a cutoff
type RunPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}

// Maintainer reclaims space after large deletes
type Maintainer interface {
	WALCheckpoint(mode string) error
	IncrementalVacuum(pages int) error
}

// RetentionJob removes ledger runs older than the retention window.
// It should be scheduled to run daily.
type RetentionJob struct {
	pruner    RunPruner
	db        Maintainer
	retention time.Duration
	now       func() time.Time
	log       zerolog.Logger
}

// NewRetentionJob creates a retention job keeping the last days of runs.
// db may be nil, in which case no space is reclaimed after pruning.
func NewRetentionJob(pruner RunPruner, db Maintainer, days int, log zerolog.Logger) *RetentionJob {
	return &RetentionJob{
		pruner:    pruner,
		db:        db,
		retention: time.Duration(days) * 24 * time.Hour,
		now:       time.Now,
		log:       log.With().Str("job", "run_retention").Logger(),
	}
}

// Run executes the retention job
func (j *RetentionJob) Run() error {
	if j.retention <= 0 {
		j.log.Debug().Msg("Retention disabled, keeping all runs")
		return nil
	}

	cutoff := j.now().Add(-j.retention)
	deleted, err := j.pruner.Prune(context.Background(), cutoff)
	if err != nil {
		j.log.Error().Err(err).Msg("Failed to prune runs")
		return fmt.Errorf("failed to prune runs before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	if deleted == 0 {
		return nil
	}

	j.log.Info().
		Int64("deleted", deleted).
		Time("cutoff", cutoff).
		Msg("Pruned old runs")

	if j.db == nil {
		return nil
	}
	if err := j.db.WALCheckpoint("TRUNCATE"); err != nil {
		j.log.Warn().Err(err).Msg("WAL checkpoint after pruning failed")
	}
	if err := j.db.IncrementalVacuum(0); err != nil {
		j.log.Warn().Err(err).Msg("Incremental vacuum after pruning failed")
	}

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *RetentionJob) Name() string {
	return "run_retention"
}
