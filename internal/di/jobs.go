package di

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/synthbench/internal/config"
	"github.com/aristath/synthbench/internal/scheduler"
)

// RegisterJobs creates the background jobs and schedules them on sched.
// Without a ledger there is nothing to maintain.
func RegisterJobs(container *Container, cfg *config.Config, sched *scheduler.Scheduler, log zerolog.Logger) (*JobInstances, error) {
	jobs := &JobInstances{}
	if container.Ledger == nil {
		return jobs, nil
	}

	jobs.Retention = scheduler.NewRetentionJob(container.Ledger, container.LedgerDB, cfg.RetentionDays, log)
	if err := sched.AddJob(cfg.RetentionSchedule, jobs.Retention); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", jobs.Retention.Name(), err)
	}

	jobs.LedgerCheck = scheduler.NewLedgerCheckJob(container.LedgerDB, log)
	if err := sched.AddJob(cfg.CheckSchedule, jobs.LedgerCheck); err != nil {
		return nil, fmt.Errorf("failed to register %s job: %w", jobs.LedgerCheck.Name(), err)
	}

	// Backups share the artifact bucket
	if container.Mirror != nil {
		jobs.Backup = scheduler.NewLedgerBackupJob(container.LedgerDB, container.Mirror, log)
		if err := sched.AddJob(cfg.BackupSchedule, jobs.Backup); err != nil {
			return nil, fmt.Errorf("failed to register %s job: %w", jobs.Backup.Name(), err)
		}
	}

	return jobs, nil
}
