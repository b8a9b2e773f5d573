package jobs

import (
	"context"
	"time"

	"marketpulse/internal/history"
	"marketpulse/pkg/logger"
)

// RetentionJob prunes quality score history past the retention period
type RetentionJob struct {
	repo      *history.Repository
	retention time.Duration
	logger    *logger.Logger
}

// NewRetentionJob creates a new history retention job
func NewRetentionJob(repo *history.Repository, retentionDays int, log *logger.Logger) *RetentionJob {
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &RetentionJob{
		repo:      repo,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		logger:    log,
	}
}

// Name returns the job name
func (j *RetentionJob) Name() string {
	return "history_retention"
}

// Schedule returns the cron schedule (every day at 3 AM)
func (j *RetentionJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes the history prune
func (j *RetentionJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting scheduled history prune")

	removed, err := j.repo.Prune(ctx, j.retention)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("History prune completed")
	}

	return nil
}
