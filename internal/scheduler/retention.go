package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const pruneTimeout = time.Minute

// Pruner deletes history older than a cutoff
type Pruner interface {
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// cronLogger adapts zap.Logger to cron.Logger
type cronLogger struct {
	logger *zap.Logger
}

func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, zap.Any("details", keysAndValues))
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, zap.Error(err), zap.Any("details", keysAndValues))
}

// RetentionJob prunes the healing history on a cron schedule
type RetentionJob struct {
	logger    *zap.Logger
	cron      *cron.Cron
	history   Pruner
	retention time.Duration
	schedule  string
	entryID   cron.EntryID
	now       func() time.Time
}

// NewRetentionJob creates a job deleting records older than retention.
// schedule is a six-field cron expression including seconds.
func NewRetentionJob(history Pruner, schedule string, retention time.Duration, logger *zap.Logger) (*RetentionJob, error) {
	if retention <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRetention, retention)
	}

	logger = logger.Named("retention")
	cl := &cronLogger{logger: logger.Named("cron")}
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	job := &RetentionJob{
		logger:    logger,
		cron:      c,
		history:   history,
		retention: retention,
		schedule:  schedule,
		now:       time.Now,
	}

	entryID, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), pruneTimeout)
		defer cancel()
		if _, err := job.RunOnce(ctx); err != nil {
			job.logger.Error("Failed to prune healing history", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression: %w", err)
	}
	job.entryID = entryID

	return job, nil
}

// Start starts the cron scheduler
func (j *RetentionJob) Start() {
	j.cron.Start()
	j.logger.Info("Retention job scheduled",
		zap.String("schedule", j.schedule),
		zap.Duration("retention", j.retention),
		zap.Time("next_run", j.Next()))
}

// Stop stops the scheduler and waits for a running prune to finish
func (j *RetentionJob) Stop() {
	ctx := j.cron.Stop()
	<-ctx.Done()
}

// Next returns the next scheduled run, or the zero time before Start
func (j *RetentionJob) Next() time.Time {
	return j.cron.Entry(j.entryID).Next
}

// RunOnce deletes every record older than the retention window
func (j *RetentionJob) RunOnce(ctx context.Context) (int64, error) {
	cutoff := j.now().Add(-j.retention)
	deleted, err := j.history.DeleteBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete history before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return deleted, nil
}
