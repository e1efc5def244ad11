package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
}

func (p *fakePruner) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cutoffs = append(p.cutoffs, before)
	if p.err != nil {
		return 0, p.err
	}
	return 3, nil
}

func (p *fakePruner) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.cutoffs)
}

func TestRetentionJob_RunOnce(t *testing.T) {
	pruner := &fakePruner{}
	job, err := NewRetentionJob(pruner, "0 0 3 * * *", 24*time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	now := time.Date(2024, 6, 10, 3, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	deleted, err := job.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	require.Len(t, pruner.cutoffs, 1)
	assert.Equal(t, now.Add(-24*time.Hour), pruner.cutoffs[0])
}

func TestRetentionJob_RunOnceError(t *testing.T) {
	pruner := &fakePruner{err: errors.New("database is locked")}
	job, err := NewRetentionJob(pruner, "0 0 3 * * *", time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = job.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
}

func TestNewRetentionJob_Invalid(t *testing.T) {
	_, err := NewRetentionJob(&fakePruner{}, "not a cron", time.Hour, zaptest.NewLogger(t))
	require.Error(t, err)

	_, err = NewRetentionJob(&fakePruner{}, "0 0 3 * * *", 0, zaptest.NewLogger(t))
	require.ErrorIs(t, err, ErrInvalidRetention)
}

func TestRetentionJob_Scheduled(t *testing.T) {
	pruner := &fakePruner{}
	job, err := NewRetentionJob(pruner, "* * * * * *", time.Hour, zaptest.NewLogger(t))
	require.NoError(t, err)

	job.Start()
	assert.False(t, job.Next().IsZero())

	require.Eventually(t, func() bool {
		return pruner.calls() > 0
	}, 3*time.Second, 50*time.Millisecond)

	job.Stop()
}
