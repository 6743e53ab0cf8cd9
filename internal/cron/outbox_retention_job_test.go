package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/pkg/logger"
)

func TestOutboxRetentionJobUsesSeparateCutoffs(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	repo := &fakeOutboxPruner{}
	job := newOutboxRetentionJob(t, repo, 10)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, time.Date(2026, 1, 11, 0, 0, 0, 0, time.UTC), repo.publishedCutoff)
	assert.Equal(t, time.Date(2025, 11, 12, 0, 0, 0, 0, time.UTC), repo.parkedCutoff)
	assert.Equal(t, 7, repo.minAttempts)
	assert.Equal(t, 1, repo.publishedCalls)
	assert.Equal(t, 1, repo.parkedCalls)
}

func TestOutboxRetentionJobDrainsFullBatches(t *testing.T) {
	repo := &fakeOutboxPruner{publishedRows: []int64{3, 3, 1}}
	job := newOutboxRetentionJob(t, repo, 3)

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 3, repo.publishedCalls)
	assert.Equal(t, 1, repo.parkedCalls)
}

func TestOutboxRetentionJobStopsOnCanceledContext(t *testing.T) {
	repo := &fakeOutboxPruner{}
	job := newOutboxRetentionJob(t, repo, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := job.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, repo.publishedCalls)
}

func TestOutboxRetentionJobPropagatesError(t *testing.T) {
	repo := &fakeOutboxPruner{err: errors.New("boom")}
	job := newOutboxRetentionJob(t, repo, 10)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prune published outbox events")
}

func TestNewOutboxRetentionJobRequiresMinAttempts(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         outboxRetentionTxRunner{},
		Repository: &fakeOutboxPruner{},
	})
	require.Error(t, err)
}

func newOutboxRetentionJob(t *testing.T, repo *fakeOutboxPruner, batch int) *outboxRetentionJob {
	t.Helper()
	jobIface, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:          outboxRetentionTxRunner{},
		Repository:  repo,
		MinAttempts: 7,
		BatchSize:   batch,
	})
	require.NoError(t, err)
	job, ok := jobIface.(*outboxRetentionJob)
	require.True(t, ok)
	return job
}

type fakeOutboxPruner struct {
	publishedCutoff time.Time
	parkedCutoff    time.Time
	minAttempts     int
	publishedCalls  int
	parkedCalls     int
	publishedRows   []int64
	err             error
}

func (f *fakeOutboxPruner) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, _ int) (int64, error) {
	f.publishedCalls++
	f.publishedCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	if len(f.publishedRows) == 0 {
		return 0, nil
	}
	n := f.publishedRows[0]
	f.publishedRows = f.publishedRows[1:]
	return n, nil
}

func (f *fakeOutboxPruner) DeleteParkedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, minAttempts, _ int) (int64, error) {
	f.parkedCalls++
	f.parkedCutoff = cutoff
	f.minAttempts = minAttempts
	return 0, nil
}

type outboxRetentionTxRunner struct{}

func (outboxRetentionTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}
