package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/pkg/logger"
)

const (
	defaultPublishedRetentionDays = 30
	defaultParkedRetentionDays    = 90
	defaultPruneBatch             = 500
	// per category, per run
	maxPruneBatchesPerRun = 200
)

// OutboxRetentionJobParams configure the outbox pruning job.
type OutboxRetentionJobParams struct {
	Logger                 *logger.Logger
	DB                     txRunner
	Repository             outboxPruner
	PublishedRetentionDays int
	ParkedRetentionDays    int
	// MinAttempts is the attempt count at which the publisher parks an event.
	MinAttempts int
	BatchSize   int
}

type outboxPruner interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error)
	DeleteParkedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes delivered domain events, and events the
// publisher parked after exhausting retries, in bounded batches.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if params.MinAttempts <= 0 {
		return nil, fmt.Errorf("min attempts must be positive")
	}
	return &outboxRetentionJob{
		logg:          params.Logger,
		db:            params.DB,
		repo:          params.Repository,
		publishedDays: positiveOr(params.PublishedRetentionDays, defaultPublishedRetentionDays),
		parkedDays:    positiveOr(params.ParkedRetentionDays, defaultParkedRetentionDays),
		minAttempts:   params.MinAttempts,
		batch:         positiveOr(params.BatchSize, defaultPruneBatch),
		now:           time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg          *logger.Logger
	db            txRunner
	repo          outboxPruner
	publishedDays int
	parkedDays    int
	minAttempts   int
	batch         int
	now           func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	publishedCutoff := now.AddDate(0, 0, -j.publishedDays)
	parkedCutoff := now.AddDate(0, 0, -j.parkedDays)

	published, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.repo.DeletePublishedBefore(ctx, tx, publishedCutoff, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune published outbox events: %w", err)
	}
	parked, err := j.drain(ctx, func(tx *gorm.DB) (int64, error) {
		return j.repo.DeleteParkedBefore(ctx, tx, parkedCutoff, j.minAttempts, j.batch)
	})
	if err != nil {
		return fmt.Errorf("prune parked outbox events: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"published_cutoff": publishedCutoff,
		"parked_cutoff":    parkedCutoff,
		"published_pruned": published,
		"parked_pruned":    parked,
	})
	j.logg.Info(logCtx, "outbox.retention.complete")
	return nil
}

// drain runs one delete per transaction until a batch comes back short.
func (j *outboxRetentionJob) drain(ctx context.Context, deleteBatch func(tx *gorm.DB) (int64, error)) (int64, error) {
	var total int64
	for i := 0; i < maxPruneBatchesPerRun; i++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		var rows int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := deleteBatch(tx)
			rows = n
			return err
		})
		if err != nil {
			return total, err
		}
		total += rows
		if rows < int64(j.batch) {
			break
		}
	}
	return total, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}
