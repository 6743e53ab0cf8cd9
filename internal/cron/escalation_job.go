package cron

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/multierr"

	"github.com/sppg-platform/budget-engine/internal/escalation"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

type escalationSweeper interface {
	RunEscalationSweep(ctx context.Context, asOf *time.Time) (escalation.Result, error)
}

// EscalationJobParams configure the approval escalation job.
type EscalationJobParams struct {
	Logger  *logger.Logger
	Sweeper escalationSweeper
}

// NewEscalationJob runs the approval escalation sweep on each cron cycle.
func NewEscalationJob(params EscalationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("escalation sweeper required")
	}
	return &escalationJob{logg: params.Logger, sweeper: params.Sweeper}, nil
}

type escalationJob struct {
	logg    *logger.Logger
	sweeper escalationSweeper
}

func (j *escalationJob) Name() string { return "approval-escalation" }

// Run reports the sweep as failed when any tenant pass failed. Tenants that
// succeeded keep their escalations either way.
func (j *escalationJob) Run(ctx context.Context) error {
	result, err := j.sweeper.RunEscalationSweep(ctx, nil)
	if err != nil {
		return fmt.Errorf("escalation sweep: %w", err)
	}

	tenants := make([]escalation.TenantResult, 0, len(result))
	for _, res := range result {
		tenants = append(tenants, res)
	}
	sort.Slice(tenants, func(i, k int) bool { return tenants[i].TenantCode < tenants[k].TenantCode })

	var (
		errs      error
		escalated int
		flagged   int
	)
	for _, res := range tenants {
		if res.Err != nil {
			errs = multierr.Append(errs, fmt.Errorf("tenant %s: %w", res.TenantCode, res.Err))
			continue
		}
		escalated += len(res.EscalatedIDs)
		flagged += len(res.FlaggedIDs)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"tenants":        len(tenants),
		"tenants_failed": len(multierr.Errors(errs)),
		"escalated":      escalated,
		"flagged":        flagged,
	})
	j.logg.Info(logCtx, "escalation.sweep.complete")
	return errs
}
