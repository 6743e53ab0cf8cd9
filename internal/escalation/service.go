package escalation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

const defaultTenantTimeout = 30 * time.Second

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// TenantLister yields the tenants the sweep visits.
type TenantLister interface {
	ListActive(ctx context.Context) ([]models.Tenant, error)
}

// TenantResult is one tenant's outcome. EscalatedIDs holds every item the pass
// touched; FlaggedIDs is the subset already at the top level. When Err is set
// the pass was rolled back and both lists are empty.
type TenantResult struct {
	TenantID     uuid.UUID   `json:"tenantId"`
	TenantCode   string      `json:"tenantCode"`
	EscalatedIDs []uuid.UUID `json:"escalatedIds"`
	FlaggedIDs   []uuid.UUID `json:"flaggedIds"`
	Err          error       `json:"-"`
}

// Result maps tenant id to that tenant's sweep outcome.
type Result map[uuid.UUID]TenantResult

// Failed lists the tenants whose pass returned an error.
func (r Result) Failed() []TenantResult {
	var out []TenantResult
	for _, res := range r {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// Service runs the approval escalation sweep.
type Service interface {
	RunEscalationSweep(ctx context.Context, asOf *time.Time) (Result, error)
}

// ServiceParams wires the sweep.
type ServiceParams struct {
	Tenants       TenantLister
	Approvals     approvals.Repository
	DB            txRunner
	Outbox        outbox.Emitter
	Metrics       *metrics.LedgerMetrics
	Logger        *logger.Logger
	TenantTimeout time.Duration
}

type service struct {
	tenants   TenantLister
	approvals approvals.Repository
	tx        txRunner
	outbox    outbox.Emitter
	metrics   *metrics.LedgerMetrics
	logg      *logger.Logger
	timeout   time.Duration
	now       func() time.Time
}

// NewService validates params and builds the sweep.
func NewService(params ServiceParams) (Service, error) {
	if params.Tenants == nil {
		return nil, fmt.Errorf("tenant lister required")
	}
	if params.Approvals == nil {
		return nil, fmt.Errorf("approvals repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	timeout := params.TenantTimeout
	if timeout <= 0 {
		timeout = defaultTenantTimeout
	}
	return &service{
		tenants:   params.Tenants,
		approvals: params.Approvals,
		tx:        params.DB,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		timeout:   timeout,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

// RunEscalationSweep escalates every overdue pending item across active
// tenants. A tenant failure is recorded in its entry and never stops the sweep;
// the returned error is reserved for failing to enumerate tenants.
func (s *service) RunEscalationSweep(ctx context.Context, asOf *time.Time) (Result, error) {
	at := s.now()
	if asOf != nil && !asOf.IsZero() {
		at = asOf.UTC()
	}
	tenants, err := s.tenants.ListActive(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list active tenants")
	}

	result := make(Result, len(tenants))
	for _, tenant := range tenants {
		if ctx.Err() != nil {
			result[tenant.ID] = TenantResult{
				TenantID:     tenant.ID,
				TenantCode:   tenant.Code,
				EscalatedIDs: []uuid.UUID{},
				FlaggedIDs:   []uuid.UUID{},
				Err:          ctx.Err(),
			}
			continue
		}
		res := s.sweepTenant(ctx, tenant, at)
		result[tenant.ID] = res

		logCtx := s.logg.WithFields(ctx, map[string]any{
			"tenant_id": tenant.ID.String(),
			"escalated": len(res.EscalatedIDs),
			"flagged":   len(res.FlaggedIDs),
		})
		if res.Err != nil {
			s.metrics.IncTenantFailure()
			s.logg.Error(logCtx, "escalation.tenant_failed", res.Err)
			continue
		}
		s.metrics.AddEscalations(metrics.EscalationPromoted, len(res.EscalatedIDs)-len(res.FlaggedIDs))
		s.metrics.AddEscalations(metrics.EscalationFlagged, len(res.FlaggedIDs))
		if len(res.EscalatedIDs) > 0 {
			s.logg.Info(logCtx, "escalation.tenant_swept")
		}
	}
	return result, nil
}

func (s *service) sweepTenant(ctx context.Context, tenant models.Tenant, asOf time.Time) (res TenantResult) {
	res = TenantResult{
		TenantID:     tenant.ID,
		TenantCode:   tenant.Code,
		EscalatedIDs: []uuid.UUID{},
		FlaggedIDs:   []uuid.UUID{},
	}
	defer func() {
		if r := recover(); r != nil {
			res.EscalatedIDs = []uuid.UUID{}
			res.FlaggedIDs = []uuid.UUID{}
			res.Err = pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("escalation pass panicked: %v", r))
		}
	}()

	tenantCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var escalated, flagged []uuid.UUID
	err := s.tx.WithTx(tenantCtx, func(tx *gorm.DB) error {
		// a serialization retry reruns this from scratch
		escalated, flagged = nil, nil
		repo := s.approvals.WithTx(tx)
		levels, err := repo.ListLevels(tenantCtx, tenant.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approval levels")
		}
		items, err := repo.LockEscalationCandidates(tenantCtx, tenant.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock pending approvals")
		}
		for i := range items {
			item := &items[i]
			changed, topLevel, err := s.escalateItem(tenantCtx, tx, repo, levels, item, asOf)
			if err != nil {
				return err
			}
			if !changed {
				continue
			}
			escalated = append(escalated, item.ID)
			if topLevel {
				flagged = append(flagged, item.ID)
			}
		}
		return nil
	})
	if err != nil {
		res.Err = err
		return res
	}
	if escalated != nil {
		res.EscalatedIDs = escalated
	}
	if flagged != nil {
		res.FlaggedIDs = flagged
	}
	return res
}

// escalateItem promotes item to the next level when its window has lapsed, or
// flags it when no higher level exists.
func (s *service) escalateItem(ctx context.Context, tx *gorm.DB, repo approvals.Repository, levels []models.ApprovalLevel, item *models.ApprovalItem, asOf time.Time) (bool, bool, error) {
	level, ok := approvals.LevelByNumber(levels, item.Level)
	if !ok {
		resolved, err := approvals.Resolve(item.Amount, levels)
		if err != nil {
			return false, false, err
		}
		level = resolved
	}
	deadline := approvals.EscalationDeadline(*level, item.PendingSince)
	if !asOf.After(deadline) {
		return false, false, nil
	}

	fromLevel := item.Level
	next, hasNext := approvals.NextLevel(levels, level.Level)
	if hasNext {
		item.Level = next.Level
		item.RequiredRole = next.RequiredRole
		item.PendingSince = asOf
	} else {
		item.Flagged = true
	}
	item.EscalationCount++
	escalatedAt := asOf
	item.EscalatedAt = &escalatedAt

	if err := repo.SaveItem(ctx, item); err != nil {
		return false, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save escalated approval")
	}
	err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventApprovalEscalated,
		AggregateType: enums.AggregateApprovalItem,
		AggregateID:   item.ID,
		TenantID:      item.TenantID,
		Data: payloads.ApprovalEscalatedEvent{
			ItemID:       item.ID,
			TenantID:     item.TenantID,
			FromLevel:    fromLevel,
			ToLevel:      item.Level,
			RequiredRole: item.RequiredRole,
			Flagged:      item.Flagged,
			Deadline:     deadline,
		},
	})
	if err != nil {
		return false, false, err
	}
	return true, !hasNext, nil
}
