package approvals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service manages approval thresholds and the items routed through them.
type Service interface {
	ListLevels(ctx context.Context, actor tenancy.Actor) ([]models.ApprovalLevel, error)
	ReplaceLevels(ctx context.Context, actor tenancy.Actor, input []LevelInput) ([]models.ApprovalLevel, error)
	ResolveLevel(ctx context.Context, actor tenancy.Actor, amount decimal.Decimal) (*models.ApprovalLevel, error)
	Submit(ctx context.Context, actor tenancy.Actor, input SubmitInput) (*models.ApprovalItem, error)
	Decide(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input DecideInput) (*models.ApprovalItem, error)
	Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.ApprovalItem, error)
	ListPending(ctx context.Context, actor tenancy.Actor, filter PendingFilter) ([]models.ApprovalItem, error)
}

// LevelInput configures one approval tier. A nil MaxAmount is unbounded.
type LevelInput struct {
	Level          int
	Label          string
	MinAmount      decimal.Decimal
	MaxAmount      *decimal.Decimal
	RequiredRole   enums.MemberRole
	AllowParallel  bool
	EscalationDays int
}

// SubmitInput routes a procurement action into the approval flow.
type SubmitInput struct {
	ReferenceType string
	ReferenceID   uuid.UUID
	Description   string
	Amount        decimal.Decimal
}

// DecideInput approves or rejects a pending item.
type DecideInput struct {
	Decision enums.ApprovalDecision
	Note     *string
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outbox.Emitter
	now    func() time.Time
}

// NewService wires the approvals service.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("approvals repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:   repo,
		tx:     tx,
		outbox: emitter,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) ListLevels(ctx context.Context, actor tenancy.Actor) ([]models.ApprovalLevel, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListLevels(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approval levels")
	}
	return levels, nil
}

func (s *service) ReplaceLevels(ctx context.Context, actor tenancy.Actor, input []LevelInput) ([]models.ApprovalLevel, error) {
	if err := actor.Require(tenancy.ManagerRoles...); err != nil {
		return nil, err
	}
	levels := make([]models.ApprovalLevel, 0, len(input))
	for _, in := range input {
		level := models.ApprovalLevel{
			TenantID:       actor.TenantID,
			Level:          in.Level,
			Label:          strings.TrimSpace(in.Label),
			MinAmount:      in.MinAmount,
			RequiredRole:   in.RequiredRole,
			AllowParallel:  in.AllowParallel,
			EscalationDays: in.EscalationDays,
		}
		if level.Label == "" {
			level.Label = fmt.Sprintf("Level %d", in.Level)
		}
		if in.MaxAmount != nil {
			level.MaxAmount = decimal.NewNullDecimal(*in.MaxAmount)
		}
		levels = append(levels, level)
	}
	if err := ValidateLevels(levels); err != nil {
		return nil, err
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReplaceLevels(ctx, actor.TenantID, levels); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "replace approval levels")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	stored, err := s.repo.ListLevels(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approval levels")
	}
	return stored, nil
}

func (s *service) ResolveLevel(ctx context.Context, actor tenancy.Actor, amount decimal.Decimal) (*models.ApprovalLevel, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	levels, err := s.repo.ListLevels(ctx, actor.TenantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approval levels")
	}
	return Resolve(amount, levels)
}

func (s *service) Submit(ctx context.Context, actor tenancy.Actor, input SubmitInput) (*models.ApprovalItem, error) {
	if err := actor.Require(tenancy.ProcurementRoles...); err != nil {
		return nil, err
	}
	referenceType := strings.TrimSpace(input.ReferenceType)
	if referenceType == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference type required")
	}
	if input.ReferenceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "reference id required")
	}
	description := strings.TrimSpace(input.Description)
	if description == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "description required")
	}

	var item *models.ApprovalItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		levels, err := repo.ListLevels(ctx, actor.TenantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list approval levels")
		}
		level, err := Resolve(input.Amount, levels)
		if err != nil {
			return err
		}
		item = &models.ApprovalItem{
			TenantID:      actor.TenantID,
			ReferenceType: referenceType,
			ReferenceID:   input.ReferenceID,
			Description:   description,
			Amount:        input.Amount,
			Level:         level.Level,
			RequiredRole:  level.RequiredRole,
			Status:        enums.ApprovalItemStatusPending,
			PendingSince:  s.now(),
			SubmittedBy:   actor.UserID,
		}
		if err := repo.CreateItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create approval item")
		}
		return s.emit(ctx, tx, enums.EventApprovalSubmitted, item, actor)
	})
	if err != nil {
		return nil, err
	}
	return item, nil
}

func (s *service) Decide(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input DecideInput) (*models.ApprovalItem, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	var target enums.ApprovalItemStatus
	switch input.Decision {
	case enums.ApprovalDecisionApprove:
		target = enums.ApprovalItemStatusApproved
	case enums.ApprovalDecisionReject:
		target = enums.ApprovalItemStatusRejected
		if input.Note == nil || strings.TrimSpace(*input.Note) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "rejection note required")
		}
	default:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be APPROVE or REJECT")
	}

	var out *models.ApprovalItem
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		item, err := repo.FindItemForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		if item.Status != enums.ApprovalItemStatusPending {
			return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "approval item already decided").
				WithDetails(map[string]string{"current": string(item.Status), "attempted": string(target)})
		}
		if actor.Role != item.RequiredRole && !actor.HasRole(tenancy.ManagerRoles...) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "approval requires role "+string(item.RequiredRole))
		}
		if item.SubmittedBy == actor.UserID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "submitter cannot decide own approval item")
		}

		now := s.now()
		decidedBy := actor.UserID
		item.Status = target
		item.DecidedBy = &decidedBy
		item.DecidedAt = &now
		item.DecisionNote = input.Note
		if err := repo.SaveItem(ctx, item); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record approval decision")
		}
		out = item
		return s.emit(ctx, tx, enums.EventApprovalDecided, item, actor)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.ApprovalItem, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	item, err := s.repo.FindItem(ctx, actor.TenantID, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return item, nil
}

func (s *service) ListPending(ctx context.Context, actor tenancy.Actor, filter PendingFilter) ([]models.ApprovalItem, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if filter.RequiredRole != nil && !filter.RequiredRole.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid role filter")
	}
	items, err := s.repo.ListPending(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending approvals")
	}
	return items, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, item *models.ApprovalItem, actor tenancy.Actor) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateApprovalItem,
		AggregateID:   item.ID,
		TenantID:      item.TenantID,
		Actor:         actor.OutboxRef(),
		Data: payloads.ApprovalEvent{
			ItemID:       item.ID,
			TenantID:     item.TenantID,
			Level:        item.Level,
			RequiredRole: item.RequiredRole,
			Amount:       item.Amount,
			Status:       item.Status,
		},
	})
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenancy.NotFound("approval item")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load approval item")
}
