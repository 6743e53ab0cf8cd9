package disbursements

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/ledger"
	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// AllocationFunder tops up a program allocation inside the caller's transaction.
type AllocationFunder interface {
	TopUp(ctx context.Context, tx *gorm.DB, input ledger.TopUpInput) (*models.BudgetAllocation, error)
}

// Service tracks disbursement requests through their lifecycle.
type Service interface {
	Create(ctx context.Context, actor tenancy.Actor, input DraftInput) (*models.DisbursementRequest, error)
	UpdateDraft(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input DraftInput) (*models.DisbursementRequest, error)
	Transition(ctx context.Context, actor tenancy.Actor, id uuid.UUID, target enums.DisbursementStatus, input TransitionInput) (*models.DisbursementRequest, error)
	Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.DisbursementRequest, error)
	List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.DisbursementRequest, error)
}

// DraftInput holds the editable fields of a draft request.
type DraftInput struct {
	ProgramID             *uuid.UUID
	OperationalPeriod     string
	TotalBeneficiaries    int
	RequestedAmount       decimal.Decimal
	FoodCost              decimal.Decimal
	OperationalCost       decimal.Decimal
	TransportCost         decimal.Decimal
	UtilityCost           decimal.Decimal
	StaffCost             decimal.Decimal
	OtherCost             decimal.Decimal
	ProposalDocumentURL   *string
	BudgetPlanDocumentURL *string
}

type service struct {
	repo      Repository
	funder    AllocationFunder
	tx        txRunner
	outbox    outbox.Emitter
	logg      *logger.Logger
	tolerance decimal.Decimal
	now       func() time.Time
}

// NewService wires the disbursement tracker. tolerance is the permitted drift
// of the cost breakdown from the requested amount, as a fraction.
func NewService(repo Repository, funder AllocationFunder, tx txRunner, emitter outbox.Emitter, logg *logger.Logger, tolerance decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("disbursements repository required")
	}
	if funder == nil {
		return nil, fmt.Errorf("allocation funder required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if tolerance.IsNegative() {
		return nil, fmt.Errorf("breakdown tolerance must not be negative")
	}
	return &service{
		repo:      repo,
		funder:    funder,
		tx:        tx,
		outbox:    emitter,
		logg:      logg,
		tolerance: tolerance,
		now:       func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor tenancy.Actor, input DraftInput) (*models.DisbursementRequest, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if err := validateDraft(input); err != nil {
		return nil, err
	}
	request := &models.DisbursementRequest{
		TenantID:  actor.TenantID,
		Status:    enums.DisbursementStatusDraft,
		CreatedBy: actor.UserID,
	}
	applyDraft(request, input)
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create disbursement request")
	}
	return request, nil
}

func (s *service) UpdateDraft(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input DraftInput) (*models.DisbursementRequest, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if err := validateDraft(input); err != nil {
		return nil, err
	}
	var out *models.DisbursementRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		if request.Status != enums.DisbursementStatusDraft {
			return invalidTransition(request.Status, enums.DisbursementStatusDraft)
		}
		applyDraft(request, input)
		if err := repo.Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update disbursement draft")
		}
		out = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Transition(ctx context.Context, actor tenancy.Actor, id uuid.UUID, target enums.DisbursementStatus, input TransitionInput) (*models.DisbursementRequest, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if !target.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown disbursement status %q", target))
	}

	var out *models.DisbursementRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		from := request.Status
		rule, err := lookupTransition(from, target)
		if err != nil {
			return err
		}
		if !actor.HasRole(rule.roles...) {
			return pkgerrors.New(pkgerrors.CodeForbidden, "role not permitted to move request to "+string(target))
		}
		if rule.guard != nil {
			if err := rule.guard(request, input, s.tolerance); err != nil {
				return err
			}
		}
		if rule.apply != nil {
			rule.apply(request, input, s.now())
		}
		request.Status = target

		if rule.fundsProgram && request.ProgramID != nil {
			allocation, err := s.funder.TopUp(ctx, tx, ledger.TopUpInput{
				TenantID:   request.TenantID,
				ProgramID:  *request.ProgramID,
				Source:     enums.FundingSourceCentralGovernment,
				FiscalYear: request.ApprovedAt.Year(),
				Amount:     request.RequestedAmount,
				Actor:      actor.OutboxRef(),
			})
			if err != nil {
				return err
			}
			request.AllocationID = &allocation.ID
		}

		if err := repo.Save(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save disbursement request")
		}
		out = request
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventDisbursementTransitioned,
			AggregateType: enums.AggregateDisbursementRequest,
			AggregateID:   request.ID,
			TenantID:      request.TenantID,
			Actor:         actor.OutboxRef(),
			Data: payloads.DisbursementTransitionedEvent{
				RequestID:    request.ID,
				TenantID:     request.TenantID,
				From:         from,
				To:           target,
				AllocationID: request.AllocationID,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"disbursement_id": out.ID.String(),
		"status":          string(out.Status),
	})
	s.logg.Info(logCtx, "disbursement.transitioned")
	return out, nil
}

func (s *service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.DisbursementRequest, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	request, err := s.repo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return request, nil
}

func (s *service) List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.DisbursementRequest, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	requests, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list disbursement requests")
	}
	return requests, nil
}

func validateDraft(input DraftInput) error {
	if input.TotalBeneficiaries < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "total beneficiaries must not be negative")
	}
	if input.RequestedAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested amount must not be negative")
	}
	if input.ProgramID != nil && *input.ProgramID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "program id must not be empty")
	}
	for _, amount := range []decimal.Decimal{
		input.FoodCost, input.OperationalCost, input.TransportCost,
		input.UtilityCost, input.StaffCost, input.OtherCost,
	} {
		if amount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, "cost breakdown lines must not be negative")
		}
	}
	return nil
}

func applyDraft(request *models.DisbursementRequest, input DraftInput) {
	request.ProgramID = input.ProgramID
	request.OperationalPeriod = strings.TrimSpace(input.OperationalPeriod)
	request.TotalBeneficiaries = input.TotalBeneficiaries
	request.RequestedAmount = input.RequestedAmount
	request.FoodCost = input.FoodCost
	request.OperationalCost = input.OperationalCost
	request.TransportCost = input.TransportCost
	request.UtilityCost = input.UtilityCost
	request.StaffCost = input.StaffCost
	request.OtherCost = input.OtherCost
	if input.ProposalDocumentURL != nil {
		request.ProposalDocumentURL = input.ProposalDocumentURL
	}
	if input.BudgetPlanDocumentURL != nil {
		request.BudgetPlanDocumentURL = input.BudgetPlanDocumentURL
	}
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenancy.NotFound("disbursement request")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load disbursement request")
}
