package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

const (
	minFiscalYear = 2000
	maxFiscalYear = 2100
)

var hundred = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service owns allocation balances. Adjust is the only path that moves
// spent and remaining amounts in response to expenditure.
type Service interface {
	Create(ctx context.Context, actor tenancy.Actor, input CreateAllocationInput) (*models.BudgetAllocation, error)
	Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.BudgetAllocation, error)
	List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.BudgetAllocation, error)
	Adjust(ctx context.Context, tx *gorm.DB, tenantID, allocationID uuid.UUID, delta decimal.Decimal) (*models.BudgetAllocation, error)
	TopUp(ctx context.Context, tx *gorm.DB, input TopUpInput) (*models.BudgetAllocation, error)
	Correct(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input CorrectAllocationInput) (*models.BudgetAllocation, error)
	Delete(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error
	Summary(ctx context.Context, actor tenancy.Actor, fiscalYear int, asOf time.Time) (*Summary, error)
}

// CreateAllocationInput opens a new allocation envelope.
type CreateAllocationInput struct {
	ProgramID       uuid.UUID
	Source          enums.FundingSource
	FiscalYear      int
	AllocatedAmount decimal.Decimal
	Notes           *string
}

// CorrectAllocationInput replaces the allocated amount of an envelope.
type CorrectAllocationInput struct {
	AllocatedAmount decimal.Decimal
	Notes           *string
}

// TopUpInput adds funds to an envelope, creating it when absent.
type TopUpInput struct {
	TenantID   uuid.UUID
	ProgramID  uuid.UUID
	Source     enums.FundingSource
	FiscalYear int
	Amount     decimal.Decimal
	Actor      *outbox.ActorRef
}

// InsufficientBudgetDetails is attached to INSUFFICIENT_BUDGET errors.
type InsufficientBudgetDetails struct {
	AllocationID uuid.UUID       `json:"allocationId"`
	Attempted    decimal.Decimal `json:"attempted"`
	Available    decimal.Decimal `json:"available"`
}

// Summary reports a tenant's budget position for one fiscal year.
type Summary struct {
	FiscalYear         int              `json:"fiscalYear"`
	TotalAllocated     decimal.Decimal  `json:"totalAllocated"`
	TotalSpent         decimal.Decimal  `json:"totalSpent"`
	TotalRemaining     decimal.Decimal  `json:"totalRemaining"`
	UtilizationPct     decimal.Decimal  `json:"utilizationPct"`
	SpendByCategory    []CategorySpend  `json:"spendByCategory"`
	CurrentMonthSpend  decimal.Decimal  `json:"currentMonthSpend"`
	PreviousMonthSpend decimal.Decimal  `json:"previousMonthSpend"`
	MonthOverMonthPct  *decimal.Decimal `json:"monthOverMonthPct,omitempty"`
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outbox.Emitter
	metrics *metrics.LedgerMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// NewService wires the ledger service. metrics may be nil.
func NewService(repo Repository, tx txRunner, emitter outbox.Emitter, m *metrics.LedgerMetrics, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
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
	return &service{
		repo:    repo,
		tx:      tx,
		outbox:  emitter,
		metrics: m,
		logg:    logg,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, actor tenancy.Actor, input CreateAllocationInput) (*models.BudgetAllocation, error) {
	if err := actor.Require(tenancy.FinanceRoles...); err != nil {
		return nil, err
	}
	if input.ProgramID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id required")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid funding source")
	}
	if err := validateFiscalYear(input.FiscalYear); err != nil {
		return nil, err
	}
	if !input.AllocatedAmount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocated amount must be positive")
	}

	allocation := &models.BudgetAllocation{
		TenantID:        actor.TenantID,
		ProgramID:       input.ProgramID,
		Source:          input.Source,
		FiscalYear:      input.FiscalYear,
		AllocatedAmount: input.AllocatedAmount,
		SpentAmount:     decimal.Zero,
		RemainingAmount: input.AllocatedAmount,
		Notes:           input.Notes,
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, allocation); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeConflict, "allocation already exists for program, source and fiscal year")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create allocation")
		}
		return s.emitAllocation(ctx, tx, enums.EventAllocationCreated, allocation, nil, actor.OutboxRef())
	})
	if err != nil {
		return nil, err
	}
	return allocation, nil
}

func (s *service) Get(ctx context.Context, actor tenancy.Actor, id uuid.UUID) (*models.BudgetAllocation, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	allocation, err := s.repo.FindByID(ctx, actor.TenantID, id)
	if err != nil {
		return nil, mapLoadErr(err)
	}
	return allocation, nil
}

func (s *service) List(ctx context.Context, actor tenancy.Actor, filter ListFilter) ([]models.BudgetAllocation, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if filter.Source != nil && !filter.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid funding source")
	}
	allocations, err := s.repo.List(ctx, actor.TenantID, filter)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list allocations")
	}
	return allocations, nil
}

// Adjust moves delta from remaining to spent (negative delta moves it back)
// under a row lock. When tx is nil the adjustment runs in its own transaction.
func (s *service) Adjust(ctx context.Context, tx *gorm.DB, tenantID, allocationID uuid.UUID, delta decimal.Decimal) (*models.BudgetAllocation, error) {
	if tenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	if allocationID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocation id required")
	}
	if tx != nil {
		return s.adjust(ctx, tx, tenantID, allocationID, delta)
	}
	var out *models.BudgetAllocation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		out, err = s.adjust(ctx, tx, tenantID, allocationID, delta)
		return err
	})
	return out, err
}

func (s *service) adjust(ctx context.Context, tx *gorm.DB, tenantID, allocationID uuid.UUID, delta decimal.Decimal) (*models.BudgetAllocation, error) {
	repo := s.repo.WithTx(tx)
	allocation, err := repo.FindForUpdate(ctx, tenantID, allocationID)
	if err != nil {
		return nil, mapLoadErr(err)
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"allocation_id": allocation.ID.String(),
		"delta":         delta.StringFixed(2),
	})
	newRemaining := allocation.RemainingAmount.Sub(delta)
	if newRemaining.IsNegative() {
		s.metrics.IncAdjustment(metrics.OutcomeRejected)
		s.logg.Warn(s.logg.WithField(logCtx, "available", allocation.RemainingAmount.StringFixed(2)), "ledger.adjust.insufficient_budget")
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientBudget, "allocation has insufficient remaining budget").
			WithDetails(InsufficientBudgetDetails{
				AllocationID: allocation.ID,
				Attempted:    delta,
				Available:    allocation.RemainingAmount,
			})
	}
	newSpent := allocation.SpentAmount.Add(delta)
	if newSpent.IsNegative() {
		s.metrics.IncAdjustment(metrics.OutcomeRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "adjustment would make spent amount negative")
	}
	if delta.IsZero() {
		return allocation, nil
	}

	allocation.SpentAmount = newSpent
	allocation.RemainingAmount = newRemaining
	if delta.IsPositive() {
		now := s.now()
		allocation.LastSpentAt = &now
	}
	if err := repo.SaveBalances(ctx, allocation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update allocation balances")
	}
	s.metrics.IncAdjustment(metrics.OutcomeApplied)
	s.logg.Info(s.logg.WithField(logCtx, "remaining", newRemaining.StringFixed(2)), "ledger.adjust.applied")
	return allocation, nil
}

// TopUp increases the allocated and remaining amounts of the envelope for
// input's program, source and year, creating it at zero spend when missing.
// It always runs inside the caller's transaction.
func (s *service) TopUp(ctx context.Context, tx *gorm.DB, input TopUpInput) (*models.BudgetAllocation, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required for top up")
	}
	if input.TenantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "tenant context missing")
	}
	if input.ProgramID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "program id required")
	}
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid funding source")
	}
	if err := validateFiscalYear(input.FiscalYear); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "top up amount must be positive")
	}

	repo := s.repo.WithTx(tx)
	key := EnvelopeKey{ProgramID: input.ProgramID, Source: input.Source, FiscalYear: input.FiscalYear}
	allocation, err := repo.FindEnvelopeForUpdate(ctx, input.TenantID, key)
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		allocation = &models.BudgetAllocation{
			TenantID:        input.TenantID,
			ProgramID:       input.ProgramID,
			Source:          input.Source,
			FiscalYear:      input.FiscalYear,
			AllocatedAmount: input.Amount,
			SpentAmount:     decimal.Zero,
			RemainingAmount: input.Amount,
		}
		if err := repo.Create(ctx, allocation); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create allocation for top up")
		}
		return allocation, s.emitAllocation(ctx, tx, enums.EventAllocationCreated, allocation, &input.Amount, input.Actor)
	case err != nil:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation for top up")
	}

	allocation.AllocatedAmount = allocation.AllocatedAmount.Add(input.Amount)
	allocation.RemainingAmount = allocation.RemainingAmount.Add(input.Amount)
	if err := repo.SaveBalances(ctx, allocation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "top up allocation")
	}
	return allocation, s.emitAllocation(ctx, tx, enums.EventAllocationToppedUp, allocation, &input.Amount, input.Actor)
}

func (s *service) Correct(ctx context.Context, actor tenancy.Actor, id uuid.UUID, input CorrectAllocationInput) (*models.BudgetAllocation, error) {
	if err := actor.Require(tenancy.ManagerRoles...); err != nil {
		return nil, err
	}
	if input.AllocatedAmount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "allocated amount must not be negative")
	}

	var out *models.BudgetAllocation
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		allocation, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		if input.AllocatedAmount.LessThan(allocation.SpentAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "allocated amount cannot be below the amount already spent").
				WithDetails(map[string]string{"spent": allocation.SpentAmount.StringFixed(2)})
		}
		delta := input.AllocatedAmount.Sub(allocation.AllocatedAmount)
		allocation.AllocatedAmount = input.AllocatedAmount
		allocation.RemainingAmount = input.AllocatedAmount.Sub(allocation.SpentAmount)
		if input.Notes != nil {
			allocation.Notes = input.Notes
		}
		if err := repo.SaveBalances(ctx, allocation); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "correct allocation")
		}
		out = allocation
		return s.emitAllocation(ctx, tx, enums.EventAllocationCorrected, allocation, &delta, actor.OutboxRef())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) Delete(ctx context.Context, actor tenancy.Actor, id uuid.UUID) error {
	if err := actor.Require(tenancy.ManagerRoles...); err != nil {
		return err
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		allocation, err := repo.FindForUpdate(ctx, actor.TenantID, id)
		if err != nil {
			return mapLoadErr(err)
		}
		count, err := repo.CountTransactions(ctx, actor.TenantID, id)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count allocation transactions")
		}
		if count > 0 {
			return pkgerrors.New(pkgerrors.CodeHasDependents, "allocation has recorded transactions").
				WithDetails(map[string]int64{"transactions": count})
		}
		if err := repo.Delete(ctx, actor.TenantID, id); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete allocation")
		}
		return s.emitAllocation(ctx, tx, enums.EventAllocationDeleted, allocation, nil, actor.OutboxRef())
	})
}

func (s *service) Summary(ctx context.Context, actor tenancy.Actor, fiscalYear int, asOf time.Time) (*Summary, error) {
	if err := actor.Require(); err != nil {
		return nil, err
	}
	if err := validateFiscalYear(fiscalYear); err != nil {
		return nil, err
	}
	if asOf.IsZero() {
		asOf = s.now()
	}

	totals, err := s.repo.Totals(ctx, actor.TenantID, fiscalYear)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum allocations")
	}
	byCategory, err := s.repo.SpendByCategory(ctx, actor.TenantID, fiscalYear)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum spend by category")
	}

	if byCategory == nil {
		byCategory = []CategorySpend{}
	}

	asOf = asOf.UTC()
	monthStart := time.Date(asOf.Year(), asOf.Month(), 1, 0, 0, 0, 0, time.UTC)
	current, err := s.repo.SpendBetween(ctx, actor.TenantID, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum current month spend")
	}
	previous, err := s.repo.SpendBetween(ctx, actor.TenantID, monthStart.AddDate(0, -1, 0), monthStart)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sum previous month spend")
	}

	summary := &Summary{
		FiscalYear:         fiscalYear,
		TotalAllocated:     totals.Allocated,
		TotalSpent:         totals.Spent,
		TotalRemaining:     totals.Remaining,
		UtilizationPct:     decimal.Zero,
		SpendByCategory:    byCategory,
		CurrentMonthSpend:  current,
		PreviousMonthSpend: previous,
	}
	if totals.Allocated.IsPositive() {
		summary.UtilizationPct = totals.Spent.Div(totals.Allocated).Mul(hundred).Round(2)
	}
	if previous.IsPositive() {
		pct := current.Sub(previous).Div(previous).Mul(hundred).Round(2)
		summary.MonthOverMonthPct = &pct
	}
	return summary, nil
}

func (s *service) emitAllocation(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, allocation *models.BudgetAllocation, delta *decimal.Decimal, actor *outbox.ActorRef) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateBudgetAllocation,
		AggregateID:   allocation.ID,
		TenantID:      allocation.TenantID,
		Actor:         actor,
		Data: payloads.AllocationEvent{
			AllocationID:    allocation.ID,
			TenantID:        allocation.TenantID,
			ProgramID:       allocation.ProgramID,
			Source:          allocation.Source,
			FiscalYear:      allocation.FiscalYear,
			AllocatedAmount: allocation.AllocatedAmount,
			SpentAmount:     allocation.SpentAmount,
			RemainingAmount: allocation.RemainingAmount,
			Delta:           delta,
		},
	})
}

func validateFiscalYear(year int) error {
	if year < minFiscalYear || year > maxFiscalYear {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("fiscal year must be between %d and %d", minFiscalYear, maxFiscalYear))
	}
	return nil
}

func mapLoadErr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tenancy.NotFound("allocation")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load allocation")
}
