package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// EnvelopeKey identifies the single allocation a program may hold per source and year.
type EnvelopeKey struct {
	ProgramID  uuid.UUID
	Source     enums.FundingSource
	FiscalYear int
}

// ListFilter narrows allocation listings.
type ListFilter struct {
	FiscalYear *int
	Source     *enums.FundingSource
	ProgramID  *uuid.UUID
}

// Totals aggregates the balances of a tenant's allocations.
type Totals struct {
	Allocated decimal.Decimal
	Spent     decimal.Decimal
	Remaining decimal.Decimal
}

// CategorySpend is the recorded spend for one transaction category.
type CategorySpend struct {
	Category enums.TransactionCategory `json:"category"`
	Amount   decimal.Decimal           `json:"amount"`
}

// Repository manages persistence for budget allocations.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, allocation *models.BudgetAllocation) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetAllocation, error)
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetAllocation, error)
	FindEnvelopeForUpdate(ctx context.Context, tenantID uuid.UUID, key EnvelopeKey) (*models.BudgetAllocation, error)
	SaveBalances(ctx context.Context, allocation *models.BudgetAllocation) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	CountTransactions(ctx context.Context, tenantID, allocationID uuid.UUID) (int64, error)
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.BudgetAllocation, error)
	Totals(ctx context.Context, tenantID uuid.UUID, fiscalYear int) (Totals, error)
	SpendByCategory(ctx context.Context, tenantID uuid.UUID, fiscalYear int) ([]CategorySpend, error)
	SpendBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, allocation *models.BudgetAllocation) error {
	return r.base.DB(ctx).Create(allocation).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetAllocation, error) {
	var allocation models.BudgetAllocation
	if err := r.base.Tenant(ctx, tenantID).Where("id = ?", id).First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetAllocation, error) {
	var allocation models.BudgetAllocation
	if err := r.base.TenantForUpdate(ctx, tenantID).Where("id = ?", id).First(&allocation).Error; err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repository) FindEnvelopeForUpdate(ctx context.Context, tenantID uuid.UUID, key EnvelopeKey) (*models.BudgetAllocation, error) {
	var allocation models.BudgetAllocation
	err := r.base.TenantForUpdate(ctx, tenantID).
		Where("program_id = ? AND source = ? AND fiscal_year = ?", key.ProgramID, key.Source, key.FiscalYear).
		First(&allocation).Error
	if err != nil {
		return nil, err
	}
	return &allocation, nil
}

func (r *repository) SaveBalances(ctx context.Context, allocation *models.BudgetAllocation) error {
	return r.base.Tenant(ctx, allocation.TenantID).
		Model(&models.BudgetAllocation{}).
		Where("id = ?", allocation.ID).
		Updates(map[string]any{
			"allocated_amount": allocation.AllocatedAmount,
			"spent_amount":     allocation.SpentAmount,
			"remaining_amount": allocation.RemainingAmount,
			"last_spent_at":    allocation.LastSpentAt,
			"notes":            allocation.Notes,
			"updated_at":       time.Now().UTC(),
		}).Error
}

func (r *repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.base.Tenant(ctx, tenantID).Where("id = ?", id).Delete(&models.BudgetAllocation{}).Error
}

func (r *repository) CountTransactions(ctx context.Context, tenantID, allocationID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.Tenant(ctx, tenantID).
		Model(&models.BudgetTransaction{}).
		Where("allocation_id = ?", allocationID).
		Count(&count).Error
	return count, err
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.BudgetAllocation, error) {
	query := r.base.Tenant(ctx, tenantID)
	if filter.FiscalYear != nil {
		query = query.Where("fiscal_year = ?", *filter.FiscalYear)
	}
	if filter.Source != nil {
		query = query.Where("source = ?", *filter.Source)
	}
	if filter.ProgramID != nil {
		query = query.Where("program_id = ?", *filter.ProgramID)
	}
	var allocations []models.BudgetAllocation
	if err := query.Order("fiscal_year DESC").Order("created_at ASC").Find(&allocations).Error; err != nil {
		return nil, err
	}
	return allocations, nil
}

func (r *repository) Totals(ctx context.Context, tenantID uuid.UUID, fiscalYear int) (Totals, error) {
	var totals Totals
	err := r.base.DB(ctx).Raw(`
		SELECT COALESCE(SUM(allocated_amount), 0) AS allocated,
		       COALESCE(SUM(spent_amount), 0) AS spent,
		       COALESCE(SUM(remaining_amount), 0) AS remaining
		FROM budget_allocations
		WHERE tenant_id = ? AND fiscal_year = ?`, tenantID, fiscalYear).
		Scan(&totals).Error
	return totals, err
}

func (r *repository) SpendByCategory(ctx context.Context, tenantID uuid.UUID, fiscalYear int) ([]CategorySpend, error) {
	var rows []CategorySpend
	err := r.base.DB(ctx).Raw(`
		SELECT t.category AS category, COALESCE(SUM(t.amount), 0) AS amount
		FROM budget_transactions t
		JOIN budget_allocations a ON a.id = t.allocation_id
		WHERE t.tenant_id = ? AND a.fiscal_year = ?
		GROUP BY t.category
		ORDER BY t.category`, tenantID, fiscalYear).
		Scan(&rows).Error
	return rows, err
}

func (r *repository) SpendBetween(ctx context.Context, tenantID uuid.UUID, from, to time.Time) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.base.DB(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0)
		FROM budget_transactions
		WHERE tenant_id = ? AND transaction_date >= ? AND transaction_date < ?`, tenantID, from, to).
		Row().Scan(&total)
	return total, err
}
