package transactions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	"github.com/sppg-platform/budget-engine/pkg/pagination"
)

// ListFilter narrows transaction listings. Results are ordered newest first.
type ListFilter struct {
	AllocationID *uuid.UUID
	Category     *enums.TransactionCategory
	From         *time.Time
	To           *time.Time
	Cursor       *pagination.Cursor
	Limit        int
}

// Repository manages persistence for budget transactions.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, txn *models.BudgetTransaction) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetTransaction, error)
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetTransaction, error)
	Save(ctx context.Context, txn *models.BudgetTransaction) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.BudgetTransaction, error)
	SumByAllocation(ctx context.Context, tenantID, allocationID uuid.UUID) (decimal.Decimal, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a transaction repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, txn *models.BudgetTransaction) error {
	return r.base.DB(ctx).Create(txn).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetTransaction, error) {
	var txn models.BudgetTransaction
	if err := r.base.Tenant(ctx, tenantID).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.BudgetTransaction, error) {
	var txn models.BudgetTransaction
	if err := r.base.TenantForUpdate(ctx, tenantID).Where("id = ?", id).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) Save(ctx context.Context, txn *models.BudgetTransaction) error {
	return r.base.DB(ctx).Save(txn).Error
}

func (r *repository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.base.Tenant(ctx, tenantID).Where("id = ?", id).Delete(&models.BudgetTransaction{}).Error
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.BudgetTransaction, error) {
	query := r.base.Tenant(ctx, tenantID)
	if filter.AllocationID != nil {
		query = query.Where("allocation_id = ?", *filter.AllocationID)
	}
	if filter.Category != nil {
		query = query.Where("category = ?", *filter.Category)
	}
	if filter.From != nil {
		query = query.Where("transaction_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("transaction_date < ?", *filter.To)
	}

	var rows []models.BudgetTransaction
	err := query.
		Scopes(pagination.KeysetDesc("transaction_date", filter.Cursor)).
		Limit(pagination.LimitWithBuffer(filter.Limit)).
		Find(&rows).Error
	return rows, err
}

func (r *repository) SumByAllocation(ctx context.Context, tenantID, allocationID uuid.UUID) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.base.DB(ctx).Raw(`
		SELECT COALESCE(SUM(amount), 0)
		FROM budget_transactions
		WHERE tenant_id = ? AND allocation_id = ?`, tenantID, allocationID).
		Row().Scan(&total)
	return total, err
}
