package procurement

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// ListFilter narrows payable listings.
type ListFilter struct {
	Status       *enums.PaymentStatus
	SupplierName string
}

// Repository persists supplier payables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payment *models.ProcurementPayment) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ProcurementPayment, error)
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.ProcurementPayment, error)
	Save(ctx context.Context, payment *models.ProcurementPayment) error
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.ProcurementPayment, error)
	ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]models.ProcurementPayment, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a payables repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, payment *models.ProcurementPayment) error {
	return r.base.DB(ctx).Create(payment).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.ProcurementPayment, error) {
	var payment models.ProcurementPayment
	if err := r.base.Tenant(ctx, tenantID).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.ProcurementPayment, error) {
	var payment models.ProcurementPayment
	if err := r.base.TenantForUpdate(ctx, tenantID).Where("id = ?", id).First(&payment).Error; err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repository) Save(ctx context.Context, payment *models.ProcurementPayment) error {
	return r.base.DB(ctx).Save(payment).Error
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.ProcurementPayment, error) {
	query := r.base.Tenant(ctx, tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SupplierName != "" {
		query = query.Where("LOWER(supplier_name) LIKE LOWER(?)", "%"+filter.SupplierName+"%")
	}
	var payments []models.ProcurementPayment
	err := query.Order("due_date ASC").Order("id ASC").Find(&payments).Error
	return payments, err
}

// ListOutstanding returns every payable with an unpaid remainder, oldest due first.
func (r *repository) ListOutstanding(ctx context.Context, tenantID uuid.UUID) ([]models.ProcurementPayment, error) {
	var payments []models.ProcurementPayment
	err := r.base.Tenant(ctx, tenantID).
		Where("status <> ?", enums.PaymentStatusPaid).
		Order("due_date ASC").
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}
