package disbursements

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// ListFilter narrows disbursement request listings.
type ListFilter struct {
	Status    *enums.DisbursementStatus
	ProgramID *uuid.UUID
}

// Repository manages persistence for disbursement requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.DisbursementRequest) error
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.DisbursementRequest, error)
	FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.DisbursementRequest, error)
	Save(ctx context.Context, request *models.DisbursementRequest) error
	List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.DisbursementRequest, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a disbursement repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, request *models.DisbursementRequest) error {
	return r.base.DB(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*models.DisbursementRequest, error) {
	var request models.DisbursementRequest
	if err := r.base.Tenant(ctx, tenantID).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.DisbursementRequest, error) {
	var request models.DisbursementRequest
	if err := r.base.TenantForUpdate(ctx, tenantID).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Save(ctx context.Context, request *models.DisbursementRequest) error {
	return r.base.DB(ctx).Save(request).Error
}

func (r *repository) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]models.DisbursementRequest, error) {
	query := r.base.Tenant(ctx, tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.ProgramID != nil {
		query = query.Where("program_id = ?", *filter.ProgramID)
	}
	var requests []models.DisbursementRequest
	if err := query.Order("created_at DESC").Order("id DESC").Find(&requests).Error; err != nil {
		return nil, err
	}
	return requests, nil
}
