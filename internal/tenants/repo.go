package tenants

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
)

// Repository reads and writes tenant rows.
type Repository interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	ListActive(ctx context.Context) ([]models.Tenant, error)
	SetActive(ctx context.Context, id uuid.UUID, active bool) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a tenant repository bound to db.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) Create(ctx context.Context, tenant *models.Tenant) error {
	return r.base.DB(ctx).Create(tenant).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := r.base.DB(ctx).Where("id = ?", id).First(&tenant).Error; err != nil {
		return nil, err
	}
	return &tenant, nil
}

func (r *repository) ListActive(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	err := r.base.DB(ctx).
		Where("is_active = ?", true).
		Order("code ASC").
		Find(&tenants).Error
	return tenants, err
}

func (r *repository) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	result := r.base.DB(ctx).
		Model(&models.Tenant{}).
		Where("id = ?", id).
		Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
