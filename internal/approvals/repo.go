package approvals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sppg-platform/budget-engine/internal/repo"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	"github.com/sppg-platform/budget-engine/pkg/pagination"
)

// PendingFilter narrows pending item listings. Results are ordered oldest first.
type PendingFilter struct {
	RequiredRole *enums.MemberRole
	FlaggedOnly  bool
	Limit        int
}

// Repository manages approval levels and approval items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ListLevels(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalLevel, error)
	ReplaceLevels(ctx context.Context, tenantID uuid.UUID, levels []models.ApprovalLevel) error
	CreateItem(ctx context.Context, item *models.ApprovalItem) error
	FindItem(ctx context.Context, tenantID, id uuid.UUID) (*models.ApprovalItem, error)
	FindItemForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.ApprovalItem, error)
	SaveItem(ctx context.Context, item *models.ApprovalItem) error
	ListPending(ctx context.Context, tenantID uuid.UUID, filter PendingFilter) ([]models.ApprovalItem, error)
	LockEscalationCandidates(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalItem, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns an approvals repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) ListLevels(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalLevel, error) {
	var levels []models.ApprovalLevel
	if err := r.base.Tenant(ctx, tenantID).Order("level ASC").Find(&levels).Error; err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *repository) ReplaceLevels(ctx context.Context, tenantID uuid.UUID, levels []models.ApprovalLevel) error {
	if err := r.base.Tenant(ctx, tenantID).Delete(&models.ApprovalLevel{}).Error; err != nil {
		return err
	}
	if len(levels) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(&levels).Error
}

func (r *repository) CreateItem(ctx context.Context, item *models.ApprovalItem) error {
	return r.base.DB(ctx).Create(item).Error
}

func (r *repository) FindItem(ctx context.Context, tenantID, id uuid.UUID) (*models.ApprovalItem, error) {
	var item models.ApprovalItem
	if err := r.base.Tenant(ctx, tenantID).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) FindItemForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*models.ApprovalItem, error) {
	var item models.ApprovalItem
	if err := r.base.TenantForUpdate(ctx, tenantID).Where("id = ?", id).First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) SaveItem(ctx context.Context, item *models.ApprovalItem) error {
	return r.base.DB(ctx).Save(item).Error
}

func (r *repository) ListPending(ctx context.Context, tenantID uuid.UUID, filter PendingFilter) ([]models.ApprovalItem, error) {
	query := r.base.Tenant(ctx, tenantID).Where("status = ?", enums.ApprovalItemStatusPending)
	if filter.RequiredRole != nil {
		query = query.Where("required_role = ?", *filter.RequiredRole)
	}
	if filter.FlaggedOnly {
		query = query.Where("flagged = ?", true)
	}
	var items []models.ApprovalItem
	err := query.
		Order("pending_since ASC").
		Order("id ASC").
		Limit(pagination.NormalizeLimit(filter.Limit)).
		Find(&items).Error
	return items, err
}

// LockEscalationCandidates returns the tenant's pending, unflagged items with
// row locks held for the rest of the transaction. Rows locked by a concurrent
// sweep are skipped.
func (r *repository) LockEscalationCandidates(ctx context.Context, tenantID uuid.UUID) ([]models.ApprovalItem, error) {
	var items []models.ApprovalItem
	err := r.base.Tenant(ctx, tenantID).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Where("status = ? AND flagged = ?", enums.ApprovalItemStatusPending, false).
		Order("pending_since ASC").
		Find(&items).Error
	return items, err
}
