package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// ApprovalLevel is one tier of a tenant's approval threshold configuration.
// The tier covers [MinAmount, MaxAmount); a null MaxAmount is unbounded.
type ApprovalLevel struct {
	ID             uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID       uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:uq_approval_levels_tenant_level"`
	Level          int                 `gorm:"column:level;not null;uniqueIndex:uq_approval_levels_tenant_level"`
	Label          string              `gorm:"column:label;not null"`
	MinAmount      decimal.Decimal     `gorm:"column:min_amount;type:numeric(18,2);not null"`
	MaxAmount      decimal.NullDecimal `gorm:"column:max_amount;type:numeric(18,2)"`
	RequiredRole   enums.MemberRole    `gorm:"column:required_role;type:member_role;not null"`
	AllowParallel  bool                `gorm:"column:allow_parallel;not null;default:false"`
	EscalationDays int                 `gorm:"column:escalation_days;not null"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// ApprovalItem is a procurement action waiting on (or decided by) an approver.
type ApprovalItem struct {
	ID              uuid.UUID                `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID                `gorm:"column:tenant_id;type:uuid;not null;index"`
	ReferenceType   string                   `gorm:"column:reference_type;not null"`
	ReferenceID     uuid.UUID                `gorm:"column:reference_id;type:uuid;not null"`
	Description     string                   `gorm:"column:description;not null"`
	Amount          decimal.Decimal          `gorm:"column:amount;type:numeric(18,2);not null"`
	Level           int                      `gorm:"column:level;not null"`
	RequiredRole    enums.MemberRole         `gorm:"column:required_role;type:member_role;not null"`
	Status          enums.ApprovalItemStatus `gorm:"column:status;type:approval_item_status;not null;default:'PENDING'"`
	PendingSince    time.Time                `gorm:"column:pending_since;not null"`
	EscalationCount int                      `gorm:"column:escalation_count;not null;default:0"`
	EscalatedAt     *time.Time               `gorm:"column:escalated_at"`
	Flagged         bool                     `gorm:"column:flagged;not null;default:false"`
	SubmittedBy     uuid.UUID                `gorm:"column:submitted_by;type:uuid;not null"`
	DecidedBy       *uuid.UUID               `gorm:"column:decided_by;type:uuid"`
	DecidedAt       *time.Time               `gorm:"column:decided_at"`
	DecisionNote    *string                  `gorm:"column:decision_note"`
	CreatedAt       time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}
