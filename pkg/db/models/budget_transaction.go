package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// BudgetTransaction is a single expenditure recorded against exactly one allocation.
type BudgetTransaction struct {
	ID              uuid.UUID                 `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID                 `gorm:"column:tenant_id;type:uuid;not null;index"`
	AllocationID    uuid.UUID                 `gorm:"column:allocation_id;type:uuid;not null;index"`
	Category        enums.TransactionCategory `gorm:"column:category;type:transaction_category;not null"`
	Amount          decimal.Decimal           `gorm:"column:amount;type:numeric(18,2);not null"`
	TransactionDate time.Time                 `gorm:"column:transaction_date;not null"`
	Description     string                    `gorm:"column:description;not null"`
	ProcurementID   *uuid.UUID                `gorm:"column:procurement_id;type:uuid"`
	ProductionID    *uuid.UUID                `gorm:"column:production_id;type:uuid"`
	DistributionID  *uuid.UUID                `gorm:"column:distribution_id;type:uuid"`
	ReceiptURL      *string                   `gorm:"column:receipt_url"`
	CreatedBy       uuid.UUID                 `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt       time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}
