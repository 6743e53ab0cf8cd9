package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// BudgetAllocation is a program's budget envelope for one funding source and fiscal year.
// SpentAmount and RemainingAmount are written only through the ledger adjust path.
type BudgetAllocation struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID        uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;uniqueIndex:ux_budget_allocations_envelope"`
	ProgramID       uuid.UUID           `gorm:"column:program_id;type:uuid;not null;uniqueIndex:ux_budget_allocations_envelope"`
	Source          enums.FundingSource `gorm:"column:source;type:funding_source;not null;uniqueIndex:ux_budget_allocations_envelope"`
	FiscalYear      int                 `gorm:"column:fiscal_year;not null;uniqueIndex:ux_budget_allocations_envelope"`
	AllocatedAmount decimal.Decimal     `gorm:"column:allocated_amount;type:numeric(18,2);not null"`
	SpentAmount     decimal.Decimal     `gorm:"column:spent_amount;type:numeric(18,2);not null"`
	RemainingAmount decimal.Decimal     `gorm:"column:remaining_amount;type:numeric(18,2);not null"`
	LastSpentAt     *time.Time          `gorm:"column:last_spent_at"`
	Notes           *string             `gorm:"column:notes"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}
