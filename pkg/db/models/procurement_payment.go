package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// ProcurementPayment is an amount owed to a supplier with a due date.
type ProcurementPayment struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	TenantID      uuid.UUID           `gorm:"column:tenant_id;type:uuid;not null;index"`
	ProcurementID *uuid.UUID          `gorm:"column:procurement_id;type:uuid"`
	SupplierName  string              `gorm:"column:supplier_name;not null"`
	InvoiceNumber string              `gorm:"column:invoice_number;not null"`
	Amount        decimal.Decimal     `gorm:"column:amount;type:numeric(18,2);not null"`
	PaidAmount    decimal.Decimal     `gorm:"column:paid_amount;type:numeric(18,2);not null"`
	DueDate       time.Time           `gorm:"column:due_date;not null"`
	Status        enums.PaymentStatus `gorm:"column:status;type:payment_status;not null;default:'UNPAID'"`
	LastPaidAt    *time.Time          `gorm:"column:last_paid_at"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// Outstanding returns the unpaid remainder.
func (p ProcurementPayment) Outstanding() decimal.Decimal {
	return p.Amount.Sub(p.PaidAmount)
}
