package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// AllocationEvent is emitted when an allocation is created, topped up, corrected or deleted.
type AllocationEvent struct {
	AllocationID    uuid.UUID           `json:"allocationId"`
	TenantID        uuid.UUID           `json:"tenantId"`
	ProgramID       uuid.UUID           `json:"programId"`
	Source          enums.FundingSource `json:"source"`
	FiscalYear      int                 `json:"fiscalYear"`
	AllocatedAmount decimal.Decimal     `json:"allocatedAmount"`
	SpentAmount     decimal.Decimal     `json:"spentAmount"`
	RemainingAmount decimal.Decimal     `json:"remainingAmount"`
	Delta           *decimal.Decimal    `json:"delta,omitempty"`
}

// TransactionEvent is emitted for every ledger-affecting transaction change.
type TransactionEvent struct {
	TransactionID   uuid.UUID                 `json:"transactionId"`
	AllocationID    uuid.UUID                 `json:"allocationId"`
	TenantID        uuid.UUID                 `json:"tenantId"`
	Category        enums.TransactionCategory `json:"category"`
	Amount          decimal.Decimal           `json:"amount"`
	Delta           decimal.Decimal           `json:"delta"`
	RemainingAmount decimal.Decimal           `json:"remainingAmount"`
}

// DisbursementTransitionedEvent records a status change on a disbursement request.
type DisbursementTransitionedEvent struct {
	RequestID    uuid.UUID                `json:"requestId"`
	TenantID     uuid.UUID                `json:"tenantId"`
	From         enums.DisbursementStatus `json:"from"`
	To           enums.DisbursementStatus `json:"to"`
	AllocationID *uuid.UUID               `json:"allocationId,omitempty"`
}

// ApprovalEvent covers submission and decision of an approval item.
type ApprovalEvent struct {
	ItemID       uuid.UUID                `json:"itemId"`
	TenantID     uuid.UUID                `json:"tenantId"`
	Level        int                      `json:"level"`
	RequiredRole enums.MemberRole         `json:"requiredRole"`
	Amount       decimal.Decimal          `json:"amount"`
	Status       enums.ApprovalItemStatus `json:"status"`
}

// ApprovalEscalatedEvent is emitted by the escalation sweep.
type ApprovalEscalatedEvent struct {
	ItemID       uuid.UUID        `json:"itemId"`
	TenantID     uuid.UUID        `json:"tenantId"`
	FromLevel    int              `json:"fromLevel"`
	ToLevel      int              `json:"toLevel"`
	RequiredRole enums.MemberRole `json:"requiredRole"`
	Flagged      bool             `json:"flagged"`
	Deadline     time.Time        `json:"deadline"`
}

// PaymentRecordedEvent is emitted when a supplier payable receives a payment.
type PaymentRecordedEvent struct {
	PaymentID   uuid.UUID           `json:"paymentId"`
	TenantID    uuid.UUID           `json:"tenantId"`
	Amount      decimal.Decimal     `json:"amount"`
	PaidAmount  decimal.Decimal     `json:"paidAmount"`
	Outstanding decimal.Decimal     `json:"outstanding"`
	Status      enums.PaymentStatus `json:"status"`
}
