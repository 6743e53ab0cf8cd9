package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/pkg/enums"
)

// DisbursementRequest tracks a government funding request from draft to transfer.
type DisbursementRequest struct {
	ID                 uuid.UUID  `gorm:"type:uuid;primaryKey"`
	TenantID           uuid.UUID  `gorm:"column:tenant_id;type:uuid;not null;index"`
	ProgramID          *uuid.UUID `gorm:"column:program_id;type:uuid"`
	AllocationID       *uuid.UUID `gorm:"column:allocation_id;type:uuid"`
	OperationalPeriod  string     `gorm:"column:operational_period;not null"`
	TotalBeneficiaries int        `gorm:"column:total_beneficiaries;not null;default:0"`

	RequestedAmount decimal.Decimal `gorm:"column:requested_amount;type:numeric(18,2);not null"`
	FoodCost        decimal.Decimal `gorm:"column:food_cost;type:numeric(18,2);not null"`
	OperationalCost decimal.Decimal `gorm:"column:operational_cost;type:numeric(18,2);not null"`
	TransportCost   decimal.Decimal `gorm:"column:transport_cost;type:numeric(18,2);not null"`
	UtilityCost     decimal.Decimal `gorm:"column:utility_cost;type:numeric(18,2);not null"`
	StaffCost       decimal.Decimal `gorm:"column:staff_cost;type:numeric(18,2);not null"`
	OtherCost       decimal.Decimal `gorm:"column:other_cost;type:numeric(18,2);not null"`

	Status enums.DisbursementStatus `gorm:"column:status;type:disbursement_status;not null;default:'DRAFT'"`

	RequestNumber         *string    `gorm:"column:request_number"`
	PortalURL             *string    `gorm:"column:portal_url"`
	ProposalDocumentURL   *string    `gorm:"column:proposal_document_url"`
	BudgetPlanDocumentURL *string    `gorm:"column:budget_plan_document_url"`
	SubmittedAt           *time.Time `gorm:"column:submitted_at"`
	ReviewStartedAt       *time.Time `gorm:"column:review_started_at"`

	ApprovalNumber            *string    `gorm:"column:approval_number"`
	ApprovedAt                *time.Time `gorm:"column:approved_at"`
	ApprovingOfficialName     *string    `gorm:"column:approving_official_name"`
	ApprovingOfficialPosition *string    `gorm:"column:approving_official_position"`
	ApprovalLetterURL         *string    `gorm:"column:approval_letter_url"`

	RejectionReason *string    `gorm:"column:rejection_reason"`
	RejectedAt      *time.Time `gorm:"column:rejected_at"`
	RevisionNotes   *string    `gorm:"column:revision_notes"`

	DisbursedAmount      decimal.NullDecimal `gorm:"column:disbursed_amount;type:numeric(18,2)"`
	DisbursedAt          *time.Time          `gorm:"column:disbursed_at"`
	BankReference        *string             `gorm:"column:bank_reference"`
	ReceivingAccount     *string             `gorm:"column:receiving_account"`
	DisbursementProofURL *string             `gorm:"column:disbursement_proof_url"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// BreakdownTotal sums the cost breakdown lines.
func (r DisbursementRequest) BreakdownTotal() decimal.Decimal {
	return r.FoodCost.
		Add(r.OperationalCost).
		Add(r.TransportCost).
		Add(r.UtilityCost).
		Add(r.StaffCost).
		Add(r.OtherCost)
}
