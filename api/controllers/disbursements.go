package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/disbursements"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

type disbursementDraftRequest struct {
	ProgramID             *uuid.UUID      `json:"programId"`
	OperationalPeriod     string          `json:"operationalPeriod" validate:"required,max=64"`
	TotalBeneficiaries    int             `json:"totalBeneficiaries" validate:"min=0"`
	RequestedAmount       decimal.Decimal `json:"requestedAmount" validate:"moneynonneg"`
	FoodCost              decimal.Decimal `json:"foodCost" validate:"moneynonneg"`
	OperationalCost       decimal.Decimal `json:"operationalCost" validate:"moneynonneg"`
	TransportCost         decimal.Decimal `json:"transportCost" validate:"moneynonneg"`
	UtilityCost           decimal.Decimal `json:"utilityCost" validate:"moneynonneg"`
	StaffCost             decimal.Decimal `json:"staffCost" validate:"moneynonneg"`
	OtherCost             decimal.Decimal `json:"otherCost" validate:"moneynonneg"`
	ProposalDocumentURL   *string         `json:"proposalDocumentUrl" validate:"omitempty,url"`
	BudgetPlanDocumentURL *string         `json:"budgetPlanDocumentUrl" validate:"omitempty,url"`
}

func (r disbursementDraftRequest) toInput() disbursements.DraftInput {
	return disbursements.DraftInput{
		ProgramID:             r.ProgramID,
		OperationalPeriod:     strings.TrimSpace(r.OperationalPeriod),
		TotalBeneficiaries:    r.TotalBeneficiaries,
		RequestedAmount:       r.RequestedAmount,
		FoodCost:              r.FoodCost,
		OperationalCost:       r.OperationalCost,
		TransportCost:         r.TransportCost,
		UtilityCost:           r.UtilityCost,
		StaffCost:             r.StaffCost,
		OtherCost:             r.OtherCost,
		ProposalDocumentURL:   r.ProposalDocumentURL,
		BudgetPlanDocumentURL: r.BudgetPlanDocumentURL,
	}
}

type disbursementTransitionRequest struct {
	Target string `json:"target" validate:"required"`

	RequestNumber         *string    `json:"requestNumber"`
	PortalURL             *string    `json:"portalUrl" validate:"omitempty,url"`
	ProposalDocumentURL   *string    `json:"proposalDocumentUrl" validate:"omitempty,url"`
	BudgetPlanDocumentURL *string    `json:"budgetPlanDocumentUrl" validate:"omitempty,url"`
	SubmittedAt           *time.Time `json:"submittedAt"`

	ApprovalNumber            *string    `json:"approvalNumber"`
	ApprovedAt                *time.Time `json:"approvedAt"`
	ApprovingOfficialName     *string    `json:"approvingOfficialName"`
	ApprovingOfficialPosition *string    `json:"approvingOfficialPosition"`
	ApprovalLetterURL         *string    `json:"approvalLetterUrl" validate:"omitempty,url"`

	RejectionReason *string `json:"rejectionReason"`
	RevisionNotes   *string `json:"revisionNotes"`

	DisbursedAmount      *decimal.Decimal `json:"disbursedAmount"`
	DisbursedAt          *time.Time       `json:"disbursedAt"`
	BankReference        *string          `json:"bankReference"`
	ReceivingAccount     *string          `json:"receivingAccount"`
	DisbursementProofURL *string          `json:"disbursementProofUrl" validate:"omitempty,url"`
}

func (r disbursementTransitionRequest) toInput() (enums.DisbursementStatus, disbursements.TransitionInput, error) {
	target, err := enums.ParseDisbursementStatus(strings.TrimSpace(r.Target))
	if err != nil {
		return "", disbursements.TransitionInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid target status")
	}
	return target, disbursements.TransitionInput{
		RequestNumber:             r.RequestNumber,
		PortalURL:                 r.PortalURL,
		ProposalDocumentURL:       r.ProposalDocumentURL,
		BudgetPlanDocumentURL:     r.BudgetPlanDocumentURL,
		SubmittedAt:               r.SubmittedAt,
		ApprovalNumber:            r.ApprovalNumber,
		ApprovedAt:                r.ApprovedAt,
		ApprovingOfficialName:     r.ApprovingOfficialName,
		ApprovingOfficialPosition: r.ApprovingOfficialPosition,
		ApprovalLetterURL:         r.ApprovalLetterURL,
		RejectionReason:           r.RejectionReason,
		RevisionNotes:             r.RevisionNotes,
		DisbursedAmount:           r.DisbursedAmount,
		DisbursedAt:               r.DisbursedAt,
		BankReference:             r.BankReference,
		ReceivingAccount:          r.ReceivingAccount,
		DisbursementProofURL:      r.DisbursementProofURL,
	}, nil
}

type disbursementResponse struct {
	ID                 uuid.UUID                `json:"id"`
	ProgramID          *uuid.UUID               `json:"programId,omitempty"`
	AllocationID       *uuid.UUID               `json:"allocationId,omitempty"`
	Status             enums.DisbursementStatus `json:"status"`
	OperationalPeriod  string                   `json:"operationalPeriod"`
	TotalBeneficiaries int                      `json:"totalBeneficiaries"`
	RequestedAmount    decimal.Decimal          `json:"requestedAmount"`
	Breakdown          map[string]string        `json:"breakdown"`
	BreakdownTotal     decimal.Decimal          `json:"breakdownTotal"`

	RequestNumber         *string    `json:"requestNumber,omitempty"`
	PortalURL             *string    `json:"portalUrl,omitempty"`
	ProposalDocumentURL   *string    `json:"proposalDocumentUrl,omitempty"`
	BudgetPlanDocumentURL *string    `json:"budgetPlanDocumentUrl,omitempty"`
	SubmittedAt           *time.Time `json:"submittedAt,omitempty"`
	ReviewStartedAt       *time.Time `json:"reviewStartedAt,omitempty"`

	ApprovalNumber            *string    `json:"approvalNumber,omitempty"`
	ApprovedAt                *time.Time `json:"approvedAt,omitempty"`
	ApprovingOfficialName     *string    `json:"approvingOfficialName,omitempty"`
	ApprovingOfficialPosition *string    `json:"approvingOfficialPosition,omitempty"`
	ApprovalLetterURL         *string    `json:"approvalLetterUrl,omitempty"`

	RejectionReason *string    `json:"rejectionReason,omitempty"`
	RejectedAt      *time.Time `json:"rejectedAt,omitempty"`
	RevisionNotes   *string    `json:"revisionNotes,omitempty"`

	DisbursedAmount      *decimal.Decimal `json:"disbursedAmount,omitempty"`
	DisbursedAt          *time.Time       `json:"disbursedAt,omitempty"`
	BankReference        *string          `json:"bankReference,omitempty"`
	ReceivingAccount     *string          `json:"receivingAccount,omitempty"`
	DisbursementProofURL *string          `json:"disbursementProofUrl,omitempty"`

	CreatedBy uuid.UUID `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func disbursementResponseFromModel(m *models.DisbursementRequest) disbursementResponse {
	out := disbursementResponse{
		ID:                 m.ID,
		ProgramID:          m.ProgramID,
		AllocationID:       m.AllocationID,
		Status:             m.Status,
		OperationalPeriod:  m.OperationalPeriod,
		TotalBeneficiaries: m.TotalBeneficiaries,
		RequestedAmount:    m.RequestedAmount,
		Breakdown: map[string]string{
			"food":        m.FoodCost.StringFixed(2),
			"operational": m.OperationalCost.StringFixed(2),
			"transport":   m.TransportCost.StringFixed(2),
			"utility":     m.UtilityCost.StringFixed(2),
			"staff":       m.StaffCost.StringFixed(2),
			"other":       m.OtherCost.StringFixed(2),
		},
		BreakdownTotal: m.BreakdownTotal(),

		RequestNumber:         m.RequestNumber,
		PortalURL:             m.PortalURL,
		ProposalDocumentURL:   m.ProposalDocumentURL,
		BudgetPlanDocumentURL: m.BudgetPlanDocumentURL,
		SubmittedAt:           m.SubmittedAt,
		ReviewStartedAt:       m.ReviewStartedAt,

		ApprovalNumber:            m.ApprovalNumber,
		ApprovedAt:                m.ApprovedAt,
		ApprovingOfficialName:     m.ApprovingOfficialName,
		ApprovingOfficialPosition: m.ApprovingOfficialPosition,
		ApprovalLetterURL:         m.ApprovalLetterURL,

		RejectionReason: m.RejectionReason,
		RejectedAt:      m.RejectedAt,
		RevisionNotes:   m.RevisionNotes,

		DisbursedAt:          m.DisbursedAt,
		BankReference:        m.BankReference,
		ReceivingAccount:     m.ReceivingAccount,
		DisbursementProofURL: m.DisbursementProofURL,

		CreatedBy: m.CreatedBy,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
	if m.DisbursedAmount.Valid {
		amount := m.DisbursedAmount.Decimal
		out.DisbursedAmount = &amount
	}
	return out
}

func DisbursementCreate(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disbursement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload disbursementDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), actor, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, disbursementResponseFromModel(created))
	}
}

// DisbursementUpdateDraft replaces the editable fields of a DRAFT request.
func DisbursementUpdateDraft(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disbursement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "disbursementID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload disbursementDraftRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.UpdateDraft(r.Context(), actor, id, payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disbursementResponseFromModel(updated))
	}
}

// DisbursementTransition moves a request along its lifecycle.
func DisbursementTransition(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disbursement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "disbursementID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload disbursementTransitionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		target, input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Transition(r.Context(), actor, id, target, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disbursementResponseFromModel(updated))
	}
}

func DisbursementGet(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disbursement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "disbursementID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		req, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, disbursementResponseFromModel(req))
	}
}

func DisbursementList(svc disbursements.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disbursement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var (
			filter disbursements.ListFilter
			err    error
		)
		if filter.Status, err = validators.ParseEnumQuery(r, "status", enums.ParseDisbursementStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.ProgramID, err = validators.ParseOptionalUUIDQuery(r, "programId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]disbursementResponse, 0, len(rows))
		for i := range rows {
			out = append(out, disbursementResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
