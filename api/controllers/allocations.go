package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/ledger"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

type allocationCreateRequest struct {
	ProgramID       string          `json:"programId" validate:"required,uuid"`
	Source          string          `json:"source" validate:"required"`
	FiscalYear      int             `json:"fiscalYear" validate:"required,min=2000,max=2100"`
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
	Notes           *string         `json:"notes"`
}

func (r allocationCreateRequest) toInput() (ledger.CreateAllocationInput, error) {
	programID, err := uuid.Parse(strings.TrimSpace(r.ProgramID))
	if err != nil {
		return ledger.CreateAllocationInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid programId")
	}
	source, err := enums.ParseFundingSource(strings.TrimSpace(r.Source))
	if err != nil {
		return ledger.CreateAllocationInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid funding source")
	}
	return ledger.CreateAllocationInput{
		ProgramID:       programID,
		Source:          source,
		FiscalYear:      r.FiscalYear,
		AllocatedAmount: r.AllocatedAmount,
		Notes:           r.Notes,
	}, nil
}

type allocationCorrectRequest struct {
	AllocatedAmount decimal.Decimal `json:"allocatedAmount"`
	Notes           *string         `json:"notes"`
}

type allocationResponse struct {
	ID              uuid.UUID           `json:"id"`
	ProgramID       uuid.UUID           `json:"programId"`
	Source          enums.FundingSource `json:"source"`
	FiscalYear      int                 `json:"fiscalYear"`
	AllocatedAmount decimal.Decimal     `json:"allocatedAmount"`
	SpentAmount     decimal.Decimal     `json:"spentAmount"`
	RemainingAmount decimal.Decimal     `json:"remainingAmount"`
	LastSpentAt     *time.Time          `json:"lastSpentAt,omitempty"`
	Notes           *string             `json:"notes,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
}

func allocationResponseFromModel(m *models.BudgetAllocation) allocationResponse {
	return allocationResponse{
		ID:              m.ID,
		ProgramID:       m.ProgramID,
		Source:          m.Source,
		FiscalYear:      m.FiscalYear,
		AllocatedAmount: m.AllocatedAmount,
		SpentAmount:     m.SpentAmount,
		RemainingAmount: m.RemainingAmount,
		LastSpentAt:     m.LastSpentAt,
		Notes:           m.Notes,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// AllocationCreate opens a budget envelope for a program, source and fiscal year.
func AllocationCreate(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload allocationCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, allocationResponseFromModel(created))
	}
}

func AllocationList(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var (
			filter ledger.ListFilter
			err    error
		)
		if filter.FiscalYear, err = validators.ParseOptionalQueryInt(r, "fiscalYear", 2000, 2100); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Source, err = validators.ParseEnumQuery(r, "source", enums.ParseFundingSource); err != nil {
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
		out := make([]allocationResponse, 0, len(rows))
		for i := range rows {
			out = append(out, allocationResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

func AllocationGet(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "allocationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		allocation, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponseFromModel(allocation))
	}
}

// AllocationCorrect changes the allocated amount of an envelope.
func AllocationCorrect(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "allocationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload allocationCorrectRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Correct(r.Context(), actor, id, ledger.CorrectAllocationInput{
			AllocatedAmount: payload.AllocatedAmount,
			Notes:           payload.Notes,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, allocationResponseFromModel(updated))
	}
}

func AllocationDelete(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "allocationID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Delete(r.Context(), actor, id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}

// AllocationSummary reports fiscal-year totals and month-over-month spend.
func AllocationSummary(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "ledger")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		asOf := time.Now().UTC()
		parsed, err := validators.ParseDateQuery(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if parsed != nil {
			asOf = *parsed
		}
		fiscalYear, err := validators.ParseQueryInt(r, "fiscalYear", asOf.Year(), 2000, 2100)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		summary, err := svc.Summary(r.Context(), actor, fiscalYear, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}
