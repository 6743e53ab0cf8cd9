package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/transactions"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
	"github.com/sppg-platform/budget-engine/pkg/pagination"
)

type transactionRecordRequest struct {
	AllocationID    string          `json:"allocationId" validate:"required,uuid"`
	Category        string          `json:"category" validate:"required"`
	Amount          decimal.Decimal `json:"amount" validate:"money"`
	TransactionDate time.Time       `json:"transactionDate" validate:"required"`
	Description     string          `json:"description" validate:"required,max=500"`
	ProcurementID   *uuid.UUID      `json:"procurementId"`
	ProductionID    *uuid.UUID      `json:"productionId"`
	DistributionID  *uuid.UUID      `json:"distributionId"`
	ReceiptURL      *string         `json:"receiptUrl" validate:"omitempty,url"`
}

func (r transactionRecordRequest) toInput() (transactions.RecordInput, error) {
	allocationID, err := uuid.Parse(strings.TrimSpace(r.AllocationID))
	if err != nil {
		return transactions.RecordInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid allocationId")
	}
	category, err := enums.ParseTransactionCategory(strings.TrimSpace(r.Category))
	if err != nil {
		return transactions.RecordInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
	}
	return transactions.RecordInput{
		AllocationID:    allocationID,
		Category:        category,
		Amount:          r.Amount,
		TransactionDate: r.TransactionDate,
		Description:     validators.SanitizeString(r.Description, 500),
		ProcurementID:   r.ProcurementID,
		ProductionID:    r.ProductionID,
		DistributionID:  r.DistributionID,
		ReceiptURL:      r.ReceiptURL,
	}, nil
}

type transactionUpdateRequest struct {
	Category        *string          `json:"category"`
	Amount          *decimal.Decimal `json:"amount" validate:"omitempty,money"`
	TransactionDate *time.Time       `json:"transactionDate"`
	Description     *string          `json:"description" validate:"omitempty,max=500"`
	ReceiptURL      *string          `json:"receiptUrl" validate:"omitempty,url"`
}

func (r transactionUpdateRequest) toInput() (transactions.UpdateInput, error) {
	input := transactions.UpdateInput{
		Amount:          r.Amount,
		TransactionDate: r.TransactionDate,
		ReceiptURL:      r.ReceiptURL,
	}
	if r.Category != nil {
		category, err := enums.ParseTransactionCategory(strings.TrimSpace(*r.Category))
		if err != nil {
			return transactions.UpdateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid category")
		}
		input.Category = &category
	}
	if r.Description != nil {
		description := validators.SanitizeString(*r.Description, 500)
		input.Description = &description
	}
	return input, nil
}

type transactionResponse struct {
	ID              uuid.UUID                 `json:"id"`
	AllocationID    uuid.UUID                 `json:"allocationId"`
	Category        enums.TransactionCategory `json:"category"`
	Amount          decimal.Decimal           `json:"amount"`
	TransactionDate time.Time                 `json:"transactionDate"`
	Description     string                    `json:"description"`
	ProcurementID   *uuid.UUID                `json:"procurementId,omitempty"`
	ProductionID    *uuid.UUID                `json:"productionId,omitempty"`
	DistributionID  *uuid.UUID                `json:"distributionId,omitempty"`
	ReceiptURL      *string                   `json:"receiptUrl,omitempty"`
	CreatedBy       uuid.UUID                 `json:"createdBy"`
	CreatedAt       time.Time                 `json:"createdAt"`
	UpdatedAt       time.Time                 `json:"updatedAt"`
}

func transactionResponseFromModel(m *models.BudgetTransaction) transactionResponse {
	return transactionResponse{
		ID:              m.ID,
		AllocationID:    m.AllocationID,
		Category:        m.Category,
		Amount:          m.Amount,
		TransactionDate: m.TransactionDate,
		Description:     m.Description,
		ProcurementID:   m.ProcurementID,
		ProductionID:    m.ProductionID,
		DistributionID:  m.DistributionID,
		ReceiptURL:      m.ReceiptURL,
		CreatedBy:       m.CreatedBy,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

// TransactionRecord books an expenditure and debits its allocation.
func TransactionRecord(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transactions")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload transactionRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Record(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, transactionResponseFromModel(created))
	}
}

func TransactionUpdate(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transactions")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload transactionUpdateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.Update(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionResponseFromModel(updated))
	}
}

func TransactionDelete(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transactions")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionID")
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

func TransactionGet(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transactions")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, transactionResponseFromModel(txn))
	}
}

// TransactionList pages through transactions newest first.
func TransactionList(svc transactions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "transactions")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var (
			params transactions.ListParams
			err    error
		)
		if params.AllocationID, err = validators.ParseOptionalUUIDQuery(r, "allocationId"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Category, err = validators.ParseEnumQuery(r, "category", enums.ParseTransactionCategory); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.From, err = validators.ParseDateQuery(r, "from"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.To, err = validators.ParseDateQuery(r, "to"); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if params.Limit, err = validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Cursor = strings.TrimSpace(r.URL.Query().Get("cursor"))

		page, err := svc.List(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := pagination.Page[transactionResponse]{
			Items:      make([]transactionResponse, 0, len(page.Items)),
			NextCursor: page.NextCursor,
		}
		for i := range page.Items {
			out.Items = append(out.Items, transactionResponseFromModel(&page.Items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
