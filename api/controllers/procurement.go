package controllers

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/procurement"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type payableCreateRequest struct {
	ProcurementID *uuid.UUID      `json:"procurementId"`
	SupplierName  string          `json:"supplierName" validate:"required,max=200"`
	InvoiceNumber string          `json:"invoiceNumber" validate:"required,max=100"`
	Amount        decimal.Decimal `json:"amount" validate:"money"`
	DueDate       string          `json:"dueDate" validate:"required,datetime=2006-01-02"`
}

func (r payableCreateRequest) toInput() (procurement.PayableInput, error) {
	due, err := time.Parse(validators.DateLayout, strings.TrimSpace(r.DueDate))
	if err != nil {
		return procurement.PayableInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid dueDate")
	}
	return procurement.PayableInput{
		ProcurementID: r.ProcurementID,
		SupplierName:  validators.SanitizeString(r.SupplierName, 200),
		InvoiceNumber: validators.SanitizeString(r.InvoiceNumber, 100),
		Amount:        r.Amount,
		DueDate:       due,
	}, nil
}

type paymentRecordRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
	PaidAt *time.Time      `json:"paidAt"`
}

type payableResponse struct {
	ID            uuid.UUID           `json:"id"`
	ProcurementID *uuid.UUID          `json:"procurementId,omitempty"`
	SupplierName  string              `json:"supplierName"`
	InvoiceNumber string              `json:"invoiceNumber"`
	Amount        decimal.Decimal     `json:"amount"`
	PaidAmount    decimal.Decimal     `json:"paidAmount"`
	Outstanding   decimal.Decimal     `json:"outstanding"`
	DueDate       string              `json:"dueDate"`
	Status        enums.PaymentStatus `json:"status"`
	LastPaidAt    *time.Time          `json:"lastPaidAt,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
}

func payableResponseFromModel(m *models.ProcurementPayment) payableResponse {
	return payableResponse{
		ID:            m.ID,
		ProcurementID: m.ProcurementID,
		SupplierName:  m.SupplierName,
		InvoiceNumber: m.InvoiceNumber,
		Amount:        m.Amount,
		PaidAmount:    m.PaidAmount,
		Outstanding:   m.Outstanding(),
		DueDate:       m.DueDate.Format(validators.DateLayout),
		Status:        m.Status,
		LastPaidAt:    m.LastPaidAt,
		CreatedAt:     m.CreatedAt,
	}
}

type overdueResponse struct {
	Payable     payableResponse   `json:"payable"`
	DaysOverdue int               `json:"daysOverdue"`
	Bucket      enums.AgingBucket `json:"bucket"`
}

func PayableCreate(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload payableCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.CreatePayable(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, payableResponseFromModel(created))
	}
}

// PaymentRecord applies a (partial) payment to a payable.
func PaymentRecord(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "payableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload paymentRecordRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		updated, err := svc.RecordPayment(r.Context(), actor, id, procurement.PaymentInput{Amount: payload.Amount, PaidAt: payload.PaidAt})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payableResponseFromModel(updated))
	}
}

func PayableGet(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "payableID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		payable, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, payableResponseFromModel(payable))
	}
}

func PayableList(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var (
			filter procurement.ListFilter
			err    error
		)
		if filter.Status, err = validators.ParseEnumQuery(r, "status", enums.ParsePaymentStatus); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.SupplierName = validators.SanitizeString(r.URL.Query().Get("supplier"), 200)

		rows, err := svc.List(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]payableResponse, 0, len(rows))
		for i := range rows {
			out = append(out, payableResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// PayableAging buckets outstanding payables by days past due.
func PayableAging(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		asOf, err := validators.ParseDateQuery(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		report, err := svc.AgingReport(r.Context(), actor, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func PayableOverdue(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		asOf, err := validators.ParseDateQuery(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := svc.Overdue(r.Context(), actor, asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]overdueResponse, 0, len(rows))
		for i := range rows {
			out = append(out, overdueResponse{
				Payable:     payableResponseFromModel(&rows[i].Payment),
				DaysOverdue: rows[i].DaysOverdue,
				Bucket:      rows[i].Bucket,
			})
		}
		responses.WriteSuccess(w, out)
	}
}

// PayableAgingExport streams the aging report as an xlsx workbook.
func PayableAgingExport(svc procurement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "procurement")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		asOf, err := validators.ParseDateQuery(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		// buffered so failures still produce a JSON error
		var buf bytes.Buffer
		if err := svc.ExportAging(r.Context(), actor, asOf, &buf); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		stamp := time.Now().UTC()
		if asOf != nil {
			stamp = *asOf
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="payables-aging-%s.xlsx"`, stamp.Format(validators.DateLayout)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	}
}
