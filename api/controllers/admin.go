package controllers

import (
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sppg-platform/budget-engine/api/middleware"
	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/escalation"
	"github.com/sppg-platform/budget-engine/internal/tenants"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

type escalationTenantResponse struct {
	TenantID     uuid.UUID   `json:"tenantId"`
	TenantCode   string      `json:"tenantCode"`
	EscalatedIDs []uuid.UUID `json:"escalatedIds"`
	FlaggedIDs   []uuid.UUID `json:"flaggedIds"`
	Error        *string     `json:"error,omitempty"`
}

type escalationRunResponse struct {
	Tenants []escalationTenantResponse `json:"tenants"`
	Failed  int                        `json:"failed"`
}

// EscalationRun triggers an out-of-band sweep. The optional asOf query pins
// the evaluation instant.
func EscalationRun(svc escalation.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "escalation")
			return
		}
		asOf, err := validators.ParseDateQuery(r, "asOf")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RunEscalationSweep(r.Context(), asOf)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := escalationRunResponse{Tenants: make([]escalationTenantResponse, 0, len(result))}
		for _, tr := range result {
			entry := escalationTenantResponse{
				TenantID:     tr.TenantID,
				TenantCode:   tr.TenantCode,
				EscalatedIDs: tr.EscalatedIDs,
				FlaggedIDs:   tr.FlaggedIDs,
			}
			if tr.Err != nil {
				msg := string(pkgerrors.CodeInternal)
				if typed := pkgerrors.As(tr.Err); typed != nil {
					msg = string(typed.Code())
				}
				entry.Error = &msg
				out.Failed++
			}
			out.Tenants = append(out.Tenants, entry)
		}
		sort.Slice(out.Tenants, func(i, j int) bool { return out.Tenants[i].TenantCode < out.Tenants[j].TenantCode })
		responses.WriteSuccess(w, out)
	}
}

type tenantCreateRequest struct {
	Code string `json:"code" validate:"required,max=32"`
	Name string `json:"name" validate:"required,max=200"`
}

type tenantActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

type tenantResponse struct {
	ID        uuid.UUID `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

func tenantResponseFromModel(m *models.Tenant) tenantResponse {
	return tenantResponse{ID: m.ID, Code: m.Code, Name: m.Name, IsActive: m.IsActive, CreatedAt: m.CreatedAt}
}

func TenantCreate(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tenant")
			return
		}
		var payload tenantCreateRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		created, err := svc.Create(r.Context(), middleware.ActorFromContext(r.Context()), tenants.CreateInput{
			Code: strings.TrimSpace(payload.Code),
			Name: validators.SanitizeString(payload.Name, 200),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, tenantResponseFromModel(created))
	}
}

func TenantListActive(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tenant")
			return
		}
		rows, err := svc.ListActive(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]tenantResponse, 0, len(rows))
		for i := range rows {
			out = append(out, tenantResponseFromModel(&rows[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// TenantSetActive enables or disables a tenant for escalation sweeps.
func TenantSetActive(svc tenants.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "tenant")
			return
		}
		id, err := validators.ParseUUIDParam(r, "tenantID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var payload tenantActiveRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetActive(r.Context(), middleware.ActorFromContext(r.Context()), id, *payload.Active); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteNoContent(w)
	}
}
