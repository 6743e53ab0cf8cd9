package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/api/responses"
	"github.com/sppg-platform/budget-engine/api/validators"
	"github.com/sppg-platform/budget-engine/internal/approvals"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
	"github.com/sppg-platform/budget-engine/pkg/logger"
)

type approvalLevelRequest struct {
	Level          int              `json:"level" validate:"required,min=1"`
	Label          string           `json:"label" validate:"required,max=120"`
	MinAmount      decimal.Decimal  `json:"minAmount" validate:"moneynonneg"`
	MaxAmount      *decimal.Decimal `json:"maxAmount" validate:"omitempty,money"`
	RequiredRole   string           `json:"requiredRole" validate:"required"`
	AllowParallel  bool             `json:"allowParallel"`
	EscalationDays int              `json:"escalationDays" validate:"min=0"`
}

type approvalLevelsReplaceRequest struct {
	Levels []approvalLevelRequest `json:"levels" validate:"required,min=1,dive"`
}

func (r approvalLevelsReplaceRequest) toInput() ([]approvals.LevelInput, error) {
	out := make([]approvals.LevelInput, 0, len(r.Levels))
	for _, level := range r.Levels {
		role, err := enums.ParseMemberRole(strings.TrimSpace(level.RequiredRole))
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid requiredRole").
				WithDetails(map[string]any{"level": level.Level})
		}
		out = append(out, approvals.LevelInput{
			Level:          level.Level,
			Label:          strings.TrimSpace(level.Label),
			MinAmount:      level.MinAmount,
			MaxAmount:      level.MaxAmount,
			RequiredRole:   role,
			AllowParallel:  level.AllowParallel,
			EscalationDays: level.EscalationDays,
		})
	}
	return out, nil
}

type approvalSubmitRequest struct {
	ReferenceType string          `json:"referenceType" validate:"required,max=64"`
	ReferenceID   string          `json:"referenceId" validate:"required,uuid"`
	Description   string          `json:"description" validate:"required,max=500"`
	Amount        decimal.Decimal `json:"amount" validate:"money"`
}

type approvalDecideRequest struct {
	Decision string  `json:"decision" validate:"required"`
	Note     *string `json:"note" validate:"omitempty,max=1000"`
}

type approvalLevelResponse struct {
	ID             uuid.UUID        `json:"id"`
	Level          int              `json:"level"`
	Label          string           `json:"label"`
	MinAmount      decimal.Decimal  `json:"minAmount"`
	MaxAmount      *decimal.Decimal `json:"maxAmount"`
	RequiredRole   enums.MemberRole `json:"requiredRole"`
	AllowParallel  bool             `json:"allowParallel"`
	EscalationDays int              `json:"escalationDays"`
}

func approvalLevelResponseFromModel(m *models.ApprovalLevel) approvalLevelResponse {
	out := approvalLevelResponse{
		ID:             m.ID,
		Level:          m.Level,
		Label:          m.Label,
		MinAmount:      m.MinAmount,
		RequiredRole:   m.RequiredRole,
		AllowParallel:  m.AllowParallel,
		EscalationDays: m.EscalationDays,
	}
	if m.MaxAmount.Valid {
		maxAmount := m.MaxAmount.Decimal
		out.MaxAmount = &maxAmount
	}
	return out
}

type approvalItemResponse struct {
	ID              uuid.UUID                `json:"id"`
	ReferenceType   string                   `json:"referenceType"`
	ReferenceID     uuid.UUID                `json:"referenceId"`
	Description     string                   `json:"description"`
	Amount          decimal.Decimal          `json:"amount"`
	Level           int                      `json:"level"`
	RequiredRole    enums.MemberRole         `json:"requiredRole"`
	Status          enums.ApprovalItemStatus `json:"status"`
	PendingSince    time.Time                `json:"pendingSince"`
	EscalationCount int                      `json:"escalationCount"`
	EscalatedAt     *time.Time               `json:"escalatedAt,omitempty"`
	Flagged         bool                     `json:"flagged"`
	SubmittedBy     uuid.UUID                `json:"submittedBy"`
	DecidedBy       *uuid.UUID               `json:"decidedBy,omitempty"`
	DecidedAt       *time.Time               `json:"decidedAt,omitempty"`
	DecisionNote    *string                  `json:"decisionNote,omitempty"`
	CreatedAt       time.Time                `json:"createdAt"`
}

func approvalItemResponseFromModel(m *models.ApprovalItem) approvalItemResponse {
	return approvalItemResponse{
		ID:              m.ID,
		ReferenceType:   m.ReferenceType,
		ReferenceID:     m.ReferenceID,
		Description:     m.Description,
		Amount:          m.Amount,
		Level:           m.Level,
		RequiredRole:    m.RequiredRole,
		Status:          m.Status,
		PendingSince:    m.PendingSince,
		EscalationCount: m.EscalationCount,
		EscalatedAt:     m.EscalatedAt,
		Flagged:         m.Flagged,
		SubmittedBy:     m.SubmittedBy,
		DecidedBy:       m.DecidedBy,
		DecidedAt:       m.DecidedAt,
		DecisionNote:    m.DecisionNote,
		CreatedAt:       m.CreatedAt,
	}
}

func ApprovalLevelsList(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		levels, err := svc.ListLevels(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]approvalLevelResponse, 0, len(levels))
		for i := range levels {
			out = append(out, approvalLevelResponseFromModel(&levels[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ApprovalLevelsReplace swaps the tenant's whole threshold configuration.
func ApprovalLevelsReplace(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload approvalLevelsReplaceRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := payload.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		levels, err := svc.ReplaceLevels(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]approvalLevelResponse, 0, len(levels))
		for i := range levels {
			out = append(out, approvalLevelResponseFromModel(&levels[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// ApprovalLevelResolve reports which level an amount would route to.
func ApprovalLevelResolve(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		amount, err := decimal.NewFromString(strings.TrimSpace(r.URL.Query().Get("amount")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount query parameter must be numeric").
				WithDetails(map[string]any{"field": "amount"}))
			return
		}

		level, err := svc.ResolveLevel(r.Context(), actor, amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, approvalLevelResponseFromModel(level))
	}
}

// ApprovalSubmit raises an approval item routed by amount.
func ApprovalSubmit(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var payload approvalSubmitRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		referenceID, err := uuid.Parse(strings.TrimSpace(payload.ReferenceID))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid referenceId"))
			return
		}

		item, err := svc.Submit(r.Context(), actor, approvals.SubmitInput{
			ReferenceType: strings.TrimSpace(payload.ReferenceType),
			ReferenceID:   referenceID,
			Description:   validators.SanitizeString(payload.Description, 500),
			Amount:        payload.Amount,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteCreated(w, approvalItemResponseFromModel(item))
	}
}

func ApprovalDecide(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "approvalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload approvalDecideRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseApprovalDecision(strings.TrimSpace(payload.Decision))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		item, err := svc.Decide(r.Context(), actor, id, approvals.DecideInput{Decision: decision, Note: payload.Note})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, approvalItemResponseFromModel(item))
	}
}

func ApprovalGet(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		id, err := validators.ParseUUIDParam(r, "approvalID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		item, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, approvalItemResponseFromModel(item))
	}
}

// ApprovalPending lists the tenant's approval queue.
func ApprovalPending(svc approvals.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "approval")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var (
			filter approvals.PendingFilter
			err    error
		)
		if filter.RequiredRole, err = validators.ParseEnumQuery(r, "requiredRole", enums.ParseMemberRole); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if filter.Limit, err = validators.ParseQueryInt(r, "limit", 50, 1, 200); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter.FlaggedOnly = strings.EqualFold(strings.TrimSpace(r.URL.Query().Get("flagged")), "true")

		items, err := svc.ListPending(r.Context(), actor, filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]approvalItemResponse, 0, len(items))
		for i := range items {
			out = append(out, approvalItemResponseFromModel(&items[i]))
		}
		responses.WriteSuccess(w, out)
	}
}
