package disbursements

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sppg-platform/budget-engine/internal/tenancy"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	pkgerrors "github.com/sppg-platform/budget-engine/pkg/errors"
)

// TransitionInput carries the metadata a transition may require. Only the
// fields relevant to the attempted target are read.
type TransitionInput struct {
	RequestNumber         *string
	PortalURL             *string
	ProposalDocumentURL   *string
	BudgetPlanDocumentURL *string
	SubmittedAt           *time.Time

	ApprovalNumber            *string
	ApprovedAt                *time.Time
	ApprovingOfficialName     *string
	ApprovingOfficialPosition *string
	ApprovalLetterURL         *string

	RejectionReason *string
	RevisionNotes   *string

	DisbursedAmount      *decimal.Decimal
	DisbursedAt          *time.Time
	BankReference        *string
	ReceivingAccount     *string
	DisbursementProofURL *string
}

// BreakdownDetails is attached to cost breakdown tolerance failures.
type BreakdownDetails struct {
	Requested      decimal.Decimal `json:"requested"`
	BreakdownTotal decimal.Decimal `json:"breakdownTotal"`
	Tolerance      decimal.Decimal `json:"tolerance"`
}

type guardFunc func(req *models.DisbursementRequest, in TransitionInput, tolerance decimal.Decimal) error

type applyFunc func(req *models.DisbursementRequest, in TransitionInput, now time.Time)

type transition struct {
	roles []enums.MemberRole
	guard guardFunc
	apply applyFunc
	// fundsProgram tops up the program's allocation once the transition is applied.
	fundsProgram bool
}

type edge struct {
	from enums.DisbursementStatus
	to   enums.DisbursementStatus
}

var transitionTable = map[edge]transition{
	{enums.DisbursementStatusDraft, enums.DisbursementStatusSubmitted}: {
		roles: tenancy.ManagerRoles,
		guard: guardSubmit,
		apply: applySubmit,
	},
	{enums.DisbursementStatusSubmitted, enums.DisbursementStatusUnderReview}: {
		roles: tenancy.FinanceRoles,
		apply: applyReview,
	},
	{enums.DisbursementStatusSubmitted, enums.DisbursementStatusApproved}: {
		roles:        tenancy.ManagerRoles,
		guard:        guardApprove,
		apply:        applyApprove,
		fundsProgram: true,
	},
	{enums.DisbursementStatusUnderReview, enums.DisbursementStatusApproved}: {
		roles:        tenancy.ManagerRoles,
		guard:        guardApprove,
		apply:        applyApprove,
		fundsProgram: true,
	},
	{enums.DisbursementStatusSubmitted, enums.DisbursementStatusRejected}: {
		roles: tenancy.ManagerRoles,
		guard: guardReject,
		apply: applyReject,
	},
	{enums.DisbursementStatusUnderReview, enums.DisbursementStatusRejected}: {
		roles: tenancy.ManagerRoles,
		guard: guardReject,
		apply: applyReject,
	},
	{enums.DisbursementStatusUnderReview, enums.DisbursementStatusRevisionRequired}: {
		roles: tenancy.FinanceRoles,
		guard: guardRevision,
		apply: applyRevision,
	},
	{enums.DisbursementStatusRevisionRequired, enums.DisbursementStatusDraft}: {
		roles: tenancy.FinanceRoles,
	},
	{enums.DisbursementStatusApproved, enums.DisbursementStatusDisbursed}: {
		roles: tenancy.FinanceRoles,
		guard: guardDisburse,
		apply: applyDisburse,
	},
}

// CanTransition reports whether the state machine has an edge from -> to.
func CanTransition(from, to enums.DisbursementStatus) bool {
	_, ok := transitionTable[edge{from, to}]
	return ok
}

// NextStatuses lists the targets reachable from status in declaration order.
func NextStatuses(from enums.DisbursementStatus) []enums.DisbursementStatus {
	var out []enums.DisbursementStatus
	for _, to := range enums.DisbursementStatuses() {
		if CanTransition(from, to) {
			out = append(out, to)
		}
	}
	return out
}

func lookupTransition(from, to enums.DisbursementStatus) (transition, error) {
	rule, ok := transitionTable[edge{from, to}]
	if !ok {
		return transition{}, invalidTransition(from, to)
	}
	return rule, nil
}

func invalidTransition(from, to enums.DisbursementStatus) error {
	return pkgerrors.New(pkgerrors.CodeInvalidStateTransition, "transition from "+string(from)+" to "+string(to)+" is not permitted").
		WithDetails(map[string]string{"current": string(from), "attempted": string(to)})
}

// ValidateBreakdown checks the cost lines are non-negative and sum to the
// requested amount within tolerance (a fraction, 0.01 for 1%).
func ValidateBreakdown(req *models.DisbursementRequest, tolerance decimal.Decimal) error {
	lines := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"food", req.FoodCost},
		{"operational", req.OperationalCost},
		{"transport", req.TransportCost},
		{"utility", req.UtilityCost},
		{"staff", req.StaffCost},
		{"other", req.OtherCost},
	}
	for _, line := range lines {
		if line.amount.IsNegative() {
			return pkgerrors.New(pkgerrors.CodeValidation, line.name+" cost must not be negative")
		}
	}
	total := req.BreakdownTotal()
	allowed := req.RequestedAmount.Mul(tolerance)
	if total.Sub(req.RequestedAmount).Abs().GreaterThan(allowed) {
		return pkgerrors.New(pkgerrors.CodeValidation, "cost breakdown does not match requested amount").
			WithDetails(BreakdownDetails{
				Requested:      req.RequestedAmount,
				BreakdownTotal: total,
				Tolerance:      tolerance,
			})
	}
	return nil
}

func guardSubmit(req *models.DisbursementRequest, in TransitionInput, tolerance decimal.Decimal) error {
	if !req.RequestedAmount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "requested amount must be positive")
	}
	if strings.TrimSpace(req.OperationalPeriod) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "operational period required")
	}
	if err := ValidateBreakdown(req, tolerance); err != nil {
		return err
	}
	if !present(firstOf(in.ProposalDocumentURL, req.ProposalDocumentURL)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "proposal document required")
	}
	if !present(firstOf(in.BudgetPlanDocumentURL, req.BudgetPlanDocumentURL)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "budget plan document required")
	}
	return nil
}

func applySubmit(req *models.DisbursementRequest, in TransitionInput, now time.Time) {
	req.ProposalDocumentURL = firstOf(in.ProposalDocumentURL, req.ProposalDocumentURL)
	req.BudgetPlanDocumentURL = firstOf(in.BudgetPlanDocumentURL, req.BudgetPlanDocumentURL)
	req.RequestNumber = firstOf(in.RequestNumber, req.RequestNumber)
	req.PortalURL = firstOf(in.PortalURL, req.PortalURL)
	req.SubmittedAt = timeOr(in.SubmittedAt, now)
}

func applyReview(req *models.DisbursementRequest, _ TransitionInput, now time.Time) {
	req.ReviewStartedAt = &now
}

func guardApprove(_ *models.DisbursementRequest, in TransitionInput, _ decimal.Decimal) error {
	if !present(in.ApprovalNumber) {
		return pkgerrors.New(pkgerrors.CodeValidation, "approval number required")
	}
	if in.ApprovedAt == nil || in.ApprovedAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "approval date required")
	}
	if !present(in.ApprovingOfficialName) {
		return pkgerrors.New(pkgerrors.CodeValidation, "approving official name required")
	}
	return nil
}

func applyApprove(req *models.DisbursementRequest, in TransitionInput, now time.Time) {
	req.ApprovalNumber = in.ApprovalNumber
	req.ApprovedAt = timeOr(in.ApprovedAt, now)
	req.ApprovingOfficialName = in.ApprovingOfficialName
	req.ApprovingOfficialPosition = in.ApprovingOfficialPosition
	req.ApprovalLetterURL = in.ApprovalLetterURL
}

func guardReject(_ *models.DisbursementRequest, in TransitionInput, _ decimal.Decimal) error {
	if !present(in.RejectionReason) {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}
	return nil
}

func applyReject(req *models.DisbursementRequest, in TransitionInput, now time.Time) {
	req.RejectionReason = in.RejectionReason
	req.RejectedAt = &now
}

func guardRevision(_ *models.DisbursementRequest, in TransitionInput, _ decimal.Decimal) error {
	if !present(in.RevisionNotes) {
		return pkgerrors.New(pkgerrors.CodeValidation, "revision notes required")
	}
	return nil
}

func applyRevision(req *models.DisbursementRequest, in TransitionInput, _ time.Time) {
	req.RevisionNotes = in.RevisionNotes
}

func guardDisburse(_ *models.DisbursementRequest, in TransitionInput, _ decimal.Decimal) error {
	if in.DisbursedAmount == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "disbursed amount required")
	}
	if in.DisbursedAmount.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "disbursed amount must not be negative")
	}
	if in.DisbursedAt == nil || in.DisbursedAt.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "disbursement date required")
	}
	if !present(in.BankReference) {
		return pkgerrors.New(pkgerrors.CodeValidation, "bank reference required")
	}
	if !present(in.ReceivingAccount) {
		return pkgerrors.New(pkgerrors.CodeValidation, "receiving account required")
	}
	return nil
}

func applyDisburse(req *models.DisbursementRequest, in TransitionInput, _ time.Time) {
	req.DisbursedAmount = decimal.NewNullDecimal(*in.DisbursedAmount)
	disbursedAt := in.DisbursedAt.UTC()
	req.DisbursedAt = &disbursedAt
	req.BankReference = in.BankReference
	req.ReceivingAccount = in.ReceivingAccount
	req.DisbursementProofURL = in.DisbursementProofURL
}

func present(value *string) bool {
	return value != nil && strings.TrimSpace(*value) != ""
}

func firstOf(values ...*string) *string {
	for _, v := range values {
		if present(v) {
			return v
		}
	}
	return nil
}

func timeOr(value *time.Time, fallback time.Time) *time.Time {
	if value != nil && !value.IsZero() {
		t := value.UTC()
		return &t
	}
	return &fallback
}
