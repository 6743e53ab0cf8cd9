package enums

import "slices"

// DisbursementStatus maps to the disbursement_status enum in Postgres.
type DisbursementStatus string

const (
	DisbursementStatusDraft            DisbursementStatus = "DRAFT"
	DisbursementStatusSubmitted        DisbursementStatus = "SUBMITTED"
	DisbursementStatusUnderReview      DisbursementStatus = "UNDER_REVIEW"
	DisbursementStatusApproved         DisbursementStatus = "APPROVED"
	DisbursementStatusRevisionRequired DisbursementStatus = "REVISION_REQUIRED"
	DisbursementStatusRejected         DisbursementStatus = "REJECTED"
	DisbursementStatusDisbursed        DisbursementStatus = "DISBURSED"
)

var validDisbursementStatuses = []DisbursementStatus{
	DisbursementStatusDraft,
	DisbursementStatusSubmitted,
	DisbursementStatusUnderReview,
	DisbursementStatusApproved,
	DisbursementStatusRevisionRequired,
	DisbursementStatusRejected,
	DisbursementStatusDisbursed,
}

// DisbursementStatuses returns every status.
func DisbursementStatuses() []DisbursementStatus {
	return slices.Clone(validDisbursementStatuses)
}

// String implements fmt.Stringer.
func (s DisbursementStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known DisbursementStatus.
func (s DisbursementStatus) IsValid() bool {
	return slices.Contains(validDisbursementStatuses, s)
}

// IsTerminal reports whether no further transitions leave the status.
func (s DisbursementStatus) IsTerminal() bool {
	return s == DisbursementStatusDisbursed || s == DisbursementStatusRejected
}

// ParseDisbursementStatus converts raw input into a DisbursementStatus.
func ParseDisbursementStatus(value string) (DisbursementStatus, error) {
	return parse(value, validDisbursementStatuses, "disbursement status")
}
