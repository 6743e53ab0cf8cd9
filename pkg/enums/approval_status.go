package enums

import "slices"

// ApprovalItemStatus tracks a procurement approval through its decision.
type ApprovalItemStatus string

const (
	ApprovalItemStatusPending  ApprovalItemStatus = "PENDING"
	ApprovalItemStatusApproved ApprovalItemStatus = "APPROVED"
	ApprovalItemStatusRejected ApprovalItemStatus = "REJECTED"
)

var validApprovalItemStatuses = []ApprovalItemStatus{
	ApprovalItemStatusPending,
	ApprovalItemStatusApproved,
	ApprovalItemStatusRejected,
}

// IsValid reports whether the value is a known ApprovalItemStatus.
func (s ApprovalItemStatus) IsValid() bool {
	return slices.Contains(validApprovalItemStatuses, s)
}

// ParseApprovalItemStatus converts raw input into an ApprovalItemStatus.
func ParseApprovalItemStatus(value string) (ApprovalItemStatus, error) {
	return parse(value, validApprovalItemStatuses, "approval status")
}

// ApprovalDecision is the verdict an approver submits.
type ApprovalDecision string

const (
	ApprovalDecisionApprove ApprovalDecision = "APPROVE"
	ApprovalDecisionReject  ApprovalDecision = "REJECT"
)

var validApprovalDecisions = []ApprovalDecision{ApprovalDecisionApprove, ApprovalDecisionReject}

// ParseApprovalDecision converts raw input into an ApprovalDecision.
func ParseApprovalDecision(value string) (ApprovalDecision, error) {
	return parse(value, validApprovalDecisions, "approval decision")
}
