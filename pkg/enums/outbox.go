package enums

import "slices"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateBudgetAllocation    OutboxAggregateType = "budget_allocation"
	AggregateBudgetTransaction   OutboxAggregateType = "budget_transaction"
	AggregateDisbursementRequest OutboxAggregateType = "disbursement_request"
	AggregateApprovalItem        OutboxAggregateType = "approval_item"
	AggregateProcurementPayment  OutboxAggregateType = "procurement_payment"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateBudgetAllocation,
	AggregateBudgetTransaction,
	AggregateDisbursementRequest,
	AggregateApprovalItem,
	AggregateProcurementPayment,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains(validAggregateTypes, a)
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(value, validAggregateTypes, "aggregate type")
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventAllocationCreated        OutboxEventType = "allocation_created"
	EventAllocationToppedUp       OutboxEventType = "allocation_topped_up"
	EventAllocationCorrected      OutboxEventType = "allocation_corrected"
	EventAllocationDeleted        OutboxEventType = "allocation_deleted"
	EventTransactionRecorded      OutboxEventType = "transaction_recorded"
	EventTransactionUpdated       OutboxEventType = "transaction_updated"
	EventTransactionDeleted       OutboxEventType = "transaction_deleted"
	EventDisbursementTransitioned OutboxEventType = "disbursement_transitioned"
	EventApprovalSubmitted        OutboxEventType = "approval_submitted"
	EventApprovalDecided          OutboxEventType = "approval_decided"
	EventApprovalEscalated        OutboxEventType = "approval_escalated"
	EventPaymentRecorded          OutboxEventType = "payment_recorded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventAllocationCreated,
	EventAllocationToppedUp,
	EventAllocationCorrected,
	EventAllocationDeleted,
	EventTransactionRecorded,
	EventTransactionUpdated,
	EventTransactionDeleted,
	EventDisbursementTransitioned,
	EventApprovalSubmitted,
	EventApprovalDecided,
	EventApprovalEscalated,
	EventPaymentRecorded,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	return slices.Contains(validOutboxEventTypes, e)
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(value, validOutboxEventTypes, "event type")
}
