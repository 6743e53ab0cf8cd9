package registry

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate/topic/payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() interface{}
}

// ResolvedEvent is the result of decoding an outbox row.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    interface{}
}

// EventRegistry maps each supported event type to its descriptor.
type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError signals the dispatcher should stop retrying a row.
type NonRetryableError struct {
	Err error
}

// Error implements error.
func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

// Unwrap exposes the wrapped error.
func (e NonRetryableError) Unwrap() error {
	return e.Err
}

// NewNonRetryableError wraps an error to signal no retries.
func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// NewEventRegistry builds the registry with the configured topic names.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, fmt.Errorf("domain topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}

	allocation := func() interface{} { return &payloads.AllocationEvent{} }
	transaction := func() interface{} { return &payloads.TransactionEvent{} }
	approval := func() interface{} { return &payloads.ApprovalEvent{} }

	for _, desc := range []EventDescriptor{
		{EventType: enums.EventAllocationCreated, AggregateType: enums.AggregateBudgetAllocation, PayloadFactory: allocation},
		{EventType: enums.EventAllocationToppedUp, AggregateType: enums.AggregateBudgetAllocation, PayloadFactory: allocation},
		{EventType: enums.EventAllocationCorrected, AggregateType: enums.AggregateBudgetAllocation, PayloadFactory: allocation},
		{EventType: enums.EventAllocationDeleted, AggregateType: enums.AggregateBudgetAllocation, PayloadFactory: allocation},
		{EventType: enums.EventTransactionRecorded, AggregateType: enums.AggregateBudgetTransaction, PayloadFactory: transaction},
		{EventType: enums.EventTransactionUpdated, AggregateType: enums.AggregateBudgetTransaction, PayloadFactory: transaction},
		{EventType: enums.EventTransactionDeleted, AggregateType: enums.AggregateBudgetTransaction, PayloadFactory: transaction},
		{
			EventType:      enums.EventDisbursementTransitioned,
			AggregateType:  enums.AggregateDisbursementRequest,
			PayloadFactory: func() interface{} { return &payloads.DisbursementTransitionedEvent{} },
		},
		{EventType: enums.EventApprovalSubmitted, AggregateType: enums.AggregateApprovalItem, PayloadFactory: approval},
		{EventType: enums.EventApprovalDecided, AggregateType: enums.AggregateApprovalItem, PayloadFactory: approval},
		{
			EventType:      enums.EventApprovalEscalated,
			AggregateType:  enums.AggregateApprovalItem,
			PayloadFactory: func() interface{} { return &payloads.ApprovalEscalatedEvent{} },
		},
		{
			EventType:      enums.EventPaymentRecorded,
			AggregateType:  enums.AggregateProcurementPayment,
			PayloadFactory: func() interface{} { return &payloads.PaymentRecordedEvent{} },
		},
	} {
		desc.Topic = topic
		reg.register(desc)
	}

	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	if !ok {
		return nil, NewNonRetryableError(fmt.Errorf("unsupported event type %s", event.EventType))
	}
	if desc.AggregateType != event.AggregateType {
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, NewNonRetryableError(fmt.Errorf("missing aggregate_id"))
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", event.EventType, err))
	}
	if envelope.TenantID != uuid.Nil && envelope.TenantID != event.TenantID {
		return nil, NewNonRetryableError(fmt.Errorf("tenant mismatch between row and envelope"))
	}

	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}

	return &ResolvedEvent{
		Descriptor: desc,
		Envelope:   envelope,
		Payload:    payload,
	}, nil
}
