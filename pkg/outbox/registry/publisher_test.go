package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sppg-platform/budget-engine/pkg/config"
	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/enums"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/payloads"
)

func envelopeFor(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	env, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: uuid.NewString(), OccurredAt: time.Now(), Data: raw})
	require.NoError(t, err)
	return env
}

func TestNewEventRegistryRequiresTopic(t *testing.T) {
	_, err := NewEventRegistry(config.PubSubConfig{})
	assert.Error(t, err)
}

func TestResolveDecodesTypedPayload(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "budget-events"})
	require.NoError(t, err)

	event := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateBudgetTransaction,
		AggregateID:   uuid.New(),
		Payload: envelopeFor(t, payloads.TransactionEvent{
			Category: enums.TransactionCategoryFood,
			Amount:   decimal.NewFromInt(300000),
		}),
	}

	resolved, err := reg.Resolve(event)
	require.NoError(t, err)
	assert.Equal(t, "budget-events", resolved.Descriptor.Topic)
	payload, ok := resolved.Payload.(*payloads.TransactionEvent)
	require.True(t, ok)
	assert.True(t, payload.Amount.Equal(decimal.NewFromInt(300000)))
}

func TestResolveRejectsMismatchedAggregate(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "budget-events"})
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateBudgetAllocation,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, map[string]string{}),
	})
	var nonRetry NonRetryableError
	assert.True(t, errors.As(err, &nonRetry))
}

func TestResolveRejectsEmptyData(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "budget-events"})
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventApprovalEscalated,
		AggregateType: enums.AggregateApprovalItem,
		AggregateID:   uuid.New(),
		Payload:       envelopeFor(t, nil),
	})
	var nonRetry NonRetryableError
	assert.True(t, errors.As(err, &nonRetry))
}

func TestResolveRejectsTenantMismatch(t *testing.T) {
	reg, err := NewEventRegistry(config.PubSubConfig{DomainTopic: "budget-events"})
	require.NoError(t, err)

	raw, err := json.Marshal(outbox.PayloadEnvelope{
		Version:  1,
		EventID:  uuid.NewString(),
		TenantID: uuid.New(),
		Data:     json.RawMessage(`{"category":"food"}`),
	})
	require.NoError(t, err)

	_, err = reg.Resolve(models.OutboxEvent{
		TenantID:      uuid.New(),
		EventType:     enums.EventTransactionRecorded,
		AggregateType: enums.AggregateBudgetTransaction,
		AggregateID:   uuid.New(),
		Payload:       raw,
	})
	var nonRetry NonRetryableError
	require.True(t, errors.As(err, &nonRetry))
	assert.Contains(t, err.Error(), "tenant mismatch")
}
