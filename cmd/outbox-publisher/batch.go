package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/sppg-platform/budget-engine/pkg/db/models"
	"github.com/sppg-platform/budget-engine/pkg/metrics"
	"github.com/sppg-platform/budget-engine/pkg/outbox"
	"github.com/sppg-platform/budget-engine/pkg/outbox/registry"
)

type disposition int

const (
	dispositionPublished disposition = iota
	dispositionRetry
	dispositionParked
	dispositionDeferred
)

// outcome is what happened to one event in a batch.
type outcome struct {
	disposition disposition
	reason      string
	err         error
	topic       string
	envelope    outbox.PayloadEnvelope
	attempt     int
}

// settled pairs an event with what happened to it, for reporting once the
// batch commits.
type settled struct {
	event   models.OutboxEvent
	outcome outcome
}

// processBatch claims a batch under one transaction and marks every event in
// it. Metrics and log lines are written only after the commit, so a retried
// transaction reports the batch once. It reports whether any event was
// claimed.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var done []settled
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		done = nil
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}

		// a retry holds back later events of its aggregate until the next
		// batch so consumers see ledger changes in commit order
		held := map[string]bool{}
		for _, event := range events {
			out := outcome{disposition: dispositionDeferred, attempt: event.AttemptCount}
			if !held[event.OrderingKey()] {
				out = s.dispatch(ctx, event)
			}
			if out.disposition == dispositionRetry {
				held[event.OrderingKey()] = true
			}
			if err := s.mark(tx, event, out); err != nil {
				return err
			}
			done = append(done, settled{event: event, outcome: out})
		}
		return nil
	})
	if err != nil {
		return len(done) > 0, err
	}
	for _, item := range done {
		s.report(ctx, item.event, item.outcome)
	}
	return len(done) > 0, nil
}

func (s *Service) dispatch(ctx context.Context, event models.OutboxEvent) outcome {
	out := outcome{attempt: event.AttemptCount}
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		out.disposition, out.reason, out.err = dispositionParked, metrics.PublishNonRetryable, err
		return out
	}
	out.topic = resolved.Descriptor.Topic
	out.envelope = resolved.Envelope

	err = s.publish(ctx, event, resolved)
	var nonRetry registry.NonRetryableError
	switch {
	case err == nil:
		out.disposition = dispositionPublished
	case errors.As(err, &nonRetry):
		out.disposition, out.reason, out.err = dispositionParked, metrics.PublishNonRetryable, err
	default:
		out.attempt = event.AttemptCount + 1
		out.disposition, out.err = dispositionRetry, err
		if out.attempt >= s.maxAttempts {
			out.disposition, out.reason = dispositionParked, metrics.PublishMaxAttempts
			out.err = fmt.Errorf("max publish attempts reached: %w", err)
		}
	}
	return out
}

// mark records the outcome on the row. Parked rows stay in the table at the
// attempt ceiling until retention prunes them.
func (s *Service) mark(tx *gorm.DB, event models.OutboxEvent, out outcome) error {
	switch out.disposition {
	case dispositionPublished:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", event.ID, err)
		}
	case dispositionRetry:
		if err := s.repo.MarkFailedTx(tx, event.ID, out.err); err != nil {
			return fmt.Errorf("mark failure %s: %w", event.ID, err)
		}
	case dispositionParked:
		if err := s.repo.MarkTerminalTx(tx, event.ID, out.err, s.maxAttempts); err != nil {
			return fmt.Errorf("mark terminal %s: %w", event.ID, err)
		}
	}
	return nil
}

func (s *Service) report(ctx context.Context, event models.OutboxEvent, out outcome) {
	logCtx := s.logg.WithFields(ctx, s.eventFields(event, out))
	switch out.disposition {
	case dispositionPublished:
		s.metrics.ObservePublished(string(event.EventType), event.CreatedAt)
		s.logg.Info(logCtx, "outbox event published")
	case dispositionRetry:
		s.metrics.IncFailure(metrics.PublishRetryable)
		s.logg.Warn(s.logg.WithField(logCtx, "error", out.err.Error()), "outbox publish failed")
	case dispositionParked:
		s.metrics.IncFailure(out.reason)
		s.logg.Error(s.logg.WithField(logCtx, "error_reason", out.reason), "outbox event will not be retried", out.err)
	case dispositionDeferred:
		s.metrics.IncDeferred()
		s.logg.Debug(logCtx, "outbox event deferred behind failed predecessor")
	}
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.topics.get(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:        event.Payload,
		OrderingKey: event.OrderingKey(),
		Attributes:  messageAttributes(event, resolved.Envelope),
	})
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}

// messageAttributes lets subscribers route and filter without decoding the
// payload.
func messageAttributes(event models.OutboxEvent, envelope outbox.PayloadEnvelope) map[string]string {
	return map[string]string{
		"event_id":       envelope.EventID,
		"event_type":     string(event.EventType),
		"aggregate_type": string(event.AggregateType),
		"aggregate_id":   event.AggregateID.String(),
		"tenant_id":      event.TenantID.String(),
		"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
	}
}

func (s *Service) eventFields(event models.OutboxEvent, out outcome) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"tenant_id":      event.TenantID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  out.attempt,
	}
	if out.envelope.EventID != "" {
		fields["event_id"] = out.envelope.EventID
		fields["occurred_at"] = out.envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if out.topic != "" {
		fields["topic"] = out.topic
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}
