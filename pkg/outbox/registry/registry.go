// Package registry maps storefront outbox event types to their Pub/Sub topic
// and payload schema, and decodes committed rows for publishing.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable outbox event"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes order and refund events to the orders topic and
// operator alerts to the operator topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	switch {
	case cfg.OrdersTopic == "":
		return nil, errors.New("orders topic is required")
	case cfg.OperatorTopic == "":
		return nil, errors.New("operator topic is required")
	}

	table := []EventDescriptor{
		{enums.EventOrderPaid, enums.AggregateOrder, cfg.OrdersTopic, func() any { return &payloads.OrderPaidEvent{} }},
		{enums.EventRefundRequested, enums.AggregateRefund, cfg.OrdersTopic, func() any { return &payloads.RefundRequestedEvent{} }},
		{enums.EventRefundGranted, enums.AggregateOrder, cfg.OrdersTopic, func() any { return &payloads.RefundGrantedEvent{} }},
		{enums.EventOperatorAlert, enums.AggregateOrder, cfg.OperatorTopic, func() any { return &payloads.OperatorAlertEvent{} }},
	}

	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(table))}
	for _, desc := range table {
		reg.byType[desc.EventType] = desc
	}
	return reg, nil
}

func (r *EventRegistry) Descriptor(eventType enums.OutboxEventType) (EventDescriptor, bool) {
	desc, ok := r.byType[eventType]
	return desc, ok
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every error it returns is a NonRetryableError.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, err := r.match(row)
	if err != nil {
		return nil, NewNonRetryableError(err)
	}

	env, err := outbox.Open(row.Payload)
	if err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("%s: %w", row.EventType, err))
	}

	payload := desc.newPayload()
	if err := json.Unmarshal(env.Data, payload); err != nil {
		return nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", row.EventType, err))
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}

func (r *EventRegistry) match(row models.OutboxEvent) (EventDescriptor, error) {
	desc, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return desc, fmt.Errorf("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return desc, fmt.Errorf("%s expects aggregate %s, row has %s", row.EventType, desc.AggregateType, row.AggregateType)
	case row.AggregateID == uuid.Nil:
		return desc, errors.New("missing aggregate_id")
	}
	return desc, nil
}
