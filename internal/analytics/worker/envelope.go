package worker

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Envelope is an outbox event as received from Pub/Sub.
type Envelope struct {
	EventID       string                    `json:"event_id"`
	EventType     enums.OutboxEventType     `json:"event_type"`
	AggregateType enums.OutboxAggregateType `json:"aggregate_type"`
	AggregateID   string                    `json:"aggregate_id"`
	OccurredAt    time.Time                 `json:"occurred_at"`
	Payload       json.RawMessage           `json:"payload"`
}

// decodeMessage reads the sealed payload from the body and routing fields
// from the attributes the publisher sets. Body values win over attributes.
func decodeMessage(msg *gcppubsub.Message) (Envelope, error) {
	sealed, err := outbox.Open(msg.Data)
	if err != nil {
		return Envelope{}, err
	}
	attr := func(key string) string { return strings.TrimSpace(msg.Attributes[key]) }

	env := Envelope{
		EventID:     firstNonEmpty(strings.TrimSpace(sealed.EventID), attr("event_id")),
		AggregateID: attr("aggregate_id"),
		OccurredAt:  sealed.OccurredAt,
		Payload:     sealed.Data,
	}
	if env.EventType, err = enums.ParseOutboxEventType(attr("event_type")); err != nil {
		return Envelope{}, fmt.Errorf("event_type: %w", err)
	}
	if env.AggregateType, err = enums.ParseOutboxAggregateType(attr("aggregate_type")); err != nil {
		return Envelope{}, fmt.Errorf("aggregate_type: %w", err)
	}
	switch {
	case env.EventID == "":
		return Envelope{}, errors.New("event_id missing")
	case env.AggregateID == "":
		return Envelope{}, errors.New("aggregate_id missing")
	}
	if env.OccurredAt.IsZero() {
		if at, err := time.Parse(time.RFC3339Nano, attr("created_at")); err == nil {
			env.OccurredAt = at
		}
	}
	env.OccurredAt = env.OccurredAt.UTC()
	return env, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
