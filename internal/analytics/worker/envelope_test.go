package worker

import (
	"encoding/json"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

func sealedMessage(t *testing.T, sealed outbox.PayloadEnvelope, attrs map[string]string) *gcppubsub.Message {
	t.Helper()
	data, err := json.Marshal(sealed)
	require.NoError(t, err)
	return &gcppubsub.Message{ID: "msg-1", Data: data, Attributes: attrs}
}

func orderAttrs() map[string]string {
	return map[string]string{
		"event_type":     "order_paid",
		"aggregate_type": "order",
		"aggregate_id":   "ord-1",
	}
}

func TestDecodeMessage(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("IST", 19800))
	msg := sealedMessage(t, outbox.PayloadEnvelope{
		EventID:    "evt-1",
		OccurredAt: at,
		Data:       json.RawMessage(`{"order_id":"ord-1"}`),
	}, orderAttrs())

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, enums.EventOrderPaid, env.EventType)
	assert.Equal(t, enums.AggregateOrder, env.AggregateType)
	assert.Equal(t, "ord-1", env.AggregateID)
	assert.Equal(t, "evt-1", env.EventID)
	assert.True(t, env.OccurredAt.Equal(at))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.JSONEq(t, `{"order_id":"ord-1"}`, string(env.Payload))
}

func TestDecodeMessageFallsBackToAttributes(t *testing.T) {
	attrs := orderAttrs()
	attrs["event_id"] = "evt-attr"
	attrs["created_at"] = "2026-03-02T08:00:00Z"
	msg := sealedMessage(t, outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, attrs)

	env, err := decodeMessage(msg)
	require.NoError(t, err)
	assert.Equal(t, "evt-attr", env.EventID)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC), env.OccurredAt)
}

func TestDecodeMessageRejects(t *testing.T) {
	body := outbox.PayloadEnvelope{EventID: "evt-1", Data: json.RawMessage(`{}`)}
	cases := map[string]func(map[string]string){
		"unknown event type":     func(a map[string]string) { a["event_type"] = "ad_click" },
		"unknown aggregate type": func(a map[string]string) { a["aggregate_type"] = "store" },
		"missing aggregate id":   func(a map[string]string) { delete(a, "aggregate_id") },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			attrs := orderAttrs()
			mutate(attrs)
			_, err := decodeMessage(sealedMessage(t, body, attrs))
			assert.Error(t, err)
		})
	}

	_, err := decodeMessage(sealedMessage(t, outbox.PayloadEnvelope{Data: json.RawMessage(`{}`)}, orderAttrs()))
	assert.ErrorContains(t, err, "event_id")

	_, err = decodeMessage(&gcppubsub.Message{Data: []byte("not json"), Attributes: orderAttrs()})
	assert.Error(t, err)
}
