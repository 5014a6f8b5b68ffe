package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type markCall struct {
	id       uuid.UUID
	terminal bool
}

type memoryRows struct {
	pending   []models.OutboxEvent
	published []uuid.UUID
	failed    []markCall
}

func (m *memoryRows) FetchUnpublished(context.Context, int, int) ([]models.OutboxEvent, error) {
	return m.pending, nil
}

func (m *memoryRows) MarkPublished(_ context.Context, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memoryRows) MarkFailed(_ context.Context, id uuid.UUID, _ error, terminal bool, _ int) error {
	m.failed = append(m.failed, markCall{id: id, terminal: terminal})
	return nil
}

type scriptedSender struct {
	errs   []error
	topics []string
	msgs   []*gcppubsub.Message
}

func (s *scriptedSender) Publish(_ context.Context, topic string, msg *gcppubsub.Message) (string, error) {
	s.topics = append(s.topics, topic)
	s.msgs = append(s.msgs, msg)
	if len(s.errs) == 0 {
		return "msg-id", nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return "", err
}

func testRegistry(t *testing.T) *registry.EventRegistry {
	t.Helper()
	reg, err := registry.NewEventRegistry(config.PubSubConfig{OrdersTopic: "orders", OperatorTopic: "operators"})
	require.NoError(t, err)
	return reg
}

func orderPaidRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	data, err := json.Marshal(map[string]any{"order_id": uuid.NewString(), "ref_code": "abc"})
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func newTestRelay(t *testing.T, rows pendingRows, sender topicSender, opts relayOptions) *relay {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "relay-test", Output: io.Discard})
	r, err := newRelay(rows, testRegistry(t), sender, logg, opts)
	require.NoError(t, err)
	return r
}

func TestRelayKeepsGoingAfterOneFailure(t *testing.T) {
	first, second := orderPaidRow(t, 0), orderPaidRow(t, 0)
	rows := &memoryRows{pending: []models.OutboxEvent{first, second}}
	sender := &scriptedSender{errs: []error{errors.New("unavailable")}}

	n, err := newTestRelay(t, rows, sender, relayOptions{MaxAttempts: 5}).drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []markCall{{id: first.ID, terminal: false}}, rows.failed)
	assert.Equal(t, []uuid.UUID{second.ID}, rows.published)
	assert.Equal(t, []string{"orders", "orders"}, sender.topics)
	assert.Equal(t, "order_paid", sender.msgs[1].Attributes["event_type"])
}

func TestRelayParksUndecodableRows(t *testing.T) {
	row := orderPaidRow(t, 0)
	row.Payload = json.RawMessage(`{"data":null}`)
	rows := &memoryRows{pending: []models.OutboxEvent{row}}
	sender := &scriptedSender{}

	_, err := newTestRelay(t, rows, sender, relayOptions{}).drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []markCall{{id: row.ID, terminal: true}}, rows.failed)
	assert.Empty(t, sender.topics)
}

func TestRelayParksRowOnLastAttempt(t *testing.T) {
	row := orderPaidRow(t, 2)
	rows := &memoryRows{pending: []models.OutboxEvent{row}}
	sender := &scriptedSender{errs: []error{errors.New("deadline exceeded")}}

	_, err := newTestRelay(t, rows, sender, relayOptions{MaxAttempts: 3}).drain(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []markCall{{id: row.ID, terminal: true}}, rows.failed)
}

func TestRelayEmptyBatch(t *testing.T) {
	n, err := newTestRelay(t, &memoryRows{}, &scriptedSender{}, relayOptions{}).drain(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestPauseGrowsAndCaps(t *testing.T) {
	p := newPause(time.Second, 3*time.Second)
	jitter := 250 * time.Millisecond

	first := p.grow()
	assert.GreaterOrEqual(t, first, 2*time.Second)
	assert.Less(t, first, 2*time.Second+jitter)

	capped := p.grow()
	assert.GreaterOrEqual(t, capped, 3*time.Second)
	assert.Less(t, capped, 3*time.Second+jitter)

	p.reset()
	assert.Equal(t, time.Second, p.current)
}

func TestOptionsFromConfigDefaults(t *testing.T) {
	opts := optionsFromConfig(config.OutboxConfig{}).withDefaults()
	assert.Equal(t, 50, opts.BatchSize)
	assert.Equal(t, 10, opts.MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, opts.Idle)

	opts = optionsFromConfig(config.OutboxConfig{BatchSize: 5, PollIntervalMS: 100, MaxAttempts: 3}).withDefaults()
	assert.Equal(t, 5, opts.BatchSize)
	assert.Equal(t, 100*time.Millisecond, opts.Idle)
}
