package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"

	"github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// Consumer appends order lifecycle events to the BigQuery order events table.
type Consumer struct {
	client tableInserter
	table  string
	logg   *logger.Logger
}

// NewConsumer builds a new analytics consumer.
func NewConsumer(client tableInserter, table string, logg *logger.Logger) (*Consumer, error) {
	if client == nil {
		return nil, fmt.Errorf("bigquery client required")
	}
	if strings.TrimSpace(table) == "" {
		return nil, fmt.Errorf("bigquery table name required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Consumer{
		client: client,
		table:  strings.TrimSpace(table),
		logg:   logg,
	}, nil
}

// Handle turns one envelope into one order_events row. Event types without a
// row shape return worker.ErrUnsupportedEvent.
func (c *Consumer) Handle(ctx context.Context, envelope worker.Envelope) error {
	row, err := buildRow(envelope)
	if err != nil {
		return err
	}
	if err := c.client.InsertRows(ctx, c.table, []any{row}); err != nil {
		return fmt.Errorf("insert order event row: %w", err)
	}
	c.logg.Info(ctx, "order event ingested")
	return nil
}

type orderEventRow struct {
	EventID      string               `bigquery:"event_id"`
	EventType    string               `bigquery:"event_type"`
	OccurredAt   time.Time            `bigquery:"occurred_at"`
	OrderID      string               `bigquery:"order_id"`
	UserID       cbigquery.NullString `bigquery:"user_id"`
	RefCode      cbigquery.NullString `bigquery:"ref_code"`
	Processor    cbigquery.NullString `bigquery:"processor"`
	Amount       *big.Rat             `bigquery:"amount"`
	ChargedMinor cbigquery.NullInt64  `bigquery:"charged_minor"`
	Currency     cbigquery.NullString `bigquery:"currency"`
	ItemCount    cbigquery.NullInt64  `bigquery:"item_count"`
	RefundID     cbigquery.NullString `bigquery:"refund_id"`
	Payload      cbigquery.NullJSON   `bigquery:"payload"`
}

// InsertID lets BigQuery drop redelivered events.
func (r *orderEventRow) InsertID() string { return r.EventID }

func buildRow(envelope worker.Envelope) (*orderEventRow, error) {
	row := &orderEventRow{
		EventID:    envelope.EventID,
		EventType:  string(envelope.EventType),
		OccurredAt: envelope.OccurredAt,
	}
	if len(envelope.Payload) > 0 {
		row.Payload = cbigquery.NullJSON{JSONVal: string(envelope.Payload), Valid: true}
	}

	switch envelope.EventType {
	case enums.EventOrderPaid:
		var event payloads.OrderPaidEvent
		if err := decode(envelope, &event); err != nil {
			return nil, err
		}
		items := 0
		for _, line := range event.Lines {
			items += line.Quantity
		}
		row.OrderID = event.OrderID.String()
		row.UserID = nullString(event.UserID.String())
		row.RefCode = nullString(event.RefCode)
		row.Processor = nullString(string(event.Processor))
		row.Amount = event.Amount.Rat()
		row.ChargedMinor = cbigquery.NullInt64{Int64: event.ChargedMinor, Valid: true}
		row.Currency = nullString(event.Currency)
		row.ItemCount = cbigquery.NullInt64{Int64: int64(items), Valid: true}
	case enums.EventRefundRequested:
		var event payloads.RefundRequestedEvent
		if err := decode(envelope, &event); err != nil {
			return nil, err
		}
		row.OrderID = event.OrderID.String()
		row.RefCode = nullString(event.RefCode)
		row.RefundID = nullString(event.RefundID.String())
	case enums.EventRefundGranted:
		var event payloads.RefundGrantedEvent
		if err := decode(envelope, &event); err != nil {
			return nil, err
		}
		row.OrderID = event.OrderID.String()
		if event.RefCode != nil {
			row.RefCode = nullString(*event.RefCode)
		}
	default:
		return nil, fmt.Errorf("%w: %s", worker.ErrUnsupportedEvent, envelope.EventType)
	}
	return row, nil
}

func decode(envelope worker.Envelope, dest any) error {
	if len(envelope.Payload) == 0 {
		return fmt.Errorf("empty payload for %s", envelope.EventType)
	}
	if err := json.Unmarshal(envelope.Payload, dest); err != nil {
		return fmt.Errorf("decode %s payload: %w", envelope.EventType, err)
	}
	return nil
}

func nullString(value string) cbigquery.NullString {
	trimmed := strings.TrimSpace(value)
	return cbigquery.NullString{StringVal: trimmed, Valid: trimmed != ""}
}
