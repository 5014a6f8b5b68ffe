package bigquery

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

type keyedRow struct{ ID string }

func (k keyedRow) InsertID() string { return k.ID }

func TestCredentialsPreferInlineJSON(t *testing.T) {
	both := config.GCPConfig{CredentialsJSON: `{"type":"service_account"}`, ApplicationCredentials: "/etc/gcp/key.json"}
	if got := credentials(both); len(got) != 1 {
		t.Fatalf("expected a single credentials option, got %d", len(got))
	}
	if got := credentials(config.GCPConfig{ApplicationCredentials: " /etc/gcp/key.json "}); len(got) != 1 {
		t.Fatalf("expected the key file option, got %d", len(got))
	}
	if got := credentials(config.GCPConfig{CredentialsJSON: "  "}); got != nil {
		t.Fatalf("blank credentials should fall back to ADC, got %d options", len(got))
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		gcp  config.GCPConfig
		cfg  config.BigQueryConfig
		want error
	}{
		{config.GCPConfig{}, config.BigQueryConfig{Dataset: "storefront", OrderEventsTable: "order_events"}, errNoProject},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{OrderEventsTable: "order_events"}, errNoDataset},
		{config.GCPConfig{ProjectID: "p"}, config.BigQueryConfig{Dataset: "storefront", OrderEventsTable: " "}, errNoTable},
	}
	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.gcp, tc.cfg, nil); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
}

func TestWithInsertIDsWrapsKeyedRows(t *testing.T) {
	plain := map[string]any{"event_id": "x"}
	out := withInsertIDs([]any{keyedRow{ID: "evt-1"}, keyedRow{}, plain})

	saver, ok := out[0].(*bigquery.StructSaver)
	if !ok || saver.InsertID != "evt-1" {
		t.Fatalf("keyed row not wrapped: %#v", out[0])
	}
	if _, ok := out[1].(keyedRow); !ok {
		t.Fatalf("row without id should pass through, got %#v", out[1])
	}
	if _, ok := out[2].(map[string]any); !ok {
		t.Fatalf("plain row should pass through, got %#v", out[2])
	}
}

func TestDescribeLookup(t *testing.T) {
	missing := describeLookup("table", "order_events", &googleapi.Error{Code: http.StatusNotFound})
	if missing.Error() != `table "order_events" does not exist` {
		t.Fatalf("unexpected not-found text %q", missing)
	}

	cause := &googleapi.Error{Code: http.StatusForbidden}
	denied := describeLookup("dataset", "storefront", cause)
	if !errors.As(denied, new(*googleapi.Error)) {
		t.Fatalf("non-404 errors must keep their cause: %v", denied)
	}
}

func TestNilClientIsSafe(t *testing.T) {
	var c *Client
	if err := c.InsertRows(context.Background(), "order_events", []any{1}); !errors.Is(err, errNoClient) {
		t.Fatalf("expected errNoClient, got %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close on nil client: %v", err)
	}
	if c.OrderEventsTable() != "" {
		t.Fatalf("nil client has no table")
	}
}
