package bigquery

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const lookupTimeout = 10 * time.Second

var (
	errNoProject = errors.New("gcp project id is required")
	errNoDataset = errors.New("bigquery dataset is required")
	errNoTable   = errors.New("bigquery table name is required")
	errNoClient  = errors.New("bigquery client not initialized")
)

// Keyed rows carry a streaming insert id so BigQuery can drop the duplicates
// an at-least-once subscriber produces.
type Keyed interface {
	InsertID() string
}

// Client streams analytics rows into one dataset. Inserters are cached per
// table.
type Client struct {
	bq      *bigquery.Client
	dataset *bigquery.Dataset
	events  string

	mu        sync.Mutex
	inserters map[string]*bigquery.Inserter
}

// NewClient connects and fails fast when the dataset or the order events
// table is missing.
func NewClient(ctx context.Context, gcp config.GCPConfig, cfg config.BigQueryConfig, logg *logger.Logger) (*Client, error) {
	project := strings.TrimSpace(gcp.ProjectID)
	dataset := strings.TrimSpace(cfg.Dataset)
	events := strings.TrimSpace(cfg.OrderEventsTable)
	switch {
	case project == "":
		return nil, errNoProject
	case dataset == "":
		return nil, errNoDataset
	case events == "":
		return nil, errNoTable
	}

	bq, err := bigquery.NewClient(ctx, project, credentials(gcp)...)
	if err != nil {
		return nil, fmt.Errorf("creating bigquery client: %w", err)
	}
	c := &Client{
		bq:        bq,
		dataset:   bq.Dataset(dataset),
		events:    events,
		inserters: map[string]*bigquery.Inserter{},
	}
	if err := c.Ping(ctx); err != nil {
		_ = bq.Close()
		return nil, err
	}

	if logg != nil {
		logg.Info(logg.WithFields(ctx, map[string]any{"dataset": dataset, "table": events}), "bigquery client initialized")
	}
	return c, nil
}

// credentials prefers inline JSON over a key file; neither means ADC.
func credentials(gcp config.GCPConfig) []option.ClientOption {
	if raw := strings.TrimSpace(gcp.CredentialsJSON); raw != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(raw))}
	}
	if path := strings.TrimSpace(gcp.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// Ping confirms the dataset and order events table are reachable.
func (c *Client) Ping(ctx context.Context) error {
	if c == nil || c.dataset == nil {
		return errNoClient
	}
	ctx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	if _, err := c.dataset.Metadata(ctx); err != nil {
		return describeLookup("dataset", c.dataset.DatasetID, err)
	}
	if _, err := c.dataset.Table(c.events).Metadata(ctx); err != nil {
		return describeLookup("table", c.events, err)
	}
	return nil
}

func (c *Client) OrderEventsTable() string {
	if c == nil {
		return ""
	}
	return c.events
}

// InsertRows streams rows into table. Rows implementing Keyed are sent with
// their insert id.
func (c *Client) InsertRows(ctx context.Context, table string, rows []any) error {
	if c == nil || c.bq == nil {
		return errNoClient
	}
	table = strings.TrimSpace(table)
	if table == "" {
		return errNoTable
	}
	if len(rows) == 0 {
		return nil
	}
	return c.inserter(table).Put(ctx, withInsertIDs(rows))
}

func (c *Client) inserter(table string) *bigquery.Inserter {
	c.mu.Lock()
	defer c.mu.Unlock()
	ins, ok := c.inserters[table]
	if !ok {
		ins = c.dataset.Table(table).Inserter()
		c.inserters[table] = ins
	}
	return ins
}

func withInsertIDs(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		if keyed, ok := row.(Keyed); ok && keyed.InsertID() != "" {
			out[i] = &bigquery.StructSaver{Struct: row, InsertID: keyed.InsertID()}
			continue
		}
		out[i] = row
	}
	return out
}

func (c *Client) Close() error {
	if c == nil || c.bq == nil {
		return nil
	}
	return c.bq.Close()
}

func describeLookup(kind, name string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s %q does not exist", kind, name)
	}
	return fmt.Errorf("checking %s %q: %w", kind, name, err)
}
