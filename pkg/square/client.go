package square

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sq "github.com/square/square-go-sdk"
	sqclient "github.com/square/square-go-sdk/client"
	sqcore "github.com/square/square-go-sdk/core"
	sqoption "github.com/square/square-go-sdk/option"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

var (
	errNoToken          = errors.New("square access token is required")
	errNoLocation       = errors.New("square location id is required")
	errUnknownEnv       = errors.New(`square environment must be "sandbox" or "production"`)
	errNoLogger         = errors.New("square logger is required")
	errNoIdempotencyKey = errors.New("square payment needs an idempotency key")
)

var hosts = map[string]string{
	"sandbox":    sq.Environments.Sandbox,
	"production": sq.Environments.Production,
}

// Client books one-off payments against a single Square location.
type Client struct {
	sdk      *sqclient.Client
	env      string
	location string
	logg     *logger.Logger
}

// NewClient validates credentials without calling Square. SDK retries are
// off; the payment gateway owns timeouts and the circuit breaker.
func NewClient(ctx context.Context, cfg config.SquareConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errNoLogger
	}
	env := cfg.Environment()
	host, ok := hosts[env]
	if !ok {
		return nil, errUnknownEnv
	}
	token := strings.TrimSpace(cfg.AccessToken)
	if token == "" {
		return nil, errNoToken
	}
	location := strings.TrimSpace(cfg.LocationID)
	if location == "" {
		return nil, errNoLocation
	}

	c := &Client{
		sdk: sqclient.NewClient(
			sqoption.WithBaseURL(host),
			sqoption.WithToken(token),
			sqoption.WithMaxAttempts(1),
		),
		env:      env,
		location: location,
		logg:     logg,
	}
	logg.Info(logg.WithFields(ctx, map[string]any{"square_env": env, "location_id": location}), "square client initialized")
	return c, nil
}

func (c *Client) Environment() string { return c.env }

func (c *Client) LocationID() string { return c.location }

// PaymentRequest is a single charge. AmountMinor is in the currency's
// smallest unit; SourceID is the card or wallet nonce.
type PaymentRequest struct {
	AmountMinor    int64
	Currency       string
	SourceID       string
	IdempotencyKey string
	Note           string
	ReferenceID    string
}

func (p PaymentRequest) toSDK(location string) *sq.CreatePaymentRequest {
	currency := sq.Currency(strings.ToUpper(strings.TrimSpace(p.Currency)))
	if currency == "" {
		currency = sq.Currency("USD")
	}
	amount := p.AmountMinor
	return &sq.CreatePaymentRequest{
		IdempotencyKey: p.IdempotencyKey,
		SourceID:       p.SourceID,
		LocationID:     optional(location),
		AmountMoney:    &sq.Money{Amount: &amount, Currency: &currency},
		Note:           optional(p.Note),
		ReferenceID:    optional(p.ReferenceID),
	}
}

// CreatePayment charges the request at the client's location. The nonce is
// never logged.
func (c *Client) CreatePayment(ctx context.Context, p PaymentRequest) (*sq.Payment, error) {
	if strings.TrimSpace(p.IdempotencyKey) == "" {
		return nil, errNoIdempotencyKey
	}
	ctx = c.logg.WithFields(ctx, map[string]any{
		"square_op":    "create_payment",
		"amount_minor": p.AmountMinor,
		"currency":     p.Currency,
		"reference_id": p.ReferenceID,
	})

	resp, err := c.sdk.Payments.Create(ctx, p.toSDK(c.location))
	if err != nil {
		c.logg.Error(ctx, "square payment failed", err)
		return nil, fmt.Errorf("square create payment: %w", err)
	}
	payment := resp.GetPayment()
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"payment_id": deref(payment.GetID()),
		"status":     deref(payment.GetStatus()),
	}), "square payment created")
	return payment, nil
}

// APIFailure is a non-2xx Square response with its decoded error list.
type APIFailure struct {
	Status int
	Errors []*sq.Error
}

// Category is the first category Square reported, or empty.
func (f *APIFailure) Category() sq.ErrorCategory {
	for _, e := range f.Errors {
		if e != nil {
			return e.Category
		}
	}
	return ""
}

// Detail is the first human-readable detail Square reported, or empty.
func (f *APIFailure) Detail() string {
	for _, e := range f.Errors {
		if e != nil && e.Detail != nil {
			return *e.Detail
		}
	}
	return ""
}

// DecodeAPIError finds a Square API response in err's chain. ok is false for
// transport failures.
func DecodeAPIError(err error) (*APIFailure, bool) {
	var apiErr *sqcore.APIError
	if !errors.As(err, &apiErr) {
		return nil, false
	}
	failure := &APIFailure{Status: apiErr.StatusCode}
	if inner := apiErr.Unwrap(); inner != nil {
		var body struct {
			Errors []*sq.Error `json:"errors"`
		}
		if json.Unmarshal([]byte(inner.Error()), &body) == nil {
			failure.Errors = body.Errors
		}
	}
	return failure, true
}

func optional(v string) *string {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
