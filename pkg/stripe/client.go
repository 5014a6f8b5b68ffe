package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	testEnv = "test"
	liveEnv = "live"
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", testEnv, liveEnv)
)

// Client wraps Stripe's API client plus env-specific metadata.
type Client struct {
	api         *stripe.Client
	environment string
	logger      *logger.Logger
}

// ChargeInput describes a single card charge. Amount is in the currency's
// smallest unit; Source is the tokenized card.
type ChargeInput struct {
	Amount         int64
	Currency       string
	Description    string
	Source         string
	IdempotencyKey string
}

// NewClient builds a Stripe API client bound to the configured key.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger, opts ...stripe.ClientOption) (*Client, error) {
	env, err := normalizeEnv(cfg.Environment())
	if err != nil {
		return nil, err
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}

	if err := validateAPIKey(env, apiKey); err != nil {
		return nil, err
	}

	api := stripe.NewClient(apiKey, opts...)

	if logg != nil {
		logg.Info(ctx, fmt.Sprintf("stripe client initialized (%s)", env))
	}

	return &Client{
		api:         api,
		environment: env,
		logger:      logg,
	}, nil
}

// API returns the underlying Stripe API client.
func (c *Client) API() *stripe.Client {
	if c == nil {
		return nil
	}
	return c.api
}

// Environment reports the normalized Stripe environment in use.
func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

// CreateCharge books a one-off charge against a card token. Errors from
// Stripe are returned as *stripe.Error for classification upstream.
func (c *Client) CreateCharge(ctx context.Context, in ChargeInput) (*stripe.Charge, error) {
	if c == nil || c.api == nil {
		return nil, errors.New("stripe client not initialized")
	}
	params := &stripe.ChargeCreateParams{
		Amount:      stripe.Int64(in.Amount),
		Currency:    stripe.String(strings.ToLower(strings.TrimSpace(in.Currency))),
		Description: stripe.String(in.Description),
	}
	if err := params.SetSource(in.Source); err != nil {
		return nil, fmt.Errorf("stripe charge source: %w", err)
	}
	if key := strings.TrimSpace(in.IdempotencyKey); key != "" {
		params.SetIdempotencyKey(key)
	}

	ch, err := c.api.V1Charges.Create(ctx, params)
	if err != nil {
		if c.logger != nil {
			c.logger.Warn(c.logger.WithField(ctx, "currency", in.Currency), "stripe charge failed")
		}
		return nil, err
	}
	if c.logger != nil {
		ctx = c.logger.WithFields(ctx, map[string]any{"charge_id": ch.ID, "status": string(ch.Status)})
		c.logger.Info(ctx, "stripe charge created")
	}
	return ch, nil
}

func normalizeEnv(raw string) (string, error) {
	env := strings.TrimSpace(strings.ToLower(raw))
	if env == "" {
		env = testEnv
	}
	switch env {
	case testEnv, liveEnv:
		return env, nil
	default:
		return "", errInvalidStripeEnv
	}
}

func validateAPIKey(env, key string) error {
	switch env {
	case testEnv:
		if strings.HasPrefix(key, "sk_test") || strings.HasPrefix(key, "rk_test") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a test secret key (sk_test/rk_test)", testEnv)
	case liveEnv:
		if strings.HasPrefix(key, "sk_live") || strings.HasPrefix(key, "rk_live") {
			return nil
		}
		return fmt.Errorf("stripe environment %q requires a live secret key (sk_live/rk_live)", liveEnv)
	default:
		return errInvalidStripeEnv
	}
}
