package square

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	sq "github.com/square/square-go-sdk"
	sqcore "github.com/square/square-go-sdk/core"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestDecodeAPIError(t *testing.T) {
	body := `{"errors":[{"category":"PAYMENT_METHOD_ERROR","code":"CARD_DECLINED","detail":"Card declined."}]}`
	err := fmt.Errorf("square create payment: %w", sqcore.NewAPIError(http.StatusPaymentRequired, errors.New(body)))

	failure, ok := DecodeAPIError(err)
	if !ok {
		t.Fatalf("expected api error to be detected")
	}
	if failure.Status != http.StatusPaymentRequired {
		t.Fatalf("unexpected status %d", failure.Status)
	}
	if failure.Category() != sq.ErrorCategoryPaymentMethodError || failure.Detail() != "Card declined." {
		t.Fatalf("unexpected failure %q %q", failure.Category(), failure.Detail())
	}

	if _, ok := DecodeAPIError(errors.New("dial tcp: timeout")); ok {
		t.Fatalf("transport errors are not api errors")
	}
}

func TestDecodeAPIErrorWithUnreadableBody(t *testing.T) {
	failure, ok := DecodeAPIError(sqcore.NewAPIError(http.StatusBadGateway, errors.New("<html>bad gateway</html>")))
	if !ok || failure.Status != http.StatusBadGateway {
		t.Fatalf("status should survive an unreadable body: %+v", failure)
	}
	if failure.Category() != "" || failure.Detail() != "" {
		t.Fatalf("expected no decoded errors, got %+v", failure.Errors)
	}
}

func TestNewClientValidatesConfig(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard})
	ctx := context.Background()

	cases := []struct {
		cfg  config.SquareConfig
		want error
	}{
		{config.SquareConfig{LocationID: "L1"}, errNoToken},
		{config.SquareConfig{AccessToken: "tok"}, errNoLocation},
		{config.SquareConfig{AccessToken: "tok", LocationID: "L1", Env: "staging"}, errUnknownEnv},
	}
	for _, tc := range cases {
		if _, err := NewClient(ctx, tc.cfg, logg); !errors.Is(err, tc.want) {
			t.Fatalf("expected %v, got %v", tc.want, err)
		}
	}
	if _, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok", LocationID: "L1"}, nil); !errors.Is(err, errNoLogger) {
		t.Fatalf("expected missing logger error, got %v", err)
	}

	client, err := NewClient(ctx, config.SquareConfig{AccessToken: "tok", LocationID: " L1 ", Env: "PRODUCTION"}, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client.Environment() != "production" || client.LocationID() != "L1" {
		t.Fatalf("unexpected client state %q %q", client.Environment(), client.LocationID())
	}
}

func TestCreatePaymentRequiresIdempotencyKey(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "square-test", Output: io.Discard})
	client, err := NewClient(context.Background(), config.SquareConfig{AccessToken: "tok", LocationID: "L1"}, logg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.CreatePayment(context.Background(), PaymentRequest{AmountMinor: 100, SourceID: "cnon:card"}); !errors.Is(err, errNoIdempotencyKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}
}

func TestPaymentRequestToSDK(t *testing.T) {
	req := PaymentRequest{
		AmountMinor:    2695,
		Currency:       "inr",
		SourceID:       "cnon:card",
		IdempotencyKey: "order-1-abc",
		Note:           " desc ",
	}.toSDK("L1")

	if req.IdempotencyKey != "order-1-abc" || req.SourceID != "cnon:card" || *req.LocationID != "L1" {
		t.Fatalf("unexpected request identity %+v", req)
	}
	if *req.AmountMoney.Amount != 2695 || *req.AmountMoney.Currency != sq.Currency("INR") {
		t.Fatalf("unexpected money %+v", req.AmountMoney)
	}
	if req.Note == nil || *req.Note != "desc" {
		t.Fatalf("expected trimmed note")
	}
	if req.ReferenceID != nil {
		t.Fatalf("expected empty reference to stay nil")
	}

	if got := (PaymentRequest{}).toSDK("L1").AmountMoney.Currency; *got != sq.Currency("USD") {
		t.Fatalf("expected USD fallback, got %s", *got)
	}
}
