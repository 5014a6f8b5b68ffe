package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	stripeclient "github.com/angelmondragon/storefront-backend/pkg/stripe"
)

type stripeCharger interface {
	CreateCharge(ctx context.Context, in stripeclient.ChargeInput) (*stripe.Charge, error)
}

// StripeProcessor charges card tokens through Stripe.
type StripeProcessor struct {
	client stripeCharger
}

func NewStripeProcessor(client stripeCharger) (*StripeProcessor, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client required")
	}
	return &StripeProcessor{client: client}, nil
}

func (p *StripeProcessor) Name() enums.PaymentProcessor {
	return enums.PaymentProcessorStripe
}

func (p *StripeProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeReceipt, error) {
	ch, err := p.client.CreateCharge(ctx, stripeclient.ChargeInput{
		Amount:         req.AmountMinor,
		Currency:       req.Currency,
		Description:    req.Description,
		Source:         req.Token,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		return nil, classifyStripeError(err)
	}
	return &ChargeReceipt{ChargeID: ch.ID, Processor: enums.PaymentProcessorStripe}, nil
}

func classifyStripeError(err error) *ProcessorError {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return classifyTransport(err)
	}
	switch {
	case stripeErr.Type == stripe.ErrorTypeCard:
		return newProcessorError(enums.PaymentFailureCardDeclined, stripeErr.Msg, err)
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests:
		return newProcessorError(enums.PaymentFailureRateLimited, "", err)
	case stripeErr.Type == stripe.ErrorTypeInvalidRequest:
		return newProcessorError(enums.PaymentFailureInvalidRequest, "", err)
	case stripeErr.HTTPStatusCode == http.StatusUnauthorized:
		return newProcessorError(enums.PaymentFailureAuthentication, "", err)
	default:
		return newProcessorError(enums.PaymentFailureProcessor, "", err)
	}
}
