package payments

import (
	"context"
	"fmt"
	"net/http"

	sq "github.com/square/square-go-sdk"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/square"
)

type squarePayer interface {
	CreatePayment(ctx context.Context, p square.PaymentRequest) (*sq.Payment, error)
}

// SquareProcessor charges wallet nonces through Square payments. It serves
// the paypal checkout option.
type SquareProcessor struct {
	client squarePayer
}

func NewSquareProcessor(client squarePayer) (*SquareProcessor, error) {
	if client == nil {
		return nil, fmt.Errorf("square client required")
	}
	return &SquareProcessor{client: client}, nil
}

func (p *SquareProcessor) Name() enums.PaymentProcessor {
	return enums.PaymentProcessorSquare
}

func (p *SquareProcessor) Charge(ctx context.Context, req ChargeRequest) (*ChargeReceipt, error) {
	payment, err := p.client.CreatePayment(ctx, square.PaymentRequest{
		AmountMinor:    req.AmountMinor,
		Currency:       req.Currency,
		SourceID:       req.Token,
		IdempotencyKey: req.IdempotencyKey,
		Note:           req.Description,
		ReferenceID:    req.ReferenceID,
	})
	if err != nil {
		return nil, classifySquareError(err)
	}
	id := ""
	if payment != nil && payment.ID != nil {
		id = *payment.ID
	}
	return &ChargeReceipt{ChargeID: id, Processor: enums.PaymentProcessorSquare}, nil
}

func classifySquareError(err error) *ProcessorError {
	failure, ok := square.DecodeAPIError(err)
	if !ok {
		return classifyTransport(err)
	}
	switch failure.Category() {
	case sq.ErrorCategoryPaymentMethodError:
		return newProcessorError(enums.PaymentFailureCardDeclined, failure.Detail(), err)
	case sq.ErrorCategoryRateLimitError:
		return newProcessorError(enums.PaymentFailureRateLimited, "", err)
	case sq.ErrorCategoryInvalidRequestError:
		return newProcessorError(enums.PaymentFailureInvalidRequest, "", err)
	case sq.ErrorCategoryAuthenticationError:
		return newProcessorError(enums.PaymentFailureAuthentication, "", err)
	case sq.ErrorCategoryAPIError:
		return newProcessorError(enums.PaymentFailureProcessor, "", err)
	}
	switch status := failure.Status; {
	case status == http.StatusTooManyRequests:
		return newProcessorError(enums.PaymentFailureRateLimited, "", err)
	case status == http.StatusUnauthorized:
		return newProcessorError(enums.PaymentFailureAuthentication, "", err)
	case status >= http.StatusInternalServerError:
		return newProcessorError(enums.PaymentFailureProcessor, "", err)
	case status >= http.StatusBadRequest:
		return newProcessorError(enums.PaymentFailureInvalidRequest, "", err)
	default:
		return newProcessorError(enums.PaymentFailureUnclassified, "", err)
	}
}
