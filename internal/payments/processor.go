package payments

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

const (
	MsgPaymentSucceeded = "order has succesfully done"

	msgRateLimited    = "Rate limit error"
	msgInvalidRequest = "Invalid Parameters"
	msgAuthentication = "Not authenticated"
	msgNetwork        = "Network Error"
	msgProcessor      = "Something went wrong please try again."
	msgUnclassified   = "A serious error occurred, we have been notified"
)

// ChargeRequest is a single processor charge. AmountMinor is already converted
// to the charge currency's smallest unit.
type ChargeRequest struct {
	AmountMinor    int64
	Currency       string
	Description    string
	Token          string
	IdempotencyKey string
	ReferenceID    string
}

// ChargeReceipt identifies a successful charge at the processor.
type ChargeReceipt struct {
	ChargeID  string
	Processor enums.PaymentProcessor
}

// Processor charges a tokenized payment source.
type Processor interface {
	Name() enums.PaymentProcessor
	Charge(ctx context.Context, req ChargeRequest) (*ChargeReceipt, error)
}

// ProcessorError is a classified charge failure. Message is safe to show to
// the buyer.
type ProcessorError struct {
	Category enums.PaymentFailureCategory
	Message  string
	Err      error
}

func (e *ProcessorError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

func (e *ProcessorError) Unwrap() error {
	return e.Err
}

// newProcessorError builds a ProcessorError carrying the fixed buyer message
// for the category. Card declines keep the processor's own message.
func newProcessorError(category enums.PaymentFailureCategory, message string, err error) *ProcessorError {
	if category != enums.PaymentFailureCardDeclined || message == "" {
		message = MessageFor(category)
	}
	return &ProcessorError{Category: category, Message: message, Err: err}
}

// MessageFor returns the buyer-facing message for a failure category.
func MessageFor(category enums.PaymentFailureCategory) string {
	switch category {
	case enums.PaymentFailureCardDeclined:
		return "Your card was declined."
	case enums.PaymentFailureRateLimited:
		return msgRateLimited
	case enums.PaymentFailureInvalidRequest:
		return msgInvalidRequest
	case enums.PaymentFailureAuthentication:
		return msgAuthentication
	case enums.PaymentFailureNetwork:
		return msgNetwork
	case enums.PaymentFailureProcessor:
		return msgProcessor
	default:
		return msgUnclassified
	}
}

// classifyTransport handles failures that never produced a processor
// response.
func classifyTransport(err error) *ProcessorError {
	if errors.Is(err, context.DeadlineExceeded) {
		return newProcessorError(enums.PaymentFailureNetwork, "", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return newProcessorError(enums.PaymentFailureNetwork, "", err)
	}
	return newProcessorError(enums.PaymentFailureUnclassified, "", err)
}
