package enums

import (
	"fmt"
	"strings"
)

// PaymentOption is the checkout payment path chosen by the buyer.
type PaymentOption string

const (
	PaymentOptionStripe PaymentOption = "stripe"
	PaymentOptionPaypal PaymentOption = "paypal"
)

var validPaymentOptions = []PaymentOption{
	PaymentOptionStripe,
	PaymentOptionPaypal,
}

// String implements fmt.Stringer.
func (p PaymentOption) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentOption.
func (p PaymentOption) IsValid() bool {
	for _, candidate := range validPaymentOptions {
		if candidate == p {
			return true
		}
	}
	return false
}

// ParsePaymentOption converts raw input into a PaymentOption. The single letter
// codes used by older checkout forms ("S", "P") are accepted as aliases.
func ParsePaymentOption(value string) (PaymentOption, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	switch normalized {
	case "s":
		return PaymentOptionStripe, nil
	case "p":
		return PaymentOptionPaypal, nil
	}
	for _, candidate := range validPaymentOptions {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid payment option %q", value)
}

// PaymentProcessor names the external processor that captured a charge.
type PaymentProcessor string

const (
	PaymentProcessorStripe PaymentProcessor = "stripe"
	PaymentProcessorSquare PaymentProcessor = "square"
)

// String implements fmt.Stringer.
func (p PaymentProcessor) String() string {
	return string(p)
}

// IsValid reports whether the value is a known PaymentProcessor.
func (p PaymentProcessor) IsValid() bool {
	return p == PaymentProcessorStripe || p == PaymentProcessorSquare
}
