package enums

import (
	"fmt"
	"strings"
)

// QuantityDirection is the direction of a cart line quantity adjustment.
type QuantityDirection string

const (
	QuantityIncrement QuantityDirection = "increment"
	QuantityDecrement QuantityDirection = "decrement"
)

// IsValid reports whether the value is a known QuantityDirection.
func (d QuantityDirection) IsValid() bool {
	return d == QuantityIncrement || d == QuantityDecrement
}

// ParseQuantityDirection converts raw input into a QuantityDirection.
func ParseQuantityDirection(value string) (QuantityDirection, error) {
	d := QuantityDirection(strings.ToLower(strings.TrimSpace(value)))
	if !d.IsValid() {
		return "", fmt.Errorf("invalid quantity direction %q", value)
	}
	return d, nil
}

// CheckoutState is derived from an order's persisted checkout fields.
type CheckoutState string

const (
	CheckoutStateCart            CheckoutState = "cart"
	CheckoutStateAddressAssigned CheckoutState = "address_assigned"
	CheckoutStatePaymentSelected CheckoutState = "payment_selected"
	CheckoutStatePaid            CheckoutState = "paid"
)

// String implements fmt.Stringer.
func (s CheckoutState) String() string {
	return string(s)
}

// NoticeLevel mirrors the flash levels shown to buyers.
type NoticeLevel string

const (
	NoticeInfo    NoticeLevel = "info"
	NoticeSuccess NoticeLevel = "success"
	NoticeWarning NoticeLevel = "warning"
)
