package enums

// PaymentFailureCategory classifies a failed charge attempt.
type PaymentFailureCategory string

const (
	PaymentFailureCardDeclined   PaymentFailureCategory = "card_declined"
	PaymentFailureRateLimited    PaymentFailureCategory = "rate_limited"
	PaymentFailureInvalidRequest PaymentFailureCategory = "invalid_request"
	PaymentFailureAuthentication PaymentFailureCategory = "authentication"
	PaymentFailureNetwork        PaymentFailureCategory = "network"
	PaymentFailureProcessor      PaymentFailureCategory = "processor"
	PaymentFailureUnclassified   PaymentFailureCategory = "unclassified"
	// PaymentFailureUnrecorded means the processor captured funds but the
	// order could not be finalized; an operator must reconcile or refund.
	PaymentFailureUnrecorded PaymentFailureCategory = "captured_unrecorded"
)

var validPaymentFailureCategories = []PaymentFailureCategory{
	PaymentFailureCardDeclined,
	PaymentFailureRateLimited,
	PaymentFailureInvalidRequest,
	PaymentFailureAuthentication,
	PaymentFailureNetwork,
	PaymentFailureProcessor,
	PaymentFailureUnclassified,
	PaymentFailureUnrecorded,
}

// String implements fmt.Stringer.
func (c PaymentFailureCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known PaymentFailureCategory.
func (c PaymentFailureCategory) IsValid() bool {
	for _, candidate := range validPaymentFailureCategories {
		if candidate == c {
			return true
		}
	}
	return false
}
