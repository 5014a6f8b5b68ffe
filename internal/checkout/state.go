package checkout

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// State derives where an order sits in checkout from its persisted fields.
func State(order models.Order) enums.CheckoutState {
	switch {
	case order.Ordered:
		return enums.CheckoutStatePaid
	case order.BillingAddressID == nil:
		return enums.CheckoutStateCart
	case order.PaymentOption == nil:
		return enums.CheckoutStateAddressAssigned
	default:
		return enums.CheckoutStatePaymentSelected
	}
}

// NextStep is the route the buyer should call after selecting option.
func NextStep(option enums.PaymentOption) string {
	return "/api/v1/payment/" + option.String()
}
