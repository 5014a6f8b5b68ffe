package orders

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderFilters describe the operator order list inputs. Nil pointers are
// ignored.
type OrderFilters struct {
	UserID          *uuid.UUID
	Ordered         *bool
	BeingDelivered  *bool
	Received        *bool
	RefundRequested *bool
	RefundGranted   *bool
	RefCode         string
}

// AddressFilters describe the operator address list inputs.
type AddressFilters struct {
	AddressType *enums.AddressType
	IsDefault   *bool
	Country     string
}

// OrderSummary is the operator view of one order row.
type OrderSummary struct {
	ID                uuid.UUID            `json:"id"`
	UserID            uuid.UUID            `json:"user_id"`
	RefCode           *string              `json:"ref_code,omitempty"`
	Ordered           bool                 `json:"ordered"`
	StartDate         time.Time            `json:"start_date"`
	OrderedDate       time.Time            `json:"ordered_date"`
	PaymentOption     *enums.PaymentOption `json:"payment_option,omitempty"`
	BeingDelivered    bool                 `json:"being_delivered"`
	Received          bool                 `json:"received"`
	RefundRequested   bool                 `json:"refund_requested"`
	RefundGranted     bool                 `json:"refund_granted"`
	BillingAddressID  *uuid.UUID           `json:"billing_address_id,omitempty"`
	ShippingAddressID *uuid.UUID           `json:"shipping_address_id,omitempty"`
	PaymentID         *uuid.UUID           `json:"payment_id,omitempty"`
	ChargeID          *string              `json:"charge_id,omitempty"`
	PaidAmount        *decimal.Decimal     `json:"paid_amount,omitempty"`
	CouponCode        *string              `json:"coupon_code,omitempty"`
	CreatedAt         time.Time            `json:"created_at"`
}

// OrderList wraps one page of orders plus the next page cursor.
type OrderList struct {
	Orders     []OrderSummary `json:"orders"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

// AddressSummary is the operator view of one address row.
type AddressSummary struct {
	ID               uuid.UUID         `json:"id"`
	UserID           uuid.UUID         `json:"user_id"`
	StreetAddress    string            `json:"street_address"`
	ApartmentAddress string            `json:"apartment_address"`
	Country          []string          `json:"country"`
	Zip              string            `json:"zip"`
	AddressType      enums.AddressType `json:"address_type"`
	IsDefault        bool              `json:"default"`
	CreatedAt        time.Time         `json:"created_at"`
}

// AddressList wraps one page of addresses plus the next page cursor.
type AddressList struct {
	Addresses  []AddressSummary `json:"addresses"`
	NextCursor string           `json:"next_cursor,omitempty"`
}

func toOrderSummary(o models.Order) OrderSummary {
	summary := OrderSummary{
		ID:                o.ID,
		UserID:            o.UserID,
		RefCode:           o.RefCode,
		Ordered:           o.Ordered,
		StartDate:         o.StartDate,
		OrderedDate:       o.OrderedDate,
		PaymentOption:     o.PaymentOption,
		BeingDelivered:    o.BeingDelivered,
		Received:          o.Received,
		RefundRequested:   o.RefundRequested,
		RefundGranted:     o.RefundGranted,
		BillingAddressID:  o.BillingAddressID,
		ShippingAddressID: o.ShippingAddressID,
		PaymentID:         o.PaymentID,
		CreatedAt:         o.CreatedAt,
	}
	if o.Payment != nil {
		chargeID := o.Payment.ChargeID
		amount := o.Payment.Amount
		summary.ChargeID = &chargeID
		summary.PaidAmount = &amount
	}
	if o.Coupon != nil {
		code := o.Coupon.Code
		summary.CouponCode = &code
	}
	return summary
}

func toAddressSummary(a models.Address) AddressSummary {
	return AddressSummary{
		ID:               a.ID,
		UserID:           a.UserID,
		StreetAddress:    a.StreetAddress,
		ApartmentAddress: a.ApartmentAddress,
		Country:          []string(a.Country),
		Zip:              a.Zip,
		AddressType:      a.AddressType,
		IsDefault:        a.IsDefault,
		CreatedAt:        a.CreatedAt,
	}
}
