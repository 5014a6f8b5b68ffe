package payloads

import (
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderPaidLine is a purchased line as it was charged.
type OrderPaidLine struct {
	ItemID     uuid.UUID       `json:"item_id"`
	Slug       string          `json:"slug"`
	Quantity   int             `json:"quantity"`
	FinalPrice decimal.Decimal `json:"final_price"`
}

// OrderPaidEvent is emitted when a charge succeeded and the order was finalized.
type OrderPaidEvent struct {
	OrderID      uuid.UUID              `json:"order_id"`
	UserID       uuid.UUID              `json:"user_id"`
	RefCode      string                 `json:"ref_code"`
	PaymentID    uuid.UUID              `json:"payment_id"`
	ChargeID     string                 `json:"charge_id"`
	Processor    enums.PaymentProcessor `json:"processor"`
	Amount       decimal.Decimal        `json:"amount"`
	ChargedMinor int64                  `json:"charged_minor"`
	Currency     string                 `json:"currency"`
	CouponID     *uuid.UUID             `json:"coupon_id,omitempty"`
	Lines        []OrderPaidLine        `json:"lines"`
	PaidAt       time.Time              `json:"paid_at"`
}

// RefundRequestedEvent is emitted when a buyer asks for a refund by ref code.
type RefundRequestedEvent struct {
	RefundID    uuid.UUID `json:"refund_id"`
	OrderID     uuid.UUID `json:"order_id"`
	RefCode     string    `json:"ref_code"`
	Email       string    `json:"email"`
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// RefundGrantedEvent is emitted once per order when an operator grants a refund.
type RefundGrantedEvent struct {
	OrderID   uuid.UUID  `json:"order_id"`
	RefCode   *string    `json:"ref_code,omitempty"`
	GrantedBy *uuid.UUID `json:"granted_by,omitempty"`
	GrantedAt time.Time  `json:"granted_at"`
}

// OperatorAlertEvent carries a payment problem that needs a human: an
// unclassified processor failure, or a captured charge whose order could not
// be finalized (ChargeID set).
type OperatorAlertEvent struct {
	OrderID      uuid.UUID                    `json:"order_id"`
	UserID       uuid.UUID                    `json:"user_id"`
	Option       enums.PaymentOption          `json:"payment_option"`
	Category     enums.PaymentFailureCategory `json:"category"`
	Error        string                       `json:"error"`
	ChargeID     string                       `json:"charge_id,omitempty"`
	ChargedMinor int64                        `json:"charged_minor,omitempty"`
	RaisedAt     time.Time                    `json:"raised_at"`
}
