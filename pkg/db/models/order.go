package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

// Order is a buyer's cart while Ordered is false and immutable purchase
// history afterwards. At most one unordered row exists per user
// (ux_orders_active_user).
type Order struct {
	ID                uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID            uuid.UUID            `gorm:"column:user_id;type:uuid;not null"`
	RefCode           *string              `gorm:"column:ref_code"`
	Ordered           bool                 `gorm:"column:ordered;not null;default:false"`
	StartDate         time.Time            `gorm:"column:start_date;not null"`
	OrderedDate       time.Time            `gorm:"column:ordered_date;not null"`
	BillingAddressID  *uuid.UUID           `gorm:"column:billing_address_id;type:uuid"`
	BillingAddress    *Address             `gorm:"foreignKey:BillingAddressID"`
	ShippingAddressID *uuid.UUID           `gorm:"column:shipping_address_id;type:uuid"`
	ShippingAddress   *Address             `gorm:"foreignKey:ShippingAddressID"`
	PaymentID         *uuid.UUID           `gorm:"column:payment_id;type:uuid"`
	Payment           *Payment             `gorm:"foreignKey:PaymentID"`
	CouponID          *uuid.UUID           `gorm:"column:coupon_id;type:uuid"`
	Coupon            *Coupon              `gorm:"foreignKey:CouponID"`
	PaymentOption     *enums.PaymentOption `gorm:"column:payment_option"`
	BeingDelivered    bool                 `gorm:"column:being_delivered;not null;default:false"`
	Received          bool                 `gorm:"column:received;not null;default:false"`
	RefundRequested   bool                 `gorm:"column:refund_requested;not null;default:false"`
	RefundGranted     bool                 `gorm:"column:refund_granted;not null;default:false"`
	Items             []OrderItem          `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// OrderItem is one line of an order. At most one unordered line exists per
// (user, item) pair (ux_order_items_open_line).
type OrderItem struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null"`
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;not null"`
	ItemID    uuid.UUID `gorm:"column:item_id;type:uuid;not null"`
	Item      Item      `gorm:"foreignKey:ItemID"`
	Quantity  int       `gorm:"column:quantity;not null;default:1"`
	Ordered   bool      `gorm:"column:ordered;not null;default:false"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (oi *OrderItem) BeforeCreate(*gorm.DB) error {
	if oi.ID == uuid.Nil {
		oi.ID = uuid.New()
	}
	return nil
}
