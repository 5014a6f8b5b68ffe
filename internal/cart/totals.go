package cart

import (
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LineTotal is quantity × list price.
func LineTotal(line models.OrderItem) decimal.Decimal {
	return line.Item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// LineDiscountTotal is quantity × discount price, or zero when the item has
// no discount price.
func LineDiscountTotal(line models.OrderItem) decimal.Decimal {
	if line.Item.DiscountPrice == nil {
		return decimal.Zero
	}
	return line.Item.DiscountPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
}

// LineAmountSaved is the difference between the list and discounted totals.
func LineAmountSaved(line models.OrderItem) decimal.Decimal {
	if line.Item.DiscountPrice == nil {
		return decimal.Zero
	}
	return LineTotal(line).Sub(LineDiscountTotal(line))
}

// LineFinalPrice is the discounted total when a discount price exists, else
// the list total.
func LineFinalPrice(line models.OrderItem) decimal.Decimal {
	if line.Item.DiscountPrice != nil {
		return LineDiscountTotal(line)
	}
	return LineTotal(line)
}

// OrderTotal sums every line's final price and subtracts the attached coupon.
// The result is not floored at zero.
func OrderTotal(order models.Order) decimal.Decimal {
	total := decimal.Zero
	for _, line := range order.Items {
		total = total.Add(LineFinalPrice(line))
	}
	if order.Coupon != nil {
		total = total.Sub(order.Coupon.Amount)
	}
	return total
}

// LineSummary is the buyer view of one cart line.
type LineSummary struct {
	ID            uuid.UUID        `json:"id"`
	ItemSlug      string           `json:"item_slug"`
	Title         string           `json:"title"`
	Quantity      int              `json:"quantity"`
	Price         decimal.Decimal  `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price,omitempty"`
	Total         decimal.Decimal  `json:"total"`
	DiscountTotal decimal.Decimal  `json:"discount_total"`
	AmountSaved   decimal.Decimal  `json:"amount_saved"`
	FinalPrice    decimal.Decimal  `json:"final_price"`
}

// OrderSummary is the buyer view of the active order.
type OrderSummary struct {
	OrderID      uuid.UUID        `json:"order_id"`
	Lines        []LineSummary    `json:"lines"`
	CouponCode   *string          `json:"coupon_code,omitempty"`
	CouponAmount *decimal.Decimal `json:"coupon_amount,omitempty"`
	Total        decimal.Decimal  `json:"total"`
}

// SummarizeLine maps an order line to its buyer view.
func SummarizeLine(line models.OrderItem) LineSummary {
	return LineSummary{
		ID:            line.ID,
		ItemSlug:      line.Item.Slug,
		Title:         line.Item.Title,
		Quantity:      line.Quantity,
		Price:         line.Item.Price,
		DiscountPrice: line.Item.DiscountPrice,
		Total:         LineTotal(line),
		DiscountTotal: LineDiscountTotal(line),
		AmountSaved:   LineAmountSaved(line),
		FinalPrice:    LineFinalPrice(line),
	}
}

// Summarize builds the buyer view of an order with per-line totals.
func Summarize(order models.Order) OrderSummary {
	summary := OrderSummary{
		OrderID: order.ID,
		Lines:   make([]LineSummary, 0, len(order.Items)),
		Total:   OrderTotal(order),
	}
	for _, line := range order.Items {
		summary.Lines = append(summary.Lines, SummarizeLine(line))
	}
	if order.Coupon != nil {
		code := order.Coupon.Code
		amount := order.Coupon.Amount
		summary.CouponCode = &code
		summary.CouponAmount = &amount
	}
	return summary
}
