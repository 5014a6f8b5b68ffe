package orders

import (
	"context"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

// NewRepository binds the order repository to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindActiveOrder loads the user's unordered order with its lines, items,
// coupon and addresses.
func (r *repository) FindActiveOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("order_items.created_at ASC").Order("order_items.id ASC")
		}).
		Preload("Items.Item").
		Preload("Coupon").
		Preload("BillingAddress").
		Preload("ShippingAddress").
		Where("user_id = ? AND ordered = ?", userID, false).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByRefCode(ctx context.Context, refCode string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Where("ref_code = ?", refCode).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) CreateOrder(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// FinalizeOrder applies updates only while the order is still unordered and
// reports whether this call won the transition.
func (r *repository) FinalizeOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error) {
	updates["ordered"] = true
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND ordered = ?", orderID, false).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindOpenLine(ctx context.Context, userID, itemID uuid.UUID) (*models.OrderItem, error) {
	var line models.OrderItem
	err := r.db.WithContext(ctx).
		Preload("Item").
		Where("user_id = ? AND item_id = ? AND ordered = ?", userID, itemID, false).
		First(&line).Error
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func (r *repository) CreateLine(ctx context.Context, line *models.OrderItem) error {
	return r.db.WithContext(ctx).Omit("Item").Create(line).Error
}

func (r *repository) UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("id = ?", lineID).
		Updates(updates).Error
}

func (r *repository) DeleteLine(ctx context.Context, lineID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", lineID).
		Delete(&models.OrderItem{}).Error
}

func (r *repository) MarkLinesOrdered(ctx context.Context, orderID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Where("order_id = ? AND ordered = ?", orderID, false).
		Update("ordered", true).Error
}

func (r *repository) CreateAddress(ctx context.Context, address *models.Address) error {
	return r.db.WithContext(ctx).Create(address).Error
}

func (r *repository) CreatePayment(ctx context.Context, payment *models.Payment) error {
	return r.db.WithContext(ctx).Create(payment).Error
}

// ListOrders returns newest-first orders matching filters using cursor
// pagination.
func (r *repository) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	q := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Preload("Payment").
		Preload("Coupon")
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}
	for column, value := range map[string]*bool{
		"ordered":          filters.Ordered,
		"being_delivered":  filters.BeingDelivered,
		"received":         filters.Received,
		"refund_requested": filters.RefundRequested,
		"refund_granted":   filters.RefundGranted,
	} {
		if value != nil {
			q = q.Where(column+" = ?", *value)
		}
	}
	if term := strings.TrimSpace(filters.RefCode); term != "" {
		q = q.Where("LOWER(ref_code) LIKE ?", "%"+strings.ToLower(term)+"%")
	}
	q, err := params.Apply(q)
	if err != nil {
		return nil, err
	}

	var rows []models.Order
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	rows, next := pagination.Trim(params, rows, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	list := &OrderList{Orders: make([]OrderSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Orders = append(list.Orders, toOrderSummary(row))
	}
	return list, nil
}

// UpdateFlags applies updates to every listed finalized order and returns the
// number of rows touched. Active carts are never matched.
func (r *repository) UpdateFlags(ctx context.Context, orderIDs []uuid.UUID, updates map[string]any) (int64, error) {
	if len(orderIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id IN ? AND ordered = ?", orderIDs, true).
		Updates(updates)
	return res.RowsAffected, res.Error
}

func (r *repository) ListAddresses(ctx context.Context, params pagination.Params, filters AddressFilters) (*AddressList, error) {
	q := r.db.WithContext(ctx).Model(&models.Address{})
	if filters.AddressType != nil {
		q = q.Where("address_type = ?", *filters.AddressType)
	}
	if filters.IsDefault != nil {
		q = q.Where("is_default = ?", *filters.IsDefault)
	}
	if country := strings.ToUpper(strings.TrimSpace(filters.Country)); country != "" {
		if r.db.Dialector.Name() == "postgres" {
			q = q.Where("? = ANY(country)", country)
		} else {
			q = q.Where("country LIKE ?", "%"+country+"%")
		}
	}
	q, err := params.Apply(q)
	if err != nil {
		return nil, err
	}

	var rows []models.Address
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}

	rows, next := pagination.Trim(params, rows, func(a models.Address) pagination.Cursor {
		return pagination.Cursor{CreatedAt: a.CreatedAt, ID: a.ID}
	})
	list := &AddressList{Addresses: make([]AddressSummary, 0, len(rows)), NextCursor: next}
	for _, row := range rows {
		list.Addresses = append(list.Addresses, toAddressSummary(row))
	}
	return list, nil
}
