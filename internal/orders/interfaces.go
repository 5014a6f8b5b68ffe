package orders

import (
	"context"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders, their lines, payments
// and addresses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindActiveOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	FindByRefCode(ctx context.Context, refCode string) (*models.Order, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	UpdateOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) error
	FinalizeOrder(ctx context.Context, orderID uuid.UUID, updates map[string]any) (bool, error)

	FindOpenLine(ctx context.Context, userID, itemID uuid.UUID) (*models.OrderItem, error)
	CreateLine(ctx context.Context, line *models.OrderItem) error
	UpdateLine(ctx context.Context, lineID uuid.UUID, updates map[string]any) error
	DeleteLine(ctx context.Context, lineID uuid.UUID) error
	MarkLinesOrdered(ctx context.Context, orderID uuid.UUID) error

	CreateAddress(ctx context.Context, address *models.Address) error
	CreatePayment(ctx context.Context, payment *models.Payment) error

	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	UpdateFlags(ctx context.Context, orderIDs []uuid.UUID, updates map[string]any) (int64, error)
	ListAddresses(ctx context.Context, params pagination.Params, filters AddressFilters) (*AddressList, error)
}
