package orders

import (
	"context"
	"testing"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newActiveOrder(t *testing.T, conn *gorm.DB, userID uuid.UUID) *models.Order {
	t.Helper()
	now := time.Now().UTC()
	order := &models.Order{UserID: userID, StartDate: now, OrderedDate: now}
	require.NoError(t, NewRepository(conn).CreateOrder(context.Background(), order))
	return order
}

func TestRepositorySingleActiveOrderPerUser(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	userID := uuid.New()

	newActiveOrder(t, conn, userID)

	now := time.Now().UTC()
	err := repo.CreateOrder(context.Background(), &models.Order{UserID: userID, StartDate: now, OrderedDate: now})
	require.Error(t, err)
	assert.True(t, db.IsUniqueViolation(err, "ux_orders_active_user"))
}

func TestRepositoryOpenLineUniquePerUserAndItem(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	userID := uuid.New()
	item := dbtest.SeedItem(t, conn, "red-shirt", "10.00", "")
	order := newActiveOrder(t, conn, userID)

	ctx := context.Background()
	require.NoError(t, repo.CreateLine(ctx, &models.OrderItem{UserID: userID, OrderID: order.ID, ItemID: item.ID, Quantity: 1}))
	err := repo.CreateLine(ctx, &models.OrderItem{UserID: userID, OrderID: order.ID, ItemID: item.ID, Quantity: 1})
	require.Error(t, err)

	require.NoError(t, repo.MarkLinesOrdered(ctx, order.ID))
	require.NoError(t, repo.CreateLine(ctx, &models.OrderItem{UserID: userID, OrderID: order.ID, ItemID: item.ID, Quantity: 1}))
}

func TestRepositoryFindActiveOrderPreloadsLines(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()
	item := dbtest.SeedItem(t, conn, "blue-shirt", "12.50", "9.99")
	coupon := dbtest.SeedCoupon(t, conn, "SAVE5", "5")
	order := newActiveOrder(t, conn, userID)
	require.NoError(t, repo.CreateLine(ctx, &models.OrderItem{UserID: userID, OrderID: order.ID, ItemID: item.ID, Quantity: 2}))
	require.NoError(t, repo.UpdateOrder(ctx, order.ID, map[string]any{"coupon_id": coupon.ID}))

	loaded, err := repo.FindActiveOrder(ctx, userID)
	require.NoError(t, err)
	require.Len(t, loaded.Items, 1)
	assert.Equal(t, "blue-shirt", loaded.Items[0].Item.Slug)
	assert.Equal(t, 2, loaded.Items[0].Quantity)
	require.NotNil(t, loaded.Coupon)
	assert.Equal(t, "SAVE5", loaded.Coupon.Code)

	_, err = repo.FindActiveOrder(ctx, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositoryFinalizeOrderIsCompareAndSwap(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	order := newActiveOrder(t, conn, uuid.New())

	won, err := repo.FinalizeOrder(ctx, order.ID, map[string]any{"ref_code": "abc"})
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.FinalizeOrder(ctx, order.ID, map[string]any{"ref_code": "def"})
	require.NoError(t, err)
	assert.False(t, won)

	found, err := repo.FindByRefCode(ctx, "abc")
	require.NoError(t, err)
	assert.True(t, found.Ordered)
}

func TestRepositoryListOrdersFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	paidUser := uuid.New()
	paid := newActiveOrder(t, conn, paidUser)
	_, err := repo.FinalizeOrder(ctx, paid.ID, map[string]any{"ref_code": "refabc123"})
	require.NoError(t, err)
	newActiveOrder(t, conn, uuid.New())

	ordered := true
	list, err := repo.ListOrders(ctx, pagination.Params{Limit: 10}, OrderFilters{Ordered: &ordered})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.Equal(t, paid.ID, list.Orders[0].ID)

	list, err = repo.ListOrders(ctx, pagination.Params{Limit: 10}, OrderFilters{RefCode: "ABC"})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)

	list, err = repo.ListOrders(ctx, pagination.Params{Limit: 1}, OrderFilters{})
	require.NoError(t, err)
	assert.Len(t, list.Orders, 1)
	assert.NotEmpty(t, list.NextCursor)
}

func TestRepositoryUpdateFlagsSkipsActiveCarts(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	paid := newActiveOrder(t, conn, uuid.New())
	_, err := repo.FinalizeOrder(ctx, paid.ID, map[string]any{})
	require.NoError(t, err)
	cart := newActiveOrder(t, conn, uuid.New())

	count, err := repo.UpdateFlags(ctx, []uuid.UUID{paid.ID, cart.ID}, map[string]any{"being_delivered": true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryListAddressesFilters(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.CreateAddress(ctx, &models.Address{
		UserID: userID, StreetAddress: "1 Main St", Country: pq.StringArray{"US"}, Zip: "10001",
		AddressType: enums.AddressTypeBilling, IsDefault: true,
	}))
	require.NoError(t, repo.CreateAddress(ctx, &models.Address{
		UserID: userID, StreetAddress: "2 High St", Country: pq.StringArray{"GB"}, Zip: "SW1",
		AddressType: enums.AddressTypeShipping,
	}))

	billing := enums.AddressTypeBilling
	list, err := repo.ListAddresses(ctx, pagination.Params{}, AddressFilters{AddressType: &billing})
	require.NoError(t, err)
	require.Len(t, list.Addresses, 1)
	assert.Equal(t, []string{"US"}, list.Addresses[0].Country)

	list, err = repo.ListAddresses(ctx, pagination.Params{}, AddressFilters{Country: "gb"})
	require.NoError(t, err)
	require.Len(t, list.Addresses, 1)
	assert.Equal(t, "2 High St", list.Addresses[0].StreetAddress)
}
