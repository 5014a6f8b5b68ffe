package cart

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type passthroughLocker struct {
	calls int
}

func (l *passthroughLocker) WithUserLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	l.calls++
	return fn(ctx)
}

type busyLocker struct{}

func (busyLocker) WithUserLock(context.Context, uuid.UUID, func(ctx context.Context) error) error {
	return pkgerrors.New(pkgerrors.CodeConflict, "cart is busy, please retry")
}

type recordedOp struct {
	operation string
	outcome   string
}

type fakeMetrics struct {
	ops []recordedOp
}

func (m *fakeMetrics) IncCartOperation(operation, outcome string) {
	m.ops = append(m.ops, recordedOp{operation: operation, outcome: outcome})
}

type cartFixture struct {
	conn    *gorm.DB
	svc     Service
	locker  *passthroughLocker
	metrics *fakeMetrics
	user    uuid.UUID
}

func newCartFixture(t *testing.T) *cartFixture {
	t.Helper()
	conn := dbtest.Open(t)
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), 10)
	require.NoError(t, err)
	locker := &passthroughLocker{}
	metrics := &fakeMetrics{}
	svc, err := NewService(ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      db.Wrap(conn),
		Items:   catalogSvc,
		Locker:  locker,
		Metrics: metrics,
	})
	require.NoError(t, err)
	return &cartFixture{conn: conn, svc: svc, locker: locker, metrics: metrics, user: uuid.New()}
}

func (f *cartFixture) openLines(t *testing.T) []models.OrderItem {
	t.Helper()
	var lines []models.OrderItem
	require.NoError(t, f.conn.Where("user_id = ? AND ordered = ?", f.user, false).Find(&lines).Error)
	return lines
}

func TestAddToCartCreatesOrderThenIncrements(t *testing.T) {
	f := newCartFixture(t)
	dbtest.SeedItem(t, f.conn, "oxford-shirt", "25.00", "")
	ctx := context.Background()

	first, err := f.svc.AddToCart(ctx, f.user, "oxford-shirt")
	require.NoError(t, err)
	assert.Equal(t, MsgItemAdded, first.Notice.Message)
	assert.Equal(t, enums.NoticeInfo, first.Notice.Level)
	require.NotNil(t, first.Line)
	assert.Equal(t, 1, first.Line.Quantity)

	second, err := f.svc.AddToCart(ctx, f.user, "oxford-shirt")
	require.NoError(t, err)
	assert.Equal(t, MsgQuantityUpdated, second.Notice.Message)
	assert.Equal(t, 2, second.Line.Quantity)

	var orderCount int64
	require.NoError(t, f.conn.Model(&models.Order{}).Where("user_id = ?", f.user).Count(&orderCount).Error)
	assert.Equal(t, int64(1), orderCount)
	assert.Len(t, f.openLines(t), 1)
	assert.Equal(t, 2, f.locker.calls)
	assert.Equal(t, []recordedOp{{"add", "added"}, {"add", "updated"}}, f.metrics.ops)
}

func TestAddToCartUnknownSlug(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.AddToCart(context.Background(), f.user, "ghost")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
	assert.Zero(t, f.locker.calls)
}

func TestRemoveFromCartNotices(t *testing.T) {
	f := newCartFixture(t)
	dbtest.SeedItem(t, f.conn, "polo", "15.00", "")
	dbtest.SeedItem(t, f.conn, "hoodie", "40.00", "")
	ctx := context.Background()

	res, err := f.svc.RemoveFromCart(ctx, f.user, "polo")
	require.NoError(t, err)
	assert.Equal(t, MsgNoActiveOrder, res.Notice.Message)

	_, err = f.svc.AddToCart(ctx, f.user, "hoodie")
	require.NoError(t, err)

	res, err = f.svc.RemoveFromCart(ctx, f.user, "polo")
	require.NoError(t, err)
	assert.Equal(t, MsgNotInCart, res.Notice.Message)

	res, err = f.svc.RemoveFromCart(ctx, f.user, "hoodie")
	require.NoError(t, err)
	assert.Equal(t, MsgItemRemoved, res.Notice.Message)
	assert.Empty(t, f.openLines(t))

	order, err := f.svc.GetActiveOrder(ctx, f.user)
	require.NoError(t, err)
	assert.Empty(t, order.Items)
}

func TestAdjustQuantityStopsAtZero(t *testing.T) {
	f := newCartFixture(t)
	dbtest.SeedItem(t, f.conn, "tank", "9.00", "")
	ctx := context.Background()

	_, err := f.svc.AddToCart(ctx, f.user, "tank")
	require.NoError(t, err)

	res, err := f.svc.AdjustQuantity(ctx, f.user, "tank", enums.QuantityIncrement)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Line.Quantity)

	for _, want := range []int{1, 0} {
		res, err = f.svc.AdjustQuantity(ctx, f.user, "tank", enums.QuantityDecrement)
		require.NoError(t, err)
		assert.Equal(t, MsgQuantityUpdated, res.Notice.Message)
		assert.Equal(t, want, res.Line.Quantity)
	}

	res, err = f.svc.AdjustQuantity(ctx, f.user, "tank", enums.QuantityDecrement)
	require.NoError(t, err)
	assert.Equal(t, MsgNothingToRemove, res.Notice.Message)
	assert.Equal(t, 0, res.Line.Quantity)

	lines := f.openLines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, 0, lines[0].Quantity)
}

func TestAdjustQuantityMissingOrderAndBadDirection(t *testing.T) {
	f := newCartFixture(t)
	dbtest.SeedItem(t, f.conn, "vest", "9.00", "")
	ctx := context.Background()

	res, err := f.svc.AdjustQuantity(ctx, f.user, "vest", enums.QuantityIncrement)
	require.NoError(t, err)
	assert.Equal(t, MsgNoActiveOrder, res.Notice.Message)
	assert.Nil(t, res.Line)

	_, err = f.svc.AdjustQuantity(ctx, f.user, "vest", enums.QuantityDirection("sideways"))
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestGetSummaryComputesTotals(t *testing.T) {
	f := newCartFixture(t)
	dbtest.SeedItem(t, f.conn, "item-a", "10", "")
	dbtest.SeedItem(t, f.conn, "item-b", "30", "20")
	coupon := dbtest.SeedCoupon(t, f.conn, "FIVE", "5")
	ctx := context.Background()

	for _, slug := range []string{"item-a", "item-a", "item-b"} {
		_, err := f.svc.AddToCart(ctx, f.user, slug)
		require.NoError(t, err)
	}
	order, err := f.svc.GetActiveOrder(ctx, f.user)
	require.NoError(t, err)
	require.NoError(t, f.conn.Model(&models.Order{}).Where("id = ?", order.ID).Update("coupon_id", coupon.ID).Error)

	summary, err := f.svc.GetSummary(ctx, f.user)
	require.NoError(t, err)
	assert.Len(t, summary.Lines, 2)
	assert.True(t, summary.Total.Equal(dec("35")), "got %s", summary.Total)
}

func TestGetActiveOrderMissing(t *testing.T) {
	f := newCartFixture(t)

	_, err := f.svc.GetActiveOrder(context.Background(), f.user)
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, MsgNoActiveOrder, typed.Message())
}

func TestMutationsSurfaceBusyLock(t *testing.T) {
	conn := dbtest.Open(t)
	dbtest.SeedItem(t, conn, "busy", "1.00", "")
	catalogSvc, err := catalog.NewService(catalog.NewRepository(conn), 10)
	require.NoError(t, err)
	svc, err := NewService(ServiceParams{
		Repo:   orders.NewRepository(conn),
		Tx:     db.Wrap(conn),
		Items:  catalogSvc,
		Locker: busyLocker{},
	})
	require.NoError(t, err)

	_, err = svc.AddToCart(context.Background(), uuid.New(), "busy")
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeConflict, pkgerrors.As(err).Code())
}
