package refunds

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

func newRefundService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), orders.NewRepository(conn), db.Wrap(conn), outbox.NewService(outbox.NewRepository(conn), nil))
	require.NoError(t, err)
	return svc
}

func seedPaidOrder(t *testing.T, conn *gorm.DB, refCode string) models.Order {
	t.Helper()
	now := time.Now().UTC()
	order := models.Order{UserID: uuid.New(), RefCode: &refCode, Ordered: true, StartDate: now, OrderedDate: now}
	require.NoError(t, conn.Create(&order).Error)
	return order
}

func loadOrder(t *testing.T, conn *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", id).Error)
	return order
}

func countRows(t *testing.T, conn *gorm.DB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func TestRequestRefundFlagsOrderAndEmits(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)
	order := seedPaidOrder(t, conn, "k3j4h5g6f7d8s9a0q1w2")

	res, err := svc.RequestRefund(context.Background(), RequestInput{
		RefCode: " k3j4h5g6f7d8s9a0q1w2 ",
		Reason:  "wrong size",
		Email:   "buyer@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, MsgRefundRequested, res.Notice.Message)

	assert.True(t, loadOrder(t, conn, order.ID).RefundRequested)
	var refund models.Refund
	require.NoError(t, conn.First(&refund, "id = ?", res.RefundID).Error)
	assert.Equal(t, order.ID, refund.OrderID)
	assert.Equal(t, "wrong size", refund.Reason)
	assert.False(t, refund.Accepted)
	assert.Equal(t, int64(1), countRows(t, conn, &models.OutboxEvent{}, "event_type = ?", enums.EventRefundRequested))
}

func TestRequestRefundTwiceAddsRows(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)
	order := seedPaidOrder(t, conn, "aaaaabbbbbcccccddddd")
	input := RequestInput{RefCode: "aaaaabbbbbcccccddddd", Reason: "late", Email: "buyer@example.com"}

	_, err := svc.RequestRefund(context.Background(), input)
	require.NoError(t, err)
	_, err = svc.RequestRefund(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, int64(2), countRows(t, conn, &models.Refund{}, "order_id = ?", order.ID))
}

func TestRequestRefundUnknownRefCode(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)

	_, err := svc.RequestRefund(context.Background(), RequestInput{RefCode: "nope", Reason: "x", Email: "buyer@example.com"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, MsgOrderNotFound, typed.Message())
	assert.Zero(t, countRows(t, conn, &models.Refund{}, ""))
	assert.Zero(t, countRows(t, conn, &models.OutboxEvent{}, ""))
}

func TestRequestRefundValidatesInput(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)

	_, err := svc.RequestRefund(context.Background(), RequestInput{RefCode: "", Reason: "x", Email: "not-an-email"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "ref_code")
	assert.Contains(t, details, "email")
}

func TestGrantRefundsOnlyTouchesListedOrders(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)
	target := seedPaidOrder(t, conn, "11111111112222222222")
	other := seedPaidOrder(t, conn, "33333333334444444444")
	require.NoError(t, conn.Model(&models.Order{}).Where("id IN ?", []uuid.UUID{target.ID, other.ID}).Update("refund_requested", true).Error)

	operator := uuid.New()
	count, err := svc.GrantRefunds(context.Background(), operator, []uuid.UUID{target.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	granted := loadOrder(t, conn, target.ID)
	assert.True(t, granted.RefundGranted)
	assert.False(t, granted.RefundRequested)

	untouched := loadOrder(t, conn, other.ID)
	assert.False(t, untouched.RefundGranted)
	assert.True(t, untouched.RefundRequested)

	assert.Equal(t, int64(1), countRows(t, conn, &models.OutboxEvent{}, "event_type = ? AND aggregate_id = ?", enums.EventRefundGranted, target.ID))
}

func TestGrantRefundsRejectsEmptySelection(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)

	_, err := svc.GrantRefunds(context.Background(), uuid.New(), nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestAcceptRefund(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)
	order := seedPaidOrder(t, conn, "acceptacceptaccept00")
	refund := models.Refund{OrderID: order.ID, Reason: "damaged", Email: "buyer@example.com"}
	require.NoError(t, conn.Create(&refund).Error)

	require.NoError(t, svc.AcceptRefund(context.Background(), refund.ID))
	var stored models.Refund
	require.NoError(t, conn.First(&stored, "id = ?", refund.ID).Error)
	assert.True(t, stored.Accepted)

	err := svc.AcceptRefund(context.Background(), uuid.New())
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeNotFound, pkgerrors.As(err).Code())
}

func TestListRefundsPaginates(t *testing.T) {
	conn := dbtest.Open(t)
	svc := newRefundService(t, conn)
	order := seedPaidOrder(t, conn, "listlistlistlist0000")
	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 3; i++ {
		refund := models.Refund{OrderID: order.ID, Reason: "r", Email: "buyer@example.com", CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, conn.Create(&refund).Error)
	}

	first, err := svc.List(context.Background(), pagination.Params{Limit: 2}, ListFilters{})
	require.NoError(t, err)
	require.Len(t, first.Refunds, 2)
	require.NotEmpty(t, first.NextCursor)
	require.NotNil(t, first.Refunds[0].RefCode)
	assert.Equal(t, "listlistlistlist0000", *first.Refunds[0].RefCode)

	second, err := svc.List(context.Background(), pagination.Params{Limit: 2, Cursor: first.NextCursor}, ListFilters{})
	require.NoError(t, err)
	assert.Len(t, second.Refunds, 1)
	assert.Empty(t, second.NextCursor)

	accepted := true
	none, err := svc.List(context.Background(), pagination.Params{}, ListFilters{Accepted: &accepted})
	require.NoError(t, err)
	assert.Empty(t, none.Refunds)

	_, err = svc.List(context.Background(), pagination.Params{Cursor: "%%%"}, ListFilters{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}
