package checkout

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

type passthroughLocker struct{}

func (passthroughLocker) WithUserLock(ctx context.Context, _ uuid.UUID, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type chargeCall struct {
	orderID uuid.UUID
	option  enums.PaymentOption
	token   string
}

type fakeGateway struct {
	calls []chargeCall
	err   error
}

func (f *fakeGateway) Charge(_ context.Context, order *models.Order, attempt payments.Attempt) (*payments.Result, error) {
	f.calls = append(f.calls, chargeCall{orderID: order.ID, option: attempt.Option, token: attempt.Token})
	if f.err != nil {
		return nil, f.err
	}
	return &payments.Result{Notice: types.Success(payments.MsgPaymentSucceeded), OrderID: order.ID, RefCode: "abcdefghij0123456789"}, nil
}

func (f *fakeGateway) ChargeAmount(total decimal.Decimal) int64 {
	return total.Floor().IntPart() * 77
}

type checkoutFixture struct {
	conn    *gorm.DB
	svc     Service
	gateway *fakeGateway
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	conn := dbtest.Open(t)
	gw := &fakeGateway{}
	svc, err := NewService(ServiceParams{
		Repo:    orders.NewRepository(conn),
		Tx:      db.Wrap(conn),
		Locker:  passthroughLocker{},
		Gateway: gw,
	})
	require.NoError(t, err)
	return &checkoutFixture{conn: conn, svc: svc, gateway: gw}
}

func seedCart(t *testing.T, conn *gorm.DB) (uuid.UUID, *models.Order) {
	t.Helper()
	userID := uuid.New()
	item := dbtest.SeedItem(t, conn, "linen-shirt", "12.80", "")
	now := time.Now().UTC()
	order := &models.Order{UserID: userID, StartDate: now, OrderedDate: now}
	require.NoError(t, conn.Create(order).Error)
	require.NoError(t, conn.Create(&models.OrderItem{UserID: userID, OrderID: order.ID, ItemID: item.ID, Quantity: 2}).Error)
	return userID, order
}

func loadOrder(t *testing.T, conn *gorm.DB, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, conn.First(&order, "id = ?", id).Error)
	return order
}

func validInput(option string) AddressInput {
	return AddressInput{
		StreetAddress:      " 221B Baker Street ",
		Country:            "in",
		Zip:                "110001",
		SaveBillingAddress: true,
		PaymentOption:      option,
	}
}

func TestStateDerivation(t *testing.T) {
	addr := uuid.New()
	option := enums.PaymentOptionStripe

	assert.Equal(t, enums.CheckoutStateCart, State(models.Order{}))
	assert.Equal(t, enums.CheckoutStateAddressAssigned, State(models.Order{BillingAddressID: &addr}))
	assert.Equal(t, enums.CheckoutStatePaymentSelected, State(models.Order{BillingAddressID: &addr, PaymentOption: &option}))
	assert.Equal(t, enums.CheckoutStatePaid, State(models.Order{Ordered: true}))
}

func TestSubmitCheckoutBindsAddressAndOption(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, order := seedCart(t, f.conn)

	res, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("stripe"))
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStatePaymentSelected, res.State)
	assert.Equal(t, enums.PaymentOptionStripe, res.PaymentOption)
	assert.Equal(t, "/api/v1/payment/stripe", res.NextStep)

	stored := loadOrder(t, f.conn, order.ID)
	require.NotNil(t, stored.BillingAddressID)
	require.NotNil(t, stored.ShippingAddressID)
	assert.Equal(t, res.AddressID, *stored.BillingAddressID)
	assert.Equal(t, res.AddressID, *stored.ShippingAddressID)
	require.NotNil(t, stored.PaymentOption)
	assert.Equal(t, enums.PaymentOptionStripe, *stored.PaymentOption)

	var address models.Address
	require.NoError(t, f.conn.First(&address, "id = ?", res.AddressID).Error)
	assert.Equal(t, "221B Baker Street", address.StreetAddress)
	assert.Equal(t, []string{"IN"}, []string(address.Country))
	assert.Equal(t, enums.AddressTypeBilling, address.AddressType)
	assert.True(t, address.IsDefault)
	assert.Equal(t, userID, address.UserID)
}

func TestSubmitCheckoutInvalidOptionLeavesCart(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, order := seedCart(t, f.conn)

	_, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("bitcoin"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, MsgInvalidOption, typed.Message())

	stored := loadOrder(t, f.conn, order.ID)
	assert.Equal(t, enums.CheckoutStateCart, State(stored))
	var addresses int64
	require.NoError(t, f.conn.Model(&models.Address{}).Count(&addresses).Error)
	assert.Zero(t, addresses)
}

func TestSubmitCheckoutInvalidFormReportsFields(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, order := seedCart(t, f.conn)

	_, err := f.svc.SubmitCheckout(context.Background(), userID, AddressInput{Country: "India", PaymentOption: "stripe"})
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, MsgFailedCheckout, typed.Message())
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "street_address")
	assert.Contains(t, details, "zip")
	assert.Contains(t, details, "country")

	assert.Equal(t, enums.CheckoutStateCart, State(loadOrder(t, f.conn, order.ID)))
}

func TestSubmitCheckoutWithoutActiveOrder(t *testing.T) {
	f := newCheckoutFixture(t)

	_, err := f.svc.SubmitCheckout(context.Background(), uuid.New(), validInput("stripe"))
	require.Error(t, err)
	typed := pkgerrors.As(err)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.Equal(t, MsgNoActiveOrder, typed.Message())
}

func TestSubmitCheckoutAcceptsLegacyOptionCodes(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, _ := seedCart(t, f.conn)

	res, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("P"))
	require.NoError(t, err)
	assert.Equal(t, enums.PaymentOptionPaypal, res.PaymentOption)
}

func TestPayRequiresPaymentSelected(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, _ := seedCart(t, f.conn)

	_, err := f.svc.Pay(context.Background(), userID, payments.Attempt{Option: enums.PaymentOptionStripe, Token: "tok_visa"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Empty(t, f.gateway.calls)
}

func TestPayRejectsOtherOption(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, _ := seedCart(t, f.conn)
	_, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("stripe"))
	require.NoError(t, err)

	_, err = f.svc.Pay(context.Background(), userID, payments.Attempt{Option: enums.PaymentOptionPaypal, Token: "cnon:ok"})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeStateConflict, pkgerrors.As(err).Code())
	assert.Empty(t, f.gateway.calls)
}

func TestPayDispatchesToGateway(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, order := seedCart(t, f.conn)
	_, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("stripe"))
	require.NoError(t, err)

	res, err := f.svc.Pay(context.Background(), userID, payments.Attempt{Option: enums.PaymentOptionStripe, Token: "tok_visa"})
	require.NoError(t, err)
	assert.Equal(t, payments.MsgPaymentSucceeded, res.Notice.Message)
	require.Len(t, f.gateway.calls, 1)
	assert.Equal(t, chargeCall{orderID: order.ID, option: enums.PaymentOptionStripe, token: "tok_visa"}, f.gateway.calls[0])
}

func TestPayPropagatesGatewayFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, _ := seedCart(t, f.conn)
	_, err := f.svc.SubmitCheckout(context.Background(), userID, validInput("stripe"))
	require.NoError(t, err)
	f.gateway.err = pkgerrors.New(pkgerrors.CodePayment, "Network Error")

	_, err = f.svc.Pay(context.Background(), userID, payments.Attempt{Option: enums.PaymentOptionStripe, Token: "tok"})
	require.Error(t, err)
	assert.Equal(t, "Network Error", pkgerrors.As(err).Message())
}

func TestGetViewReportsStateAndAmount(t *testing.T) {
	f := newCheckoutFixture(t)
	userID, _ := seedCart(t, f.conn)

	view, err := f.svc.GetView(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, enums.CheckoutStateCart, view.State)
	assert.True(t, view.Summary.Total.Equal(decimal.RequireFromString("25.60")))
	assert.Equal(t, int64(25*77), view.ChargeAmount)
	assert.Nil(t, view.PaymentOption)
}
