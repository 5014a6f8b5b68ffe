package orders

import (
	"context"
	"testing"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServiceMarkBeingDeliveredAndReceived(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	order := newActiveOrder(t, conn, uuid.New())
	_, err = repo.FinalizeOrder(ctx, order.ID, map[string]any{})
	require.NoError(t, err)

	count, err := svc.MarkBeingDelivered(ctx, []uuid.UUID{order.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = svc.MarkReceived(ctx, []uuid.UUID{order.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	received := true
	list, err := svc.ListOrders(ctx, pagination.Params{}, OrderFilters{Received: &received})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
	assert.True(t, list.Orders[0].BeingDelivered)
}

func TestServiceRejectsBadSelections(t *testing.T) {
	svc, err := NewService(NewRepository(dbtest.Open(t)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.MarkReceived(ctx, nil)
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.MarkBeingDelivered(ctx, []uuid.UUID{uuid.Nil})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	_, err = svc.ListOrders(ctx, pagination.Params{Cursor: "not-a-cursor"}, OrderFilters{})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())

	bogus := enums.AddressType("home")
	_, err = svc.ListAddresses(ctx, pagination.Params{}, AddressFilters{AddressType: &bogus})
	require.Error(t, err)
	assert.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(err).Code())
}

func TestNewServiceRequiresRepository(t *testing.T) {
	_, err := NewService(nil)
	require.Error(t, err)
}
