package orders

import (
	"context"
	"fmt"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/google/uuid"
)

// MaxBulkOrders caps how many orders one operator action may touch.
const MaxBulkOrders = 200

// Service exposes the operator order and address surface.
type Service interface {
	ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error)
	MarkBeingDelivered(ctx context.Context, orderIDs []uuid.UUID) (int64, error)
	MarkReceived(ctx context.Context, orderIDs []uuid.UUID) (int64, error)
	ListAddresses(ctx context.Context, params pagination.Params, filters AddressFilters) (*AddressList, error)
}

type service struct {
	repo Repository
}

// NewService builds the operator order service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) ListOrders(ctx context.Context, params pagination.Params, filters OrderFilters) (*OrderList, error) {
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	list, err := s.repo.ListOrders(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return list, nil
}

func (s *service) MarkBeingDelivered(ctx context.Context, orderIDs []uuid.UUID) (int64, error) {
	return s.updateFlags(ctx, orderIDs, map[string]any{"being_delivered": true}, "mark orders being delivered")
}

func (s *service) MarkReceived(ctx context.Context, orderIDs []uuid.UUID) (int64, error) {
	return s.updateFlags(ctx, orderIDs, map[string]any{"received": true}, "mark orders received")
}

func (s *service) ListAddresses(ctx context.Context, params pagination.Params, filters AddressFilters) (*AddressList, error) {
	if filters.AddressType != nil && !filters.AddressType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid address type")
	}
	if err := validateCursor(params); err != nil {
		return nil, err
	}
	list, err := s.repo.ListAddresses(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list addresses")
	}
	return list, nil
}

func (s *service) updateFlags(ctx context.Context, orderIDs []uuid.UUID, updates map[string]any, action string) (int64, error) {
	if err := ValidateOrderIDs(orderIDs); err != nil {
		return 0, err
	}
	count, err := s.repo.UpdateFlags(ctx, orderIDs, updates)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
	}
	return count, nil
}

// ValidateOrderIDs checks a bulk operator selection.
func ValidateOrderIDs(orderIDs []uuid.UUID) error {
	if len(orderIDs) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one order id is required")
	}
	if len(orderIDs) > MaxBulkOrders {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("at most %d orders per request", MaxBulkOrders))
	}
	for _, id := range orderIDs {
		if id == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "order ids must be valid uuids")
		}
	}
	return nil
}

func validateCursor(params pagination.Params) error {
	if err := params.Validate(); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	return nil
}
