package coupons

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MsgInvalidCoupon = "This is not a valid coupon"
	MsgCouponApplied = "Successfully added coupon"
	MsgNoActiveOrder = "You do not have any active order"
)

type couponFinder interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// Service resolves coupon codes against the active order.
type Service interface {
	ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*ApplyResult, error)
}

// ApplyResult reports the attached coupon.
type ApplyResult struct {
	Notice types.Notice   `json:"notice"`
	Coupon *models.Coupon `json:"-"`
	Code   string         `json:"code"`
}

type service struct {
	coupons couponFinder
	orders  orders.Repository
	locker  locks.UserLocker
}

// NewService builds the coupon resolver.
func NewService(coupons couponFinder, ordersRepo orders.Repository, locker locks.UserLocker) (Service, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if locker == nil {
		return nil, fmt.Errorf("user locker required")
	}
	return &service{coupons: coupons, orders: ordersRepo, locker: locker}, nil
}

// ApplyCoupon attaches the first coupon matching code to the active order,
// replacing any coupon already attached. An unknown code leaves the order
// untouched.
func (s *service) ApplyCoupon(ctx context.Context, userID uuid.UUID, code string) (*ApplyResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "coupon code is required")
	}

	var result *ApplyResult
	err := s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		order, err := s.orders.FindActiveOrder(ctx, userID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, MsgNoActiveOrder)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
		}

		coupon, err := s.coupons.FindByCode(ctx, code)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, MsgInvalidCoupon)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load coupon")
		}

		if err := s.orders.UpdateOrder(ctx, order.ID, map[string]any{"coupon_id": coupon.ID}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach coupon")
		}
		result = &ApplyResult{
			Notice: types.Success(MsgCouponApplied),
			Coupon: coupon,
			Code:   coupon.Code,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
