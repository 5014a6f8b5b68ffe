package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MsgQuantityUpdated = "This item quantity was updated to your cart"
	MsgItemAdded       = "This item was added to your cart"
	MsgItemRemoved     = "This item was removed from your cart"
	MsgNotInCart       = "This item was not in your cart"
	MsgNoActiveOrder   = "You do not have any active order"
	MsgNothingToRemove = "You have no item to remove."
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type itemResolver interface {
	GetBySlug(ctx context.Context, slug string) (*models.Item, error)
}

type metricsRecorder interface {
	IncCartOperation(operation, outcome string)
}

// Service exposes the cart engine: one active order per user and its lines.
type Service interface {
	AddToCart(ctx context.Context, userID uuid.UUID, slug string) (*MutationResult, error)
	RemoveFromCart(ctx context.Context, userID uuid.UUID, slug string) (*MutationResult, error)
	AdjustQuantity(ctx context.Context, userID uuid.UUID, slug string, direction enums.QuantityDirection) (*MutationResult, error)
	GetActiveOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error)
	GetSummary(ctx context.Context, userID uuid.UUID) (*OrderSummary, error)
}

// MutationResult carries the buyer notice and, when the line still exists,
// its updated view.
type MutationResult struct {
	Notice types.Notice `json:"notice"`
	Line   *LineSummary `json:"line,omitempty"`
}

// ServiceParams wires the cart engine.
type ServiceParams struct {
	Repo    orders.Repository
	Tx      txRunner
	Items   itemResolver
	Locker  locks.UserLocker
	Metrics metricsRecorder
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	items   itemResolver
	locker  locks.UserLocker
	metrics metricsRecorder
	now     func() time.Time
}

// NewService builds the cart engine.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Items == nil {
		return nil, fmt.Errorf("item resolver required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("user locker required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		items:   params.Items,
		locker:  params.Locker,
		metrics: params.Metrics,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// AddToCart increments the user's open line for the item, creating the
// active order and the line on first use.
func (s *service) AddToCart(ctx context.Context, userID uuid.UUID, slug string) (*MutationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	var result *MutationResult
	err = s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)

			order, err := s.findOrCreateActiveOrder(ctx, repo, userID)
			if err != nil {
				return err
			}

			line, err := repo.FindOpenLine(ctx, userID, item.ID)
			switch {
			case err == nil && line.OrderID == order.ID:
				line.Quantity++
				if err := repo.UpdateLine(ctx, line.ID, map[string]any{"quantity": line.Quantity}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
				}
				result = &MutationResult{Notice: types.Info(MsgQuantityUpdated)}
			case err == nil:
				// open line left behind by an earlier order; adopt it as is
				line.OrderID = order.ID
				if err := repo.UpdateLine(ctx, line.ID, map[string]any{"order_id": order.ID}); err != nil {
					return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "attach cart line")
				}
				result = &MutationResult{Notice: types.Info(MsgItemAdded)}
			case errors.Is(err, gorm.ErrRecordNotFound):
				line = &models.OrderItem{
					UserID:   userID,
					OrderID:  order.ID,
					ItemID:   item.ID,
					Quantity: 1,
				}
				if err := repo.CreateLine(ctx, line); err != nil {
					return mapWriteError(err, "create cart line")
				}
				result = &MutationResult{Notice: types.Info(MsgItemAdded)}
			default:
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
			}

			line.Item = *item
			summary := SummarizeLine(*line)
			result.Line = &summary
			return nil
		})
	})
	if err != nil {
		s.record("add", "error")
		return nil, err
	}
	s.record("add", outcomeFor(result.Notice.Message))
	return result, nil
}

// RemoveFromCart deletes the user's open line for the item.
func (s *service) RemoveFromCart(ctx context.Context, userID uuid.UUID, slug string) (*MutationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	var result *MutationResult
	err = s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			line, notice, err := s.findLineInActiveOrder(ctx, repo, userID, item.ID)
			if err != nil {
				return err
			}
			if line == nil {
				result = &MutationResult{Notice: notice}
				return nil
			}
			if err := repo.DeleteLine(ctx, line.ID); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart line")
			}
			result = &MutationResult{Notice: types.Info(MsgItemRemoved)}
			return nil
		})
	})
	if err != nil {
		s.record("remove", "error")
		return nil, err
	}
	s.record("remove", outcomeFor(result.Notice.Message))
	return result, nil
}

// AdjustQuantity moves an existing line up or down by one. A decrement at zero
// is a no-op; the line is never deleted here.
func (s *service) AdjustQuantity(ctx context.Context, userID uuid.UUID, slug string, direction enums.QuantityDirection) (*MutationResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if !direction.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "direction must be increment or decrement")
	}
	item, err := s.items.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}

	var result *MutationResult
	err = s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			line, notice, err := s.findLineInActiveOrder(ctx, repo, userID, item.ID)
			if err != nil {
				return err
			}
			if line == nil {
				result = &MutationResult{Notice: notice}
				return nil
			}

			line.Item = *item
			if direction == enums.QuantityDecrement && line.Quantity <= 0 {
				summary := SummarizeLine(*line)
				result = &MutationResult{Notice: types.Info(MsgNothingToRemove), Line: &summary}
				return nil
			}
			if direction == enums.QuantityIncrement {
				line.Quantity++
			} else {
				line.Quantity--
			}
			if err := repo.UpdateLine(ctx, line.ID, map[string]any{"quantity": line.Quantity}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart line")
			}
			summary := SummarizeLine(*line)
			result = &MutationResult{Notice: types.Info(MsgQuantityUpdated), Line: &summary}
			return nil
		})
	})
	if err != nil {
		s.record(string(direction), "error")
		return nil, err
	}
	s.record(string(direction), outcomeFor(result.Notice.Message))
	return result, nil
}

// GetActiveOrder returns the user's unordered order with lines, items and
// coupon loaded.
func (s *service) GetActiveOrder(ctx context.Context, userID uuid.UUID) (*models.Order, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	order, err := s.repo.FindActiveOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNoActiveOrder)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
	}
	return order, nil
}

func (s *service) GetSummary(ctx context.Context, userID uuid.UUID) (*OrderSummary, error) {
	order, err := s.GetActiveOrder(ctx, userID)
	if err != nil {
		return nil, err
	}
	summary := Summarize(*order)
	return &summary, nil
}

func (s *service) findOrCreateActiveOrder(ctx context.Context, repo orders.Repository, userID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindActiveOrder(ctx, userID)
	if err == nil {
		return order, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
	}

	now := s.now()
	order = &models.Order{
		UserID:      userID,
		StartDate:   now,
		OrderedDate: now,
	}
	if err := repo.CreateOrder(ctx, order); err != nil {
		return nil, mapWriteError(err, "create active order")
	}
	return order, nil
}

// findLineInActiveOrder returns the open line for the item when it belongs to
// the active order. Otherwise it returns the notice to show instead.
func (s *service) findLineInActiveOrder(ctx context.Context, repo orders.Repository, userID, itemID uuid.UUID) (*models.OrderItem, types.Notice, error) {
	order, err := repo.FindActiveOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, types.Info(MsgNoActiveOrder), nil
		}
		return nil, types.Notice{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
	}
	for i := range order.Items {
		if order.Items[i].ItemID == itemID && !order.Items[i].Ordered {
			return &order.Items[i], types.Notice{}, nil
		}
	}
	return nil, types.Info(MsgNotInCart), nil
}

func (s *service) record(operation, outcome string) {
	if s.metrics != nil {
		s.metrics.IncCartOperation(operation, outcome)
	}
}

func outcomeFor(message string) string {
	switch message {
	case MsgItemAdded:
		return "added"
	case MsgQuantityUpdated:
		return "updated"
	case MsgItemRemoved:
		return "removed"
	default:
		return "noop"
	}
}

// mapWriteError turns a lost race on the active-order or open-line indexes
// into a retryable conflict.
func mapWriteError(err error, action string) error {
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "cart changed concurrently, please retry")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
