package refunds

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

const (
	MsgOrderNotFound    = "this order doesnot exist"
	MsgRefundRequested  = "Successfully requested refund"
	msgInvalidRefundReq = "Invalid refund request"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// RequestInput is the public refund form.
type RequestInput struct {
	RefCode string `json:"ref_code" validate:"required,max=20"`
	Reason  string `json:"reason" validate:"required,max=2000"`
	Email   string `json:"email" validate:"required,email"`
}

// RequestResult acknowledges a stored refund request.
type RequestResult struct {
	Notice   types.Notice `json:"notice"`
	RefundID uuid.UUID    `json:"refund_id"`
}

// Service runs the refund workflow: buyer requests and operator decisions.
type Service interface {
	RequestRefund(ctx context.Context, input RequestInput) (*RequestResult, error)
	GrantRefunds(ctx context.Context, operatorID uuid.UUID, orderIDs []uuid.UUID) (int64, error)
	AcceptRefund(ctx context.Context, refundID uuid.UUID) error
	List(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error)
}

type service struct {
	refunds *Repository
	orders  orders.Repository
	tx      txRunner
	outbox  outboxEmitter
	now     func() time.Time
}

func NewService(refunds *Repository, ordersRepo orders.Repository, tx txRunner, emitter outboxEmitter) (Service, error) {
	if refunds == nil {
		return nil, fmt.Errorf("refund repository required")
	}
	if ordersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if emitter == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		refunds: refunds,
		orders:  ordersRepo,
		tx:      tx,
		outbox:  emitter,
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// RequestRefund records a refund request against the order with the given
// ref code and flags the order. Every request adds a row.
func (s *service) RequestRefund(ctx context.Context, input RequestInput) (*RequestResult, error) {
	input.RefCode = strings.TrimSpace(input.RefCode)
	input.Email = strings.TrimSpace(input.Email)
	if err := validation.StructWithMessage(input, msgInvalidRefundReq); err != nil {
		return nil, err
	}

	var refund *models.Refund
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).FindByRefCode(ctx, input.RefCode)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, MsgOrderNotFound)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by ref code")
		}
		if err := s.orders.WithTx(tx).UpdateOrder(ctx, order.ID, map[string]any{"refund_requested": true}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "flag refund requested")
		}

		refund = &models.Refund{
			OrderID: order.ID,
			Reason:  input.Reason,
			Email:   input.Email,
		}
		if err := s.refunds.WithTx(tx).Create(ctx, refund); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
		}

		now := s.now()
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRefundRequested,
			AggregateType: enums.AggregateRefund,
			AggregateID:   refund.ID,
			OccurredAt:    now,
			Data: payloads.RefundRequestedEvent{
				RefundID:    refund.ID,
				OrderID:     order.ID,
				RefCode:     input.RefCode,
				Email:       input.Email,
				Reason:      input.Reason,
				RequestedAt: now,
			},
		})
	})
	if err != nil {
		return nil, asTyped(err, "request refund")
	}
	return &RequestResult{Notice: types.Success(MsgRefundRequested), RefundID: refund.ID}, nil
}

// GrantRefunds clears refund_requested and sets refund_granted on the listed
// paid orders. It returns how many orders changed.
func (s *service) GrantRefunds(ctx context.Context, operatorID uuid.UUID, orderIDs []uuid.UUID) (int64, error) {
	if err := orders.ValidateOrderIDs(orderIDs); err != nil {
		return 0, err
	}

	var affected int64
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		count, err := s.orders.WithTx(tx).UpdateFlags(ctx, orderIDs, map[string]any{
			"refund_requested": false,
			"refund_granted":   true,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "grant refunds")
		}
		affected = count

		granted, err := s.refunds.WithTx(tx).FindFinalizedOrders(ctx, orderIDs)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load granted orders")
		}
		var actor *outbox.ActorRef
		var grantedBy *uuid.UUID
		if operatorID != uuid.Nil {
			actor = &outbox.ActorRef{UserID: operatorID, Role: "operator"}
			grantedBy = &operatorID
		}
		now := s.now()
		for _, order := range granted {
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventRefundGranted,
				AggregateType: enums.AggregateOrder,
				AggregateID:   order.ID,
				Actor:         actor,
				OccurredAt:    now,
				Data: payloads.RefundGrantedEvent{
					OrderID:   order.ID,
					RefCode:   order.RefCode,
					GrantedBy: grantedBy,
					GrantedAt: now,
				},
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, asTyped(err, "grant refunds")
	}
	return affected, nil
}

func (s *service) AcceptRefund(ctx context.Context, refundID uuid.UUID) error {
	if refundID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "refund id required")
	}
	found, err := s.refunds.MarkAccepted(ctx, refundID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "accept refund")
	}
	if !found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "refund not found")
	}
	return nil
}

func (s *service) List(ctx context.Context, params pagination.Params, filters ListFilters) (*RefundList, error) {
	if err := params.Validate(); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	list, err := s.refunds.List(ctx, params, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list refunds")
	}
	return list, nil
}

func asTyped(err error, action string) error {
	return pkgerrors.Ensure(err, pkgerrors.CodeDependency, action)
}
