package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/locks"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/payments"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

const (
	MsgNoActiveOrder  = "You do not have any active order"
	MsgFailedCheckout = "Failed Checkout"
	MsgInvalidOption  = "Invalid payment Option"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type paymentGateway interface {
	Charge(ctx context.Context, order *models.Order, attempt payments.Attempt) (*payments.Result, error)
	ChargeAmount(total decimal.Decimal) int64
}

// AddressInput is the buyer's checkout form.
type AddressInput struct {
	StreetAddress      string `json:"street_address" validate:"required,max=100"`
	ApartmentAddress   string `json:"apartment_address" validate:"max=100"`
	Country            string `json:"country" validate:"required,iso3166_1_alpha2"`
	Zip                string `json:"zip" validate:"required,max=20"`
	SameShipping       bool   `json:"same_shipping_address"`
	SaveBillingAddress bool   `json:"save_billing_address"`
	SaveInfo           bool   `json:"save_info"`
	PaymentOption      string `json:"payment_option"`
}

// SubmitResult tells the buyer which payment route to call next.
type SubmitResult struct {
	OrderID       uuid.UUID           `json:"order_id"`
	State         enums.CheckoutState `json:"state"`
	PaymentOption enums.PaymentOption `json:"payment_option"`
	AddressID     uuid.UUID           `json:"address_id"`
	NextStep      string              `json:"next_step"`
}

// View is the checkout page payload for the active order.
type View struct {
	State         enums.CheckoutState  `json:"state"`
	PaymentOption *enums.PaymentOption `json:"payment_option,omitempty"`
	ChargeAmount  int64                `json:"charge_amount"`
	Summary       cart.OrderSummary    `json:"summary"`
}

// Service orchestrates address capture, payment option selection and
// payment dispatch for the active order.
type Service interface {
	SubmitCheckout(ctx context.Context, userID uuid.UUID, input AddressInput) (*SubmitResult, error)
	Pay(ctx context.Context, userID uuid.UUID, attempt payments.Attempt) (*payments.Result, error)
	GetView(ctx context.Context, userID uuid.UUID) (*View, error)
}

type service struct {
	repo    orders.Repository
	tx      txRunner
	locker  locks.UserLocker
	gateway paymentGateway
}

// ServiceParams wires the checkout orchestrator.
type ServiceParams struct {
	Repo    orders.Repository
	Tx      txRunner
	Locker  locks.UserLocker
	Gateway paymentGateway
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Locker == nil {
		return nil, fmt.Errorf("user locker required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	return &service{
		repo:    params.Repo,
		tx:      params.Tx,
		locker:  params.Locker,
		gateway: params.Gateway,
	}, nil
}

// SubmitCheckout validates the form and option, then binds a new billing
// address and the option to the active order in one transaction. Any
// validation failure leaves the order as it was.
func (s *service) SubmitCheckout(ctx context.Context, userID uuid.UUID, input AddressInput) (*SubmitResult, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}

	input.StreetAddress = strings.TrimSpace(input.StreetAddress)
	input.ApartmentAddress = strings.TrimSpace(input.ApartmentAddress)
	input.Country = strings.ToUpper(strings.TrimSpace(input.Country))
	input.Zip = strings.TrimSpace(input.Zip)

	var result *SubmitResult
	err := s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			repo := s.repo.WithTx(tx)
			order, err := loadActiveOrder(ctx, repo, userID)
			if err != nil {
				return err
			}
			if err := validation.StructWithMessage(input, MsgFailedCheckout); err != nil {
				return err
			}
			option, err := enums.ParsePaymentOption(input.PaymentOption)
			if err != nil {
				return pkgerrors.New(pkgerrors.CodeValidation, MsgInvalidOption).
					WithDetails(map[string]any{"payment_option": input.PaymentOption})
			}

			address := &models.Address{
				UserID:           userID,
				StreetAddress:    input.StreetAddress,
				ApartmentAddress: input.ApartmentAddress,
				Country:          pq.StringArray{input.Country},
				Zip:              input.Zip,
				AddressType:      enums.AddressTypeBilling,
				IsDefault:        input.SaveBillingAddress || input.SaveInfo,
			}
			if err := repo.CreateAddress(ctx, address); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create billing address")
			}
			if err := repo.UpdateOrder(ctx, order.ID, map[string]any{
				"billing_address_id":  address.ID,
				"shipping_address_id": address.ID,
				"payment_option":      option,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind checkout details")
			}

			result = &SubmitResult{
				OrderID:       order.ID,
				State:         enums.CheckoutStatePaymentSelected,
				PaymentOption: option,
				AddressID:     address.ID,
				NextStep:      NextStep(option),
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Pay charges the active order through the option it selected at checkout.
func (s *service) Pay(ctx context.Context, userID uuid.UUID, attempt payments.Attempt) (*payments.Result, error) {
	option := attempt.Option
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	if !option.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, MsgInvalidOption)
	}

	var result *payments.Result
	err := s.locker.WithUserLock(ctx, userID, func(ctx context.Context) error {
		order, err := loadActiveOrder(ctx, s.repo, userID)
		if err != nil {
			return err
		}
		state := State(*order)
		if state != enums.CheckoutStatePaymentSelected {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order is not ready for payment").
				WithDetails(map[string]any{"state": state})
		}
		if *order.PaymentOption != option {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order selected a different payment option").
				WithDetails(map[string]any{"payment_option": *order.PaymentOption})
		}
		result, err = s.gateway.Charge(ctx, order, attempt)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) GetView(ctx context.Context, userID uuid.UUID) (*View, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user id required")
	}
	order, err := loadActiveOrder(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}
	return &View{
		State:         State(*order),
		PaymentOption: order.PaymentOption,
		ChargeAmount:  s.gateway.ChargeAmount(cart.OrderTotal(*order)),
		Summary:       cart.Summarize(*order),
	}, nil
}

func loadActiveOrder(ctx context.Context, repo orders.Repository, userID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindActiveOrder(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, MsgNoActiveOrder)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load active order")
	}
	return order, nil
}
