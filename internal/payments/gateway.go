package payments

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

const (
	refCodeLength   = 20
	refCodeAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type metricsRecorder interface {
	ObservePayment(processor, outcome string, duration time.Duration)
}

// GatewayParams wires the payment gateway. Processors are keyed by the
// checkout option they serve.
type GatewayParams struct {
	Processors map[enums.PaymentOption]Processor
	Repo       orders.Repository
	Tx         txRunner
	Outbox     outboxEmitter
	Logger     *logger.Logger
	Metrics    metricsRecorder
	Config     config.PaymentConfig
}

// Attempt is one buyer request to pay. RequestKey is the request's
// Idempotency-Key; retries that carry the same key reach the processor with
// the same processor idempotency key, so a replayed charge is never captured
// twice.
type Attempt struct {
	Option     enums.PaymentOption
	Token      string
	RequestKey string
}

// Result is a successful, finalized payment.
type Result struct {
	Notice    types.Notice           `json:"notice"`
	OrderID   uuid.UUID              `json:"order_id"`
	RefCode   string                 `json:"ref_code"`
	PaymentID uuid.UUID              `json:"payment_id"`
	ChargeID  string                 `json:"charge_id"`
	Processor enums.PaymentProcessor `json:"processor"`
	Amount    decimal.Decimal        `json:"amount"`
}

// Gateway charges an order through the processor bound to its option and
// finalizes it when the charge succeeds.
type Gateway struct {
	processors map[enums.PaymentOption]Processor
	breakers   map[enums.PaymentOption]*gobreaker.CircuitBreaker[*ChargeReceipt]
	repo       orders.Repository
	tx         txRunner
	outbox     outboxEmitter
	logg       *logger.Logger
	metrics    metricsRecorder
	cfg        config.PaymentConfig
	now        func() time.Time
	refCode    func() (string, error)
}

func NewGateway(params GatewayParams) (*Gateway, error) {
	if len(params.Processors) == 0 {
		return nil, fmt.Errorf("at least one processor required")
	}
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	cfg := params.Config
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.AmountMultiplier == 0 {
		cfg.AmountMultiplier = 77
	}
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "inr"
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	g := &Gateway{
		processors: make(map[enums.PaymentOption]Processor, len(params.Processors)),
		breakers:   make(map[enums.PaymentOption]*gobreaker.CircuitBreaker[*ChargeReceipt], len(params.Processors)),
		repo:       params.Repo,
		tx:         params.Tx,
		outbox:     params.Outbox,
		logg:       params.Logger,
		metrics:    params.Metrics,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		refCode:    newRefCode,
	}
	for option, proc := range params.Processors {
		if proc == nil {
			return nil, fmt.Errorf("processor for %s is nil", option)
		}
		g.processors[option] = proc
		g.breakers[option] = g.newBreaker(option, proc.Name())
	}
	return g, nil
}

func (g *Gateway) newBreaker(option enums.PaymentOption, name enums.PaymentProcessor) *gobreaker.CircuitBreaker[*ChargeReceipt] {
	threshold := g.cfg.BreakerFailures
	return gobreaker.NewCircuitBreaker[*ChargeReceipt](gobreaker.Settings{
		Name:        fmt.Sprintf("payments-%s-%s", option, name),
		MaxRequests: 1,
		Timeout:     g.cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// buyer-side failures say nothing about processor health
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var perr *ProcessorError
			if errors.As(err, &perr) {
				return perr.Category == enums.PaymentFailureCardDeclined ||
					perr.Category == enums.PaymentFailureInvalidRequest
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			ctx := g.logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			})
			g.logg.Warn(ctx, "payment circuit breaker state changed")
		},
	})
}

// ChargeAmount converts an order total into the charged minor amount:
// floor(total) times the configured multiplier.
func (g *Gateway) ChargeAmount(total decimal.Decimal) int64 {
	return total.Floor().IntPart() * g.cfg.AmountMultiplier
}

// Charge runs one processor call for the order and, on success, finalizes it
// in a single transaction. Failures leave the order untouched and come back
// as a CodePayment error carrying the failure category.
func (g *Gateway) Charge(ctx context.Context, order *models.Order, attempt Attempt) (*Result, error) {
	option := attempt.Option
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order required")
	}
	proc, ok := g.processors[option]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Invalid payment Option")
	}
	breaker := g.breakers[option]

	total := cart.OrderTotal(*order)
	req := ChargeRequest{
		AmountMinor:    g.ChargeAmount(total),
		Currency:       g.cfg.Currency,
		Description:    g.cfg.Description,
		Token:          strings.TrimSpace(attempt.Token),
		IdempotencyKey: processorKey(order.ID, attempt.RequestKey),
		ReferenceID:    order.ID.String(),
	}

	ctx = g.logg.WithFields(ctx, map[string]any{
		"order_id":       order.ID.String(),
		"user_id":        order.UserID.String(),
		"payment_option": string(option),
		"processor":      string(proc.Name()),
	})

	started := time.Now()
	receipt, err := breaker.Execute(func() (*ChargeReceipt, error) {
		callCtx, cancel := context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
		return proc.Charge(callCtx, req)
	})
	elapsed := time.Since(started)

	if err != nil {
		perr := classifyGatewayError(err)
		g.observe(proc.Name(), string(perr.Category), elapsed)
		g.handleFailure(ctx, order, option, perr)
		return nil, pkgerrors.Wrap(pkgerrors.CodePayment, perr, perr.Message).
			WithDetails(map[string]any{"category": perr.Category})
	}
	g.observe(proc.Name(), "success", elapsed)

	result, err := g.finalize(ctx, order, total, req, receipt)
	if err != nil {
		// the processor captured funds but the order did not move to ordered
		ctx = g.logg.WithField(ctx, "charge_id", receipt.ChargeID)
		g.logg.Error(ctx, "finalize paid order", err)
		g.raiseAlert(ctx, payloads.OperatorAlertEvent{
			OrderID:      order.ID,
			UserID:       order.UserID,
			Option:       option,
			Category:     enums.PaymentFailureUnrecorded,
			Error:        err.Error(),
			ChargeID:     receipt.ChargeID,
			ChargedMinor: req.AmountMinor,
		})
		return nil, err
	}
	g.logg.Info(g.logg.WithField(ctx, "ref_code", result.RefCode), "order paid")
	return result, nil
}

func (g *Gateway) finalize(ctx context.Context, order *models.Order, total decimal.Decimal, req ChargeRequest, receipt *ChargeReceipt) (*Result, error) {
	refCode, err := g.refCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate ref code")
	}
	now := g.now()
	payment := &models.Payment{
		ChargeID:  receipt.ChargeID,
		Processor: receipt.Processor,
		UserID:    order.UserID,
		Amount:    total,
		Timestamp: now,
	}

	err = g.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := g.repo.WithTx(tx)
		if err := repo.CreatePayment(ctx, payment); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payment")
		}
		won, err := repo.FinalizeOrder(ctx, order.ID, map[string]any{
			"payment_id": payment.ID,
			"ref_code":   refCode,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "finalize order")
		}
		if !won {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order already finalized")
		}
		if err := repo.MarkLinesOrdered(ctx, order.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark lines ordered")
		}
		return g.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{UserID: order.UserID, Role: "buyer"},
			OccurredAt:    now,
			Data:          orderPaidEvent(order, payment, refCode, req),
		})
	})
	if err != nil {
		return nil, pkgerrors.Ensure(err, pkgerrors.CodeDependency, "finalize order")
	}

	return &Result{
		Notice:    types.Success(MsgPaymentSucceeded),
		OrderID:   order.ID,
		RefCode:   refCode,
		PaymentID: payment.ID,
		ChargeID:  receipt.ChargeID,
		Processor: receipt.Processor,
		Amount:    total,
	}, nil
}

func (g *Gateway) handleFailure(ctx context.Context, order *models.Order, option enums.PaymentOption, perr *ProcessorError) {
	fields := map[string]any{"category": string(perr.Category)}
	if perr.Category != enums.PaymentFailureUnclassified {
		g.logg.Warn(g.logg.WithFields(ctx, fields), "payment failed")
		return
	}
	g.logg.Error(g.logg.WithFields(ctx, fields), "unclassified payment failure", perr)

	alert := payloads.OperatorAlertEvent{
		OrderID:  order.ID,
		UserID:   order.UserID,
		Option:   option,
		Category: perr.Category,
	}
	if perr.Err != nil {
		alert.Error = perr.Err.Error()
	}
	g.raiseAlert(ctx, alert)
}

// raiseAlert queues an operator_alert in its own transaction; the caller's
// context may already be canceled.
func (g *Gateway) raiseAlert(ctx context.Context, alert payloads.OperatorAlertEvent) {
	alert.RaisedAt = g.now()
	alertCtx := context.WithoutCancel(ctx)
	err := g.tx.WithTx(alertCtx, func(tx *gorm.DB) error {
		return g.outbox.Emit(alertCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventOperatorAlert,
			AggregateType: enums.AggregateOrder,
			AggregateID:   alert.OrderID,
			Data:          alert,
		})
	})
	if err != nil {
		g.logg.Error(ctx, "emit operator alert", err)
	}
}

func (g *Gateway) observe(processor enums.PaymentProcessor, outcome string, elapsed time.Duration) {
	if g.metrics != nil {
		g.metrics.ObservePayment(string(processor), outcome, elapsed)
	}
}

// classifyGatewayError maps breaker and deadline failures onto categories;
// processor errors are already classified.
func classifyGatewayError(err error) *ProcessorError {
	var perr *ProcessorError
	if errors.As(err, &perr) {
		if perr.Category != enums.PaymentFailureNetwork && errors.Is(err, context.DeadlineExceeded) {
			return newProcessorError(enums.PaymentFailureNetwork, "", err)
		}
		return perr
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return newProcessorError(enums.PaymentFailureProcessor, "", err)
	}
	return classifyTransport(err)
}

func orderPaidEvent(order *models.Order, payment *models.Payment, refCode string, req ChargeRequest) payloads.OrderPaidEvent {
	lines := make([]payloads.OrderPaidLine, 0, len(order.Items))
	for _, line := range order.Items {
		lines = append(lines, payloads.OrderPaidLine{
			ItemID:     line.ItemID,
			Slug:       line.Item.Slug,
			Quantity:   line.Quantity,
			FinalPrice: cart.LineFinalPrice(line),
		})
	}
	return payloads.OrderPaidEvent{
		OrderID:      order.ID,
		UserID:       order.UserID,
		RefCode:      refCode,
		PaymentID:    payment.ID,
		ChargeID:     payment.ChargeID,
		Processor:    payment.Processor,
		Amount:       payment.Amount,
		ChargedMinor: req.AmountMinor,
		Currency:     req.Currency,
		CouponID:     order.CouponID,
		Lines:        lines,
		PaidAt:       payment.Timestamp,
	}
}

// processorKey is order-<id>-<digest of the request key>. Callers without a
// request key (none over HTTP, where the header is mandatory) get a one-off
// key and therefore no replay protection at the processor.
func processorKey(orderID uuid.UUID, requestKey string) string {
	requestKey = strings.TrimSpace(requestKey)
	if requestKey == "" {
		return "order-" + orderID.String() + "-" + uuid.NewString()
	}
	sum := sha256.Sum256([]byte(requestKey))
	return "order-" + orderID.String() + "-" + hex.EncodeToString(sum[:12])
}

func newRefCode() (string, error) {
	limit := big.NewInt(int64(len(refCodeAlphabet)))
	var b strings.Builder
	b.Grow(refCodeLength)
	for i := 0; i < refCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(refCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}
