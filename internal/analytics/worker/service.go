package worker

import (
	"context"
	"errors"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const consumerName = "analytics"

// ErrUnsupportedEvent marks events the handler deliberately ignores. They are
// acked and recorded as done.
var ErrUnsupportedEvent = errors.New("unsupported analytics event")

type Handler interface {
	Handle(ctx context.Context, envelope Envelope) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

// eventLedger dedupes redeliveries across replicas.
type eventLedger interface {
	Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error)
	Complete(ctx context.Context, consumer string, eventID uuid.UUID) error
	Release(ctx context.Context, consumer string, eventID uuid.UUID) error
}

// verdict is what happens to a delivery once it has been looked at.
type verdict int

const (
	ack verdict = iota
	redeliver
)

// Service feeds the analytics subscription into a Handler, at most once per
// event id while the ledger remembers it.
type Service struct {
	subscription receiver
	handler      Handler
	ledger       eventLedger
	logg         *logger.Logger
}

func NewService(subscription receiver, handler Handler, ledger eventLedger, logg *logger.Logger) (*Service, error) {
	switch {
	case subscription == nil:
		return nil, errors.New("analytics subscription is required")
	case handler == nil:
		return nil, errors.New("analytics handler is required")
	case ledger == nil:
		return nil, errors.New("event ledger is required")
	case logg == nil:
		return nil, errors.New("logger is required")
	}
	return &Service{subscription: subscription, handler: handler, ledger: ledger, logg: logg}, nil
}

// Run blocks until ctx is canceled or the subscription fails.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(ctx context.Context, msg *gcppubsub.Message) {
		if s.process(ctx, msg) == redeliver {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process never redelivers a message that can not be decoded; retrying
// would not change it.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) verdict {
	ctx = s.logg.WithField(ctx, "message_id", msg.ID)

	env, err := decodeMessage(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "dropping undecodable analytics message")
		return ack
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":       env.EventID,
		"event_type":     env.EventType,
		"aggregate_type": env.AggregateType,
		"aggregate_id":   env.AggregateID,
		"occurred_at":    env.OccurredAt.Format(time.RFC3339Nano),
	})
	id, err := uuid.Parse(env.EventID)
	if err != nil {
		s.logg.Warn(ctx, "dropping analytics message with malformed event id")
		return ack
	}

	first, err := s.ledger.Claim(ctx, consumerName, id)
	switch {
	case err != nil:
		s.logg.Error(ctx, "claim analytics event", err)
		return redeliver
	case !first:
		s.logg.Info(ctx, "analytics event already claimed")
		return ack
	}

	handleErr := s.handler.Handle(ctx, env)
	if handleErr != nil && !errors.Is(handleErr, ErrUnsupportedEvent) {
		s.logg.Error(ctx, "handle analytics event", handleErr)
		if err := s.ledger.Release(ctx, consumerName, id); err != nil {
			s.logg.Error(ctx, "release analytics event", err)
		}
		return redeliver
	}
	if err := s.ledger.Complete(ctx, consumerName, id); err != nil {
		s.logg.Error(ctx, "complete analytics event", err)
	}
	if handleErr != nil {
		s.logg.Info(ctx, "analytics event skipped")
	} else {
		s.logg.Info(ctx, "analytics event handled")
	}
	return ack
}
