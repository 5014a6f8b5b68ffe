package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

type pendingRows interface {
	FetchUnpublished(ctx context.Context, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(ctx context.Context, id uuid.UUID) error
	MarkFailed(ctx context.Context, id uuid.UUID, err error, terminal bool, maxAttempts int) error
}

type eventResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type topicSender interface {
	Publish(ctx context.Context, topic string, msg *gcppubsub.Message) (string, error)
}

// relayOptions tune one relay. Zero values fall back to the defaults.
type relayOptions struct {
	BatchSize   int
	MaxAttempts int
	Idle        time.Duration
	MaxPause    time.Duration
	SendTimeout time.Duration
}

func optionsFromConfig(cfg config.OutboxConfig) relayOptions {
	return relayOptions{
		BatchSize:   cfg.BatchSize,
		MaxAttempts: cfg.MaxAttempts,
		Idle:        time.Duration(cfg.PollIntervalMS) * time.Millisecond,
	}
}

func (o relayOptions) withDefaults() relayOptions {
	if o.BatchSize <= 0 {
		o.BatchSize = 50
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 10
	}
	if o.Idle <= 0 {
		o.Idle = 500 * time.Millisecond
	}
	if o.MaxPause <= 0 {
		o.MaxPause = 10 * time.Second
	}
	if o.SendTimeout <= 0 {
		o.SendTimeout = 15 * time.Second
	}
	return o
}

type delivery int

const (
	delivered delivery = iota
	retryLater
	deadLetter
)

// relay moves committed outbox rows onto Pub/Sub topics. A row is either
// published, left for another attempt, or parked once it cannot succeed.
type relay struct {
	rows     pendingRows
	resolver eventResolver
	sender   topicSender
	logg     *logger.Logger
	opts     relayOptions
	pause    *pause
}

func newRelay(rows pendingRows, resolver eventResolver, sender topicSender, logg *logger.Logger, opts relayOptions) (*relay, error) {
	switch {
	case rows == nil:
		return nil, errors.New("outbox rows required")
	case resolver == nil:
		return nil, errors.New("event registry required")
	case sender == nil:
		return nil, errors.New("pubsub sender required")
	case logg == nil:
		return nil, errors.New("logger required")
	}
	opts = opts.withDefaults()
	return &relay{
		rows:     rows,
		resolver: resolver,
		sender:   sender,
		logg:     logg,
		opts:     opts,
		pause:    newPause(opts.Idle, opts.MaxPause),
	}, nil
}

// Run drains batches until ctx ends. Empty batches wait the idle interval;
// failing batches back off exponentially up to MaxPause.
func (r *relay) Run(ctx context.Context) error {
	for {
		n, err := r.drain(ctx)
		var wait time.Duration
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox relay batch failed", err)
			wait = r.pause.grow()
		case n == 0:
			r.pause.reset()
			wait = r.pause.idle()
		default:
			r.pause.reset()
		}

		if err := sleepCtx(ctx, wait); err != nil {
			return err
		}
	}
}

// drain handles one batch and reports how many rows it looked at.
func (r *relay) drain(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	rows, err := r.rows.FetchUnpublished(ctx, r.opts.BatchSize, r.opts.MaxAttempts)
	if err != nil {
		return 0, fmt.Errorf("fetch pending outbox rows: %w", err)
	}
	for _, row := range rows {
		result, cause := r.deliver(ctx, row)
		if err := r.settle(ctx, row, result, cause); err != nil {
			return len(rows), err
		}
	}
	return len(rows), nil
}

func (r *relay) deliver(ctx context.Context, row models.OutboxEvent) (delivery, error) {
	resolved, err := r.resolver.Resolve(row)
	if err != nil {
		return deadLetter, err
	}

	sendCtx, cancel := context.WithTimeout(ctx, r.opts.SendTimeout)
	defer cancel()
	if _, err := r.sender.Publish(sendCtx, resolved.Descriptor.Topic, messageFor(row, resolved)); err != nil {
		var permanent registry.NonRetryableError
		if errors.As(err, &permanent) {
			return deadLetter, err
		}
		if row.AttemptCount+1 >= r.opts.MaxAttempts {
			return deadLetter, fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, err)
		}
		return retryLater, err
	}
	return delivered, nil
}

func (r *relay) settle(ctx context.Context, row models.OutboxEvent, result delivery, cause error) error {
	logCtx := r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    string(row.EventType),
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	switch result {
	case delivered:
		if err := r.rows.MarkPublished(ctx, row.ID); err != nil {
			return fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(logCtx, "outbox event published")
	case retryLater:
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox publish failed, will retry")
		if err := r.rows.MarkFailed(ctx, row.ID, cause, false, r.opts.MaxAttempts); err != nil {
			return fmt.Errorf("mark retry %s: %w", row.ID, err)
		}
	case deadLetter:
		r.logg.Warn(r.logg.WithField(logCtx, "error", cause.Error()), "outbox event parked")
		if err := r.rows.MarkFailed(ctx, row.ID, cause, true, r.opts.MaxAttempts); err != nil {
			return fmt.Errorf("park %s: %w", row.ID, err)
		}
	}
	return nil
}

func messageFor(row models.OutboxEvent, resolved *registry.ResolvedEvent) *gcppubsub.Message {
	return &gcppubsub.Message{
		Data: row.Payload,
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(row.EventType),
			"aggregate_type": string(row.AggregateType),
			"aggregate_id":   row.AggregateID.String(),
			"created_at":     row.CreatedAt.UTC().Format(time.RFC3339Nano),
		},
	}
}

// pause doubles after each failed batch and adds up to a quarter second of
// jitter so several relays do not retry in lockstep.
type pause struct {
	base    time.Duration
	max     time.Duration
	current time.Duration
	rnd     *rand.Rand
}

func newPause(base, max time.Duration) *pause {
	return &pause{base: base, max: max, current: base, rnd: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

func (p *pause) grow() time.Duration {
	p.current *= 2
	if p.current > p.max {
		p.current = p.max
	}
	return p.current + p.jitter()
}

func (p *pause) idle() time.Duration {
	return p.base + p.jitter()
}

func (p *pause) reset() {
	p.current = p.base
}

func (p *pause) jitter() time.Duration {
	return time.Duration(p.rnd.Int63n(int64(250 * time.Millisecond)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
