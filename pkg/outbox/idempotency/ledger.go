// Package idempotency remembers which outbox events a consumer has already
// applied, so Pub/Sub redeliveries are acknowledged without side effects.
package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const (
	stateApplying = "applying"
	stateApplied  = "applied"

	// DefaultLease is how long an unfinished claim blocks redelivery.
	DefaultLease = 5 * time.Minute
)

// Store is the key-value surface the ledger needs; *redis.Client satisfies it.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Ledger tracks events per consumer in two steps: Claim holds a short lease
// while the handler runs, Complete keeps the event for the retention window.
type Ledger struct {
	store     Store
	retention time.Duration
	lease     time.Duration
}

func NewLedger(store Store, retention time.Duration) (*Ledger, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if retention <= 0 {
		return nil, errors.New("idempotency retention must be positive")
	}
	lease := DefaultLease
	if retention < lease {
		lease = retention
	}
	return &Ledger{store: store, retention: retention, lease: lease}, nil
}

// Claim reports whether this delivery is the first to see eventID. A false
// result means another delivery applied it or is applying it now.
func (l *Ledger) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	return l.store.SetNX(ctx, key, stateApplying, l.lease)
}

// Complete records eventID as applied for the full retention window.
func (l *Ledger) Complete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return err
	}
	return l.store.Set(ctx, key, stateApplied, l.retention)
}

// Release drops a claim after a failed attempt so redelivery can retry it.
func (l *Ledger) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := l.key(consumer, eventID)
	if err != nil {
		return err
	}
	return l.store.Del(ctx, key)
}

func (l *Ledger) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return l.store.IdempotencyKey("evt:"+consumer, eventID.String()), nil
}
