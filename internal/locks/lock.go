package locks

import (
	"context"
	"errors"
	"fmt"
	"time"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/google/uuid"
)

const (
	lockScopeCart     = "cart"
	defaultLockTTL    = 30 * time.Second
	defaultRetries    = 10
	defaultRetryDelay = 50 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// UserLocker serializes mutations of a single user's active order.
type UserLocker interface {
	WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error
}

// redisStore defines the operations used by RedisUserLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DeleteIfEquals(ctx context.Context, key, expected string) (bool, error)
	LockKey(scope, id string) string
}

// RedisUserLocker implements UserLocker using Redis SETNX + TTL with an
// owner token so a lock that expired mid-request is never released by the
// wrong holder.
type RedisUserLocker struct {
	client     redisStore
	ttl        time.Duration
	retries    int
	retryDelay time.Duration
}

// NewRedisUserLocker constructs a Redis-backed per-user lock.
func NewRedisUserLocker(client redisStore, ttl time.Duration) (*RedisUserLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisUserLocker{
		client:     client,
		ttl:        ttl,
		retries:    defaultRetries,
		retryDelay: defaultRetryDelay,
	}, nil
}

// WithUserLock runs fn while holding the user's cart lock. A lock that stays
// busy for the whole retry budget yields CodeConflict.
func (l *RedisUserLocker) WithUserLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context) error) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	key := l.client.LockKey(lockScopeCart, userID.String())
	owner := uuid.NewString()

	acquired := false
	for attempt := 0; attempt <= l.retries; attempt++ {
		ok, err := l.client.SetNX(ctx, key, owner, l.ttl)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, fmt.Errorf("setnx: %w", err), "acquire cart lock")
		}
		if ok {
			acquired = true
			break
		}
		if attempt == l.retries {
			break
		}
		select {
		case <-ctx.Done():
			return pkgerrors.Wrap(pkgerrors.CodeConflict, ctx.Err(), "cart is busy, please retry")
		case <-time.After(l.retryDelay):
		}
	}
	if !acquired {
		return pkgerrors.New(pkgerrors.CodeConflict, "cart is busy, please retry")
	}

	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		_, _ = l.client.DeleteIfEquals(releaseCtx, key, owner)
	}()

	return fn(ctx)
}
