package locks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	lockScopeLeader  = "leader"
	defaultLeaderTTL = 25 * time.Hour
)

// Leader elects one process per role through a Redis lease. The lease value
// is a per-term owner token, so Resign never drops a lease that expired and
// was taken over by another process.
type Leader struct {
	client redisStore
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	token string
}

func NewLeader(client redisStore, role string, ttl time.Duration) (*Leader, error) {
	if client == nil {
		return nil, errors.New("redis client required for leader lease")
	}
	if role == "" {
		return nil, errors.New("leader role is required")
	}
	if ttl <= 0 {
		ttl = defaultLeaderTTL
	}
	return &Leader{client: client, key: client.LockKey(lockScopeLeader, role), ttl: ttl}, nil
}

// TryLead takes the lease if it is free. It reports false while another
// process leads.
func (l *Leader) TryLead(ctx context.Context) (bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire leader lease: %w", err)
	}
	if ok {
		l.mu.Lock()
		l.token = token
		l.mu.Unlock()
	}
	return ok, nil
}

// Resign gives up the current term. It is a no-op when this process does not
// lead.
func (l *Leader) Resign(ctx context.Context) error {
	l.mu.Lock()
	token := l.token
	l.token = ""
	l.mu.Unlock()
	if token == "" {
		return nil
	}
	if _, err := l.client.DeleteIfEquals(ctx, l.key, token); err != nil {
		return fmt.Errorf("release leader lease: %w", err)
	}
	return nil
}
