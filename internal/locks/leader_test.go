package locks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLeaderExcludesSecondProcess(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	first, err := NewLeader(store, "cron-worker:prod", time.Minute)
	require.NoError(t, err)
	second, err := NewLeader(store, "cron-worker:prod", time.Minute)
	require.NoError(t, err)

	ok, err := first.TryLead(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.TryLead(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Resign(ctx))
	assert.Contains(t, store.data, "sf:lock:leader:cron-worker:prod", "a follower must not drop the lease")

	require.NoError(t, first.Resign(ctx))
	ok, err = second.TryLead(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLeaderResignAfterTakeoverKeepsNewTerm(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	stale, err := NewLeader(store, "cron-worker", time.Minute)
	require.NoError(t, err)
	ok, err := stale.TryLead(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the lease expires and another process wins the next term
	key := "sf:lock:leader:cron-worker"
	delete(store.data, key)
	successor, err := NewLeader(store, "cron-worker", time.Minute)
	require.NoError(t, err)
	ok, err = successor.TryLead(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	held := store.data[key]

	require.NoError(t, stale.Resign(ctx))
	assert.Equal(t, held, store.data[key])
	assert.Equal(t, 0, store.deletes)
}

func TestLeaderSurfacesStoreErrors(t *testing.T) {
	store := newFakeStore()
	store.setErr = errors.New("redis down")
	leader, err := NewLeader(store, "cron-worker", 0)
	require.NoError(t, err)
	assert.Equal(t, defaultLeaderTTL, leader.ttl)

	_, err = leader.TryLead(context.Background())
	assert.ErrorIs(t, err, store.setErr)
	assert.NoError(t, leader.Resign(context.Background()))
}

func TestNewLeaderValidates(t *testing.T) {
	_, err := NewLeader(nil, "cron", time.Minute)
	assert.Error(t, err)
	_, err = NewLeader(newFakeStore(), "", time.Minute)
	assert.Error(t, err)
}
