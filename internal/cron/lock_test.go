package cron

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (m *memoryRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(string)
	return nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

func (m *memoryRedis) DelIfValue(_ context.Context, key, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.values[key]; !ok || current != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *memoryRedis) CronMarkerKey(name string) string {
	return "basketcase:cron:" + name + ":last_slot"
}

func TestRedisLockExcludesOtherOwners(t *testing.T) {
	t.Setenv("BASKETCASE_INSTANCE_ID", "worker-a")
	store := newMemoryRedis()
	ctx := context.Background()
	first, err := NewRedisLock(store, "basketcase:lock:refresh", time.Hour)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "basketcase:lock:refresh", time.Hour)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	// releasing a lock you never held leaves the owner's key alone
	require.NoError(t, second.Release(ctx))
	holder, err := store.Get(ctx, "basketcase:lock:refresh")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(holder, "worker-a/"), holder)

	require.NoError(t, first.Release(ctx))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisLockReleaseKeepsLockTakenAfterExpiry(t *testing.T) {
	store := newMemoryRedis()
	ctx := context.Background()
	first, err := NewRedisLock(store, "basketcase:lock:refresh", time.Hour)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "basketcase:lock:refresh", time.Hour)
	require.NoError(t, err)

	ok, err := first.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	// the TTL lapses and another process takes the lock
	require.NoError(t, store.Del(ctx, "basketcase:lock:refresh"))
	ok, err = second.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	holder, err := store.Get(ctx, "basketcase:lock:refresh")
	require.NoError(t, err)

	require.NoError(t, first.Release(ctx))
	current, err := store.Get(ctx, "basketcase:lock:refresh")
	require.NoError(t, err)
	assert.Equal(t, holder, current)

	require.NoError(t, second.Release(ctx))
	_, err = store.Get(ctx, "basketcase:lock:refresh")
	assert.ErrorIs(t, err, redis.Nil)
}

func TestNewRedisLockValidates(t *testing.T) {
	_, err := NewRedisLock(nil, "key", time.Hour)
	assert.Error(t, err)
	_, err = NewRedisLock(newMemoryRedis(), "", time.Hour)
	assert.Error(t, err)
}

func TestLocalLock(t *testing.T) {
	lock := NewLocalLock()
	ctx := context.Background()
	ok, _ := lock.Acquire(ctx)
	require.True(t, ok)
	ok, _ = lock.Acquire(ctx)
	require.False(t, ok)
	require.NoError(t, lock.Release(ctx))
	ok, _ = lock.Acquire(ctx)
	require.True(t, ok)
}

func TestRedisMarkerStoreRoundTrip(t *testing.T) {
	store := NewRedisMarkerStore(newMemoryRedis())
	ctx := context.Background()

	_, ok, err := store.LastRun(ctx, "price-refresh")
	require.NoError(t, err)
	assert.False(t, ok)

	slot := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.MarkRun(ctx, "price-refresh", slot))
	last, ok, err := store.LastRun(ctx, "price-refresh")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, last.Equal(slot))
}
