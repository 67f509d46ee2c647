package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MarkerStore remembers the last slot each job ran for.
type MarkerStore interface {
	LastRun(ctx context.Context, job string) (time.Time, bool, error)
	MarkRun(ctx context.Context, job string, slot time.Time) error
}

type markerClient interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	CronMarkerKey(name string) string
}

// RedisMarkerStore keeps markers in Redis so every worker replica agrees on what ran.
type RedisMarkerStore struct {
	client markerClient
}

// NewRedisMarkerStore wraps client.
func NewRedisMarkerStore(client markerClient) *RedisMarkerStore {
	return &RedisMarkerStore{client: client}
}

func (s *RedisMarkerStore) LastRun(ctx context.Context, job string) (time.Time, bool, error) {
	raw, err := s.client.Get(ctx, s.client.CronMarkerKey(job))
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("read cron marker: %w", err)
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse cron marker %q: %w", raw, err)
	}
	return at.UTC(), true, nil
}

func (s *RedisMarkerStore) MarkRun(ctx context.Context, job string, slot time.Time) error {
	if err := s.client.Set(ctx, s.client.CronMarkerKey(job), slot.UTC().Format(time.RFC3339), 0); err != nil {
		return fmt.Errorf("write cron marker: %w", err)
	}
	return nil
}

// MemoryMarkerStore keeps markers for the life of the process.
type MemoryMarkerStore struct {
	mu      sync.Mutex
	markers map[string]time.Time
}

func NewMemoryMarkerStore() *MemoryMarkerStore {
	return &MemoryMarkerStore{markers: map[string]time.Time{}}
}

func (s *MemoryMarkerStore) LastRun(_ context.Context, job string) (time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.markers[job]
	return at, ok, nil
}

func (s *MemoryMarkerStore) MarkRun(_ context.Context, job string, slot time.Time) error {
	s.mu.Lock()
	s.markers[job] = slot.UTC()
	s.mu.Unlock()
	return nil
}
