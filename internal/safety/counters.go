package safety

import (
	"context"
	"sync"
	"time"
)

// CounterStore is the sliding-window primitive behind the limiters.
//
// IncrWindow MUST bump the counter and (re-)arm its expiry as one atomic
// operation; concurrent increments must never produce a counter that
// outlives its window or lose an update.
type CounterStore interface {
	IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error)
	Get(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// MemoryCounterStore implements CounterStore in-process for tests.
// Windows expire lazily on read, against an injectable clock.
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*memCounter

	// Clock is injectable for deterministic window tests.
	Clock func() time.Time

	// FailWith, when set, makes every call return this error. Used to test
	// the fail-open policy branches.
	FailWith error
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		counters: map[string]*memCounter{},
		Clock:    time.Now,
	}
}

func (s *MemoryCounterStore) IncrWindow(ctx context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return 0, s.FailWith
	}

	now := s.Clock()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.expiresAt) {
		c = &memCounter{}
		s.counters[key] = c
	}
	c.count++
	c.expiresAt = now.Add(window)
	return c.count, nil
}

func (s *MemoryCounterStore) Get(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return 0, s.FailWith
	}

	c, ok := s.counters[key]
	if !ok || !s.Clock().Before(c.expiresAt) {
		return 0, nil
	}
	return c.count, nil
}

func (s *MemoryCounterStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailWith != nil {
		return 0, s.FailWith
	}

	c, ok := s.counters[key]
	if !ok {
		return -1, nil
	}
	remaining := c.expiresAt.Sub(s.Clock())
	if remaining <= 0 {
		return -1, nil
	}
	return remaining, nil
}
