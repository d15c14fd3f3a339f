package cache

import (
	"context"
	"sync"
	"time"

	"github.com/storesync/backend/internal/domain/shared"
)

// expiringSet is a TTL set guarded by a mutex. Expired keys are treated as
// absent and swept periodically.
type expiringSet struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

func newExpiringSet() *expiringSet {
	return &expiringSet{entries: make(map[string]time.Time)}
}

// add inserts key unless a live entry exists and reports whether it inserted
func (s *expiringSet) add(key string, ttl time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	if expiresAt, ok := s.entries[key]; ok && now.Before(expiresAt) {
		return false
	}
	s.entries[key] = now.Add(ttl)
	return true
}

func (s *expiringSet) contains(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt, ok := s.entries[key]
	return ok && time.Now().Before(expiresAt)
}

func (s *expiringSet) remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
}

func (s *expiringSet) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, expiresAt := range s.entries {
		if !now.Before(expiresAt) {
			delete(s.entries, key)
		}
	}
}

func (s *expiringSet) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// InMemoryIdempotencyStore implements IdempotencyStore in process memory.
// Suitable for single-instance deployments and testing.
type InMemoryIdempotencyStore struct {
	deliveries *expiringSet
	stopChan   chan struct{}
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

// NewInMemoryIdempotencyStore creates the store and starts its cleanup loop
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	store := &InMemoryIdempotencyStore{
		deliveries: newExpiringSet(),
		stopChan:   make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// MarkProcessed marks a delivery as processed with a TTL.
// Returns true if the delivery was newly marked.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, deliveryID string, ttl time.Duration) (bool, error) {
	return s.deliveries.add(deliveryID, ttl), nil
}

// IsProcessed checks if a delivery has already been processed
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, deliveryID string) (bool, error) {
	return s.deliveries.contains(deliveryID), nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.deliveries.sweep()
		}
	}
}

// Size returns the number of remembered deliveries, expired ones included
func (s *InMemoryIdempotencyStore) Size() int {
	return s.deliveries.size()
}

// InMemoryRunLock implements RunLock for a single process
type InMemoryRunLock struct {
	held *expiringSet
}

// NewInMemoryRunLock creates an in-process run lock
func NewInMemoryRunLock() *InMemoryRunLock {
	return &InMemoryRunLock{held: newExpiringSet()}
}

// TryAcquire takes the named lock for ttl without blocking
func (l *InMemoryRunLock) TryAcquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	return l.held.add(name, ttl), nil
}

// Release gives the named lock up
func (l *InMemoryRunLock) Release(_ context.Context, name string) error {
	l.held.remove(name)
	return nil
}

var (
	_ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
	_ shared.RunLock          = (*InMemoryRunLock)(nil)
)
