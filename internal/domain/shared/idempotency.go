package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers delivery IDs so at-least-once deliveries are
// applied once within the TTL window.
type IdempotencyStore interface {
	// MarkProcessed marks a delivery as processed with a TTL.
	// Returns true if it was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, deliveryID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a delivery has already been processed
	IsProcessed(ctx context.Context, deliveryID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// RunLock is a named, expiring mutual-exclusion lock used to keep periodic
// runs from overlapping, possibly across process instances.
type RunLock interface {
	// TryAcquire takes the lock for ttl. It returns false without blocking
	// when another holder owns it.
	TryAcquire(ctx context.Context, name string, ttl time.Duration) (bool, error)

	// Release gives the lock up. Releasing a lock that is not held is a no-op.
	Release(ctx context.Context, name string) error
}
