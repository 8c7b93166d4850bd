// Package cache defines the port for the in-process snapshot cache.
package cache

import (
	"context"
	"time"
)

// Cache stores computed state snapshots. Snapshots are keyed by task id
// and sequence number; because replay is deterministic and entries are
// immutable, a cached snapshot never goes stale.
type Cache interface {
	Get(ctx context.Context, key string) (data []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close()
}
