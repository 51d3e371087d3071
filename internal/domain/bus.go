package domain

import (
	"context"
	"time"
)

// SignalBus is the pub/sub fabric carrying market events to subscribers
// (the WebSocket hub and any external consumers).
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	// Subscribe returns a channel of raw payloads for the given channel name.
	// The subscription closes when the context is cancelled.
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// LockManager provides a distributed mutex keyed by string. Acquire returns
// an unlock function on success and ErrLockHeld when another holder owns the
// key.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// RateLimiter throttles requests per key over a sliding window.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}
