// Package storage defines the origin-scoped persistence shared by the context that starts a login
// and the context that receives the provider's redirect.
package storage

import (
	"context"
	"time"
)

// KV is a minimal key-value interface used for pending logins and stored tokens.
// Implementations should honor TTL on Set (ttl <= 0 means no expiry) and treat missing keys as
// (found=false, err=nil).
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error

	// Take atomically reads and deletes key. A second Take of the same key reports found=false.
	Take(ctx context.Context, key string) ([]byte, bool, error)
}

// Broadcaster delivers payloads to every current subscriber of a named channel, across all
// contexts sharing the same backend.
type Broadcaster interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (Subscription, error)
}

// Subscription is a live subscription to one channel. Close is safe to call more than once.
type Subscription interface {
	C() <-chan []byte
	Close() error
}
