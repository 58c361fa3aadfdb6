package counter

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps every backend failure returned by a [Store].
var ErrUnavailable = errors.New("counter store unavailable")

// Store is the minimal set of atomic counter primitives the security
// middleware relies on. Missing keys read as zero.
type Store interface {
	// IncrFixed increments key and returns the new value. A key without a
	// time to live gets ttl in the same step, so a window can never outlive it.
	IncrFixed(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// IncrSliding increments key and resets its time to live to ttl in one step.
	IncrSliding(ctx context.Context, key string, ttl time.Duration) (int64, error)
	// Get returns the current value of key, or 0 when it does not exist.
	Get(ctx context.Context, key string) (int64, error)
	// SetNX stores value under key with ttl only if key is absent.
	SetNX(ctx context.Context, key string, value int64, ttl time.Duration) (bool, error)
	// TTL returns the remaining time to live, or 0 for a missing or persistent key.
	TTL(ctx context.Context, key string) (time.Duration, error)
	// Del removes keys. Missing keys are ignored.
	Del(ctx context.Context, keys ...string) error
}
