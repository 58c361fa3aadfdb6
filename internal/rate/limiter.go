package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/MrEthical07/docgate/internal/counter"
)

// Class names a group of routes that share one counter per client IP.
type Class string

const (
	ClassAPI   Class = "api"
	ClassAuth  Class = "auth"
	ClassEmail Class = "email"
)

// Window is the cap applied to one class.
type Window struct {
	Length time.Duration
	Max    int
}

// Config maps each class to its window.
type Config map[Class]Window

// DefaultConfig returns the stock windows: 100 per 15 minutes for general API
// traffic, 10 per hour for authentication endpoints and 5 per day for
// verification mail.
func DefaultConfig() Config {
	return Config{
		ClassAPI:   {Length: 15 * time.Minute, Max: 100},
		ClassAuth:  {Length: time.Hour, Max: 10},
		ClassEmail: {Length: 24 * time.Hour, Max: 5},
	}
}

// Result describes the state of a window after a request was counted.
type Result struct {
	Count      int64
	Limit      int
	RetryAfter time.Duration
}

// Limiter enforces fixed-window caps per class and IP.
type Limiter struct {
	store  counter.Store
	config Config
}

// New creates a [Limiter] over store.
func New(store counter.Store, cfg Config) *Limiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Limiter{store: store, config: cfg}
}

// Allow counts one request for ip in class. It returns ErrRateLimited when the
// window's cap is exceeded; the request keeps counting until the window ends.
// Store failures are returned wrapped in counter.ErrUnavailable.
func (l *Limiter) Allow(ctx context.Context, class Class, ip string) (Result, error) {
	w, ok := l.config[class]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}

	key := Key(class, ip)
	count, err := l.store.IncrFixed(ctx, key, w.Length)
	if err != nil {
		return Result{}, err
	}

	res := Result{Count: count, Limit: w.Max}
	if count > int64(w.Max) {
		ttl, err := l.store.TTL(ctx, key)
		if err == nil {
			res.RetryAfter = ttl
		}
		return res, ErrRateLimited
	}
	return res, nil
}

// Key returns the counter key for class and ip.
func Key(class Class, ip string) string {
	return "rl:" + string(class) + ":" + ip
}
