package rate

import "errors"

var (
	// ErrRateLimited is returned once a window's cap is exceeded.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnknownClass is returned for a class that has no configured window.
	ErrUnknownClass = errors.New("unknown rate limit class")
)
