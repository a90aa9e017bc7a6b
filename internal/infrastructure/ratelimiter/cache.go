package ratelimiter

import (
	"context"
	"errors"
	"time"
)

var ErrCacheMiss = errors.New("cache miss")

// GetterSetter stores bucket state. Implementations must be safe for
// concurrent use.
type GetterSetter interface {
	Get(ctx context.Context, key string) (int64, error)
	SetWithExpiration(ctx context.Context, key string, value int64, expiration time.Duration) error
	Close() error
}
