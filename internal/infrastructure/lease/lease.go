// Package lease elects a single holder for a time-bounded task across
// replicas.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("lease held by another holder")

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Lease is a Redis SET NX PX lock. It is never renewed: the TTL must cover
// the guarded work.
type Lease struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Lease {
	return &Lease{client: client, key: key}
}

// Acquire takes the lease for ttl. It returns ErrNotAcquired when someone
// else holds it, and a release func otherwise.
func (l *Lease) Acquire(ctx context.Context, ttl time.Duration) (func(context.Context) error, error) {
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w", l.key, err)
	}
	if !ok {
		return nil, ErrNotAcquired
	}

	release := func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", l.key, err)
		}
		return nil
	}
	return release, nil
}
