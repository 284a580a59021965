// Package cache provides the keyed string store used by cache-aside readers.
package cache

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

// ErrMiss is returned by Store.Get when the key is absent or expired.
var ErrMiss = errors.New("cache miss")

// Store is a keyed string cache with per-entry TTL. It offers no ordering or
// transactional guarantee relative to the durable store.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}
