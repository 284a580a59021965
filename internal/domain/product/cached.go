package product

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/cache"
)

const (
	keyPrefix = "products:"
	keyAll    = keyPrefix + "all"

	// DefaultCacheTTL bounds staleness after changes made outside this service.
	DefaultCacheTTL = time.Hour
)

func productKey(id int64) string {
	return keyPrefix + strconv.FormatInt(id, 10)
}

var _ Repository = (*CachedRepository)(nil)

// CachedRepository is a cache-aside decorator over a Repository. Reads check
// the cache first and populate it on miss. The cache is never a source of
// truth: any cache failure degrades to a direct repository read.
type CachedRepository struct {
	next  Repository
	store cache.Store
	ttl   time.Duration
	lg    *zap.Logger

	lookups metric.Int64Counter
}

// NewCachedRepository wraps next with a cache-aside layer backed by store.
func NewCachedRepository(
	next Repository,
	store cache.Store,
	ttl time.Duration,
	lg *zap.Logger,
	meter metric.Meter,
) (*CachedRepository, error) {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	lookups, err := meter.Int64Counter("catalog.cache.lookups",
		metric.WithDescription("Catalog cache lookups by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create lookups counter")
	}
	return &CachedRepository{
		next:    next,
		store:   store,
		ttl:     ttl,
		lg:      lg,
		lookups: lookups,
	}, nil
}

// GetByID returns a product, serving it from cache when possible.
func (r *CachedRepository) GetByID(ctx context.Context, id int64) (*Product, error) {
	key := productKey(id)
	if data, ok := r.load(ctx, key); ok {
		p, err := unmarshalProduct(data)
		if err == nil {
			return p, nil
		}
		r.fail(ctx, "decode", key, err)
	}

	p, err := r.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.save(ctx, key, marshalProduct(p))
	return p, nil
}

// List returns all products, serving them from cache when possible.
func (r *CachedRepository) List(ctx context.Context) ([]Product, error) {
	if data, ok := r.load(ctx, keyAll); ok {
		products, err := unmarshalProducts(data)
		if err == nil {
			return products, nil
		}
		r.fail(ctx, "decode", keyAll, err)
	}

	products, err := r.next.List(ctx)
	if err != nil {
		return nil, err
	}
	r.save(ctx, keyAll, marshalProducts(products))
	return products, nil
}

// Invalidate removes the aggregate key and the keys of the given products.
// Failures are logged; the next TTL expiry bounds any resulting staleness.
func (r *CachedRepository) Invalidate(ctx context.Context, ids ...int64) {
	keys := make([]string, 0, len(ids)+1)
	keys = append(keys, keyAll)
	for _, id := range ids {
		keys = append(keys, productKey(id))
	}
	if err := r.store.Del(ctx, keys...); err != nil {
		r.fail(ctx, "invalidate", keyAll, err)
	}
}

func (r *CachedRepository) load(ctx context.Context, key string) (string, bool) {
	data, err := r.store.Get(ctx, key)
	switch {
	case err == nil:
		r.count(ctx, "hit")
		return data, true
	case errors.Is(err, cache.ErrMiss):
		r.count(ctx, "miss")
	default:
		r.fail(ctx, "get", key, err)
	}
	return "", false
}

func (r *CachedRepository) save(ctx context.Context, key, data string) {
	if err := r.store.Set(ctx, key, data, r.ttl); err != nil {
		r.fail(ctx, "set", key, err)
	}
}

func (r *CachedRepository) fail(ctx context.Context, op, key string, err error) {
	r.count(ctx, "error")
	r.lg.Warn("Catalog cache degraded",
		zap.String("op", op),
		zap.String("key", key),
		zap.Error(err),
	)
}

func (r *CachedRepository) count(ctx context.Context, result string) {
	r.lookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
