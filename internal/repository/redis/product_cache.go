package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/locagame/internal/domain"
	"github.com/utafrali/locagame/internal/repository"
)

const (
	keyPrefix     = "rental-stock:product:"
	versionPrefix = "rental-stock:product-ver:"

	// versionTTL outlives any in-flight read so a bump is never forgotten
	// while a stale load could still be written back.
	versionTTL = 24 * time.Hour
)

// errStaleLoad aborts a cache fill that raced with an invalidation.
var errStaleLoad = errors.New("product changed during load")

// ProductCache is a read-through Redis cache in front of a product
// repository. Cache failures are logged and fall through to the inner
// repository; they never fail a read or a write.
//
// Every invalidation bumps a per-product version. A fill only lands when
// the version still matches the one read before the inner load, so a slow
// reader cannot put back a product an Upsert has already replaced.
type ProductCache struct {
	inner  repository.ProductRepository
	client redis.UniversalClient
	ttl    time.Duration
	logger *slog.Logger
}

// NewProductCache wraps inner with a Redis cache whose entries live for ttl.
func NewProductCache(inner repository.ProductRepository, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *ProductCache {
	return &ProductCache{inner: inner, client: client, ttl: ttl, logger: logger}
}

func productKey(id string) string {
	return keyPrefix + id
}

func versionKey(id string) string {
	return versionPrefix + id
}

// versionOf reads a product's invalidation counter; a missing key is 0.
func versionOf(cmd *redis.StringCmd) (int64, error) {
	v, err := cmd.Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return v, err
}

// GetByID serves the product from Redis when present, otherwise loads it
// from the inner repository and stores it.
func (c *ProductCache) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	key := productKey(id)

	data, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var p domain.Product
		if jsonErr := json.Unmarshal(data, &p); jsonErr == nil {
			return &p, nil
		}
		c.logger.WarnContext(ctx, "discarding corrupt product cache entry", slog.String("key", key))
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "product cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
	}

	ver, verErr := versionOf(c.client.Get(ctx, versionKey(id)))

	p, err := c.inner.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if verErr == nil {
		c.store(ctx, p, ver)
	}
	return p, nil
}

// Upsert writes through to the inner repository and invalidates the cached
// entry. Once the inner write succeeds a cache failure is only logged.
func (c *ProductCache) Upsert(ctx context.Context, product *domain.Product) error {
	if err := c.inner.Upsert(ctx, product); err != nil {
		return err
	}
	if err := c.Invalidate(ctx, product.ID); err != nil {
		c.logger.WarnContext(ctx, "product cache invalidation failed",
			slog.String("product_id", product.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Invalidate removes a product from the cache and bumps its version so
// loads already in flight are not written back.
func (c *ProductCache) Invalidate(ctx context.Context, id string) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, versionKey(id))
		pipe.Expire(ctx, versionKey(id), versionTTL)
		pipe.Del(ctx, productKey(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate product: %w", err)
	}
	return nil
}

// store caches p if the product's version is still ver.
func (c *ProductCache) store(ctx context.Context, p *domain.Product, ver int64) {
	data, err := json.Marshal(p)
	if err != nil {
		return
	}

	err = c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := versionOf(tx.Get(ctx, versionKey(p.ID)))
		if err != nil {
			return err
		}
		if current != ver {
			return errStaleLoad
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, productKey(p.ID), data, c.ttl)
			return nil
		})
		return err
	}, versionKey(p.ID))

	switch {
	case err == nil:
	case errors.Is(err, errStaleLoad), errors.Is(err, redis.TxFailedErr):
		c.logger.DebugContext(ctx, "skipping stale product cache fill", slog.String("product_id", p.ID))
	default:
		c.logger.WarnContext(ctx, "product cache write failed",
			slog.String("product_id", p.ID),
			slog.String("error", err.Error()),
		)
	}
}

// Store decorates a repository.Store so product reads outside locked
// sections go through the cache. Inside WithProductLocks the transaction
// reads products directly.
type Store struct {
	repository.Store
	products *ProductCache
}

// NewStore wraps inner with a product cache.
func NewStore(inner repository.Store, client redis.UniversalClient, ttl time.Duration, logger *slog.Logger) *Store {
	return &Store{
		Store:    inner,
		products: NewProductCache(inner.Products(), client, ttl, logger),
	}
}

// Products returns the cached product repository.
func (s *Store) Products() repository.ProductRepository {
	return s.products
}
