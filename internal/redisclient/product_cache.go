package redisclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dbreno/mugiwaradb/internal/models"
	"github.com/dbreno/mugiwaradb/internal/store"
	"github.com/dbreno/mugiwaradb/internal/util"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const notFoundSentinel = "notfound"

// ProductCache is a read-through cache in front of the catalog. Every Redis
// failure degrades to the database; a miss is never an error. Entries expire
// by TTL since catalog edits happen in another service.
type ProductCache struct {
	next   store.Catalog
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewProductCache creates a read-through product cache
func NewProductCache(next store.Catalog, client *Client, ttl time.Duration) *ProductCache {
	return &ProductCache{
		next:   next,
		rdb:    client.GetClient(),
		ttl:    ttl,
		logger: util.GetLogger(),
	}
}

// GetProductByID reads a product through the cache, with negative caching for
// unknown IDs.
func (c *ProductCache) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	key := fmt.Sprintf("product:%d", id)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if string(data) == notFoundSentinel {
			util.ProductCacheHits.WithLabelValues("hit_negative").Inc()
			return nil, &store.ProductNotFoundError{ID: id}
		}
		var product models.Product
		if err := json.Unmarshal(data, &product); err == nil {
			util.ProductCacheHits.WithLabelValues("hit").Inc()
			return &product, nil
		}
		c.logger.Warn("Failed to unmarshal cached product, falling back to DB",
			zap.Int64("product_id", id))

	case errors.Is(err, redis.Nil):
		util.ProductCacheHits.WithLabelValues("miss").Inc()

	default:
		util.ProductCacheHits.WithLabelValues("error").Inc()
		c.logger.Warn("Redis error, falling back to DB", zap.Error(err))
	}

	product, err := c.next.GetProductByID(ctx, id)
	if err != nil {
		var notFound *store.ProductNotFoundError
		if errors.As(err, &notFound) {
			c.set(ctx, key, []byte(notFoundSentinel), time.Minute)
		}
		return nil, err
	}

	if data, err := json.Marshal(product); err == nil {
		c.set(ctx, key, data, c.ttl)
	}
	return product, nil
}

// GetProducts reads the full catalog through the cache.
func (c *ProductCache) GetProducts(ctx context.Context) ([]models.Product, error) {
	const key = "products:all"

	data, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var products []models.Product
		if err := json.Unmarshal(data, &products); err == nil {
			util.ProductCacheHits.WithLabelValues("hit").Inc()
			return products, nil
		}
	} else if errors.Is(err, redis.Nil) {
		util.ProductCacheHits.WithLabelValues("miss").Inc()
	} else {
		util.ProductCacheHits.WithLabelValues("error").Inc()
		c.logger.Warn("Redis error, falling back to DB", zap.Error(err))
	}

	products, err := c.next.GetProducts(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(products); err == nil {
		c.set(ctx, key, data, c.ttl)
	}
	return products, nil
}

// SearchProductsByName always goes to the database; search terms are too
// varied to be worth caching.
func (c *ProductCache) SearchProductsByName(ctx context.Context, name string) ([]models.Product, error) {
	return c.next.SearchProductsByName(ctx, name)
}

// InventoryReport always goes to the database so the report reflects stock
// decrements immediately.
func (c *ProductCache) InventoryReport(ctx context.Context) (*models.InventoryReport, error) {
	return c.next.InventoryReport(ctx)
}

func (c *ProductCache) set(ctx context.Context, key string, data []byte, ttl time.Duration) {
	if err := c.rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		c.logger.Warn("Failed to cache value", zap.String("key", key), zap.Error(err))
	}
}
