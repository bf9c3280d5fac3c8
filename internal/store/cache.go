package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shoprank/pkg/models"
)

const productKeyPrefix = "product:"

// ProductSource is the catalog a CachedCatalog reads through to.
type ProductSource interface {
	FetchAllActive(ctx context.Context) ([]models.Product, error)
	FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
	FetchByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CachedCatalog serves product hydration from Redis and falls back to the
// wrapped source on a miss. Redis failures are logged and bypassed.
type CachedCatalog struct {
	source ProductSource
	redis  *redis.Client
	ttl    time.Duration
	logger *logrus.Logger
}

func NewCachedCatalog(source ProductSource, redisClient *redis.Client, ttl time.Duration, logger *logrus.Logger) *CachedCatalog {
	return &CachedCatalog{
		source: source,
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// FetchAllActive always reads the source and refreshes the cache with the
// result.
func (c *CachedCatalog) FetchAllActive(ctx context.Context) ([]models.Product, error) {
	products, err := c.source.FetchAllActive(ctx)
	if err != nil {
		return nil, err
	}
	c.store(ctx, products)
	return products, nil
}

// FetchByIDs returns products in request order, reading cached records first.
func (c *CachedCatalog) FetchByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if c.redis == nil || len(ids) == 0 {
		return c.source.FetchByIDs(ctx, ids)
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productKey(id)
	}

	values, err := c.redis.MGet(ctx, keys...).Result()
	if err != nil {
		c.logger.WithError(err).Warn("Product cache read failed, using catalog store")
		return c.source.FetchByIDs(ctx, ids)
	}

	found := make(map[uuid.UUID]models.Product, len(ids))
	var missing []uuid.UUID
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			missing = append(missing, ids[i])
			continue
		}
		var product models.Product
		if err := json.Unmarshal([]byte(raw), &product); err != nil {
			missing = append(missing, ids[i])
			continue
		}
		found[product.ID] = product
	}

	if len(missing) > 0 {
		fetched, err := c.source.FetchByIDs(ctx, missing)
		if err != nil {
			return nil, err
		}
		for _, p := range fetched {
			found[p.ID] = p
		}
		c.store(ctx, fetched)
	}

	c.logger.WithFields(logrus.Fields{
		"requested": len(ids),
		"hits":      len(ids) - len(missing),
	}).Debug("Hydrated products")

	products := make([]models.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := found[id]; ok {
			products = append(products, p)
		}
	}
	return products, nil
}

// FetchByID returns one product or ErrNotFound.
func (c *CachedCatalog) FetchByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	products, err := c.FetchByIDs(ctx, []uuid.UUID{id})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return &products[0], nil
}

func (c *CachedCatalog) store(ctx context.Context, products []models.Product) {
	if c.redis == nil || len(products) == 0 {
		return
	}

	pipe := c.redis.Pipeline()
	for _, p := range products {
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		pipe.Set(ctx, productKey(p.ID), data, c.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to cache products")
	}
}

func productKey(id uuid.UUID) string {
	return productKeyPrefix + id.String()
}
