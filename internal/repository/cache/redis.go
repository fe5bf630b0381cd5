package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/Pesokrava/review_engine/internal/domain"
)

// ReviewPage is a cached page of approved reviews together with the total count
type ReviewPage struct {
	Reviews []*domain.Review `json:"reviews"`
	Total   int              `json:"total"`
}

// RedisCache implements caching for rating summaries and review pages
type RedisCache struct {
	client           *redis.Client
	productRatingTTL time.Duration
	reviewsListTTL   time.Duration
}

// NewRedisCache creates a new Redis cache instance
func NewRedisCache(client *redis.Client, productRatingTTL, reviewsListTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:           client,
		productRatingTTL: productRatingTTL,
		reviewsListTTL:   reviewsListTTL,
	}
}

func productRatingKey(productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:rating", productID.String())
}

func reviewsListKey(productID uuid.UUID, limit, offset int) string {
	return fmt.Sprintf("product:%s:reviews:limit:%d:offset:%d", productID.String(), limit, offset)
}

func productCacheKeysSet(productID uuid.UUID) string {
	return fmt.Sprintf("product:%s:cache_keys", productID.String())
}

// setRatingIfNewer writes the summary hash unless the cached copy already carries the same or
// a newer rating version. A plain string left by an older release is replaced.
// KEYS[1] is the rating key; ARGV is version, payload, ttl in ms.
var setRatingIfNewer = redis.NewScript(`
if redis.call('TYPE', KEYS[1]).ok == 'string' then
	redis.call('DEL', KEYS[1])
end
local current = redis.call('HGET', KEYS[1], 'version')
if current and tonumber(current) >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// GetRatingSummary retrieves a cached rating summary; domain.ErrNotFound on a miss
func (c *RedisCache) GetRatingSummary(ctx context.Context, productID uuid.UUID) (*domain.RatingSummary, error) {
	fields, err := c.client.HGetAll(ctx, productRatingKey(productID)).Result()
	if err != nil {
		return nil, err
	}
	data, ok := fields["data"]
	if !ok {
		return nil, domain.ErrNotFound
	}

	var summary domain.RatingSummary
	if err := json.Unmarshal([]byte(data), &summary); err != nil {
		return nil, err
	}
	if summary.Version, err = strconv.ParseInt(fields["version"], 10, 64); err != nil {
		return nil, fmt.Errorf("invalid cached rating version: %w", err)
	}
	return &summary, nil
}

// SetRatingSummary caches a rating summary unless a copy with the same or a newer version is
// already cached, so a slow writer holding an old read cannot replace a fresher value.
func (c *RedisCache) SetRatingSummary(ctx context.Context, productID uuid.UUID, summary *domain.RatingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}

	keys := []string{productRatingKey(productID)}
	return setRatingIfNewer.Run(ctx, c.client, keys, summary.Version, data, c.productRatingTTL.Milliseconds()).Err()
}

// InvalidateRatingSummary removes a product's rating summary from cache
func (c *RedisCache) InvalidateRatingSummary(ctx context.Context, productID uuid.UUID) error {
	return c.client.Del(ctx, productRatingKey(productID)).Err()
}

// GetReviewsList retrieves a cached review page for a product; domain.ErrNotFound on a miss
func (c *RedisCache) GetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int) (*ReviewPage, error) {
	val, err := c.client.Get(ctx, reviewsListKey(productID, limit, offset)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}

	var page ReviewPage
	if err := json.Unmarshal(val, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// SetReviewsList stores a review page in cache and tracks the key in a SET
func (c *RedisCache) SetReviewsList(ctx context.Context, productID uuid.UUID, limit, offset int, page *ReviewPage) error {
	key := reviewsListKey(productID, limit, offset)
	trackingKey := productCacheKeysSet(productID)

	data, err := json.Marshal(page)
	if err != nil {
		return err
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, key, data, c.reviewsListTTL)
	pipe.SAdd(ctx, trackingKey, key)
	pipe.Expire(ctx, trackingKey, c.reviewsListTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// InvalidateReviewsList removes all cached review pages for a product using SET-based tracking
func (c *RedisCache) InvalidateReviewsList(ctx context.Context, productID uuid.UUID) error {
	trackingKey := productCacheKeysSet(productID)

	keys, err := c.client.SMembers(ctx, trackingKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return err
	}

	if len(keys) > 0 {
		keys = append(keys, trackingKey)
		return c.client.Unlink(ctx, keys...).Err()
	}

	return nil
}

// InvalidateProduct invalidates every cache entry for a product
func (c *RedisCache) InvalidateProduct(ctx context.Context, productID uuid.UUID) error {
	if err := c.InvalidateRatingSummary(ctx, productID); err != nil {
		return err
	}
	return c.InvalidateReviewsList(ctx, productID)
}
