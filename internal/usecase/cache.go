package usecase

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Cache abstracts the optional result cache so the orchestrator can be
// tested with a stub. Cache trouble must never fail a comparison: lookups
// degrade to recomputation and stores are best-effort.
type Cache interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string) (string, error)
}

// RedisCache is the go-redis backed implementation.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache wraps a connected Redis client.
func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// Set writes a value with a TTL.
func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return c.client.Set(ctx, key, value, expiration).Err()
}

// Get reads a value; a miss is reported as redis.Nil.
func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.client.Get(ctx, key).Result()
}

// cacheKey derives a stable key from the two encoded payloads. Only hashes
// leave the process; image bytes are never stored anywhere.
func cacheKey(image1, image2 string) string {
	h1 := sha1.Sum([]byte(image1))
	h2 := sha1.Sum([]byte(image2))
	return "facecompare:" + hex.EncodeToString(h1[:]) + ":" + hex.EncodeToString(h2[:])
}

func (uc *ComparisonUseCase) cacheLookup(ctx context.Context, opLogger *zap.Logger, image1, image2 string) (*ComparisonResult, bool) {
	value, err := uc.cache.Get(ctx, cacheKey(image1, image2))
	if err != nil {
		if err != redis.Nil {
			opLogger.Warn("cache lookup failed", zap.Error(err))
		}
		return nil, false
	}
	var result ComparisonResult
	if err := json.Unmarshal([]byte(value), &result); err != nil {
		opLogger.Warn("failed to decode cached result", zap.Error(err))
		return nil, false
	}
	return &result, true
}

func (uc *ComparisonUseCase) cacheStore(ctx context.Context, opLogger *zap.Logger, image1, image2 string, result *ComparisonResult) {
	serialized, err := json.Marshal(result)
	if err != nil {
		opLogger.Warn("failed to serialize result for cache", zap.Error(err))
		return
	}
	if err := uc.cache.Set(ctx, cacheKey(image1, image2), string(serialized), uc.opts.CacheTTL); err != nil {
		opLogger.Warn("cache store failed", zap.Error(err))
	}
}
