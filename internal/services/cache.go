package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AnshRaj112/echoes-backend/internal/database"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	// CacheKeyPrefix is the Redis key prefix for cached data
	CacheKeyPrefix = "cache:"
	// LookupCacheTTL bounds how stale the emotion and tag option lists can get
	LookupCacheTTL = 10 * time.Minute
)

// CacheService is a JSON cache over Redis. Every method fails open: without Redis all reads miss and writes are dropped.
type CacheService struct{}

// Get retrieves a value from cache
func (c *CacheService) Get(ctx context.Context, key string, dest interface{}) bool {
	if database.RedisClient == nil {
		return false
	}

	val, err := database.RedisClient.Get(ctx, CacheKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logrus.WithError(err).WithField("key", key).Warn("cache read failed")
		}
		return false
	}

	if err := json.Unmarshal(val, dest); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache entry corrupt")
		return false
	}
	return true
}

// Set stores a value in cache with the given TTL
func (c *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if database.RedisClient == nil {
		return
	}

	data, err := json.Marshal(value)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache encode failed")
		return
	}

	if err := database.RedisClient.Set(ctx, CacheKeyPrefix+key, data, ttl).Err(); err != nil {
		logrus.WithError(err).WithField("key", key).Warn("cache write failed")
	}
}

// Delete removes values from cache
func (c *CacheService) Delete(ctx context.Context, keys ...string) {
	if database.RedisClient == nil || len(keys) == 0 {
		return
	}
	prefixed := make([]string, len(keys))
	for i, k := range keys {
		prefixed[i] = CacheKeyPrefix + k
	}
	if err := database.RedisClient.Del(ctx, prefixed...).Err(); err != nil {
		logrus.WithError(err).WithField("keys", keys).Warn("cache delete failed")
	}
}

// CacheKey generates a cache key for a specific resource
func CacheKey(resource string, identifier string) string {
	return fmt.Sprintf("%s:%s", resource, identifier)
}

// Global cache service instance
var Cache = &CacheService{}
