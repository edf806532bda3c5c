package videoinfo

import (
	"context"
	"time"

	"github.com/hitoshi/stationman/internal/cache"
)

const cacheKeyPrefix = "stationman:videoinfo:"

// RedisCache はRedisを使用したDurationCache。
type RedisCache struct {
	redis *cache.Redis
}

// NewRedisCache はRedisCacheを生成する。
func NewRedisCache(r *cache.Redis) *RedisCache {
	return &RedisCache{redis: r}
}

// Get はキャッシュ済みの再生時間を返す。
func (c *RedisCache) Get(ctx context.Context, videoID string) (int, bool, error) {
	seconds, err := cache.Get[int](ctx, c.redis, cacheKeyPrefix+videoID)
	if cache.IsMiss(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return seconds, true, nil
}

// Set は再生時間をキャッシュする。
func (c *RedisCache) Set(ctx context.Context, videoID string, seconds int, ttl time.Duration) error {
	return cache.Set(ctx, c.redis, cacheKeyPrefix+videoID, seconds, ttl)
}
