package utils

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCacheTTL = time.Hour
	// generation counters must outlive every entry written under them
	versionTTL = 24 * time.Hour
	redisOpTTL = 2 * time.Second
)

// withRedis runs fn with a bounded context when Redis is configured.
func withRedis(timeout time.Duration, fn func(ctx context.Context, rc *redis.Client) error) error {
	rc := GetRedis()
	if rc == nil {
		return errRedisOff
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return fn(ctx, rc)
}

var errRedisOff = errors.New("redis disabled")

// CacheGetBytes returns cached bytes for a key from Redis.
func CacheGetBytes(key string) ([]byte, bool) {
	var b []byte
	err := withRedis(redisOpTTL, func(ctx context.Context, rc *redis.Client) error {
		var err error
		b, err = rc.Get(ctx, key).Bytes()
		return err
	})
	if err != nil {
		if !errors.Is(err, errRedisOff) && !errors.Is(err, redis.Nil) {
			Logger.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return b, true
}

// CacheSetBytes stores bytes; a non-positive ttl means the default of one hour.
func CacheSetBytes(key string, b []byte, ttl time.Duration) {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	err := withRedis(redisOpTTL, func(ctx context.Context, rc *redis.Client) error {
		return rc.Set(ctx, key, b, ttl).Err()
	})
	if err != nil && !errors.Is(err, errRedisOff) {
		Logger.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// CacheSetJSON marshals v and stores JSON bytes.
func CacheSetJSON(key string, v interface{}, ttl time.Duration) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	CacheSetBytes(key, b, ttl)
}

// CacheVersion reads the generation counter at key; an unset counter is 0.
// ok is false when Redis is off or unreachable, and callers should then bypass the cache.
func CacheVersion(key string) (version int64, ok bool) {
	err := withRedis(redisOpTTL, func(ctx context.Context, rc *redis.Client) error {
		v, err := rc.Get(ctx, key).Int64()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		version = v
		return err
	})
	if err != nil {
		if !errors.Is(err, errRedisOff) {
			Logger.Warn("cache version read failed", zap.String("key", key), zap.Error(err))
		}
		return 0, false
	}
	return version, true
}

// BumpCacheVersion advances the generation counter at key, so cache keys built
// from an earlier generation are never read again even if a slow reader writes them late.
func BumpCacheVersion(key string) {
	err := withRedis(redisOpTTL, func(ctx context.Context, rc *redis.Client) error {
		pipe := rc.TxPipeline()
		pipe.Incr(ctx, key)
		pipe.Expire(ctx, key, versionTTL)
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil && !errors.Is(err, errRedisOff) {
		Logger.Warn("cache version bump failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateByPrefix deletes keys that match the given prefix using SCAN.
func InvalidateByPrefix(prefix string) {
	err := withRedis(3*time.Second, func(ctx context.Context, rc *redis.Client) error {
		var cursor uint64
		for i := 0; i < 10; i++ { // limit rounds to avoid long loops
			keys, cur, err := rc.Scan(ctx, cursor, prefix+"*", 1000).Result()
			if err != nil {
				return err
			}
			if len(keys) > 0 {
				if err := rc.Del(ctx, keys...).Err(); err != nil {
					return err
				}
			}
			if cursor = cur; cursor == 0 {
				return nil
			}
		}
		return nil
	})
	if err != nil && !errors.Is(err, errRedisOff) {
		Logger.Warn("cache invalidate failed", zap.String("prefix", prefix), zap.Error(err))
	}
}
