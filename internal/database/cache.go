package database

import (
	"context"
	"encoding/json"
	"strconv"
	"time"
)

const (
	// Cache key prefixes
	CacheKeyGroupStats = "closo:group:stats:"
	CacheKeySettings   = "closo:settings"
	tokenBlacklistKey  = "closo:token:blacklist:"

	// Cache TTLs
	CacheTTLGroupStats = 2 * time.Minute
	CacheTTLSettings   = 5 * time.Minute
)

// CacheGet retrieves a value from Redis cache and unmarshals it into dest
func CacheGet(key string, dest interface{}) error {
	ctx := context.Background()
	data, err := Redis.Get(ctx, key).Bytes()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// CacheSet stores a value in Redis cache with TTL
func CacheSet(key string, value interface{}, ttl time.Duration) error {
	ctx := context.Background()
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(ctx, key, data, ttl).Err()
}

// CacheDelete removes a key from Redis cache
func CacheDelete(keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ctx := context.Background()
	return Redis.Del(ctx, keys...).Err()
}

// CacheDeletePattern deletes all keys matching a pattern (use with caution)
func CacheDeletePattern(pattern string) error {
	ctx := context.Background()
	iter := Redis.Scan(ctx, 0, pattern, 0).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) > 0 {
		return Redis.Del(ctx, keys...).Err()
	}
	return nil
}

// GroupStatsCacheKey returns the cache key for a group's stats
func GroupStatsCacheKey(groupID uint) string {
	return CacheKeyGroupStats + strconv.FormatUint(uint64(groupID), 10)
}

// InvalidateGroupStatsCache clears cached stats for a group after membership
// or media writes
func InvalidateGroupStatsCache(groupID uint) {
	CacheDelete(GroupStatsCacheKey(groupID))
}

// BlacklistToken marks a JWT as revoked until its natural expiry
func BlacklistToken(token string, ttl time.Duration) error {
	ctx := context.Background()
	if ttl <= 0 {
		ttl = time.Minute
	}
	return Redis.Set(ctx, tokenBlacklistKey+token, "1", ttl).Err()
}

// IsTokenBlacklisted reports whether a JWT has been revoked via logout
func IsTokenBlacklisted(token string) bool {
	ctx := context.Background()
	n, err := Redis.Exists(ctx, tokenBlacklistKey+token).Result()
	if err != nil {
		// If Redis is unreachable, fail open: the token signature and
		// expiry are still checked by the auth middleware
		return false
	}
	return n > 0
}
