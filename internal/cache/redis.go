package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// keyPrefix namespaces all cache keys so several tools can share a server.
const keyPrefix = "grabtree:"

func init() {
	Register("redis", newRedisCache)
}

// redisCache implements Cache on Redis/Valkey with application-level LRU
// bookkeeping. The whole cache lives in two keys regardless of entry count:
//
//   - {prefix}data — a hash of user key to value, with per-field TTL set via
//     HPEXPIRE so expired entries disappear server-side.
//   - {prefix}lru  — a sorted set scoring each user key by last-access time,
//     used to pick eviction victims when the cache is over capacity.
//
// HPEXPIRE needs Redis 7.4+ or Valkey 8+; on older servers values are stored
// but never expire. Lua scripts keep the read-touch and write-evict pairs
// atomic, and stale sorted-set members whose hash field already expired are
// cleaned up lazily during eviction.
type redisCache struct {
	client  *redis.Client
	ttl     time.Duration
	maxSize int
	onEvict EvictCallback
	logger  *zerolog.Logger
	dataKey string
	lruKey  string
}

// getAndTouch returns the value for ARGV[2] from the data hash (KEYS[1]) and,
// on a hit, bumps its recency score in the LRU set (KEYS[2]) to ARGV[1].
var getAndTouch = redis.NewScript(`
local val = redis.call('HGET', KEYS[1], ARGV[2])
if val then
    redis.call('ZADD', KEYS[2], ARGV[1], ARGV[2])
end
return val
`)

// setAndEvict writes ARGV[1] under field ARGV[3] in the data hash (KEYS[1])
// with a TTL of ARGV[5] milliseconds, records the access timestamp ARGV[2] in
// the LRU set (KEYS[2]), and pops least-recent members until the set is back
// under ARGV[4] entries. Returns the names of the evicted members.
var setAndEvict = redis.NewScript(`
local field  = ARGV[3]
local cap    = tonumber(ARGV[4])
local ttlMs  = tonumber(ARGV[5])

redis.call('HSET', KEYS[1], field, ARGV[1])
redis.call('HPEXPIRE', KEYS[1], ttlMs, 'FIELDS', 1, field)
redis.call('ZADD', KEYS[2], ARGV[2], field)

local size = redis.call('ZCARD', KEYS[2])
local evicted = {}
while size > cap do
    local oldest = redis.call('ZPOPMIN', KEYS[2], 1)
    if #oldest == 0 then break end
    redis.call('HDEL', KEYS[1], oldest[1])
    table.insert(evicted, oldest[1])
    size = size - 1
end
return evicted
`)

func newRedisCache(cfg ProviderConfig) (Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &redisCache{
		client:  client,
		ttl:     cfg.TTL,
		maxSize: cfg.Size,
		onEvict: cfg.OnEvict,
		logger:  cfg.Logger,
		dataKey: keyPrefix + "data",
		lruKey:  keyPrefix + "lru",
	}, nil
}

func (r *redisCache) keys() []string {
	return []string{r.dataKey, r.lruKey}
}

func (r *redisCache) logError(msg string, err error) {
	if r.logger != nil {
		r.logger.Error().Err(err).Msg(msg)
	}
}

func (r *redisCache) Get(key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := strconv.FormatInt(time.Now().UnixMicro(), 10)
	result, err := getAndTouch.Run(ctx, r.client, r.keys(), now, key).Text()
	if err != nil {
		// redis.Nil is an ordinary miss.
		if !errors.Is(err, redis.Nil) {
			r.logError("Redis cache Get failed", err)
		}
		return nil, false
	}
	return []byte(result), true
}

func (r *redisCache) Set(key string, value []byte) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	now := strconv.FormatInt(time.Now().UnixMicro(), 10)
	evicted, err := setAndEvict.Run(ctx, r.client, r.keys(),
		value, now, key, strconv.Itoa(r.maxSize), strconv.FormatInt(r.ttl.Milliseconds(), 10),
	).StringSlice()
	if err != nil {
		r.logError("Redis cache Set failed", err)
		return
	}

	if r.onEvict != nil {
		// Evicted values are not fetched back from the server; callers get
		// the key only.
		for _, evictedKey := range evicted {
			r.onEvict(evictedKey, nil)
		}
	}
}

func (r *redisCache) Contains(key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	present, err := r.client.HExists(ctx, r.dataKey, key).Result()
	if err != nil {
		r.logError("Redis cache Contains failed", err)
		return false
	}
	return present
}

func (r *redisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	n, err := r.client.HLen(ctx, r.dataKey).Result()
	if err != nil {
		r.logError("Redis cache Len failed", err)
		return 0
	}
	return int(n)
}

func (r *redisCache) Close() error {
	return r.client.Close()
}
