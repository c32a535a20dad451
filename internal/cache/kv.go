package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/sawpanic/intelrun/internal/metrics"
)

// KV is the two-tier cache facade. The process tier is authoritative
// for hot reads; the Redis tier, when configured, lets replicas share
// debate results and pipeline checkpoints. Redis failures degrade to
// the process tier silently.
type KV struct {
	local  *TTLCache
	redis  *redis.Client
	prefix string
	log    zerolog.Logger
}

// NewKV builds the facade. redisURL may be empty, in which case only
// the process tier is active.
func NewKV(redisURL string, maxEntries int, log zerolog.Logger) (*KV, error) {
	kv := &KV{
		local:  NewTTLCache(maxEntries),
		prefix: "intelrun:",
		log:    log.With().Str("component", "cache").Logger(),
	}
	if redisURL != "" {
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		opts.DialTimeout = 5 * time.Second
		opts.ReadTimeout = 3 * time.Second
		opts.WriteTimeout = 3 * time.Second
		kv.redis = redis.NewClient(opts)
	}
	return kv, nil
}

// GetJSON loads key into out. The process tier stores raw JSON bytes so
// both tiers behave identically.
func (k *KV) GetJSON(ctx context.Context, key string, out interface{}) bool {
	if v, ok := k.local.Get(key); ok {
		if raw, ok := v.([]byte); ok {
			if err := json.Unmarshal(raw, out); err == nil {
				return true
			}
		}
	}
	if k.redis == nil {
		return false
	}
	raw, err := k.redis.Get(ctx, k.prefix+key).Bytes()
	if err != nil {
		if err != redis.Nil {
			k.log.Debug().Err(err).Str("key", key).Msg("redis get failed")
		}
		metrics.CacheOps.WithLabelValues("redis", "miss").Inc()
		return false
	}
	metrics.CacheOps.WithLabelValues("redis", "hit").Inc()
	if err := json.Unmarshal(raw, out); err != nil {
		return false
	}
	// Refill the process tier so the next read is local.
	k.local.Set(key, raw, 30*time.Second)
	return true
}

// SetJSON stores value under key in both tiers for ttl.
func (k *KV) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal %s: %w", key, err)
	}
	k.local.Set(key, raw, ttl)
	if k.redis != nil {
		if err := k.redis.Set(ctx, k.prefix+key, raw, ttl).Err(); err != nil {
			k.log.Debug().Err(err).Str("key", key).Msg("redis set failed")
		} else {
			metrics.CacheOps.WithLabelValues("redis", "set").Inc()
		}
	}
	return nil
}

// Delete removes key from both tiers.
func (k *KV) Delete(ctx context.Context, key string) {
	k.local.Delete(key)
	if k.redis != nil {
		_ = k.redis.Del(ctx, k.prefix+key).Err()
	}
}

// Healthy reports whether the Redis tier (if configured) responds to ping.
func (k *KV) Healthy(ctx context.Context) bool {
	if k.redis == nil {
		return true
	}
	return k.redis.Ping(ctx).Err() == nil
}

// Close releases the Redis connection and stops the local sweeper.
func (k *KV) Close() error {
	k.local.Stop()
	if k.redis != nil {
		return k.redis.Close()
	}
	return nil
}
