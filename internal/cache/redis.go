package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Redis backs the Cache capability with a shared Redis instance. Cache
// unavailability degrades to direct-store reads, so every error path here
// reports a miss and logs at debug.
type Redis struct {
	client *redis.Client
	log    zerolog.Logger
}

func NewRedis(addr string, log zerolog.Logger) *Redis {
	return &Redis{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		log:    log,
	}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug().Err(err).Str("key", key).Msg("cache get failed, treating as miss")
		}
		return "", false
	}
	return val, true
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache set failed")
	}
}

func (r *Redis) Remove(ctx context.Context, key string) {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		r.log.Debug().Err(err).Str("key", key).Msg("cache remove failed")
	}
}

func (r *Redis) Close() error {
	return r.client.Close()
}
