package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrJamesThe3rd/loyer/internal/notify"
)

var ErrCacheMiss = errors.New("cache miss")

// RedisCache stores serialized summaries in Redis.
type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

// DialRedis opens a client and checks the server answers.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting redis: %w", err)
	}

	return client, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}

		return nil, fmt.Errorf("reading %s from redis: %w", key, err)
	}

	return data, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("writing %s to redis: %w", key, err)
	}

	return nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("deleting %s from redis: %w", key, err)
	}

	return nil
}

// NoCache is used when Redis is not configured: every read misses.
type NoCache struct{}

func (NoCache) Get(context.Context, string) ([]byte, error)              { return nil, ErrCacheMiss }
func (NoCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (NoCache) Delete(context.Context, string) error                     { return nil }

// Invalidator drops the cached summary on every lease or payment event. Each
// process that writes leases or payments must carry one in its notifier chain.
type Invalidator struct {
	cache Cache
}

func NewInvalidator(cache Cache) *Invalidator {
	return &Invalidator{cache: cache}
}

func (i *Invalidator) Notify(ctx context.Context, _ notify.Event) error {
	if err := i.cache.Delete(ctx, cacheKey); err != nil {
		return fmt.Errorf("invalidating dashboard: %w", err)
	}

	return nil
}
