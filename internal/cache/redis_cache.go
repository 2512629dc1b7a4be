package cache

import (
	"context"

	redis "github.com/redis/go-redis/v9"
)

type RedisBackend struct {
	client *redis.Client
}

func NewRedisBackend(addr string, password string, db int) *RedisBackend {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisBackend{client: client}
}

func (c *RedisBackend) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisBackend) Close() error {
	return c.client.Close()
}

func (c *RedisBackend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// Set stores the value without expiry; the cache is the dashboard's durable local copy.
func (c *RedisBackend) Set(ctx context.Context, key string, value []byte) error {
	return c.client.Set(ctx, key, value, 0).Err()
}

func (c *RedisBackend) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
