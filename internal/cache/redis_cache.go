package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// RedisCartCache persists cart state across restarts, the server-side
// equivalent of the browser keeping an open sale in local storage.
type RedisCartCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCartCache(addr string, password string, db int, ttl time.Duration) *RedisCartCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisCartCache{client: client, ttl: ttl}
}

func (c *RedisCartCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCartCache) Close() error {
	return c.client.Close()
}

func (c *RedisCartCache) Get(ctx context.Context, terminalID string) (*CartState, bool, error) {
	val, err := c.client.Get(ctx, cartKey(terminalID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var state CartState
	if err := json.Unmarshal([]byte(val), &state); err != nil {
		return nil, false, err
	}
	return &state, true, nil
}

func (c *RedisCartCache) Set(ctx context.Context, terminalID string, state *CartState) error {
	if state == nil {
		return nil
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, cartKey(terminalID), payload, c.ttl).Err()
}

func (c *RedisCartCache) Delete(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, cartKey(terminalID)).Err()
}

func cartKey(terminalID string) string {
	return "cart:" + terminalID
}
