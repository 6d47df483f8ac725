package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"sportpos/backend/internal/domain"
)

type RedisHeldCartCache struct {
	client *redis.Client
}

func NewRedisHeldCartCache(addr string, password string, db int) *RedisHeldCartCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisHeldCartCache{client: client}
}

func (c *RedisHeldCartCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisHeldCartCache) Close() error {
	return c.client.Close()
}

func (c *RedisHeldCartCache) Get(ctx context.Context, terminalID string) (*domain.HeldCart, bool, error) {
	val, err := c.client.Get(ctx, heldCartKey(terminalID)).Result()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var cart domain.HeldCart
	if err := json.Unmarshal([]byte(val), &cart); err != nil {
		return nil, false, err
	}
	return &cart, true, nil
}

func (c *RedisHeldCartCache) Set(ctx context.Context, terminalID string, cart *domain.HeldCart, ttl time.Duration) error {
	if cart == nil {
		return nil
	}
	payload, err := json.Marshal(cart)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, heldCartKey(terminalID), payload, ttl).Err()
}

func (c *RedisHeldCartCache) Delete(ctx context.Context, terminalID string) error {
	return c.client.Del(ctx, heldCartKey(terminalID)).Err()
}

func heldCartKey(terminalID string) string {
	return "heldcart:" + terminalID
}
