package cache

import (
	"context"
	"encoding/json"
	"time"

	redis "github.com/redis/go-redis/v9"

	"bumdespos/terminal/internal/domain"
)

type RedisSnapshotCache struct {
	client *redis.Client
}

func NewRedisSnapshotCache(addr string, password string, db int) *RedisSnapshotCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	return &RedisSnapshotCache{client: client}
}

func (c *RedisSnapshotCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisSnapshotCache) Close() error {
	return c.client.Close()
}

func (c *RedisSnapshotCache) GetProducts(ctx context.Context, key string) ([]domain.Product, bool, error) {
	var out []domain.Product
	ok, err := c.get(ctx, "products:"+key, &out)
	return out, ok, err
}

func (c *RedisSnapshotCache) SetProducts(ctx context.Context, key string, products []domain.Product, ttl time.Duration) error {
	return c.set(ctx, "products:"+key, products, ttl)
}

func (c *RedisSnapshotCache) GetCustomers(ctx context.Context, key string) ([]domain.Customer, bool, error) {
	var out []domain.Customer
	ok, err := c.get(ctx, "customers:"+key, &out)
	return out, ok, err
}

func (c *RedisSnapshotCache) SetCustomers(ctx context.Context, key string, customers []domain.Customer, ttl time.Duration) error {
	return c.set(ctx, "customers:"+key, customers, ttl)
}

func (c *RedisSnapshotCache) get(ctx context.Context, key string, out any) (bool, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false, err
	}
	return true, nil
}

func (c *RedisSnapshotCache) set(ctx context.Context, key string, value any, ttl time.Duration) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, payload, ttl).Err()
}
