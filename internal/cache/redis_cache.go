package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fuelos/backend/internal/domain"
)

type RedisRateCache struct {
	client redis.UniversalClient
	key    string
}

func NewRedisClient(addr string, password string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
}

func NewRedisRateCache(client redis.UniversalClient) *RedisRateCache {
	return &RedisRateCache{client: client, key: RatesKey}
}

func (c *RedisRateCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisRateCache) GetRates(ctx context.Context) ([]domain.FuelRate, bool, error) {
	val, err := c.client.Get(ctx, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var rates []domain.FuelRate
	if err := json.Unmarshal([]byte(val), &rates); err != nil {
		return nil, false, err
	}
	return rates, true, nil
}

func (c *RedisRateCache) SetRates(ctx context.Context, rates []domain.FuelRate, ttl time.Duration) error {
	if len(rates) == 0 {
		return nil
	}
	payload, err := json.Marshal(rates)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key, payload, ttl).Err()
}

func (c *RedisRateCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, c.key).Err()
}
