package repository

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/config"
	"salonbook/internal/domain"

	"github.com/redis/go-redis/v9"
)

const submitKeyPrefix = "salonbook:submit:"

// NewRedisClient builds a client from the redis section of the config.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisSubmissionLimiter counts submissions per client in fixed windows.
type RedisSubmissionLimiter struct {
	client *redis.Client
}

var _ domain.SubmissionLimiter = (*RedisSubmissionLimiter)(nil)

func NewRedisSubmissionLimiter(client *redis.Client) *RedisSubmissionLimiter {
	return &RedisSubmissionLimiter{client: client}
}

func (r *RedisSubmissionLimiter) Allow(ctx context.Context, clientID string, limit int, window time.Duration) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	key := submitKeyPrefix + clientID

	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment submission counter: %w", err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set submission window: %w", err)
		}
	}

	return count <= int64(limit), nil
}

// Ping checks the connection to Redis.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
