package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Redis stores each document as a plain string value under originchats:<kind>:<key>.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the server described by rawURL and pings it.
func NewRedis(ctx context.Context, rawURL string) (*Redis, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return &Redis{client: client}, nil
}

func redisKey(kind, key string) string {
	return "originchats:" + kind + ":" + key
}

func (r *Redis) Read(ctx context.Context, kind, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKey(kind, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return data, err
}

func (r *Redis) Write(ctx context.Context, kind, key string, data []byte) error {
	return r.client.Set(ctx, redisKey(kind, key), data, 0).Err()
}

func (r *Redis) Remove(ctx context.Context, kind, key string) error {
	return r.client.Del(ctx, redisKey(kind, key)).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}
