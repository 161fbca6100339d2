package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is the production backend. Per-key TTL comes from Redis itself,
// so an expired session disappears even if this process never wakes up
// to delete it.
type Redis struct {
	client *redis.Client
	prefix string
}

func NewRedis(url, prefix string) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, prefix: prefix}, nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get: %w", err)
	}
	return data, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis del: %w", err)
	}
	return nil
}

func (r *Redis) AddToIndex(ctx context.Context, index, member string) error {
	if err := r.client.SAdd(ctx, r.prefix+index, member).Err(); err != nil {
		return fmt.Errorf("redis sadd: %w", err)
	}
	return nil
}

func (r *Redis) RemoveFromIndex(ctx context.Context, index, member string) error {
	if err := r.client.SRem(ctx, r.prefix+index, member).Err(); err != nil {
		return fmt.Errorf("redis srem: %w", err)
	}
	return nil
}

func (r *Redis) IndexMembers(ctx context.Context, index string) ([]string, error) {
	members, err := r.client.SMembers(ctx, r.prefix+index).Result()
	if err != nil {
		return nil, fmt.Errorf("redis smembers: %w", err)
	}
	return members, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}
