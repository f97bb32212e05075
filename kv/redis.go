package kv

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

type rediskv struct {
	client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) Store {
	return &rediskv{client}
}

func (r *rediskv) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *rediskv) SetNX(ctx context.Context, key, value string) (bool, error) {
	return r.client.SetNX(ctx, key, value, 0).Result()
}

func (r *rediskv) SetEX(ctx context.Context, key, value string, seconds int64) error {
	return r.client.SetEX(ctx, key, value, time.Duration(seconds)*time.Second).Err()
}

func (r *rediskv) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	return r.client.Expire(ctx, key, time.Duration(seconds)*time.Second).Result()
}

func (r *rediskv) PExpire(ctx context.Context, key string, millis int64) (bool, error) {
	return r.client.PExpire(ctx, key, time.Duration(millis)*time.Millisecond).Result()
}

func (r *rediskv) Get(ctx context.Context, key string) (string, error) {
	v, err := r.client.Get(ctx, key).Result()
	if err != nil && err != redis.Nil {
		return "", err
	}
	return v, nil
}

func (r *rediskv) Del(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *rediskv) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	return n > 0, err
}

// TTL and PTTL read the raw integer reply so the -1/-2 sentinels come back
// as-is instead of as durations.
func (r *rediskv) TTL(ctx context.Context, key string) (int64, error) {
	return r.client.Do(ctx, "ttl", key).Int64()
}

func (r *rediskv) PTTL(ctx context.Context, key string) (int64, error) {
	return r.client.Do(ctx, "pttl", key).Int64()
}

func (r *rediskv) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	return r.client.IncrBy(ctx, key, n).Result()
}

func (r *rediskv) IncrByFloat(ctx context.Context, key string, f float64) (float64, error) {
	return r.client.IncrByFloat(ctx, key, f).Result()
}

func (r *rediskv) Close() error {
	return r.client.Close()
}
