package kv

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
)

// errors returned by the in-memory store, worded like the redis server's.
var (
	ErrNotInteger = errors.New("ERR value is not an integer or out of range")
	ErrNotFloat   = errors.New("ERR value is not a valid float")
)

// Store is the set of primitives the accessor needs from a key-value store.
// Implementations must be atomic per key for every primitive.
//
// Get returns an empty string for a missing key. TTL and PTTL return -2 for a
// missing key and -1 for a key without expiry.
type Store interface {
	Set(ctx context.Context, key, value string) error
	SetNX(ctx context.Context, key, value string) (bool, error)
	SetEX(ctx context.Context, key, value string, seconds int64) error
	Expire(ctx context.Context, key string, seconds int64) (bool, error)
	PExpire(ctx context.Context, key string, millis int64) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	TTL(ctx context.Context, key string) (int64, error)
	PTTL(ctx context.Context, key string) (int64, error)
	IncrBy(ctx context.Context, key string, n int64) (int64, error)
	IncrByFloat(ctx context.Context, key string, f float64) (float64, error)
	Close() error
}

// New connects to the store at url. An empty url gives an in-memory store.
func New(ctx context.Context, url string) (Store, error) {
	if url == "" {
		return NewInMemory(time.Minute), nil
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)
	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, err
	}

	return NewRedis(client), nil
}
