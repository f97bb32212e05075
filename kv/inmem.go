package kv

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// inmemkv mimics the redis primitives on top of go-cache. mu serializes every
// write so read-modify-write sequences stay atomic.
type inmemkv struct {
	mu sync.Mutex
	c  *cache.Cache
}

// NewInMemory returns a process-local store. Expired entries are purged every
// cleanupInterval; they are invisible to reads as soon as they expire.
func NewInMemory(cleanupInterval time.Duration) Store {
	return &inmemkv{c: cache.New(cache.NoExpiration, cleanupInterval)}
}

func (i *inmemkv) lookup(key string) (string, time.Time, bool) {
	v, exp, has := i.c.GetWithExpiration(key)
	if !has {
		return "", time.Time{}, false
	}
	return v.(string), exp, true
}

// remaining converts an absolute expiry back into a go-cache ttl.
func remaining(exp time.Time) time.Duration {
	if exp.IsZero() {
		return cache.NoExpiration
	}
	if d := time.Until(exp); d > 0 {
		return d
	}
	return time.Nanosecond
}

func (i *inmemkv) Set(ctx context.Context, key, value string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.c.Set(key, value, cache.NoExpiration)
	return nil
}

func (i *inmemkv) SetNX(ctx context.Context, key, value string) (bool, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.c.Add(key, value, cache.NoExpiration); err != nil {
		return false, nil
	}
	return true, nil
}

func (i *inmemkv) SetEX(ctx context.Context, key, value string, seconds int64) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.set(key, value, time.Duration(seconds)*time.Second)
	return nil
}

// set stores value for ttl; a non-positive ttl removes the key, as redis does.
func (i *inmemkv) set(key, value string, ttl time.Duration) {
	if ttl <= 0 {
		i.c.Delete(key)
		return
	}
	i.c.Set(key, value, ttl)
}

func (i *inmemkv) expire(key string, ttl time.Duration) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	v, _, has := i.lookup(key)
	if !has {
		return false
	}
	i.set(key, v, ttl)
	return true
}

func (i *inmemkv) Expire(ctx context.Context, key string, seconds int64) (bool, error) {
	return i.expire(key, time.Duration(seconds)*time.Second), nil
}

func (i *inmemkv) PExpire(ctx context.Context, key string, millis int64) (bool, error) {
	return i.expire(key, time.Duration(millis)*time.Millisecond), nil
}

func (i *inmemkv) Get(ctx context.Context, key string) (string, error) {
	v, _, _ := i.lookup(key)
	return v, nil
}

func (i *inmemkv) Del(ctx context.Context, key string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.c.Delete(key)
	return nil
}

func (i *inmemkv) Exists(ctx context.Context, key string) (bool, error) {
	_, has := i.c.Get(key)
	return has, nil
}

func (i *inmemkv) pttl(key string) int64 {
	_, exp, has := i.lookup(key)
	switch {
	case !has:
		return -2
	case exp.IsZero():
		return -1
	}
	ms := time.Until(exp).Milliseconds()
	if ms < 0 {
		return -2
	}
	return ms
}

func (i *inmemkv) TTL(ctx context.Context, key string) (int64, error) {
	ms := i.pttl(key)
	if ms < 0 {
		return ms, nil
	}
	return (ms + 500) / 1000, nil
}

func (i *inmemkv) PTTL(ctx context.Context, key string) (int64, error) {
	return i.pttl(key), nil
}

func (i *inmemkv) IncrBy(ctx context.Context, key string, n int64) (int64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exp, has := i.lookup(key)
	var cur int64
	if has {
		var err error
		if cur, err = strconv.ParseInt(v, 10, 64); err != nil {
			return 0, ErrNotInteger
		}
	}
	if (n > 0 && cur > math.MaxInt64-n) || (n < 0 && cur < math.MinInt64-n) {
		return 0, ErrNotInteger
	}

	cur += n
	i.c.Set(key, strconv.FormatInt(cur, 10), remaining(exp))
	return cur, nil
}

func (i *inmemkv) IncrByFloat(ctx context.Context, key string, f float64) (float64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	v, exp, has := i.lookup(key)
	var cur float64
	if has {
		var err error
		if cur, err = strconv.ParseFloat(v, 64); err != nil {
			return 0, ErrNotFloat
		}
	}

	cur += f
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		return 0, ErrNotFloat
	}
	i.c.Set(key, strconv.FormatFloat(cur, 'f', -1, 64), remaining(exp))
	return cur, nil
}

func (i *inmemkv) Close() error {
	i.c.Flush()
	return nil
}
