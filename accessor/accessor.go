// Package accessor is a typed, stateless helper over a kv.Store.
//
// Every operation takes the store explicitly, validates its arguments before
// touching the store and returns store errors unmodified. Values are written
// through a codec.Codec, JSON unless the Helper says otherwise.
package accessor

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/qianbin/typedkv/codec"
	"github.com/qianbin/typedkv/kv"
	"github.com/rs/zerolog"
)

// Helper carries the codec used for values. The zero value uses JSON.
type Helper struct {
	Codec codec.Codec
}

// Default is the JSON helper.
var Default = Helper{Codec: codec.JSON{}}

func (h Helper) codec() codec.Codec {
	if h.Codec == nil {
		return codec.JSON{}
	}
	return h.Codec
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, append([]interface{}{ErrInvalidArgument}, args...)...)
}

func check(s kv.Store, key string) error {
	if s == nil {
		return invalid("store must not be nil")
	}
	if key == "" {
		return invalid("key must not be empty")
	}
	return nil
}

func isNil(v interface{}) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

// encode rejects nil values and serializes the rest.
func (h Helper) encode(value interface{}) (string, error) {
	if isNil(value) {
		return "", invalid("value must not be nil")
	}
	s, err := h.codec().Marshal(value)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return s, nil
}

// absent reports whether a raw value stands for a missing key.
func absent(raw string) bool {
	return strings.TrimSpace(raw) == "" || strings.EqualFold(raw, "nil")
}

// Save writes value under key, overwriting any entry and dropping its ttl.
func (h Helper) Save(ctx context.Context, s kv.Store, key string, value interface{}) error {
	if err := check(s, key); err != nil {
		return err
	}
	v, err := h.encode(value)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Trace().Str("key", key).Msg("save")
	return s.Set(ctx, key, v)
}

// SaveWithExpiry writes value under key with a ttl at the given unit.
// Seconds use the store's atomic set-with-expiry. Milliseconds set first and
// expire second, so a concurrent reader may briefly see the value without ttl.
func (h Helper) SaveWithExpiry(ctx context.Context, s kv.Store, key string, value interface{}, ttl time.Duration, unit Unit) error {
	if err := check(s, key); err != nil {
		return err
	}
	n, err := unit.ttl(ttl)
	if err != nil {
		return err
	}
	v, err := h.encode(value)
	if err != nil {
		return err
	}

	zerolog.Ctx(ctx).Trace().Str("key", key).Int64("ttl", n).Stringer("unit", unit).Msg("save with expiry")
	if unit == Seconds {
		return s.SetEX(ctx, key, v, n)
	}
	if err := s.Set(ctx, key, v); err != nil {
		return err
	}
	_, err = s.PExpire(ctx, key, n)
	return err
}

// SetIfAbsent writes value only if key does not exist and reports whether it
// did. The ttl is applied only after a successful write.
func (h Helper) SetIfAbsent(ctx context.Context, s kv.Store, key string, value interface{}, ttl time.Duration, unit Unit) (bool, error) {
	if err := check(s, key); err != nil {
		return false, err
	}
	n, err := unit.ttl(ttl)
	if err != nil {
		return false, err
	}
	v, err := h.encode(value)
	if err != nil {
		return false, err
	}

	ok, err := s.SetNX(ctx, key, v)
	if err != nil || !ok {
		return false, err
	}
	zerolog.Ctx(ctx).Trace().Str("key", key).Int64("ttl", n).Stringer("unit", unit).Msg("set if absent")
	if _, err := unit.expireWith(ctx, s, key, n); err != nil {
		return true, err
	}
	return true, nil
}

// Expire sets the ttl of an existing key. It returns the ttl applied,
// truncated to unit, or 0 when the key does not exist. A 0 result never
// means the ttl was set to zero.
func (h Helper) Expire(ctx context.Context, s kv.Store, key string, ttl time.Duration, unit Unit) (time.Duration, error) {
	if err := check(s, key); err != nil {
		return 0, err
	}
	n, err := unit.ttl(ttl)
	if err != nil {
		return 0, err
	}

	ok, err := unit.expireWith(ctx, s, key, n)
	if err != nil || !ok {
		return 0, err
	}
	return unit.duration(n), nil
}

// Get decodes the value under key into out, which must be a non-nil pointer.
// It reports false, leaving out untouched, when the key is missing, blank or
// holds the literal "nil".
func (h Helper) Get(ctx context.Context, s kv.Store, key string, out interface{}) (bool, error) {
	if err := check(s, key); err != nil {
		return false, err
	}
	if rv := reflect.ValueOf(out); rv.Kind() != reflect.Ptr || rv.IsNil() {
		return false, invalid("target must be a non-nil pointer, got %T", out)
	}

	raw, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if absent(raw) {
		zerolog.Ctx(ctx).Trace().Str("key", key).Msg("get: absent")
		return false, nil
	}
	if err := h.codec().Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("%w: key %s: %w", ErrDeserialization, key, err)
	}
	return true, nil
}

// GetAs is Get returning a fresh *T, nil when the key is absent.
func GetAs[T any](ctx context.Context, h Helper, s kv.Store, key string) (*T, error) {
	var v T
	ok, err := h.Get(ctx, s, key, &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

// Delete removes key. A missing key is not an error.
func (h Helper) Delete(ctx context.Context, s kv.Store, key string) error {
	if err := check(s, key); err != nil {
		return err
	}
	return s.Del(ctx, key)
}

func (h Helper) Exists(ctx context.Context, s kv.Store, key string) (bool, error) {
	if err := check(s, key); err != nil {
		return false, err
	}
	return s.Exists(ctx, key)
}

// TTL returns the remaining seconds of key as the store reports them:
// -1 for no expiry, -2 for a missing key.
func (h Helper) TTL(ctx context.Context, s kv.Store, key string) (int64, error) {
	if err := check(s, key); err != nil {
		return 0, err
	}
	return s.TTL(ctx, key)
}

// PTTL is TTL in milliseconds.
func (h Helper) PTTL(ctx context.Context, s kv.Store, key string) (int64, error) {
	if err := check(s, key); err != nil {
		return 0, err
	}
	return s.PTTL(ctx, key)
}

// IncrBy adds amount to the integer under key, starting from 0 when absent.
func (h Helper) IncrBy(ctx context.Context, s kv.Store, key string, amount int64) (int64, error) {
	if err := check(s, key); err != nil {
		return 0, err
	}
	return s.IncrBy(ctx, key, amount)
}

func (h Helper) Incr(ctx context.Context, s kv.Store, key string) (int64, error) {
	return h.IncrBy(ctx, s, key, 1)
}

func (h Helper) DecrBy(ctx context.Context, s kv.Store, key string, amount int64) (int64, error) {
	return h.IncrBy(ctx, s, key, -amount)
}

func (h Helper) Decr(ctx context.Context, s kv.Store, key string) (int64, error) {
	return h.IncrBy(ctx, s, key, -1)
}

// IncrByFloat adds amount to the number under key, starting from 0 when absent.
func (h Helper) IncrByFloat(ctx context.Context, s kv.Store, key string, amount float64) (float64, error) {
	if err := check(s, key); err != nil {
		return 0, err
	}
	return s.IncrByFloat(ctx, key, amount)
}

func (h Helper) IncrFloat(ctx context.Context, s kv.Store, key string) (float64, error) {
	return h.IncrByFloat(ctx, s, key, 1)
}

func (h Helper) DecrByFloat(ctx context.Context, s kv.Store, key string, amount float64) (float64, error) {
	return h.IncrByFloat(ctx, s, key, -amount)
}

// DecrFloat subtracts 1.0.
func (h Helper) DecrFloat(ctx context.Context, s kv.Store, key string) (float64, error) {
	return h.IncrByFloat(ctx, s, key, -1)
}
