package accessor

import (
	"context"
	"time"

	"github.com/qianbin/typedkv/kv"
)

// Unit selects the expiry granularity, and with it the store primitive.
type Unit uint8

const (
	Seconds Unit = iota
	Milliseconds
)

func (u Unit) String() string {
	if u == Milliseconds {
		return "ms"
	}
	return "s"
}

// ParseUnit accepts "s", "sec", "seconds", "ms", "millis" and "milliseconds".
// An empty string means Seconds.
func ParseUnit(s string) (Unit, bool) {
	switch s {
	case "", "s", "sec", "seconds":
		return Seconds, true
	case "ms", "millis", "milliseconds":
		return Milliseconds, true
	}
	return Seconds, false
}

// count truncates d to whole units.
func (u Unit) count(d time.Duration) int64 {
	if u == Milliseconds {
		return int64(d / time.Millisecond)
	}
	return int64(d / time.Second)
}

func (u Unit) duration(n int64) time.Duration {
	if u == Milliseconds {
		return time.Duration(n) * time.Millisecond
	}
	return time.Duration(n) * time.Second
}

// ttl validates d at granularity u and returns it in units.
func (u Unit) ttl(d time.Duration) (int64, error) {
	n := u.count(d)
	if n <= 0 {
		return 0, invalid("ttl %v is below one %s", d, u)
	}
	return n, nil
}

// expireWith applies n units of expiry to key with the primitive matching u.
func (u Unit) expireWith(ctx context.Context, s kv.Store, key string, n int64) (bool, error) {
	if u == Milliseconds {
		return s.PExpire(ctx, key, n)
	}
	return s.Expire(ctx, key, n)
}
