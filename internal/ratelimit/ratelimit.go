// Package ratelimit counts requests per client in fixed one-minute windows,
// in Redis when available and in process memory otherwise.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"lectern/internal/pkg/logger"
)

const keyPrefix = "lectern:ratelimit"

// Limiter allows up to perMinute calls per key in each minute window.
type Limiter struct {
	rdb       redis.Cmdable
	perMinute int
	name      string
	log       *logger.Logger
	now       func() time.Time

	mu     sync.Mutex
	window int64
	counts map[string]int
}

type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New returns a limiter for the named route. rdb may be nil.
func New(rdb redis.Cmdable, name string, perMinute int, log *logger.Logger, opts ...Option) *Limiter {
	if log == nil {
		log = logger.Discard()
	}
	l := &Limiter{
		rdb:       rdb,
		perMinute: perMinute,
		name:      name,
		log:       log.WithComponent("ratelimit"),
		now:       time.Now,
		counts:    map[string]int{},
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Allow counts one call for key and reports whether it fits the budget.
// Redis failures fall back to the in-memory counter.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	if l.perMinute <= 0 {
		return true, nil
	}
	window := l.now().Unix() / 60

	if l.rdb != nil {
		n, err := l.incr(ctx, key, window)
		if err == nil {
			return n <= int64(l.perMinute), nil
		}
		l.log.FromContext(ctx).Warn("redis rate limit failed, using memory", "error", err)
	}
	return l.allowInMem(key, window), nil
}

func (l *Limiter) incr(ctx context.Context, key string, window int64) (int64, error) {
	k := fmt.Sprintf("%s:%s:%s:%d", keyPrefix, l.name, key, window)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		_ = l.rdb.Expire(ctx, k, 65*time.Second).Err()
	}
	return n, nil
}

func (l *Limiter) allowInMem(key string, window int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if window != l.window {
		l.window = window
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= l.perMinute
}
