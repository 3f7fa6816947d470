// Package ratelimit provides a sliding-window request throttle backed by the
// shared Redis store, keyed by client identity.
package ratelimit

import (
	"context"
	"math/rand"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// Result is the outcome of a rate limit check. Its fields map directly onto
// the standard X-RateLimit-* response headers.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	Reset      time.Time
	RetryAfter time.Duration
}

// SlidingWindowLimiter counts requests per identity in a Redis sorted set of
// timestamped tokens. Each check prunes tokens older than the window, counts
// what remains, inserts a new token, and refreshes the set's expiry, so idle
// identities age out of Redis on their own.
//
// The limiter fails open: if Redis is unreachable the check succeeds, because
// redirect availability outranks strict enforcement.
type SlidingWindowLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
	logger *zap.Logger
}

// NewSlidingWindowLimiter creates a limiter allowing `limit` requests per
// `window` for each key.
func NewSlidingWindowLimiter(client *redis.Client, limit int, window time.Duration, logger *zap.Logger) *SlidingWindowLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlidingWindowLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "ratelimit:",
		logger: logger,
	}
}

// Allow checks and records one request for the given identity key. The
// request is allowed when the token count before insertion is below the
// limit. The new token is inserted either way, so clients hammering past the
// limit keep their window full.
func (l *SlidingWindowLimiter) Allow(ctx context.Context, key string) *Result {
	now := time.Now()
	rkey := l.prefix + key
	windowStart := now.Add(-l.window)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, rkey, "-inf", strconv.FormatInt(windowStart.UnixNano(), 10))
	countCmd := pipe.ZCard(ctx, rkey)
	member := strconv.FormatInt(now.UnixNano(), 10) + "-" + strconv.FormatInt(rand.Int63(), 36)
	pipe.ZAdd(ctx, rkey, &redis.Z{Score: float64(now.UnixNano()), Member: member})
	pipe.Expire(ctx, rkey, l.window)

	if _, err := pipe.Exec(ctx); err != nil {
		l.logger.Warn("rate limit store unavailable, failing open",
			zap.String("key", key), zap.Error(err))
		return &Result{Allowed: true, Limit: l.limit, Remaining: l.limit, Reset: now.Add(l.window)}
	}

	count := int(countCmd.Val())
	res := &Result{
		Allowed:   count < l.limit,
		Limit:     l.limit,
		Remaining: l.limit - count - 1,
		Reset:     now.Add(l.window),
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = l.retryAfter(ctx, rkey, now)
	}
	return res
}

// retryAfter estimates how long until the oldest token leaves the window.
func (l *SlidingWindowLimiter) retryAfter(ctx context.Context, rkey string, now time.Time) time.Duration {
	oldest, err := l.client.ZRangeWithScores(ctx, rkey, 0, 0).Result()
	if err != nil || len(oldest) == 0 {
		return l.window
	}
	retry := time.Unix(0, int64(oldest[0].Score)).Add(l.window).Sub(now)
	if retry < 0 {
		retry = 0
	}
	return retry
}
