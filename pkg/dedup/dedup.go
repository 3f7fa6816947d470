// Package dedup provides the short-TTL idempotency guard for click
// recording, keyed per (link, client) pair.
package dedup

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yyozen/linkgate/pkg/cache"
)

// Deduplicator gates click recording on a presence-only marker with
// set-if-absent semantics. Only the caller that creates the marker records
// the click; everyone else within the TTL is a repeat.
type Deduplicator struct {
	cache  *cache.RedisCache
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a Deduplicator with the given marker TTL.
func New(c *cache.RedisCache, ttl time.Duration, logger *zap.Logger) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{cache: c, ttl: ttl, logger: logger}
}

// ShouldRecord reports whether this click is the first from the client for
// the link within the dedup window. On store error it returns true:
// over-counting beats losing all analytics while the store is down.
func (d *Deduplicator) ShouldRecord(ctx context.Context, linkID, clientHash string) bool {
	created, err := d.cache.SetIfAbsent(ctx, "dedup:"+linkID+":"+clientHash, d.ttl)
	if err != nil {
		d.logger.Warn("dedup store unavailable, recording anyway",
			zap.String("link_id", linkID), zap.Error(err))
		return true
	}
	return created
}
