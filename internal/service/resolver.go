package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/models"
	"github.com/yyozen/linkgate/internal/repository"
	"github.com/yyozen/linkgate/pkg/cache"
	"github.com/yyozen/linkgate/pkg/metrics"
)

// ErrNotFound means the slug has no backing link.
var ErrNotFound = errors.New("link not found")

// negativeEntry marks a slug known not to exist, so repeated requests for
// nonexistent slugs do not hit the store on every lookup.
const negativeEntry = "__notfound__"

// Resolver provides cache-aside lookup of link metadata by slug.
type Resolver struct {
	store       repository.LinkStore
	cache       *cache.RedisCache
	positiveTTL time.Duration
	negativeTTL time.Duration
	logger      *zap.Logger
}

// NewResolver creates a Resolver. The negative TTL is deliberately shorter
// than the positive one so newly created links become visible quickly.
func NewResolver(store repository.LinkStore, c *cache.RedisCache, positiveTTL, negativeTTL time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		store:       store,
		cache:       c,
		positiveTTL: positiveTTL,
		negativeTTL: negativeTTL,
		logger:      logger,
	}
}

// Resolve returns the link for slug, or ErrNotFound. Cache entries are
// replaced wholesale, never mutated; cache failures fall through to the
// store, and cache population failures are logged and swallowed so
// resolution still succeeds from the source of truth.
func (s *Resolver) Resolve(ctx context.Context, slug string) (*models.CachedLink, error) {
	key := "link:" + slug

	raw, err := s.cache.GetString(ctx, key)
	switch {
	case err == nil:
		if raw == negativeEntry {
			metrics.CacheHits.WithLabelValues("negative").Inc()
			return nil, ErrNotFound
		}
		var link models.CachedLink
		if jerr := json.Unmarshal([]byte(raw), &link); jerr == nil {
			metrics.CacheHits.WithLabelValues("positive").Inc()
			return &link, nil
		}
		s.logger.Warn("corrupt link cache entry, falling back to store",
			zap.String("slug", slug))
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.CacheMisses.Inc()
	default:
		s.logger.Warn("link cache read failed, falling back to store",
			zap.String("slug", slug), zap.Error(err))
	}

	link, err := s.store.FindBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if link == nil {
		if cerr := s.cache.SetString(ctx, key, negativeEntry, s.negativeTTL); cerr != nil {
			s.logger.Warn("negative cache write failed", zap.String("slug", slug), zap.Error(cerr))
		}
		return nil, ErrNotFound
	}

	if cerr := s.cache.Set(ctx, key, link, s.positiveTTL); cerr != nil {
		s.logger.Warn("link cache write failed", zap.String("slug", slug), zap.Error(cerr))
	}
	return link, nil
}
