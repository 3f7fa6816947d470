package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/mileusna/useragent"
	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/models"
	"github.com/yyozen/linkgate/pkg/botdetect"
)

// Outcome labels a terminal redirect decision.
type Outcome string

const (
	OutcomeNotFound    Outcome = "not_found"
	OutcomeExpired     Outcome = "expired"
	OutcomePreview     Outcome = "preview_bot"
	OutcomeBot         Outcome = "bot"
	OutcomeNotModified Outcome = "not_modified"
	OutcomeRedirect    Outcome = "redirect"
)

// Cache-Control values per outcome class. Bots, expired, and not-found
// responses must never be cached; humans get a revalidate-on-use policy
// driven by the ETag.
const (
	cacheControlNoStore = "private, no-store"
	cacheControlNoCache = "private, no-cache"
)

// Request carries the request attributes the engine decides on.
type Request struct {
	Slug        string
	UserAgent   string
	IfNoneMatch string
}

// Decision is a terminal outcome: status, redirect target, and caching
// headers, plus whether the click pipeline should run afterwards.
type Decision struct {
	Outcome      Outcome
	Status       int
	Location     string // empty for 304
	ETag         string // quoted; empty for bot/expired/not-found outcomes
	CacheControl string
	RecordClick  bool
	LinkID       string
}

// Engine orchestrates resolution, expiry, device targeting, bot branching,
// and conditional-request handling into a single terminal decision per
// request. It never returns an error: any failure along the way downgrades
// to the not-found outcome, because redirect availability outranks
// precision.
type Engine struct {
	resolver    *Resolver
	notFoundURL string
	expiredURL  string
	ogProxyURL  string
	logger      *zap.Logger
	now         func() time.Time
}

// NewEngine creates an Engine with the configured fallback URLs.
func NewEngine(resolver *Resolver, notFoundURL, expiredURL, ogProxyURL string, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		resolver:    resolver,
		notFoundURL: notFoundURL,
		expiredURL:  expiredURL,
		ogProxyURL:  ogProxyURL,
		logger:      logger,
		now:         time.Now,
	}
}

// Decide resolves the slug and walks the outcome ladder: not-found, expired,
// social preview, generic bot, conditional human, human.
func (e *Engine) Decide(ctx context.Context, req Request) Decision {
	link, err := e.resolver.Resolve(ctx, req.Slug)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			e.logger.Warn("resolution failed, degrading to not found",
				zap.String("slug", req.Slug), zap.Error(err))
		}
		return Decision{
			Outcome:      OutcomeNotFound,
			Status:       302,
			Location:     e.notFoundURL,
			CacheControl: cacheControlNoStore,
		}
	}

	if link.Expired(e.now()) {
		location := e.expiredURL
		if link.ExpiredRedirectURL != nil && *link.ExpiredRedirectURL != "" {
			location = *link.ExpiredRedirectURL
		}
		return Decision{
			Outcome:      OutcomeExpired,
			Status:       302,
			Location:     location,
			CacheControl: cacheControlNoStore,
			LinkID:       link.ID,
		}
	}

	// Preview crawlers are branched before generic bots and humans: they
	// must receive preview content, never the real target or a
	// device-specific URL.
	kind := botdetect.Classify(req.UserAgent)
	if kind == botdetect.SocialPreview {
		return Decision{
			Outcome:      OutcomePreview,
			Status:       302,
			Location:     e.ogProxyURL + "/" + req.Slug,
			CacheControl: cacheControlNoStore,
			LinkID:       link.ID,
		}
	}

	target := resolveTarget(link, req.UserAgent)

	if kind == botdetect.GenericBot {
		return Decision{
			Outcome:      OutcomeBot,
			Status:       302,
			Location:     target,
			CacheControl: cacheControlNoStore,
			LinkID:       link.ID,
		}
	}

	etag := ComputeETag(link.ID, target, link.ExpiresAt)
	if req.IfNoneMatch != "" && etagMatches(req.IfNoneMatch, etag) {
		return Decision{
			Outcome:      OutcomeNotModified,
			Status:       304,
			ETag:         `"` + etag + `"`,
			CacheControl: cacheControlNoCache,
			LinkID:       link.ID,
		}
	}

	return Decision{
		Outcome:      OutcomeRedirect,
		Status:       302,
		Location:     target,
		ETag:         `"` + etag + `"`,
		CacheControl: cacheControlNoCache,
		RecordClick:  true,
		LinkID:       link.ID,
	}
}

// resolveTarget applies device targeting: a device-specific override URL,
// when present, replaces the generic target for that device class only.
func resolveTarget(link *models.CachedLink, ua string) string {
	parsed := useragent.Parse(ua)
	switch {
	case parsed.IsIOS() && link.IOSURL != nil && *link.IOSURL != "":
		return *link.IOSURL
	case parsed.IsAndroid() && link.AndroidURL != nil && *link.AndroidURL != "":
		return *link.AndroidURL
	default:
		return link.TargetURL
	}
}

// ComputeETag derives the deterministic validator for a resolved link: a
// truncated digest of (linkID, resolved target URL, expiresAt). Stable
// across calls, changes whenever any input changes.
func ComputeETag(linkID, targetURL string, expiresAt *time.Time) string {
	expiry := ""
	if expiresAt != nil {
		expiry = expiresAt.UTC().Format(time.RFC3339)
	}
	sum := sha256.Sum256([]byte(linkID + "|" + targetURL + "|" + expiry))
	return hex.EncodeToString(sum[:8])
}

// etagMatches checks a raw If-None-Match header value against the computed
// tag, tolerating quotes, weak validators, and comma-separated lists.
func etagMatches(ifNoneMatch, etag string) bool {
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		candidate = strings.TrimPrefix(candidate, "W/")
		candidate = strings.Trim(candidate, `"`)
		if candidate == etag || candidate == "*" {
			return true
		}
	}
	return false
}
