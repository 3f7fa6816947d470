package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yyozen/linkgate/internal/models"
)

const (
	chromeUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"
	iphoneUA  = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_5 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.5 Mobile/15E148 Safari/604.1"
	androidUA = "Mozilla/5.0 (Linux; Android 14; Pixel 8) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Mobile Safari/537.36"
)

func newTestEngine(t *testing.T, store *fakeStore) *Engine {
	t.Helper()
	r, _ := newTestResolver(t, store)
	return NewEngine(r, "/not-found", "/expired", "/og", nil)
}

func strPtr(s string) *string { return &s }

func TestDecide_NotFound(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{}})

	d := e.Decide(context.Background(), Request{Slug: "zzz", UserAgent: chromeUA})
	assert.Equal(t, OutcomeNotFound, d.Outcome)
	assert.Equal(t, 302, d.Status)
	assert.Equal(t, "/not-found", d.Location)
	assert.Equal(t, "private, no-store", d.CacheControl)
	assert.False(t, d.RecordClick)
}

func TestDecide_StoreErrorDegradesToNotFound(t *testing.T) {
	e := newTestEngine(t, &fakeStore{err: errors.New("connection refused")})

	d := e.Decide(context.Background(), Request{Slug: "promo", UserAgent: chromeUA})
	assert.Equal(t, OutcomeNotFound, d.Outcome)
	assert.Equal(t, 302, d.Status)
}

func TestDecide_ExpiredDefaultURL(t *testing.T) {
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"old": {ID: "link-2", TargetURL: "https://x.com/old", ExpiresAt: &past},
	}})

	d := e.Decide(context.Background(), Request{Slug: "old", UserAgent: chromeUA})
	assert.Equal(t, OutcomeExpired, d.Outcome)
	assert.Equal(t, 302, d.Status)
	assert.Equal(t, "/expired", d.Location)
	assert.Equal(t, "private, no-store", d.CacheControl)
}

func TestDecide_ExpiredOverrideURL(t *testing.T) {
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"old": {
			ID:                 "link-2",
			TargetURL:          "https://x.com/old",
			ExpiresAt:          &past,
			ExpiredRedirectURL: strPtr("https://x.com/try-this-instead"),
		},
	}})

	d := e.Decide(context.Background(), Request{Slug: "old", UserAgent: chromeUA})
	assert.Equal(t, OutcomeExpired, d.Outcome)
	assert.Equal(t, "https://x.com/try-this-instead", d.Location)
}

func TestDecide_ExpiredRegardlessOfCacheState(t *testing.T) {
	past := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	store := &fakeStore{links: map[string]*models.CachedLink{
		"old": {ID: "link-2", TargetURL: "https://x.com/old", ExpiresAt: &past},
	}}
	e := newTestEngine(t, store)
	ctx := context.Background()

	// First decision reads from the store, second from the cache; both must
	// land on the expired outcome.
	d := e.Decide(ctx, Request{Slug: "old", UserAgent: chromeUA})
	require.Equal(t, OutcomeExpired, d.Outcome)

	d = e.Decide(ctx, Request{Slug: "old", UserAgent: chromeUA})
	assert.Equal(t, OutcomeExpired, d.Outcome)
	assert.EqualValues(t, 1, store.queries.Load())
}

func TestDecide_SocialPreviewBot(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"promo": {ID: "link-1", TargetURL: "https://x.com/a", IOSURL: strPtr("https://apps.apple.com/a")},
	}})

	d := e.Decide(context.Background(), Request{Slug: "promo", UserAgent: "Twitterbot/1.0"})
	assert.Equal(t, OutcomePreview, d.Outcome)
	// Preview crawlers get the OG proxy, never the real target or a device
	// override.
	assert.Equal(t, "/og/promo", d.Location)
	assert.Equal(t, "private, no-store", d.CacheControl)
	assert.Empty(t, d.ETag)
	assert.False(t, d.RecordClick)
}

func TestDecide_GenericBot(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"promo": testLink("link-1", "https://x.com/a"),
	}})

	d := e.Decide(context.Background(), Request{Slug: "promo", UserAgent: "curl/8.4.0"})
	assert.Equal(t, OutcomeBot, d.Outcome)
	assert.Equal(t, "https://x.com/a", d.Location)
	assert.Equal(t, "private, no-store", d.CacheControl)
	assert.False(t, d.RecordClick)
}

func TestDecide_DeviceTargeting(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"app": {
			ID:         "link-3",
			TargetURL:  "https://x.com/app",
			IOSURL:     strPtr("https://apps.apple.com/app"),
			AndroidURL: strPtr("https://play.google.com/app"),
		},
	}})
	ctx := context.Background()

	d := e.Decide(ctx, Request{Slug: "app", UserAgent: iphoneUA})
	assert.Equal(t, "https://apps.apple.com/app", d.Location)

	d = e.Decide(ctx, Request{Slug: "app", UserAgent: androidUA})
	assert.Equal(t, "https://play.google.com/app", d.Location)

	d = e.Decide(ctx, Request{Slug: "app", UserAgent: chromeUA})
	assert.Equal(t, "https://x.com/app", d.Location)
}

func TestDecide_HumanRedirectThenConditional(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"promo": testLink("link-1", "https://x.com/a"),
	}})
	ctx := context.Background()

	first := e.Decide(ctx, Request{Slug: "promo", UserAgent: chromeUA})
	assert.Equal(t, OutcomeRedirect, first.Outcome)
	assert.Equal(t, 302, first.Status)
	assert.Equal(t, "https://x.com/a", first.Location)
	assert.Equal(t, "private, no-cache", first.CacheControl)
	assert.True(t, first.RecordClick)
	require.NotEmpty(t, first.ETag)
	assert.Equal(t, `"`, first.ETag[:1])

	second := e.Decide(ctx, Request{Slug: "promo", UserAgent: chromeUA, IfNoneMatch: first.ETag})
	assert.Equal(t, OutcomeNotModified, second.Outcome)
	assert.Equal(t, 304, second.Status)
	assert.Empty(t, second.Location)
	assert.Equal(t, first.ETag, second.ETag)
	assert.False(t, second.RecordClick)
}

func TestDecide_ConditionalWithWeakValidator(t *testing.T) {
	e := newTestEngine(t, &fakeStore{links: map[string]*models.CachedLink{
		"promo": testLink("link-1", "https://x.com/a"),
	}})
	ctx := context.Background()

	first := e.Decide(ctx, Request{Slug: "promo", UserAgent: chromeUA})
	d := e.Decide(ctx, Request{Slug: "promo", UserAgent: chromeUA, IfNoneMatch: "W/" + first.ETag})
	assert.Equal(t, 304, d.Status)
}

func TestComputeETag(t *testing.T) {
	expiry := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

	a := ComputeETag("link-1", "https://x.com/a", nil)
	assert.Equal(t, a, ComputeETag("link-1", "https://x.com/a", nil))
	assert.NotEqual(t, a, ComputeETag("link-1", "https://x.com/b", nil))
	assert.NotEqual(t, a, ComputeETag("link-2", "https://x.com/a", nil))
	assert.NotEqual(t, a, ComputeETag("link-1", "https://x.com/a", &expiry))
}
