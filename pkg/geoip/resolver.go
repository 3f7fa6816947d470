// Package geoip resolves client IPs to coarse geo fields for click
// analytics. The binary database is fetched lazily from a remote source on
// first use; until that succeeds every lookup degrades to an empty record.
package geoip

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/oschwald/maxminddb-golang"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/yyozen/linkgate/internal/models"
	"github.com/yyozen/linkgate/pkg/cache"
)

// Config holds resolver settings.
type Config struct {
	// DatabaseURL is the remote location of the mmdb payload. Empty disables
	// lookups entirely.
	DatabaseURL string
	// MinSizeBytes rejects truncated downloads before handing them to the
	// mmdb reader.
	MinSizeBytes int64
	// FetchTimeout bounds the database download.
	FetchTimeout time.Duration
	// RetryCooldown is the minimum delay between failed load attempts.
	RetryCooldown time.Duration
	// CacheTTL is how long a per-IP record lives in the shared cache.
	CacheTTL time.Duration
	// StaleThreshold is the age past which a cached record is served stale
	// while a background refresh runs.
	StaleThreshold time.Duration
}

// cachedGeo is the cache entry format: the record plus when it was derived,
// so staleness can be judged independently of the key's TTL.
type cachedGeo struct {
	Geo      models.GeoRecord `json:"geo"`
	CachedAt time.Time        `json:"cached_at"`
}

// Resolver owns the process-local database reader and the per-IP cache
// wrapper. The reader is loaded once and shared read-only across lookups;
// only the load phase is coordinated (single-flight plus a failure cooldown
// so an unreachable source is not hammered).
type Resolver struct {
	cfg        Config
	httpClient *http.Client
	cache      *cache.RedisCache
	logger     *zap.Logger

	group       singleflight.Group
	mu          sync.RWMutex
	reader      *maxminddb.Reader
	lastAttempt time.Time
}

// New creates a Resolver. The reader is not loaded until the first lookup.
func New(cfg Config, c *cache.RedisCache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 30 * time.Second
	}
	return &Resolver{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
		cache:      c,
		logger:     logger,
	}
}

// Lookup resolves ip to a GeoRecord. It never returns an error: loopback,
// private, or unparseable IPs short-circuit to the zero record, and any
// infrastructure failure degrades the same way.
func (r *Resolver) Lookup(ctx context.Context, ip string) models.GeoRecord {
	parsed := net.ParseIP(ip)
	if parsed == nil || parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() {
		return models.GeoRecord{}
	}

	key := "geo:" + ip
	var entry cachedGeo
	err := r.cache.Get(ctx, key, &entry)
	if err == nil {
		if time.Since(entry.CachedAt) > r.cfg.StaleThreshold {
			go r.refresh(ip)
		}
		return entry.Geo
	}
	if err != cache.ErrCacheMiss {
		r.logger.Debug("geo cache read failed", zap.Error(err))
	}

	geo, ok := r.lookupDB(ctx, parsed)
	if !ok {
		return models.GeoRecord{}
	}
	r.store(ctx, key, geo)
	return geo
}

// refresh re-derives the record for ip and overwrites the cache entry.
// It runs detached from any request; failures are logged and the stale
// value already returned stands.
func (r *Resolver) refresh(ip string) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.FetchTimeout)
	defer cancel()

	parsed := net.ParseIP(ip)
	if parsed == nil {
		return
	}
	geo, ok := r.lookupDB(ctx, parsed)
	if !ok {
		r.logger.Debug("geo refresh produced no record", zap.String("ip", ip))
		return
	}
	r.store(ctx, "geo:"+ip, geo)
}

func (r *Resolver) store(ctx context.Context, key string, geo models.GeoRecord) {
	entry := cachedGeo{Geo: geo, CachedAt: time.Now().UTC()}
	if err := r.cache.Set(ctx, key, entry, r.cfg.CacheTTL); err != nil {
		r.logger.Warn("geo cache write failed", zap.Error(err))
	}
}

// lookupDB consults the loaded reader, loading it first if needed.
func (r *Resolver) lookupDB(ctx context.Context, ip net.IP) (models.GeoRecord, bool) {
	reader := r.currentReader()
	if reader == nil {
		reader = r.load(ctx)
		if reader == nil {
			return models.GeoRecord{}, false
		}
	}

	var rec struct {
		City struct {
			Names map[string]string `maxminddb:"names"`
		} `maxminddb:"city"`
		Subdivisions []struct {
			IsoCode string `maxminddb:"iso_code"`
		} `maxminddb:"subdivisions"`
		Country struct {
			IsoCode string `maxminddb:"iso_code"`
		} `maxminddb:"country"`
	}
	if err := reader.Lookup(ip, &rec); err != nil {
		r.logger.Debug("geo lookup failed", zap.Error(err))
		return models.GeoRecord{}, false
	}

	geo := models.GeoRecord{
		Country: rec.Country.IsoCode,
		City:    rec.City.Names["en"],
	}
	if len(rec.Subdivisions) > 0 {
		geo.Region = rec.Subdivisions[0].IsoCode
	}
	return geo, true
}

func (r *Resolver) currentReader() *maxminddb.Reader {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reader
}

// load downloads and opens the database, sharing one in-flight attempt
// across concurrent first-use callers. Returns nil when the resolver stays
// unloaded (disabled, cooling down after a failure, or the attempt failed).
func (r *Resolver) load(ctx context.Context) *maxminddb.Reader {
	if r.cfg.DatabaseURL == "" {
		return nil
	}

	v, _, _ := r.group.Do("load", func() (interface{}, error) {
		if reader := r.currentReader(); reader != nil {
			return reader, nil
		}

		r.mu.Lock()
		if !r.lastAttempt.IsZero() && time.Since(r.lastAttempt) < r.cfg.RetryCooldown {
			r.mu.Unlock()
			return (*maxminddb.Reader)(nil), nil
		}
		r.lastAttempt = time.Now()
		r.mu.Unlock()

		reader, err := r.fetch(ctx)
		if err != nil {
			r.logger.Warn("geoip database load failed", zap.Error(err))
			return (*maxminddb.Reader)(nil), nil
		}

		r.mu.Lock()
		r.reader = reader
		r.mu.Unlock()
		r.logger.Info("geoip database loaded",
			zap.String("url", r.cfg.DatabaseURL))
		return reader, nil
	})
	return v.(*maxminddb.Reader)
}

func (r *Resolver) fetch(ctx context.Context) (*maxminddb.Reader, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d fetching geoip database", resp.StatusCode)
	}
	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) < r.cfg.MinSizeBytes {
		return nil, fmt.Errorf("geoip payload too small: %d bytes (min %d)", len(buf), r.cfg.MinSizeBytes)
	}
	return maxminddb.FromBytes(buf)
}

// Close releases the database reader, if loaded.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reader == nil {
		return nil
	}
	err := r.reader.Close()
	r.reader = nil
	return err
}
