package clicks

import (
	"context"
	"sync"
	"time"

	"github.com/mileusna/useragent"
	"go.uber.org/zap"

	"github.com/yyozen/linkgate/internal/models"
	"github.com/yyozen/linkgate/pkg/clienthash"
	"github.com/yyozen/linkgate/pkg/dedup"
	"github.com/yyozen/linkgate/pkg/geoip"
	"github.com/yyozen/linkgate/pkg/metrics"
)

// Click is the raw material for one click event, captured from the request
// before the response is sent.
type Click struct {
	LinkID    string
	IP        string
	UserAgent string
	Referrer  string
}

// Recorder runs the detached click pipeline: dedup, geo enrichment,
// user-agent parsing, and emission. Record returns immediately; the work
// happens on its own goroutine with its own context, and failures there are
// logged, never propagated.
type Recorder struct {
	dedup   *dedup.Deduplicator
	geo     *geoip.Resolver
	emitter *Emitter
	hasher  *clienthash.Hasher
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// NewRecorder wires the pipeline. timeout bounds each click's detached work.
func NewRecorder(d *dedup.Deduplicator, g *geoip.Resolver, e *Emitter, h *clienthash.Hasher, timeout time.Duration, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Recorder{dedup: d, geo: g, emitter: e, hasher: h, timeout: timeout, logger: logger}
}

// Record dispatches click processing and returns without waiting for it.
func (r *Recorder) Record(click Click) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.logger.Error("click recording panicked", zap.Any("panic", p))
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.record(ctx, click)
	}()
}

func (r *Recorder) record(ctx context.Context, click Click) {
	clientHash := r.hasher.Hash(click.IP)

	if !r.dedup.ShouldRecord(ctx, click.LinkID, clientHash) {
		metrics.ClicksDeduplicated.Inc()
		return
	}

	geo := r.geo.Lookup(ctx, click.IP)
	ua := useragent.Parse(click.UserAgent)

	event := models.ClickEvent{
		LinkID:       click.LinkID,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
		Referrer:     click.Referrer,
		UserAgent:    click.UserAgent,
		AnonymizedIP: clientHash,
		Country:      geo.Country,
		Region:       geo.Region,
		City:         geo.City,
		BrowserName:  ua.Name,
		DeviceType:   deviceType(ua),
	}
	r.emitter.Emit(ctx, event)
	metrics.ClicksRecorded.Inc()
}

func deviceType(ua useragent.UserAgent) string {
	switch {
	case ua.Bot:
		return "bot"
	case ua.Mobile:
		return "mobile"
	case ua.Tablet:
		return "tablet"
	case ua.Desktop:
		return "desktop"
	default:
		return "unknown"
	}
}

// Close waits for in-flight click processing to drain, bounded by ctx.
// Already-dispatched sends are not cancelled; the bound only caps how long
// shutdown waits for them.
func (r *Recorder) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
