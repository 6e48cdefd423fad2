// Package intake drives the fixed-interval event feed poll: deduplicate
// against the watermark, screen labels/schedules/staleness, and hand
// survivors to the dispatcher without ever waiting on a dispatch.
package intake

import (
	"context"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/config"
	"github.com/oslabbie/frigate-alerts/internal/metrics"
	"github.com/oslabbie/frigate-alerts/internal/nvr"
	"github.com/oslabbie/frigate-alerts/internal/schedule"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

// Feed lists events newest first. Implemented by nvr.Client.
type Feed interface {
	Events(ctx context.Context) ([]nvr.Event, error)
}

// Sink accepts a screened event for processing. Implemented by the
// dispatcher; must not block.
type Sink interface {
	Enqueue(ev nvr.Event) bool
}

// Watermark bounds what counts as "new" in the next cycle. Owned solely by
// the poll loop: it is rewritten once per cycle and read by no one else.
type Watermark struct {
	LastEventID string
	Cutoff      time.Time
}

// cutoffWindow is how far behind "now" the rolling staleness cutoff trails.
const cutoffWindow = 10 * time.Minute

type Config struct {
	// Interval between poll cycles.
	Interval time.Duration
	// Grace is how long a non-empty fetch waits before scanning, so the NVR
	// can finalize in-progress clips.
	Grace time.Duration
}

type Poller struct {
	cfg      Config
	feed     Feed
	sink     Sink
	resolver *schedule.Resolver
	conf     func() *config.Config
	met      *metrics.Metrics
	log      logx.Logger

	mark Watermark

	now func() time.Time
}

func NewPoller(cfg Config, feed Feed, sink Sink, resolver *schedule.Resolver, conf func() *config.Config, met *metrics.Metrics, log logx.Logger) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Poller{
		cfg:      cfg,
		feed:     feed,
		sink:     sink,
		resolver: resolver,
		conf:     conf,
		met:      met,
		log:      log,
		now:      time.Now,
	}
}

// Run polls until ctx is done. The first cycle runs immediately.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.cycle(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			p.cycle(ctx)
		}
	}
}

// cycle runs one poll. Any fetch failure ends the cycle with the watermark
// unchanged; the next tick retries. Never fatal.
func (p *Poller) cycle(ctx context.Context) {
	events, err := p.feed.Events(ctx)
	if err != nil {
		p.met.IncPollError()
		p.log.Warn("event feed fetch failed, cycle skipped", logx.Err(err))
		return
	}
	if len(events) == 0 {
		return
	}

	if p.mark.LastEventID == "" {
		// First cycle after start: record the boundary, dispatch nothing.
		// This prevents a backlog flood on restart.
		p.mark = Watermark{LastEventID: events[0].ID, Cutoff: p.now().Add(-cutoffWindow)}
		p.log.Info("watermark initialized",
			logx.String("last_event", p.mark.LastEventID),
			logx.Int("events_skipped", len(events)))
		return
	}

	// Let the NVR finish clips that were still recording at fetch time.
	if err := sleepCtx(ctx, p.cfg.Grace); err != nil {
		return
	}

	for _, ev := range events {
		if ev.ID == p.mark.LastEventID {
			// Everything past this point was handled in a prior cycle.
			break
		}
		p.screen(ev)
	}

	p.mark = Watermark{LastEventID: events[0].ID, Cutoff: p.now().Add(-cutoffWindow)}
}

// screen applies the per-event filters in order: label allow-list, schedule
// eligibility, staleness. Survivors go to the sink.
func (p *Poller) screen(ev nvr.Event) {
	p.met.IncSeen()

	cam := p.conf().Cameras[ev.Camera]
	if !cam.AllowsLabel(ev.Label) {
		p.met.IncDropped(metrics.DropLabel)
		p.log.Debug("event dropped: label not allowed",
			logx.String("event", ev.ID),
			logx.String("camera", ev.Camera),
			logx.String("label", ev.Label))
		return
	}

	if len(p.resolver.Recipients(ev.Camera, p.now())) == 0 {
		p.met.IncDropped(metrics.DropSchedule)
		p.log.Debug("event dropped: no recipient in schedule",
			logx.String("event", ev.ID),
			logx.String("camera", ev.Camera))
		return
	}

	if !p.mark.Cutoff.IsZero() && ev.Start().Before(p.mark.Cutoff) {
		p.met.IncDropped(metrics.DropStale)
		p.log.Debug("event dropped: older than cutoff",
			logx.String("event", ev.ID),
			logx.Time("start", ev.Start()),
			logx.Time("cutoff", p.mark.Cutoff))
		return
	}

	p.sink.Enqueue(ev)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
