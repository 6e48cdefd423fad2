// Package media acquires the best obtainable attachment for an event via an
// ordered cascade of representations: clip, then snapshot, then thumbnail.
// Each kind gets its own bounded retry budget; only a fully exhausted budget
// advances the cascade.
package media

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/nvr"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

// Kind identifies one media representation, in decreasing richness.
type Kind string

const (
	KindClip      Kind = "clip"
	KindSnapshot  Kind = "snapshot"
	KindThumbnail Kind = "thumbnail"
)

// KindsFor returns the cascade order for one event. Events the NVR recorded
// no clip for start at the snapshot.
func KindsFor(ev nvr.Event) []Kind {
	if ev.HasClip {
		return []Kind{KindClip, KindSnapshot, KindThumbnail}
	}
	return []Kind{KindSnapshot, KindThumbnail}
}

// Filename names the attachment as delivered to chats.
func (k Kind) Filename(ev nvr.Event) string {
	if k == KindClip {
		return ev.ID + ".mp4"
	}
	return ev.ID + ".jpg"
}

// ErrExhausted marks a media kind whose whole retry budget was spent.
var ErrExhausted = errors.New("media retry budget exhausted")

// Source provides the three media representations. Implemented by nvr.Client.
type Source interface {
	Clip(ctx context.Context, camera string, start, end float64) ([]byte, error)
	Snapshot(ctx context.Context, eventID string) ([]byte, error)
	Thumbnail(ctx context.Context, eventID string) ([]byte, error)
}

type Config struct {
	// RetryAttempts per kind.
	RetryAttempts int
	// RetryBaseDelay: the wait before attempt k is RetryBaseDelay * k.
	RetryBaseDelay time.Duration
	// MinBytes below which a body is an error page, not media.
	MinBytes int
	// ClipWait before requesting a clip whose event has no end time yet.
	ClipWait time.Duration
	// AssumedClipDuration synthesizes the clip range end when the event
	// still has no end time after the wait. One constant for every clip path.
	AssumedClipDuration time.Duration
}

type Fetcher struct {
	src Source
	cfg Config
	log logx.Logger
}

func NewFetcher(src Source, cfg Config, log logx.Logger) *Fetcher {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 5
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = 3 * time.Second
	}
	if cfg.MinBytes <= 0 {
		cfg.MinBytes = 4096
	}
	if cfg.AssumedClipDuration <= 0 {
		cfg.AssumedClipDuration = 30 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Fetcher{src: src, cfg: cfg, log: log}
}

// Fetch retrieves one media kind for the event, retrying within the kind's
// budget. It returns ErrExhausted (wrapped) once the budget is spent.
func (f *Fetcher) Fetch(ctx context.Context, ev nvr.Event, kind Kind) ([]byte, error) {
	fetch, err := f.fetchFunc(ctx, ev, kind)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.RetryAttempts; attempt++ {
		if err := sleepCtx(ctx, f.cfg.RetryBaseDelay*time.Duration(attempt)); err != nil {
			return nil, err
		}

		body, err := fetch(ctx)
		if err == nil && len(body) < f.cfg.MinBytes {
			err = fmt.Errorf("undersized body (%d bytes, min %d)", len(body), f.cfg.MinBytes)
		}
		if err == nil {
			return body, nil
		}
		lastErr = err
		f.log.Debug("media fetch attempt failed",
			logx.String("event", ev.ID),
			logx.String("kind", string(kind)),
			logx.Int("attempt", attempt),
			logx.Err(err))
	}

	return nil, fmt.Errorf("%s for event %s: %w (last: %w)", kind, ev.ID, ErrExhausted, lastErr)
}

// fetchFunc binds the kind to a concrete request. The clip path resolves the
// time range first: when the event has no end time yet it waits ClipWait for
// the NVR to finish recording, then synthesizes end = start + the configured
// assumed duration if the feed value never arrived.
func (f *Fetcher) fetchFunc(ctx context.Context, ev nvr.Event, kind Kind) (func(context.Context) ([]byte, error), error) {
	switch kind {
	case KindClip:
		end := ev.EndTime
		if end == nil {
			if err := sleepCtx(ctx, f.cfg.ClipWait); err != nil {
				return nil, err
			}
			synth := ev.StartTime + f.cfg.AssumedClipDuration.Seconds()
			end = &synth
			f.log.Debug("clip end time synthesized",
				logx.String("event", ev.ID),
				logx.Duration("assumed", f.cfg.AssumedClipDuration))
		}
		endTS := *end
		return func(ctx context.Context) ([]byte, error) {
			return f.src.Clip(ctx, ev.Camera, ev.StartTime, endTS)
		}, nil
	case KindSnapshot:
		return func(ctx context.Context) ([]byte, error) {
			return f.src.Snapshot(ctx, ev.ID)
		}, nil
	case KindThumbnail:
		return func(ctx context.Context) ([]byte, error) {
			return f.src.Thumbnail(ctx, ev.ID)
		}, nil
	default:
		return nil, fmt.Errorf("unknown media kind %q", kind)
	}
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
