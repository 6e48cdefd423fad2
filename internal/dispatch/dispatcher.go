// Package dispatch delivers one event's alert to every eligible recipient.
//
// Events arrive from the intake loop on a bounded queue and are processed by
// a fixed worker pool, so a burst of detections can never fan out into an
// unbounded number of in-flight dispatches. Per event the flow is: resolve
// recipients at send time, walk the media cascade, fan out concurrently, and
// degrade to text when media is unobtainable or partially rejected.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/media"
	"github.com/oslabbie/frigate-alerts/internal/metrics"
	"github.com/oslabbie/frigate-alerts/internal/nvr"
	"github.com/oslabbie/frigate-alerts/internal/schedule"
	"github.com/oslabbie/frigate-alerts/internal/storage"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

// Messenger delivers formatted alerts to a chat. Implemented by the
// telegram adapter.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string) error
	SendDocument(ctx context.Context, chatID int64, payload []byte, filename, caption string) error
}

// Cascade produces one media kind for an event, retrying internally.
// Implemented by media.Fetcher.
type Cascade interface {
	Fetch(ctx context.Context, ev nvr.Event, kind media.Kind) ([]byte, error)
}

// Hook fires the optional per-event webhook.
type Hook interface {
	Fire(ctx context.Context, ev nvr.Event, groups []string)
}

// Outcome is the terminal state of one event's delivery.
type Outcome string

const (
	OutcomeDropped      Outcome = "dropped"
	OutcomeDelivered    Outcome = "delivered"
	OutcomePartial      Outcome = "partial"
	OutcomeTextFallback Outcome = "text_fallback"
)

type Config struct {
	Workers   int
	QueueSize int
}

type Dispatcher struct {
	cfg      Config
	resolver *schedule.Resolver
	cascade  Cascade
	msgr     Messenger
	hook     Hook          // nil when no webhook configured
	store    storage.Store // nil when history disabled
	met      *metrics.Metrics
	log      logx.Logger

	queue chan nvr.Event
	wg    sync.WaitGroup

	// now is a seam for schedule checks in tests.
	now func() time.Time
}

func New(cfg Config, resolver *schedule.Resolver, cascade Cascade, msgr Messenger, hook Hook, store storage.Store, met *metrics.Metrics, log logx.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{
		cfg:      cfg,
		resolver: resolver,
		cascade:  cascade,
		msgr:     msgr,
		hook:     hook,
		store:    store,
		met:      met,
		log:      log,
		queue:    make(chan nvr.Event, cfg.QueueSize),
		now:      time.Now,
	}
}

// Enqueue hands an event to the worker pool without blocking the caller.
// A full queue drops the event: the poll loop must never stall on dispatch.
func (d *Dispatcher) Enqueue(ev nvr.Event) bool {
	select {
	case d.queue <- ev:
		return true
	default:
		d.met.IncDropped(metrics.DropQueueFull)
		d.log.Warn("dispatch queue full, event dropped",
			logx.String("event", ev.ID),
			logx.String("camera", ev.Camera),
			logx.Int("queue_cap", cap(d.queue)))
		return false
	}
}

// Run processes queued events until ctx is done. In-flight dispatches run to
// completion; there is no per-event cancellation beyond shutdown.
func (d *Dispatcher) Run(ctx context.Context) error {
	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.worker(ctx)
		}()
	}
	<-ctx.Done()
	d.wg.Wait()
	return ctx.Err()
}

func (d *Dispatcher) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.process(ctx, ev)
		}
	}
}

// process runs one event through the delivery state machine:
//
//	Pending -> ScheduleCheck -> MediaCascade(kind...) ->
//	Delivered | Partial | TextFallback | Dropped
func (d *Dispatcher) process(ctx context.Context, ev nvr.Event) Outcome {
	now := d.now()

	if d.hook != nil {
		// The webhook reports the camera's full configured group list,
		// independent of schedule eligibility.
		d.hook.Fire(ctx, ev, d.resolver.GroupsFor(ev.Camera))
	}

	recipients := d.resolver.Recipients(ev.Camera, now)
	if len(recipients) == 0 {
		d.log.Info("event dropped at dispatch: no eligible recipients",
			logx.String("event", ev.ID), logx.String("camera", ev.Camera))
		d.met.IncDelivery(metrics.ResultDropped)
		d.record(ctx, ev, "", len(recipients), 0, OutcomeDropped)
		return OutcomeDropped
	}

	caption := alertCaption(ev)

	accepted := make(map[int64]bool, len(recipients))
	var lastKind media.Kind
	for _, kind := range media.KindsFor(ev) {
		payload, err := d.cascade.Fetch(ctx, ev, kind)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return OutcomePartial
			}
			d.met.IncMediaExhausted(string(kind))
			d.log.Warn("media kind exhausted, falling through",
				logx.String("event", ev.ID),
				logx.String("kind", string(kind)),
				logx.Err(err))
			continue
		}
		d.met.IncMediaFetched(string(kind))

		failed := d.sendMedia(ctx, recipients, payload, kind.Filename(ev), caption)
		if len(failed) == 0 {
			d.log.Info("alert delivered",
				logx.String("event", ev.ID),
				logx.String("camera", ev.Camera),
				logx.String("kind", string(kind)),
				logx.Int("recipients", len(recipients)))
			d.met.IncDelivery(metrics.ResultDelivered)
			d.record(ctx, ev, string(kind), len(recipients), 0, OutcomeDelivered)
			return OutcomeDelivered
		}
		// Some recipients got this kind, some didn't: advance to the next
		// kind. Already-delivered media is not retracted.
		lastKind = kind
		rejected := make(map[int64]bool, len(failed))
		for _, r := range failed {
			rejected[r.ChatID] = true
		}
		for _, r := range recipients {
			if !rejected[r.ChatID] {
				accepted[r.ChatID] = true
			}
		}
	}

	if lastKind == "" {
		// Fully degraded: no media representation could be obtained.
		d.sendText(ctx, recipients, caption+"\n(no media available)")
		d.met.IncDelivery(metrics.ResultTextFallback)
		d.record(ctx, ev, "none", len(recipients), 0, OutcomeTextFallback)
		return OutcomeTextFallback
	}

	// The cascade is over. A recipient that accepted any kind along the way
	// already holds media; only those that accepted none get a final
	// best-effort text so they at least learn of the event.
	var unserved []schedule.Recipient
	for _, r := range recipients {
		if !accepted[r.ChatID] {
			unserved = append(unserved, r)
		}
	}
	d.sendText(ctx, unserved, caption+"\n(media delivery failed)")
	d.log.Warn("alert partially delivered",
		logx.String("event", ev.ID),
		logx.String("camera", ev.Camera),
		logx.String("last_kind", string(lastKind)),
		logx.Int("recipients", len(recipients)),
		logx.Int("unserved", len(unserved)))
	d.met.IncDelivery(metrics.ResultPartial)
	d.record(ctx, ev, string(lastKind), len(recipients), len(unserved), OutcomePartial)
	return OutcomePartial
}

// sendMedia fans the attachment out to every recipient concurrently and
// returns the recipients whose delivery failed. One failure never halts the
// others.
func (d *Dispatcher) sendMedia(ctx context.Context, recipients []schedule.Recipient, payload []byte, filename, caption string) []schedule.Recipient {
	var (
		mu     sync.Mutex
		failed []schedule.Recipient
		wg     sync.WaitGroup
	)
	for _, r := range recipients {
		wg.Add(1)
		go func(r schedule.Recipient) {
			defer wg.Done()
			if err := d.msgr.SendDocument(ctx, r.ChatID, payload, filename, caption); err != nil {
				d.log.Warn("media delivery failed",
					logx.String("group", r.Group),
					logx.Int64("chat_id", r.ChatID),
					logx.Err(err))
				mu.Lock()
				failed = append(failed, r)
				mu.Unlock()
			}
		}(r)
	}
	wg.Wait()
	return failed
}

func (d *Dispatcher) sendText(ctx context.Context, recipients []schedule.Recipient, text string) {
	var wg sync.WaitGroup
	for _, r := range recipients {
		wg.Add(1)
		go func(r schedule.Recipient) {
			defer wg.Done()
			if err := d.msgr.SendText(ctx, r.ChatID, text); err != nil {
				d.log.Warn("text delivery failed",
					logx.String("group", r.Group),
					logx.Int64("chat_id", r.ChatID),
					logx.Err(err))
			}
		}(r)
	}
	wg.Wait()
}

func (d *Dispatcher) record(ctx context.Context, ev nvr.Event, kind string, recipients, failed int, outcome Outcome) {
	if d.store == nil {
		return
	}
	err := d.store.Append(ctx, storage.Record{
		At:         d.now(),
		EventID:    ev.ID,
		Camera:     ev.Camera,
		Label:      ev.Label,
		MediaKind:  kind,
		Recipients: recipients,
		Failed:     failed,
		Outcome:    string(outcome),
	})
	if err != nil {
		d.log.Warn("alert history append failed", logx.String("event", ev.ID), logx.Err(err))
	}
}

func alertCaption(ev nvr.Event) string {
	return fmt.Sprintf("%s: %s detected at %s",
		ev.Camera, ev.Label, ev.Start().Format("2006-01-02 15:04:05"))
}
