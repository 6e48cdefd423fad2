package intake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/config"
	"github.com/oslabbie/frigate-alerts/internal/nvr"
	"github.com/oslabbie/frigate-alerts/internal/schedule"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

type fakeFeed struct {
	batches [][]nvr.Event
	errs    []error
	calls   int
}

func (f *fakeFeed) Events(ctx context.Context) ([]nvr.Event, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.batches) {
		return f.batches[i], nil
	}
	return nil, nil
}

type fakeSink struct {
	got []nvr.Event
}

func (s *fakeSink) Enqueue(ev nvr.Event) bool {
	s.got = append(s.got, ev)
	return true
}

func testConfig() *config.Config {
	return &config.Config{
		Groups: map[string]config.GroupConfig{
			"ops": {ChatID: 100},
		},
		Cameras: map[string]config.CameraConfig{
			"porch": {Groups: []string{"ops"}},
		},
	}
}

func newTestPoller(t *testing.T, cfg *config.Config, feed Feed, sink Sink) *Poller {
	t.Helper()
	get := func() *config.Config { return cfg }
	p := NewPoller(Config{Interval: time.Minute}, feed, sink, schedule.NewResolver(get), get, nil, logx.Nop())
	p.now = func() time.Time { return time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC) }
	return p
}

func event(id string, start time.Time) nvr.Event {
	return nvr.Event{ID: id, Camera: "porch", Label: "person", StartTime: float64(start.Unix())}
}

func TestFirstCycleInitializesWatermarkWithoutDispatch(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{batches: [][]nvr.Event{
		{event("E2", now.Add(-time.Minute)), event("E1", now.Add(-2*time.Minute))},
	}}
	sink := &fakeSink{}
	p := newTestPoller(t, testConfig(), feed, sink)

	p.cycle(context.Background())

	if len(sink.got) != 0 {
		t.Fatalf("first cycle dispatched %d events, want 0", len(sink.got))
	}
	if p.mark.LastEventID != "E2" {
		t.Fatalf("watermark = %q, want E2", p.mark.LastEventID)
	}
	if want := now.Add(-cutoffWindow); !p.mark.Cutoff.Equal(want) {
		t.Fatalf("cutoff = %v, want %v", p.mark.Cutoff, want)
	}
}

func TestEmptyFeedLeavesWatermarkUnset(t *testing.T) {
	t.Parallel()

	feed := &fakeFeed{batches: [][]nvr.Event{{}}}
	sink := &fakeSink{}
	p := newTestPoller(t, testConfig(), feed, sink)

	p.cycle(context.Background())

	if p.mark.LastEventID != "" {
		t.Fatalf("watermark set to %q on empty feed", p.mark.LastEventID)
	}
}

func TestCycleStopsAtWatermark(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{batches: [][]nvr.Event{
		{event("E3", now.Add(-time.Minute))},
		{event("E5", now), event("E4", now.Add(-30*time.Second)), event("E3", now.Add(-time.Minute))},
	}}
	sink := &fakeSink{}
	p := newTestPoller(t, testConfig(), feed, sink)

	ctx := context.Background()
	p.cycle(ctx) // primes the watermark at E3
	p.cycle(ctx)

	if len(sink.got) != 2 || sink.got[0].ID != "E5" || sink.got[1].ID != "E4" {
		t.Fatalf("dispatched %v, want [E5 E4]", ids(sink.got))
	}
	if p.mark.LastEventID != "E5" {
		t.Fatalf("watermark = %q, want E5", p.mark.LastEventID)
	}
}

func TestFetchErrorSkipsCycleAndKeepsWatermark(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		batches: [][]nvr.Event{{event("E1", now)}, nil},
		errs:    []error{nil, errors.New("nvr unreachable")},
	}
	sink := &fakeSink{}
	p := newTestPoller(t, testConfig(), feed, sink)

	ctx := context.Background()
	p.cycle(ctx)
	p.cycle(ctx)

	if len(sink.got) != 0 {
		t.Fatalf("dispatched %v on failed cycle", ids(sink.got))
	}
	if p.mark.LastEventID != "E1" {
		t.Fatalf("watermark = %q after failed cycle, want E1", p.mark.LastEventID)
	}
}

func TestScreenDropsDisallowedLabel(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cam := cfg.Cameras["porch"]
	cam.Labels = []string{"person"}
	cfg.Cameras["porch"] = cam

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{batches: [][]nvr.Event{
		{event("E1", now.Add(-time.Minute))},
		{
			{ID: "E3", Camera: "porch", Label: "car", StartTime: float64(now.Unix())},
			{ID: "E2", Camera: "porch", Label: "person", StartTime: float64(now.Unix())},
			event("E1", now.Add(-time.Minute)),
		},
	}}
	sink := &fakeSink{}
	p := newTestPoller(t, cfg, feed, sink)

	ctx := context.Background()
	p.cycle(ctx)
	p.cycle(ctx)

	if len(sink.got) != 1 || sink.got[0].ID != "E2" {
		t.Fatalf("dispatched %v, want [E2]", ids(sink.got))
	}
}

func TestScreenDropsWhenNoRecipientInSchedule(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	// Night-only window; the fixed test clock is noon.
	cfg.Groups["ops"] = config.GroupConfig{
		ChatID:   100,
		Schedule: &config.WindowConfig{Start: "22:00", End: "06:00"},
	}

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{batches: [][]nvr.Event{
		{event("E1", now.Add(-time.Minute))},
		{event("E2", now), event("E1", now.Add(-time.Minute))},
	}}
	sink := &fakeSink{}
	p := newTestPoller(t, cfg, feed, sink)

	ctx := context.Background()
	p.cycle(ctx)
	p.cycle(ctx)

	if len(sink.got) != 0 {
		t.Fatalf("dispatched %v, want none outside the window", ids(sink.got))
	}
	if p.mark.LastEventID != "E2" {
		t.Fatalf("watermark = %q, want E2 (dropped events still advance it)", p.mark.LastEventID)
	}
}

func TestScreenDropsEventsOlderThanCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	feed := &fakeFeed{batches: [][]nvr.Event{
		{event("E1", now.Add(-time.Hour))},
		{event("E3", now), event("E2", now.Add(-time.Hour)), event("E1", now.Add(-time.Hour))},
	}}
	sink := &fakeSink{}
	p := newTestPoller(t, testConfig(), feed, sink)

	ctx := context.Background()
	p.cycle(ctx)
	p.cycle(ctx)

	if len(sink.got) != 1 || sink.got[0].ID != "E3" {
		t.Fatalf("dispatched %v, want [E3]", ids(sink.got))
	}
}

func ids(events []nvr.Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.ID
	}
	return out
}
