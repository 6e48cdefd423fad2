package media

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/nvr"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

func testLogger() logx.Logger { return logx.Nop() }

type fakeSource struct {
	clipCalls      int
	snapshotCalls  int
	thumbnailCalls int

	clipStart, clipEnd float64

	clip      func(call int) ([]byte, error)
	snapshot  func(call int) ([]byte, error)
	thumbnail func(call int) ([]byte, error)
}

func (f *fakeSource) Clip(_ context.Context, _ string, start, end float64) ([]byte, error) {
	f.clipCalls++
	f.clipStart, f.clipEnd = start, end
	if f.clip == nil {
		return nil, errors.New("no clip")
	}
	return f.clip(f.clipCalls)
}

func (f *fakeSource) Snapshot(context.Context, string) ([]byte, error) {
	f.snapshotCalls++
	if f.snapshot == nil {
		return nil, errors.New("no snapshot")
	}
	return f.snapshot(f.snapshotCalls)
}

func (f *fakeSource) Thumbnail(context.Context, string) ([]byte, error) {
	f.thumbnailCalls++
	if f.thumbnail == nil {
		return nil, errors.New("no thumbnail")
	}
	return f.thumbnail(f.thumbnailCalls)
}

func testConfig() Config {
	return Config{
		RetryAttempts:       3,
		RetryBaseDelay:      time.Millisecond,
		MinBytes:            10,
		ClipWait:            time.Millisecond,
		AssumedClipDuration: 30 * time.Second,
	}
}

func endPtr(f float64) *float64 { return &f }

func bigBody() []byte { return make([]byte, 64) }

func TestFetchExhaustsRetryBudget(t *testing.T) {
	t.Parallel()
	src := &fakeSource{}
	f := NewFetcher(src, testConfig(), testLogger())

	ev := nvr.Event{ID: "e1", Camera: "porch", StartTime: 100, EndTime: endPtr(130), HasClip: true}
	_, err := f.Fetch(context.Background(), ev, KindClip)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted", err)
	}
	if src.clipCalls != 3 {
		t.Fatalf("clip attempts = %d, want 3", src.clipCalls)
	}
}

func TestFetchUndersizedBodyIsFailure(t *testing.T) {
	t.Parallel()
	src := &fakeSource{snapshot: func(int) ([]byte, error) { return []byte("tiny"), nil }}
	f := NewFetcher(src, testConfig(), testLogger())

	_, err := f.Fetch(context.Background(), nvr.Event{ID: "e2"}, KindSnapshot)
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("err = %v, want ErrExhausted for undersized bodies", err)
	}
	if src.snapshotCalls != 3 {
		t.Fatalf("snapshot attempts = %d, want 3 (undersized counts against the budget)", src.snapshotCalls)
	}
}

func TestFetchSucceedsWithinBudget(t *testing.T) {
	t.Parallel()
	src := &fakeSource{snapshot: func(call int) ([]byte, error) {
		if call < 3 {
			return nil, errors.New("boom")
		}
		return bigBody(), nil
	}}
	f := NewFetcher(src, testConfig(), testLogger())

	body, err := f.Fetch(context.Background(), nvr.Event{ID: "e3"}, KindSnapshot)
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if len(body) != 64 {
		t.Fatalf("body length = %d, want 64", len(body))
	}
	if src.snapshotCalls != 3 {
		t.Fatalf("snapshot attempts = %d, want 3", src.snapshotCalls)
	}
}

func TestClipSynthesizesEndTime(t *testing.T) {
	t.Parallel()
	src := &fakeSource{clip: func(int) ([]byte, error) { return bigBody(), nil }}
	f := NewFetcher(src, testConfig(), testLogger())

	ev := nvr.Event{ID: "e4", Camera: "porch", StartTime: 1000, HasClip: true}
	if _, err := f.Fetch(context.Background(), ev, KindClip); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if src.clipStart != 1000 {
		t.Fatalf("clip start = %v, want 1000", src.clipStart)
	}
	if src.clipEnd != 1030 {
		t.Fatalf("clip end = %v, want start + assumed duration (1030)", src.clipEnd)
	}
}

func TestClipUsesFeedEndTime(t *testing.T) {
	t.Parallel()
	src := &fakeSource{clip: func(int) ([]byte, error) { return bigBody(), nil }}
	f := NewFetcher(src, testConfig(), testLogger())

	ev := nvr.Event{ID: "e5", Camera: "porch", StartTime: 1000, EndTime: endPtr(1012.5), HasClip: true}
	if _, err := f.Fetch(context.Background(), ev, KindClip); err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if src.clipEnd != 1012.5 {
		t.Fatalf("clip end = %v, want feed end time 1012.5", src.clipEnd)
	}
}

func TestKindsForOrdering(t *testing.T) {
	t.Parallel()
	withClip := KindsFor(nvr.Event{HasClip: true})
	if len(withClip) != 3 || withClip[0] != KindClip || withClip[1] != KindSnapshot || withClip[2] != KindThumbnail {
		t.Fatalf("KindsFor(has_clip) = %v", withClip)
	}
	noClip := KindsFor(nvr.Event{HasClip: false})
	if len(noClip) != 2 || noClip[0] != KindSnapshot {
		t.Fatalf("KindsFor(no clip) = %v", noClip)
	}
}
