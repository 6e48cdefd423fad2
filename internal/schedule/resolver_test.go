package schedule

import (
	"testing"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/config"
)

func snap(cfg *config.Config) func() *config.Config {
	return func() *config.Config { return cfg }
}

// at builds a time on a fixed date with the given local time of day.
func at(hh, mm int) time.Time {
	return time.Date(2025, 6, 15, hh, mm, 0, 0, time.Local)
}

func boolPtr(b bool) *bool { return &b }

func TestResolveFieldWisePrecedence(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Groups: map[string]config.GroupConfig{
			"sec": {ChatID: 1},
		},
		Cameras: map[string]config.CameraConfig{
			"porch": {
				Schedule: &config.WindowConfig{End: "07:00"},
				GroupSchedules: map[string]config.OverrideConfig{
					"sec": {Start: "20:00"},
				},
			},
		},
	}
	r := NewResolver(snap(cfg))

	w := r.Resolve("porch", "sec")
	if w.Start != 20*60 {
		t.Fatalf("Start = %d, want %d (20:00 from group override)", w.Start, 20*60)
	}
	if w.End != 7*60 {
		t.Fatalf("End = %d, want %d (07:00 from camera schedule)", w.End, 7*60)
	}
	if w.AlwaysSend {
		t.Fatal("AlwaysSend should default to false")
	}
}

func TestResolveAnchorScansLowerLayers(t *testing.T) {
	t.Parallel()
	// Camera defines only always_send: it anchors the resolution, but the
	// window fields still come from the group layer below it.
	cfg := &config.Config{
		Groups: map[string]config.GroupConfig{
			"family": {ChatID: 1, Schedule: &config.WindowConfig{Start: "08:00", End: "22:00"}},
		},
		Cameras: map[string]config.CameraConfig{
			"yard": {AlwaysSend: boolPtr(true)},
		},
	}
	r := NewResolver(snap(cfg))

	w := r.Resolve("yard", "family")
	if !w.AlwaysSend {
		t.Fatal("AlwaysSend = false, want true from camera layer")
	}
	if w.Start != 8*60 || w.End != 22*60 {
		t.Fatalf("window = %d-%d, want %d-%d from group layer", w.Start, w.End, 8*60, 22*60)
	}
}

func TestResolveBuiltinDefault(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{Groups: map[string]config.GroupConfig{"g": {ChatID: 1}}}
	r := NewResolver(snap(cfg))

	w := r.Resolve("unknown-camera", "g")
	if w.Start != 0 || w.End != 23*60+59 || w.AlwaysSend {
		t.Fatalf("unexpected builtin default: %+v", w)
	}
}

func TestResolveDefaultSchedule(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Groups:          map[string]config.GroupConfig{"g": {ChatID: 1}},
		DefaultSchedule: &config.WindowConfig{Start: "06:00", End: "23:00"},
	}
	r := NewResolver(snap(cfg))

	w := r.Resolve("cam", "g")
	if w.Start != 6*60 || w.End != 23*60 {
		t.Fatalf("window = %d-%d, want default schedule", w.Start, w.End)
	}
}

func TestWithinWindow(t *testing.T) {
	t.Parallel()
	wrap := Window{Start: 22 * 60, End: 6 * 60}
	plain := Window{Start: 9 * 60, End: 17 * 60}

	tests := []struct {
		name string
		w    Window
		now  time.Time
		want bool
	}{
		{"wrap late evening", wrap, at(23, 0), true},
		{"wrap midday", wrap, at(12, 0), false},
		{"wrap end boundary inclusive", wrap, at(6, 0), true},
		{"wrap start boundary inclusive", wrap, at(22, 0), true},
		{"wrap just past end", wrap, at(6, 1), false},
		{"plain inside", plain, at(12, 30), true},
		{"plain before", plain, at(8, 59), false},
		{"plain start boundary", plain, at(9, 0), true},
		{"plain end boundary", plain, at(17, 0), true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if got := WithinWindow(tt.now, tt.w); got != tt.want {
				t.Fatalf("WithinWindow(%v, %+v) = %v, want %v", tt.now, tt.w, got, tt.want)
			}
		})
	}
}

func TestAlwaysSendIgnoresWindow(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Groups: map[string]config.GroupConfig{
			"g": {ChatID: 1, Schedule: &config.WindowConfig{Start: "09:00", End: "10:00"}, AlwaysSend: boolPtr(true)},
		},
	}
	r := NewResolver(snap(cfg))

	if !r.ShouldAlert("cam", "g", at(3, 0)) {
		t.Fatal("ShouldAlert = false at 03:00, want true with always_send")
	}
}

func TestRecipientsEligibility(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Groups: map[string]config.GroupConfig{
			"family":   {ChatID: 10},
			"disabled": {ChatID: 20, Enabled: boolPtr(false)},
			"nochat":   {},
			"night":    {ChatID: 30, Schedule: &config.WindowConfig{Start: "22:00", End: "06:00"}},
		},
	}
	r := NewResolver(snap(cfg))

	got := r.Recipients("cam", at(12, 0))
	if len(got) != 1 {
		t.Fatalf("recipients = %v, want only family", got)
	}
	if got[0].Group != "family" || got[0].ChatID != 10 {
		t.Fatalf("unexpected recipient: %+v", got[0])
	}

	night := r.Recipients("cam", at(23, 30))
	names := map[string]bool{}
	for _, rec := range night {
		names[rec.Group] = true
	}
	if !names["family"] || !names["night"] || len(night) != 2 {
		t.Fatalf("recipients at 23:30 = %v, want family and night", night)
	}
}

func TestGroupsForFallbacks(t *testing.T) {
	t.Parallel()
	cfg := &config.Config{
		Groups: map[string]config.GroupConfig{
			"a": {ChatID: 1},
			"b": {ChatID: 2},
			"c": {ChatID: 3},
		},
		DefaultGroups: []string{"b"},
		Cameras: map[string]config.CameraConfig{
			"explicit": {Groups: []string{"a", "c"}},
		},
	}
	r := NewResolver(snap(cfg))

	if got := r.GroupsFor("explicit"); len(got) != 2 || got[0] != "a" || got[1] != "c" {
		t.Fatalf("GroupsFor(explicit) = %v", got)
	}
	if got := r.GroupsFor("other"); len(got) != 1 || got[0] != "b" {
		t.Fatalf("GroupsFor(other) = %v, want default groups", got)
	}

	cfg.DefaultGroups = nil
	if got := r.GroupsFor("other"); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("GroupsFor with no defaults = %v, want all groups sorted", got)
	}
}
