// Package schedule resolves the layered per-camera/per-group alert windows.
//
// Four layers, most to least specific:
//
//  1. camera.group_schedules[group]
//  2. camera.schedule / camera.always_send
//  3. group.schedule / group.always_send
//  4. default_schedule
//
// Resolution is field-wise, not block-wise: the most specific layer that
// defines any field anchors the scan, and each of start/end/always_send is
// then taken from the first layer at or below the anchor that defines it.
// Two fields of one effective window can therefore come from different
// layers. If nothing is defined anywhere, the built-in default applies:
// 00:00-23:59, always_send=false.
package schedule

import (
	"sort"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/config"
)

// Window is a resolved recurring daily interval in minutes since midnight.
// Both boundaries are inclusive; End < Start wraps past midnight.
type Window struct {
	Start      int
	End        int
	AlwaysSend bool
}

const (
	builtinStart = 0
	builtinEnd   = 23*60 + 59
)

// Resolver computes effective schedules against the current config snapshot.
// It is pure and safe for concurrent use; nothing is cached, so every call
// reflects the configuration and clock at the moment of the check.
type Resolver struct {
	cfg func() *config.Config
}

func NewResolver(cfg func() *config.Config) *Resolver {
	return &Resolver{cfg: cfg}
}

// layer holds the schedule fields one config layer defines. Nil means the
// layer leaves the field to a less specific one.
type layer struct {
	start  *int
	end    *int
	always *bool
}

func (l layer) defined() bool {
	return l.start != nil || l.end != nil || l.always != nil
}

// Resolve returns the effective window for one (camera, group) pair.
// Unknown camera or group names simply contribute empty layers.
func (r *Resolver) Resolve(camera, group string) Window {
	cfg := r.cfg()
	if cfg == nil {
		return Window{Start: builtinStart, End: builtinEnd}
	}

	cam := cfg.Cameras[camera]
	grp := cfg.Groups[group]

	layers := make([]layer, 0, 4)
	if ov, ok := cam.GroupSchedules[group]; ok {
		layers = append(layers, layer{
			start:  clockPtr(ov.Start),
			end:    clockPtr(ov.End),
			always: ov.AlwaysSend,
		})
	} else {
		layers = append(layers, layer{})
	}
	layers = append(layers, windowLayer(cam.Schedule, cam.AlwaysSend))
	layers = append(layers, windowLayer(grp.Schedule, grp.AlwaysSend))
	layers = append(layers, windowLayer(cfg.DefaultSchedule, nil))

	return resolveLayers(layers)
}

func resolveLayers(layers []layer) Window {
	anchor := -1
	for i, l := range layers {
		if l.defined() {
			anchor = i
			break
		}
	}
	w := Window{Start: builtinStart, End: builtinEnd}
	if anchor < 0 {
		return w
	}

	rest := layers[anchor:]
	for _, l := range rest {
		if l.start != nil {
			w.Start = *l.start
			break
		}
	}
	for _, l := range rest {
		if l.end != nil {
			w.End = *l.end
			break
		}
	}
	for _, l := range rest {
		if l.always != nil {
			w.AlwaysSend = *l.always
			break
		}
	}
	return w
}

func windowLayer(w *config.WindowConfig, always *bool) layer {
	l := layer{always: always}
	if w != nil {
		l.start = clockPtr(w.Start)
		l.end = clockPtr(w.End)
	}
	return l
}

// clockPtr parses "HH:MM" into minutes; unparseable or empty values are
// treated as unset (startup validation already rejected bad configs).
func clockPtr(s string) *int {
	if s == "" {
		return nil
	}
	m, err := config.ParseClock(s)
	if err != nil {
		return nil
	}
	return &m
}

// WithinWindow reports whether now falls inside w, boundaries inclusive.
func WithinWindow(now time.Time, w Window) bool {
	m := now.Hour()*60 + now.Minute()
	if w.Start <= w.End {
		return m >= w.Start && m <= w.End
	}
	// Wraps past midnight.
	return m >= w.Start || m <= w.End
}

// ShouldAlert reports whether the (camera, group) pair permits alerting now.
func (r *Resolver) ShouldAlert(camera, group string, now time.Time) bool {
	w := r.Resolve(camera, group)
	return w.AlwaysSend || WithinWindow(now, w)
}

// Recipient is an eligible delivery target for one event.
type Recipient struct {
	Group  string
	ChatID int64
	Window Window
}

// GroupsFor returns the camera's configured group names: the explicit list,
// else the default list, else every configured group (sorted for stable
// logs). This is the full configured list, independent of eligibility.
func (r *Resolver) GroupsFor(camera string) []string {
	cfg := r.cfg()
	if cfg == nil {
		return nil
	}
	if cam, ok := cfg.Cameras[camera]; ok && len(cam.Groups) > 0 {
		return cam.Groups
	}
	if len(cfg.DefaultGroups) > 0 {
		return cfg.DefaultGroups
	}
	names := make([]string, 0, len(cfg.Groups))
	for name := range cfg.Groups {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Recipients returns the groups currently eligible for an alert from camera:
// enabled, with a chat id, and whose resolved schedule permits alerting now.
func (r *Resolver) Recipients(camera string, now time.Time) []Recipient {
	cfg := r.cfg()
	if cfg == nil {
		return nil
	}
	var out []Recipient
	for _, name := range r.GroupsFor(camera) {
		g, ok := cfg.Groups[name]
		if !ok || g.ChatID == 0 || !g.IsEnabled() {
			continue
		}
		w := r.Resolve(camera, name)
		if w.AlwaysSend || WithinWindow(now, w) {
			out = append(out, Recipient{Group: name, ChatID: g.ChatID, Window: w})
		}
	}
	return out
}
