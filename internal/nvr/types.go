package nvr

import "time"

// Event is one detection from the NVR event feed.
//
// Timestamps are unix seconds with fractional precision, matching the feed.
// EndTime is nil while the NVR is still recording the event; the media
// fetcher may synthesize a local end once for clip requests, but the feed
// value is never overwritten.
type Event struct {
	ID        string   `json:"id"`
	Camera    string   `json:"camera"`
	Label     string   `json:"label"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	HasClip   bool     `json:"has_clip"`
}

func (e Event) Start() time.Time {
	sec := int64(e.StartTime)
	nsec := int64((e.StartTime - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}

// Ended reports whether the NVR has finished recording the event.
func (e Event) Ended() bool { return e.EndTime != nil }
