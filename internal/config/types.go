package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	NVR      NVRConfig      `json:"nvr"`

	// Groups maps a group name to its chat target and optional schedule.
	Groups map[string]GroupConfig `json:"groups"`

	// Cameras maps a camera name (as reported by the NVR) to its filters and
	// schedule overrides. Cameras absent from this map fall back entirely to
	// defaults: all labels allowed, default groups, default schedule.
	Cameras map[string]CameraConfig `json:"cameras,omitempty"`

	// DefaultSchedule is the least specific schedule layer. If omitted the
	// built-in default applies (00:00-23:59, always_send=false).
	DefaultSchedule *WindowConfig `json:"default_schedule,omitempty"`

	// DefaultGroups is used by cameras that don't list groups explicitly.
	// If omitted too, such cameras alert every configured group.
	DefaultGroups []string `json:"default_groups,omitempty"`

	Media    MediaConfig    `json:"media,omitempty"`
	Dispatch DispatchConfig `json:"dispatch,omitempty"`

	Webhook   *WebhookConfig   `json:"webhook,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`
	Metrics   *MetricsConfig   `json:"metrics,omitempty"`
	Heartbeat *HeartbeatConfig `json:"heartbeat,omitempty"`

	Logging LoggingConfig `json:"logging,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`

	// LogChatID receives mirrored warn+ log lines and heartbeat summaries.
	LogChatID int64 `json:"log_chat_id,omitempty"`

	// RatePerSec caps outgoing bot API calls. Default 25 (Telegram allows ~30).
	RatePerSec int `json:"rate_per_sec,omitempty"`
}

// NVRConfig points at a Frigate-compatible HTTP API.
//
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type NVRConfig struct {
	BaseURL string `json:"base_url"`

	// PollInterval between event feed fetches. Default "30s".
	PollInterval string `json:"poll_interval,omitempty"`

	// FetchLimit caps how many events one feed fetch returns. Default 20.
	FetchLimit int `json:"fetch_limit,omitempty"`

	// GracePeriod is how long a non-empty fetch waits before scanning, so the
	// NVR can finalize in-progress clips. Default "10s".
	GracePeriod string `json:"grace_period,omitempty"`

	// RequestTimeout for individual HTTP calls. Default "45s" (clips can be big).
	RequestTimeout string `json:"request_timeout,omitempty"`
}

// WindowConfig is a recurring daily interval in "HH:MM" local time.
// End before start means the window wraps past midnight. Both boundaries
// are inclusive. Either field may be omitted; the schedule resolver fills
// missing fields from less specific layers.
type WindowConfig struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// OverrideConfig is the most specific schedule layer: a per-(camera, group)
// window plus always-send flag, any field optional.
type OverrideConfig struct {
	Start      string `json:"start,omitempty"`
	End        string `json:"end,omitempty"`
	AlwaysSend *bool  `json:"always_send,omitempty"`
}

type GroupConfig struct {
	// ChatID is the telegram chat this group alerts. A group without a chat
	// id is never eligible (it is skipped, not an error).
	ChatID int64 `json:"chat_id,omitempty"`

	// Enabled defaults to true when omitted.
	Enabled *bool `json:"enabled,omitempty"`

	Schedule   *WindowConfig `json:"schedule,omitempty"`
	AlwaysSend *bool         `json:"always_send,omitempty"`
}

func (g GroupConfig) IsEnabled() bool { return g.Enabled == nil || *g.Enabled }

type CameraConfig struct {
	Schedule   *WindowConfig `json:"schedule,omitempty"`
	AlwaysSend *bool         `json:"always_send,omitempty"`

	// Groups this camera alerts. Empty means default_groups, which in turn
	// empty means all configured groups.
	Groups []string `json:"groups,omitempty"`

	// Labels is an allow-list of object labels ("person", "car", ...).
	// Empty allows everything.
	Labels []string `json:"labels,omitempty"`

	// GroupSchedules overrides the schedule per group, field-wise.
	GroupSchedules map[string]OverrideConfig `json:"group_schedules,omitempty"`
}

// AllowsLabel reports whether the camera's label allow-list permits l.
func (c CameraConfig) AllowsLabel(l string) bool {
	if len(c.Labels) == 0 {
		return true
	}
	for _, v := range c.Labels {
		if v == l {
			return true
		}
	}
	return false
}

// MediaConfig tunes the clip/snapshot/thumbnail cascade.
type MediaConfig struct {
	// RetryAttempts per media kind. Default 5.
	RetryAttempts int `json:"retry_attempts,omitempty"`

	// RetryBaseDelay: delay before attempt k is base*k. Default "3s".
	RetryBaseDelay string `json:"retry_base_delay,omitempty"`

	// MinBytes below which a fetched body is treated as an error page rather
	// than real media. Default 4096.
	MinBytes int `json:"min_bytes,omitempty"`

	// ClipWait is how long to wait for the NVR to finish recording when an
	// event has no end time yet. Default "15s".
	ClipWait string `json:"clip_wait,omitempty"`

	// AssumedClipDuration is added to start_time to synthesize the clip range
	// when the event still has no end time after the wait. Default "30s".
	AssumedClipDuration string `json:"assumed_clip_duration,omitempty"`
}

type DispatchConfig struct {
	// Workers processing events concurrently. Default 4.
	Workers int `json:"workers,omitempty"`

	// QueueSize of pending events. A full queue drops new events (logged).
	// Default 64.
	QueueSize int `json:"queue_size,omitempty"`
}

type WebhookConfig struct {
	URL     string `json:"url"`
	Timeout string `json:"timeout,omitempty"` // default "10s"
}

// StorageConfig controls the optional alert history store.
//
// Driver values:
//   - "file": dependency-free JSON Lines file
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", history is disabled.
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default "127.0.0.1:9102"
}

type HeartbeatConfig struct {
	Enabled bool `json:"enabled"`

	// Cron is a standard 5-field cron spec. Default "0 9 * * *".
	Cron string `json:"cron,omitempty"`

	// ChatID defaults to telegram.log_chat_id.
	ChatID int64 `json:"chat_id,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level,omitempty"`
	Console  bool            `json:"console,omitempty"`
	File     LoggingFile     `json:"file,omitempty"`
	Telegram LoggingTelegram `json:"telegram,omitempty"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled,omitempty"`
	Path    string `json:"path,omitempty"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled,omitempty"`
	MinLevel   string `json:"min_level,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
}
