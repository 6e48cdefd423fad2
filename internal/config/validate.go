package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Validate checks everything that must be right before the process starts.
// A non-nil error is fatal: the service refuses to run on a broken config
// rather than discovering it mid-alert.
func (c *Config) Validate() error {
	var errs []error

	if strings.TrimSpace(c.Telegram.Token) == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}

	if strings.TrimSpace(c.NVR.BaseURL) == "" {
		errs = append(errs, errors.New("nvr.base_url is required"))
	} else if u, err := url.Parse(c.NVR.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("nvr.base_url %q is not a valid URL", c.NVR.BaseURL))
	}

	if len(c.Groups) == 0 {
		errs = append(errs, errors.New("at least one group is required"))
	}

	for name, g := range c.Groups {
		if g.Schedule != nil {
			errs = append(errs, validateWindow(fmt.Sprintf("groups.%s.schedule", name), g.Schedule.Start, g.Schedule.End)...)
		}
	}

	for _, name := range c.DefaultGroups {
		if _, ok := c.Groups[name]; !ok {
			errs = append(errs, fmt.Errorf("default_groups references unknown group %q", name))
		}
	}

	for cam, cc := range c.Cameras {
		for _, name := range cc.Groups {
			if _, ok := c.Groups[name]; !ok {
				errs = append(errs, fmt.Errorf("cameras.%s.groups references unknown group %q", cam, name))
			}
		}
		for name, ov := range cc.GroupSchedules {
			if _, ok := c.Groups[name]; !ok {
				errs = append(errs, fmt.Errorf("cameras.%s.group_schedules references unknown group %q", cam, name))
			}
			errs = append(errs, validateWindow(fmt.Sprintf("cameras.%s.group_schedules.%s", cam, name), ov.Start, ov.End)...)
		}
		if cc.Schedule != nil {
			errs = append(errs, validateWindow(fmt.Sprintf("cameras.%s.schedule", cam), cc.Schedule.Start, cc.Schedule.End)...)
		}
	}

	if c.DefaultSchedule != nil {
		errs = append(errs, validateWindow("default_schedule", c.DefaultSchedule.Start, c.DefaultSchedule.End)...)
	}

	durations := []struct {
		path string
		raw  string
	}{
		{"nvr.poll_interval", c.NVR.PollInterval},
		{"nvr.grace_period", c.NVR.GracePeriod},
		{"nvr.request_timeout", c.NVR.RequestTimeout},
		{"media.retry_base_delay", c.Media.RetryBaseDelay},
		{"media.clip_wait", c.Media.ClipWait},
		{"media.assumed_clip_duration", c.Media.AssumedClipDuration},
	}
	if c.Webhook != nil {
		durations = append(durations, struct {
			path string
			raw  string
		}{"webhook.timeout", c.Webhook.Timeout})
	}
	if c.Storage != nil {
		durations = append(durations, struct {
			path string
			raw  string
		}{"storage.busy_timeout", c.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDurationField(d.path, d.raw); err != nil {
			errs = append(errs, err)
		}
	}

	if c.Webhook != nil && strings.TrimSpace(c.Webhook.URL) == "" {
		errs = append(errs, errors.New("webhook.url is required when the webhook section is present"))
	}

	if c.Storage != nil {
		switch strings.ToLower(strings.TrimSpace(c.Storage.Driver)) {
		case "", "none", "file", "sqlite", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("storage.driver %q is unknown", c.Storage.Driver))
		}
	}

	if c.Heartbeat != nil && c.Heartbeat.Enabled {
		spec := c.Heartbeat.Cron
		if strings.TrimSpace(spec) == "" {
			spec = DefaultHeartbeatCron
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errs = append(errs, fmt.Errorf("heartbeat.cron: %w", err))
		}
		if c.Heartbeat.ChatID == 0 && c.Telegram.LogChatID == 0 {
			errs = append(errs, errors.New("heartbeat needs heartbeat.chat_id or telegram.log_chat_id"))
		}
	}

	return errors.Join(errs...)
}

func validateWindow(path, start, end string) []error {
	var errs []error
	if strings.TrimSpace(start) != "" {
		if _, err := ParseClock(start); err != nil {
			errs = append(errs, fmt.Errorf("%s.start: %w", path, err))
		}
	}
	if strings.TrimSpace(end) != "" {
		if _, err := ParseClock(end); err != nil {
			errs = append(errs, fmt.Errorf("%s.end: %w", path, err))
		}
	}
	return errs
}

// Built-in defaults applied at point of use.
const (
	DefaultPollInterval        = 30 * time.Second
	DefaultGracePeriod         = 10 * time.Second
	DefaultRequestTimeout      = 45 * time.Second
	DefaultFetchLimit          = 20
	DefaultRetryAttempts       = 5
	DefaultRetryBaseDelay      = 3 * time.Second
	DefaultMinMediaBytes       = 4096
	DefaultClipWait            = 15 * time.Second
	DefaultAssumedClipDuration = 30 * time.Second
	DefaultDispatchWorkers     = 4
	DefaultDispatchQueueSize   = 64
	DefaultWebhookTimeout      = 10 * time.Second
	DefaultMetricsAddr         = "127.0.0.1:9102"
	DefaultHeartbeatCron       = "0 9 * * *"
	DefaultTelegramRatePerSec  = 25
)
