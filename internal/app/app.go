// Package app wires the pipeline together and owns process lifecycle:
// config load and watch, logging, the poll loop, the dispatch pool, and the
// optional metrics/heartbeat/history extras.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/oslabbie/frigate-alerts/internal/config"
	"github.com/oslabbie/frigate-alerts/internal/dispatch"
	"github.com/oslabbie/frigate-alerts/internal/heartbeat"
	"github.com/oslabbie/frigate-alerts/internal/intake"
	"github.com/oslabbie/frigate-alerts/internal/media"
	"github.com/oslabbie/frigate-alerts/internal/metrics"
	"github.com/oslabbie/frigate-alerts/internal/nvr"
	"github.com/oslabbie/frigate-alerts/internal/runtime/supervisor"
	"github.com/oslabbie/frigate-alerts/internal/schedule"
	"github.com/oslabbie/frigate-alerts/internal/storage"
	"github.com/oslabbie/frigate-alerts/internal/transport/telegram"
	"github.com/oslabbie/frigate-alerts/internal/webhook"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

type App struct {
	mgr    *config.Manager
	logSvc *logx.Service
	log    logx.Logger

	sup   *supervisor.Supervisor
	store storage.Store
	hb    *heartbeat.Service

	stopOnce sync.Once
}

// New loads and validates the config. Any config error here is fatal: the
// process refuses to start on a broken config.
func New(cfgPath string) (*App, error) {
	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", cfgPath, err)
	}

	logSvc, log := logx.New(logxConfig(cfg))
	mgr.SetLogger(log.With(logx.String("comp", "config")))

	return &App{mgr: mgr, logSvc: logSvc, log: log}, nil
}

func (a *App) Start(ctx context.Context) error {
	cfg := a.mgr.Get()

	tg, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		RatePerSec: ratePerSec(cfg),
	}, a.log.With(logx.String("comp", "telegram")))
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	if cfg.Logging.Telegram.Enabled && cfg.Telegram.LogChatID != 0 {
		a.logSvc.AttachTelegram(tg)
	}
	a.log.Info("telegram bot ready", logx.String("bot", tg.Identity()))

	// Durations were validated at load; errors here can't happen for a
	// committed config, but keep the checks so defaults stay in one place.
	pollInterval, err := config.ParseDurationOrDefault("nvr.poll_interval", cfg.NVR.PollInterval, config.DefaultPollInterval)
	if err != nil {
		return err
	}
	grace, err := config.ParseDurationOrDefault("nvr.grace_period", cfg.NVR.GracePeriod, config.DefaultGracePeriod)
	if err != nil {
		return err
	}
	reqTimeout, err := config.ParseDurationOrDefault("nvr.request_timeout", cfg.NVR.RequestTimeout, config.DefaultRequestTimeout)
	if err != nil {
		return err
	}
	retryBase, err := config.ParseDurationOrDefault("media.retry_base_delay", cfg.Media.RetryBaseDelay, config.DefaultRetryBaseDelay)
	if err != nil {
		return err
	}
	clipWait, err := config.ParseDurationOrDefault("media.clip_wait", cfg.Media.ClipWait, config.DefaultClipWait)
	if err != nil {
		return err
	}
	assumed, err := config.ParseDurationOrDefault("media.assumed_clip_duration", cfg.Media.AssumedClipDuration, config.DefaultAssumedClipDuration)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	met := metrics.New(reg)

	resolver := schedule.NewResolver(a.mgr.Get)
	client := nvr.NewClient(cfg.NVR.BaseURL, orDefault(cfg.NVR.FetchLimit, config.DefaultFetchLimit), reqTimeout,
		a.log.With(logx.String("comp", "nvr")))

	fetcher := media.NewFetcher(client, media.Config{
		RetryAttempts:       orDefault(cfg.Media.RetryAttempts, config.DefaultRetryAttempts),
		RetryBaseDelay:      retryBase,
		MinBytes:            orDefault(cfg.Media.MinBytes, config.DefaultMinMediaBytes),
		ClipWait:            clipWait,
		AssumedClipDuration: assumed,
	}, a.log.With(logx.String("comp", "media")))

	var hook dispatch.Hook
	if cfg.Webhook != nil {
		whTimeout, err := config.ParseDurationOrDefault("webhook.timeout", cfg.Webhook.Timeout, config.DefaultWebhookTimeout)
		if err != nil {
			return err
		}
		hook = webhook.New(cfg.Webhook.URL, whTimeout, met, a.log.With(logx.String("comp", "webhook")))
	}

	if cfg.Storage != nil {
		busy, err := config.ParseDurationField("storage.busy_timeout", cfg.Storage.BusyTimeout)
		if err != nil {
			return err
		}
		st, err := storage.Open(storage.Config{
			Driver:      cfg.Storage.Driver,
			Path:        cfg.Storage.Path,
			BusyTimeout: busy,
		}, a.log.With(logx.String("comp", "storage")))
		if err != nil {
			return fmt.Errorf("storage: %w", err)
		}
		a.store = st
	}

	disp := dispatch.New(dispatch.Config{
		Workers:   orDefault(cfg.Dispatch.Workers, config.DefaultDispatchWorkers),
		QueueSize: orDefault(cfg.Dispatch.QueueSize, config.DefaultDispatchQueueSize),
	}, resolver, fetcher, tg, hook, a.store, met, a.log.With(logx.String("comp", "dispatch")))

	poller := intake.NewPoller(intake.Config{
		Interval: pollInterval,
		Grace:    grace,
	}, client, disp, resolver, a.mgr.Get, met, a.log.With(logx.String("comp", "intake")))

	// Logging is the one subsystem that follows config reloads live; the
	// pipeline reads fresh snapshots per check anyway.
	a.mgr.OnReload(func(c *config.Config) {
		a.logSvc.Apply(logxConfig(c))
	})

	a.sup = supervisor.New(ctx, supervisor.WithLogger(a.log.With(logx.String("comp", "supervisor"))))
	a.sup.Go("dispatch.pool", disp.Run)
	a.sup.GoRestart("intake.poll", poller.Run, time.Second, 30*time.Second)
	a.sup.GoRestart("config.watch", a.mgr.Watch, time.Second, 30*time.Second)

	if cfg.Metrics != nil && cfg.Metrics.Enabled {
		addr := cfg.Metrics.Addr
		if addr == "" {
			addr = config.DefaultMetricsAddr
		}
		a.sup.Go("metrics.http", func(ctx context.Context) error {
			return metrics.Serve(ctx, addr, reg, a.log.With(logx.String("comp", "metrics")))
		})
	}

	if cfg.Heartbeat != nil && cfg.Heartbeat.Enabled {
		spec := cfg.Heartbeat.Cron
		if spec == "" {
			spec = config.DefaultHeartbeatCron
		}
		chatID := cfg.Heartbeat.ChatID
		if chatID == 0 {
			chatID = cfg.Telegram.LogChatID
		}
		a.hb = heartbeat.New(heartbeat.Config{Spec: spec, ChatID: chatID}, tg, a.store, met,
			a.log.With(logx.String("comp", "heartbeat")))
		if err := a.hb.Start(); err != nil {
			return err
		}
	}

	a.notifySystemd()

	a.log.Info("frigate-alerts started",
		logx.String("nvr", cfg.NVR.BaseURL),
		logx.Duration("poll_interval", pollInterval),
		logx.Int("groups", len(cfg.Groups)),
		logx.Int("cameras", len(cfg.Cameras)))
	return nil
}

func (a *App) Stop(ctx context.Context) error {
	var err error
	a.stopOnce.Do(func() {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
		if a.hb != nil {
			a.hb.Stop()
		}
		if a.sup != nil {
			err = a.sup.Stop(ctx)
		}
		if a.store != nil {
			_ = a.store.Close()
		}
		_ = a.logSvc.Close()
	})
	return err
}

// notifySystemd reports readiness and starts the watchdog loop when the
// process runs under systemd; a no-op everywhere else.
func (a *App) notifySystemd() {
	if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		a.log.Warn("sd_notify failed", logx.Err(err))
	} else if sent {
		a.log.Debug("systemd notified ready")
	}

	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil || interval <= 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
}

func logxConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console || (!cfg.Logging.File.Enabled && !cfg.Logging.Telegram.Enabled),
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
		Telegram: logx.TelegramConfig{
			Enabled:    cfg.Logging.Telegram.Enabled,
			ChatID:     cfg.Telegram.LogChatID,
			MinLevel:   cfg.Logging.Telegram.MinLevel,
			RatePerSec: cfg.Logging.Telegram.RatePerSec,
		},
	}
}

func ratePerSec(cfg *config.Config) int {
	if cfg.Telegram.RatePerSec > 0 {
		return cfg.Telegram.RatePerSec
	}
	return config.DefaultTelegramRatePerSec
}

func orDefault(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
