// Package heartbeat sends a periodic status summary to the log chat so a
// silent bot can be told apart from a broken one.
package heartbeat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/oslabbie/frigate-alerts/internal/metrics"
	"github.com/oslabbie/frigate-alerts/internal/storage"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

// Sender delivers the summary text. Implemented by the telegram adapter.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// History exposes the recent-alert read used in the summary. Implemented by
// storage.Store; nil when history is disabled.
type History interface {
	Recent(ctx context.Context, n int) ([]storage.Record, error)
}

// recentAlerts is how many history records the summary lists.
const recentAlerts = 5

type Config struct {
	// Spec is a standard 5-field cron expression.
	Spec   string
	ChatID int64
}

type Service struct {
	cfg    Config
	sender Sender
	hist   History
	met    *metrics.Metrics
	log    logx.Logger

	cron      *cron.Cron
	startedAt time.Time
}

func New(cfg Config, sender Sender, hist History, met *metrics.Metrics, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Service{cfg: cfg, sender: sender, hist: hist, met: met, log: log}
}

func (s *Service) Start() error {
	s.startedAt = time.Now()
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.Spec, s.emit); err != nil {
		return fmt.Errorf("heartbeat cron %q: %w", s.cfg.Spec, err)
	}
	s.cron.Start()
	s.log.Info("heartbeat scheduled", logx.String("cron", s.cfg.Spec), logx.Int64("chat_id", s.cfg.ChatID))
	return nil
}

func (s *Service) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

func (s *Service) emit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.sender.SendText(ctx, s.cfg.ChatID, s.summary(ctx)); err != nil {
		s.log.Warn("heartbeat send failed", logx.Err(err))
	}
}

func (s *Service) summary(ctx context.Context) string {
	t := s.met.Snapshot()

	var b strings.Builder
	fmt.Fprintf(&b,
		"frigate-alerts up %s\nevents seen: %d\ndropped: %d\ndelivered: %d\npartial failures: %d",
		time.Since(s.startedAt).Round(time.Minute), t.Seen, t.Dropped, t.Delivered, t.Failed,
	)

	if s.hist != nil {
		recs, err := s.hist.Recent(ctx, recentAlerts)
		if err != nil {
			s.log.Warn("heartbeat history read failed", logx.Err(err))
		}
		if len(recs) > 0 {
			b.WriteString("\nlast alerts:")
			for _, r := range recs {
				fmt.Fprintf(&b, "\n%s %s/%s %s",
					r.At.Format("01-02 15:04"), r.Camera, r.Label, r.Outcome)
			}
		}
	}
	return b.String()
}
