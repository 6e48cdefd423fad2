// Package webhook fires an optional JSON POST per event. Best-effort: a
// failed delivery is counted and logged, never retried, and never affects
// the alert pipeline.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/oslabbie/frigate-alerts/internal/metrics"
	"github.com/oslabbie/frigate-alerts/internal/nvr"
	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

type Notifier struct {
	url  string
	http *http.Client
	met  *metrics.Metrics
	log  logx.Logger
}

func New(url string, timeout time.Duration, met *metrics.Metrics, log logx.Logger) *Notifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Notifier{
		url:  url,
		http: &http.Client{Timeout: timeout},
		met:  met,
		log:  log,
	}
}

type payload struct {
	EventID   string   `json:"event_id"`
	Camera    string   `json:"camera"`
	Label     string   `json:"label"`
	StartTime float64  `json:"start_time"`
	EndTime   *float64 `json:"end_time"`
	Groups    []string `json:"groups"`
}

// Fire posts the event. groups is the camera's full configured group list,
// independent of schedule eligibility.
func (n *Notifier) Fire(ctx context.Context, ev nvr.Event, groups []string) {
	if groups == nil {
		groups = []string{}
	}
	b, err := json.Marshal(payload{
		EventID:   ev.ID,
		Camera:    ev.Camera,
		Label:     ev.Label,
		StartTime: ev.StartTime,
		EndTime:   ev.EndTime,
		Groups:    groups,
	})
	if err != nil {
		n.log.Warn("webhook payload marshal failed", logx.String("event", ev.ID), logx.Err(err))
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(b))
	if err != nil {
		n.log.Warn("webhook request build failed", logx.Err(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		n.met.IncWebhookError()
		n.log.Warn("webhook delivery failed", logx.String("event", ev.ID), logx.Err(err))
		return
	}
	defer resp.Body.Close()
	_, _ = io.CopyN(io.Discard, resp.Body, 1024)

	if resp.StatusCode/100 != 2 {
		n.met.IncWebhookError()
		n.log.Warn("webhook rejected", logx.String("event", ev.ID), logx.Int("status", resp.StatusCode))
	}
}
