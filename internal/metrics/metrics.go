// Package metrics exposes pipeline counters, both as prometheus series for
// the optional /metrics listener and as a cheap snapshot for the heartbeat
// summary.
package metrics

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	logx "github.com/oslabbie/frigate-alerts/pkg/logx"
)

// Drop reasons used with IncDropped.
const (
	DropLabel     = "label"
	DropSchedule  = "schedule"
	DropStale     = "stale"
	DropQueueFull = "queue_full"
)

// Delivery results used with IncDelivery.
const (
	ResultDelivered    = "delivered"
	ResultPartial      = "partial"
	ResultTextFallback = "text_fallback"
	ResultDropped      = "dropped"
)

type Metrics struct {
	eventsSeen    prometheus.Counter
	eventsDropped *prometheus.CounterVec
	mediaFetched  *prometheus.CounterVec
	mediaFailed   *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	pollErrors    prometheus.Counter
	webhookErrors prometheus.Counter

	// Plain totals for the heartbeat summary.
	seen      atomic.Uint64
	dropped   atomic.Uint64
	delivered atomic.Uint64
	failed    atomic.Uint64
}

func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		eventsSeen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "events_seen_total",
			Help: "New events observed past the watermark.",
		}),
		eventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "events_dropped_total",
			Help: "Events dropped before dispatch, by reason.",
		}, []string{"reason"}),
		mediaFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "media_fetched_total",
			Help: "Successful media fetches, by kind.",
		}, []string{"kind"}),
		mediaFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "media_exhausted_total",
			Help: "Media kinds whose retry budget was exhausted.",
		}, []string{"kind"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "deliveries_total",
			Help: "Event delivery outcomes.",
		}, []string{"result"}),
		pollErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "poll_errors_total",
			Help: "Event feed fetch failures (cycle skipped).",
		}),
		webhookErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "frigate_alerts", Name: "webhook_errors_total",
			Help: "Webhook delivery failures (best-effort, not retried).",
		}),
	}
}

func (m *Metrics) IncSeen() {
	if m == nil {
		return
	}
	m.eventsSeen.Inc()
	m.seen.Add(1)
}

func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
	m.dropped.Add(1)
}

func (m *Metrics) IncMediaFetched(kind string) {
	if m == nil {
		return
	}
	m.mediaFetched.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncMediaExhausted(kind string) {
	if m == nil {
		return
	}
	m.mediaFailed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncDelivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
	switch result {
	case ResultDelivered, ResultTextFallback:
		m.delivered.Add(1)
	case ResultPartial:
		m.failed.Add(1)
	}
}

func (m *Metrics) IncPollError() {
	if m == nil {
		return
	}
	m.pollErrors.Inc()
}

func (m *Metrics) IncWebhookError() {
	if m == nil {
		return
	}
	m.webhookErrors.Inc()
}

// Totals is the heartbeat-facing snapshot.
type Totals struct {
	Seen      uint64
	Dropped   uint64
	Delivered uint64
	Failed    uint64
}

func (m *Metrics) Snapshot() Totals {
	if m == nil {
		return Totals{}
	}
	return Totals{
		Seen:      m.seen.Load(),
		Dropped:   m.dropped.Load(),
		Delivered: m.delivered.Load(),
		Failed:    m.failed.Load(),
	}
}

// Serve runs the /metrics listener until ctx is done. Intended for a
// loopback bind; there is no auth on this endpoint.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, log logx.Logger) error {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	log.Info("metrics listener started", logx.String("addr", addr))
	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
