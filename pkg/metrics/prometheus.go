package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	signals      *prometheus.CounterVec
	trades       *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	lastPrice    *prometheus.GaugeVec
	gauges       *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a recorder registered on the default registry.
func New() *Recorder {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry registers the collectors on reg. Tests pass a fresh registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_messages_sent_total",
				Help: "Total number of messages sent to a backend",
			},
			[]string{"backend", "topic"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_signals_total",
				Help: "Signals produced by the evaluator",
			},
			[]string{"kind", "direction"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_trades_total",
				Help: "Entries submitted to the exchange",
			},
			[]string{"direction", "mode"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trendpull_rejections_total",
				Help: "Signals rejected before execution",
			},
			[]string{"reason"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpull_last_price",
				Help: "Last recorded price for a symbol",
			},
			[]string{"symbol"},
		),
		gauges: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trendpull_state",
				Help: "Trader state values (balance, volatility, interval_seconds, trades_today, loss_streak)",
			},
			[]string{"name"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trendpull_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, topic string) {
	r.messagesSent.WithLabelValues(backend, topic).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordSignal(kind, direction string) {
	r.signals.WithLabelValues(kind, direction).Inc()
}

func (r *Recorder) RecordTrade(direction string, dryRun bool) {
	mode := "live"
	if dryRun {
		mode = "dry_run"
	}
	r.trades.WithLabelValues(direction, mode).Inc()
}

func (r *Recorder) RecordRejection(reason string) {
	r.rejections.WithLabelValues(reason).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// SetGauge sets a named state gauge.
func (r *Recorder) SetGauge(name string, v float64) {
	r.gauges.WithLabelValues(name).Set(v)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
