// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	PollCycles    *prometheus.CounterVec // provider, result=ok|error|panic
	Lookups       *prometheus.CounterVec // provider, result=live|offline|failed
	LookupRetries *prometheus.CounterVec // provider
	Notifications *prometheus.CounterVec // provider, stage=emitted|delivered|failed|dropped

	// Histograms (seconds)
	CycleDuration *prometheus.HistogramVec

	// Gauges
	WatchedGauge     *prometheus.GaugeVec
	CircuitOpenGauge *prometheus.GaugeVec // per sink, 1=open 0=closed
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		PollCycles = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamwatch_poll_cycles_total", Help: "Number of completed poll cycles"}, []string{"provider", "result"})
		Lookups = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamwatch_lookups_total", Help: "Presence lookups by outcome"}, []string{"provider", "result"})
		LookupRetries = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamwatch_lookup_retries_total", Help: "Presence lookup retries"}, []string{"provider"})
		Notifications = promauto.NewCounterVec(prometheus.CounterOpts{Name: "streamwatch_notifications_total", Help: "Live notifications by stage"}, []string{"provider", "stage"})
		CycleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{Name: "streamwatch_poll_cycle_duration_seconds", Help: "Poll cycle duration seconds", Buckets: prometheus.DefBuckets}, []string{"provider"})
		WatchedGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "streamwatch_watched_streamers", Help: "Streamers in the watchlist at the start of the last cycle"}, []string{"provider"})
		CircuitOpenGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{Name: "streamwatch_notify_circuit_open", Help: "Notification circuit breaker per sink open=1 closed=0"}, []string{"sink"})
	})
}

// ObserveCycle records a finished poll cycle.
func ObserveCycle(provider, result string, d time.Duration) {
	Init()
	PollCycles.WithLabelValues(provider, result).Inc()
	CycleDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveLookup counts a lookup outcome.
func ObserveLookup(provider, result string) {
	Init()
	Lookups.WithLabelValues(provider, result).Inc()
}

// ObserveRetry counts a lookup retry.
func ObserveRetry(provider string) {
	Init()
	LookupRetries.WithLabelValues(provider).Inc()
}

// ObserveNotification counts a notification at the given stage.
func ObserveNotification(provider, stage string) {
	Init()
	Notifications.WithLabelValues(provider, stage).Inc()
}

// SetWatched records the watchlist size for a provider.
func SetWatched(provider string, n int) {
	Init()
	WatchedGauge.WithLabelValues(provider).Set(float64(n))
}

// UpdateCircuitGauge sets the sink's gauge to 1 if open else 0.
func UpdateCircuitGauge(sink string, open bool) {
	Init()
	if open {
		CircuitOpenGauge.WithLabelValues(sink).Set(1)
	} else {
		CircuitOpenGauge.WithLabelValues(sink).Set(0)
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
