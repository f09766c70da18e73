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
	ChannelsCreated prometheus.Counter
	CreatesRejected prometheus.Counter
	CreatesFailed   prometheus.Counter
	SweptExpired    prometheus.Counter
	SweptOrphaned   prometheus.Counter
	SweptEmpty      prometheus.Counter
	SweepErrors     prometheus.Counter
	SweepCycles     prometheus.Counter
	JoinsAttributed prometheus.Counter
	JoinsUnmatched  prometheus.Counter
	GatewayReconnects prometheus.Counter

	// Histograms (seconds)
	SweepDuration  prometheus.Observer
	CreateDuration prometheus.Observer

	// Gauges
	TrackedChannelsGauge prometheus.Gauge
	GatewayConnectedGauge prometheus.Gauge // 1=connected,0=down
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ChannelsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_channels_created_total", Help: "Number of temporary voice channels created"})
		CreatesRejected = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_creates_rejected_total", Help: "Number of channel creations rejected because the user already owns one"})
		CreatesFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_creates_failed_total", Help: "Number of channel creations that failed at the platform"})
		SweptExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_swept_expired_total", Help: "Number of channels swept because their TTL passed"})
		SweptOrphaned = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_swept_orphaned_total", Help: "Number of rows swept because the live channel was gone"})
		SweptEmpty = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_swept_empty_total", Help: "Number of channels swept because they had no occupants"})
		SweepErrors = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_sweep_errors_total", Help: "Number of per-row sweep failures"})
		SweepCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "voice_sweep_cycles_total", Help: "Number of sweep passes (Reconcile invocations)"})
		JoinsAttributed = promauto.NewCounter(prometheus.CounterOpts{Name: "invite_joins_attributed_total", Help: "Number of member joins attributed to an invite"})
		JoinsUnmatched = promauto.NewCounter(prometheus.CounterOpts{Name: "invite_joins_unmatched_total", Help: "Number of member joins with no unambiguous invite match"})
		GatewayReconnects = promauto.NewCounter(prometheus.CounterOpts{Name: "gateway_reconnects_total", Help: "Number of gateway reconnect attempts"})
		SweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "voice_sweep_duration_seconds", Help: "Sweep pass duration seconds", Buckets: prometheus.DefBuckets})
		CreateDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "voice_create_duration_seconds", Help: "Channel creation duration seconds", Buckets: prometheus.DefBuckets})
		TrackedChannelsGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "voice_tracked_channels", Help: "Current number of tracked temporary voice channels"})
		GatewayConnectedGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "gateway_connected", Help: "Gateway connection up=1 down=0"})
	})
}

// UpdateGatewayGauge sets gauge to 1 if connected else 0.
func UpdateGatewayGauge(connected bool) {
	if GatewayConnectedGauge != nil {
		if connected {
			GatewayConnectedGauge.Set(1)
		} else {
			GatewayConnectedGauge.Set(0)
		}
	}
}

// SetTrackedChannels records the current tracked-channel count.
func SetTrackedChannels(n int) {
	if TrackedChannelsGauge != nil {
		TrackedChannelsGauge.Set(float64(n))
	}
}

// SweptByReason increments the sweep counter matching reason ("expired", "orphaned", "empty").
func SweptByReason(reason string) {
	switch reason {
	case "expired":
		if SweptExpired != nil {
			SweptExpired.Inc()
		}
	case "orphaned":
		if SweptOrphaned != nil {
			SweptOrphaned.Inc()
		}
	case "empty":
		if SweptEmpty != nil {
			SweptEmpty.Inc()
		}
	}
}

// TimeFunc measures the duration of fn and records in observer if non-nil.
func TimeFunc(obs prometheus.Observer, fn func()) time.Duration {
	start := time.Now()
	fn()
	d := time.Since(start)
	if obs != nil {
		obs.Observe(d.Seconds())
	}
	return d
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
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
