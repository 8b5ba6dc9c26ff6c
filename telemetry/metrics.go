// Package telemetry provides Prometheus metrics and correlation-id aware
// logging helpers.
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
	FlowsStarted    prometheus.Counter
	FlowsCompleted  prometheus.Counter
	FlowsFailed     *prometheus.CounterVec // labeled by failure reason
	TokensIssued    prometheus.Counter
	TokensExpired   prometheus.Counter
	RolesCreated    prometheus.Counter
	ChannelsCreated prometheus.Counter
	SectionsDropped prometheus.Counter // titles that failed to parse

	// Histograms (seconds)
	SyncDuration prometheus.Observer

	// Gauges
	PendingAuthorizations prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		FlowsStarted = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_flows_started_total", Help: "Number of OAuth link flows started"})
		FlowsCompleted = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_flows_completed_total", Help: "Number of OAuth link flows completed through sync"})
		FlowsFailed = promauto.NewCounterVec(prometheus.CounterOpts{Name: "rollcall_flows_failed_total", Help: "Number of OAuth link flows that failed"}, []string{"reason"})
		TokensIssued = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_tokens_issued_total", Help: "Number of request tokens issued"})
		TokensExpired = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_tokens_expired_total", Help: "Number of pending authorizations that expired unconsumed"})
		RolesCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_roles_created_total", Help: "Number of class roles created"})
		ChannelsCreated = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_channels_created_total", Help: "Number of class channels created"})
		SectionsDropped = promauto.NewCounter(prometheus.CounterOpts{Name: "rollcall_sections_dropped_total", Help: "Number of section titles that did not yield a schedule entry"})
		SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{Name: "rollcall_sync_duration_seconds", Help: "Role/channel reconciliation duration seconds", Buckets: prometheus.DefBuckets})
		PendingAuthorizations = promauto.NewGauge(prometheus.GaugeOpts{Name: "rollcall_pending_authorizations", Help: "Current number of unconsumed pending authorizations"})
	})
}

// CountFlowFailure increments the failure counter for a reason label.
func CountFlowFailure(reason string) {
	if FlowsFailed != nil {
		FlowsFailed.WithLabelValues(reason).Inc()
	}
}

// SetPendingAuthorizations records the current token store size.
func SetPendingAuthorizations(n int) {
	if PendingAuthorizations != nil {
		PendingAuthorizations.Set(float64(n))
	}
}

// TimeFunc measures the duration of fn and records in obs if non-nil.
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

// WithCorrelation returns a new context embedding the correlation id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns the correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	if s, ok := ctx.Value(corrKey).(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with the corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
