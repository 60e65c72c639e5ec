package metrics

import (
	"database/sql"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const metricPrefix = "iot_console_"

// Result labels shared by observation helpers.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCompleted = "completed"
	ResultDegraded  = "degraded"
	ResultCancelled = "cancelled"
	ResultFatal     = "fatal"
)

var (
	initOnce sync.Once

	onboardingRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "onboarding_runs_total",
			Help: "Onboarding runs by terminal result",
		},
		[]string{"result"},
	)
	onboardingStageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "onboarding_stage_duration_seconds",
			Help:    "Duration of onboarding pipeline stages",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"stage", "result"},
	)
	onboardingDegradedStages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "onboarding_degraded_stages_total",
			Help: "Stages completed via fallback content",
		},
		[]string{"stage"},
	)
	onboardingRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "onboarding_run_duration_seconds",
			Help:    "End-to-end onboarding run duration",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)
	progressClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: metricPrefix + "progress_stream_clients",
			Help: "Connected progress stream (SSE) clients",
		},
	)
	outboxPublish = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "event_outbox_publish_seconds",
			Help:    "Outbox publish latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	outboxDispatch = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "event_outbox_dispatch_seconds",
			Help:    "Outbox dispatch batch latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"result"},
	)
	outboxDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: metricPrefix + "event_outbox_dispatched_total",
			Help: "Outbox records dispatched by outcome",
		},
		[]string{"outcome"},
	)
	consumerLag = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    metricPrefix + "event_consumer_lag_seconds",
			Help:    "Delay between event occurrence and consumption",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 30, 60, 300},
		},
		[]string{"consumer"},
	)
)

// Init registers all collectors. Safe to call once from main; db may be nil
// in tests.
func Init(db *sql.DB, logger *zap.Logger) {
	initOnce.Do(func() {
		prometheus.MustRegister(
			onboardingRunsTotal,
			onboardingStageDuration,
			onboardingDegradedStages,
			onboardingRunDuration,
			progressClients,
			outboxPublish,
			outboxDispatch,
			outboxDispatched,
			consumerLag,
		)
		registerDBMetrics(db, logger)
	})
}

// ObserveRun records a finished onboarding run.
func ObserveRun(result string, duration time.Duration) {
	onboardingRunsTotal.WithLabelValues(result).Inc()
	onboardingRunDuration.Observe(duration.Seconds())
}

// ObserveStage records one stage execution.
func ObserveStage(stage, result string, duration time.Duration) {
	onboardingStageDuration.WithLabelValues(stage, result).Observe(duration.Seconds())
}

// ObserveDegradedStage counts a fallback substitution.
func ObserveDegradedStage(stage string) {
	onboardingDegradedStages.WithLabelValues(stage).Inc()
}

// ProgressClientConnected tracks a new SSE subscriber.
func ProgressClientConnected() {
	progressClients.Inc()
}

// ProgressClientDisconnected tracks a departed SSE subscriber.
func ProgressClientDisconnected() {
	progressClients.Dec()
}

// ObserveOutboxPublish records an outbox insert.
func ObserveOutboxPublish(result string, duration time.Duration) {
	outboxPublish.WithLabelValues(result).Observe(duration.Seconds())
}

// ObserveOutboxDispatch records one dispatch batch.
func ObserveOutboxDispatch(result string, duration time.Duration, sent, failed, dlq int) {
	outboxDispatch.WithLabelValues(result).Observe(duration.Seconds())
	if sent > 0 {
		outboxDispatched.WithLabelValues("sent").Add(float64(sent))
	}
	if failed > 0 {
		outboxDispatched.WithLabelValues("failed").Add(float64(failed))
	}
	if dlq > 0 {
		outboxDispatched.WithLabelValues("dlq").Add(float64(dlq))
	}
}

// ObserveConsumerLag records how far behind a consumer processed an event.
func ObserveConsumerLag(consumer string, lag time.Duration) {
	if lag < 0 {
		lag = 0
	}
	consumerLag.WithLabelValues(consumer).Observe(lag.Seconds())
}
