package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once

	// Call session metrics
	ActiveSessions        prometheus.Gauge
	SessionsTotal         *prometheus.CounterVec
	SessionDuration       prometheus.Histogram
	EngineConnectFailures prometheus.Counter

	// Event stream metrics
	EngineEvents    *prometheus.CounterVec
	TranscriptLines prometheus.Counter

	// Tool metrics
	ToolInvocations *prometheus.CounterVec

	// Notification metrics
	NotificationFailures *prometheus.CounterVec
	TranscriptFlushes    *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages prometheus.Counter
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		ActiveSessions = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lexvoice_active_sessions",
				Help: "Number of call sessions currently streaming",
			},
		)

		SessionsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexvoice_sessions_total",
				Help: "Total number of call sessions by terminal state",
			},
			[]string{"state"},
		)

		SessionDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lexvoice_session_duration_seconds",
				Help:    "Duration of completed call sessions",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1s to ~68m
			},
		)

		EngineConnectFailures = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lexvoice_engine_connect_failures_total",
				Help: "Total number of reasoning engine connection failures",
			},
		)

		EngineEvents = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexvoice_engine_events_total",
				Help: "Total number of reasoning engine events consumed",
			},
			[]string{"type"},
		)

		TranscriptLines = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lexvoice_transcript_lines_total",
				Help: "Total number of transcript lines recorded",
			},
		)

		ToolInvocations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexvoice_tool_invocations_total",
				Help: "Total number of tool invocations by tool and outcome",
			},
			[]string{"tool", "outcome"},
		)

		NotificationFailures = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexvoice_notification_failures_total",
				Help: "Total number of failed outbound notifications by channel",
			},
			[]string{"channel"},
		)

		TranscriptFlushes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lexvoice_transcript_flushes_total",
				Help: "Total number of end-of-call transcript flush attempts by outcome",
			},
			[]string{"outcome"},
		)

		AMQPPublishedMessages = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lexvoice_amqp_published_messages_total",
				Help: "Total number of transcript messages published to AMQP",
			},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "lexvoice_amqp_connection_status",
				Help: "AMQP connection status (1 = connected, 0 = disconnected)",
			},
		)

		registry.MustRegister(
			ActiveSessions,
			SessionsTotal,
			SessionDuration,
			EngineConnectFailures,
			EngineEvents,
			TranscriptLines,
			ToolInvocations,
			NotificationFailures,
			TranscriptFlushes,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// GetRegistry returns the Prometheus registry, or nil if Init has not run
func GetRegistry() *prometheus.Registry {
	return registry
}
