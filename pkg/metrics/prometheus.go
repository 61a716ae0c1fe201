package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// WebSocket Metrics
	websocketConnections   prometheus.Gauge
	websocketMessagesTotal *prometheus.CounterVec
	websocketErrorsTotal   *prometheus.CounterVec

	// Live Store Metrics
	liveConversations prometheus.Gauge

	// Flush Metrics
	flushPassesTotal        *prometheus.CounterVec
	flushedTotal            prometheus.Counter
	flushSkippedTotal       *prometheus.CounterVec
	flushErrorsTotal        *prometheus.CounterVec
	flushPassDuration       prometheus.Histogram
	flushLastSuccessSeconds prometheus.Gauge

	// Hand-off Metrics
	handOffsTotal      *prometheus.CounterVec
	handOffFailedTotal *prometheus.CounterVec
	statusChangesTotal *prometheus.CounterVec
	agentsOnline       prometheus.Gauge
	messagesTotal      *prometheus.CounterVec
	feedbackTotal      prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(serviceName string) *Metrics {
	m := &Metrics{
		// HTTP Request Metrics
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: prometheus.Labels{"service": serviceName},
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),

		// WebSocket Metrics
		websocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active WebSocket connections",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		websocketMessagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_messages_total",
				Help:        "Total number of WebSocket messages",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"type", "direction"},
		),
		websocketErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "websocket_errors_total",
				Help:        "Total number of WebSocket errors",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"error"},
		),

		// Live Store Metrics
		liveConversations: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "live_conversations",
				Help:        "Number of conversation documents currently in the live store",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),

		// Flush Metrics
		flushPassesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "flush_passes_total",
				Help:        "Total number of flush scheduler passes",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"result"}, // completed, aborted, empty
		),
		flushedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "flushed_conversations_total",
				Help:        "Total number of conversations moved to the archive",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		flushSkippedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "flush_skipped_total",
				Help:        "Total number of conversations skipped during flush passes",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"reason"}, // active, no_messages, missing
		),
		flushErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "flush_errors_total",
				Help:        "Total number of per-conversation flush errors",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"stage"}, // read, decode, archive_write, delete
		),
		flushPassDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "flush_pass_duration_seconds",
				Help:        "Flush pass duration in seconds",
				ConstLabels: prometheus.Labels{"service": serviceName},
				Buckets:     prometheus.DefBuckets,
			},
		),
		flushLastSuccessSeconds: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "flush_last_success_timestamp_seconds",
				Help:        "Unix timestamp of the last completed flush pass",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),

		// Hand-off Metrics
		handOffsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "handoffs_total",
				Help:        "Total number of CSR hand-offs",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"kind"}, // initial, reassignment
		),
		handOffFailedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "handoffs_failed_total",
				Help:        "Total number of failed CSR hand-offs",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"reason"},
		),
		statusChangesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "conversation_status_changes_total",
				Help:        "Total number of conversation status transitions",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"status"},
		),
		agentsOnline: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name:        "agents_online",
				Help:        "Number of CSR agents currently online",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
		messagesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "conversation_messages_total",
				Help:        "Total number of messages appended to conversations",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
			[]string{"source"}, // user, bot, csr
		),
		feedbackTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name:        "conversation_feedback_total",
				Help:        "Total number of feedback submissions",
				ConstLabels: prometheus.Labels{"service": serviceName},
			},
		),
	}

	return m
}

// HTTP metrics

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight request count
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight request count
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// WebSocket metrics

// SetWebSocketConnections sets the active WebSocket connection count
func (m *Metrics) SetWebSocketConnections(count int) {
	m.websocketConnections.Set(float64(count))
}

// RecordWebSocketMessage records a WebSocket message
func (m *Metrics) RecordWebSocketMessage(msgType, direction string) {
	m.websocketMessagesTotal.WithLabelValues(msgType, direction).Inc()
}

// RecordWebSocketError records a WebSocket error
func (m *Metrics) RecordWebSocketError(err string) {
	m.websocketErrorsTotal.WithLabelValues(err).Inc()
}

// Live store metrics

// SetLiveConversations sets the live conversation document count
func (m *Metrics) SetLiveConversations(count int) {
	m.liveConversations.Set(float64(count))
}

// Flush metrics

// RecordFlushPass records the outcome of a flush pass
func (m *Metrics) RecordFlushPass(result string, duration time.Duration) {
	m.flushPassesTotal.WithLabelValues(result).Inc()
	m.flushPassDuration.Observe(duration.Seconds())
	if result == "completed" {
		m.flushLastSuccessSeconds.SetToCurrentTime()
	}
}

// RecordFlushed records a conversation moved to the archive
func (m *Metrics) RecordFlushed() {
	m.flushedTotal.Inc()
}

// RecordFlushSkipped records a conversation skipped during a pass
func (m *Metrics) RecordFlushSkipped(reason string) {
	m.flushSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordFlushError records a per-conversation flush error
func (m *Metrics) RecordFlushError(stage string) {
	m.flushErrorsTotal.WithLabelValues(stage).Inc()
}

// Hand-off metrics

// RecordHandOff records a CSR hand-off
func (m *Metrics) RecordHandOff(kind string) {
	m.handOffsTotal.WithLabelValues(kind).Inc()
}

// RecordHandOffFailure records a failed CSR hand-off
func (m *Metrics) RecordHandOffFailure(reason string) {
	m.handOffFailedTotal.WithLabelValues(reason).Inc()
}

// RecordStatusChange records a conversation status transition
func (m *Metrics) RecordStatusChange(status string) {
	m.statusChangesTotal.WithLabelValues(status).Inc()
}

// SetAgentsOnline sets the online agent count
func (m *Metrics) SetAgentsOnline(count int) {
	m.agentsOnline.Set(float64(count))
}

// RecordMessage records a message appended to a conversation
func (m *Metrics) RecordMessage(source string) {
	m.messagesTotal.WithLabelValues(source).Inc()
}

// RecordFeedback records a feedback submission
func (m *Metrics) RecordFeedback() {
	m.feedbackTotal.Inc()
}
