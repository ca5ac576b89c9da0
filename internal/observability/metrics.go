package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions  prometheus.Gauge
	sessionsTotal   prometheus.Counter
	sessionsCleared prometheus.Counter

	messagesTotal   *prometheus.CounterVec
	messageDuration prometheus.Histogram

	routingTotal    *prometheus.CounterVec
	escalationTotal *prometheus.CounterVec

	toolExecutionTotal    *prometheus.CounterVec
	toolExecutionDuration *prometheus.HistogramVec

	modelCallTotal    *prometheus.CounterVec
	modelCallDuration *prometheus.HistogramVec

	breakerOpen *prometheus.GaugeVec

	archiveWritesTotal *prometheus.CounterVec

	streamClients prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current live session count.",
				},
			),
			sessionsTotal: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_total",
					Help: "Total sessions started.",
				},
			),
			sessionsCleared: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_cleared_total",
					Help: "Total sessions cleared.",
				},
			),
			messagesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "messages_total",
					Help: "Total customer messages handled by outcome.",
				},
				[]string{"outcome"},
			),
			messageDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "message_duration_seconds",
					Help:    "End-to-end message handling duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			routingTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "routing_total",
					Help: "Total routing decisions by agent.",
				},
				[]string{"agent", "fallback"},
			),
			escalationTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "escalations_total",
					Help: "Total escalations by trigger category.",
				},
				[]string{"trigger"},
			),
			toolExecutionTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "tool_execution_total",
					Help: "Total tool executions by tool and status.",
				},
				[]string{"tool", "status"},
			),
			toolExecutionDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "tool_execution_duration_seconds",
					Help:    "Tool execution duration in seconds by tool.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"tool"},
			),
			modelCallTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "model_call_total",
					Help: "Total model calls by provider and status.",
				},
				[]string{"provider", "status"},
			),
			modelCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "model_call_duration_seconds",
					Help:    "Model call duration in seconds by provider.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"provider"},
			),
			breakerOpen: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "circuit_breaker_open",
					Help: "Circuit breaker open state by breaker (1 open, 0 closed).",
				},
				[]string{"breaker"},
			),
			archiveWritesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "archive_writes_total",
					Help: "Total archive writes by status.",
				},
				[]string{"status"},
			),
			streamClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "trace_stream_clients",
					Help: "Connected trace stream clients.",
				},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionsTotal,
			m.sessionsCleared,
			m.messagesTotal,
			m.messageDuration,
			m.routingTotal,
			m.escalationTotal,
			m.toolExecutionTotal,
			m.toolExecutionDuration,
			m.modelCallTotal,
			m.modelCallDuration,
			m.breakerOpen,
			m.archiveWritesTotal,
			m.streamClients,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	getMetrics().activeSessions.Set(float64(count))
}

func RecordSessionStarted() {
	m := getMetrics()
	m.sessionsTotal.Inc()
}

func RecordSessionCleared() {
	getMetrics().sessionsCleared.Inc()
}

func RecordMessage(outcome string, duration time.Duration) {
	m := getMetrics()
	m.messagesTotal.WithLabelValues(outcome).Inc()
	m.messageDuration.Observe(duration.Seconds())
}

func RecordRouting(agent string, fallback bool) {
	value := "no"
	if fallback {
		value = "yes"
	}
	getMetrics().routingTotal.WithLabelValues(agent, value).Inc()
}

func RecordEscalation(trigger string) {
	getMetrics().escalationTotal.WithLabelValues(trigger).Inc()
}

func RecordToolExecution(tool string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.toolExecutionTotal.WithLabelValues(tool, status).Inc()
	m.toolExecutionDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordModelCall(provider string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.modelCallTotal.WithLabelValues(provider, status).Inc()
	m.modelCallDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

func SetBreakerOpen(breaker string, open bool) {
	value := 0.0
	if open {
		value = 1.0
	}
	getMetrics().breakerOpen.WithLabelValues(breaker).Set(value)
}

func RecordArchiveWrite(success bool) {
	status := "error"
	if success {
		status = "success"
	}
	getMetrics().archiveWritesTotal.WithLabelValues(status).Inc()
}

func SetStreamClients(count int) {
	getMetrics().streamClients.Set(float64(count))
}
