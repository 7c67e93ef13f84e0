// Package metrics exposes the gateway's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event wait outcomes.
const (
	WaitTimeout = "timeout"
)

var (
	// Registry holds the gateway's Prometheus collectors.
	Registry = prometheus.NewRegistry()

	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casino_gateway",
			Name:      "submissions_total",
			Help:      "Transactions submitted to the execution layer.",
		},
		[]string{"kind", "outcome"},
	)

	nonceResyncs = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "casino_gateway",
			Name:      "nonce_resyncs_total",
			Help:      "Nonce resynchronizations after a nonce mismatch rejection.",
		},
	)

	eventWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casino_gateway",
			Name:      "event_waits_total",
			Help:      "Correlated event waits by resolving event kind.",
		},
		[]string{"outcome"},
	)

	eventWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "casino_gateway",
			Name:      "event_wait_seconds",
			Help:      "Time spent waiting for a correlated event.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 13), // 10ms to ~40s
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "casino_gateway",
			Name:      "active_sessions",
			Help:      "Connected client sessions.",
		},
	)

	messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casino_gateway",
			Name:      "messages_total",
			Help:      "Inbound client messages by type and result.",
		},
		[]string{"type", "success"},
	)
)

func init() {
	Registry.MustRegister(
		submissions,
		nonceResyncs,
		eventWaits,
		eventWaitDuration,
		activeSessions,
		messages,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// RecordSubmission counts one submission attempt.
func RecordSubmission(kind, outcome string) {
	if kind == "" {
		kind = "unknown"
	}
	submissions.WithLabelValues(kind, outcome).Inc()
}

// RecordNonceResync counts one nonce resynchronization.
func RecordNonceResync() {
	nonceResyncs.Inc()
}

// RecordEventWait records how a correlated wait resolved.
func RecordEventWait(outcome string, duration time.Duration) {
	eventWaits.WithLabelValues(outcome).Inc()
	eventWaitDuration.Observe(duration.Seconds())
}

// SessionOpened increments the active session gauge.
func SessionOpened() {
	activeSessions.Inc()
}

// SessionClosed decrements the active session gauge.
func SessionClosed() {
	activeSessions.Dec()
}

// RecordMessage counts one handled client message.
func RecordMessage(msgType string, success bool) {
	if msgType == "" {
		msgType = "unknown"
	}
	messages.WithLabelValues(msgType, strconv.FormatBool(success)).Inc()
}
