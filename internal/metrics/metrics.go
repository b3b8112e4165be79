// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - REST call outcomes per endpoint
//   - Validation failures by source
//   - Stream messages by stream and kind
//   - Hub publishes and subscriber drops
//   - Journal rows by outcome
//
// A nil *Metrics is valid and records nothing, so components can take one
// unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "oanda"

// Metrics holds every collector the module exports.
type Metrics struct {
	RESTRequests       *prometheus.CounterVec
	ValidationFailures *prometheus.CounterVec
	StreamMessages     *prometheus.CounterVec
	HubPublished       prometheus.Counter
	HubDropped         prometheus.Counter
	HubSubscribers     prometheus.Gauge
	JournalRows        *prometheus.CounterVec
	JournalFlushes     prometheus.Counter
}

// New registers the collectors with reg. A nil reg creates unregistered
// collectors, which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RESTRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "rest",
			Name:      "requests_total",
			Help:      "REST calls by endpoint and outcome.",
		}, []string{"endpoint", "outcome"}),
		ValidationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Responses rejected by constraint validation.",
		}, []string{"source"}),
		StreamMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "stream",
			Name:      "messages_total",
			Help:      "Stream messages by stream and kind.",
		}, []string{"stream", "kind"}),
		HubPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "published_total",
			Help:      "Transaction ids published to the hub.",
		}),
		HubDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "dropped_total",
			Help:      "Transaction ids dropped from full subscriber queues.",
		}),
		HubSubscribers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "hub",
			Name:      "subscribers",
			Help:      "Currently attached hub subscribers.",
		}),
		JournalRows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "rows_total",
			Help:      "Journal rows by outcome (inserted, conflict, error).",
		}, []string{"outcome"}),
		JournalFlushes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "journal",
			Name:      "flushes_total",
			Help:      "Journal batch flushes.",
		}),
	}
}

// ObserveREST counts one REST call.
func (m *Metrics) ObserveREST(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.RESTRequests.WithLabelValues(endpoint, outcome).Inc()
}

// ValidationFailed counts one rejected response.
func (m *Metrics) ValidationFailed(source string) {
	if m == nil {
		return
	}
	m.ValidationFailures.WithLabelValues(source).Inc()
}

// StreamMessage counts one classified stream message.
func (m *Metrics) StreamMessage(stream, kind string) {
	if m == nil {
		return
	}
	m.StreamMessages.WithLabelValues(stream, kind).Inc()
}

// HubPublish counts one published id.
func (m *Metrics) HubPublish() {
	if m == nil {
		return
	}
	m.HubPublished.Inc()
}

// HubDrop counts one id dropped from a subscriber queue.
func (m *Metrics) HubDrop() {
	if m == nil {
		return
	}
	m.HubDropped.Inc()
}

// SetSubscribers records the current subscriber count.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.HubSubscribers.Set(float64(n))
}

// JournalRowsAdd counts n journal rows with the given outcome.
func (m *Metrics) JournalRowsAdd(outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.JournalRows.WithLabelValues(outcome).Add(float64(n))
}

// JournalFlush counts one writer flush.
func (m *Metrics) JournalFlush() {
	if m == nil {
		return
	}
	m.JournalFlushes.Inc()
}
