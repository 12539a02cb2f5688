// Package metrics holds the pipeline's prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	messages        *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	notifications   *prometheus.CounterVec
	metadataUpdates *prometheus.CounterVec
}

// New registers the collectors with reg. A nil reg leaves them unregistered,
// which is what tests want.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagepipe",
			Name:      "messages_total",
			Help:      "Messages handled per queue, by outcome.",
		}, []string{"queue", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "imagepipe",
			Name:      "handler_duration_seconds",
			Help:      "Time spent handling a single message.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"queue"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagepipe",
			Name:      "notifications_total",
			Help:      "Notifications dispatched, by kind and result.",
		}, []string{"kind", "result"}),
		metadataUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "imagepipe",
			Name:      "metadata_updates_total",
			Help:      "Metadata update requests, by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.messages, m.handlerDuration, m.notifications, m.metadataUpdates)
	}
	return m
}

// The methods below accept a nil receiver so components can run without
// metrics.

func (m *Metrics) Message(queue, outcome string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(queue, outcome).Inc()
}

func (m *Metrics) ObserveHandler(queue string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(queue).Observe(d.Seconds())
}

func (m *Metrics) Notification(kind, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) MetadataUpdate(result string) {
	if m == nil {
		return
	}
	m.metadataUpdates.WithLabelValues(result).Inc()
}
