// Package metrics exposes protocol counters as Prometheus metrics. The
// collector is optional: a nil *Collector is safe to call everywhere, so
// embedding the engine without a metrics pipeline costs nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	namespace = "spdm"
	subsystem = "engine"
)

// Label names.
const (
	labelRole = "role"
	labelCode = "code"
)

// Collector holds the engine's Prometheus metrics.
type Collector struct {
	// MessagesSent counts SPDM messages transmitted, labeled by role
	// (requester/responder) and request/response code.
	MessagesSent *prometheus.CounterVec

	// MessagesReceived counts SPDM messages received.
	MessagesReceived *prometheus.CounterVec

	// VerifyFailures counts signature and certificate verification
	// failures, labeled by role.
	VerifyFailures *prometheus.CounterVec

	// PeerErrors counts SPDM ERROR responses surfaced to the caller.
	PeerErrors *prometheus.CounterVec

	// SessionsActive tracks the number of sessions not in the NotStarted
	// or Terminating state.
	SessionsActive *prometheus.GaugeVec
}

// NewCollector creates a Collector registered against reg. If reg is nil,
// prometheus.DefaultRegisterer is used.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	c := &Collector{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_sent_total",
			Help:      "SPDM messages transmitted.",
		}, []string{labelRole, labelCode}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "messages_received_total",
			Help:      "SPDM messages received.",
		}, []string{labelRole, labelCode}),
		VerifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "verify_failures_total",
			Help:      "Signature and certificate verification failures.",
		}, []string{labelRole}),
		PeerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "peer_errors_total",
			Help:      "SPDM ERROR responses surfaced to the caller.",
		}, []string{labelRole}),
		SessionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sessions_active",
			Help:      "Sessions currently handshaking or established.",
		}, []string{labelRole}),
	}

	reg.MustRegister(
		c.MessagesSent,
		c.MessagesReceived,
		c.VerifyFailures,
		c.PeerErrors,
		c.SessionsActive,
	)
	return c
}

// Sent records a transmitted message. Nil-safe.
func (c *Collector) Sent(role, code string) {
	if c == nil {
		return
	}
	c.MessagesSent.WithLabelValues(role, code).Inc()
}

// Received records a received message. Nil-safe.
func (c *Collector) Received(role, code string) {
	if c == nil {
		return
	}
	c.MessagesReceived.WithLabelValues(role, code).Inc()
}

// VerifyFailure records a verification failure. Nil-safe.
func (c *Collector) VerifyFailure(role string) {
	if c == nil {
		return
	}
	c.VerifyFailures.WithLabelValues(role).Inc()
}

// PeerError records a surfaced peer error. Nil-safe.
func (c *Collector) PeerError(role string) {
	if c == nil {
		return
	}
	c.PeerErrors.WithLabelValues(role).Inc()
}

// SessionOpened and SessionClosed adjust the active-session gauge. Nil-safe.
func (c *Collector) SessionOpened(role string) {
	if c == nil {
		return
	}
	c.SessionsActive.WithLabelValues(role).Inc()
}

func (c *Collector) SessionClosed(role string) {
	if c == nil {
		return
	}
	c.SessionsActive.WithLabelValues(role).Dec()
}
