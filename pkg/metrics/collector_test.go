package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.Sent("requester", "request")
	c.Sent("requester", "request")
	c.Received("requester", "response")
	c.VerifyFailure("requester")
	c.PeerError("requester")
	c.SessionOpened("requester")
	c.SessionOpened("requester")
	c.SessionClosed("requester")

	if got := testutil.ToFloat64(c.MessagesSent.WithLabelValues("requester", "request")); got != 2 {
		t.Errorf("messages sent = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.MessagesReceived.WithLabelValues("requester", "response")); got != 1 {
		t.Errorf("messages received = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.VerifyFailures.WithLabelValues("requester")); got != 1 {
		t.Errorf("verify failures = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.SessionsActive.WithLabelValues("requester")); got != 1 {
		t.Errorf("sessions active = %v, want 1", got)
	}
}

// A nil collector is a no-op so embedding without metrics costs nothing.
func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Sent("requester", "request")
	c.Received("requester", "response")
	c.VerifyFailure("requester")
	c.PeerError("requester")
	c.SessionOpened("requester")
	c.SessionClosed("requester")
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("NewCollector returned nil")
	}
	defer func() {
		if recover() == nil {
			t.Errorf("duplicate registration did not panic")
		}
	}()
	NewCollector(reg)
}
