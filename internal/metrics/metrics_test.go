package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollectorCounts(t *testing.T) {
	c := NewPrometheusCollector()

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()
	c.RoomOpened()
	c.MessageReceived("join-room")
	c.MessageRelayed("signal-offer")
	c.MessageDropped("signal-offer", ReasonRecipientNotFound)
	c.MessageDropped("signal-offer", ReasonRecipientNotFound)

	if got := testutil.ToFloat64(c.activeConnections); got != 1 {
		t.Fatalf("active connections=%v, want 1", got)
	}
	if got := testutil.ToFloat64(c.connectionsTotal); got != 2 {
		t.Fatalf("connections total=%v, want 2", got)
	}
	if got := testutil.ToFloat64(c.activeRooms); got != 1 {
		t.Fatalf("active rooms=%v, want 1", got)
	}
	if got := testutil.ToFloat64(c.messagesDropped.WithLabelValues("signal-offer", ReasonRecipientNotFound)); got != 2 {
		t.Fatalf("dropped=%v, want 2", got)
	}
}

func TestPrometheusCollectorHandler(t *testing.T) {
	c := NewPrometheusCollector()
	c.MessageRelayed("signal-answer")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `huddle_relay_messages_relayed_total{event="signal-answer"} 1`) {
		t.Fatalf("metrics output missing relayed counter:\n%s", body)
	}
}

func TestCollectorsAreIndependent(t *testing.T) {
	// Two collectors must not panic on duplicate registration.
	a := NewPrometheusCollector()
	b := NewPrometheusCollector()
	a.RoomOpened()
	if got := testutil.ToFloat64(b.activeRooms); got != 0 {
		t.Fatalf("second collector saw %v rooms", got)
	}
}
