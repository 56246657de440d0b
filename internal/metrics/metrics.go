package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons reported by the relay.
const (
	ReasonRecipientNotFound = "recipient_not_found"
	ReasonSelfAddressed     = "self_addressed"
	ReasonMalformed         = "malformed"
	ReasonRateLimited       = "rate_limited"
	ReasonSlowConsumer      = "slow_consumer"
	ReasonUnknownEvent      = "unknown_event"
)

// Collector defines the interface for relay metrics collection
type Collector interface {
	// Connection metrics
	ConnectionOpened()
	ConnectionClosed()

	// Room metrics
	RoomOpened()
	RoomClosed()

	// Signaling metrics
	MessageReceived(event string)
	MessageRelayed(event string)
	MessageDropped(event, reason string)

	// Handler returns an HTTP handler for the metrics endpoint
	Handler() http.Handler
}

// PrometheusCollector implements the Collector interface using Prometheus
type PrometheusCollector struct {
	registry *prometheus.Registry

	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	activeRooms       prometheus.Gauge
	roomsTotal        prometheus.Counter

	messagesReceived *prometheus.CounterVec
	messagesRelayed  *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
}

// NewPrometheusCollector creates a collector on its own registry so that
// several relays (as in tests) never collide on registration.
func NewPrometheusCollector() *PrometheusCollector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusCollector{
		registry: reg,

		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_relay_active_connections",
			Help: "Number of open signaling connections",
		}),
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_connections_total",
			Help: "Total number of signaling connections accepted",
		}),
		activeRooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "huddle_relay_active_rooms",
			Help: "Number of rooms with at least one member",
		}),
		roomsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "huddle_relay_rooms_total",
			Help: "Total number of rooms created",
		}),

		messagesReceived: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_relay_messages_received_total",
				Help: "Messages received from clients, by event",
			},
			[]string{"event"},
		),
		messagesRelayed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_relay_messages_relayed_total",
				Help: "Messages delivered to a recipient queue, by event",
			},
			[]string{"event"},
		),
		messagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_relay_messages_dropped_total",
				Help: "Messages dropped by the relay, by event and reason",
			},
			[]string{"event", "reason"},
		),
	}
}

func (c *PrometheusCollector) ConnectionOpened() {
	c.activeConnections.Inc()
	c.connectionsTotal.Inc()
}

func (c *PrometheusCollector) ConnectionClosed() {
	c.activeConnections.Dec()
}

func (c *PrometheusCollector) RoomOpened() {
	c.activeRooms.Inc()
	c.roomsTotal.Inc()
}

func (c *PrometheusCollector) RoomClosed() {
	c.activeRooms.Dec()
}

func (c *PrometheusCollector) MessageReceived(event string) {
	c.messagesReceived.WithLabelValues(event).Inc()
}

func (c *PrometheusCollector) MessageRelayed(event string) {
	c.messagesRelayed.WithLabelValues(event).Inc()
}

func (c *PrometheusCollector) MessageDropped(event, reason string) {
	c.messagesDropped.WithLabelValues(event, reason).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint
func (c *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) ConnectionOpened()             {}
func (Nop) ConnectionClosed()             {}
func (Nop) RoomOpened()                   {}
func (Nop) RoomClosed()                   {}
func (Nop) MessageReceived(string)        {}
func (Nop) MessageRelayed(string)         {}
func (Nop) MessageDropped(string, string) {}
func (Nop) Handler() http.Handler         { return http.NotFoundHandler() }
