package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type PrometheusCollector struct {
	// Gauges, sampled from the stores
	connectionsActive  prometheus.Gauge
	roomsActive        prometheus.Gauge
	screenSharesActive prometheus.Gauge

	// Counters
	signalMessagesTotal *prometheus.CounterVec
	relayDeliveredTotal prometheus.Counter
	relayFailedTotal    prometheus.Counter

	// Histograms
	eventHandleDuration *prometheus.HistogramVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peercall_connections_active",
			Help: "Number of live websocket connections",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peercall_rooms_active",
			Help: "Number of rooms with at least one member",
		}),

		screenSharesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "peercall_screen_shares_active",
			Help: "Number of connections currently sharing a screen",
		}),

		signalMessagesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "peercall_signal_messages_total",
			Help: "Total inbound signaling messages by type",
		}, []string{"type"}),

		relayDeliveredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peercall_relay_deliveries_total",
			Help: "Total messages delivered to room peers",
		}),

		relayFailedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "peercall_relay_failures_total",
			Help: "Total peer deliveries that failed and were dropped",
		}),

		eventHandleDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "peercall_event_handle_duration_seconds",
			Help:    "Time spent handling one inbound event",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"type"}),
	}
}

func (p *PrometheusCollector) SetConnections(n int) {
	p.connectionsActive.Set(float64(n))
}

func (p *PrometheusCollector) SetRooms(n int) {
	p.roomsActive.Set(float64(n))
}

func (p *PrometheusCollector) SetActiveShares(n int) {
	p.screenSharesActive.Set(float64(n))
}

func (p *PrometheusCollector) RecordSignalMessage(messageType string) {
	p.signalMessagesTotal.WithLabelValues(messageType).Inc()
}

func (p *PrometheusCollector) RecordEventHandled(messageType string, duration time.Duration) {
	p.eventHandleDuration.WithLabelValues(messageType).Observe(duration.Seconds())
}

// RelayDelivered implements ports.RelayMetrics
func (p *PrometheusCollector) RelayDelivered(count int) {
	p.relayDeliveredTotal.Add(float64(count))
}

// RelayFailed implements ports.RelayMetrics
func (p *PrometheusCollector) RelayFailed(count int) {
	p.relayFailedTotal.Add(float64(count))
}
