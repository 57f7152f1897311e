package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exposes relay metrics. A nil collector is valid and
// records nothing, so tests can run without touching the global registry.
type PrometheusCollector struct {
	connectionsActive prometheus.Gauge
	roomsActive       prometheus.Gauge
	connectionsTotal  prometheus.Counter

	eventsRelayedTotal *prometheus.CounterVec
	eventsDroppedTotal *prometheus.CounterVec

	roomMembers       *prometheus.GaugeVec
	voiceParticipants *prometheus.GaugeVec

	fanoutDuration prometheus.Histogram
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		connectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawza_relay_connections_active",
			Help: "Number of currently open relay connections",
		}),

		roomsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "drawza_relay_rooms_active",
			Help: "Number of rooms with at least one member",
		}),

		connectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "drawza_relay_connections_total",
			Help: "Total number of accepted relay connections",
		}),

		eventsRelayedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawza_relay_events_relayed_total",
			Help: "Total number of events fanned out to room members",
		}, []string{"type"}),

		eventsDroppedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "drawza_relay_events_dropped_total",
			Help: "Total number of events dropped (malformed, unknown or rate limited)",
		}, []string{"type", "reason"}),

		roomMembers: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawza_relay_room_members",
			Help: "Number of members per room",
		}, []string{"room_id"}),

		voiceParticipants: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "drawza_relay_voice_participants",
			Help: "Number of voice participants per room",
		}, []string{"room_id"}),

		fanoutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "drawza_relay_fanout_duration_seconds",
			Help:    "Duration of one event broadcast to a room",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		}),
	}
}

func (p *PrometheusCollector) RecordConnect() {
	if p == nil {
		return
	}
	p.connectionsTotal.Inc()
	p.connectionsActive.Inc()
}

func (p *PrometheusCollector) RecordDisconnect() {
	if p == nil {
		return
	}
	p.connectionsActive.Dec()
}

func (p *PrometheusCollector) RecordEventRelayed(eventType string) {
	if p == nil {
		return
	}
	p.eventsRelayedTotal.WithLabelValues(eventType).Inc()
}

func (p *PrometheusCollector) RecordEventDropped(eventType, reason string) {
	if p == nil {
		return
	}
	p.eventsDroppedTotal.WithLabelValues(eventType, reason).Inc()
}

func (p *PrometheusCollector) SetRoomsActive(count int) {
	if p == nil {
		return
	}
	p.roomsActive.Set(float64(count))
}

func (p *PrometheusCollector) SetRoomMembers(roomID string, count int) {
	if p == nil {
		return
	}
	if count <= 0 {
		p.roomMembers.DeleteLabelValues(roomID)
		return
	}
	p.roomMembers.WithLabelValues(roomID).Set(float64(count))
}

func (p *PrometheusCollector) SetVoiceParticipants(roomID string, count int) {
	if p == nil {
		return
	}
	if count <= 0 {
		p.voiceParticipants.DeleteLabelValues(roomID)
		return
	}
	p.voiceParticipants.WithLabelValues(roomID).Set(float64(count))
}

func (p *PrometheusCollector) ObserveFanout(d time.Duration) {
	if p == nil {
		return
	}
	p.fanoutDuration.Observe(d.Seconds())
}
