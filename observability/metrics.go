package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the relay counters exposed on the debug server.
type Metrics struct {
	ConnectionsOnline   prometheus.Gauge
	EventsTotal         *prometheus.CounterVec
	EventErrors         *prometheus.CounterVec
	RoutingMisses       *prometheus.CounterVec
	Deliveries          *prometheus.CounterVec
	PersistenceFailures *prometheus.CounterVec
	PresenceWrites      *prometheus.CounterVec
	HandleLatency       *prometheus.HistogramVec
	StoreUp             prometheus.Gauge
	ProcessCPUPercent   prometheus.Gauge
	ProcessRSSBytes     prometheus.Gauge
	QueueLength         *prometheus.GaugeVec
	QueueCapacity       *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		ConnectionsOnline: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_identities_online",
			Help: "Identities currently holding a registered connection.",
		}),
		EventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_inbound_events_total",
			Help: "Inbound events handled, by kind.",
		}, []string{"kind"}),
		EventErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_event_errors_total",
			Help: "Inbound events dropped or partially failed, by error code.",
		}, []string{"code"}),
		RoutingMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_routing_misses_total",
			Help: "Outbound events not delivered because the target was offline.",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deliveries_total",
			Help: "Outbound events pushed to live connections, by kind and result.",
		}, []string{"kind", "result"}),
		PersistenceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_persistence_failures_total",
			Help: "Message store failures, by operation.",
		}, []string{"op"}),
		PresenceWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_presence_writes_total",
			Help: "Durable online flag writes, by result.",
		}, []string{"result"}),
		HandleLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_handle_latency_seconds",
			Help:    "Latency for handling inbound events.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		}, []string{"kind"}),
		StoreUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_store_up",
			Help: "1 when the last store probe succeeded.",
		}),
		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_process_cpu_percent",
			Help: "CPU usage of the relay process, sampled by the health probe.",
		}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "relay_process_rss_bytes",
			Help: "Resident memory of the relay process, sampled by the health probe.",
		}),
		QueueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_length",
			Help: "Pending items in internal queues, sampled periodically.",
		}, []string{"queue"}),
		QueueCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "relay_queue_capacity",
			Help: "Capacity of internal queues.",
		}, []string{"queue"}),
	}

	reg.MustRegister(
		m.ConnectionsOnline,
		m.EventsTotal,
		m.EventErrors,
		m.RoutingMisses,
		m.Deliveries,
		m.PersistenceFailures,
		m.PresenceWrites,
		m.HandleLatency,
		m.StoreUp,
		m.ProcessCPUPercent,
		m.ProcessRSSBytes,
		m.QueueLength,
		m.QueueCapacity,
	)
	return m
}
