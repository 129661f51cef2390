package someip

import "github.com/prometheus/client_golang/prometheus"

// Metrics are the Prometheus collectors this library registers for
// connection, pool, SD and reassembly observability (SPEC_FULL.md D1).
// They are registered against the default registry at package init, the
// same way a long-running service would expose them on its own /metrics
// endpoint; callers that do not want that can simply not scrape it.
var (
	connectionStateGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "someip",
		Subsystem: "connection",
		Name:      "state",
		Help:      "Current ConnectionState (1 if active) per managed connection, by endpoint and state label.",
	}, []string{"endpoint", "state"})

	connectionReconnectsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "connection",
		Name:      "reconnects_total",
		Help:      "Total reconnect attempts per managed connection.",
	}, []string{"endpoint"})

	connectionFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "connection",
		Name:      "failures_total",
		Help:      "Total connection failures per managed connection.",
	}, []string{"endpoint"})

	connectionBytesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "connection",
		Name:      "bytes_total",
		Help:      "Total bytes transferred per managed connection, by direction.",
	}, []string{"endpoint", "direction"})

	poolCheckoutsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "pool",
		Name:      "checkouts_total",
		Help:      "Total connection pool checkouts, by endpoint and whether a connection was reused.",
	}, []string{"endpoint", "reused"})

	poolReturnsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "pool",
		Name:      "returns_total",
		Help:      "Total connection pool returns, by endpoint.",
	}, []string{"endpoint"})

	poolEvictionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "pool",
		Name:      "evictions_total",
		Help:      "Total connections evicted from the pool for being idle or expired, by endpoint.",
	}, []string{"endpoint"})

	poolExhaustedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "pool",
		Name:      "exhausted_total",
		Help:      "Total Get calls rejected with ErrPoolLimitReached, by endpoint.",
	}, []string{"endpoint"})

	poolSizeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "someip",
		Subsystem: "pool",
		Name:      "size",
		Help:      "Current number of idle pooled connections, by endpoint.",
	}, []string{"endpoint"})

	reassemblyContextsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "someip",
		Subsystem: "tp",
		Name:      "reassembly_contexts",
		Help:      "Current number of in-progress SOME/IP-TP reassembly contexts.",
	})

	sdQueueDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "sd",
		Name:      "queue_dropped_total",
		Help:      "Total SD events/requests dropped because the decoded-event queue was full, by role and kind.",
	}, []string{"role", "kind"})

	reassemblyContextsDroppedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "someip",
		Subsystem: "tp",
		Name:      "reassembly_contexts_dropped_total",
		Help:      "Total reassembly contexts dropped because a configured ceiling was exceeded, by reason.",
	}, []string{"reason"})
)

func init() {
	prometheus.MustRegister(
		connectionStateGauge,
		connectionReconnectsTotal,
		connectionFailuresTotal,
		connectionBytesTotal,
		poolCheckoutsTotal,
		poolReturnsTotal,
		poolEvictionsTotal,
		poolExhaustedTotal,
		poolSizeGauge,
		reassemblyContextsGauge,
		sdQueueDroppedTotal,
		reassemblyContextsDroppedTotal,
	)
}

// observeConnectionState zeroes every other state's gauge for endpoint and
// sets the current one to 1, so a Prometheus query for this metric always
// shows exactly one active state per endpoint.
func observeConnectionState(endpoint string, state ConnectionState) {
	for s, name := range connectionStateNames {
		value := 0.0
		if s == state {
			value = 1.0
		}
		connectionStateGauge.WithLabelValues(endpoint, name).Set(value)
	}
}
