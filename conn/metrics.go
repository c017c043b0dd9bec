package conn

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors shared by every connection
// registered against one Registerer; each connection records against
// it using its own correlation id as the "conn" label, keeping
// invariant I5 (monotonically non-decreasing per-session counters)
// observable externally without per-connection metric proliferation.
type Metrics struct {
	InBytes      *prometheus.CounterVec
	OutBytes     *prometheus.CounterVec
	Keepalives   *prometheus.CounterVec
	AcksSent     *prometheus.CounterVec
	DedupDropped *prometheus.CounterVec
	LatencyMS    *prometheus.GaugeVec
}

// NewMetrics registers the connection-engine collector set against
// reg. Passing nil falls back to prometheus.DefaultRegisterer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		InBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reliudp_conn_in_bytes_total",
			Help: "Bytes received on a connection, header + body.",
		}, []string{"conn"}),
		OutBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reliudp_conn_out_bytes_total",
			Help: "Bytes transmitted on a connection, header + body.",
		}, []string{"conn"}),
		Keepalives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reliudp_conn_keepalive_total",
			Help: "Keep-alive requests sent (server) or received (client).",
		}, []string{"conn"}),
		AcksSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reliudp_conn_acks_sent_total",
			Help: "MessageAck control messages emitted.",
		}, []string{"conn"}),
		DedupDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reliudp_conn_dedup_dropped_total",
			Help: "Inbound messages discarded as duplicates.",
		}, []string{"conn"}),
		LatencyMS: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reliudp_conn_latency_ms",
			Help: "Most recent round-trip latency estimate in milliseconds.",
		}, []string{"conn"}),
	}
	m.InBytes = registerOrReuseCounterVec(reg, m.InBytes)
	m.OutBytes = registerOrReuseCounterVec(reg, m.OutBytes)
	m.Keepalives = registerOrReuseCounterVec(reg, m.Keepalives)
	m.AcksSent = registerOrReuseCounterVec(reg, m.AcksSent)
	m.DedupDropped = registerOrReuseCounterVec(reg, m.DedupDropped)
	m.LatencyMS = registerOrReuseGaugeVec(reg, m.LatencyMS)
	return m
}

// registerOrReuseCounterVec registers v, or - if a vector with the
// same fully-qualified name is already registered against reg (e.g. a
// second NewMetrics call against the shared default registerer in
// tests) - returns the already-registered instance instead, so every
// caller ends up recording against the same series.
func registerOrReuseCounterVec(reg prometheus.Registerer, v *prometheus.CounterVec) *prometheus.CounterVec {
	if err := reg.Register(v); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return v
}

func registerOrReuseGaugeVec(reg prometheus.Registerer, v *prometheus.GaugeVec) *prometheus.GaugeVec {
	if err := reg.Register(v); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing
			}
		}
	}
	return v
}
