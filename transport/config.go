package transport

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ventosil/reliudp/conn"
)

// Config carries every endpoint-level tunable, embedding the
// connection engine's own Config (conn.DefaultConfig) and adding the
// knobs that only make sense once a real socket is involved.
type Config struct {
	conn.Config

	// DialTimeout bounds how long a Client stays in StateConnecting
	// waiting for a ConnectRequestAccepted/Rejected before Update moves
	// it to StateErrored.
	DialTimeout time.Duration

	// MetricsRegisterer is the Prometheus registry connection and
	// server metrics are registered against. Nil falls back to
	// prometheus.DefaultRegisterer.
	MetricsRegisterer prometheus.Registerer

	// ReadBudget bounds how many datagrams a single Update call will
	// drain from the socket before yielding back to the caller, so a
	// flood from one peer cannot starve the others sharing this
	// cooperative update loop.
	ReadBudget int
}

// DefaultConfig returns the spec-mandated defaults layered with
// reasonable endpoint-level defaults.
func DefaultConfig() Config {
	return Config{
		Config:      conn.DefaultConfig(),
		DialTimeout: 5 * time.Second,
		ReadBudget:  256,
	}
}
