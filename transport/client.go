// Package transport implements the endpoint shell that sits on top of
// the conn package's reliability engine: a Client dialed at one
// server, and a Server accepting many peers. Both are cooperative —
// neither spawns goroutines internally; the embedding application
// drives Update() at whatever cadence it chooses (spec.md §5), the
// same model the connection engine itself uses.
//
// Grounded on legume.udp.client.Client and legume.udp.server.Server
// (original_source/legume/udp/client.py, .../server.py), with the
// socket plumbing idiom taken from the teacher's
// source/server/server.go net.ListenUDP usage.
package transport

import (
	"math/rand"
	"net"
	"time"

	"github.com/ventosil/reliudp/clock"
	"github.com/ventosil/reliudp/conn"
	"github.com/ventosil/reliudp/internal/rlog"
	"github.com/ventosil/reliudp/reliudperr"
	"github.com/ventosil/reliudp/wire"
)

// State is a Client's connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Client dials a single remote reliudp server.
type Client struct {
	cfg      Config
	registry *wire.Registry
	clock    clock.Clock
	events   ClientEvents

	socket *net.UDPConn
	engine *conn.Connection
	state  State

	connectStartedAt time.Time
}

// NewClient constructs a Client. registry may be nil to use
// wire.DefaultRegistry.
func NewClient(cfg Config, registry *wire.Registry, clk clock.Clock, events ClientEvents) *Client {
	if registry == nil {
		registry = wire.DefaultRegistry
	}
	if clk == nil {
		clk = clock.Real{}
	}
	return &Client{
		cfg:      cfg,
		registry: registry,
		clock:    clk,
		events:   events,
		state:    StateDisconnected,
	}
}

// SendDatagram implements conn.Sender, applying the configured
// simulated packet loss before handing bytes to the socket.
func (c *Client) SendDatagram(b []byte) error {
	if c.cfg.SimulatedLossPercent > 0 && rand.Intn(100) < c.cfg.SimulatedLossPercent {
		return nil
	}
	_, err := c.socket.Write(b)
	if err != nil {
		return reliudperr.WrapNetworkEndpointError(err, "client send failed")
	}
	return nil
}

// Connect dials addr and queues the handshake request. Connect does
// not block: the request is transmitted by the next Update, and the
// caller must keep calling Update until State() reports
// StateConnected or StateErrored. A client still connecting once
// DialTimeout has elapsed moves to StateErrored on its next Update.
func (c *Client) Connect(addr string) error {
	if c.state == StateConnecting || c.state == StateConnected {
		return reliudperr.NewClientError("already connecting or connected")
	}
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return reliudperr.NewArgumentError("invalid server address %q: %v", addr, err)
	}
	if raddr.Port < 1 || raddr.Port > 65535 {
		return reliudperr.NewArgumentError("invalid server port %d: must be in [1, 65535]", raddr.Port)
	}
	socket, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return reliudperr.WrapNetworkEndpointError(err, "dial failed")
	}
	c.socket = socket

	metrics := conn.NewMetrics(c.cfg.MetricsRegisterer)
	c.engine = conn.New(false, c.cfg.Config, c.registry, c, c.clock, metrics)
	c.engine.OnConnectRequestAccepted = func() {
		c.state = StateConnected
		if c.events.OnConnected != nil {
			c.events.OnConnected()
		}
	}
	c.engine.OnConnectRequestRejected = func() {
		c.state = StateErrored
		if c.events.OnRejected != nil {
			c.events.OnRejected()
		}
	}
	c.engine.OnDisconnect = func() {
		c.state = StateDisconnected
		if c.events.OnDisconnected != nil {
			c.events.OnDisconnected()
		}
	}
	c.engine.OnError = func(err error) {
		c.state = StateErrored
		if c.events.OnError != nil {
			c.events.OnError(err)
		}
	}

	c.state = StateConnecting
	c.connectStartedAt = c.clock.Now()
	_, err = c.engine.SendReliable(wire.NewConnectRequest())
	return err
}

// State reports the client's current lifecycle state.
func (c *Client) State() State { return c.state }

// Latency returns the current round-trip latency estimate in
// milliseconds.
func (c *Client) Latency() float64 {
	if c.engine == nil {
		return 0
	}
	return c.engine.Latency()
}

// Stats returns the connection engine's counters.
func (c *Client) Stats() conn.Stats {
	if c.engine == nil {
		return conn.Stats{}
	}
	return c.engine.Stats()
}

// SendMessage sends an unreliable, unordered application message.
func (c *Client) SendMessage(msg *wire.Message) (int, error) {
	return c.send(msg, false, false)
}

// SendReliableMessage sends a message retransmitted until acked.
func (c *Client) SendReliableMessage(msg *wire.Message) (int, error) {
	return c.send(msg, false, true)
}

// SendOrderedMessage sends a message on the ordered channel.
func (c *Client) SendOrderedMessage(msg *wire.Message) (int, error) {
	return c.send(msg, true, false)
}

func (c *Client) send(msg *wire.Message, ordered, reliable bool) (int, error) {
	if c.state != StateConnected {
		return 0, reliudperr.NewClientError("cannot send while %s", c.state)
	}
	return c.engine.Send(msg, ordered, reliable)
}

// Disconnect initiates a graceful teardown; the caller should keep
// calling Update until HasOutgoing() is false before closing the
// socket.
func (c *Client) Disconnect() {
	if c.engine == nil {
		return
	}
	c.engine.InitiateDisconnect()
}

// HasOutgoing reports whether the engine still has queued output.
func (c *Client) HasOutgoing() bool {
	return c.engine != nil && c.engine.HasOutgoing()
}

// Close releases the underlying socket. Callers should Disconnect and
// drain HasOutgoing first for a graceful teardown.
func (c *Client) Close() error {
	if c.socket == nil {
		return nil
	}
	return c.socket.Close()
}

// Update drains every datagram currently queued on the socket (bounded
// by Config.ReadBudget so one burst cannot starve the caller's own
// loop), feeds them to the engine, advances engine timers, and returns
// whatever application messages were delivered this call. It also
// fires ClientEvents.OnMessage for each one, on top of returning them,
// so callers may use either style.
func (c *Client) Update() ([]*wire.Message, error) {
	if c.engine == nil {
		return nil, reliudperr.NewClientError("not connected")
	}
	buf := make([]byte, wire.MTU)
	for i := 0; i < c.cfg.ReadBudget; i++ {
		if err := c.socket.SetReadDeadline(time.Now()); err != nil {
			break
		}
		n, err := c.socket.Read(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			break
		}
		if err := c.engine.ProcessInboundDatagram(buf[:n]); err != nil {
			rlog.WithConn(c.engine.ID, "").Warnf("dropping malformed datagram: %v", err)
		}
	}

	now := c.clock.Now()
	messages, err := c.engine.Update(now)
	for _, m := range messages {
		if c.events.OnMessage != nil {
			c.events.OnMessage(m)
		}
	}
	if c.state == StateConnecting && now.Sub(c.connectStartedAt) > c.cfg.DialTimeout {
		c.state = StateErrored
	}
	return messages, err
}
