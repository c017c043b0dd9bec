package transport

import (
	"math/rand"
	"net"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ventosil/reliudp/clock"
	"github.com/ventosil/reliudp/conn"
	"github.com/ventosil/reliudp/internal/rlog"
	"github.com/ventosil/reliudp/reliudperr"
	"github.com/ventosil/reliudp/wire"
)

// Peer is one accepted connection on the Server side, pairing the
// connection engine with the address it talks to and a back-reference
// to the owning Server's socket.
type Peer struct {
	Addr      *net.UDPAddr
	engine    *conn.Connection
	server    *Server
	connected bool
}

// Connected reports whether this peer has completed the handshake.
func (p *Peer) Connected() bool { return p.connected }

// SendDatagram implements conn.Sender, writing to this peer's address
// over the server's single shared socket and applying simulated loss.
func (p *Peer) SendDatagram(b []byte) error {
	if p.server.cfg.SimulatedLossPercent > 0 && rand.Intn(100) < p.server.cfg.SimulatedLossPercent {
		return nil
	}
	_, err := p.server.socket.WriteToUDP(b, p.Addr)
	if err != nil {
		return reliudperr.WrapNetworkEndpointError(err, "server send to %s failed", p.Addr)
	}
	return nil
}

// Send sends an unreliable, unordered message to this peer. Sending
// to a peer that has begun disconnecting is a ServerError — the
// client-side equivalent (sending while not connected) is a
// ClientError, so the distinction is made here by the role-aware
// caller rather than inside the shared engine.
func (p *Peer) Send(msg *wire.Message) (int, error) { return p.send(msg, false, false) }

// SendReliable sends a message retransmitted until acked.
func (p *Peer) SendReliable(msg *wire.Message) (int, error) { return p.send(msg, false, true) }

// SendOrdered sends a message on the ordered channel.
func (p *Peer) SendOrdered(msg *wire.Message) (int, error) { return p.send(msg, true, false) }

func (p *Peer) send(msg *wire.Message, ordered, reliable bool) (int, error) {
	if p.engine.IsDisconnecting() {
		return 0, reliudperr.NewServerError("cannot send to peer %s: disconnecting", p.Addr)
	}
	return p.engine.Send(msg, ordered, reliable)
}

// Disconnect initiates a graceful teardown of this peer.
func (p *Peer) Disconnect() { p.engine.InitiateDisconnect() }

// Latency returns this peer's round-trip latency estimate in
// milliseconds.
func (p *Peer) Latency() float64 { return p.engine.Latency() }

// Stats returns this peer's connection counters.
func (p *Peer) Stats() conn.Stats { return p.engine.Stats() }

// Server accepts reliudp connections from many peers over one UDP
// socket. Grounded on legume.udp.server.Server
// (original_source/legume/udp/server.py) and the teacher's
// source/server/server.go listen loop, adapted to the cooperative
// update model instead of a background goroutine per packet.
type Server struct {
	cfg      Config
	registry *wire.Registry
	clock    clock.Clock
	events   ServerEvents
	metrics  *conn.Metrics

	socket *net.UDPConn
	peers  map[string]*Peer

	peerGauge prometheus.Gauge
}

// NewServer constructs a Server. registry may be nil to use
// wire.DefaultRegistry.
func NewServer(cfg Config, registry *wire.Registry, clk clock.Clock, events ServerEvents) *Server {
	if registry == nil {
		registry = wire.DefaultRegistry
	}
	if clk == nil {
		clk = clock.Real{}
	}
	reg := cfg.MetricsRegisterer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "reliudp_server_peers",
		Help: "Currently connected peers.",
	})
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			gauge = are.ExistingCollector.(prometheus.Gauge)
		}
	}
	return &Server{
		cfg:      cfg,
		registry: registry,
		clock:    clk,
		events:   events,
		metrics:  conn.NewMetrics(reg),
		peers:    make(map[string]*Peer),
		peerGauge: gauge,
	}
}

// Listen binds the server's UDP socket.
func (s *Server) Listen(addr string) error {
	laddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return reliudperr.NewArgumentError("invalid listen address %q: %v", addr, err)
	}
	socket, err := net.ListenUDP("udp", laddr)
	if err != nil {
		return reliudperr.WrapNetworkEndpointError(err, "listen failed")
	}
	s.socket = socket
	return nil
}

// Close releases the listening socket.
func (s *Server) Close() error {
	if s.socket == nil {
		return nil
	}
	return s.socket.Close()
}

// Peers returns a snapshot slice of peers that have completed the
// handshake.
func (s *Server) Peers() []*Peer {
	out := make([]*Peer, 0, len(s.peers))
	for _, p := range s.peers {
		if p.connected {
			out = append(out, p)
		}
	}
	return out
}

// SendToAll sends an unreliable message to every connected peer.
func (s *Server) SendToAll(msg *wire.Message) {
	for _, p := range s.Peers() {
		_, _ = p.Send(msg)
	}
}

// SendReliableToAll sends a reliable message to every connected peer.
func (s *Server) SendReliableToAll(msg *wire.Message) {
	for _, p := range s.Peers() {
		_, _ = p.SendReliable(msg)
	}
}

// SendOrderedToAll sends an ordered message to every connected peer.
func (s *Server) SendOrderedToAll(msg *wire.Message) {
	for _, p := range s.Peers() {
		_, _ = p.SendOrdered(msg)
	}
}

// DisconnectAll initiates a graceful teardown of every connected peer.
func (s *Server) DisconnectAll() {
	for _, p := range s.Peers() {
		p.Disconnect()
	}
}

// PeerStats returns the connection counters for the peer at addr, or
// false if no connected peer is known at that address.
func (s *Server) PeerStats(addr string) (conn.Stats, bool) {
	p, ok := s.peers[addr]
	if !ok || !p.connected {
		return conn.Stats{}, false
	}
	return p.Stats(), true
}

// Update drains every datagram currently queued on the socket (bounded
// by Config.ReadBudget), demultiplexing by source address into
// existing peers or admitting new ones via ServerEvents.OnAccept, then
// advances every peer's engine and fires ServerEvents.OnPeerMessage /
// OnPeerDisconnected as appropriate. A peer is reaped once its engine
// reports Dead() — it sent Disconnected, it timed out, or a
// self-initiated teardown finished draining its outbound queue — per
// spec.md §4.4 ("peers whose engine reports a disconnect or error are
// reaped after the current pass").
func (s *Server) Update() error {
	if s.socket == nil {
		return reliudperr.NewServerError("server is not listening")
	}
	buf := make([]byte, wire.MTU)
	for i := 0; i < s.cfg.ReadBudget; i++ {
		if err := s.socket.SetReadDeadline(time.Now()); err != nil {
			break
		}
		n, raddr, err := s.socket.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			break
		}
		s.routeInbound(buf[:n], raddr)
	}

	now := s.clock.Now()
	for key, p := range s.peers {
		messages, err := p.engine.Update(now)
		for _, m := range messages {
			if s.events.OnPeerMessage != nil {
				s.events.OnPeerMessage(p, m)
			}
		}
		if err != nil && s.events.OnPeerError != nil {
			s.events.OnPeerError(p, err)
		}
		if p.engine.Dead() {
			wasConnected := p.connected
			delete(s.peers, key)
			if wasConnected {
				s.peerGauge.Dec()
				if s.events.OnPeerDisconnected != nil {
					s.events.OnPeerDisconnected(p)
				}
			}
		}
	}
	return nil
}

func (s *Server) routeInbound(data []byte, raddr *net.UDPAddr) {
	key := raddr.String()
	p, known := s.peers[key]
	if !known {
		p = &Peer{Addr: raddr, server: s}
		p.engine = conn.New(true, s.cfg.Config, s.registry, p, s.clock, s.metrics)
		p.engine.OnConnectRequest = func(msg *wire.Message) bool {
			if s.events.OnAccept != nil {
				return s.events.OnAccept(msg, p)
			}
			return true
		}
		p.engine.OnConnectRequestAccepted = func() {
			p.connected = true
			s.peerGauge.Inc()
			if s.events.OnPeerConnected != nil {
				s.events.OnPeerConnected(p)
			}
		}
		p.engine.OnDisconnect = func() {
			rlog.WithConn(p.engine.ID, key).Debug("peer sent Disconnected")
		}
		p.engine.OnError = func(err error) {
			rlog.WithConn(p.engine.ID, key).Warnf("peer connection error: %v", err)
		}
		s.peers[key] = p
	}
	if err := p.engine.ProcessInboundDatagram(data); err != nil {
		rlog.WithConn(p.engine.ID, key).Warnf("dropping malformed datagram: %v", err)
	}
}
