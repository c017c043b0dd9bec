package conn

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ventosil/reliudp/clock"
	"github.com/ventosil/reliudp/wire"
)

// fakeSender records every datagram handed to it, and can route them
// straight into a peer connection's ProcessInboundDatagram to simulate
// a loopback link without touching a real socket.
type fakeSender struct {
	sent [][]byte
	peer *Connection
}

func (s *fakeSender) SendDatagram(b []byte) error {
	cp := append([]byte(nil), b...)
	s.sent = append(s.sent, cp)
	if s.peer != nil {
		return s.peer.ProcessInboundDatagram(cp)
	}
	return nil
}

func newTestPair(t *testing.T) (client, server *Connection, clk *clock.Manual) {
	t.Helper()
	clk = clock.NewManual(time.Unix(1_700_000_000, 0))
	cfg := DefaultConfig()
	reg := wire.DefaultRegistry

	clientSender := &fakeSender{}
	serverSender := &fakeSender{}

	client = New(false, cfg, reg, clientSender, clk, nil)
	server = New(true, cfg, reg, serverSender, clk, nil)

	clientSender.peer = server
	serverSender.peer = client
	return client, server, clk
}

func TestHandshakeAcceptedFlow(t *testing.T) {
	client, server, clk := newTestPair(t)

	var accepted bool
	client.OnConnectRequestAccepted = func() { accepted = true }
	server.OnConnectRequest = func(*wire.Message) bool { return true }

	_, err := client.SendReliable(wire.NewConnectRequest())
	require.NoError(t, err)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)

	_, err = server.Update(clk.Now())
	require.NoError(t, err)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)

	assert.True(t, accepted)
}

func TestHandshakeRejectedFlow(t *testing.T) {
	client, server, clk := newTestPair(t)

	var rejected bool
	client.OnConnectRequestRejected = func() { rejected = true }
	server.OnConnectRequest = func(*wire.Message) bool { return false }

	_, err := client.SendReliable(wire.NewConnectRequest())
	require.NoError(t, err)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	_, err = server.Update(clk.Now())
	require.NoError(t, err)
	_, err = client.Update(clk.Now())
	require.NoError(t, err)

	assert.True(t, rejected)
	assert.True(t, server.IsDisconnecting())
}

var (
	chatMessageDef = &wire.Definition{
		TypeID: wire.BaseUserTypeID,
		Name:   "Chat",
		Fields: []wire.FieldSpec{{Name: "body", Type: wire.FieldVarString}},
	}
	bigMessageDef = &wire.Definition{
		TypeID: wire.BaseUserTypeID + 1,
		Name:   "Big",
		Fields: []wire.FieldSpec{{Name: "body", Type: wire.FieldVarString}},
	}
)

func init() {
	_ = wire.DefaultRegistry.Add(chatMessageDef, bigMessageDef)
}

func chatDef() *wire.Definition { return chatMessageDef }

func TestUnreliableDeliveryAndNoRetransmit(t *testing.T) {
	client, server, clk := newTestPair(t)
	def := chatDef()

	msg := def.New()
	require.NoError(t, msg.SetVarString("body", "hello"))

	_, err := client.Send(msg, false, false)
	require.NoError(t, err)

	delivered, err := client.Update(clk.Now())
	require.NoError(t, err)
	assert.Empty(t, delivered)

	got, err := server.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "hello", got[0].String("body"))

	assert.False(t, client.HasOutgoing())
}

func TestReliableMessageRetransmitsUntilAcked(t *testing.T) {
	client, server, clk := newTestPair(t)
	def := chatDef()
	msg := def.New()
	require.NoError(t, msg.SetVarString("body", "reliable-ping"))

	clientSender := client.sender.(*fakeSender)
	clientSender.peer = nil // drop the datagram the first time, simulating loss

	_, err := client.SendReliable(msg)
	require.NoError(t, err)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	assert.True(t, client.HasOutgoing(), "record must persist until acked")
	firstAttempt := len(clientSender.sent)
	assert.Equal(t, 1, firstAttempt)

	// Immediately retrying is not yet eligible (resend window not
	// elapsed).
	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	assert.Equal(t, firstAttempt, len(clientSender.sent))

	// Advance past the resend window (no ping estimate yet, so pacing
	// falls back to the default RTT rather than MinResendDelay) and
	// reconnect the link so the retransmit actually reaches the server.
	clk.Advance(defaultRTT + 10*time.Millisecond)
	clientSender.peer = server

	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	assert.Greater(t, len(clientSender.sent), firstAttempt)

	got, err := server.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	assert.False(t, client.HasOutgoing(), "ack must clear the retained record")
}

func TestOrderedDeliveryHoldsOutOfOrderMessages(t *testing.T) {
	client, server, clk := newTestPair(t)
	def := chatDef()

	clientSender := client.sender.(*fakeSender)
	clientSender.peer = nil // intercept manually to control arrival order

	var frames [][]byte
	for _, body := range []string{"one", "two", "three"} {
		m := def.New()
		require.NoError(t, m.SetVarString("body", body))
		_, err := client.SendOrdered(m)
		require.NoError(t, err)
		_, err = client.Update(clk.Now())
		require.NoError(t, err)
		require.NotEmpty(t, clientSender.sent)
		frames = append(frames, clientSender.sent[len(clientSender.sent)-1])
		clk.Advance(20 * time.Millisecond)
	}

	require.NoError(t, server.ProcessInboundDatagram(frames[2]))
	got, err := server.Update(clk.Now())
	require.NoError(t, err)
	assert.Empty(t, got, "message 3 must park until 1 and 2 arrive")

	require.NoError(t, server.ProcessInboundDatagram(frames[0]))
	got, err = server.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "one", got[0].String("body"))

	require.NoError(t, server.ProcessInboundDatagram(frames[1]))
	got, err = server.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 2, "message 2 arriving should flush the parked message 3 too")
	assert.Equal(t, "two", got[0].String("body"))
	assert.Equal(t, "three", got[1].String("body"))
}

func TestDuplicateMessageIsDropped(t *testing.T) {
	client, server, clk := newTestPair(t)
	def := chatDef()
	m := def.New()
	require.NoError(t, m.SetVarString("body", "x"))

	clientSender := client.sender.(*fakeSender)
	clientSender.peer = nil

	_, err := client.Send(m, false, false)
	require.NoError(t, err)
	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, clientSender.sent, 1)

	require.NoError(t, server.ProcessInboundDatagram(clientSender.sent[0]))
	require.NoError(t, server.ProcessInboundDatagram(clientSender.sent[0]))

	got, err := server.Update(clk.Now())
	require.NoError(t, err)
	require.Len(t, got, 1, "second delivery of the same message id must be suppressed")
}

func TestPingProducesLatencyEstimate(t *testing.T) {
	client, server, clk := newTestPair(t)

	assert.Equal(t, float64(0), client.Latency())

	clk.Advance(client.cfg.PingFrequency)
	_, err := client.Update(clk.Now())
	require.NoError(t, err)

	clk.Advance(15 * time.Millisecond)
	_, err = server.Update(clk.Now())
	require.NoError(t, err)

	_, err = client.Update(clk.Now())
	require.NoError(t, err)

	assert.True(t, client.pingSampler.HasEstimate())
	assert.Greater(t, client.Latency(), float64(0))
}

func TestTimeoutSurfacesAsAsyncError(t *testing.T) {
	client, _, clk := newTestPair(t)

	clk.Advance(client.cfg.Timeout + time.Second)
	_, err := client.Update(clk.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestTimeoutMarksConnectionDeadOnce(t *testing.T) {
	client, _, clk := newTestPair(t)

	clk.Advance(client.cfg.Timeout + time.Second)
	_, err := client.Update(clk.Now())
	require.Error(t, err)
	assert.True(t, client.Dead())

	// A subsequent Update must not keep re-raising the same timeout.
	_, err = client.Update(clk.Now())
	require.NoError(t, err)
	assert.True(t, client.Dead())
}

func TestReceivedDisconnectedMarksConnectionDeadImmediately(t *testing.T) {
	client, server, clk := newTestPair(t)

	var disconnected bool
	server.OnDisconnect = func() { disconnected = true }

	client.InitiateDisconnect()
	_, err := client.Update(clk.Now())
	require.NoError(t, err)

	_, err = server.Update(clk.Now())
	require.NoError(t, err)

	assert.True(t, disconnected)
	assert.True(t, server.Dead(), "receiver must transition to dead immediately on receipt, regardless of its own outbound queue")
}

func TestSendRejectsOversizeMessage(t *testing.T) {
	client, _, clk := newTestPair(t)
	_ = clk

	m := bigMessageDef.New()
	big := make([]byte, 2000)
	require.NoError(t, m.SetVarString("body", string(big)))

	_, err := client.Send(m, false, false)
	require.Error(t, err)
}
