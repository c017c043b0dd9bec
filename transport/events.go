package transport

import "github.com/ventosil/reliudp/wire"

// ClientEvents groups the callbacks a Client fires. Unlike the
// predecessor's weak-reference Event/WeakMethod system (which drops a
// handler automatically once its bound receiver is garbage collected,
// original_source/legume/event.py), Go callbacks are ordinary closures
// held by strong reference: assign nil to stop receiving an event.
type ClientEvents struct {
	OnConnected    func()
	OnRejected     func()
	OnDisconnected func()
	OnError        func(error)
	OnMessage      func(msg *wire.Message)
}

// ServerEvents groups the callbacks a Server fires for its peer set.
// OnAccept decides whether to admit an incoming connection; leaving it
// nil accepts everyone.
type ServerEvents struct {
	OnAccept        func(msg *wire.Message, peer *Peer) bool
	OnPeerConnected func(peer *Peer)
	OnPeerDisconnected func(peer *Peer)
	OnPeerMessage   func(peer *Peer, msg *wire.Message)
	OnPeerError     func(peer *Peer, err error)
}
