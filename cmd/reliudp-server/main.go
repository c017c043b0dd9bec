// Command reliudp-server is a generic chat-style example server,
// replacing the teacher's core/main.go hardcoded SA-MP configuration
// with real CLI flags (spf13/cobra). It logs every ChatMessage its
// peers send and sends no application messages itself. Grounded on
// original_source/examples/basic_clientserver/server.py.
package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ventosil/reliudp/internal/rlog"
	"github.com/ventosil/reliudp/transport"
	"github.com/ventosil/reliudp/wire"
)

const version = "1.0.0"

// ChatMessageDef is the example application message type registered
// above the builtin range, mirroring the minimal chat exchange shown
// in original_source/examples/basic_clientserver.
var ChatMessageDef = &wire.Definition{
	TypeID: wire.BaseUserTypeID,
	Name:   "ChatMessage",
	Fields: []wire.FieldSpec{
		{Name: "sender", Type: wire.FieldFixedString, Len: 24},
		{Name: "body", Type: wire.FieldVarString},
	},
}

func main() {
	var (
		listen        string
		timeout       time.Duration
		pingFrequency time.Duration
		mtu           int
		simulatedLoss int
	)

	cmd := &cobra.Command{
		Use:   "reliudp-server",
		Short: "Run a reliudp chat example server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rlog.Banner("RELIUDP Server", version)

			registry := wire.NewRegistry()
			if err := registry.Add(ChatMessageDef); err != nil {
				return err
			}

			cfg := transport.DefaultConfig()
			cfg.Timeout = timeout
			cfg.PingFrequency = pingFrequency
			cfg.MTU = mtu
			cfg.SimulatedLossPercent = simulatedLoss

			srv := transport.NewServer(cfg, registry, nil, transport.ServerEvents{
				OnPeerConnected: func(p *transport.Peer) {
					rlog.WithConn("", p.Addr.String()).Info("peer connected")
				},
				OnPeerDisconnected: func(p *transport.Peer) {
					rlog.WithConn("", p.Addr.String()).Info("peer disconnected")
				},
				OnPeerMessage: func(p *transport.Peer, msg *wire.Message) {
					if msg.Def != ChatMessageDef {
						return
					}
					rlog.WithConn("", p.Addr.String()).Infof("%s: %s", msg.String("sender"), msg.String("body"))
				},
			})

			if err := srv.Listen(listen); err != nil {
				return err
			}
			rlog.Section("Listening on " + listen)

			for {
				if err := srv.Update(); err != nil {
					rlog.Log.Warnf("server update: %v", err)
				}
				time.Sleep(5 * time.Millisecond)
			}
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "0.0.0.0:27805", "address to listen on")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "peer liveness timeout")
	cmd.Flags().DurationVar(&pingFrequency, "ping-frequency", 2*time.Second, "minimum interval between ping probes")
	cmd.Flags().IntVar(&mtu, "mtu", wire.MTU, "maximum datagram size in bytes")
	cmd.Flags().IntVar(&simulatedLoss, "simulated-loss", 0, "percentage of outbound datagrams to drop, for testing")

	if err := cmd.Execute(); err != nil {
		rlog.Log.Fatal(err)
	}
}
