// Command reliudp-client is the counterpart chat example client to
// reliudp-server, sending a fixed line of chat once connected.
// Grounded on original_source/examples/basic_clientserver/client.py.
package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ventosil/reliudp/internal/rlog"
	"github.com/ventosil/reliudp/transport"
	"github.com/ventosil/reliudp/wire"
)

const version = "1.0.0"

var chatMessageDef = &wire.Definition{
	TypeID: wire.BaseUserTypeID,
	Name:   "ChatMessage",
	Fields: []wire.FieldSpec{
		{Name: "sender", Type: wire.FieldFixedString, Len: 24},
		{Name: "body", Type: wire.FieldVarString},
	},
}

func main() {
	var (
		server        string
		name          string
		timeout       time.Duration
		pingFrequency time.Duration
		mtu           int
		simulatedLoss int
	)

	cmd := &cobra.Command{
		Use:   "reliudp-client",
		Short: "Connect to a reliudp chat example server",
		RunE: func(cmd *cobra.Command, args []string) error {
			rlog.Banner("RELIUDP Client", version)

			registry := wire.NewRegistry()
			if err := registry.Add(chatMessageDef); err != nil {
				return err
			}

			cfg := transport.DefaultConfig()
			cfg.Timeout = timeout
			cfg.PingFrequency = pingFrequency
			cfg.MTU = mtu
			cfg.SimulatedLossPercent = simulatedLoss

			var client *transport.Client
			client = transport.NewClient(cfg, registry, nil, transport.ClientEvents{
				OnConnected: func() {
					rlog.Log.Info("connected, sending greeting")
					msg := chatMessageDef.New()
					_ = msg.SetFixedString("sender", name)
					_ = msg.SetVarString("body", "hello from reliudp-client")
					if _, err := client.SendReliableMessage(msg); err != nil {
						rlog.Log.Warnf("send failed: %v", err)
					}
				},
				OnRejected:     func() { rlog.Log.Warn("connection rejected") },
				OnDisconnected: func() { rlog.Log.Info("disconnected") },
				OnError:        func(err error) { rlog.Log.Warnf("connection error: %v", err) },
				OnMessage: func(msg *wire.Message) {
					if msg.Def != chatMessageDef {
						return
					}
					rlog.Log.Infof("%s: %s", msg.String("sender"), msg.String("body"))
				},
			})

			if err := client.Connect(server); err != nil {
				return err
			}

			for {
				if _, err := client.Update(); err != nil {
					rlog.Log.Warnf("client update: %v", err)
				}
				time.Sleep(5 * time.Millisecond)
			}
		},
	}

	cmd.Flags().StringVar(&server, "server", "127.0.0.1:27805", "server address to connect to")
	cmd.Flags().StringVar(&name, "name", "anonymous", "chat display name")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "liveness timeout")
	cmd.Flags().DurationVar(&pingFrequency, "ping-frequency", 2*time.Second, "minimum interval between ping probes")
	cmd.Flags().IntVar(&mtu, "mtu", wire.MTU, "maximum datagram size in bytes")
	cmd.Flags().IntVar(&simulatedLoss, "simulated-loss", 0, "percentage of outbound datagrams to drop, for testing")

	if err := cmd.Execute(); err != nil {
		rlog.Log.Fatal(err)
	}
}
