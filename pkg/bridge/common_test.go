// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

package bridge

import (
	"context"
	"net"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

var (
	macA = packet.MAC{0x02, 0, 0, 0, 0, 0x01}
	macB = packet.MAC{0x02, 0, 0, 0, 0, 0x02}
)

type testEnv struct {
	reg    *vpc.Registry
	sw     *vpcsw.Switch
	opi    *Server
	server *grpc.Server
	conn   *grpc.ClientConn
	client *Client
}

func (e *testEnv) Close() {
	_ = e.conn.Close()
	e.server.Stop()
	_ = e.sw.Detach()
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{reg: vpc.NewRegistry()}
	env.sw = vpcsw.New(vpc.NewID(packet.MAC{0x02, 0xff, 0, 0, 0, 0}), vpcsw.Config{
		Name:     t.Name(),
		VNI:      100,
		Cores:    1,
		Registry: env.reg,
		Bus:      eventbus.NewEventBus(),
	})
	require.NoError(t, env.reg.Insert(env.sw.ID(), vpc.ObjSwitch, env.sw))
	env.opi = NewServerWithArgs(env.reg)

	listener := bufconn.Listen(1024 * 1024)
	env.server = grpc.NewServer()
	RegisterSwitchControlServer(env.server, env.opi)
	go func() {
		_ = env.server.Serve(listener)
	}()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithContextDialer(func(context.Context, string) (net.Conn, error) {
			return listener.Dial()
		}))
	require.NoError(t, err)
	env.conn = conn
	env.client = NewClient(conn)
	t.Cleanup(env.Close)
	return env
}

func arpRequest(src packet.MAC, target string) *packet.Packet {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true}
	err := gopacket.SerializeLayers(buf, opts,
		&layers.Ethernet{SrcMAC: src.HardwareAddr(), DstMAC: packet.Broadcast.HardwareAddr(), EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   src.HardwareAddr(),
			SourceProtAddress: net.ParseIP("10.0.0.1").To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    net.ParseIP(target).To4(),
		},
	)
	if err != nil {
		panic(err)
	}
	p := packet.New(buf.Bytes())
	p.SetVNI(100)
	return p
}
