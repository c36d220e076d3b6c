// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

var (
	macA      = packet.MAC{0x02, 0, 0, 0, 0, 0x01}
	macB      = packet.MAC{0x02, 0, 0, 0, 0, 0x02}
	macC      = packet.MAC{0x02, 0, 0, 0, 0, 0x03}
	macX      = packet.MAC{0x02, 0, 0, 0, 0, 0x99}
	macUplink = packet.MAC{0x02, 0, 0, 0, 0, 0xee}
)

// fakeClock is advanced by hand
type fakeClock struct {
	now atomic.Int64
}

func (c *fakeClock) Now() time.Duration { return time.Duration(c.now.Load()) + time.Nanosecond }

func (c *fakeClock) Advance(d time.Duration) { c.now.Add(int64(d)) }

type testSwitch struct {
	*Switch
	reg   *vpc.Registry
	bus   *eventbus.EventBus
	clock *fakeClock
}

func newTestSwitch(name string) *testSwitch {
	return newTestSwitchIn(name, vpc.NewRegistry())
}

// newTestSwitchIn creates a switch whose ports live in reg
func newTestSwitchIn(name string, reg *vpc.Registry) *testSwitch {
	ts := &testSwitch{
		reg:   reg,
		bus:   eventbus.NewEventBus(),
		clock: &fakeClock{},
	}
	ts.Switch = New(vpc.NewID(packet.MAC{0x02, 0xff, 0, 0, 0, 0}), Config{
		Name:     name,
		VNI:      100,
		Cores:    2,
		Registry: ts.reg,
		Bus:      ts.bus,
		Clock:    ts.clock.Now,
	})
	return ts
}

func (ts *testSwitch) close() {
	_ = ts.Detach()
}

// addPort creates a member port with the given MAC and a collecting endpoint
func (ts *testSwitch) addPort(mac packet.MAC) (*Port, *sink) {
	p, err := ts.AddPort(vpc.NewID(mac))
	if err != nil {
		panic(err)
	}
	s := &sink{}
	p.SetEndpoint(s)
	return p, s
}

// sink records every batch delivered to a port
type sink struct {
	mu      sync.Mutex
	batches [][]*packet.Packet
}

func (s *sink) Deliver(pkts []*packet.Packet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, append([]*packet.Packet(nil), pkts...))
}

func (s *sink) packets() []*packet.Packet {
	s.mu.Lock()
	defer s.mu.Unlock()
	var all []*packet.Packet
	for _, b := range s.batches {
		all = append(all, b...)
	}
	return all
}

func (s *sink) batchSizes() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	sizes := make([]int, 0, len(s.batches))
	for _, b := range s.batches {
		sizes = append(sizes, len(b))
	}
	return sizes
}

// countingEndpoint does not allocate on delivery
type countingEndpoint struct {
	n atomic.Int64
}

func (c *countingEndpoint) Deliver(pkts []*packet.Packet) { c.n.Add(int64(len(pkts))) }

func ethFrame(dst, src packet.MAC, payload int) []byte {
	b := make([]byte, packet.EthHeaderLen+payload)
	copy(b[0:6], dst[:])
	copy(b[6:12], src[:])
	b[12], b[13] = 0x08, 0x00
	return b
}

func unicast(dst, src packet.MAC) *packet.Packet {
	return packet.New(ethFrame(dst, src, 46))
}

func serialize(ls ...gopacket.SerializableLayer) []byte {
	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buf, opts, ls...); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func arpRequest(src packet.MAC, sender, target net.IP) []byte {
	return serialize(
		&layers.Ethernet{SrcMAC: src.HardwareAddr(), DstMAC: packet.Broadcast.HardwareAddr(), EthernetType: layers.EthernetTypeARP},
		&layers.ARP{
			AddrType:          layers.LinkTypeEthernet,
			Protocol:          layers.EthernetTypeIPv4,
			HwAddressSize:     6,
			ProtAddressSize:   4,
			Operation:         layers.ARPRequest,
			SourceHwAddress:   src.HardwareAddr(),
			SourceProtAddress: sender.To4(),
			DstHwAddress:      make([]byte, 6),
			DstProtAddress:    target.To4(),
		},
	)
}

func dhcpDiscover(src packet.MAC) []byte {
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    net.IPv4zero.To4(),
		DstIP:    net.IPv4bcast.To4(),
	}
	udp := &layers.UDP{SrcPort: 68, DstPort: 67}
	_ = udp.SetNetworkLayerForChecksum(ip)
	dhcp := &layers.DHCPv4{
		Operation:    layers.DHCPOpRequest,
		HardwareType: layers.LinkTypeEthernet,
		HardwareLen:  6,
		Xid:          0x1234,
		ClientHWAddr: src.HardwareAddr(),
		Options: layers.DHCPOptions{
			layers.NewDHCPOption(layers.DHCPOptMessageType, []byte{byte(layers.DHCPMsgTypeDiscover)}),
		},
	}
	return serialize(
		&layers.Ethernet{SrcMAC: src.HardwareAddr(), DstMAC: packet.Broadcast.HardwareAddr(), EthernetType: layers.EthernetTypeIPv4},
		ip, udp, dhcp,
	)
}

func ipv6Multicast(src packet.MAC) []byte {
	ip := &layers.IPv6{
		Version:    6,
		HopLimit:   255,
		NextHeader: layers.IPProtocolUDP,
		SrcIP:      net.ParseIP("fe80::1"),
		DstIP:      net.ParseIP("ff02::1"),
	}
	udp := &layers.UDP{SrcPort: 546, DstPort: 547}
	_ = udp.SetNetworkLayerForChecksum(ip)
	return serialize(
		&layers.Ethernet{SrcMAC: src.HardwareAddr(), DstMAC: net.HardwareAddr{0x33, 0x33, 0, 0, 0, 1}, EthernetType: layers.EthernetTypeIPv6},
		ip, udp, gopacket.Payload([]byte{1, 2, 3, 4}),
	)
}

func overlay(data []byte, vni uint32) *packet.Packet {
	p := packet.New(data)
	p.SetVNI(vni)
	return p
}
