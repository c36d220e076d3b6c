// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"context"
	"net"
	"net/netip"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

var _ = ginkgo.Describe("Trap", func() {
	const vni = 100

	var (
		sw    *testSwitch
		sinkA *sink
	)

	arpFrom := func(src packet.MAC, target string) *packet.Packet {
		return overlay(arpRequest(src, net.ParseIP("10.0.0.1"), net.ParseIP(target)), vni)
	}

	readRequest := func(l vpc.Listener) *Request {
		ginkgo.GinkgoHelper()
		Eventually(l.Ready()).WithTimeout(time.Second).Should(Receive())
		buf := make([]byte, RequestSize)
		n, err := l.Read(buf)
		Expect(err).NotTo(HaveOccurred())
		Expect(n).To(Equal(RequestSize))
		req, err := UnmarshalRequest(buf)
		Expect(err).NotTo(HaveOccurred())
		return req
	}

	ginkgo.BeforeEach(func() {
		sw = newTestSwitch("trap")
		_, sinkA = sw.addPort(macA)
		sw.addPort(macB)
	})

	ginkgo.AfterEach(func() {
		sw.close()
	})

	ginkgo.Context("address resolution", func() {
		ginkgo.It("hands an overlay ARP request to the listener and answers it", func() {
			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			sw.Transmit(0, []*packet.Packet{arpFrom(macA, "10.0.0.5")})

			req := readRequest(l)
			Expect(req.Version).To(BeEquivalentTo(Version))
			Expect(req.Op).To(Equal(ReqNDv4))
			Expect(req.Target).To(Equal(netip.MustParseAddr("10.0.0.5")))
			Expect(req.SMAC).To(Equal(macA))
			Expect(req.VNI).To(BeEquivalentTo(vni))
			Expect(sinkA.packets()).To(BeEmpty(), "overlay broadcasts are not flooded")

			resolved := packet.MAC{0x02, 0, 0, 0, 0, 0x05}
			resp := Response{
				Header:  Header{Version: Version, Op: ReqNDv4},
				Context: req.Context,
				Ether:   resolved,
				Target:  req.Target,
			}
			rec, err := resp.Marshal()
			Expect(err).NotTo(HaveOccurred())
			_, err = sw.Ctl(context.Background(), vpc.OpResponseNDv4, rec)
			Expect(err).NotTo(HaveOccurred())

			got := sinkA.packets()
			Expect(got).To(HaveLen(1))
			Expect(got[0].VNI).To(BeEquivalentTo(vni))
			Expect(got[0].Overlay()).To(BeTrue())
			Expect(len(got[0].Data)).To(BeNumerically(">=", 60))

			decoded := gopacket.NewPacket(got[0].Data, layers.LayerTypeEthernet, gopacket.Default)
			eth, ok := decoded.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
			Expect(ok).To(BeTrue())
			Expect(eth.DstMAC).To(Equal(macA.HardwareAddr()))
			Expect(eth.SrcMAC).To(Equal(resolved.HardwareAddr()))
			arp, ok := decoded.Layer(layers.LayerTypeARP).(*layers.ARP)
			Expect(ok).To(BeTrue())
			Expect(arp.Operation).To(Equal(uint16(layers.ARPReply)))
			Expect(net.HardwareAddr(arp.SourceHwAddress)).To(Equal(resolved.HardwareAddr()))
			Expect(net.IP(arp.SourceProtAddress).String()).To(Equal("10.0.0.5"))
		})

		ginkgo.It("skips IPv6 frames", func() {
			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			sw.Transmit(0, []*packet.Packet{
				overlay(ipv6Multicast(macB), vni),
				arpFrom(macB, "10.0.0.9"),
			})
			req := readRequest(l)
			Expect(req.Op).To(Equal(ReqNDv4))
			Expect(req.SMAC).To(Equal(macB))
			Expect(sw.QueueLen()).To(BeZero())
		})

		ginkgo.It("rejects responses it cannot answer", func() {
			resp := Response{Header: Header{Version: Version, Op: ReqNDv4}, Target: netip.MustParseAddr("fd00::5")}
			Expect(sw.respondNDv4(&resp)).To(MatchError(vpc.ErrInvalid))
		})
	})

	ginkgo.Context("configuration", func() {
		ginkgo.It("hands a DHCP discover to the listener", func() {
			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			p := overlay(dhcpDiscover(macB), vni)
			p.SetVLAN(12)
			sw.Transmit(1, []*packet.Packet{p})

			req := readRequest(l)
			Expect(req.Op).To(Equal(ReqDHCPv4))
			Expect(req.SMAC).To(Equal(macB))
			Expect(req.VLAN).To(BeEquivalentTo(12))
			Expect(req.Target.IsValid()).To(BeFalse())
		})

		ginkgo.It("does not support configuration responses", func() {
			resp := Response{Header: Header{Version: Version, Op: ReqDHCPv4}, Client: netip.MustParseAddr("10.0.0.20")}
			rec, err := resp.Marshal()
			Expect(err).NotTo(HaveOccurred())
			_, err = sw.Ctl(context.Background(), vpc.OpResponseDHCPv4, rec)
			Expect(err).To(MatchError(vpc.ErrNotSupported))
		})
	})

	ginkgo.Context("request slot", func() {
		ginkgo.It("holds one request until it is read", func() {
			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			sw.Transmit(0, []*packet.Packet{arpFrom(macA, "10.0.0.5"), arpFrom(macA, "10.0.0.6")})

			Eventually(sw.QueueLen).Should(Equal(1))
			Consistently(sw.QueueLen, 50*time.Millisecond).Should(Equal(1))
			pending, ok := sw.Pending()
			Expect(ok).To(BeTrue())
			Expect(pending.Target).To(Equal(netip.MustParseAddr("10.0.0.5")))

			Expect(readRequest(l).Target).To(Equal(netip.MustParseAddr("10.0.0.5")))
			Expect(readRequest(l).Target).To(Equal(netip.MustParseAddr("10.0.0.6")))
			Expect(sw.QueueLen()).To(BeZero())

			_, err = l.Read(make([]byte, RequestSize))
			Expect(err).To(MatchError(vpc.ErrAgain))
		})

		ginkgo.It("signals a request extracted before the listener registered", func() {
			sw.Transmit(0, []*packet.Packet{arpFrom(macA, "10.0.0.7")})
			Eventually(func() bool {
				_, ok := sw.Pending()
				return ok
			}).Should(BeTrue())

			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()
			Expect(readRequest(l).Target).To(Equal(netip.MustParseAddr("10.0.0.7")))
		})

		ginkgo.It("fills the copyout buffer before signalling", func() {
			copyout := make([]byte, RequestSize)
			l, err := sw.Listen(copyout)
			Expect(err).NotTo(HaveOccurred())
			defer l.Close()

			sw.Transmit(0, []*packet.Packet{arpFrom(macA, "10.0.0.8")})
			Eventually(l.Ready()).Should(Receive(Equal(ReqNDv4)))

			req, err := UnmarshalRequest(copyout)
			Expect(err).NotTo(HaveOccurred())
			Expect(req.Target).To(Equal(netip.MustParseAddr("10.0.0.8")))

			n, err := l.Read(nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(BeZero())
			_, ok := sw.Pending()
			Expect(ok).To(BeFalse())
		})

		ginkgo.It("reports an empty queue", func() {
			Expect(sw.updateRequest()).To(MatchError(vpc.ErrNoBufs))
		})
	})

	ginkgo.Context("listener", func() {
		ginkgo.It("admits a single consumer", func() {
			l, err := sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())

			_, err = sw.Listen(nil)
			Expect(err).To(MatchError(vpc.ErrExists))

			l.Close()
			_, err = l.Read(nil)
			Expect(err).To(MatchError(vpc.ErrInvalid))

			l, err = sw.Listen(nil)
			Expect(err).NotTo(HaveOccurred())
			l.Close()
		})

		ginkgo.It("refuses a short copyout buffer", func() {
			_, err := sw.Listen(make([]byte, RequestSize-1))
			Expect(err).To(MatchError(vpc.ErrBadRPC))
		})
	})
})
