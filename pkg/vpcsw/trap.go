// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"context"
	"errors"
	"net/netip"
	"sync"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

var (
	errNotRequest = errors.New("frame carries no request")
	errIPv6       = errors.New("ipv6 requests are not handled")
)

const (
	dhcpClientPort = 68
	dhcpServerPort = 67
)

// trapState is the single pending request slot and its consumer
type trapState struct {
	mu        sync.Mutex
	available bool
	pending   *Request
	copyout   []byte
	listener  *listener
	kick      chan struct{}
}

func (sw *Switch) trapTopic() string {
	return "vpcsw.trap." + sw.id.String()
}

// kick wakes the extraction task. It never blocks.
func (sw *Switch) kick() {
	select {
	case sw.trap.kick <- struct{}{}:
	default:
	}
}

func (sw *Switch) runTrap(ctx context.Context) {
	defer sw.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-sw.trap.kick:
			if err := sw.updateRequest(); err != nil && !errors.Is(err, vpc.ErrNoBufs) {
				sw.log.Warnf("runTrap(): %v", err)
			}
		}
	}
}

// updateRequest fills the request slot from the flood queue when the slot is free.
// It returns vpc.ErrNoBufs when the queue ran dry without producing a request.
func (sw *Switch) updateRequest() error {
	t := &sw.trap
	t.mu.Lock()
	defer t.mu.Unlock()

	for t.available {
		p := sw.flood.pop()
		if p == nil {
			return vpc.ErrNoBufs
		}
		req, err := extractRequest(p)
		switch {
		case errors.Is(err, errIPv6):
			sw.log.Debugf("updateRequest(): dropping ipv6 frame from %s", p.SrcMAC())
			continue
		case err != nil:
			continue
		}
		t.pending = req
		t.available = false
		if t.copyout != nil {
			if err := req.MarshalTo(t.copyout); err != nil {
				sw.log.Errorf("updateRequest(): copyout failed: %v", err)
			}
		}
		sw.metrics.request(req.Op)
		sw.log.Debugf("updateRequest(): %s request from %s vni %d vlan %d", req.Op, req.SMAC, req.VNI, req.VLAN)
		sw.bus.Notify(sw.trapTopic(), req.Op)
	}
	return nil
}

// extractRequest parses a queued frame into a control-plane request
func extractRequest(p *packet.Packet) (*Request, error) {
	pkt := gopacket.NewPacket(p.Data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	eth, ok := pkt.Layer(layers.LayerTypeEthernet).(*layers.Ethernet)
	if !ok {
		return nil, errNotRequest
	}
	req := &Request{Header: Header{Version: Version}}
	copy(req.SMAC[:], eth.SrcMAC)
	if p.Overlay() {
		req.VNI = p.VNI
	}
	if p.Tagged() {
		req.VLAN = p.VLAN
	}

	if arp, ok := pkt.Layer(layers.LayerTypeARP).(*layers.ARP); ok {
		if arp.Operation != layers.ARPRequest || len(arp.DstProtAddress) != 4 {
			return nil, errNotRequest
		}
		req.Op = ReqNDv4
		req.Target = netip.AddrFrom4([4]byte(arp.DstProtAddress))
		return req, nil
	}
	if pkt.Layer(layers.LayerTypeIPv6) != nil {
		return nil, errIPv6
	}
	if pkt.Layer(layers.LayerTypeIPv4) != nil {
		if udp, ok := pkt.Layer(layers.LayerTypeUDP).(*layers.UDP); ok &&
			udp.SrcPort == dhcpClientPort && udp.DstPort == dhcpServerPort {
			req.Op = ReqDHCPv4
			return req, nil
		}
	}
	return nil, errNotRequest
}

// listener is the single consumer of a switch's requests
type listener struct {
	sw  *Switch
	sub *eventbus.Subscriber
}

// Listen registers the consumer of trapped requests. Only one consumer may be
// registered at a time. When copyout is set, each request is also encoded into it
// before the consumer is signalled.
func (sw *Switch) Listen(copyout []byte) (vpc.Listener, error) {
	if copyout != nil && len(copyout) < RequestSize {
		return nil, vpc.ErrBadRPC
	}
	t := &sw.trap
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != nil {
		return nil, vpc.ErrExists
	}
	l := &listener{sw: sw, sub: sw.bus.Subscribe(sw.name, sw.trapTopic(), 0, 1)}
	t.listener = l
	t.copyout = copyout
	if t.pending != nil {
		if copyout != nil {
			_ = t.pending.MarshalTo(copyout)
		}
		sw.bus.Notify(sw.trapTopic(), t.pending.Op)
	}
	sw.kick()
	return l, nil
}

// Poll asks the extraction task to look at the flood queue
func (sw *Switch) Poll() {
	sw.kick()
}

// Pending returns a copy of the request awaiting consumption, if any
func (sw *Switch) Pending() (Request, bool) {
	sw.trap.mu.Lock()
	defer sw.trap.mu.Unlock()
	if sw.trap.pending == nil {
		return Request{}, false
	}
	return *sw.trap.pending, true
}

func (l *listener) Ready() <-chan interface{} {
	return l.sub.Ch
}

// Read copies the pending request into buf and frees the slot for the next one
func (l *listener) Read(buf []byte) (int, error) {
	t := &l.sw.trap
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != l {
		return 0, vpc.ErrInvalid
	}
	if t.pending == nil {
		return 0, vpc.ErrAgain
	}
	n := 0
	if buf != nil {
		if err := t.pending.MarshalTo(buf); err != nil {
			return 0, err
		}
		n = RequestSize
	}
	t.pending = nil
	t.available = true
	l.sw.kick()
	return n, nil
}

func (l *listener) Close() {
	t := &l.sw.trap
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.listener != l {
		return
	}
	l.sw.bus.UnsubscribeEvent(l.sub, l.sw.trapTopic())
	t.listener = nil
	t.copyout = nil
}
