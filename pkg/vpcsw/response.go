// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// arpReply builds the Ethernet ARP reply that answers an ND-v4 response
func arpReply(resp *Response) ([]byte, error) {
	if !resp.Target.Is4() {
		return nil, fmt.Errorf("target %s is not ipv4: %w", resp.Target, vpc.ErrInvalid)
	}
	resolved := resp.Ether.HardwareAddr()
	target := resp.Target.As4()

	eth := &layers.Ethernet{
		SrcMAC:       resolved,
		DstMAC:       resp.SMAC.HardwareAddr(),
		EthernetType: layers.EthernetTypeARP,
	}
	arp := &layers.ARP{
		AddrType:          layers.LinkTypeEthernet,
		Protocol:          layers.EthernetTypeIPv4,
		HwAddressSize:     packet.MACLen,
		ProtAddressSize:   4,
		Operation:         layers.ARPReply,
		SourceHwAddress:   resolved,
		SourceProtAddress: target[:],
		DstHwAddress:      resolved,
		DstProtAddress:    target[:],
	}
	buf := gopacket.NewSerializeBuffer()
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{}, eth, arp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// respondNDv4 turns a resolved address into an ARP reply and sends it through the
// switch to the requester
func (sw *Switch) respondNDv4(resp *Response) error {
	frame, err := arpReply(resp)
	if err != nil {
		return err
	}
	p := packet.New(frame)
	p.SetVNI(resp.VNI)
	p.SetVLAN(resp.VLAN)
	sw.inject([]*packet.Packet{p})
	sw.metrics.response(ReqNDv4)
	sw.log.Debugf("respondNDv4(): %s is-at %s for %s", resp.Target, resp.Ether, resp.SMAC)
	return nil
}

// inject runs a transit pass on the control core
func (sw *Switch) inject(pkts []*packet.Packet) {
	sw.ctlMu.Lock()
	defer sw.ctlMu.Unlock()
	sw.transitOn(sw.ctlCore(), nil, pkts)
}
