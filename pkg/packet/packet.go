// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package packet holds the frame buffer and tagging metadata carried through the switch
package packet

import (
	"fmt"
	"net"
)

// Ethernet header layout
const (
	MACLen        = 6
	EthHeaderLen  = 14
	ethDstOffset  = 0
	ethSrcOffset  = 6
	ethTypeOffset = 12
)

// MaxCompactLen is the largest frame that will be duplicated for the trap path
const MaxCompactLen = 2048

// MAC is a 48-bit hardware address usable as a comparable key
type MAC [MACLen]byte

// Broadcast is the all-ones hardware address
var Broadcast = MAC{0xff, 0xff, 0xff, 0xff, 0xff, 0xff}

// ParseMAC parses any textual form accepted by net.ParseMAC into a MAC
func ParseMAC(s string) (MAC, error) {
	var m MAC
	hw, err := net.ParseMAC(s)
	if err != nil {
		return m, err
	}
	if len(hw) != MACLen {
		return m, fmt.Errorf("%s is not a 48-bit address", s)
	}
	copy(m[:], hw)
	return m, nil
}

// MACFrom copies a net.HardwareAddr into a MAC, reporting whether it was 48 bits
func MACFrom(hw net.HardwareAddr) (MAC, bool) {
	var m MAC
	if len(hw) != MACLen {
		return m, false
	}
	copy(m[:], hw)
	return m, true
}

// IsMulticast reports whether the group bit is set, which includes broadcast
func (m MAC) IsMulticast() bool {
	return m[0]&0x01 != 0
}

// HardwareAddr returns a copy of m as a net.HardwareAddr
func (m MAC) HardwareAddr() net.HardwareAddr {
	hw := make(net.HardwareAddr, MACLen)
	copy(hw, m[:])
	return hw
}

func (m MAC) String() string {
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", m[0], m[1], m[2], m[3], m[4], m[5])
}

// Flags carries the tagging metadata attached to a frame by the owning interface
type Flags uint16

const (
	// FlagVLAN marks VLAN as valid
	FlagVLAN Flags = 1 << iota
	// FlagOverlay marks VNI as valid, the frame belongs to an overlay segment
	FlagOverlay
	// FlagTrunk marks a frame received on a trunk that is already encapsulated
	FlagTrunk
)

// Packet is one Ethernet frame plus metadata. Data holds the frame starting at the
// Ethernet header; VLAN tags travel in metadata, not inline.
type Packet struct {
	Data  []byte
	Flags Flags
	VLAN  uint16
	VNI   uint32
	// Out is the handle of the port the switch resolved as destination
	Out uint16
}

// New returns a packet around data with no tags
func New(data []byte) *Packet {
	return &Packet{Data: data}
}

// Valid reports whether the frame is long enough to carry an Ethernet header
func (p *Packet) Valid() bool {
	return len(p.Data) >= EthHeaderLen
}

// DstMAC returns the destination address. The caller checks Valid first.
func (p *Packet) DstMAC() (m MAC) {
	copy(m[:], p.Data[ethDstOffset:ethDstOffset+MACLen])
	return m
}

// SrcMAC returns the source address. The caller checks Valid first.
func (p *Packet) SrcMAC() (m MAC) {
	copy(m[:], p.Data[ethSrcOffset:ethSrcOffset+MACLen])
	return m
}

// EtherType returns the type field of the Ethernet header
func (p *Packet) EtherType() uint16 {
	return uint16(p.Data[ethTypeOffset])<<8 | uint16(p.Data[ethTypeOffset+1])
}

// Overlay reports whether the frame carries an overlay id
func (p *Packet) Overlay() bool { return p.Flags&FlagOverlay != 0 }

// Trunk reports whether the frame arrived on a trunk
func (p *Packet) Trunk() bool { return p.Flags&FlagTrunk != 0 }

// Tagged reports whether the frame carries a VLAN id
func (p *Packet) Tagged() bool { return p.Flags&FlagVLAN != 0 }

// SetVNI attaches an overlay id, zero clears it
func (p *Packet) SetVNI(vni uint32) {
	p.VNI = vni
	if vni == 0 {
		p.Flags &^= FlagOverlay
		return
	}
	p.Flags |= FlagOverlay
}

// SetVLAN attaches a VLAN id, zero clears it
func (p *Packet) SetVLAN(vlan uint16) {
	p.VLAN = vlan
	if vlan == 0 {
		p.Flags &^= FlagVLAN
		return
	}
	p.Flags |= FlagVLAN
}

// Clone duplicates the frame and its metadata into a buffer of exactly the frame length
func (p *Packet) Clone() *Packet {
	c := *p
	c.Data = make([]byte, len(p.Data))
	copy(c.Data, p.Data)
	return &c
}

// Compact is Clone restricted to frames that fit MaxCompactLen, nil otherwise
func (p *Packet) Compact() *Packet {
	if len(p.Data) > MaxCompactLen {
		return nil
	}
	return p.Clone()
}
