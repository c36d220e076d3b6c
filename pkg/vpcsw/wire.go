// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"fmt"
	"net/netip"

	binarypack "github.com/roman-kachanovsky/go-binary-pack/binary-pack"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// Version is stamped in the header of every request and response record
const Version = 0x42

// Record layout: header {version, op}, context {vni, vlan, smac}, then a union
const (
	headerSize    = 8
	contextSize   = 12
	fixedSize     = headerSize + contextSize
	reqUnionSize  = 16
	respUnionSize = 52

	// RequestSize is the size of an encoded Request
	RequestSize = fixedSize + reqUnionSize
	// ResponseSize is the size of an encoded Response
	ResponseSize = fixedSize + respUnionSize
)

var fixedFormat = []string{"I", "I", "I", "H", "6s"}

// ReqOp is the kind of a trapped request
type ReqOp uint32

// Request kinds
const (
	ReqNDv4 ReqOp = iota + 1
	ReqNDv6
	ReqDHCPv4
	ReqDHCPv6
)

func (o ReqOp) String() string {
	switch o {
	case ReqNDv4:
		return "ndv4"
	case ReqNDv6:
		return "ndv6"
	case ReqDHCPv4:
		return "dhcpv4"
	case ReqDHCPv6:
		return "dhcpv6"
	default:
		return fmt.Sprintf("op%d", uint32(o))
	}
}

// Header starts every record
type Header struct {
	Version uint32
	Op      ReqOp
}

// Context identifies the requester
type Context struct {
	VNI  uint32
	VLAN uint16
	SMAC packet.MAC
}

// Request is one trapped address resolution or configuration request
type Request struct {
	Header
	Context
	// Target is the address being resolved, ND requests only
	Target netip.Addr
}

// Response answers a Request
type Response struct {
	Header
	Context
	// ND answers
	Ether  packet.MAC
	Target netip.Addr
	// DHCP answers
	Client    netip.Addr
	Gateway   netip.Addr
	DNS       netip.Addr
	PrefixLen uint8
}

func packFixed(b []byte, h Header, c Context) error {
	bp := new(binarypack.BinaryPack)
	out, err := bp.Pack(fixedFormat, []interface{}{
		int(h.Version), int(h.Op), int(c.VNI), int(c.VLAN), string(c.SMAC[:]),
	})
	if err != nil {
		return err
	}
	if len(out) != fixedSize {
		return fmt.Errorf("packed header is %d bytes", len(out))
	}
	copy(b, out)
	return nil
}

func unpackFixed(b []byte) (Header, Context, error) {
	var (
		h Header
		c Context
	)
	bp := new(binarypack.BinaryPack)
	vals, err := bp.UnPack(fixedFormat, b[:fixedSize])
	if err != nil {
		return h, c, fmt.Errorf("%w: %v", vpc.ErrBadRPC, err)
	}
	version, ok1 := vals[0].(int)
	op, ok2 := vals[1].(int)
	vni, ok3 := vals[2].(int)
	vlan, ok4 := vals[3].(int)
	smac, ok5 := vals[4].(string)
	if !ok1 || !ok2 || !ok3 || !ok4 || !ok5 {
		return h, c, vpc.ErrBadRPC
	}
	h.Version, h.Op = uint32(version), ReqOp(uint32(op))
	c.VNI, c.VLAN = uint32(vni), uint16(vlan)
	copy(c.SMAC[:], smac)
	return h, c, nil
}

func putAddr(b []byte, a netip.Addr) {
	if !a.IsValid() {
		return
	}
	copy(b, a.AsSlice())
}

func addr4(b []byte) netip.Addr {
	return netip.AddrFrom4([4]byte(b[:4]))
}

func addr16(b []byte) netip.Addr {
	return netip.AddrFrom16([16]byte(b[:16]))
}

// Marshal encodes the request into a RequestSize record
func (r *Request) Marshal() ([]byte, error) {
	b := make([]byte, RequestSize)
	if err := r.MarshalTo(b); err != nil {
		return nil, err
	}
	return b, nil
}

// MarshalTo encodes the request into b, which must hold RequestSize bytes
func (r *Request) MarshalTo(b []byte) error {
	if len(b) < RequestSize {
		return vpc.ErrBadRPC
	}
	if err := packFixed(b, r.Header, r.Context); err != nil {
		return err
	}
	u := b[fixedSize:RequestSize]
	clear(u)
	switch r.Op {
	case ReqNDv4:
		if r.Target.Is4() {
			putAddr(u[:4], r.Target)
		}
	case ReqNDv6:
		putAddr(u[:16], r.Target)
	}
	return nil
}

// UnmarshalRequest decodes a RequestSize record
func UnmarshalRequest(b []byte) (*Request, error) {
	if len(b) != RequestSize {
		return nil, vpc.ErrBadRPC
	}
	h, c, err := unpackFixed(b)
	if err != nil {
		return nil, err
	}
	r := &Request{Header: h, Context: c}
	u := b[fixedSize:]
	switch r.Op {
	case ReqNDv4:
		r.Target = addr4(u)
	case ReqNDv6:
		r.Target = addr16(u)
	}
	return r, nil
}

// Marshal encodes the response into a ResponseSize record
func (r *Response) Marshal() ([]byte, error) {
	b := make([]byte, ResponseSize)
	if err := packFixed(b, r.Header, r.Context); err != nil {
		return nil, err
	}
	u := b[fixedSize:]
	switch r.Op {
	case ReqNDv4:
		copy(u[0:6], r.Ether[:])
		if r.Target.Is4() {
			putAddr(u[8:12], r.Target)
		}
	case ReqNDv6:
		copy(u[0:6], r.Ether[:])
		putAddr(u[8:24], r.Target)
	case ReqDHCPv4:
		putAddr(u[0:4], r.Client)
		putAddr(u[4:8], r.Gateway)
		putAddr(u[8:12], r.DNS)
		u[12] = r.PrefixLen
	case ReqDHCPv6:
		putAddr(u[0:16], r.Client)
		putAddr(u[16:32], r.Gateway)
		putAddr(u[32:48], r.DNS)
		u[48] = r.PrefixLen
	}
	return b, nil
}

// UnmarshalResponse decodes a ResponseSize record. The union is interpreted
// according to op, the operation the record was submitted with.
func UnmarshalResponse(op ReqOp, b []byte) (*Response, error) {
	if len(b) != ResponseSize {
		return nil, vpc.ErrBadRPC
	}
	h, c, err := unpackFixed(b)
	if err != nil {
		return nil, err
	}
	r := &Response{Header: h, Context: c}
	u := b[fixedSize:]
	switch op {
	case ReqNDv4:
		copy(r.Ether[:], u[0:6])
		r.Target = addr4(u[8:12])
	case ReqNDv6:
		copy(r.Ether[:], u[0:6])
		r.Target = addr16(u[8:24])
	case ReqDHCPv4:
		r.Client, r.Gateway, r.DNS = addr4(u[0:4]), addr4(u[4:8]), addr4(u[8:12])
		r.PrefixLen = u[12]
	case ReqDHCPv6:
		r.Client, r.Gateway, r.DNS = addr16(u[0:16]), addr16(u[16:32]), addr16(u[32:48])
		r.PrefixLen = u[48]
	}
	return r, nil
}
