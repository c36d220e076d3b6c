// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// MaxPorts bounds the number of ports, uplink included, a switch can hold
const MaxPorts = 4096

// Role of a port on its switch
type Role uint8

const (
	// RoleMember ports are entered in the forwarding table under their MAC
	RoleMember Role = iota
	// RoleUplink is the default route for unknown destinations
	RoleUplink
)

func (r Role) String() string {
	if r == RoleUplink {
		return "uplink"
	}
	return "member"
}

// Endpoint receives the frames the switch forwards to a port. The slice is only
// valid for the duration of the call; the packets themselves are handed over.
type Endpoint interface {
	Deliver(pkts []*packet.Packet)
}

// EndpointFunc adapts a function to Endpoint
type EndpointFunc func(pkts []*packet.Packet)

// Deliver calls f
func (f EndpointFunc) Deliver(pkts []*packet.Packet) { f(pkts) }

type endpointRef struct {
	Endpoint
}

// bridgeHooks is installed on a port while it is bound to a switch. Clearing it is
// what detaches the port from the switch. sw is a non-owning back reference: the
// switch owns its ports, and the reference is dropped on unbind.
type bridgeHooks struct {
	switchID vpc.ID
	sw       *Switch
}

// Port is a virtual interface attached to a switch
type Port struct {
	id     vpc.ID
	mac    packet.MAC
	role   Role
	handle uint16
	vni    uint32
	cache  destCache
	hooks  atomic.Pointer[bridgeHooks]
	ep     atomic.Pointer[endpointRef]
}

func newPort(id vpc.ID, role Role, cores int) *Port {
	return &Port{
		id:    id,
		mac:   id.MAC(),
		role:  role,
		cache: newDestCache(cores),
	}
}

// ID returns the port identity
func (p *Port) ID() vpc.ID { return p.id }

// MAC returns the port hardware address, taken from its identity
func (p *Port) MAC() packet.MAC { return p.mac }

// Role returns the port role
func (p *Port) Role() Role { return p.role }

// Handle returns the switch local port handle
func (p *Port) Handle() uint16 { return p.handle }

// SwitchID returns the switch the port is bound to, vpc.Nil when unbound
func (p *Port) SwitchID() vpc.ID {
	if h := p.hooks.Load(); h != nil {
		return h.switchID
	}
	return vpc.Nil
}

// SetEndpoint installs the receiver of frames forwarded to the port. nil removes it.
func (p *Port) SetEndpoint(ep Endpoint) {
	if ep == nil {
		p.ep.Store(nil)
		return
	}
	p.ep.Store(&endpointRef{ep})
}

func (p *Port) endpoint() Endpoint {
	if r := p.ep.Load(); r != nil {
		return r.Endpoint
	}
	return nil
}

// Transmit sends frames from the port's host side into the switch
func (p *Port) Transmit(core int, pkts []*packet.Packet) {
	h := p.hooks.Load()
	if h == nil {
		return
	}
	h.sw.transmitFrom(core, p, pkts)
}

// Input feeds frames received by a bridged interface into the switch. It is the
// entry point used by the uplink.
func (p *Port) Input(core int, pkts []*packet.Packet) {
	p.Transmit(core, pkts)
}

// Ctl implements vpc.Driver. Ports have no control operations of their own.
func (p *Port) Ctl(context.Context, vpc.Op, []byte) ([]byte, error) {
	return nil, vpc.ErrNotSupported
}

// ObjectInfo implements vpc.Driver
func (p *Port) ObjectInfo() vpc.ObjectInfo {
	return vpc.ObjectInfo{Type: vpc.ObjPort, ID: p.id, VNI: p.vni}
}

// Detach implements vpc.Driver. Bound ports are destroyed through their switch.
func (p *Port) Detach() error {
	if p.hooks.Load() != nil {
		return vpc.ErrBusy
	}
	return nil
}

// portIndex resolves port handles to ports without locks. Slot 0 is never used.
type portIndex struct {
	slots []atomic.Pointer[Port]
	mu    sync.Mutex
	free  []uint16
	next  uint16
}

func newPortIndex() *portIndex {
	return &portIndex{slots: make([]atomic.Pointer[Port], MaxPorts+1), next: 1}
}

func (x *portIndex) alloc(p *Port) (uint16, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	var h uint16
	switch {
	case len(x.free) > 0:
		h = x.free[len(x.free)-1]
		x.free = x.free[:len(x.free)-1]
	case int(x.next) <= MaxPorts:
		h = x.next
		x.next++
	default:
		return 0, vpc.ErrNoBufs
	}
	p.handle = h
	x.slots[h].Store(p)
	return h, nil
}

// clear makes h unresolvable. The handle is not reusable until release.
func (x *portIndex) clear(h uint16) {
	x.slots[h].Store(nil)
}

// release returns h to the free list. Callers wait for quiescence first.
func (x *portIndex) release(h uint16) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.free = append(x.free, h)
}

func (x *portIndex) lookup(h uint16) *Port {
	if int(h) >= len(x.slots) {
		return nil
	}
	return x.slots[h].Load()
}
