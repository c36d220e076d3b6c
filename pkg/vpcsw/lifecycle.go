// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"errors"
	"fmt"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/ftable"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// PortEventTopic is the event bus topic carrying PortEvent
const PortEventTopic = "vpcsw.port"

// PortEvent reports a port added to or removed from a switch
type PortEvent struct {
	Switch     vpc.ID
	SwitchName string
	Port       vpc.ID
	MAC        packet.MAC
	Role       Role
	Deleted    bool
}

var errClosed = fmt.Errorf("switch is detached: %w", vpc.ErrInvalid)

func (sw *Switch) bind(p *Port) {
	p.vni = sw.vni
	p.hooks.Store(&bridgeHooks{switchID: sw.id, sw: sw})
}

func (sw *Switch) unbind(p *Port) {
	p.hooks.Store(nil)
}

func (sw *Switch) publishPort(p *Port, deleted bool) {
	sw.bus.Publish(PortEventTopic, &PortEvent{
		Switch:     sw.id,
		SwitchName: sw.name,
		Port:       p.id,
		MAC:        p.mac,
		Role:       p.role,
		Deleted:    deleted,
	})
}

// AddPort creates a member port for id and enters it in the forwarding table under
// the MAC carried by the identity. It returns once readers see the new table.
func (sw *Switch) AddPort(id vpc.ID) (*Port, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil, errClosed
	}
	if _, _, ok := sw.reg.Lookup(id); ok {
		return nil, fmt.Errorf("port %s: %w", id, vpc.ErrExists)
	}

	p := newPort(id, RoleMember, sw.cores+1)
	h, err := sw.ports.alloc(p)
	if err != nil {
		return nil, fmt.Errorf("port %s: %w", id, err)
	}
	if err := sw.table.Insert(p.mac, h); err != nil {
		sw.ports.clear(h)
		sw.ports.release(h)
		if errors.Is(err, ftable.ErrExists) {
			return nil, fmt.Errorf("mac %s already in use: %w", p.mac, vpc.ErrExists)
		}
		return nil, err
	}
	if err := sw.reg.Insert(id, vpc.ObjPort, p); err != nil {
		_, _ = sw.table.Remove(p.mac)
		sw.ports.clear(h)
		sw.ports.release(h)
		return nil, err
	}
	sw.bind(p)
	sw.members[id] = p
	gen := sw.table.Publish()

	sw.log.Infof("AddPort(): port %s mac %s handle %d generation %d", id, p.mac, h, gen.Seq())
	sw.publishPort(p, false)
	return p, nil
}

// DeletePort removes a member port from the forwarding table and destroys it. It
// returns once no reader can still reach the port.
func (sw *Switch) DeletePort(id vpc.ID) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return errClosed
	}
	p, ok := sw.members[id]
	if !ok || !sw.table.Contains(p.mac) {
		return fmt.Errorf("port %s: %w", id, vpc.ErrNotFound)
	}

	if n := sw.reg.Refs(id); n != 0 {
		return fmt.Errorf("port %s has %d handles: %w", id, n, vpc.ErrBusy)
	}

	if _, err := sw.table.Remove(p.mac); err != nil {
		return fmt.Errorf("port %s: %w", id, vpc.ErrNotFound)
	}
	sw.ports.clear(p.handle)
	gen := sw.table.Publish()
	// no reader can reach the port any more, frames it sends while answering the
	// last deliveries still enter the switch up to here
	sw.unbind(p)
	sw.dom.Synchronize()

	p.cache = nil
	sw.ports.release(p.handle)
	if err := sw.reg.Remove(id); err != nil {
		sw.log.Warnf("DeletePort(): port %s: %v", id, err)
	}
	delete(sw.members, id)

	sw.log.Infof("DeletePort(): port %s mac %s generation %d", id, p.mac, gen.Seq())
	sw.publishPort(p, true)
	return nil
}

// SetUplink creates the uplink port. It is not entered in the forwarding table and
// receives every frame whose destination is unknown.
func (sw *Switch) SetUplink(id vpc.ID) (*Port, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil, errClosed
	}
	if sw.uplink.Load() != nil {
		return nil, fmt.Errorf("uplink %s already set: %w", sw.uplinkID, vpc.ErrExists)
	}
	if _, _, ok := sw.reg.Lookup(id); ok {
		return nil, fmt.Errorf("port %s: %w", id, vpc.ErrExists)
	}

	p := newPort(id, RoleUplink, sw.cores+1)
	if _, err := sw.ports.alloc(p); err != nil {
		return nil, fmt.Errorf("uplink %s: %w", id, err)
	}
	if err := sw.reg.Insert(id, vpc.ObjPort, p); err != nil {
		sw.ports.clear(p.handle)
		sw.ports.release(p.handle)
		return nil, err
	}
	sw.bind(p)
	sw.uplinkID = id
	sw.uplink.Store(p)

	sw.log.Infof("SetUplink(): uplink %s mac %s", id, p.mac)
	sw.publishPort(p, false)
	return p, nil
}

// Uplink returns the identity of the uplink port
func (sw *Switch) Uplink() (vpc.ID, error) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.uplink.Load() == nil {
		return vpc.Nil, fmt.Errorf("uplink: %w", vpc.ErrNotFound)
	}
	return sw.uplinkID, nil
}
