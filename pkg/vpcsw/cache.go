// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"time"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// DefaultCacheWindow is how long a cached destination stays valid
const DefaultCacheWindow = 250 * time.Millisecond

// descriptor is what a cached resolution is keyed on
type descriptor struct {
	dst  packet.MAC
	vlan uint16
	vni  uint32
}

func descriptorOf(p *packet.Packet) descriptor {
	d := descriptor{dst: p.DstMAC()}
	if p.Tagged() {
		d.vlan = p.VLAN
	}
	if p.Overlay() {
		d.vni = p.VNI
	}
	return d
}

// cacheSlot is one core's most recent resolution, padded to its own cache line
type cacheSlot struct {
	desc  descriptor
	port  *Port
	stamp int64
	_     [32]byte
}

// destCache has one slot per core. A slot is only touched by its core.
type destCache []cacheSlot

func newDestCache(cores int) destCache {
	return make(destCache, cores)
}

// lookup returns the cached destination for d, or nil. A slot whose port has been
// removed from the switch is invalidated.
func (c destCache) lookup(core int, d descriptor, now, window int64, ports *portIndex) *Port {
	s := &c[core]
	if s.port == nil {
		return nil
	}
	if ports.lookup(s.port.handle) != s.port {
		s.port = nil
		return nil
	}
	if now-s.stamp >= window || s.desc != d {
		return nil
	}
	return s.port
}

func (c destCache) update(core int, d descriptor, port *Port, now int64) {
	s := &c[core]
	s.desc = d
	s.port = port
	s.stamp = now
}
