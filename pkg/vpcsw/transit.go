// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// Transmit injects frames into the switch as if sent by the switch itself. It
// implements vpc.Transmitter.
func (sw *Switch) Transmit(core int, pkts []*packet.Packet) {
	sw.transmitFrom(core, nil, pkts)
}

// transmitFrom runs one transit pass for frames entering through port in, or
// through the switch when in is nil
func (sw *Switch) transmitFrom(core int, in *Port, pkts []*packet.Packet) {
	if core < 0 || core >= sw.cores {
		sw.metrics.drop(dropBadCore, len(pkts))
		return
	}
	sw.transitOn(core, in, pkts)
}

func (sw *Switch) transitOn(core int, in *Port, pkts []*packet.Packet) {
	rec := sw.dom.Record(core)
	rec.Begin()
	defer rec.End()

	cache := sw.cache
	if in != nil {
		// the port may have been unbound since the caller looked at it
		if in.hooks.Load() == nil {
			sw.metrics.drop(dropUnbound, len(pkts))
			return
		}
		cache = in.cache
	}
	sw.transit(core, cache, pkts)
}

// transit resolves and delivers every frame of pkts. Consecutive frames for the
// same port are delivered together. pkts is reused as scratch space.
func (sw *Switch) transit(core int, cache destCache, pkts []*packet.Packet) {
	gen := sw.table.Snapshot()
	now := sw.now()

	var (
		out   *Port
		start int
		w     int
	)
	for _, p := range pkts {
		if p == nil {
			continue
		}
		if !p.Valid() {
			sw.metrics.drop(dropRunt, 1)
			continue
		}
		d := descriptorOf(p)
		if d.dst.IsMulticast() {
			sw.mcast(gen, p)
			continue
		}

		port := cache.lookup(core, d, now, sw.window, sw.ports)
		if port != nil {
			sw.metrics.hits.Inc()
		} else {
			sw.metrics.misses.Inc()
			if h, ok := gen.Lookup(d.dst); ok {
				if port = sw.ports.lookup(h); port != nil {
					cache.update(core, d, port, now)
				}
			}
			if port == nil {
				port = sw.uplink.Load()
			}
			if port == nil {
				sw.metrics.drop(dropNoRoute, 1)
				continue
			}
		}

		p.Out = port.handle
		if port != out {
			if w > start {
				sw.deliver(out, pkts[start:w])
			}
			out, start = port, w
		}
		pkts[w] = p
		w++
	}
	if w > start {
		sw.deliver(out, pkts[start:w])
	}
}

func (sw *Switch) deliver(port *Port, batch []*packet.Packet) {
	ep := port.endpoint()
	if ep == nil {
		sw.metrics.drop(dropNoEndpoint, len(batch))
		return
	}
	ep.Deliver(batch)
	sw.metrics.forwarded.Add(float64(len(batch)))
}
