// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"sync"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/ftable"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// FloodQueueLen bounds the frames waiting for the trap path
const FloodQueueLen = 128

// floodQueue is a FIFO of overlay broadcast frames. Pushing onto a full queue
// drops the oldest frame.
type floodQueue struct {
	mu   sync.Mutex
	buf  [FloodQueueLen]*packet.Packet
	head int
	n    int
}

// push appends p and returns the frame evicted to make room, if any
func (q *floodQueue) push(p *packet.Packet) *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	var evicted *packet.Packet
	if q.n == FloodQueueLen {
		evicted = q.buf[q.head]
		q.buf[q.head] = nil
		q.head = (q.head + 1) % FloodQueueLen
		q.n--
	}
	q.buf[(q.head+q.n)%FloodQueueLen] = p
	q.n++
	return evicted
}

func (q *floodQueue) pop() *packet.Packet {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.n == 0 {
		return nil
	}
	p := q.buf[q.head]
	q.buf[q.head] = nil
	q.head = (q.head + 1) % FloodQueueLen
	q.n--
	return p
}

func (q *floodQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func (q *floodQueue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := q.n
	for i := range q.buf {
		q.buf[i] = nil
	}
	q.head, q.n = 0, 0
	return n
}

// mcast handles a frame with a group destination. Overlay frames go to the trap
// path, plain frames are flooded right away, anything else is refused.
func (sw *Switch) mcast(gen *ftable.Generation, p *packet.Packet) {
	switch {
	case p.Overlay() && !p.Trunk():
		c := p.Compact()
		if c == nil {
			sw.metrics.drop(dropOversize, 1)
			return
		}
		if sw.flood.push(c) != nil {
			sw.metrics.evicted.Inc()
		}
		sw.metrics.queued.Inc()
		sw.kick()
	case !p.Overlay():
		sw.floodAll(gen, p)
	default:
		sw.metrics.drop(dropInvalid, 1)
	}
}

// floodAll sends a copy of p to every port in the published table
func (sw *Switch) floodAll(gen *ftable.Generation, p *packet.Packet) {
	gen.Walk(func(_ packet.MAC, h uint16) bool {
		port := sw.ports.lookup(h)
		if port == nil {
			return true
		}
		c := p.Clone()
		c.Out = h
		sw.deliver(port, []*packet.Packet{c})
		sw.metrics.flooded.Inc()
		return true
	})
}
