// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package epoch implements epoch based reclamation for read-mostly data.
//
// Readers bracket every access to shared state with Begin and End on the record
// owned by their core. A writer that unpublished an object calls Synchronize, which
// returns only once every reader that could have observed the object has left its
// section. Readers never block and never allocate.
package epoch

import (
	"runtime"
	"sync"
	"sync/atomic"
)

const activeBit = 1

// Record is the per-core reader state. A record must only be driven by one goroutine
// at a time, the one currently acting as its core.
type Record struct {
	dom   *Domain
	state atomic.Uint64
	depth int
	_     [40]byte
}

// Domain owns the global epoch counter and the reader records
type Domain struct {
	epoch   atomic.Uint64
	records []Record
	syncMu  sync.Mutex
}

// NewDomain allocates a domain with one record per core
func NewDomain(cores int) *Domain {
	if cores < 1 {
		cores = 1
	}
	d := &Domain{records: make([]Record, cores)}
	d.epoch.Store(1)
	for i := range d.records {
		d.records[i].dom = d
	}
	return d
}

// Cores returns the number of records in the domain
func (d *Domain) Cores() int {
	return len(d.records)
}

// Record returns the record of the given core
func (d *Domain) Record(core int) *Record {
	return &d.records[core]
}

// Begin enters a read section. Sections nest.
func (r *Record) Begin() {
	if r.depth == 0 {
		r.state.Store(r.dom.epoch.Load()<<1 | activeBit)
	}
	r.depth++
}

// End leaves a read section
func (r *Record) End() {
	r.depth--
	if r.depth == 0 {
		r.state.Store(0)
	}
}

// Active reports whether the record is inside a read section
func (r *Record) Active() bool {
	return r.state.Load()&activeBit != 0
}

// Synchronize advances the epoch and waits until no reader remains in a section that
// began before the call. Must not be called from inside a read section.
func (d *Domain) Synchronize() {
	d.syncMu.Lock()
	defer d.syncMu.Unlock()

	target := d.epoch.Add(1)
	for i := range d.records {
		r := &d.records[i]
		for {
			s := r.state.Load()
			if s&activeBit == 0 || s>>1 >= target {
				break
			}
			runtime.Gosched()
		}
	}
}

// Epoch returns the current global epoch
func (d *Domain) Epoch() uint64 {
	return d.epoch.Load()
}
