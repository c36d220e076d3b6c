// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpc

import (
	"fmt"
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

type entry struct {
	typ  ObjType
	drv  Driver
	refs int
}

// Registry maps identities to live objects and counts the handles held on them
type Registry struct {
	mu   sync.Mutex
	objs map[ID]*entry
}

// DefaultRegistry is the process wide registry used by the daemon
var DefaultRegistry = NewRegistry()

// NewRegistry returns an empty registry
func NewRegistry() *Registry {
	return &Registry{objs: make(map[ID]*entry)}
}

// Insert registers drv under id
func (r *Registry) Insert(id ID, typ ObjType, drv Driver) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.objs[id]; ok {
		return fmt.Errorf("%s %s: %w", typ, id, ErrExists)
	}
	r.objs[id] = &entry{typ: typ, drv: drv}
	return nil
}

// Lookup returns the object registered under id without taking a handle
func (r *Registry) Lookup(id ID) (Driver, ObjType, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objs[id]
	if !ok {
		return nil, ObjInvalid, false
	}
	return e.drv, e.typ, true
}

// Acquire takes a counted handle on the object. The returned release func must be
// called exactly once.
func (r *Registry) Acquire(id ID) (Driver, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objs[id]
	if !ok {
		return nil, nil, fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	e.refs++
	var once sync.Once
	release := func() {
		once.Do(func() {
			r.mu.Lock()
			e.refs--
			r.mu.Unlock()
		})
	}
	return e.drv, release, nil
}

// Refs returns the number of handles held on id
func (r *Registry) Refs(id ID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.objs[id]; ok {
		return e.refs
	}
	return 0
}

// Remove unregisters id without detaching it. The owner of the object calls this
// when it destroys the object itself.
func (r *Registry) Remove(id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.objs[id]
	if !ok {
		return fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	if e.refs != 0 {
		return fmt.Errorf("object %s has %d handles: %w", id, e.refs, ErrBusy)
	}
	delete(r.objs, id)
	return nil
}

// Destroy detaches and unregisters id. It fails with ErrBusy while handles are held.
func (r *Registry) Destroy(id ID) error {
	r.mu.Lock()
	e, ok := r.objs[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("object %s: %w", id, ErrNotFound)
	}
	if e.refs != 0 {
		r.mu.Unlock()
		return fmt.Errorf("object %s has %d handles: %w", id, e.refs, ErrBusy)
	}
	// hold a reference while detaching so nobody else destroys it concurrently
	e.refs++
	r.mu.Unlock()

	err := e.drv.Detach()

	r.mu.Lock()
	defer r.mu.Unlock()
	e.refs--
	if err != nil {
		log.Errorf("Destroy(): %s %s detach failed: %v", e.typ, id, err)
		return err
	}
	delete(r.objs, id)
	return nil
}

// List returns the identities of every object of type typ in sorted order.
// ObjInvalid lists everything.
func (r *Registry) List(typ ObjType) []ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]ID, 0, len(r.objs))
	for id, e := range r.objs {
		if typ == ObjInvalid || e.typ == typ {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		return ids[i].String() < ids[j].String()
	})
	return ids
}

// Len returns the number of registered objects
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.objs)
}

// Close refuses while any object is still registered
func (r *Registry) Close() error {
	if n := r.Len(); n != 0 {
		return fmt.Errorf("%d objects still registered: %w", n, ErrBusy)
	}
	return nil
}
