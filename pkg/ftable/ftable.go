// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package ftable implements the switch forwarding table: a mutable trie owned by the
// writer and an immutable published copy that readers look up without locks.
package ftable

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/epoch"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

var (
	// ErrExists is returned when inserting a MAC that is already present
	ErrExists = errors.New("forwarding entry already exists")
	// ErrNotFound is returned when removing a MAC that is absent
	ErrNotFound = errors.New("forwarding entry not found")
)

// Generation is one published, immutable copy of the table
type Generation struct {
	trie      *Trie
	seq       uint64
	reclaimed atomic.Bool
}

// Lookup resolves mac in this generation. It never blocks and never allocates.
func (g *Generation) Lookup(mac packet.MAC) (uint16, bool) {
	return g.trie.Search(mac)
}

// Walk visits every entry of the generation in key order
func (g *Generation) Walk(fn func(mac packet.MAC, handle uint16) bool) {
	g.trie.Walk(fn)
}

// Len returns the number of entries
func (g *Generation) Len() int {
	return g.trie.Len()
}

// Seq is the publish sequence number of the generation
func (g *Generation) Seq() uint64 {
	return g.seq
}

// Reclaimed reports whether the generation has been released. A reader that observes
// true from inside a read section has found a reclamation bug.
func (g *Generation) Reclaimed() bool {
	return g.reclaimed.Load()
}

func (g *Generation) reclaim() {
	g.reclaimed.Store(true)
	g.trie.clear()
}

// Table pairs the mutable trie with the published generation
type Table struct {
	mu    sync.Mutex
	pubMu sync.Mutex
	rw    *Trie
	ro    atomic.Pointer[Generation]
	dom   *epoch.Domain
	seq   uint64
}

// New returns an empty table whose reclamation waits on dom
func New(dom *epoch.Domain) *Table {
	t := &Table{rw: NewTrie(), dom: dom}
	t.ro.Store(&Generation{trie: NewTrie()})
	return t
}

// Insert adds mac to the mutable trie. Readers see it after the next Publish.
func (t *Table) Insert(mac packet.MAC, handle uint16) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.rw.Insert(mac, handle) {
		return ErrExists
	}
	return nil
}

// Remove deletes mac from the mutable trie
func (t *Table) Remove(mac packet.MAC) (uint16, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	h, ok := t.rw.Delete(mac)
	if !ok {
		return 0, ErrNotFound
	}
	return h, nil
}

// Contains reports whether mac is present in the mutable trie
func (t *Table) Contains(mac packet.MAC) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.rw.Search(mac)
	return ok
}

// Publish clones the mutable trie, swaps it in as the published generation and
// reclaims the previous one once every reader has left its section. It blocks.
func (t *Table) Publish() *Generation {
	t.pubMu.Lock()
	defer t.pubMu.Unlock()

	t.mu.Lock()
	t.seq++
	next := &Generation{trie: t.rw.Clone(), seq: t.seq}
	t.mu.Unlock()

	old := t.ro.Swap(next)
	t.dom.Synchronize()
	old.reclaim()
	return next
}

// Snapshot returns the published generation. The result is only safe to use inside a
// read section of the table's epoch domain.
func (t *Table) Snapshot() *Generation {
	return t.ro.Load()
}

// Len returns the size of the mutable trie
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.rw.Len()
}

// Close publishes an empty generation and reclaims everything
func (t *Table) Close() {
	t.mu.Lock()
	t.rw.clear()
	t.mu.Unlock()
	t.Publish()
}
