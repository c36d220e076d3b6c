// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package ftable

import (
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// node is one byte level of the trie. Children are kept sorted by label so a walk
// visits keys in byte order.
type node struct {
	labels []byte
	kids   []*node
	value  uint16
}

// Trie is an ordered map from MAC to port handle, one level per address byte
type Trie struct {
	root node
	size int
}

// NewTrie returns an empty trie
func NewTrie() *Trie {
	return &Trie{}
}

// Len returns the number of entries
func (t *Trie) Len() int {
	return t.size
}

func (n *node) find(b byte) (int, bool) {
	lo, hi := 0, len(n.labels)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if n.labels[mid] < b {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo, lo < len(n.labels) && n.labels[lo] == b
}

func (n *node) insertChild(i int, b byte) *node {
	c := &node{}
	n.labels = append(n.labels, 0)
	copy(n.labels[i+1:], n.labels[i:])
	n.labels[i] = b
	n.kids = append(n.kids, nil)
	copy(n.kids[i+1:], n.kids[i:])
	n.kids[i] = c
	return c
}

func (n *node) removeChild(i int) {
	n.labels = append(n.labels[:i], n.labels[i+1:]...)
	copy(n.kids[i:], n.kids[i+1:])
	n.kids[len(n.kids)-1] = nil
	n.kids = n.kids[:len(n.kids)-1]
}

// Search returns the handle stored for key. It does not allocate.
func (t *Trie) Search(key packet.MAC) (uint16, bool) {
	n := &t.root
	for _, b := range key {
		i, ok := n.find(b)
		if !ok {
			return 0, false
		}
		n = n.kids[i]
	}
	return n.value, true
}

// Insert adds key. An existing key is left untouched and reported with false.
func (t *Trie) Insert(key packet.MAC, value uint16) bool {
	n := &t.root
	created := false
	for _, b := range key {
		i, ok := n.find(b)
		if !ok {
			n = n.insertChild(i, b)
			created = true
			continue
		}
		n = n.kids[i]
	}
	if !created {
		return false
	}
	n.value = value
	t.size++
	return true
}

// Delete removes key and prunes empty branches
func (t *Trie) Delete(key packet.MAC) (uint16, bool) {
	var (
		path [packet.MACLen]*node
		idx  [packet.MACLen]int
	)
	n := &t.root
	for d, b := range key {
		i, ok := n.find(b)
		if !ok {
			return 0, false
		}
		path[d], idx[d] = n, i
		n = n.kids[i]
	}
	value := n.value
	for d := packet.MACLen - 1; d >= 0; d-- {
		parent := path[d]
		parent.removeChild(idx[d])
		if len(parent.labels) > 0 {
			break
		}
	}
	t.size--
	return value, true
}

// Walk calls fn for every entry in ascending key order until fn returns false
func (t *Trie) Walk(fn func(key packet.MAC, value uint16) bool) {
	var key packet.MAC
	walk(&t.root, 0, &key, fn)
}

func walk(n *node, depth int, key *packet.MAC, fn func(packet.MAC, uint16) bool) bool {
	if depth == packet.MACLen {
		return fn(*key, n.value)
	}
	for i, b := range n.labels {
		key[depth] = b
		if !walk(n.kids[i], depth+1, key, fn) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy sharing no nodes with t
func (t *Trie) Clone() *Trie {
	c := &Trie{size: t.size}
	cloneInto(&c.root, &t.root)
	return c
}

func cloneInto(dst, src *node) {
	dst.value = src.value
	if len(src.labels) == 0 {
		return
	}
	dst.labels = append([]byte(nil), src.labels...)
	dst.kids = make([]*node, len(src.kids))
	for i, k := range src.kids {
		dst.kids[i] = &node{}
		cloneInto(dst.kids[i], k)
	}
}

// clear drops every node so a stale reference finds an empty trie
func (t *Trie) clear() {
	t.root = node{}
	t.size = 0
}
