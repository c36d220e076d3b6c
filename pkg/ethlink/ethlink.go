// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package ethlink is the uplink pass-through driver. It binds a host network
// interface to a switch uplink: frames the switch sends up are written to the
// interface and frames read from it are fed back into the switch.
package ethlink

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/utils"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// encapEther is the link encapsulation netlink reports for Ethernet devices
const encapEther = "ether"

// maxFrameLen bounds a frame read from the interface
const maxFrameLen = 9216

// Conn sends and receives whole Ethernet frames on one interface
type Conn interface {
	// ReadFrame reads one frame into b. It returns 0 and no error when nothing
	// arrived within the read timeout.
	ReadFrame(b []byte) (int, error)
	WriteFrame(b []byte) error
	Close() error
}

// Opener opens a Conn on the interface with the given index
type Opener func(ifindex int) (Conn, error)

// build time check that Link implements the driver capabilities
var (
	_ vpc.Driver = (*Link)(nil)
)

// Link is one ethlink object
type Link struct {
	id   vpc.ID
	nl   utils.Netlink
	open Opener
	log  *log.Entry

	mu       sync.Mutex
	attached bool
	ifname   string
	ifindex  int
	mac      packet.MAC
	conn     Conn
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	// tx is read on the forwarding path without taking mu
	tx atomic.Pointer[connRef]
}

type connRef struct {
	Conn
}

// New creates an ethlink using the host netlink and raw sockets
func New(id vpc.ID) *Link {
	return NewWithArgs(id, utils.NewNetlinkWrapper(), OpenRaw)
}

// NewWithArgs creates an ethlink with the given link resolver and frame socket opener
func NewWithArgs(id vpc.ID, nl utils.Netlink, open Opener) *Link {
	return &Link{
		id:   id,
		nl:   nl,
		open: open,
		log:  log.WithField("ethlink", id.String()),
	}
}

// ID returns the ethlink identity
func (l *Link) ID() vpc.ID { return l.id }

// ObjectInfo implements vpc.Driver
func (l *Link) ObjectInfo() vpc.ObjectInfo {
	return vpc.ObjectInfo{Type: vpc.ObjEthlink, ID: l.id}
}

// Ctl implements vpc.Driver
func (l *Link) Ctl(ctx context.Context, op vpc.Op, in []byte) ([]byte, error) {
	switch op {
	case vpc.OpEthlinkAttach:
		return nil, l.Attach(ctx, ifName(in))
	case vpc.OpEthlinkAttachedGet:
		name, err := l.Attached()
		if err != nil {
			return nil, err
		}
		return []byte(name), nil
	}
	return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)
}

// ifName takes an interface name from a control buffer. The name stops at the
// first NUL and is cut to what the kernel accepts.
func ifName(in []byte) string {
	if i := bytes.IndexByte(in, 0); i >= 0 {
		in = in[:i]
	}
	if len(in) > unix.IFNAMSIZ-1 {
		in = in[:unix.IFNAMSIZ-1]
	}
	return string(in)
}

// Attach binds the host interface called name and takes over its hardware address
func (l *Link) Attach(ctx context.Context, name string) error {
	link, err := l.nl.LinkByName(ctx, name)
	if err != nil {
		l.log.Debugf("Attach(): %s: %v", name, err)
		return fmt.Errorf("interface %q: %w", name, vpc.ErrNotFound)
	}
	attrs := link.Attrs()
	if len(attrs.HardwareAddr) == 0 {
		return fmt.Errorf("interface %q has no link layer address: %w", name, vpc.ErrNoAddr)
	}
	mac, ok := packet.MACFrom(attrs.HardwareAddr)
	if !ok || (attrs.EncapType != "" && attrs.EncapType != encapEther) {
		return fmt.Errorf("interface %q is not ethernet (%s): %w", name, attrs.EncapType, vpc.ErrInvalid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.ifname = name
	l.ifindex = attrs.Index
	l.mac = mac
	l.attached = true
	l.log.Infof("Attach(): bound to %s mac %s", name, mac)
	return nil
}

// Attached returns the name of the bound interface
func (l *Link) Attached() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached {
		return "", fmt.Errorf("ethlink %s: %w", l.id, vpc.ErrNotFound)
	}
	return l.ifname, nil
}

// MAC returns the hardware address taken from the bound interface
func (l *Link) MAC() (packet.MAC, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mac, l.attached
}

// Start opens the interface and feeds every frame read from it to rx on the given
// core until the link is detached or ctx ends. The core must not be used by any
// other sender.
func (l *Link) Start(ctx context.Context, core int, rx vpc.Receiver) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.attached {
		return fmt.Errorf("ethlink %s: %w", l.id, vpc.ErrNotFound)
	}
	if l.conn != nil {
		return fmt.Errorf("ethlink %s already started: %w", l.id, vpc.ErrBusy)
	}
	conn, err := l.open(l.ifindex)
	if err != nil {
		return fmt.Errorf("open %s: %w", l.ifname, err)
	}
	l.conn = conn
	l.tx.Store(&connRef{conn})
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)
	go l.receive(ctx, conn, core, rx)
	return nil
}

func (l *Link) receive(ctx context.Context, conn Conn, core int, rx vpc.Receiver) {
	defer l.wg.Done()
	buf := make([]byte, maxFrameLen)
	for ctx.Err() == nil {
		n, err := conn.ReadFrame(buf)
		if err != nil {
			l.log.Errorf("receive(): %v", err)
			return
		}
		if n == 0 {
			continue
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		rx.Input(core, []*packet.Packet{packet.New(data)})
	}
}

// Deliver writes frames the switch forwards to the uplink out of the interface.
// It makes Link usable as the uplink port endpoint.
func (l *Link) Deliver(pkts []*packet.Packet) {
	tx := l.tx.Load()
	if tx == nil {
		return
	}
	for _, p := range pkts {
		if err := tx.WriteFrame(p.Data); err != nil {
			l.log.Debugf("Deliver(): %v", err)
		}
	}
}

func (l *Link) stopLocked() {
	l.tx.Store(nil)
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	if l.conn != nil {
		l.wg.Wait()
		if err := l.conn.Close(); err != nil {
			l.log.Warnf("stop(): %v", err)
		}
		l.conn = nil
	}
}

// Detach implements vpc.Driver. It releases the interface.
func (l *Link) Detach() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopLocked()
	l.attached = false
	l.ifname = ""
	l.ifindex = 0
	l.mac = packet.MAC{}
	l.log.Infof("Detach(): ethlink %s destroyed", l.id)
	return nil
}
