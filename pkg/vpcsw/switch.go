// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package vpcsw is the vpc switch: a learning-free Ethernet switch that forwards
// between member ports and one uplink, and traps overlay address resolution and
// configuration requests to a control-plane consumer.
package vpcsw

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/epoch"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/ftable"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// Config parameterizes a switch
type Config struct {
	// Name labels logs and metrics, defaults to the switch id
	Name string
	// VNI is reported through ObjectInfo
	VNI uint32
	// Cores is the number of transit contexts, defaults to runtime.NumCPU
	Cores int
	// CacheWindow bounds the age of a cached destination, defaults to DefaultCacheWindow
	CacheWindow time.Duration
	// Registry holds ports and uplinks, defaults to vpc.DefaultRegistry
	Registry *vpc.Registry
	// Bus carries trap readiness and port events, defaults to eventbus.EBus
	Bus *eventbus.EventBus
	// Clock returns a monotonic time, tests replace it
	Clock func() time.Duration
}

// build time check that the switch and its ports implement the driver capabilities
var (
	_ vpc.Driver      = (*Switch)(nil)
	_ vpc.EventSource = (*Switch)(nil)
	_ vpc.Transmitter = (*Switch)(nil)
	_ vpc.Driver      = (*Port)(nil)
	_ vpc.Transmitter = (*Port)(nil)
	_ vpc.Receiver    = (*Port)(nil)
)

// Switch is one vpc switch instance
type Switch struct {
	id     vpc.ID
	name   string
	vni    uint32
	cores  int
	window int64
	now    func() int64

	reg     *vpc.Registry
	bus     *eventbus.EventBus
	log     *log.Entry
	metrics *switchMetrics

	// mu serializes control operations
	mu       sync.Mutex
	closed   bool
	members  map[vpc.ID]*Port
	uplinkID vpc.ID

	dom    *epoch.Domain
	table  *ftable.Table
	ports  *portIndex
	uplink atomic.Pointer[Port]
	cache  destCache
	ctlMu  sync.Mutex

	flood floodQueue
	trap  trapState
	state atomic.Uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a switch and starts its trap task
func New(id vpc.ID, cfg Config) *Switch {
	if cfg.Name == "" {
		cfg.Name = id.String()
	}
	if cfg.Cores <= 0 {
		cfg.Cores = runtime.NumCPU()
	}
	if cfg.CacheWindow <= 0 {
		cfg.CacheWindow = DefaultCacheWindow
	}
	if cfg.Registry == nil {
		cfg.Registry = vpc.DefaultRegistry
	}
	if cfg.Bus == nil {
		cfg.Bus = eventbus.EBus
	}
	clock := cfg.Clock
	if clock == nil {
		start := time.Now()
		clock = func() time.Duration { return time.Since(start) }
	}

	// one extra context for frames injected by control operations
	dom := epoch.NewDomain(cfg.Cores + 1)
	sw := &Switch{
		id:      id,
		name:    cfg.Name,
		vni:     cfg.VNI,
		cores:   cfg.Cores,
		window:  int64(cfg.CacheWindow),
		now:     func() int64 { return int64(clock()) },
		reg:     cfg.Registry,
		bus:     cfg.Bus,
		log:     log.WithField("switch", cfg.Name),
		metrics: newSwitchMetrics(cfg.Name),
		members: make(map[vpc.ID]*Port),
		dom:     dom,
		table:   ftable.New(dom),
		ports:   newPortIndex(),
		cache:   newDestCache(cfg.Cores + 1),
	}
	sw.trap.available = true
	sw.trap.kick = make(chan struct{}, 1)
	sw.state.Store(stateRunning)

	ctx, cancel := context.WithCancel(context.Background())
	sw.cancel = cancel
	sw.wg.Add(1)
	go sw.runTrap(ctx)

	sw.log.Infof("New(): switch %s created with %d cores", id, cfg.Cores)
	return sw
}

// ID returns the switch identity
func (sw *Switch) ID() vpc.ID { return sw.id }

// Name returns the switch name
func (sw *Switch) Name() string { return sw.name }

// Cores returns the number of transit contexts
func (sw *Switch) Cores() int { return sw.cores }

func (sw *Switch) ctlCore() int { return sw.cores }

// ObjectInfo implements vpc.Driver
func (sw *Switch) ObjectInfo() vpc.ObjectInfo {
	return vpc.ObjectInfo{Type: vpc.ObjSwitch, ID: sw.id, VNI: sw.vni}
}

// Port returns the member or uplink port with the given id
func (sw *Switch) Port(id vpc.ID) (*Port, bool) {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if p, ok := sw.members[id]; ok {
		return p, true
	}
	if up := sw.uplink.Load(); up != nil && up.id == id {
		return up, true
	}
	return nil, false
}

// Ports returns the member ports in forwarding table order
func (sw *Switch) Ports() []*Port {
	rec := sw.dom.Record(sw.ctlCore())
	sw.ctlMu.Lock()
	defer sw.ctlMu.Unlock()
	rec.Begin()
	defer rec.End()

	var ports []*Port
	sw.table.Snapshot().Walk(func(_ packet.MAC, h uint16) bool {
		if p := sw.ports.lookup(h); p != nil {
			ports = append(ports, p)
		}
		return true
	})
	return ports
}

// QueueLen returns the number of frames waiting for the trap path
func (sw *Switch) QueueLen() int {
	return sw.flood.len()
}

// busyLocked returns ErrBusy when a handle is held on a port of the switch
func (sw *Switch) busyLocked() error {
	for id := range sw.members {
		if n := sw.reg.Refs(id); n != 0 {
			return fmt.Errorf("port %s has %d handles: %w", id, n, vpc.ErrBusy)
		}
	}
	if up := sw.uplink.Load(); up != nil {
		if n := sw.reg.Refs(up.id); n != 0 {
			return fmt.Errorf("uplink %s has %d handles: %w", up.id, n, vpc.ErrBusy)
		}
	}
	return nil
}

// Detach tears the switch down. The registry only calls it once no handle on the
// switch is outstanding. It fails with ErrBusy, leaving the switch untouched, while
// a handle is held on one of its ports.
func (sw *Switch) Detach() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	if sw.closed {
		return nil
	}
	if err := sw.busyLocked(); err != nil {
		sw.log.Infof("Detach(): %v", err)
		return err
	}
	sw.closed = true

	sw.cancel()
	sw.wg.Wait()
	sw.dom.Synchronize()

	if n := sw.flood.drain(); n > 0 {
		sw.log.Debugf("Detach(): freed %d queued frames", n)
	}
	sw.trap.mu.Lock()
	sw.trap.pending = nil
	if l := sw.trap.listener; l != nil {
		sw.bus.UnsubscribeEvent(l.sub, sw.trapTopic())
		sw.trap.listener = nil
	}
	sw.trap.mu.Unlock()

	for id, p := range sw.members {
		sw.ports.clear(p.handle)
		p.hooks.Store(nil)
		if err := sw.reg.Remove(id); err != nil {
			sw.log.Warnf("Detach(): port %s: %v", id, err)
		}
		delete(sw.members, id)
	}
	if up := sw.uplink.Swap(nil); up != nil {
		sw.ports.clear(up.handle)
		up.hooks.Store(nil)
		if err := sw.reg.Remove(up.id); err != nil {
			sw.log.Warnf("Detach(): uplink %s: %v", up.id, err)
		}
		sw.uplinkID = vpc.Nil
	}
	sw.table.Close()
	sw.metrics.unregister()
	sw.state.Store(0)
	sw.log.Infof("Detach(): switch %s destroyed", sw.id)
	return nil
}
