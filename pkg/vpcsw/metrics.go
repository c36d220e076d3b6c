// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"github.com/prometheus/client_golang/prometheus"
)

// drop reasons
const (
	dropNoRoute    = "no_route"
	dropInvalid    = "invalid"
	dropRunt       = "runt"
	dropOversize   = "oversize"
	dropNoEndpoint = "no_endpoint"
	dropBadCore    = "bad_core"
	dropUnbound    = "unbound"
)

var dropReasons = []string{dropNoRoute, dropInvalid, dropRunt, dropOversize, dropNoEndpoint, dropBadCore, dropUnbound}

var (
	packetsForwarded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "packets_forwarded_total",
		Help:      "Packets delivered to a port.",
	}, []string{"switch"})
	packetsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "packets_dropped_total",
		Help:      "Packets dropped by the dataplane.",
	}, []string{"switch", "reason"})
	packetsFlooded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "packets_flooded_total",
		Help:      "Copies of plain broadcast and multicast frames sent to ports.",
	}, []string{"switch"})
	floodQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "flood_queued_total",
		Help:      "Overlay broadcast and multicast frames queued for the trap path.",
	}, []string{"switch"})
	floodEvicted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "flood_evicted_total",
		Help:      "Queued frames evicted because the flood queue was full.",
	}, []string{"switch"})
	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "cache_lookups_total",
		Help:      "Per-core destination cache lookups by result.",
	}, []string{"switch", "result"})
	trapRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "trap_requests_total",
		Help:      "Requests extracted for the control plane.",
	}, []string{"switch", "op"})
	trapResponses = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vpcsw",
		Name:      "trap_responses_total",
		Help:      "Responses re-injected into the switch.",
	}, []string{"switch", "op"})
)

func init() {
	prometheus.MustRegister(packetsForwarded, packetsDropped, packetsFlooded, floodQueued,
		floodEvicted, cacheLookups, trapRequests, trapResponses)
}

// switchMetrics holds the counters of one switch resolved up front so the fast path
// only does atomic adds
type switchMetrics struct {
	name      string
	forwarded prometheus.Counter
	flooded   prometheus.Counter
	queued    prometheus.Counter
	evicted   prometheus.Counter
	hits      prometheus.Counter
	misses    prometheus.Counter
	drops     map[string]prometheus.Counter
}

func newSwitchMetrics(name string) *switchMetrics {
	m := &switchMetrics{
		name:      name,
		forwarded: packetsForwarded.WithLabelValues(name),
		flooded:   packetsFlooded.WithLabelValues(name),
		queued:    floodQueued.WithLabelValues(name),
		evicted:   floodEvicted.WithLabelValues(name),
		hits:      cacheLookups.WithLabelValues(name, "hit"),
		misses:    cacheLookups.WithLabelValues(name, "miss"),
		drops:     make(map[string]prometheus.Counter, len(dropReasons)),
	}
	for _, r := range dropReasons {
		m.drops[r] = packetsDropped.WithLabelValues(name, r)
	}
	return m
}

func (m *switchMetrics) drop(reason string, n int) {
	m.drops[reason].Add(float64(n))
}

func (m *switchMetrics) request(op ReqOp) {
	trapRequests.WithLabelValues(m.name, op.String()).Inc()
}

func (m *switchMetrics) response(op ReqOp) {
	trapResponses.WithLabelValues(m.name, op.String()).Inc()
}

func (m *switchMetrics) unregister() {
	packetsForwarded.DeleteLabelValues(m.name)
	packetsFlooded.DeleteLabelValues(m.name)
	floodQueued.DeleteLabelValues(m.name)
	floodEvicted.DeleteLabelValues(m.name)
	cacheLookups.DeleteLabelValues(m.name, "hit")
	cacheLookups.DeleteLabelValues(m.name, "miss")
	for _, r := range dropReasons {
		packetsDropped.DeleteLabelValues(m.name, r)
	}
	for _, op := range []ReqOp{ReqNDv4, ReqNDv6, ReqDHCPv4, ReqDHCPv6} {
		trapRequests.DeleteLabelValues(m.name, op.String())
		trapResponses.DeleteLabelValues(m.name, op.String())
	}
}
