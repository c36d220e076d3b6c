// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package utils has some utility functions and interfaces
package utils

import (
	"context"

	"github.com/vishvananda/netlink"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Netlink represents limited subset of functions from netlink package
type Netlink interface {
	LinkByName(context.Context, string) (netlink.Link, error)
	LinkList(context.Context) ([]netlink.Link, error)
}

// NetlinkWrapper wrapper for netlink package
type NetlinkWrapper struct {
	tracer trace.Tracer
}

// build time check that struct implements interface
var _ Netlink = (*NetlinkWrapper)(nil)

// NewNetlinkWrapper creates initialized instance of NetlinkWrapper
func NewNetlinkWrapper() *NetlinkWrapper {
	return &NetlinkWrapper{tracer: otel.Tracer("")}
}

// LinkByName is a wrapper for netlink.LinkByName
func (n *NetlinkWrapper) LinkByName(ctx context.Context, name string) (netlink.Link, error) {
	_, childSpan := n.tracer.Start(ctx, "netlink.LinkByName")
	childSpan.SetAttributes(attribute.String("link.name", name))
	defer childSpan.End()
	return netlink.LinkByName(name)
}

// LinkList is a wrapper for netlink.LinkList
func (n *NetlinkWrapper) LinkList(ctx context.Context) ([]netlink.Link, error) {
	_, childSpan := n.tracer.Start(ctx, "netlink.LinkList")
	defer childSpan.End()
	return netlink.LinkList()
}
