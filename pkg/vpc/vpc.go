// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package vpc holds the types shared by every vpc object driver: identities, object
// types, operation codes, errors, the object registry and the driver capabilities.
package vpc

import (
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// IDSize is the wire size of an object identity
const IDSize = 16

// ID identifies a vpc object. The node field (the last six bytes) doubles as the
// hardware address of interfaces created for the object.
type ID uuid.UUID

// Nil is the zero identity
var Nil ID

// NewID returns a random identity whose node field is mac
func NewID(mac packet.MAC) ID {
	id := ID(uuid.New())
	copy(id[10:], mac[:])
	return id
}

// ParseID parses the canonical textual form of an identity
func ParseID(s string) (ID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return ID(u), nil
}

// IDFromBytes decodes a 16 byte identity
func IDFromBytes(b []byte) (ID, error) {
	if len(b) != IDSize {
		return Nil, ErrBadRPC
	}
	u, err := uuid.FromBytes(b)
	if err != nil {
		return Nil, ErrBadRPC
	}
	return ID(u), nil
}

// MAC returns the node field as a hardware address
func (id ID) MAC() packet.MAC {
	var m packet.MAC
	copy(m[:], id[10:])
	return m
}

// HardwareAddr is MAC as a net.HardwareAddr
func (id ID) HardwareAddr() net.HardwareAddr {
	return id.MAC().HardwareAddr()
}

// Bytes returns the wire form of the identity
func (id ID) Bytes() []byte {
	b := make([]byte, IDSize)
	copy(b, id[:])
	return b
}

func (id ID) String() string {
	return uuid.UUID(id).String()
}

// ObjType is the kind of a vpc object
type ObjType uint8

const (
	// ObjInvalid is never registered
	ObjInvalid ObjType = iota
	// ObjSwitch is a vpc switch
	ObjSwitch
	// ObjPort is a switch port, member or uplink
	ObjPort
	// ObjEthlink is an uplink pass-through bound to a host interface
	ObjEthlink
)

func (t ObjType) String() string {
	switch t {
	case ObjSwitch:
		return "vpcsw"
	case ObjPort:
		return "vpcp"
	case ObjEthlink:
		return "ethlink"
	default:
		return "invalid"
	}
}

var (
	// ErrNotFound is returned when the referenced object or resource does not exist
	ErrNotFound = errors.New("not found")
	// ErrExists is returned when an object with the same identity is already present
	ErrExists = errors.New("already exists")
	// ErrBadRPC is returned when a control payload has the wrong size
	ErrBadRPC = errors.New("malformed control payload")
	// ErrNotSupported is returned for operations the object does not implement
	ErrNotSupported = errors.New("operation not supported")
	// ErrBusy is returned when tearing down an object that still has references
	ErrBusy = errors.New("object busy")
	// ErrInvalid is returned for semantically invalid input
	ErrInvalid = errors.New("invalid argument")
	// ErrNoBufs is returned when a resource is exhausted
	ErrNoBufs = errors.New("no buffer space available")
	// ErrAgain is returned when no notification is pending
	ErrAgain = errors.New("resource temporarily unavailable")
	// ErrNoAddr is returned when an interface has no hardware address
	ErrNoAddr = errors.New("interface has no hardware address")
)
