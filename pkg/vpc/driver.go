// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpc

import (
	"context"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
)

// ObjectInfo is what an object reports about itself
type ObjectInfo struct {
	Type ObjType
	ID   ID
	VNI  uint32
}

// Driver is the capability set every registered object implements
type Driver interface {
	// Ctl executes a control operation with an opaque input buffer
	Ctl(ctx context.Context, op Op, in []byte) ([]byte, error)
	// ObjectInfo describes the object
	ObjectInfo() ObjectInfo
	// Detach tears the object down. It is called once, with no outstanding handles.
	Detach() error
}

// Transmitter is implemented by drivers that accept frames from the host side.
// core selects the per-core state used on the path, pkts is owned by the callee.
type Transmitter interface {
	Transmit(core int, pkts []*packet.Packet)
}

// Receiver is implemented by drivers that accept frames coming in from a bridge
type Receiver interface {
	Input(core int, pkts []*packet.Packet)
}

// Listener delivers control-plane notifications to a single consumer
type Listener interface {
	// Ready is signalled whenever a notification is pending
	Ready() <-chan interface{}
	// Read copies the pending record into buf and consumes it. A nil buf only consumes.
	Read(buf []byte) (int, error)
	// Close unregisters the listener
	Close()
}

// EventSource is implemented by drivers that raise control-plane notifications.
// When copyout is not nil the pending record is also copied into it at signal time.
type EventSource interface {
	Listen(copyout []byte) (Listener, error)
	// Poll asks the driver to produce a notification if one can be made ready
	Poll()
}
