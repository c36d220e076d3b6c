// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpcsw

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// StateSize is the size of the STATE_GET and STATE_SET words
const StateSize = 8

// stateRunning is bit 0 of the status word, set while the switch is attached
const stateRunning uint64 = 0x1

var tracer = otel.Tracer("github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw")

// Ctl executes one control operation. Each op is handled on its own; an input of
// the wrong size is reported as vpc.ErrBadRPC before any state is touched.
func (sw *Switch) Ctl(ctx context.Context, op vpc.Op, in []byte) ([]byte, error) {
	_, span := tracer.Start(ctx, "vpcsw.Ctl", trace.WithAttributes(
		attribute.String("switch", sw.name),
		attribute.String("op", op.String()),
	))
	defer span.End()

	out, err := sw.ctl(op, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		sw.log.Debugf("Ctl(): %s failed: %v", op, err)
	}
	return out, err
}

func (sw *Switch) ctl(op vpc.Op, in []byte) ([]byte, error) {
	if op.ObjType() != vpc.ObjSwitch {
		return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)
	}
	switch op {
	case vpc.OpPortAdd:
		id, err := vpc.IDFromBytes(in)
		if err != nil {
			return nil, err
		}
		_, err = sw.AddPort(id)
		return nil, err

	case vpc.OpPortDel:
		id, err := vpc.IDFromBytes(in)
		if err != nil {
			return nil, err
		}
		return nil, sw.DeletePort(id)

	case vpc.OpPortUplinkSet:
		id, err := vpc.IDFromBytes(in)
		if err != nil {
			return nil, err
		}
		_, err = sw.SetUplink(id)
		return nil, err

	case vpc.OpPortUplinkGet:
		id, err := sw.Uplink()
		if err != nil {
			return nil, err
		}
		return id.Bytes(), nil

	case vpc.OpStateGet:
		out := make([]byte, StateSize)
		binary.LittleEndian.PutUint64(out, sw.State())
		return out, nil

	case vpc.OpStateSet:
		if len(in) != StateSize {
			return nil, vpc.ErrBadRPC
		}
		sw.SetState(binary.LittleEndian.Uint64(in))
		return nil, nil

	case vpc.OpReset:
		sw.log.Debugf("ctl(): %s is a no-op", op)
		return nil, nil

	case vpc.OpResponseNDv4:
		resp, err := UnmarshalResponse(ReqNDv4, in)
		if err != nil {
			return nil, err
		}
		return nil, sw.respondNDv4(resp)

	case vpc.OpResponseDHCPv4:
		if _, err := UnmarshalResponse(ReqDHCPv4, in); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)

	case vpc.OpResponseNDv6:
		if _, err := UnmarshalResponse(ReqNDv6, in); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)

	case vpc.OpResponseDHCPv6:
		if _, err := UnmarshalResponse(ReqDHCPv6, in); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)
	}
	return nil, fmt.Errorf("%s: %w", op, vpc.ErrNotSupported)
}

// State returns the status word: bit 0 is set while the switch is attached, the
// other bits echo the last STATE_SET
func (sw *Switch) State() uint64 {
	return sw.state.Load()
}

// SetState stores flags. Bit 0 is owned by the switch and ignored.
func (sw *Switch) SetState(flags uint64) {
	for {
		old := sw.state.Load()
		next := old&stateRunning | flags&^stateRunning
		if sw.state.CompareAndSwap(old, next) {
			return
		}
	}
}
