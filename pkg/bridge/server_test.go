// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package bridge

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

func TestCtl(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	portA := vpc.NewID(macA)

	tests := map[string]struct {
		object  vpc.ID
		op      vpc.Op
		in      []byte
		out     []byte
		errCode codes.Code
	}{
		"port add": {
			object: env.sw.ID(),
			op:     vpc.OpPortAdd,
			in:     portA.Bytes(),
		},
		"port add twice": {
			object:  env.sw.ID(),
			op:      vpc.OpPortAdd,
			in:      portA.Bytes(),
			errCode: codes.AlreadyExists,
		},
		"port add short id": {
			object:  env.sw.ID(),
			op:      vpc.OpPortAdd,
			in:      []byte{1, 2, 3},
			errCode: codes.InvalidArgument,
		},
		"uplink get unset": {
			object:  env.sw.ID(),
			op:      vpc.OpPortUplinkGet,
			errCode: codes.NotFound,
		},
		"state get": {
			object: env.sw.ID(),
			op:     vpc.OpStateGet,
			out:    []byte{1, 0, 0, 0, 0, 0, 0, 0},
		},
		"ethlink op on switch": {
			object:  env.sw.ID(),
			op:      vpc.OpEthlinkAttach,
			in:      []byte("eth0"),
			errCode: codes.Unimplemented,
		},
		"unknown object": {
			object:  vpc.NewID(macB),
			op:      vpc.OpStateGet,
			errCode: codes.NotFound,
		},
		"port object": {
			object:  portA,
			op:      vpc.OpStateGet,
			errCode: codes.Unimplemented,
		},
		"port delete": {
			object: env.sw.ID(),
			op:     vpc.OpPortDel,
			in:     portA.Bytes(),
		},
		"port delete again": {
			object:  env.sw.ID(),
			op:      vpc.OpPortDel,
			in:      portA.Bytes(),
			errCode: codes.NotFound,
		},
	}
	// the cases build on each other
	order := []string{
		"port add", "port add twice", "port add short id", "uplink get unset", "state get",
		"ethlink op on switch", "unknown object", "port object", "port delete", "port delete again",
	}
	for _, name := range order {
		tt := tests[name]
		t.Run(name, func(t *testing.T) {
			out, err := env.client.Ctl(ctx, tt.object, tt.op, tt.in)
			if tt.errCode != codes.OK {
				assert.Equal(t, tt.errCode, status.Code(err), "%v", err)
				return
			}
			require.NoError(t, err)
			if tt.out != nil {
				assert.Equal(t, tt.out, out)
			}
		})
	}
}

func TestCtlMalformedEnvelope(t *testing.T) {
	env := newTestEnv(t)
	out := new(wrapperspb.BytesValue)
	err := env.conn.Invoke(context.Background(), ctlMethod, wrapperspb.Bytes([]byte{1, 2}), out)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestToStatus(t *testing.T) {
	tests := map[error]codes.Code{
		vpc.ErrNotFound:     codes.NotFound,
		vpc.ErrExists:       codes.AlreadyExists,
		vpc.ErrBadRPC:       codes.InvalidArgument,
		vpc.ErrInvalid:      codes.InvalidArgument,
		vpc.ErrNoAddr:       codes.InvalidArgument,
		vpc.ErrNotSupported: codes.Unimplemented,
		vpc.ErrBusy:         codes.FailedPrecondition,
		vpc.ErrNoBufs:       codes.ResourceExhausted,
		vpc.ErrAgain:        codes.Unavailable,
		context.Canceled:    codes.Canceled,
		errors.New("boom"):  codes.Internal,
	}
	tests[status.Error(codes.Aborted, "x")] = codes.Aborted
	for err, code := range tests {
		assert.Equal(t, code, status.Code(toStatus(fmt.Errorf("wrapped: %w", err))), "%v", err)
	}
	assert.NoError(t, toStatus(nil))
}

func TestPoll(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.sw.AddPort(vpc.NewID(macA))
	require.NoError(t, err)

	// a request trapped before the consumer registers is handed over at once
	env.sw.Transmit(0, []*packet.Packet{arpRequest(macA, "10.0.0.5")})
	require.Eventually(t, func() bool {
		_, ok := env.sw.Pending()
		return ok
	}, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := env.client.Poll(ctx, env.sw.ID())
	require.NoError(t, err)
	req, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, vpcsw.ReqNDv4, req.Op)
	assert.Equal(t, macA, req.SMAC)
	assert.Equal(t, netip.MustParseAddr("10.0.0.5"), req.Target)

	// the request was consumed when it was sent
	_, pending := env.sw.Pending()
	assert.False(t, pending)

	env.sw.Transmit(0, []*packet.Packet{arpRequest(macA, "10.0.0.6")})
	req, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, netip.MustParseAddr("10.0.0.6"), req.Target)

	// a second consumer is refused
	second, err := env.client.Poll(ctx, env.sw.ID())
	require.NoError(t, err)
	_, err = second.Recv()
	assert.Equal(t, codes.AlreadyExists, status.Code(err))
}

func TestPollErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	stream, err := env.client.Poll(ctx, vpc.NewID(macB))
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.NotFound, status.Code(err))

	portA := vpc.NewID(macA)
	_, err = env.sw.AddPort(portA)
	require.NoError(t, err)
	stream, err = env.client.Poll(ctx, portA)
	require.NoError(t, err)
	_, err = stream.Recv()
	assert.Equal(t, codes.Unimplemented, status.Code(err))
}

func TestStateRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	in := make([]byte, vpcsw.StateSize)
	binary.LittleEndian.PutUint64(in, 0xf0)
	_, err := env.client.Ctl(ctx, env.sw.ID(), vpc.OpStateSet, in)
	require.NoError(t, err)
	out, err := env.client.Ctl(ctx, env.sw.ID(), vpc.OpStateGet, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xf1), binary.LittleEndian.Uint64(out))
}
