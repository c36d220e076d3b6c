// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

// Client calls the switch control service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient creates a client on cc
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// Ctl runs op on the object id
func (c *Client) Ctl(ctx context.Context, id vpc.ID, op vpc.Op, payload []byte, opts ...grpc.CallOption) ([]byte, error) {
	env := &vpc.Envelope{Object: id, Op: op, Payload: payload}
	b, err := env.Marshal()
	if err != nil {
		return nil, err
	}
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, ctlMethod, wrapperspb.Bytes(b), out, opts...); err != nil {
		return nil, err
	}
	return out.GetValue(), nil
}

// PollClient receives the requests of a Poll stream
type PollClient struct {
	stream grpc.ClientStream
}

// Poll registers as the consumer of the requests the object id traps
func (c *Client) Poll(ctx context.Context, id vpc.ID, opts ...grpc.CallOption) (*PollClient, error) {
	stream, err := c.cc.NewStream(ctx, &SwitchControlServiceDesc.Streams[0], pollMethod, opts...)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(wrapperspb.Bytes(id.Bytes())); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}
	return &PollClient{stream: stream}, nil
}

// Recv waits for the next request
func (p *PollClient) Recv() (*vpcsw.Request, error) {
	m := new(wrapperspb.BytesValue)
	if err := p.stream.RecvMsg(m); err != nil {
		return nil, err
	}
	return vpcsw.UnmarshalRequest(m.GetValue())
}
