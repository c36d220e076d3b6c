// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

package bridge

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the full name of the switch control service
const ServiceName = "opi_vpcsw.v1.SwitchControl"

const (
	ctlMethod  = "/" + ServiceName + "/Ctl"
	pollMethod = "/" + ServiceName + "/Poll"
)

// SwitchControlServer is the server API of the switch control service
type SwitchControlServer interface {
	// Ctl executes the control operation encoded as a vpc.Envelope and returns its output
	Ctl(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	// Poll streams the requests trapped by the object whose 16 byte id is sent
	Poll(*wrapperspb.BytesValue, SwitchControlPollServer) error
}

// SwitchControlPollServer is the server side of a Poll stream
type SwitchControlPollServer interface {
	Send(*wrapperspb.BytesValue) error
	grpc.ServerStream
}

type switchControlPollServer struct {
	grpc.ServerStream
}

func (x *switchControlPollServer) Send(m *wrapperspb.BytesValue) error {
	return x.ServerStream.SendMsg(m)
}

func switchControlCtlHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(SwitchControlServer).Ctl(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: ctlMethod,
	}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(SwitchControlServer).Ctl(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func switchControlPollHandler(srv interface{}, stream grpc.ServerStream) error {
	m := new(wrapperspb.BytesValue)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(SwitchControlServer).Poll(m, &switchControlPollServer{stream})
}

// SwitchControlServiceDesc describes the switch control service
var SwitchControlServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SwitchControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Ctl",
			Handler:    switchControlCtlHandler,
		},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Poll",
			Handler:       switchControlPollHandler,
			ServerStreams: true,
		},
	},
	Metadata: "vpcsw/v1/switch_control.proto",
}

// RegisterSwitchControlServer registers srv on s
func RegisterSwitchControlServer(s grpc.ServiceRegistrar, srv SwitchControlServer) {
	s.RegisterService(&SwitchControlServiceDesc, srv)
}
