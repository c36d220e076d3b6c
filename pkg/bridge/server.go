// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Intel Corporation, or its subsidiaries.
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.
// Copyright (C) 2023 Nordix Foundation.

// Package bridge exposes the vpc objects of a registry over gRPC and HTTP
package bridge

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

// Server implements the switch control service
type Server struct {
	reg *vpc.Registry
}

// build time check that struct implements interface
var _ SwitchControlServer = (*Server)(nil)

// NewServer creates a server on the process wide registry
func NewServer() *Server {
	return NewServerWithArgs(vpc.DefaultRegistry)
}

// NewServerWithArgs creates a server on reg
func NewServerWithArgs(reg *vpc.Registry) *Server {
	if reg == nil {
		log.Panic("nil for Registry is not allowed")
	}
	return &Server{reg: reg}
}

// toStatus maps the vpc errors to gRPC status codes
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codes.Internal
	switch {
	case errors.Is(err, vpc.ErrNotFound):
		code = codes.NotFound
	case errors.Is(err, vpc.ErrExists):
		code = codes.AlreadyExists
	case errors.Is(err, vpc.ErrBadRPC), errors.Is(err, vpc.ErrInvalid), errors.Is(err, vpc.ErrNoAddr):
		code = codes.InvalidArgument
	case errors.Is(err, vpc.ErrNotSupported):
		code = codes.Unimplemented
	case errors.Is(err, vpc.ErrBusy):
		code = codes.FailedPrecondition
	case errors.Is(err, vpc.ErrNoBufs):
		code = codes.ResourceExhausted
	case errors.Is(err, vpc.ErrAgain):
		code = codes.Unavailable
	case errors.Is(err, context.Canceled):
		code = codes.Canceled
	case errors.Is(err, context.DeadlineExceeded):
		code = codes.DeadlineExceeded
	}
	return status.Error(code, err.Error())
}

// ctl runs op on the object id with a handle held on it
func (s *Server) ctl(ctx context.Context, id vpc.ID, op vpc.Op, in []byte) ([]byte, error) {
	drv, release, err := s.reg.Acquire(id)
	if err != nil {
		return nil, err
	}
	defer release()
	return drv.Ctl(ctx, op, in)
}

// Ctl executes one control operation
func (s *Server) Ctl(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	env, err := vpc.UnmarshalEnvelope(in.GetValue())
	if err != nil {
		log.Debugf("Ctl(): validation failure: %v", err)
		return nil, toStatus(err)
	}
	out, err := s.ctl(ctx, env.Object, env.Op, env.Payload)
	if err != nil {
		log.Debugf("Ctl(): %s on %s: %v", env.Op, env.Object, err)
		return nil, toStatus(err)
	}
	return &wrapperspb.BytesValue{Value: out}, nil
}

// Poll registers the stream as the consumer of the requests the object traps and
// sends each one as it becomes pending. A request is consumed once sent.
func (s *Server) Poll(in *wrapperspb.BytesValue, stream SwitchControlPollServer) error {
	id, err := vpc.IDFromBytes(in.GetValue())
	if err != nil {
		return toStatus(err)
	}
	drv, release, err := s.reg.Acquire(id)
	if err != nil {
		return toStatus(err)
	}
	defer release()
	src, ok := drv.(vpc.EventSource)
	if !ok {
		return status.Errorf(codes.Unimplemented, "object %s raises no requests", id)
	}
	l, err := src.Listen(nil)
	if err != nil {
		return toStatus(err)
	}
	defer l.Close()
	src.Poll()
	log.Infof("Poll(): consumer registered on %s", id)

	ctx := stream.Context()
	buf := make([]byte, vpcsw.RequestSize)
	for {
		select {
		case <-ctx.Done():
			log.Infof("Poll(): consumer of %s gone: %v", id, ctx.Err())
			return nil
		case <-l.Ready():
		}
		for {
			n, err := l.Read(buf)
			if errors.Is(err, vpc.ErrAgain) {
				break
			}
			if err != nil {
				return toStatus(err)
			}
			out := make([]byte, n)
			copy(out, buf[:n])
			if err := stream.Send(&wrapperspb.BytesValue{Value: out}); err != nil {
				return err
			}
		}
	}
}
