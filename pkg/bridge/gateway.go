// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package bridge

import (
	"context"
	"encoding/binary"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

var jsonMarshaler = &runtime.JSONPb{}

// RegisterGatewayRoutes adds the HTTP routes of the server to mux
func (s *Server) RegisterGatewayRoutes(mux *runtime.ServeMux) error {
	if err := mux.HandlePath(http.MethodGet, "/v1/objects/{id}/uplink", s.getUplink); err != nil {
		return err
	}
	if err := mux.HandlePath(http.MethodGet, "/v1/objects/{id}/state", s.getState); err != nil {
		return err
	}
	return mux.HandlePath(http.MethodGet, "/v1/ports", s.listPorts)
}

func writeError(w http.ResponseWriter, err error) {
	st := status.Convert(toStatus(err))
	http.Error(w, st.Message(), runtime.HTTPStatusFromCode(st.Code()))
}

func writeMessage(w http.ResponseWriter, m proto.Message) {
	b, err := jsonMarshaler.Marshal(m)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", jsonMarshaler.ContentType(m))
	if _, err := w.Write(b); err != nil {
		log.Debugf("gateway: write: %v", err)
	}
}

func (s *Server) objectCtl(ctx context.Context, w http.ResponseWriter, rawID string, op vpc.Op) ([]byte, bool) {
	id, err := vpc.ParseID(rawID)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	out, err := s.ctl(ctx, id, op, nil)
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return out, true
}

func (s *Server) getUplink(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	out, ok := s.objectCtl(r.Context(), w, pathParams["id"], vpc.OpPortUplinkGet)
	if !ok {
		return
	}
	id, err := vpc.IDFromBytes(out)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, wrapperspb.String(id.String()))
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request, pathParams map[string]string) {
	out, ok := s.objectCtl(r.Context(), w, pathParams["id"], vpc.OpStateGet)
	if !ok {
		return
	}
	if len(out) != vpcsw.StateSize {
		writeError(w, vpc.ErrBadRPC)
		return
	}
	writeMessage(w, wrapperspb.UInt64(binary.LittleEndian.Uint64(out)))
}

func (s *Server) listPorts(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	ports, err := infradb.GetAllPorts()
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]interface{}, 0, len(ports))
	for _, p := range ports {
		role := "member"
		if p.Spec.Role == infradb.PortRoleUplink {
			role = "uplink"
		}
		items = append(items, map[string]interface{}{
			"name":    p.Name,
			"mac":     p.Spec.MacAddress.String(),
			"role":    role,
			"status":  int(p.Status.PortOperStatus),
			"version": p.ResourceVersion,
		})
	}
	list, err := structpb.NewList(items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeMessage(w, list)
}
