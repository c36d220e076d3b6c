// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2022-2023 Dell Inc, or its subsidiaries.

package infradb

import (
	"net"
	"time"

	"go.einride.tech/aip/resourcename"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
)

// PortObjectType is the task and subscription type of ports
const PortObjectType = "port"

// PortOperStatus is the operational status of a stored port
type PortOperStatus int32

const (
	// PortOperStatusUnspecified is the status of a port no module has realized yet
	PortOperStatusUnspecified PortOperStatus = iota
	// PortOperStatusUp means every module realized the port
	PortOperStatusUp
	// PortOperStatusDown means the port is known but not realized
	PortOperStatusDown
	// PortOperStatusToBeDeleted means the port waits for the modules to remove it
	PortOperStatusToBeDeleted
)

// PortRole mirrors the role the port has on its switch
type PortRole int32

const (
	// PortRoleMember is a port entered in the forwarding table
	PortRoleMember PortRole = iota
	// PortRoleUplink is the port receiving frames for unknown destinations
	PortRoleUplink
)

// PortStatus is the realization state of a port
type PortStatus struct {
	PortOperStatus PortOperStatus
	Components     []common.Component
}

// PortSpec is what a port is made of
type PortSpec struct {
	Switch     string
	ID         string
	MacAddress net.HardwareAddr
	Role       PortRole
}

// Port object, separate from the switch port for decoupling
type Port struct {
	Name            string
	Spec            *PortSpec
	Status          *PortStatus
	CreatedAt       time.Time
	UpdatedAt       time.Time
	ResourceVersion string
}

// build time check that struct implements interface
var _ StoredObject = (*Port)(nil)

// PortName returns the resource name of port id on switch sw
func PortName(sw, id vpc.ID) string {
	return resourcename.Join("//network.opiproject.org/", "switches", sw.String(), "ports", id.String())
}

// NewPort creates a port object for port id on switch sw
func NewPort(sw, id vpc.ID, role PortRole) *Port {
	return &Port{
		Name: PortName(sw, id),
		Spec: &PortSpec{
			Switch:     sw.String(),
			ID:         id.String(),
			MacAddress: id.HardwareAddr(),
			Role:       role,
		},
		Status: &PortStatus{
			PortOperStatus: PortOperStatusDown,
		},
		CreatedAt: time.Now(),
	}
}

// GetName returns the resource name of the port
func (in *Port) GetName() string {
	return in.Name
}

// GetResourceVersion returns the version of the last change to the port
func (in *Port) GetResourceVersion() string {
	return in.ResourceVersion
}

// SwitchID returns the identity of the switch the port belongs to
func (in *Port) SwitchID() (vpc.ID, error) {
	return vpc.ParseID(in.Spec.Switch)
}

// PortID returns the identity of the port
func (in *Port) PortID() (vpc.ID, error) {
	return vpc.ParseID(in.Spec.ID)
}

// setComponents resets the status for a new round of realization by subs
func (in *Port) setComponents(names []string) {
	in.Status.Components = in.Status.Components[:0]
	for _, name := range names {
		in.Status.Components = append(in.Status.Components, common.Component{
			Name:       name,
			CompStatus: common.ComponentStatusPending,
		})
	}
}

// realized reports whether every component succeeded
func (in *Port) realized() bool {
	for _, c := range in.Status.Components {
		if c.CompStatus != common.ComponentStatusSuccess {
			return false
		}
	}
	return true
}
