// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package vpc

import "fmt"

// Op is a control operation code. The object type lives in the upper half so that
// an op sent to the wrong kind of object is rejected.
type Op uint32

// MakeOp builds the code of operation n for objects of type t
func MakeOp(t ObjType, n uint16) Op {
	return Op(uint32(t)<<16 | uint32(n))
}

// ObjType returns the object type the op belongs to
func (o Op) ObjType() ObjType {
	return ObjType(o >> 16)
}

// Switch operations
var (
	OpPortAdd        = MakeOp(ObjSwitch, 1)
	OpPortDel        = MakeOp(ObjSwitch, 2)
	OpPortUplinkSet  = MakeOp(ObjSwitch, 3)
	OpPortUplinkGet  = MakeOp(ObjSwitch, 4)
	OpStateGet       = MakeOp(ObjSwitch, 5)
	OpStateSet       = MakeOp(ObjSwitch, 6)
	OpReset          = MakeOp(ObjSwitch, 7)
	OpResponseNDv4   = MakeOp(ObjSwitch, 8)
	OpResponseNDv6   = MakeOp(ObjSwitch, 9)
	OpResponseDHCPv4 = MakeOp(ObjSwitch, 10)
	OpResponseDHCPv6 = MakeOp(ObjSwitch, 11)
)

// Ethlink operations
var (
	OpEthlinkAttach      = MakeOp(ObjEthlink, 1)
	OpEthlinkAttachedGet = MakeOp(ObjEthlink, 2)
)

var opNames = map[Op]string{
	OpPortAdd:            "PORT_ADD",
	OpPortDel:            "PORT_DEL",
	OpPortUplinkSet:      "PORT_UPLINK_SET",
	OpPortUplinkGet:      "PORT_UPLINK_GET",
	OpStateGet:           "STATE_GET",
	OpStateSet:           "STATE_SET",
	OpReset:              "RESET",
	OpResponseNDv4:       "RESPONSE_NDV4",
	OpResponseNDv6:       "RESPONSE_NDV6",
	OpResponseDHCPv4:     "RESPONSE_DHCPV4",
	OpResponseDHCPv6:     "RESPONSE_DHCPV6",
	OpEthlinkAttach:      "ETHLINK_ATTACH",
	OpEthlinkAttachedGet: "ETHLINK_ATTACHED_GET",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return fmt.Sprintf("%s_OP_%d", o.ObjType(), uint16(o))
}
