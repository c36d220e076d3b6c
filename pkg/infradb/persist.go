// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package infradb

import (
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

// recorderName is the subscriber name of the port recorder
const recorderName = "infradb"

// PortRecorder keeps the store in step with the ports switches create and delete
type PortRecorder struct{}

// StartPortRecorder subscribes the recorder to the port events on bus
func StartPortRecorder(bus *eventbus.EventBus) *eventbus.Subscriber {
	return bus.StartSubscriber(recorderName, vpcsw.PortEventTopic, 0, 16, &PortRecorder{})
}

// HandleEvent implements eventbus.EventHandler
func (r *PortRecorder) HandleEvent(_ string, data interface{}) {
	ev, ok := data.(*vpcsw.PortEvent)
	if !ok {
		log.Warnf("PortRecorder: unexpected event %T", data)
		return
	}
	name := PortName(ev.Switch, ev.Port)

	if ev.Deleted {
		if err := ForgetPort(name); err != nil && !errors.Is(err, ErrKeyNotFound) {
			log.Errorf("PortRecorder: forget %s: %v", name, err)
		}
		return
	}

	role := PortRoleMember
	if ev.Role == vpcsw.RoleUplink {
		role = PortRoleUplink
	}
	// ports replayed from the store are already recorded
	if err := RecordPort(NewPort(ev.Switch, ev.Port, role)); err != nil && !errors.Is(err, ErrKeyExists) {
		log.Errorf("PortRecorder: record %s: %v", name, err)
	}
}
