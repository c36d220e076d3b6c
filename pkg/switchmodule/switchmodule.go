// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package switchmodule realizes stored ports on the switches of the registry
package switchmodule

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/config"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

// ModuleName is the subscriber and component name of the module
const ModuleName = "vpcsw"

// UplinkHook is called with every uplink port the module creates
type UplinkHook func(p *vpcsw.Port)

// ModuleSwitchHandler applies port tasks to the switches of a registry
type ModuleSwitchHandler struct {
	reg      *vpc.Registry
	onUplink UplinkHook
}

// NewHandler creates a handler working on the switches of reg
func NewHandler(reg *vpc.Registry, onUplink UplinkHook) *ModuleSwitchHandler {
	return &ModuleSwitchHandler{reg: reg, onUplink: onUplink}
}

// HandleEvent implements eventbus.EventHandler
func (h *ModuleSwitchHandler) HandleEvent(eventType string, data interface{}) {
	objectData, ok := data.(*eventbus.ObjectData)
	if !ok {
		log.Warnf("SwitchModule: unexpected event data %T", data)
		return
	}
	switch eventType {
	case infradb.PortObjectType:
		log.Debugf("SwitchModule: received %s %s", eventType, objectData.Name)
		h.handlePort(objectData)
	default:
		log.Warnf("SwitchModule: error: unknown event type %s", eventType)
	}
}

func (h *ModuleSwitchHandler) handlePort(objectData *eventbus.ObjectData) {
	comp := common.Component{Name: ModuleName}
	port, err := infradb.GetPort(objectData.Name)
	if err != nil {
		log.Debugf("SwitchModule: GetPort %s: %v", objectData.Name, err)
		// lets the task manager drop the task of a port that is gone
		if errors.Is(err, infradb.ErrKeyNotFound) {
			comp.Succeeded()
			if err := infradb.UpdatePortStatus(objectData.Name, objectData.ResourceVersion, objectData.NotificationID, comp); err != nil {
				log.Errorf("SwitchModule: UpdatePortStatus %s: %v", objectData.Name, err)
			}
		}
		return
	}
	for _, c := range port.Status.Components {
		if c.Name == ModuleName {
			comp = c
		}
	}

	if port.Status.PortOperStatus == infradb.PortOperStatusToBeDeleted {
		err = h.tearDownPort(port)
	} else {
		err = h.setUpPort(port)
	}
	if err != nil {
		comp.Failed(err.Error())
		log.Warnf("SwitchModule: port %s: %v, retry in %v", port.Name, err, comp.Timer)
	} else {
		comp.Succeeded()
	}
	if err := infradb.UpdatePortStatus(objectData.Name, objectData.ResourceVersion, objectData.NotificationID, comp); err != nil {
		log.Errorf("SwitchModule: UpdatePortStatus %s: %v", objectData.Name, err)
	}
}

// withSwitch runs fn with a handle held on the switch of port
func (h *ModuleSwitchHandler) withSwitch(port *infradb.Port, fn func(sw *vpcsw.Switch, id vpc.ID) error) error {
	swID, err := port.SwitchID()
	if err != nil {
		return err
	}
	id, err := port.PortID()
	if err != nil {
		return err
	}
	drv, release, err := h.reg.Acquire(swID)
	if err != nil {
		return err
	}
	defer release()
	sw, ok := drv.(*vpcsw.Switch)
	if !ok {
		return fmt.Errorf("object %s is a %s: %w", swID, drv.ObjectInfo().Type, vpc.ErrInvalid)
	}
	return fn(sw, id)
}

func (h *ModuleSwitchHandler) setUpPort(port *infradb.Port) error {
	return h.withSwitch(port, func(sw *vpcsw.Switch, id vpc.ID) error {
		if port.Spec.Role == infradb.PortRoleUplink {
			p, err := sw.SetUplink(id)
			if errors.Is(err, vpc.ErrExists) {
				if cur, uerr := sw.Uplink(); uerr == nil && cur == id {
					return nil
				}
			}
			if err != nil {
				return err
			}
			if h.onUplink != nil {
				h.onUplink(p)
			}
			return nil
		}
		_, err := sw.AddPort(id)
		if errors.Is(err, vpc.ErrExists) {
			if _, ok := sw.Port(id); ok {
				return nil
			}
		}
		return err
	})
}

func (h *ModuleSwitchHandler) tearDownPort(port *infradb.Port) error {
	err := h.withSwitch(port, func(sw *vpcsw.Switch, id vpc.ID) error {
		if port.Spec.Role == infradb.PortRoleUplink {
			log.Warnf("SwitchModule: uplink %s stays on switch %s until the switch is destroyed", id, sw.Name())
			return nil
		}
		return sw.DeletePort(id)
	})
	// nothing left to remove
	if errors.Is(err, vpc.ErrNotFound) {
		return nil
	}
	return err
}

// Init subscribes the handler to the events the configuration assigns to the module
func Init(subscribers []config.SubscriberConfig, h *ModuleSwitchHandler) []*eventbus.Subscriber {
	var subs []*eventbus.Subscriber
	eb := eventbus.EBus
	for _, subscriberConfig := range subscribers {
		if subscriberConfig.Name != ModuleName {
			continue
		}
		for _, eventType := range subscriberConfig.Events {
			subs = append(subs, eb.StartSubscriber(subscriberConfig.Name, eventType, subscriberConfig.Priority, 1, h))
		}
	}
	return subs
}
