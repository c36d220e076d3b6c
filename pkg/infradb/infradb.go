// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package infradb keeps the ports of every switch in a key value store and hands
// them to the modules that realize them
package infradb

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/philippgille/gokv"
	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/taskmanager"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/storage"
)

var infradb *InfraDB
var globalLock sync.Mutex

// InfraDB is the store of the objects
type InfraDB struct {
	client gokv.Store
}

var (
	// ErrKeyNotFound is returned for objects missing from the store
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyExists is returned when creating an object already in the store
	ErrKeyExists = errors.New("key already exists")
	// ErrComponentNotFound is returned for a status update of an unknown component
	ErrComponentNotFound = errors.New("component not found")
)

// portsKey indexes the names of all stored ports
const portsKey = "ports"

// NewInfraDB opens the store
func NewInfraDB(address string, dbtype string) error {
	store, err := storage.NewStore(dbtype, address)
	if err != nil {
		return err
	}

	globalLock.Lock()
	defer globalLock.Unlock()
	infradb = &InfraDB{
		client: store.GetClient(),
	}
	return nil
}

// Close closes the store
func Close() error {
	globalLock.Lock()
	defer globalLock.Unlock()
	return infradb.client.Close()
}

func subscriberNames(subs []*eventbus.Subscriber) []string {
	names := make([]string, 0, len(subs))
	for _, sub := range subs {
		names = append(names, sub.Name)
	}
	return names
}

func getPort(name string) (*Port, error) {
	port := &Port{}
	found, err := infradb.client.Get(name, port)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrKeyNotFound
	}
	return port, nil
}

func getPortNames() (map[string]bool, error) {
	ports := make(map[string]bool)
	if _, err := infradb.client.Get(portsKey, &ports); err != nil {
		return nil, err
	}
	return ports, nil
}

func setPort(port *Port) error {
	ports, err := getPortNames()
	if err != nil {
		return err
	}
	if err := infradb.client.Set(port.Name, port); err != nil {
		return err
	}
	if !ports[port.Name] {
		ports[port.Name] = true
		return infradb.client.Set(portsKey, ports)
	}
	return nil
}

func removePort(name string) error {
	if err := infradb.client.Delete(name); err != nil {
		return err
	}
	ports, err := getPortNames()
	if err != nil {
		return err
	}
	delete(ports, name)
	return infradb.client.Set(portsKey, ports)
}

// schedule hands the port to the subscribers of ports, or marks it realized when
// there are none
func schedule(port *Port) {
	subscribers := eventbus.EBus.GetSubscribers(PortObjectType)
	port.setComponents(subscriberNames(subscribers))
	if len(subscribers) == 0 {
		log.Debugf("schedule(): no subscribers for port %s", port.Name)
		if port.Status.PortOperStatus != PortOperStatusToBeDeleted {
			port.Status.PortOperStatus = PortOperStatusUp
		}
		return
	}
	taskmanager.TaskMan.CreateTask(port.Name, PortObjectType, port.ResourceVersion, subscribers)
}

// CreatePort stores a new port and hands it to the modules realizing ports
func CreatePort(port *Port) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	if _, err := getPort(port.Name); err == nil {
		return ErrKeyExists
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}

	port.ResourceVersion = generateVersion()
	port.UpdatedAt = port.CreatedAt
	schedule(port)
	if err := setPort(port); err != nil {
		return err
	}
	log.Infof("CreatePort(): port %s stored", port.Name)
	return nil
}

// RecordPort stores a port that is already realized. It is used for ports created
// directly through control operations.
func RecordPort(port *Port) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	if _, err := getPort(port.Name); err == nil {
		return ErrKeyExists
	} else if !errors.Is(err, ErrKeyNotFound) {
		return err
	}
	port.ResourceVersion = generateVersion()
	port.UpdatedAt = port.CreatedAt
	port.Status.PortOperStatus = PortOperStatusUp
	if err := setPort(port); err != nil {
		return err
	}
	log.Debugf("RecordPort(): port %s recorded", port.Name)
	return nil
}

// DeletePort marks a port for deletion and hands it to the modules, which remove
// it before it leaves the store
func DeletePort(name string) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	port, err := getPort(name)
	if err != nil {
		return err
	}
	port.ResourceVersion = generateVersion()
	port.Status.PortOperStatus = PortOperStatusToBeDeleted
	schedule(port)
	if len(port.Status.Components) == 0 {
		return removePort(name)
	}
	return infradb.client.Set(port.Name, port)
}

// ForgetPort removes a port from the store without involving the modules
func ForgetPort(name string) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	if _, err := getPort(name); err != nil {
		return err
	}
	log.Debugf("ForgetPort(): port %s removed", name)
	return removePort(name)
}

// GetPort returns the stored port called name
func GetPort(name string) (*Port, error) {
	globalLock.Lock()
	defer globalLock.Unlock()

	return getPort(name)
}

// GetAllPorts returns every stored port sorted by name
func GetAllPorts() ([]*Port, error) {
	globalLock.Lock()
	defer globalLock.Unlock()

	names, err := getPortNames()
	if err != nil {
		return nil, err
	}
	ports := make([]*Port, 0, len(names))
	for name := range names {
		port, err := getPort(name)
		if err != nil {
			log.Warnf("GetAllPorts(): port %s: %v", name, err)
			continue
		}
		ports = append(ports, port)
	}
	sort.Slice(ports, func(i, j int) bool { return ports[i].Name < ports[j].Name })
	return ports, nil
}

// ReplayPorts hands every stored port to the modules again. A port marked for
// deletion is replayed as a deletion. It returns the number of ports replayed.
func ReplayPorts() (int, error) {
	globalLock.Lock()
	defer globalLock.Unlock()

	names, err := getPortNames()
	if err != nil {
		return 0, err
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	n := 0
	for _, name := range sorted {
		port, err := getPort(name)
		if err != nil {
			log.Warnf("ReplayPorts(): port %s: %v", name, err)
			continue
		}
		port.ResourceVersion = generateVersion()
		if port.Status.PortOperStatus != PortOperStatusToBeDeleted {
			port.Status.PortOperStatus = PortOperStatusDown
		}
		schedule(port)
		if len(port.Status.Components) == 0 && port.Status.PortOperStatus == PortOperStatusToBeDeleted {
			err = removePort(name)
		} else {
			err = infradb.client.Set(port.Name, port)
		}
		if err != nil {
			return n, err
		}
		n++
	}
	log.Infof("ReplayPorts(): %d ports replayed", n)
	return n, nil
}

// UpdatePortStatus records the status a module reported for the notification it
// processed and tells the task manager
func UpdatePortStatus(name string, resourceVersion string, notificationID string, component common.Component) error {
	globalLock.Lock()
	defer globalLock.Unlock()

	// When we get an error from an operation to the Database then we just return it. The
	// Task manager will just expire the task and retry.
	port, err := getPort(name)
	if errors.Is(err, ErrKeyNotFound) {
		// the port is gone so the task that is related with this status update is dropped
		taskmanager.TaskMan.StatusUpdated(name, PortObjectType, resourceVersion, notificationID, true, &component)
		log.Debugf("UpdatePortStatus(): No port has been found in DB with Name %s", name)
		return nil
	}
	if err != nil {
		return err
	}

	if port.ResourceVersion != resourceVersion {
		// a newer version of the port has its own task
		taskmanager.TaskMan.StatusUpdated(port.Name, PortObjectType, port.ResourceVersion, notificationID, true, &component)
		log.Debugf("UpdatePortStatus(): Invalid resourceVersion %s for port %s", resourceVersion, name)
		return nil
	}

	found := false
	for i, comp := range port.Status.Components {
		if comp.Name == component.Name {
			port.Status.Components[i] = component
			found = true
			break
		}
	}
	if !found {
		return ErrComponentNotFound
	}

	switch {
	case port.realized() && port.Status.PortOperStatus == PortOperStatusToBeDeleted:
		if err := removePort(port.Name); err != nil {
			return err
		}
		log.Infof("UpdatePortStatus(): port %s has been deleted", name)
	case port.realized():
		port.Status.PortOperStatus = PortOperStatusUp
		fallthrough
	default:
		port.UpdatedAt = time.Now()
		if err := infradb.client.Set(port.Name, port); err != nil {
			return err
		}
		log.Debugf("UpdatePortStatus(): port %s has been updated: %+v", name, port.Status)
	}

	taskmanager.TaskMan.StatusUpdated(port.Name, PortObjectType, port.ResourceVersion, notificationID, false, &component)
	return nil
}
