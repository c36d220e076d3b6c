// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package infradb

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/taskmanager"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/packet"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/storage"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpc"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/vpcsw"
)

var (
	testSwitch = vpc.NewID(packet.MAC{0x02, 0xff, 0, 0, 0, 0})
	startTasks sync.Once
)

func newTestDB(t *testing.T) {
	t.Helper()
	require.NoError(t, NewInfraDB("", storage.GoMap))
	t.Cleanup(func() { _ = Close() })
	startTasks.Do(taskmanager.TaskMan.StartTaskManager)
}

// fakeModule realizes ports, failing the first fail notifications
type fakeModule struct {
	mu   sync.Mutex
	fail int
	seen []string
}

func (m *fakeModule) HandleEvent(_ string, data interface{}) {
	od := data.(*eventbus.ObjectData)
	comp := common.Component{Name: "fake"}

	m.mu.Lock()
	m.seen = append(m.seen, od.Name)
	if m.fail > 0 {
		m.fail--
		comp.Failed("boom")
		comp.Timer = 10 * time.Millisecond
	} else {
		comp.Succeeded()
	}
	m.mu.Unlock()

	_ = UpdatePortStatus(od.Name, od.ResourceVersion, od.NotificationID, comp)
}

func (m *fakeModule) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

func subscribe(t *testing.T, m *fakeModule) {
	t.Helper()
	sub := eventbus.EBus.StartSubscriber("fake", PortObjectType, 1, 1, m)
	t.Cleanup(func() { eventbus.EBus.UnsubscribeEvent(sub, PortObjectType) })
}

func operStatus(name string) PortOperStatus {
	port, err := GetPort(name)
	if err != nil {
		return -1
	}
	return port.Status.PortOperStatus
}

func TestPortWithoutModules(t *testing.T) {
	newTestDB(t)
	id := vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x01})
	port := NewPort(testSwitch, id, PortRoleMember)
	assert.Equal(t, "//network.opiproject.org/switches/"+testSwitch.String()+"/ports/"+id.String(), port.Name)

	require.NoError(t, CreatePort(port))
	require.ErrorIs(t, CreatePort(NewPort(testSwitch, id, PortRoleMember)), ErrKeyExists)

	got, err := GetPort(port.Name)
	require.NoError(t, err)
	assert.Equal(t, PortOperStatusUp, got.Status.PortOperStatus)
	assert.Equal(t, id.HardwareAddr(), got.Spec.MacAddress)
	assert.NotEmpty(t, got.ResourceVersion)
	gotID, err := got.PortID()
	require.NoError(t, err)
	assert.Equal(t, id, gotID)
	gotSwitch, err := got.SwitchID()
	require.NoError(t, err)
	assert.Equal(t, testSwitch, gotSwitch)

	all, err := GetAllPorts()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, port.Name, all[0].Name)

	require.NoError(t, DeletePort(port.Name))
	_, err = GetPort(port.Name)
	require.ErrorIs(t, err, ErrKeyNotFound)
	require.ErrorIs(t, DeletePort(port.Name), ErrKeyNotFound)

	all, err = GetAllPorts()
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPortRealizedByModule(t *testing.T) {
	newTestDB(t)
	m := &fakeModule{fail: 1}
	subscribe(t, m)

	port := NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x02}), PortRoleMember)
	require.NoError(t, CreatePort(port))

	// the first attempt fails and the task is retried
	assert.Eventually(t, func() bool { return operStatus(port.Name) == PortOperStatusUp }, 5*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, m.count(), 2)
	got, err := GetPort(port.Name)
	require.NoError(t, err)
	require.Len(t, got.Status.Components, 1)
	assert.Equal(t, common.ComponentStatusSuccess, got.Status.Components[0].CompStatus)

	require.NoError(t, DeletePort(port.Name))
	assert.Eventually(t, func() bool {
		_, err := GetPort(port.Name)
		return err == ErrKeyNotFound
	}, 5*time.Second, 5*time.Millisecond)
}

func TestUpdatePortStatusIgnoresStaleVersion(t *testing.T) {
	newTestDB(t)
	m := &fakeModule{}
	subscribe(t, m)

	port := NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x03}), PortRoleMember)
	require.NoError(t, CreatePort(port))
	assert.Eventually(t, func() bool { return operStatus(port.Name) == PortOperStatusUp }, 5*time.Second, 5*time.Millisecond)

	comp := common.Component{Name: "fake"}
	comp.Failed("late")
	require.NoError(t, UpdatePortStatus(port.Name, "1", "stale", comp))
	assert.Equal(t, PortOperStatusUp, operStatus(port.Name))

	got, err := GetPort(port.Name)
	require.NoError(t, err)
	comp.Name = "other"
	assert.ErrorIs(t, UpdatePortStatus(port.Name, got.ResourceVersion, "stale", comp), ErrComponentNotFound)
	assert.NoError(t, UpdatePortStatus("missing", "1", "stale", comp))
}

func TestReplayPorts(t *testing.T) {
	newTestDB(t)
	a := NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x04}), PortRoleMember)
	b := NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x05}), PortRoleUplink)
	require.NoError(t, RecordPort(a))
	require.NoError(t, RecordPort(b))
	require.ErrorIs(t, RecordPort(NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x04}), PortRoleMember)), ErrKeyExists)

	m := &fakeModule{}
	subscribe(t, m)
	n, err := ReplayPorts()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Eventually(t, func() bool { return m.count() == 2 }, 5*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool {
		return operStatus(a.Name) == PortOperStatusUp && operStatus(b.Name) == PortOperStatusUp
	}, 5*time.Second, 5*time.Millisecond)
}

func TestPortRecorder(t *testing.T) {
	newTestDB(t)
	bus := eventbus.NewEventBus()
	sub := StartPortRecorder(bus)
	t.Cleanup(func() { bus.UnsubscribeEvent(sub, vpcsw.PortEventTopic) })

	id := vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x06})
	name := PortName(testSwitch, id)
	bus.Publish(vpcsw.PortEventTopic, &vpcsw.PortEvent{Switch: testSwitch, Port: id, MAC: id.MAC(), Role: vpcsw.RoleUplink})
	assert.Eventually(t, func() bool { return operStatus(name) == PortOperStatusUp }, time.Second, time.Millisecond)
	got, err := GetPort(name)
	require.NoError(t, err)
	assert.Equal(t, PortRoleUplink, got.Spec.Role)

	// a second add of a recorded port leaves it alone
	version := got.ResourceVersion
	bus.Publish(vpcsw.PortEventTopic, &vpcsw.PortEvent{Switch: testSwitch, Port: id, MAC: id.MAC(), Role: vpcsw.RoleUplink})
	bus.Publish(vpcsw.PortEventTopic, "noise")
	bus.Publish(vpcsw.PortEventTopic, &vpcsw.PortEvent{Switch: testSwitch, Port: id, Deleted: true})
	assert.Eventually(t, func() bool {
		_, err := GetPort(name)
		return err == ErrKeyNotFound
	}, time.Second, time.Millisecond)
	assert.NotEmpty(t, version)
}

func TestGenerateVersionIncreases(t *testing.T) {
	prev := int64(0)
	for i := 0; i < 1000; i++ {
		v, err := strconv.ParseInt(generateVersion(), 10, 64)
		require.NoError(t, err)
		require.Greater(t, v, prev)
		prev = v
	}
	var obj StoredObject = NewPort(testSwitch, vpc.NewID(packet.MAC{0x02, 0, 0, 0, 0, 0x42}), PortRoleMember)
	assert.Empty(t, obj.GetResourceVersion())
}
