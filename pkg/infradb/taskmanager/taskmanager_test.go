// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package taskmanager

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
)

// module reports a scripted status for every notification it gets
type module struct {
	tm      *TaskManager
	name    string
	mu      sync.Mutex
	got     []*eventbus.ObjectData
	results []common.ComponentStatus
	silent  int
}

func (m *module) HandleEvent(_ string, data interface{}) {
	od := data.(*eventbus.ObjectData)
	m.mu.Lock()
	m.got = append(m.got, od)
	if m.silent > 0 {
		m.silent--
		m.mu.Unlock()
		return
	}
	status := common.ComponentStatusSuccess
	if len(m.results) > 0 {
		status = m.results[0]
		m.results = m.results[1:]
	}
	m.mu.Unlock()

	comp := &common.Component{Name: m.name, CompStatus: status}
	if status == common.ComponentStatusError {
		comp.Timer = time.Millisecond
	}
	m.tm.StatusUpdated(od.Name, "port", od.ResourceVersion, od.NotificationID, false, comp)
}

func (m *module) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.got)
}

func newManager(t *testing.T, timeout time.Duration) (*TaskManager, *eventbus.EventBus) {
	bus := eventbus.NewEventBus()
	tm := NewTaskManager(bus, timeout)
	tm.StartTaskManager()
	t.Cleanup(tm.StopTaskManager)
	return tm, bus
}

func TestSubscribersInPriorityOrder(t *testing.T) {
	tm, bus := newManager(t, time.Second)
	var order []string
	var mu sync.Mutex
	first := &module{tm: tm, name: "first"}
	second := &module{tm: tm, name: "second"}
	bus.StartSubscriber("second", "port", 2, 1, eventbus.EventHandler(recordOrder(&mu, &order, second)))
	bus.StartSubscriber("first", "port", 1, 1, eventbus.EventHandler(recordOrder(&mu, &order, first)))

	tm.CreateTask("p1", "port", "1", bus.GetSubscribers("port"))
	assert.Eventually(t, func() bool { return second.count() == 1 }, time.Second, time.Millisecond)
	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, order)
	mu.Unlock()

	od := first.got[0]
	assert.Equal(t, "p1", od.Name)
	assert.Equal(t, "1", od.ResourceVersion)
	assert.NotEmpty(t, od.NotificationID)
	assert.NotEqual(t, od.NotificationID, second.got[0].NotificationID)
}

type orderedHandler struct {
	mu    *sync.Mutex
	order *[]string
	m     *module
}

func recordOrder(mu *sync.Mutex, order *[]string, m *module) *orderedHandler {
	return &orderedHandler{mu: mu, order: order, m: m}
}

func (h *orderedHandler) HandleEvent(eventType string, data interface{}) {
	h.mu.Lock()
	*h.order = append(*h.order, h.m.name)
	h.mu.Unlock()
	h.m.HandleEvent(eventType, data)
}

func TestFailedTaskIsRetried(t *testing.T) {
	tm, bus := newManager(t, time.Second)
	first := &module{tm: tm, name: "first"}
	second := &module{tm: tm, name: "second", results: []common.ComponentStatus{common.ComponentStatusError}}
	bus.StartSubscriber("first", "port", 1, 1, first)
	bus.StartSubscriber("second", "port", 2, 1, second)

	tm.CreateTask("p1", "port", "1", bus.GetSubscribers("port"))
	assert.Eventually(t, func() bool { return second.count() == 2 }, time.Second, time.Millisecond)
	// the retry resumes at the subscriber that failed
	assert.Equal(t, 1, first.count())
}

func TestSilentSubscriberTimesOut(t *testing.T) {
	tm, bus := newManager(t, 20*time.Millisecond)
	m := &module{tm: tm, name: "m", silent: 1}
	bus.StartSubscriber("m", "port", 1, 1, m)

	tm.CreateTask("p1", "port", "1", bus.GetSubscribers("port"))
	assert.Eventually(t, func() bool { return m.count() == 2 }, time.Second, time.Millisecond)
	m.mu.Lock()
	defer m.mu.Unlock()
	require.Len(t, m.got, 2)
	assert.NotEqual(t, m.got[0].NotificationID, m.got[1].NotificationID)
}

func TestDroppedTaskIsNotRetried(t *testing.T) {
	tm, bus := newManager(t, time.Second)
	dropper := eventbus.EventHandler(dropHandler{tm})
	sub := bus.StartSubscriber("dropper", "port", 1, 1, dropper)
	later := &module{tm: tm, name: "later"}
	bus.StartSubscriber("later", "port", 2, 1, later)

	tm.CreateTask("p1", "port", "1", bus.GetSubscribers("port"))
	tm.CreateTask("p2", "port", "1", []*eventbus.Subscriber{bus.GetSubscribers("port")[1]})
	assert.Eventually(t, func() bool { return later.count() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return later.count() > 1 }, 50*time.Millisecond, 5*time.Millisecond)
	assert.Equal(t, "p2", later.got[0].Name)
	assert.Equal(t, "dropper", sub.Name)
}

type dropHandler struct {
	tm *TaskManager
}

func (d dropHandler) HandleEvent(_ string, data interface{}) {
	od := data.(*eventbus.ObjectData)
	d.tm.StatusUpdated(od.Name, "port", od.ResourceVersion, od.NotificationID, true, &common.Component{Name: "dropper"})
}

func TestQueue(t *testing.T) {
	q := NewTaskQueue(0)
	assert.Equal(t, DefaultQueueDepth, cap(q.channel))
	q.Enqueue(newTask("a", "port", "1", nil))
	q.Enqueue(newTask("b", "port", "1", nil))
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, "a", q.Dequeue().name)
	assert.Equal(t, "b", (<-q.Tasks()).name)
	assert.Zero(t, q.Len())
}
