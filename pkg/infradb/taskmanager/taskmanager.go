// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package taskmanager hands stored objects to the modules that realize them, one
// subscriber at a time in priority order, and retries the ones that fail
package taskmanager

import (
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/opiproject/opi-vpcsw-bridge/pkg/eventbus"
	"github.com/opiproject/opi-vpcsw-bridge/pkg/infradb/common"
)

// DefaultStatusTimeout is how long a subscriber gets to report a status
const DefaultStatusTimeout = 30 * time.Second

// TaskMan is the task manager used by infradb
var TaskMan = NewTaskManager(eventbus.EBus, DefaultStatusTimeout)

// TaskManager processes tasks one after the other
type TaskManager struct {
	bus            *eventbus.EventBus
	timeout        time.Duration
	taskQueue      *TaskQueue
	taskStatusChan chan *TaskStatus
	quit           chan struct{}
}

// Task is one object to hand to its subscribers
type Task struct {
	name            string
	objectType      string
	resourceVersion string
	subIndex        int
	retryTimer      time.Duration
	subs            []*eventbus.Subscriber
}

// TaskStatus is what a subscriber reported for a task
type TaskStatus struct {
	name            string
	objectType      string
	resourceVersion string
	notificationID  string
	dropTask        bool
	component       *common.Component
}

// NewTaskManager creates a task manager publishing on bus
func NewTaskManager(bus *eventbus.EventBus, timeout time.Duration) *TaskManager {
	return &TaskManager{
		bus:            bus,
		timeout:        timeout,
		taskQueue:      NewTaskQueue(DefaultQueueDepth),
		taskStatusChan: make(chan *TaskStatus, 16),
		quit:           make(chan struct{}),
	}
}

func newTask(name, objectType, resourceVersion string, subs []*eventbus.Subscriber) *Task {
	return &Task{
		name:            name,
		objectType:      objectType,
		resourceVersion: resourceVersion,
		subIndex:        0,
		subs:            subs,
	}
}

func newTaskStatus(name, objectType, resourceVersion, notificationID string, dropTask bool, component *common.Component) *TaskStatus {
	return &TaskStatus{
		name:            name,
		objectType:      objectType,
		resourceVersion: resourceVersion,
		notificationID:  notificationID,
		dropTask:        dropTask,
		component:       component,
	}
}

// StartTaskManager starts processing tasks
func (t *TaskManager) StartTaskManager() {
	go t.processTasks()
	log.Info("Task Manager has started")
}

// StopTaskManager stops processing once the current task is handed over
func (t *TaskManager) StopTaskManager() {
	close(t.quit)
}

// CreateTask queues a task for the object
func (t *TaskManager) CreateTask(name, objectType, resourceVersion string, subs []*eventbus.Subscriber) {
	task := newTask(name, objectType, resourceVersion, subs)
	// enqueue from a goroutine so that a full queue blocks only that goroutine
	go t.taskQueue.Enqueue(task)
	log.Debugf("CreateTask(): New Task has been created: %+v", task)
}

// StatusUpdated reports the status of the notification a subscriber processed
func (t *TaskManager) StatusUpdated(name, objectType, resourceVersion, notificationID string, dropTask bool, component *common.Component) {
	taskStatus := newTaskStatus(name, objectType, resourceVersion, notificationID, dropTask, component)
	t.taskStatusChan <- taskStatus
	log.Debugf("StatusUpdated(): New Task Status has been sent to channel: %+v", taskStatus)
}

func (t *TaskManager) processTasks() {
	for {
		var task *Task
		select {
		case task = <-t.taskQueue.Tasks():
		case <-t.quit:
			log.Info("Task Manager has stopped")
			return
		}
		log.Debugf("processTasks(): Task has been dequeued for processing: %+v", task)
		t.processTask(task)
	}
}

func (t *TaskManager) processTask(task *Task) {
	subsToIterate := task.subs[task.subIndex:]
	for i, sub := range subsToIterate {
		objectData := &eventbus.ObjectData{
			Name:            task.name,
			ResourceVersion: task.resourceVersion,
			// matches the status to this notification and not to an older one
			NotificationID: uuid.NewString(),
		}
		t.bus.PublishTo(sub, objectData)
		log.Debugf("processTasks(): Notification has been sent to subscriber %s with data %+v", sub.Name, objectData)

		taskStatus := t.waitStatus(objectData.NotificationID)
		if taskStatus == nil {
			log.Warnf("processTasks(): No task status has been received from subscriber %s. The task %s will be requeued", sub.Name, task.name)
			task.subIndex += i
			go t.taskQueue.Enqueue(task)
			return
		}
		if taskStatus.dropTask {
			log.Debugf("processTasks(): Task %s dropped", task.name)
			return
		}

		if taskStatus.component.CompStatus == common.ComponentStatusSuccess {
			log.Debugf("processTasks(): Subscriber %s has processed the task %s successfully", sub.Name, task.name)
			continue
		}
		task.subIndex += i
		task.retryTimer = taskStatus.component.Timer
		log.Infof("processTasks(): Subscriber %s has not processed the task %s successfully, requeued after %v", sub.Name, task.name, task.retryTimer)
		time.AfterFunc(task.retryTimer, func() {
			t.taskQueue.Enqueue(task)
		})
		return
	}
}

// waitStatus returns the status reported for notificationID, or nil on timeout.
// Statuses of older notifications are discarded.
func (t *TaskManager) waitStatus(notificationID string) *TaskStatus {
	timeout := time.After(t.timeout)
	for {
		select {
		case taskStatus := <-t.taskStatusChan:
			if taskStatus.notificationID == notificationID {
				return taskStatus
			}
			log.Debugf("processTasks(): received notification id %s doesn't equal the sent notification id %s", taskStatus.notificationID, notificationID)
		case <-timeout:
			return nil
		}
	}
}
