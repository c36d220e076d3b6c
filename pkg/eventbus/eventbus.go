// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

// Package eventbus delivers events to subscribers in priority order
package eventbus

import (
	"sort"
	"sync"

	log "github.com/sirupsen/logrus"
)

// EBus is the process wide bus
var EBus = NewEventBus()

// EventBus keeps the subscribers of every event type sorted by priority
type EventBus struct {
	subscribers map[string][]*Subscriber
	mutex       sync.RWMutex
}

// Subscriber is one registration. Ch carries the published events.
type Subscriber struct {
	Name     string
	Ch       chan interface{}
	Quit     chan bool
	Priority int
}

// EventHandler processes events delivered through StartSubscriber
type EventHandler interface {
	HandleEvent(eventType string, data interface{})
}

// ObjectData tells a subscriber which stored object changed. NotificationID lets
// the sender match the status the subscriber reports to this notification.
type ObjectData struct {
	ResourceVersion string
	Name            string
	NotificationID  string
}

// NewEventBus returns an empty bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]*Subscriber),
	}
}

// StartSubscriber subscribes moduleName to eventType and runs eventHandler for
// every event until the subscriber is unsubscribed
func (e *EventBus) StartSubscriber(moduleName, eventType string, priority, depth int, eventHandler EventHandler) *Subscriber {
	subscriber := e.Subscribe(moduleName, eventType, priority, depth)

	go func() {
		for {
			select {
			case event := <-subscriber.Ch:
				eventHandler.HandleEvent(eventType, event)
			case <-subscriber.Quit:
				return
			}
		}
	}()
	return subscriber
}

// Subscribe registers a subscriber for eventType with a channel of the given depth
func (e *EventBus) Subscribe(moduleName, eventType string, priority, depth int) *Subscriber {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if depth < 1 {
		depth = 1
	}
	subscriber := &Subscriber{
		Name:     moduleName,
		Ch:       make(chan interface{}, depth),
		Quit:     make(chan bool, 1),
		Priority: priority,
	}

	e.subscribers[eventType] = append(e.subscribers[eventType], subscriber)

	// Sort subscribers based on priority
	sort.SliceStable(e.subscribers[eventType], func(i, j int) bool {
		return e.subscribers[eventType][i].Priority < e.subscribers[eventType][j].Priority
	})

	log.Debugf("Subscribe(): %s registered for event %s with priority %d", moduleName, eventType, priority)
	return subscriber
}

// GetSubscribers returns the subscribers of eventType, highest priority first
func (e *EventBus) GetSubscribers(eventType string) []*Subscriber {
	e.mutex.RLock()
	defer e.mutex.RUnlock()

	subs := make([]*Subscriber, len(e.subscribers[eventType]))
	copy(subs, e.subscribers[eventType])
	return subs
}

// Publish hands data to every subscriber of eventType in priority order, blocking
// on subscribers whose channel is full
func (e *EventBus) Publish(eventType string, data interface{}) {
	for _, sub := range e.GetSubscribers(eventType) {
		sub.Ch <- data
	}
}

// PublishTo hands data to a single subscriber
func (e *EventBus) PublishTo(subscriber *Subscriber, data interface{}) {
	subscriber.Ch <- data
}

// Notify is Publish without blocking: a subscriber whose channel is full already has
// an undelivered event and is skipped. It returns how many subscribers were reached.
func (e *EventBus) Notify(eventType string, data interface{}) int {
	n := 0
	for _, sub := range e.GetSubscribers(eventType) {
		select {
		case sub.Ch <- data:
			n++
		default:
		}
	}
	return n
}

// UnsubscribeEvent removes subscriber from eventType and stops its handler, if any
func (e *EventBus) UnsubscribeEvent(subscriber *Subscriber, eventType string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	subscribers, ok := e.subscribers[eventType]
	if !ok {
		return
	}
	for i, sub := range subscribers {
		if sub != subscriber {
			continue
		}
		e.subscribers[eventType] = append(subscribers[:i:i], subscribers[i+1:]...)
		select {
		case subscriber.Quit <- true:
		default:
		}
		log.Debugf("UnsubscribeEvent(): %s unsubscribed from event %s", subscriber.Name, eventType)
		break
	}
	if len(e.subscribers[eventType]) == 0 {
		delete(e.subscribers, eventType)
	}
}
