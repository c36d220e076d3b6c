// SPDX-License-Identifier: Apache-2.0
// Copyright (C) 2023 Nordix Foundation.

package taskmanager

// DefaultQueueDepth bounds the tasks waiting to be processed
const DefaultQueueDepth = 200

// TaskQueue is a bounded FIFO of tasks
type TaskQueue struct {
	channel chan *Task
}

// NewTaskQueue creates an empty queue holding up to depth tasks
func NewTaskQueue(depth int) *TaskQueue {
	if depth < 1 {
		depth = DefaultQueueDepth
	}
	return &TaskQueue{
		channel: make(chan *Task, depth),
	}
}

// Enqueue adds a task, blocking while the queue is full
func (q *TaskQueue) Enqueue(task *Task) {
	q.channel <- task
}

// Dequeue removes the oldest task, blocking while the queue is empty
func (q *TaskQueue) Dequeue() *Task {
	return <-q.channel
}

// Tasks is the receiving end of the queue, for use in a select
func (q *TaskQueue) Tasks() <-chan *Task {
	return q.channel
}

// Len returns the number of queued tasks
func (q *TaskQueue) Len() int {
	return len(q.channel)
}
