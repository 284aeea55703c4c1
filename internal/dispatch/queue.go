// Package dispatch is the in-process plumbing between the stage executor
// and workers: a role-keyed task queue and a per-step result router.
package dispatch

import (
	"fmt"
	"sync"
)

const defaultQueueCapacity = 128

// Queue is a role-keyed task channel. Tasks enqueued before any consumer
// subscribes are buffered in the role's channel; once one or more
// consumers receive on it, each task is delivered to exactly one of them,
// in enqueue order per role. No ordering holds across roles.
type Queue struct {
	mu       sync.Mutex
	capacity int
	roles    map[string]chan *TaskMessage
}

// NewQueue creates a queue with the given per-role buffer capacity.
// capacity <= 0 selects the default.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &Queue{
		capacity: capacity,
		roles:    make(map[string]chan *TaskMessage),
	}
}

func (q *Queue) channel(role string) chan *TaskMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	ch, ok := q.roles[role]
	if !ok {
		ch = make(chan *TaskMessage, q.capacity)
		q.roles[role] = ch
	}
	return ch
}

// Enqueue submits a task for its target role. Delivery is immediate when a
// subscriber is receiving; otherwise the task waits in the role's buffer.
// Enqueue fails when the role's buffer is full.
func (q *Queue) Enqueue(task *TaskMessage) error {
	if task == nil || task.Role == "" {
		return fmt.Errorf("task must carry a target role")
	}
	select {
	case q.channel(task.Role) <- task:
		return nil
	default:
		return fmt.Errorf("dispatch queue for role '%s' is full (capacity %d)", task.Role, q.capacity)
	}
}

// Subscribe returns the receive side of a role's channel. Multiple
// subscribers to the same role compete for tasks; each task is delivered
// to exactly one of them.
func (q *Queue) Subscribe(role string) <-chan *TaskMessage {
	return q.channel(role)
}

// Pending reports how many tasks are buffered for a role.
func (q *Queue) Pending(role string) int {
	return len(q.channel(role))
}
