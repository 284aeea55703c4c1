package dispatch

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// TimeoutError resolves a waiter whose worker did not answer within the
// configured window. The message carries the configured timeout value.
type TimeoutError struct {
	SubTaskID string
	Timeout   time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("no result for sub-task %s within %s", e.SubTaskID, e.Timeout)
}

// MismatchError surfaces a result correlated to the wrong step. It is a
// protocol anomaly: always logged, never silently dropped or misattributed.
type MismatchError struct {
	Expected string
	Received string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("mismatched sub-task id: awaiting %s, received result for %s", e.Expected, e.Received)
}

type waiterKey struct {
	parent string
	sub    string
}

type delivery struct {
	msg *ResultMessage
	err error
}

// ResultRouter correlates asynchronous worker results back to the step
// that awaits them. Exactly one waiter may be outstanding per
// (parentTaskID, subTaskID) pair; it is removed from the registry when it
// settles, whether by result, mismatch, timeout or cancellation.
type ResultRouter struct {
	mu      sync.Mutex
	waiters map[waiterKey]chan delivery
	logger  *log.Logger
}

func NewResultRouter(logger *log.Logger) *ResultRouter {
	if logger == nil {
		logger = log.Default()
	}
	return &ResultRouter{
		waiters: make(map[waiterKey]chan delivery),
		logger:  logger,
	}
}

func (r *ResultRouter) register(parentID, subID string) (chan delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := waiterKey{parent: parentID, sub: subID}
	if _, exists := r.waiters[key]; exists {
		return nil, fmt.Errorf("a waiter for sub-task %s is already registered", subID)
	}
	ch := make(chan delivery, 1)
	r.waiters[key] = ch
	return ch, nil
}

func (r *ResultRouter) deregister(parentID, subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.waiters, waiterKey{parent: parentID, sub: subID})
}

// Await blocks until the result for (parentID, subID) arrives, the timeout
// expires, or ctx is done. The waiter must be registered before the task
// is enqueued; AwaitRegistered covers that window.
func (r *ResultRouter) Await(ctx context.Context, parentID, subID string, timeout time.Duration) (*ResultMessage, error) {
	ch, err := r.register(parentID, subID)
	if err != nil {
		return nil, err
	}
	return r.await(ctx, ch, parentID, subID, timeout)
}

// Registration is the handle for a waiter registered ahead of enqueue, so
// a fast worker can never answer before anyone is listening.
type Registration struct {
	router   *ResultRouter
	ch       chan delivery
	parentID string
	subID    string
}

// Register creates the waiter for (parentID, subID) without blocking.
func (r *ResultRouter) Register(parentID, subID string) (*Registration, error) {
	ch, err := r.register(parentID, subID)
	if err != nil {
		return nil, err
	}
	return &Registration{router: r, ch: ch, parentID: parentID, subID: subID}, nil
}

// Await blocks on a prior registration.
func (w *Registration) Await(ctx context.Context, timeout time.Duration) (*ResultMessage, error) {
	return w.router.await(ctx, w.ch, w.parentID, w.subID, timeout)
}

// Cancel withdraws a registration that will never be awaited, e.g. when
// enqueueing the task failed.
func (w *Registration) Cancel() {
	w.router.deregister(w.parentID, w.subID)
}

func (r *ResultRouter) await(ctx context.Context, ch chan delivery, parentID, subID string, timeout time.Duration) (*ResultMessage, error) {
	defer r.deregister(parentID, subID)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case d := <-ch:
		return d.msg, d.err
	case <-timer.C:
		return nil, &TimeoutError{SubTaskID: subID, Timeout: timeout}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Deliver routes a worker result to its waiter. A result whose parent has
// exactly one outstanding waiter but whose sub-task id matches none
// resolves that waiter with a MismatchError; with zero or several
// candidate waiters no safe attribution exists, so the result is logged
// and dropped.
func (r *ResultRouter) Deliver(msg *ResultMessage) {
	r.mu.Lock()
	key := waiterKey{parent: msg.ParentTaskID, sub: msg.SubTaskID}
	if ch, ok := r.waiters[key]; ok {
		delete(r.waiters, key)
		r.mu.Unlock()
		ch <- delivery{msg: msg}
		return
	}

	var candidates []waiterKey
	for k := range r.waiters {
		if k.parent == msg.ParentTaskID {
			candidates = append(candidates, k)
		}
	}
	if len(candidates) == 1 {
		k := candidates[0]
		ch := r.waiters[k]
		delete(r.waiters, k)
		r.mu.Unlock()
		r.logger.Printf("[ResultRouter] ANOMALY: result for sub-task %s (parent %s) does not match waiter %s",
			msg.SubTaskID, msg.ParentTaskID, k.sub)
		ch <- delivery{err: &MismatchError{Expected: k.sub, Received: msg.SubTaskID}}
		return
	}
	r.mu.Unlock()
	r.logger.Printf("[ResultRouter] ANOMALY: dropping unroutable result for sub-task %s (parent %s, %d candidate waiters)",
		msg.SubTaskID, msg.ParentTaskID, len(candidates))
}

// Outstanding reports the number of registered waiters.
func (r *ResultRouter) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.waiters)
}
