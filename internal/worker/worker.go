// Package worker runs an in-process worker: it subscribes to a role on
// the dispatch queue, executes the tools that role supports, and replies
// through the result router. Workers are intentionally dumb: the engine
// neither knows nor cares what runs behind a role.
package worker

import (
	"context"
	"fmt"
	"log"

	"stagehand/internal/dispatch"
	"stagehand/internal/plan"
)

// ToolFunc executes one tool invocation.
type ToolFunc func(ctx context.Context, input map[string]any) (any, error)

// Worker consumes tasks for one role.
type Worker struct {
	role    string
	tools   map[string]ToolFunc
	queue   *dispatch.Queue
	results *dispatch.ResultRouter
	logger  *log.Logger
}

func New(role string, queue *dispatch.Queue, results *dispatch.ResultRouter, logger *log.Logger) *Worker {
	if logger == nil {
		logger = log.Default()
	}
	return &Worker{
		role:    role,
		tools:   make(map[string]ToolFunc),
		queue:   queue,
		results: results,
		logger:  logger,
	}
}

// Register adds a tool under this worker's role.
func (w *Worker) Register(name string, fn ToolFunc) {
	w.tools[name] = fn
}

// Start consumes the role's channel until ctx is done. Multiple workers
// may start on the same role; each task reaches exactly one of them.
func (w *Worker) Start(ctx context.Context) {
	tasks := w.queue.Subscribe(w.role)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case task := <-tasks:
				w.handle(ctx, task)
			}
		}
	}()
}

func (w *Worker) handle(ctx context.Context, task *dispatch.TaskMessage) {
	result := &dispatch.ResultMessage{
		SubTaskID:    task.SubTaskID,
		ParentTaskID: task.ParentTaskID,
		WorkerRole:   w.role,
	}

	fn, ok := w.tools[task.Tool]
	if !ok {
		result.Status = plan.StatusFailed
		result.ErrorDetails = fmt.Sprintf("role '%s' has no tool '%s'", w.role, task.Tool)
		w.results.Deliver(result)
		return
	}

	input, ok := task.Input.(map[string]any)
	if !ok {
		result.Status = plan.StatusFailed
		result.ErrorDetails = fmt.Sprintf("tool '%s' requires an object input", task.Tool)
		w.results.Deliver(result)
		return
	}

	w.logger.Printf("[Worker %s] sub-task %s: running %s", w.role, task.SubTaskID, task.Tool)
	data, err := fn(ctx, input)
	if err != nil {
		result.Status = plan.StatusFailed
		result.ErrorDetails = err.Error()
	} else {
		result.Status = plan.StatusCompleted
		result.ResultData = data
	}
	w.results.Deliver(result)
}
