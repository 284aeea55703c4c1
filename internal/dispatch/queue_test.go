package dispatch

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

func task(role, subID string) *TaskMessage {
	return &TaskMessage{SubTaskID: subID, ParentTaskID: "parent", Role: role, Tool: "t"}
}

func TestQueueBuffersBeforeSubscribe(t *testing.T) {
	q := NewQueue(4)

	for i := 0; i < 3; i++ {
		if err := q.Enqueue(task("web_agent", fmt.Sprintf("sub-%d", i))); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}
	if got := q.Pending("web_agent"); got != 3 {
		t.Fatalf("Pending = %d, want 3", got)
	}

	// A late subscriber receives the buffered tasks in enqueue order.
	ch := q.Subscribe("web_agent")
	for i := 0; i < 3; i++ {
		select {
		case got := <-ch:
			want := fmt.Sprintf("sub-%d", i)
			if got.SubTaskID != want {
				t.Errorf("Received %s at position %d, want %s", got.SubTaskID, i, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("Timed out waiting for buffered task %d", i)
		}
	}
}

func TestQueueEnqueueFailsWhenFull(t *testing.T) {
	q := NewQueue(2)

	if err := q.Enqueue(task("web_agent", "a")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(task("web_agent", "b")); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	if err := q.Enqueue(task("web_agent", "c")); err == nil {
		t.Error("Expected an error on a full queue, but got nil")
	}

	// A different role has its own channel and is unaffected.
	if err := q.Enqueue(task("db_agent", "d")); err != nil {
		t.Errorf("Enqueue to an unrelated role failed: %v", err)
	}
}

func TestQueueEnqueueRejectsMissingRole(t *testing.T) {
	q := NewQueue(2)
	if err := q.Enqueue(&TaskMessage{SubTaskID: "x"}); err == nil {
		t.Error("Expected an error for a task without a role, but got nil")
	}
	if err := q.Enqueue(nil); err == nil {
		t.Error("Expected an error for a nil task, but got nil")
	}
}

func TestQueueCompetingConsumersExactlyOnce(t *testing.T) {
	const total = 40
	q := NewQueue(total)

	var mu sync.Mutex
	received := make(map[string]int)
	var wg sync.WaitGroup

	// Two subscribers compete on the same role; every task must reach
	// exactly one of them.
	for c := 0; c < 2; c++ {
		ch := q.Subscribe("web_agent")
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case task := <-ch:
					mu.Lock()
					received[task.SubTaskID]++
					mu.Unlock()
				case <-time.After(200 * time.Millisecond):
					return
				}
			}
		}()
	}

	for i := 0; i < total; i++ {
		if err := q.Enqueue(task("web_agent", fmt.Sprintf("sub-%d", i))); err != nil {
			t.Fatalf("Enqueue %d failed: %v", i, err)
		}
	}
	wg.Wait()

	if len(received) != total {
		t.Fatalf("Received %d distinct tasks, want %d", len(received), total)
	}
	for id, count := range received {
		if count != 1 {
			t.Errorf("Task %s delivered %d times, want exactly once", id, count)
		}
	}
}
