package dispatch

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"

	"stagehand/internal/plan"
)

func testRouter() *ResultRouter {
	return NewResultRouter(log.New(io.Discard, "", 0))
}

func TestResultRouterDeliverToWaiter(t *testing.T) {
	r := testRouter()

	done := make(chan struct{})
	go func() {
		defer close(done)
		time.Sleep(10 * time.Millisecond)
		r.Deliver(&ResultMessage{
			SubTaskID:    "sub-1",
			ParentTaskID: "parent-1",
			WorkerRole:   "web_agent",
			Status:       plan.StatusCompleted,
			ResultData:   "hello",
		})
	}()

	msg, err := r.Await(context.Background(), "parent-1", "sub-1", time.Second)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if msg.ResultData != "hello" {
		t.Errorf("ResultData = %v, want hello", msg.ResultData)
	}
	<-done

	if r.Outstanding() != 0 {
		t.Errorf("Outstanding = %d after settlement, want 0", r.Outstanding())
	}
}

func TestResultRouterRegisterBeforeEnqueue(t *testing.T) {
	r := testRouter()

	reg, err := r.Register("parent-1", "sub-1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	// The worker answers before Await is even called; the buffered waiter
	// channel must hold the result.
	r.Deliver(&ResultMessage{
		SubTaskID:    "sub-1",
		ParentTaskID: "parent-1",
		Status:       plan.StatusCompleted,
		ResultData:   "fast",
	})

	msg, err := reg.Await(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if msg.ResultData != "fast" {
		t.Errorf("ResultData = %v, want fast", msg.ResultData)
	}
}

func TestResultRouterTimeout(t *testing.T) {
	r := testRouter()

	_, err := r.Await(context.Background(), "parent-1", "sub-1", 20*time.Millisecond)
	if err == nil {
		t.Fatal("Expected a timeout error, but got nil")
	}
	var timeout *TimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("Expected a *TimeoutError, got %T", err)
	}
	if !strings.Contains(err.Error(), "20ms") {
		t.Errorf("Timeout message %q does not carry the configured timeout", err.Error())
	}
	if r.Outstanding() != 0 {
		t.Errorf("Outstanding = %d after timeout, want 0", r.Outstanding())
	}
}

func TestResultRouterContextCancellation(t *testing.T) {
	r := testRouter()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := r.Await(ctx, "parent-1", "sub-1", time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Await error = %v, want context.Canceled", err)
	}
}

func TestResultRouterMismatchWithSingleWaiter(t *testing.T) {
	r := testRouter()

	reg, err := r.Register("parent-1", "sub-expected")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r.Deliver(&ResultMessage{
		SubTaskID:    "sub-imposter",
		ParentTaskID: "parent-1",
		Status:       plan.StatusCompleted,
	})

	_, err = reg.Await(context.Background(), time.Second)
	if err == nil {
		t.Fatal("Expected a mismatch error, but got nil")
	}
	var mismatch *MismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("Expected a *MismatchError, got %T", err)
	}
	if mismatch.Expected != "sub-expected" || mismatch.Received != "sub-imposter" {
		t.Errorf("MismatchError = %+v, want expected=sub-expected received=sub-imposter", mismatch)
	}
}

func TestResultRouterDropsUnroutableResults(t *testing.T) {
	r := testRouter()

	// Two waiters under the same parent: no safe attribution exists for a
	// result that matches neither, so both must keep waiting.
	regA, err := r.Register("parent-1", "sub-a")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	regB, err := r.Register("parent-1", "sub-b")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	r.Deliver(&ResultMessage{SubTaskID: "sub-x", ParentTaskID: "parent-1", Status: plan.StatusCompleted})

	if r.Outstanding() != 2 {
		t.Errorf("Outstanding = %d after an unroutable result, want 2", r.Outstanding())
	}

	// Both waiters still settle normally afterwards.
	r.Deliver(&ResultMessage{SubTaskID: "sub-a", ParentTaskID: "parent-1", Status: plan.StatusCompleted})
	r.Deliver(&ResultMessage{SubTaskID: "sub-b", ParentTaskID: "parent-1", Status: plan.StatusCompleted})
	if _, err := regA.Await(context.Background(), time.Second); err != nil {
		t.Errorf("Waiter A failed to settle: %v", err)
	}
	if _, err := regB.Await(context.Background(), time.Second); err != nil {
		t.Errorf("Waiter B failed to settle: %v", err)
	}
}

func TestResultRouterDuplicateRegistration(t *testing.T) {
	r := testRouter()

	reg, err := r.Register("parent-1", "sub-1")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if _, err := r.Register("parent-1", "sub-1"); err == nil {
		t.Error("Expected duplicate registration to fail, but it did not")
	}

	// Cancelling frees the slot.
	reg.Cancel()
	if _, err := r.Register("parent-1", "sub-1"); err != nil {
		t.Errorf("Registration after Cancel failed: %v", err)
	}
}
