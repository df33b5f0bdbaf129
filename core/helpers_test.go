package orchestration

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestPanicSafeNamedWorkerConvertsPanics(t *testing.T) {
	run := panicSafeNamedWorker("speak", func(context.Context) error { panic("boom") })

	err := run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "speak worker panicked: boom") {
		t.Fatalf("expected panic to be converted to an error, got %v", err)
	}
}

func TestPanicSafeNamedWorkerWrapsErrors(t *testing.T) {
	cause := errors.New("failed")
	run := panicSafeNamedWorker("complete", func(context.Context) error { return cause })

	if err := run(context.Background()); !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestWithContextCancelHookRunsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	called := make(chan struct{})
	withContextCancelHook(ctx, func() { close(called) })

	cancel()

	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatalf("expected cancel hook to run")
	}
}

func TestWithContextCancelHookStopsWhenDone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	called := make(chan struct{}, 1)
	done := withContextCancelHook(ctx, func() { called <- struct{}{} })

	close(done)
	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-called:
		t.Fatalf("expected hook to be released before cancellation")
	case <-time.After(50 * time.Millisecond):
	}
}
