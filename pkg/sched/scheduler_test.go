package sched

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRepeats(t *testing.T) {
	var fired atomic.Int64
	tr, err := ParseSchedule(map[string]string{"every": "20ms"}, "")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	s := New("repeat-test", tr, func(context.Context) { fired.Add(1) })
	s.Start(context.Background())

	deadline := time.After(2 * time.Second)
	for fired.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("Expected at least 3 invocations, got %d", fired.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	s.Stop()
	after := fired.Load()
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != after {
		t.Errorf("Scheduler fired after Stop: %d -> %d", after, got)
	}
}

func TestSchedulerOneShot(t *testing.T) {
	var fired atomic.Int64
	tr, err := ParseSchedule(map[string]string{"in": "10ms"}, "")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}

	s := New("oneshot-test", tr, func(context.Context) { fired.Add(1) })
	s.Start(context.Background())

	time.Sleep(300 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("One-shot trigger fired %d times, want 1", got)
	}
}

func TestSchedulerContextCancel(t *testing.T) {
	var fired atomic.Int64
	tr, _ := ParseSchedule(map[string]string{"every": "10ms"}, "")

	ctx, cancel := context.WithCancel(context.Background())
	s := New("cancel-test", tr, func(context.Context) { fired.Add(1) })
	s.Start(ctx)

	time.Sleep(100 * time.Millisecond)
	cancel()
	time.Sleep(50 * time.Millisecond)

	after := fired.Load()
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != after {
		t.Errorf("Scheduler fired after context cancel: %d -> %d", after, got)
	}
	if after == 0 {
		t.Error("Expected at least one invocation before cancel")
	}
}

func TestSchedulerStartTwice(t *testing.T) {
	var fired atomic.Int64
	tr, _ := ParseSchedule(map[string]string{"in": "10ms"}, "")

	s := New("double-start", tr, func(context.Context) { fired.Add(1) })
	s.Start(context.Background())
	s.Start(context.Background())

	time.Sleep(200 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("Double Start produced %d invocations, want 1", got)
	}
}

func TestSchedulerStopBeforeFirstFire(t *testing.T) {
	var fired atomic.Int64
	tr, _ := ParseSchedule(map[string]string{"in": "5s"}, "")

	s := New("early-stop", tr, func(context.Context) { fired.Add(1) })
	s.Start(context.Background())
	s.Stop()

	if got := fired.Load(); got != 0 {
		t.Errorf("Expected no invocations after early Stop, got %d", got)
	}
}
