// Package sched drives repeated poll cycle dispatch on a single serial
// timeline per poller. Cycle starts never overlap; cycle completions are the
// coordinator's business.
package sched

import (
	"context"
	"log"
	"sync"
	"time"
)

// Scheduler runs one trigger policy against one dispatch function. The
// dispatch function must return quickly (it hands slow work to a goroutine);
// the scheduler never starts tick N+1 before tick N's dispatch returned.
type Scheduler struct {
	name    string
	trigger Trigger
	run     func(context.Context)

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a scheduler for the given trigger and dispatch function.
func New(name string, trigger Trigger, run func(context.Context)) *Scheduler {
	return &Scheduler{
		name:    name,
		trigger: trigger,
		run:     run,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the scheduling timeline. Calling Start twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop cancels all pending and future invocations and waits for the timeline
// goroutine to exit. An in-flight network call is not awaited.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.doneCh)

	delay := s.trigger.initialDelay(time.Now())
	if delay < 0 {
		log.Printf("[Sched] %s: trigger has no upcoming invocation, stopping", s.name)
		return
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-timer.C:
		}

		s.run(ctx)

		next, ok := s.trigger.nextDelay(time.Now())
		if !ok {
			log.Printf("[Sched] %s: one-shot trigger fired, timeline done", s.name)
			return
		}
		timer.Reset(next)
	}
}
