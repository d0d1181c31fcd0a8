package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/privatetune/internal/core/ports/driven"
	"github.com/custodia-labs/privatetune/internal/logger"
)

// TaskFunc is one run of a recurring task. Returning true stops the task.
type TaskFunc func(ctx context.Context) (stop bool)

// RecurringTask runs a function immediately on Start and then on every
// tick of a fixed interval until it asks to stop or Stop is called.
//
// The function must not call Stop on its own task, and callers must not
// hold a lock the function needs while calling Stop.
type RecurringTask struct {
	name     string
	clock    driven.Clock
	interval time.Duration
	fn       TaskFunc

	mu      sync.Mutex
	running bool
	rearm   bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewRecurringTask creates a stopped task.
func NewRecurringTask(name string, clock driven.Clock, interval time.Duration, fn TaskFunc) *RecurringTask {
	return &RecurringTask{
		name:     name,
		clock:    clock,
		interval: interval,
		fn:       fn,
	}
}

// Start launches the task. If it is already running, the current loop is
// re-armed so a stop request from an in-flight run is ignored once.
// Returns false if the task was already running.
func (t *RecurringTask) Start(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running {
		t.rearm = true
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.running = true
	t.rearm = false
	t.cancel = cancel
	t.done = done

	go t.run(runCtx, cancel, done)
	return true
}

// Stop cancels the task and waits for an in-flight run to return.
func (t *RecurringTask) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	t.running = false
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	cancel()
	<-done
}

// Active reports whether the task is scheduled.
func (t *RecurringTask) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

func (t *RecurringTask) run(ctx context.Context, cancel context.CancelFunc, done chan struct{}) {
	defer close(done)
	defer cancel()

	var ticker driven.Ticker
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		t.disarm(done)
		if t.fn(ctx) {
			if t.exit(done) {
				logger.Debug("%s: finished", t.name)
				return
			}
			continue
		}

		if ticker == nil {
			ticker = t.clock.NewTicker(t.interval)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
		}
	}
}

// disarm clears a pending re-arm before a run, which will see the latest state.
func (t *RecurringTask) disarm(done chan struct{}) {
	t.mu.Lock()
	if t.done == done {
		t.rearm = false
	}
	t.mu.Unlock()
}

// exit decides whether a loop that asked to stop really stops.
func (t *RecurringTask) exit(done chan struct{}) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != done {
		return true
	}
	if t.rearm && t.running {
		t.rearm = false
		return false
	}
	t.running = false
	return true
}
