// Package sched provides cancellable one-shot scheduled tasks.
//
// Transient UI state (invalid-drop markers, the cancelled-session reset)
// expires on a timer. Each timer is owned through a Handle so the owner can
// cancel it deterministically during teardown; a fired task that lost the
// race with Cancel is a no-op, never a crash.
package sched

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Handle identifies a pending scheduled task and allows cancelling it.
type Handle struct {
	id        string
	timer     *time.Timer
	cancelled atomic.Bool
	fired     atomic.Bool
	s         *Scheduler
}

// ID returns the task id.
func (h *Handle) ID() string {
	return h.id
}

// Cancel stops the task if it has not fired yet.
// Returns true if the task was prevented from running.
func (h *Handle) Cancel() bool {
	if h == nil {
		return false
	}
	if !h.cancelled.CompareAndSwap(false, true) {
		return false
	}
	if h.fired.Load() {
		return false
	}
	stopped := h.timer.Stop()
	h.s.forget(h.id)
	return stopped
}

// Done reports whether the task has fired or been cancelled.
func (h *Handle) Done() bool {
	return h.fired.Load() || h.cancelled.Load()
}

// Scheduler tracks pending one-shot tasks so they can be cancelled in bulk.
type Scheduler struct {
	mu      sync.Mutex
	pending map[string]*Handle
	stopped bool
	logger  *log.Logger
}

// New creates a scheduler.
func New(logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.Default()
	}
	return &Scheduler{
		pending: make(map[string]*Handle),
		logger:  logger.With("component", "sched"),
	}
}

// After runs fn once after d elapses. The returned handle cancels the task.
// A panicking fn is recovered and logged; it never reaches the caller.
func (s *Scheduler) After(d time.Duration, fn func()) *Handle {
	h := &Handle{id: uuid.NewString(), s: s}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		h.cancelled.Store(true)
		s.logger.Debug("task scheduled after stop, dropped", "task", h.id)
		return h
	}

	h.timer = time.AfterFunc(d, func() {
		h.fired.Store(true)
		s.forget(h.id)
		if h.cancelled.Load() {
			return
		}
		defer func() {
			if r := recover(); r != nil {
				s.logger.Error("scheduled task panicked", "task", h.id, "panic", r)
			}
		}()
		fn()
	})
	s.pending[h.id] = h
	s.mu.Unlock()

	return h
}

// Pending returns the number of tasks that have not fired or been cancelled.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Stop cancels every pending task. Further After calls are dropped.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	handles := make([]*Handle, 0, len(s.pending))
	for _, h := range s.pending {
		handles = append(handles, h)
	}
	s.pending = make(map[string]*Handle)
	s.mu.Unlock()

	for _, h := range handles {
		if h.cancelled.CompareAndSwap(false, true) {
			h.timer.Stop()
		}
	}
}

// forget drops a handle from the pending set.
func (s *Scheduler) forget(id string) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}
