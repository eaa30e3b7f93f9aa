package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFires(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	fired := make(chan struct{})
	h := s.After(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task did not fire")
	}

	if !h.Done() {
		t.Error("Done() should be true after firing")
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after fire", s.Pending())
	}
}

func TestCancelPreventsFire(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	var ran atomic.Bool
	h := s.After(20*time.Millisecond, func() { ran.Store(true) })

	if !h.Cancel() {
		t.Fatal("Cancel returned false for a pending task")
	}
	if h.Cancel() {
		t.Error("second Cancel should return false")
	}

	time.Sleep(50 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task must not run")
	}
	if s.Pending() != 0 {
		t.Errorf("Pending() = %d, want 0 after cancel", s.Pending())
	}
}

func TestCancelAfterFireIsNoop(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	fired := make(chan struct{})
	h := s.After(time.Millisecond, func() { close(fired) })
	<-fired

	if h.Cancel() {
		t.Error("Cancel after fire should return false")
	}
}

func TestPanickingTaskIsSwallowed(t *testing.T) {
	s := New(nil)
	defer s.Stop()

	after := make(chan struct{})
	s.After(time.Millisecond, func() {
		defer close(after)
		panic("boom")
	})

	select {
	case <-after:
	case <-time.After(time.Second):
		t.Fatal("task did not run")
	}
	// The panic is recovered inside the timer goroutine; reaching here
	// without a crash is the assertion.
}

func TestStopCancelsEverything(t *testing.T) {
	s := New(nil)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		s.After(20*time.Millisecond, func() { ran.Add(1) })
	}

	s.Stop()
	time.Sleep(50 * time.Millisecond)

	if n := ran.Load(); n != 0 {
		t.Errorf("%d tasks ran after Stop, want 0", n)
	}

	h := s.After(time.Millisecond, func() { ran.Add(1) })
	if !h.Done() {
		t.Error("task scheduled after Stop should be immediately done")
	}
}
