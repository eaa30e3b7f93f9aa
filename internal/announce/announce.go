// Package announce delivers accessibility announcements to subscribers.
//
// Every session transition and feedback change produces a human-readable
// announcement string. Screen-reader bridges subscribe here; the engine
// treats delivery as a required contract, so a panicking subscriber is
// recovered and logged rather than allowed to abort a drag.
package announce

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// Announcement is one accessibility message.
type Announcement struct {
	// ID uniquely identifies the announcement instance.
	ID string

	// Source names the component that produced the message.
	Source string

	// Message is the human-readable text to announce.
	Message string

	// Time is when the announcement was produced.
	Time time.Time
}

// Listener receives announcements. Listeners run on the announcing
// goroutine and must return quickly.
type Listener func(Announcement)

// Registry fans announcements out to subscribed listeners.
type Registry struct {
	mu        sync.RWMutex
	listeners map[string]Listener
	logger    *log.Logger
	published uint64
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *log.Logger) *Registry {
	if logger == nil {
		logger = log.Default()
	}
	return &Registry{
		listeners: make(map[string]Listener),
		logger:    logger.With("component", "announce"),
	}
}

// Subscribe registers a listener and returns its subscription id.
func (r *Registry) Subscribe(fn Listener) string {
	id := uuid.NewString()
	r.mu.Lock()
	r.listeners[id] = fn
	r.mu.Unlock()
	return id
}

// Unsubscribe removes a listener. Returns false for an unknown id.
func (r *Registry) Unsubscribe(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[id]; !ok {
		return false
	}
	delete(r.listeners, id)
	return true
}

// Announce delivers a message to every listener. The registry lock is not
// held across listener calls.
func (r *Registry) Announce(source, message string) {
	a := Announcement{
		ID:      uuid.NewString(),
		Source:  source,
		Message: message,
		Time:    time.Now(),
	}

	r.mu.Lock()
	r.published++
	fns := make([]Listener, 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	for _, fn := range fns {
		r.deliver(fn, a)
	}
}

// Published returns the number of announcements produced so far.
func (r *Registry) Published() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.published
}

func (r *Registry) deliver(fn Listener, a Announcement) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("announcement listener panicked", "source", a.Source, "panic", rec)
		}
	}()
	fn(a)
}
