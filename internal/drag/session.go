package drag

import (
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/dragstorm/internal/announce"
	"github.com/dshills/dragstorm/internal/sched"
)

// State is the drag session lifecycle state.
type State uint8

const (
	// StateIdle means no gesture is in progress.
	StateIdle State = iota

	// StateDragging means the pointer is moving with no drop target under it.
	StateDragging

	// StateHovering means the pointer is over a candidate drop zone.
	StateHovering

	// StateCancelled is a short-lived confirmation state after a cancel;
	// the session auto-resets to idle.
	StateCancelled
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateHovering:
		return "hovering"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// active reports whether a gesture is in flight.
func (s State) active() bool {
	return s == StateDragging || s == StateHovering
}

// Metrics is a snapshot of session gesture statistics.
type Metrics struct {
	Total         uint64
	Successes     uint64
	Failures      uint64
	Cancellations uint64

	// AvgGesture is an exponential moving average of completed gesture
	// durations.
	AvgGesture time.Duration

	// SuccessRate is Successes / Total (0.0 - 1.0).
	SuccessRate float64
}

// gestureAlpha weights the newest gesture duration in the moving average.
const gestureAlpha = 0.2

// defaultCancelResetDelay is how long a session shows Cancelled before
// auto-resetting to idle.
const defaultCancelResetDelay = 300 * time.Millisecond

// StateHandler observes session transitions.
type StateHandler func(from, to State)

// HoverHandler observes hover target changes. The zone id is empty when
// the pointer leaves all candidate zones.
type HoverHandler func(zoneID string)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithCancelResetDelay overrides the Cancelled auto-reset delay.
func WithCancelResetDelay(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.cancelResetDelay = d
		}
	}
}

// WithAnnouncer routes session announcements to a registry.
func WithAnnouncer(r *announce.Registry) SessionOption {
	return func(s *Session) { s.announcer = r }
}

// WithStateHandler registers a transition observer.
func WithStateHandler(fn StateHandler) SessionOption {
	return func(s *Session) { s.onState = fn }
}

// WithHoverHandler registers a hover change observer.
func WithHoverHandler(fn HoverHandler) SessionOption {
	return func(s *Session) { s.onHover = fn }
}

// Session is the per-gesture drag state machine. One element owns one
// session; transition methods outside their legal source states are
// logged no-ops, never errors.
//
// The session lock is never held across a handler or announcement call.
type Session struct {
	mu sync.Mutex

	id        string
	elementID string
	state     State
	payload   *Payload
	hoverZone string
	startedAt time.Time

	// generation invalidates stale auto-reset timers after a new gesture
	// begins.
	generation  uint64
	resetHandle *sched.Handle

	total         uint64
	successes     uint64
	failures      uint64
	cancellations uint64
	avgGesture    time.Duration

	cancelResetDelay time.Duration
	scheduler        *sched.Scheduler
	logger           *log.Logger
	announcer        *announce.Registry
	onState          StateHandler
	onHover          HoverHandler
}

// NewSession creates an idle session owned by the given draggable element.
func NewSession(elementID string, scheduler *sched.Scheduler, logger *log.Logger, opts ...SessionOption) *Session {
	if logger == nil {
		logger = log.Default()
	}
	s := &Session{
		id:               uuid.NewString(),
		elementID:        elementID,
		scheduler:        scheduler,
		cancelResetDelay: defaultCancelResetDelay,
		logger:           logger.With("component", "session", "element", elementID),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ElementID returns the owning draggable element id.
func (s *Session) ElementID() string { return s.elementID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Payload returns the payload of the gesture in flight, or nil when idle.
func (s *Session) Payload() *Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.payload
}

// HoverZone returns the current hover target, or empty.
func (s *Session) HoverZone() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hoverZone
}

// Start begins a gesture with the given payload. Legal only from idle;
// any other state is a logged no-op returning false.
func (s *Session) Start(p *Payload) bool {
	if p == nil {
		s.logger.Warn("start rejected: nil payload")
		return false
	}

	s.mu.Lock()
	if s.state != StateIdle {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("start ignored outside idle", "state", state.String())
		return false
	}
	s.generation++
	s.state = StateDragging
	s.payload = p
	s.hoverZone = ""
	s.startedAt = time.Now()
	s.mu.Unlock()

	s.logger.Debug("drag started", "payload", p.ID(), "type", p.Type())
	s.notifyState(StateIdle, StateDragging)
	s.announce("drag started: " + p.Name())
	return true
}

// KeyActivate is the accessibility activation path: a designated key
// starts the gesture from idle.
func (s *Session) KeyActivate(p *Payload) bool {
	if !s.Start(p) {
		return false
	}
	s.logger.Debug("keyboard activation")
	s.announce("drag activated by keyboard")
	return true
}

// KeyAbort is the accessibility abort path: a designated key cancels an
// active gesture.
func (s *Session) KeyAbort() bool {
	if !s.Cancel() {
		return false
	}
	s.announce("drag aborted by keyboard")
	return true
}

// UpdateHover records the current hover target, toggling between the
// dragging and hovering states. The hover handler fires only when the
// target actually changes. Outside an active gesture this is a no-op.
func (s *Session) UpdateHover(zoneID string) {
	s.mu.Lock()
	if !s.state.active() {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("hover update ignored", "state", state.String())
		return
	}
	if s.hoverZone == zoneID {
		s.mu.Unlock()
		return
	}

	from := s.state
	s.hoverZone = zoneID
	if zoneID == "" {
		s.state = StateDragging
	} else {
		s.state = StateHovering
	}
	to := s.state
	s.mu.Unlock()

	if from != to {
		s.notifyState(from, to)
	}
	s.notifyHover(zoneID)
	if zoneID == "" {
		s.announce("left drop zone")
	} else {
		s.announce("hovering over drop zone " + zoneID)
	}
}

// Complete finishes the gesture. Legal from dragging or hovering; the
// gesture duration feeds the moving average and the success flag the
// counters. The session returns to idle immediately.
func (s *Session) Complete(success bool) bool {
	s.mu.Lock()
	if !s.state.active() {
		state := s.state
		s.mu.Unlock()
		s.logger.Warn("complete ignored outside active gesture", "state", state.String())
		return false
	}

	from := s.state
	elapsed := time.Since(s.startedAt)
	s.total++
	if success {
		s.successes++
	} else {
		s.failures++
	}
	if s.avgGesture == 0 {
		s.avgGesture = elapsed
	} else {
		s.avgGesture = time.Duration(gestureAlpha*float64(elapsed) + (1-gestureAlpha)*float64(s.avgGesture))
	}

	name := s.payload.Name()
	s.state = StateIdle
	s.payload = nil
	s.hoverZone = ""
	s.mu.Unlock()

	s.logger.Debug("drag completed", "success", success, "duration", elapsed)
	s.notifyState(from, StateIdle)
	if success {
		s.announce("dropped " + name)
	} else {
		s.announce("drop failed for " + name)
	}
	return true
}

// Cancel aborts the gesture. Legal from dragging or hovering. The session
// shows Cancelled briefly, then auto-resets to idle on a scheduled task
// that checks the session generation so a stale timer cannot clobber a
// newer gesture.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if !s.state.active() {
		state := s.state
		s.mu.Unlock()
		s.logger.Debug("cancel ignored outside active gesture", "state", state.String())
		return false
	}

	from := s.state
	s.cancellations++
	s.state = StateCancelled
	name := s.payload.Name()
	s.payload = nil
	s.hoverZone = ""
	gen := s.generation

	if s.scheduler != nil {
		s.resetHandle = s.scheduler.After(s.cancelResetDelay, func() {
			s.resetFromCancel(gen)
		})
	}
	s.mu.Unlock()

	s.logger.Debug("drag cancelled", "payload", name)
	s.notifyState(from, StateCancelled)
	s.announce("drag cancelled: " + name)

	if s.scheduler == nil {
		// No scheduler wired (tests, headless use): reset synchronously.
		s.resetFromCancel(gen)
	}
	return true
}

// Metrics returns a snapshot of gesture statistics.
func (s *Session) Metrics() Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Metrics{
		Total:         s.total,
		Successes:     s.successes,
		Failures:      s.failures,
		Cancellations: s.cancellations,
		AvgGesture:    s.avgGesture,
	}
	if m.Total > 0 {
		m.SuccessRate = float64(m.Successes) / float64(m.Total)
	}
	return m
}

// resetFromCancel returns a cancelled session to idle. Stale timers from
// an earlier generation are ignored.
func (s *Session) resetFromCancel(gen uint64) {
	s.mu.Lock()
	if s.state != StateCancelled || s.generation != gen {
		s.mu.Unlock()
		return
	}
	s.state = StateIdle
	s.resetHandle = nil
	s.mu.Unlock()

	s.notifyState(StateCancelled, StateIdle)
	s.announce("ready to drag")
}

// notifyState invokes the state handler with panic isolation.
func (s *Session) notifyState(from, to State) {
	if s.onState == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("state handler panicked", "from", from.String(), "to", to.String(), "panic", r)
		}
	}()
	s.onState(from, to)
}

// notifyHover invokes the hover handler with panic isolation.
func (s *Session) notifyHover(zoneID string) {
	if s.onHover == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("hover handler panicked", "zone", zoneID, "panic", r)
		}
	}()
	s.onHover(zoneID)
}

// announce publishes an accessibility announcement.
func (s *Session) announce(msg string) {
	if s.announcer != nil {
		s.announcer.Announce("session", msg)
	}
}
