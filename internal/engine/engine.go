// Package engine wires the drag session, spatial index, validator, and
// feedback coordinator into the owner-side control flow: start a gesture,
// feed it pointer moves, and resolve it on release or cancel.
package engine

import (
	"github.com/charmbracelet/log"

	"github.com/dshills/dragstorm/internal/announce"
	"github.com/dshills/dragstorm/internal/config"
	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/feedback"
	"github.com/dshills/dragstorm/internal/sched"
	"github.com/dshills/dragstorm/internal/spatial"
	"github.com/dshills/dragstorm/internal/validate"
)

// DropHandler processes an accepted drop. An error (or panic) marks the
// gesture as failed but never crashes the engine.
type DropHandler func(zone spatial.Zone, payload *drag.Payload) error

// Option configures an Engine.
type Option func(*Engine)

// WithDropHandler sets the accepted-drop callback.
func WithDropHandler(fn DropHandler) Option {
	return func(e *Engine) { e.onDrop = fn }
}

// WithRule adds an extra validation rule.
func WithRule(r validate.Rule) Option {
	return func(e *Engine) { e.extraRules = append(e.extraRules, r) }
}

// Engine owns one drag gesture at a time over one canvas. All pointer and
// keyboard entry points run on the UI goroutine; background work (layout
// mutating the index, timers expiring feedback) synchronizes inside the
// components themselves.
type Engine struct {
	cfg        config.Config
	logger     *log.Logger
	announcer  *announce.Registry
	scheduler  *sched.Scheduler
	index      *spatial.Index
	validator  *validate.Validator
	feedback   *feedback.Coordinator
	session    *drag.Session
	onDrop     DropHandler
	extraRules []validate.Rule

	// candidates are the zone ids given feedback on the last pointer
	// move, so stale highlights can be cleared on the next one. Only the
	// UI goroutine touches this.
	candidates []string
}

// New assembles an engine from the configuration.
func New(cfg config.Config, logger *log.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = log.Default()
	}

	e := &Engine{
		cfg:    cfg,
		logger: logger.With("component", "engine"),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.announcer = announce.NewRegistry(logger)
	e.scheduler = sched.New(logger)
	e.index = spatial.NewIndex(logger, spatial.WithCacheSize(cfg.Cache.MaxEntries))

	vopts := make([]validate.ValidatorOption, 0, len(e.extraRules))
	for _, r := range e.extraRules {
		vopts = append(vopts, validate.WithRule(r))
	}
	e.validator = validate.New(e.index, logger, vopts...)

	e.feedback = feedback.NewCoordinator(feedback.Config{
		FPSLimit:        cfg.Feedback.FPSLimit,
		InvalidLifetime: cfg.InvalidLifetime(),
		FrameBudget:     cfg.FrameBudget(),
		GhostOffset:     feedback.Point{X: cfg.Feedback.GhostOffsetX, Y: cfg.Feedback.GhostOffsetY},
	}, e.scheduler, e.announcer, logger)

	e.session = drag.NewSession("canvas", e.scheduler, logger,
		drag.WithCancelResetDelay(cfg.CancelResetDelay()),
		drag.WithAnnouncer(e.announcer),
	)

	return e
}

// Index exposes the spatial index to the canvas owner for zone
// registration and layout updates.
func (e *Engine) Index() *spatial.Index { return e.index }

// Validator exposes the drop validator.
func (e *Engine) Validator() *validate.Validator { return e.validator }

// Feedback exposes the coordinator; the renderer pulls Snapshot from it.
func (e *Engine) Feedback() *feedback.Coordinator { return e.feedback }

// Session exposes the drag session for state and metrics display.
func (e *Engine) Session() *drag.Session { return e.session }

// Announcements exposes the accessibility registry.
func (e *Engine) Announcements() *announce.Registry { return e.announcer }

// StartDrag begins a gesture. sourceBounds, when known, seeds the ghost
// position.
func (e *Engine) StartDrag(payload *drag.Payload, sourceBounds *spatial.Bounds) error {
	if payload == nil {
		return NewOperationError("start", "", ErrNilPayload)
	}
	if !e.session.Start(payload) {
		return NewOperationError("start", payload.ID(), ErrDragInProgress)
	}
	e.feedback.Start(payload, sourceBounds)
	e.candidates = nil
	return nil
}

// KeyActivate is the accessibility path: start the gesture from a
// keyboard activation.
func (e *Engine) KeyActivate(payload *drag.Payload, sourceBounds *spatial.Bounds) error {
	if payload == nil {
		return NewOperationError("key-activate", "", ErrNilPayload)
	}
	if !e.session.KeyActivate(payload) {
		return NewOperationError("key-activate", payload.ID(), ErrDragInProgress)
	}
	e.feedback.Start(payload, sourceBounds)
	e.candidates = nil
	return nil
}

// PointerMove advances the gesture: it moves the ghost, queries the index
// for candidate zones under the pointer, validates each, and refreshes
// per-zone feedback. A no-op when no gesture is active.
func (e *Engine) PointerMove(x, y float64) {
	payload := e.session.Payload()
	if payload == nil {
		return
	}

	e.feedback.UpdateGhostPosition(x, y)

	res := e.index.QueryPoint(x, y, "")

	// Zones highlighted last move but no longer under the pointer.
	current := make(map[string]bool, len(res.Zones))
	for _, z := range res.Zones {
		current[z.ID] = true
	}
	for _, id := range e.candidates {
		if !current[id] {
			e.feedback.ClearZone(id)
		}
	}

	e.candidates = e.candidates[:0]
	hover := ""
	for _, zone := range res.Zones {
		verdict := e.validator.Validate(zone, payload)

		state := feedback.StateInvalid
		if verdict.Valid {
			state = feedback.StateValid
			if hover == "" {
				// The first valid zone is the most specific target.
				hover = zone.ID
				state = feedback.StateHover
			}
		}
		e.feedback.UpdateZoneFeedback(zone.ID, state, zone.Bounds, nil)
		e.candidates = append(e.candidates, zone.ID)
	}

	e.session.UpdateHover(hover)
}

// Release resolves the gesture at the pointer position. The drop is
// validated once more against the most specific zone; a valid drop runs
// the drop handler. The returned result explains a rejection.
func (e *Engine) Release(x, y float64) (validate.Result, error) {
	payload := e.session.Payload()
	if payload == nil {
		return validate.Result{}, NewOperationError("release", "", ErrNoActiveDrag)
	}

	res := e.index.QueryPoint(x, y, "")
	e.feedback.ClearAll()

	if len(res.Zones) == 0 {
		e.session.Complete(false)
		return validate.Result{
			Reason:          "no drop zone under the pointer",
			SuggestedAction: "release over a drop zone",
		}, nil
	}

	// Prefer the first zone the validator accepts. If none accepts, the
	// most specific zone carries the rejection so its reason names the
	// target the user actually aimed at.
	target := res.Zones[0]
	verdict := e.validator.Validate(target, payload)
	if !verdict.Valid {
		for _, zone := range res.Zones[1:] {
			if v := e.validator.Validate(zone, payload); v.Valid {
				target, verdict = zone, v
				break
			}
		}
	}

	if !verdict.Valid {
		e.feedback.ShowInvalid(target, verdict.Reason)
		e.session.Complete(false)
		return verdict, nil
	}

	success := e.runDropHandler(target, payload)
	e.session.Complete(success)
	return verdict, nil
}

// Cancel aborts the gesture and tears down feedback. Safe when idle.
func (e *Engine) Cancel() {
	if e.session.Cancel() {
		e.feedback.ClearAll()
		e.candidates = nil
	}
}

// KeyAbort is the accessibility path for Cancel.
func (e *Engine) KeyAbort() {
	if e.session.KeyAbort() {
		e.feedback.ClearAll()
		e.candidates = nil
	}
}

// Shutdown cancels pending timers and any in-flight gesture.
func (e *Engine) Shutdown() {
	e.Cancel()
	e.scheduler.Stop()
}

// runDropHandler invokes the drop callback with panic isolation. A
// failing handler fails the gesture, never the engine.
func (e *Engine) runDropHandler(zone spatial.Zone, payload *drag.Payload) (ok bool) {
	if e.onDrop == nil {
		return true
	}
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("drop handler panicked", "zone", zone.ID, "panic", r)
			ok = false
		}
	}()
	if err := e.onDrop(zone, payload); err != nil {
		e.logger.Error("drop handler failed", "zone", zone.ID, "error", err)
		return false
	}
	return true
}
