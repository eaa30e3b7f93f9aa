package feedback

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/dshills/dragstorm/internal/announce"
	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/sched"
	"github.com/dshills/dragstorm/internal/spatial"
)

// latencyAlpha weights the newest update cost in the latency average.
const latencyAlpha = 0.2

// invalidMarker pairs an overlay with the timer that expires it.
type invalidMarker struct {
	overlay *Overlay
	handle  *sched.Handle
}

// Coordinator owns all drag feedback overlays.
//
// Zone highlights are replaced wholesale per update; invalid markers
// expire on scheduled tasks carrying a generation token, so a timer that
// outlives a ClearAll cannot resurrect stale feedback. The coordinator
// lock is never held across an announcement.
type Coordinator struct {
	mu sync.Mutex

	cfg        Config
	ghost      *Overlay
	highlights map[string]*Overlay
	insertions map[string]*Overlay
	invalid    map[string]*invalidMarker

	// generation invalidates scheduled removals issued before a clear.
	generation uint64

	lastGhostMove time.Time

	updates        uint64
	latency        time.Duration
	budgetOverruns uint64
	throttledMoves uint64

	scheduler *sched.Scheduler
	announcer *announce.Registry
	logger    *log.Logger
}

// NewCoordinator creates a coordinator with no active feedback.
func NewCoordinator(cfg Config, scheduler *sched.Scheduler, announcer *announce.Registry, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.Default()
	}
	if cfg.FPSLimit <= 0 {
		cfg.FPSLimit = DefaultConfig().FPSLimit
	}
	if cfg.InvalidLifetime <= 0 {
		cfg.InvalidLifetime = DefaultConfig().InvalidLifetime
	}
	if cfg.FrameBudget <= 0 {
		cfg.FrameBudget = DefaultConfig().FrameBudget
	}
	return &Coordinator{
		cfg:        cfg,
		highlights: make(map[string]*Overlay),
		insertions: make(map[string]*Overlay),
		invalid:    make(map[string]*invalidMarker),
		scheduler:  scheduler,
		announcer:  announcer,
		logger:     logger.With("component", "feedback"),
	}
}

// Start clears any previous feedback and creates the ghost proxy. When
// source bounds are given the ghost starts at their center; otherwise it
// appears on the first position update.
func (c *Coordinator) Start(payload *drag.Payload, sourceBounds *spatial.Bounds) {
	c.clearAll()

	pos := Point{}
	if sourceBounds != nil {
		x, y := sourceBounds.Center()
		pos = Point{X: x + c.cfg.GhostOffset.X, Y: y + c.cfg.GhostOffset.Y}
	}

	label := ""
	if payload != nil {
		label = payload.Name()
	}

	c.mu.Lock()
	c.ghost = &Overlay{
		ID:        uuid.NewString(),
		Kind:      KindGhost,
		Position:  pos,
		Label:     label,
		CreatedAt: time.Now(),
	}
	c.lastGhostMove = time.Time{}
	c.mu.Unlock()

	c.announce("drag feedback active for " + label)
}

// UpdateZoneFeedback replaces the overlay for a zone. An insertion point,
// when present, produces an insertion indicator alongside the highlight.
// Update cost feeds a moving average; single updates over the frame
// budget are logged.
func (c *Coordinator) UpdateZoneFeedback(zoneID string, state State, bounds spatial.Bounds, insertionPoint *Point) {
	start := time.Now()

	c.mu.Lock()
	c.highlights[zoneID] = &Overlay{
		ID:        uuid.NewString(),
		Kind:      KindHighlight,
		ZoneID:    zoneID,
		Bounds:    bounds,
		State:     state,
		CreatedAt: start,
	}

	if insertionPoint != nil {
		c.insertions[zoneID] = &Overlay{
			ID:        uuid.NewString(),
			Kind:      KindInsertion,
			ZoneID:    zoneID,
			Position:  *insertionPoint,
			CreatedAt: start,
		}
	} else {
		delete(c.insertions, zoneID)
	}

	elapsed := time.Since(start)
	c.updates++
	if c.latency == 0 {
		c.latency = elapsed
	} else {
		c.latency = time.Duration(latencyAlpha*float64(elapsed) + (1-latencyAlpha)*float64(c.latency))
	}
	overBudget := elapsed > c.cfg.FrameBudget
	if overBudget {
		c.budgetOverruns++
	}
	c.mu.Unlock()

	if overBudget {
		c.logger.Warn("feedback update exceeded frame budget", "zone", zoneID, "elapsed", elapsed, "budget", c.cfg.FrameBudget)
	}
	c.announce(fmt.Sprintf("drop zone %s: %s", zoneID, state))
}

// UpdateGhostPosition moves the ghost, subject to the fps limit: calls
// arriving within one frame interval of the previous applied move are
// skipped. Returns true if the move was applied.
func (c *Coordinator) UpdateGhostPosition(x, y float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ghost == nil {
		return false
	}

	now := time.Now()
	minInterval := time.Second / time.Duration(c.cfg.FPSLimit)
	if !c.lastGhostMove.IsZero() && now.Sub(c.lastGhostMove) < minInterval {
		c.throttledMoves++
		return false
	}

	c.lastGhostMove = now
	c.ghost.Position = Point{X: x + c.cfg.GhostOffset.X, Y: y + c.cfg.GhostOffset.Y}
	return true
}

// ShowInvalid displays a transient marker over a rejecting zone. The
// marker removes itself after the configured lifetime; removal is a no-op
// if the feedback was already cleared.
func (c *Coordinator) ShowInvalid(zone spatial.Zone, reason string) {
	c.mu.Lock()
	if old, ok := c.invalid[zone.ID]; ok {
		old.handle.Cancel()
	}

	marker := &invalidMarker{
		overlay: &Overlay{
			ID:        uuid.NewString(),
			Kind:      KindInvalid,
			ZoneID:    zone.ID,
			Bounds:    zone.Bounds,
			State:     StateInvalid,
			Label:     reason,
			CreatedAt: time.Now(),
		},
	}
	c.invalid[zone.ID] = marker

	gen := c.generation
	zoneID := zone.ID
	if c.scheduler != nil {
		marker.handle = c.scheduler.After(c.cfg.InvalidLifetime, func() {
			c.expireInvalid(zoneID, gen)
		})
	}
	c.mu.Unlock()

	c.announce(fmt.Sprintf("cannot drop on %s: %s", zone.ID, reason))
}

// ClearZone removes the highlight and insertion indicator for one zone.
func (c *Coordinator) ClearZone(zoneID string) {
	c.mu.Lock()
	delete(c.highlights, zoneID)
	delete(c.insertions, zoneID)
	c.mu.Unlock()
}

// ClearAll tears down the ghost, every overlay, and every pending
// scheduled removal. Safe to call repeatedly.
func (c *Coordinator) ClearAll() {
	c.clearAll()
	c.announce("drag feedback cleared")
}

// Snapshot returns the active overlays in render order: highlights by
// zone id, then insertion indicators, invalid markers, and the ghost on
// top. The renderer pulls this each frame.
func (c *Coordinator) Snapshot() []Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Overlay, 0, len(c.highlights)+len(c.insertions)+len(c.invalid)+1)
	for _, id := range sortedIDs(c.highlights) {
		out = append(out, *c.highlights[id])
	}
	for _, id := range sortedIDs(c.insertions) {
		out = append(out, *c.insertions[id])
	}
	invalidIDs := make([]string, 0, len(c.invalid))
	for id := range c.invalid {
		invalidIDs = append(invalidIDs, id)
	}
	sort.Strings(invalidIDs)
	for _, id := range invalidIDs {
		out = append(out, *c.invalid[id].overlay)
	}
	if c.ghost != nil {
		out = append(out, *c.ghost)
	}
	return out
}

// Metrics returns a snapshot of coordinator statistics.
func (c *Coordinator) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := len(c.highlights) + len(c.insertions) + len(c.invalid)
	if c.ghost != nil {
		active++
	}
	return Metrics{
		Updates:             c.updates,
		RenderLatency:       c.latency,
		BudgetOverruns:      c.budgetOverruns,
		ThrottledGhostMoves: c.throttledMoves,
		ActiveOverlays:      active,
	}
}

// clearAll resets overlay state and bumps the generation so in-flight
// expiry timers become no-ops.
func (c *Coordinator) clearAll() {
	c.mu.Lock()
	c.generation++
	c.ghost = nil
	c.highlights = make(map[string]*Overlay)
	c.insertions = make(map[string]*Overlay)
	for _, marker := range c.invalid {
		marker.handle.Cancel()
	}
	c.invalid = make(map[string]*invalidMarker)
	c.lastGhostMove = time.Time{}
	c.mu.Unlock()
}

// expireInvalid removes a marker when its timer fires. A stale generation
// means the feedback was cleared in the meantime; the removal is skipped.
func (c *Coordinator) expireInvalid(zoneID string, gen uint64) {
	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("stale invalid-marker expiry ignored", "zone", zoneID)
		return
	}
	if _, ok := c.invalid[zoneID]; !ok {
		c.mu.Unlock()
		return
	}
	delete(c.invalid, zoneID)
	c.mu.Unlock()

	c.announce("invalid drop marker removed from " + zoneID)
}

// announce publishes an accessibility announcement.
func (c *Coordinator) announce(msg string) {
	if c.announcer != nil {
		c.announcer.Announce("feedback", msg)
	}
}

func sortedIDs(m map[string]*Overlay) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
