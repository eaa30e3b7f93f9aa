// Package feedback owns the transient visual overlays shown during a drag:
// the ghost proxy, per-zone highlights, insertion indicators, and invalid
// markers. The renderer pulls the current overlay set each frame.
package feedback

import (
	"time"

	"github.com/dshills/dragstorm/internal/spatial"
)

// State classifies per-zone feedback.
type State uint8

const (
	// StateValid marks a zone that would accept the drop.
	StateValid State = iota

	// StateInvalid marks a zone that would reject the drop.
	StateInvalid

	// StateHover marks the zone currently under the pointer.
	StateHover
)

// String returns the string representation of the feedback state.
func (s State) String() string {
	switch s {
	case StateValid:
		return "valid"
	case StateInvalid:
		return "invalid"
	case StateHover:
		return "hover"
	default:
		return "unknown"
	}
}

// Kind identifies the overlay variety.
type Kind uint8

const (
	// KindGhost is the drag proxy that follows the pointer.
	KindGhost Kind = iota

	// KindHighlight tints a candidate drop zone.
	KindHighlight

	// KindInsertion is the line marking where the drop would land.
	KindInsertion

	// KindInvalid is a transient marker on a rejected drop target.
	KindInvalid
)

// String returns the string representation of the overlay kind.
func (k Kind) String() string {
	switch k {
	case KindGhost:
		return "ghost"
	case KindHighlight:
		return "highlight"
	case KindInsertion:
		return "insertion"
	case KindInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// Point is a canvas coordinate.
type Point struct {
	X float64
	Y float64
}

// Overlay is an immutable snapshot of one visual element. The renderer
// composes these; it never mutates them.
type Overlay struct {
	// ID uniquely identifies the overlay instance.
	ID string

	// Kind is the overlay variety.
	Kind Kind

	// ZoneID is the zone the overlay belongs to, empty for the ghost.
	ZoneID string

	// Bounds is the region the overlay covers (highlights, markers).
	Bounds spatial.Bounds

	// State is the feedback classification for highlights.
	State State

	// Position is the ghost location or the insertion point.
	Position Point

	// Label is the ghost caption or the invalid-marker reason.
	Label string

	// CreatedAt is when the overlay was (last) produced.
	CreatedAt time.Time
}

// Config tunes the coordinator.
type Config struct {
	// FPSLimit caps ghost position updates per second.
	FPSLimit int

	// InvalidLifetime is how long an invalid marker stays on screen.
	InvalidLifetime time.Duration

	// FrameBudget is the per-update latency above which the coordinator
	// logs a warning. Defaults to one 60fps frame.
	FrameBudget time.Duration

	// GhostOffset displaces the ghost from the pointer so it does not
	// sit under the cursor.
	GhostOffset Point
}

// DefaultConfig returns the default coordinator configuration.
func DefaultConfig() Config {
	return Config{
		FPSLimit:        60,
		InvalidLifetime: 1500 * time.Millisecond,
		FrameBudget:     time.Second / 60,
		GhostOffset:     Point{X: 12, Y: 12},
	}
}

// Metrics is a snapshot of coordinator statistics.
type Metrics struct {
	// Updates counts zone feedback updates.
	Updates uint64

	// RenderLatency is an exponential moving average of update cost.
	RenderLatency time.Duration

	// BudgetOverruns counts updates that exceeded the frame budget.
	BudgetOverruns uint64

	// ThrottledGhostMoves counts ghost updates skipped by the fps limit.
	ThrottledGhostMoves uint64

	// ActiveOverlays is the current overlay count.
	ActiveOverlays int
}
