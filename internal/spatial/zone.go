// Package spatial provides the drop zone store and its query engine.
package spatial

import "math"

// Bounds is an axis-aligned rectangle in canvas coordinates.
type Bounds struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Valid returns true if the bounds describe a real region.
// Zones with zero or negative extents are rejected at registration.
func (b Bounds) Valid() bool {
	return b.Width > 0 && b.Height > 0
}

// Contains returns true if the point lies inside the bounds.
// Edges are inclusive on the origin side and exclusive on the far side.
func (b Bounds) Contains(x, y float64) bool {
	return x >= b.X && x < b.X+b.Width && y >= b.Y && y < b.Y+b.Height
}

// Intersects returns true if the two rectangles overlap.
func (b Bounds) Intersects(o Bounds) bool {
	return b.X < o.X+o.Width && o.X < b.X+b.Width &&
		b.Y < o.Y+o.Height && o.Y < b.Y+b.Height
}

// ContainsBounds returns true if o lies entirely within b.
func (b Bounds) ContainsBounds(o Bounds) bool {
	return o.X >= b.X && o.Y >= b.Y &&
		o.X+o.Width <= b.X+b.Width && o.Y+o.Height <= b.Y+b.Height
}

// Area returns the rectangle area.
func (b Bounds) Area() float64 {
	return b.Width * b.Height
}

// Center returns the rectangle centroid.
func (b Bounds) Center() (float64, float64) {
	return b.X + b.Width/2, b.Y + b.Height/2
}

// DistanceTo returns the euclidean distance from the centroid to a point.
func (b Bounds) DistanceTo(x, y float64) float64 {
	cx, cy := b.Center()
	return math.Hypot(cx-x, cy-y)
}

// Kind classifies how a zone hosts dropped content.
type Kind uint8

const (
	// KindCanvas is a free-form region with no structural constraints.
	KindCanvas Kind = iota

	// KindContainer hosts an ordered list of children up to a capacity.
	KindContainer

	// KindSlot hosts at most one child, optionally of a required type.
	KindSlot
)

// String returns the string representation of the zone kind.
func (k Kind) String() string {
	switch k {
	case KindCanvas:
		return "canvas"
	case KindContainer:
		return "container"
	case KindSlot:
		return "slot"
	default:
		return "unknown"
	}
}

// Wildcard is the accepts entry that matches any payload type.
const Wildcard = "*"

// Constraints hold the structural drop rules attached to a zone.
// The zero value means unconstrained.
type Constraints struct {
	// Kind classifies the zone for kind-specific rules.
	Kind Kind

	// MaxChildren caps container occupancy. Zero means unlimited.
	MaxChildren int

	// ChildCount is the owner-reported current occupancy.
	ChildCount int

	// Exclusive marks a slot that admits a single occupant.
	Exclusive bool

	// Occupied is the owner-reported slot occupancy.
	Occupied bool

	// RequiredType restricts a slot to one payload type. Empty means any.
	RequiredType string

	// AvailWidth and AvailHeight are the space the zone can offer a
	// payload. Zero means unconstrained on that axis.
	AvailWidth  float64
	AvailHeight float64
}

// ConstraintPatch is a partial constraint update. Nil fields are left
// unchanged by Apply.
type ConstraintPatch struct {
	Kind         *Kind
	MaxChildren  *int
	ChildCount   *int
	Exclusive    *bool
	Occupied     *bool
	RequiredType *string
	AvailWidth   *float64
	AvailHeight  *float64
}

// Apply merges the patch into the constraints.
func (c *Constraints) Apply(p ConstraintPatch) {
	if p.Kind != nil {
		c.Kind = *p.Kind
	}
	if p.MaxChildren != nil {
		c.MaxChildren = *p.MaxChildren
	}
	if p.ChildCount != nil {
		c.ChildCount = *p.ChildCount
	}
	if p.Exclusive != nil {
		c.Exclusive = *p.Exclusive
	}
	if p.Occupied != nil {
		c.Occupied = *p.Occupied
	}
	if p.RequiredType != nil {
		c.RequiredType = *p.RequiredType
	}
	if p.AvailWidth != nil {
		c.AvailWidth = *p.AvailWidth
	}
	if p.AvailHeight != nil {
		c.AvailHeight = *p.AvailHeight
	}
}

// Zone is an immutable snapshot of a registered drop zone.
// Callers never mutate a Zone directly; all changes go through Index methods.
type Zone struct {
	// ID uniquely identifies the zone.
	ID string

	// Bounds is the zone rectangle in canvas coordinates.
	Bounds Bounds

	// Depth is the nesting level in the container hierarchy.
	Depth int

	// ParentID is the enclosing zone, or empty for a root zone.
	ParentID string

	// Accepts lists the payload types the zone admits. An empty list or
	// a Wildcard entry admits any type.
	Accepts []string

	// Constraints are the structural drop rules for this zone.
	Constraints Constraints
}

// AcceptsType reports whether the zone admits the given payload type.
func (z Zone) AcceptsType(typ string) bool {
	if len(z.Accepts) == 0 {
		return true
	}
	for _, a := range z.Accepts {
		if a == Wildcard || a == typ {
			return true
		}
	}
	return false
}

// zoneRecord is the index-owned mutable state backing a Zone snapshot.
type zoneRecord struct {
	id          string
	bounds      Bounds
	depth       int
	parentID    string
	accepts     []string
	constraints Constraints
}

// snapshot copies the record into an immutable Zone.
func (r *zoneRecord) snapshot() Zone {
	z := Zone{
		ID:          r.id,
		Bounds:      r.bounds,
		Depth:       r.depth,
		ParentID:    r.parentID,
		Constraints: r.constraints,
	}
	if len(r.accepts) > 0 {
		z.Accepts = make([]string, len(r.accepts))
		copy(z.Accepts, r.accepts)
	}
	return z
}
