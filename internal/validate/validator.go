// Package validate decides whether a payload may drop into a zone.
//
// Rules run in a fixed order and short-circuit on the first failure:
// type acceptance, zone-kind occupancy, size fit, payload-declared parent
// exclusions, then any extra rule (such as a user script). A rejection is
// a value, never an error; the caller decides how to surface it.
package validate

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/spatial"
)

// Result is the outcome of one validation call. It is produced fresh per
// call and never retained by the validator.
type Result struct {
	// Valid is true when every rule passed.
	Valid bool

	// Reason is a human-readable explanation of the first failure.
	Reason string

	// SuggestedAction tells the user what would make the drop legal.
	SuggestedAction string

	// ViolatedConstraints names the constraints that failed.
	ViolatedConstraints []string
}

// valid is the all-rules-passed result.
func valid() Result {
	return Result{Valid: true, Reason: "drop allowed"}
}

func invalid(reason, action string, violated ...string) Result {
	return Result{
		Reason:              reason,
		SuggestedAction:     action,
		ViolatedConstraints: violated,
	}
}

// Rule is an extension point evaluated after the built-in rules pass.
// Returning ok=false rejects the drop with the given reason. An error
// means the rule itself failed; the validator logs it and lets the drop
// through rather than blocking the user on a broken rule.
type Rule interface {
	Evaluate(zone spatial.Zone, payload *drag.Payload) (ok bool, reason string, err error)
}

// ValidatorOption configures a Validator.
type ValidatorOption func(*Validator)

// WithRule appends an extra rule evaluated after the built-in ones.
func WithRule(r Rule) ValidatorOption {
	return func(v *Validator) {
		v.rules = append(v.rules, r)
	}
}

// Validator evaluates drop legality. Validation itself is stateless per
// call; the validator only holds the index reference used by
// UpdateConstraints and the optional extra rules.
type Validator struct {
	mu     sync.RWMutex
	index  *spatial.Index
	rules  []Rule
	logger *log.Logger
}

// New creates a validator over the given index.
func New(index *spatial.Index, logger *log.Logger, opts ...ValidatorOption) *Validator {
	if logger == nil {
		logger = log.Default()
	}
	v := &Validator{
		index:  index,
		logger: logger.With("component", "validate"),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// AddRule appends an extra rule at runtime.
func (v *Validator) AddRule(r Rule) {
	v.mu.Lock()
	v.rules = append(v.rules, r)
	v.mu.Unlock()
}

// Validate runs the rule chain for a (zone, payload) pair.
func (v *Validator) Validate(zone spatial.Zone, payload *drag.Payload) Result {
	if payload == nil {
		return invalid("no payload", "start the drag with a valid payload")
	}

	if r := checkTypeAcceptance(zone, payload); !r.Valid {
		return r
	}
	if r := checkZoneKind(zone, payload); !r.Valid {
		return r
	}
	if r := checkSize(zone, payload); !r.Valid {
		return r
	}
	if r := checkParentExclusion(zone, payload); !r.Valid {
		return r
	}

	v.mu.RLock()
	rules := v.rules
	v.mu.RUnlock()

	for _, rule := range rules {
		ok, reason, err := rule.Evaluate(zone, payload)
		if err != nil {
			// A broken rule must not block the user; fail open.
			v.logger.Warn("extra rule failed, skipping", "zone", zone.ID, "error", err)
			continue
		}
		if !ok {
			if reason == "" {
				reason = "rejected by custom rule"
			}
			return invalid(reason, "choose a different drop target", "custom_rule")
		}
	}

	return valid()
}

// ValidateZoneID validates against the current snapshot of a registered
// zone. An unknown id is a rejection, not an error.
func (v *Validator) ValidateZoneID(zoneID string, payload *drag.Payload) Result {
	zone, ok := v.index.Zone(zoneID)
	if !ok {
		return invalid(
			fmt.Sprintf("drop zone %q is not registered", zoneID),
			"drop onto a registered zone",
			"zone_exists",
		)
	}
	return v.Validate(zone, payload)
}

// UpdateConstraints merges a partial constraint update into a zone, e.g.
// raising max_children after a sibling was removed elsewhere.
// Returns false for an unknown zone id.
func (v *Validator) UpdateConstraints(zoneID string, patch spatial.ConstraintPatch) bool {
	return v.index.UpdateConstraints(zoneID, patch)
}

// checkTypeAcceptance fails unless the zone admits the payload type.
func checkTypeAcceptance(zone spatial.Zone, payload *drag.Payload) Result {
	if zone.AcceptsType(payload.Type()) {
		return valid()
	}
	return invalid(
		fmt.Sprintf("zone %q does not accept type %q", zone.ID, payload.Type()),
		fmt.Sprintf("drop a %v component instead", zone.Accepts),
		"accepts",
	)
}

// checkZoneKind applies container capacity and slot occupancy rules.
func checkZoneKind(zone spatial.Zone, payload *drag.Payload) Result {
	c := zone.Constraints
	switch c.Kind {
	case spatial.KindContainer:
		if c.MaxChildren > 0 && c.ChildCount >= c.MaxChildren {
			return invalid(
				fmt.Sprintf("container %q is full (%d of %d children)", zone.ID, c.ChildCount, c.MaxChildren),
				"remove a child or drop into another container",
				"max_children",
			)
		}
	case spatial.KindSlot:
		if c.RequiredType != "" && c.RequiredType != payload.Type() {
			return invalid(
				fmt.Sprintf("slot %q requires type %q, got %q", zone.ID, c.RequiredType, payload.Type()),
				fmt.Sprintf("drop a %q component instead", c.RequiredType),
				"required_type",
			)
		}
		if c.Exclusive && c.Occupied {
			return invalid(
				fmt.Sprintf("slot %q is already occupied", zone.ID),
				"clear the slot before dropping",
				"exclusive",
			)
		}
	}
	return valid()
}

// checkSize fails when the payload's declared minimum size exceeds the
// space the zone declares available.
func checkSize(zone spatial.Zone, payload *drag.Payload) Result {
	minW, minH := payload.MinSize()
	c := zone.Constraints

	var violated []string
	if c.AvailWidth > 0 && minW > c.AvailWidth {
		violated = append(violated, "avail_width")
	}
	if c.AvailHeight > 0 && minH > c.AvailHeight {
		violated = append(violated, "avail_height")
	}
	if len(violated) == 0 {
		return valid()
	}
	return invalid(
		fmt.Sprintf("component needs %gx%g but zone %q offers %gx%g",
			minW, minH, zone.ID, c.AvailWidth, c.AvailHeight),
		"resize the zone or drop a smaller component",
		violated...,
	)
}

// checkParentExclusion fails when the payload refuses the zone. Entries
// in the exclusion list name either a zone kind or a specific zone id.
func checkParentExclusion(zone spatial.Zone, payload *drag.Payload) Result {
	kind := zone.Constraints.Kind.String()
	for _, excluded := range payload.InvalidParents() {
		if excluded == kind || excluded == zone.ID {
			return invalid(
				fmt.Sprintf("%q components cannot be placed in %s", payload.Type(), excluded),
				"drop onto a different zone",
				"invalid_parents",
			)
		}
	}
	return valid()
}
