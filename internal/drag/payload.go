// Package drag provides the drag payload and the per-gesture session
// state machine.
package drag

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldError describes one rejected payload field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("field %q: %s", e.Field, e.Reason)
}

// PayloadError is the structured validation error produced when payload
// construction or deserialization rejects its input.
type PayloadError struct {
	Fields []FieldError
}

func (e *PayloadError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid payload"
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return "invalid payload: " + strings.Join(parts, "; ")
}

// PayloadSpec is the input to NewPayload. All fields are copied; the spec
// can be reused after construction.
type PayloadSpec struct {
	ID         string
	Type       string
	Name       string
	Category   string
	SourceID   string
	Properties map[string]string
	Metadata   map[string]string
}

// Payload is the immutable description of the component being dragged.
// It is validated once at construction and never mutated; accessors copy
// map-valued fields.
type Payload struct {
	id         string
	typ        string
	name       string
	category   string
	sourceID   string
	properties map[string]string
	metadata   map[string]string
}

// Property keys the validator understands. Owners set these when a
// component declares sizing or placement requirements.
const (
	// PropMinWidth is the payload's minimum width in canvas units.
	PropMinWidth = "min_width"

	// PropMinHeight is the payload's minimum height in canvas units.
	PropMinHeight = "min_height"

	// PropInvalidParents is a comma-separated list of zone kinds or
	// zone ids the payload refuses to be dropped into.
	PropInvalidParents = "invalid_parents"
)

// NewPayload validates the spec and constructs an immutable payload.
// Required string fields are sanitized first; a field that is empty after
// sanitization fails construction with a *PayloadError.
func NewPayload(spec PayloadSpec) (*Payload, error) {
	p := &Payload{
		id:       sanitize(spec.ID),
		typ:      sanitize(spec.Type),
		name:     sanitize(spec.Name),
		category: sanitize(spec.Category),
		sourceID: sanitize(spec.SourceID),
	}

	var fields []FieldError
	for _, req := range []struct {
		name  string
		value string
	}{
		{"id", p.id},
		{"type", p.typ},
		{"name", p.name},
		{"category", p.category},
	} {
		if req.value == "" {
			fields = append(fields, FieldError{Field: req.name, Reason: "required and must be non-empty"})
		}
	}
	if len(fields) > 0 {
		return nil, &PayloadError{Fields: fields}
	}

	if len(spec.Properties) > 0 {
		p.properties = make(map[string]string, len(spec.Properties))
		for k, v := range spec.Properties {
			p.properties[sanitize(k)] = sanitize(v)
		}
	}
	if len(spec.Metadata) > 0 {
		p.metadata = make(map[string]string, len(spec.Metadata))
		for k, v := range spec.Metadata {
			p.metadata[sanitize(k)] = sanitize(v)
		}
	}

	return p, nil
}

// ID returns the payload id.
func (p *Payload) ID() string { return p.id }

// Type returns the component type being dragged.
func (p *Payload) Type() string { return p.typ }

// Name returns the human-readable component name.
func (p *Payload) Name() string { return p.name }

// Category returns the palette category the component came from.
func (p *Payload) Category() string { return p.category }

// SourceID returns the id of the element the drag started from.
func (p *Payload) SourceID() string { return p.sourceID }

// Property returns a property value.
func (p *Payload) Property(key string) (string, bool) {
	v, ok := p.properties[key]
	return v, ok
}

// Properties returns a copy of the property map.
func (p *Payload) Properties() map[string]string {
	return copyMap(p.properties)
}

// Metadata returns a copy of the metadata map.
func (p *Payload) Metadata() map[string]string {
	return copyMap(p.metadata)
}

// MinSize returns the payload's declared minimum width and height.
// Axes without a declaration (or with an unparseable one) report zero.
func (p *Payload) MinSize() (width, height float64) {
	if v, ok := p.properties[PropMinWidth]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			width = f
		}
	}
	if v, ok := p.properties[PropMinHeight]; ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			height = f
		}
	}
	return width, height
}

// InvalidParents returns the zone kinds the payload refuses as parents.
func (p *Payload) InvalidParents() []string {
	v, ok := p.properties[PropInvalidParents]
	if !ok || v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Equal reports whether two payloads carry identical content.
func (p *Payload) Equal(o *Payload) bool {
	if p == nil || o == nil {
		return p == o
	}
	if p.id != o.id || p.typ != o.typ || p.name != o.name ||
		p.category != o.category || p.sourceID != o.sourceID {
		return false
	}
	return mapsEqual(p.properties, o.properties) && mapsEqual(p.metadata, o.metadata)
}

// sanitize trims whitespace and strips control characters. Payload strings
// cross the platform drag transport and end up in announcements; control
// characters have no business in either place.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	if !strings.ContainsFunc(s, isControl) {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for _, r := range s {
		if !isControl(r) {
			sb.WriteRune(r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func isControl(r rune) bool {
	return r < 0x20 || r == 0x7f
}

func copyMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mapsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}
