package drag

import (
	"errors"
	"strings"
	"testing"
)

func validSpec() PayloadSpec {
	return PayloadSpec{
		ID:       "comp-1",
		Type:     "button",
		Name:     "Primary Button",
		Category: "controls",
		SourceID: "palette",
		Properties: map[string]string{
			"variant":     "primary",
			PropMinWidth:  "40",
			PropMinHeight: "16",
		},
		Metadata: map[string]string{"origin": "library"},
	}
}

func TestNewPayloadValid(t *testing.T) {
	p, err := NewPayload(validSpec())
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	if p.ID() != "comp-1" || p.Type() != "button" || p.Name() != "Primary Button" || p.Category() != "controls" {
		t.Errorf("accessor mismatch: %s %s %s %s", p.ID(), p.Type(), p.Name(), p.Category())
	}
	if v, ok := p.Property("variant"); !ok || v != "primary" {
		t.Errorf("Property(variant) = %q, %v", v, ok)
	}
	w, h := p.MinSize()
	if w != 40 || h != 16 {
		t.Errorf("MinSize() = %v, %v, want 40, 16", w, h)
	}
}

func TestNewPayloadMissingFields(t *testing.T) {
	tests := []struct {
		name  string
		morph func(*PayloadSpec)
		field string
	}{
		{"missing id", func(s *PayloadSpec) { s.ID = "" }, "id"},
		{"missing type", func(s *PayloadSpec) { s.Type = "" }, "type"},
		{"missing name", func(s *PayloadSpec) { s.Name = "" }, "name"},
		{"missing category", func(s *PayloadSpec) { s.Category = "" }, "category"},
		{"blank after trim", func(s *PayloadSpec) { s.Name = "  \t " }, "name"},
		{"only control chars", func(s *PayloadSpec) { s.Type = "\x00\x01" }, "type"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validSpec()
			tt.morph(&spec)

			_, err := NewPayload(spec)
			var perr *PayloadError
			if !errors.As(err, &perr) {
				t.Fatalf("NewPayload error = %v, want *PayloadError", err)
			}
			found := false
			for _, f := range perr.Fields {
				if f.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("PayloadError %v does not name field %q", perr, tt.field)
			}
		})
	}
}

func TestNewPayloadReportsAllMissingFields(t *testing.T) {
	_, err := NewPayload(PayloadSpec{})
	var perr *PayloadError
	if !errors.As(err, &perr) {
		t.Fatalf("error = %v, want *PayloadError", err)
	}
	if len(perr.Fields) != 4 {
		t.Errorf("PayloadError names %d fields, want 4", len(perr.Fields))
	}
}

func TestSanitizeStripsControlCharacters(t *testing.T) {
	p, err := NewPayload(PayloadSpec{
		ID:       " comp\x00-2 ",
		Type:     "text\x1b",
		Name:     "Label\r\n",
		Category: "content",
	})
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}
	if p.ID() != "comp-2" {
		t.Errorf("ID() = %q, want %q", p.ID(), "comp-2")
	}
	if p.Type() != "text" || p.Name() != "Label" {
		t.Errorf("sanitized fields = %q, %q", p.Type(), p.Name())
	}
}

func TestPayloadMapAccessorsCopy(t *testing.T) {
	p, err := NewPayload(validSpec())
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	props := p.Properties()
	props["variant"] = "mutated"

	if v, _ := p.Property("variant"); v != "primary" {
		t.Error("mutating the returned map must not affect the payload")
	}
}

func TestInvalidParents(t *testing.T) {
	spec := validSpec()
	spec.Properties[PropInvalidParents] = "slot, container ,"
	p, err := NewPayload(spec)
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	got := p.InvalidParents()
	want := []string{"slot", "container"}
	if len(got) != len(want) {
		t.Fatalf("InvalidParents() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("InvalidParents()[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	p2, _ := NewPayload(PayloadSpec{ID: "a", Type: "b", Name: "c", Category: "d"})
	if p2.InvalidParents() != nil {
		t.Error("payload without the property should report nil")
	}
}

func TestTransportRoundTrip(t *testing.T) {
	p, err := NewPayload(validSpec())
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	back, err := UnmarshalPayload(data)
	if err != nil {
		t.Fatalf("UnmarshalPayload failed: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip mismatch:\n  sent %s\n  got  %s", data, mustMarshal(t, back))
	}
}

func TestTransportRoundTripAwkwardKeys(t *testing.T) {
	spec := validSpec()
	spec.Properties = map[string]string{"grid.span": "2", "a*b": "x"}
	p, err := NewPayload(spec)
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}

	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	back, err := UnmarshalPayload(data)
	if err != nil {
		t.Fatalf("UnmarshalPayload failed: %v", err)
	}
	if !p.Equal(back) {
		t.Errorf("round trip with path metacharacters mismatch: %s", data)
	}
}

func TestUnmarshalRejectsBadRecords(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{{nope"},
		{"not an object", `[1,2,3]`},
		{"missing type", `{"id":"a","name":"b","category":"c"}`},
		{"blank name", `{"id":"a","type":"t","name":"   ","category":"c"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalPayload([]byte(tt.data))
			var perr *PayloadError
			if !errors.As(err, &perr) {
				t.Fatalf("UnmarshalPayload error = %v, want *PayloadError", err)
			}
			if !strings.Contains(err.Error(), "invalid payload") {
				t.Errorf("error text = %q", err.Error())
			}
		})
	}
}

func TestEqual(t *testing.T) {
	a, _ := NewPayload(validSpec())
	b, _ := NewPayload(validSpec())
	if !a.Equal(b) {
		t.Error("identical payloads should be equal")
	}

	spec := validSpec()
	spec.Properties["variant"] = "secondary"
	c, _ := NewPayload(spec)
	if a.Equal(c) {
		t.Error("payloads with different properties should not be equal")
	}
}

func mustMarshal(t *testing.T, p *Payload) []byte {
	t.Helper()
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	return data
}
