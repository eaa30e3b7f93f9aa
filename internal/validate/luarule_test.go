package validate

import (
	"testing"

	"github.com/dshills/dragstorm/internal/spatial"
)

const denyImagesScript = `
function can_drop(zone, payload)
    if payload.type == "image" and zone.kind == "slot" then
        return false, "images are not allowed in slots"
    end
    return true
end
`

func TestLuaRule(t *testing.T) {
	rule, err := NewLuaRule(denyImagesScript)
	if err != nil {
		t.Fatalf("NewLuaRule failed: %v", err)
	}
	defer rule.Close()

	slot := spatial.Zone{
		ID:          "s",
		Bounds:      spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10},
		Constraints: spatial.Constraints{Kind: spatial.KindSlot},
	}
	canvas := spatial.Zone{ID: "c", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}}

	ok, reason, err := rule.Evaluate(slot, newPayload(t, "image", nil))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if ok {
		t.Error("rule should deny images in slots")
	}
	if reason != "images are not allowed in slots" {
		t.Errorf("reason = %q", reason)
	}

	ok, _, err = rule.Evaluate(canvas, newPayload(t, "image", nil))
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !ok {
		t.Error("rule should allow images outside slots")
	}
}

func TestLuaRuleThroughValidator(t *testing.T) {
	rule, err := NewLuaRule(denyImagesScript)
	if err != nil {
		t.Fatalf("NewLuaRule failed: %v", err)
	}
	defer rule.Close()

	v, _ := newValidator(t, WithRule(rule))
	slot := spatial.Zone{
		ID:          "s",
		Bounds:      spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10},
		Constraints: spatial.Constraints{Kind: spatial.KindSlot},
	}

	res := v.Validate(slot, newPayload(t, "image", nil))
	if res.Valid {
		t.Error("validator should surface the lua rejection")
	}
	if res.Reason != "images are not allowed in slots" {
		t.Errorf("Reason = %q", res.Reason)
	}
}

func TestLuaRuleRejectsBadScripts(t *testing.T) {
	if _, err := NewLuaRule("this is not lua"); err == nil {
		t.Error("syntax errors should fail compilation")
	}
	if _, err := NewLuaRule("x = 1"); err == nil {
		t.Error("scripts without can_drop should be rejected")
	}
}

func TestClosedLuaRuleFailsOpen(t *testing.T) {
	rule, err := NewLuaRule(denyImagesScript)
	if err != nil {
		t.Fatalf("NewLuaRule failed: %v", err)
	}
	rule.Close()
	rule.Close() // idempotent

	v, _ := newValidator(t, WithRule(rule))
	zone := spatial.Zone{ID: "z", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}}

	if res := v.Validate(zone, newPayload(t, "button", nil)); !res.Valid {
		t.Error("a closed rule errors and the validator must fail open")
	}
}
