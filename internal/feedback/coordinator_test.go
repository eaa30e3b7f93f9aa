package feedback

import (
	"testing"
	"time"

	"github.com/dshills/dragstorm/internal/announce"
	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/sched"
	"github.com/dshills/dragstorm/internal/spatial"
)

func testPayload(t *testing.T) *drag.Payload {
	t.Helper()
	p, err := drag.NewPayload(drag.PayloadSpec{ID: "comp-1", Type: "button", Name: "Button", Category: "controls"})
	if err != nil {
		t.Fatalf("NewPayload failed: %v", err)
	}
	return p
}

func newCoordinator(t *testing.T, cfg Config) (*Coordinator, *sched.Scheduler) {
	t.Helper()
	scheduler := sched.New(nil)
	t.Cleanup(scheduler.Stop)
	return NewCoordinator(cfg, scheduler, nil, nil), scheduler
}

func findKind(overlays []Overlay, kind Kind) []Overlay {
	var out []Overlay
	for _, o := range overlays {
		if o.Kind == kind {
			out = append(out, o)
		}
	}
	return out
}

func TestStartCreatesGhost(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())

	source := spatial.Bounds{X: 10, Y: 10, Width: 20, Height: 20}
	c.Start(testPayload(t), &source)

	ghosts := findKind(c.Snapshot(), KindGhost)
	if len(ghosts) != 1 {
		t.Fatalf("got %d ghosts, want 1", len(ghosts))
	}
	g := ghosts[0]
	if g.Label != "Button" {
		t.Errorf("ghost label = %q, want %q", g.Label, "Button")
	}
	// Ghost starts at source center plus the configured offset.
	if g.Position.X != 32 || g.Position.Y != 32 {
		t.Errorf("ghost position = %+v, want (32, 32)", g.Position)
	}
}

func TestStartReplacesPreviousFeedback(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())

	c.Start(testPayload(t), nil)
	c.UpdateZoneFeedback("zone-a", StateValid, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, nil)

	c.Start(testPayload(t), nil)

	snap := c.Snapshot()
	if len(findKind(snap, KindHighlight)) != 0 {
		t.Error("Start must clear highlights from the previous gesture")
	}
	if len(findKind(snap, KindGhost)) != 1 {
		t.Error("Start should leave exactly one ghost")
	}
}

func TestUpdateZoneFeedbackReplacesOverlay(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())
	c.Start(testPayload(t), nil)

	bounds := spatial.Bounds{X: 0, Y: 0, Width: 50, Height: 50}
	c.UpdateZoneFeedback("zone-a", StateHover, bounds, nil)
	c.UpdateZoneFeedback("zone-a", StateValid, bounds, &Point{X: 25, Y: 0})

	highlights := findKind(c.Snapshot(), KindHighlight)
	if len(highlights) != 1 {
		t.Fatalf("got %d highlights for one zone, want 1", len(highlights))
	}
	if highlights[0].State != StateValid {
		t.Errorf("highlight state = %v, want valid", highlights[0].State)
	}

	insertions := findKind(c.Snapshot(), KindInsertion)
	if len(insertions) != 1 {
		t.Fatalf("got %d insertion indicators, want 1", len(insertions))
	}
	if insertions[0].Position.X != 25 {
		t.Errorf("insertion point = %+v", insertions[0].Position)
	}

	// Dropping the insertion point removes the indicator.
	c.UpdateZoneFeedback("zone-a", StateValid, bounds, nil)
	if len(findKind(c.Snapshot(), KindInsertion)) != 0 {
		t.Error("nil insertion point should remove the indicator")
	}

	m := c.Metrics()
	if m.Updates != 3 {
		t.Errorf("Updates = %d, want 3", m.Updates)
	}
	if m.RenderLatency <= 0 {
		t.Error("RenderLatency should be tracked")
	}
}

func TestGhostThrottle(t *testing.T) {
	cfg := DefaultConfig()
	cfg.FPSLimit = 20 // 50ms interval
	c, _ := newCoordinator(t, cfg)
	c.Start(testPayload(t), nil)

	if !c.UpdateGhostPosition(1, 1) {
		t.Fatal("first move should apply")
	}
	if c.UpdateGhostPosition(2, 2) {
		t.Error("move inside the frame interval should be skipped")
	}

	time.Sleep(60 * time.Millisecond)
	if !c.UpdateGhostPosition(3, 3) {
		t.Error("move after the interval should apply")
	}

	if m := c.Metrics(); m.ThrottledGhostMoves != 1 {
		t.Errorf("ThrottledGhostMoves = %d, want 1", m.ThrottledGhostMoves)
	}

	ghosts := findKind(c.Snapshot(), KindGhost)
	wantX := 3 + cfg.GhostOffset.X
	if ghosts[0].Position.X != wantX {
		t.Errorf("ghost X = %v, want %v", ghosts[0].Position.X, wantX)
	}
}

func TestGhostUpdateWithoutStart(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())
	if c.UpdateGhostPosition(1, 1) {
		t.Error("ghost move without an active drag should be a no-op")
	}
}

func TestInvalidMarkerExpires(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvalidLifetime = 15 * time.Millisecond
	c, _ := newCoordinator(t, cfg)
	c.Start(testPayload(t), nil)

	zone := spatial.Zone{ID: "zone-a", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}}
	c.ShowInvalid(zone, "type mismatch")

	if len(findKind(c.Snapshot(), KindInvalid)) != 1 {
		t.Fatal("marker should be visible immediately")
	}

	deadline := time.After(time.Second)
	for len(findKind(c.Snapshot(), KindInvalid)) != 0 {
		select {
		case <-deadline:
			t.Fatal("invalid marker did not expire")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStaleExpiryCannotResurrectFeedback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.InvalidLifetime = 20 * time.Millisecond
	c, _ := newCoordinator(t, cfg)
	c.Start(testPayload(t), nil)

	zone := spatial.Zone{ID: "zone-a", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}}
	c.ShowInvalid(zone, "nope")

	// Clear everything, then start a new gesture and show a fresh marker
	// before the first timer would have fired.
	c.ClearAll()
	c.Start(testPayload(t), nil)
	c.ShowInvalid(zone, "still nope")

	time.Sleep(30 * time.Millisecond)

	// The first timer was cancelled by ClearAll; the second marker already
	// expired on its own timer. Either way nothing stale may linger and a
	// fresh marker must still work.
	c.ShowInvalid(zone, "third")
	markers := findKind(c.Snapshot(), KindInvalid)
	if len(markers) != 1 || markers[0].Label != "third" {
		t.Errorf("markers = %+v, want the third marker only", markers)
	}
}

func TestClearAllIsIdempotent(t *testing.T) {
	c, scheduler := newCoordinator(t, DefaultConfig())
	c.Start(testPayload(t), nil)
	c.UpdateZoneFeedback("zone-a", StateValid, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, &Point{})
	c.ShowInvalid(spatial.Zone{ID: "zone-b", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 5, Height: 5}}, "no")

	c.ClearAll()
	c.ClearAll()

	if snap := c.Snapshot(); len(snap) != 0 {
		t.Errorf("Snapshot after ClearAll = %v, want empty", snap)
	}
	if n := scheduler.Pending(); n != 0 {
		t.Errorf("Pending scheduled tasks = %d, want 0 after ClearAll", n)
	}
}

func TestClearZone(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())
	c.Start(testPayload(t), nil)
	c.UpdateZoneFeedback("zone-a", StateValid, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, &Point{})
	c.UpdateZoneFeedback("zone-b", StateHover, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, nil)

	c.ClearZone("zone-a")

	highlights := findKind(c.Snapshot(), KindHighlight)
	if len(highlights) != 1 || highlights[0].ZoneID != "zone-b" {
		t.Errorf("highlights = %+v, want only zone-b", highlights)
	}
	if len(findKind(c.Snapshot(), KindInsertion)) != 0 {
		t.Error("ClearZone should drop the zone's insertion indicator")
	}
}

func TestSnapshotOrderGhostOnTop(t *testing.T) {
	c, _ := newCoordinator(t, DefaultConfig())
	c.Start(testPayload(t), nil)
	c.UpdateZoneFeedback("zone-b", StateValid, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, nil)
	c.UpdateZoneFeedback("zone-a", StateHover, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, nil)

	snap := c.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("Snapshot has %d overlays, want 3", len(snap))
	}
	if snap[0].ZoneID != "zone-a" || snap[1].ZoneID != "zone-b" {
		t.Errorf("highlights not sorted by zone id: %v, %v", snap[0].ZoneID, snap[1].ZoneID)
	}
	if snap[len(snap)-1].Kind != KindGhost {
		t.Error("ghost should be the last overlay in render order")
	}
}

func TestEveryChangeAnnounces(t *testing.T) {
	reg := announce.NewRegistry(nil)
	var messages []string
	reg.Subscribe(func(a announce.Announcement) { messages = append(messages, a.Message) })

	scheduler := sched.New(nil)
	defer scheduler.Stop()
	c := NewCoordinator(DefaultConfig(), scheduler, reg, nil)

	c.Start(testPayload(t), nil)
	c.UpdateZoneFeedback("zone-a", StateValid, spatial.Bounds{X: 0, Y: 0, Width: 10, Height: 10}, nil)
	c.ShowInvalid(spatial.Zone{ID: "zone-b", Bounds: spatial.Bounds{X: 0, Y: 0, Width: 5, Height: 5}}, "type mismatch")
	c.ClearAll()

	if len(messages) != 4 {
		t.Fatalf("got %d announcements, want 4: %v", len(messages), messages)
	}
	if messages[1] != "drop zone zone-a: valid" {
		t.Errorf("announcement = %q", messages[1])
	}
}
