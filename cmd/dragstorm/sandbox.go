package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/dragstorm/internal/announce"
	"github.com/dshills/dragstorm/internal/config"
	"github.com/dshills/dragstorm/internal/drag"
	"github.com/dshills/dragstorm/internal/engine"
	"github.com/dshills/dragstorm/internal/feedback"
	"github.com/dshills/dragstorm/internal/spatial"
)

var errQuit = errors.New("quit")

const paletteWidth = 20

// paletteItem is a draggable component in the left-hand palette.
type paletteItem struct {
	payload *drag.Payload
	row     int
}

// placedItem is a component already dropped on a zone.
type placedItem struct {
	zoneID string
	label  string
	x, y   int
}

type sandbox struct {
	logger *log.Logger
	screen tcell.Screen
	engine *engine.Engine

	palette []paletteItem
	placed  []placedItem

	// keyboard-steered drag position; valid while keyDrag is true.
	keyDrag  bool
	keyX     float64
	keyY     float64
	dragging bool

	lastSaid string
}

func newSandbox(cfg config.Config, logger *log.Logger) (*sandbox, error) {
	sb := &sandbox{logger: logger}

	sb.engine = engine.New(cfg, logger, engine.WithDropHandler(sb.placeComponent))
	sb.engine.Announcements().Subscribe(func(a announce.Announcement) {
		sb.lastSaid = a.Message
	})

	if err := sb.registerZones(); err != nil {
		return nil, err
	}
	if err := sb.buildPalette(); err != nil {
		return nil, err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	if err := screen.Init(); err != nil {
		return nil, err
	}
	screen.EnableMouse()
	sb.screen = screen
	return sb, nil
}

// registerZones lays out the demo canvas: a root zone, a two-child
// header container, a button-only slot, and a sidebar that image
// payloads refuse as a parent.
func (s *sandbox) registerZones() error {
	idx := s.engine.Index()
	zones := []spatial.Zone{
		{
			ID:      "canvas",
			Bounds:  spatial.Bounds{X: paletteWidth + 2, Y: 1, Width: 120, Height: 50},
			Depth:   0,
			Accepts: []string{spatial.Wildcard},
			Constraints: spatial.Constraints{
				Kind: spatial.KindCanvas,
			},
		},
		{
			ID:       "header",
			Bounds:   spatial.Bounds{X: paletteWidth + 4, Y: 2, Width: 44, Height: 6},
			Depth:    1,
			ParentID: "canvas",
			Accepts:  []string{"text", "image"},
			Constraints: spatial.Constraints{
				Kind:        spatial.KindContainer,
				MaxChildren: 2,
				AvailWidth:  44,
				AvailHeight: 6,
			},
		},
		{
			ID:       "action-slot",
			Bounds:   spatial.Bounds{X: paletteWidth + 4, Y: 10, Width: 22, Height: 3},
			Depth:    1,
			ParentID: "canvas",
			Accepts:  []string{"button"},
			Constraints: spatial.Constraints{
				Kind:         spatial.KindSlot,
				RequiredType: "button",
				Exclusive:    true,
			},
		},
		{
			ID:       "sidebar",
			Bounds:   spatial.Bounds{X: paletteWidth + 52, Y: 10, Width: 30, Height: 20},
			Depth:    1,
			ParentID: "canvas",
			Accepts:  []string{spatial.Wildcard},
			Constraints: spatial.Constraints{
				Kind: spatial.KindContainer,
			},
		},
	}
	for _, z := range zones {
		if err := idx.AddZone(z); err != nil {
			return err
		}
	}
	return nil
}

func (s *sandbox) buildPalette() error {
	specs := []drag.PayloadSpec{
		{ID: "pal-button", Type: "button", Name: "Button", Category: "controls"},
		{ID: "pal-text", Type: "text", Name: "Text", Category: "content"},
		{
			ID: "pal-image", Type: "image", Name: "Image", Category: "content",
			Properties: map[string]string{
				drag.PropMinWidth:       "10",
				drag.PropMinHeight:      "4",
				drag.PropInvalidParents: "sidebar",
			},
		},
	}
	for i, spec := range specs {
		p, err := drag.NewPayload(spec)
		if err != nil {
			return err
		}
		s.palette = append(s.palette, paletteItem{payload: p, row: 2 + i*3})
	}
	return nil
}

// placeComponent is the drop handler: record the component and update
// the zone's occupancy so the validator sees it next time.
func (s *sandbox) placeComponent(zone spatial.Zone, payload *drag.Payload) error {
	cx, cy := zone.Bounds.Center()
	s.placed = append(s.placed, placedItem{
		zoneID: zone.ID,
		label:  payload.Name(),
		x:      int(cx) - len(payload.Name())/2,
		y:      int(cy),
	})

	count := zone.Constraints.ChildCount + 1
	patch := spatial.ConstraintPatch{ChildCount: &count}
	if zone.Constraints.Kind == spatial.KindSlot {
		occupied := true
		patch.Occupied = &occupied
	}
	s.engine.Validator().UpdateConstraints(zone.ID, patch)
	return nil
}

func (s *sandbox) Shutdown() {
	if s.screen != nil {
		s.screen.Fini()
	}
	s.engine.Shutdown()
}

func (s *sandbox) Interrupt() {
	_ = s.screen.PostEvent(tcell.NewEventInterrupt(nil))
}

func (s *sandbox) Run() error {
	g, ctx := errgroup.WithContext(context.Background())
	events := make(chan tcell.Event, 16)

	g.Go(func() error {
		s.screen.ChannelEvents(events, ctx.Done())
		return nil
	})
	g.Go(func() error {
		return s.loop(ctx, events)
	})

	err := g.Wait()
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (s *sandbox) loop(ctx context.Context, events <-chan tcell.Event) error {
	s.draw()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.handle(ev); err != nil {
				return err
			}
			s.draw()
		}
	}
}

func (s *sandbox) handle(ev tcell.Event) error {
	switch ev := ev.(type) {
	case *tcell.EventInterrupt:
		return errQuit
	case *tcell.EventResize:
		s.screen.Sync()
	case *tcell.EventKey:
		return s.handleKey(ev)
	case *tcell.EventMouse:
		s.handleMouse(ev)
	}
	return nil
}

func (s *sandbox) handleKey(ev *tcell.EventKey) error {
	switch ev.Key() {
	case tcell.KeyEscape:
		if s.keyDrag {
			s.engine.KeyAbort()
			s.keyDrag = false
		} else {
			s.engine.Cancel()
			s.dragging = false
		}
	case tcell.KeyCtrlC:
		return errQuit
	case tcell.KeyEnter:
		if s.keyDrag {
			s.releaseAt(s.keyX, s.keyY)
			s.keyDrag = false
		}
	case tcell.KeyUp, tcell.KeyDown, tcell.KeyLeft, tcell.KeyRight:
		if s.keyDrag {
			s.steer(ev.Key())
		}
	case tcell.KeyRune:
		switch r := ev.Rune(); {
		case r == 'q':
			return errQuit
		case r >= '1' && r <= '9':
			s.keyPickUp(int(r - '1'))
		}
	}
	return nil
}

func (s *sandbox) keyPickUp(i int) {
	if i >= len(s.palette) || s.dragging || s.keyDrag {
		return
	}
	item := s.palette[i]
	src := spatial.Bounds{X: 2, Y: float64(item.row), Width: paletteWidth - 4, Height: 1}
	if err := s.engine.KeyActivate(item.payload, &src); err != nil {
		s.logger.Warn("keyboard pickup refused", "error", err)
		return
	}
	s.keyDrag = true
	s.keyX = paletteWidth + 4
	s.keyY = float64(item.row)
	s.engine.PointerMove(s.keyX, s.keyY)
}

func (s *sandbox) steer(key tcell.Key) {
	switch key {
	case tcell.KeyUp:
		s.keyY--
	case tcell.KeyDown:
		s.keyY++
	case tcell.KeyLeft:
		s.keyX -= 2
	case tcell.KeyRight:
		s.keyX += 2
	}
	s.engine.PointerMove(s.keyX, s.keyY)
}

func (s *sandbox) handleMouse(ev *tcell.EventMouse) {
	x, y := ev.Position()
	pressed := ev.Buttons()&tcell.ButtonPrimary != 0

	switch {
	case pressed && !s.dragging && !s.keyDrag:
		item, ok := s.paletteItemAt(x, y)
		if !ok {
			return
		}
		src := spatial.Bounds{X: 2, Y: float64(item.row), Width: paletteWidth - 4, Height: 1}
		if err := s.engine.StartDrag(item.payload, &src); err != nil {
			s.logger.Warn("drag refused", "error", err)
			return
		}
		s.dragging = true
	case pressed && s.dragging:
		s.engine.PointerMove(float64(x), float64(y))
	case !pressed && s.dragging:
		s.releaseAt(float64(x), float64(y))
		s.dragging = false
	}
}

func (s *sandbox) releaseAt(x, y float64) {
	verdict, err := s.engine.Release(x, y)
	if err != nil {
		s.logger.Warn("release failed", "error", err)
		return
	}
	s.logger.Info("gesture resolved", "valid", verdict.Valid, "reason", verdict.Reason)
}

func (s *sandbox) paletteItemAt(x, y int) (paletteItem, bool) {
	if x >= paletteWidth {
		return paletteItem{}, false
	}
	for _, item := range s.palette {
		if y == item.row {
			return item, true
		}
	}
	return paletteItem{}, false
}

// draw renders palette, zones, placed components, and the live feedback
// overlays, back to front.
func (s *sandbox) draw() {
	s.screen.Clear()
	w, h := s.screen.Size()

	s.drawPalette()
	s.drawZones()
	for _, p := range s.placed {
		s.drawText(p.x, p.y, tcell.StyleDefault.Bold(true), p.label)
	}
	s.drawOverlays()
	s.drawStatus(w, h)

	s.screen.Show()
}

func (s *sandbox) drawPalette() {
	style := tcell.StyleDefault
	s.drawText(2, 0, style.Bold(true), "Palette")
	for i, item := range s.palette {
		s.drawText(2, item.row, style, fmt.Sprintf("%d. %s", i+1, item.payload.Name()))
	}
	for y := 0; y < 30; y++ {
		s.screen.SetContent(paletteWidth, y, '│', nil, style)
	}
}

func (s *sandbox) drawZones() {
	for _, id := range []string{"canvas", "header", "action-slot", "sidebar"} {
		zone, ok := s.engine.Index().Zone(id)
		if !ok {
			continue
		}
		s.drawBox(zone.Bounds, tcell.StyleDefault.Foreground(tcell.ColorGray))
		s.drawText(int(zone.Bounds.X)+1, int(zone.Bounds.Y), tcell.StyleDefault.Foreground(tcell.ColorGray), zone.ID)
	}
}

func (s *sandbox) drawOverlays() {
	for _, o := range s.engine.Feedback().Snapshot() {
		switch o.Kind {
		case feedback.KindHighlight:
			style := tcell.StyleDefault.Foreground(tcell.ColorGreen)
			switch o.State {
			case feedback.StateHover:
				style = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
			case feedback.StateInvalid:
				style = tcell.StyleDefault.Foreground(tcell.ColorRed)
			}
			s.drawBox(o.Bounds, style)
		case feedback.KindInsertion:
			s.drawText(int(o.Position.X), int(o.Position.Y), tcell.StyleDefault.Foreground(tcell.ColorAqua), "──▶")
		case feedback.KindInvalid:
			s.drawText(int(o.Bounds.X)+1, int(o.Bounds.Y+o.Bounds.Height)-1,
				tcell.StyleDefault.Foreground(tcell.ColorRed), "✗ "+o.Label)
		case feedback.KindGhost:
			s.drawText(int(o.Position.X), int(o.Position.Y),
				tcell.StyleDefault.Foreground(tcell.ColorYellow).Dim(true), "┆"+o.Label+"┆")
		}
	}
}

func (s *sandbox) drawStatus(w, h int) {
	m := s.engine.Session().Metrics()
	status := fmt.Sprintf(" %s │ drops %d/%d │ cancels %d",
		s.engine.Session().State(), m.Successes, m.Total, m.Cancellations)
	s.drawText(0, h-2, tcell.StyleDefault.Reverse(true), pad(status, w))
	s.drawText(0, h-1, tcell.StyleDefault.Dim(true), pad(" "+s.lastSaid, w))
}

func (s *sandbox) drawBox(b spatial.Bounds, style tcell.Style) {
	x0, y0 := int(b.X), int(b.Y)
	x1, y1 := int(b.X+b.Width)-1, int(b.Y+b.Height)-1
	if x1 <= x0 || y1 <= y0 {
		return
	}
	for x := x0 + 1; x < x1; x++ {
		s.screen.SetContent(x, y0, '─', nil, style)
		s.screen.SetContent(x, y1, '─', nil, style)
	}
	for y := y0 + 1; y < y1; y++ {
		s.screen.SetContent(x0, y, '│', nil, style)
		s.screen.SetContent(x1, y, '│', nil, style)
	}
	s.screen.SetContent(x0, y0, '┌', nil, style)
	s.screen.SetContent(x1, y0, '┐', nil, style)
	s.screen.SetContent(x0, y1, '└', nil, style)
	s.screen.SetContent(x1, y1, '┘', nil, style)
}

func (s *sandbox) drawText(x, y int, style tcell.Style, text string) {
	for i, r := range []rune(text) {
		s.screen.SetContent(x+i, y, r, nil, style)
	}
}

func pad(s string, w int) string {
	for len(s) < w {
		s += " "
	}
	return s
}
