package mapview

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

const (
	// clickSlop is how far the cursor may travel between press and release
	// for the gesture to count as a click rather than a drag.
	clickSlop = 4.0
	wheelStep = 1.15
	keyPan    = 12.0
	keyPitch  = 1.5
)

// InputState is one frame's worth of pointer and keyboard input.
type InputState struct {
	Cursor      overlay.Point
	Pressed     bool
	JustPressed bool
	Released    bool
	WheelY      float64

	Left, Right, Up, Down bool
	ZoomIn, ZoomOut       bool
	TiltUp, TiltDown      bool
}

// PollInput reads the current ebiten input state.
func PollInput() InputState {
	x, y := ebiten.CursorPosition()
	_, wy := ebiten.Wheel()
	return InputState{
		Cursor:      overlay.Point{X: float64(x), Y: float64(y)},
		Pressed:     ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		JustPressed: inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft),
		Released:    inpututil.IsMouseButtonJustReleased(ebiten.MouseButtonLeft),
		WheelY:      wy,
		Left:        ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA),
		Right:       ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD),
		Up:          ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW),
		Down:        ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS),
		ZoomIn:      inpututil.IsKeyJustPressed(ebiten.KeyEqual) || inpututil.IsKeyJustPressed(ebiten.KeyKPAdd),
		ZoomOut:     inpututil.IsKeyJustPressed(ebiten.KeyMinus) || inpututil.IsKeyJustPressed(ebiten.KeyKPSubtract),
		TiltUp:      ebiten.IsKeyPressed(ebiten.KeyPageUp),
		TiltDown:    ebiten.IsKeyPressed(ebiten.KeyPageDown),
	}
}

// Controller turns input into viewport changes. A press and release without
// dragging is reported as a click.
type Controller struct {
	m        *Map
	dragging bool
	last     overlay.Point
	travel   float64
}

func NewController(m *Map) *Controller { return &Controller{m: m} }

// Apply updates the viewport from in and returns the clicked point, if any.
func (c *Controller) Apply(in InputState) (overlay.Point, bool) {
	center := overlay.Point{X: float64(c.m.width) / 2, Y: float64(c.m.height) / 2}

	if in.WheelY != 0 {
		c.m.ZoomAt(math.Pow(wheelStep, in.WheelY), in.Cursor)
	}
	if in.ZoomIn {
		c.m.ZoomAt(wheelStep*wheelStep, center)
	}
	if in.ZoomOut {
		c.m.ZoomAt(1/(wheelStep*wheelStep), center)
	}

	var dx, dy float64
	if in.Left {
		dx += keyPan
	}
	if in.Right {
		dx -= keyPan
	}
	if in.Up {
		dy += keyPan
	}
	if in.Down {
		dy -= keyPan
	}
	if dx != 0 || dy != 0 {
		c.m.Pan(dx, dy)
	}
	if in.TiltUp {
		c.m.SetPitch(c.m.Pitch() + keyPitch)
	}
	if in.TiltDown {
		c.m.SetPitch(c.m.Pitch() - keyPitch)
	}

	switch {
	case in.JustPressed:
		c.dragging, c.last, c.travel = true, in.Cursor, 0
	case c.dragging && in.Pressed:
		ddx, ddy := in.Cursor.X-c.last.X, in.Cursor.Y-c.last.Y
		if ddx != 0 || ddy != 0 {
			c.travel += math.Hypot(ddx, ddy)
			c.m.Pan(ddx, ddy)
			c.last = in.Cursor
		}
	case c.dragging && in.Released:
		c.dragging = false
		if c.travel <= clickSlop {
			return in.Cursor, true
		}
	}
	return overlay.Point{}, false
}
