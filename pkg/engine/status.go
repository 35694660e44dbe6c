package engine

import (
	"fmt"
	"image/color"
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/text/v2"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"github.com/sudorandom/mandala-map/pkg/overlay"
	"github.com/sudorandom/mandala-map/pkg/telemetry"
)

var (
	ColorAccent   = color.RGBA{0, 191, 255, 255}
	ColorOK       = color.RGBA{173, 255, 47, 255}
	ColorWarn     = color.RGBA{255, 191, 0, 255}
	ColorCritical = color.RGBA{255, 50, 50, 255}
	ColorText     = color.RGBA{255, 255, 255, 255}
	ColorPanel    = color.RGBA{0, 0, 0, 100}
	ColorBorder   = color.RGBA{36, 42, 53, 255}
)

// Status is what the HUD shows for one frame.
type Status struct {
	Stats           overlay.Stats
	FPS             []int
	TargetFPS       int
	Memory          telemetry.MemorySample
	HaveMemory      bool
	MemorySupported bool
	MemoryLevel     telemetry.Level
	Center          overlay.LngLat
	Zoom, Pitch     float64
}

type statusLine struct {
	Label, Value string
	Color        color.RGBA
}

func (e *Engine) status() Status {
	s := e.Manager.Sampler()
	st := Status{
		Stats:           e.Manager.Stats(),
		FPS:             s.FPS(),
		TargetFPS:       s.Config().TargetFPS,
		MemorySupported: s.MemorySupported(),
		Center:          e.Map.Center(),
		Zoom:            e.Map.Zoom(),
		Pitch:           e.Map.Pitch(),
	}
	st.Memory, st.HaveMemory = s.LastMemory()
	if st.HaveMemory {
		st.MemoryLevel = s.Config().Classify(st.Memory.Usage())
	}
	return st
}

func statusLines(s Status) []statusLine {
	lines := make([]statusLine, 0, 5)

	overlays := statusLine{"OVERLAYS", fmt.Sprintf("%d/%d", s.Stats.Live, s.Stats.Max), ColorText}
	if s.Stats.Live >= s.Stats.Max {
		overlays.Color = ColorWarn
	}
	lines = append(lines, overlays)

	fps := statusLine{"FPS", "--", ColorText}
	if n := len(s.FPS); n > 0 {
		last := s.FPS[n-1]
		fps.Value = fmt.Sprintf("%d", last)
		if last < telemetry.LowFPSThreshold {
			fps.Color = ColorCritical
		} else {
			fps.Color = ColorOK
		}
	}
	lines = append(lines, fps)

	heap := statusLine{"HEAP", "n/a", ColorText}
	switch {
	case !s.MemorySupported:
	case !s.HaveMemory:
		heap.Value = "--"
	default:
		heap.Value = fmt.Sprintf("%d/%d MB (%.0f%%)", s.Memory.UsedMB, s.Memory.LimitMB, s.Memory.Usage()*100)
		heap.Color = map[telemetry.Level]color.RGBA{
			telemetry.LevelNormal:   ColorOK,
			telemetry.LevelWarning:  ColorWarn,
			telemetry.LevelCritical: ColorCritical,
		}[s.MemoryLevel]
	}
	lines = append(lines, heap)

	syncLine := statusLine{"SYNC", "running", ColorOK}
	if !s.Stats.Active {
		syncLine.Value, syncLine.Color = "paused", ColorWarn
	}
	lines = append(lines, syncLine)

	lines = append(lines, statusLine{
		"VIEW",
		fmt.Sprintf("%.2f, %.2f  z%.1f  p%.0f°", s.Center.Lng, s.Center.Lat, s.Zoom, s.Pitch),
		ColorText,
	})
	return lines
}

// sparkline maps values onto a polyline inside the box (x, y, w, h), scaled
// against ceiling or the largest value if that is higher. slots is the
// number of horizontal positions; the newest value sits at the right edge.
func sparkline(values []int, slots int, ceiling, x, y, w, h float64) []overlay.Point {
	if len(values) < 2 || slots < 2 {
		return nil
	}
	for _, v := range values {
		ceiling = math.Max(ceiling, float64(v))
	}
	if ceiling <= 0 {
		ceiling = 1
	}
	if len(values) > slots {
		values = values[len(values)-slots:]
	}
	step := w / float64(slots-1)
	offset := slots - len(values)
	pts := make([]overlay.Point, len(values))
	for i, v := range values {
		pts[i] = overlay.Point{
			X: x + float64(offset+i)*step,
			Y: y + h - (math.Max(0, float64(v))/ceiling)*h,
		}
	}
	return pts
}

func (e *Engine) drawStatus(screen *ebiten.Image) {
	if e.fontSource == nil || e.monoSource == nil {
		return
	}
	margin, fontSize := 40.0, 18.0
	if e.Width > 2000 {
		margin, fontSize = 80.0, 36.0
	}
	st := e.status()
	lines := statusLines(st)

	spacing := fontSize * 1.4
	graphH := fontSize * 3
	boxW := fontSize * 22
	boxH := float64(len(lines))*spacing + graphH + fontSize*2.5
	bx, by := margin, float64(e.Height)-margin-boxH

	vector.DrawFilledRect(screen, float32(bx), float32(by), float32(boxW), float32(boxH), ColorPanel, false)
	vector.StrokeRect(screen, float32(bx), float32(by), float32(boxW), float32(boxH), 1, ColorBorder, false)
	vector.DrawFilledRect(screen, float32(bx), float32(by), 4, float32(fontSize+10), ColorAccent, false)

	titleFace := &text.GoTextFace{Source: e.fontSource, Size: fontSize * 0.8}
	top := &text.DrawOptions{}
	top.GeoM.Translate(bx+15, by+8)
	top.ColorScale.Scale(1, 1, 1, 0.5)
	text.Draw(screen, "MANDALA OVERLAYS", titleFace, top)

	labelFace := &text.GoTextFace{Source: e.fontSource, Size: fontSize}
	valueFace := &text.GoTextFace{Source: e.monoSource, Size: fontSize}
	ly := by + fontSize*1.8
	for i, l := range lines {
		ty := ly + float64(i)*spacing
		op := &text.DrawOptions{}
		op.GeoM.Translate(bx+15, ty)
		op.ColorScale.Scale(1, 1, 1, 0.6)
		text.Draw(screen, l.Label, labelFace, op)

		vop := &text.DrawOptions{}
		vop.GeoM.Translate(bx+15+fontSize*6, ty)
		vop.ColorScale.ScaleWithColor(l.Color)
		text.Draw(screen, l.Value, valueFace, vop)
	}

	gx, gy := bx+15, ly+float64(len(lines))*spacing+fontSize*0.3
	gw := boxW - 30
	target := float64(st.TargetFPS)
	// low-fps threshold guide
	ty := gy + graphH - (telemetry.LowFPSThreshold/math.Max(target, 1))*graphH
	vector.StrokeLine(screen, float32(gx), float32(ty), float32(gx+gw), float32(ty), 1, ColorBorder, false)

	pts := sparkline(st.FPS, e.Manager.Sampler().Config().FPSHistory, target, gx, gy, gw, graphH)
	for i := 0; i+1 < len(pts); i++ {
		vector.StrokeLine(screen, float32(pts[i].X), float32(pts[i].Y), float32(pts[i+1].X), float32(pts[i+1].Y), 2, ColorAccent, false)
	}
}
