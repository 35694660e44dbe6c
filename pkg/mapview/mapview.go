// Package mapview is the interactive map widget: a Mollweide world map that
// can be panned, zoomed and tilted, with a mount container for overlays.
package mapview

import (
	"math"
	"sync"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

const (
	MinZoom  = 1.0
	MaxZoom  = 32.0
	MaxPitch = 60.0 // degrees

	maxLat = 89.5
	sqrt2  = math.Sqrt2
)

// Map projects geographic coordinates through a movable viewport. The
// viewport center is kept in unit Mollweide coordinates so panning never
// wraps the antimeridian.
type Map struct {
	width, height int
	scale         float64
	layer         *Layer

	mu    sync.RWMutex
	cx    float64
	cy    float64
	zoom  float64
	pitch float64 // radians
	rev   uint64
}

// New creates a map of the given render size centred on (0, 0). scale is the
// pixel radius of the globe at zoom 1.
func New(width, height int, scale float64) *Map {
	return &Map{
		width:  width,
		height: height,
		scale:  scale,
		layer:  NewLayer(),
		zoom:   1,
	}
}

// MountContainer returns the overlay layer.
func (m *Map) MountContainer() overlay.Container {
	if m.layer == nil {
		return nil
	}
	return m.layer
}

func (m *Map) Layer() *Layer { return m.layer }

func (m *Map) Size() (int, int) { return m.width, m.height }

// SetView centres the map on center with the given zoom and pitch (degrees).
func (m *Map) SetView(center overlay.LngLat, zoom, pitchDeg float64) {
	cx, cy := mollweide(center.Lat, center.Lng)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cx, m.cy = cx, cy
	m.zoom = clamp(zoom, MinZoom, MaxZoom)
	m.pitch = clamp(pitchDeg, 0, MaxPitch) * math.Pi / 180
	m.rev++
}

// Project maps ll to screen pixels under the current viewport.
func (m *Map) Project(ll overlay.LngLat) overlay.Point {
	wx, wy := mollweide(ll.Lat, ll.Lng)
	m.mu.RLock()
	defer m.mu.RUnlock()
	k := m.scale * m.zoom
	return overlay.Point{
		X: float64(m.width)/2 + k*(wx-m.cx),
		Y: float64(m.height)/2 - k*(wy-m.cy)*math.Cos(m.pitch),
	}
}

// Unproject maps a screen pixel back to a coordinate. ok is false when the
// pixel lies outside the globe.
func (m *Map) Unproject(p overlay.Point) (ll overlay.LngLat, ok bool) {
	m.mu.RLock()
	wx, wy := m.toWorld(p, m.scale*m.zoom)
	m.mu.RUnlock()

	if math.Abs(wy) > sqrt2 {
		return overlay.LngLat{}, false
	}
	theta := math.Asin(wy / sqrt2)
	lat := math.Asin((2*theta + math.Sin(2*theta)) / math.Pi)
	cos := math.Cos(theta)
	if cos < 1e-12 {
		return overlay.LngLat{Lat: lat * 180 / math.Pi}, true
	}
	lng := math.Pi * wx / (2 * sqrt2 * cos)
	if math.Abs(lng) > math.Pi {
		return overlay.LngLat{}, false
	}
	return overlay.LngLat{Lng: lng * 180 / math.Pi, Lat: lat * 180 / math.Pi}, true
}

func (m *Map) toWorld(p overlay.Point, k float64) (float64, float64) {
	wx := (p.X-float64(m.width)/2)/k + m.cx
	wy := (float64(m.height)/2-p.Y)/(k*math.Cos(m.pitch)) + m.cy
	return wx, wy
}

// Pan moves the map content by (dx, dy) pixels.
func (m *Map) Pan(dx, dy float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.scale * m.zoom
	m.cx = clamp(m.cx-dx/k, -2*sqrt2, 2*sqrt2)
	m.cy = clamp(m.cy+dy/(k*math.Cos(m.pitch)), -sqrt2, sqrt2)
	m.rev++
}

// ZoomAt multiplies the zoom by factor keeping the point under p fixed.
func (m *Map) ZoomAt(factor float64, p overlay.Point) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := m.scale * m.zoom
	wx, wy := m.toWorld(p, k)
	m.zoom = clamp(m.zoom*factor, MinZoom, MaxZoom)
	k = m.scale * m.zoom
	m.cx = wx - (p.X-float64(m.width)/2)/k
	m.cy = wy - (float64(m.height)/2-p.Y)/(k*math.Cos(m.pitch))
	m.rev++
}

// SetPitch tilts the map by deg degrees, clamped to [0, MaxPitch].
func (m *Map) SetPitch(deg float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pitch = clamp(deg, 0, MaxPitch) * math.Pi / 180
	m.rev++
}

func (m *Map) Zoom() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.zoom
}

// Pitch returns the tilt in degrees.
func (m *Map) Pitch() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pitch * 180 / math.Pi
}

// Center returns the coordinate at the middle of the screen.
func (m *Map) Center() overlay.LngLat {
	ll, _ := m.Unproject(overlay.Point{X: float64(m.width) / 2, Y: float64(m.height) / 2})
	return ll
}

// Revision changes every time the viewport moves.
func (m *Map) Revision() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.rev
}

// mollweide returns unit Mollweide coordinates (x in [-2√2, 2√2], y in
// [-√2, √2]) for a latitude and longitude in degrees.
func mollweide(lat, lng float64) (x, y float64) {
	lat = clamp(lat, -maxLat, maxLat)
	latRad, lngRad := lat*math.Pi/180, lng*math.Pi/180
	theta := latRad
	for i := 0; i < 10; i++ {
		denom := 2 + 2*math.Cos(2*theta)
		if math.Abs(denom) < 1e-9 {
			break
		}
		delta := (2*theta + math.Sin(2*theta) - math.Pi*math.Sin(latRad)) / denom
		theta -= delta
		if math.Abs(delta) < 1e-7 {
			break
		}
	}
	x = (2 * sqrt2 / math.Pi) * lngRad * math.Cos(theta)
	y = sqrt2 * math.Sin(theta)
	return x, y
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
