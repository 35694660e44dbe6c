package mapview

import (
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

// Drawable is implemented by visuals that can render themselves.
type Drawable interface {
	Draw(dst *ebiten.Image, now time.Time)
}

// Layer is the mount container for overlay visuals. Visuals are drawn in
// mount order.
type Layer struct {
	mu      sync.Mutex
	visuals []overlay.Visual
}

func NewLayer() *Layer { return &Layer{} }

func (l *Layer) Mount(v overlay.Visual) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, o := range l.visuals {
		if o == v {
			return
		}
	}
	l.visuals = append(l.visuals, v)
}

func (l *Layer) Unmount(v overlay.Visual) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, o := range l.visuals {
		if o == v {
			l.visuals = append(l.visuals[:i], l.visuals[i+1:]...)
			return
		}
	}
}

func (l *Layer) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visuals)
}

// Draw renders every mounted Drawable onto dst.
func (l *Layer) Draw(dst *ebiten.Image, now time.Time) {
	l.mu.Lock()
	visuals := make([]overlay.Visual, len(l.visuals))
	copy(visuals, l.visuals)
	l.mu.Unlock()

	for _, v := range visuals {
		if d, ok := v.(Drawable); ok {
			d.Draw(dst, now)
		}
	}
}
