package mandala

import (
	"image/color"
	"sync"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/jonboulle/clockwork"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

const (
	DefaultSize    = 48.0
	DefaultTexture = 128
	DefaultFade    = 400 * time.Millisecond
	baseAlpha      = 0.85
)

// Glyph is an overlay.Visual that draws a rotating mandala. The texture is
// built on first draw and deallocated on Release.
type Glyph struct {
	id      overlay.ID
	pattern Pattern
	born    time.Time
	opts    options

	mu       sync.Mutex
	pos      overlay.Point
	tex      *ebiten.Image
	released bool
	once     sync.Once
}

type options struct {
	size     float64
	texSize  int
	fade     time.Duration
	lifetime time.Duration
	palette  []color.RGBA
}

// Option configures glyphs built by a factory.
type Option func(*options)

// WithSize sets the on-screen diameter in pixels.
func WithSize(px float64) Option { return func(o *options) { o.size = px } }

// WithTextureSize sets the rendered texture resolution.
func WithTextureSize(px int) Option { return func(o *options) { o.texSize = px } }

// WithFade sets how long glyphs take to fade in and out.
func WithFade(d time.Duration) Option { return func(o *options) { o.fade = d } }

// WithLifetime is the age at which the glyph has fully faded out. It should
// match the overlay retention.
func WithLifetime(d time.Duration) Option { return func(o *options) { o.lifetime = d } }

func WithPalette(p []color.RGBA) Option { return func(o *options) { o.palette = p } }

// NewFactory returns a VisualFactory producing glyphs.
func NewFactory(clock clockwork.Clock, opts ...Option) overlay.VisualFactory {
	o := options{
		size:    DefaultSize,
		texSize: DefaultTexture,
		fade:    DefaultFade,
		palette: Palette,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return func(id overlay.ID, _ overlay.LngLat) overlay.Visual {
		return &Glyph{
			id:      id,
			pattern: PatternFor(id, o.palette),
			born:    clock.Now(),
			opts:    o,
		}
	}
}

func (g *Glyph) Pattern() Pattern { return g.pattern }

func (g *Glyph) SetPosition(p overlay.Point) {
	g.mu.Lock()
	g.pos = p
	g.mu.Unlock()
}

func (g *Glyph) Position() overlay.Point {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pos
}

// Release frees the texture. Later draws are no-ops.
func (g *Glyph) Release() {
	g.once.Do(func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		g.released = true
		if g.tex != nil {
			g.tex.Deallocate()
			g.tex = nil
		}
	})
}

func (g *Glyph) Released() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}

// Draw renders the glyph centred on its last position.
func (g *Glyph) Draw(dst *ebiten.Image, now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return
	}
	age := now.Sub(g.born)
	alpha := Opacity(age, g.opts.lifetime, g.opts.fade) * baseAlpha
	if alpha <= 0 {
		return
	}
	if g.tex == nil {
		n := g.opts.texSize
		g.tex = ebiten.NewImage(n, n)
		g.tex.WritePixels(Texture(n, g.pattern))
	}

	half := float64(g.opts.texSize) / 2
	scale := g.opts.size / float64(g.opts.texSize)
	op := &ebiten.DrawImageOptions{}
	op.Blend = ebiten.BlendLighter
	op.GeoM.Translate(-half, -half)
	op.GeoM.Rotate(Angle(age, g.pattern.Spin))
	op.GeoM.Scale(scale, scale)
	op.GeoM.Translate(g.pos.X, g.pos.Y)
	c := g.pattern.Color
	r, gr, b := float64(c.R)/255, float64(c.G)/255, float64(c.B)/255
	op.ColorScale.Scale(float32(r*alpha), float32(gr*alpha), float32(b*alpha), float32(alpha))
	dst.DrawImage(g.tex, op)
}
