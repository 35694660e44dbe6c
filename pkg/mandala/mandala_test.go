package mandala

import (
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

func TestPatternForIsStable(t *testing.T) {
	a := PatternFor("0190b1a2-0000-7000-8000-000000000001", Palette)
	b := PatternFor("0190b1a2-0000-7000-8000-000000000001", Palette)
	assert.Equal(t, a, b)

	assert.GreaterOrEqual(t, a.Petals, 5)
	assert.LessOrEqual(t, a.Petals, 12)
	assert.GreaterOrEqual(t, a.Rings, 2)
	assert.LessOrEqual(t, a.Rings, 4)
	assert.GreaterOrEqual(t, math.Abs(a.Spin), 0.4)
	assert.Contains(t, Palette, a.Color)
}

func TestPatternForVaries(t *testing.T) {
	seen := map[int]bool{}
	for i := 0; i < 64; i++ {
		seen[PatternFor(overlay.ID(string(rune('a'+i%26))+string(rune('A'+i))), Palette).Petals] = true
	}
	assert.Greater(t, len(seen), 1)
}

func TestPatternForEmptyPalette(t *testing.T) {
	p := PatternFor("x", nil)
	assert.Equal(t, color.RGBA{}, p.Color)
}

func TestTexture(t *testing.T) {
	const size = 64
	px := Texture(size, Pattern{Petals: 6, Rings: 3})
	require.Len(t, px, size*size*4)

	alpha := func(x, y int) uint8 { return px[(y*size+x)*4+3] }
	assert.Equal(t, uint8(255), alpha(size/2, size/2), "center is solid")
	assert.Equal(t, uint8(0), alpha(0, 0), "corner is outside the disc")
	assert.Equal(t, uint8(0), alpha(size-1, size-1))
}

func TestOpacity(t *testing.T) {
	const (
		life = 5 * time.Second
		fade = 500 * time.Millisecond
	)
	tests := []struct {
		age  time.Duration
		want float64
	}{
		{-time.Second, 0},
		{0, 0},
		{250 * time.Millisecond, 0.5},
		{fade, 1},
		{2 * time.Second, 1},
		{life - 250*time.Millisecond, 0.5},
		{life, 0},
		{life + time.Second, 0},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, Opacity(tt.age, life, fade), 1e-9, "age %v", tt.age)
	}

	assert.Equal(t, 1.0, Opacity(time.Hour, 0, fade), "no lifetime never fades out")
}

func TestAngle(t *testing.T) {
	assert.InDelta(t, 1.0, Angle(2*time.Second, 0.5), 1e-9)
	assert.InDelta(t, -1.0, Angle(2*time.Second, -0.5), 1e-9)
	assert.Less(t, Angle(time.Hour, 1), 2*math.Pi)
}

func TestFactoryBuildsGlyphs(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	factory := NewFactory(clock, WithSize(32), WithLifetime(5*time.Second), WithPalette([]color.RGBA{{1, 2, 3, 255}}))

	v := factory("id-1", overlay.LngLat{Lng: 1, Lat: 2})
	g, ok := v.(*Glyph)
	require.True(t, ok)
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, g.Pattern().Color)
	assert.Equal(t, 32.0, g.opts.size)
	assert.Equal(t, clock.Now(), g.born)

	g.SetPosition(overlay.Point{X: 10, Y: 20})
	assert.Equal(t, overlay.Point{X: 10, Y: 20}, g.Position())
}

func TestGlyphReleaseIsIdempotent(t *testing.T) {
	g := NewFactory(clockwork.NewFakeClock())("id", overlay.LngLat{}).(*Glyph)
	assert.False(t, g.Released())
	g.Release()
	g.Release()
	assert.True(t, g.Released())
}
