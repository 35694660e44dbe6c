// Package mandala draws the rotating glyphs placed on the map.
package mandala

import (
	"hash/fnv"
	"image/color"
	"math"
	"time"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

// Palette is the set of glyph colors. A glyph's color is picked from it by
// hashing the overlay ID.
var Palette = []color.RGBA{
	{0, 191, 255, 255},  // sky blue
	{173, 255, 47, 255}, // lime
	{255, 99, 71, 255},  // tomato
	{255, 215, 0, 255},  // gold
	{186, 85, 211, 255}, // orchid
	{64, 224, 208, 255}, // turquoise
}

// Pattern describes the shape of one glyph.
type Pattern struct {
	Petals int
	Rings  int
	Color  color.RGBA
	// Spin is the rotation speed in radians per second; negative spins
	// counter-clockwise.
	Spin float64
}

// PatternFor derives a stable pattern from an overlay ID.
func PatternFor(id overlay.ID, palette []color.RGBA) Pattern {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	sum := h.Sum64()

	p := Pattern{
		Petals: 5 + int(sum%8),
		Rings:  2 + int((sum>>8)%3),
		Spin:   0.4 + float64((sum>>16)%8)*0.1,
	}
	if (sum>>24)&1 == 1 {
		p.Spin = -p.Spin
	}
	if len(palette) > 0 {
		p.Color = palette[(sum>>32)%uint64(len(palette))]
	}
	return p
}

// Texture renders the pattern as a white RGBA mask of size x size pixels.
// Color is applied at draw time.
func Texture(size int, p Pattern) []byte {
	pixels := make([]byte, size*size*4)
	center := float64(size) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)+0.5-center, float64(y)+0.5-center
			d := math.Hypot(dx, dy) / center
			if d >= 1 {
				continue
			}
			a := math.Atan2(dy, dx)
			edge := 0.55 + 0.45*math.Abs(math.Cos(float64(p.Petals)*a/2))
			// soften the outline over roughly one pixel
			cover := clamp01((edge - d) * center)
			if cover == 0 {
				continue
			}
			bands := 0.55 + 0.45*math.Cos(d*float64(p.Rings)*2*math.Pi)
			if d < 0.12 {
				bands = 1
			}
			off := (y*size + x) * 4
			pixels[off], pixels[off+1], pixels[off+2] = 255, 255, 255
			pixels[off+3] = uint8(cover * bands * 255)
		}
	}
	return pixels
}

// Opacity fades a glyph in over fade, holds, then fades it out over the last
// fade of its lifetime. A zero lifetime never fades out.
func Opacity(age, lifetime, fade time.Duration) float64 {
	if age < 0 {
		return 0
	}
	alpha := 1.0
	if fade > 0 && age < fade {
		alpha = float64(age) / float64(fade)
	}
	if lifetime > 0 && fade > 0 {
		if left := lifetime - age; left < fade {
			alpha = math.Min(alpha, math.Max(0, float64(left)/float64(fade)))
		}
	}
	return alpha
}

// Angle is the rotation after age at spin radians per second.
func Angle(age time.Duration, spin float64) float64 {
	return math.Mod(age.Seconds()*spin, 2*math.Pi)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
