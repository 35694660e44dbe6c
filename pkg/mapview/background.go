package mapview

import (
	"image"
	"image/color"
	"image/draw"
	"sort"

	"github.com/hajimehoshi/ebiten/v2"
	geojson "github.com/paulmach/go.geojson"

	"github.com/sudorandom/mandala-map/pkg/overlay"
)

var (
	OceanColor   = color.RGBA{8, 10, 15, 255}
	LandColor    = color.RGBA{26, 29, 35, 255}
	OutlineColor = color.RGBA{36, 42, 53, 255}
)

// Background rasterizes world polygons under the map's current viewport. The
// raster is regenerated only when the viewport revision changes.
type Background struct {
	m  *Map
	fc *geojson.FeatureCollection

	img      *ebiten.Image
	rev      uint64
	rendered bool
}

// LoadBackground parses a GeoJSON feature collection of land polygons.
func LoadBackground(m *Map, data []byte) (*Background, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, err
	}
	return &Background{m: m, fc: fc}, nil
}

// Draw blits the background, re-rasterizing if the viewport moved.
func (b *Background) Draw(screen *ebiten.Image) {
	if rev := b.m.Revision(); !b.rendered || rev != b.rev {
		cpu := b.Rasterize()
		if b.img == nil {
			b.img = ebiten.NewImage(cpu.Bounds().Dx(), cpu.Bounds().Dy())
		}
		b.img.WritePixels(cpu.Pix)
		b.rev, b.rendered = rev, true
	}
	screen.DrawImage(b.img, nil)
}

// Rasterize renders the land polygons into a new RGBA image.
func (b *Background) Rasterize() *image.RGBA {
	w, h := b.m.Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{OceanColor}, image.Point{}, draw.Src)
	for _, f := range b.fc.Features {
		if f.Geometry == nil {
			continue
		}
		switch {
		case f.Geometry.IsPolygon():
			b.drawPolygon(img, f.Geometry.Polygon)
		case f.Geometry.IsMultiPolygon():
			for _, poly := range f.Geometry.MultiPolygon {
				b.drawPolygon(img, poly)
			}
		}
	}
	return img
}

func (b *Background) drawPolygon(img *image.RGBA, rings [][][]float64) {
	projected := make([][]overlay.Point, len(rings))
	for i, ring := range rings {
		projected[i] = make([]overlay.Point, len(ring))
		for j, c := range ring {
			projected[i][j] = b.m.Project(overlay.LngLat{Lng: c[0], Lat: c[1]})
		}
	}
	fillPolygon(img, projected, LandColor)
	for _, ring := range projected {
		for i := 0; i < len(ring)-1; i++ {
			drawLine(img, int(ring[i].X), int(ring[i].Y), int(ring[i+1].X), int(ring[i+1].Y), OutlineColor)
		}
	}
}

// fillPolygon is an even-odd scanline fill over already projected rings.
func fillPolygon(img *image.RGBA, rings [][]overlay.Point, c color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	minY, maxY := float64(h), 0.0
	for _, ring := range rings {
		for _, p := range ring {
			minY = min(minY, p.Y)
			maxY = max(maxY, p.Y)
		}
	}
	var nodes []int
	for y := max(int(minY), 0); y <= int(maxY) && y < h; y++ {
		nodes = nodes[:0]
		fy := float64(y)
		for _, ring := range rings {
			for i := range ring {
				a, b := ring[i], ring[(i+1)%len(ring)]
				if (a.Y < fy && b.Y >= fy) || (b.Y < fy && a.Y >= fy) {
					nodes = append(nodes, int(a.X+(fy-a.Y)/(b.Y-a.Y)*(b.X-a.X)))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i+1 < len(nodes); i += 2 {
			xs, xe := max(nodes[i], 0), min(nodes[i+1], w)
			for x := xs; x < xe; x++ {
				off := y*img.Stride + x*4
				img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = c.R, c.G, c.B, 255
			}
		}
	}
}

// drawLine is Bresenham's line clipped to the image bounds.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	// Skip segments entirely off screen; zoomed in they can be very long.
	if (x1 < 0 && x2 < 0) || (y1 < 0 && y2 < 0) || (x1 >= w && x2 >= w) || (y1 >= h && y2 >= h) {
		return
	}
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	err := dx - dy
	for {
		if x1 >= 0 && x1 < w && y1 >= 0 && y1 < h {
			off := y1*img.Stride + x1*4
			img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = c.R, c.G, c.B, 255
		}
		if x1 == x2 && y1 == y2 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x1 += sx
		}
		if e2 < dx {
			err += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
