package raster

import (
	"math"

	"github.com/paulmach/orb"
)

// Grid is a north-up raster band held in memory. Row 0 is the top row.
type Grid struct {
	OriginX   float64 // x of the left edge
	OriginY   float64 // y of the top edge
	PixelSize float64
	Width     int
	Height    int
	Values    []float64 // row-major, len Width*Height
	Mask      []bool    // true marks a masked pixel; nil masks nothing
}

func (g *Grid) Bound() orb.Bound {
	return orb.Bound{
		Min: orb.Point{g.OriginX, g.OriginY - float64(g.Height)*g.PixelSize},
		Max: orb.Point{g.OriginX + float64(g.Width)*g.PixelSize, g.OriginY},
	}
}

// At returns the pixel value and whether it is valid. NaN and masked pixels
// are invalid.
func (g *Grid) At(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= g.Width || row >= g.Height {
		return 0, false
	}
	i := row*g.Width + col
	if g.Mask != nil && g.Mask[i] {
		return 0, false
	}
	v := g.Values[i]
	if math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// Sample walks a lattice of spacing scale anchored at the grid origin, so at
// scale == PixelSize the lattice points are the pixel centres. Each lattice
// point inside region reads the native pixel beneath it.
func (g *Grid) Sample(region Region, scale float64, fn func(v float64, masked bool)) {
	if scale <= 0 || g.PixelSize <= 0 {
		return
	}
	gb, rb := g.Bound(), region.Bound()
	if !gb.Intersects(rb) {
		return
	}
	minX, maxX := math.Max(gb.Min.X(), rb.Min.X()), math.Min(gb.Max.X(), rb.Max.X())
	minY, maxY := math.Max(gb.Min.Y(), rb.Min.Y()), math.Min(gb.Max.Y(), rb.Max.Y())

	// lattice x = OriginX + (k+0.5)*scale, y = OriginY - (k+0.5)*scale
	kx0 := int(math.Ceil((minX-g.OriginX)/scale - 0.5))
	kx1 := int(math.Floor((maxX-g.OriginX)/scale - 0.5))
	ky0 := int(math.Ceil((g.OriginY-maxY)/scale - 0.5))
	ky1 := int(math.Floor((g.OriginY-minY)/scale - 0.5))

	for ky := ky0; ky <= ky1; ky++ {
		y := g.OriginY - (float64(ky)+0.5)*scale
		row := int(math.Floor((g.OriginY - y) / g.PixelSize))
		if row < 0 || row >= g.Height {
			continue
		}
		for kx := kx0; kx <= kx1; kx++ {
			x := g.OriginX + (float64(kx)+0.5)*scale
			if !region.Contains(x, y) {
				continue
			}
			col := int(math.Floor((x - g.OriginX) / g.PixelSize))
			if col < 0 || col >= g.Width {
				continue
			}
			v, ok := g.At(col, row)
			fn(v, !ok)
		}
	}
}
