package raster

import (
	"fmt"
	"image"
	"image/color"
	"io"

	"golang.org/x/image/tiff"
)

// Georef places a decoded TIFF on the ground and maps stored integers to
// physical values: value = raw*ScaleFactor + Offset.
type Georef struct {
	OriginX     float64
	OriginY     float64
	PixelSize   float64
	ScaleFactor float64
	Offset      float64
	// NoData is the raw value marking masked pixels, if any.
	NoData *float64
}

// DecodeTIFF reads a single-band grayscale TIFF into a Grid.
func DecodeTIFF(r io.Reader, geo Georef) (*Grid, error) {
	img, err := tiff.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode tiff: %w", err)
	}

	scale := geo.ScaleFactor
	if scale == 0 {
		scale = 1
	}

	b := img.Bounds()
	g := &Grid{
		OriginX:   geo.OriginX,
		OriginY:   geo.OriginY,
		PixelSize: geo.PixelSize,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Values:    make([]float64, b.Dx()*b.Dy()),
	}
	if geo.NoData != nil {
		g.Mask = make([]bool, len(g.Values))
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			raw := rawValue(img, x, y)
			i := (y-b.Min.Y)*g.Width + (x - b.Min.X)
			if geo.NoData != nil && raw == *geo.NoData {
				g.Mask[i] = true
				continue
			}
			g.Values[i] = raw*scale + geo.Offset
		}
	}
	return g, nil
}

func rawValue(img image.Image, x, y int) float64 {
	switch im := img.(type) {
	case *image.Gray16:
		return float64(im.Gray16At(x, y).Y)
	case *image.Gray:
		return float64(im.GrayAt(x, y).Y)
	default:
		return float64(color.Gray16Model.Convert(img.At(x, y)).(color.Gray16).Y)
	}
}
