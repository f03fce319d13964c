// Package reduce turns one raster image into one scalar: the mean of a band
// over the area of interest.
package reduce

import (
	"context"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/lox/basinseries/internal/raster"
	"github.com/lox/basinseries/internal/series"
)

var (
	// ErrNoValidPixels means the AOI held no unmasked pixel in the image,
	// including when the AOI misses the image entirely.
	ErrNoValidPixels = errors.New("no valid pixels in area of interest")

	ErrMalformedTimestamp = errors.New("malformed acquisition timestamp")

	ErrInvalidRequest = errors.New("invalid reduction request")
)

// Request is everything needed to reduce one variable: which collection,
// which band, over what area, at what nominal scale.
type Request struct {
	Collection raster.Collection
	Band       string
	AOI        raster.Region
	// Scale is the nominal sampling distance in the imagery's ground units.
	Scale float64
}

func (r Request) Validate() error {
	switch {
	case r.Collection == nil:
		return fmt.Errorf("%w: no collection", ErrInvalidRequest)
	case r.Band == "":
		return fmt.Errorf("%w: no band", ErrInvalidRequest)
	case r.AOI == nil:
		return fmt.Errorf("%w: no area of interest", ErrInvalidRequest)
	case !(r.Scale > 0) || math.IsInf(r.Scale, 0):
		return fmt.Errorf("%w: scale must be positive, got %v", ErrInvalidRequest, r.Scale)
	}
	return nil
}

// Reduce computes the mean of req.Band over req.AOI in img. Masked pixels
// are left out of both the sum and the count.
func Reduce(ctx context.Context, req Request, img raster.Image) (series.Observation, error) {
	ts, err := img.Timestamp()
	if err != nil {
		return series.Observation{}, fmt.Errorf("%w: image %s: %v", ErrMalformedTimestamp, img.ID(), err)
	}

	band, err := img.Band(ctx, req.Band)
	if err != nil {
		return series.Observation{}, fmt.Errorf("image %s: %w", img.ID(), err)
	}

	if !band.Bound().Intersects(req.AOI.Bound()) {
		return series.Observation{}, ErrNoValidPixels
	}

	var mean float64
	if r, ok := band.(raster.MeanReducer); ok {
		m, n, err := r.ReduceMean(ctx, req.AOI, req.Scale)
		if err != nil {
			return series.Observation{}, fmt.Errorf("image %s: %w", img.ID(), err)
		}
		if n == 0 || math.IsNaN(m) {
			return series.Observation{}, ErrNoValidPixels
		}
		mean = m
	} else {
		var vals []float64
		band.Sample(req.AOI, req.Scale, func(v float64, masked bool) {
			if !masked {
				vals = append(vals, v)
			}
		})
		if len(vals) == 0 {
			return series.Observation{}, ErrNoValidPixels
		}
		mean = stat.Mean(vals, nil)
	}

	return series.Observation{Time: ts, Value: series.Value(mean)}, nil
}
