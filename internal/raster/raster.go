// Package raster describes what the reduction core needs from the imagery
// collaborator: a streamable collection of timestamped images whose bands
// can be sampled over a region.
package raster

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/paulmach/orb"
)

var ErrBandNotFound = errors.New("raster: band not found")

// Region is the spatial extent a band is sampled over.
type Region interface {
	Bound() orb.Bound
	Contains(x, y float64) bool
}

// Collection is an ordered sequence of images, already filtered to a date
// range and quality-masked by whoever supplies it.
type Collection interface {
	Name() string
	// Images yields the images in collection order. A non-nil error stops
	// nothing by itself; the consumer decides.
	Images(ctx context.Context) iter.Seq2[Image, error]
}

type Image interface {
	ID() string
	// Timestamp returns the acquisition time. Implementations parse lazily
	// so that one bad timestamp only affects its own image.
	Timestamp() (time.Time, error)
	Band(ctx context.Context, name string) (Band, error)
}

// Band is one readable layer of an image.
type Band interface {
	Bound() orb.Bound
	// Sample calls fn once per sample point that falls inside region when
	// the band is read at scale (ground units per sample). masked is true
	// for points the band has no valid value for.
	Sample(region Region, scale float64, fn func(v float64, masked bool))
}

// MeanReducer is implemented by bands that can compute their own spatial
// mean, typically because the pixels live in a remote compute service. n is
// the number of unmasked samples that contributed.
type MeanReducer interface {
	ReduceMean(ctx context.Context, region Region, scale float64) (mean float64, n int, err error)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"20060102",
}

// ParseTimestamp accepts RFC 3339 and the plain date forms image catalogues
// commonly use. Times without a zone are UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}
