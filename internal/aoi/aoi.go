// Package aoi holds the area of interest that every reduction is restricted
// to. The core only asks it for a bounding box and point containment.
package aoi

import (
	"errors"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrUnsupportedGeometry = errors.New("aoi: geometry must be a polygon or multipolygon")

// AOI is an immutable polygon or multipolygon in the imagery's coordinate
// system.
type AOI struct {
	polys orb.MultiPolygon
	bound orb.Bound
}

// New builds an AOI from a Polygon, MultiPolygon or a Collection of them.
func New(g orb.Geometry) (*AOI, error) {
	var polys orb.MultiPolygon
	if err := collect(g, &polys); err != nil {
		return nil, err
	}
	if len(polys) == 0 {
		return nil, ErrUnsupportedGeometry
	}
	// copy so later edits to the caller's geometry cannot leak in
	owned := polys.Clone()
	return &AOI{polys: owned, bound: owned.Bound()}, nil
}

func collect(g orb.Geometry, into *orb.MultiPolygon) error {
	switch v := g.(type) {
	case orb.Polygon:
		*into = append(*into, v)
	case orb.MultiPolygon:
		*into = append(*into, v...)
	case orb.Collection:
		for _, sub := range v {
			if err := collect(sub, into); err != nil {
				return err
			}
		}
	default:
		return fmt.Errorf("%w: got %T", ErrUnsupportedGeometry, g)
	}
	return nil
}

func (a *AOI) Bound() orb.Bound {
	return a.bound
}

// Contains reports whether the point lies inside the area. Holes are
// excluded.
func (a *AOI) Contains(x, y float64) bool {
	p := orb.Point{x, y}
	if !a.bound.Contains(p) {
		return false
	}
	return planar.MultiPolygonContains(a.polys, p)
}

// Intersects reports whether the AOI's bounding box overlaps b.
func (a *AOI) Intersects(b orb.Bound) bool {
	return a.bound.Intersects(b)
}

// LoadGeoJSON reads an AOI from a GeoJSON file holding a FeatureCollection,
// a single Feature or a bare geometry. All polygonal parts are unioned.
func LoadGeoJSON(path string) (*AOI, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read aoi: %w", err)
	}
	return ParseGeoJSON(data)
}

func ParseGeoJSON(data []byte) (*AOI, error) {
	if fc, err := geojson.UnmarshalFeatureCollection(data); err == nil && len(fc.Features) > 0 {
		var parts orb.Collection
		for _, f := range fc.Features {
			parts = append(parts, f.Geometry)
		}
		return New(parts)
	}
	if f, err := geojson.UnmarshalFeature(data); err == nil && f.Geometry != nil {
		return New(f.Geometry)
	}
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("parse aoi: %w", err)
	}
	return New(g.Geometry())
}
