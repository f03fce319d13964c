package aoi

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

const basinFC = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"name": "upper"},
     "geometry": {"type": "Polygon", "coordinates": [[[0,0],[10,0],[10,10],[0,10],[0,0]],[[4,4],[6,4],[6,6],[4,6],[4,4]]]}},
    {"type": "Feature", "properties": {"name": "lower"},
     "geometry": {"type": "Polygon", "coordinates": [[[20,0],[30,0],[30,10],[20,10],[20,0]]]}}
  ]
}`

func TestParseGeoJSONFeatureCollection(t *testing.T) {
	a, err := ParseGeoJSON([]byte(basinFC))
	if err != nil {
		t.Fatalf("ParseGeoJSON: %v", err)
	}

	tests := []struct {
		name string
		x, y float64
		want bool
	}{
		{"inside first part", 1, 1, true},
		{"inside hole", 5, 5, false},
		{"inside second part", 25, 5, true},
		{"between parts", 15, 5, false},
		{"outside bound", -1, -1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := a.Contains(tt.x, tt.y); got != tt.want {
				t.Errorf("Contains(%v, %v) = %v, want %v", tt.x, tt.y, got, tt.want)
			}
		})
	}

	b := a.Bound()
	if b.Min != (orb.Point{0, 0}) || b.Max != (orb.Point{30, 10}) {
		t.Errorf("Bound() = %v, want [0 0]-[30 10]", b)
	}
}

func TestParseGeoJSONBareGeometry(t *testing.T) {
	a, err := ParseGeoJSON([]byte(`{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`))
	if err != nil {
		t.Fatalf("ParseGeoJSON: %v", err)
	}
	if !a.Contains(1, 1) {
		t.Error("Contains(1, 1) = false, want true")
	}
}

func TestNewRejectsPoints(t *testing.T) {
	_, err := New(orb.Point{1, 2})
	if !errors.Is(err, ErrUnsupportedGeometry) {
		t.Errorf("New(point) error = %v, want ErrUnsupportedGeometry", err)
	}
}

func TestIntersects(t *testing.T) {
	a, err := New(orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !a.Intersects(orb.Bound{Min: orb.Point{0.5, 0.5}, Max: orb.Point{3, 3}}) {
		t.Error("Intersects(overlapping) = false")
	}
	if a.Intersects(orb.Bound{Min: orb.Point{2, 2}, Max: orb.Point{3, 3}}) {
		t.Error("Intersects(disjoint) = true")
	}
}
