package smooth

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/lox/basinseries/internal/series"
)

func build(vals ...float64) series.Series {
	obs := make([]series.Observation, len(vals))
	start := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, v := range vals {
		obs[i] = series.Observation{Time: start.AddDate(0, 0, i), Value: series.Value(v)}
		if math.IsNaN(v) {
			obs[i].Value = series.Missing
		}
	}
	return series.Series{Name: "mean", Obs: obs}
}

func TestTrailing(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name string
		in   []float64
		w    int
		want []float64 // NaN marks missing
	}{
		{"window 1 is identity", []float64{1, 2, 3}, 1, []float64{1, 2, 3}},
		{"window 3", []float64{1, 2, 3, 4, 5}, 3, []float64{nan, nan, 2, 3, 4}},
		{"window longer than series", []float64{1, 2}, 3, []float64{nan, nan}},
		{"missing poisons its windows", []float64{1, nan, 3, 4, 5, 6}, 2, []float64{nan, nan, nan, 3.5, 4.5, 5.5}},
		{"empty", nil, 3, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := build(tt.in...)
			got, err := Trailing(src, tt.w)
			if err != nil {
				t.Fatalf("Trailing: %v", err)
			}
			if got.Len() != src.Len() {
				t.Fatalf("Len() = %d, want %d", got.Len(), src.Len())
			}
			for i, o := range got.Obs {
				if !o.Time.Equal(src.Obs[i].Time) {
					t.Errorf("Obs[%d].Time = %v, want %v", i, o.Time, src.Obs[i].Time)
				}
				want := tt.want[i]
				if math.IsNaN(want) {
					if o.Value.Valid {
						t.Errorf("Obs[%d] = %v, want missing", i, o.Value.Float64)
					}
					continue
				}
				if !o.Value.Valid || math.Abs(o.Value.Float64-want) > 1e-12 {
					t.Errorf("Obs[%d] = %v, want %v", i, o.Value, want)
				}
			}
		})
	}
}

func TestTrailingLeadingMissing(t *testing.T) {
	src := build(1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1, 1)
	got, err := Trailing(src, 15)
	if err != nil {
		t.Fatalf("Trailing: %v", err)
	}
	for i := 0; i < 14; i++ {
		if got.Obs[i].Value.Valid {
			t.Errorf("Obs[%d] present, want missing", i)
		}
	}
	for i := 14; i < got.Len(); i++ {
		if got.Obs[i].Value != series.Value(1) {
			t.Errorf("Obs[%d] = %v, want 1", i, got.Obs[i].Value)
		}
	}
	if got.Name != "SMA15" {
		t.Errorf("Name = %q, want SMA15", got.Name)
	}
}

func TestMultiDoesNotMutateSource(t *testing.T) {
	src := build(2, 4, 6, 8)
	before := src.Clone()

	out, err := Multi(src, 2, 3)
	if err != nil {
		t.Fatalf("Multi: %v", err)
	}
	if len(out) != 2 || out[0].Name != "SMA2" || out[1].Name != "SMA3" {
		t.Fatalf("Multi names = %v", out)
	}
	if out[1].Obs[3].Value != series.Value(6) {
		t.Errorf("SMA3[3] = %v, want 6", out[1].Obs[3].Value)
	}
	if !src.Equal(before) {
		t.Error("Multi mutated its source")
	}
}

func TestTrailingInvalidWindow(t *testing.T) {
	for _, w := range []int{0, -1} {
		if _, err := Trailing(build(1, 2), w); !errors.Is(err, ErrInvalidWindow) {
			t.Errorf("Trailing(w=%d) error = %v, want ErrInvalidWindow", w, err)
		}
	}
	if _, err := Multi(build(1, 2), 2, 0); !errors.Is(err, ErrInvalidWindow) {
		t.Errorf("Multi error = %v, want ErrInvalidWindow", err)
	}
}
