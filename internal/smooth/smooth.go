// Package smooth computes trailing simple moving averages.
package smooth

import (
	"errors"
	"fmt"

	"github.com/lox/basinseries/internal/series"
)

var ErrInvalidWindow = errors.New("window length must be positive")

// Name is the column name used for a window of w observations.
func Name(w int) string {
	return fmt.Sprintf("SMA%d", w)
}

// Trailing returns a series as long as s whose i-th value is the mean of the
// w observations ending at i. The first w-1 values are missing, as is any
// window containing a missing value. Windows count observations, not days.
func Trailing(s series.Series, w int) (series.Series, error) {
	if w <= 0 {
		return series.Series{}, fmt.Errorf("%w: %d", ErrInvalidWindow, w)
	}

	vals := s.Values()
	out := make([]series.Observation, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = series.Observation{Time: o.Time, Value: series.Missing}
		if i+1 < w {
			continue
		}
		// recomputed per window rather than as a running sum
		out[i].Value = series.MeanStrict(vals[i+1-w : i+1])
	}
	return series.Series{Name: Name(w), Obs: out}, nil
}

// Multi computes one trailing average per window, in the order given.
func Multi(s series.Series, windows ...int) ([]series.Series, error) {
	out := make([]series.Series, 0, len(windows))
	for _, w := range windows {
		sm, err := Trailing(s, w)
		if err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, nil
}
