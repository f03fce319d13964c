package series

import (
	"database/sql"

	"gonum.org/v1/gonum/stat"
)

// Mean averages the present values and ignores missing ones. It is missing
// when no value is present.
func Mean(vals []sql.NullFloat64) sql.NullFloat64 {
	present := Present(vals)
	if len(present) == 0 {
		return Missing
	}
	return Value(stat.Mean(present, nil))
}

// MeanStrict averages vals and is missing if any value is missing.
func MeanStrict(vals []sql.NullFloat64) sql.NullFloat64 {
	if len(vals) == 0 {
		return Missing
	}
	xs := make([]float64, len(vals))
	for i, v := range vals {
		if !v.Valid {
			return Missing
		}
		xs[i] = v.Float64
	}
	return Value(stat.Mean(xs, nil))
}

// Present returns the present values in order.
func Present(vals []sql.NullFloat64) []float64 {
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		if v.Valid {
			out = append(out, v.Float64)
		}
	}
	return out
}
