// Package resample aggregates a series onto a regular calendar cadence.
package resample

import (
	"database/sql"

	"github.com/lox/basinseries/internal/series"
)

// Resample averages s into cadence buckets covering its first to its last
// timestamp. Every bucket in that span gets a row; a bucket without present
// values is missing. Calendar arithmetic uses the location of the first
// timestamp.
func Resample(s series.Series, c Cadence) series.Series {
	if s.Empty() {
		return series.Series{Name: s.Name}
	}
	if !s.Sorted() {
		s = series.New(s.Name, s.Obs)
	}

	loc := s.Obs[0].Time.Location()
	anchor := midnight(s.Obs[0].Time)
	last := c.start(s.End().In(loc), anchor)

	var out []series.Observation
	i := 0
	for b := c.start(s.Start(), anchor); !b.After(last); b = c.next(b) {
		end := c.next(b)
		var vals []sql.NullFloat64
		for i < len(s.Obs) && s.Obs[i].Time.Before(end) {
			vals = append(vals, s.Obs[i].Value)
			i++
		}
		out = append(out, series.Observation{Time: b, Value: series.Mean(vals)})
	}
	return series.Series{Name: s.Name, Obs: out}
}
