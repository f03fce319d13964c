package series

import (
	"database/sql"
	"sort"
	"time"
)

// Observation is one dated value. A value that is not Valid is missing.
type Observation struct {
	Time  time.Time
	Value sql.NullFloat64
}

// Value wraps v as a present value.
func Value(v float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: v, Valid: true}
}

// Missing is the absent value.
var Missing = sql.NullFloat64{}

// Series is an ordered sequence of observations, non-decreasing by time.
// Series values are never edited in place; every transformation returns a
// new Series backed by its own slice.
type Series struct {
	Name string
	Obs  []Observation
}

// New copies obs and sorts the copy by time. Observations sharing a
// timestamp keep their input order.
func New(name string, obs []Observation) Series {
	out := make([]Observation, len(obs))
	copy(out, obs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return Series{Name: name, Obs: out}
}

func (s Series) Len() int {
	return len(s.Obs)
}

func (s Series) Empty() bool {
	return len(s.Obs) == 0
}

// Clone returns a copy that shares no memory with s.
func (s Series) Clone() Series {
	out := make([]Observation, len(s.Obs))
	copy(out, s.Obs)
	return Series{Name: s.Name, Obs: out}
}

// Rename returns a copy of s under a new name.
func (s Series) Rename(name string) Series {
	c := s.Clone()
	c.Name = name
	return c
}

func (s Series) Start() time.Time {
	if len(s.Obs) == 0 {
		return time.Time{}
	}
	return s.Obs[0].Time
}

func (s Series) End() time.Time {
	if len(s.Obs) == 0 {
		return time.Time{}
	}
	return s.Obs[len(s.Obs)-1].Time
}

func (s Series) Times() []time.Time {
	out := make([]time.Time, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = o.Time
	}
	return out
}

func (s Series) Values() []sql.NullFloat64 {
	out := make([]sql.NullFloat64, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = o.Value
	}
	return out
}

// Sorted reports whether the observations are non-decreasing by time.
func (s Series) Sorted() bool {
	for i := 1; i < len(s.Obs); i++ {
		if s.Obs[i].Time.Before(s.Obs[i-1].Time) {
			return false
		}
	}
	return true
}

// Slice returns the observations with from <= time <= to. A zero bound is
// open.
func (s Series) Slice(from, to time.Time) Series {
	var out []Observation
	for _, o := range s.Obs {
		if !from.IsZero() && o.Time.Before(from) {
			continue
		}
		if !to.IsZero() && o.Time.After(to) {
			continue
		}
		out = append(out, o)
	}
	return Series{Name: s.Name, Obs: out}
}

// Dedupe collapses observations that share a timestamp into one whose value
// is the mean of their present values.
func (s Series) Dedupe() Series {
	out := make([]Observation, 0, len(s.Obs))
	for i := 0; i < len(s.Obs); {
		j := i + 1
		for j < len(s.Obs) && s.Obs[j].Time.Equal(s.Obs[i].Time) {
			j++
		}
		if j-i == 1 {
			out = append(out, s.Obs[i])
		} else {
			vals := make([]sql.NullFloat64, 0, j-i)
			for _, o := range s.Obs[i:j] {
				vals = append(vals, o.Value)
			}
			out = append(out, Observation{Time: s.Obs[i].Time, Value: Mean(vals)})
		}
		i = j
	}
	return Series{Name: s.Name, Obs: out}
}

// Equal reports whether both series hold the same timestamps and values.
// Names are not compared.
func (s Series) Equal(o Series) bool {
	if len(s.Obs) != len(o.Obs) {
		return false
	}
	for i := range s.Obs {
		a, b := s.Obs[i], o.Obs[i]
		if !a.Time.Equal(b.Time) || a.Value != b.Value {
			return false
		}
	}
	return true
}
