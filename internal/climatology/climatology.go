// Package climatology computes day-of-year baselines and the anomalies of a
// series against them.
package climatology

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lox/basinseries/internal/series"
)

// Column names added by Decompose.
const (
	BaselineColumn = "doy_mean"
	AnomalyColumn  = "anomaly"
)

// DayOfYear is the 1-based ordinal day in the timestamp's own calendar year.
// Leap years run to 366, so 29 February and 1 March of a common year share
// day 60.
func DayOfYear(t time.Time) int {
	return t.YearDay()
}

// Entry is the baseline for one day of year.
type Entry struct {
	Mean  float64
	Count int
}

// Table maps day of year to the mean of every present observation on that
// day across all years. Days without observations have no entry.
type Table struct {
	entries map[int]Entry
}

// Compute builds the baseline table for s. Missing values are ignored.
func Compute(s series.Series) Table {
	byDay := make(map[int][]sql.NullFloat64)
	for _, o := range s.Obs {
		if !o.Value.Valid {
			continue
		}
		d := DayOfYear(o.Time)
		byDay[d] = append(byDay[d], o.Value)
	}

	entries := make(map[int]Entry, len(byDay))
	for d, vals := range byDay {
		entries[d] = Entry{Mean: series.Mean(vals).Float64, Count: len(vals)}
	}
	return Table{entries: entries}
}

// Lookup returns the baseline for a day of year.
func (t Table) Lookup(day int) (Entry, bool) {
	e, ok := t.entries[day]
	return e, ok
}

func (t Table) Len() int {
	return len(t.entries)
}

// Days returns the days that have a baseline, ascending.
func (t Table) Days() []int {
	days := make([]int, 0, len(t.entries))
	for d := range t.entries {
		days = append(days, d)
	}
	sort.Ints(days)
	return days
}

// Baseline returns, for every observation of s, the climatological mean of
// its day of year. Days without a baseline are missing.
func (t Table) Baseline(s series.Series) series.Series {
	out := make([]series.Observation, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = series.Observation{Time: o.Time, Value: series.Missing}
		if e, ok := t.entries[DayOfYear(o.Time)]; ok {
			out[i].Value = series.Value(e.Mean)
		}
	}
	return series.Series{Name: BaselineColumn, Obs: out}
}

// Anomalies returns s minus its day-of-year baseline, one entry per
// observation. Missing observations and days without a baseline yield
// missing anomalies.
func (t Table) Anomalies(s series.Series) series.Series {
	out := make([]series.Observation, len(s.Obs))
	for i, o := range s.Obs {
		out[i] = series.Observation{Time: o.Time, Value: series.Missing}
		if !o.Value.Valid {
			continue
		}
		if e, ok := t.entries[DayOfYear(o.Time)]; ok {
			out[i].Value = series.Value(o.Value.Float64 - e.Mean)
		}
	}
	return series.Series{Name: AnomalyColumn, Obs: out}
}

// Decompose computes the table for s and returns it with the baseline and
// anomaly series aligned to s.
func Decompose(s series.Series) (Table, series.Series, series.Series) {
	t := Compute(s)
	return t, t.Baseline(s), t.Anomalies(s)
}
