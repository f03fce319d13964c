package series

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrMisaligned = errors.New("series: column index does not match table index")

// Column is one named value column of a Table.
type Column struct {
	Name   string
	Values []sql.NullFloat64
}

// Table is a date-indexed set of value columns sharing one index.
type Table struct {
	Index   []time.Time
	Columns []Column
}

// Row is one index entry with the value of every column in column order.
type Row struct {
	Time   time.Time
	Values []sql.NullFloat64
}

// NewTable starts a table indexed by base's timestamps with base as its
// first column.
func NewTable(base Series) Table {
	return Table{
		Index:   base.Times(),
		Columns: []Column{{Name: columnName(base, 0), Values: base.Values()}},
	}
}

// With returns a copy of t with s appended as a column. s must have exactly
// the table's timestamps.
func (t Table) With(s Series) (Table, error) {
	if len(s.Obs) != len(t.Index) {
		return Table{}, fmt.Errorf("%w: %q has %d rows, table has %d", ErrMisaligned, s.Name, len(s.Obs), len(t.Index))
	}
	for i, o := range s.Obs {
		if !o.Time.Equal(t.Index[i]) {
			return Table{}, fmt.Errorf("%w: %q row %d at %s, table at %s", ErrMisaligned, s.Name, i, o.Time.Format(time.RFC3339), t.Index[i].Format(time.RFC3339))
		}
	}
	out := t.clone()
	out.Columns = append(out.Columns, Column{Name: columnName(s, len(t.Columns)), Values: s.Values()})
	return out, nil
}

func (t Table) Len() int {
	return len(t.Index)
}

func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

func (t Table) Column(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Series returns the named column as a series.
func (t Table) Series(name string) (Series, bool) {
	c, ok := t.Column(name)
	if !ok {
		return Series{}, false
	}
	obs := make([]Observation, len(t.Index))
	for i, ts := range t.Index {
		obs[i] = Observation{Time: ts, Value: c.Values[i]}
	}
	return Series{Name: name, Obs: obs}, true
}

// Slice keeps the rows with from <= time <= to. A zero bound is open.
func (t Table) Slice(from, to time.Time) Table {
	var keep []int
	for i, ts := range t.Index {
		if !from.IsZero() && ts.Before(from) {
			continue
		}
		if !to.IsZero() && ts.After(to) {
			continue
		}
		keep = append(keep, i)
	}

	out := Table{Index: make([]time.Time, len(keep)), Columns: make([]Column, len(t.Columns))}
	for j, i := range keep {
		out.Index[j] = t.Index[i]
	}
	for c, col := range t.Columns {
		vals := make([]sql.NullFloat64, len(keep))
		for j, i := range keep {
			vals[j] = col.Values[i]
		}
		out.Columns[c] = Column{Name: col.Name, Values: vals}
	}
	return out
}

func (t Table) Rows() []Row {
	rows := make([]Row, len(t.Index))
	for i, ts := range t.Index {
		vals := make([]sql.NullFloat64, len(t.Columns))
		for c, col := range t.Columns {
			vals[c] = col.Values[i]
		}
		rows[i] = Row{Time: ts, Values: vals}
	}
	return rows
}

func (t Table) clone() Table {
	out := Table{
		Index:   make([]time.Time, len(t.Index)),
		Columns: make([]Column, len(t.Columns), len(t.Columns)+1),
	}
	copy(out.Index, t.Index)
	for i, c := range t.Columns {
		vals := make([]sql.NullFloat64, len(c.Values))
		copy(vals, c.Values)
		out.Columns[i] = Column{Name: c.Name, Values: vals}
	}
	return out
}

func columnName(s Series, pos int) string {
	if s.Name != "" {
		return s.Name
	}
	if pos == 0 {
		return "value"
	}
	return fmt.Sprintf("col%d", pos)
}
