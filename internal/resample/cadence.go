package resample

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var ErrInvalidCadence = errors.New("invalid cadence")

type unit int

const (
	unitDay unit = iota
	unitWeek
	unitMonth
)

// Cadence is a fixed calendar bucket size. Buckets are half-open
// [start, next) and labelled by their start.
type Cadence struct {
	unit unit
	n    int
}

var (
	Daily   = Cadence{unit: unitDay, n: 1}
	Weekly  = Cadence{unit: unitWeek, n: 1}
	Monthly = Cadence{unit: unitMonth, n: 1}
)

// EveryNDays buckets by n consecutive days anchored at midnight of the
// series' first timestamp.
func EveryNDays(n int) (Cadence, error) {
	if n <= 0 {
		return Cadence{}, fmt.Errorf("%w: %d days", ErrInvalidCadence, n)
	}
	return Cadence{unit: unitDay, n: n}, nil
}

// ParseCadence accepts D, W, M, <n>D and the words daily, weekly, monthly.
func ParseCadence(s string) (Cadence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "d", "daily", "1d":
		return Daily, nil
	case "w", "weekly":
		return Weekly, nil
	case "m", "ms", "monthly":
		return Monthly, nil
	}
	u := strings.ToUpper(strings.TrimSpace(s))
	if strings.HasSuffix(u, "D") {
		n, err := strconv.Atoi(strings.TrimSuffix(u, "D"))
		if err == nil {
			return EveryNDays(n)
		}
	}
	return Cadence{}, fmt.Errorf("%w: %q", ErrInvalidCadence, s)
}

func (c Cadence) String() string {
	switch c.unit {
	case unitWeek:
		return "W"
	case unitMonth:
		return "M"
	}
	if c.n == 1 {
		return "D"
	}
	return fmt.Sprintf("%dD", c.n)
}

// start returns the start of the bucket holding t. anchor is midnight of
// the series' first day and only matters for n-day buckets.
func (c Cadence) start(t, anchor time.Time) time.Time {
	d := midnight(t)
	switch c.unit {
	case unitWeek:
		back := (int(d.Weekday()) + 6) % 7 // Monday = 0
		return d.AddDate(0, 0, -back)
	case unitMonth:
		return time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, d.Location())
	}
	if c.n == 1 {
		return d
	}
	days := daysBetween(anchor, d)
	k := days / c.n
	if days < 0 && days%c.n != 0 {
		k--
	}
	return anchor.AddDate(0, 0, k*c.n)
}

func (c Cadence) next(start time.Time) time.Time {
	switch c.unit {
	case unitWeek:
		return start.AddDate(0, 0, 7)
	case unitMonth:
		return start.AddDate(0, 1, 0)
	}
	return start.AddDate(0, 0, c.n)
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from a to b, ignoring DST shifts.
func daysBetween(a, b time.Time) int {
	ua := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	ub := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	return int(ub.Sub(ua).Hours() / 24)
}
