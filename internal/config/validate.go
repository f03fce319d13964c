package config

import (
	"fmt"
	"math"
	"strings"
)

// Problems returned by Validate, one per offending field.
const (
	ProblemNoVariables     = "no_variables"
	ProblemNoName          = "no_name"
	ProblemDuplicateName   = "duplicate_name"
	ProblemNoManifest      = "no_manifest"
	ProblemNoBand          = "no_band"
	ProblemScaleInvalid    = "scale_not_positive"
	ProblemCadenceInvalid  = "cadence_invalid"
	ProblemWindowInvalid   = "window_not_positive"
	ProblemDateInvalid     = "date_invalid"
	ProblemDateRangeEmpty  = "date_range_empty"
	ProblemWorkersNegative = "workers_negative"
	ProblemBudgetNegative  = "budget_negative"
)

// Problem is one catalogue defect.
type Problem struct {
	Variable string
	Code     string
	Detail   string
}

func (p Problem) String() string {
	var b strings.Builder
	if p.Variable != "" {
		b.WriteString(p.Variable)
		b.WriteString(": ")
	}
	b.WriteString(p.Code)
	if p.Detail != "" {
		b.WriteString(" (")
		b.WriteString(p.Detail)
		b.WriteString(")")
	}
	return b.String()
}

// Check lists every problem with the catalogue.
func (c *Catalogue) Check() []Problem {
	var problems []Problem
	add := func(v, code, detail string) {
		problems = append(problems, Problem{Variable: v, Code: code, Detail: detail})
	}

	if c.Defaults.Workers < 0 {
		add("", ProblemWorkersNegative, fmt.Sprint(c.Defaults.Workers))
	}
	if c.Defaults.Budget < 0 {
		add("", ProblemBudgetNegative, c.Defaults.Budget.String())
	}
	if len(c.Variables) == 0 {
		add("", ProblemNoVariables, "")
	}

	seen := make(map[string]bool, len(c.Variables))
	for i, v := range c.Variables {
		name := v.Name
		if name == "" {
			name = fmt.Sprintf("variables[%d]", i)
			add(name, ProblemNoName, "")
		} else if seen[name] {
			add(name, ProblemDuplicateName, "")
		}
		seen[v.Name] = true

		if v.Manifest == "" {
			add(name, ProblemNoManifest, "")
		}
		if v.Band == "" {
			add(name, ProblemNoBand, "")
		}
		if !(v.Scale > 0) || math.IsInf(v.Scale, 0) {
			add(name, ProblemScaleInvalid, fmt.Sprint(v.Scale))
		}
		if _, err := v.Cadences(); err != nil {
			add(name, ProblemCadenceInvalid, err.Error())
		}
		for _, w := range v.Smooth {
			if w <= 0 {
				add(name, ProblemWindowInvalid, fmt.Sprint(w))
			}
		}
		from, to, err := v.DateRange()
		switch {
		case err != nil:
			add(name, ProblemDateInvalid, err.Error())
		case !from.IsZero() && !to.IsZero() && !from.Before(to):
			add(name, ProblemDateRangeEmpty, v.From+" to "+v.To)
		}
	}
	return problems
}

// Validate returns an ErrInvalid error naming every problem, or nil.
func (c *Catalogue) Validate() error {
	problems := c.Check()
	if len(problems) == 0 {
		return nil
	}
	msgs := make([]string, len(problems))
	for i, p := range problems {
		msgs[i] = p.String()
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}
