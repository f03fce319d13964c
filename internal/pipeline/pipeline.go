// Package pipeline runs the configured analyses for every catalogue
// variable: build the series, then smooth, resample and decompose it.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lox/basinseries/internal/builder"
	"github.com/lox/basinseries/internal/climatology"
	"github.com/lox/basinseries/internal/config"
	"github.com/lox/basinseries/internal/raster"
	"github.com/lox/basinseries/internal/reduce"
	"github.com/lox/basinseries/internal/resample"
	"github.com/lox/basinseries/internal/series"
	"github.com/lox/basinseries/internal/smooth"
	"github.com/lox/basinseries/internal/source"
)

// MeanColumn names the reduced values in a result table.
const MeanColumn = "mean"

// Job is one variable to build and analyse.
type Job struct {
	Name       string
	Collection raster.Collection
	Band       string
	Scale      float64
	Smooth     []int
	Cadences   []resample.Cadence
	Anomaly    bool
	Dedupe     bool
}

type Options struct {
	AOI raster.Region
	// Parallel bounds how many variables build at once. Defaults to 2.
	Parallel int
	// Workers and Budget apply to each variable's build.
	Workers int
	Budget  time.Duration
	Logger  *zap.SugaredLogger
}

// Resampled is one variable resampled to one cadence.
type Resampled struct {
	Cadence resample.Cadence
	Series  series.Series
}

// Result holds everything produced for one variable. When Err is set the
// other fields are empty.
type Result struct {
	Name string
	// Table has the mean column, one column per smoothing window and, when
	// requested, the day-of-year baseline and anomaly columns.
	Table       series.Table
	Resampled   []Resampled
	Climatology *climatology.Table
	Images      int
	Skipped     map[string]int
	Partial     bool
	Duration    time.Duration
	Err         error
}

// Run processes jobs concurrently. A failing variable records its error in
// its Result and does not stop the others. Results are in job order. The
// returned error is only set when ctx ends.
func Run(ctx context.Context, jobs []Job, opts Options) ([]Result, error) {
	if opts.Parallel <= 0 {
		opts.Parallel = 2
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop().Sugar()
	}

	results := make([]Result, len(jobs))
	var g errgroup.Group
	g.SetLimit(opts.Parallel)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = RunJob(ctx, job, opts)
			return nil
		})
	}
	_ = g.Wait()

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	opts.Logger.Infow("pipeline finished", "variables", len(jobs), "failed", failed)

	return results, ctx.Err()
}

// RunJob builds and analyses a single variable.
func RunJob(ctx context.Context, job Job, opts Options) Result {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	log = log.With("variable", job.Name)
	start := time.Now()
	res := Result{Name: job.Name}

	built, err := builder.Build(ctx, reduce.Request{
		Collection: job.Collection,
		Band:       job.Band,
		AOI:        opts.AOI,
		Scale:      job.Scale,
	}, builder.Options{
		Variable: job.Name,
		Workers:  opts.Workers,
		Budget:   opts.Budget,
		Dedupe:   job.Dedupe,
		Logger:   log,
	})
	if err != nil {
		log.Errorw("build failed", "error", err)
		res.Err = err
		return res
	}
	res.Images, res.Skipped, res.Partial = built.Images, built.Skipped, built.Partial

	s := built.Series.Rename(job.Name)
	tbl, clim, err := analyse(s, job)
	if err != nil {
		log.Errorw("analysis failed", "error", err)
		res.Err = err
		return res
	}
	res.Table, res.Climatology = tbl, clim

	for _, c := range job.Cadences {
		res.Resampled = append(res.Resampled, Resampled{Cadence: c, Series: resample.Resample(s, c)})
	}

	res.Duration = time.Since(start)
	log.Infow("variable complete",
		"observations", s.Len(), "columns", len(tbl.Columns), "cadences", len(res.Resampled),
		"duration", res.Duration)
	return res
}

func analyse(s series.Series, job Job) (series.Table, *climatology.Table, error) {
	tbl := series.NewTable(s.Rename(MeanColumn))

	smoothed, err := smooth.Multi(s, job.Smooth...)
	if err != nil {
		return series.Table{}, nil, err
	}
	for _, sm := range smoothed {
		if tbl, err = tbl.With(sm); err != nil {
			return series.Table{}, nil, err
		}
	}

	if !job.Anomaly {
		return tbl, nil, nil
	}
	clim, baseline, anomalies := climatology.Decompose(s)
	for _, col := range []series.Series{baseline, anomalies} {
		if tbl, err = tbl.With(col); err != nil {
			return series.Table{}, nil, err
		}
	}
	return tbl, &clim, nil
}

// FromVariable opens the variable's manifest and turns it into a job.
func FromVariable(ctx context.Context, v config.Variable, srcOpts source.Options) (Job, error) {
	cadences, err := v.Cadences()
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", v.Name, err)
	}
	from, to, err := v.DateRange()
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", v.Name, err)
	}
	coll, err := source.Open(ctx, v.Manifest, srcOpts)
	if err != nil {
		return Job{}, fmt.Errorf("%s: %w", v.Name, err)
	}
	return Job{
		Name:       v.Name,
		Collection: coll.FilterDate(from, to),
		Band:       v.Band,
		Scale:      v.Scale,
		Smooth:     v.Smooth,
		Cadences:   cadences,
		Anomaly:    v.Anomaly,
		Dedupe:     v.Dedupe,
	}, nil
}
