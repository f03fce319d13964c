// Package builder maps the region reducer over a raster collection and
// materializes the results as a time-ordered series.
package builder

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/lox/basinseries/internal/metrics"
	"github.com/lox/basinseries/internal/reduce"
	"github.com/lox/basinseries/internal/series"
)

var (
	// ErrSystemicMismatch is matched by *SystemicMismatchError.
	ErrSystemicMismatch = errors.New("every image in the collection failed to reduce")

	ErrBudgetExceeded = errors.New("reduction budget exceeded before any image reduced")
)

// SystemicMismatchError reports a non-empty collection in which no image
// produced a value. It usually means the AOI, CRS, band or date range do not
// belong together.
type SystemicMismatchError struct {
	Variable string
	Images   int
	Skipped  map[string]int
	Last     error
}

func (e *SystemicMismatchError) Error() string {
	return fmt.Sprintf("%s: all %d images failed (%v): last error: %v", e.Variable, e.Images, e.Skipped, e.Last)
}

func (e *SystemicMismatchError) Is(target error) bool {
	return target == ErrSystemicMismatch
}

func (e *SystemicMismatchError) Unwrap() error {
	return e.Last
}

type Options struct {
	// Variable labels logs and metrics. Defaults to "<collection>/<band>".
	Variable string
	// Workers bounds concurrent reductions. Defaults to runtime.NumCPU().
	Workers int
	// Budget bounds the total time spent reducing. Zero means no bound.
	Budget time.Duration
	// Dedupe collapses observations sharing a timestamp into their mean.
	Dedupe bool
	Logger *zap.SugaredLogger
}

func (o Options) withDefaults(req reduce.Request) Options {
	if o.Variable == "" {
		o.Variable = req.Collection.Name() + "/" + req.Band
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop().Sugar()
	}
	return o
}

type Result struct {
	Series series.Series
	// Images is how many images the collection yielded before reduction
	// stopped.
	Images int
	// Skipped counts dropped images by outcome.
	Skipped map[string]int
	// Partial is set when the budget ran out and remaining images were
	// abandoned.
	Partial bool
}

func (r *Result) Table() series.Table {
	return series.NewTable(r.Series)
}

type reduced struct {
	idx int
	obs series.Observation
}

// Build reduces every image of req.Collection and returns the observations
// ordered by timestamp, ties in collection order. Images that fail are
// dropped with a diagnostic; only a non-empty collection in which every
// image fails is an error.
func Build(ctx context.Context, req reduce.Request, opts Options) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults(req)
	log := opts.Logger.With("variable", opts.Variable)

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if opts.Budget > 0 {
		runCtx, cancel = context.WithTimeout(ctx, opts.Budget)
	}
	defer cancel()

	var (
		mu        sync.Mutex
		got       []reduced
		skipped   = make(map[string]int)
		lastErr   error
		abandoned bool
		images    int
	)

	skip := func(outcome string, err error) {
		mu.Lock()
		defer mu.Unlock()
		skipped[outcome]++
		if err != nil {
			lastErr = err
		}
		metrics.ReductionsTotal.WithLabelValues(opts.Variable, outcome).Inc()
	}

	var g errgroup.Group
	g.SetLimit(opts.Workers)

	for img, err := range req.Collection.Images(runCtx) {
		if runCtx.Err() != nil {
			mu.Lock()
			abandoned = true
			mu.Unlock()
			break
		}
		images++
		if err != nil {
			log.Warnw("skipping unreadable collection entry", "error", err)
			skip(metrics.OutcomeError, err)
			continue
		}

		idx := images - 1
		g.Go(func() error {
			if runCtx.Err() != nil {
				skip(metrics.OutcomeAbandoned, nil)
				mu.Lock()
				abandoned = true
				mu.Unlock()
				return nil
			}

			start := time.Now()
			obs, err := reduce.Reduce(runCtx, req, img)
			metrics.ReductionLatency.WithLabelValues(opts.Variable).Observe(time.Since(start).Seconds())

			switch {
			case err == nil:
				mu.Lock()
				got = append(got, reduced{idx: idx, obs: obs})
				mu.Unlock()
				metrics.ReductionsTotal.WithLabelValues(opts.Variable, metrics.OutcomeOK).Inc()
			case errors.Is(err, reduce.ErrNoValidPixels):
				log.Debugw("image fully masked over area of interest", "image", img.ID())
				skip(metrics.OutcomeNoValidPixels, err)
			case errors.Is(err, reduce.ErrMalformedTimestamp):
				log.Warnw("skipping image with malformed timestamp", "image", img.ID(), "error", err)
				skip(metrics.OutcomeMalformedTimestamp, err)
			case runCtx.Err() != nil:
				skip(metrics.OutcomeAbandoned, nil)
				mu.Lock()
				abandoned = true
				mu.Unlock()
			default:
				log.Warnw("skipping image that failed to reduce", "image", img.ID(), "error", err)
				skip(metrics.OutcomeError, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(got, func(i, j int) bool {
		a, b := got[i], got[j]
		if !a.obs.Time.Equal(b.obs.Time) {
			return a.obs.Time.Before(b.obs.Time)
		}
		return a.idx < b.idx
	})

	obs := make([]series.Observation, len(got))
	for i, r := range got {
		obs[i] = r.obs
	}
	s := series.Series{Name: opts.Variable, Obs: obs}
	if opts.Dedupe {
		s = s.Dedupe()
	}

	if len(obs) == 0 {
		if abandoned {
			return nil, fmt.Errorf("%s: %w after %s", opts.Variable, ErrBudgetExceeded, opts.Budget)
		}
		if images > 0 {
			return nil, &SystemicMismatchError{Variable: opts.Variable, Images: images, Skipped: skipped, Last: lastErr}
		}
	}

	if abandoned {
		log.Warnw("reduction budget exceeded, returning partial series",
			"budget", opts.Budget, "reduced", len(obs), "images", images)
	}
	log.Infow("built series", "observations", s.Len(), "images", images, "skipped", skipped)
	metrics.SeriesLength.WithLabelValues(opts.Variable).Set(float64(s.Len()))

	return &Result{Series: s, Images: images, Skipped: skipped, Partial: abandoned}, nil
}
