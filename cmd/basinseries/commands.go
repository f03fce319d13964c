package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/lox/basinseries/internal/aoi"
	"github.com/lox/basinseries/internal/builder"
	"github.com/lox/basinseries/internal/config"
	"github.com/lox/basinseries/internal/export"
	"github.com/lox/basinseries/internal/pipeline"
	"github.com/lox/basinseries/internal/rastercache"
	"github.com/lox/basinseries/internal/reduce"
	"github.com/lox/basinseries/internal/series"
	"github.com/lox/basinseries/internal/source"
	"github.com/lox/basinseries/internal/store"
)

type RunCmd struct {
	Catalogue   string   `arg:"" help:"Catalogue YAML file." type:"existingfile"`
	Variables   []string `short:"v" help:"Only build these variables."`
	Out         string   `help:"Directory for CSV output." default:"out" env:"BASINSERIES_OUT"`
	Compress    bool     `help:"Write zstd-compressed CSV."`
	DB          string   `help:"SQLite database to record the run in." env:"BASINSERIES_DB"`
	MetricsAddr string   `help:"Serve Prometheus metrics on this address while running." env:"BASINSERIES_METRICS_ADDR"`
	Parallel    int      `help:"Variables to build at once." default:"2"`
	NoCache     bool     `help:"Do not cache downloaded rasters."`
}

func (c *RunCmd) Run(ctx context.Context, logger *zap.SugaredLogger) error {
	cat, err := config.Load(c.Catalogue)
	if err != nil {
		return err
	}
	vars, err := cat.Select(c.Variables...)
	if err != nil {
		return err
	}
	region, err := aoi.LoadGeoJSON(cat.AOI)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(c.Out, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	if c.MetricsAddr != "" {
		stop := serveMetrics(c.MetricsAddr, logger)
		defer stop()
	}

	var srcOpts source.Options
	if cat.Defaults.CacheDir != "" && !c.NoCache {
		cache, err := rastercache.Open(rastercache.Config{
			Dir:    cat.Defaults.CacheDir,
			TTL:    cat.Defaults.CacheTTL,
			Logger: logger.Named("cache"),
		})
		if err != nil {
			return err
		}
		defer cache.Close()
		srcOpts.Wrap = func(f source.Fetcher) source.Fetcher { return cache.Wrap(f) }
	}

	var st *store.Store
	var run *store.Run
	if c.DB != "" {
		db, err := openDB(c.DB)
		if err != nil {
			return err
		}
		defer db.Close()
		st = store.New(db, logger.Named("store"))
		if err := st.Migrate(); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		if run, err = st.StartRun(c.Catalogue); err != nil {
			return err
		}
		logger.Infow("recording run", "run", run.ID, "db", c.DB)
	}

	var jobs []pipeline.Job
	var results []pipeline.Result
	for _, v := range vars {
		job, err := pipeline.FromVariable(ctx, v, srcOpts)
		if err != nil {
			logger.Errorw("skipping variable", "variable", v.Name, "error", err)
			results = append(results, pipeline.Result{Name: v.Name, Err: err})
			continue
		}
		jobs = append(jobs, job)
	}

	built, err := pipeline.Run(ctx, jobs, pipeline.Options{
		AOI:      region,
		Parallel: c.Parallel,
		Workers:  cat.Defaults.Workers,
		Budget:   cat.Defaults.Budget,
		Logger:   logger,
	})
	results = append(results, built...)
	if err != nil {
		return err
	}

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		} else if err := c.write(r); err != nil {
			logger.Errorw("write output failed", "variable", r.Name, "error", err)
			failed++
		}
		if st != nil {
			if err := st.SaveResult(run.ID, r); err != nil {
				logger.Errorw("record result failed", "variable", r.Name, "error", err)
			}
		}
	}

	if st != nil {
		run.Variables, run.Failed, run.Success = len(results), failed, failed == 0
		if failed > 0 {
			run.ErrorMessage = sql.NullString{String: fmt.Sprintf("%d of %d variables failed", failed, len(results)), Valid: true}
		}
		if err := st.CompleteRun(run); err != nil {
			logger.Errorw("complete run failed", "run", run.ID, "error", err)
		}
	}

	logger.Infow("run complete", "variables", len(results), "failed", failed, "out", c.Out)
	if len(results) > 0 && failed == len(results) {
		return errors.New("every variable failed")
	}
	return nil
}

func (c *RunCmd) write(r pipeline.Result) error {
	ext := ".csv"
	if c.Compress {
		ext += ".zst"
	}
	if err := export.WriteFile(filepath.Join(c.Out, r.Name+ext), r.Table); err != nil {
		return err
	}
	for _, rs := range r.Resampled {
		name := fmt.Sprintf("%s_%s%s", r.Name, rs.Cadence, ext)
		if err := export.WriteFile(filepath.Join(c.Out, name), series.NewTable(rs.Series.Rename(pipeline.MeanColumn))); err != nil {
			return err
		}
	}
	return nil
}

type ReduceCmd struct {
	Manifest string        `required:"" help:"Collection manifest path or URL."`
	Band     string        `required:"" help:"Band to reduce."`
	Scale    float64       `required:"" help:"Sampling scale in ground units."`
	AOI      string        `required:"" name:"aoi" type:"existingfile" help:"GeoJSON area of interest."`
	From     string        `help:"Earliest acquisition, inclusive."`
	To       string        `help:"Latest acquisition, exclusive."`
	Workers  int           `help:"Concurrent reductions; 0 means one per CPU."`
	Budget   time.Duration `help:"Stop reducing after this long and print what is done."`
}

func (c *ReduceCmd) Run(ctx context.Context, logger *zap.SugaredLogger, w io.Writer) error {
	region, err := aoi.LoadGeoJSON(c.AOI)
	if err != nil {
		return err
	}
	from, to, err := config.Variable{From: c.From, To: c.To}.DateRange()
	if err != nil {
		return err
	}
	coll, err := source.Open(ctx, c.Manifest, source.Options{})
	if err != nil {
		return err
	}

	res, err := builder.Build(ctx, reduce.Request{
		Collection: coll.FilterDate(from, to),
		Band:       c.Band,
		AOI:        region,
		Scale:      c.Scale,
	}, builder.Options{
		Variable: coll.Name() + "/" + c.Band,
		Workers:  c.Workers,
		Budget:   c.Budget,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	return export.WriteCSV(w, series.NewTable(res.Series.Rename(pipeline.MeanColumn)))
}

type CatalogueCmd struct {
	Root string `help:"Directory or URL holding one manifest directory per dataset." default:"collections"`
}

func (c *CatalogueCmd) Run(w io.Writer) error {
	data, err := config.Default(c.Root).Marshal()
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

type RunsCmd struct {
	DB    string `required:"" help:"SQLite database." env:"BASINSERIES_DB"`
	Limit int    `help:"Runs to list." default:"20"`
}

func (c *RunsCmd) Run(w io.Writer) error {
	db, err := openDB(c.DB)
	if err != nil {
		return err
	}
	defer db.Close()
	st := store.New(db, nil)
	if err := st.Migrate(); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	runs, err := st.ListRuns(c.Limit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tVARIABLES\tFAILED\tCATALOGUE")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Variables, r.Failed, r.Catalogue)
	}
	return tw.Flush()
}

func openDB(path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

func serveMetrics(addr string, logger *zap.SugaredLogger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		logger.Infow("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorw("metrics server", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}
