// Package store records pipeline runs in SQLite so series from different
// runs can be listed and compared.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lox/basinseries/internal/pipeline"
	"github.com/lox/basinseries/internal/series"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

func New(db *sql.DB, log *zap.SugaredLogger) *Store {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Store{db: db, log: log}
}

// ResampledColumn names the stored column for a resampled series.
func ResampledColumn(cadence string) string {
	return "resample_" + cadence
}

// SaveResult stores one variable's table, resampled series and climatology
// under runID. A failed variable stores only its outcome.
func (s *Store) SaveResult(runID string, r pipeline.Result) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var skipped sql.NullString
	if len(r.Skipped) > 0 {
		b, err := json.Marshal(r.Skipped)
		if err != nil {
			return fmt.Errorf("encode skipped: %w", err)
		}
		skipped = sql.NullString{String: string(b), Valid: true}
	}
	var errMsg sql.NullString
	if r.Err != nil {
		errMsg = sql.NullString{String: r.Err.Error(), Valid: true}
	}

	if _, err := tx.Exec(`
		INSERT INTO variable_results (run_id, variable, images, observations, skipped_json, partial, duration_ms, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, variable) DO UPDATE SET
			images = excluded.images,
			observations = excluded.observations,
			skipped_json = excluded.skipped_json,
			partial = excluded.partial,
			duration_ms = excluded.duration_ms,
			error_message = excluded.error_message
	`, runID, r.Name, r.Images, r.Table.Len(), skipped, r.Partial, r.Duration.Milliseconds(), errMsg); err != nil {
		return fmt.Errorf("save outcome %s: %w", r.Name, err)
	}

	if r.Err != nil {
		return tx.Commit()
	}

	stmt, err := tx.Prepare(`
		INSERT INTO series_points (run_id, variable, column_name, ts, value, seq)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, variable, column_name, seq) DO UPDATE SET
			ts = excluded.ts,
			value = excluded.value
	`)
	if err != nil {
		return fmt.Errorf("prepare points: %w", err)
	}
	defer stmt.Close()

	for _, col := range r.Table.Columns {
		for i, ts := range r.Table.Index {
			if _, err := stmt.Exec(runID, r.Name, col.Name, ts.UTC(), col.Values[i], i); err != nil {
				return fmt.Errorf("save %s/%s: %w", r.Name, col.Name, err)
			}
		}
	}
	for _, rs := range r.Resampled {
		column := ResampledColumn(rs.Cadence.String())
		for i, o := range rs.Series.Obs {
			if _, err := stmt.Exec(runID, r.Name, column, o.Time.UTC(), o.Value, i); err != nil {
				return fmt.Errorf("save %s/%s: %w", r.Name, column, err)
			}
		}
	}

	if r.Climatology != nil {
		for _, day := range r.Climatology.Days() {
			e, _ := r.Climatology.Lookup(day)
			if _, err := tx.Exec(`
				INSERT INTO climatology (run_id, variable, doy, mean, count)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(run_id, variable, doy) DO UPDATE SET
					mean = excluded.mean,
					count = excluded.count
			`, runID, r.Name, day, e.Mean, e.Count); err != nil {
				return fmt.Errorf("save climatology %s: %w", r.Name, err)
			}
		}
	}

	return tx.Commit()
}

// LoadSeries reads back one stored column in its original order.
func (s *Store) LoadSeries(runID, variable, column string) (series.Series, error) {
	rows, err := s.db.Query(`
		SELECT ts, value FROM series_points
		WHERE run_id = ? AND variable = ? AND column_name = ?
		ORDER BY seq
	`, runID, variable, column)
	if err != nil {
		return series.Series{}, err
	}
	defer rows.Close()

	out := series.Series{Name: column}
	for rows.Next() {
		var o series.Observation
		if err := rows.Scan(&o.Time, &o.Value); err != nil {
			return series.Series{}, err
		}
		out.Obs = append(out.Obs, o)
	}
	if err := rows.Err(); err != nil {
		return series.Series{}, err
	}
	if len(out.Obs) == 0 {
		return series.Series{}, fmt.Errorf("%s/%s in run %s: %w", variable, column, runID, ErrNotFound)
	}
	return out, nil
}

// ClimatologyRow is one stored day-of-year baseline.
type ClimatologyRow struct {
	DayOfYear int
	Mean      float64
	Count     int
}

func (s *Store) LoadClimatology(runID, variable string) ([]ClimatologyRow, error) {
	rows, err := s.db.Query(`
		SELECT doy, mean, count FROM climatology
		WHERE run_id = ? AND variable = ?
		ORDER BY doy
	`, runID, variable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ClimatologyRow
	for rows.Next() {
		var c ClimatologyRow
		if err := rows.Scan(&c.DayOfYear, &c.Mean, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// VariableResult is the stored outcome of one variable in a run.
type VariableResult struct {
	Variable     string
	Images       int
	Observations int
	Skipped      map[string]int
	Partial      bool
	Duration     time.Duration
	ErrorMessage sql.NullString
}

func (s *Store) GetVariableResults(runID string) ([]VariableResult, error) {
	rows, err := s.db.Query(`
		SELECT variable, images, observations, skipped_json, partial, duration_ms, error_message
		FROM variable_results
		WHERE run_id = ?
		ORDER BY variable
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []VariableResult
	for rows.Next() {
		var v VariableResult
		var skipped sql.NullString
		var durationMS sql.NullInt64
		if err := rows.Scan(&v.Variable, &v.Images, &v.Observations, &skipped, &v.Partial, &durationMS, &v.ErrorMessage); err != nil {
			return nil, err
		}
		if skipped.Valid {
			if err := json.Unmarshal([]byte(skipped.String), &v.Skipped); err != nil {
				return nil, fmt.Errorf("decode skipped for %s: %w", v.Variable, err)
			}
		}
		v.Duration = time.Duration(durationMS.Int64) * time.Millisecond
		out = append(out, v)
	}
	return out, rows.Err()
}
