package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Run is one invocation of the pipeline.
type Run struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Catalogue    string
	Variables    int
	Failed       int
	Success      bool
	ErrorMessage sql.NullString
}

// StartRun records a new run and returns it with a fresh id.
func (s *Store) StartRun(catalogue string) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Catalogue: catalogue,
	}

	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, catalogue, success)
		VALUES (?, ?, ?, FALSE)
	`, run.ID, run.StartedAt, run.Catalogue)
	if err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return run, nil
}

// CompleteRun stamps the finish time and outcome counts.
func (s *Store) CompleteRun(run *Run) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE runs SET
			finished_at = ?,
			variables = ?,
			failed = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.Variables, run.Failed, run.Success, run.ErrorMessage, run.ID)
	return err
}

func (s *Store) GetRun(id string) (*Run, error) {
	row := s.db.QueryRow(`
		SELECT id, started_at, finished_at, catalogue, variables, failed, success, error_message
		FROM runs WHERE id = ?
	`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("run %s: %w", id, ErrNotFound)
	}
	return run, err
}

// ListRuns returns the most recent runs first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, catalogue, variables, failed, success, error_message
		FROM runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var catalogue sql.NullString
	if err := row.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &catalogue, &r.Variables,
		&r.Failed, &r.Success, &r.ErrorMessage); err != nil {
		return nil, err
	}
	r.Catalogue = catalogue.String
	return &r, nil
}
