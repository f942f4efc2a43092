package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

const runColumns = `id, root, installer, started_at, finished_at, total, passed, failed, xfailed, xpassed, errored`

// ListRuns returns the most recent runs first.
// A limit of zero or less returns every run.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+runColumns+`
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

func scanRun(row scanner) (Run, error) {
	var run Run
	var startedAt string
	var finishedAt sql.NullString
	err := row.Scan(
		&run.ID,
		&run.Root,
		&run.Installer,
		&startedAt,
		&finishedAt,
		&run.Summary.Total,
		&run.Summary.Passed,
		&run.Summary.Failed,
		&run.Summary.XFailed,
		&run.Summary.XPassed,
		&run.Summary.Errored,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, err
	}
	if finishedAt.Valid {
		t, err := parseTime(finishedAt.String)
		if err != nil {
			return Run{}, err
		}
		run.FinishedAt = &t
	}
	return run, nil
}

// ListCaseResults returns the cases of a run in the order they ran, each
// with its steps.
//
// Returns an empty slice (not nil) if the run has no cases.
func (s *Store) ListCaseResults(ctx context.Context, runID string) ([]CaseRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT seq, name, path, case_hash, status, message, duration_ms
		FROM case_results
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query case results: %w", err)
	}

	records := []CaseRecord{}
	for rows.Next() {
		rec, err := scanCase(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate case results: %w", err)
	}
	// Single connection: release it before querying steps.
	rows.Close()

	for i := range records {
		steps, err := s.listSteps(ctx, runID, records[i].Seq)
		if err != nil {
			return nil, err
		}
		records[i].Steps = steps
	}
	return records, nil
}

// CaseHistory returns the results recorded for one case name across runs,
// most recent run first. Steps are not loaded.
func (s *Store) CaseHistory(ctx context.Context, name string, limit int) ([]CaseRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.seq, c.name, c.path, c.case_hash, c.status, c.message, c.duration_ms
		FROM case_results c
		JOIN runs r ON r.id = c.run_id
		WHERE c.name = ?
		ORDER BY r.started_at DESC, r.id COLLATE BINARY DESC
		LIMIT ?
	`, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query case history: %w", err)
	}
	defer rows.Close()

	records := []CaseRecord{}
	for rows.Next() {
		rec, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate case history: %w", err)
	}
	return records, nil
}

func scanCase(row scanner) (CaseRecord, error) {
	var rec CaseRecord
	var durationMS int64
	if err := row.Scan(&rec.Seq, &rec.Name, &rec.Path, &rec.CaseHash, &rec.Status, &rec.Message, &durationMS); err != nil {
		return CaseRecord{}, fmt.Errorf("scan case result: %w", err)
	}
	rec.Duration = time.Duration(durationMS) * time.Millisecond
	rec.Steps = []StepRecord{}
	return rec, nil
}

func (s *Store) listSteps(ctx context.Context, runID string, caseSeq int) ([]StepRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT idx, action, argument, expected, actual, outcome_hash, returncode, pass
		FROM step_results
		WHERE run_id = ? AND case_seq = ?
		ORDER BY idx ASC
	`, runID, caseSeq)
	if err != nil {
		return nil, fmt.Errorf("query step results: %w", err)
	}
	defer rows.Close()

	steps := []StepRecord{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate step results: %w", err)
	}
	return steps, nil
}

func scanStep(row scanner) (StepRecord, error) {
	var step StepRecord
	var argument, expected string
	var actual, outcomeHash sql.NullString
	var returnCode sql.NullInt64
	var pass int

	err := row.Scan(&step.Index, &step.Action, &argument, &expected, &actual, &outcomeHash, &returnCode, &pass)
	if err != nil {
		return StepRecord{}, fmt.Errorf("scan step result: %w", err)
	}

	if step.Argument, err = unmarshalValue(argument); err != nil {
		return StepRecord{}, err
	}
	if step.Expected, err = unmarshalOutcome(expected); err != nil {
		return StepRecord{}, err
	}
	if actual.Valid {
		if step.Actual, err = unmarshalOutcome(actual.String); err != nil {
			return StepRecord{}, err
		}
	}
	step.OutcomeHash = outcomeHash.String
	if returnCode.Valid {
		rc := int(returnCode.Int64)
		step.ReturnCode = &rc
	}
	step.Pass = pass != 0
	return step, nil
}
