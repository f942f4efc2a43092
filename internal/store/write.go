package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/pipyaml/internal/canonical"
)

// CreateRun inserts a new run and returns it.
// The run stays unfinished until FinishRun is called.
func (s *Store) CreateRun(ctx context.Context, root, installer string) (Run, error) {
	run := Run{
		ID:        s.ids.Generate(),
		Root:      root,
		Installer: installer,
		StartedAt: s.clock().UTC(),
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, root, installer, started_at)
		VALUES (?, ?, ?, ?)
	`, run.ID, run.Root, run.Installer, formatTime(run.StartedAt))
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WriteCaseResult stores one case and its steps in a single transaction.
// The run must exist. Writing the same seq twice fails.
//
// Step outcome hashes are computed here when the caller left them empty.
func (s *Store) WriteCaseResult(ctx context.Context, runID string, rec CaseRecord) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write case result: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO case_results
		(run_id, seq, name, path, case_hash, status, message, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		rec.Seq,
		rec.Name,
		rec.Path,
		rec.CaseHash,
		rec.Status,
		rec.Message,
		rec.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("write case result %s: %w", rec.Name, err)
	}

	for _, step := range rec.Steps {
		if err := writeStep(ctx, tx, runID, rec.Seq, step); err != nil {
			return fmt.Errorf("write case result %s: step %d: %w", rec.Name, step.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write case result %s: commit: %w", rec.Name, err)
	}
	return nil
}

func writeStep(ctx context.Context, tx *sql.Tx, runID string, caseSeq int, step StepRecord) error {
	expected, err := marshalOutcome(step.Expected)
	if err != nil {
		return err
	}

	var actual, outcomeHash sql.NullString
	if step.Actual != nil {
		data, err := marshalOutcome(step.Actual)
		if err != nil {
			return err
		}
		actual = sql.NullString{String: data, Valid: true}

		hash := step.OutcomeHash
		if hash == "" {
			hash = canonical.HashWithDomain(canonical.DomainOutcome, []byte(data))
		}
		outcomeHash = sql.NullString{String: hash, Valid: true}
	}

	var returnCode sql.NullInt64
	if step.ReturnCode != nil {
		returnCode = sql.NullInt64{Int64: int64(*step.ReturnCode), Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO step_results
		(run_id, case_seq, idx, action, argument, expected, actual, outcome_hash, returncode, pass)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		caseSeq,
		step.Index,
		step.Action,
		marshalArgument(step.Argument),
		expected,
		actual,
		outcomeHash,
		returnCode,
		boolToInt(step.Pass),
	)
	return err
}

// FinishRun stamps the run's finish time and summary counts.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) FinishRun(ctx context.Context, runID string, summary Summary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET finished_at = ?, total = ?, passed = ?, failed = ?, xfailed = ?, xpassed = ?, errored = ?
		WHERE id = ?
	`,
		formatTime(s.clock()),
		summary.Total,
		summary.Passed,
		summary.Failed,
		summary.XFailed,
		summary.XPassed,
		summary.Errored,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
