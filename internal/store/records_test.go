package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pipyaml/internal/canonical"
	"github.com/roach88/pipyaml/internal/testutil"
)

func conflictCase(seq int) CaseRecord {
	return CaseRecord{
		Seq:      seq,
		Name:     "conflicting/simple",
		Path:     "testdata/yaml/conflicting/simple.yml",
		CaseHash: "abc123",
		Status:   "pass",
		Duration: 1500 * time.Millisecond,
		Steps: []StepRecord{
			{
				Index:      0,
				Action:     "install",
				Argument:   "A",
				Expected:   map[string]any{"conflicting": []any{map[string]any{"required_by": "A 1.0.0", "selector": "B == 2.0.0"}}},
				Actual:     map[string]any{"conflicting": []any{map[string]any{"required_by": "A 1.0.0", "selector": "B == 2.0.0"}}},
				ReturnCode: intPtr(1),
				Pass:       true,
			},
		},
	}
}

func TestCreateRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run, err := s.CreateRun(ctx, "fixtures", "python -m pip")
	require.NoError(t, err)
	assert.Equal(t, "run-0001", run.ID)
	assert.Equal(t, testutil.Epoch, run.StartedAt)

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "fixtures", got.Root)
	assert.Equal(t, "python -m pip", got.Installer)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.Nil(t, got.FinishedAt)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.ReadRun(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	summary := Summary{Total: 4, Passed: 1, Failed: 1, XFailed: 1, XPassed: 1}
	require.NoError(t, s.FinishRun(ctx, run.ID, summary))

	got, err := s.ReadRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, summary, got.Summary)
	require.NotNil(t, got.FinishedAt)
	assert.True(t, got.FinishedAt.After(got.StartedAt))
}

func TestFinishRun_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.FinishRun(context.Background(), "missing", Summary{})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestListRuns_MostRecentFirst(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for range 3 {
		createTestRun(t, s)
	}

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"run-0003", "run-0002", "run-0001"}, []string{runs[0].ID, runs[1].ID, runs[2].ID})

	limited, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestWriteCaseResult_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	rec := conflictCase(0)
	require.NoError(t, s.WriteCaseResult(ctx, run.ID, rec))

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)

	c := got[0]
	assert.Equal(t, rec.Name, c.Name)
	assert.Equal(t, rec.Path, c.Path)
	assert.Equal(t, rec.CaseHash, c.CaseHash)
	assert.Equal(t, "pass", c.Status)
	assert.Equal(t, 1500*time.Millisecond, c.Duration)

	require.Len(t, c.Steps, 1)
	step := c.Steps[0]
	assert.Equal(t, "install", step.Action)
	assert.Equal(t, "A", step.Argument)
	assert.Equal(t, rec.Steps[0].Expected, step.Expected)
	assert.Equal(t, rec.Steps[0].Actual, step.Actual)
	require.NotNil(t, step.ReturnCode)
	assert.Equal(t, 1, *step.ReturnCode)
	assert.True(t, step.Pass)

	wantHash, err := canonical.Hash(canonical.DomainOutcome, rec.Steps[0].Actual)
	require.NoError(t, err)
	assert.Equal(t, wantHash, step.OutcomeHash)
}

func TestWriteCaseResult_StepWithoutOutcome(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	rec := CaseRecord{
		Seq:      0,
		Name:     "bad/request",
		Path:     "bad/request.yml",
		CaseHash: "h",
		Status:   "fail",
		Message:  "expected only one action",
		Steps: []StepRecord{
			{Index: 0, Action: "", Argument: map[string]any{"install": "A", "remove": "A"}, Expected: map[string]any{}},
		},
	}
	require.NoError(t, s.WriteCaseResult(ctx, run.ID, rec))

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "expected only one action", got[0].Message)

	step := got[0].Steps[0]
	assert.Nil(t, step.Actual)
	assert.Nil(t, step.ReturnCode)
	assert.Empty(t, step.OutcomeHash)
	assert.False(t, step.Pass)
	assert.Equal(t, map[string]any{"install": "A", "remove": "A"}, step.Argument)
}

func TestWriteCaseResult_FloatArgumentStoredAsString(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	rec := CaseRecord{
		Name:   "odd/arg",
		Status: "fail",
		Steps:  []StepRecord{{Action: "install", Argument: 1.5, Expected: map[string]any{}}},
	}
	require.NoError(t, s.WriteCaseResult(ctx, run.ID, rec))

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.5", got[0].Steps[0].Argument)
}

func TestWriteCaseResult_DuplicateSeqRollsBack(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	require.NoError(t, s.WriteCaseResult(ctx, run.ID, conflictCase(0)))
	err := s.WriteCaseResult(ctx, run.ID, conflictCase(0))
	require.Error(t, err)

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Len(t, got[0].Steps, 1)
}

func TestWriteCaseResult_UnknownRun(t *testing.T) {
	s := createTestStore(t)

	err := s.WriteCaseResult(context.Background(), "missing", conflictCase(0))
	require.Error(t, err)
}

func TestWriteCaseResult_InvalidStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	rec := conflictCase(0)
	rec.Status = "flaky"
	require.Error(t, s.WriteCaseResult(ctx, run.ID, rec))

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestListCaseResults_Ordered(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	run := createTestRun(t, s)

	for _, seq := range []int{2, 0, 1} {
		rec := conflictCase(seq)
		rec.Name = []string{"a", "b", "c"}[seq]
		require.NoError(t, s.WriteCaseResult(ctx, run.ID, rec))
	}

	got, err := s.ListCaseResults(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].Name, got[1].Name, got[2].Name})
}

func TestCaseHistory(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	first := createTestRun(t, s)
	second := createTestRun(t, s)

	passed := conflictCase(0)
	require.NoError(t, s.WriteCaseResult(ctx, first.ID, passed))

	failed := conflictCase(0)
	failed.Status = "fail"
	failed.CaseHash = "def456"
	require.NoError(t, s.WriteCaseResult(ctx, second.ID, failed))

	history, err := s.CaseHistory(ctx, "conflicting/simple", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "fail", history[0].Status)
	assert.Equal(t, "def456", history[0].CaseHash)
	assert.Equal(t, "pass", history[1].Status)

	none, err := s.CaseHistory(ctx, "unknown", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}
