package harness

import (
	"errors"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/pipyaml/internal/canonical"
)

// Snapshot is the deterministic view of a case result used for golden
// comparison. Timings, scratch paths and raw installer output are left out.
func Snapshot(r *CaseResult) map[string]any {
	steps := make([]any, len(r.Steps))
	for i, step := range r.Steps {
		s := map[string]any{
			"index":    step.Index,
			"action":   step.Action,
			"argument": argumentText(step.Argument),
			"expected": step.Expected.Map(),
			"pass":     step.Pass,
		}
		if step.Actual != nil {
			s["actual"] = step.Actual.Map()
		}
		steps[i] = s
	}

	snap := map[string]any{
		"name":   r.Name(),
		"status": string(r.Status),
		"skip":   r.Case.Skip,
		"steps":  steps,
	}
	var assertion *AssertionError
	if errors.As(r.Err, &assertion) {
		snap["failure"] = assertion.Type
	}
	return snap
}

// MarshalSnapshot returns the canonical JSON of a result's snapshot.
func MarshalSnapshot(r *CaseResult) ([]byte, error) {
	return canonical.Marshal(Snapshot(r))
}

// AssertGolden compares a case result's snapshot against
// testdata/golden/{name}.golden. Names may contain slashes.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, r *CaseResult) error {
	t.Helper()

	data, err := MarshalSnapshot(r)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
