package harness

import (
	"context"
	"testing"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/script"
)

// FixtureOptions configures RunFixtures.
type FixtureOptions struct {
	Config

	// Filter restricts cases to names matching a doublestar pattern.
	Filter string

	// Parallel marks every case subtest parallel.
	Parallel bool

	// Check, if set, runs inside each subtest after the case ran and before
	// its status is applied.
	Check func(t *testing.T, r *CaseResult)
}

// RunFixtures runs every case below root as a subtest named after the case.
//
// Failing cases fail their subtest with the assertion and installer output.
// Expected failures are skipped with the failure as reason, so they stay
// visible without failing the run. A fixture that does not load fails the
// parent test.
func RunFixtures(t *testing.T, root string, opts FixtureOptions) {
	t.Helper()

	if opts.Filter != "" {
		if err := fixture.ValidatePattern(opts.Filter); err != nil {
			t.Fatal(err)
		}
	}

	runner := New(opts.Config)
	for c, err := range fixture.Filter(fixture.Generate(root), opts.Filter) {
		if err != nil {
			t.Errorf("fixture failed to load: %v", err)
			continue
		}

		t.Run(fixture.DisplayName(c), func(t *testing.T) {
			if opts.Parallel {
				t.Parallel()
			}

			env, err := script.NewEnvironment(t.TempDir(), runner.cfg.Script)
			if err != nil {
				t.Fatal(err)
			}

			result := runner.RunCase(context.Background(), env, c)
			if opts.Check != nil {
				opts.Check(t, result)
			}

			switch result.Status {
			case StatusXFail:
				t.Skipf("expected failure: %v", result.Err)
			case StatusXPass:
				t.Logf("case is marked skip but passed")
			case StatusFail, StatusError:
				t.Fatal(result.Err)
			}
		})
	}
}
