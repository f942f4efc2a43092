package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goldenCases = map[string]bool{
	"conflicting/simple": true,
	"expected/skip-0":    true,
}

func TestFixtures(t *testing.T) {
	seen := map[string]Status{}

	t.Run("cases", func(t *testing.T) {
		RunFixtures(t, "testdata/yaml", FixtureOptions{
			Config: fakeConfig(),
			Check: func(t *testing.T, r *CaseResult) {
				seen[r.Name()] = r.Status
				if goldenCases[r.Name()] {
					require.NoError(t, AssertGolden(t, r.Name(), r))
				}
			},
		})
	})

	assert.Equal(t, map[string]Status{
		"basic/simple-0":     StatusPass,
		"basic/simple-1":     StatusPass,
		"conflicting/simple": StatusPass,
		"expected/skip-0":    StatusXFail,
		"expected/skip-1":    StatusXPass,
		"mapping/extras":     StatusPass,
		"missing/nomatch":    StatusPass,
	}, seen)
}

func TestFixtures_Filter(t *testing.T) {
	var names []string
	RunFixtures(t, "testdata/yaml", FixtureOptions{
		Config: fakeConfig(),
		Filter: "basic/*",
		Check: func(t *testing.T, r *CaseResult) {
			names = append(names, r.Name())
		},
	})
	assert.Equal(t, []string{"basic/simple-0", "basic/simple-1"}, names)
}
