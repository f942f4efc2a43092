// Package harness replays fixture cases against the installer and reports
// whether the observed outcomes match the declared transaction.
//
// # Case lifecycle
//
// For each case the runner
//
//  1. checks that request and transaction have the same length
//  2. writes every available package as a wheel into the scratch index
//  3. replays each request in order: one action key, looked up in the
//     dispatch table, executed, its outcome compared structurally
//
// The first failing step ends the case. Nothing is retried.
//
// # Statuses
//
//   - pass: every step matched
//   - fail: an assertion failed (count, action, outcome)
//   - xfail: the case is marked skip and failed in any way
//   - xpass: the case is marked skip but passed; does not fail the suite
//   - error: the scratch area or installer could not be set up or run
//
// # Usage
//
// Inside go test, one subtest per case:
//
//	func TestFixtures(t *testing.T) {
//	    harness.RunFixtures(t, "testdata/yaml", harness.FixtureOptions{
//	        Config: harness.Config{Script: script.Config{Installer: []string{"pip"}}},
//	    })
//	}
//
// From a program, with results recorded to a store:
//
//	runner := harness.New(harness.Config{Recorder: st})
//	suite, err := runner.Run(ctx, root, fixture.Generate(root))
package harness
