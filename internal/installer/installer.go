// Package installer drives the package installer for the actions a fixture
// requests and turns each run into a structured outcome.
package installer

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/script"
)

// Effect is the result of one action.
// Result is kept for diagnostics and never compared.
type Effect struct {
	Outcome fixture.Outcome
	Result  *script.Result
}

// AssertionError reports an action argument the executor cannot use.
// It fails the case rather than the run.
type AssertionError struct {
	Action  string
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: %s", e.Action, e.Message)
}

// Action executes one request against env.
type Action func(ctx context.Context, env *script.Environment, arg any) (*Effect, error)

// Actions is the dispatch table from request key to executor.
var Actions = map[string]Action{
	fixture.ActionInstall: Install,
}

// ActionNames returns the supported action names, sorted.
func ActionNames() []string {
	return slices.Sorted(maps.Keys(Actions))
}

// Supported returns the action names as a set.
func Supported() map[string]bool {
	set := make(map[string]bool, len(Actions))
	for name := range Actions {
		set[name] = true
	}
	return set
}

// Install installs a single requirement from the scratch index with the
// network disabled.
func Install(ctx context.Context, env *script.Environment, arg any) (*Effect, error) {
	requirement, ok := arg.(string)
	if !ok {
		return nil, &AssertionError{
			Action:  fixture.ActionInstall,
			Message: fmt.Sprintf("need install requirement to be a string only, got %T", arg),
		}
	}

	args := []string{
		"install",
		"--no-index", "--find-links", env.IndexURL(),
		requirement, "--verbose",
	}
	args = append(args, env.TargetArgs()...)

	result, err := env.Run(ctx, args, script.RunOptions{
		AllowStderrError:   true,
		AllowStderrWarning: true,
	})
	if err != nil {
		return nil, err
	}

	return &Effect{Outcome: Extract(result, DefaultExtractors...), Result: result}, nil
}

// Extract returns the outcome of the first extractor that recognizes the
// run, or an empty outcome.
func Extract(result *script.Result, extractors ...Extractor) fixture.Outcome {
	for _, x := range extractors {
		if outcome, ok := x.Extract(result); ok {
			return outcome
		}
	}
	return fixture.Outcome{}
}
