package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/script"
)

// Assertion types.
const (
	AssertCount        = "request_count"
	AssertSingleAction = "single_action"
	AssertKnownAction  = "known_action"
	AssertArgument     = "argument"
	AssertOutcome      = "outcome"
)

// AssertionError is returned when a case does not behave as its fixture
// declares. It carries the installer run for debugging.
type AssertionError struct {
	Type       string // Assertion type for categorization
	Step       int    // Request index, -1 for case level checks
	Expected   string
	Actual     string
	Diagnostic string // Installer result, when there is one
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Step >= 0 {
		fmt.Fprintf(&buf, " (request %d)", e.Step)
	}
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Diagnostic != "" {
		buf.WriteByte('\n')
		buf.WriteString(e.Diagnostic)
	}
	return buf.String()
}

func assertCount(c fixture.Case) error {
	if len(c.Request) == len(c.Transaction) {
		return nil
	}
	return &AssertionError{
		Type:     AssertCount,
		Step:     -1,
		Expected: "requests and transaction counts to be same",
		Actual:   fmt.Sprintf("%d requests, %d transaction entries", len(c.Request), len(c.Transaction)),
	}
}

func assertSingleAction(i int, req fixture.Request) error {
	return &AssertionError{
		Type:     AssertSingleAction,
		Step:     i,
		Expected: "only one action",
		Actual:   fmt.Sprintf("%v", req.Actions()),
	}
}

func assertKnownAction(i int, name string, known []string) error {
	return &AssertionError{
		Type:     AssertKnownAction,
		Step:     i,
		Expected: fmt.Sprintf("one of %v", known),
		Actual:   fmt.Sprintf("unsupported action %q", name),
	}
}

func assertArgument(i int, err error) error {
	return &AssertionError{
		Type:     AssertArgument,
		Step:     i,
		Expected: "usable action argument",
		Actual:   err.Error(),
	}
}

func assertOutcome(i int, expected, actual fixture.Outcome, result *script.Result) error {
	if expected.Equal(actual) {
		return nil
	}
	return &AssertionError{
		Type:       AssertOutcome,
		Step:       i,
		Expected:   expected.String(),
		Actual:     actual.String(),
		Diagnostic: result.String(),
	}
}
