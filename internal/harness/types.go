package harness

import (
	"time"

	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/script"
	"github.com/roach88/pipyaml/internal/store"
)

// Status is the verdict for one case.
type Status string

// Case statuses.
const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusXFail Status = "xfail"
	StatusXPass Status = "xpass"
	StatusError Status = "error"
)

// StepResult is the outcome of replaying one request.
type StepResult struct {
	Index    int
	Action   string
	Argument any
	Expected fixture.Outcome

	// Actual is nil when the step failed before the action produced an
	// outcome.
	Actual *fixture.Outcome
	Pass   bool

	// Result is the installer run behind Actual, kept for diagnostics.
	Result *script.Result
}

// CaseResult is the outcome of one case.
type CaseResult struct {
	Case     fixture.Case
	Status   Status
	Steps    []StepResult
	Duration time.Duration

	// Err is the failure that ended the case: an *AssertionError for
	// fixture or outcome problems, any other error for setup failures.
	Err error
}

// Name returns the case's display name.
func (r *CaseResult) Name() string {
	return fixture.DisplayName(r.Case)
}

// Message returns the failure text, empty when the case passed.
func (r *CaseResult) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

// SuiteResult collects every case of a run.
type SuiteResult struct {
	// RunID identifies the stored run; empty without a recorder.
	RunID string

	Cases []*CaseResult

	// LoadErrors holds fixtures that could not be turned into cases.
	LoadErrors []error
}

// Summary counts the cases by status.
func (s *SuiteResult) Summary() store.Summary {
	sum := store.Summary{Total: len(s.Cases)}
	for _, c := range s.Cases {
		switch c.Status {
		case StatusPass:
			sum.Passed++
		case StatusFail:
			sum.Failed++
		case StatusXFail:
			sum.XFailed++
		case StatusXPass:
			sum.XPassed++
		case StatusError:
			sum.Errored++
		}
	}
	sum.Errored += len(s.LoadErrors)
	return sum
}

// Failed reports whether any case failed or errored, or a fixture did not
// load. Expected failures and unexpected passes do not count.
func (s *SuiteResult) Failed() bool {
	sum := s.Summary()
	return sum.Failed > 0 || sum.Errored > 0
}
