package store

import "time"

// Run is one suite run.
type Run struct {
	ID         string     `json:"id"`
	Root       string     `json:"root"`
	Installer  string     `json:"installer"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Summary    Summary    `json:"summary"`
}

// Summary counts case results by status.
type Summary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	XFailed int `json:"xfailed"`
	XPassed int `json:"xpassed"`
	Errored int `json:"errored"`
}

// CaseRecord is the stored result of one case.
type CaseRecord struct {
	Seq      int           `json:"seq"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	CaseHash string        `json:"case_hash"`
	Status   string        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Steps    []StepRecord  `json:"steps"`
}

// StepRecord is the stored result of one request.
//
// Actual is nil when the step failed before producing an outcome.
// ReturnCode is nil when the installer never ran.
type StepRecord struct {
	Index       int            `json:"index"`
	Action      string         `json:"action"`
	Argument    any            `json:"argument"`
	Expected    map[string]any `json:"expected"`
	Actual      map[string]any `json:"actual,omitempty"`
	OutcomeHash string         `json:"outcome_hash,omitempty"`
	ReturnCode  *int           `json:"returncode,omitempty"`
	Pass        bool           `json:"pass"`
}
