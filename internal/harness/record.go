package harness

import (
	"fmt"

	"github.com/roach88/pipyaml/internal/canonical"
	"github.com/roach88/pipyaml/internal/fixture"
	"github.com/roach88/pipyaml/internal/store"
)

// Record converts the result into the form the store persists.
func (r *CaseResult) Record(seq int) store.CaseRecord {
	rec := store.CaseRecord{
		Seq:      seq,
		Name:     r.Name(),
		Path:     r.Case.Path,
		CaseHash: CaseHash(r.Case),
		Status:   string(r.Status),
		Message:  r.Message(),
		Duration: r.Duration,
		Steps:    make([]store.StepRecord, len(r.Steps)),
	}
	for i, step := range r.Steps {
		s := store.StepRecord{
			Index:    step.Index,
			Action:   step.Action,
			Argument: step.Argument,
			Expected: step.Expected.Map(),
			Pass:     step.Pass,
		}
		if step.Actual != nil {
			s.Actual = step.Actual.Map()
		}
		if step.Result != nil {
			rc := step.Result.ReturnCode
			s.ReturnCode = &rc
		}
		rec.Steps[i] = s
	}
	return rec
}

// CaseHash returns the content hash of the merged case. Case fields that
// canonical JSON cannot express fall back to hashing the case's text form.
func CaseHash(c fixture.Case) string {
	hash, err := canonical.Hash(canonical.DomainCase, caseMap(c))
	if err != nil {
		return canonical.HashWithDomain(canonical.DomainCase, []byte(c.String()))
	}
	return hash
}

// caseMap is the canonical form of a case: the fixture fields only, so
// renaming or moving the file keeps the hash.
func caseMap(c fixture.Case) map[string]any {
	available := make([]any, len(c.Available))
	for i, p := range c.Available {
		available[i] = packageMap(p)
	}

	requests := make([]any, len(c.Request))
	for i, req := range c.Request {
		requests[i] = map[string]any(req)
	}

	transaction := make([]any, len(c.Transaction))
	for i, o := range c.Transaction {
		transaction[i] = o.Map()
	}

	return map[string]any{
		"available":   available,
		"request":     requests,
		"transaction": transaction,
		"skip":        c.Skip,
	}
}

func packageMap(p fixture.PackageSpec) map[string]any {
	depends := make([]any, len(p.Depends))
	for i, d := range p.Depends {
		depends[i] = d
	}
	extras := make(map[string]any, len(p.Extras))
	for name, deps := range p.Extras {
		list := make([]any, len(deps))
		for i, d := range deps {
			list[i] = d
		}
		extras[name] = list
	}
	return map[string]any{
		"name":    p.Name,
		"version": p.Version,
		"depends": depends,
		"extras":  extras,
	}
}

// argumentText renders a request argument for snapshots.
func argumentText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}
