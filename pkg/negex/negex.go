// Package negex implements the Negative-Example Runner: an expected-
// failure harness with a purity check for strict mode.
package negex

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// CaseResult summarizes one negative-example case's evaluation.
type CaseResult struct {
	CaseID       string
	FiredRuleIDs []string
	OK           bool
}

// RunCase implements spec.md §4.9 for a single case, given the rule ids
// that actually fired (error or warning) when the target was evaluated
// into its own case-local buffer. strict enables the purity check:
// only expected rule ids may fire.
func RunCase(caseID string, expectErrors, expectWarnings, firedRuleIDs []string, strict bool, collector *errorir.Collector) CaseResult {
	fired := append([]string(nil), firedRuleIDs...)
	sort.Strings(fired)

	if len(fired) == 0 {
		collector.Add(errorir.Violation{
			Code:     errorir.CodeNegExpectedFailureButOK,
			Severity: errorir.SeverityError,
			Message:  fmt.Sprintf("negative example %q: expected failure but the target passed", caseID),
		})
		return CaseResult{CaseID: caseID, FiredRuleIDs: fired, OK: false}
	}

	expected := map[string]bool{}
	for _, id := range expectErrors {
		expected[id] = true
	}
	for _, id := range expectWarnings {
		expected[id] = true
	}

	ok := true
	var missingExpected []string
	for id := range expected {
		found := false
		for _, f := range fired {
			if f == id {
				found = true
				break
			}
		}
		if !found {
			missingExpected = append(missingExpected, id)
		}
	}
	sort.Strings(missingExpected)
	for _, id := range missingExpected {
		ok = false
		collector.Add(errorir.Violation{
			Code:     errorir.CodeNegExpectedNotFound,
			RuleID:   id,
			Severity: errorir.SeverityError,
			Message:  fmt.Sprintf("negative example %q: expected rule %q did not fire", caseID, id),
		})
	}

	if strict {
		for _, f := range fired {
			if !expected[f] {
				ok = false
				collector.Add(errorir.Violation{
					Code:     errorir.CodeNegUnexpectedFired,
					RuleID:   f,
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("negative example %q: unexpected rule %q fired (strict purity)", caseID, f),
				})
			}
		}
	}

	return CaseResult{CaseID: caseID, FiredRuleIDs: fired, OK: ok}
}

// ExampleKind distinguishes compound-level from system-level negative
// examples so the caller can dispatch to the right evaluation path.
type ExampleKind int

const (
	KindCompound ExampleKind = iota
	KindSystem
)

// Case normalizes model.NegativeExample / model.SystemNegativeExample into
// a single shape the runner iterates over.
type Case struct {
	ID             string
	Path           string
	ExpectErrors   []string
	ExpectWarnings []string
	Kind           ExampleKind
}

// FromCompoundExamples adapts loaded compound-level negative examples.
func FromCompoundExamples(examples []model.NegativeExample) []Case {
	out := make([]Case, 0, len(examples))
	for _, e := range examples {
		out = append(out, Case{ID: e.ID, Path: e.Path, ExpectErrors: e.ExpectErrors, ExpectWarnings: e.ExpectWarnings, Kind: KindCompound})
	}
	return out
}

// FromSystemExamples adapts loaded system-level negative examples.
func FromSystemExamples(examples []model.SystemNegativeExample) []Case {
	out := make([]Case, 0, len(examples))
	for _, e := range examples {
		out = append(out, Case{ID: e.ID, Path: e.Path, ExpectErrors: e.ExpectErrors, ExpectWarnings: e.ExpectWarnings, Kind: KindSystem})
	}
	return out
}
