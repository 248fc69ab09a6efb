// Package completion implements the Domain-Completion Gate (strict mode
// only): a quorum check of rules plus positive/negative examples per pack
// declared "complete".
package completion

import (
	"fmt"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// PackRuleCounts reports how many rules a pack owns, for the
// non-empty-rule-list check.
type PackRuleCounts interface {
	RuleCount(packID string) int
}

// Check implements spec.md §4.10. Callers should only invoke this in
// strict mode; there is no internal strict gate because the caller
// already knows the run's mode before reaching this stage.
//
// ruleToPack maps a rule id to the pack id that declares it (base rules
// are absent from the map), used to attribute negative-example cases to
// the pack whose rules they exercise.
func Check(completion *model.DomainCompletion, corpus *model.GoldenCorpus, negativeCases []model.NegativeExample,
	rules PackRuleCounts, ruleToPack map[string]string, collector *errorir.Collector) {

	for _, entry := range completion.Entries {
		if entry.Status != "complete" {
			continue
		}

		if rules.RuleCount(entry.PackID) == 0 {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeDomainCompletionRules,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("pack %q is declared complete but has no rules", entry.PackID),
			})
		}

		positive := countPositiveApplicable(corpus, entry.PackID)
		if positive < entry.MinPositiveExamples {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeDomainCompletionPos,
				Severity: errorir.SeverityError,
				Message: fmt.Sprintf("pack %q requires %d positive examples, found %d",
					entry.PackID, entry.MinPositiveExamples, positive),
			})
		}

		negative := countNegativeApplicable(negativeCases, entry.PackID, ruleToPack)
		if negative < entry.MinNegativeExamples {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeDomainCompletionNeg,
				Severity: errorir.SeverityError,
				Message: fmt.Sprintf("pack %q requires %d negative examples, found %d",
					entry.PackID, entry.MinNegativeExamples, negative),
			})
		}
	}
}

func countPositiveApplicable(corpus *model.GoldenCorpus, packID string) int {
	n := 0
	for _, e := range corpus.Entries {
		for _, p := range e.ApplicablePacks {
			if p == packID {
				n++
				break
			}
		}
	}
	return n
}

func countNegativeApplicable(cases []model.NegativeExample, packID string, ruleToPack map[string]string) int {
	n := 0
	for _, c := range cases {
		matched := false
		for _, r := range c.ExpectErrors {
			if ruleToPack[r] == packID {
				matched = true
				break
			}
		}
		if !matched {
			for _, r := range c.ExpectWarnings {
				if ruleToPack[r] == packID {
					matched = true
					break
				}
			}
		}
		if matched {
			n++
		}
	}
	return n
}
