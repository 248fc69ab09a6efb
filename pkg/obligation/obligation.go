// Package obligation implements the Obligation Engine: evaluating a rule's
// require{} clause against a compound, producing missing sets,
// remediation plans, evidence-binding checks, severity resolution, and
// waiver suppression.
package obligation

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/predicate"
)

// Atom is the structured description of an obligation failure, the
// `atom` field of an explain-trace entry.
type Atom struct {
	Kind            string   `json:"kind"` // "obligation_missing" | "evidence_binding_missing"
	MissingAllOf    []string `json:"missing_all_of,omitempty"`
	MissingAnyOf    []string `json:"missing_any_of,omitempty"`
}

// Requires mirrors the trace entry's `requires` field: the full set of
// obligated/evidence ids, independent of whether they are present.
type Requires struct {
	ObligationIDs       []string `json:"obligation_ids"`
	EvidenceIDs         []string `json:"evidence_ids"`
	MissingEvidenceIDs  []string `json:"missing_evidence_ids"`
}

// Remediation is the structured fix suggestion attached to a failing
// obligation.
type Remediation struct {
	Kind           string   `json:"kind"` // "add_elements" | "bind_evidence_to_rule"
	AddElements    []string `json:"add_elements,omitempty"`
	AddEvidenceIDs []string `json:"add_evidence_ids,omitempty"`
	AnyOfChoice    string   `json:"any_of_choice,omitempty"`
	TieBreak       string   `json:"tie_break,omitempty"`
	RuleID         string   `json:"rule_id,omitempty"`
	BindEvidenceIDs []string `json:"bind_evidence_ids,omitempty"`
}

// EvidenceBindingMissingAtom is the atom.kind used when explicit_only
// binding mode rejects an otherwise-passing rule.
const EvidenceBindingMissingAtom = "evidence_binding_missing"
const ObligationMissingAtom = "obligation_missing"

// Outcome is the result of evaluating one rule's require{} against a
// compound.
type Outcome struct {
	Passed      bool
	Atom        *Atom
	Requires    *Requires
	Remediation *Remediation
}

// Evaluate implements the require{} evaluation described in spec.md
// §4.6/§4.6.1: obligation satisfaction, then (if satisfied) the
// evidence-binding check for explicit_only compounds.
func Evaluate(rule model.BondRule, compound *model.Compound, idx ElementIndex, domain *model.Domain, cv predicate.CompoundView) Outcome {
	req := rule.Require

	var missingAllOf, missingAnyOf []string
	allOfOK := true
	for _, id := range req.AllOf {
		if !cv.ElementIDs[id] {
			missingAllOf = append(missingAllOf, id)
			allOfOK = false
		}
	}

	anyOfOK := len(req.AnyOf) == 0
	if len(req.AnyOf) > 0 {
		var present bool
		for _, id := range req.AnyOf {
			if cv.ElementIDs[id] {
				present = true
			} else {
				missingAnyOf = append(missingAnyOf, id)
			}
		}
		anyOfOK = present
		if anyOfOK {
			missingAnyOf = nil
		}
	}

	stateOK := true
	var stateMissing []string
	for _, sr := range req.StateRequirements {
		el := idx.Get(sr.ElementID)
		if el == nil || !cv.ElementIDs[sr.ElementID] || !el.HasStates(sr.MustInclude) {
			stateOK = false
			stateMissing = append(stateMissing, sr.ElementID)
		}
	}

	statesShorthandOK := true
	if len(req.States) > 0 {
		el := idx.Get(model.TxStatusElementID)
		if el == nil || !cv.ElementIDs[model.TxStatusElementID] || !el.HasStates(req.States) {
			statesShorthandOK = false
			stateMissing = append(stateMissing, model.TxStatusElementID)
		}
	}

	invariantsOK := true
	if len(req.Invariants) > 0 {
		have := compound.InvariantSet()
		for _, inv := range req.Invariants {
			if !have[inv] {
				invariantsOK = false
			}
		}
	}

	passed := allOfOK && anyOfOK && stateOK && statesShorthandOK && invariantsOK

	obligationIDSet := map[string]bool{}
	for _, id := range req.AllOf {
		obligationIDSet[id] = true
	}
	for _, id := range req.AnyOf {
		obligationIDSet[id] = true
	}
	for _, sr := range req.StateRequirements {
		obligationIDSet[sr.ElementID] = true
	}
	if len(req.States) > 0 {
		obligationIDSet[model.TxStatusElementID] = true
	}
	var obligationIDs []string
	for id := range obligationIDSet {
		obligationIDs = append(obligationIDs, id)
	}
	sort.Strings(obligationIDs)

	var evidenceIDs []string
	for _, id := range obligationIDs {
		if el := idx.Get(id); el != nil && el.Table == model.TableEvidence {
			evidenceIDs = append(evidenceIDs, id)
		}
	}
	sort.Strings(evidenceIDs)

	missingSet := map[string]bool{}
	for _, id := range missingAllOf {
		missingSet[id] = true
	}
	for _, id := range missingAnyOf {
		missingSet[id] = true
	}
	for _, id := range stateMissing {
		missingSet[id] = true
	}
	var missingEvidenceIDs []string
	for _, id := range evidenceIDs {
		if missingSet[id] {
			missingEvidenceIDs = append(missingEvidenceIDs, id)
		}
	}

	requires := &Requires{
		ObligationIDs:      obligationIDs,
		EvidenceIDs:        evidenceIDs,
		MissingEvidenceIDs: missingEvidenceIDs,
	}

	if passed {
		return Outcome{Passed: true, Requires: requires}
	}

	sort.Strings(missingAllOf)
	sort.Strings(missingAnyOf)

	addElements := append([]string(nil), missingAllOf...)
	var anyOfChoice, tieBreak string
	if len(missingAnyOf) > 0 {
		anyOfChoice, tieBreak = chooseAnyOf(missingAnyOf, idx, domain)
		addElements = append(addElements, anyOfChoice)
	}
	sort.Strings(addElements)

	var addEvidenceIDs []string
	for _, id := range addElements {
		if el := idx.Get(id); el != nil && el.Table == model.TableEvidence {
			addEvidenceIDs = append(addEvidenceIDs, id)
		}
	}

	return Outcome{
		Passed: false,
		Atom: &Atom{
			Kind:         ObligationMissingAtom,
			MissingAllOf: missingAllOf,
			MissingAnyOf: missingAnyOf,
		},
		Requires: requires,
		Remediation: &Remediation{
			Kind:           "add_elements",
			AddElements:    addElements,
			AddEvidenceIDs: addEvidenceIDs,
			AnyOfChoice:    anyOfChoice,
			TieBreak:       tieBreak,
		},
	}
}

// chooseAnyOf picks exactly one id from a missing any_of set, using the
// domain's remediation_any_of_strategy (default lexicographic_smallest
// when the domain is nil or declares none).
func chooseAnyOf(missing []string, idx ElementIndex, domain *model.Domain) (choice, tieBreak string) {
	strategy := model.RemediationLexicographicSmallest
	if domain != nil && domain.RemediationAnyOfStrategy != "" {
		strategy = domain.RemediationAnyOfStrategy
	}

	sorted := append([]string(nil), missing...)
	sort.Strings(sorted)

	switch strategy {
	case model.RemediationSafetyFirst:
		best := sorted[0]
		bestRank := tableRank(idx, best)
		for _, id := range sorted[1:] {
			r := tableRank(idx, id)
			if r < bestRank {
				best, bestRank = id, r
			}
		}
		return best, "safety_first"
	default:
		return sorted[0], "lexicographic_smallest"
	}
}

func tableRank(idx ElementIndex, id string) int {
	el := idx.Get(id)
	if el == nil {
		return 99
	}
	return model.TableSafetyRank[el.Table]
}

// ElementIndex is the minimal lookup surface the obligation engine needs
// from pkg/elementindex, kept as an interface here to avoid an import
// cycle (elementindex does not depend on obligation).
type ElementIndex interface {
	Get(id string) *model.Element
}
