package obligation

import "sort"

// CheckEvidenceBinding implements spec.md §4.6.1: for a compound in
// explicit_only mode, every obligated element whose table is evidence
// must appear in compound.evidence_bindings[rule_id][]. Called only when
// Evaluate already reported Passed=true and the compound's binding mode
// is explicit_only; the caller substitutes this outcome for the passing
// one when it fails.
func CheckEvidenceBinding(ruleID string, requires *Requires, boundEvidenceIDs []string) Outcome {
	bound := map[string]bool{}
	for _, id := range boundEvidenceIDs {
		bound[id] = true
	}

	var unbound []string
	for _, id := range requires.EvidenceIDs {
		if !bound[id] {
			unbound = append(unbound, id)
		}
	}
	if len(unbound) == 0 {
		return Outcome{Passed: true, Requires: requires}
	}

	sort.Strings(unbound)
	return Outcome{
		Passed: false,
		Atom: &Atom{
			Kind:         EvidenceBindingMissingAtom,
			MissingAllOf: unbound,
		},
		Requires: requires,
		Remediation: &Remediation{
			Kind:            "bind_evidence_to_rule",
			RuleID:          ruleID,
			BindEvidenceIDs: unbound,
		},
	}
}
