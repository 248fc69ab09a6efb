package evaluator

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/trace"
)

// buildTraceEntries remaps the collector's finalized violations onto
// pkg/trace's Entry shape. It never re-evaluates anything; every field
// traces back to state already computed while the violation was added.
func buildTraceEntries(violations []errorir.Violation) []trace.Entry {
	out := make([]trace.Entry, 0, len(violations))
	for _, v := range violations {
		target := v.CompoundID
		if v.Kind == "system" {
			target = v.SystemID
		}
		var bindings []trace.EvidenceBinding
		for _, b := range v.EvidenceSatisfiedBy {
			bindings = append(bindings, trace.EvidenceBinding{
				EvidenceID:        b.EvidenceID,
				Missing:           b.Missing,
				ElementIDs:        b.ElementIDs,
				ContextID:         b.ContextID,
				MembraneEdgeID:    b.MembraneEdgeID,
				InferenceRuleID:   b.InferenceRuleID,
				ParentEvidenceID:  b.ParentEvidenceID,
				DerivationSteps:   b.DerivationSteps,
				ArtifactKind:      b.ArtifactKind,
				ArtifactURI:       b.ArtifactURI,
				ArtifactDigestSHA: b.ArtifactDigestSHA,
			})
		}
		out = append(out, trace.Entry{
			Profile:                   v.Profile,
			PolicyURI:                 v.PolicyURI,
			Kind:                      v.Kind,
			CompoundID:                target,
			RuleID:                    v.RuleID,
			Severity:                  string(v.Severity),
			Message:                   v.Message,
			Because:                   v.Because,
			Atom:                      v.Atom,
			Requires:                  v.Requires,
			Remediation:               v.Remediation,
			Obligations:               v.Obligations,
			Evidence:                  v.Evidence,
			SourcePack:                v.SourcePack,
			Waived:                    v.Waived,
			WaiverScars:               v.WaiverScars,
			EvidenceComplete:          v.EvidenceComplete,
			MissingEvidenceIDs:        v.MissingEvidenceIDs,
			MissingEvidenceBindingIDs: v.MissingEvidenceBindingIDs,
			EvidenceSatisfiedBy:       bindings,
		})
	}
	return out
}

// obligationKey is the canonical commitment unit for obligationsHash: one
// rule's evaluation outcome, identified by the compound/system it ran
// against.
type obligationKey struct {
	Kind     string `json:"kind"`
	Target   string `json:"target"`
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
}

// obligationsHash commits to the full set of recorded rule outcomes for
// this run (every violation carrying a rule id), independent of trace
// view rendering.
func obligationsHash(violations []errorir.Violation) (string, error) {
	var keys []obligationKey
	for _, v := range violations {
		if v.RuleID == "" {
			continue
		}
		target := v.CompoundID
		if v.Kind == "system" {
			target = v.SystemID
		}
		keys = append(keys, obligationKey{Kind: v.Kind, Target: target, RuleID: v.RuleID, Severity: string(v.Severity)})
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Target != b.Target {
			return a.Target < b.Target
		}
		if a.RuleID != b.RuleID {
			return a.RuleID < b.RuleID
		}
		return a.Severity < b.Severity
	})
	return canonicalize.CanonicalHash(keys)
}
