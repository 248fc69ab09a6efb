// Package strategy implements the Strategy Registry Check: uniqueness and
// canonical-semantics-hash verification of registered combining
// strategies, plus counterexample fixture conformance.
package strategy

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/predicate"
)

var validAlgorithms = map[model.CombiningAlgorithm]bool{
	model.AlgorithmDenyOverrides:     true,
	model.AlgorithmPermitOverrides:   true,
	model.AlgorithmFirstApplicable:   true,
	model.AlgorithmOnlyOneApplicable: true,
}

type canonicalSemanticsKey struct {
	StrategyID string                   `json:"strategy_id"`
	Kind       string                   `json:"kind"`
	Name       string                   `json:"name"`
	Combining  model.StrategyCombining  `json:"combining"`
}

// Check implements spec.md §4.18's per-entry checks (uniqueness,
// algorithm validity, canonical-semantics-hash match) plus fixture
// conformance, and returns the registry's own hash for the receipt.
func Check(registry *model.StrategyRegistry, collector *errorir.Collector) (string, error) {
	seen := map[string]bool{}
	for _, e := range registry.Strategies {
		if e.StrategyID == "" || seen[e.StrategyID] {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeStrategyMissingDoc,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("strategy registry entry has an empty or duplicate strategy_id %q", e.StrategyID),
			})
			continue
		}
		seen[e.StrategyID] = true

		if !validAlgorithms[e.Combining.Algorithm] {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeStrategyBadAlgorithm,
				RuleID:   e.StrategyID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("strategy %q declares unknown combining algorithm %q", e.StrategyID, e.Combining.Algorithm),
			})
			continue
		}

		expectedHash, err := canonicalize.CanonicalHash(canonicalSemanticsKey{
			StrategyID: e.StrategyID,
			Kind:       e.Kind,
			Name:       e.Name,
			Combining:  e.Combining,
		})
		if err != nil {
			return "", err
		}
		if expectedHash != e.CanonicalSemanticsHashSHA256 {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeStrategyHashMismatch,
				RuleID:   e.StrategyID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("strategy %q canonical_semantics_hash_sha256 mismatch: declared %q, computed %q", e.StrategyID, e.CanonicalSemanticsHashSHA256, expectedHash),
			})
		}

		for _, fx := range e.Fixtures {
			decision, err := Resolve(e.Combining.Algorithm, fx.Effects)
			if err != nil {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeStrategyFixtureMismatch,
					RuleID:   e.StrategyID,
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("strategy %q fixture %q: %v", e.StrategyID, fx.Name, err),
				})
				continue
			}
			if decision != fx.ExpectedDecision {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeStrategyFixtureMismatch,
					RuleID:   e.StrategyID,
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("strategy %q fixture %q: expected decision %q, resolved %q", e.StrategyID, fx.Name, fx.ExpectedDecision, decision),
				})
			}
		}
	}

	return canonicalize.CanonicalHash(registry)
}

// Resolve orders effects by link id ascending and applies the named
// algorithm's resolution rule, per spec.md §4.18.
func Resolve(algorithm model.CombiningAlgorithm, effects []model.StrategyFixtureEffect) (string, error) {
	ordered := append([]model.StrategyFixtureEffect(nil), effects...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].LinkID < ordered[j].LinkID })

	switch algorithm {
	case model.AlgorithmDenyOverrides:
		for _, e := range ordered {
			if e.Decision == "deny" {
				return "deny", nil
			}
		}
		for _, e := range ordered {
			if e.Decision == "permit" {
				return "permit", nil
			}
		}
		return "not_applicable", nil

	case model.AlgorithmPermitOverrides:
		for _, e := range ordered {
			if e.Decision == "permit" {
				return "permit", nil
			}
		}
		for _, e := range ordered {
			if e.Decision == "deny" {
				return "deny", nil
			}
		}
		return "not_applicable", nil

	case model.AlgorithmFirstApplicable:
		for _, e := range ordered {
			if e.Decision != "not_applicable" {
				return e.Decision, nil
			}
		}
		return "not_applicable", nil

	case model.AlgorithmOnlyOneApplicable:
		var applicable string
		count := 0
		for _, e := range ordered {
			if e.Decision != "not_applicable" {
				applicable = e.Decision
				count++
			}
		}
		if count > 1 {
			return "", fmt.Errorf("only_one_applicable violated: %d applicable effects", count)
		}
		if count == 0 {
			return "not_applicable", nil
		}
		return applicable, nil

	default:
		return "", fmt.Errorf("unknown combining algorithm %q", algorithm)
	}
}

// CheckCELWhenProfiles implements the SPEC_FULL.md addition to §4.18: any
// rule carrying an x_cel_when extension must pass CEL-DP static
// validation, since its combining algorithm (resolved through the rule's
// pack/profile wiring by the caller) depends on a deterministic trigger.
// A banned construct is strategy_registry.cel_profile_violation.
func CheckCELWhenProfiles(rules []model.BondRule, collector *errorir.Collector) {
	for _, r := range rules {
		raw, ok := r.Extensions["x_cel_when"]
		if !ok {
			continue
		}
		var expr string
		if err := json.Unmarshal(raw, &expr); err != nil {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeStrategyCELProfileViolation,
				RuleID:   r.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("rule %q x_cel_when is not a string expression", r.ID),
			})
			continue
		}
		if issues := predicate.ValidateExpression(expr); len(issues) > 0 {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeStrategyCELProfileViolation,
				RuleID:   r.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("rule %q x_cel_when violates the %s profile: %+v", r.ID, predicate.CELDPProfileID, issues),
			})
		}
	}
}
