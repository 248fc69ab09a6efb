// Package safetyenvelope implements the Safety Envelope: a summary
// document binding a profile's strict-mode semantics and per-domain
// remediation/compose strategy overrides into one hashed artifact.
package safetyenvelope

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/model"
)

const SchemaID = "spel.safety_envelope.v1"

// DomainOverride records one domain's compose/remediation tie-break
// strategy, when it diverges from the registry default.
type DomainOverride struct {
	DomainID                 string                          `json:"domain_id"`
	ComposeTiebreakStrategy  model.ComposeTiebreakStrategy    `json:"compose_tiebreak_strategy,omitempty"`
	RemediationAnyOfStrategy model.RemediationAnyOfStrategy   `json:"remediation_any_of_strategy,omitempty"`
}

// Summary lists, sorted, the safety-first domain ids and the
// identity-bearing semantics fields, per spec.md §4.14.
type Summary struct {
	SafetyFirstTaintDomains       []string `json:"safety_first_taint_domains"`
	SafetyFirstRemediationDomains []string `json:"safety_first_remediation_domains"`
	IdentityBearingSemantics      []string `json:"identity_bearing_semantics"`
}

// Envelope is the rendered safety-envelope document.
type Envelope struct {
	Schema         string                `json:"schema"`
	Profile        string                `json:"profile"`
	Strict         bool                  `json:"strict"`
	Semantics      model.SPELSemantics   `json:"semantics"`
	DomainOverrides []DomainOverride     `json:"domain_overrides"`
	Summary        Summary               `json:"summary"`
}

// Build implements spec.md §4.14. Strict is always recorded as true: the
// envelope documents the strict-mode contract itself, not the mode the
// current run happened to use.
func Build(profile string, semantics model.SPELSemantics, registry *model.DomainRegistry) (Envelope, string, error) {
	var overrides []DomainOverride
	var taintDomains, remediationDomains []string

	for _, d := range registry.Domains {
		if d.ComposeTiebreakStrategy == "" && d.RemediationAnyOfStrategy == "" {
			continue
		}
		overrides = append(overrides, DomainOverride{
			DomainID:                 d.ID,
			ComposeTiebreakStrategy:  d.ComposeTiebreakStrategy,
			RemediationAnyOfStrategy: d.RemediationAnyOfStrategy,
		})
		if d.ComposeTiebreakStrategy == model.ComposeTiebreakSafetyFirstTaint {
			taintDomains = append(taintDomains, d.ID)
		}
		if d.RemediationAnyOfStrategy == model.RemediationSafetyFirst {
			remediationDomains = append(remediationDomains, d.ID)
		}
	}
	sort.Slice(overrides, func(i, j int) bool { return overrides[i].DomainID < overrides[j].DomainID })
	sort.Strings(taintDomains)
	sort.Strings(remediationDomains)

	var identityBearing []string
	for field, mode := range map[string]model.SPELMode{
		"endorsement":      semantics.Endorsement,
		"declassification": semantics.Declassification,
		"control_flow":     semantics.ControlFlow,
		"termination":      semantics.Termination,
		"timing":           semantics.Timing,
	} {
		if mode == model.SPELIdentityBearing {
			identityBearing = append(identityBearing, field)
		}
	}
	sort.Strings(identityBearing)

	env := Envelope{
		Schema:    SchemaID,
		Profile:   profile,
		Strict:    true,
		Semantics: semantics,
		DomainOverrides: func() []DomainOverride {
			if overrides == nil {
				return []DomainOverride{}
			}
			return overrides
		}(),
		Summary: Summary{
			SafetyFirstTaintDomains:       nonNil(taintDomains),
			SafetyFirstRemediationDomains: nonNil(remediationDomains),
			IdentityBearingSemantics:      nonNil(identityBearing),
		},
	}
	hash, err := canonicalize.CanonicalHash(env)
	if err != nil {
		return Envelope{}, "", err
	}
	return env, hash, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
