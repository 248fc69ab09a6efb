// Package packcomposer resolves the active profile into an enabled-pack
// set and, per compound, the effective rule list that applies to it.
package packcomposer

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

const membranePackID = "membrane"

// Composer holds the resolved pack/rule wiring for one run: the active
// profile, its enabled packs, and the base rule set.
type Composer struct {
	Profile      model.Profile
	AllPacks     map[string]*model.BondPack
	EnabledPacks map[string]*model.BondPack
	BaseRules    []model.BondRule
	AllRuleIDs   map[string]bool
}

// Build resolves enabled packs from the profile (enabled_packs[] union
// packs with default_enabled=true) and validates pack/domain references.
func Build(profile model.Profile, packs []model.BondPack, domains *model.DomainRegistry,
	baseRules []model.BondRule, collector *errorir.Collector) *Composer {

	byID := make(map[string]*model.BondPack, len(packs))
	for i := range packs {
		byID[packs[i].ID] = &packs[i]
	}

	enabled := map[string]*model.BondPack{}
	for _, id := range profile.EnabledPacks {
		p, ok := byID[id]
		if !ok {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeReferenceUnknownPack,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("profile %q enables unknown pack %q", profile.Name, id),
			})
			continue
		}
		enabled[id] = p
	}
	for i := range packs {
		if packs[i].DefaultEnabled {
			enabled[packs[i].ID] = &packs[i]
		}
	}

	for _, p := range byID {
		for _, d := range p.Domains {
			if domains.ByID(d) == nil {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeReferenceUnknownDomain,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("pack %q declares unknown domain %q", p.ID, d),
				})
			}
		}
	}

	allIDs := map[string]bool{}
	for _, r := range baseRules {
		if allIDs[r.ID] {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeIDDuplicate,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("rule id %q is duplicated across base rules and enabled packs", r.ID),
			})
		}
		allIDs[r.ID] = true
	}
	var enabledIDs []string
	for id := range enabled {
		enabledIDs = append(enabledIDs, id)
	}
	sort.Strings(enabledIDs)
	for _, id := range enabledIDs {
		for _, r := range enabled[id].Rules {
			if allIDs[r.ID] {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeIDDuplicate,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("rule id %q is duplicated across base rules and enabled packs", r.ID),
				})
			}
			allIDs[r.ID] = true
		}
	}

	return &Composer{
		Profile:      profile,
		AllPacks:     byID,
		EnabledPacks: enabled,
		BaseRules:    baseRules,
		AllRuleIDs:   allIDs,
	}
}

// RulesFor returns the effective rule set applying to a compound: always
// the base rules, plus the membrane pack when the compound touches a
// neutral-domain element and membrane is enabled, plus every other enabled
// pack whose declared domains intersect the compound's inferred
// non-neutral domains.
func (c *Composer) RulesFor(compoundHasNeutralElement bool, inferredNonNeutralDomains map[string]bool) []model.BondRule {
	var out []model.BondRule
	out = append(out, c.BaseRules...)

	var enabledIDs []string
	for id := range c.EnabledPacks {
		enabledIDs = append(enabledIDs, id)
	}
	sort.Strings(enabledIDs)

	for _, id := range enabledIDs {
		pack := c.EnabledPacks[id]
		if id == membranePackID {
			if compoundHasNeutralElement {
				out = append(out, pack.Rules...)
			}
			continue
		}
		if intersects(pack.Domains, inferredNonNeutralDomains) {
			out = append(out, pack.Rules...)
		}
	}
	return out
}

func intersects(domains []string, set map[string]bool) bool {
	for _, d := range domains {
		if set[d] {
			return true
		}
	}
	return false
}

// IsEnabled reports whether a pack id is among the resolved enabled packs.
func (c *Composer) IsEnabled(packID string) bool {
	_, ok := c.EnabledPacks[packID]
	return ok
}

// Exists reports whether a pack id was declared at all, enabled or not.
func (c *Composer) Exists(packID string) bool {
	_, ok := c.AllPacks[packID]
	return ok
}

// RuleCount returns how many rules an enabled pack contributes. Unknown or
// disabled packs count as zero.
func (c *Composer) RuleCount(packID string) int {
	p, ok := c.EnabledPacks[packID]
	if !ok {
		return 0
	}
	return len(p.Rules)
}

// RuleToPack builds the rule-id -> pack-id mapping used by the
// Domain-Completion Gate to attribute negative-example cases to the pack
// whose rules they exercise. Base rules are absent from the map.
func (c *Composer) RuleToPack() map[string]string {
	out := map[string]string{}
	for id, p := range c.EnabledPacks {
		for _, r := range p.Rules {
			out[r.ID] = id
		}
	}
	return out
}
