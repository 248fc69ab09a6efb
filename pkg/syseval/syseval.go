// Package syseval implements the System Evaluator: cross-compound link and
// membrane validation, and endorsement semantics over a system document.
package syseval

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// CompoundResolver resolves a system's alias -> compound-path references
// into the already-loaded compound and its element-id set, and reports
// whether a given capability is present among the compound's elements
// (element ids double as capability names when the membrane pack models
// them that way; the index already validates element references, so this
// package treats "cap present" as "some resolved element of the compound
// carries that id"; tags are not consulted).
type CompoundResolver interface {
	ElementIDs(alias string) (map[string]bool, bool)
}

// EndorsementSemantics selects between identity_bearing and
// meaning_preserving endorsement handling for duplicate link groups.
type EndorsementSemantics = model.SPELMode

// Evaluate implements spec.md §4.8: builds the alias map, validates link
// endpoints/caps, groups links by (from,to,cap) and applies endorsement
// duplicate-group rules, and validates system waivers' targets.
func Evaluate(sys *model.System, resolver CompoundResolver, endorsement EndorsementSemantics, collector *errorir.Collector) {
	aliasSet := map[string]bool{}
	for _, c := range sys.Compounds {
		aliasSet[c.As] = true
	}

	type groupKey struct{ from, to, cap string }
	groups := map[groupKey][]model.SystemLink{}

	for _, link := range sys.Links {
		fromIDs, fromOK := resolver.ElementIDs(link.From)
		toIDs, toOK := resolver.ElementIDs(link.To)
		if !fromOK || !toOK {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeSystemLinkEndpoint,
				Kind:     "system",
				SystemID: sys.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("system %q: link %s->%s has a missing endpoint", sys.ID, link.From, link.To),
			})
			continue
		}
		if !fromIDs[link.Via.Cap] || !toIDs[link.Via.Cap] {
			collector.Add(errorir.Violation{
				Code:     errorir.CodeSystemLinkCap,
				Kind:     "system",
				SystemID: sys.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("system %q: link %s->%s capability %q is missing from one endpoint", sys.ID, link.From, link.To, link.Via.Cap),
			})
			continue
		}

		key := groupKey{link.From, link.To, link.Via.Cap}
		groups[key] = append(groups[key], link)
	}

	var keys []groupKey
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].from != keys[j].from {
			return keys[i].from < keys[j].from
		}
		if keys[i].to != keys[j].to {
			return keys[i].to < keys[j].to
		}
		return keys[i].cap < keys[j].cap
	})

	for _, k := range keys {
		links := groups[k]
		if len(links) <= 1 {
			continue
		}
		switch endorsement {
		case model.SPELMeaningPreserving:
			collector.Add(errorir.Violation{
				Code:     errorir.CodeSystemLinkAmbiguous,
				Kind:     "system",
				SystemID: sys.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("system %q: ambiguous endorsement among %d links %s->%s via %q", sys.ID, len(links), k.from, k.to, k.cap),
			})
		case model.SPELIdentityBearing:
			seen := map[string]bool{}
			for _, l := range links {
				if l.Via.EndorsementID == "" {
					collector.Add(errorir.Violation{
						Code:     errorir.CodeSystemLinkIDRequired,
						Kind:     "system",
						SystemID: sys.ID,
						Severity: errorir.SeverityError,
						Message:  fmt.Sprintf("system %q: link %s->%s via %q requires a non-empty endorsement_id under identity-bearing semantics", sys.ID, k.from, k.to, k.cap),
					})
					continue
				}
				if seen[l.Via.EndorsementID] {
					collector.Add(errorir.Violation{
						Code:     errorir.CodeSystemLinkIDDuplicate,
						Kind:     "system",
						SystemID: sys.ID,
						Severity: errorir.SeverityError,
						Message:  fmt.Sprintf("system %q: link group %s->%s via %q has duplicate endorsement_id %q", sys.ID, k.from, k.to, k.cap, l.Via.EndorsementID),
					})
					continue
				}
				seen[l.Via.EndorsementID] = true
			}
		}
	}

	linkExists := func(from, to string) bool {
		for _, l := range sys.Links {
			if l.From == from && l.To == to {
				return true
			}
		}
		return false
	}

	for _, w := range sys.Waivers {
		if w.Target != "system" {
			ok := false
			if len(w.Target) > 5 && w.Target[:5] == "link:" {
				rest := w.Target[5:]
				for i := 0; i+2 <= len(rest); i++ {
					if rest[i] == '-' && i+1 < len(rest) && rest[i+1] == '>' {
						from, to := rest[:i], rest[i+2:]
						if linkExists(from, to) {
							ok = true
						}
						break
					}
				}
			}
			if !ok {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeSystemWaiverInvalid,
					Kind:     "system",
					SystemID: sys.ID,
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("system %q: waiver target %q does not resolve to \"system\" or an existing link", sys.ID, w.Target),
				})
				continue
			}
		}
		for _, m := range w.Mitigations {
			if len(m) > 9 && m[:9] == "compound:" {
				alias := m[9:]
				if !aliasSet[alias] {
					collector.Add(errorir.Violation{
						Code:     errorir.CodeSystemWaiverInvalid,
						Kind:     "system",
						SystemID: sys.ID,
						Severity: errorir.SeverityError,
						Message:  fmt.Sprintf("system %q: waiver mitigation %q references unknown alias %q", sys.ID, m, alias),
					})
				}
			}
		}
	}
}
