// Package domainfed implements Domain Federation: inferring a compound's
// domain, validating declared-vs-inferred agreement, immiscibility,
// domain-to-pack enforcement, and flow/workshop pairing.
package domainfed

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// Inference is the result of inferring a compound's non-neutral domain
// from its elements.
type Inference struct {
	// NonNeutralDomains is the union of element domains with all neutral
	// domains removed.
	NonNeutralDomains map[string]bool
	// Inferred is the single non-neutral domain when exactly one exists;
	// empty when zero or ambiguous (more than one).
	Inferred string
	// Ambiguous is true when more than one non-neutral domain is present.
	Ambiguous bool
	// HasNeutralElement is true when at least one element belongs to a
	// neutral domain.
	HasNeutralElement bool
}

// Infer implements the domain-inference half of spec.md §4.7.
func Infer(elements []*model.Element, registry *model.DomainRegistry) Inference {
	neutral := registry.AllNeutral()
	nonNeutral := map[string]bool{}
	hasNeutral := false

	for _, el := range elements {
		if el.Domain == "" {
			continue
		}
		if neutral[el.Domain] {
			hasNeutral = true
			continue
		}
		nonNeutral[el.Domain] = true
	}

	inf := Inference{NonNeutralDomains: nonNeutral, HasNeutralElement: hasNeutral}
	switch len(nonNeutral) {
	case 0:
		// membrane-only compound
	case 1:
		for d := range nonNeutral {
			inf.Inferred = d
		}
	default:
		inf.Ambiguous = true
	}
	return inf
}

// CheckDeclaredVsInferred implements the declared-vs-inferred half of
// spec.md §4.7.
func CheckDeclaredVsInferred(compoundID, declared string, inf Inference, collector *errorir.Collector) {
	if declared == "" {
		return
	}
	if inf.Ambiguous {
		collector.Add(errorir.Violation{
			Code:       errorir.CodeDomainDeclaredAmbiguous,
			Kind:       "compound",
			CompoundID: compoundID,
			Severity:   errorir.SeverityError,
			Message:    fmt.Sprintf("compound %q declares domain %q but its elements imply more than one non-neutral domain; omit domain or split the compound", compoundID, declared),
		})
		return
	}
	if inf.Inferred != "" && inf.Inferred != declared {
		collector.Add(errorir.Violation{
			Code:       errorir.CodeDomainDeclaredMismatch,
			Kind:       "compound",
			CompoundID: compoundID,
			Severity:   errorir.SeverityError,
			Message:    fmt.Sprintf("compound %q declares domain %q but its elements imply %q", compoundID, declared, inf.Inferred),
		})
	}
}

// CheckImmiscibility implements the immiscibility half of spec.md §4.7:
// any pair of non-neutral domains present in the same compound that is
// listed in domains.immiscible[] is an error; neutral domains are always
// miscible (already excluded from NonNeutralDomains by Infer).
func CheckImmiscibility(compoundID string, inf Inference, registry *model.DomainRegistry, collector *errorir.Collector) {
	var domains []string
	for d := range inf.NonNeutralDomains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for i := 0; i < len(domains); i++ {
		for j := i + 1; j < len(domains); j++ {
			if registry.IsImmiscible(domains[i], domains[j]) {
				pair := model.ImmisciblePair{A: domains[i], B: domains[j]}.Sorted()
				collector.Add(errorir.Violation{
					Code:       errorir.CodeDomainImmiscible,
					Kind:       "compound",
					CompoundID: compoundID,
					Severity:   errorir.SeverityError,
					Message:    fmt.Sprintf("compound %q mixes immiscible domains (%s, %s)", compoundID, pair[0], pair[1]),
				})
			}
		}
	}
}

// PackLookup is the minimal pack-composer surface domain federation needs.
type PackLookup interface {
	IsEnabled(packID string) bool
}

// PackExistence reports whether a pack id exists at all (enabled or not),
// distinguishing packs.missing_for_domain (no such pack) from
// profile.pack_missing_for_domain (pack exists but isn't enabled).
type PackExistence interface {
	Exists(packID string) bool
}

// CheckDomainPackEnforcement implements the domain -> pack enforcement
// half of spec.md §4.7. membranePackID is required iff a neutral-domain
// element is used.
func CheckDomainPackEnforcement(compoundID string, inf Inference, packs PackLookup, exists PackExistence, membranePackID string, collector *errorir.Collector) {
	var domains []string
	for d := range inf.NonNeutralDomains {
		domains = append(domains, d)
	}
	sort.Strings(domains)

	for _, d := range domains {
		checkOneDomainPack(compoundID, d, packs, exists, collector)
	}
	if inf.HasNeutralElement {
		checkOneDomainPack(compoundID, membranePackID, packs, exists, collector)
	}
}

func checkOneDomainPack(compoundID, packID string, packs PackLookup, exists PackExistence, collector *errorir.Collector) {
	if !exists.Exists(packID) {
		collector.Add(errorir.Violation{
			Code:       errorir.CodePacksMissingForDomain,
			Kind:       "compound",
			CompoundID: compoundID,
			Severity:   errorir.SeverityError,
			Message:    fmt.Sprintf("compound %q uses domain %q but no pack with that id exists", compoundID, packID),
			Remediation: map[string]interface{}{"kind": "create_pack_stub", "pack_id": packID},
		})
		return
	}
	if !packs.IsEnabled(packID) {
		collector.Add(errorir.Violation{
			Code:       errorir.CodeProfilePackMissing,
			Kind:       "compound",
			CompoundID: compoundID,
			Severity:   errorir.SeverityError,
			Message:    fmt.Sprintf("compound %q uses domain %q but pack %q is not enabled under the active profile", compoundID, packID, packID),
			Remediation: map[string]interface{}{"kind": "enable_pack", "pack_id": packID},
		})
	}
}

// CheckFlowWorkshopPairs implements the flow<->workshop pairing half of
// spec.md §4.7.
func CheckFlowWorkshopPairs(compoundID string, elementIDs map[string]bool, pairs []model.FlowWorkshopPair, collector *errorir.Collector) {
	for _, p := range pairs {
		if elementIDs[p.Flow] && !elementIDs[p.Workshop] {
			sev := errorir.SeverityError
			if p.Severity == model.SeverityWarn {
				sev = errorir.SeverityWarn
			}
			collector.Add(errorir.Violation{
				Code:       errorir.CodePairFlowWorkshopMissing,
				Kind:       "compound",
				CompoundID: compoundID,
				Severity:   sev,
				Message:    p.Message,
				Remediation: map[string]interface{}{
					"kind":       "add_elements",
					"add_elements": []string{p.Workshop},
				},
			})
		}
	}
}
