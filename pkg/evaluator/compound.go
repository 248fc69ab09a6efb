package evaluator

import (
	"fmt"
	"sort"
	"time"

	"github.com/periodic-system/evaluator/pkg/domainfed"
	"github.com/periodic-system/evaluator/pkg/elementindex"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/kappa"
	"github.com/periodic-system/evaluator/pkg/loader"
	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/obligation"
	"github.com/periodic-system/evaluator/pkg/packcomposer"
	"github.com/periodic-system/evaluator/pkg/predicate"
)

const membranePackID = "membrane"

// env bundles the read-only, run-wide dependencies every compound and
// system evaluation needs. It carries no collector and no cache of its
// own, so the same value serves both the main run and every isolated
// negative-example case.
type env struct {
	ElementIdx      *elementindex.Index
	Domains         *model.DomainRegistry
	Composer        *packcomposer.Composer
	FlowPairs       []model.FlowWorkshopPair
	Profile         model.Profile
	AsOf            time.Time
	PolicyURI       string
	spelEndorsement model.SPELMode
	// KappaTool overrides in-process canonicalization when set (the
	// --kappa-wasm path); nil means always canonicalize in-process.
	KappaTool kappa.Tool
}

// cachedCompound holds one compound's resolved view, so a compound
// referenced both standalone and from a system is evaluated exactly once.
type cachedCompound struct {
	Compound *model.Compound
	View     predicate.CompoundView
}

// evaluateCompoundCached loads, validates, and rule-evaluates the compound
// at path, memoizing the result in cache so repeated references (e.g. a
// compound used by more than one system) are evaluated once.
func (e *env) evaluateCompoundCached(ldr *loader.Loader, cache map[string]cachedCompound, path string, collector *errorir.Collector) (*model.Compound, predicate.CompoundView, error) {
	if c, ok := cache[path]; ok {
		return c.Compound, c.View, nil
	}
	compound, view, err := e.evaluateCompound(ldr, path, collector)
	if err != nil {
		return nil, predicate.CompoundView{}, err
	}
	cache[path] = cachedCompound{Compound: compound, View: view}
	return compound, view, nil
}

// evaluateCompound loads one compound document, runs domain federation,
// resolves the effective rule set for it, and evaluates every triggered
// rule's obligations against it.
func (e *env) evaluateCompound(ldr *loader.Loader, path string, collector *errorir.Collector) (*model.Compound, predicate.CompoundView, error) {
	compound, err := ldr.LoadCompound(path)
	if err != nil {
		return nil, predicate.CompoundView{}, err
	}

	elements := e.ElementIdx.ElementsOf(compound.ID, compound.Elements, collector)
	view := predicate.NewCompoundView(elements)

	inf := domainfed.Infer(elements, e.Domains)
	domainfed.CheckDeclaredVsInferred(compound.ID, compound.Domain, inf, collector)
	domainfed.CheckImmiscibility(compound.ID, inf, e.Domains, collector)
	domainfed.CheckDomainPackEnforcement(compound.ID, inf, e.Composer, e.Composer, membranePackID, collector)
	domainfed.CheckFlowWorkshopPairs(compound.ID, view.ElementIDs, e.FlowPairs, collector)

	rules := e.Composer.RulesFor(inf.HasNeutralElement, inf.NonNeutralDomains)

	domainObj := e.Domains.ByID(compound.Domain)
	if domainObj == nil {
		domainObj = e.Domains.ByID(inf.Inferred)
	}

	e.evaluateRules(compound, view, rules, domainObj, collector)
	return compound, view, nil
}

// evaluateRules runs every rule's when{} against view and, for each
// triggered rule, evaluates its require{} and evidence-binding obligation.
func (e *env) evaluateRules(compound *model.Compound, view predicate.CompoundView, rules []model.BondRule, domain *model.Domain, collector *errorir.Collector) {
	for _, rule := range rules {
		pr := predicate.Evaluate(rule.When, view)
		if !pr.Triggered {
			continue
		}
		outcome := obligation.Evaluate(rule, compound, e.ElementIdx, domain, view)
		if !outcome.Passed {
			e.addObligationFailure(compound, rule, outcome, pr, collector)
			continue
		}
		e.checkEvidenceBinding(compound, rule, outcome, pr, collector)
	}
}

// checkEvidenceBinding implements spec.md §4.6.1 for a rule whose
// obligations are otherwise satisfied: under explicit_only mode, every
// required evidence id must also appear in the compound's evidence
// binding list for that rule.
func (e *env) checkEvidenceBinding(compound *model.Compound, rule model.BondRule, outcome obligation.Outcome, pr predicate.Result, collector *errorir.Collector) {
	if compound.EffectiveEvidenceBindingMode() != model.EvidenceBindingExplicitOnly {
		return
	}
	if outcome.Requires == nil || len(outcome.Requires.EvidenceIDs) == 0 {
		return
	}
	bound := map[string]bool{}
	for _, id := range compound.EvidenceBindings[rule.ID] {
		bound[id] = true
	}
	var missing []string
	for _, id := range outcome.Requires.EvidenceIDs {
		if !bound[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return
	}
	sort.Strings(missing)

	sev := obligation.EffectiveSeverity(rule.ID, rule.Severity, e.Profile.SeverityOverrides)
	waived, scars, expired := obligation.ResolveWaiver(rule.ID, "compound", compound.Waivers, e.AsOf)
	if expired != nil {
		e.attributeViolation(expired, compound.ID, "")
		collector.Add(*expired)
		waived = false
		scars = nil
	}

	v := errorir.Violation{
		Code:                      errorir.CodeEvidenceBindingMissing,
		Kind:                      "compound",
		CompoundID:                compound.ID,
		RuleID:                    rule.ID,
		Severity:                  sev,
		Message:                   fmt.Sprintf("compound %q rule %q: evidence %v is not explicitly bound under evidence_binding_mode=explicit_only", compound.ID, rule.ID, missing),
		SourcePack:                rule.SourcePack,
		Because:                   pr.Because,
		Atom:                      map[string]interface{}{"kind": obligation.EvidenceBindingMissingAtom, "missing_evidence_ids": missing},
		Requires:                  outcome.Requires,
		Remediation:               obligation.Remediation{Kind: "bind_evidence_to_rule", RuleID: rule.ID, BindEvidenceIDs: missing},
		Obligations:               outcome.Requires.ObligationIDs,
		Evidence:                  outcome.Requires.EvidenceIDs,
		Waived:                    waived,
		WaiverScars:               scars,
		PolicyURI:                 e.PolicyURI,
		Profile:                   e.Profile.Name,
		EvidenceComplete:          false,
		MissingEvidenceIDs:        outcome.Requires.MissingEvidenceIDs,
		MissingEvidenceBindingIDs: missing,
		EvidenceSatisfiedBy:       buildSatisfiedBy(outcome.Requires, missing),
	}
	collector.Add(v)
}

// addObligationFailure records a rule whose require{} clause is not
// satisfied, after resolving severity and waiver suppression.
func (e *env) addObligationFailure(compound *model.Compound, rule model.BondRule, outcome obligation.Outcome, pr predicate.Result, collector *errorir.Collector) {
	sev := obligation.EffectiveSeverity(rule.ID, rule.Severity, e.Profile.SeverityOverrides)
	waived, scars, expired := obligation.ResolveWaiver(rule.ID, "compound", compound.Waivers, e.AsOf)
	if expired != nil {
		e.attributeViolation(expired, compound.ID, "")
		collector.Add(*expired)
		waived = false
		scars = nil
	}

	var missingEvidence []string
	var obligationIDs, evidenceIDs []string
	if outcome.Requires != nil {
		missingEvidence = outcome.Requires.MissingEvidenceIDs
		obligationIDs = outcome.Requires.ObligationIDs
		evidenceIDs = outcome.Requires.EvidenceIDs
	}

	v := errorir.Violation{
		Code:                errorir.CodeRuleObligationUnmet,
		Kind:                "compound",
		CompoundID:          compound.ID,
		RuleID:              rule.ID,
		Severity:            sev,
		Message:             rule.Message,
		SourcePack:          rule.SourcePack,
		Because:             pr.Because,
		Atom:                outcome.Atom,
		Requires:            outcome.Requires,
		Remediation:         outcome.Remediation,
		Obligations:         obligationIDs,
		Evidence:            evidenceIDs,
		Waived:              waived,
		WaiverScars:         scars,
		PolicyURI:           e.PolicyURI,
		Profile:             e.Profile.Name,
		EvidenceComplete:    len(missingEvidence) == 0,
		MissingEvidenceIDs:  missingEvidence,
		EvidenceSatisfiedBy: buildSatisfiedBy(outcome.Requires, missingEvidence),
	}
	collector.Add(v)
}

// attributeViolation fills in the run-wide fields a package-level helper
// (obligation.ResolveWaiver) cannot know when it builds a waiver.expired
// violation in isolation.
func (e *env) attributeViolation(v *errorir.Violation, compoundID, systemID string) {
	if systemID != "" {
		v.Kind = "system"
		v.SystemID = systemID
	} else {
		v.Kind = "compound"
		v.CompoundID = compoundID
	}
	v.PolicyURI = e.PolicyURI
	v.Profile = e.Profile.Name
}

// buildSatisfiedBy synthesizes the v6+ evidence-satisfaction mapping from
// the obligation engine's raw evidence id list: an evidence id not in
// missing is taken to be satisfied by the compound element carrying that
// same id (evidence elements are their own proof of presence).
func buildSatisfiedBy(req *obligation.Requires, missing []string) []errorir.EvidenceBinding {
	if req == nil {
		return nil
	}
	missingSet := map[string]bool{}
	for _, id := range missing {
		missingSet[id] = true
	}
	out := make([]errorir.EvidenceBinding, 0, len(req.EvidenceIDs))
	for _, id := range req.EvidenceIDs {
		if missingSet[id] {
			out = append(out, errorir.EvidenceBinding{EvidenceID: id, Missing: true})
			continue
		}
		out = append(out, errorir.EvidenceBinding{EvidenceID: id, ElementIDs: []string{id}})
	}
	return out
}
