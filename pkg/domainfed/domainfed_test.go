package domainfed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

func els(domains ...string) []*model.Element {
	out := make([]*model.Element, 0, len(domains))
	for i, d := range domains {
		out = append(out, &model.Element{ID: "el", Domain: d, Name: string(rune('a' + i))})
	}
	return out
}

func TestInferReturnsEmptyForMembraneOnlyCompound(t *testing.T) {
	registry := &model.DomainRegistry{NeutralDomain: "membrane"}
	inf := Infer(els("membrane"), registry)
	assert.Empty(t, inf.Inferred)
	assert.False(t, inf.Ambiguous)
	assert.True(t, inf.HasNeutralElement)
}

func TestInferPicksSingleNonNeutralDomain(t *testing.T) {
	registry := &model.DomainRegistry{NeutralDomain: "membrane"}
	inf := Infer(els("domain.a", "membrane"), registry)
	assert.Equal(t, "domain.a", inf.Inferred)
	assert.False(t, inf.Ambiguous)
}

func TestInferFlagsAmbiguousWhenMultipleNonNeutralDomains(t *testing.T) {
	registry := &model.DomainRegistry{}
	inf := Infer(els("domain.a", "domain.b"), registry)
	assert.True(t, inf.Ambiguous)
	assert.Empty(t, inf.Inferred)
}

func TestCheckDeclaredVsInferredFlagsMismatch(t *testing.T) {
	c := errorir.NewCollector()
	inf := Inference{Inferred: "domain.a"}
	CheckDeclaredVsInferred("c1", "domain.b", inf, c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeDomainDeclaredMismatch, errs[0].Code)
}

func TestCheckDeclaredVsInferredFlagsAmbiguous(t *testing.T) {
	c := errorir.NewCollector()
	inf := Inference{Ambiguous: true}
	CheckDeclaredVsInferred("c1", "domain.b", inf, c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeDomainDeclaredAmbiguous, errs[0].Code)
}

func TestCheckDeclaredVsInferredSkipsWhenDeclaredEmpty(t *testing.T) {
	c := errorir.NewCollector()
	CheckDeclaredVsInferred("c1", "", Inference{Ambiguous: true}, c)
	c.Finalize()
	assert.Len(t, c.Errors(), 0)
}

func TestCheckImmiscibilityFlagsListedPair(t *testing.T) {
	registry := &model.DomainRegistry{Immiscible: []model.ImmisciblePair{{A: "domain.a", B: "domain.b"}}}
	inf := Inference{NonNeutralDomains: map[string]bool{"domain.a": true, "domain.b": true}}
	c := errorir.NewCollector()
	CheckImmiscibility("c1", inf, registry, c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeDomainImmiscible, errs[0].Code)
}

func TestCheckImmiscibilityAllowsUnlistedPair(t *testing.T) {
	registry := &model.DomainRegistry{}
	inf := Inference{NonNeutralDomains: map[string]bool{"domain.a": true, "domain.b": true}}
	c := errorir.NewCollector()
	CheckImmiscibility("c1", inf, registry, c)
	c.Finalize()
	assert.Len(t, c.Errors(), 0)
}

type fakePacks struct {
	enabled map[string]bool
	exist   map[string]bool
}

func (f fakePacks) IsEnabled(id string) bool { return f.enabled[id] }
func (f fakePacks) Exists(id string) bool    { return f.exist[id] }

func TestCheckDomainPackEnforcementFlagsMissingPack(t *testing.T) {
	inf := Inference{NonNeutralDomains: map[string]bool{"domain.a": true}}
	packs := fakePacks{exist: map[string]bool{}}
	c := errorir.NewCollector()
	CheckDomainPackEnforcement("c1", inf, packs, packs, "", c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodePacksMissingForDomain, errs[0].Code)
}

func TestCheckDomainPackEnforcementFlagsDisabledPack(t *testing.T) {
	inf := Inference{NonNeutralDomains: map[string]bool{"domain.a": true}}
	packs := fakePacks{exist: map[string]bool{"domain.a": true}, enabled: map[string]bool{}}
	c := errorir.NewCollector()
	CheckDomainPackEnforcement("c1", inf, packs, packs, "", c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeProfilePackMissing, errs[0].Code)
}

func TestCheckDomainPackEnforcementChecksMembranePackWhenNeutralElementPresent(t *testing.T) {
	inf := Inference{HasNeutralElement: true}
	packs := fakePacks{exist: map[string]bool{}}
	c := errorir.NewCollector()
	CheckDomainPackEnforcement("c1", inf, packs, packs, "membrane-pack", c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodePacksMissingForDomain, errs[0].Code)
}

func TestCheckFlowWorkshopPairsFlagsMissingWorkshop(t *testing.T) {
	pairs := []model.FlowWorkshopPair{{Flow: "el.flow", Workshop: "el.workshop", Message: "needs workshop"}}
	elementIDs := map[string]bool{"el.flow": true}
	c := errorir.NewCollector()
	CheckFlowWorkshopPairs("c1", elementIDs, pairs, c)
	c.Finalize()
	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodePairFlowWorkshopMissing, errs[0].Code)
}

func TestCheckFlowWorkshopPairsPassesWhenBothPresent(t *testing.T) {
	pairs := []model.FlowWorkshopPair{{Flow: "el.flow", Workshop: "el.workshop"}}
	elementIDs := map[string]bool{"el.flow": true, "el.workshop": true}
	c := errorir.NewCollector()
	CheckFlowWorkshopPairs("c1", elementIDs, pairs, c)
	c.Finalize()
	assert.Len(t, c.Errors(), 0)
}

func TestCheckFlowWorkshopPairsHonorsWarnSeverity(t *testing.T) {
	pairs := []model.FlowWorkshopPair{{Flow: "el.flow", Workshop: "el.workshop", Severity: model.SeverityWarn}}
	elementIDs := map[string]bool{"el.flow": true}
	c := errorir.NewCollector()
	CheckFlowWorkshopPairs("c1", elementIDs, pairs, c)
	c.Finalize()
	assert.Len(t, c.Errors(), 0)
	assert.Len(t, c.Warnings(), 1)
}
