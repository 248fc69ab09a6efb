package packcomposer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

func TestBuildEnablesExplicitAndDefaultPacks(t *testing.T) {
	packs := []model.BondPack{
		{ID: "p1", Domains: []string{"d1"}},
		{ID: "p2", Domains: []string{"d2"}, DefaultEnabled: true},
	}
	domains := &model.DomainRegistry{Domains: []model.Domain{{ID: "d1"}, {ID: "d2"}}}
	profile := model.Profile{Name: "ship", EnabledPacks: []string{"p1"}}

	c := errorir.NewCollector()
	comp := Build(profile, packs, domains, nil, c)
	c.Finalize()

	require.Len(t, c.Errors(), 0)
	assert.True(t, comp.IsEnabled("p1"))
	assert.True(t, comp.IsEnabled("p2"))
}

func TestBuildFlagsUnknownEnabledPack(t *testing.T) {
	domains := &model.DomainRegistry{}
	profile := model.Profile{Name: "ship", EnabledPacks: []string{"missing"}}

	c := errorir.NewCollector()
	Build(profile, nil, domains, nil, c)
	c.Finalize()

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeReferenceUnknownPack, errs[0].Code)
}

func TestBuildFlagsPackWithUnknownDomain(t *testing.T) {
	packs := []model.BondPack{{ID: "p1", Domains: []string{"ghost"}}}
	domains := &model.DomainRegistry{}

	c := errorir.NewCollector()
	Build(model.Profile{Name: "ship"}, packs, domains, nil, c)
	c.Finalize()

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeReferenceUnknownDomain, errs[0].Code)
}

func TestBuildFlagsDuplicateRuleIDAcrossBaseAndPack(t *testing.T) {
	base := []model.BondRule{{ID: "r1"}}
	packs := []model.BondPack{{ID: "p1", DefaultEnabled: true, Rules: []model.BondRule{{ID: "r1"}}}}
	domains := &model.DomainRegistry{}

	c := errorir.NewCollector()
	Build(model.Profile{Name: "ship"}, packs, domains, base, c)
	c.Finalize()

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeIDDuplicate, errs[0].Code)
}

func TestRulesForIncludesMembranePackOnlyWhenNeutralElementPresent(t *testing.T) {
	packs := []model.BondPack{
		{ID: "membrane", DefaultEnabled: true, Rules: []model.BondRule{{ID: "m1"}}},
	}
	domains := &model.DomainRegistry{}
	c := errorir.NewCollector()
	comp := Build(model.Profile{Name: "ship"}, packs, domains, nil, c)

	withNeutral := comp.RulesFor(true, map[string]bool{})
	withoutNeutral := comp.RulesFor(false, map[string]bool{})

	assert.Len(t, withNeutral, 1)
	assert.Len(t, withoutNeutral, 0)
}

func TestRulesForIncludesDomainPackWhenDomainsIntersect(t *testing.T) {
	packs := []model.BondPack{
		{ID: "p1", Domains: []string{"d1"}, DefaultEnabled: true, Rules: []model.BondRule{{ID: "r1"}}},
	}
	domains := &model.DomainRegistry{Domains: []model.Domain{{ID: "d1"}}}
	c := errorir.NewCollector()
	comp := Build(model.Profile{Name: "ship"}, packs, domains, nil, c)

	matched := comp.RulesFor(false, map[string]bool{"d1": true})
	unmatched := comp.RulesFor(false, map[string]bool{"d2": true})

	assert.Len(t, matched, 1)
	assert.Len(t, unmatched, 0)
}

func TestExistsAndRuleCountAndRuleToPack(t *testing.T) {
	packs := []model.BondPack{
		{ID: "p1", DefaultEnabled: true, Rules: []model.BondRule{{ID: "r1"}, {ID: "r2"}}},
	}
	domains := &model.DomainRegistry{}
	c := errorir.NewCollector()
	comp := Build(model.Profile{Name: "ship"}, packs, domains, nil, c)

	assert.True(t, comp.Exists("p1"))
	assert.False(t, comp.Exists("p2"))
	assert.Equal(t, 2, comp.RuleCount("p1"))
	assert.Equal(t, 0, comp.RuleCount("p2"))

	rtp := comp.RuleToPack()
	assert.Equal(t, "p1", rtp["r1"])
	assert.Equal(t, "p1", rtp["r2"])
}
