package safetyenvelope

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/model"
)

func TestBuildAlwaysRecordsStrictTrue(t *testing.T) {
	env, _, err := Build("ship", model.SPELSemantics{}, &model.DomainRegistry{})
	require.NoError(t, err)
	assert.True(t, env.Strict)
	assert.Equal(t, SchemaID, env.Schema)
	assert.Equal(t, "ship", env.Profile)
}

func TestBuildCollectsSafetyFirstTaintDomains(t *testing.T) {
	registry := &model.DomainRegistry{Domains: []model.Domain{
		{ID: "d2", ComposeTiebreakStrategy: model.ComposeTiebreakSafetyFirstTaint},
		{ID: "d1", ComposeTiebreakStrategy: model.ComposeTiebreakLexicographicSmallest},
	}}
	env, _, err := Build("ship", model.SPELSemantics{}, registry)
	require.NoError(t, err)
	assert.Equal(t, []string{"d2"}, env.Summary.SafetyFirstTaintDomains)
}

func TestBuildCollectsSafetyFirstRemediationDomains(t *testing.T) {
	registry := &model.DomainRegistry{Domains: []model.Domain{
		{ID: "d1", RemediationAnyOfStrategy: model.RemediationSafetyFirst},
	}}
	env, _, err := Build("ship", model.SPELSemantics{}, registry)
	require.NoError(t, err)
	assert.Equal(t, []string{"d1"}, env.Summary.SafetyFirstRemediationDomains)
}

func TestBuildOmitsDomainsWithNoOverrides(t *testing.T) {
	registry := &model.DomainRegistry{Domains: []model.Domain{{ID: "d1"}}}
	env, _, err := Build("ship", model.SPELSemantics{}, registry)
	require.NoError(t, err)
	assert.Empty(t, env.DomainOverrides)
}

func TestBuildCollectsIdentityBearingSemantics(t *testing.T) {
	sem := model.SPELSemantics{
		Endorsement:      model.SPELIdentityBearing,
		Declassification: model.SPELMeaningPreserving,
		ControlFlow:      model.SPELIdentityBearing,
	}
	env, _, err := Build("ship", sem, &model.DomainRegistry{})
	require.NoError(t, err)
	assert.Equal(t, []string{"control_flow", "endorsement"}, env.Summary.IdentityBearingSemantics)
}

func TestBuildHashIsStableForEquivalentRegistryOrder(t *testing.T) {
	registry1 := &model.DomainRegistry{Domains: []model.Domain{
		{ID: "d1", RemediationAnyOfStrategy: model.RemediationSafetyFirst},
		{ID: "d2", RemediationAnyOfStrategy: model.RemediationSafetyFirst},
	}}
	registry2 := &model.DomainRegistry{Domains: []model.Domain{
		{ID: "d2", RemediationAnyOfStrategy: model.RemediationSafetyFirst},
		{ID: "d1", RemediationAnyOfStrategy: model.RemediationSafetyFirst},
	}}
	_, h1, err := Build("ship", model.SPELSemantics{}, registry1)
	require.NoError(t, err)
	_, h2, err := Build("ship", model.SPELSemantics{}, registry2)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
