package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

func TestBuildTraceEntriesMapsSystemAndCompoundTargets(t *testing.T) {
	violations := []errorir.Violation{
		{Kind: "compound", CompoundID: "c1", RuleID: "r1", Severity: errorir.SeverityError, Message: "m1"},
		{Kind: "system", SystemID: "s1", RuleID: "r2", Severity: errorir.SeverityWarn, Message: "m2"},
	}

	entries := buildTraceEntries(violations)
	require.Len(t, entries, 2)
	assert.Equal(t, "c1", entries[0].CompoundID)
	assert.Equal(t, "s1", entries[1].CompoundID)
	assert.Equal(t, "error", entries[0].Severity)
	assert.Equal(t, "warn", entries[1].Severity)
}

func TestBuildTraceEntriesCarriesEvidenceBindings(t *testing.T) {
	violations := []errorir.Violation{
		{
			Kind: "compound", CompoundID: "c1", RuleID: "r1",
			EvidenceSatisfiedBy: []errorir.EvidenceBinding{
				{EvidenceID: "e1", Missing: true, ElementIDs: []string{"el1"}},
			},
		},
	}
	entries := buildTraceEntries(violations)
	require.Len(t, entries, 1)
	require.Len(t, entries[0].EvidenceSatisfiedBy, 1)
	assert.Equal(t, "e1", entries[0].EvidenceSatisfiedBy[0].EvidenceID)
	assert.True(t, entries[0].EvidenceSatisfiedBy[0].Missing)
}

func TestBuildTraceEntriesEmptyInputYieldsEmptySlice(t *testing.T) {
	entries := buildTraceEntries(nil)
	assert.Len(t, entries, 0)
}

func TestObligationsHashSkipsViolationsWithoutRuleID(t *testing.T) {
	withRule := []errorir.Violation{
		{Kind: "compound", CompoundID: "c1", RuleID: "r1", Severity: errorir.SeverityError},
	}
	withExtra := append(append([]errorir.Violation{}, withRule...), errorir.Violation{
		Kind: "compound", CompoundID: "c1", RuleID: "", Severity: errorir.SeverityWarn,
	})

	h1, err := obligationsHash(withRule)
	require.NoError(t, err)
	h2, err := obligationsHash(withExtra)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestObligationsHashIsOrderIndependent(t *testing.T) {
	a := []errorir.Violation{
		{Kind: "compound", CompoundID: "c1", RuleID: "r1", Severity: errorir.SeverityError},
		{Kind: "system", SystemID: "s1", RuleID: "r2", Severity: errorir.SeverityWarn},
	}
	b := []errorir.Violation{a[1], a[0]}

	h1, err := obligationsHash(a)
	require.NoError(t, err)
	h2, err := obligationsHash(b)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestObligationsHashChangesWithSeverity(t *testing.T) {
	a := []errorir.Violation{{Kind: "compound", CompoundID: "c1", RuleID: "r1", Severity: errorir.SeverityError}}
	b := []errorir.Violation{{Kind: "compound", CompoundID: "c1", RuleID: "r1", Severity: errorir.SeverityWarn}}

	h1, err := obligationsHash(a)
	require.NoError(t, err)
	h2, err := obligationsHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeProfileContractHashIsOrderIndependentOverRules(t *testing.T) {
	rules := []model.BondRule{
		{ID: "r2", Message: "two"},
		{ID: "r1", Message: "one"},
	}
	reversed := []model.BondRule{rules[1], rules[0]}

	profile := model.Profile{Name: "ship"}
	h1, err := computeProfileContractHash(profile, []string{"pack-a"}, rules)
	require.NoError(t, err)
	h2, err := computeProfileContractHash(profile, []string{"pack-a"}, reversed)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}

func TestComputeProfileContractHashChangesWithEnabledPacks(t *testing.T) {
	rules := []model.BondRule{{ID: "r1"}}
	profile := model.Profile{Name: "ship"}

	h1, err := computeProfileContractHash(profile, []string{"pack-a"}, rules)
	require.NoError(t, err)
	h2, err := computeProfileContractHash(profile, []string{"pack-b"}, rules)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestComputeProfileContractHashChangesWithProfileName(t *testing.T) {
	rules := []model.BondRule{{ID: "r1"}}

	h1, err := computeProfileContractHash(model.Profile{Name: "ship"}, nil, rules)
	require.NoError(t, err)
	h2, err := computeProfileContractHash(model.Profile{Name: "audit"}, nil, rules)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}
