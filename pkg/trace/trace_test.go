package trace

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSortOrdersBySeverityThenRuleID(t *testing.T) {
	entries := []Entry{
		{Profile: "ship", Severity: "warn", RuleID: "r2"},
		{Profile: "ship", Severity: "error", RuleID: "r1"},
	}
	sorted := Sort(append([]Entry(nil), entries...))
	assert.Equal(t, "error", sorted[0].Severity)
	assert.Equal(t, "warn", sorted[1].Severity)
}

func TestSortIsStableForEqualKeys(t *testing.T) {
	entries := []Entry{
		{RuleID: "r1", Message: "first"},
		{RuleID: "r1", Message: "first"},
	}
	sorted := Sort(append([]Entry(nil), entries...))
	assert.Equal(t, entries[0].Message, sorted[0].Message)
	assert.Equal(t, entries[1].Message, sorted[1].Message)
}

func TestBuildV2RendersTargetAndFiredBecause(t *testing.T) {
	entries := []Entry{{CompoundID: "c1", RuleID: "r1", Because: "x"}}
	v, err := BuildV2(entries)
	require.NoError(t, err)

	doc, ok := v.Document.([]v2Entry)
	require.True(t, ok)
	require.Len(t, doc, 1)
	assert.Equal(t, "c1", doc[0].Target.CompoundID)
	assert.Equal(t, "x", doc[0].FiredBecause.Because)
}

func TestBuildV3AddsPolicyDigests(t *testing.T) {
	entries := []Entry{{RuleID: "r1"}}
	v, err := BuildV3(entries, "contract-hash", "semantics-hash")
	require.NoError(t, err)
	doc, ok := v.Document.([]v3Entry)
	require.True(t, ok)
	require.Len(t, doc, 1)
	assert.Equal(t, "contract-hash", doc[0].Policy.Digest.SHA256)
	assert.Equal(t, "semantics-hash", doc[0].Policy.SemanticsDigest.SHA256)
	assert.Equal(t, 3, doc[0].V)
}

func TestBuildV6SkipsMissingBindingsInSatisfiedBy(t *testing.T) {
	entries := []Entry{{
		RuleID: "r1",
		EvidenceSatisfiedBy: []EvidenceBinding{
			{EvidenceID: "e1", Missing: true},
			{EvidenceID: "e2", ElementIDs: []string{"el1"}},
		},
	}}
	v, err := BuildV6(entries, "", "")
	require.NoError(t, err)
	doc, ok := v.Document.([]v6Entry)
	require.True(t, ok)
	require.Len(t, doc, 1)
	require.Len(t, doc[0].EvidenceSatisfiedBy, 1)
	assert.Equal(t, "e2", doc[0].EvidenceSatisfiedBy[0].EvidenceID)
}

func TestBuildV61LabelsVersionAsStringNotFloat(t *testing.T) {
	entries := []Entry{{RuleID: "r1"}}
	v, err := BuildV61(entries, "", "")
	require.NoError(t, err)
	data, err := json.Marshal(v.Document)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v":"6.1"`)
}

func TestBuildV61ComputesJustificationHashPerMapping(t *testing.T) {
	entries := []Entry{{
		RuleID: "r1",
		EvidenceSatisfiedBy: []EvidenceBinding{
			{EvidenceID: "e1", ContextID: "ctx1"},
		},
	}}
	v, err := BuildV61(entries, "", "")
	require.NoError(t, err)
	doc, ok := v.Document.([]v61Entry)
	require.True(t, ok)
	require.Len(t, doc[0].EvidenceSatisfiedBy, 1)
	assert.NotEmpty(t, doc[0].EvidenceSatisfiedBy[0].JustificationHashSHA256)
}

func TestBuildV62AddsArtifactRefsAndRequiresEvidence(t *testing.T) {
	entries := []Entry{{
		RuleID: "r1",
		EvidenceSatisfiedBy: []EvidenceBinding{
			{EvidenceID: "e1", ArtifactKind: "doc", ArtifactURI: "s3://x", ArtifactDigestSHA: "abc"},
		},
	}}
	v, err := BuildV62(entries, "", "")
	require.NoError(t, err)
	doc, ok := v.Document.([]v62Entry)
	require.True(t, ok)
	require.Len(t, doc[0].EvidenceSatisfiedBy, 1)
	require.Len(t, doc[0].EvidenceSatisfiedBy[0].ArtifactRefs, 1)
	assert.Equal(t, "abc", doc[0].EvidenceSatisfiedBy[0].ArtifactRefs[0].DigestSHA256)
	assert.Equal(t, []string{"e1"}, doc[0].RequiresEvidence)
}

func TestBuildAllProducesAllFiveViewsWithDistinctHashes(t *testing.T) {
	entries := []Entry{{
		RuleID: "r1",
		EvidenceSatisfiedBy: []EvidenceBinding{{EvidenceID: "e1", ElementIDs: []string{"el1"}}},
	}}
	views, err := BuildAll(entries, "contract", "semantics")
	require.NoError(t, err)

	hashes := map[string]bool{
		views.V2.Hash: true, views.V3.Hash: true, views.V6.Hash: true,
		views.V61.Hash: true, views.V62.Hash: true,
	}
	assert.Len(t, hashes, 5)
}
