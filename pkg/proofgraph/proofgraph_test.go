package proofgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/trace"
)

func TestBuilderFinishDropsUnconnectedRuleAndContextNodes(t *testing.T) {
	b := NewBuilder()
	b.AddNode("rule:r1", NodeRule, nil)
	b.AddNode("context:c1", NodeContext, nil)
	b.AddNode("evidence:e1", NodeEvidence, nil)

	g, _, err := b.Finish("v61", "v62", "env")
	require.NoError(t, err)

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.NotContains(t, ids, "rule:r1")
	assert.NotContains(t, ids, "context:c1")
	assert.Contains(t, ids, "evidence:e1")
}

func TestBuilderFinishKeepsRuleNodeWhenItParticipatesInAnEdge(t *testing.T) {
	b := NewBuilder()
	b.AddNode("rule:r1", NodeRule, nil)
	b.AddNode("obligation:x", NodeObligation, nil)
	b.AddEdge("obligation:x", RelRequires, "rule:r1", nil)

	g, _, err := b.Finish("", "", "")
	require.NoError(t, err)
	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "rule:r1")
}

func TestBuilderAddEdgeDeduplicatesIdenticalEdges(t *testing.T) {
	b := NewBuilder()
	b.AddNode("a", NodeRule, nil)
	b.AddNode("b", NodeObligation, nil)
	b.AddEdge("b", RelRequires, "a", nil)
	b.AddEdge("b", RelRequires, "a", nil)

	g, _, err := b.Finish("", "", "")
	require.NoError(t, err)
	assert.Len(t, g.Edges, 1)
}

func TestBuilderFinishSortsNodesAndEdgesDeterministically(t *testing.T) {
	b := NewBuilder()
	b.AddNode("z", NodeObligation, nil)
	b.AddNode("a", NodeObligation, nil)
	b.AddEdge("z", RelRequires, "a", nil)
	b.AddEdge("a", RelRequires, "z", nil)

	g, _, err := b.Finish("", "", "")
	require.NoError(t, err)
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, "a", g.Nodes[0].ID)
	assert.Equal(t, "z", g.Nodes[1].ID)
	require.Len(t, g.Edges, 2)
	assert.Equal(t, "a", g.Edges[0].From)
}

func TestBuildFromEntriesCreatesRuleObligationAndEvidenceNodes(t *testing.T) {
	entries := []trace.Entry{
		{
			RuleID: "r1", Kind: "compound", CompoundID: "c1",
			EvidenceSatisfiedBy: []trace.EvidenceBinding{
				{EvidenceID: "ev1", ElementIDs: []string{"el1"}, ContextID: "ctx1"},
			},
		},
	}
	g, _, err := BuildFromEntries(entries, "v61hash", "v62hash", "envhash")
	require.NoError(t, err)

	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.Contains(t, ids, "rule:r1")
	assert.Contains(t, ids, "evidence:ev1")
	assert.Contains(t, ids, "satisfied_by:ev1:el1")
	assert.Contains(t, ids, "context:ctx1")
	assert.Equal(t, "v61hash", g.V61TraceHashSHA256)
	assert.Equal(t, "envhash", g.SafetyEnvelopeHashSHA256)
}

func TestBuildFromEntriesSkipsElementNodesForMissingEvidence(t *testing.T) {
	entries := []trace.Entry{
		{
			RuleID: "r1", Kind: "compound", CompoundID: "c1",
			EvidenceSatisfiedBy: []trace.EvidenceBinding{
				{EvidenceID: "ev1", Missing: true, ElementIDs: []string{"el1"}},
			},
		},
	}
	g, _, err := BuildFromEntries(entries, "", "", "")
	require.NoError(t, err)
	var ids []string
	for _, n := range g.Nodes {
		ids = append(ids, n.ID)
	}
	assert.NotContains(t, ids, "satisfied_by:ev1:el1")
}

func TestBuildFromEntriesIsDeterministicAcrossRuns(t *testing.T) {
	entries := []trace.Entry{{RuleID: "r1", Kind: "compound", CompoundID: "c1"}}
	_, h1, err := BuildFromEntries(entries, "v61", "v62", "env")
	require.NoError(t, err)
	_, h2, err := BuildFromEntries(entries, "v61", "v62", "env")
	require.NoError(t, err)
	assert.Equal(t, h1, h2)
}
