// Package proofgraph implements Proof Graph v1: a deterministic DAG of
// rule/obligation/evidence/artifact satisfaction derived from the v6.1 and
// v6.2 explain-trace views.
package proofgraph

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/trace"
)

// NodeKind enumerates the closed set of node types spec.md §4.13 defines.
type NodeKind string

const (
	NodeRule         NodeKind = "rule"
	NodeObligation   NodeKind = "obligation"
	NodeEvidence     NodeKind = "evidence"
	NodeSatisfiedBy  NodeKind = "satisfied_by"
	NodeArtifact     NodeKind = "artifact"
	NodeMembraneEdge NodeKind = "membrane_edge"
	NodeContext      NodeKind = "context"
	NodeMeaning      NodeKind = "meaning"
	NodeStrategy     NodeKind = "strategy"
)

// EdgeRel enumerates the closed set of edge relations spec.md §4.13
// defines.
type EdgeRel string

const (
	RelRequires           EdgeRel = "requires"
	RelRequiresEvidence   EdgeRel = "requires_evidence"
	RelSatisfiedBy        EdgeRel = "satisfied_by"
	RelDerivedFrom         EdgeRel = "derived_from"
	RelSatisfiedByArtifact EdgeRel = "satisfied_by_artifact"
	RelAppliedAt           EdgeRel = "applied_at"
	RelHasContext          EdgeRel = "has_context"
	RelDependsOn           EdgeRel = "depends_on"
)

// Node is one proof-graph node.
type Node struct {
	ID   string   `json:"id"`
	Kind NodeKind `json:"kind"`
	Meta interface{} `json:"meta,omitempty"`
}

// Edge is one proof-graph edge.
type Edge struct {
	From string      `json:"from"`
	Rel  EdgeRel     `json:"rel"`
	To   string      `json:"to"`
	Meta interface{} `json:"meta,omitempty"`
}

// Graph is the full proof graph.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`

	// Digests bind the graph to the trace/safety-envelope hashes it was
	// built from, per spec.md §4.13.
	V61TraceHashSHA256       string `json:"v61_trace_hash_sha256,omitempty"`
	V62TraceHashSHA256       string `json:"v62_trace_hash_sha256,omitempty"`
	SafetyEnvelopeHashSHA256 string `json:"safety_envelope_hash_sha256,omitempty"`
}

// Builder accumulates nodes and edges before a single Finish call applies
// minimality, dedup, and sort.
type Builder struct {
	nodes map[string]Node
	edges map[string]Edge
}

// NewBuilder starts an empty proof-graph builder.
func NewBuilder() *Builder {
	return &Builder{nodes: map[string]Node{}, edges: map[string]Edge{}}
}

// AddNode registers a node by id; a later call with the same id overwrites
// the node's meta (last writer wins — callers are expected to supply the
// same meta for a given id every time).
func (b *Builder) AddNode(id string, kind NodeKind, meta interface{}) {
	b.nodes[id] = Node{ID: id, Kind: kind, Meta: meta}
}

// AddEdge registers an edge, deduplicated by (from, rel, to,
// canonical(meta)).
func (b *Builder) AddEdge(from string, rel EdgeRel, to string, meta interface{}) {
	canon, err := canonicalize.JCSString(meta)
	if err != nil {
		canon = ""
	}
	key := from + "\x1f" + string(rel) + "\x1f" + to + "\x1f" + canon
	b.edges[key] = Edge{From: from, Rel: rel, To: to, Meta: meta}
}

// Finish applies the minimality rule (rule/context nodes must participate
// in >=1 edge; otherwise they're dropped), sorts nodes by id and edges by
// (from, rel, to, meta), and returns the finished graph plus its hash.
func (b *Builder) Finish(v61Hash, v62Hash, safetyEnvelopeHash string) (Graph, string, error) {
	participates := map[string]bool{}
	for _, e := range b.edges {
		participates[e.From] = true
		participates[e.To] = true
	}

	var nodes []Node
	for id, n := range b.nodes {
		if (n.Kind == NodeRule || n.Kind == NodeContext) && !participates[id] {
			continue
		}
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	var edges []Edge
	for _, e := range b.edges {
		edges = append(edges, e)
	}
	sort.Slice(edges, func(i, j int) bool {
		a, c := edges[i], edges[j]
		if a.From != c.From {
			return a.From < c.From
		}
		if a.Rel != c.Rel {
			return a.Rel < c.Rel
		}
		if a.To != c.To {
			return a.To < c.To
		}
		am, _ := canonicalize.JCSString(a.Meta)
		cm, _ := canonicalize.JCSString(c.Meta)
		return am < cm
	})

	g := Graph{
		Nodes:                    nodes,
		Edges:                    edges,
		V61TraceHashSHA256:       v61Hash,
		V62TraceHashSHA256:       v62Hash,
		SafetyEnvelopeHashSHA256: safetyEnvelopeHash,
	}
	hash, err := canonicalize.CanonicalHash(g)
	if err != nil {
		return Graph{}, "", err
	}
	return g, hash, nil
}

// BuildFromEntries derives the proof graph from a run's trace entries
// (the same entries the v6.1/v6.2 views were built from), plus the hashes
// those views and the safety envelope produced. Each entry contributes a
// rule node, an obligation node (one per entry, since each fired entry
// represents one rule's obligation outcome for one target), and, for each
// evidence binding, an evidence node, a satisfied_by node per satisfying
// element, and (when present) a context node and an artifact node.
func BuildFromEntries(entries []trace.Entry, v61Hash, v62Hash, safetyEnvelopeHash string) (Graph, string, error) {
	b := NewBuilder()
	for i, e := range entries {
		ruleNode := "rule:" + e.RuleID
		b.AddNode(ruleNode, NodeRule, nil)

		obligationNode := fmt.Sprintf("obligation:%s:%s:%d", e.Kind, e.CompoundID, i)
		b.AddNode(obligationNode, NodeObligation, map[string]interface{}{"rule_id": e.RuleID, "compound_id": e.CompoundID})
		b.AddEdge(obligationNode, RelRequires, ruleNode, nil)

		for _, ev := range e.EvidenceSatisfiedBy {
			evidenceNode := "evidence:" + ev.EvidenceID
			b.AddNode(evidenceNode, NodeEvidence, nil)
			b.AddEdge(obligationNode, RelRequiresEvidence, evidenceNode, nil)

			if ev.Missing {
				continue
			}
			for _, elID := range ev.ElementIDs {
				satNode := "satisfied_by:" + ev.EvidenceID + ":" + elID
				b.AddNode(satNode, NodeSatisfiedBy, map[string]interface{}{"element_id": elID})
				b.AddEdge(evidenceNode, RelSatisfiedBy, satNode, nil)
			}
			if ev.ContextID != "" {
				ctxNode := "context:" + ev.ContextID
				b.AddNode(ctxNode, NodeContext, nil)
				b.AddEdge(evidenceNode, RelHasContext, ctxNode, nil)
			}
			if ev.MembraneEdgeID != "" {
				medgeNode := "membrane_edge:" + ev.MembraneEdgeID
				b.AddNode(medgeNode, NodeMembraneEdge, nil)
				b.AddEdge(evidenceNode, RelAppliedAt, medgeNode, nil)
			}
			if ev.ParentEvidenceID != "" {
				b.AddEdge(evidenceNode, RelDerivedFrom, "evidence:"+ev.ParentEvidenceID, nil)
			}
			if ev.ArtifactURI != "" {
				artNode := "artifact:" + ev.ArtifactDigestSHA
				b.AddNode(artNode, NodeArtifact, map[string]interface{}{
					"kind": ev.ArtifactKind, "uri": ev.ArtifactURI, "digest_sha256": ev.ArtifactDigestSHA,
				})
				b.AddEdge(evidenceNode, RelSatisfiedByArtifact, artNode, nil)
			}
		}
	}
	return b.Finish(v61Hash, v62Hash, safetyEnvelopeHash)
}
