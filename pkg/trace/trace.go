// Package trace implements the Explain Trace Builder: it turns the
// collected violations of a run into the sorted v2/v3/v6/v6.1/v6.2 views
// spec.md §4.12 defines, each with its own stable hash.
package trace

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
)

// EvidenceBinding is one evidence_id's satisfaction mapping, threaded
// through from the obligation engine/evidence-binding check into the v6+
// views.
type EvidenceBinding struct {
	EvidenceID        string
	Missing           bool
	ElementIDs        []string // satisfying compound_element ids, sorted
	ContextID         string
	MembraneEdgeID    string
	InferenceRuleID   string
	ParentEvidenceID  string
	DerivationSteps   []string
	ArtifactKind      string
	ArtifactURI       string
	ArtifactDigestSHA string
}

// Entry is one trace entry's full set of fields, as collected from a
// single errorir.Violation plus its evidence-binding detail (if any). The
// builder never re-evaluates anything; it only remaps and sorts.
type Entry struct {
	Profile      string
	PolicyURI    string
	Kind         string // "compound" | "system"
	CompoundID   string
	RuleID       string
	Severity     string
	Message      string
	Because      interface{}
	Atom         interface{}
	Requires     interface{}
	Remediation  interface{}
	Obligations  interface{}
	Evidence     interface{}
	SourcePack   string
	Waived       bool
	WaiverScars  interface{}

	// EvidenceComplete and friends feed the v6 closure block.
	EvidenceComplete            bool
	MissingEvidenceIDs          []string
	MissingEvidenceBindingIDs   []string
	EvidenceSatisfiedBy         []EvidenceBinding
}

// sortKey renders spec.md §4.12's ordering tuple as a slice of fields;
// Sort compares two keys field by field, each field as a string.
func sortKey(e Entry) []string {
	ss := func(v interface{}) string {
		s, err := canonicalize.JCSString(v)
		if err != nil {
			return ""
		}
		return s
	}
	waived := "0"
	if e.Waived {
		waived = "1"
	}
	return []string{
		e.Profile, e.Severity, e.Kind, e.RuleID, e.CompoundID, waived,
		e.SourcePack, e.PolicyURI,
		ss(e.Atom), ss(e.Requires), ss(e.Obligations), ss(e.Evidence),
		ss(e.Remediation), ss(e.WaiverScars), e.Message,
	}
}

// Sort orders entries per spec.md §4.12, in place, and returns the slice.
func Sort(entries []Entry) []Entry {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := sortKey(entries[i]), sortKey(entries[j])
		for k := range a {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return false
	})
	return entries
}

// View is one hashed explain-trace view: the rendered document plus its
// stable hash.
type View struct {
	Document interface{}
	Hash     string
}

// v2Fired is the fired_because sub-object of a v2 entry.
type v2Fired struct {
	Because interface{} `json:"because,omitempty"`
	Atom    interface{} `json:"atom,omitempty"`
}

type v2Target struct {
	CompoundID string `json:"compound_id,omitempty"`
}

type v2Policy struct {
	URI string `json:"uri"`
}

type v2Entry struct {
	Profile     string      `json:"profile"`
	Policy      v2Policy    `json:"policy"`
	Kind        string      `json:"kind"`
	Target      v2Target    `json:"target"`
	RuleID      string      `json:"rule_id"`
	Severity    string      `json:"severity"`
	FiredBecause v2Fired    `json:"fired_because"`
	Requires    interface{} `json:"requires,omitempty"`
	Obligations interface{} `json:"obligations,omitempty"`
	Evidence    interface{} `json:"evidence,omitempty"`
	Remediation interface{} `json:"remediation,omitempty"`
	SourcePack  string      `json:"source_pack,omitempty"`
	Waived      bool        `json:"waived"`
	WaiverScars interface{} `json:"waiver_scars,omitempty"`
	Message     string      `json:"message"`
}

func toV2(e Entry) v2Entry {
	return v2Entry{
		Profile:      e.Profile,
		Policy:       v2Policy{URI: e.PolicyURI},
		Kind:         e.Kind,
		Target:       v2Target{CompoundID: e.CompoundID},
		RuleID:       e.RuleID,
		Severity:     e.Severity,
		FiredBecause: v2Fired{Because: e.Because, Atom: e.Atom},
		Requires:     e.Requires,
		Obligations:  e.Obligations,
		Evidence:     e.Evidence,
		Remediation:  e.Remediation,
		SourcePack:   e.SourcePack,
		Waived:       e.Waived,
		WaiverScars:  e.WaiverScars,
		Message:      e.Message,
	}
}

// BuildV2 renders the v2 view: sorted entries remapped per spec.md §4.12.
func BuildV2(entries []Entry) (View, error) {
	sorted := Sort(append([]Entry(nil), entries...))
	doc := make([]v2Entry, 0, len(sorted))
	for _, e := range sorted {
		doc = append(doc, toV2(e))
	}
	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return View{}, err
	}
	return View{Document: doc, Hash: hash}, nil
}

type v3Policy struct {
	URI            string    `json:"uri"`
	Digest         v3Digest  `json:"digest"`
	SemanticsDigest v3Digest `json:"semantics_digest"`
}

type v3Digest struct {
	SHA256 string `json:"sha256"`
}

type v3Entry struct {
	V           int         `json:"v"`
	Profile     string      `json:"profile"`
	Policy      v3Policy    `json:"policy"`
	Kind        string      `json:"kind"`
	Target      v2Target    `json:"target"`
	RuleID      string      `json:"rule_id"`
	Severity    string      `json:"severity"`
	FiredBecause v2Fired    `json:"fired_because"`
	Requires    interface{} `json:"requires,omitempty"`
	Obligations interface{} `json:"obligations,omitempty"`
	Evidence    interface{} `json:"evidence,omitempty"`
	Remediation interface{} `json:"remediation,omitempty"`
	SourcePack  string      `json:"source_pack,omitempty"`
	Waived      bool        `json:"waived"`
	WaiverScars interface{} `json:"waiver_scars,omitempty"`
	Message     string      `json:"message"`
}

func toV3(e Entry, profileContractHash, semanticsDigest string) v3Entry {
	v2 := toV2(e)
	return v3Entry{
		V:       3,
		Profile: v2.Profile,
		Policy: v3Policy{
			URI:             v2.Policy.URI,
			Digest:          v3Digest{SHA256: profileContractHash},
			SemanticsDigest: v3Digest{SHA256: semanticsDigest},
		},
		Kind:         v2.Kind,
		Target:       v2.Target,
		RuleID:       v2.RuleID,
		Severity:     v2.Severity,
		FiredBecause: v2.FiredBecause,
		Requires:     v2.Requires,
		Obligations:  v2.Obligations,
		Evidence:     v2.Evidence,
		Remediation:  v2.Remediation,
		SourcePack:   v2.SourcePack,
		Waived:       v2.Waived,
		WaiverScars:  v2.WaiverScars,
		Message:      v2.Message,
	}
}

// BuildV3 renders the v3 view: v2 plus policy digest fields.
func BuildV3(entries []Entry, profileContractHash, semanticsDigest string) (View, error) {
	sorted := Sort(append([]Entry(nil), entries...))
	doc := make([]v3Entry, 0, len(sorted))
	for _, e := range sorted {
		doc = append(doc, toV3(e, profileContractHash, semanticsDigest))
	}
	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return View{}, err
	}
	return View{Document: doc, Hash: hash}, nil
}

type closure struct {
	EvidenceComplete          bool     `json:"evidence_complete"`
	MissingEvidenceIDs        []string `json:"missing_evidence_ids,omitempty"`
	MissingEvidenceBindingIDs []string `json:"missing_evidence_binding_ids,omitempty"`
}

type satisfiedByRef struct {
	Kind      string `json:"kind"`
	ElementID string `json:"element_id"`
}

type v6Entry struct {
	v3Entry
	Closure            closure                `json:"closure"`
	EvidenceSatisfiedBy []v6SatisfactionMapping `json:"evidence_satisfied_by,omitempty"`
}

type v6SatisfactionMapping struct {
	EvidenceID string           `json:"evidence_id"`
	SatisfiedBy []satisfiedByRef `json:"satisfied_by,omitempty"`
}

func buildSatisfiedBy(bindings []EvidenceBinding) []v6SatisfactionMapping {
	out := make([]v6SatisfactionMapping, 0, len(bindings))
	for _, b := range bindings {
		if b.Missing {
			continue
		}
		refs := make([]satisfiedByRef, 0, len(b.ElementIDs))
		for _, id := range b.ElementIDs {
			refs = append(refs, satisfiedByRef{Kind: "compound_element", ElementID: id})
		}
		out = append(out, v6SatisfactionMapping{EvidenceID: b.EvidenceID, SatisfiedBy: refs})
	}
	return out
}

// BuildV6 renders the v6 view: v3 plus the evidence-closure block and a
// direct evidence_id -> satisfied_by mapping.
func BuildV6(entries []Entry, profileContractHash, semanticsDigest string) (View, error) {
	sorted := Sort(append([]Entry(nil), entries...))
	doc := make([]v6Entry, 0, len(sorted))
	for _, e := range sorted {
		doc = append(doc, v6Entry{
			v3Entry: toV3(e, profileContractHash, semanticsDigest),
			Closure: closure{
				EvidenceComplete:          e.EvidenceComplete,
				MissingEvidenceIDs:        e.MissingEvidenceIDs,
				MissingEvidenceBindingIDs: e.MissingEvidenceBindingIDs,
			},
			EvidenceSatisfiedBy: buildSatisfiedBy(e.EvidenceSatisfiedBy),
		})
	}
	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return View{}, err
	}
	return View{Document: doc, Hash: hash}, nil
}

type v61Mapping struct {
	EvidenceID             string           `json:"evidence_id"`
	SatisfiedBy            []satisfiedByRef `json:"satisfied_by,omitempty"`
	ContextID               string          `json:"context_id,omitempty"`
	MembraneEdgeID          string          `json:"membrane_edge_id,omitempty"`
	InferenceRuleID         string          `json:"inference_rule_id,omitempty"`
	ParentEvidenceID        string          `json:"parent_evidence_id,omitempty"`
	JustificationHashSHA256 string          `json:"justification_hash_sha256"`
	DerivationSteps         []string        `json:"derivation_steps,omitempty"`
}

type justificationKey struct {
	ContextID        string `json:"context_id,omitempty"`
	MembraneEdgeID   string `json:"membrane_edge_id,omitempty"`
	InferenceRuleID  string `json:"inference_rule_id,omitempty"`
	ParentEvidenceID string `json:"parent_evidence_id,omitempty"`
}

func justificationHash(b EvidenceBinding) (string, error) {
	return canonicalize.CanonicalHash(justificationKey{
		ContextID:        b.ContextID,
		MembraneEdgeID:   b.MembraneEdgeID,
		InferenceRuleID:  b.InferenceRuleID,
		ParentEvidenceID: b.ParentEvidenceID,
	})
}

type v61Entry struct {
	v3Entry
	V                   string       `json:"v"`
	Closure             closure      `json:"closure"`
	EvidenceSatisfiedBy []v61Mapping `json:"evidence_satisfied_by,omitempty"`
}

func build61Mappings(bindings []EvidenceBinding) ([]v61Mapping, error) {
	out := make([]v61Mapping, 0, len(bindings))
	for _, b := range bindings {
		if b.Missing {
			continue
		}
		jh, err := justificationHash(b)
		if err != nil {
			return nil, err
		}
		refs := make([]satisfiedByRef, 0, len(b.ElementIDs))
		for _, id := range b.ElementIDs {
			refs = append(refs, satisfiedByRef{Kind: "compound_element", ElementID: id})
		}
		out = append(out, v61Mapping{
			EvidenceID:              b.EvidenceID,
			SatisfiedBy:             refs,
			ContextID:               b.ContextID,
			MembraneEdgeID:          b.MembraneEdgeID,
			InferenceRuleID:         b.InferenceRuleID,
			ParentEvidenceID:        b.ParentEvidenceID,
			JustificationHashSHA256: jh,
			DerivationSteps:         b.DerivationSteps,
		})
	}
	return out, nil
}

// BuildV61 renders the v6.1 view: v6 plus per-mapping derivation metadata
// and a justification hash. The version label is always the string
// "6.1", never a float, per spec.md §9's hashing-rule note.
func BuildV61(entries []Entry, profileContractHash, semanticsDigest string) (View, error) {
	sorted := Sort(append([]Entry(nil), entries...))
	doc := make([]v61Entry, 0, len(sorted))
	for _, e := range sorted {
		mappings, err := build61Mappings(e.EvidenceSatisfiedBy)
		if err != nil {
			return View{}, err
		}
		doc = append(doc, v61Entry{
			v3Entry: toV3(e, profileContractHash, semanticsDigest),
			V:       "6.1",
			Closure: closure{
				EvidenceComplete:          e.EvidenceComplete,
				MissingEvidenceIDs:        e.MissingEvidenceIDs,
				MissingEvidenceBindingIDs: e.MissingEvidenceBindingIDs,
			},
			EvidenceSatisfiedBy: mappings,
		})
	}
	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return View{}, err
	}
	return View{Document: doc, Hash: hash}, nil
}

type artifactRef struct {
	Kind         string `json:"kind"`
	URI          string `json:"uri"`
	DigestSHA256 string `json:"digest_sha256"`
}

type v62Mapping struct {
	v61Mapping
	ArtifactRefs []artifactRef `json:"artifact_refs,omitempty"`
}

type v62Entry struct {
	v3Entry
	V                   string       `json:"v"`
	Closure             closure      `json:"closure"`
	EvidenceSatisfiedBy []v62Mapping `json:"evidence_satisfied_by,omitempty"`
	RequiresEvidence    []string     `json:"requires_evidence,omitempty"`
}

// BuildV62 renders the v6.2 view: v6.1 plus artifact references per
// mapping and a top-level requires_evidence alias.
func BuildV62(entries []Entry, profileContractHash, semanticsDigest string) (View, error) {
	sorted := Sort(append([]Entry(nil), entries...))
	doc := make([]v62Entry, 0, len(sorted))
	for _, e := range sorted {
		mappings, err := build61Mappings(e.EvidenceSatisfiedBy)
		if err != nil {
			return View{}, err
		}
		// build61Mappings skips missing bindings; index the same subset.
		var present []EvidenceBinding
		for _, b := range e.EvidenceSatisfiedBy {
			if !b.Missing {
				present = append(present, b)
			}
		}
		m62 := make([]v62Mapping, 0, len(mappings))
		var requiresEvidence []string
		for i, m := range mappings {
			binding := present[i]
			var refs []artifactRef
			if binding.ArtifactURI != "" {
				refs = append(refs, artifactRef{Kind: binding.ArtifactKind, URI: binding.ArtifactURI, DigestSHA256: binding.ArtifactDigestSHA})
			}
			m62 = append(m62, v62Mapping{v61Mapping: m, ArtifactRefs: refs})
			requiresEvidence = append(requiresEvidence, m.EvidenceID)
		}
		doc = append(doc, v62Entry{
			v3Entry: toV3(e, profileContractHash, semanticsDigest),
			V:       "6.2",
			Closure: closure{
				EvidenceComplete:          e.EvidenceComplete,
				MissingEvidenceIDs:        e.MissingEvidenceIDs,
				MissingEvidenceBindingIDs: e.MissingEvidenceBindingIDs,
			},
			EvidenceSatisfiedBy: m62,
			RequiresEvidence:    requiresEvidence,
		})
	}
	hash, err := canonicalize.CanonicalHash(doc)
	if err != nil {
		return View{}, err
	}
	return View{Document: doc, Hash: hash}, nil
}

// Views bundles all five explain-trace views for a run.
type Views struct {
	V2  View
	V3  View
	V6  View
	V61 View
	V62 View
}

// BuildAll renders v2 through v6.2 in one call.
func BuildAll(entries []Entry, profileContractHash, semanticsDigest string) (Views, error) {
	v2, err := BuildV2(entries)
	if err != nil {
		return Views{}, err
	}
	v3, err := BuildV3(entries, profileContractHash, semanticsDigest)
	if err != nil {
		return Views{}, err
	}
	v6, err := BuildV6(entries, profileContractHash, semanticsDigest)
	if err != nil {
		return Views{}, err
	}
	v61, err := BuildV61(entries, profileContractHash, semanticsDigest)
	if err != nil {
		return Views{}, err
	}
	v62, err := BuildV62(entries, profileContractHash, semanticsDigest)
	if err != nil {
		return Views{}, err
	}
	return Views{V2: v2, V3: v3, V6: v6, V61: v61, V62: v62}, nil
}
