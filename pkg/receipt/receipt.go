// Package receipt implements the Receipt Assembler: the final signed-or-
// signable document committing a run to its inputs, policy, traces, κ, and
// proof graph.
package receipt

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/proofgraph"
	"github.com/periodic-system/evaluator/pkg/safetyenvelope"
	"github.com/periodic-system/evaluator/pkg/trace"
)

// verifierNamespace is a fixed namespace UUID used with uuid.NewSHA1 to
// derive a deterministic verifier identity from the profile-contract
// hash. A random UUID would break the determinism
// property spec.md §8 requires for repeat runs over the same inputs.
var verifierNamespace = uuid.MustParse("6f6e5f1e-6b9b-4c2a-8e3d-7a1c2b9d4e11")

// VerifierIdentity is the receipt's {id, version, keyid?} block.
type VerifierIdentity struct {
	ID      string `json:"id"`
	Version string `json:"version"`
	KeyID   string `json:"keyid,omitempty"`
}

// PolicyDigest is the receipt's policy{uri, digest, semantics_digest}
// block.
type PolicyDigest struct {
	URI             string   `json:"uri"`
	Digest          Digest   `json:"digest"`
	SemanticsDigest Digest   `json:"semantics_digest"`
}

// Digest wraps a single sha256 field, the shape used throughout the
// receipt for named hashes.
type Digest struct {
	SHA256 string `json:"sha256"`
}

// InputAttestation names one input artifact and its digest.
type InputAttestation struct {
	Kind   string `json:"kind"`
	Digest Digest `json:"digest"`
}

// TraceHashes bundles the five explain-trace view hashes.
type TraceHashes struct {
	V2  string `json:"v2"`
	V3  string `json:"v3"`
	V6  string `json:"v6"`
	V61 string `json:"v6.1"`
	V62 string `json:"v6.2"`
}

// Receipt is the full receipt document, prior to DSSE signing.
type Receipt struct {
	Verifier            VerifierIdentity        `json:"verifier"`
	Policy              PolicyDigest             `json:"policy"`
	InputAttestations   []InputAttestation       `json:"input_attestations"`
	TargetKappaCommitment string                 `json:"target_kappa_commitment,omitempty"`
	TraceHashes         TraceHashes              `json:"trace_hashes"`
	ProofGraph          proofgraph.Graph         `json:"proof_graph"`
	ProofGraphHashSHA256 string                  `json:"proof_graph_hash_sha256"`
	SafetyEnvelope      safetyenvelope.Envelope  `json:"safety_envelope"`
	SafetyEnvelopeHashSHA256 string              `json:"safety_envelope_hash_sha256"`
	StrategyRegistryHashSHA256 string            `json:"strategy_registry_hash_sha256,omitempty"`
	SystemKappaHashSHA256 string                 `json:"system_kappa_hash_sha256,omitempty"`
	ObligationsHashSHA256 string                 `json:"obligations_hash_sha256,omitempty"`
}

// KappaIndex implements spec.md §4.15's κ(index): marshal the index to a
// generic map, delete model.VolatileWiringFields, canonical-stringify,
// append a newline, then SHA-256.
func KappaIndex(index *model.Index) (string, error) {
	raw, err := json.Marshal(index)
	if err != nil {
		return "", err
	}
	var generic map[string]interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return "", err
	}
	for _, f := range model.VolatileWiringFields {
		delete(generic, f)
	}
	return canonicalize.CanonicalHash(generic)
}

// Params bundles every already-computed artifact the assembler needs;
// nothing in this package re-derives any of them.
type Params struct {
	VerifierID              string
	VerifierVersion         string
	VerifierKeyID           string
	PolicyURI               string
	ProfileContractHash     string
	SemanticsDigestHash     string
	InputAttestations       []InputAttestation
	TargetKappaCommitment   string
	Traces                  trace.Views
	Graph                   proofgraph.Graph
	GraphHash               string
	Envelope                safetyenvelope.Envelope
	EnvelopeHash            string
	StrategyRegistryHash    string
	SystemKappaHash         string
	ObligationsHash         string
}

// Assemble implements spec.md §4.15. The verifier id is derived
// deterministically via uuid.NewSHA1 over the profile-contract hash, never
// uuid.NewRandom, so repeat runs over the same inputs produce the same
// receipt bytes.
func Assemble(p Params) (Receipt, string, error) {
	verifierID := p.VerifierID
	if verifierID == "" {
		verifierID = uuid.NewSHA1(verifierNamespace, []byte(p.ProfileContractHash)).String()
	}

	r := Receipt{
		Verifier: VerifierIdentity{
			ID:      verifierID,
			Version: p.VerifierVersion,
			KeyID:   p.VerifierKeyID,
		},
		Policy: PolicyDigest{
			URI:             p.PolicyURI,
			Digest:          Digest{SHA256: p.ProfileContractHash},
			SemanticsDigest: Digest{SHA256: p.SemanticsDigestHash},
		},
		InputAttestations:         p.InputAttestations,
		TargetKappaCommitment:     p.TargetKappaCommitment,
		TraceHashes: TraceHashes{
			V2:  p.Traces.V2.Hash,
			V3:  p.Traces.V3.Hash,
			V6:  p.Traces.V6.Hash,
			V61: p.Traces.V61.Hash,
			V62: p.Traces.V62.Hash,
		},
		ProofGraph:                 p.Graph,
		ProofGraphHashSHA256:       p.GraphHash,
		SafetyEnvelope:             p.Envelope,
		SafetyEnvelopeHashSHA256:   p.EnvelopeHash,
		StrategyRegistryHashSHA256: p.StrategyRegistryHash,
		SystemKappaHashSHA256:      p.SystemKappaHash,
		ObligationsHashSHA256:      p.ObligationsHash,
	}

	hash, err := canonicalize.CanonicalHash(r)
	if err != nil {
		return Receipt{}, "", err
	}
	return r, hash, nil
}
