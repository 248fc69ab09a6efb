// Package bundle implements the Bundle Exporter: a single-file capsule
// combining the receipt, its DSSE envelope, and the safety envelope into
// one hashed, portable document.
package bundle

import (
	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/dsse"
	"github.com/periodic-system/evaluator/pkg/receipt"
	"github.com/periodic-system/evaluator/pkg/safetyenvelope"
)

const SchemaID = "spel.proof_bundle_dsse.v1"

// Bundle is the single-file capsule, per spec.md §4.17.
type Bundle struct {
	Schema                    string                  `json:"schema"`
	Profile                   string                  `json:"profile"`
	ReceiptHashSHA256         string                  `json:"receipt_hash_sha256"`
	SPELSemanticsHashSHA256   string                  `json:"spel_semantics_hash_sha256"`
	SafetyEnvelope            safetyenvelope.Envelope `json:"safety_envelope"`
	SafetyEnvelopeHashSHA256  string                  `json:"safety_envelope_hash_sha256"`
	ProfileContractHashSHA256 string                  `json:"profile_contract_hash_sha256"`
	Receipt                   receipt.Receipt         `json:"receipt"`
	DSSEEnvelope              dsse.Envelope           `json:"dsse_envelope"`
	PublicKeyPEM              string                  `json:"public_key_pem"`
}

// Params bundles the already-computed artifacts the exporter composes.
type Params struct {
	Profile                 string
	ReceiptHash              string
	SPELSemanticsHash        string
	Envelope                 safetyenvelope.Envelope
	EnvelopeHash             string
	ProfileContractHash      string
	Receipt                  receipt.Receipt
	DSSEEnvelope             dsse.Envelope
	PublicKeyPEM             string
}

// Build implements spec.md §4.17: the bundle bytes are
// stable_stringify(bundle) + "\n"; the bundle hash is SHA-256 of those
// bytes.
func Build(p Params) (Bundle, string, error) {
	b := Bundle{
		Schema:                    SchemaID,
		Profile:                   p.Profile,
		ReceiptHashSHA256:         p.ReceiptHash,
		SPELSemanticsHashSHA256:   p.SPELSemanticsHash,
		SafetyEnvelope:            p.Envelope,
		SafetyEnvelopeHashSHA256:  p.EnvelopeHash,
		ProfileContractHashSHA256: p.ProfileContractHash,
		Receipt:                   p.Receipt,
		DSSEEnvelope:              p.DSSEEnvelope,
		PublicKeyPEM:              p.PublicKeyPEM,
	}
	hash, err := canonicalize.CanonicalHash(b)
	if err != nil {
		return Bundle{}, "", err
	}
	return b, hash, nil
}

// Bytes renders the bundle's exact on-disk byte sequence:
// stable_stringify(bundle) + "\n".
func Bytes(b Bundle) ([]byte, error) {
	return canonicalize.StableStringifyWithNewline(b)
}
