package model

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

// EvidenceBindingMode controls how strictly a compound's evidence
// obligations must be explicitly bound to the rule that requires them.
type EvidenceBindingMode string

const (
	EvidenceBindingImplicitByID  EvidenceBindingMode = "implicit_by_id"
	EvidenceBindingExplicitOnly EvidenceBindingMode = "explicit_only"
)

// Waiver is a dated exception for a specific rule on a specific target.
type Waiver struct {
	RuleID     string   `json:"rule_id"`
	Target     string   `json:"target"`
	Rationale  string   `json:"rationale"`
	Mitigations []string `json:"mitigations"`
	ExpiresOn  string   `json:"expires_on"` // YYYY-MM-DD
	XMissing   []string `json:"x_missing,omitempty"`
}

// Compound is a bag of elements plus invariants; the evaluation target for
// bond rules.
type Compound struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	TablesVersion   string   `json:"tables_version"`
	TablesSemver    *semver.Version `json:"-"`
	Elements        []string `json:"elements"`
	Domain          string   `json:"domain,omitempty"`
	Invariants      []string `json:"invariants,omitempty"`
	DirectorNotes   string   `json:"director_notes,omitempty"`
	Waivers         []Waiver `json:"waivers,omitempty"`

	EvidenceBindingMode EvidenceBindingMode            `json:"evidence_binding_mode,omitempty"`
	EvidenceBindings    map[string][]string            `json:"evidence_bindings,omitempty"`

	Extensions map[string]json.RawMessage `json:"-"`
}

// EffectiveEvidenceBindingMode returns the compound's binding mode,
// defaulting to implicit_by_id when unset.
func (c *Compound) EffectiveEvidenceBindingMode() EvidenceBindingMode {
	if c.EvidenceBindingMode == "" {
		return EvidenceBindingImplicitByID
	}
	return c.EvidenceBindingMode
}

// ElementSet returns the compound's element ids as a set.
func (c *Compound) ElementSet() map[string]bool {
	out := make(map[string]bool, len(c.Elements))
	for _, id := range c.Elements {
		out[id] = true
	}
	return out
}

// InvariantSet returns the compound's declared invariant names as a set.
func (c *Compound) InvariantSet() map[string]bool {
	out := make(map[string]bool, len(c.Invariants))
	for _, inv := range c.Invariants {
		out[inv] = true
	}
	return out
}
