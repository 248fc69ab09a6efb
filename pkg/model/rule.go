package model

import "encoding/json"

// Severity is a rule's declared severity, before profile overrides.
type Severity string

const (
	SeverityError Severity = "error"
	SeverityWarn  Severity = "warn"
)

// When is the discriminated predicate payload for a BondRule, modeled as a
// sum type rather than a dynamic object shape: each predicate kind carries
// its own typed field, and at least one must be present. Evaluation is an
// AND across whichever fields are populated.
type When struct {
	AnyOf      []string `json:"any_of,omitempty"`
	AllOf      []string `json:"all_of,omitempty"`
	AnyTag     []string `json:"any_tag,omitempty"`
	TableAnyOf []Table  `json:"table_any_of,omitempty"`
}

// Empty reports whether no predicate field was populated, which is a load
// error: an empty when{} is forbidden.
func (w When) Empty() bool {
	return len(w.AnyOf) == 0 && len(w.AllOf) == 0 && len(w.AnyTag) == 0 && len(w.TableAnyOf) == 0
}

// StateRequirement is one entry of Require.StateRequirements: an element
// that must be present with required_states covering MustInclude.
type StateRequirement struct {
	ElementID   string   `json:"element_id"`
	MustInclude []string `json:"must_include"`
}

// Require is the discriminated obligation payload for a BondRule.
type Require struct {
	AllOf             []string           `json:"all_of,omitempty"`
	AnyOf             []string           `json:"any_of,omitempty"`
	StateRequirements []StateRequirement `json:"state_requirements,omitempty"`
	// States is shorthand implying the exp.value.tx_status element must be
	// present and its required_states cover the listed values.
	States     []string `json:"states,omitempty"`
	Invariants []string `json:"invariants,omitempty"`
}

// TxStatusElementID is the well-known element the States shorthand implies.
const TxStatusElementID = "exp.value.tx_status"

// Empty reports whether no obligation field was populated, a load error:
// an empty require{} is forbidden.
func (r Require) Empty() bool {
	return len(r.AllOf) == 0 && len(r.AnyOf) == 0 && len(r.StateRequirements) == 0 &&
		len(r.States) == 0 && len(r.Invariants) == 0
}

// BondRule is a (when, require) predicate-and-obligation over compounds.
type BondRule struct {
	ID         string                     `json:"id"`
	When       When                       `json:"when"`
	Require    Require                    `json:"require"`
	Message    string                     `json:"message"`
	Severity   Severity                   `json:"severity"`
	SourcePack string                     `json:"-"` // "" for base rules, else the owning pack id
	Extensions map[string]json.RawMessage `json:"-"`
}
