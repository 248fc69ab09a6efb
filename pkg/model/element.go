// Package model defines the immutable data types parsed and owned by the
// Loader: elements, bond rules, bond packs, the domain registry, compounds,
// systems, waivers, profiles, and SPEL semantics. Every type here is
// read-only once loaded; the Loader's normalization phase is the only
// place mutation happens.
package model

import "encoding/json"

// Table is one of the five fixed element tables.
type Table string

const (
	TableExperience Table = "experience"
	TableWorkshop   Table = "workshop"
	TableCapability Table = "capability"
	TableEvidence   Table = "evidence"
	TablePrinciple  Table = "principle"
)

// TableSafetyRank orders tables for the safety_first remediation tie-break:
// principle < evidence < workshop < capability < experience.
var TableSafetyRank = map[Table]int{
	TablePrinciple:  0,
	TableEvidence:   1,
	TableWorkshop:   2,
	TableCapability: 3,
	TableExperience: 4,
}

// Element is immutable after load.
type Element struct {
	ID             string                     `json:"id"`
	Table          Table                      `json:"table"`
	Group          string                     `json:"group"`
	Name           string                     `json:"name"`
	Summary        string                     `json:"summary"`
	Domain         string                     `json:"domain,omitempty"`
	Tags           []string                   `json:"tags,omitempty"`
	RequiredStates []string                   `json:"required_states,omitempty"`
	Implies        []string                   `json:"implies,omitempty"`
	Requires       []string                   `json:"requires,omitempty"`
	Invariants     []string                   `json:"invariants,omitempty"`
	Extensions     map[string]json.RawMessage `json:"-"`
}

// TagSet returns the element's tags as a set.
func (e *Element) TagSet() map[string]bool {
	out := make(map[string]bool, len(e.Tags))
	for _, t := range e.Tags {
		out[t] = true
	}
	return out
}

// HasStates reports whether e.RequiredStates is a superset of want.
func (e *Element) HasStates(want []string) bool {
	have := make(map[string]bool, len(e.RequiredStates))
	for _, s := range e.RequiredStates {
		have[s] = true
	}
	for _, w := range want {
		if !have[w] {
			return false
		}
	}
	return true
}
