// Package predicate implements the rule trigger engine: given a rule's
// when{} clause and a compound's resolved elements, decide whether the
// rule fires and record the because-trace explaining why.
package predicate

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/model"
)

// Because records which concrete ids/tables caused one predicate branch to
// match, surfaced in the explain trace's fired_because.because field.
type Because struct {
	AnyOfMatched      []string `json:"any_of_matched,omitempty"`
	AllOfMatched      []string `json:"all_of_matched,omitempty"`
	AnyTagMatched     []string `json:"any_tag_matched,omitempty"`
	TableAnyOfTables  []string `json:"table_any_of_tables,omitempty"`
	TableAnyOfElements []string `json:"table_any_of_elements,omitempty"`
}

// Result is the outcome of evaluating one rule's when{} against a
// compound.
type Result struct {
	Triggered bool
	Because   Because
}

// CompoundView is the read-only projection of a compound's resolved
// elements the predicate (and obligation) engines operate over.
type CompoundView struct {
	ElementIDs map[string]bool
	Elements   []*model.Element
	Tags       map[string]bool
	Tables     map[model.Table]bool
}

// NewCompoundView builds a CompoundView from a compound's resolved
// elements.
func NewCompoundView(elements []*model.Element) CompoundView {
	v := CompoundView{
		ElementIDs: map[string]bool{},
		Elements:   elements,
		Tags:       map[string]bool{},
		Tables:     map[model.Table]bool{},
	}
	for _, el := range elements {
		v.ElementIDs[el.ID] = true
		v.Tables[el.Table] = true
		for _, t := range el.Tags {
			v.Tags[t] = true
		}
	}
	return v
}

// Evaluate implements triggered(rule, compound) -> {triggered, because}.
// All present predicate branches must hold (AND); an empty when{} is
// rejected at load time, never here.
func Evaluate(when model.When, cv CompoundView) Result {
	var because Because
	ok := true

	if len(when.AnyOf) > 0 {
		var matched []string
		for _, id := range when.AnyOf {
			if cv.ElementIDs[id] {
				matched = append(matched, id)
			}
		}
		sort.Strings(matched)
		because.AnyOfMatched = matched
		if len(matched) == 0 {
			ok = false
		}
	}

	if len(when.AllOf) > 0 {
		var matched []string
		all := true
		for _, id := range when.AllOf {
			if cv.ElementIDs[id] {
				matched = append(matched, id)
			} else {
				all = false
			}
		}
		sort.Strings(matched)
		because.AllOfMatched = matched
		if !all {
			ok = false
		}
	}

	if len(when.AnyTag) > 0 {
		var matched []string
		for _, tag := range when.AnyTag {
			if cv.Tags[tag] {
				matched = append(matched, tag)
			}
		}
		sort.Strings(matched)
		because.AnyTagMatched = matched
		if len(matched) == 0 {
			ok = false
		}
	}

	if len(when.TableAnyOf) > 0 {
		var tables []string
		var elements []string
		for _, t := range when.TableAnyOf {
			if cv.Tables[t] {
				tables = append(tables, string(t))
				for _, el := range cv.Elements {
					if el.Table == t {
						elements = append(elements, el.ID)
					}
				}
			}
		}
		sort.Strings(tables)
		sort.Strings(elements)
		because.TableAnyOfTables = tables
		because.TableAnyOfElements = elements
		if len(tables) == 0 {
			ok = false
		}
	}

	return Result{Triggered: ok, Because: because}
}
