// Package elementindex builds the compiled map of element id to Element
// used by every downstream component to resolve references.
package elementindex

import (
	"fmt"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// Index is the compiled element-id -> element map, with domain/table/tag
// accessors. It is immutable once built.
type Index struct {
	byID map[string]*model.Element
}

// Build constructs an Index from every loaded table's elements, rejecting
// duplicate ids across tables (a table-local duplicate was already caught
// by the Loader; this catches a duplicate that spans two different
// tables). strict controls whether a missing domain declaration or an
// unresolved implies/requires/invariants reference is an error or a
// warning.
func Build(tables map[model.Table][]model.Element, strict bool, collector *errorir.Collector) *Index {
	idx := &Index{byID: map[string]*model.Element{}}

	var order []model.Table
	for t := range tables {
		order = append(order, t)
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

	for _, t := range order {
		for i := range tables[t] {
			el := &tables[t][i]
			if existing, ok := idx.byID[el.ID]; ok {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeIDDuplicate,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message: fmt.Sprintf("element id %q is duplicated across tables %q and %q",
						el.ID, existing.Table, el.Table),
				})
				continue
			}
			idx.byID[el.ID] = el
		}
	}

	for _, t := range order {
		for i := range tables[t] {
			el := &tables[t][i]
			idx.validateElement(el, strict, collector)
		}
	}

	return idx
}

func (idx *Index) validateElement(el *model.Element, strict bool, collector *errorir.Collector) {
	sev := errorir.SeverityWarn
	if strict {
		sev = errorir.SeverityError
	}

	if el.Domain == "" {
		collector.Add(errorir.Violation{
			Code:     "reference.missing_domain",
			Kind:     "compound",
			Severity: sev,
			Message:  fmt.Sprintf("element %q does not declare a domain", el.ID),
		})
	}

	checkRefs := func(field string, ids []string) {
		for _, ref := range ids {
			if _, ok := idx.byID[ref]; !ok {
				collector.Add(errorir.Violation{
					Code:     errorir.CodeReferenceUnknownElement,
					Kind:     "compound",
					Severity: sev,
					Message:  fmt.Sprintf("element %q: %s references unknown element %q", el.ID, field, ref),
				})
			}
		}
	}
	checkRefs("implies", el.Implies)
	checkRefs("requires", el.Requires)
	checkRefs("invariants", el.Invariants)
}

// Get returns the element with the given id, or nil.
func (idx *Index) Get(id string) *model.Element {
	return idx.byID[id]
}

// Has reports whether id is a known element.
func (idx *Index) Has(id string) bool {
	_, ok := idx.byID[id]
	return ok
}

// All returns every element, sorted by id.
func (idx *Index) All() []*model.Element {
	out := make([]*model.Element, 0, len(idx.byID))
	for _, el := range idx.byID {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ByTable returns every element belonging to t, sorted by id.
func (idx *Index) ByTable(t model.Table) []*model.Element {
	var out []*model.Element
	for _, el := range idx.byID {
		if el.Table == t {
			out = append(out, el)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ElementsOf resolves a compound's element id list into Element pointers,
// skipping (and reporting) any id that doesn't resolve. The caller passes
// the compound id so the reference violation can be attributed correctly.
func (idx *Index) ElementsOf(compoundID string, ids []string, collector *errorir.Collector) []*model.Element {
	out := make([]*model.Element, 0, len(ids))
	for _, id := range ids {
		el := idx.Get(id)
		if el == nil {
			collector.Add(errorir.Violation{
				Code:       errorir.CodeReferenceUnknownElement,
				Kind:       "compound",
				CompoundID: compoundID,
				Severity:   errorir.SeverityError,
				Message:    fmt.Sprintf("compound %q references unknown element %q", compoundID, id),
			})
			continue
		}
		out = append(out, el)
	}
	return out
}
