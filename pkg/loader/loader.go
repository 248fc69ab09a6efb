// Package loader parses and schema-validates every Periodic System input
// document, owning all parsed data for a run. Downstream components only
// ever borrow what the Loader produces; nothing outside the Loader's
// normalization phase mutates a loaded document.
package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
)

// Loader reads and validates documents rooted at baseDir (the directory
// containing the index file), collecting non-fatal violations into a
// shared Collector. Any file-open or parse failure is fatal and aborts
// the run via a returned *errorir.FatalError bound to the offending path.
type Loader struct {
	BaseDir    string
	Collector  *errorir.Collector
}

// New returns a Loader rooted at baseDir.
func New(baseDir string, collector *errorir.Collector) *Loader {
	return &Loader{BaseDir: baseDir, Collector: collector}
}

func (l *Loader) resolve(relPath string) string {
	if filepath.IsAbs(relPath) {
		return relPath
	}
	return filepath.Join(l.BaseDir, relPath)
}

// readGenericJSON reads and parses path into a generic decoded value
// (map[string]interface{} / []interface{} / scalars), using json.Number
// for numerics so later canonicalization never silently loses precision.
func (l *Loader) readGenericJSON(path string) (interface{}, []byte, error) {
	full := l.resolve(path)
	raw, err := os.ReadFile(full)
	if err != nil {
		return nil, nil, errorir.NewFatal(full, "schema.unreadable_file", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, nil, errorir.NewFatal(full, "schema.invalid_json", err)
	}
	return v, raw, nil
}

// requireSchemaField fatally aborts if doc's top-level "schema" field does
// not equal expected; the Loader never proceeds on a doc it cannot
// identify.
func requireSchemaField(path string, doc interface{}, expected string) error {
	obj, ok := doc.(map[string]interface{})
	if !ok {
		return errorir.NewFatal(path, "schema.not_object", nil)
	}
	got, _ := obj["schema"].(string)
	if got != expected {
		return errorir.NewFatal(path, "schema.mismatch", fmt.Errorf("expected %q, got %q", expected, got))
	}
	return nil
}

// checkEnvelope validates doc against env and appends one schema.*
// violation per failure message, of kind "compound" with the document path
// in its message; rule_id is left empty since schema-level violations are
// not rule-scoped.
func (l *Loader) checkEnvelope(env *schema.Envelope, doc interface{}, path string) {
	for _, msg := range env.Validate(doc) {
		l.Collector.Add(errorir.Violation{
			Code:     errorir.CodeSchemaUnknownKey,
			Kind:     "compound",
			RuleID:   "",
			Severity: errorir.SeverityError,
			Message:  fmt.Sprintf("%s: %s", path, msg),
		})
	}
}

// checkSorted warns (schema.unsorted) when ids is not already sorted by
// natural (UTF-16 code-unit) key order, per the Loader's list-determinism
// contract. It never mutates the input list — sortedness is reported, not
// enforced by silently re-ordering.
func (l *Loader) checkSorted(path, listName string, ids []string) {
	for i := 1; i < len(ids); i++ {
		if canonicalize.CompareUTF16(ids[i-1], ids[i]) > 0 {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaUnsorted,
				Kind:     "compound",
				Severity: errorir.SeverityWarn,
				Message:  fmt.Sprintf("%s: %s is not sorted (%q before %q)", path, listName, ids[i-1], ids[i]),
			})
			return
		}
	}
}

// checkUnique emits id.duplicate errors for any id appearing more than
// once in ids, attributing each duplicate occurrence (after the first) to
// path.
func (l *Loader) checkUnique(path, kind string, ids []string) {
	seen := map[string]int{}
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for _, id := range ids {
		seen[id]++
	}
	for _, id := range sorted {
		if seen[id] > 1 {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeIDDuplicate,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: duplicate %s id %q", path, kind, id),
			})
			delete(seen, id) // report once per id, not once per occurrence
		}
	}
}
