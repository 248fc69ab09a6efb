package loader

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var elementIDPattern = regexp.MustCompile(`^[a-z][a-z0-9._-]*$`)

var elementEnvelope = schema.MustBuild("periodic.element.v1", []string{
	"id", "table", "group", "name", "summary", "domain", "tags",
	"required_states", "implies", "requires", "invariants",
}, []string{"id", "table", "group", "name", "summary"})

var elementTableEnvelope = schema.MustBuild("periodic.element_table.v1", []string{
	"schema", "table", "elements",
}, []string{"schema", "table", "elements"})

// LoadTable implements load_table(path, expected_table_id): parses one
// element-table document and returns its elements, appending schema and
// reference violations to the collector. The per-element reference checks
// (implies/requires/invariants resolving against the full element index)
// happen later in Element Index construction, once every table has been
// loaded; this function only validates the table's own shape.
func (l *Loader) LoadTable(path string, expectedTable model.Table) ([]model.Element, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.element_table.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(elementTableEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	tableName, _ := obj["table"].(string)
	if model.Table(tableName) != expectedTable {
		return nil, errorir.NewFatal(path, "schema.table_mismatch",
			fmt.Errorf("expected table %q, got %q", expectedTable, tableName))
	}

	rawElements, _ := obj["elements"].([]interface{})
	elements := make([]model.Element, 0, len(rawElements))
	ids := make([]string, 0, len(rawElements))

	for _, re := range rawElements {
		em, ok := re.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(elementEnvelope, em, path)

		raw, err := json.Marshal(em)
		if err != nil {
			return nil, errorir.NewFatal(path, "schema.invalid_json", err)
		}
		var el model.Element
		if err := json.Unmarshal(raw, &el); err != nil {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaWrongType,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: element %v: %v", path, em["id"], err),
			})
			continue
		}
		el.Table = expectedTable

		if !elementIDPattern.MatchString(el.ID) {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeIDInvalid,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: element id %q does not match ^[a-z][a-z0-9._-]*$", path, el.ID),
			})
		}

		irreversibleCount := 0
		for _, t := range el.Tags {
			if strings.HasPrefix(t, "irreversible.") {
				irreversibleCount++
			}
		}
		if irreversibleCount > 1 {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeRuleTypeMismatch,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: element %q carries more than one irreversible.* tag", path, el.ID),
			})
		}

		el.Extensions = extractExtensions(em)
		elements = append(elements, el)
		ids = append(ids, el.ID)
	}

	l.checkSorted(path, "elements", ids)
	l.checkUnique(path, "element", ids)

	return elements, nil
}

func extractExtensions(obj map[string]interface{}) map[string]json.RawMessage {
	keys := schema.ExtensionKeys(obj)
	if len(keys) == 0 {
		return nil
	}
	out := make(map[string]json.RawMessage, len(keys))
	for _, k := range keys {
		b, err := json.Marshal(obj[k])
		if err != nil {
			continue
		}
		out[k] = b
	}
	return out
}
