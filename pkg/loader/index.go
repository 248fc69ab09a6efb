package loader

import (
	"encoding/json"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var indexEnvelope = schema.MustBuild("periodic.index.v1", []string{
	"schema", "tables", "bond_rules", "bond_packs", "profiles", "domains",
	"core_tags", "table_metadata", "atomic_properties", "spel_semantics",
	"domain_completion", "flow_workshop_pairs", "negative_examples",
	"system_negative_examples", "golden_corpus", "systems", "examples",
	"strategy_registry",
}, []string{
	"schema", "tables", "bond_rules", "bond_packs", "profiles", "domains",
})

// LoadIndex implements load_index(path): parses the top-level index
// document naming every other input file.
func (l *Loader) LoadIndex(path string) (*model.Index, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.index.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(indexEnvelope, doc, path)

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	var idx model.Index
	if err := json.Unmarshal(raw, &idx); err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	l.checkSorted(path, "systems", idx.Systems)
	l.checkSorted(path, "examples", idx.Examples)
	return &idx, nil
}
