package loader

import (
	"encoding/json"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var coreTagsEnvelope = schema.MustBuild("periodic.core_tags.v1", []string{
	"schema", "tags",
}, []string{"schema", "tags"})

// LoadCoreTags implements load_core_tags().
func (l *Loader) LoadCoreTags(path string) (*model.CoreTags, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.core_tags.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(coreTagsEnvelope, doc, path)
	var out model.CoreTags
	if err := remarshal(doc, &out); err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	l.checkSorted(path, "tags", out.Tags)
	l.checkUnique(path, "core tag", out.Tags)
	return &out, nil
}

var tableMetadataEnvelope = schema.MustBuild("periodic.table_metadata.v1", []string{
	"schema", "tables",
}, []string{"schema", "tables"})

// LoadTableMetadata implements load_table_metadata().
func (l *Loader) LoadTableMetadata(path string) (*model.TableMetadata, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.table_metadata.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(tableMetadataEnvelope, doc, path)
	var out model.TableMetadata
	if err := remarshal(doc, &out); err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	return &out, nil
}

var negativeExampleEnvelope = schema.MustBuild("periodic.negative_example.v1", []string{
	"id", "path", "expect_errors", "expect_warnings",
}, []string{"id", "path"})

var negativeExamplesDocEnvelope = schema.MustBuild("periodic.negative_examples.v1", []string{
	"schema", "cases",
}, []string{"schema", "cases"})

// LoadNegativeExamples implements load_negative_examples(path).
func (l *Loader) LoadNegativeExamples(path string) ([]model.NegativeExample, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.negative_examples.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(negativeExamplesDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawCases, _ := obj["cases"].([]interface{})
	cases := make([]model.NegativeExample, 0, len(rawCases))
	ids := make([]string, 0, len(rawCases))
	for _, rc := range rawCases {
		cm, ok := rc.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(negativeExampleEnvelope, cm, path)
		var c model.NegativeExample
		if err := remarshal(cm, &c); err != nil {
			continue
		}
		cases = append(cases, c)
		ids = append(ids, c.ID)
	}
	l.checkSorted(path, "cases", ids)
	l.checkUnique(path, "negative example case", ids)
	return cases, nil
}

var systemNegativeExamplesDocEnvelope = schema.MustBuild("periodic.system_negative_examples.v1", []string{
	"schema", "cases",
}, []string{"schema", "cases"})

// LoadSystemNegativeExamples implements load_system_negative_examples(path).
func (l *Loader) LoadSystemNegativeExamples(path string) ([]model.SystemNegativeExample, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.system_negative_examples.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(systemNegativeExamplesDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawCases, _ := obj["cases"].([]interface{})
	cases := make([]model.SystemNegativeExample, 0, len(rawCases))
	ids := make([]string, 0, len(rawCases))
	for _, rc := range rawCases {
		cm, ok := rc.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(negativeExampleEnvelope, cm, path)
		var c model.SystemNegativeExample
		if err := remarshal(cm, &c); err != nil {
			continue
		}
		cases = append(cases, c)
		ids = append(ids, c.ID)
	}
	l.checkSorted(path, "cases", ids)
	l.checkUnique(path, "system negative example case", ids)
	return cases, nil
}

var goldenCorpusEntryEnvelope = schema.MustBuild("periodic.golden_corpus_entry.v1", []string{
	"compound_id", "applicable_packs",
}, []string{"compound_id"})

var goldenCorpusDocEnvelope = schema.MustBuild("periodic.golden_corpus.v1", []string{
	"schema", "entries",
}, []string{"schema", "entries"})

// LoadGoldenCorpus implements load_golden_corpus(path).
func (l *Loader) LoadGoldenCorpus(path string) (*model.GoldenCorpus, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.golden_corpus.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(goldenCorpusDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawEntries, _ := obj["entries"].([]interface{})
	out := &model.GoldenCorpus{}
	for _, re := range rawEntries {
		em, ok := re.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(goldenCorpusEntryEnvelope, em, path)
		var e model.GoldenCorpusEntry
		if err := remarshal(em, &e); err != nil {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

var flowWorkshopPairEnvelope = schema.MustBuild("periodic.flow_workshop_pair.v1", []string{
	"flow", "workshop", "severity", "message",
}, []string{"flow", "workshop", "severity", "message"})

var flowWorkshopPairsDocEnvelope = schema.MustBuild("periodic.flow_workshop_pairs.v1", []string{
	"schema", "pairs",
}, []string{"schema", "pairs"})

// LoadFlowWorkshopPairs implements load_flow_workshop_pairs(path).
func (l *Loader) LoadFlowWorkshopPairs(path string) ([]model.FlowWorkshopPair, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.flow_workshop_pairs.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(flowWorkshopPairsDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawPairs, _ := obj["pairs"].([]interface{})
	out := make([]model.FlowWorkshopPair, 0, len(rawPairs))
	for _, rp := range rawPairs {
		pm, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(flowWorkshopPairEnvelope, pm, path)
		var p model.FlowWorkshopPair
		if err := remarshal(pm, &p); err != nil {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

var atomicPropertyEnvelope = schema.MustBuild("periodic.atomic_property.v1", []string{
	"id", "description",
}, []string{"id"})

var atomicPropertiesDocEnvelope = schema.MustBuild("periodic.atomic_properties.v1", []string{
	"schema", "properties",
}, []string{"schema", "properties"})

// LoadAtomicProperties implements load_atomic_properties(path).
func (l *Loader) LoadAtomicProperties(path string) (*model.AtomicProperties, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.atomic_properties.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(atomicPropertiesDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawProps, _ := obj["properties"].([]interface{})
	out := &model.AtomicProperties{}
	ids := make([]string, 0, len(rawProps))
	for _, rp := range rawProps {
		pm, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(atomicPropertyEnvelope, pm, path)
		var p model.AtomicProperty
		if err := remarshal(pm, &p); err != nil {
			continue
		}
		out.Properties = append(out.Properties, p)
		ids = append(ids, p.ID)
	}
	l.checkSorted(path, "properties", ids)
	l.checkUnique(path, "atomic property", ids)
	return out, nil
}

var domainCompletionEntryEnvelope = schema.MustBuild("periodic.domain_completion_entry.v1", []string{
	"pack_id", "status", "min_positive_examples", "min_negative_examples",
}, []string{"pack_id", "status"})

var domainCompletionDocEnvelope = schema.MustBuild("periodic.domain_completion.v1", []string{
	"schema", "entries",
}, []string{"schema", "entries"})

// LoadDomainCompletion implements load_domain_completion(path).
func (l *Loader) LoadDomainCompletion(path string) (*model.DomainCompletion, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.domain_completion.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(domainCompletionDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawEntries, _ := obj["entries"].([]interface{})
	out := &model.DomainCompletion{}
	for _, re := range rawEntries {
		em, ok := re.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(domainCompletionEntryEnvelope, em, path)
		var e model.DomainCompletionEntry
		if err := remarshal(em, &e); err != nil {
			continue
		}
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}

var spelSemanticsEnvelope = schema.MustBuild("periodic.spel_semantics.v1", []string{
	"schema", "endorsement", "declassification", "control_flow", "termination", "timing",
}, []string{"schema", "endorsement", "declassification", "control_flow", "termination", "timing"})

// LoadSPELSemantics implements load_spel_semantics(path), normalizing the
// legacy "post_condition" spelling to "meaning_preserving" on every mode.
func (l *Loader) LoadSPELSemantics(path string) (*model.SPELSemantics, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.spel_semantics.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(spelSemanticsEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	field := func(k string) model.SPELMode {
		s, _ := obj[k].(string)
		return model.NormalizeSPELMode(s)
	}
	return &model.SPELSemantics{
		Endorsement:      field("endorsement"),
		Declassification: field("declassification"),
		ControlFlow:      field("control_flow"),
		Termination:      field("termination"),
		Timing:           field("timing"),
	}, nil
}

var strategyFixtureEffectEnvelope = schema.MustBuild("periodic.strategy_fixture_effect.v1", []string{
	"link_id", "decision",
}, []string{"link_id", "decision"})

var strategyFixtureEnvelope = schema.MustBuild("periodic.strategy_fixture.v1", []string{
	"name", "effects", "expected_decision",
}, []string{"name", "effects", "expected_decision"})

var strategyEntryEnvelope = schema.MustBuild("periodic.strategy_entry.v1", []string{
	"strategy_id", "kind", "name", "combining", "canonical_semantics_hash_sha256", "fixtures",
}, []string{"strategy_id", "kind", "name", "combining", "canonical_semantics_hash_sha256"})

var strategyCombiningEnvelope = schema.MustBuild("periodic.strategy_combining.v1", []string{
	"algorithm",
}, []string{"algorithm"})

var strategyRegistryDocEnvelope = schema.MustBuild("periodic.strategy_registry.v1", []string{
	"schema", "strategies",
}, []string{"schema", "strategies"})

// LoadStrategyRegistry implements the Strategy Registry Check's document
// load step: strategies/strategy_registry.v1.json.
func (l *Loader) LoadStrategyRegistry(path string) (*model.StrategyRegistry, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.strategy_registry.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(strategyRegistryDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawStrategies, _ := obj["strategies"].([]interface{})
	out := &model.StrategyRegistry{}
	ids := make([]string, 0, len(rawStrategies))
	for _, rs := range rawStrategies {
		sm, ok := rs.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(strategyEntryEnvelope, sm, path)
		if cm, ok := sm["combining"].(map[string]interface{}); ok {
			l.checkEnvelope(strategyCombiningEnvelope, cm, path)
		}
		if fixtures, ok := sm["fixtures"].([]interface{}); ok {
			for _, f := range fixtures {
				if fm, ok := f.(map[string]interface{}); ok {
					l.checkEnvelope(strategyFixtureEnvelope, fm, path)
					if effects, ok := fm["effects"].([]interface{}); ok {
						for _, e := range effects {
							if em, ok := e.(map[string]interface{}); ok {
								l.checkEnvelope(strategyFixtureEffectEnvelope, em, path)
							}
						}
					}
				}
			}
		}

		var s model.StrategyEntry
		if err := remarshal(sm, &s); err != nil {
			continue
		}
		out.Strategies = append(out.Strategies, s)
		ids = append(ids, s.StrategyID)
	}
	l.checkSorted(path, "strategies", ids)
	l.checkUnique(path, "strategy", ids)
	return out, nil
}

// remarshal round-trips a generic decoded value through json.Marshal into
// a typed destination, the same pattern used throughout the loader to go
// from map[string]interface{} (needed for schema validation) to a concrete
// Go struct.
func remarshal(v interface{}, dst interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
