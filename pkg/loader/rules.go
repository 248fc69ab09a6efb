package loader

import (
	"encoding/json"
	"fmt"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var whenEnvelope = schema.MustBuild("periodic.when.v1", []string{
	"any_of", "all_of", "any_tag", "table_any_of",
}, nil)

var requireEnvelope = schema.MustBuild("periodic.require.v1", []string{
	"all_of", "any_of", "state_requirements", "states", "invariants",
}, nil)

var bondRuleEnvelope = schema.MustBuild("periodic.bond_rule.v1", []string{
	"id", "when", "require", "message", "severity",
}, []string{"id", "when", "require", "message", "severity"})

var bondRulesDocEnvelope = schema.MustBuild("periodic.bond_rules.v1", []string{
	"schema", "rules",
}, []string{"schema", "rules"})

// LoadRules implements load_rules(path): parses a bond_rules.v1.json
// document (base rules or a pack's own rules file) into typed BondRule
// values. sourcePack is "" for the base rules file and the owning pack id
// otherwise, recorded on each rule for pack-composition bookkeeping.
func (l *Loader) LoadRules(path, sourcePack string) ([]model.BondRule, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.bond_rules.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(bondRulesDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawRules, _ := obj["rules"].([]interface{})

	rules := make([]model.BondRule, 0, len(rawRules))
	ids := make([]string, 0, len(rawRules))

	for _, rr := range rawRules {
		rm, ok := rr.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(bondRuleEnvelope, rm, path)
		if whenMap, ok := rm["when"].(map[string]interface{}); ok {
			l.checkEnvelope(whenEnvelope, whenMap, path)
		}
		if reqMap, ok := rm["require"].(map[string]interface{}); ok {
			l.checkEnvelope(requireEnvelope, reqMap, path)
		}

		raw, err := json.Marshal(rm)
		if err != nil {
			return nil, errorir.NewFatal(path, "schema.invalid_json", err)
		}
		var rule model.BondRule
		if err := json.Unmarshal(raw, &rule); err != nil {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaWrongType,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: rule %v: %v", path, rm["id"], err),
			})
			continue
		}
		rule.SourcePack = sourcePack
		rule.Extensions = extractExtensions(rm)

		if rule.When.Empty() {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeRuleEmptyWhen,
				Kind:     "compound",
				RuleID:   rule.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: rule %q has an empty when{}", path, rule.ID),
			})
		}
		if rule.Require.Empty() {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeRuleEmptyRequire,
				Kind:     "compound",
				RuleID:   rule.ID,
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: rule %q has an empty require{}", path, rule.ID),
			})
		}

		rules = append(rules, rule)
		ids = append(ids, rule.ID)
	}

	l.checkSorted(path, "rules", ids)
	l.checkUnique(path, "rule", ids)

	return rules, nil
}
