package loader

import (
	"encoding/json"
	"fmt"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var domainEnvelope = schema.MustBuild("periodic.domain.v1", []string{
	"id", "name", "summary", "reason_for_existence", "unique_invariants",
	"collapse_risk", "compose_tiebreak_strategy", "remediation_any_of_strategy",
}, []string{"id", "name", "summary", "reason_for_existence"})

var domainsDocEnvelope = schema.MustBuild("periodic.domains.v1", []string{
	"schema", "domains", "neutral_domain", "neutral_domains", "immiscible",
}, []string{"schema", "domains"})

// LoadDomains implements load_domains(path): parses domains.v1.json into a
// DomainRegistry, validating that immiscible pairs are unordered,
// duplicate-free, and never include a neutral domain.
func (l *Loader) LoadDomains(path string) (*model.DomainRegistry, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.domains.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(domainsDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawDomains, _ := obj["domains"].([]interface{})

	reg := &model.DomainRegistry{}
	if nd, ok := obj["neutral_domain"].(string); ok {
		reg.NeutralDomain = nd
	}
	if nds, ok := obj["neutral_domains"].([]interface{}); ok {
		for _, n := range nds {
			if s, ok := n.(string); ok {
				reg.NeutralDomains = append(reg.NeutralDomains, s)
			}
		}
	}

	ids := make([]string, 0, len(rawDomains))
	for _, rd := range rawDomains {
		dm, ok := rd.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(domainEnvelope, dm, path)

		raw, err := json.Marshal(dm)
		if err != nil {
			return nil, errorir.NewFatal(path, "schema.invalid_json", err)
		}
		var d model.Domain
		if err := json.Unmarshal(raw, &d); err != nil {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaWrongType,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: domain %v: %v", path, dm["id"], err),
			})
			continue
		}
		d.Extensions = extractExtensions(dm)
		reg.Domains = append(reg.Domains, d)
		ids = append(ids, d.ID)
	}
	l.checkSorted(path, "domains", ids)
	l.checkUnique(path, "domain", ids)

	neutral := reg.AllNeutral()
	if rawPairs, ok := obj["immiscible"].([]interface{}); ok {
		seen := map[[2]string]bool{}
		for _, rp := range rawPairs {
			pairArr, ok := rp.([]interface{})
			if !ok || len(pairArr) != 2 {
				l.Collector.Add(errorir.Violation{
					Code:     errorir.CodeSchemaWrongType,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("%s: immiscible entry must be a 2-element array", path),
				})
				continue
			}
			a, _ := pairArr[0].(string)
			b, _ := pairArr[1].(string)
			if neutral[a] || neutral[b] {
				l.Collector.Add(errorir.Violation{
					Code:     errorir.CodeSchemaWrongType,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("%s: immiscible pair (%s,%s) may not include a neutral domain", path, a, b),
				})
				continue
			}
			p := model.ImmisciblePair{A: a, B: b}
			key := p.Sorted()
			if seen[key] {
				l.Collector.Add(errorir.Violation{
					Code:     errorir.CodeIDDuplicate,
					Kind:     "compound",
					Severity: errorir.SeverityError,
					Message:  fmt.Sprintf("%s: duplicate immiscible pair (%s,%s)", path, a, b),
				})
				continue
			}
			seen[key] = true
			reg.Immiscible = append(reg.Immiscible, p)
		}
	}

	return reg, nil
}
