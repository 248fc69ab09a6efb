package loader

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var waiverEnvelope = schema.MustBuild("periodic.waiver.v1", []string{
	"rule_id", "target", "rationale", "mitigations", "expires_on", "x_missing",
}, []string{"rule_id", "target", "rationale", "mitigations", "expires_on"})

var compoundEnvelope = schema.MustBuild("periodic.compound.v1", []string{
	"schema", "id", "name", "tables_version", "elements", "domain",
	"invariants", "director_notes", "waivers", "evidence_binding_mode",
	"evidence_bindings",
}, []string{"schema", "id", "name", "tables_version", "elements"})

// LoadCompound implements load_compound(path): parses one compound
// document.
func (l *Loader) LoadCompound(path string) (*model.Compound, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.compound.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(compoundEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	if waivers, ok := obj["waivers"].([]interface{}); ok {
		for _, w := range waivers {
			if wm, ok := w.(map[string]interface{}); ok {
				l.checkEnvelope(waiverEnvelope, wm, path)
			}
		}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	var c model.Compound
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	c.Extensions = extractExtensions(obj)

	if c.TablesVersion != "" {
		v, err := semver.NewVersion(c.TablesVersion)
		if err != nil {
			l.Collector.Add(errorir.Violation{
				Code:       errorir.CodeSchemaWrongType,
				Kind:       "compound",
				CompoundID: c.ID,
				Severity:   errorir.SeverityWarn,
				Message:    fmt.Sprintf("%s: compound %q has an unparseable tables_version %q: %v", path, c.ID, c.TablesVersion, err),
			})
		} else {
			c.TablesSemver = v
		}
	}

	if c.DirectorNotes != "" {
		if len(c.DirectorNotes) > 280 {
			l.Collector.Add(errorir.Violation{
				Code:       errorir.CodeSchemaWrongType,
				Kind:       "compound",
				CompoundID: c.ID,
				Severity:   errorir.SeverityError,
				Message:    fmt.Sprintf("%s: compound %q director_notes exceeds 280 characters", path, c.ID),
			})
		}
		for _, r := range c.DirectorNotes {
			if r == '\n' || r == '\r' {
				l.Collector.Add(errorir.Violation{
					Code:       errorir.CodeSchemaWrongType,
					Kind:       "compound",
					CompoundID: c.ID,
					Severity:   errorir.SeverityError,
					Message:    fmt.Sprintf("%s: compound %q director_notes must be single-line", path, c.ID),
				})
				break
			}
		}
	}

	elementIDs := c.ElementSet()
	if len(elementIDs) != len(c.Elements) {
		l.Collector.Add(errorir.Violation{
			Code:       errorir.CodeIDDuplicate,
			Kind:       "compound",
			CompoundID: c.ID,
			Severity:   errorir.SeverityError,
			Message:    fmt.Sprintf("%s: compound %q lists a duplicate element", path, c.ID),
		})
	}

	return &c, nil
}
