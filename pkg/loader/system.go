package loader

import (
	"encoding/json"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var systemCompoundRefEnvelope = schema.MustBuild("periodic.system_compound_ref.v1", []string{
	"as", "path",
}, []string{"as", "path"})

var systemLinkEnvelope = schema.MustBuild("periodic.system_link.v1", []string{
	"from", "to", "via",
}, []string{"from", "to", "via"})

var systemLinkViaEnvelope = schema.MustBuild("periodic.system_link_via.v1", []string{
	"cap", "notes", "endorsement_id",
}, []string{"cap"})

var systemWaiverEnvelope = schema.MustBuild("periodic.system_waiver.v1", []string{
	"rule_id", "target", "rationale", "mitigations", "expires_on", "x_missing",
}, []string{"rule_id", "target", "rationale", "mitigations", "expires_on"})

var systemEnvelope = schema.MustBuild("periodic.system.v1", []string{
	"schema", "id", "compounds", "links", "waivers",
}, []string{"schema", "id", "compounds"})

// LoadSystem implements load_system(path): parses a system.*.json
// document. system ids must begin with "system.".
func (l *Loader) LoadSystem(path string) (*model.System, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.system.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(systemEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	if refs, ok := obj["compounds"].([]interface{}); ok {
		for _, r := range refs {
			if rm, ok := r.(map[string]interface{}); ok {
				l.checkEnvelope(systemCompoundRefEnvelope, rm, path)
			}
		}
	}
	if links, ok := obj["links"].([]interface{}); ok {
		for _, lk := range links {
			if lm, ok := lk.(map[string]interface{}); ok {
				l.checkEnvelope(systemLinkEnvelope, lm, path)
				if via, ok := lm["via"].(map[string]interface{}); ok {
					l.checkEnvelope(systemLinkViaEnvelope, via, path)
				}
			}
		}
	}
	if waivers, ok := obj["waivers"].([]interface{}); ok {
		for _, w := range waivers {
			if wm, ok := w.(map[string]interface{}); ok {
				l.checkEnvelope(systemWaiverEnvelope, wm, path)
			}
		}
	}

	raw, err := json.Marshal(obj)
	if err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	var sys model.System
	if err := json.Unmarshal(raw, &sys); err != nil {
		return nil, errorir.NewFatal(path, "schema.invalid_json", err)
	}
	sys.Extensions = extractExtensions(obj)

	if len(sys.ID) < 7 || sys.ID[:7] != "system." {
		l.Collector.Add(errorir.Violation{
			Code:     errorir.CodeIDInvalid,
			Kind:     "system",
			SystemID: sys.ID,
			Severity: errorir.SeverityError,
			Message:  path + ": system id must start with \"system.\"",
		})
	}

	aliases := make([]string, 0, len(sys.Compounds))
	for _, c := range sys.Compounds {
		aliases = append(aliases, c.As)
	}
	l.checkUnique(path, "system compound alias", aliases)

	return &sys, nil
}
