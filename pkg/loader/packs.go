package loader

import (
	"encoding/json"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var bondPackEnvelope = schema.MustBuild("periodic.bond_pack.v1", []string{
	"id", "path", "domains", "default_enabled", "description",
	"compatible_tables_version",
}, []string{"id", "path", "domains", "default_enabled"})

var bondPacksDocEnvelope = schema.MustBuild("periodic.bond_packs.v1", []string{
	"schema", "packs",
}, []string{"schema", "packs"})

// LoadPacks implements load_packs(manifest): parses bond_packs.v1.json and,
// for each declared pack, loads its own bond_rules.v1.json file via
// LoadRules with sourcePack set to the pack id.
func (l *Loader) LoadPacks(path string) ([]model.BondPack, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.bond_packs.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(bondPacksDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	rawPacks, _ := obj["packs"].([]interface{})

	packs := make([]model.BondPack, 0, len(rawPacks))
	ids := make([]string, 0, len(rawPacks))

	for _, rp := range rawPacks {
		pm, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(bondPackEnvelope, pm, path)

		raw, err := json.Marshal(pm)
		if err != nil {
			return nil, errorir.NewFatal(path, "schema.invalid_json", err)
		}
		var pack model.BondPack
		if err := json.Unmarshal(raw, &pack); err != nil {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaWrongType,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: pack %v: %v", path, pm["id"], err),
			})
			continue
		}
		pack.Extensions = extractExtensions(pm)

		if pack.CompatibleTablesVersionRaw != "" {
			c, err := semver.NewConstraint(pack.CompatibleTablesVersionRaw)
			if err != nil {
				l.Collector.Add(errorir.Violation{
					Code:     errorir.CodeSchemaWrongType,
					Kind:     "compound",
					Severity: errorir.SeverityWarn,
					Message: fmt.Sprintf("%s: pack %q has an unparseable compatible_tables_version %q: %v",
						path, pack.ID, pack.CompatibleTablesVersionRaw, err),
				})
			} else {
				pack.CompatibleTablesVersion = c
			}
		}

		rules, err := l.LoadRules(pack.Path, pack.ID)
		if err != nil {
			return nil, err
		}
		pack.Rules = rules

		packs = append(packs, pack)
		ids = append(ids, pack.ID)
	}

	l.checkSorted(path, "packs", ids)
	l.checkUnique(path, "pack", ids)

	return packs, nil
}
