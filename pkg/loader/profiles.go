package loader

import (
	"encoding/json"
	"fmt"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/loader/schema"
	"github.com/periodic-system/evaluator/pkg/model"
)

var profileEnvelope = schema.MustBuild("periodic.profile.v1", []string{
	"name", "severity_overrides", "enabled_packs",
}, []string{"name"})

var profilesDocEnvelope = schema.MustBuild("periodic.profiles.v1", []string{
	"schema", "default_profile", "profiles",
}, []string{"schema", "profiles"})

// ProfilesDoc is the parsed profiles.v1.json document: every declared
// profile plus which one is the default when --profile is omitted.
type ProfilesDoc struct {
	DefaultProfile string
	Profiles       map[string]model.Profile
}

// LoadProfiles implements load_profiles(path, requested?): parses
// profiles.v1.json. If requested is non-empty, the returned ProfilesDoc
// still contains every profile (callers resolve which one is active); this
// function only loads and validates, it does not select.
func (l *Loader) LoadProfiles(path string, requested string) (*ProfilesDoc, error) {
	doc, _, err := l.readGenericJSON(path)
	if err != nil {
		return nil, err
	}
	if err := requireSchemaField(path, doc, "periodic.profiles.v1"); err != nil {
		return nil, err
	}
	l.checkEnvelope(profilesDocEnvelope, doc, path)

	obj := doc.(map[string]interface{})
	out := &ProfilesDoc{Profiles: map[string]model.Profile{}}
	if dp, ok := obj["default_profile"].(string); ok {
		out.DefaultProfile = dp
	} else {
		out.DefaultProfile = model.DefaultProfileName
	}

	rawProfiles, _ := obj["profiles"].([]interface{})
	names := make([]string, 0, len(rawProfiles))
	for _, rp := range rawProfiles {
		pm, ok := rp.(map[string]interface{})
		if !ok {
			continue
		}
		l.checkEnvelope(profileEnvelope, pm, path)

		raw, err := json.Marshal(pm)
		if err != nil {
			return nil, errorir.NewFatal(path, "schema.invalid_json", err)
		}
		var p model.Profile
		if err := json.Unmarshal(raw, &p); err != nil {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeSchemaWrongType,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: profile %v: %v", path, pm["name"], err),
			})
			continue
		}
		out.Profiles[p.Name] = p
		names = append(names, p.Name)
	}
	l.checkSorted(path, "profiles", names)
	l.checkUnique(path, "profile", names)

	if requested != "" {
		if _, ok := out.Profiles[requested]; !ok {
			l.Collector.Add(errorir.Violation{
				Code:     errorir.CodeReferenceUnknownPack,
				Kind:     "compound",
				Severity: errorir.SeverityError,
				Message:  fmt.Sprintf("%s: requested profile %q is not declared", path, requested),
			})
		}
	}

	return out, nil
}
