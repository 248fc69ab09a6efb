// Package schema builds and compiles the closed-key JSON Schema envelopes
// every Loader document type is validated against before being unmarshaled
// into its typed Go struct.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Envelope is a compiled schema for one document kind, built with
// additionalProperties: false and patternProperties allowing the `x_` and
// `x.` extension namespaces through uninspected. Unknown keys outside
// those namespaces are schema.unknown_key errors; this is the mechanism
// implementing the closed-key contract directly through the schema
// library rather than a hand-rolled key-set walk.
type Envelope struct {
	SchemaID string
	Required []string
	compiled *jsonschema.Schema
}

var counter int64

// Build compiles an envelope for a document whose top-level object allows
// exactly the given property names (any JSON type), plus `x_*` / `x.*`
// extension keys, with the listed properties required.
func Build(schemaID string, allowedProps []string, required []string) (*Envelope, error) {
	props := make(map[string]interface{}, len(allowedProps))
	for _, p := range allowedProps {
		props[p] = map[string]interface{}{}
	}

	doc := map[string]interface{}{
		"type":       "object",
		"properties": props,
		"patternProperties": map[string]interface{}{
			`^x_`:  map[string]interface{}{},
			`^x\.`: map[string]interface{}{},
		},
		"additionalProperties": false,
	}
	if len(required) > 0 {
		doc["required"] = required
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("schema %s: marshal: %w", schemaID, err)
	}

	id := atomic.AddInt64(&counter, 1)
	url := fmt.Sprintf("mem://periodic-system/envelope/%s/%d", schemaID, id)

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("schema %s: add resource: %w", schemaID, err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("schema %s: compile: %w", schemaID, err)
	}

	return &Envelope{SchemaID: schemaID, Required: required, compiled: compiled}, nil
}

// MustBuild panics on a build failure; used for the package-level envelope
// table initialized once at process start from literal, known-good
// property lists.
func MustBuild(schemaID string, allowedProps []string, required []string) *Envelope {
	e, err := Build(schemaID, allowedProps, required)
	if err != nil {
		panic(err)
	}
	return e
}

// Validate runs the compiled envelope schema over a generic decoded
// document (map[string]interface{} or []interface{}), returning every
// violation as a jsonschema.ValidationError-derived message. An empty
// slice means the document is schema-clean.
func (e *Envelope) Validate(doc interface{}) []string {
	if err := e.compiled.Validate(doc); err != nil {
		if ve, ok := err.(*jsonschema.ValidationError); ok {
			return flattenValidationErrors(ve)
		}
		return []string{err.Error()}
	}
	return nil
}

func flattenValidationErrors(ve *jsonschema.ValidationError) []string {
	var out []string
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			out = append(out, fmt.Sprintf("%s: %s", e.InstanceLocation, e.Message))
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	sort.Strings(out)
	return out
}

// ExtensionKeys returns the subset of obj's keys that fall into the x_ / x.
// extension namespaces, sorted, for building an Extensions map on the
// corresponding typed struct.
func ExtensionKeys(obj map[string]interface{}) []string {
	var out []string
	for k := range obj {
		if strings.HasPrefix(k, "x_") || strings.HasPrefix(k, "x.") {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// registry memoizes envelopes built through Get, keyed by schema id, so a
// schema id is compiled at most once. The Loader's own envelopes are
// package-level MustBuild values and do not go through it.
var (
	registryMu sync.Mutex
	registry   = map[string]*Envelope{}
)

// Get returns a cached envelope built lazily via build on first use.
func Get(schemaID string, build func() (*Envelope, error)) (*Envelope, error) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if e, ok := registry[schemaID]; ok {
		return e, nil
	}
	e, err := build()
	if err != nil {
		return nil, err
	}
	registry[schemaID] = e
	return e, nil
}
