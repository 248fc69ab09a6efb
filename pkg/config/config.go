// Package config loads CLI-default overrides from an optional YAML file.
// It only ever sets default values for flags the caller did not supply on
// the command line — it never touches a hashed evaluation input.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Defaults is the set of CLI flag defaults a config file may override.
type Defaults struct {
	Profile     string `yaml:"profile,omitempty"`
	Strict      *bool  `yaml:"strict,omitempty"`
	AsOf        string `yaml:"as_of,omitempty"`
	KappaWasm   string `yaml:"kappa_wasm,omitempty"`
	ReceiptOutSink string `yaml:"receipt_out_sink,omitempty"`
}

// Load reads and parses a YAML defaults file. A missing path is not an
// error: the caller gets zero-value Defaults and falls back to the CLI's
// own built-in defaults.
func Load(path string) (Defaults, error) {
	if path == "" {
		return Defaults{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Defaults{}, nil
		}
		return Defaults{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	var d Defaults
	if err := yaml.Unmarshal(data, &d); err != nil {
		return Defaults{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return d, nil
}
