package model

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
)

// BondPack is a named set of bond rules scoped to one or more domains.
type BondPack struct {
	ID             string   `json:"id"`
	Path           string   `json:"path"`
	Domains        []string `json:"domains"`
	DefaultEnabled bool     `json:"default_enabled"`
	Description    string   `json:"description,omitempty"`

	// CompatibleTablesVersion is an added, optional field: a semver
	// constraint this pack declares compatibility with for the tables it
	// operates over. The Loader parses and stores it; no component
	// compares a compound's tables_version against it, and no
	// packs.tables_version_incompatible violation is emitted.
	CompatibleTablesVersion *semver.Constraints `json:"-"`
	CompatibleTablesVersionRaw string          `json:"compatible_tables_version,omitempty"`

	Rules      []BondRule                 `json:"-"`
	Extensions map[string]json.RawMessage `json:"-"`
}
