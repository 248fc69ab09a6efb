// Package kappa implements the Kappa Canonicalizer: deterministic
// relabeling of a system graph (compounds, links, waivers) into a
// canonical form whose hash is invariant under list-order permutations.
// Aliases are hashed as given, so renaming an alias changes the hash.
package kappa

import (
	"sort"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/model"
)

// Canonical is the κ(system) document: spec.md §4.11's sorted projection
// of a system, ready for canonical-JSON encoding.
type Canonical struct {
	ID        string                 `json:"id"`
	Compounds []CanonicalCompoundRef `json:"compounds"`
	Links     []CanonicalLink        `json:"links"`
	Waivers   []CanonicalWaiver      `json:"waivers"`
}

type CanonicalCompoundRef struct {
	As   string `json:"as"`
	Path string `json:"path"`
}

type CanonicalLink struct {
	From          string `json:"from"`
	To            string `json:"to"`
	Cap           string `json:"cap"`
	EndorsementID string `json:"endorsement_id,omitempty"`
}

type CanonicalWaiver struct {
	RuleID      string   `json:"rule_id"`
	Target      string   `json:"target"`
	Rationale   string   `json:"rationale"`
	Mitigations []string `json:"mitigations"`
	ExpiresOn   string   `json:"expires_on"`
}

// NodeMapEntry records one alias->canonical-position relabeling, in the
// order the relabeling was applied, for node_map_digest.
type NodeMapEntry struct {
	Alias    string `json:"alias"`
	Position int    `json:"position"`
}

// Result is the output of Canonicalize: the canonical form, its hash, and
// the (possibly nil) node-map digest.
type Result struct {
	Canonical       Canonical
	KappaHash       string
	NodeMap         []NodeMapEntry
	NodeMapDigest   *string
	UsedExternal    bool
	FallbackWarning bool
}

// Canonicalize implements spec.md §4.11: sort compounds by alias, links by
// from|to|via.cap|via.endorsement_id, waivers by (rule_id, target) with
// mitigations sorted by string order, then canonical-JSON-encode and hash.
func Canonicalize(sys *model.System) (Result, error) {
	compounds := make([]CanonicalCompoundRef, 0, len(sys.Compounds))
	nodeMap := make([]NodeMapEntry, 0, len(sys.Compounds))
	for _, c := range sys.Compounds {
		compounds = append(compounds, CanonicalCompoundRef{As: c.As, Path: c.Path})
	}
	sort.Slice(compounds, func(i, j int) bool { return compounds[i].As < compounds[j].As })
	for i, c := range compounds {
		nodeMap = append(nodeMap, NodeMapEntry{Alias: c.As, Position: i})
	}

	links := make([]CanonicalLink, 0, len(sys.Links))
	for _, l := range sys.Links {
		links = append(links, CanonicalLink{From: l.From, To: l.To, Cap: l.Via.Cap, EndorsementID: l.Via.EndorsementID})
	}
	sort.Slice(links, func(i, j int) bool {
		a, b := links[i], links[j]
		if a.From != b.From {
			return a.From < b.From
		}
		if a.To != b.To {
			return a.To < b.To
		}
		if a.Cap != b.Cap {
			return a.Cap < b.Cap
		}
		return a.EndorsementID < b.EndorsementID
	})

	waivers := make([]CanonicalWaiver, 0, len(sys.Waivers))
	for _, w := range sys.Waivers {
		m := append([]string(nil), w.Mitigations...)
		sort.Strings(m)
		waivers = append(waivers, CanonicalWaiver{
			RuleID:      w.RuleID,
			Target:      w.Target,
			Rationale:   w.Rationale,
			Mitigations: m,
			ExpiresOn:   w.ExpiresOn,
		})
	}
	sort.Slice(waivers, func(i, j int) bool {
		if waivers[i].RuleID != waivers[j].RuleID {
			return waivers[i].RuleID < waivers[j].RuleID
		}
		return waivers[i].Target < waivers[j].Target
	})

	canon := Canonical{ID: sys.ID, Compounds: compounds, Links: links, Waivers: waivers}
	hash, err := canonicalize.CanonicalHash(canon)
	if err != nil {
		return Result{}, err
	}

	digest, err := canonicalize.CanonicalHash(nodeMap)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Canonical:     canon,
		KappaHash:     hash,
		NodeMap:       nodeMap,
		NodeMapDigest: &digest,
	}, nil
}
