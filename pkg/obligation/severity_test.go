package obligation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/model"
)

func TestEffectiveSeverityDefaultsToDeclared(t *testing.T) {
	assert.Equal(t, "error", string(EffectiveSeverity("r1", model.SeverityError, nil)))
	assert.Equal(t, "warn", string(EffectiveSeverity("r1", model.SeverityWarn, nil)))
}

func TestEffectiveSeverityHonorsProfileOverride(t *testing.T) {
	overrides := map[string]model.SeverityOverride{"r1": model.OverrideWarn}
	assert.Equal(t, "warn", string(EffectiveSeverity("r1", model.SeverityError, overrides)))
}

func TestEffectiveSeverityIgnoreOverride(t *testing.T) {
	overrides := map[string]model.SeverityOverride{"r1": model.OverrideIgnore}
	assert.Equal(t, "ignore", string(EffectiveSeverity("r1", model.SeverityError, overrides)))
}

func TestEffectiveSeverityOverrideOnlyAffectsMatchingRule(t *testing.T) {
	overrides := map[string]model.SeverityOverride{"other": model.OverrideWarn}
	assert.Equal(t, "error", string(EffectiveSeverity("r1", model.SeverityError, overrides)))
}

func TestResolveWaiverSuppressesMatchingUnexpiredWaiver(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	waivers := []model.Waiver{
		{RuleID: "r1", Target: "c1", Rationale: "known issue", Mitigations: []string{"m1"}, ExpiresOn: "2027-01-01"},
	}

	waived, scars, expired := ResolveWaiver("r1", "compound", waivers, asOf)
	assert.True(t, waived)
	assert.Nil(t, expired)
	require.NotNil(t, scars)
	assert.Equal(t, "c1", scars.Target)
	assert.Equal(t, []string{"m1"}, scars.Mitigations)
}

func TestResolveWaiverExpiredWaiverProducesErrorAndDoesNotSuppress(t *testing.T) {
	asOf := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	waivers := []model.Waiver{
		{RuleID: "r1", Target: "c1", ExpiresOn: "2025-01-01"},
	}

	waived, scars, expired := ResolveWaiver("r1", "compound", waivers, asOf)
	assert.False(t, waived)
	assert.Nil(t, scars)
	require.NotNil(t, expired)
	assert.Equal(t, "waiver.expired", expired.Code)
}

func TestResolveWaiverNoMatchReturnsZeroValues(t *testing.T) {
	waived, scars, expired := ResolveWaiver("r1", "compound", nil, time.Now().UTC())
	assert.False(t, waived)
	assert.Nil(t, scars)
	assert.Nil(t, expired)
}

func TestCheckEvidenceBindingPassesWhenAllBound(t *testing.T) {
	requires := &Requires{EvidenceIDs: []string{"ev.a", "ev.b"}}
	out := CheckEvidenceBinding("r1", requires, []string{"ev.a", "ev.b"})
	assert.True(t, out.Passed)
}

func TestCheckEvidenceBindingFailsOnUnboundEvidence(t *testing.T) {
	requires := &Requires{EvidenceIDs: []string{"ev.a", "ev.b"}}
	out := CheckEvidenceBinding("r1", requires, []string{"ev.a"})
	require.False(t, out.Passed)
	assert.Equal(t, EvidenceBindingMissingAtom, out.Atom.Kind)
	assert.Equal(t, []string{"ev.b"}, out.Atom.MissingAllOf)
	assert.Equal(t, "bind_evidence_to_rule", out.Remediation.Kind)
	assert.Equal(t, "r1", out.Remediation.RuleID)
}
