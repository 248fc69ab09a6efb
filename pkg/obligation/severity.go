package obligation

import (
	"time"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

// EffectiveSeverity implements spec.md §4.6.2: profile override (if any)
// takes precedence over the rule's own declared severity.
func EffectiveSeverity(ruleID string, declared model.Severity, overrides map[string]model.SeverityOverride) errorir.Severity {
	if overrides != nil {
		if ov, ok := overrides[ruleID]; ok {
			switch ov {
			case model.OverrideError:
				return errorir.SeverityError
			case model.OverrideWarn:
				return errorir.SeverityWarn
			case model.OverrideIgnore:
				return errorir.SeverityIgnore
			}
		}
	}
	if declared == model.SeverityWarn {
		return errorir.SeverityWarn
	}
	return errorir.SeverityError
}

// WaiverScars is the structured record attached to a trace entry when a
// waiver suppresses it.
type WaiverScars struct {
	Target      string   `json:"target"`
	Rationale   string   `json:"rationale"`
	Mitigations []string `json:"mitigations"`
	ExpiresOn   string   `json:"expires_on"`
}

// ResolveWaiver implements spec.md §4.6.3: a waiver whose rule_id matches
// the violated rule suppresses emission into errors/warnings but records
// the violation as waived, unless the waiver has expired as of asOf, in
// which case it is never a suppressor and itself becomes an error.
//
// Returns (waived, scars, expiredError). When expiredError is non-nil it
// must be added to the collector as its own waiver.expired violation
// alongside the original (unsuppressed) obligation error.
func ResolveWaiver(ruleID, target string, waivers []model.Waiver, asOf time.Time) (waived bool, scars *WaiverScars, expired *errorir.Violation) {
	for _, w := range waivers {
		if w.RuleID != ruleID {
			continue
		}
		expDate, err := time.Parse("2006-01-02", w.ExpiresOn)
		if err != nil {
			continue
		}
		if expDate.Before(asOf) {
			v := errorir.Violation{
				Code:     errorir.CodeWaiverExpired,
				RuleID:   ruleID,
				Severity: errorir.SeverityError,
				Message:  "waiver for rule " + ruleID + " on target " + w.Target + " expired on " + w.ExpiresOn,
			}
			return false, nil, &v
		}
		return true, &WaiverScars{
			Target:      w.Target,
			Rationale:   w.Rationale,
			Mitigations: append([]string(nil), w.Mitigations...),
			ExpiresOn:   w.ExpiresOn,
		}, nil
	}
	return false, nil, nil
}
