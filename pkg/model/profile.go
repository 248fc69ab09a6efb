package model

// SeverityOverride is a profile's override of a rule's declared severity.
type SeverityOverride string

const (
	OverrideError  SeverityOverride = "error"
	OverrideWarn   SeverityOverride = "warn"
	OverrideIgnore SeverityOverride = "ignore"
)

// Profile is a named policy configuration: enabled packs plus severity
// overrides.
type Profile struct {
	Name              string                      `json:"name"`
	SeverityOverrides map[string]SeverityOverride `json:"severity_overrides,omitempty"`
	EnabledPacks      []string                    `json:"enabled_packs,omitempty"`
}

// DefaultProfileName is used when --profile is omitted and the profiles
// document does not declare its own default.
const DefaultProfileName = "ship"

// SPELMode is one of the five identity/meaning semantics dials.
type SPELMode string

const (
	SPELIdentityBearing  SPELMode = "identity_bearing"
	SPELMeaningPreserving SPELMode = "meaning_preserving"
)

// SPELSemantics captures the five modes controlling identity/meaning
// behavior of endorsements, declassification, control-flow, termination,
// and timing. The legacy value "post_condition" is normalized to
// meaning_preserving by the Loader before this struct is ever populated;
// every downstream consumer (traces, receipts) only ever observes the
// normalized form.
type SPELSemantics struct {
	Endorsement     SPELMode `json:"endorsement"`
	Declassification SPELMode `json:"declassification"`
	ControlFlow     SPELMode `json:"control_flow"`
	Termination     SPELMode `json:"termination"`
	Timing          SPELMode `json:"timing"`
}

// NormalizeSPELMode maps the legacy "post_condition" spelling onto
// meaning_preserving; all other values pass through unchanged.
func NormalizeSPELMode(raw string) SPELMode {
	if raw == "post_condition" {
		return SPELMeaningPreserving
	}
	return SPELMode(raw)
}
