package model

// FlowWorkshopPair declares that a compound containing the flow element
// must also contain the workshop element, else a pair.flow_workshop.missing
// violation fires.
type FlowWorkshopPair struct {
	Flow     string   `json:"flow"`
	Workshop string   `json:"workshop"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// NegativeExample is one expected-failure case for the compound-level
// negative-example runner.
type NegativeExample struct {
	ID             string   `json:"id"`
	Path           string   `json:"path"`
	ExpectErrors   []string `json:"expect_errors,omitempty"`
	ExpectWarnings []string `json:"expect_warnings,omitempty"`
}

// SystemNegativeExample is the system-scoped counterpart of NegativeExample.
type SystemNegativeExample struct {
	ID             string   `json:"id"`
	Path           string   `json:"path"`
	ExpectErrors   []string `json:"expect_errors,omitempty"`
	ExpectWarnings []string `json:"expect_warnings,omitempty"`
}

// DomainCompletionEntry is the strict-mode quorum requirement for one
// "complete"-status pack.
type DomainCompletionEntry struct {
	PackID             string `json:"pack_id"`
	Status             string `json:"status"` // "complete" is the only status this gate acts on
	MinPositiveExamples int   `json:"min_positive_examples"`
	MinNegativeExamples int   `json:"min_negative_examples"`
}

// DomainCompletion is the full domain_completion.v1 document.
type DomainCompletion struct {
	Entries []DomainCompletionEntry `json:"entries"`
}

// GoldenCorpusEntry names a compound and the packs applicable to it, used
// by the Domain-Completion Gate to count positive examples per pack.
type GoldenCorpusEntry struct {
	CompoundID       string   `json:"compound_id"`
	ApplicablePacks []string `json:"applicable_packs"`
}

// GoldenCorpus is the global positive-examples list.
type GoldenCorpus struct {
	Entries []GoldenCorpusEntry `json:"entries"`
}

// CoreTags is the registry of well-known tag names, used for reference
// validation of any_tag predicates.
type CoreTags struct {
	Tags []string `json:"tags"`
}

// TableMetadata carries any per-table descriptive metadata the index
// references; the evaluator treats it as opaque, load-and-validate-only
// data that downstream components may surface in reports.
type TableMetadata struct {
	Tables map[Table]map[string]interface{} `json:"tables"`
}

// AtomicProperty is one entry of atomic_properties.v1.json: a named,
// reusable predicate fragment. The evaluator does not special-case its
// contents beyond schema/reference validation; packs may reference these
// ids from extension fields.
type AtomicProperty struct {
	ID          string `json:"id"`
	Description string `json:"description,omitempty"`
}

// AtomicProperties is the full atomic_properties.v1 document.
type AtomicProperties struct {
	Properties []AtomicProperty `json:"properties"`
}

// CombiningAlgorithm is a strategy registry entry's resolution rule.
type CombiningAlgorithm string

const (
	AlgorithmDenyOverrides      CombiningAlgorithm = "deny_overrides"
	AlgorithmPermitOverrides    CombiningAlgorithm = "permit_overrides"
	AlgorithmFirstApplicable    CombiningAlgorithm = "first_applicable"
	AlgorithmOnlyOneApplicable  CombiningAlgorithm = "only_one_applicable"
)

// StrategyCombining names the algorithm a strategy registry entry uses.
type StrategyCombining struct {
	Algorithm CombiningAlgorithm `json:"algorithm"`
}

// StrategyFixtureEffect is one link's effect within a counterexample
// fixture: a decision to combine under the strategy's algorithm.
type StrategyFixtureEffect struct {
	LinkID   string `json:"link_id"`
	Decision string `json:"decision"` // "permit" | "deny" | "not_applicable"
}

// StrategyFixture is one attached counterexample for a strategy registry
// entry.
type StrategyFixture struct {
	Name             string                  `json:"name"`
	Effects          []StrategyFixtureEffect `json:"effects"`
	ExpectedDecision string                  `json:"expected_decision"`
}

// StrategyEntry is one registered combining strategy.
type StrategyEntry struct {
	StrategyID                string             `json:"strategy_id"`
	Kind                       string             `json:"kind"`
	Name                       string             `json:"name"`
	Combining                  StrategyCombining  `json:"combining"`
	CanonicalSemanticsHashSHA256 string           `json:"canonical_semantics_hash_sha256"`
	Fixtures                   []StrategyFixture  `json:"fixtures,omitempty"`
}

// StrategyRegistry is the full strategies/strategy_registry.v1 document.
type StrategyRegistry struct {
	Strategies []StrategyEntry `json:"strategies"`
}
