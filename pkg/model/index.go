package model

// Index is the top-level document the CLI is pointed at: it names every
// other input file by relative path.
type Index struct {
	Schema string `json:"schema"`

	Tables map[Table]string `json:"tables"`

	BondRules           string `json:"bond_rules"`
	BondPacks           string `json:"bond_packs"`
	Profiles            string `json:"profiles"`
	Domains             string `json:"domains"`
	CoreTags            string `json:"core_tags"`
	TableMetadata       string `json:"table_metadata"`
	AtomicProperties    string `json:"atomic_properties"`
	SPELSemantics       string `json:"spel_semantics"`
	DomainCompletion    string `json:"domain_completion"`
	FlowWorkshopPairs   string `json:"flow_workshop_pairs"`
	NegativeExamples    string `json:"negative_examples"`
	SystemNegativeExamples string `json:"system_negative_examples"`
	GoldenCorpus        string `json:"golden_corpus"`

	Systems   []string `json:"systems"`
	Examples  []string `json:"examples"`

	StrategyRegistry string `json:"strategy_registry,omitempty"`
}

// VolatileWiringFields names the keys stripped from the index document
// before computing κ(index): examples, negative_examples,
// system_negative_examples, systems. These name other input files whose
// own content is independently hashed elsewhere in the receipt; keeping
// them in κ(index) would make the commitment redundant with (and no
// stronger than) those per-document hashes while adding path-layout
// noise that has nothing to do with policy identity.
var VolatileWiringFields = []string{
	"examples",
	"negative_examples",
	"system_negative_examples",
	"systems",
}
