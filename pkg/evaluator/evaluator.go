// Package evaluator implements the top-level orchestration of a single
// Periodic System run: load every input document, evaluate every compound
// and system under the active profile, run the negative-example and
// domain-completion gates, and assemble the explain-trace/proof-graph/
// safety-envelope/receipt artifacts described in spec.md §4.
package evaluator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/periodic-system/evaluator/pkg/canonicalize"
	"github.com/periodic-system/evaluator/pkg/completion"
	"github.com/periodic-system/evaluator/pkg/elementindex"
	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/kappa"
	"github.com/periodic-system/evaluator/pkg/loader"
	"github.com/periodic-system/evaluator/pkg/model"
	"github.com/periodic-system/evaluator/pkg/packcomposer"
	"github.com/periodic-system/evaluator/pkg/proofgraph"
	"github.com/periodic-system/evaluator/pkg/receipt"
	"github.com/periodic-system/evaluator/pkg/safetyenvelope"
	"github.com/periodic-system/evaluator/pkg/strategy"
	"github.com/periodic-system/evaluator/pkg/trace"
)

// Options configures one evaluator run. Every field that feeds a hashed
// artifact must be supplied by the caller rather than derived from
// wall-clock state, so two runs over the same Options are byte-identical.
type Options struct {
	IndexPath       string
	Strict          bool
	Profile         string
	AsOf            time.Time
	PolicyURI       string
	VerifierVersion string
	VerifierKeyID   string
	KappaWasmPath   string
}

// Result is everything a CLI or test needs after a run: the pass/fail
// decision, the full violation set, and every hashed artifact the receipt
// and bundle stages compose from.
type Result struct {
	OK        bool
	Collector *errorir.Collector
	Profile   string
	PolicyURI string

	ProfileContractHashSHA256 string
	SemanticsDigestHashSHA256 string
	KappaIndexHashSHA256      string
	SystemKappaHashSHA256     string
	TargetKappaCommitment     string
	ObligationsHashSHA256     string
	StrategyRegistryHash      string
	TraceHashSHA256           string

	Traces trace.Views

	ProofGraph           proofgraph.Graph
	ProofGraphHashSHA256 string

	SafetyEnvelope           safetyenvelope.Envelope
	SafetyEnvelopeHashSHA256 string

	Receipt           receipt.Receipt
	ReceiptHashSHA256 string
}

// Run executes one full evaluation: load, compose, evaluate every
// compound and system, run the negative-example and completion gates, and
// assemble the receipt. It returns an error only for a fatal load failure
// (bad JSON, missing file, unknown profile); policy failures are reported
// through Result.OK and Result.Collector, never as a Go error.
func Run(opts Options) (*Result, error) {
	asOf := opts.AsOf
	if asOf.IsZero() {
		asOf = time.Now().UTC()
	}
	policyURI := opts.PolicyURI
	if policyURI == "" {
		policyURI = opts.IndexPath
	}

	collector := errorir.NewCollector()
	baseDir := filepath.Dir(opts.IndexPath)
	ldr := loader.New(baseDir, collector)

	idx, err := ldr.LoadIndex(filepath.Base(opts.IndexPath))
	if err != nil {
		return nil, err
	}

	tables := map[model.Table][]model.Element{}
	for t, path := range idx.Tables {
		els, err := ldr.LoadTable(path, t)
		if err != nil {
			return nil, err
		}
		tables[t] = els
	}
	elementIdx := elementindex.Build(tables, opts.Strict, collector)

	baseRules, err := ldr.LoadRules(idx.BondRules, "")
	if err != nil {
		return nil, err
	}
	bondPacks, err := ldr.LoadPacks(idx.BondPacks)
	if err != nil {
		return nil, err
	}
	domains, err := ldr.LoadDomains(idx.Domains)
	if err != nil {
		return nil, err
	}
	profilesDoc, err := ldr.LoadProfiles(idx.Profiles, opts.Profile)
	if err != nil {
		return nil, err
	}
	if _, err := ldr.LoadCoreTags(idx.CoreTags); err != nil {
		return nil, err
	}
	if _, err := ldr.LoadTableMetadata(idx.TableMetadata); err != nil {
		return nil, err
	}
	if _, err := ldr.LoadAtomicProperties(idx.AtomicProperties); err != nil {
		return nil, err
	}
	spelSemantics, err := ldr.LoadSPELSemantics(idx.SPELSemantics)
	if err != nil {
		return nil, err
	}
	domainCompletion, err := ldr.LoadDomainCompletion(idx.DomainCompletion)
	if err != nil {
		return nil, err
	}
	flowPairs, err := ldr.LoadFlowWorkshopPairs(idx.FlowWorkshopPairs)
	if err != nil {
		return nil, err
	}
	negativeExamples, err := ldr.LoadNegativeExamples(idx.NegativeExamples)
	if err != nil {
		return nil, err
	}
	systemNegativeExamples, err := ldr.LoadSystemNegativeExamples(idx.SystemNegativeExamples)
	if err != nil {
		return nil, err
	}
	goldenCorpus, err := ldr.LoadGoldenCorpus(idx.GoldenCorpus)
	if err != nil {
		return nil, err
	}

	strategyRegistry := &model.StrategyRegistry{}
	if idx.StrategyRegistry != "" {
		strategyRegistry, err = ldr.LoadStrategyRegistry(idx.StrategyRegistry)
		if err != nil {
			return nil, err
		}
	}

	profileName := opts.Profile
	if profileName == "" {
		profileName = profilesDoc.DefaultProfile
	}
	profile, ok := profilesDoc.Profiles[profileName]
	if !ok {
		return nil, fmt.Errorf("evaluator: profile %q is not declared in %s", profileName, idx.Profiles)
	}
	profile.Name = profileName

	composer := packcomposer.Build(profile, bondPacks, domains, baseRules, collector)

	allActiveRules := append([]model.BondRule(nil), composer.BaseRules...)
	var enabledIDs []string
	for id := range composer.EnabledPacks {
		enabledIDs = append(enabledIDs, id)
	}
	sort.Strings(enabledIDs)
	for _, id := range enabledIDs {
		allActiveRules = append(allActiveRules, composer.EnabledPacks[id].Rules...)
	}
	strategy.CheckCELWhenProfiles(allActiveRules, collector)

	strategyRegistryHash, err := strategy.Check(strategyRegistry, collector)
	if err != nil {
		return nil, err
	}

	profileContractHash, err := computeProfileContractHash(profile, enabledIDs, allActiveRules)
	if err != nil {
		return nil, err
	}
	semanticsDigestHash, err := canonicalize.CanonicalHash(*spelSemantics)
	if err != nil {
		return nil, err
	}
	kappaIndexHash, err := receipt.KappaIndex(idx)
	if err != nil {
		return nil, err
	}

	var kappaTool kappa.Tool
	if opts.KappaWasmPath != "" {
		wasmBytes, err := os.ReadFile(opts.KappaWasmPath)
		if err != nil {
			return nil, fmt.Errorf("evaluator: failed to read kappa-wasm module %q: %w", opts.KappaWasmPath, err)
		}
		wt, err := kappa.NewWasmTool(context.Background(), wasmBytes, kappa.WasmToolConfig{})
		if err != nil {
			return nil, err
		}
		defer func() { _ = wt.Close(context.Background()) }()
		kappaTool = wt
	}

	e := &env{
		ElementIdx:      elementIdx,
		Domains:         domains,
		Composer:        composer,
		FlowPairs:       flowPairs,
		Profile:         profile,
		AsOf:            asOf,
		PolicyURI:       policyURI,
		spelEndorsement: spelSemantics.Endorsement,
		KappaTool:       kappaTool,
	}

	cache := map[string]cachedCompound{}
	for _, path := range idx.Examples {
		if _, _, err := e.evaluateCompoundCached(ldr, cache, path, collector); err != nil {
			return nil, err
		}
	}

	type systemKappaPair struct {
		SystemID  string `json:"system_id"`
		KappaHash string `json:"kappa_hash"`
	}
	var systemKappaPairs []systemKappaPair
	for _, path := range idx.Systems {
		sys, kr, err := e.evaluateSystem(ldr, cache, path, collector)
		if err != nil {
			return nil, err
		}
		systemKappaPairs = append(systemKappaPairs, systemKappaPair{SystemID: sys.ID, KappaHash: kr.KappaHash})
	}
	sort.Slice(systemKappaPairs, func(i, j int) bool { return systemKappaPairs[i].SystemID < systemKappaPairs[j].SystemID })
	systemKappaHash, err := canonicalize.CanonicalHash(systemKappaPairs)
	if err != nil {
		return nil, err
	}

	if err := e.runNegativeExamples(baseDir, negativeExamples, systemNegativeExamples, opts.Strict, collector); err != nil {
		return nil, err
	}

	if opts.Strict {
		ruleToPack := composer.RuleToPack()
		completion.Check(domainCompletion, goldenCorpus, negativeExamples, composer, ruleToPack, collector)
	}

	collector.Finalize()
	violations := collector.All()

	entries := buildTraceEntries(violations)
	views, err := trace.BuildAll(entries, profileContractHash, semanticsDigestHash)
	if err != nil {
		return nil, err
	}
	traceHash, err := canonicalize.CanonicalHash(entries)
	if err != nil {
		return nil, err
	}

	envelope, envelopeHash, err := safetyenvelope.Build(profile.Name, *spelSemantics, domains)
	if err != nil {
		return nil, err
	}

	graph, graphHash, err := proofgraph.BuildFromEntries(entries, views.V61.Hash, views.V62.Hash, envelopeHash)
	if err != nil {
		return nil, err
	}

	obligHash, err := obligationsHash(violations)
	if err != nil {
		return nil, err
	}

	inputAttestations := []receipt.InputAttestation{
		{Kind: "profile_contract", Digest: receipt.Digest{SHA256: profileContractHash}},
		{Kind: "semantics", Digest: receipt.Digest{SHA256: semanticsDigestHash}},
		{Kind: "kappa_index", Digest: receipt.Digest{SHA256: kappaIndexHash}},
	}

	rcpt, receiptHash, err := receipt.Assemble(receipt.Params{
		VerifierVersion:       opts.VerifierVersion,
		VerifierKeyID:         opts.VerifierKeyID,
		PolicyURI:             policyURI,
		ProfileContractHash:   profileContractHash,
		SemanticsDigestHash:   semanticsDigestHash,
		InputAttestations:     inputAttestations,
		TargetKappaCommitment: systemKappaHash,
		Traces:                views,
		Graph:                 graph,
		GraphHash:             graphHash,
		Envelope:              envelope,
		EnvelopeHash:          envelopeHash,
		StrategyRegistryHash:  strategyRegistryHash,
		SystemKappaHash:       systemKappaHash,
		ObligationsHash:       obligHash,
	})
	if err != nil {
		return nil, err
	}

	return &Result{
		OK:                        collector.OK(opts.Strict),
		Collector:                 collector,
		Profile:                   profile.Name,
		PolicyURI:                 policyURI,
		ProfileContractHashSHA256: profileContractHash,
		SemanticsDigestHashSHA256: semanticsDigestHash,
		KappaIndexHashSHA256:      kappaIndexHash,
		SystemKappaHashSHA256:     systemKappaHash,
		TargetKappaCommitment:     systemKappaHash,
		ObligationsHashSHA256:     obligHash,
		StrategyRegistryHash:      strategyRegistryHash,
		TraceHashSHA256:           traceHash,
		Traces:                    views,
		ProofGraph:                graph,
		ProofGraphHashSHA256:      graphHash,
		SafetyEnvelope:            envelope,
		SafetyEnvelopeHashSHA256:  envelopeHash,
		Receipt:                   rcpt,
		ReceiptHashSHA256:         receiptHash,
	}, nil
}

type profileContractKey struct {
	Profile      string           `json:"profile"`
	EnabledPacks []string         `json:"enabled_packs"`
	Rules        []model.BondRule `json:"rules"`
}

// computeProfileContractHash commits to the fully resolved policy in
// force for this run: which profile, which packs it enabled, and the
// complete effective rule set (base rules union every enabled pack's
// rules). Two runs sharing this hash are guaranteed to have evaluated
// every compound against the same obligations.
func computeProfileContractHash(profile model.Profile, enabledPackIDs []string, rules []model.BondRule) (string, error) {
	sorted := append([]model.BondRule(nil), rules...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return canonicalize.CanonicalHash(profileContractKey{
		Profile:      profile.Name,
		EnabledPacks: append([]string(nil), enabledPackIDs...),
		Rules:        sorted,
	})
}
