package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/evaluator"
)

// violationView is the JSON-friendly projection of one errorir.Violation,
// independent of the internal hashed Violation shape.
type violationView struct {
	Code       string      `json:"code"`
	Kind       string      `json:"kind"`
	Target     string      `json:"target"`
	RuleID     string      `json:"rule_id,omitempty"`
	Severity   string      `json:"severity"`
	Message    string      `json:"message"`
	SourcePack string      `json:"source_pack,omitempty"`
	Waived     bool        `json:"waived,omitempty"`
	Because    interface{} `json:"because,omitempty"`
}

func toViolationView(v errorir.Violation) violationView {
	target := v.CompoundID
	if v.Kind == "system" {
		target = v.SystemID
	}
	return violationView{
		Code:       v.Code,
		Kind:       v.Kind,
		Target:     target,
		RuleID:     v.RuleID,
		Severity:   string(v.Severity),
		Message:    v.Message,
		SourcePack: v.SourcePack,
		Waived:     v.Waived,
		Because:    v.Because,
	}
}

// report is the CLI's JSON output document. Its shape is the CLI's own
// invention over the named hash fields spec.md §8 pins; nothing about it
// is hashed or fed back into the evaluator.
type report struct {
	Profile string `json:"profile"`
	OK      bool   `json:"ok"`

	ErrorCount   int `json:"error_count"`
	WarningCount int `json:"warning_count"`

	Errors   []violationView `json:"errors,omitempty"`
	Warnings []violationView `json:"warnings,omitempty"`

	TraceHashSHA256           string `json:"trace_hash_sha256"`
	ProfileContractHashSHA256 string `json:"profile_contract_hash_sha256"`
	SPELSemanticsHashSHA256   string `json:"spel_semantics_hash_sha256"`
	KappaIndexHashSHA256      string `json:"kappa_index_hash_sha256"`
	SystemKappaHashSHA256     string `json:"system_kappa_hash_sha256,omitempty"`
	ProofGraphHashSHA256      string `json:"proof_graph_hash_sha256"`
	SafetyEnvelopeHashSHA256  string `json:"safety_envelope_hash_sha256"`
	ReceiptHashSHA256         string `json:"receipt_hash_sha256"`
	StrategyRegistryHashSHA256 string `json:"strategy_registry_hash_sha256,omitempty"`
	ObligationsHashSHA256     string `json:"obligations_hash_sha256,omitempty"`

	ExplainTraceV2  interface{} `json:"explain_trace_v2,omitempty"`
	ExplainTraceV3  interface{} `json:"explain_trace_v3,omitempty"`
	ExplainTraceV6  interface{} `json:"explain_trace_v6,omitempty"`
	ExplainTraceV61 interface{} `json:"explain_trace_v6.1,omitempty"`
	ExplainTraceV62 interface{} `json:"explain_trace_v6.2,omitempty"`
}

// buildReport renders res into the CLI's JSON report document.
// traceHashOnly strips the per-violation detail and the full trace view
// bodies, keeping only the summary counts and the named hashes.
// includeTrace additionally attaches the five explain-trace view bodies.
func buildReport(res *evaluator.Result, traceHashOnly, includeTrace bool) report {
	r := report{
		Profile:                    res.Profile,
		OK:                         res.OK,
		TraceHashSHA256:            res.TraceHashSHA256,
		ProfileContractHashSHA256:  res.ProfileContractHashSHA256,
		SPELSemanticsHashSHA256:    res.SemanticsDigestHashSHA256,
		KappaIndexHashSHA256:       res.KappaIndexHashSHA256,
		SystemKappaHashSHA256:      res.SystemKappaHashSHA256,
		ProofGraphHashSHA256:       res.ProofGraphHashSHA256,
		SafetyEnvelopeHashSHA256:   res.SafetyEnvelopeHashSHA256,
		ReceiptHashSHA256:          res.ReceiptHashSHA256,
		StrategyRegistryHashSHA256: res.StrategyRegistryHash,
		ObligationsHashSHA256:      res.ObligationsHashSHA256,
	}

	errs := res.Collector.Errors()
	warns := res.Collector.Warnings()
	r.ErrorCount = len(errs)
	r.WarningCount = len(warns)

	if traceHashOnly {
		return r
	}

	for _, v := range errs {
		r.Errors = append(r.Errors, toViolationView(v))
	}
	for _, v := range warns {
		r.Warnings = append(r.Warnings, toViolationView(v))
	}

	if includeTrace {
		r.ExplainTraceV2 = res.Traces.V2.Document
		r.ExplainTraceV3 = res.Traces.V3.Document
		r.ExplainTraceV6 = res.Traces.V6.Document
		r.ExplainTraceV61 = res.Traces.V61.Document
		r.ExplainTraceV62 = res.Traces.V62.Document
	}

	return r
}

// summaryLine renders spec.md §7's default-mode summary:
// "PASS|FAIL errors=N warnings=N".
func summaryLine(r report) string {
	status := "PASS"
	if !r.OK {
		status = "FAIL"
	}
	return fmt.Sprintf("%s errors=%d warnings=%d", status, r.ErrorCount, r.WarningCount)
}

// writeMarkdownReport renders a short Markdown summary of the run,
// grouping violations by severity the way the teacher's conformance
// report does in core/pkg/conform/.
func writeMarkdownReport(w io.Writer, r report) error {
	fmt.Fprintf(w, "# Periodic System evaluation: %s\n\n", map[bool]string{true: "PASS", false: "FAIL"}[r.OK])
	fmt.Fprintf(w, "Profile: `%s`\n\n", r.Profile)
	fmt.Fprintf(w, "Errors: %d · Warnings: %d\n\n", r.ErrorCount, r.WarningCount)

	writeSection := func(title string, vs []violationView) {
		if len(vs) == 0 {
			return
		}
		sorted := append([]violationView(nil), vs...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Target < sorted[j].Target })
		fmt.Fprintf(w, "## %s\n\n", title)
		for _, v := range sorted {
			fmt.Fprintf(w, "- `%s` **%s** (%s, rule `%s`): %s\n", v.Target, v.Code, v.Kind, v.RuleID, v.Message)
		}
		fmt.Fprintln(w)
	}
	writeSection("Errors", r.Errors)
	writeSection("Warnings", r.Warnings)

	fmt.Fprintf(w, "## Hashes\n\n")
	fmt.Fprintf(w, "- trace_hash_sha256: `%s`\n", r.TraceHashSHA256)
	fmt.Fprintf(w, "- profile_contract_hash_sha256: `%s`\n", r.ProfileContractHashSHA256)
	fmt.Fprintf(w, "- spel_semantics_hash_sha256: `%s`\n", r.SPELSemanticsHashSHA256)
	fmt.Fprintf(w, "- kappa_index_hash_sha256: `%s`\n", r.KappaIndexHashSHA256)
	fmt.Fprintf(w, "- proof_graph_hash_sha256: `%s`\n", r.ProofGraphHashSHA256)
	fmt.Fprintf(w, "- safety_envelope_hash_sha256: `%s`\n", r.SafetyEnvelopeHashSHA256)
	fmt.Fprintf(w, "- receipt_hash_sha256: `%s`\n", r.ReceiptHashSHA256)
	return nil
}
