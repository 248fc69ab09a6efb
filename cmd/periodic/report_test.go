package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/evaluator"
)

func sampleResult(t *testing.T) *evaluator.Result {
	t.Helper()
	c := errorir.NewCollector()
	c.Add(errorir.Violation{
		Code: errorir.CodeRuleObligationUnmet, Kind: "compound", CompoundID: "c1",
		RuleID: "r1", Severity: errorir.SeverityError, Message: "missing obligation",
	})
	c.Add(errorir.Violation{
		Code: errorir.CodeKappaExternalFallback, Kind: "system", SystemID: "s1",
		Severity: errorir.SeverityWarn, Message: "fell back to in-process",
	})
	c.Finalize()

	return &evaluator.Result{
		OK:                        false,
		Collector:                 c,
		Profile:                   "ship",
		TraceHashSHA256:           "trace-hash",
		ProfileContractHashSHA256: "contract-hash",
		SemanticsDigestHashSHA256: "semantics-hash",
		KappaIndexHashSHA256:      "kappa-index-hash",
		ProofGraphHashSHA256:      "graph-hash",
		SafetyEnvelopeHashSHA256:  "envelope-hash",
		ReceiptHashSHA256:         "receipt-hash",
	}
}

func TestBuildReportCountsAndOK(t *testing.T) {
	res := sampleResult(t)
	rpt := buildReport(res, false, false)

	assert.False(t, rpt.OK)
	assert.Equal(t, 1, rpt.ErrorCount)
	assert.Equal(t, 1, rpt.WarningCount)
	require.Len(t, rpt.Errors, 1)
	require.Len(t, rpt.Warnings, 1)
	assert.Equal(t, "c1", rpt.Errors[0].Target)
	assert.Equal(t, "s1", rpt.Warnings[0].Target)
}

func TestBuildReportTraceHashOnlyDropsDetail(t *testing.T) {
	res := sampleResult(t)
	rpt := buildReport(res, true, false)

	assert.Equal(t, 1, rpt.ErrorCount)
	assert.Equal(t, 1, rpt.WarningCount)
	assert.Nil(t, rpt.Errors)
	assert.Nil(t, rpt.Warnings)
	assert.Equal(t, "trace-hash", rpt.TraceHashSHA256)
}

func TestSummaryLineFormat(t *testing.T) {
	res := sampleResult(t)
	rpt := buildReport(res, false, false)
	assert.Equal(t, "FAIL errors=1 warnings=1", summaryLine(rpt))

	res.OK = true
	res.Collector = errorir.NewCollector()
	res.Collector.Finalize()
	rpt2 := buildReport(res, false, false)
	assert.Equal(t, "PASS errors=0 warnings=0", summaryLine(rpt2))
}

func TestWriteMarkdownReportIncludesHashesAndViolations(t *testing.T) {
	res := sampleResult(t)
	rpt := buildReport(res, false, false)

	var buf strings.Builder
	require.NoError(t, writeMarkdownReport(&buf, rpt))
	out := buf.String()

	assert.Contains(t, out, "# Periodic System evaluation: FAIL")
	assert.Contains(t, out, "rule.obligation_unmet")
	assert.Contains(t, out, "kappa.external_tool_fallback")
	assert.Contains(t, out, "receipt_hash_sha256: `receipt-hash`")
}
