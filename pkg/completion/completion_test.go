package completion

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

type fakeRuleCounts map[string]int

func (f fakeRuleCounts) RuleCount(packID string) int { return f[packID] }

func TestCheckSkipsEntriesNotDeclaredComplete(t *testing.T) {
	dc := &model.DomainCompletion{Entries: []model.DomainCompletionEntry{
		{PackID: "p1", Status: "draft", MinPositiveExamples: 5},
	}}
	c := errorir.NewCollector()
	Check(dc, &model.GoldenCorpus{}, nil, fakeRuleCounts{}, nil, c)
	c.Finalize()
	assert.Len(t, c.Errors(), 0)
}

func TestCheckFlagsPackWithNoRules(t *testing.T) {
	dc := &model.DomainCompletion{Entries: []model.DomainCompletionEntry{
		{PackID: "p1", Status: "complete"},
	}}
	c := errorir.NewCollector()
	Check(dc, &model.GoldenCorpus{}, nil, fakeRuleCounts{}, nil, c)
	c.Finalize()
	errs := c.Errors()
	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, errorir.CodeDomainCompletionRules)
}

func TestCheckFlagsInsufficientPositiveExamples(t *testing.T) {
	dc := &model.DomainCompletion{Entries: []model.DomainCompletionEntry{
		{PackID: "p1", Status: "complete", MinPositiveExamples: 2},
	}}
	corpus := &model.GoldenCorpus{Entries: []model.GoldenCorpusEntry{
		{CompoundID: "c1", ApplicablePacks: []string{"p1"}},
	}}
	c := errorir.NewCollector()
	Check(dc, corpus, nil, fakeRuleCounts{"p1": 3}, nil, c)
	c.Finalize()
	errs := c.Errors()
	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, errorir.CodeDomainCompletionPos)
}

func TestCheckFlagsInsufficientNegativeExamples(t *testing.T) {
	dc := &model.DomainCompletion{Entries: []model.DomainCompletionEntry{
		{PackID: "p1", Status: "complete", MinNegativeExamples: 1},
	}}
	c := errorir.NewCollector()
	Check(dc, &model.GoldenCorpus{}, nil, fakeRuleCounts{"p1": 3}, map[string]string{}, c)
	c.Finalize()
	errs := c.Errors()
	var codes []string
	for _, e := range errs {
		codes = append(codes, e.Code)
	}
	assert.Contains(t, codes, errorir.CodeDomainCompletionNeg)
}

func TestCheckPassesWhenQuorumSatisfied(t *testing.T) {
	dc := &model.DomainCompletion{Entries: []model.DomainCompletionEntry{
		{PackID: "p1", Status: "complete", MinPositiveExamples: 1, MinNegativeExamples: 1},
	}}
	corpus := &model.GoldenCorpus{Entries: []model.GoldenCorpusEntry{
		{CompoundID: "c1", ApplicablePacks: []string{"p1"}},
	}}
	negCases := []model.NegativeExample{
		{ID: "n1", ExpectErrors: []string{"r1"}},
	}
	ruleToPack := map[string]string{"r1": "p1"}

	c := errorir.NewCollector()
	Check(dc, corpus, negCases, fakeRuleCounts{"p1": 2}, ruleToPack, c)
	c.Finalize()
	require.Len(t, c.Errors(), 0)
}

func TestCountNegativeApplicableMatchesWarningsToo(t *testing.T) {
	cases := []model.NegativeExample{
		{ID: "n1", ExpectWarnings: []string{"r2"}},
	}
	n := countNegativeApplicable(cases, "p1", map[string]string{"r2": "p1"})
	assert.Equal(t, 1, n)
}
