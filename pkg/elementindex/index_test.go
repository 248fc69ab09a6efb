package elementindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/periodic-system/evaluator/pkg/errorir"
	"github.com/periodic-system/evaluator/pkg/model"
)

func TestBuildResolvesElementsAcrossTables(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability, Domain: "d1"}},
		model.TableEvidence:   {{ID: "ev.a", Table: model.TableEvidence, Domain: "d1"}},
	}
	c := errorir.NewCollector()
	idx := Build(tables, true, c)
	c.Finalize()

	require.Len(t, c.Errors(), 0)
	assert.True(t, idx.Has("cap.a"))
	assert.True(t, idx.Has("ev.a"))
	assert.Equal(t, "d1", idx.Get("cap.a").Domain)
}

func TestBuildFlagsDuplicateIDAcrossTables(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "dup", Table: model.TableCapability, Domain: "d1"}},
		model.TableEvidence:   {{ID: "dup", Table: model.TableEvidence, Domain: "d1"}},
	}
	c := errorir.NewCollector()
	Build(tables, true, c)
	c.Finalize()

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeIDDuplicate, errs[0].Code)
}

func TestBuildFlagsMissingDomainAsErrorWhenStrict(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability}},
	}
	c := errorir.NewCollector()
	Build(tables, true, c)
	c.Finalize()

	require.Len(t, c.Errors(), 1)
	assert.Equal(t, "reference.missing_domain", c.Errors()[0].Code)
}

func TestBuildFlagsMissingDomainAsWarningWhenNonStrict(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability}},
	}
	c := errorir.NewCollector()
	Build(tables, false, c)
	c.Finalize()

	assert.Len(t, c.Errors(), 0)
	require.Len(t, c.Warnings(), 1)
	assert.Equal(t, "reference.missing_domain", c.Warnings()[0].Code)
}

func TestBuildFlagsUnresolvedImpliesReference(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability, Domain: "d1", Implies: []string{"missing.id"}}},
	}
	c := errorir.NewCollector()
	Build(tables, true, c)
	c.Finalize()

	errs := c.Errors()
	require.Len(t, errs, 1)
	assert.Equal(t, errorir.CodeReferenceUnknownElement, errs[0].Code)
}

func TestAllReturnsElementsSortedByID(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {
			{ID: "cap.b", Table: model.TableCapability, Domain: "d1"},
			{ID: "cap.a", Table: model.TableCapability, Domain: "d1"},
		},
	}
	c := errorir.NewCollector()
	idx := Build(tables, true, c)
	all := idx.All()
	require.Len(t, all, 2)
	assert.Equal(t, "cap.a", all[0].ID)
	assert.Equal(t, "cap.b", all[1].ID)
}

func TestByTableFiltersToGivenTable(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability, Domain: "d1"}},
		model.TableEvidence:   {{ID: "ev.a", Table: model.TableEvidence, Domain: "d1"}},
	}
	c := errorir.NewCollector()
	idx := Build(tables, true, c)
	caps := idx.ByTable(model.TableCapability)
	require.Len(t, caps, 1)
	assert.Equal(t, "cap.a", caps[0].ID)
}

func TestElementsOfSkipsAndReportsUnknownIDs(t *testing.T) {
	tables := map[model.Table][]model.Element{
		model.TableCapability: {{ID: "cap.a", Table: model.TableCapability, Domain: "d1"}},
	}
	c := errorir.NewCollector()
	idx := Build(tables, true, c)
	c.Finalize()

	c2 := errorir.NewCollector()
	els := idx.ElementsOf("compound.1", []string{"cap.a", "missing"}, c2)
	c2.Finalize()

	require.Len(t, els, 1)
	assert.Equal(t, "cap.a", els[0].ID)
	require.Len(t, c2.Errors(), 1)
	assert.Equal(t, errorir.CodeReferenceUnknownElement, c2.Errors()[0].Code)
}
