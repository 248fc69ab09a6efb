package predicate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/periodic-system/evaluator/pkg/model"
)

func elements() []*model.Element {
	return []*model.Element{
		{ID: "el.a", Table: model.Table("exp"), Tags: []string{"t1"}},
		{ID: "el.b", Table: model.Table("exp"), Tags: []string{"t2"}},
		{ID: "el.c", Table: model.Table("atomic")},
	}
}

func TestEvaluateAnyOfTriggersOnPartialMatch(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{AnyOf: []string{"el.a", "el.zzz"}}, cv)
	assert.True(t, res.Triggered)
	assert.Equal(t, []string{"el.a"}, res.Because.AnyOfMatched)
}

func TestEvaluateAnyOfFailsWhenNoneMatch(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{AnyOf: []string{"el.zzz"}}, cv)
	assert.False(t, res.Triggered)
}

func TestEvaluateAllOfRequiresEveryElement(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{AllOf: []string{"el.a", "el.b"}}, cv)
	assert.True(t, res.Triggered)
	assert.Equal(t, []string{"el.a", "el.b"}, res.Because.AllOfMatched)

	res2 := Evaluate(model.When{AllOf: []string{"el.a", "el.zzz"}}, cv)
	assert.False(t, res2.Triggered)
}

func TestEvaluateAnyTagMatchesTaggedElements(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{AnyTag: []string{"t1", "t9"}}, cv)
	assert.True(t, res.Triggered)
	assert.Equal(t, []string{"t1"}, res.Because.AnyTagMatched)
}

func TestEvaluateTableAnyOfCollectsMatchingElements(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{TableAnyOf: []model.Table{model.Table("exp")}}, cv)
	assert.True(t, res.Triggered)
	assert.Equal(t, []string{"exp"}, res.Because.TableAnyOfTables)
	assert.Equal(t, []string{"el.a", "el.b"}, res.Because.TableAnyOfElements)
}

func TestEvaluateTableAnyOfFailsWhenTableAbsent(t *testing.T) {
	cv := NewCompoundView(elements())
	res := Evaluate(model.When{TableAnyOf: []model.Table{model.Table("nonexistent")}}, cv)
	assert.False(t, res.Triggered)
}

func TestEvaluateANDsAcrossMultiplePredicateFields(t *testing.T) {
	cv := NewCompoundView(elements())
	// any_of matches but all_of does not: overall result is false.
	res := Evaluate(model.When{AnyOf: []string{"el.a"}, AllOf: []string{"el.zzz"}}, cv)
	assert.False(t, res.Triggered)
}
