package index

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
)

func TestCandidatesFindsSetAction(t *testing.T) {
	r := &kb.Rule{Name: "IsAdult", Actions: []action.Action{
		action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}},
	}}
	ix := New()
	ix.Rebuild([]*kb.Rule{r})

	assert.Equal(t, []string{"IsAdult"}, ix.Candidates("Person.is_adult"))
	assert.Equal(t, []string{"IsAdult"}, ix.Candidates("Person"))
	assert.Empty(t, ix.Candidates("Person.can_vote"))
}

func TestCandidatesFindsAssertFields(t *testing.T) {
	r := &kb.Rule{Name: "CanVote", Actions: []action.Action{
		action.Assert{Type: "Person", Fields: []action.ObjectField{
			{Name: "can_vote", Expr: expr.Literal{Value: value.Bool(true)}},
		}},
	}}
	ix := New()
	ix.Rebuild([]*kb.Rule{r})

	assert.Equal(t, []string{"CanVote"}, ix.Candidates("Person.can_vote"))
	assert.Equal(t, []string{"CanVote"}, ix.Candidates("Person"))
}

func TestCandidatesIgnoresRetractAndLog(t *testing.T) {
	r := &kb.Rule{Name: "Cleanup", Actions: []action.Action{
		action.Retract{HandleExpr: expr.Literal{Value: value.Int(1)}},
		action.Log{Level: action.LogInfo, Message: expr.Literal{Value: value.String("done")}},
	}}
	ix := New()
	ix.Rebuild([]*kb.Rule{r})
	assert.Empty(t, ix.Candidates("Person.can_vote"))
}

func TestRebuildIsIdempotentAndReplacesPriorState(t *testing.T) {
	r1 := &kb.Rule{Name: "A", Actions: []action.Action{action.Set{Path: "X.y", Expr: expr.Literal{Value: value.Int(1)}}}}
	ix := New()
	ix.Rebuild([]*kb.Rule{r1})
	assert.Equal(t, []string{"A"}, ix.Candidates("X.y"))

	r2 := &kb.Rule{Name: "B", Actions: []action.Action{action.Set{Path: "X.y", Expr: expr.Literal{Value: value.Int(2)}}}}
	ix.Rebuild([]*kb.Rule{r2})
	assert.Equal(t, []string{"B"}, ix.Candidates("X.y"))
}

func TestMultipleRulesSameKey(t *testing.T) {
	r1 := &kb.Rule{Name: "A", Actions: []action.Action{action.Set{Path: "X.y", Expr: expr.Literal{Value: value.Int(1)}}}}
	r2 := &kb.Rule{Name: "B", Actions: []action.Action{action.Set{Path: "X.y", Expr: expr.Literal{Value: value.Int(2)}}}}
	ix := New()
	ix.Rebuild([]*kb.Rule{r1, r2})
	assert.Equal(t, []string{"A", "B"}, ix.Candidates("X.y"))
}
