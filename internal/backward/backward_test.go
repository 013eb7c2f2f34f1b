package backward

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/index"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

type fakeTemplates struct{}

func (fakeTemplates) Template(string) (value.Template, bool) { return value.Template{}, false }

func newFixture(t *testing.T) (*Engine, *wm.WorkingMemory) {
	t.Helper()
	memory := wm.New(fakeTemplates{})
	knowledge := kb.New()
	ix := index.New()

	rule := &kb.Rule{
		Name:    "IsAdult",
		Pattern: expr.Comparison{Op: expr.OpGte, Lhs: expr.Field{Path: "Person.age"}, Rhs: expr.Literal{Value: value.Int(18)}},
		Actions: []action.Action{
			action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}},
		},
	}
	require.NoError(t, knowledge.AddRule(rule))
	ix.Rebuild(knowledge.Rules())

	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(25))))
	require.NoError(t, err)

	return New(knowledge, memory, ix, nil), memory
}

func adultGoal() expr.Expr {
	return expr.Comparison{Op: expr.OpEq, Lhs: expr.Field{Path: "Person.is_adult"}, Rhs: expr.Literal{Value: value.Bool(true)}}
}

func TestQueryProvesGoalViaRuleConclusion(t *testing.T) {
	e, _ := newFixture(t)
	res := e.Query(context.Background(), adultGoal(), DefaultConfig())
	assert.True(t, res.Provable)
	require.Len(t, res.Solutions, 1)
}

func TestQueryProvesGoalDirectlyFromWorkingMemory(t *testing.T) {
	e, memory := newFixture(t)
	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(40)), value.F("is_adult", value.Bool(true))))
	require.NoError(t, err)

	res := e.Query(context.Background(), adultGoal(), DefaultConfig())
	assert.True(t, res.Provable)
}

func TestQueryFailsWhenPremiseUnsatisfied(t *testing.T) {
	memory := wm.New(fakeTemplates{})
	knowledge := kb.New()
	ix := index.New()
	rule := &kb.Rule{
		Name:    "IsAdult",
		Pattern: expr.Comparison{Op: expr.OpGte, Lhs: expr.Field{Path: "Person.age"}, Rhs: expr.Literal{Value: value.Int(18)}},
		Actions: []action.Action{action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}}},
	}
	require.NoError(t, knowledge.AddRule(rule))
	ix.Rebuild(knowledge.Rules())
	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(10))))
	require.NoError(t, err)

	e := New(knowledge, memory, ix, nil)
	res := e.Query(context.Background(), adultGoal(), DefaultConfig())
	assert.False(t, res.Provable)
}

func TestQueryNegationAsFailure(t *testing.T) {
	e, _ := newFixture(t)
	goal := expr.Not{Child: adultGoal()}
	res := e.Query(context.Background(), goal, DefaultConfig())
	assert.False(t, res.Provable)
}

func TestQueryAndConjunction(t *testing.T) {
	e, _ := newFixture(t)
	ageGoal := expr.Comparison{Op: expr.OpGte, Lhs: expr.Field{Path: "Person.age"}, Rhs: expr.Literal{Value: value.Int(18)}}
	goal := expr.And{Children: []expr.Expr{ageGoal, adultGoal()}}
	res := e.Query(context.Background(), goal, DefaultConfig())
	assert.True(t, res.Provable)
}

func TestQueryOrTriesAlternatives(t *testing.T) {
	e, _ := newFixture(t)
	falseGoal := expr.Comparison{Op: expr.OpEq, Lhs: expr.Literal{Value: value.Int(1)}, Rhs: expr.Literal{Value: value.Int(2)}}
	goal := expr.Or{Children: []expr.Expr{falseGoal, adultGoal()}}
	res := e.Query(context.Background(), goal, DefaultConfig())
	assert.True(t, res.Provable)
}

func TestQueryDepthExceededFailsCleanly(t *testing.T) {
	e, _ := newFixture(t)
	cfg := DefaultConfig()
	cfg.MaxDepth = 0
	cfg.Trace = true
	res := e.Query(context.Background(), adultGoal(), cfg)
	assert.False(t, res.Provable)
}

func TestQueryTraceBuildsProofTree(t *testing.T) {
	e, _ := newFixture(t)
	cfg := DefaultConfig()
	cfg.Trace = true
	res := e.Query(context.Background(), adultGoal(), cfg)
	require.True(t, res.Provable)
	require.NotNil(t, res.Trace)
}

func TestQueryNoTraceOmitsProofTree(t *testing.T) {
	e, _ := newFixture(t)
	res := e.Query(context.Background(), adultGoal(), DefaultConfig())
	assert.Nil(t, res.Trace)
}

func TestQueryCycleDetectionViaActiveGoalStack(t *testing.T) {
	memory := wm.New(fakeTemplates{})
	knowledge := kb.New()
	ix := index.New()
	// A rule whose own premise is its own conclusion: proving it would
	// otherwise recurse forever without the active-goal-stack check.
	selfGoal := expr.Comparison{Op: expr.OpEq, Lhs: expr.Field{Path: "X.flag"}, Rhs: expr.Literal{Value: value.Bool(true)}}
	rule := &kb.Rule{
		Name:    "SelfReferential",
		Pattern: selfGoal,
		Actions: []action.Action{action.Set{Path: "X.flag", Expr: expr.Literal{Value: value.Bool(true)}}},
	}
	require.NoError(t, knowledge.AddRule(rule))
	ix.Rebuild(knowledge.Rules())

	e := New(knowledge, memory, ix, nil)
	cfg := DefaultConfig()
	cfg.Trace = true
	res := e.Query(context.Background(), selfGoal, cfg)
	assert.False(t, res.Provable)
	assert.False(t, res.Cancelled)
}

func TestQueryIterativeDeepeningFindsShallowProof(t *testing.T) {
	e, _ := newFixture(t)
	cfg := DefaultConfig()
	cfg.Strategy = IterativeDeepening
	cfg.MaxDepth = 4
	res := e.Query(context.Background(), adultGoal(), cfg)
	assert.True(t, res.Provable)
}

func TestInvalidateClearsMemoAcrossKBMutation(t *testing.T) {
	e, memory := newFixture(t)
	res := e.Query(context.Background(), adultGoal(), DefaultConfig())
	require.True(t, res.Provable)

	require.NoError(t, memory.Retract(firstHandle(t, memory, "Person")))
	e.Invalidate()

	res = e.Query(context.Background(), adultGoal(), DefaultConfig())
	assert.False(t, res.Provable)
}

func firstHandle(t *testing.T, memory *wm.WorkingMemory, factType string) wm.Handle {
	t.Helper()
	hs := memory.ByType(factType)
	require.NotEmpty(t, hs)
	return hs[0]
}

type recordingExecutor struct{ calls []string }

func (r *recordingExecutor) Execute(_ context.Context, rule *kb.Rule, _ bind.Bindings) error {
	r.calls = append(r.calls, rule.Name)
	return nil
}

func TestAssertingModeExecutesDerivingRule(t *testing.T) {
	e, _ := newFixture(t)
	exec := &recordingExecutor{}
	e.Executor = exec

	cfg := DefaultConfig()
	cfg.AssertingMode = true
	res := e.Query(context.Background(), adultGoal(), cfg)
	require.True(t, res.Provable)
	assert.Contains(t, exec.calls, "IsAdult")
}

// TestConcurrentIdenticalQueriesShareOneProof exercises the inflight
// singleflight.Group: many goroutines proving the same goal against the
// same bindings at once should all observe a provable result, with the
// underlying search collapsed rather than run once per goroutine.
func TestConcurrentIdenticalQueriesShareOneProof(t *testing.T) {
	e, _ := newFixture(t)

	const n = 32
	results := make([]bool, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			res := e.Query(context.Background(), adultGoal(), DefaultConfig())
			results[i] = res.Provable
		}(i)
	}
	wg.Wait()

	for i, ok := range results {
		assert.Truef(t, ok, "goroutine %d: expected goal to be provable", i)
	}
}
