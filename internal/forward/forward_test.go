package forward

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/dispatch"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

type fakeTemplates struct{}

func (fakeTemplates) Template(string) (value.Template, bool) { return value.Template{}, false }

func newFixture(t *testing.T) (*Engine, *wm.WorkingMemory, *kb.KnowledgeBase) {
	t.Helper()
	memory := wm.New(fakeTemplates{})
	knowledge := kb.New()
	network := rete.New(nil)
	ag := agenda.New(agenda.StrategySalience, 0)
	d := dispatch.New(memory, knowledge, ag, nil)
	e := New(memory, knowledge, network, ag, d, nil)
	return e, memory, knowledge
}

func adultRule() *kb.Rule {
	return &kb.Rule{
		Name:    "IsAdult",
		Pattern: expr.Comparison{Op: expr.OpGte, Lhs: expr.Field{Path: "Person.age"}, Rhs: expr.Literal{Value: value.Int(18)}},
		Actions: []action.Action{
			action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}},
		},
		Meta: kb.Metadata{NoLoop: true},
	}
}

func TestRunFiresSingleMatchingRule(t *testing.T) {
	e, memory, knowledge := newFixture(t)
	rule := adultRule()
	require.NoError(t, knowledge.AddRule(rule))
	e.Network.AddRule(rule)

	h, err := memory.Insert("Person", value.Object(value.F("age", value.Int(30))))
	require.NoError(t, err)

	res := e.Run(context.Background(), DefaultConfig())
	assert.Contains(t, res.Fired, "IsAdult")
	assert.False(t, res.LimitHit)

	fact, ok := memory.Get(h)
	require.True(t, ok)
	v, ok := fact.Data.Field1("is_adult")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}

func TestRunZeroRulesZeroFactsReturnsEmpty(t *testing.T) {
	e, _, _ := newFixture(t)
	res := e.Run(context.Background(), DefaultConfig())
	assert.Empty(t, res.Fired)
	assert.False(t, res.LimitHit)
}

func TestRunNoLoopPreventsRefiringSameTuple(t *testing.T) {
	e, memory, knowledge := newFixture(t)
	rule := adultRule()
	require.NoError(t, knowledge.AddRule(rule))
	e.Network.AddRule(rule)

	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(30))))
	require.NoError(t, err)

	res := e.Run(context.Background(), DefaultConfig())
	count := 0
	for _, name := range res.Fired {
		if name == "IsAdult" {
			count++
		}
	}
	assert.Equal(t, 1, count, "no-loop rule must fire at most once per enabling tuple")
}

func TestRunRespectsMaxCyclesCap(t *testing.T) {
	e, memory, knowledge := newFixture(t)
	rule := adultRule()
	require.NoError(t, knowledge.AddRule(rule))
	e.Network.AddRule(rule)
	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(20))))
	require.NoError(t, err)
	_, err = memory.Insert("Person", value.Object(value.F("age", value.Int(40))))
	require.NoError(t, err)

	res := e.Run(context.Background(), Config{MaxCycles: 1})
	assert.True(t, res.LimitHit)
	assert.Len(t, res.Fired, 1)
}

func TestRunCancelledContextStopsLoop(t *testing.T) {
	e, memory, knowledge := newFixture(t)
	rule := adultRule()
	require.NoError(t, knowledge.AddRule(rule))
	e.Network.AddRule(rule)
	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(30))))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := e.Run(ctx, DefaultConfig())
	assert.True(t, res.Cancelled)
}

func TestRunParallelFiresIndependentActivations(t *testing.T) {
	e, memory, knowledge := newFixture(t)
	rule := adultRule()
	require.NoError(t, knowledge.AddRule(rule))
	e.Network.AddRule(rule)

	_, err := memory.Insert("Person", value.Object(value.F("age", value.Int(20))))
	require.NoError(t, err)
	_, err = memory.Insert("Person", value.Object(value.F("age", value.Int(40))))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.Parallel = true
	res := e.Run(context.Background(), cfg)
	count := 0
	for _, name := range res.Fired {
		if name == "IsAdult" {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestIndependentDetectsWriteWriteConflict(t *testing.T) {
	a := footprint{writes: map[string]bool{"X.y": true}, reads: map[string]bool{}}
	b := footprint{writes: map[string]bool{"X.y": true}, reads: map[string]bool{}}
	assert.False(t, independent(a, b))
}

func TestIndependentDetectsReadWriteConflict(t *testing.T) {
	a := footprint{writes: map[string]bool{"X.y": true}, reads: map[string]bool{}}
	b := footprint{writes: map[string]bool{}, reads: map[string]bool{"X.y": true}}
	assert.False(t, independent(a, b))
}

func TestIndependentAllowsDisjointFootprints(t *testing.T) {
	a := footprint{writes: map[string]bool{"X.y": true}, reads: map[string]bool{}}
	b := footprint{writes: map[string]bool{"Z.w": true}, reads: map[string]bool{}}
	assert.True(t, independent(a, b))
}
