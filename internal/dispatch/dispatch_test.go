package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

type fakeTemplates struct{}

func (fakeTemplates) Template(string) (value.Template, bool) { return value.Template{}, false }

func newFixture(t *testing.T) (*Dispatcher, *wm.WorkingMemory, wm.Handle) {
	t.Helper()
	memory := wm.New(fakeTemplates{})
	knowledge := kb.New()
	ag := agenda.New(agenda.StrategySalience, 0)
	d := New(memory, knowledge, ag, nil)

	h, err := memory.Insert("Person", value.Object(value.F("age", value.Int(25))))
	require.NoError(t, err)
	return d, memory, h
}

func tokenFor(root string, h wm.Handle) rete.Token {
	return rete.Token{Handles: map[string]wm.Handle{root: h}}
}

func ruleWithActions(actions ...action.Action) *kb.Rule {
	return &kb.Rule{Name: "R", Actions: actions}
}

func TestFireExecSetWritesFactField(t *testing.T) {
	d, memory, h := newFixture(t)
	rule := ruleWithActions(action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	require.NoError(t, err)

	fact, ok := memory.Get(h)
	require.True(t, ok)
	v, ok := fact.Data.Field1("is_adult")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}

func TestFireExecSetWritesGlobal(t *testing.T) {
	d, memory, _ := newFixture(t)
	d.KB.AddGlobal(value.Global{Name: "counter", Value: value.Int(0)})
	rule := ruleWithActions(action.Set{Path: "counter", Expr: expr.Literal{Value: value.Int(5)}})

	err := d.Fire(context.Background(), rule, fallbackHandles{WM: memory}, bind.Empty())
	require.NoError(t, err)

	v, ok := d.KB.ResolveGlobal("counter")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestFireExecAssertInsertsFact(t *testing.T) {
	d, memory, _ := newFixture(t)
	rule := ruleWithActions(action.Assert{
		Type: "Greeting",
		Fields: []action.ObjectField{
			{Name: "text", Expr: expr.Literal{Value: value.String("hi")}},
		},
	})

	err := d.Fire(context.Background(), rule, fallbackHandles{WM: memory}, bind.Empty())
	require.NoError(t, err)
	assert.Len(t, memory.ByType("Greeting"), 1)
}

func TestFireExecRetractRemovesFact(t *testing.T) {
	d, memory, h := newFixture(t)
	rule := ruleWithActions(action.Retract{HandleExpr: expr.Field{Path: "Person"}})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	require.NoError(t, err)

	_, ok := memory.Get(h)
	assert.False(t, ok)
}

func TestFireAbortsAndRollsBackOnLaterActionError(t *testing.T) {
	d, memory, h := newFixture(t)
	rule := ruleWithActions(
		action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}},
		action.Set{Path: "Nowhere.field", Expr: expr.Literal{Value: value.Int(1)}},
	)

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	require.Error(t, err)

	fact, ok := memory.Get(h)
	require.True(t, ok)
	_, hasField := fact.Data.Field1("is_adult")
	assert.False(t, hasField, "first action's effect should have been rolled back")
}

func TestFireExecCallAssignToDelegatesToSet(t *testing.T) {
	d, memory, h := newFixture(t)
	d.KB.Functions().Register(expr.Function{
		Name: "double",
		Call: func(args []value.Value) (value.Value, error) {
			return value.Int(args[0].AsInt() * 2), nil
		},
	})
	rule := ruleWithActions(action.Call{
		Function: "double",
		Args:     []expr.Expr{expr.Literal{Value: value.Int(21)}},
		AssignTo: "Person.score",
	})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	require.NoError(t, err)

	fact, ok := memory.Get(h)
	require.True(t, ok)
	v, ok := fact.Data.Field1("score")
	require.True(t, ok)
	assert.Equal(t, int64(42), v.AsInt())
}

func TestFireExecCallPropagatesFunctionError(t *testing.T) {
	d, _, h := newFixture(t)
	d.KB.Functions().Register(expr.Function{
		Name: "boom",
		Call: func(args []value.Value) (value.Value, error) { return value.Null(), errors.New("boom") },
	})
	rule := ruleWithActions(action.Call{Function: "boom"})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	assert.Error(t, err)
}

func TestFireExecLogDoesNotError(t *testing.T) {
	d, _, h := newFixture(t)
	rule := ruleWithActions(action.Log{Level: action.LogInfo, Message: expr.Literal{Value: value.String("hello")}})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	assert.NoError(t, err)
}

func TestFireExecAgendaControlPushesFocus(t *testing.T) {
	d, _, h := newFixture(t)
	rule := ruleWithActions(action.AgendaControl{Op: action.AgendaPushFocus, Group: "urgent"})

	err := d.Fire(context.Background(), rule, TokenHandles(tokenFor("Person", h)), bind.Empty())
	require.NoError(t, err)
	assert.Equal(t, []string{"urgent"}, d.Agenda.Focus())
}

func TestFallbackHandlesResolvesFirstLiveFactOfType(t *testing.T) {
	d, memory, h := newFixture(t)
	fh := fallbackHandles{WM: memory}
	got, ok := fh.Handle("Person")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestQueryExecutorFiresThroughFallbackHandles(t *testing.T) {
	d, memory, _ := newFixture(t)
	rule := ruleWithActions(action.Set{Path: "Person.is_adult", Expr: expr.Literal{Value: value.Bool(true)}})

	err := d.QueryExecutor().Execute(context.Background(), rule, bind.Empty())
	require.NoError(t, err)

	hs := memory.ByType("Person")
	require.Len(t, hs, 1)
	fact, ok := memory.Get(hs[0])
	require.True(t, ok)
	v, ok := fact.Data.Field1("is_adult")
	require.True(t, ok)
	assert.True(t, v.AsBool())
}
