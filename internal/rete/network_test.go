package rete

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

func noFail(t *testing.T) func(string, error) {
	return func(rule string, err error) { t.Fatalf("unexpected eval error in %s: %v", rule, err) }
}

func TestSingleTypeAlphaMatch(t *testing.T) {
	w := wm.New(nil)
	h1, _ := w.Insert("User", value.Object(value.F("age", value.Int(70))))
	h2, _ := w.Insert("User", value.Object(value.F("age", value.Int(10))))

	rule := &kb.Rule{Name: "Adult", Pattern: expr.Comparison{
		Op: expr.OpGt, Lhs: expr.Field{Path: "User.age"}, Rhs: expr.Literal{Value: value.Int(18)},
	}}

	net := New(noFail(t))
	net.AddRule(rule)

	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchAdded, events[0].Kind)
	assert.Equal(t, h1, events[0].Token.Handles["User"])
	assert.NotEqual(t, h2, events[0].Token.Handles["User"])
}

func TestRetractWithdrawsToken(t *testing.T) {
	w := wm.New(nil)
	h, _ := w.Insert("User", value.Object(value.F("age", value.Int(70))))

	rule := &kb.Rule{Name: "Adult", Pattern: expr.Comparison{
		Op: expr.OpGt, Lhs: expr.Field{Path: "User.age"}, Rhs: expr.Literal{Value: value.Int(18)},
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	assert.Equal(t, 1, net.TerminalSize("Adult"))

	require.NoError(t, w.Retract(h))
	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchRemoved, events[0].Kind)
	assert.Equal(t, 0, net.TerminalSize("Adult"))
}

func TestTwoTypeJoin(t *testing.T) {
	w := wm.New(nil)
	w.Insert("Order", value.Object(value.F("total", value.Int(200))))
	w.Insert("Customer", value.Object(value.F("limit", value.Int(100))))

	rule := &kb.Rule{Name: "OverLimit", Pattern: expr.Comparison{
		Op: expr.OpGt, Lhs: expr.Field{Path: "Order.total"}, Rhs: expr.Field{Path: "Customer.limit"},
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Token.Handles, "Order")
	assert.Contains(t, events[0].Token.Handles, "Customer")
}

func TestNotCEFiresOnlyWhenNoSupport(t *testing.T) {
	w := wm.New(nil)
	w.Insert("Day", value.Object())

	notBanned := expr.Not{Child: expr.Comparison{
		Op: expr.OpEq, Lhs: expr.Field{Path: "User.banned"}, Rhs: expr.Literal{Value: value.Bool(true)},
	}}
	rule := &kb.Rule{Name: "Allowed", Pattern: expr.And{Children: []expr.Expr{
		expr.Comparison{Op: expr.OpEq, Lhs: expr.Literal{Value: value.Bool(true)}, Rhs: expr.Literal{Value: value.Bool(true)}},
		notBanned,
	}}}
	net := New(noFail(t))
	net.AddRule(rule)

	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchAdded, events[0].Kind)

	w.Insert("User", value.Object(value.F("banned", value.Bool(true))))
	events = net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchRemoved, events[0].Kind)
}

func TestExistsCERequiresAtLeastOneMatch(t *testing.T) {
	rule := &kb.Rule{Name: "HasVIP", Pattern: expr.Exists{Inner: expr.Comparison{
		Op: expr.OpEq, Lhs: expr.Field{Path: "Customer.tier"}, Rhs: expr.Literal{Value: value.String("vip")},
	}}}
	net := New(noFail(t))
	net.AddRule(rule)

	w := wm.New(nil)
	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	assert.Empty(t, events)

	w.Insert("Customer", value.Object(value.F("tier", value.String("vip"))))
	events = net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchAdded, events[0].Kind)
}

func TestForallVacuousTruth(t *testing.T) {
	rule := &kb.Rule{Name: "AllDelivered", Pattern: expr.Forall{
		A: expr.Literal{Value: value.Bool(true)},
		B: expr.Comparison{Op: expr.OpEq, Lhs: expr.Field{Path: "Order.status"}, Rhs: expr.Literal{Value: value.String("delivered")}},
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	w := wm.New(nil)
	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1, "forall over an empty Order universe is vacuously true")

	w.Insert("Order", value.Object(value.F("status", value.String("pending"))))
	events = net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	assert.Equal(t, MatchRemoved, events[0].Kind)
}

func TestTerminalNeverDuplicatesSameTuple(t *testing.T) {
	w := wm.New(nil)
	w.Insert("User", value.Object(value.F("age", value.Int(30))))

	rule := &kb.Rule{Name: "Adult", Pattern: expr.Comparison{
		Op: expr.OpGt, Lhs: expr.Field{Path: "User.age"}, Rhs: expr.Literal{Value: value.Int(18)},
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	assert.Empty(t, events, "unchanged working memory produces no new deltas")
	assert.Equal(t, 1, net.TerminalSize("Adult"))
}

func TestAccumulateCEAggregatesAcrossWholeFactSet(t *testing.T) {
	rule := &kb.Rule{Name: "BigBatch", Pattern: expr.Comparison{
		Op:  expr.OpGt,
		Lhs: expr.Accumulate{Op: expr.AccSum, Expr: expr.Field{Path: "Order.total"}},
		Rhs: expr.Literal{Value: value.Int(1000)},
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	w := wm.New(nil)
	w.Insert("Order", value.Object(value.F("total", value.Int(300))))
	w.Insert("Order", value.Object(value.F("total", value.Int(400))))

	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	assert.Empty(t, events, "sum across all Order facts is 700, below the 1000 threshold")

	w.Insert("Order", value.Object(value.F("total", value.Int(500))))
	events = net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1, "sum across all Order facts is now 1200, over the threshold")
	assert.Equal(t, MatchAdded, events[0].Kind)
}

func TestAccumulateBindsResultAsTokenVariable(t *testing.T) {
	rule := &kb.Rule{Name: "CountOpen", Pattern: expr.Accumulate{
		Op: expr.AccCount, Expr: expr.Field{Path: "Ticket.id"}, As: "openCount",
	}}
	net := New(noFail(t))
	net.AddRule(rule)

	w := wm.New(nil)
	w.Insert("Ticket", value.Object(value.F("id", value.Int(1))))
	w.Insert("Ticket", value.Object(value.F("id", value.Int(2))))
	w.Insert("Ticket", value.Object(value.F("id", value.Int(3))))

	events := net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)
	require.Len(t, events, 1)
	v, ok := events[0].Token.Bindings.Get("openCount")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt())
}

func TestRemoveRuleDropsTerminalMemory(t *testing.T) {
	w := wm.New(nil)
	w.Insert("User", value.Object(value.F("age", value.Int(30))))
	rule := &kb.Rule{Name: "Adult", Pattern: expr.Comparison{
		Op: expr.OpGt, Lhs: expr.Field{Path: "User.age"}, Rhs: expr.Literal{Value: value.Int(18)},
	}}
	net := New(noFail(t))
	net.AddRule(rule)
	net.Propagate(w.Snapshot(), expr.NewRegistry(), expr.EmptyGlobals)

	net.RemoveRule("Adult")
	assert.Equal(t, 0, net.TerminalSize("Adult"))
}
