package agenda

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/wm"
)

func tok(h wm.Handle) rete.Token {
	return rete.Token{Handles: map[string]wm.Handle{"X": h}}
}

func TestSalienceOrderingHigherFirst(t *testing.T) {
	ag := New(StrategySalience, 1)
	r1 := &kb.Rule{Name: "A", Meta: kb.Metadata{Salience: 10}}
	r2 := &kb.Rule{Name: "B", Meta: kb.Metadata{Salience: 20}}

	a1 := New_(r1, tok(1), ag)
	a2 := New_(r2, tok(2), ag)
	require.True(t, ag.Insert(a1))
	require.True(t, ag.Insert(a2))

	first := ag.PopNext()
	assert.Equal(t, "B", first.RuleName)
	second := ag.PopNext()
	assert.Equal(t, "A", second.RuleName)
}

// New_ is a small test helper that stamps recency via the agenda before
// constructing the activation, mirroring how the forward engine would call
// agenda.NextRecency() then agenda.New().
func New_(r *kb.Rule, tk rete.Token, ag *Agenda) *Activation {
	return New(r, tk, ag.NextRecency(), 1)
}

func TestLexOrderingRecencyWins(t *testing.T) {
	ag := New(StrategyLEX, 1)
	r := &kb.Rule{Name: "A"}
	a1 := New_(r, tok(1), ag)
	a2 := New_(r, tok(2), ag)
	ag.Insert(a1)
	ag.Insert(a2)
	first := ag.PopNext()
	assert.Equal(t, tok(2).Handles["X"], first.Token.Handles["X"])
}

func TestActivationGroupExclusivity(t *testing.T) {
	ag := New(StrategySalience, 1)
	approve := &kb.Rule{Name: "Approve", Meta: kb.Metadata{Salience: 10, ActivationGroup: "review"}}
	review := &kb.Rule{Name: "Review", Meta: kb.Metadata{Salience: 5, ActivationGroup: "review"}}
	a1 := New_(approve, tok(1), ag)
	a2 := New_(review, tok(2), ag)
	ag.Insert(a1)
	ag.Insert(a2)

	fired := ag.PopNext()
	require.Equal(t, "Approve", fired.RuleName)
	ag.Retire(fired)

	assert.Nil(t, ag.PopNext(), "Review should have been cancelled by Approve's firing")
}

func TestNoLoopSuppressesSameTupleAfterFiring(t *testing.T) {
	ag := New(StrategySalience, 1)
	r := &kb.Rule{Name: "A", Meta: kb.Metadata{NoLoop: true}}
	a1 := New_(r, tok(1), ag)
	ag.Insert(a1)
	fired := ag.PopNext()
	ag.Retire(fired)

	a1Again := New_(r, tok(1), ag)
	assert.False(t, ag.Insert(a1Again), "same (rule, tuple) must not re-enter after a no-loop firing")

	a2 := New_(r, tok(2), ag)
	assert.True(t, ag.Insert(a2), "a different tuple is unaffected by no-loop on another tuple")
}

func TestLockOnActiveBlocksAfterGroupFocused(t *testing.T) {
	ag := New(StrategySalience, 1)
	r := &kb.Rule{Name: "A", Meta: kb.Metadata{AgendaGroup: "g", LockOnActive: true}}
	ag.PushFocus("g")

	a1 := New_(r, tok(1), ag)
	assert.False(t, ag.Insert(a1), "lock-on-active activation must not enter once its group is focused")
}

func TestFocusStackDrainsTopGroupFirst(t *testing.T) {
	ag := New(StrategySalience, 1)
	base := &kb.Rule{Name: "Base"}
	special := &kb.Rule{Name: "Special", Meta: kb.Metadata{AgendaGroup: "special"}}

	ag.Insert(New_(base, tok(1), ag))
	ag.Insert(New_(special, tok(2), ag))
	ag.PushFocus("special")

	first := ag.PopNext()
	assert.Equal(t, "Special", first.RuleName)
	ag.Retire(first)

	second := ag.PopNext()
	require.NotNil(t, second)
	assert.Equal(t, "Base", second.RuleName, "once special drains and is popped off the stack, the default group below becomes current")
}

func TestRemoveWithdrawsPendingActivation(t *testing.T) {
	ag := New(StrategySalience, 1)
	r := &kb.Rule{Name: "A"}
	a1 := New_(r, tok(1), ag)
	ag.Insert(a1)
	ag.Remove(a1.Key())
	assert.Nil(t, ag.PopNext())
}

func TestEmptyAgendaPopsNil(t *testing.T) {
	ag := New(StrategySalience, 1)
	assert.Nil(t, ag.PopNext())
}
