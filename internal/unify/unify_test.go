package unify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/value"
)

func TestUnifyLiteralLiteral(t *testing.T) {
	b, ok := Unify(expr.Literal{Value: value.Int(1)}, expr.Literal{Value: value.Int(1)}, expr.EmptyFactContext, nil, bind.Empty())
	require.True(t, ok)
	assert.Equal(t, 0, b.Len())

	_, ok = Unify(expr.Literal{Value: value.Int(1)}, expr.Literal{Value: value.Int(2)}, expr.EmptyFactContext, nil, bind.Empty())
	assert.False(t, ok)
}

func TestUnifyVariableBindsFreshValue(t *testing.T) {
	b, ok := Unify(expr.Variable{Name: "?x"}, expr.Literal{Value: value.Int(5)}, expr.EmptyFactContext, nil, bind.Empty())
	require.True(t, ok)
	v, ok := b.Get("?x")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt())
}

func TestUnifyVariableConsistentRebindSucceeds(t *testing.T) {
	b0, ok := bind.Empty().Bind("?x", value.Int(5))
	require.True(t, ok)
	b, ok := Unify(expr.Variable{Name: "?x"}, expr.Literal{Value: value.Int(5)}, expr.EmptyFactContext, nil, b0)
	require.True(t, ok)
	assert.Equal(t, 1, b.Len())
}

func TestUnifyVariableConflictingRebindFails(t *testing.T) {
	b0, _ := bind.Empty().Bind("?x", value.Int(5))
	_, ok := Unify(expr.Variable{Name: "?x"}, expr.Literal{Value: value.Int(6)}, expr.EmptyFactContext, nil, b0)
	assert.False(t, ok)
}

type fakeFacts map[string]value.Value

func (f fakeFacts) Resolve(path string) (value.Value, bool) {
	v, ok := f[path]
	return v, ok
}

func TestUnifyFieldResolvesThenUnifies(t *testing.T) {
	facts := fakeFacts{"Person.age": value.Int(25)}
	b, ok := Unify(expr.Field{Path: "Person.age"}, expr.Literal{Value: value.Int(25)}, facts, nil, bind.Empty())
	require.True(t, ok)
	assert.Equal(t, 0, b.Len())
}

func TestUnifyIdempotence(t *testing.T) {
	b0, _ := bind.Empty().Bind("?x", value.Int(5))
	b1, ok := Unify(expr.Variable{Name: "?x"}, expr.Variable{Name: "?x"}, expr.EmptyFactContext, nil, b0)
	require.True(t, ok)
	assert.Equal(t, b0.Len(), b1.Len())
	v0, _ := b0.Get("?x")
	v1, _ := b1.Get("?x")
	assert.True(t, value.Equal(v0, v1))
}

func TestUnifyStructuralComparison(t *testing.T) {
	pattern := expr.Comparison{Op: expr.OpEq, Lhs: expr.Variable{Name: "?x"}, Rhs: expr.Literal{Value: value.Int(1)}}
	target := expr.Comparison{Op: expr.OpEq, Lhs: expr.Literal{Value: value.Int(7)}, Rhs: expr.Literal{Value: value.Int(1)}}
	b, ok := Unify(pattern, target, expr.EmptyFactContext, nil, bind.Empty())
	require.True(t, ok)
	v, ok := b.Get("?x")
	require.True(t, ok)
	assert.Equal(t, int64(7), v.AsInt())
}

func TestUnifyUnboundBothVariablesFails(t *testing.T) {
	_, ok := Unify(expr.Variable{Name: "?x"}, expr.Variable{Name: "?y"}, expr.EmptyFactContext, nil, bind.Empty())
	assert.False(t, ok)
}

func TestSubstituteReplacesBoundLeavesUnbound(t *testing.T) {
	b, _ := bind.Empty().Bind("?x", value.Int(9))
	e := expr.Comparison{Op: expr.OpEq, Lhs: expr.Variable{Name: "?x"}, Rhs: expr.Variable{Name: "?y"}}
	out := Substitute(e, b).(expr.Comparison)
	lit, ok := out.Lhs.(expr.Literal)
	require.True(t, ok)
	assert.Equal(t, int64(9), lit.Value.AsInt())
	_, stillVar := out.Rhs.(expr.Variable)
	assert.True(t, stillVar)
}

func TestSubstitutionLaw(t *testing.T) {
	b, _ := bind.Empty().Bind("?x", value.Int(4))
	e := expr.Arithmetic{Op: expr.ArithAdd, Lhs: expr.Variable{Name: "?x"}, Rhs: expr.Literal{Value: value.Int(1)}}

	direct, err := expr.Eval(e, expr.Env{Facts: expr.EmptyFactContext, Globals: expr.EmptyGlobals, Bindings: b})
	require.NoError(t, err)

	substituted := Substitute(e, b)
	viaSub, err := expr.Eval(substituted, expr.Env{Facts: expr.EmptyFactContext, Globals: expr.EmptyGlobals, Bindings: bind.Empty()})
	require.NoError(t, err)

	assert.True(t, value.Equal(direct, viaSub))
}
