// Package unify implements the goal-directed unifier (spec §4.10) shared
// by the backward engine: matching a goal expression (which may contain
// Variables) against a concrete target expression (a working-memory fact
// rendered as a Literal, or a rule's conclusion expression), producing
// bindings or failing without modifying the bindings the caller already
// holds (bindings are value-typed, per internal/bind).
package unify

import (
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/value"
)

// Unify attempts to unify pattern against target under facts (resolving
// any Field nodes on either side) and the function registry fns (for
// evaluating Call nodes encountered while resolving a side to a concrete
// Value). On success it returns the extended bindings and true; on
// failure it returns the bindings unchanged and false.
func Unify(pattern, target expr.Expr, facts expr.FactContext, fns *expr.Registry, b bind.Bindings) (bind.Bindings, bool) {
	switch p := pattern.(type) {
	case expr.Variable:
		return unifyVariable(p, target, facts, fns, b)

	case expr.Field:
		v, ok := facts.Resolve(p.Path)
		if !ok {
			v = value.Null()
		}
		return Unify(expr.Literal{Value: v}, target, facts, fns, b)

	case expr.Literal:
		if tv, ok := target.(expr.Variable); ok {
			return unifyVariable(tv, pattern, facts, fns, b)
		}
		tv, err := evalSide(target, facts, fns, b)
		if err != nil {
			return b, false
		}
		return b, value.Equal(p.Value, tv)

	case expr.Comparison:
		t, ok := target.(expr.Comparison)
		if !ok || t.Op != p.Op {
			return b, false
		}
		nb, ok := Unify(p.Lhs, t.Lhs, facts, fns, b)
		if !ok {
			return b, false
		}
		return Unify(p.Rhs, t.Rhs, facts, fns, nb)

	case expr.And:
		t, ok := target.(expr.And)
		if !ok || len(t.Children) != len(p.Children) {
			return b, false
		}
		cur := b
		for i, c := range p.Children {
			var ok2 bool
			cur, ok2 = Unify(c, t.Children[i], facts, fns, cur)
			if !ok2 {
				return b, false
			}
		}
		return cur, true

	case expr.Or:
		t, ok := target.(expr.Or)
		if !ok || len(t.Children) != len(p.Children) {
			return b, false
		}
		cur := b
		for i, c := range p.Children {
			var ok2 bool
			cur, ok2 = Unify(c, t.Children[i], facts, fns, cur)
			if !ok2 {
				return b, false
			}
		}
		return cur, true

	default:
		if _, isVar := target.(expr.Variable); isVar {
			return Unify(target, pattern, facts, fns, b)
		}
		lv, err := evalSide(pattern, facts, fns, b)
		if err != nil {
			return b, false
		}
		rv, err := evalSide(target, facts, fns, b)
		if err != nil {
			return b, false
		}
		return b, value.Equal(lv, rv)
	}
}

func unifyVariable(v expr.Variable, target expr.Expr, facts expr.FactContext, fns *expr.Registry, b bind.Bindings) (bind.Bindings, bool) {
	if bound, ok := b.Get(v.Name); ok {
		tv, err := evalSide(target, facts, fns, b)
		if err != nil {
			return b, false
		}
		return b, value.Equal(bound, tv)
	}
	if tv, ok := target.(expr.Variable); ok {
		if boundT, ok := b.Get(tv.Name); ok {
			nb, ok := b.Bind(v.Name, boundT)
			return nb, ok
		}
		// Both sides unbound: nothing concrete to bind to yet. Spec §4.10
		// allows deferring in this case; this unifier treats an
		// unbound-to-unbound pairing as failure rather than introducing a
		// variable-to-variable equality constraint, since this engine's
		// bindings map names directly to Values, not to other variables.
		return b, false
	}
	tv, err := evalSide(target, facts, fns, b)
	if err != nil {
		return b, false
	}
	nb, ok := b.Bind(v.Name, tv)
	return nb, ok
}

// evalSide evaluates an expression to a concrete Value for unification
// purposes: Field resolves against facts, Variable against bindings,
// everything else follows the normal evaluator (spec §4.2), without
// allowing effectful calls.
func evalSide(e expr.Expr, facts expr.FactContext, fns *expr.Registry, b bind.Bindings) (value.Value, error) {
	return expr.Eval(e, expr.Env{
		Facts:     facts,
		Globals:   expr.EmptyGlobals,
		Bindings:  b,
		Functions: fns,
	})
}

// Substitute replaces every Variable bound in b with a Literal carrying
// its Value, leaving unbound variables untouched; this is the substitution
// operation from spec §4.10, used to project a proved goal/rule body back
// into a concrete expression.
func Substitute(e expr.Expr, b bind.Bindings) expr.Expr {
	switch n := e.(type) {
	case expr.Variable:
		if v, ok := b.Get(n.Name); ok {
			return expr.Literal{Value: v}
		}
		return n
	case expr.Comparison:
		return expr.Comparison{Op: n.Op, Lhs: Substitute(n.Lhs, b), Rhs: Substitute(n.Rhs, b)}
	case expr.Arithmetic:
		return expr.Arithmetic{Op: n.Op, Lhs: Substitute(n.Lhs, b), Rhs: Substitute(n.Rhs, b)}
	case expr.And:
		out := make([]expr.Expr, len(n.Children))
		for i, c := range n.Children {
			out[i] = Substitute(c, b)
		}
		return expr.And{Children: out}
	case expr.Or:
		out := make([]expr.Expr, len(n.Children))
		for i, c := range n.Children {
			out[i] = Substitute(c, b)
		}
		return expr.Or{Children: out}
	case expr.Not:
		return expr.Not{Child: Substitute(n.Child, b)}
	case expr.Exists:
		return expr.Exists{Inner: Substitute(n.Inner, b)}
	case expr.Forall:
		return expr.Forall{A: Substitute(n.A, b), B: Substitute(n.B, b)}
	case expr.Test:
		call := Substitute(*n.Call, b).(expr.Call)
		return expr.Test{Call: &call}
	case expr.Call:
		args := make([]expr.Expr, len(n.Args))
		for i, a := range n.Args {
			args[i] = Substitute(a, b)
		}
		return expr.Call{Function: n.Function, Args: args}
	case expr.Accumulate:
		return expr.Accumulate{Op: n.Op, Expr: Substitute(n.Expr, b), As: n.As}
	case expr.Multifield:
		var operand expr.Expr
		if n.Operand != nil {
			operand = Substitute(n.Operand, b)
		}
		return expr.Multifield{Field: Substitute(n.Field, b), Op: n.Op, Operand: operand}
	default:
		return e
	}
}
