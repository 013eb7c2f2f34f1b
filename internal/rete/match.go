package rete

import (
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

// matchEnv bundles what's needed to evaluate a compiled pattern's filters:
// the function registry and global cells shared by every rule in the
// network.
type matchEnv struct {
	Functions *expr.Registry
	Globals   expr.Globals
}

func evalBool(e expr.Expr, facts expr.FactContext, env matchEnv) (bool, error) {
	v, err := expr.Eval(e, expr.Env{
		Facts:     facts,
		Globals:   env.Globals,
		Bindings:  bind.Empty(),
		Functions: env.Functions,
	})
	if err != nil {
		return false, err
	}
	return value.Truthy(v), nil
}

// match evaluates a compiled pattern against the current snapshot,
// applying alpha filters per root, joining roots via nested-loop cross
// product (a hash join degrades to this when, as here, join roots carry no
// shared-variable key — see DESIGN.md), checking the residual beta filter,
// and finally the pattern's conditional elements. onError receives any
// evaluator error for a specific candidate combination; that combination
// is discarded without affecting the others (spec §4.6 failure policy).
func (c compiled) match(snap wm.Snapshot, env matchEnv, onError func(error)) []Token {
	alphaHandles := make(map[string][]wm.Handle, len(c.roots))
	for _, r := range c.roots {
		var kept []wm.Handle
		for _, h := range snap.ByType(r) {
			f, ok := lookup(snap, h)
			if !ok {
				continue
			}
			filt, hasFilt := c.alpha[r]
			if !hasFilt {
				kept = append(kept, h)
				continue
			}
			ok2, err := evalBool(filt, singleFact{root: r, fact: f}, env)
			if err != nil {
				onError(err)
				continue
			}
			if ok2 {
				kept = append(kept, h)
			}
		}
		alphaHandles[r] = kept
	}

	var tokens []Token
	acc := make(map[string]wm.Handle, len(c.roots))

	var combine func(idx int)
	combine = func(idx int) {
		if idx == len(c.roots) {
			facts := make(map[string]value.Fact, len(acc))
			for r, h := range acc {
				f, _ := lookup(snap, h)
				facts[r] = f
			}
			ok, err := evalBool(c.beta, multiRoot{facts: facts}, env)
			if err != nil {
				onError(err)
				return
			}
			if !ok {
				return
			}
			ceOK, ceBindings := c.passesCEs(snap, env, onError)
			if !ceOK {
				return
			}
			cp := make(map[string]wm.Handle, len(acc))
			for k, v := range acc {
				cp[k] = v
			}
			tokens = append(tokens, Token{Handles: cp, Bindings: ceBindings})
			return
		}
		r := c.roots[idx]
		for _, h := range alphaHandles[r] {
			acc[r] = h
			combine(idx + 1)
		}
		delete(acc, r)
	}
	combine(0)
	return tokens
}

// passesCEs checks every NOT/EXISTS/FORALL/ACCUMULATE conditional element
// attached to c, returning the bindings any ACCUMULATE elements produced
// along the way (empty if none, or if any CE fails).
func (c compiled) passesCEs(snap wm.Snapshot, env matchEnv, onError func(error)) (bool, bind.Bindings) {
	for _, n := range c.nots {
		if len(n.match(snap, env, onError)) != 0 {
			return false, bind.Empty()
		}
	}
	for _, ex := range c.exists {
		if len(ex.match(snap, env, onError)) == 0 {
			return false, bind.Empty()
		}
	}
	for _, f := range c.forall {
		if !f.holds(snap, env, onError) {
			return false, bind.Empty()
		}
	}
	bindings := bind.Empty()
	for _, a := range c.accums {
		ok, val, err := a.evaluate(snap, env)
		if err != nil {
			onError(err)
			return false, bind.Empty()
		}
		if !ok {
			return false, bind.Empty()
		}
		if a.acc.As == "" {
			continue
		}
		nb, bound := bindings.Bind(a.acc.As, val)
		if !bound {
			return false, bind.Empty()
		}
		bindings = nb
	}
	return true, bindings
}

// evaluate collects every live universe-typed fact's acc.Expr value into an
// array, reduces it with acc.Op, and — when this accumulate appeared
// inside a comparison — substitutes the reduced value back into that
// comparison and evaluates it. ok reports whether the conjunct as a whole
// holds (always true for a bare accumulate with no comparison); val is the
// reduced aggregate, for acc.As binding regardless of ok.
func (a accumPattern) evaluate(snap wm.Snapshot, env matchEnv) (ok bool, val value.Value, err error) {
	var elems []value.Value
	for _, h := range snap.ByType(a.universe) {
		fact, found := lookup(snap, h)
		if !found {
			continue
		}
		v, evalErr := expr.Eval(a.acc.Expr, expr.Env{
			Facts:     singleFact{root: a.universe, fact: fact},
			Globals:   env.Globals,
			Bindings:  bind.Empty(),
			Functions: env.Functions,
		})
		if evalErr != nil {
			return false, value.Null(), evalErr
		}
		elems = append(elems, v)
	}

	reduced, err := expr.Eval(expr.Accumulate{Op: a.acc.Op, Expr: expr.Literal{Value: value.Array(elems...)}}, expr.Env{
		Facts:     expr.EmptyFactContext,
		Globals:   env.Globals,
		Bindings:  bind.Empty(),
		Functions: env.Functions,
	})
	if err != nil {
		return false, value.Null(), err
	}

	if a.cmp == nil {
		return true, reduced, nil
	}

	cmp := expr.Comparison{Op: a.cmp.Op, Lhs: a.cmp.Lhs, Rhs: a.cmp.Rhs}
	lit := expr.Literal{Value: reduced}
	if a.rhsIsAcc {
		cmp.Rhs = lit
	} else {
		cmp.Lhs = lit
	}
	passed, err := evalBool(cmp, expr.EmptyFactContext, env)
	if err != nil {
		return false, value.Null(), err
	}
	return passed, reduced, nil
}

// holds implements FORALL: the set of A-matches over the universe type
// must equal the set of A∧B-matches, which is vacuously true when no fact
// satisfies A (spec §4.6, invariant #7).
func (f forallPattern) holds(snap wm.Snapshot, env matchEnv, onError func(error)) bool {
	if f.universe == "" {
		aOK, err := evalBool(f.a, expr.EmptyFactContext, env)
		if err != nil {
			onError(err)
			return false
		}
		if !aOK {
			return true
		}
		bOK, err := evalBool(f.b, expr.EmptyFactContext, env)
		if err != nil {
			onError(err)
			return false
		}
		return bOK
	}

	for _, h := range snap.ByType(f.universe) {
		fact, ok := lookup(snap, h)
		if !ok {
			continue
		}
		ctx := singleFact{root: f.universe, fact: fact}
		aOK, err := evalBool(f.a, ctx, env)
		if err != nil {
			onError(err)
			continue
		}
		if !aOK {
			continue
		}
		bOK, err := evalBool(f.b, ctx, env)
		if err != nil {
			onError(err)
			continue
		}
		if !bOK {
			return false
		}
	}
	return true
}
