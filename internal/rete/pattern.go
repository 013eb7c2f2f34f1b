package rete

import (
	"sort"
	"strings"

	"github.com/rulekit/rulekit/internal/expr"
)

// splitRoot divides a dotted Field path into its fact-type root and the
// remaining path, e.g. "Customer.address.city" -> ("Customer",
// "address.city"). A bare root ("Customer") returns an empty rest.
func splitRoot(path string) (root, rest string) {
	i := strings.IndexByte(path, '.')
	if i < 0 {
		return path, ""
	}
	return path[:i], path[i+1:]
}

// conjuncts flattens nested And nodes into a flat list of conjuncts. A
// non-And node yields a single-element list.
func conjuncts(e expr.Expr) []expr.Expr {
	and, ok := e.(expr.And)
	if !ok {
		return []expr.Expr{e}
	}
	var out []expr.Expr
	for _, c := range and.Children {
		out = append(out, conjuncts(c)...)
	}
	return out
}

// CollectRoots exposes the fact-type root collection used to compile
// patterns here so internal/backward can derive a goal's relevant fact
// types without duplicating the walk.
func CollectRoots(e expr.Expr) []string { return collectRoots(e) }

// collectRoots walks e and returns the sorted, deduplicated set of
// fact-type roots referenced by any Field node reachable within it,
// including inside nested CEs (Not/Exists/Forall) and calls.
func collectRoots(e expr.Expr) []string {
	set := map[string]bool{}
	var walk func(n expr.Expr)
	walk = func(n expr.Expr) {
		switch v := n.(type) {
		case expr.Field:
			root, _ := splitRoot(v.Path)
			set[root] = true
		case expr.Comparison:
			walk(v.Lhs)
			walk(v.Rhs)
		case expr.Arithmetic:
			walk(v.Lhs)
			walk(v.Rhs)
		case expr.And:
			for _, c := range v.Children {
				walk(c)
			}
		case expr.Or:
			for _, c := range v.Children {
				walk(c)
			}
		case expr.Not:
			walk(v.Child)
		case expr.Exists:
			walk(v.Inner)
		case expr.Forall:
			walk(v.A)
			walk(v.B)
		case expr.Test:
			if v.Call != nil {
				walk(*v.Call)
			}
		case expr.Call:
			for _, a := range v.Args {
				walk(a)
			}
		case expr.Accumulate:
			walk(v.Expr)
		case expr.Multifield:
			walk(v.Field)
			if v.Operand != nil {
				walk(v.Operand)
			}
		}
	}
	walk(e)
	roots := make([]string, 0, len(set))
	for r := range set {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	return roots
}

// and rebuilds a conjunction from a list of conjuncts, collapsing trivial
// cases so an empty list evaluates to true and a singleton needs no
// wrapper.
func and(conjs []expr.Expr) expr.Expr {
	switch len(conjs) {
	case 0:
		return expr.Literal{Value: trueValue}
	case 1:
		return conjs[0]
	default:
		return expr.And{Children: conjs}
	}
}

// compiled is a compiled pattern: a set of join roots, a residual filter
// evaluated once the roots' candidate facts are bound, and any nested
// conditional elements (NOT/EXISTS/FORALL/ACCUMULATE) found among its
// top-level conjuncts. The same structure compiles a rule's whole pattern
// and a CE's inner sub-pattern, since both are "a predicate over some
// fact-type roots".
type compiled struct {
	roots  []string
	alpha  map[string]expr.Expr // root -> conjunction of single-root filters
	beta   expr.Expr            // conjunction of filters spanning 0 or 2+ roots
	nots   []compiled
	exists []compiled
	forall []forallPattern
	accums []accumPattern
}

type forallPattern struct {
	universe string
	a, b     expr.Expr
}

// accumPattern is one ACCUMULATE conditional element (spec §4.6 item 4):
// universe names the fact-type root to collect acc.Expr's values across
// (every live fact of that type, not a single candidate — the defect a
// plain single-root alpha filter has, since Eval(acc.Expr, ...) against
// one fact resolves to a scalar, not the collection Accumulate expects).
// cmp, if non-nil, is the top-level comparison this accumulate appeared
// in (e.g. "accumulate sum(Order.total) > 1000"); rhsIsAcc records which
// side held the Accumulate node so it can be substituted back in. A bare
// accumulate conjunct (cmp == nil) never fails the match; it only
// materializes acc.As's binding.
type accumPattern struct {
	universe string
	acc      expr.Accumulate
	cmp      *expr.Comparison
	rhsIsAcc bool
}

// extractAccumulate recognizes a top-level conjunct that is either a bare
// Accumulate or a Comparison with an Accumulate on one side, and resolves
// the fact-type universe to iterate from the Accumulate's inner
// expression's single root. It declines (ok=false) when the inner
// expression references zero or more than one fact type: zero means it's
// already a self-contained collection expression (a literal array, a
// registered function call) that the ordinary beta residual filter
// evaluates correctly without this CE; more than one is not supported by
// this engine's single-universe accumulator (see DESIGN.md).
func extractAccumulate(conj expr.Expr) (accumPattern, bool) {
	build := func(acc expr.Accumulate, cmp *expr.Comparison, rhsIsAcc bool) (accumPattern, bool) {
		roots := collectRoots(acc.Expr)
		if len(roots) != 1 {
			return accumPattern{}, false
		}
		return accumPattern{universe: roots[0], acc: acc, cmp: cmp, rhsIsAcc: rhsIsAcc}, true
	}
	switch v := conj.(type) {
	case expr.Accumulate:
		return build(v, nil, false)
	case expr.Comparison:
		if acc, ok := v.Lhs.(expr.Accumulate); ok {
			return build(acc, &v, false)
		}
		if acc, ok := v.Rhs.(expr.Accumulate); ok {
			return build(acc, &v, true)
		}
	}
	return accumPattern{}, false
}

// compilePattern classifies e's top-level conjuncts into per-root alpha
// filters, a residual beta filter, and nested CEs.
func compilePattern(e expr.Expr) compiled {
	var plain []expr.Expr
	c := compiled{alpha: map[string]expr.Expr{}}

	for _, conj := range conjuncts(e) {
		switch v := conj.(type) {
		case expr.Not:
			c.nots = append(c.nots, compilePattern(v.Child))
		case expr.Exists:
			c.exists = append(c.exists, compilePattern(v.Inner))
		case expr.Forall:
			aRoots := collectRoots(v.A)
			bRoots := collectRoots(v.B)
			universe := pickUniverse(aRoots, bRoots)
			c.forall = append(c.forall, forallPattern{universe: universe, a: v.A, b: v.B})
		default:
			if ap, ok := extractAccumulate(conj); ok {
				c.accums = append(c.accums, ap)
				continue
			}
			plain = append(plain, conj)
		}
	}

	alphaConjs := map[string][]expr.Expr{}
	var betaConjs []expr.Expr
	for _, p := range plain {
		roots := collectRoots(p)
		if len(roots) == 1 {
			alphaConjs[roots[0]] = append(alphaConjs[roots[0]], p)
		} else {
			betaConjs = append(betaConjs, p)
		}
	}

	rootSet := map[string]bool{}
	for r := range alphaConjs {
		rootSet[r] = true
	}
	for _, p := range betaConjs {
		for _, r := range collectRoots(p) {
			rootSet[r] = true
		}
	}
	roots := make([]string, 0, len(rootSet))
	for r := range rootSet {
		roots = append(roots, r)
	}
	sort.Strings(roots)
	c.roots = roots

	for r, fs := range alphaConjs {
		c.alpha[r] = and(fs)
	}
	c.beta = and(betaConjs)
	return c
}

func pickUniverse(aRoots, bRoots []string) string {
	all := append(append([]string{}, aRoots...), bRoots...)
	sort.Strings(all)
	if len(all) == 0 {
		return ""
	}
	return all[0]
}
