package backward

import (
	"sort"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/unify"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

var trueLiteral = expr.Literal{Value: value.Bool(true)}

// proveFieldGoalComparison handles a Comparison whose operands reference a
// fact type but whose operator isn't equality (step 8, WM consultation
// only): there's no natural rule-conclusion shape to unify an inequality
// against, since conclusions are the Eq-shaped writes captured by
// ruleConclusions, so only existing working-memory facts are consulted.
func (s *search) proveFieldGoalComparison(goal expr.Expr, roots []string, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	cmp, isCmp := goal.(expr.Comparison)
	if isCmp && cmp.Op == expr.OpEq {
		return s.proveFieldGoal(goal, b, depth, active)
	}
	var solutions []*ProofNode
	var bindingsOut []bind.Bindings
	s.forEachCandidate(roots, b, func(ctx expr.FactContext, handles map[string]wm.Handle) bool {
		v, err := expr.Eval(goal, expr.Env{Facts: ctx, Globals: kbGlobals{s.e.KB}, Bindings: b, Functions: s.e.KB.Functions()})
		if err != nil || !value.Truthy(v) {
			return true // keep scanning
		}
		bindingsOut = append(bindingsOut, b)
		solutions = append(solutions, s.factNode(goal, b, handles))
		return s.cfg.AllSolutions
	})
	if len(bindingsOut) == 0 {
		return false, nil, s.failed(goal, b, ReasonDeadEnd)
	}
	return true, bindingsOut, s.nodeWithChildren(NodeFact, goal, b, solutions)
}

// proveFieldGoal implements step 8 for an equality-shaped goal: a bare
// Field/Multifield (read as an implicit "== true" test) or an explicit
// Comparison{Op: OpEq}. Both the working-memory consultation (8.a) and the
// rule consultation (8.b) apply, since both ultimately unify an (lhs, rhs)
// pair against a candidate.
func (s *search) proveFieldGoal(goal expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	lhs, rhs := decomposeEquality(goal)
	roots := rete.CollectRoots(lhs)
	roots = append(roots, rete.CollectRoots(rhs)...)
	roots = dedupSorted(roots)

	var solutionNodes []*ProofNode
	var solutions []bind.Bindings
	solutionCap := s.cfg.SolutionCap

	recordAndContinue := func(nb bind.Bindings, node *ProofNode) bool {
		solutions = append(solutions, nb)
		solutionNodes = append(solutionNodes, node)
		if !s.cfg.AllSolutions {
			return false
		}
		return len(solutions) < solutionCap
	}

	// 8.a: consult working memory directly.
	if len(roots) > 0 {
		s.forEachCandidate(roots, b, func(ctx expr.FactContext, handles map[string]wm.Handle) bool {
			nb, ok := unify.Unify(lhs, rhs, ctx, s.e.KB.Functions(), b)
			if !ok {
				return true
			}
			if !recordAndContinue(nb, s.factNode(goal, nb, handles)) {
				return false
			}
			return true
		})
	}

	if len(solutions) > 0 && !s.cfg.AllSolutions {
		return true, solutions, s.nodeWithChildren(NodeFact, goal, b, solutionNodes)
	}

	// 8.b: consult rules via the conclusion index.
	keys := fieldPaths(goal)
	keys = append(keys, roots...)
	seenRule := map[string]bool{}
	var candidates []string
	for _, k := range dedupSorted(keys) {
		for _, name := range s.e.Index.Candidates(k) {
			if !seenRule[name] {
				seenRule[name] = true
				candidates = append(candidates, name)
			}
		}
	}
	sort.Strings(candidates)

	for _, name := range candidates {
		rule, ok := s.e.KB.Rule(name)
		if !ok {
			continue
		}
		for _, concl := range ruleConclusions(rule) {
			// The Lhs sides are both abstract Field references to the same
			// write-footprint location (that's what made this rule a
			// candidate); compare them structurally by path rather than
			// through unify.Unify, which would try to resolve them against
			// live facts and fail since neither side has one yet. Only the
			// Rhs sides carry a value worth unifying.
			if !fieldPathsMatch(lhs, concl.Lhs) {
				continue
			}
			nb, ok := unify.Unify(rhs, concl.Rhs, expr.EmptyFactContext, s.e.KB.Functions(), b)
			if !ok {
				continue
			}
			premiseOK, premiseSols, premiseNode := s.prove(rule.Pattern, nb, depth+1, active)
			if !premiseOK {
				continue
			}
			for _, premiseB := range premiseSols {
				if s.cfg.AssertingMode && s.e.Executor != nil {
					_ = s.e.Executor.Execute(s.ctx, rule, premiseB)
				}
				ruleNode := s.node(NodeRule, goal, premiseB, premiseNode)
				if ruleNode != nil {
					ruleNode.RuleName = rule.Name
				}
				if !recordAndContinue(premiseB, ruleNode) {
					break
				}
			}
			if len(solutions) > 0 && !s.cfg.AllSolutions {
				break
			}
		}
		if len(solutions) > 0 && !s.cfg.AllSolutions {
			break
		}
	}

	if len(solutions) == 0 {
		return false, nil, s.failed(goal, b, ReasonDeadEnd)
	}
	return true, solutions, s.nodeWithChildren(NodeFact, goal, b, solutionNodes)
}

// decomposeEquality splits an equality-shaped goal into its two sides: an
// explicit Comparison{OpEq} yields its own operands, anything else is read
// as an implicit "goal == true" test.
func decomposeEquality(goal expr.Expr) (expr.Expr, expr.Expr) {
	if cmp, ok := goal.(expr.Comparison); ok && cmp.Op == expr.OpEq {
		return cmp.Lhs, cmp.Rhs
	}
	return goal, trueLiteral
}

func (s *search) factNode(goal expr.Expr, b bind.Bindings, handles map[string]wm.Handle) *ProofNode {
	if !s.cfg.Trace {
		return nil
	}
	n := &ProofNode{Kind: NodeFact, Goal: goal, Bindings: b, TraceID: uuid.NewString()}
	for _, h := range handles {
		n.Handle = h
		n.HasHandle = true
		break
	}
	return n
}

// forEachCandidate iterates every combination of live facts across roots
// (a single root iterates its facts directly; multiple roots form the
// cross product), calling visit with a fact context resolving each root's
// Field paths and the handle tuple that produced it. visit returns false to
// stop early (first-solution mode).
func (s *search) forEachCandidate(roots []string, b bind.Bindings, visit func(ctx expr.FactContext, handles map[string]wm.Handle) bool) {
	snap := s.e.WM.Snapshot()

	if len(roots) == 1 {
		root := roots[0]
		for _, h := range snap.ByType(root) {
			f, ok := snap.Get(h)
			if !ok {
				continue
			}
			if !visit(rete.NewSingleFactContext(root, f), map[string]wm.Handle{root: h}) {
				return
			}
		}
		return
	}

	var combine func(i int, acc map[string]value.Fact, handles map[string]wm.Handle) bool
	combine = func(i int, acc map[string]value.Fact, handles map[string]wm.Handle) bool {
		if i == len(roots) {
			facts := make(map[string]value.Fact, len(acc))
			for k, v := range acc {
				facts[k] = v
			}
			hs := make(map[string]wm.Handle, len(handles))
			for k, v := range handles {
				hs[k] = v
			}
			return visit(rete.NewMultiFactContext(facts), hs)
		}
		root := roots[i]
		for _, h := range snap.ByType(root) {
			f, ok := snap.Get(h)
			if !ok {
				continue
			}
			acc[root] = f
			handles[root] = h
			if !combine(i+1, acc, handles) {
				return false
			}
		}
		delete(acc, root)
		delete(handles, root)
		return true
	}
	combine(0, map[string]value.Fact{}, map[string]wm.Handle{})
}

// fieldPathsMatch compares a goal's Lhs against a rule conclusion's Lhs:
// both are ordinarily plain Field references to the same fact-type
// location, compared by path; anything else falls back to a structural
// unify against empty bindings, purely as a boolean check.
func fieldPathsMatch(lhs, conclLhs expr.Expr) bool {
	lf, ok1 := lhs.(expr.Field)
	cf, ok2 := conclLhs.(expr.Field)
	if ok1 && ok2 {
		return lf.Path == cf.Path
	}
	_, ok := unify.Unify(lhs, conclLhs, expr.EmptyFactContext, nil, bind.Empty())
	return ok
}

func dedupSorted(in []string) []string {
	set := map[string]bool{}
	var out []string
	for _, s := range in {
		if s == "" || set[s] {
			continue
		}
		set[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
