package backward

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/value"
)

// search holds the per-Query mutable state threaded through the recursive
// proof procedure: the active-goal stack (for cycle detection), accumulated
// stats, and cancellation.
type search struct {
	e         *Engine
	cfg       Config
	ctx       context.Context
	depthCap  int
	stats     Stats
	cancelled bool
}

// prove implements spec §4.11's numbered proof procedure for goal G with
// bindings B at depth d.
func (s *search) prove(goal expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	if s.ctx != nil {
		select {
		case <-s.ctx.Done():
			s.cancelled = true
			return false, nil, s.failed(goal, b, ReasonCancelled)
		default:
		}
	}
	s.stats.GoalsExplored++

	// Step 1.
	if depth > s.depthCap {
		return false, nil, s.failed(goal, b, ReasonDepthExceeded)
	}

	key := memoKey(goal, b)
	// The memo entry also records the remaining depth budget and the
	// solution mode: a goal that failed for lack of depth may succeed with
	// more of it, and a single-solution result is not an all-solutions one.
	memoK := fmt.Sprintf("%s|depth-left=%d|all=%t", key, s.depthCap-depth, s.cfg.AllSolutions)

	// Step 2.
	if cached, ok := s.e.lookupMemo(memoK); ok {
		s.stats.CacheHits++
		return cached.provable, cached.solutions, nil
	}

	// Step 3.
	if active[key] {
		return false, nil, s.failed(goal, b, ReasonCycle)
	}
	active[key] = true
	defer delete(active, key)

	raw, err, _ := s.e.inflight.Do(memoK, func() (interface{}, error) {
		ok, solutions, node := s.proveNode(goal, b, depth, active)
		s.e.storeMemo(memoK, ok, solutions)
		return proveOutcome{ok: ok, solutions: solutions, node: node}, nil
	})
	if err != nil {
		// proveNode never returns an error; inflight.Do's signature requires
		// one, so this is unreachable in practice.
		return false, nil, s.failed(goal, b, ReasonCycle)
	}
	outcome := raw.(proveOutcome)
	return outcome.ok, outcome.solutions, outcome.node
}

// proveOutcome is the value shared by singleflight.Group.Do across
// goroutines racing to prove the same memoKey concurrently.
type proveOutcome struct {
	ok        bool
	solutions []bind.Bindings
	node      *ProofNode
}

func (s *search) proveNode(goal expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	switch g := goal.(type) {
	case expr.And:
		return s.proveAnd(g.Children, b, depth, active)

	case expr.Or:
		return s.proveOr(g.Children, b, depth, active)

	case expr.Not:
		innerOK, _, innerNode := s.prove(g.Child, b, depth+1, active)
		if innerOK {
			return false, nil, s.failed(goal, b, ReasonNegation)
		}
		return true, []bind.Bindings{b}, s.node(NodeNegation, goal, b, innerNode)

	case expr.Exists:
		innerOK, _, innerNode := s.prove(g.Inner, b, depth+1, active)
		if !innerOK {
			return false, nil, s.failed(goal, b, ReasonDeadEnd)
		}
		return true, []bind.Bindings{b}, s.node(NodeFact, goal, b, innerNode)

	case expr.Comparison, expr.Test, expr.Call:
		return s.proveGrounded(goal, b, depth, active)

	default:
		return s.proveFieldGoal(goal, b, depth, active)
	}
}

// proveAnd proves children left-to-right, threading bindings (step 4).
func (s *search) proveAnd(children []expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	cur := []bind.Bindings{b}
	var kids []*ProofNode
	for _, c := range children {
		var next []bind.Bindings
		for _, cb := range cur {
			ok, sols, node := s.prove(c, cb, depth, active)
			if node != nil {
				kids = append(kids, node)
			}
			if !ok {
				continue
			}
			next = append(next, sols...)
			if !s.cfg.AllSolutions && len(next) > 0 {
				break
			}
		}
		if len(next) == 0 {
			return false, nil, s.failedWithChildren(expr.And{Children: children}, b, ReasonDeadEnd, kids)
		}
		cur = next
		if !s.cfg.AllSolutions {
			cur = cur[:1]
		}
	}
	return true, cur, s.nodeWithChildren(NodeFact, expr.And{Children: children}, b, kids)
}

// proveOr tries each child, succeeding on the first (step 5); in
// all-solutions mode every child that succeeds contributes its solutions.
func (s *search) proveOr(children []expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	var solutions []bind.Bindings
	var kids []*ProofNode
	anyOK := false
	for _, c := range children {
		ok, sols, node := s.prove(c, b, depth, active)
		if node != nil {
			kids = append(kids, node)
		}
		if ok {
			anyOK = true
			solutions = append(solutions, sols...)
			if !s.cfg.AllSolutions {
				break
			}
		}
	}
	if !anyOK {
		return false, nil, s.failedWithChildren(expr.Or{Children: children}, b, ReasonDeadEnd, kids)
	}
	return true, solutions, s.nodeWithChildren(NodeFact, expr.Or{Children: children}, b, kids)
}

// proveGrounded handles step 7: a Comparison or Call(test) with no fact-type
// references is evaluated directly, against no fact context.
func (s *search) proveGrounded(goal expr.Expr, b bind.Bindings, depth int, active map[string]bool) (bool, []bind.Bindings, *ProofNode) {
	if roots := rete.CollectRoots(goal); len(roots) > 0 {
		return s.proveFieldGoalComparison(goal, roots, b, depth, active)
	}
	v, err := expr.Eval(goal, expr.Env{
		Facts:     expr.EmptyFactContext,
		Globals:   kbGlobals{s.e.KB},
		Bindings:  b,
		Functions: s.e.KB.Functions(),
	})
	if err != nil {
		return false, nil, s.failed(goal, b, ReasonEvalError)
	}
	if !value.Truthy(v) {
		return false, nil, s.failed(goal, b, ReasonDeadEnd)
	}
	return true, []bind.Bindings{b}, s.node(NodeFact, goal, b, nil)
}

func (s *search) failed(goal expr.Expr, b bind.Bindings, reason FailReason) *ProofNode {
	return s.failedWithChildren(goal, b, reason, nil)
}

func (s *search) failedWithChildren(goal expr.Expr, b bind.Bindings, reason FailReason, children []*ProofNode) *ProofNode {
	if !s.cfg.Trace {
		return nil
	}
	return &ProofNode{Kind: NodeFailed, Goal: goal, Bindings: b, Reason: reason, Children: children, TraceID: uuid.NewString()}
}

func (s *search) node(kind NodeKind, goal expr.Expr, b bind.Bindings, onlyChild *ProofNode) *ProofNode {
	var children []*ProofNode
	if onlyChild != nil {
		children = []*ProofNode{onlyChild}
	}
	return s.nodeWithChildren(kind, goal, b, children)
}

func (s *search) nodeWithChildren(kind NodeKind, goal expr.Expr, b bind.Bindings, children []*ProofNode) *ProofNode {
	if !s.cfg.Trace {
		return nil
	}
	return &ProofNode{Kind: kind, Goal: goal, Bindings: b, Children: children, TraceID: uuid.NewString()}
}

// memoKey keys the memoization cache by a serialization of the goal and its
// currently-bound variables (spec §4.11 step 9 asks for the goal "modulo
// variable renaming" and the bindings subset relevant to it; this engine
// uses the full current binding set rather than computing that subset,
// trading a smaller cache-hit rate for not needing a free-variable
// analysis pass over each goal shape). prove appends the remaining depth
// budget and the solution mode before using it as the memo key.
func memoKey(goal expr.Expr, b bind.Bindings) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%#v", goal)
	sb.WriteByte('|')
	names := append([]string{}, b.Names()...)
	sort.Strings(names)
	for _, n := range names {
		v, _ := b.Get(n)
		fmt.Fprintf(&sb, "%s=%#v;", n, v)
	}
	return sb.String()
}
