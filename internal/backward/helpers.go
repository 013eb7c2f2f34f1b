package backward

import (
	"sort"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
)

// kbGlobals adapts kb.KnowledgeBase's ResolveGlobal method to expr.Globals.
type kbGlobals struct{ kb *kb.KnowledgeBase }

func (g kbGlobals) Resolve(name string) (value.Value, bool) { return g.kb.ResolveGlobal(name) }

// fieldPaths collects every dotted Field path reachable in e, for looking up
// conclusion-index candidates (spec §4.9/§4.11 step 8.b); unlike
// rete.CollectRoots it keeps the full path, not just the fact-type root.
func fieldPaths(e expr.Expr) []string {
	set := map[string]bool{}
	var walk func(n expr.Expr)
	walk = func(n expr.Expr) {
		switch v := n.(type) {
		case expr.Field:
			set[v.Path] = true
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
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ruleConclusions builds the equality-goal expressions a rule's actions
// assert, mirroring internal/index's static write-footprint analysis but
// producing unifiable expr.Comparison nodes instead of string keys. Call's
// AssignTo is intentionally left out: it rarely names a fact field, and
// unifying against its assigned value would require evaluating the call
// under bindings the proof hasn't derived yet.
func ruleConclusions(r *kb.Rule) []expr.Comparison {
	var out []expr.Comparison
	for _, a := range r.Actions {
		switch v := a.(type) {
		case action.Set:
			out = append(out, expr.Comparison{Op: expr.OpEq, Lhs: expr.Field{Path: v.Path}, Rhs: v.Expr})
		case action.Assert:
			for _, f := range v.Fields {
				out = append(out, expr.Comparison{
					Op:  expr.OpEq,
					Lhs: expr.Field{Path: v.Type + "." + f.Name},
					Rhs: f.Expr,
				})
			}
		}
	}
	return out
}
