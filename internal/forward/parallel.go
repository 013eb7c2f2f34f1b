package forward

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/dispatch"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
)

// footprint is a rule's static read-set/write-set (spec §5.3): the fact
// roots and fact-type.field paths its pattern and actions touch.
type footprint struct {
	reads  map[string]bool
	writes map[string]bool
}

// footprintCache memoizes a per-rule footprint, since it only depends on
// the rule's compiled shape, not on any particular firing.
type footprintCache struct {
	mu    sync.Mutex
	byKey map[string]footprint
}

func newFootprintCache() footprintCache {
	return footprintCache{byKey: make(map[string]footprint)}
}

func (c *footprintCache) get(r *kb.Rule) footprint {
	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.byKey[r.Name]; ok {
		return f
	}
	f := analyzeRule(r)
	c.byKey[r.Name] = f
	return f
}

// analyzeRule derives reads from the rule's pattern (every fact-type root
// and dotted field path it references) and writes from its actions (the
// same write-footprint shape internal/index's conclusion analysis uses),
// so two activations can be checked for independence without re-walking
// either AST on every batch.
func analyzeRule(r *kb.Rule) footprint {
	reads := map[string]bool{}
	for _, root := range rete.CollectRoots(r.Pattern) {
		reads[root] = true
	}
	for _, path := range fieldPaths(r.Pattern) {
		reads[path] = true
	}

	writes := map[string]bool{}
	add := func(path string) {
		if path == "" {
			return
		}
		writes[path] = true
		if root, rest := splitRoot(path); rest != "" {
			writes[root] = true
		}
	}
	for _, a := range r.Actions {
		switch v := a.(type) {
		case action.Set:
			add(v.Path)
		case action.Assert:
			add(v.Type)
			for _, f := range v.Fields {
				add(v.Type + "." + f.Name)
			}
		case action.Call:
			if v.AssignTo != "" {
				add(v.AssignTo)
			}
		}
	}
	return footprint{reads: reads, writes: writes}
}

func splitRoot(path string) (root, rest string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}

// fieldPaths collects every dotted Field path an expression references;
// footprint uses it to build a rule's read set.
func fieldPaths(e expr.Expr) []string {
	var out []string
	var walk func(expr.Expr)
	walk = func(n expr.Expr) {
		switch v := n.(type) {
		case expr.Field:
			out = append(out, v.Path)
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
	return out
}

// independent reports whether a and b can safely fire in the same parallel
// batch: their write-sets must be disjoint from each other, and neither
// may write to a path the other reads (spec §5.3); reads may freely
// overlap.
func independent(a, b footprint) bool {
	for w := range a.writes {
		if b.writes[w] || b.reads[w] {
			return false
		}
	}
	for w := range b.writes {
		if a.reads[w] {
			return false
		}
	}
	return true
}

// nextIndependentBatch pops activations off the top of the agenda,
// greedily growing a batch of mutually-independent ones: each candidate is
// checked against every activation already accepted into the batch. The
// first candidate that conflicts with the batch is pushed back onto the
// agenda and ends collection for this round — a simplification of "find
// the maximal independent set among everything currently poppable" that
// keeps this pass O(batch) instead of scanning arbitrarily deep into the
// agenda every round.
func (e *Engine) nextIndependentBatch(maxWorkers int) []*agenda.Activation {
	var batch []*agenda.Activation
	var footprints []footprint

	for {
		if maxWorkers > 0 && len(batch) >= maxWorkers {
			return batch
		}
		act := e.Agenda.PopNext()
		if act == nil {
			return batch
		}
		rule, ok := e.KB.Rule(act.RuleName)
		if !ok {
			e.Agenda.Retire(act)
			continue
		}
		fp := e.footprints.get(rule)

		conflict := false
		for _, other := range footprints {
			if !independent(fp, other) {
				conflict = true
				break
			}
		}
		if conflict {
			e.Agenda.Insert(act)
			return batch
		}
		batch = append(batch, act)
		footprints = append(footprints, fp)
	}
}

// fireBatch executes every activation in batch concurrently via an
// errgroup, following the teacher's parallel-gather idiom of a shared
// mutex-guarded accumulator plus errgroup.WithContext for cancellation
// propagation; an individual activation's dispatch error is logged and
// does not abort its siblings, matching spec §5.3's "no ordering
// guaranteed, independent failures" model.
func (e *Engine) fireBatch(ctx context.Context, batch []*agenda.Activation) []string {
	eg, egCtx := errgroup.WithContext(ctx)
	names := make([]string, len(batch))
	var mu sync.Mutex

	for i, act := range batch {
		i, act := i, act
		eg.Go(func() error {
			rule, ok := e.KB.Rule(act.RuleName)
			if ok {
				if err := e.Dispatcher.Fire(egCtx, rule, dispatch.TokenHandles(act.Token), act.Bindings); err != nil {
					e.Logger.Warn("parallel activation failed",
						zap.String("rule", act.RuleName), zap.Error(err))
				}
			}
			e.Agenda.Retire(act)
			mu.Lock()
			names[i] = act.RuleName
			mu.Unlock()
			return nil
		})
	}
	_ = eg.Wait()
	return names
}
