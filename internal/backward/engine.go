// Package backward implements the resolution-based backward-chaining
// engine (spec §4.11): proving a goal expression against working memory and
// the knowledge base's rule set, consulting internal/unify for unification
// and internal/index to avoid scanning every rule for each goal.
package backward

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/index"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/wm"
)

// Strategy selects the proof-search traversal order.
type Strategy string

const (
	// DFS tries each alternative depth-first, returning on first success.
	DFS Strategy = "dfs"
	// BFS is accepted as a strategy name, but Query runs it exactly like
	// DFS (recursive depth-first descent); no breadth-first goal queue is
	// built.
	BFS Strategy = "bfs"
	// IterativeDeepening repeats a depth-first search with an increasing
	// depth cap, from 1 up to Config.MaxDepth, stopping at first success.
	IterativeDeepening Strategy = "iddfs"
)

// Config controls one Query call.
type Config struct {
	MaxDepth     int
	Strategy     Strategy
	AllSolutions bool
	SolutionCap  int
	Trace        bool
	// AssertingMode, when true, executes a successfully-proved rule's
	// actions through Executor to materialize the derivation instead of
	// only reporting provability (spec §4.11 step 8.b).
	AssertingMode bool
}

// DefaultConfig returns the defaults used when a caller doesn't override
// search parameters: depth-first, single solution, depth cap 64, no trace.
func DefaultConfig() Config {
	return Config{MaxDepth: 64, Strategy: DFS, SolutionCap: 1}
}

// ActionExecutor executes a rule's action list under the bindings a
// successful proof derived. The backward engine depends on this narrow
// interface rather than internal/dispatch directly, so dispatch can in turn
// depend on backward-derived bindings without an import cycle; internal/
// engine wires the concrete dispatcher in.
type ActionExecutor interface {
	Execute(ctx context.Context, rule *kb.Rule, b bind.Bindings) error
}

// Stats reports search effort for one Query call.
type Stats struct {
	GoalsExplored int
	CacheHits     int
}

// Result is the outcome of a Query call.
type Result struct {
	Provable  bool
	Solutions []bind.Bindings
	Trace     *ProofNode // nil unless Config.Trace was set
	Stats     Stats
	Cancelled bool
}

type memoEntry struct {
	gen       uint64
	provable  bool
	solutions []bind.Bindings
}

// Engine is the backward-chaining driver. It holds no per-query state
// itself; Query spins up a fresh search over the shared KB/WM/Index.
type Engine struct {
	KB       *kb.KnowledgeBase
	WM       *wm.WorkingMemory
	Index    *index.Index
	Executor ActionExecutor

	mu   sync.Mutex
	memo map[string]memoEntry
	gen  uint64

	// inflight de-duplicates concurrent proof() calls for the same
	// memo key: when two goroutines query overlapping goals at once (e.g.
	// two concurrent Query calls on one Engine), only one of them
	// actually walks proveNode; the rest block on and share its result,
	// exactly like a cache miss that's already being filled.
	inflight singleflight.Group
}

// New returns an Engine over the given components. executor may be nil; a
// nil executor with Config.AssertingMode set simply skips action execution.
func New(knowledge *kb.KnowledgeBase, memory *wm.WorkingMemory, ix *index.Index, executor ActionExecutor) *Engine {
	return &Engine{
		KB:       knowledge,
		WM:       memory,
		Index:    ix,
		Executor: executor,
		memo:     make(map[string]memoEntry),
	}
}

// Invalidate bumps the memoization generation, causing every previously
// cached result to be treated as stale. Call this after any mutation to the
// knowledge base's rule set (spec §4.11 step 9 implies cache entries are
// only valid against the rule set they were computed against).
func (e *Engine) Invalidate() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gen++
}

func (e *Engine) lookupMemo(key string) (memoEntry, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.memo[key]
	if !ok || entry.gen != e.gen {
		return memoEntry{}, false
	}
	return entry, true
}

func (e *Engine) storeMemo(key string, provable bool, solutions []bind.Bindings) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.memo[key] = memoEntry{gen: e.gen, provable: provable, solutions: solutions}
}

// Query proves goal under cfg, returning whether it holds and, in
// all-solutions mode, every distinct binding set that proves it.
func (e *Engine) Query(ctx context.Context, goal expr.Expr, cfg Config) Result {
	if cfg.MaxDepth < 0 {
		cfg.MaxDepth = DefaultConfig().MaxDepth
	}
	if cfg.SolutionCap <= 0 {
		cfg.SolutionCap = 1
	}

	switch cfg.Strategy {
	case IterativeDeepening:
		return e.queryIterativeDeepening(ctx, goal, cfg)
	default:
		return e.queryOnce(ctx, goal, cfg, cfg.MaxDepth)
	}
}

func (e *Engine) queryIterativeDeepening(ctx context.Context, goal expr.Expr, cfg Config) Result {
	var last Result
	for depth := 1; depth <= cfg.MaxDepth; depth++ {
		last = e.queryOnce(ctx, goal, cfg, depth)
		if last.Provable || last.Cancelled {
			return last
		}
	}
	return last
}

func (e *Engine) queryOnce(ctx context.Context, goal expr.Expr, cfg Config, depthCap int) Result {
	s := &search{e: e, cfg: cfg, ctx: ctx, depthCap: depthCap}
	ok, solutions, node := s.prove(goal, bind.Empty(), 0, map[string]bool{})
	res := Result{
		Provable:  ok,
		Solutions: solutions,
		Stats:     s.stats,
		Cancelled: s.cancelled,
	}
	if cfg.Trace {
		res.Trace = node
	}
	return res
}
