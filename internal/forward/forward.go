// Package forward implements the forward-chaining engine driver (spec
// §4.8): the cooperative agenda loop that repeatedly re-propagates working
// memory into the discrimination network, pops the next activation, and
// fires its actions through internal/dispatch, until the agenda drains or
// a configurable cycle cap is hit.
package forward

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/dispatch"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

// Config controls one Run call.
type Config struct {
	// MaxCycles safety-caps the agenda loop (spec §4.8); hitting it is
	// normal termination with LimitHit set, not an error.
	MaxCycles int
	// Parallel, when true, fires each round's maximal independent batch of
	// top-of-agenda activations concurrently (spec §5.3) instead of one at
	// a time.
	Parallel bool
	// Workers bounds parallel batch concurrency; <=0 means unbounded
	// (bounded only by the batch size itself).
	Workers int
}

// DefaultConfig returns the single-threaded, thousands-of-cycles default.
func DefaultConfig() Config {
	return Config{MaxCycles: 10000}
}

// Result reports one Run call's outcome.
type Result struct {
	Fired     []string
	Cycles    int
	Changes   wm.ChangeSet
	LimitHit  bool
	Cancelled bool
}

// Engine is the forward-chaining driver over a shared working memory,
// knowledge base, discrimination network, agenda, and action dispatcher.
type Engine struct {
	WM         *wm.WorkingMemory
	KB         *kb.KnowledgeBase
	Network    *rete.Network
	Agenda     *agenda.Agenda
	Dispatcher *dispatch.Dispatcher
	Logger     *zap.Logger

	mu   sync.Mutex
	seed int64

	footprints footprintCache
}

// New returns an Engine wiring the given components together. logger may
// be nil, in which case a no-op logger is used.
func New(memory *wm.WorkingMemory, knowledge *kb.KnowledgeBase, network *rete.Network, ag *agenda.Agenda, d *dispatch.Dispatcher, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		WM:         memory,
		KB:         knowledge,
		Network:    network,
		Agenda:     ag,
		Dispatcher: d,
		Logger:     logger,
		footprints: newFootprintCache(),
	}
}

type kbGlobals struct{ kb *kb.KnowledgeBase }

func (g kbGlobals) Resolve(name string) (value.Value, bool) { return g.kb.ResolveGlobal(name) }

// Run drives the agenda loop to completion (spec §4.8, steps 1-5): drain
// working-memory changes, re-propagate, pop and fire one activation (or,
// in parallel mode, one independent batch), repeat until the agenda is
// empty, the engine is halted, the context is cancelled, or cfg.MaxCycles
// is reached.
func (e *Engine) Run(ctx context.Context, cfg Config) Result {
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultConfig().MaxCycles
	}

	var fired []string
	var changes wm.ChangeSet
	cycles := 0

	for cycles < cfg.MaxCycles {
		if err := ctx.Err(); err != nil {
			return Result{Fired: fired, Cycles: cycles, Changes: changes, Cancelled: true}
		}
		if e.Agenda.Halted() {
			break
		}

		changes = mergeChangeSet(changes, e.WM.DrainChanges())
		e.propagate()

		if cfg.Parallel {
			batch := e.nextIndependentBatch(cfg.Workers)
			if len(batch) == 0 {
				break
			}
			names := e.fireBatch(ctx, batch)
			fired = append(fired, names...)
			cycles += len(batch)
			continue
		}

		act := e.Agenda.PopNext()
		if act == nil {
			break
		}
		e.fireOne(ctx, act)
		fired = append(fired, act.RuleName)
		cycles++
	}

	return Result{
		Fired:    fired,
		Cycles:   cycles,
		Changes:  changes,
		LimitHit: cycles >= cfg.MaxCycles,
	}
}

// propagate re-evaluates the network against the current snapshot and
// folds the resulting match deltas into the agenda: newly-true tuples
// become Pending activations, withdrawn ones are removed if still pending.
func (e *Engine) propagate() {
	snap := e.WM.Snapshot()
	events := e.Network.Propagate(snap, e.KB.Functions(), kbGlobals{e.KB})
	for _, ev := range events {
		switch ev.Kind {
		case rete.MatchAdded:
			rule, ok := e.KB.Rule(ev.RuleName)
			if !ok {
				continue
			}
			act := agenda.New(rule, ev.Token, e.Agenda.NextRecency(), e.seed)
			e.Agenda.Insert(act)
		case rete.MatchRemoved:
			e.Agenda.Remove(ev.RuleName + "\x00" + ev.Token.Key())
		}
	}
}

func (e *Engine) fireOne(ctx context.Context, act *agenda.Activation) {
	rule, ok := e.KB.Rule(act.RuleName)
	if !ok {
		e.Agenda.Retire(act)
		return
	}
	if err := e.Dispatcher.Fire(ctx, rule, dispatch.TokenHandles(act.Token), act.Bindings); err != nil {
		e.Logger.Warn("activation failed", zap.String("rule", act.RuleName), zap.Error(err))
	}
	e.Agenda.Retire(act)
}

func mergeChangeSet(acc, delta wm.ChangeSet) wm.ChangeSet {
	acc.Inserted = append(acc.Inserted, delta.Inserted...)
	acc.Updated = append(acc.Updated, delta.Updated...)
	acc.Retracted = append(acc.Retracted, delta.Retracted...)
	return acc
}
