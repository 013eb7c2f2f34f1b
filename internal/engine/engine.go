// Package engine wires C1 through C12 behind the Engine/BackwardEngine API
// spec §6 describes: one Engine owns a knowledge base, working memory, the
// discrimination network, the agenda, the conclusion index, the action
// dispatcher, and the forward and backward drivers built over them, the
// way the teacher's internal/mangle.Engine owns its factstore, analyzer,
// and union-find state behind one façade (theRebelliousNerd-codenerd
// internal/mangle/engine.go).
package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/backward"
	"github.com/rulekit/rulekit/internal/config"
	"github.com/rulekit/rulekit/internal/dispatch"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/forward"
	"github.com/rulekit/rulekit/internal/index"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/lang"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/rlog"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

// Engine is the assembled rule engine: a knowledge base plus every
// component that reads or mutates it, sharing one working memory and one
// discrimination network across both inference modes (spec §2 "C6 and C11
// both reach into C2 and C5; C9 bridges them").
type Engine struct {
	KB         *kb.KnowledgeBase
	WM         *wm.WorkingMemory
	Network    *rete.Network
	Agenda     *agenda.Agenda
	Index      *index.Index
	Dispatcher *dispatch.Dispatcher
	Forward    *forward.Engine
	Backward   *backward.Engine

	cfg    config.EngineConfig
	logger *zap.Logger
}

// New assembles an Engine over knowledge, applying cfg's defaults for the
// agenda's initial strategy/seed and (at Run/Query time) the forward cycle
// cap and backward search parameters. knowledge need not be Link()ed yet;
// callers may still register functions before the first Run or Query.
func New(knowledge *kb.KnowledgeBase, cfg config.EngineConfig, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = rlog.Nop()
	}

	memory := wm.New(knowledge)

	net := rete.New(func(ruleName string, err error) {
		rlog.For(logger, rlog.ComponentRete).Warn("token discarded on evaluator error",
			zap.String("rule", ruleName), zap.Error(err))
	})
	net.Rebuild(knowledge.Rules())

	ag := agenda.New(agenda.Strategy(cfg.Forward.DefaultStrategy), cfg.Forward.RandomSeed)

	ix := index.New()
	ix.Rebuild(knowledge.Rules())

	disp := dispatch.New(memory, knowledge, ag, rlog.For(logger, rlog.ComponentAction))

	fwd := forward.New(memory, knowledge, net, ag, disp, rlog.For(logger, rlog.ComponentForward))

	bwd := backward.New(knowledge, memory, ix, disp.QueryExecutor())

	return &Engine{
		KB:         knowledge,
		WM:         memory,
		Network:    net,
		Agenda:     ag,
		Index:      ix,
		Dispatcher: disp,
		Forward:    fwd,
		Backward:   bwd,
		cfg:        cfg,
		logger:     logger,
	}, nil
}

// Load parses RL source, registers every declaration it produced into a
// fresh knowledge base, links it, and assembles an Engine over the result
// — the common case of spec §6's "KnowledgeBase::load" followed
// immediately by "KnowledgeBase::link" and "Engine::new".
func Load(source string, cfg config.EngineConfig, logger *zap.Logger) (*Engine, *lang.ParsedUnit, error) {
	unit, err := lang.Parse(source)
	if err != nil {
		return nil, nil, err
	}
	knowledge := kb.New()
	for _, t := range unit.Templates {
		knowledge.AddTemplate(t)
	}
	for _, g := range unit.Globals {
		knowledge.AddGlobal(g)
	}
	for _, d := range unit.Deffacts {
		knowledge.AddDeffacts(d)
	}
	for _, m := range unit.Modules {
		knowledge.AddModule(m)
	}
	for _, r := range unit.Rules {
		if mod, ok := unit.RuleModule[r.Name]; ok && r.Meta.Module == "" {
			r.Meta.Module = mod
		}
		if err := knowledge.AddRule(r); err != nil {
			return nil, unit, err
		}
	}
	for _, q := range unit.Queries {
		knowledge.AddQuery(q)
	}
	if err := knowledge.Link(); err != nil {
		return nil, unit, err
	}
	eng, err := New(knowledge, cfg, logger)
	if err != nil {
		return nil, unit, err
	}
	return eng, unit, nil
}

// RegisterFunction adds a callable to the shared function registry every
// evaluator, unifier, and action dispatch call consults (spec §6
// "Engine::register_function").
func (e *Engine) RegisterFunction(fn expr.Function) {
	e.KB.Functions().Register(fn)
}

// AddRule registers a new rule after initial load, keeping the
// discrimination network and conclusion index in sync and invalidating any
// memoized backward-chaining proofs that might have depended on its
// absence.
func (e *Engine) AddRule(r *kb.Rule) error {
	if err := e.KB.AddRule(r); err != nil {
		return err
	}
	e.Network.AddRule(r)
	e.Index.Rebuild(e.KB.Rules())
	e.Backward.Invalidate()
	return nil
}

// RemoveRule drops a rule by name, keeping the network, index, and
// backward memoization cache consistent with the edited rule set.
func (e *Engine) RemoveRule(name string) error {
	if err := e.KB.RemoveRule(name); err != nil {
		return err
	}
	e.Network.RemoveRule(name)
	e.Index.Rebuild(e.KB.Rules())
	e.Backward.Invalidate()
	return nil
}

// Insert adds a new fact of factType to working memory, validating it
// against a registered template if one exists (spec §4.5, §6
// "Engine::insert").
func (e *Engine) Insert(factType string, data value.Value) (wm.Handle, error) {
	h, err := e.WM.Insert(factType, data)
	if err == nil {
		e.Backward.Invalidate()
	}
	return h, err
}

// Update replaces h's data in place (spec §4.5 "semantically
// retract-then-insert under the same handle").
func (e *Engine) Update(h wm.Handle, data value.Value) error {
	err := e.WM.Update(h, data)
	if err == nil {
		e.Backward.Invalidate()
	}
	return err
}

// Retract removes h from working memory.
func (e *Engine) Retract(h wm.Handle) error {
	err := e.WM.Retract(h)
	if err == nil {
		e.Backward.Invalidate()
	}
	return err
}

// Reset clears working memory and re-asserts every registered deffacts
// block, blocks in name order and each block's facts in declaration order
// (spec §3 "Deffacts", §6 "Engine::reset").
func (e *Engine) Reset() error {
	e.WM.Reset()
	for _, d := range e.KB.Deffacts() {
		for _, f := range d.Facts {
			if _, err := e.WM.Insert(f.Type, f.Data); err != nil {
				return fmt.Errorf("engine: reset: deffacts %q: %w", d.Name, err)
			}
		}
	}
	e.Backward.Invalidate()
	return nil
}

// Run drives the forward-chaining agenda loop to completion or until limit
// cycles have executed (0 means use the configured default), per spec §6
// "Engine::run".
func (e *Engine) Run(ctx context.Context, limit int) forward.Result {
	fc := e.cfg.Forward
	cycles := fc.MaxCycles
	if limit > 0 {
		cycles = limit
	}
	return e.Forward.Run(ctx, forward.Config{
		MaxCycles: cycles,
		Parallel:  fc.Parallel,
		Workers:   fc.Workers,
	})
}

// SetStrategy changes the agenda's conflict-resolution strategy (spec §6
// "Engine::set_strategy").
func (e *Engine) SetStrategy(s agenda.Strategy) {
	e.Agenda.SetStrategy(s)
}

// SetFocus pushes group onto the agenda's focus stack (spec §6
// "Engine::set_focus"); PopFocus on Agenda restores the previous group.
func (e *Engine) SetFocus(group string) {
	e.Agenda.PushFocus(group)
}

// backwardConfig builds a backward.Config from the engine's configured
// defaults, the only place that translation happens so Query and
// QueryNamed can't drift apart.
func (e *Engine) backwardConfig(readOnly bool) backward.Config {
	bc := e.cfg.Backward
	return backward.Config{
		MaxDepth:      bc.MaxDepth,
		Strategy:      backward.Strategy(bc.Strategy),
		SolutionCap:   bc.SolutionCap,
		Trace:         bc.Trace,
		AssertingMode: !readOnly,
	}
}

// Query parses text as a goal expression and proves it via the backward
// engine, in asserting mode unless readOnly is set (spec §6
// "BackwardEngine::query").
func (e *Engine) Query(ctx context.Context, text string, readOnly bool) (backward.Result, error) {
	goal, err := lang.ParseExpr(text)
	if err != nil {
		return backward.Result{}, err
	}
	return e.Backward.Query(ctx, goal, e.backwardConfig(readOnly)), nil
}

// QueryNamed proves a previously-registered named query's goal expression.
// When the proof succeeds, readOnly is false, and the query declares
// on-success actions, those actions fire once per derived solution with
// that solution's bindings and no fact-handle context — a named query's
// actions operate on the bindings it exports (spec §3 "Query"), not
// necessarily on a specific matched fact.
func (e *Engine) QueryNamed(ctx context.Context, name string, readOnly bool) (backward.Result, error) {
	q, ok := e.KB.Query(name)
	if !ok {
		return backward.Result{}, fmt.Errorf("engine: unknown query %q", name)
	}
	result := e.Backward.Query(ctx, q.Goal, e.backwardConfig(readOnly))
	if result.Provable && !readOnly && len(q.OnSuccess) > 0 {
		rule := &kb.Rule{Name: name, Actions: q.OnSuccess}
		for _, sol := range result.Solutions {
			if err := e.Dispatcher.Fire(ctx, rule, dispatch.TokenHandles(rete.Token{}), sol); err != nil {
				return result, err
			}
		}
	}
	return result, nil
}

// Explain renders the current terminal-memory matches for ruleName — the
// handle tuples that make it a live activation candidate right now — for
// developer-facing "what matched and why" debugging. This is the
// convenience spec §2's component table doesn't name an owner for; it's
// built on C6's terminal memory and C1's Value display, grounded on the
// teacher's ProofTreeTracer/DerivationTrace developer-facing rendering
// (theRebelliousNerd-codenerd internal/mangle/proof_tree.go).
func (e *Engine) Explain(ruleName string) string {
	tokens := e.Network.Matches(ruleName)
	if len(tokens) == 0 {
		return fmt.Sprintf("rule %q: no current matches", ruleName)
	}
	out := fmt.Sprintf("rule %q: %d match(es)\n", ruleName, len(tokens))
	for i, t := range tokens {
		out += fmt.Sprintf("  [%d]", i)
		for root, h := range t.Handles {
			fact, ok := e.WM.Get(h)
			if !ok {
				out += fmt.Sprintf(" %s=%s(gone)", root, h)
				continue
			}
			out += fmt.Sprintf(" %s=%s(%s)", root, h, value.Display(fact.Data))
		}
		out += "\n"
	}
	return out
}
