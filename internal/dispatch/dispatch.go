// Package dispatch implements the action dispatcher (spec §4.12): executing
// a rule's action list against working memory, the knowledge base's
// globals, and the agenda's focus stack, once a forward activation fires or
// a backward proof closes in asserting mode.
package dispatch

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/rete"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

// HandleLookup resolves the fact-type root a Set/Retract action's path (or
// handle expression) is relative to, to a live working-memory handle. The
// forward engine supplies one backed by the firing activation's token; the
// backward engine, which proves goals without a token, falls back to
// fallbackHandles (see query.go).
type HandleLookup interface {
	Handle(root string) (wm.Handle, bool)
}

type tokenHandles rete.Token

func (t tokenHandles) Handle(root string) (wm.Handle, bool) {
	h, ok := t.Handles[root]
	return h, ok
}

// TokenHandles adapts a matched rete.Token to HandleLookup for the forward
// engine.
func TokenHandles(t rete.Token) HandleLookup { return tokenHandles(t) }

// UnknownTarget is returned when a Set/Retract action's path names neither
// a fact-bound root nor a known global.
type UnknownTarget struct{ Path string }

func (e *UnknownTarget) Error() string {
	return fmt.Sprintf("action target %q is neither a bound fact nor a known global", e.Path)
}

// Dispatcher executes actions against a shared working memory, knowledge
// base, and agenda.
type Dispatcher struct {
	WM     *wm.WorkingMemory
	KB     *kb.KnowledgeBase
	Agenda *agenda.Agenda
	Logger *zap.Logger
}

// New returns a Dispatcher. logger may be nil, in which case a no-op logger
// is used (mirroring this codebase's convention of always having a usable
// *zap.Logger in hand, never a bare nil check at every log call site).
func New(memory *wm.WorkingMemory, knowledge *kb.KnowledgeBase, ag *agenda.Agenda, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{WM: memory, KB: knowledge, Agenda: ag, Logger: logger}
}

// undoStep is a best-effort compensating action recorded as each action
// executes, so Fire can roll back the activation's in-memory effects when a
// later action in the same list errors (spec §4.12: "cancels its effects
// where possible (best-effort undo limited to in-memory changes made in
// this activation)").
type undoStep func()

// Fire executes rule's actions in order under bindings b, resolving
// fact-bound Set/Retract targets through handles. An error from any action
// aborts the remaining actions and rolls back what already ran.
func (d *Dispatcher) Fire(ctx context.Context, rule *kb.Rule, handles HandleLookup, b bind.Bindings) error {
	var undo []undoStep
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}

	for _, a := range rule.Actions {
		if err := ctx.Err(); err != nil {
			rollback()
			return err
		}
		step, err := d.execute(ctx, a, handles, b)
		if err != nil {
			d.Logger.Warn("action failed, rolling back activation",
				zap.String("rule", rule.Name), zap.Error(err))
			rollback()
			return err
		}
		if step != nil {
			undo = append(undo, step)
		}
	}
	return nil
}

func (d *Dispatcher) execute(ctx context.Context, a action.Action, handles HandleLookup, b bind.Bindings) (undoStep, error) {
	switch v := a.(type) {
	case action.Set:
		return d.execSet(v, handles, b)
	case action.Assert:
		return d.execAssert(v, b)
	case action.Retract:
		return d.execRetract(v, handles, b)
	case action.Call:
		return d.execCall(v, handles, b)
	case action.Log:
		return d.execLog(v, b)
	case action.AgendaControl:
		return d.execAgendaControl(v)
	default:
		return nil, fmt.Errorf("dispatch: unhandled action type %T", a)
	}
}

func (d *Dispatcher) evalUnderBindings(e expr.Expr, b bind.Bindings) (value.Value, error) {
	return expr.Eval(e, expr.Env{
		Facts:        expr.EmptyFactContext,
		Globals:      kbGlobals{d.KB},
		Bindings:     b,
		Functions:    d.KB.Functions(),
		AllowEffects: true,
	})
}

type kbGlobals struct{ kb *kb.KnowledgeBase }

func (g kbGlobals) Resolve(name string) (value.Value, bool) { return g.kb.ResolveGlobal(name) }

func splitRoot(path string) (root, rest string) {
	for i := 0; i < len(path); i++ {
		if path[i] == '.' {
			return path[:i], path[i+1:]
		}
	}
	return path, ""
}
