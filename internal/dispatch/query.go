package dispatch

import (
	"context"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/wm"
)

// fallbackHandles resolves a root to the first live fact of that type, used
// when firing a rule's actions from a backward-chaining proof rather than a
// matched forward token: a proof's bindings carry values, not handles, so
// Set/Retract targets that reference a fact root fall back to "whichever
// fact of that type is live right now." This is adequate for the common
// case of a single fact per type; ambiguity with several live facts of the
// same type is a known limitation, documented here rather than silently
// papered over.
type fallbackHandles struct {
	WM *wm.WorkingMemory
}

func (f fallbackHandles) Handle(root string) (wm.Handle, bool) {
	hs := f.WM.ByType(root)
	if len(hs) == 0 {
		return 0, false
	}
	return hs[0], true
}

// queryExecutor adapts a Dispatcher to backward.ActionExecutor by structural
// typing: internal/dispatch never imports internal/backward, so the two
// packages can't form an import cycle even though internal/engine wires
// this value into a backward.Engine.
type queryExecutor struct{ d *Dispatcher }

func (q queryExecutor) Execute(ctx context.Context, rule *kb.Rule, b bind.Bindings) error {
	return q.d.Fire(ctx, rule, fallbackHandles{WM: q.d.WM}, b)
}

// QueryExecutor returns an adapter satisfying backward.ActionExecutor, for
// wiring this dispatcher into a backward-chaining engine running in
// asserting mode.
func (d *Dispatcher) QueryExecutor() interface {
	Execute(ctx context.Context, rule *kb.Rule, b bind.Bindings) error
} {
	return queryExecutor{d: d}
}
