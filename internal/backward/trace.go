package backward

import (
	"github.com/google/uuid"

	"github.com/rulekit/rulekit/internal/bind"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/wm"
)

// NodeKind enumerates proof-tree node types (spec §4.11).
type NodeKind int

const (
	NodeFact NodeKind = iota
	NodeRule
	NodeNegation
	NodeFailed
)

func (k NodeKind) String() string {
	switch k {
	case NodeFact:
		return "Fact"
	case NodeRule:
		return "Rule"
	case NodeNegation:
		return "Negation"
	case NodeFailed:
		return "Failed"
	default:
		return "Unknown"
	}
}

// FailReason names why a Failed proof node didn't close.
type FailReason string

const (
	ReasonDepthExceeded FailReason = "depth_exceeded"
	ReasonCycle         FailReason = "cycle"
	ReasonDeadEnd       FailReason = "dead_end"
	ReasonNegation      FailReason = "negation_failed"
	ReasonEvalError     FailReason = "eval_error"
	ReasonCancelled     FailReason = "cancelled"
)

// ProofNode is one node of the proof tree built when Config.Trace is set.
// Building it is opt-in: callers that don't ask for a trace pay nothing
// beyond the nil check, since search skips node construction entirely when
// Config.Trace is false (see search.nodeWithChildren and
// search.failedWithChildren).
type ProofNode struct {
	Kind     NodeKind
	Goal     expr.Expr
	Bindings bind.Bindings
	Children []*ProofNode

	// TraceID is a fresh external identifier for this node, distinct from
	// any backing fact handle — it exists so a rendered proof tree can be
	// referenced (e.g. logged, cross-linked) independent of the live
	// working-memory state that produced it.
	TraceID string

	RuleName string     // set when Kind == NodeRule
	Handle   wm.Handle  // set when Kind == NodeFact and a WM fact backed it
	HasHandle bool
	Reason   FailReason // set when Kind == NodeFailed
}
