// Package rulekit is a public re-export shim over internal/engine, the
// only supported way external callers reach this module's engine without
// violating Go's internal-package encapsulation. It mirrors the teacher's
// pkg/mangle/mangle.go re-export pattern (type aliases plus var-bound
// function re-exports), trimmed to the handful of names cmd/rulekit and
// external callers actually use rather than that file's much larger
// speculative re-export surface.
package rulekit

import (
	"github.com/rulekit/rulekit/internal/agenda"
	"github.com/rulekit/rulekit/internal/backward"
	"github.com/rulekit/rulekit/internal/config"
	"github.com/rulekit/rulekit/internal/engine"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/forward"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/lang"
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

// Engine is the assembled rule engine (forward + backward chaining over a
// shared knowledge base and working memory).
type Engine = engine.Engine

// New assembles an Engine over an already-linked KnowledgeBase.
var New = engine.New

// Load parses RL source and assembles a linked Engine over it in one call.
var Load = engine.Load

// KnowledgeBase, Rule, and Query are the canonical metadata objects spec §3
// and §4.4 describe (internal/kb).
type (
	KnowledgeBase = kb.KnowledgeBase
	Rule          = kb.Rule
	Query         = kb.Query
	Metadata      = kb.Metadata
)

// NewKnowledgeBase returns an empty KnowledgeBase ready for rule/template/
// global/deffacts/module registration.
var NewKnowledgeBase = kb.New

// Parse lexes and parses RL source text into a ParsedUnit (internal/lang).
var Parse = lang.Parse

// ParsedUnit is C3's output.
type ParsedUnit = lang.ParsedUnit

// Value, Fact, and Template are the dynamic-typed data model (internal/
// value, spec §3/§4.1).
type (
	Value    = value.Value
	Fact     = value.Fact
	Template = value.Template
	Kind     = value.Kind
)

// Handle is working memory's opaque fact identifier, not reused until Reset
// (internal/wm, spec §3/§4.5).
type Handle = wm.Handle

// Function is the registered-callable type the evaluator, unifier, and
// action dispatcher consult, and Expr is the expression AST they evaluate
// (internal/expr).
type (
	Function = expr.Function
	Expr     = expr.Expr
)

// Strategy selects the agenda's conflict-resolution ordering
// (internal/agenda, spec §4.7).
type Strategy = agenda.Strategy

const (
	StrategySalience   = agenda.StrategySalience
	StrategyLEX        = agenda.StrategyLEX
	StrategyMEA        = agenda.StrategyMEA
	StrategyDepth      = agenda.StrategyDepth
	StrategyBreadth    = agenda.StrategyBreadth
	StrategySimplicity = agenda.StrategySimplicity
	StrategyComplexity = agenda.StrategyComplexity
	StrategyRandom     = agenda.StrategyRandom
)

// ForwardResult is one Engine.Run call's outcome (internal/forward).
type ForwardResult = forward.Result

// QueryResult is one Engine.Query call's outcome (internal/backward).
type QueryResult = backward.Result

// EngineConfig is the typed configuration New/Load accept (internal/
// config).
type EngineConfig = config.EngineConfig

// DefaultConfig returns rulekit's out-of-the-box configuration.
var DefaultConfig = config.DefaultConfig

// LoadConfig reads an EngineConfig from a YAML file.
var LoadConfig = config.Load
