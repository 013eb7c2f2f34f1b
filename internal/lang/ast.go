// Package lang implements the Rule Language (RL) front end (spec §4.3,
// §6): a recursive-descent lexer and parser that turns RL source text into
// the shared rule/expression/action AST (internal/kb, internal/expr,
// internal/value, internal/action) every other component consumes. It also
// provides the Display pretty-printer supporting the round-trip law
// parse(display(rule)) == rule (spec §8).
package lang

import (
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
)

// ParsedUnit is C3's output: every declaration parsed from one source text,
// plus the rule-name -> module-name mapping the module-marker convention
// produces (spec §4.3).
type ParsedUnit struct {
	Rules      []*kb.Rule
	Templates  []value.Template
	Deffacts   []value.Deffacts
	Globals    []value.Global
	Queries    []*kb.Query
	Modules    []*kb.Module
	RuleModule map[string]string
}

// Parse lexes and parses RL source text into a ParsedUnit. Module-graph
// cycle detection is not repeated here: ParsedUnit.Modules is handed to
// kb.KnowledgeBase.Link, which already implements the Tarjan-SCC check
// (spec §4.3/§4.4) that both components would otherwise duplicate.
func Parse(src string) (*ParsedUnit, error) {
	p := newParser(src)
	return p.parseUnit()
}

// ParseExpr lexes and parses a single standalone expression, e.g. a
// backward-chaining query goal's text (spec §6 "BackwardEngine::query").
// It rejects trailing tokens so callers don't silently ignore the rest of
// a malformed goal string.
func ParseExpr(src string) (expr.Expr, error) {
	p := newParser(src)
	e, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.cur.Kind != TokEOF {
		return nil, &ParseError{Line: p.cur.Line, Column: p.cur.Column, Message: "unexpected trailing input after expression"}
	}
	return e, nil
}
