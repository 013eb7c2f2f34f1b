package rete

import (
	"github.com/rulekit/rulekit/internal/value"
	"github.com/rulekit/rulekit/internal/wm"
)

var trueValue = value.Bool(true)

// singleFact resolves Field paths rooted at exactly one fact, used for
// alpha-node filters and CE universe evaluation.
type singleFact struct {
	root string
	fact value.Fact
}

func (s singleFact) Resolve(path string) (value.Value, bool) {
	root, rest := splitRoot(path)
	if root != s.root {
		return value.Null(), false
	}
	if rest == "" {
		return s.fact.Data, true
	}
	v, ok, err := s.fact.Get(rest)
	if err != nil || !ok {
		return value.Null(), false
	}
	return v, true
}

// multiRoot resolves Field paths against a tuple of facts bound one per
// join root, used for beta residual filters.
type multiRoot struct {
	facts map[string]value.Fact
}

func (m multiRoot) Resolve(path string) (value.Value, bool) {
	root, rest := splitRoot(path)
	f, ok := m.facts[root]
	if !ok {
		return value.Null(), false
	}
	if rest == "" {
		return f.Data, true
	}
	v, ok, err := f.Get(rest)
	if err != nil || !ok {
		return value.Null(), false
	}
	return v, true
}

// lookup resolves a single handle's fact from a snapshot, used while
// iterating alpha memories.
func lookup(snap wm.Snapshot, h wm.Handle) (value.Fact, bool) {
	return snap.Get(h)
}

// NewSingleFactContext exposes singleFact to internal/backward, which needs
// the same single-root Field resolution while consulting working memory for
// a goal that references exactly one fact type.
func NewSingleFactContext(root string, fact value.Fact) FactResolver {
	return singleFact{root: root, fact: fact}
}

// NewMultiFactContext exposes multiRoot to internal/backward for goals that
// reference more than one fact type at once.
func NewMultiFactContext(facts map[string]value.Fact) FactResolver {
	return multiRoot{facts: facts}
}

// FactResolver is the subset of expr.FactContext these constructors return,
// named locally so callers outside expr don't need to import it just to
// spell the return type.
type FactResolver interface {
	Resolve(path string) (value.Value, bool)
}
