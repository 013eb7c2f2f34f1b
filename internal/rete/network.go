// Package rete implements the discrimination network (spec §4.6): alpha
// filters per fact type, a beta join across a rule's join roots, NOT/
// EXISTS/FORALL conditional elements, and per-rule terminal memory. Each
// Network.Propagate call recomputes every rule's current match set against
// a working-memory snapshot and diffs it against the previous round's
// terminal memory, which reconstructs beta memory from alpha memory by
// construction (spec invariant #4) at the cost of incremental performance
// — see DESIGN.md for the tradeoff.
package rete

import (
	"sort"
	"sync"

	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/wm"
)

// Network owns one compiled pattern and one terminal-memory set per rule
// currently registered with it.
type Network struct {
	mu sync.RWMutex

	rules    map[string]compiled
	terminal map[string]map[string]Token

	onError func(ruleName string, err error)
}

// New returns an empty Network. onError, if non-nil, is invoked for every
// evaluator error encountered while matching a specific candidate
// combination; such errors discard that combination without halting
// propagation (spec §4.6).
func New(onError func(ruleName string, err error)) *Network {
	return &Network{
		rules:    make(map[string]compiled),
		terminal: make(map[string]map[string]Token),
		onError:  onError,
	}
}

// AddRule compiles r's pattern and registers it under r.Name, replacing
// any existing compilation (re-adding a rule after an edit is supported).
func (n *Network) AddRule(r *kb.Rule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rules[r.Name] = compilePattern(r.Pattern)
	if _, ok := n.terminal[r.Name]; !ok {
		n.terminal[r.Name] = map[string]Token{}
	}
}

// RemoveRule drops a rule's compiled pattern and terminal memory.
func (n *Network) RemoveRule(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.rules, name)
	delete(n.terminal, name)
}

// Rebuild recompiles every rule from kb, used after a bulk knowledge-base
// edit instead of many individual AddRule/RemoveRule calls.
func (n *Network) Rebuild(rules []*kb.Rule) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.rules = make(map[string]compiled, len(rules))
	keep := make(map[string]bool, len(rules))
	for _, r := range rules {
		n.rules[r.Name] = compilePattern(r.Pattern)
		keep[r.Name] = true
		if _, ok := n.terminal[r.Name]; !ok {
			n.terminal[r.Name] = map[string]Token{}
		}
	}
	for name := range n.terminal {
		if !keep[name] {
			delete(n.terminal, name)
		}
	}
}

// Propagate re-evaluates every registered rule's pattern against snapshot
// and returns the terminal-memory deltas since the previous call: Added
// events for newly-true (rule, handle-tuple) combinations, Removed events
// for combinations that no longer hold. Terminal memory itself is updated
// in place, so the next call diffs against this round's result.
func (n *Network) Propagate(snapshot wm.Snapshot, fns *expr.Registry, globals expr.Globals) []MatchEvent {
	n.mu.Lock()
	defer n.mu.Unlock()

	env := matchEnv{Functions: fns, Globals: globals}

	names := make([]string, 0, len(n.rules))
	for name := range n.rules {
		names = append(names, name)
	}
	sort.Strings(names)

	var events []MatchEvent
	for _, name := range names {
		ruleName := name
		onErr := func(err error) {
			if n.onError != nil {
				n.onError(ruleName, err)
			}
		}

		matches := n.rules[name].match(snapshot, env, onErr)
		newSet := make(map[string]Token, len(matches))
		for _, t := range matches {
			newSet[t.Key()] = t
		}

		old := n.terminal[name]
		for key, t := range newSet {
			if _, existed := old[key]; !existed {
				events = append(events, MatchEvent{RuleName: name, Token: t, Kind: MatchAdded})
			}
		}
		for key, t := range old {
			if _, still := newSet[key]; !still {
				events = append(events, MatchEvent{RuleName: name, Token: t, Kind: MatchRemoved})
			}
		}
		n.terminal[name] = newSet
	}
	return events
}

// TerminalSize reports how many matches a rule currently holds in terminal
// memory, mainly useful for tests and diagnostics.
func (n *Network) TerminalSize(ruleName string) int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.terminal[ruleName])
}

// Matches returns a snapshot of ruleName's current terminal tokens, mainly
// for developer-facing "what matched and why" surfaces (internal/engine's
// Explain).
func (n *Network) Matches(ruleName string) []Token {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Token, 0, len(n.terminal[ruleName]))
	for _, t := range n.terminal[ruleName] {
		out = append(out, t)
	}
	return out
}
