// Package bind implements the value-typed bindings environment shared by
// the expression evaluator (internal/expr), the discrimination network
// (internal/rete), and the unifier (internal/unify) — spec §3 "Bindings".
//
// Bindings are copy-on-change so that concurrent proof-search branches and
// parallel join propagation never clobber one another's variable state;
// this mirrors the value-typed substitution environments in
// gitrdm-gokando/pkg/minikanren's stream-of-substitutions model, adapted to
// this spec's typed Value instead of miniKanren's generic Term.
package bind

import "github.com/rulekit/rulekit/internal/value"

// entry is one (name, value) pair, kept in insertion order for deterministic
// iteration (useful for trace rendering and tests).
type entry struct {
	name string
	val  value.Value
}

// Bindings is an ordered, immutable-from-the-outside mapping from variable
// name to Value. The zero Bindings is empty and ready to use.
type Bindings struct {
	entries []entry
}

// Empty returns an empty Bindings.
func Empty() Bindings { return Bindings{} }

// Get looks up a variable, returning (Value, true) if bound.
func (b Bindings) Get(name string) (value.Value, bool) {
	for _, e := range b.entries {
		if e.name == name {
			return e.val, true
		}
	}
	return value.Null(), false
}

// Bind returns a new Bindings with name bound to v. It fails (ok=false) if
// name is already bound to a value not structurally equal to v, per spec
// §3: "bind(var, v) fails if var is already bound to a value that is not
// structurally equal to v."
func (b Bindings) Bind(name string, v value.Value) (Bindings, bool) {
	for i, e := range b.entries {
		if e.name == name {
			if value.Equal(e.val, v) {
				return b, true
			}
			return b, false
		}
		_ = i
	}
	out := make([]entry, len(b.entries), len(b.entries)+1)
	copy(out, b.entries)
	out = append(out, entry{name: name, val: v})
	return Bindings{entries: out}, true
}

// Merge unions a and b under the same conflict rule as Bind: a variable
// bound in both must hold structurally-equal values.
func Merge(a, b Bindings) (Bindings, bool) {
	out := a
	for _, e := range b.entries {
		var ok bool
		out, ok = out.Bind(e.name, e.val)
		if !ok {
			return Bindings{}, false
		}
	}
	return out, true
}

// Names returns the bound variable names in insertion order.
func (b Bindings) Names() []string {
	names := make([]string, len(b.entries))
	for i, e := range b.entries {
		names[i] = e.name
	}
	return names
}

// Len reports the number of bound variables.
func (b Bindings) Len() int { return len(b.entries) }
