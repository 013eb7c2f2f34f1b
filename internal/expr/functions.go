package expr

import "github.com/rulekit/rulekit/internal/value"

// Function is a registered callable. Effectful functions may only be
// invoked while Evaluating with AllowEffects set (from actions, spec
// §4.12); pure functions may be called from anywhere.
type Function struct {
	Name      string
	Effectful bool
	Call      func(args []value.Value) (value.Value, error)
}

// Registry maps function names to their implementation. It is owned by the
// knowledge base (internal/kb) and shared read-only across evaluations.
type Registry struct {
	funcs map[string]Function
}

// NewRegistry returns an empty function registry.
func NewRegistry() *Registry {
	return &Registry{funcs: make(map[string]Function)}
}

// Register adds or replaces a function.
func (r *Registry) Register(fn Function) {
	r.funcs[fn.Name] = fn
}

// Lookup returns the function by name.
func (r *Registry) Lookup(name string) (Function, bool) {
	fn, ok := r.funcs[name]
	return fn, ok
}
