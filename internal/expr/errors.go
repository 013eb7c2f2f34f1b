package expr

import "fmt"

// UnboundVariable is raised when the evaluator encounters a Variable with no
// binding (spec §4.2: "unbound inside evaluator raises UnboundVariable").
type UnboundVariable struct{ Name string }

func (e *UnboundVariable) Error() string { return fmt.Sprintf("unbound variable %q", e.Name) }

// DivisionByZero is raised by Arithmetic division/modulo by zero.
type DivisionByZero struct{ Op ArithOp }

func (e *DivisionByZero) Error() string { return fmt.Sprintf("division by zero in %q", e.Op) }

// UnknownFunction is raised when Call references an unregistered function.
type UnknownFunction struct{ Name string }

func (e *UnknownFunction) Error() string { return fmt.Sprintf("unknown function %q", e.Name) }

// EffectCallNotAllowed is raised when an effectful function is invoked from
// a read-only evaluation context (e.g. a rule condition, rather than an
// action — spec §4.2: "effectful functions are callable only from actions").
type EffectCallNotAllowed struct{ Name string }

func (e *EffectCallNotAllowed) Error() string {
	return fmt.Sprintf("function %q is effectful and cannot be called from a condition", e.Name)
}
