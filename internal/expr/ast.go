// Package expr implements the shared expression AST (spec §3, §4.2) and its
// evaluator. Both the RETE discrimination network (internal/rete) and the
// backward resolution engine (internal/backward) evaluate nodes from this
// package against a fact context, globals, and a bindings environment.
package expr

import "github.com/rulekit/rulekit/internal/value"

// Expr is implemented by every AST node. Evaluation dispatches on the
// concrete type via a type switch in Eval, rather than a per-node Eval
// method, so the evaluator's control flow (short-circuiting, error
// propagation) lives in one place.
type Expr interface {
	exprNode()
}

// ComparisonOp enumerates comparison operators.
type ComparisonOp string

const (
	OpEq         ComparisonOp = "=="
	OpNeq        ComparisonOp = "!="
	OpLt         ComparisonOp = "<"
	OpLte        ComparisonOp = "<="
	OpGt         ComparisonOp = ">"
	OpGte        ComparisonOp = ">="
	OpContains   ComparisonOp = "contains"
	OpStartsWith ComparisonOp = "startsWith"
	OpEndsWith   ComparisonOp = "endsWith"
	OpMatches    ComparisonOp = "matches"
	OpIn         ComparisonOp = "in"
)

// ArithOp enumerates arithmetic operators.
type ArithOp string

const (
	ArithAdd ArithOp = "+"
	ArithSub ArithOp = "-"
	ArithMul ArithOp = "*"
	ArithDiv ArithOp = "/"
	ArithMod ArithOp = "%"
)

// AccumulateOp enumerates accumulate reducers.
type AccumulateOp string

const (
	AccSum   AccumulateOp = "sum"
	AccAvg   AccumulateOp = "avg"
	AccMin   AccumulateOp = "min"
	AccMax   AccumulateOp = "max"
	AccCount AccumulateOp = "count"
)

// MultifieldOp enumerates multifield operators.
type MultifieldOp string

const (
	MfContains  MultifieldOp = "contains"
	MfCount     MultifieldOp = "count"
	MfFirst     MultifieldOp = "first"
	MfLast      MultifieldOp = "last"
	MfIndex     MultifieldOp = "index"
	MfSlice     MultifieldOp = "slice"
	MfEmpty     MultifieldOp = "empty"
	MfNotEmpty  MultifieldOp = "not_empty"
	MfCollect   MultifieldOp = "collect"
)

// Field references a dotted path resolved against the current fact context,
// then globals (spec §4.2).
type Field struct{ Path string }

// Literal wraps a constant Value.
type Literal struct{ Value value.Value }

// Variable references a bindings-environment variable, e.g. "?x" or "$x".
type Variable struct{ Name string }

// Comparison applies a comparison operator to two subexpressions.
type Comparison struct {
	Op       ComparisonOp
	Lhs, Rhs Expr
}

// Arithmetic applies an arithmetic operator to two subexpressions.
type Arithmetic struct {
	Op       ArithOp
	Lhs, Rhs Expr
}

// And is a short-circuiting conjunction of children.
type And struct{ Children []Expr }

// Or is a short-circuiting disjunction of children.
type Or struct{ Children []Expr }

// Not negates its child.
type Not struct{ Child Expr }

// Exists is a conditional-element node: true iff Inner has at least one
// match in the current context (meaning is context-dependent: for the
// forward engine it drives network construction in internal/rete; for the
// backward engine it is evaluated directly by internal/backward).
type Exists struct{ Inner Expr }

// Forall is the logical form "for each X satisfying A, B(X) holds".
type Forall struct {
	A, B Expr
}

// Test wraps a function-call used purely for its truthiness.
type Test struct{ Call *Call }

// Call invokes a registered function by name with the given argument
// expressions.
type Call struct {
	Function string
	Args     []Expr
}

// Accumulate reduces a collection expression with the given operator. As,
// if non-empty, names the variable the reduced Value is exposed under when
// this node compiles into a network conditional element over a fact-type
// universe (internal/rete); direct evaluation (Eval, internal/backward)
// ignores As and simply returns the reduced Value.
type Accumulate struct {
	Op   AccumulateOp
	Expr Expr
	As   string
}

// Multifield applies a multifield operator to a field with an optional
// operand (e.g. index, slice bounds).
type Multifield struct {
	Field   Expr
	Op      MultifieldOp
	Operand Expr // may be nil for empty/not_empty/count/first/last
}

func (Field) exprNode()      {}
func (Literal) exprNode()    {}
func (Variable) exprNode()   {}
func (Comparison) exprNode() {}
func (Arithmetic) exprNode() {}
func (And) exprNode()        {}
func (Or) exprNode()         {}
func (Not) exprNode()        {}
func (Exists) exprNode()     {}
func (Forall) exprNode()     {}
func (Test) exprNode()       {}
func (Call) exprNode()       {}
func (Accumulate) exprNode() {}
func (Multifield) exprNode() {}
