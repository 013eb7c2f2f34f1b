// Package action implements the action AST (spec §4.12) shared by the rule
// language parser (internal/lang), the knowledge base (internal/kb, which
// stores each rule's action list), and the dispatcher that executes actions
// against working memory (internal/dispatch).
package action

import "github.com/rulekit/rulekit/internal/expr"

// Action is implemented by every action-list node.
type Action interface {
	actionNode()
}

// Set resolves Expr under current bindings, then writes it via working
// memory's Update on the owning fact (when Path roots at a fact-bound
// variable) or via a global Set (when Path names a global).
type Set struct {
	Path string
	Expr expr.Expr
}

// ObjectField is one field of an Assert's object literal.
type ObjectField struct {
	Name string
	Expr expr.Expr
}

// Assert inserts a new fact of the given type built from Fields.
type Assert struct {
	Type   string
	Fields []ObjectField
}

// Retract removes a fact, identified either by a literal/bound handle
// expression or by a variable bound to a handle during matching.
type Retract struct {
	HandleExpr expr.Expr
}

// Call invokes a registered (possibly effectful) function; the return value
// is discarded unless AssignTo is non-empty, in which case it is written the
// same way Set would write it.
type Call struct {
	Function string
	Args     []expr.Expr
	AssignTo string
}

// LogLevel enumerates structured log levels available to the Log action.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// Log emits a structured log entry with the current bindings.
type Log struct {
	Level   LogLevel
	Message expr.Expr
}

// AgendaOp enumerates AgendaControl operations.
type AgendaOp string

const (
	AgendaPushFocus  AgendaOp = "push-focus"
	AgendaPopFocus   AgendaOp = "pop-focus"
	AgendaHalt       AgendaOp = "halt"
	AgendaClearGroup AgendaOp = "clear-group"
)

// AgendaControl manipulates the forward engine's agenda focus stack or
// halts the run.
type AgendaControl struct {
	Op    AgendaOp
	Group string
}

func (Set) actionNode()           {}
func (Assert) actionNode()        {}
func (Retract) actionNode()       {}
func (Call) actionNode()          {}
func (Log) actionNode()           {}
func (AgendaControl) actionNode() {}
