package lang

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
)

// Display renders a Rule back into RL source text satisfying the round-trip
// law parse(Display(rule)) == rule (spec §8): Parse(Display(r)).Rules[0]
// is structurally equivalent to r.
func Display(r *kb.Rule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "rule %s", quote(r.Name))
	if r.Meta.Salience != 0 {
		fmt.Fprintf(&b, " salience %d", r.Meta.Salience)
	}
	if r.Meta.NoLoop {
		b.WriteString(" no-loop")
	}
	if r.Meta.LockOnActive {
		b.WriteString(" lock-on-active")
	}
	if r.Meta.AutoFocus {
		b.WriteString(" auto-focus")
	}
	if r.Meta.AgendaGroup != "" {
		fmt.Fprintf(&b, " agenda-group %s", quote(r.Meta.AgendaGroup))
	}
	if r.Meta.ActivationGroup != "" {
		fmt.Fprintf(&b, " activation-group %s", quote(r.Meta.ActivationGroup))
	}
	if r.Meta.RuleflowGroup != "" {
		fmt.Fprintf(&b, " ruleflow-group %s", quote(r.Meta.RuleflowGroup))
	}
	b.WriteString(" {\n  when ")
	b.WriteString(DisplayExpr(r.Pattern))
	b.WriteString("\n  then\n")
	for _, a := range r.Actions {
		fmt.Fprintf(&b, "    %s;\n", DisplayAction(a))
	}
	b.WriteString("}\n")
	return b.String()
}

func quote(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// rank orders expression nodes by the precedence level of the grammar
// production that yields them (or/and/not/comparison; exists, whose operand
// runs to the end of the enclosing expression, ranks loosest of all;
// everything else is primary-level and never needs parenthesizing).
// displayChild wraps a child
// in parens whenever its rank is looser than the minimum its parent
// position in the grammar allows, so Display output always re-parses to an
// equivalent tree even for programmatically built (non-parser-produced)
// expressions.
func rank(e expr.Expr) int {
	switch e.(type) {
	case expr.Exists:
		return 0
	case expr.Or:
		return 1
	case expr.And:
		return 2
	case expr.Not:
		return 3
	case expr.Comparison:
		return 4
	default:
		return 8
	}
}

func displayChild(e expr.Expr, minRank int) string {
	if rank(e) < minRank {
		return "(" + DisplayExpr(e) + ")"
	}
	return DisplayExpr(e)
}

// DisplayExpr renders an expression back into RL surface syntax.
func DisplayExpr(e expr.Expr) string {
	switch n := e.(type) {
	case expr.Field:
		return n.Path

	case expr.Literal:
		return displayLiteral(n.Value)

	case expr.Variable:
		return "?" + n.Name

	case expr.Comparison:
		return fmt.Sprintf("%s %s %s", displayChild(n.Lhs, 5), n.Op, displayChild(n.Rhs, 5))

	case expr.Arithmetic:
		return fmt.Sprintf("(%s %s %s)", DisplayExpr(n.Lhs), n.Op, DisplayExpr(n.Rhs))

	case expr.And:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = displayChild(c, 3)
		}
		return strings.Join(parts, " && ")

	case expr.Or:
		parts := make([]string, len(n.Children))
		for i, c := range n.Children {
			parts[i] = displayChild(c, 2)
		}
		return strings.Join(parts, " || ")

	case expr.Not:
		// "not not X" is handled by the grammar's own recursion, not by
		// precedence, so a Not child is never wrapped here.
		if _, ok := n.Child.(expr.Not); ok {
			return "not " + DisplayExpr(n.Child)
		}
		return "not " + displayChild(n.Child, 4)

	case expr.Exists:
		return "exists " + DisplayExpr(n.Inner)

	case expr.Forall:
		return fmt.Sprintf("forall (%s, %s)", DisplayExpr(n.A), DisplayExpr(n.B))

	case expr.Test:
		return "test (" + DisplayExpr(*n.Call) + ")"

	case expr.Call:
		return displayCall(n.Function, n.Args)

	case expr.Accumulate:
		if n.As != "" {
			return fmt.Sprintf("accumulate %s (%s) as ?%s", n.Op, DisplayExpr(n.Expr), n.As)
		}
		return fmt.Sprintf("accumulate %s (%s)", n.Op, DisplayExpr(n.Expr))

	case expr.Multifield:
		if n.Operand == nil {
			return fmt.Sprintf("%s[%s]", DisplayExpr(n.Field), n.Op)
		}
		return fmt.Sprintf("%s[%s: %s]", DisplayExpr(n.Field), n.Op, DisplayExpr(n.Operand))
	}
	return ""
}

func displayLiteral(v value.Value) string {
	switch v.Kind() {
	case value.KindString:
		return quote(v.AsString())
	case value.KindInt:
		return strconv.FormatInt(v.AsInt(), 10)
	case value.KindNumber:
		s := strconv.FormatFloat(v.AsNumber(), 'f', -1, 64)
		// an integral value gets ".0" so it re-lexes as a number, not an
		// int (NaN and Inf are left as formatted).
		if !strings.ContainsAny(s, ".NI") {
			s += ".0"
		}
		return s
	case value.KindBool:
		if v.AsBool() {
			return "true"
		}
		return "false"
	case value.KindNull:
		return "null"
	case value.KindArray:
		elems := v.AsArray()
		parts := make([]string, len(elems))
		for i, e := range elems {
			parts[i] = displayLiteral(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return quote(value.Display(v))
	}
}

func displayCall(fn string, args []expr.Expr) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = DisplayExpr(a)
	}
	return fmt.Sprintf("%s(%s)", fn, strings.Join(parts, ", "))
}

// DisplayAction renders a single action-list statement back into RL syntax,
// without the trailing semicolon the enclosing action list supplies.
func DisplayAction(a action.Action) string {
	switch n := a.(type) {
	case action.Set:
		return fmt.Sprintf("set %s = %s", n.Path, DisplayExpr(n.Expr))

	case action.Assert:
		fields := make([]string, len(n.Fields))
		for i, f := range n.Fields {
			fields[i] = fmt.Sprintf("%s = %s", f.Name, DisplayExpr(f.Expr))
		}
		return fmt.Sprintf("assert %s { %s }", n.Type, strings.Join(fields, ", "))

	case action.Retract:
		return "retract " + DisplayExpr(n.HandleExpr)

	case action.Call:
		call := displayCall(n.Function, n.Args)
		if n.AssignTo != "" {
			return fmt.Sprintf("call %s -> %s", call, n.AssignTo)
		}
		return "call " + call

	case action.Log:
		return fmt.Sprintf("log %s %s", n.Level, DisplayExpr(n.Message))

	case action.AgendaControl:
		return displayAgendaControl(n)
	}
	return ""
}

func displayAgendaControl(n action.AgendaControl) string {
	switch n.Op {
	case action.AgendaPushFocus:
		return fmt.Sprintf("agenda push focus %s", quote(n.Group))
	case action.AgendaPopFocus:
		return "agenda pop focus"
	case action.AgendaHalt:
		return "agenda halt"
	case action.AgendaClearGroup:
		return fmt.Sprintf("agenda clear group %s", quote(n.Group))
	}
	return ""
}
