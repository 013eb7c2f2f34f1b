package lang

import (
	"strconv"

	"github.com/rulekit/rulekit/internal/action"
	"github.com/rulekit/rulekit/internal/expr"
	"github.com/rulekit/rulekit/internal/kb"
	"github.com/rulekit/rulekit/internal/value"
)

type parser struct {
	lex *lexer
	cur Token
}

func newParser(src string) *parser {
	p := &parser{lex: newLexer(src)}
	p.cur = p.lex.next()
	return p
}

func (p *parser) advance() Token {
	t := p.cur
	p.cur = p.lex.next()
	return t
}

func (p *parser) expect(k TokenKind, what string) (Token, error) {
	if p.cur.Kind != k {
		return Token{}, newParseError(p.cur, "expected %s, got %q", what, p.cur.Text)
	}
	return p.advance(), nil
}

func (p *parser) expectIdentText(text string) (Token, error) {
	if p.cur.Kind != TokIdent || p.cur.Text != text {
		return Token{}, newParseError(p.cur, "expected %q, got %q", text, p.cur.Text)
	}
	return p.advance(), nil
}

// synchronize skips tokens until the next top-level declaration keyword or
// EOF, implementing the single recovery attempt spec §4.3 allows.
func (p *parser) synchronize() {
	p.advance()
	for p.cur.Kind != TokEOF {
		switch p.cur.Kind {
		case TokRule, TokDefmodule, TokDeftemplate, TokDefglobal, TokDeffacts, TokQuery:
			return
		}
		p.advance()
	}
}

func (p *parser) parseUnit() (*ParsedUnit, error) {
	unit := &ParsedUnit{RuleModule: map[string]string{}}
	synced := false
	var firstErr error

	for p.cur.Kind != TokEOF {
		line := p.cur.Line
		var err error

		switch p.cur.Kind {
		case TokRule:
			var r *kb.Rule
			if r, err = p.parseRule(); err == nil {
				r.Meta.Module = p.lex.moduleAt(line)
				unit.Rules = append(unit.Rules, r)
				unit.RuleModule[r.Name] = r.Meta.Module
			}
		case TokDefmodule:
			var m *kb.Module
			if m, err = p.parseDefmodule(); err == nil {
				unit.Modules = append(unit.Modules, m)
			}
		case TokDeftemplate:
			var t value.Template
			if t, err = p.parseDeftemplate(); err == nil {
				unit.Templates = append(unit.Templates, t)
			}
		case TokDefglobal:
			var g value.Global
			if g, err = p.parseDefglobal(); err == nil {
				unit.Globals = append(unit.Globals, g)
			}
		case TokDeffacts:
			var d value.Deffacts
			if d, err = p.parseDeffacts(); err == nil {
				unit.Deffacts = append(unit.Deffacts, d)
			}
		case TokQuery:
			var q *kb.Query
			if q, err = p.parseQuery(); err == nil {
				unit.Queries = append(unit.Queries, q)
			}
		default:
			err = newParseError(p.cur, "expected a top-level declaration, got %q", p.cur.Text)
		}

		if err != nil {
			if synced {
				return nil, err
			}
			synced = true
			firstErr = err
			p.synchronize()
			continue
		}
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return unit, nil
}

// parseRule parses: rule "name" [salience N] [no-loop] [lock-on-active]
// [auto-focus] [agenda-group "G"] [activation-group "H"] [ruleflow-group
// "F"] { when <expr> then <actions> }
func (p *parser) parseRule() (*kb.Rule, error) {
	p.advance() // 'rule'
	nameTok, err := p.expect(TokString, "rule name string")
	if err != nil {
		return nil, err
	}
	r := &kb.Rule{Name: nameTok.Text}

metaLoop:
	for {
		switch p.cur.Kind {
		case TokSalience:
			p.advance()
			n, err := p.expect(TokInt, "integer salience value")
			if err != nil {
				return nil, err
			}
			iv, perr := strconv.Atoi(n.Text)
			if perr != nil {
				return nil, newParseError(n, "invalid salience integer %q", n.Text)
			}
			r.Meta.Salience = iv
		case TokNoLoop:
			p.advance()
			r.Meta.NoLoop = true
		case TokLockOnActive:
			p.advance()
			r.Meta.LockOnActive = true
		case TokAutoFocus:
			p.advance()
			r.Meta.AutoFocus = true
		case TokAgendaGroup:
			p.advance()
			g, err := p.expect(TokString, "agenda-group name string")
			if err != nil {
				return nil, err
			}
			r.Meta.AgendaGroup = g.Text
		case TokActivationGroup:
			p.advance()
			g, err := p.expect(TokString, "activation-group name string")
			if err != nil {
				return nil, err
			}
			r.Meta.ActivationGroup = g.Text
		case TokRuleflowGroup:
			p.advance()
			g, err := p.expect(TokString, "ruleflow-group name string")
			if err != nil {
				return nil, err
			}
			r.Meta.RuleflowGroup = g.Text
		default:
			break metaLoop
		}
	}

	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokWhen, "'when'"); err != nil {
		return nil, err
	}
	pattern, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	r.Pattern = pattern
	if _, err := p.expect(TokThen, "'then'"); err != nil {
		return nil, err
	}
	actions, err := p.parseActionList()
	if err != nil {
		return nil, err
	}
	r.Actions = actions
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return r, nil
}

func (p *parser) parseDefmodule() (*kb.Module, error) {
	p.advance() // 'defmodule'
	nameTok, err := p.expect(TokIdent, "module name")
	if err != nil {
		return nil, err
	}
	m := &kb.Module{Name: nameTok.Text}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for p.cur.Kind != TokRBrace {
		switch p.cur.Kind {
		case TokExport:
			p.advance()
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			names, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			// The single source-level export list is not tagged by kind
			// (rule vs template vs function); kb.Resolve only consults
			// Exports.Rules, so every exported name is recorded there.
			m.Exports.Rules = append(m.Exports.Rules, names...)
		case TokImport:
			p.advance()
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			names, err := p.parseIdentList()
			if err != nil {
				return nil, err
			}
			m.Imports = append(m.Imports, names...)
		default:
			return nil, newParseError(p.cur, "expected 'export' or 'import', got %q", p.cur.Text)
		}
		if _, err := p.expect(TokSemi, "';'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return m, nil
}

var fieldKinds = map[string]value.Kind{
	"string":  value.KindString,
	"integer": value.KindInt,
	"number":  value.KindNumber,
	"boolean": value.KindBool,
	"array":   value.KindArray,
	"object":  value.KindObject,
	"null":    value.KindNull,
}

func (p *parser) parseDeftemplate() (value.Template, error) {
	p.advance() // 'deftemplate'
	nameTok, err := p.expect(TokIdent, "template name")
	if err != nil {
		return value.Template{}, err
	}
	t := value.Template{Name: nameTok.Text}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return value.Template{}, err
	}
	for p.cur.Kind != TokRBrace {
		if _, err := p.expectIdentText("field"); err != nil {
			return value.Template{}, err
		}
		fname, err := p.expect(TokIdent, "field name")
		if err != nil {
			return value.Template{}, err
		}
		if _, err := p.expect(TokColon, "':'"); err != nil {
			return value.Template{}, err
		}
		kindTok, err := p.expect(TokIdent, "field type")
		if err != nil {
			return value.Template{}, err
		}
		kind, ok := fieldKinds[kindTok.Text]
		if !ok {
			return value.Template{}, newParseError(kindTok, "unknown field type %q", kindTok.Text)
		}
		spec := value.FieldSpec{Name: fname.Text, Kind: kind}
	fieldAttrs:
		for {
			switch p.cur.Kind {
			case TokRequired:
				p.advance()
				spec.Required = true
			case TokDefault:
				p.advance()
				v, err := p.parseLiteralValue()
				if err != nil {
					return value.Template{}, err
				}
				spec.Default = v
				spec.HasDefault = true
			default:
				break fieldAttrs
			}
		}
		t.Fields = append(t.Fields, spec)
		if _, err := p.expect(TokSemi, "';'"); err != nil {
			return value.Template{}, err
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return value.Template{}, err
	}
	return t, nil
}

func (p *parser) parseDefglobal() (value.Global, error) {
	p.advance() // 'defglobal'
	readOnly := false
	if p.cur.Kind == TokReadonly {
		p.advance()
		readOnly = true
	}
	nameTok, err := p.expect(TokIdent, "global name")
	if err != nil {
		return value.Global{}, err
	}
	if _, err := p.expect(TokEq, "'='"); err != nil {
		return value.Global{}, err
	}
	v, err := p.parseLiteralValue()
	if err != nil {
		return value.Global{}, err
	}
	if _, err := p.expect(TokSemi, "';'"); err != nil {
		return value.Global{}, err
	}
	return value.Global{Name: nameTok.Text, Value: v, ReadOnly: readOnly}, nil
}

func (p *parser) parseDeffacts() (value.Deffacts, error) {
	p.advance() // 'deffacts'
	nameTok, err := p.expect(TokIdent, "deffacts name")
	if err != nil {
		return value.Deffacts{}, err
	}
	d := value.Deffacts{Name: nameTok.Text}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return value.Deffacts{}, err
	}
	for p.cur.Kind != TokRBrace {
		typeTok, err := p.expect(TokIdent, "fact type name")
		if err != nil {
			return value.Deffacts{}, err
		}
		if _, err := p.expect(TokLBrace, "'{'"); err != nil {
			return value.Deffacts{}, err
		}
		var pairs []value.Pair
		for p.cur.Kind != TokRBrace {
			fname, err := p.expect(TokIdent, "field name")
			if err != nil {
				return value.Deffacts{}, err
			}
			if _, err := p.expect(TokEq, "'='"); err != nil {
				return value.Deffacts{}, err
			}
			v, err := p.parseLiteralValue()
			if err != nil {
				return value.Deffacts{}, err
			}
			pairs = append(pairs, value.F(fname.Text, v))
			if p.cur.Kind == TokComma {
				p.advance()
			}
		}
		if _, err := p.expect(TokRBrace, "'}'"); err != nil {
			return value.Deffacts{}, err
		}
		if _, err := p.expect(TokSemi, "';'"); err != nil {
			return value.Deffacts{}, err
		}
		d.Facts = append(d.Facts, value.Fact{Type: typeTok.Text, Data: value.Object(pairs...)})
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return value.Deffacts{}, err
	}
	return d, nil
}

func (p *parser) parseQuery() (*kb.Query, error) {
	p.advance() // 'query'
	nameTok, err := p.expect(TokString, "query name string")
	if err != nil {
		return nil, err
	}
	q := &kb.Query{Name: nameTok.Text}
	if _, err := p.expect(TokLBrace, "'{'"); err != nil {
		return nil, err
	}
	for p.cur.Kind != TokRBrace {
		switch p.cur.Kind {
		case TokGoal:
			p.advance()
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			g, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			q.Goal = g
			if _, err := p.expect(TokSemi, "';'"); err != nil {
				return nil, err
			}
		case TokExport:
			p.advance()
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			vars, err := p.parseVariableList()
			if err != nil {
				return nil, err
			}
			q.Exports = vars
			if _, err := p.expect(TokSemi, "';'"); err != nil {
				return nil, err
			}
		case TokOnSuccess:
			p.advance()
			if _, err := p.expect(TokColon, "':'"); err != nil {
				return nil, err
			}
			if _, err := p.expect(TokLBrace, "'{'"); err != nil {
				return nil, err
			}
			actions, err := p.parseActionList()
			if err != nil {
				return nil, err
			}
			q.OnSuccess = actions
			if _, err := p.expect(TokRBrace, "'}'"); err != nil {
				return nil, err
			}
		default:
			return nil, newParseError(p.cur, "expected 'goal', 'export', or 'on-success', got %q", p.cur.Text)
		}
	}
	if _, err := p.expect(TokRBrace, "'}'"); err != nil {
		return nil, err
	}
	return q, nil
}

func (p *parser) parseIdentList() ([]string, error) {
	first, err := p.expect(TokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	out := []string{first.Text}
	for p.cur.Kind == TokComma {
		p.advance()
		t, err := p.expect(TokIdent, "identifier")
		if err != nil {
			return nil, err
		}
		out = append(out, t.Text)
	}
	return out, nil
}

func (p *parser) parseVariableList() ([]string, error) {
	first, err := p.expect(TokVariable, "variable")
	if err != nil {
		return nil, err
	}
	out := []string{first.Text}
	for p.cur.Kind == TokComma {
		p.advance()
		t, err := p.expect(TokVariable, "variable")
		if err != nil {
			return nil, err
		}
		out = append(out, t.Text)
	}
	return out, nil
}

// --- actions ---------------------------------------------------------------

var logLevels = map[string]action.LogLevel{
	"debug": action.LogDebug,
	"info":  action.LogInfo,
	"warn":  action.LogWarn,
	"error": action.LogError,
}

func (p *parser) parseActionList() ([]action.Action, error) {
	var out []action.Action
	for p.cur.Kind != TokRBrace {
		act, err := p.parseAction()
		if err != nil {
			return nil, err
		}
		out = append(out, act)
		if _, err := p.expect(TokSemi, "';'"); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (p *parser) parseAction() (action.Action, error) {
	switch p.cur.Kind {
	case TokSet:
		p.advance()
		path, err := p.parseDottedPath()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokEq, "'='"); err != nil {
			return nil, err
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return action.Set{Path: path, Expr: e}, nil

	case TokAssert:
		p.advance()
		typeTok, err := p.expect(TokIdent, "fact type name")
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokLBrace, "'{'"); err != nil {
			return nil, err
		}
		var fields []action.ObjectField
		for p.cur.Kind != TokRBrace {
			fname, err := p.expect(TokIdent, "field name")
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(TokEq, "'='"); err != nil {
				return nil, err
			}
			fe, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			fields = append(fields, action.ObjectField{Name: fname.Text, Expr: fe})
			if p.cur.Kind == TokComma {
				p.advance()
			}
		}
		if _, err := p.expect(TokRBrace, "'}'"); err != nil {
			return nil, err
		}
		return action.Assert{Type: typeTok.Text, Fields: fields}, nil

	case TokRetract:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return action.Retract{HandleExpr: e}, nil

	case TokCall:
		p.advance()
		fnTok, err := p.expect(TokIdent, "function name")
		if err != nil {
			return nil, err
		}
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		assignTo := ""
		if p.cur.Kind == TokArrow {
			p.advance()
			path, err := p.parseDottedPath()
			if err != nil {
				return nil, err
			}
			assignTo = path
		}
		return action.Call{Function: fnTok.Text, Args: args, AssignTo: assignTo}, nil

	case TokLog:
		p.advance()
		levelTok, err := p.expect(TokIdent, "log level (debug/info/warn/error)")
		if err != nil {
			return nil, err
		}
		level, ok := logLevels[levelTok.Text]
		if !ok {
			return nil, newParseError(levelTok, "unknown log level %q", levelTok.Text)
		}
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return action.Log{Level: level, Message: e}, nil

	case TokAgenda:
		p.advance()
		return p.parseAgendaControl()

	default:
		return nil, newParseError(p.cur, "expected an action (set/assert/retract/call/log/agenda), got %q", p.cur.Text)
	}
}

func (p *parser) parseAgendaControl() (action.Action, error) {
	first, err := p.expect(TokIdent, "agenda operation")
	if err != nil {
		return nil, err
	}
	switch first.Text {
	case "halt":
		return action.AgendaControl{Op: action.AgendaHalt}, nil
	case "push":
		if _, err := p.expectIdentText("focus"); err != nil {
			return nil, err
		}
		g, err := p.expect(TokString, "agenda group name string")
		if err != nil {
			return nil, err
		}
		return action.AgendaControl{Op: action.AgendaPushFocus, Group: g.Text}, nil
	case "pop":
		if _, err := p.expectIdentText("focus"); err != nil {
			return nil, err
		}
		return action.AgendaControl{Op: action.AgendaPopFocus}, nil
	case "clear":
		if _, err := p.expectIdentText("group"); err != nil {
			return nil, err
		}
		g, err := p.expect(TokString, "agenda group name string")
		if err != nil {
			return nil, err
		}
		return action.AgendaControl{Op: action.AgendaClearGroup, Group: g.Text}, nil
	default:
		return nil, newParseError(first, "unknown agenda operation %q", first.Text)
	}
}

func (p *parser) parseDottedPath() (string, error) {
	first, err := p.expect(TokIdent, "identifier")
	if err != nil {
		return "", err
	}
	path := first.Text
	for p.cur.Kind == TokDot {
		p.advance()
		seg, err := p.expect(TokIdent, "identifier after '.'")
		if err != nil {
			return "", err
		}
		path += "." + seg.Text
	}
	return path, nil
}

func (p *parser) parseCallArgs() ([]expr.Expr, error) {
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}
	var args []expr.Expr
	for p.cur.Kind != TokRParen {
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, e)
		if p.cur.Kind == TokComma {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	return args, nil
}

// --- expressions -------------------------------------------------------

var comparisonOps = map[TokenKind]expr.ComparisonOp{
	TokEqEq:       expr.OpEq,
	TokNeq:        expr.OpNeq,
	TokLt:         expr.OpLt,
	TokLte:        expr.OpLte,
	TokGt:         expr.OpGt,
	TokGte:        expr.OpGte,
	TokContains:   expr.OpContains,
	TokStartsWith: expr.OpStartsWith,
	TokEndsWith:   expr.OpEndsWith,
	TokMatches:    expr.OpMatches,
	TokIn:         expr.OpIn,
}

var accumulateOps = map[string]expr.AccumulateOp{
	"sum":   expr.AccSum,
	"avg":   expr.AccAvg,
	"min":   expr.AccMin,
	"max":   expr.AccMax,
	"count": expr.AccCount,
}

var multifieldOps = map[string]expr.MultifieldOp{
	"contains":  expr.MfContains,
	"count":     expr.MfCount,
	"first":     expr.MfFirst,
	"last":      expr.MfLast,
	"index":     expr.MfIndex,
	"slice":     expr.MfSlice,
	"empty":     expr.MfEmpty,
	"not_empty": expr.MfNotEmpty,
	"collect":   expr.MfCollect,
}

func (p *parser) parseExpr() (expr.Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (expr.Expr, error) {
	first, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	children := []expr.Expr{first}
	for p.cur.Kind == TokOrOr {
		p.advance()
		next, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return expr.Or{Children: children}, nil
}

func (p *parser) parseAnd() (expr.Expr, error) {
	first, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	children := []expr.Expr{first}
	for p.cur.Kind == TokAndAnd {
		p.advance()
		next, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		children = append(children, next)
	}
	if len(children) == 1 {
		return children[0], nil
	}
	return expr.And{Children: children}, nil
}

func (p *parser) parseNot() (expr.Expr, error) {
	if p.cur.Kind == TokNot {
		p.advance()
		child, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return expr.Not{Child: child}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (expr.Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op, ok := comparisonOps[p.cur.Kind]
	if !ok {
		return left, nil
	}
	p.advance()
	right, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return expr.Comparison{Op: op, Lhs: left, Rhs: right}, nil
}

func (p *parser) parseAdditive() (expr.Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokPlus || p.cur.Kind == TokMinus {
		op := expr.ArithAdd
		if p.cur.Kind == TokMinus {
			op = expr.ArithSub
		}
		p.advance()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = expr.Arithmetic{Op: op, Lhs: left, Rhs: right}
	}
	return left, nil
}

func (p *parser) parseMultiplicative() (expr.Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokStar || p.cur.Kind == TokSlash || p.cur.Kind == TokPct {
		var op expr.ArithOp
		switch p.cur.Kind {
		case TokStar:
			op = expr.ArithMul
		case TokSlash:
			op = expr.ArithDiv
		case TokPct:
			op = expr.ArithMod
		}
		p.advance()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = expr.Arithmetic{Op: op, Lhs: left, Rhs: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (expr.Expr, error) {
	if p.cur.Kind == TokMinus {
		p.advance()
		inner, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return expr.Arithmetic{Op: expr.ArithSub, Lhs: expr.Literal{Value: value.Int(0)}, Rhs: inner}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (expr.Expr, error) {
	prim, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for p.cur.Kind == TokLBracket {
		p.advance()
		opTok := p.cur
		p.advance()
		mfOp, ok := multifieldOps[opTok.Text]
		if !ok {
			return nil, newParseError(opTok, "unknown multifield operator %q", opTok.Text)
		}
		var operand expr.Expr
		if p.cur.Kind == TokColon {
			p.advance()
			operand, err = p.parseExpr()
			if err != nil {
				return nil, err
			}
		}
		if _, err := p.expect(TokRBracket, "']'"); err != nil {
			return nil, err
		}
		prim = expr.Multifield{Field: prim, Op: mfOp, Operand: operand}
	}
	return prim, nil
}

func (p *parser) parsePrimary() (expr.Expr, error) {
	switch p.cur.Kind {
	case TokLParen:
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case TokVariable:
		t := p.advance()
		return expr.Variable{Name: t.Text}, nil

	case TokString:
		t := p.advance()
		return expr.Literal{Value: value.String(t.Text)}, nil

	case TokInt:
		t := p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return nil, newParseError(t, "invalid integer literal %q", t.Text)
		}
		return expr.Literal{Value: value.Int(n)}, nil

	case TokNumber:
		t := p.advance()
		n, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return nil, newParseError(t, "invalid number literal %q", t.Text)
		}
		return expr.Literal{Value: value.Number(n)}, nil

	case TokTrue:
		p.advance()
		return expr.Literal{Value: value.Bool(true)}, nil

	case TokFalse:
		p.advance()
		return expr.Literal{Value: value.Bool(false)}, nil

	case TokNull:
		p.advance()
		return expr.Literal{Value: value.Null()}, nil

	case TokLBracket:
		return p.parseArrayLiteral()

	case TokExists:
		p.advance()
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		return expr.Exists{Inner: inner}, nil

	case TokForall:
		p.advance()
		if _, err := p.expect(TokLParen, "'('"); err != nil {
			return nil, err
		}
		a, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokComma, "','"); err != nil {
			return nil, err
		}
		b, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		return expr.Forall{A: a, B: b}, nil

	case TokTest:
		p.advance()
		if _, err := p.expect(TokLParen, "'('"); err != nil {
			return nil, err
		}
		call, err := p.parseCallExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		c := call.(expr.Call)
		return expr.Test{Call: &c}, nil

	case TokAccumulate:
		p.advance()
		opTok := p.cur
		p.advance()
		accOp, ok := accumulateOps[opTok.Text]
		if !ok {
			return nil, newParseError(opTok, "unknown accumulate operator %q", opTok.Text)
		}
		if _, err := p.expect(TokLParen, "'('"); err != nil {
			return nil, err
		}
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(TokRParen, "')'"); err != nil {
			return nil, err
		}
		acc := expr.Accumulate{Op: accOp, Expr: inner}
		if p.cur.Kind == TokIdent && p.cur.Text == "as" {
			p.advance()
			varTok, err := p.expect(TokVariable, "variable")
			if err != nil {
				return nil, err
			}
			acc.As = varTok.Text
		}
		return acc, nil

	case TokIdent:
		return p.parseFieldOrCall()
	}
	return nil, newParseError(p.cur, "unexpected token %q in expression", p.cur.Text)
}

func (p *parser) parseCallExpr() (expr.Expr, error) {
	fnTok, err := p.expect(TokIdent, "function name")
	if err != nil {
		return nil, err
	}
	args, err := p.parseCallArgs()
	if err != nil {
		return nil, err
	}
	return expr.Call{Function: fnTok.Text, Args: args}, nil
}

func (p *parser) parseFieldOrCall() (expr.Expr, error) {
	first, err := p.expect(TokIdent, "identifier")
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokLParen {
		args, err := p.parseCallArgs()
		if err != nil {
			return nil, err
		}
		return expr.Call{Function: first.Text, Args: args}, nil
	}
	path := first.Text
	for p.cur.Kind == TokDot {
		p.advance()
		seg, err := p.expect(TokIdent, "identifier after '.'")
		if err != nil {
			return nil, err
		}
		path += "." + seg.Text
	}
	return expr.Field{Path: path}, nil
}

func (p *parser) parseArrayLiteral() (expr.Expr, error) {
	p.advance() // '['
	var elems []value.Value
	for p.cur.Kind != TokRBracket {
		v, err := p.parseLiteralValue()
		if err != nil {
			return nil, err
		}
		elems = append(elems, v)
		if p.cur.Kind == TokComma {
			p.advance()
		} else {
			break
		}
	}
	if _, err := p.expect(TokRBracket, "']'"); err != nil {
		return nil, err
	}
	return expr.Literal{Value: value.Array(elems...)}, nil
}

// parseLiteralValue parses a constant value.Value: used wherever the
// grammar calls for a literal rather than a general expression (defglobal
// initializers, deftemplate defaults, deffacts field values, array
// elements) since those positions have no bindings environment to evaluate
// a general expr.Expr against.
func (p *parser) parseLiteralValue() (value.Value, error) {
	switch p.cur.Kind {
	case TokInt:
		t := p.advance()
		n, err := strconv.ParseInt(t.Text, 10, 64)
		if err != nil {
			return value.Null(), newParseError(t, "invalid integer literal %q", t.Text)
		}
		return value.Int(n), nil
	case TokNumber:
		t := p.advance()
		n, err := strconv.ParseFloat(t.Text, 64)
		if err != nil {
			return value.Null(), newParseError(t, "invalid number literal %q", t.Text)
		}
		return value.Number(n), nil
	case TokString:
		t := p.advance()
		return value.String(t.Text), nil
	case TokTrue:
		p.advance()
		return value.Bool(true), nil
	case TokFalse:
		p.advance()
		return value.Bool(false), nil
	case TokNull:
		p.advance()
		return value.Null(), nil
	case TokLBracket:
		e, err := p.parseArrayLiteral()
		if err != nil {
			return value.Null(), err
		}
		return e.(expr.Literal).Value, nil
	default:
		return value.Null(), newParseError(p.cur, "expected a literal value, got %q", p.cur.Text)
	}
}
