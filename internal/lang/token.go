package lang

import "fmt"

// TokenKind tags a lexical token produced by the RL lexer.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokVariable
	TokString
	TokInt
	TokNumber

	// punctuation
	TokLBrace
	TokRBrace
	TokLParen
	TokRParen
	TokLBracket
	TokRBracket
	TokComma
	TokSemi
	TokColon
	TokDot
	TokArrow // ->

	// operators
	TokEq     // =
	TokEqEq   // ==
	TokNeq    // !=
	TokLt     // <
	TokLte    // <=
	TokGt     // >
	TokGte    // >=
	TokPlus   // +
	TokMinus  // -
	TokStar   // *
	TokSlash  // /
	TokPct    // %
	TokAndAnd // &&
	TokOrOr   // ||

	// keywords
	TokRule
	TokWhen
	TokThen
	TokDefmodule
	TokDeftemplate
	TokDefglobal
	TokDeffacts
	TokQuery
	TokExists
	TokNot
	TokForall
	TokTest
	TokAccumulate
	TokContains
	TokIn
	TokMatches
	TokStartsWith
	TokEndsWith
	TokSalience
	TokNoLoop
	TokLockOnActive
	TokAgendaGroup
	TokActivationGroup
	TokRuleflowGroup
	TokAutoFocus
	TokExport
	TokImport
	TokRequired
	TokDefault
	TokReadonly
	TokTrue
	TokFalse
	TokNull
	TokSet
	TokAssert
	TokRetract
	TokCall
	TokLog
	TokAgenda
	TokGoal
	TokOnSuccess
)

var keywords = map[string]TokenKind{
	"rule":            TokRule,
	"when":            TokWhen,
	"then":            TokThen,
	"defmodule":       TokDefmodule,
	"deftemplate":     TokDeftemplate,
	"defglobal":       TokDefglobal,
	"deffacts":        TokDeffacts,
	"query":           TokQuery,
	"exists":          TokExists,
	"not":             TokNot,
	"forall":          TokForall,
	"test":            TokTest,
	"accumulate":      TokAccumulate,
	"contains":        TokContains,
	"in":              TokIn,
	"matches":         TokMatches,
	"startsWith":      TokStartsWith,
	"endsWith":        TokEndsWith,
	"salience":        TokSalience,
	"no-loop":         TokNoLoop,
	"lock-on-active":  TokLockOnActive,
	"agenda-group":    TokAgendaGroup,
	"activation-group": TokActivationGroup,
	"ruleflow-group":  TokRuleflowGroup,
	"auto-focus":      TokAutoFocus,
	"export":          TokExport,
	"import":          TokImport,
	"required":        TokRequired,
	"default":         TokDefault,
	"readonly":        TokReadonly,
	"true":            TokTrue,
	"false":           TokFalse,
	"null":            TokNull,
	"set":             TokSet,
	"assert":          TokAssert,
	"retract":         TokRetract,
	"call":            TokCall,
	"log":             TokLog,
	"agenda":          TokAgenda,
	"goal":            TokGoal,
	"on-success":      TokOnSuccess,
}

// hyphenPrefixes are bare words that may continue into one of the
// hyphenated metadata keywords (no-loop, lock-on-active, agenda-group,
// activation-group, ruleflow-group, auto-focus, on-success); the lexer
// greedily extends an identifier starting with one of these through any
// following "-word" segments.
var hyphenPrefixes = map[string]bool{
	"no": true, "lock": true, "agenda": true, "activation": true,
	"ruleflow": true, "auto": true, "on": true,
}

// Token is one lexical unit with its source position (1-based line/column,
// the column of its first rune) for ParseError reporting.
type Token struct {
	Kind   TokenKind
	Text   string // raw/decoded text: identifier name, decoded string, numeric text
	Line   int
	Column int
}

func (t Token) String() string {
	return fmt.Sprintf("%v(%q)@%d:%d", t.Kind, t.Text, t.Line, t.Column)
}
