package lang

import "fmt"

// ParseError reports a lexical or syntactic failure at a specific source
// position (spec §4.3/§6). Parsing is fail-fast: the first ParseError
// encountered after an optional single synchronization attempt is returned.
type ParseError struct {
	Line    int
	Column  int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Message)
}

func newParseError(tok Token, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: tok.Line, Column: tok.Column, Message: fmt.Sprintf(format, args...)}
}
