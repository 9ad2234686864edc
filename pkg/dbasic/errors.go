package dbasic

import "fmt"

// ----------------------------------------------------------------------------
// Error types

// This section defines the three error categories of the compiler front-end.
//
// All of them are fatal on first occurrence: the pipeline stops at the first failing
// stage and the driver prints the message and exits. Every error carries the source
// line it originates from, either the position the tokenizer was at or the line
// recorded on the offending tree node.

// Reported by the Tokenizer when no token rule matches the input.
type LexicalError struct {
	Line   int
	Prefix string // The start of the unmatched input, to give the user a pointer
}

func (e *LexicalError) Error() string {
	return fmt.Sprintf("lexical error at line %d: unknown token: %s", e.Line, e.Prefix)
}

// Reported by the Parser on an unexpected token or a premature end of input.
type ParseError struct {
	Line  int
	Msg   string
	Found string // The offending token, "" when the input just ended
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("parser error at line %d: %s", e.Line, e.Msg)
	if e.Found != "" {
		msg += fmt.Sprintf(" (found: %s)", e.Found)
	}
	return msg
}

// Reported by the Resolver and the TypeChecker for scope and typing violations.
type SemanticError struct {
	Line int
	Msg  string
}

func (e *SemanticError) Error() string {
	return fmt.Sprintf("semantic error at line %d: %s", e.Line, e.Msg)
}

// Shorthand used by the semantic passes to flag a violation on a specific node.
func semanticErrorf(node Node, format string, args ...any) *SemanticError {
	return &SemanticError{Line: node.Pos(), Msg: fmt.Sprintf(format, args...)}
}
