package dbasic

import (
	"regexp"
	"strings"
)

// ----------------------------------------------------------------------------
// Tokens

// The kind of a token. Keywords and symbols use their own spelling as kind
// ('IF', '==', ...), the open categories use the constants below.
type TokenKind string

const (
	Identifier TokenKind = "ID"    // A variable or function name
	Constant   TokenKind = "CONST" // An integer literal or the words TRUE/FALSE
	StringLit  TokenKind = "STR"   // A string literal, quotes already stripped
	TypeName   TokenKind = "TYPE"  // A type keyword, the Value field holds which one
	Newline    TokenKind = "NL"    // A line break, consecutive ones are coalesced
)

// A single token produced by the Tokenizer. Value is only meaningful for the
// open categories (Identifier, Constant, StringLit, TypeName), Line is where
// the token starts and is carried through to every diagnostic down the line.
type Token struct {
	Kind  TokenKind
	Value string
	Line  int
}

func (t Token) String() string {
	if t.Value != "" {
		return string(t.Kind) + ":" + t.Value
	}
	return string(t.Kind)
}

// ----------------------------------------------------------------------------
// Token tables

// The matching tables of the tokenizer, tried in this order: keywords, symbols,
// type keywords, constants, identifiers, strings. None of the word-like rules
// checks word boundaries, the table order alone keeps keywords from being
// swallowed by the identifier rule. Within the symbols the multi-character ones
// must come before their single-character prefixes ('>=' before '>', and so on).
var (
	keywords = []string{"IF", "THEN", "ELSE", "END", "WHILE", "DO", "RETURN", "FUNC", "GLOBAL"}
	symbols  = []string{">=", "<=", "!=", "==", "=", ">", "<", "+", "-", "*", "/", "&", "|", ",", "(", ")"}
	typekws  = []string{"INT", "BOOL"}

	identRegex  = regexp.MustCompile(`^[a-zA-Z]+`)
	numberRegex = regexp.MustCompile(`^[0-9]+`)
	stringRegex = regexp.MustCompile(`(?s)^"([^"]*)"`)
)

// ----------------------------------------------------------------------------
// Tokenizer

// Turns a full source string into a randomly addressable sequence of tokens.
//
// The scan is a single greedy left-to-right pass: at every position the first
// table rule that matches wins and the matched text is consumed. There is no
// lookahead beyond the current character class. The parser then navigates the
// token slice through Peek/Next.
type Tokenizer struct {
	input  string
	tokens []Token
	pos    int
}

// Initializes and returns to the caller a brand new 'Tokenizer' struct.
func NewTokenizer(input string) *Tokenizer {
	return &Tokenizer{input: input}
}

// Scans the whole input and buffers the token sequence.
//
// Newlines are significant (they terminate statements) so they are emitted as
// tokens, but runs of blank lines collapse into a single NL. A final NL is
// always appended so the last statement of a file does not need to be
// newline-terminated by the programmer.
func (t *Tokenizer) Tokenize() error {
	line := 1
	text := t.input

	for len(text) > 0 {
		matched := false

		for _, word := range keywords {
			if strings.HasPrefix(text, word) {
				t.tokens = append(t.tokens, Token{Kind: TokenKind(word), Line: line})
				text = text[len(word):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		for _, symbol := range symbols {
			if strings.HasPrefix(text, symbol) {
				t.tokens = append(t.tokens, Token{Kind: TokenKind(symbol), Line: line})
				text = text[len(symbol):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		for _, typekw := range typekws {
			if strings.HasPrefix(text, typekw) {
				t.tokens = append(t.tokens, Token{Kind: TypeName, Value: typekw, Line: line})
				text = text[len(typekw):]
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		// TRUE and FALSE are boolean constants but share the CONST kind with
		// the integer literals, the parser tells them apart by their lexeme.
		if strings.HasPrefix(text, "TRUE") {
			t.tokens = append(t.tokens, Token{Kind: Constant, Value: "TRUE", Line: line})
			text = text[len("TRUE"):]
			continue
		}
		if strings.HasPrefix(text, "FALSE") {
			t.tokens = append(t.tokens, Token{Kind: Constant, Value: "FALSE", Line: line})
			text = text[len("FALSE"):]
			continue
		}

		if match := numberRegex.FindString(text); match != "" {
			t.tokens = append(t.tokens, Token{Kind: Constant, Value: match, Line: line})
			text = text[len(match):]
			continue
		}

		if match := identRegex.FindString(text); match != "" {
			t.tokens = append(t.tokens, Token{Kind: Identifier, Value: match, Line: line})
			text = text[len(match):]
			continue
		}

		// The outer match keeps the quotes, the inner submatch is the content.
		// A string may span lines, the line counter has to keep up with it.
		if match := stringRegex.FindStringSubmatch(text); match != nil {
			t.tokens = append(t.tokens, Token{Kind: StringLit, Value: match[1], Line: line})
			line += strings.Count(match[0], "\n")
			text = text[len(match[0]):]
			continue
		}

		if text[0] == '\n' {
			if len(t.tokens) == 0 || t.tokens[len(t.tokens)-1].Kind != Newline {
				t.tokens = append(t.tokens, Token{Kind: Newline, Line: line})
			}
			text = text[1:]
			line++
			continue
		}

		if text[0] == ' ' || text[0] == '\t' {
			text = text[1:]
			continue
		}

		// If we reach this point nothing matched
		prefix := text
		if len(prefix) > 20 {
			prefix = prefix[:20]
		}
		return &LexicalError{Line: line, Prefix: prefix}
	}

	t.tokens = append(t.tokens, Token{Kind: Newline, Line: line})
	return nil
}

// Returns the token 'ahead' positions past the cursor without advancing it,
// or nil when that position is past the end of the input.
func (t *Tokenizer) Peek(ahead int) *Token {
	if t.pos+ahead < len(t.tokens) {
		return &t.tokens[t.pos+ahead]
	}
	return nil
}

// Returns the token under the cursor and advances past it, nil at end of input.
func (t *Tokenizer) Next() *Token {
	token := t.Peek(0)
	if token != nil {
		t.pos++
	}
	return token
}
