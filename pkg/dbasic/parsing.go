package dbasic

import (
	"fmt"
	"os"
	"reflect"
)

// ----------------------------------------------------------------------------
// DBASIC Parser

// This section defines the Parser for the DBASIC language.
//
// It is a hand-written recursive descent parser with one function per grammar rule
// and explicit precedence levels for expressions. Each parse function either consumes
// a prefix of the token stream and returns a node, or returns nil without consuming
// anything so the caller can try the next alternative. Once a function has committed
// (e.g. after seeing 'IF') any further mismatch is a hard ParseError carrying the
// offending line, there is no recovery past the first error.
//
// Assignments and calls both start with an identifier, two tokens of lookahead
// ('x =' vs 'x (') disambiguate them.
//
// The parser can log every rule invocation and its outcome, the feature is enabled
// either explicitly (the driver's --debug flag) or through the DBC_TRACE env var.
// Trace lines start with '//' so a trace interleaved into generated assembly output
// still assembles.
type Parser struct {
	tokens *Tokenizer
	trace  bool
}

// Initializes and returns to the caller a brand new 'Parser' struct.
// Requires the argument Tokenizer 't' to be already tokenized.
func NewParser(t *Tokenizer) *Parser {
	return &Parser{tokens: t, trace: os.Getenv("DBC_TRACE") != ""}
}

// Toggles the rule-by-rule trace output on the stdout.
func (p *Parser) SetTrace(enabled bool) { p.trace = enabled }

// The comparison operators of the 'logic' precedence level.
var comparisons = map[TokenKind]bool{
	"==": true, "!=": true, ">=": true, "<=": true, ">": true, "<": true,
}

// ----------------------------------------------------------------------------
// Trace helpers

func (p *Parser) enter(rule string) {
	if !p.trace {
		return
	}
	if tok := p.tokens.Peek(0); tok != nil {
		fmt.Printf("//Calling %s with token %s\n", rule, tok)
	} else {
		fmt.Printf("//Calling %s at end of input\n", rule)
	}
}

func (p *Parser) exit(rule string, node Node) {
	if !p.trace {
		return
	}
	// Failed rules hand back nil through typed pointers, unwrap those too
	if node == nil || reflect.ValueOf(node).IsNil() {
		fmt.Printf("//%s returned nothing\n", rule)
	} else {
		fmt.Printf("//%s returned %T\n", rule, node)
	}
}

// ----------------------------------------------------------------------------
// Token helpers

// Consumes the next token and checks it is of the wanted kind. A mismatch (or
// running out of input) is always a committed hard error.
func (p *Parser) expect(kind TokenKind, msg string) (*Token, error) {
	tok := p.tokens.Next()
	if tok == nil {
		return nil, &ParseError{Line: p.lastLine(), Msg: msg + ", got end of input"}
	}
	if tok.Kind != kind {
		return nil, &ParseError{Line: tok.Line, Msg: msg, Found: tok.String()}
	}
	return tok, nil
}

// Best-effort line number for "input ended too early" errors.
func (p *Parser) lastLine() int {
	if len(p.tokens.tokens) == 0 {
		return 1
	}
	return p.tokens.tokens[len(p.tokens.tokens)-1].Line
}

// ----------------------------------------------------------------------------
// Top-level rules

// Parser entrypoint: program := ( funcdef | globaldef )* EOF
func (p *Parser) Parse() (*Program, error) {
	program := &Program{}

	for {
		tok := p.tokens.Peek(0)
		if tok == nil {
			break
		}

		// Blank lines between (and before) top-level definitions are fine.
		if tok.Kind == Newline {
			p.tokens.Next()
			continue
		}

		switch tok.Kind {
		case "FUNC":
			funcdef, err := p.parseFuncDef()
			if err != nil {
				return nil, err
			}
			program.FuncDefs = append(program.FuncDefs, funcdef)

		case "GLOBAL":
			globaldef, err := p.parseGlobalDef()
			if err != nil {
				return nil, err
			}
			program.GlobalDefs = append(program.GlobalDefs, globaldef)

		default:
			return nil, &ParseError{Line: tok.Line, Msg: "Expected function or global variable definition", Found: tok.String()}
		}
	}

	return program, nil
}

// funcdef := 'FUNC' ID '(' param_list? ')' TYPE? NL block 'END' NL
func (p *Parser) parseFuncDef() (node *FuncDef, err error) {
	p.enter("funcdef")
	defer func() { p.exit("funcdef", node) }()

	tok := p.tokens.Next() // The caller already peeked the FUNC keyword

	name, err := p.expect(Identifier, "Missing function name after FUNC")
	if err != nil {
		return nil, err
	}
	if _, err = p.expect("(", "Missing '(' after function name"); err != nil {
		return nil, err
	}

	funcdef := &FuncDef{Line: tok.Line, Name: name.Value}

	// param_list := TYPE ID ( ',' TYPE ID )*
	if next := p.tokens.Peek(0); next != nil && next.Kind == TypeName {
		for {
			argtype := p.tokens.Next()
			argname, err := p.expect(Identifier, "Missing parameter name after type")
			if err != nil {
				return nil, err
			}
			funcdef.Args = append(funcdef.Args, argname.Value)
			funcdef.ArgTypes = append(funcdef.ArgTypes, DataType(argtype.Value))

			if next := p.tokens.Peek(0); next == nil || next.Kind != "," {
				break
			}
			p.tokens.Next()
			if next := p.tokens.Peek(0); next == nil || next.Kind != TypeName {
				return nil, &ParseError{Line: tok.Line, Msg: "Missing parameter type after ','"}
			}
		}
	}

	if _, err = p.expect(")", "Missing ')' after parameter list"); err != nil {
		return nil, err
	}

	if next := p.tokens.Peek(0); next != nil && next.Kind == TypeName {
		p.tokens.Next()
		funcdef.ReturnType = DataType(next.Value)
	}

	if _, err = p.expect(Newline, "Expected newline after function header"); err != nil {
		return nil, err
	}

	if funcdef.Statements, err = p.parseBlock(); err != nil {
		return nil, err
	}

	if _, err = p.expect("END", "Missing END of FUNC-block"); err != nil {
		return nil, err
	}
	if _, err = p.expect(Newline, "Expected newline after END"); err != nil {
		return nil, err
	}

	return funcdef, nil
}

// globaldef := 'GLOBAL' localdef NL
func (p *Parser) parseGlobalDef() (node *GlobalDef, err error) {
	p.enter("globaldef")
	defer func() { p.exit("globaldef", node) }()

	tok := p.tokens.Next() // The caller already peeked the GLOBAL keyword

	localdef, err := p.parseLocalDef()
	if err != nil {
		return nil, err
	}
	if localdef == nil {
		return nil, &ParseError{Line: tok.Line, Msg: "Expected variable definition after GLOBAL"}
	}
	if _, err = p.expect(Newline, "Expected newline after global variable definition"); err != nil {
		return nil, err
	}

	return &GlobalDef{Line: tok.Line, Name: localdef.Name, Value: localdef.Value, Type: localdef.Type}, nil
}

// ----------------------------------------------------------------------------
// Statement rules

// block := statement*
func (p *Parser) parseBlock() ([]Statement, error) {
	statements := []Statement{}
	for {
		statement, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		if statement == nil {
			return statements, nil
		}
		statements = append(statements, statement)
	}
}

// statement := ( if | assign | while | return | call | localdef ) NL
func (p *Parser) parseStatement() (node Statement, err error) {
	p.enter("statement")
	defer func() { p.exit("statement", node) }()

	tok := p.tokens.Peek(0)
	if tok == nil {
		return nil, nil
	}

	var statement Statement
	switch {
	case tok.Kind == "IF":
		statement, err = p.parseIf()
	case tok.Kind == "WHILE":
		statement, err = p.parseWhile()
	case tok.Kind == "RETURN":
		statement, err = p.parseReturn()
	case tok.Kind == TypeName:
		statement, err = p.parseLocalDef()
	// Both assignments and calls start with an identifier, the token after
	// it decides which one we are looking at.
	case tok.Kind == Identifier && p.peekIs(1, "="):
		statement, err = p.parseAssign()
	case tok.Kind == Identifier && p.peekIs(1, "("):
		var call *Call
		if call, err = p.parseCall(); call != nil {
			call.IsStatement = true
			statement = call
		}
	default:
		return nil, nil
	}

	if err != nil {
		return nil, err
	}
	if _, err = p.expect(Newline, "Missing newline after statement"); err != nil {
		return nil, err
	}
	return statement, nil
}

func (p *Parser) peekIs(ahead int, kind TokenKind) bool {
	tok := p.tokens.Peek(ahead)
	return tok != nil && tok.Kind == kind
}

// if := 'IF' expression 'THEN' NL block ( 'ELSE' NL block )? 'END'
func (p *Parser) parseIf() (node Statement, err error) {
	p.enter("ifstatement")
	defer func() { p.exit("ifstatement", node) }()

	tok := p.tokens.Next()

	exp, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, &ParseError{Line: tok.Line, Msg: "No expression after IF"}
	}

	if _, err = p.expect("THEN", "Missing THEN after IF"); err != nil {
		return nil, err
	}
	if _, err = p.expect(Newline, "Expected newline after THEN"); err != nil {
		return nil, err
	}

	statements, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var elsestatements []Statement
	if p.peekIs(0, "ELSE") {
		p.tokens.Next()
		if _, err = p.expect(Newline, "Expected newline after ELSE"); err != nil {
			return nil, err
		}
		if elsestatements, err = p.parseBlock(); err != nil {
			return nil, err
		}
	}

	if _, err = p.expect("END", "Missing END of IF-block"); err != nil {
		return nil, err
	}

	return &If{Line: tok.Line, Exp: exp, Statements: statements, ElseStatements: elsestatements}, nil
}

// while := 'WHILE' expression 'DO' NL block 'END'
func (p *Parser) parseWhile() (node Statement, err error) {
	p.enter("whilestatement")
	defer func() { p.exit("whilestatement", node) }()

	tok := p.tokens.Next()

	exp, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if exp == nil {
		return nil, &ParseError{Line: tok.Line, Msg: "No expression after WHILE"}
	}

	if _, err = p.expect("DO", "Missing DO after WHILE"); err != nil {
		return nil, err
	}
	if _, err = p.expect(Newline, "Expected newline after DO"); err != nil {
		return nil, err
	}

	statements, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	if _, err = p.expect("END", "Missing END of WHILE-block"); err != nil {
		return nil, err
	}

	return &While{Line: tok.Line, Exp: exp, Statements: statements}, nil
}

// return := 'RETURN' expression?
func (p *Parser) parseReturn() (node Statement, err error) {
	p.enter("returnstatement")
	defer func() { p.exit("returnstatement", node) }()

	tok := p.tokens.Next()

	// The expression is optional (void functions return nothing), parseExpression
	// backs off without consuming anything when no expression starts here.
	exp, err := p.parseExpression()
	if err != nil {
		return nil, err
	}

	return &Return{Line: tok.Line, Expression: exp}, nil
}

// assign := ID '=' expression
func (p *Parser) parseAssign() (node Statement, err error) {
	p.enter("assignstatement")
	defer func() { p.exit("assignstatement", node) }()

	name := p.tokens.Next()
	p.tokens.Next() // The '=', already checked by the caller's lookahead

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, &ParseError{Line: name.Line, Msg: "No expression after '='"}
	}

	return &Assign{Line: name.Line, Name: name.Value, Value: value}, nil
}

// localdef := TYPE ID '=' expression
func (p *Parser) parseLocalDef() (node *LocalDef, err error) {
	p.enter("localdef")
	defer func() { p.exit("localdef", node) }()

	tok := p.tokens.Peek(0)
	if tok == nil || tok.Kind != TypeName {
		return nil, nil
	}
	p.tokens.Next()

	name, err := p.expect(Identifier, "Missing variable name after type")
	if err != nil {
		return nil, err
	}
	if _, err = p.expect("=", "Missing '=' in variable definition"); err != nil {
		return nil, err
	}

	value, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, &ParseError{Line: name.Line, Msg: "No expression in variable definition"}
	}

	return &LocalDef{Line: tok.Line, Name: name.Value, Value: value, Type: DataType(tok.Value)}, nil
}

// ----------------------------------------------------------------------------
// Expression rules

// The precedence ladder, lowest binding first. Every level is left-associative
// and built by folding the operand list into left-leaning Binary nodes.

// expression := logic ( ('|' | '&') logic )*
func (p *Parser) parseExpression() (node Expression, err error) {
	p.enter("expression")
	defer func() { p.exit("expression", node) }()

	root, err := p.parseLogic()
	if root == nil || err != nil {
		return nil, err
	}

	for p.peekIs(0, "|") || p.peekIs(0, "&") {
		op := p.tokens.Next()
		rhs, err := p.parseLogic()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, &ParseError{Line: op.Line, Msg: fmt.Sprintf("Missing right operand for '%s'", op.Kind)}
		}
		root = &Binary{Line: op.Line, Op: string(op.Kind), Val1: root, Val2: rhs}
	}
	return root, nil
}

// logic := sum ( cmp sum )?
//
// A single optional comparison, comparisons do not chain: 'a < b < c' stops
// parsing after 'a < b' and the dangling '< c' trips the caller instead.
func (p *Parser) parseLogic() (node Expression, err error) {
	p.enter("logicexpression")
	defer func() { p.exit("logicexpression", node) }()

	lhs, err := p.parseSum()
	if lhs == nil || err != nil {
		return nil, err
	}

	op := p.tokens.Peek(0)
	if op == nil || !comparisons[op.Kind] {
		return lhs, nil
	}
	p.tokens.Next()

	rhs, err := p.parseSum()
	if err != nil {
		return nil, err
	}
	if rhs == nil {
		return nil, &ParseError{Line: op.Line, Msg: fmt.Sprintf("Missing right operand for '%s'", op.Kind)}
	}
	return &Binary{Line: op.Line, Op: string(op.Kind), Val1: lhs, Val2: rhs}, nil
}

// sum := [ '-' term ] term ( ('+' | '-') term )*
func (p *Parser) parseSum() (node Expression, err error) {
	p.enter("sumexpression")
	defer func() { p.exit("sumexpression", node) }()

	var root Expression
	if tok := p.tokens.Peek(0); tok != nil && tok.Kind == "-" {
		p.tokens.Next()
		operand, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if operand == nil {
			return nil, &ParseError{Line: tok.Line, Msg: "Missing operand for unary '-'"}
		}
		root = &Unary{Line: tok.Line, Op: "-", Val: operand}
	} else {
		if root, err = p.parseTerm(); root == nil || err != nil {
			return nil, err
		}
	}

	for p.peekIs(0, "+") || p.peekIs(0, "-") {
		op := p.tokens.Next()
		rhs, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, &ParseError{Line: op.Line, Msg: fmt.Sprintf("Missing right operand for '%s'", op.Kind)}
		}
		root = &Binary{Line: op.Line, Op: string(op.Kind), Val1: root, Val2: rhs}
	}
	return root, nil
}

// term := factor ( ('*' | '/') factor )*
func (p *Parser) parseTerm() (node Expression, err error) {
	p.enter("term")
	defer func() { p.exit("term", node) }()

	root, err := p.parseFactor()
	if root == nil || err != nil {
		return nil, err
	}

	for p.peekIs(0, "*") || p.peekIs(0, "/") {
		op := p.tokens.Next()
		rhs, err := p.parseFactor()
		if err != nil {
			return nil, err
		}
		if rhs == nil {
			return nil, &ParseError{Line: op.Line, Msg: fmt.Sprintf("Missing right operand for '%s'", op.Kind)}
		}
		root = &Binary{Line: op.Line, Op: string(op.Kind), Val1: root, Val2: rhs}
	}
	return root, nil
}

// factor := call | CONST | '(' expression ')' | ID
func (p *Parser) parseFactor() (node Expression, err error) {
	p.enter("factor")
	defer func() { p.exit("factor", node) }()

	tok := p.tokens.Peek(0)
	if tok == nil {
		return nil, nil
	}

	switch {
	case tok.Kind == Identifier && p.peekIs(1, "("):
		call, err := p.parseCall()
		if call == nil || err != nil {
			return nil, err
		}
		return call, nil

	case tok.Kind == Identifier:
		p.tokens.Next()
		return &Var{Line: tok.Line, Name: tok.Value}, nil

	case tok.Kind == Constant:
		p.tokens.Next()
		switch tok.Value {
		case "TRUE":
			return &Const{Line: tok.Line, Value: "1", Type: Bool}, nil
		case "FALSE":
			return &Const{Line: tok.Line, Value: "0", Type: Bool}, nil
		default:
			return &Const{Line: tok.Line, Value: tok.Value, Type: Int}, nil
		}

	case tok.Kind == "(":
		p.tokens.Next()
		exp, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if exp == nil {
			return nil, &ParseError{Line: tok.Line, Msg: "Expected expression after '('"}
		}
		if _, err = p.expect(")", "Missing ')'"); err != nil {
			return nil, err
		}
		return exp, nil
	}

	return nil, nil
}

// call := ID '(' exprlist? ')'
func (p *Parser) parseCall() (node *Call, err error) {
	p.enter("call")
	defer func() { p.exit("call", node) }()

	name := p.tokens.Next()
	p.tokens.Next() // The '(', already checked by the caller's lookahead

	call := &Call{Line: name.Line, Name: name.Value}

	if !p.peekIs(0, ")") {
		if call.Args, err = p.parseExprList(); err != nil {
			return nil, err
		}
		if call.Args == nil {
			return nil, &ParseError{Line: name.Line, Msg: "Malformed argument list in function call"}
		}
	}

	if _, err = p.expect(")", "Missing ')' after function call arguments"); err != nil {
		return nil, err
	}
	return call, nil
}

// exprlist := ( STR | expression ) ( ',' ( STR | expression ) )*
func (p *Parser) parseExprList() ([]Expression, error) {
	list := []Expression{}

	elem, err := p.parseListElement()
	if elem == nil || err != nil {
		return nil, err
	}
	list = append(list, elem)

	for p.peekIs(0, ",") {
		comma := p.tokens.Next()
		if elem, err = p.parseListElement(); err != nil {
			return nil, err
		}
		if elem == nil {
			return nil, &ParseError{Line: comma.Line, Msg: "Missing expression after ','"}
		}
		list = append(list, elem)
	}
	return list, nil
}

// String literals only ever appear inside argument lists, so this is the one
// place where STR is accepted alongside a full expression.
func (p *Parser) parseListElement() (Expression, error) {
	if tok := p.tokens.Peek(0); tok != nil && tok.Kind == StringLit {
		p.tokens.Next()
		return &Str{Line: tok.Line, Value: tok.Value, Type: ConstStr}, nil
	}
	return p.parseExpression()
}
