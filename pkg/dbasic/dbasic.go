package dbasic

import "github.com/dbasic-lang/dbc/pkg/utils"

// ----------------------------------------------------------------------------
// General information

// This section contains some general information about the DBASIC programming language.
//
// A program is a flat sequence of function definitions and global variable definitions,
// execution starts at the mandatory 'main' function. The language is statement-per-line
// (a newline terminates a statement), blocks are closed by 'END' and every function body
// must end with a 'RETURN'. There are two value types, INT and BOOL, plus string
// constants that may only ever be handed to 'print' or to an extern function.
//
// The same tree is threaded through the whole pipeline: the parser builds it, the
// resolver and the type checker annotate it in place (scope tables, interned string
// constants, expression types) and the code generators only ever read it.

// Shared interface for every node of the tree. Each node remembers the source
// line it was parsed from so that the semantic passes can point at it in errors.
type Node interface{ Pos() int }

// Marker interface for nodes that produce a value (Binary, Unary, Var, Const, Str, Call).
type Expression interface {
	Node
	exprNode()
}

// Marker interface for nodes that perform a side effect. A Call implements both
// Expression and Statement since it is allowed in either position.
type Statement interface {
	Node
	stmtNode()
}

// ----------------------------------------------------------------------------
// Data types

// The type of a value in a DBASIC program. Expressions are tagged with their
// DataType by the type checker, Void marks statements and calls with no result.
type DataType string

const (
	Int      DataType = "INT"
	Bool     DataType = "BOOL"
	ConstStr DataType = "CONSTSTR" // The type of string literals, only valid as 'print'/extern argument
	Void     DataType = ""         // The absence of a value (a call to a void function)
)

// ----------------------------------------------------------------------------
// Program

// The root node of the whole program, a container of function and global definitions.
//
// The Constants, GlobalVars and GlobalVarTypes tables are not populated by the parser
// but later by the Resolver. Constants and GlobalVars are ordered because the assembly
// generator iterates them to lay out the data section and the layout has to be
// reproducible, GlobalVarTypes is only ever looked up and is a plain map.
type Program struct {
	FuncDefs   []*FuncDef   // Every function definition, in declaration order
	GlobalDefs []*GlobalDef // Every global variable definition, in declaration order

	Constants      *utils.OrderedMap[string, string] // String literal -> interned label (e.g. '.Lstr0')
	GlobalVars     *utils.OrderedMap[string, string] // Global name -> initial value literal
	GlobalVarTypes map[string]DataType               // Global name -> declared type
}

func (n *Program) Pos() int { return 0 }

// ----------------------------------------------------------------------------
// Definitions

// The definition of a function: a name, a typed parameter list and a body.
//
// LocalVars and LocalVarTypes are filled in by the Resolver. LocalVars holds every
// local of the function (parameters included) in declaration order, which is also
// the order the assembly generator assigns stack slots in.
type FuncDef struct {
	Line       int
	Name       string      // Name/id, unique across the whole program
	Args       []string    // Parameter names, in declaration order
	ArgTypes   []DataType  // Parameter types, parallel to Args
	ReturnType DataType    // Declared return type, Void for none
	Statements []Statement // The function body, the last statement must be a Return

	LocalVars     *utils.OrderedMap[string, Expression] // Local name -> initializer expression
	LocalVarTypes map[string]DataType                   // Local name -> declared type
}

func (n *FuncDef) Pos() int { return n.Line }

// The definition of a global variable. After the semantic passes the
// initializer is known to be a plain integer Const.
type GlobalDef struct {
	Line  int
	Name  string
	Value Expression
	Type  DataType
}

func (n *GlobalDef) Pos() int { return n.Line }

// ----------------------------------------------------------------------------
// Statements

// The definition of a variable local to a function (e.g. 'INT x = 5').
type LocalDef struct {
	Line  int
	Name  string
	Value Expression
	Type  DataType
}

func (n *LocalDef) Pos() int  { return n.Line }
func (n *LocalDef) stmtNode() {}

// A value is assigned to an already declared variable.
type Assign struct {
	Line  int
	Name  string
	Value Expression
}

func (n *Assign) Pos() int  { return n.Line }
func (n *Assign) stmtNode() {}

// A conditional statement, the else branch is optional (nil when absent).
type If struct {
	Line           int
	Exp            Expression
	Statements     []Statement
	ElseStatements []Statement
}

func (n *If) Pos() int  { return n.Line }
func (n *If) stmtNode() {}

// A loop that executes its block for as long as the condition holds.
type While struct {
	Line       int
	Exp        Expression
	Statements []Statement
}

func (n *While) Pos() int  { return n.Line }
func (n *While) stmtNode() {}

// Returns from the enclosing function, the expression is optional (nil when
// the enclosing function is void).
type Return struct {
	Line       int
	Expression Expression
}

func (n *Return) Pos() int  { return n.Line }
func (n *Return) stmtNode() {}

// ----------------------------------------------------------------------------
// Expressions

// A function call, allowed both inside expressions and as a standalone statement.
// IsStatement is set by the parser when the call appears in statement position.
// The code generators do not read it, the C generator appends the ';' to every
// call it reaches through its statement dispatch.
type Call struct {
	Line        int
	Name        string
	Args        []Expression
	IsStatement bool
	Type        DataType // Filled by the type checker, the callee's return type
}

func (n *Call) Pos() int  { return n.Line }
func (n *Call) exprNode() {}
func (n *Call) stmtNode() {}

// A binary operation combining the value of two sub-expressions.
type Binary struct {
	Line int
	Op   string // The operator symbol as written in the source ('+', '==', '&', ...)
	Val1 Expression
	Val2 Expression
	Type DataType // Filled by the type checker
}

func (n *Binary) Pos() int  { return n.Line }
func (n *Binary) exprNode() {}

// A unary operation, the only one in the language is arithmetic negation.
type Unary struct {
	Line int
	Op   string // Always '-'
	Val  Expression
	Type DataType // Filled by the type checker
}

func (n *Unary) Pos() int  { return n.Line }
func (n *Unary) exprNode() {}

// A variable is referenced (something wants to read its value).
type Var struct {
	Line int
	Name string
	Type DataType // Filled by the type checker from the scope tables
}

func (n *Var) Pos() int  { return n.Line }
func (n *Var) exprNode() {}

// An integer or boolean constant. The parser already knows the type: TRUE and
// FALSE produce a Bool Const with value "1" resp. "0", digits produce an Int.
type Const struct {
	Line  int
	Value string
	Type  DataType
}

func (n *Const) Pos() int  { return n.Line }
func (n *Const) exprNode() {}

// A string constant. The Resolver interns the value into Program.Constants and
// the type checker tags it CONSTSTR.
type Str struct {
	Line  int
	Value string
	Type  DataType
}

func (n *Str) Pos() int  { return n.Line }
func (n *Str) exprNode() {}
