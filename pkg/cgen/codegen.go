package cgen

import (
	"fmt"
	"strings"

	"github.com/dbasic-lang/dbc/pkg/dbasic"
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes a fully annotated 'dbasic.Program' and spits out a self-contained ISO C
// translation unit, one line per slice element.
//
// The translation is intentionally dumb: every binary expression is emitted
// fully parenthesized so the C compiler re-reads exactly the precedence the
// parser established, and both INT and BOOL map onto the C 'int'. The language
// built-ins are emitted as two small helper functions at the top of the unit,
// so the output compiles with any modern C compiler without a support library.
type CodeGenerator struct {
	program *dbasic.Program
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires the argument Program 'p' to be fully resolved and type-checked.
func NewCodeGenerator(p *dbasic.Program) *CodeGenerator {
	return &CodeGenerator{program: p}
}

// Translates the whole program: headers, the shared input buffer, the globals
// in declaration order, the two built-ins and then every user function.
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := []string{
		"#include <stdio.h>",
		"#include <string.h>",
		"#include <stdlib.h>",
		"#include <stdarg.h>",
		"char inputbuffer[60];",
	}

	cg.program.GlobalVars.Entries()(func(name, initial string) bool {
		lines = append(lines, fmt.Sprintf("int %s = %s;", name, initial))
		return true
	})

	lines = append(lines, cg.generateBuiltins()...)

	for _, funcdef := range cg.program.FuncDefs {
		generated, err := cg.HandleFuncDef(funcdef)
		if err != nil {
			return nil, fmt.Errorf("error generating code for function '%s': %w", funcdef.Name, err)
		}
		lines = append(lines, generated...)
	}

	return lines, nil
}

// The C renditions of the language built-ins. 'print' forwards its variadic
// arguments to 'vprintf' and flushes so interactive programs stay in sync,
// 'input' reads a line, strips the trailing newline and parses the integer.
func (cg *CodeGenerator) generateBuiltins() []string {
	return []string{
		"void print(const char *format, ...) {",
		"va_list args;",
		"va_start(args, format);",
		"vprintf(format, args);",
		"va_end(args);",
		"fflush(stdout);",
		"}",
		"int input(void) {",
		"fgets(inputbuffer, 60, stdin);",
		"if (inputbuffer[strlen(inputbuffer) - 1] == '\\n') {",
		"inputbuffer[strlen(inputbuffer) - 1] = '\\0';",
		"}",
		"return atoi(inputbuffer);",
		"}",
	}
}

// ----------------------------------------------------------------------------
// Functions

// Specialized function to emit one function definition. Both value types of
// the language are plain 'int' in C, and void functions are emitted as 'int'
// returning ones too, their missing return value is simply never looked at.
func (cg *CodeGenerator) HandleFuncDef(funcdef *dbasic.FuncDef) ([]string, error) {
	params := make([]string, 0, len(funcdef.Args))
	for _, arg := range funcdef.Args {
		params = append(params, "int "+arg)
	}

	lines := []string{fmt.Sprintf("int %s(%s) {", funcdef.Name, strings.Join(params, ", "))}

	for _, statement := range funcdef.Statements {
		generated, err := cg.HandleStatement(statement)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}

	return append(lines, "}"), nil
}

// ----------------------------------------------------------------------------
// Statements

// Generalized dispatch over every statement kind.
func (cg *CodeGenerator) HandleStatement(statement dbasic.Statement) ([]string, error) {
	switch st := statement.(type) {
	case *dbasic.LocalDef:
		value, err := cg.HandleExpression(st.Value)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("int %s = %s;", st.Name, value)}, nil

	case *dbasic.Assign:
		value, err := cg.HandleExpression(st.Value)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("%s = %s;", st.Name, value)}, nil

	case *dbasic.If:
		return cg.HandleIf(st)

	case *dbasic.While:
		condition, err := cg.HandleExpression(st.Exp)
		if err != nil {
			return nil, err
		}
		lines := []string{fmt.Sprintf("while (%s) {", condition)}
		for _, nested := range st.Statements {
			generated, err := cg.HandleStatement(nested)
			if err != nil {
				return nil, err
			}
			lines = append(lines, generated...)
		}
		return append(lines, "}"), nil

	case *dbasic.Return:
		if st.Expression == nil {
			return []string{"return;"}, nil
		}
		value, err := cg.HandleExpression(st.Expression)
		if err != nil {
			return nil, err
		}
		return []string{fmt.Sprintf("return %s;", value)}, nil

	case *dbasic.Call:
		// A bare call in statement position is the one place the emitted
		// expression needs its own terminating ';'
		value, err := cg.HandleExpression(st)
		if err != nil {
			return nil, err
		}
		return []string{value + ";"}, nil

	default:
		return nil, fmt.Errorf("cannot generate code for statement of kind %T", statement)
	}
}

// Specialized function to emit an 'If' statement with its optional else branch.
func (cg *CodeGenerator) HandleIf(ifstmt *dbasic.If) ([]string, error) {
	condition, err := cg.HandleExpression(ifstmt.Exp)
	if err != nil {
		return nil, err
	}

	lines := []string{fmt.Sprintf("if (%s) {", condition)}
	for _, nested := range ifstmt.Statements {
		generated, err := cg.HandleStatement(nested)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}

	if ifstmt.ElseStatements == nil {
		return append(lines, "}"), nil
	}

	lines = append(lines, "} else {")
	for _, nested := range ifstmt.ElseStatements {
		generated, err := cg.HandleStatement(nested)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}
	return append(lines, "}"), nil
}

// ----------------------------------------------------------------------------
// Expressions

// Generalized dispatch over every expression kind, returns the C rendition.
func (cg *CodeGenerator) HandleExpression(expression dbasic.Expression) (string, error) {
	switch exp := expression.(type) {
	case *dbasic.Const:
		return exp.Value, nil

	case *dbasic.Var:
		return exp.Name, nil

	case *dbasic.Str:
		// The literal goes out verbatim, escape sequences like '\n' reach the
		// C compiler untouched and are decoded there
		return "\"" + exp.Value + "\"", nil

	case *dbasic.Unary:
		value, err := cg.HandleExpression(exp.Val)
		if err != nil {
			return "", err
		}
		return "(" + exp.Op + value + ")", nil

	case *dbasic.Binary:
		val1, err := cg.HandleExpression(exp.Val1)
		if err != nil {
			return "", err
		}
		val2, err := cg.HandleExpression(exp.Val2)
		if err != nil {
			return "", err
		}
		// Always parenthesized, the precedence the parser established must
		// survive the round-trip through the C compiler
		return "(" + val1 + exp.Op + val2 + ")", nil

	case *dbasic.Call:
		args := make([]string, 0, len(exp.Args))
		for _, arg := range exp.Args {
			value, err := cg.HandleExpression(arg)
			if err != nil {
				return "", err
			}
			args = append(args, value)
		}
		return fmt.Sprintf("%s(%s)", exp.Name, strings.Join(args, ", ")), nil

	default:
		return "", fmt.Errorf("cannot generate code for expression of kind %T", expression)
	}
}
