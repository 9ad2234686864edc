package amd64

import (
	"fmt"

	"github.com/dbasic-lang/dbc/pkg/dbasic"
	"github.com/dbasic-lang/dbc/pkg/utils"
)

// ----------------------------------------------------------------------------
// Translation tables

// This section contains the translation tables cornerstone of the codegen phase.
//
// The calling convention is SystemV x86-64: the first six integer arguments
// travel in 'ArgRegisters' (in that order) and the return value comes back in
// 'rax'. 'ComparisonTable' maps each comparison operator of the language to the
// matching setcc instruction; a comparison always materializes its result as a
// full 0/1 value in 'rax' so it composes with '&' and '|' like any other value.

var (
	ArgRegisters = []string{"rdi", "rsi", "rdx", "rcx", "r8", "r9"}

	ComparisonTable = map[string]string{
		"==": "sete", "!=": "setne",
		"<": "setl", ">": "setg",
		"<=": "setle", ">=": "setge",
	}
)

// ----------------------------------------------------------------------------
// Code Generator

// Takes a fully annotated 'dbasic.Program' and spits out GNU-assembler x86-64
// text (AT&T syntax), one line per slice element.
//
// The register discipline is deliberately naive: every expression leaves its
// result in 'rax' and binary operators park the left operand on the machine
// stack while the right one is evaluated. Locals live in fixed 8-byte slots
// below 'rbp', assigned in declaration order, so no allocator is needed and
// the output is trivially reproducible.
type CodeGenerator struct {
	program      *dbasic.Program
	current      *dbasic.FuncDef // The function being emitted, owns the stack slot layout
	labelcounter int             // Monotonic across the whole program, feeds the '.L*' labels
}

// Initializes and returns to the caller a brand new 'CodeGenerator' struct.
// Requires the argument Program 'p' to be fully resolved and type-checked.
func NewCodeGenerator(p *dbasic.Program) *CodeGenerator {
	return &CodeGenerator{program: p}
}

// Translates the whole program: a fixed header, every user function in
// declaration order, the two built-in functions and finally the data section.
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := []string{
		`.file "test.c"`,
		".text",
		".globl main",
		".type main, @function",
	}

	for _, funcdef := range cg.program.FuncDefs {
		generated, err := cg.HandleFuncDef(funcdef)
		if err != nil {
			return nil, fmt.Errorf("error generating code for function '%s': %w", funcdef.Name, err)
		}
		lines = append(lines, generated...)
	}

	lines = append(lines, cg.generateBuiltins()...)
	lines = append(lines, cg.generateDataSection()...)
	return lines, nil
}

// ----------------------------------------------------------------------------
// Functions

// Specialized function to emit one function: label, prologue, the spill of the
// incoming argument registers into their stack slots, then the body.
//
// Every local (parameters included) gets a fixed 8-byte slot below 'rbp',
// 1-based in declaration order, so the frame is just one 'sub' in the prologue.
// The epilogue belongs to the Return statements, a checked program cannot fall
// off the end of a function.
func (cg *CodeGenerator) HandleFuncDef(funcdef *dbasic.FuncDef) ([]string, error) {
	cg.current = funcdef

	lines := []string{
		funcdef.Name + ":",
		"push %rbp",
		"mov %rsp, %rbp",
		fmt.Sprintf("sub $%d, %%rsp", 8*funcdef.LocalVars.Size()),
	}

	for i, arg := range funcdef.Args {
		offset, found := cg.localOffset(arg)
		if !found {
			return nil, fmt.Errorf("parameter '%s' has no stack slot", arg)
		}
		lines = append(lines, fmt.Sprintf("mov %%%s, -%d(%%rbp)", ArgRegisters[i], offset))
	}

	for _, statement := range funcdef.Statements {
		generated, err := cg.HandleStatement(statement)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}

	return lines, nil
}

// Resolves the 'rbp' offset of a local variable from its position in the
// function's declaration-ordered locals table.
func (cg *CodeGenerator) localOffset(name string) (int, bool) {
	for i, key := range cg.current.LocalVars.Keys() {
		if key == name {
			return 8 * (i + 1), true
		}
	}
	return 0, false
}

// ----------------------------------------------------------------------------
// Statements

// Generalized dispatch over every statement kind.
func (cg *CodeGenerator) HandleStatement(statement dbasic.Statement) ([]string, error) {
	switch st := statement.(type) {
	case *dbasic.LocalDef:
		return cg.handleStore(st.Name, st.Value)

	case *dbasic.Assign:
		return cg.handleStore(st.Name, st.Value)

	case *dbasic.If:
		return cg.HandleIf(st)

	case *dbasic.While:
		return cg.HandleWhile(st)

	case *dbasic.Return:
		lines := []string{}
		if st.Expression != nil {
			generated, err := cg.HandleExpression(st.Expression)
			if err != nil {
				return nil, err
			}
			lines = append(lines, generated...)
		}
		return append(lines, "leave", "ret"), nil

	case *dbasic.Call:
		// A call in statement position just drops the value left in 'rax'
		return cg.HandleCall(st)

	default:
		return nil, fmt.Errorf("cannot generate code for statement of kind %T", statement)
	}
}

// Evaluates 'value' into 'rax' and stores it into the named variable, either a
// stack slot of the current function or a global in the data section.
func (cg *CodeGenerator) handleStore(name string, value dbasic.Expression) ([]string, error) {
	lines, err := cg.HandleExpression(value)
	if err != nil {
		return nil, err
	}

	if offset, local := cg.localOffset(name); local {
		return append(lines, fmt.Sprintf("mov %%rax, -%d(%%rbp)", offset)), nil
	}
	if cg.program.GlobalVars.Has(name) {
		return append(lines, fmt.Sprintf("mov %%rax, %s", name)), nil
	}
	return nil, fmt.Errorf("variable '%s' resolves to neither a local nor a global", name)
}

// Specialized function to emit an 'If' statement.
//
// The condition value is tested against zero, a failing test jumps over the
// then-branch to the endif label. When an else-branch exists the then-branch
// ends with a jump over it to the endelse label.
func (cg *CodeGenerator) HandleIf(ifstmt *dbasic.If) ([]string, error) {
	endif := cg.newLabel("endif")
	endelse := cg.newLabel("endelse")

	lines, err := cg.HandleExpression(ifstmt.Exp)
	if err != nil {
		return nil, err
	}
	lines = append(lines, "test %rax,%rax", "jz "+endif)

	for _, statement := range ifstmt.Statements {
		generated, err := cg.HandleStatement(statement)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}

	if ifstmt.ElseStatements != nil {
		lines = append(lines, "jmp "+endelse)
	}
	lines = append(lines, endif+":")

	if ifstmt.ElseStatements != nil {
		for _, statement := range ifstmt.ElseStatements {
			generated, err := cg.HandleStatement(statement)
			if err != nil {
				return nil, err
			}
			lines = append(lines, generated...)
		}
		lines = append(lines, endelse+":")
	}

	return lines, nil
}

// Specialized function to emit a 'While' statement: the condition is
// re-evaluated at the start label on every iteration.
func (cg *CodeGenerator) HandleWhile(whilestmt *dbasic.While) ([]string, error) {
	start := cg.newLabel("whilestart")
	end := cg.newLabel("whileend")

	lines := []string{start + ":"}
	generated, err := cg.HandleExpression(whilestmt.Exp)
	if err != nil {
		return nil, err
	}
	lines = append(lines, generated...)
	lines = append(lines, "test %rax,%rax", "jz "+end)

	for _, statement := range whilestmt.Statements {
		generated, err := cg.HandleStatement(statement)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)
	}

	lines = append(lines, "jmp "+start, end+":")
	return lines, nil
}

// Mints a fresh local label, the counter is shared across the whole program.
func (cg *CodeGenerator) newLabel(prefix string) string {
	cg.labelcounter++
	return fmt.Sprintf(".L%s%d", prefix, cg.labelcounter)
}

// ----------------------------------------------------------------------------
// Expressions

// Generalized dispatch over every expression kind. Every case leaves the
// expression result in 'rax'.
func (cg *CodeGenerator) HandleExpression(expression dbasic.Expression) ([]string, error) {
	switch exp := expression.(type) {
	case *dbasic.Const:
		return []string{fmt.Sprintf("mov $%s, %%rax", exp.Value)}, nil

	case *dbasic.Var:
		if offset, local := cg.localOffset(exp.Name); local {
			return []string{fmt.Sprintf("mov -%d(%%rbp), %%rax", offset)}, nil
		}
		if cg.program.GlobalVars.Has(exp.Name) {
			return []string{fmt.Sprintf("mov %s, %%rax", exp.Name)}, nil
		}
		return nil, fmt.Errorf("variable '%s' resolves to neither a local nor a global", exp.Name)

	case *dbasic.Str:
		label, found := cg.program.Constants.Get(exp.Value)
		if !found {
			return nil, fmt.Errorf("string constant %q was never interned", exp.Value)
		}
		return []string{fmt.Sprintf("mov $%s, %%rax", label)}, nil

	case *dbasic.Unary:
		lines, err := cg.HandleExpression(exp.Val)
		if err != nil {
			return nil, err
		}
		return append(lines, "neg %rax"), nil

	case *dbasic.Binary:
		return cg.HandleBinary(exp)

	case *dbasic.Call:
		return cg.HandleCall(exp)

	default:
		return nil, fmt.Errorf("cannot generate code for expression of kind %T", expression)
	}
}

// Specialized function to emit a 'Binary' expression.
//
// The left operand is evaluated first and parked on the machine stack while
// the right one runs, then popped into 'rcx'. So at the operator itself the
// left value sits in 'rcx' and the right one in 'rax'.
func (cg *CodeGenerator) HandleBinary(binary *dbasic.Binary) ([]string, error) {
	lines, err := cg.HandleExpression(binary.Val1)
	if err != nil {
		return nil, err
	}
	lines = append(lines, "push %rax")

	generated, err := cg.HandleExpression(binary.Val2)
	if err != nil {
		return nil, err
	}
	lines = append(lines, generated...)
	lines = append(lines, "pop %rcx")

	switch binary.Op {
	case "+":
		return append(lines, "add %rcx, %rax"), nil
	case "-":
		return append(lines, "sub %rax, %rcx", "mov %rcx, %rax"), nil
	case "*":
		return append(lines, "imul %rcx, %rax"), nil
	case "/":
		// idiv divides rdx:rax, so the dividend moves to 'rax' and 'rdx' is
		// saved around the sign extension
		return append(lines, "push %rdx", "xchg %rax, %rcx", "cqo", "idiv %rcx", "pop %rdx"), nil
	case "|":
		return append(lines, "or %rcx, %rax"), nil
	case "&":
		return append(lines, "and %rcx, %rax"), nil
	}

	if setcc, found := ComparisonTable[binary.Op]; found {
		return append(lines, "cmp %rax, %rcx", "mov $0, %rax", setcc+" %al"), nil
	}
	return nil, fmt.Errorf("cannot generate code for binary operator '%s'", binary.Op)
}

// Specialized function to emit a 'Call' expression.
//
// Argument i is evaluated into 'rax' and moved into its SystemV register, the
// register's previous content is saved on the stack first. After the call the
// saved registers are restored in reverse order, the result stays in 'rax'.
// Only the registers a call loads itself are saved and restored, any other
// register the callee changes is not.
func (cg *CodeGenerator) HandleCall(call *dbasic.Call) ([]string, error) {
	if len(call.Args) > len(ArgRegisters) {
		return nil, fmt.Errorf("function call with %d arguments exceeds the %d argument registers",
			len(call.Args), len(ArgRegisters))
	}

	lines := []string{}
	saved := utils.NewStack[string]()

	for i, arg := range call.Args {
		generated, err := cg.HandleExpression(arg)
		if err != nil {
			return nil, err
		}
		lines = append(lines, generated...)

		register := ArgRegisters[i]
		saved.Push(register)
		lines = append(lines, "push %"+register, fmt.Sprintf("mov %%rax, %%%s", register))
	}

	lines = append(lines, "call "+call.Name)

	saved.Iterator()(func(register string) bool {
		lines = append(lines, "pop %"+register)
		return true
	})
	return lines, nil
}

// ----------------------------------------------------------------------------
// Built-ins and data section

// The implementations of the language built-ins, appended after the user
// functions. 'input' reads a line from stdin with a raw read syscall and turns
// it into an integer via 'atoi'; 'print' forwards its registers untouched to
// 'printf' and flushes stdout so interactive programs stay in sync.
func (cg *CodeGenerator) generateBuiltins() []string {
	return []string{
		"input:",
		"mov $0, %rax",
		"mov $0, %rdi",
		"mov $inputbuf, %rsi",
		"mov $127, %rdx",
		"syscall",
		"mov $inputbuf, %rdi",
		"call atoi",
		"ret",
		"print:",
		"mov $0, %rax",
		"call printf",
		"movq stdout(%rip), %rdi",
		"call fflush",
		"ret",
	}
}

// The data section: one '.string' per interned string constant, one '.quad'
// per global (in declaration order) and the shared input buffer.
func (cg *CodeGenerator) generateDataSection() []string {
	lines := []string{".data"}

	cg.program.Constants.Entries()(func(value, label string) bool {
		// The literal goes out verbatim, escape sequences like '\n' reach the
		// assembler untouched and are decoded there
		lines = append(lines, label+":", fmt.Sprintf(".string \"%s\"", value))
		return true
	})
	cg.program.GlobalVars.Entries()(func(name, initial string) bool {
		lines = append(lines, name+":", ".quad "+initial)
		return true
	})

	return append(lines, "inputbuf:", ".skip 128")
}
