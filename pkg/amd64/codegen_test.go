package amd64_test

import (
	"strings"
	"testing"

	pc "github.com/prataprc/goparsec"

	"github.com/dbasic-lang/dbc/pkg/amd64"
	"github.com/dbasic-lang/dbc/pkg/dbasic"
)

// Runs the whole front-end on a source file and emits its assembly.
func generate(t *testing.T, source string) []string {
	t.Helper()

	tokenizer := dbasic.NewTokenizer(source)
	if err := tokenizer.Tokenize(); err != nil {
		t.Fatalf("unexpected tokenizer error: %v", err)
	}
	program, err := dbasic.NewParser(tokenizer).Parse()
	if err != nil {
		t.Fatalf("unexpected parser error: %v", err)
	}
	if err := dbasic.NewResolver(program).Resolve(); err != nil {
		t.Fatalf("unexpected resolver error: %v", err)
	}
	if err := dbasic.NewTypeChecker(program).Check(); err != nil {
		t.Fatalf("unexpected type checker error: %v", err)
	}

	lines, err := amd64.NewCodeGenerator(program).Generate()
	if err != nil {
		t.Fatalf("unexpected codegen error: %v", err)
	}
	return lines
}

// Asserts that 'want' appears in 'lines' as a contiguous run.
func expectSequence(t *testing.T, lines []string, want ...string) {
	t.Helper()
	for i := 0; i+len(want) <= len(lines); i++ {
		matched := true
		for j := range want {
			if lines[i+j] != want[j] {
				matched = false
				break
			}
		}
		if matched {
			return
		}
	}
	t.Errorf("expected the sequence %q in the generated assembly:\n%s", want, strings.Join(lines, "\n"))
}

func TestCodegenFrames(t *testing.T) {
	t.Run("Prologue reserves one 8-byte slot per local", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nINT x = 1\nINT y = 2\nRETURN x+y\nEND\n")
		expectSequence(t, lines, "main:", "push %rbp", "mov %rsp, %rbp", "sub $16, %rsp")
	})

	t.Run("Parameters are spilled to their slots in order", func(t *testing.T) {
		source := "FUNC add(INT a, INT b) INT\nRETURN a+b\nEND\nFUNC main() INT\nRETURN add(1, 2)\nEND\n"
		lines := generate(t, source)
		expectSequence(t, lines,
			"add:", "push %rbp", "mov %rsp, %rbp", "sub $16, %rsp",
			"mov %rdi, -8(%rbp)", "mov %rsi, -16(%rbp)")
	})

	t.Run("Return evaluates into rax and tears the frame down", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nRETURN 3\nEND\n")
		expectSequence(t, lines, "mov $3, %rax", "leave", "ret")
	})

	t.Run("Locals are read and written through rbp", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nINT x = 7\nx = x+1\nRETURN x\nEND\n")
		expectSequence(t, lines, "mov $7, %rax", "mov %rax, -8(%rbp)")
		expectSequence(t, lines, "mov -8(%rbp), %rax")
	})

	t.Run("Globals are addressed by name", func(t *testing.T) {
		lines := generate(t, "GLOBAL INT n = 5\nFUNC main() INT\nn = n+1\nRETURN n\nEND\n")
		expectSequence(t, lines, "mov %rax, n")
		expectSequence(t, lines, "mov n, %rax")
		expectSequence(t, lines, "n:", ".quad 5")
	})
}

func TestCodegenExpressions(t *testing.T) {
	t.Run("Binary operands travel over the machine stack", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nRETURN 1+2\nEND\n")
		expectSequence(t, lines,
			"mov $1, %rax", "push %rax", "mov $2, %rax", "pop %rcx", "add %rcx, %rax")
	})

	t.Run("Subtraction restores the operand order", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nRETURN 5-2\nEND\n")
		expectSequence(t, lines, "pop %rcx", "sub %rax, %rcx", "mov %rcx, %rax")
	})

	t.Run("Comparisons lower to their setcc instruction", func(t *testing.T) {
		operators := map[string]string{
			"==": "sete", "!=": "setne", "<": "setl", ">": "setg", "<=": "setle", ">=": "setge",
		}
		for operator, setcc := range operators {
			lines := generate(t, "FUNC main() INT\nBOOL x = 1 "+operator+" 2\nRETURN 0\nEND\n")
			expectSequence(t, lines, "pop %rcx", "cmp %rax, %rcx", "mov $0, %rax", setcc+" %al")
		}
	})

	t.Run("Unary minus negates rax", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nRETURN -(1+2)\nEND\n")
		expectSequence(t, lines, "pop %rcx", "add %rcx, %rax", "neg %rax")
	})

	t.Run("String arguments load their interned label", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nprint(\"hey\")\nRETURN 0\nEND\n")
		expectSequence(t, lines, "mov $.Lstr0, %rax")
		expectSequence(t, lines, ".Lstr0:", ".string \"hey\"")
	})
}

func TestCodegenCalls(t *testing.T) {
	source := "FUNC add(INT a, INT b) INT\nRETURN a+b\nEND\n" +
		"FUNC main() INT\nRETURN add(1, 2)\nEND\n"
	lines := generate(t, source)

	// Each argument lands in its SystemV register whose old value is saved
	// first, afterwards the saved registers come back in reverse order.
	expectSequence(t, lines,
		"mov $1, %rax", "push %rdi", "mov %rax, %rdi",
		"mov $2, %rax", "push %rsi", "mov %rax, %rsi",
		"call add", "pop %rsi", "pop %rdi")
}

func TestCodegenControlFlow(t *testing.T) {
	t.Run("If without else", func(t *testing.T) {
		lines := generate(t, "FUNC main() INT\nIF 1 == 2 THEN\nRETURN 1\nEND\nRETURN 0\nEND\n")
		expectSequence(t, lines, "test %rax,%rax", "jz .Lendif1")
		expectSequence(t, lines, ".Lendif1:")
	})

	t.Run("If with else jumps over the else branch", func(t *testing.T) {
		source := "FUNC main() INT\nIF 1 == 2 THEN\nRETURN 1\nELSE\nRETURN 2\nEND\nRETURN 0\nEND\n"
		lines := generate(t, source)
		expectSequence(t, lines, "jz .Lendif1")
		expectSequence(t, lines, "jmp .Lendelse2", ".Lendif1:")
		expectSequence(t, lines, ".Lendelse2:")
	})

	t.Run("While re-evaluates the condition at the start label", func(t *testing.T) {
		source := "FUNC main() INT\nINT x = 3\nWHILE x > 0 DO\nx = x-1\nEND\nRETURN x\nEND\n"
		lines := generate(t, source)
		expectSequence(t, lines, ".Lwhilestart1:")
		expectSequence(t, lines, "test %rax,%rax", "jz .Lwhileend2")
		expectSequence(t, lines, "jmp .Lwhilestart1", ".Lwhileend2:")
	})
}

func TestCodegenBuiltinsAndData(t *testing.T) {
	lines := generate(t, "GLOBAL INT n = 9\nFUNC main() INT\nINT x = input()\nprint(\"%d\\n\", x+n)\nRETURN 0\nEND\n")

	t.Run("The input built-in reads through a syscall", func(t *testing.T) {
		expectSequence(t, lines,
			"input:", "mov $0, %rax", "mov $0, %rdi", "mov $inputbuf, %rsi",
			"mov $127, %rdx", "syscall", "mov $inputbuf, %rdi", "call atoi", "ret")
	})

	t.Run("The print built-in forwards to printf and flushes", func(t *testing.T) {
		expectSequence(t, lines,
			"print:", "mov $0, %rax", "call printf",
			"movq stdout(%rip), %rdi", "call fflush", "ret")
	})

	t.Run("The data section closes with the input buffer", func(t *testing.T) {
		expectSequence(t, lines, "inputbuf:", ".skip 128")
	})
}

// ----------------------------------------------------------------------------
// Structural validation

// Classifies one emitted line with a small combinator grammar: a label, a
// jump (with its target), a directive or a plain instruction.
func classify(t *testing.T, line string) (kind string, target string) {
	t.Helper()

	ast := pc.NewAST("asmline", 0)
	jump := ast.And("jump", nil,
		ast.OrdChoice("opcode", nil, pc.Atom("jz", "JZ"), pc.Atom("jmp", "JMP")),
		pc.Token(`[A-Za-z_.$][0-9A-Za-z_.$]*`, "TARGET"))
	grammar := ast.OrdChoice("line", nil,
		pc.Token(`[A-Za-z_.$][0-9A-Za-z_.$]*:`, "LABEL"),
		jump,
		pc.Token(`\.[a-z]+`, "DIRECTIVE"),
		pc.Token(`[a-z]+`, "MNEMONIC"))

	node, _ := ast.Parsewith(grammar, pc.NewScanner([]byte(line)))
	if node == nil {
		t.Fatalf("unclassifiable assembly line: %q", line)
	}

	if node.GetName() == "jump" {
		return "jump", node.GetChildren()[1].GetValue()
	}
	return node.GetName(), ""
}

// Every jump in the generated program must target a label that is defined
// exactly once, otherwise the assembler (or worse, the linker) trips later.
func TestCodegenLabelIntegrity(t *testing.T) {
	source := "GLOBAL INT n = 1\n" +
		"FUNC main() INT\n" +
		"INT x = input()\n" +
		"WHILE x > 0 DO\n" +
		"IF x == n THEN\nprint(\"hit\\n\")\nELSE\nprint(\"miss\\n\")\nEND\n" +
		"x = x-1\n" +
		"END\n" +
		"RETURN 0\nEND\n"
	lines := generate(t, source)

	defined := map[string]int{}
	targets := []string{}

	for _, line := range lines {
		switch kind, target := classify(t, line); kind {
		case "LABEL":
			defined[strings.TrimSuffix(strings.TrimSpace(line), ":")]++
		case "jump":
			targets = append(targets, target)
		}
	}

	if len(targets) == 0 {
		t.Fatal("expected the program to contain jumps")
	}
	for _, target := range targets {
		if defined[target] != 1 {
			t.Errorf("jump target %q defined %d times", target, defined[target])
		}
	}
}

func TestFormat(t *testing.T) {
	lines := []string{".text", "main:", "push %rbp", ".Lstr0:", `.string "hey"`, "ret"}
	formatted := amd64.Format(lines)

	expected := []string{".text", "main:", "    push %rbp", ".Lstr0:", `.string "hey"`, "    ret"}
	for i := range expected {
		if formatted[i] != expected[i] {
			t.Errorf("line %d: expected %q, got %q", i, expected[i], formatted[i])
		}
	}
}
