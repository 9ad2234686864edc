package dbasic_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/dbasic-lang/dbc/pkg/dbasic"
)

// Parses and resolves a source file, handing back the annotated program.
func resolve(t *testing.T, source string) (*dbasic.Program, error) {
	t.Helper()
	program := parse(t, source)
	return program, dbasic.NewResolver(program).Resolve()
}

func TestResolverTables(t *testing.T) {
	source := "GLOBAL INT n = 5\nGLOBAL BOOL flag = TRUE\n" +
		"FUNC main() INT\n" +
		"INT x = 1\nINT y = 2\n" +
		"print(\"first\")\nprint(\"second\")\n" +
		"RETURN x+y+n\nEND\n"

	program, err := resolve(t, source)
	if err != nil {
		t.Fatalf("unexpected resolver error: %v", err)
	}

	t.Run("Globals are recorded in declaration order", func(t *testing.T) {
		keys := program.GlobalVars.Keys()
		if len(keys) != 2 || keys[0] != "n" || keys[1] != "flag" {
			t.Errorf("unexpected global order: %v", keys)
		}
		if initial, _ := program.GlobalVars.Get("n"); initial != "5" {
			t.Errorf("expected the initial value 5 for 'n', got %q", initial)
		}
		// TRUE has been folded to its numeric spelling by the parser already
		if initial, _ := program.GlobalVars.Get("flag"); initial != "1" {
			t.Errorf("expected the initial value 1 for 'flag', got %q", initial)
		}
		if program.GlobalVarTypes["flag"] != dbasic.Bool {
			t.Errorf("expected 'flag' to be a BOOL, got %s", program.GlobalVarTypes["flag"])
		}
	})

	t.Run("Locals are recorded in declaration order", func(t *testing.T) {
		keys := program.FuncDefs[0].LocalVars.Keys()
		if len(keys) != 2 || keys[0] != "x" || keys[1] != "y" {
			t.Errorf("unexpected local order: %v", keys)
		}
	})

	t.Run("String literals are interned with fresh labels", func(t *testing.T) {
		if program.Constants.Size() != 2 {
			t.Fatalf("expected 2 interned constants, got %d", program.Constants.Size())
		}
		if label, _ := program.Constants.Get("first"); label != ".Lstr0" {
			t.Errorf("expected the label .Lstr0, got %q", label)
		}
		if label, _ := program.Constants.Get("second"); label != ".Lstr1" {
			t.Errorf("expected the label .Lstr1, got %q", label)
		}
	})
}

func TestResolverParameters(t *testing.T) {
	source := "FUNC pick(INT a, BOOL b) INT\nRETURN a\nEND\nFUNC main() INT\nRETURN pick(1, TRUE)\nEND\n"
	program, err := resolve(t, source)
	if err != nil {
		t.Fatalf("unexpected resolver error: %v", err)
	}

	// The parameters must take the first local slots, in declaration order
	pick := program.FuncDefs[0]
	keys := pick.LocalVars.Keys()
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("unexpected parameter slots: %v", keys)
	}
	if pick.LocalVarTypes["a"] != dbasic.Int || pick.LocalVarTypes["b"] != dbasic.Bool {
		t.Errorf("unexpected parameter types: %v", pick.LocalVarTypes)
	}
}

func TestResolverRejections(t *testing.T) {
	expectError := func(t *testing.T, source string, fragment string) *dbasic.SemanticError {
		t.Helper()
		_, err := resolve(t, source)

		var semerr *dbasic.SemanticError
		if !errors.As(err, &semerr) {
			t.Fatalf("expected a SemanticError, got %v", err)
		}
		if !strings.Contains(semerr.Msg, fragment) {
			t.Errorf("expected the message to mention %q, got %q", fragment, semerr.Msg)
		}
		return semerr
	}

	t.Run("Use of an undeclared variable", func(t *testing.T) {
		semerr := expectError(t, "FUNC main() INT\nx = 5\nRETURN 0\nEND\n", "not defined before use")
		if semerr.Line != 2 {
			t.Errorf("expected the error on line 2, got %d", semerr.Line)
		}
	})

	t.Run("Declaration after use", func(t *testing.T) {
		expectError(t, "FUNC main() INT\nINT y = 1\ny = x\nINT x = 1\nRETURN 0\nEND\n", "not defined before use")
	})

	t.Run("Duplicate globals", func(t *testing.T) {
		expectError(t, "GLOBAL INT n = 0\nGLOBAL INT n = 1\nFUNC main() INT\nRETURN 0\nEND\n", "Redefinition of global var")
	})

	t.Run("Duplicate function names", func(t *testing.T) {
		expectError(t, "FUNC main() INT\nRETURN 0\nEND\nFUNC main() INT\nRETURN 0\nEND\n", "Redefinition of function")
	})

	t.Run("Missing main", func(t *testing.T) {
		expectError(t, "FUNC helper() INT\nRETURN 0\nEND\n", "main")
	})

	t.Run("More than 6 call arguments", func(t *testing.T) {
		expectError(t, "FUNC main() INT\nfoo(1,2,3,4,5,6,7)\nRETURN 0\nEND\n", "6 arguments")
	})

	t.Run("Function not ending in RETURN", func(t *testing.T) {
		expectError(t, "FUNC main() INT\nINT x = 1\nEND\n", "return-statement")
	})

	t.Run("Local shadowing a global", func(t *testing.T) {
		expectError(t, "GLOBAL INT n = 0\nFUNC main() INT\nINT n = 1\nRETURN 0\nEND\n", "Redefinition of local var")
	})

	t.Run("Non-constant global initializer", func(t *testing.T) {
		expectError(t, "GLOBAL INT n = 1+2\nFUNC main() INT\nRETURN 0\nEND\n", "constant")
	})
}

func TestResolverLocalTakeover(t *testing.T) {
	// A second definition of the same local is not an error, the later one
	// silently takes over the slot of the first.
	source := "FUNC main() INT\nINT x = 1\nINT x = 2\nRETURN x\nEND\n"
	program, err := resolve(t, source)
	if err != nil {
		t.Fatalf("expected the local redefinition to pass, got %v", err)
	}
	if keys := program.FuncDefs[0].LocalVars.Keys(); len(keys) != 1 || keys[0] != "x" {
		t.Errorf("expected a single slot for 'x', got %v", keys)
	}
}
