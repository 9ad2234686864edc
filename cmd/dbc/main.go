package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/teris-io/cli"

	"github.com/dbasic-lang/dbc/pkg/amd64"
	"github.com/dbasic-lang/dbc/pkg/cgen"
	"github.com/dbasic-lang/dbc/pkg/dbasic"
)

var Description = strings.ReplaceAll(`
The DBASIC compiler translates DBASIC source files either to x86-64 assembly
(GNU assembler, AT&T syntax, SystemV ABI), to portable C source, or all the way
to an executable by piping the generated assembly through the system C toolchain.
`, "\n", " ")

var Compiler = cli.New(Description).
	WithArg(cli.NewArg("infile", "The DBASIC source file to compile")).
	WithOption(cli.NewOption("outfile", "The file to write to").WithChar('o').WithType(cli.TypeString)).
	WithOption(cli.NewOption("type", "Type of output to generate. Can be asm, c, binary. Default: binary").WithChar('t').WithType(cli.TypeString)).
	WithOption(cli.NewOption("debug", "Enable the parser trace output").WithType(cli.TypeBool)).
	WithOption(cli.NewOption("gccargs", "Additional args for gcc").WithChar('g').WithType(cli.TypeString)).
	WithAction(Handler)

func Handler(args []string, options map[string]string) int {
	infile := args[0]

	outtype := options["type"]
	if outtype == "" {
		outtype = "binary"
	}
	if outtype != "asm" && outtype != "c" && outtype != "binary" {
		fmt.Printf("ERROR: Unknown output type '%s', must be asm, c or binary\n", outtype)
		return 1
	}

	// The default output path is derived from the input one, so the input
	// needs an extension to strip (compiling 'test' would overwrite it).
	outfile := options["outfile"]
	if outfile == "" {
		extension := filepath.Ext(infile)
		if extension == "" {
			fmt.Print("ERROR: infile needs to have a file-extension\n")
			return 1
		}
		outfile = strings.TrimSuffix(infile, extension)
		if outtype != "binary" {
			outfile += "." + outtype
		}
	}

	source, err := os.ReadFile(infile)
	if err != nil {
		fmt.Printf("ERROR: Unable to open input file: %s\n", err)
		return 1
	}

	// Front-end: tokenize, parse, then the two semantic passes. The first
	// error of any stage stops the compilation.
	tokenizer := dbasic.NewTokenizer(string(source))
	if err := tokenizer.Tokenize(); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}

	parser := dbasic.NewParser(tokenizer)
	if options["debug"] == "true" {
		parser.SetTrace(true)
	}
	program, err := parser.Parse()
	if err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}

	if err := dbasic.NewResolver(program).Resolve(); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}
	if err := dbasic.NewTypeChecker(program).Check(); err != nil {
		fmt.Printf("ERROR: %s\n", err)
		return 1
	}

	// Back-end: the 'binary' type is just the asm one handed to gcc instead
	// of a file.
	var lines []string
	if outtype == "c" {
		lines, err = cgen.NewCodeGenerator(program).Generate()
	} else {
		lines, err = amd64.NewCodeGenerator(program).Generate()
	}
	if err != nil {
		fmt.Printf("ERROR: Unable to complete 'codegen' pass: %s\n", err)
		return 1
	}
	if outtype == "asm" {
		lines = amd64.Format(lines)
	}

	output := strings.Join(lines, "\n") + "\n"
	if outtype == "binary" {
		return assemble(output, outfile, options["gccargs"])
	}

	if err := os.WriteFile(outfile, []byte(output), 0644); err != nil {
		fmt.Printf("ERROR: Unable to write output file: %s\n", err)
		return 1
	}
	return 0
}

// Hands the generated assembly on stdin to the system C toolchain, which
// assembles and links it (together with the libc the built-ins lean on) into
// an executable. The toolchain's exit code becomes ours.
func assemble(assembly string, outfile string, gccargs string) int {
	arguments := []string{"-o", outfile, "-xassembler", "-"}
	if gccargs != "" {
		arguments = append(arguments, strings.Fields(gccargs)...)
	}

	command := exec.Command("gcc", arguments...)
	command.Stdin = strings.NewReader(assembly)
	command.Stdout, command.Stderr = os.Stdout, os.Stderr

	if err := command.Run(); err != nil {
		var exiterr *exec.ExitError
		if errors.As(err, &exiterr) {
			return exiterr.ExitCode()
		}
		fmt.Printf("ERROR: Unable to invoke the C toolchain: %s\n", err)
		return 1
	}
	return 0
}

func main() { os.Exit(Compiler.Run(os.Args, os.Stdout)) }
