package dbasic

import (
	"fmt"

	"github.com/dbasic-lang/dbc/pkg/utils"
)

// ----------------------------------------------------------------------------
// Variable/Scope Resolver

// The Resolver is the first semantic pass after parsing.
//
// It records every global in declaration order, collects the locals (parameters
// included) of each function, interns the string literals under fresh '.LstrN'
// labels and enforces the scope rules: no use before declaration, no duplicate
// globals or functions, at most 6 call arguments (the SystemV register limit)
// and a Return as the last statement of every function. The collected tables
// are written back onto the Program and FuncDef nodes for the passes downstream.
//
// Locals are deliberately only checked for collisions against the globals, a
// second definition of the same local name inside one function silently takes
// over the first one's slot.
type Resolver struct {
	program *Program

	globals     *utils.OrderedMap[string, string]
	globaltypes map[string]DataType
	constants   *utils.OrderedMap[string, string]

	locals     *utils.OrderedMap[string, Expression]
	localtypes map[string]DataType

	funcnames map[string]bool
	counter   int // Monotonic across the whole program, feeds the '.LstrN' labels
}

// Initializes and returns to the caller a brand new 'Resolver' struct.
// Requires the argument Program 'p' to be non-nil.
func NewResolver(p *Program) *Resolver {
	return &Resolver{
		program:     p,
		globals:     utils.NewOrderedMap[string, string](),
		globaltypes: map[string]DataType{},
		constants:   utils.NewOrderedMap[string, string](),
		funcnames:   map[string]bool{},
	}
}

// Runs the pass over the whole program: globals first (in declaration order),
// then every function, then the whole-program assertions.
func (r *Resolver) Resolve() error {
	for _, globaldef := range r.program.GlobalDefs {
		if err := r.handleGlobalDef(globaldef); err != nil {
			return err
		}
	}

	for _, funcdef := range r.program.FuncDefs {
		if err := r.handleFuncDef(funcdef); err != nil {
			return err
		}
	}

	if !r.funcnames["main"] {
		return semanticErrorf(r.program, "No 'main' function defined")
	}

	r.program.GlobalVars = r.globals
	r.program.GlobalVarTypes = r.globaltypes
	r.program.Constants = r.constants
	return nil
}

// Registers a global variable. The initializer has to be a plain constant,
// globals live in the data section and there is no code to run before 'main'
// that could evaluate anything fancier.
func (r *Resolver) handleGlobalDef(globaldef *GlobalDef) error {
	if r.globals.Has(globaldef.Name) {
		return semanticErrorf(globaldef, "Redefinition of global var: %s", globaldef.Name)
	}

	value, isconst := globaldef.Value.(*Const)
	if !isconst {
		return semanticErrorf(globaldef, "Global var '%s' must be initialized with a constant", globaldef.Name)
	}

	r.globals.Set(globaldef.Name, value.Value)
	r.globaltypes[globaldef.Name] = globaldef.Type
	return nil
}

// Collects the locals of one function and walks its body. The parameters are
// seeded first so they take the lowest stack slots, in declaration order.
func (r *Resolver) handleFuncDef(funcdef *FuncDef) error {
	if r.funcnames[funcdef.Name] {
		return semanticErrorf(funcdef, "Redefinition of function: %s", funcdef.Name)
	}
	r.funcnames[funcdef.Name] = true

	r.locals = utils.NewOrderedMap[string, Expression]()
	r.localtypes = map[string]DataType{}
	for i, arg := range funcdef.Args {
		r.locals.Set(arg, &Const{Line: funcdef.Line, Value: "0", Type: funcdef.ArgTypes[i]})
		r.localtypes[arg] = funcdef.ArgTypes[i]
	}

	for _, statement := range funcdef.Statements {
		if err := Walk(statement, r.resolveNode); err != nil {
			return err
		}
	}

	funcdef.LocalVars = r.locals
	funcdef.LocalVarTypes = r.localtypes

	if len(funcdef.Statements) == 0 {
		return semanticErrorf(funcdef, "Function '%s' has an empty body", funcdef.Name)
	}
	if _, isreturn := funcdef.Statements[len(funcdef.Statements)-1].(*Return); !isreturn {
		return semanticErrorf(funcdef, "Functions must end with a return-statement")
	}
	return nil
}

// The per-node behavior of the pass, invoked through Walk on every statement
// of the current function body.
func (r *Resolver) resolveNode(node Node) (bool, error) {
	switch n := node.(type) {
	case *Var:
		if !r.locals.Has(n.Name) && !r.globals.Has(n.Name) {
			return false, semanticErrorf(n, "Variable %s is not defined before use", n.Name)
		}

	case *Assign:
		if !r.locals.Has(n.Name) && !r.globals.Has(n.Name) {
			return false, semanticErrorf(n, "Variable %s is not defined before use", n.Name)
		}

	case *Str:
		label := fmt.Sprintf(".Lstr%d", r.counter)
		r.counter++
		r.constants.Set(n.Value, label)

	case *Call:
		if len(n.Args) > 6 {
			return false, semanticErrorf(n, "Function-calls can only take 6 arguments")
		}

	case *LocalDef:
		if r.globals.Has(n.Name) {
			return false, semanticErrorf(n, "Redefinition of local var: %s", n.Name)
		}
		r.locals.Set(n.Name, n.Value)
		r.localtypes[n.Name] = n.Type
		// The initializer is registered but not walked, names referenced in it
		// are checked once the type checker evaluates the expression types
		return false, nil
	}

	return true, nil
}
