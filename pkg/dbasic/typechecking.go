package dbasic

// ----------------------------------------------------------------------------
// Type Checker

// The TypeChecker is the second semantic pass, it runs on the tree the Resolver
// already annotated.
//
// It tags every expression node with its DataType bottom-up and enforces the
// typing rules on the way: arithmetic wants INT on both sides, comparisons
// produce BOOL, conditions must be BOOL, assignments and returns must match the
// declared types and calls are checked against the callee signature (a built-in
// from the ABI table, a user function, or an extern one nothing is known about).
//
// Unlike the Resolver this pass must cover every node kind, so it dispatches
// through exhaustive type switches that fail loudly on anything they do not know.
type TypeChecker struct {
	program *Program
	current *FuncDef // The function whose body is being checked, for Return and Var lookups
}

// Initializes and returns to the caller a brand new 'TypeChecker' struct.
// Requires the argument Program 'p' to have been processed by the Resolver.
func NewTypeChecker(p *Program) *TypeChecker {
	return &TypeChecker{program: p}
}

// Runs the pass: global initializers first, then every function body.
func (tc *TypeChecker) Check() error {
	for _, globaldef := range tc.program.GlobalDefs {
		if err := tc.HandleExpression(globaldef.Value); err != nil {
			return err
		}
		if typeOf(globaldef.Value) != globaldef.Type {
			return semanticErrorf(globaldef, "Cannot initialize %s-variable '%s' with a %s value",
				globaldef.Type, globaldef.Name, typename(typeOf(globaldef.Value)))
		}
	}

	for _, funcdef := range tc.program.FuncDefs {
		tc.current = funcdef
		for _, statement := range funcdef.Statements {
			if err := tc.HandleStatement(statement); err != nil {
				return err
			}
		}
	}

	return nil
}

// ----------------------------------------------------------------------------
// Statements

// Generalized dispatch over every statement kind.
func (tc *TypeChecker) HandleStatement(statement Statement) error {
	switch st := statement.(type) {
	case *LocalDef:
		if err := tc.HandleExpression(st.Value); err != nil {
			return err
		}
		if typeOf(st.Value) != st.Type {
			return semanticErrorf(st, "Cannot initialize %s-variable '%s' with a %s value",
				st.Type, st.Name, typename(typeOf(st.Value)))
		}
		return nil

	case *Assign:
		if err := tc.HandleExpression(st.Value); err != nil {
			return err
		}
		declared, err := tc.lookupVarType(st, st.Name)
		if err != nil {
			return err
		}
		if typeOf(st.Value) != declared {
			return semanticErrorf(st, "Cannot assign a %s value to %s-variable '%s'",
				typename(typeOf(st.Value)), declared, st.Name)
		}
		return nil

	case *If:
		if err := tc.HandleExpression(st.Exp); err != nil {
			return err
		}
		if typeOf(st.Exp) != Bool {
			return semanticErrorf(st, "The condition of an IF statement must be a BOOL")
		}
		for _, nested := range st.Statements {
			if err := tc.HandleStatement(nested); err != nil {
				return err
			}
		}
		for _, nested := range st.ElseStatements {
			if err := tc.HandleStatement(nested); err != nil {
				return err
			}
		}
		return nil

	case *While:
		if err := tc.HandleExpression(st.Exp); err != nil {
			return err
		}
		if typeOf(st.Exp) != Bool {
			return semanticErrorf(st, "The condition of a WHILE statement must be a BOOL")
		}
		for _, nested := range st.Statements {
			if err := tc.HandleStatement(nested); err != nil {
				return err
			}
		}
		return nil

	case *Return:
		returned := Void
		if st.Expression != nil {
			if err := tc.HandleExpression(st.Expression); err != nil {
				return err
			}
			returned = typeOf(st.Expression)
		}
		if returned != tc.current.ReturnType {
			return semanticErrorf(st, "The type of the value to return must match the type of the function. Functype=%s, Returntype=%s",
				typename(tc.current.ReturnType), typename(returned))
		}
		return nil

	case *Call:
		return tc.HandleCall(st)

	default:
		return semanticErrorf(statement, "Cannot type-check statement of kind %T", statement)
	}
}

// ----------------------------------------------------------------------------
// Expressions

// Generalized dispatch over every expression kind, tags the node with its type.
func (tc *TypeChecker) HandleExpression(expression Expression) error {
	switch exp := expression.(type) {
	case *Const, *Str:
		// Their type is already known at parse time
		return nil

	case *Var:
		declared, err := tc.lookupVarType(exp, exp.Name)
		if err != nil {
			return err
		}
		exp.Type = declared
		return nil

	case *Unary:
		if err := tc.HandleExpression(exp.Val); err != nil {
			return err
		}
		if typeOf(exp.Val) != Int {
			return semanticErrorf(exp, "Unary '%s' needs an INT operand, got %s", exp.Op, typename(typeOf(exp.Val)))
		}
		exp.Type = Int
		return nil

	case *Binary:
		return tc.HandleBinary(exp)

	case *Call:
		return tc.HandleCall(exp)

	default:
		return semanticErrorf(expression, "Cannot type-check expression of kind %T", expression)
	}
}

// Specialized function to type-check a 'Binary' expression.
func (tc *TypeChecker) HandleBinary(binary *Binary) error {
	if err := tc.HandleExpression(binary.Val1); err != nil {
		return err
	}
	if err := tc.HandleExpression(binary.Val2); err != nil {
		return err
	}

	t1, t2 := typeOf(binary.Val1), typeOf(binary.Val2)
	if t1 != t2 {
		return semanticErrorf(binary, "Both operands of a binary operation need to have the same type, got %s and %s",
			typename(t1), typename(t2))
	}
	if t1 == Void {
		return semanticErrorf(binary, "Cannot perform a binary operation on a void value")
	}

	switch binary.Op {
	case "+", "-", "*", "/":
		if t1 != Int {
			return semanticErrorf(binary, "Arithmetic '%s' needs INT operands, got %s", binary.Op, typename(t1))
		}
		binary.Type = Int
	case "==", "!=", ">=", "<=", ">", "<":
		binary.Type = Bool
	case "&", "|":
		binary.Type = t1
	default:
		return semanticErrorf(binary, "Cannot type-check binary operator '%s'", binary.Op)
	}
	return nil
}

// Specialized function to type-check a 'Call' against the callee signature.
//
// Three cases: a built-in from the embedded ABI table, a user function defined
// in this program, or an unknown name treated as an extern function (nothing
// can be checked then, but the arguments are still typed for the back-ends).
func (tc *TypeChecker) HandleCall(call *Call) error {
	if builtin, found := Builtins[call.Name]; found {
		if !builtin.Variadic && len(call.Args) != len(builtin.Args) {
			return semanticErrorf(call, "The built-in function '%s' takes exactly %d arguments, got %d",
				call.Name, len(builtin.Args), len(call.Args))
		}
		if builtin.Variadic && len(call.Args) < len(builtin.Args) {
			return semanticErrorf(call, "The built-in function '%s' needs at least %d arguments, got %d",
				call.Name, len(builtin.Args), len(call.Args))
		}
		for i, arg := range call.Args {
			if err := tc.HandleExpression(arg); err != nil {
				return err
			}
			// Only the leading declared arguments are checked, whatever a
			// variadic built-in receives past them is passed through as-is
			if i < len(builtin.Args) && typeOf(arg) != builtin.Args[i] {
				return semanticErrorf(call, "Argument %d of '%s' must be a %s, got %s",
					i+1, call.Name, builtin.Args[i], typename(typeOf(arg)))
			}
		}
		call.Type = builtin.Return
		return nil
	}

	var funcdef *FuncDef
	for _, candidate := range tc.program.FuncDefs {
		if candidate.Name == call.Name {
			funcdef = candidate
			break
		}
	}

	if funcdef == nil {
		// No definition found, probably an extern function the linker will
		// provide. There is no signature to check the arguments against.
		for _, arg := range call.Args {
			if err := tc.HandleExpression(arg); err != nil {
				return err
			}
		}
		call.Type = Void
		return nil
	}

	if len(call.Args) != len(funcdef.Args) {
		return semanticErrorf(call, "The function '%s' takes exactly %d arguments, got %d",
			call.Name, len(funcdef.Args), len(call.Args))
	}
	for i, arg := range call.Args {
		if err := tc.HandleExpression(arg); err != nil {
			return err
		}
		if typeOf(arg) != funcdef.ArgTypes[i] {
			return semanticErrorf(call, "Argument %d of '%s' must be a %s, got %s",
				i+1, call.Name, funcdef.ArgTypes[i], typename(typeOf(arg)))
		}
	}
	call.Type = funcdef.ReturnType
	return nil
}

// ----------------------------------------------------------------------------
// Lookup helpers

// Resolves the declared type of a variable, locals shadow globals.
func (tc *TypeChecker) lookupVarType(node Node, name string) (DataType, error) {
	if tc.current != nil {
		if declared, found := tc.current.LocalVarTypes[name]; found {
			return declared, nil
		}
	}
	if declared, found := tc.program.GlobalVarTypes[name]; found {
		return declared, nil
	}
	return Void, semanticErrorf(node, "Variable %s is not defined before use", name)
}

// Reads the type tag of an already checked expression.
func typeOf(expression Expression) DataType {
	switch exp := expression.(type) {
	case *Const:
		return exp.Type
	case *Str:
		return exp.Type
	case *Var:
		return exp.Type
	case *Unary:
		return exp.Type
	case *Binary:
		return exp.Type
	case *Call:
		return exp.Type
	}
	return Void
}

// Human-readable spelling of a type for error messages, Void has no source spelling.
func typename(datatype DataType) string {
	if datatype == Void {
		return "void"
	}
	return string(datatype)
}
