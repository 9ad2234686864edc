package dbasic

// ----------------------------------------------------------------------------
// Tree traversal

// This section defines the uniform traversal used by the passes that only care
// about a handful of node kinds.
//
// Walk calls 'visit' on the node and then recurses into the children in their
// natural order (condition before body, left operand before right one). The
// callback decides per node whether the walk should descend further, so a pass
// can register a definition without diving into its initializer or stop at a
// node kind it fully handles itself. Passes that must instead cover every node
// kind exhaustively (the type checker, the code generators) use their own type
// switch with an error default so a forgotten kind fails loudly.

// Applies 'visit' to node and, depending on its answer, to the whole subtree.
// The first error aborts the walk and is handed back unchanged.
func Walk(node Node, visit func(Node) (descend bool, err error)) error {
	descend, err := visit(node)
	if err != nil || !descend {
		return err
	}

	walkAll := func(statements []Statement) error {
		for _, statement := range statements {
			if err := Walk(statement, visit); err != nil {
				return err
			}
		}
		return nil
	}

	switch n := node.(type) {
	case *Program:
		for _, globaldef := range n.GlobalDefs {
			if err := Walk(globaldef, visit); err != nil {
				return err
			}
		}
		for _, funcdef := range n.FuncDefs {
			if err := Walk(funcdef, visit); err != nil {
				return err
			}
		}

	case *FuncDef:
		return walkAll(n.Statements)

	case *GlobalDef:
		return Walk(n.Value, visit)

	case *LocalDef:
		return Walk(n.Value, visit)

	case *Assign:
		return Walk(n.Value, visit)

	case *If:
		if err := Walk(n.Exp, visit); err != nil {
			return err
		}
		if err := walkAll(n.Statements); err != nil {
			return err
		}
		return walkAll(n.ElseStatements)

	case *While:
		if err := Walk(n.Exp, visit); err != nil {
			return err
		}
		return walkAll(n.Statements)

	case *Return:
		if n.Expression != nil {
			return Walk(n.Expression, visit)
		}

	case *Call:
		for _, arg := range n.Args {
			if err := Walk(arg, visit); err != nil {
				return err
			}
		}

	case *Binary:
		if err := Walk(n.Val1, visit); err != nil {
			return err
		}
		return Walk(n.Val2, visit)

	case *Unary:
		return Walk(n.Val, visit)

	case *Var, *Const, *Str:
		// Leaves, nothing to descend into
	}

	return nil
}
