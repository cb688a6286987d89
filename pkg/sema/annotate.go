package sema

import (
	"strconv"

	"imp.dev/compiler/pkg/ast"
	"imp.dev/compiler/pkg/diag"
	"imp.dev/compiler/pkg/token"
)

// Annotate walks the raw AST produced by pkg/impparse and fills in every
// token's Address/Role/Mutable fields, using t as the symbol table and
// address allocator. Errors are logged to t's diagnostic sink rather than
// aborting: annotation always finishes a full walk so later phases (and
// later errors) still get a chance to run, matching the rest of the
// pipeline's best-effort continuation policy.
//
// Imp compiles procedures strictly in declaration order and registers each
// one in the program-wide procedure table before walking its own body, so a
// call to the procedure itself or to any procedure declared earlier resolves,
// but a call to one declared later does not. Each procedure has one
// return-address cell and one cell per formal, so a call that re-enters a
// procedure still running overwrites the outer call's return address and
// arguments.
func Annotate(t *Table, root *ast.Node) {
	for _, child := range root.Children {
		switch child.Kind {
		case ast.KProcedures:
			annotateProcedure(t, child)
		case ast.KMain:
			annotateMain(t, child)
		}
	}
}

func annotateProcedure(t *Table, proc *ast.Node) {
	head, decls, cmds := proc.Child(0), proc.Child(1), proc.Child(2)

	t.BeginScope()
	defer t.EndScope()

	argsDecl := head.Child(0)
	formals := make([]*VarInfo, 0, len(argsDecl.Children))
	for _, leaf := range argsDecl.Children {
		formals = append(formals, t.DeclareFormal(&leaf.Anchor, leaf.Op == token.T_TABLE))
	}
	t.DeclareProc(&head.Anchor, formals)

	annotateDeclarations(t, decls)
	annotateCommands(t, cmds)
}

func annotateMain(t *Table, main *ast.Node) {
	decls, cmds := main.Child(0), main.Child(1)

	t.BeginScope()
	defer t.EndScope()

	annotateDeclarations(t, decls)
	annotateCommands(t, cmds)
}

func annotateDeclarations(t *Table, decls *ast.Node) {
	for _, leaf := range decls.Children {
		if leaf.Op == token.T_TABLE {
			lo := parseLiteral(leaf.Extra[0])
			hi := parseLiteral(leaf.Extra[1])
			t.DeclareArray(&leaf.Anchor, lo, hi)
			continue
		}
		t.DeclareScalar(&leaf.Anchor)
	}
}

func annotateCommands(t *Table, cmds *ast.Node) {
	for _, cmd := range cmds.Children {
		annotateCommand(t, cmd)
	}
}

func annotateCommand(t *Table, cmd *ast.Node) {
	switch cmd.Kind {
	case ast.KAssignment:
		target, expr := cmd.Child(0), cmd.Child(1)
		annotateIdentifier(t, target)
		if !target.Anchor.Mutable {
			t.sink.Errorf(diag.ImmutableWrite, &target.Anchor, "cannot assign to immutable identifier '%s'", target.Anchor.Lexeme)
		}
		annotateExpression(t, expr)

	case ast.KIfElse:
		annotateCondition(t, cmd.Child(0))
		annotateCommands(t, cmd.Child(1))
		annotateCommands(t, cmd.Child(2))

	case ast.KIf:
		annotateCondition(t, cmd.Child(0))
		annotateCommands(t, cmd.Child(1))

	case ast.KWhile:
		annotateCondition(t, cmd.Child(0))
		annotateCommands(t, cmd.Child(1))

	case ast.KRepeat:
		annotateCommands(t, cmd.Child(0))
		annotateCondition(t, cmd.Child(1))

	case ast.KForTo, ast.KForDownTo:
		annotateValue(t, cmd.Child(0))
		annotateValue(t, cmd.Child(1))
		t.DeclareIterator(&cmd.Anchor)
		annotateCommands(t, cmd.Child(2))

	case ast.KRead:
		target := cmd.Child(0)
		annotateIdentifier(t, target)
		if !target.Anchor.Mutable {
			t.sink.Errorf(diag.ImmutableWrite, &target.Anchor, "cannot read into immutable identifier '%s'", target.Anchor.Lexeme)
		}

	case ast.KWrite:
		annotateValue(t, cmd.Child(0))

	case ast.KProcCallCommand:
		annotateProcCall(t, cmd.Child(0))
	}
}

func annotateIdentifier(t *Table, id *ast.Node) {
	info, ok := t.Resolve(&id.Anchor)
	if !ok {
		return
	}

	if len(id.Children) == 1 {
		idx := id.Children[0]
		if !info.IsArray {
			t.sink.Errorf(diag.ArgKind, &id.Anchor, "identifier '%s' is not an array", id.Anchor.Lexeme)
		}
		switch idx.Kind {
		case ast.KIdentifier:
			annotateIdentifier(t, idx)
		case ast.KNumber:
			idx.Anchor.Address = t.InternNumber(parseLiteral(idx.Anchor))
		}
		return
	}

	if info.IsArray {
		t.sink.Errorf(diag.ArgKind, &id.Anchor, "array '%s' used without an index", id.Anchor.Lexeme)
	}
}

func annotateValue(t *Table, val *ast.Node) {
	inner := val.Children[0]
	switch inner.Kind {
	case ast.KNumber:
		inner.Anchor.Address = t.InternNumber(parseLiteral(inner.Anchor))
	case ast.KIdentifier:
		annotateIdentifier(t, inner)
	}
}

func annotateExpression(t *Table, expr *ast.Node) {
	for _, v := range expr.Children {
		annotateValue(t, v)
	}
}

func annotateCondition(t *Table, cond *ast.Node) {
	for _, v := range cond.Children {
		annotateValue(t, v)
	}
}

func annotateProcCall(t *Table, call *ast.Node) {
	args := call.Child(0)
	entry, ok := t.ResolveProc(&call.Anchor)
	if !ok {
		for _, a := range args.Children {
			t.Resolve(&a.Anchor)
		}
		return
	}

	if len(args.Children) != len(entry.Formals) {
		t.sink.Errorf(diag.ArgCount, &call.Anchor, "procedure '%s' expects %d argument(s), got %d",
			call.Anchor.Lexeme, len(entry.Formals), len(args.Children))
	}

	n := len(args.Children)
	if len(entry.Formals) < n {
		n = len(entry.Formals)
	}
	for i := 0; i < n; i++ {
		argLeaf := args.Children[i]
		info, ok := t.Resolve(&argLeaf.Anchor)
		if !ok {
			continue
		}
		if info.IsArray != entry.Formals[i].IsArray {
			t.sink.Errorf(diag.ArgKind, &argLeaf.Anchor, "argument %d to '%s' has the wrong kind (array vs scalar)",
				i+1, call.Anchor.Lexeme)
		}
	}
}

func parseLiteral(tok token.Token) int64 {
	v, _ := strconv.ParseInt(tok.Lexeme, 10, 64)
	return v
}
