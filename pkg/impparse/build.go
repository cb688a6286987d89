package impparse

import (
	"fmt"

	pc "github.com/prataprc/goparsec"

	"imp.dev/compiler/pkg/ast"
	"imp.dev/compiler/pkg/token"
)

// ----------------------------------------------------------------------------
// AST --> IR
//
// This section walks the generic parsed AST (one pc.Queryable tree) and
// builds pkg/ast's typed Node tree from it in a single depth-first pass.
// OrdChoice productions don't introduce a wrapper node of their own name:
// whichever alternative matched appears directly in the parent's children,
// so callers switch on GetName() to see the concrete alternative. Maybe
// productions do leave a stable placeholder slot, identified by its
// GetName() not matching the wrapped production's name.

var kindByTermName = map[string]token.Kind{
	"PIDENT": token.IDENTIFIER, "INT": token.NUMBER,
	"PROGRAM": token.PROGRAM, "PROCEDURE": token.PROCEDURE, "IS": token.IS,
	"T_BEGIN": token.T_BEGIN, "END": token.END,
	"IF": token.IF, "THEN": token.THEN, "ELSE": token.ELSE, "ENDIF": token.ENDIF,
	"WHILE": token.WHILE, "DO": token.DO, "ENDWHILE": token.ENDWHILE,
	"REPEAT": token.REPEAT, "UNTIL": token.UNTIL,
	"FOR": token.FOR, "ENDFOR": token.ENDFOR, "FROM": token.FROM, "TO": token.TO, "DOWNTO": token.DOWNTO,
	"READ": token.READ, "WRITE": token.WRITE, "T": token.T_TABLE,
	"ASSIGN": token.T_ASSIGN, "PLUS": token.T_PLUS, "MINUS": token.T_MINUS,
	"MUL": token.T_MUL, "DIV": token.T_DIV, "MOD": token.T_MOD,
	"EQ": token.T_EQ, "NEQ": token.T_NEQ, "GT": token.T_GT, "LT": token.T_LT, "GTE": token.T_GTE, "LTE": token.T_LTE,
	"COMMA": token.T_COMMA, "COLON": token.T_COLON, "SEMI": token.T_SEMICOLON,
	"LPAREN": token.T_LPAREN, "RPAREN": token.T_RPAREN,
	"LBRACKET": token.T_LBRACKET, "RBRACKET": token.T_RBRACKET,
}

// term converts a matched terminal node to a pkg/token.Token, recovering its
// source position from pos.
func term(q pc.Queryable, pos *posTracker) token.Token {
	kind, ok := kindByTermName[q.GetName()]
	if !ok {
		kind = token.UNKNOWN
	}
	value := q.GetValue()
	line, col := pos.locate(value)
	return token.New(kind, value, line, col)
}

func (p *Parser) buildProgramAll(root pc.Queryable, pos *posTracker) (*ast.Node, error) {
	if root.GetName() != "program_all" {
		return nil, fmt.Errorf("expected node 'program_all', found %s", root.GetName())
	}
	children := root.GetChildren()
	if len(children) != 2 {
		return nil, fmt.Errorf("malformed 'program_all' node")
	}

	var procs []*ast.Node
	for _, item := range children[0].GetChildren() {
		proc, err := p.buildProcedure(item, pos)
		if err != nil {
			return nil, err
		}
		procs = append(procs, proc)
	}

	main, err := p.buildMain(children[1], pos)
	if err != nil {
		return nil, err
	}

	return ast.New(p.nextID(), ast.KProgramAll, token.Token{}, append(procs, main)...), nil
}

func (p *Parser) buildProcedure(q pc.Queryable, pos *posTracker) (*ast.Node, error) {
	if q.GetName() != "procedure" {
		return nil, fmt.Errorf("expected node 'procedure', found %s", q.GetName())
	}
	children := q.GetChildren() // PROCEDURE, proc_head, IS, maybe_decls, T_BEGIN, commands, END
	if len(children) != 7 {
		return nil, fmt.Errorf("malformed 'procedure' node")
	}

	head := p.buildProcHead(children[1], pos)
	decls := p.buildDeclarations(children[3], pos)
	cmds, err := p.buildCommands(children[5], pos)
	if err != nil {
		return nil, err
	}

	return ast.New(p.nextID(), ast.KProcedures, head.Anchor, head, decls, cmds), nil
}

func (p *Parser) buildMain(q pc.Queryable, pos *posTracker) (*ast.Node, error) {
	if q.GetName() != "main" {
		return nil, fmt.Errorf("expected node 'main', found %s", q.GetName())
	}
	children := q.GetChildren() // PROGRAM, IS, maybe_decls, T_BEGIN, commands, END
	if len(children) != 6 {
		return nil, fmt.Errorf("malformed 'main' node")
	}

	decls := p.buildDeclarations(children[2], pos)
	cmds, err := p.buildCommands(children[4], pos)
	if err != nil {
		return nil, err
	}

	return ast.New(p.nextID(), ast.KMain, token.Token{}, decls, cmds), nil
}

func (p *Parser) buildProcHead(q pc.Queryable, pos *posTracker) *ast.Node {
	children := q.GetChildren() // PIDENT, LPAREN, args_decl, RPAREN
	name := term(children[0], pos)
	argsDecl := p.buildArgsDecl(children[2], pos)
	return ast.New(p.nextID(), ast.KProcHead, name, argsDecl)
}

func (p *Parser) buildArgsDecl(q pc.Queryable, pos *posTracker) *ast.Node {
	node := ast.New(p.nextID(), ast.KArgsDecl, token.Token{})
	for _, item := range q.GetChildren() {
		if item.GetName() == "t_arg" {
			ch := item.GetChildren() // T, PIDENT
			leaf := ast.New(p.nextID(), ast.KIdentifier, term(ch[1], pos))
			leaf.Op = token.T_TABLE
			node.Children = append(node.Children, leaf)
			continue
		}
		leaf := ast.New(p.nextID(), ast.KIdentifier, term(item, pos))
		node.Children = append(node.Children, leaf)
	}
	return node
}

// buildDeclarations always returns a KDeclarations node, with no children
// when the optional declarations section was absent entirely.
func (p *Parser) buildDeclarations(maybeQ pc.Queryable, pos *posTracker) *ast.Node {
	node := ast.New(p.nextID(), ast.KDeclarations, token.Token{})
	if maybeQ.GetName() != "declarations" {
		return node
	}
	for _, item := range maybeQ.GetChildren() {
		if item.GetName() == "array_decl" {
			ch := item.GetChildren() // PIDENT, LBRACKET, INT(lo), COLON, INT(hi), RBRACKET
			leaf := ast.New(p.nextID(), ast.KIdentifier, term(ch[0], pos))
			leaf.Op = token.T_TABLE
			leaf.Extra = []token.Token{term(ch[2], pos), term(ch[4], pos)}
			node.Children = append(node.Children, leaf)
			continue
		}
		node.Children = append(node.Children, ast.New(p.nextID(), ast.KIdentifier, term(item, pos)))
	}
	return node
}

func (p *Parser) buildCommands(q pc.Queryable, pos *posTracker) (*ast.Node, error) {
	if q.GetName() != "commands" {
		return nil, fmt.Errorf("expected node 'commands', found %s", q.GetName())
	}
	node := ast.New(p.nextID(), ast.KCommands, token.Token{})
	for _, item := range q.GetChildren() {
		cmd, err := p.buildCommand(item, pos)
		if err != nil {
			return nil, err
		}
		node.Children = append(node.Children, cmd)
	}
	return node, nil
}

func (p *Parser) buildCommand(q pc.Queryable, pos *posTracker) (*ast.Node, error) {
	switch q.GetName() {
	case "assign_stmt":
		children := q.GetChildren() // identifier, ASSIGN, expression, SEMI
		target := p.buildIdentifier(children[0], pos)
		expr := p.buildExpression(children[2], pos)
		return ast.New(p.nextID(), ast.KAssignment, token.Token{}, target, expr), nil

	case "if_stmt":
		children := q.GetChildren() // IF, condition, THEN, commands, maybe_else, ENDIF
		cond := p.buildCondition(children[1], pos)
		thenCmds, err := p.buildCommands(children[3], pos)
		if err != nil {
			return nil, err
		}
		elseQ := children[4]
		if elseQ.GetName() == "else_part" {
			ec := elseQ.GetChildren() // ELSE, commands
			elseCmds, err := p.buildCommands(ec[1], pos)
			if err != nil {
				return nil, err
			}
			return ast.New(p.nextID(), ast.KIfElse, token.Token{}, cond, thenCmds, elseCmds), nil
		}
		return ast.New(p.nextID(), ast.KIf, token.Token{}, cond, thenCmds), nil

	case "while_stmt":
		children := q.GetChildren() // WHILE, condition, DO, commands, ENDWHILE
		cond := p.buildCondition(children[1], pos)
		body, err := p.buildCommands(children[3], pos)
		if err != nil {
			return nil, err
		}
		return ast.New(p.nextID(), ast.KWhile, token.Token{}, cond, body), nil

	case "repeat_stmt":
		children := q.GetChildren() // REPEAT, commands, UNTIL, condition, SEMI
		body, err := p.buildCommands(children[1], pos)
		if err != nil {
			return nil, err
		}
		cond := p.buildCondition(children[3], pos)
		return ast.New(p.nextID(), ast.KRepeat, token.Token{}, body, cond), nil

	case "for_stmt":
		children := q.GetChildren() // FOR, PIDENT, FROM, value, dir, value, DO, commands, ENDFOR
		iter := term(children[1], pos)
		from := p.buildValue(children[3], pos)
		dir := children[4]
		to := p.buildValue(children[5], pos)
		body, err := p.buildCommands(children[7], pos)
		if err != nil {
			return nil, err
		}
		kind := ast.KForTo
		if dir.GetName() == "DOWNTO" {
			kind = ast.KForDownTo
		}
		return ast.New(p.nextID(), kind, iter, from, to, body), nil

	case "proc_call_stmt":
		children := q.GetChildren() // proc_call, SEMI
		call := p.buildProcCall(children[0], pos)
		return ast.New(p.nextID(), ast.KProcCallCommand, token.Token{}, call), nil

	case "read_stmt":
		children := q.GetChildren() // READ, identifier, SEMI
		target := p.buildIdentifier(children[1], pos)
		return ast.New(p.nextID(), ast.KRead, token.Token{}, target), nil

	case "write_stmt":
		children := q.GetChildren() // WRITE, value, SEMI
		val := p.buildValue(children[1], pos)
		return ast.New(p.nextID(), ast.KWrite, token.Token{}, val), nil

	default:
		return nil, fmt.Errorf("unrecognized command node '%s'", q.GetName())
	}
}

func (p *Parser) buildProcCall(q pc.Queryable, pos *posTracker) *ast.Node {
	children := q.GetChildren() // PIDENT, LPAREN, args, RPAREN
	name := term(children[0], pos)
	args := p.buildArgs(children[2], pos)
	return ast.New(p.nextID(), ast.KProcCall, name, args)
}

func (p *Parser) buildArgs(q pc.Queryable, pos *posTracker) *ast.Node {
	node := ast.New(p.nextID(), ast.KArgs, token.Token{})
	for _, item := range q.GetChildren() {
		node.Children = append(node.Children, ast.New(p.nextID(), ast.KIdentifier, term(item, pos)))
	}
	return node
}

// buildIdentifier handles the flattened "identifier" OrdChoice: either a
// bare pidentifier or an array access (pidentifier "[" index "]").
func (p *Parser) buildIdentifier(q pc.Queryable, pos *posTracker) *ast.Node {
	if q.GetName() == "array_access" {
		children := q.GetChildren() // PIDENT, LBRACKET, index, RBRACKET
		base := term(children[0], pos)
		idxQ := children[2]
		var idx *ast.Node
		if idxQ.GetName() == "INT" {
			idx = ast.New(p.nextID(), ast.KNumber, term(idxQ, pos))
		} else {
			idx = ast.New(p.nextID(), ast.KIdentifier, term(idxQ, pos))
		}
		return ast.New(p.nextID(), ast.KIdentifier, base, idx)
	}
	return ast.New(p.nextID(), ast.KIdentifier, term(q, pos))
}

// buildValue handles the flattened "value" OrdChoice (identifier | number),
// wrapping the result in a KValue node.
func (p *Parser) buildValue(q pc.Queryable, pos *posTracker) *ast.Node {
	var inner *ast.Node
	if q.GetName() == "INT" {
		inner = ast.New(p.nextID(), ast.KNumber, term(q, pos))
	} else {
		inner = p.buildIdentifier(q, pos)
	}
	return ast.New(p.nextID(), ast.KValue, token.Token{}, inner)
}

func (p *Parser) buildExpression(q pc.Queryable, pos *posTracker) *ast.Node {
	children := q.GetChildren() // value, maybe_rhs
	left := p.buildValue(children[0], pos)
	rhsQ := children[1]
	if rhsQ.GetName() == "rhs" {
		rc := rhsQ.GetChildren() // expr_op, value
		op := term(rc[0], pos)
		right := p.buildValue(rc[1], pos)
		node := ast.New(p.nextID(), ast.KExpression, token.Token{}, left, right)
		node.Op = op.Kind
		return node
	}
	return ast.New(p.nextID(), ast.KExpression, token.Token{}, left)
}

func (p *Parser) buildCondition(q pc.Queryable, pos *posTracker) *ast.Node {
	children := q.GetChildren() // value, cond_op, value
	left := p.buildValue(children[0], pos)
	op := term(children[1], pos)
	right := p.buildValue(children[2], pos)
	node := ast.New(p.nextID(), ast.KCondition, token.Token{}, left, right)
	node.Op = op.Kind
	return node
}
