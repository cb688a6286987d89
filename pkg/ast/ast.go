// Package ast defines the single, closed Node representation produced by
// pkg/impparse and consumed by pkg/sema and pkg/codegen.
//
// Rather than one Go type per grammar production, every tree shape is an
// instance of the same Node struct tagged by Kind. This keeps the AST walker
// in pkg/codegen a single switch on Kind instead of a family of visitor methods.
package ast

import "imp.dev/compiler/pkg/token"

// Kind tags the grammar production a Node was built from.
type Kind string

const (
	KProgramAll      Kind = "ProgramAll"
	KProcedures      Kind = "Procedures"
	KProcHead        Kind = "ProcHead"
	KArgsDecl        Kind = "ArgsDecl"
	KProcCallCommand Kind = "ProcCallCommand"
	KProcCall        Kind = "ProcCall"
	KArgs            Kind = "Args"
	KMain            Kind = "Main"
	KCommands        Kind = "Commands"
	KAssignment      Kind = "AssignmentCommand"
	KIfElse          Kind = "IfElseCommand"
	KIf              Kind = "IfCommand"
	KWhile           Kind = "WhileCommand"
	KRepeat          Kind = "RepeatCommand"
	KForTo           Kind = "ForToCommand"
	KForDownTo       Kind = "ForDownToCommand"
	KRead            Kind = "ReadCommand"
	KWrite           Kind = "WriteCommand"
	KDeclarations    Kind = "Declarations"
	KExpression      Kind = "Expression"
	KCondition       Kind = "Condition"
	KValue           Kind = "Value"
	KNumber          Kind = "Number"
	KIdentifier      Kind = "Identifier"
	KTable           Kind = "Table"
)

// Node is the single tagged-variant tree node for the whole Imp AST.
//
// Anchor carries the node's primary token (an identifier name, a number
// literal, a procedure name, or a FOR loop's iterator); nodes with no such
// token carry the zero Token.
// Op carries the operator kind for KExpression/KCondition nodes; on a
// KIdentifier leaf inside KArgsDecl/KDeclarations it's instead reused as a
// table-parameter/array marker (token.T_TABLE) since neither context needs
// a real operator. It's the zero value everywhere else. Extra carries
// secondary tokens that aren't full subtrees of their own, e.g. an array
// declaration's lo/hi bounds.
type Node struct {
	ID       int
	Kind     Kind
	Anchor   token.Token
	Op       token.Kind
	Children []*Node
	Extra    []token.Token
}

// New allocates a Node of the given Kind anchored on tok, with id supplied
// by the caller (pkg/session hands out monotonically increasing ids so that
// pkg/codegen can mint globally-unique label suffixes from a node's ID).
func New(id int, kind Kind, tok token.Token, children ...*Node) *Node {
	return &Node{ID: id, Kind: kind, Anchor: tok, Children: children}
}

// WithOp sets the operator kind on an Expression/Condition node and returns
// the node for chaining.
func (n *Node) WithOp(op token.Kind) *Node {
	n.Op = op
	return n
}

// WithExtra appends secondary tokens to the node and returns it for chaining.
func (n *Node) WithExtra(toks ...token.Token) *Node {
	n.Extra = append(n.Extra, toks...)
	return n
}

// Child returns the i-th child, or nil if the node has fewer children.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}
