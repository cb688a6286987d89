// Package codegen walks the annotated AST produced by pkg/sema and emits the
// textual VM-ASM program it describes. Every exported entry point is a pure
// function of the AST plus the addresses pkg/sema already assigned: nothing
// here mutates a Node, and the only effect is appending to the internal
// string buffer.
//
// Each node kind maps onto one VM-ASM fragment, dispatched through a single
// switch on ast.Node.Kind following this codebase's closed-variant AST.
package codegen

import (
	"fmt"
	"sort"
	"strings"

	"imp.dev/compiler/pkg/ast"
	"imp.dev/compiler/pkg/session"
	"imp.dev/compiler/pkg/token"
)

// Reserved scratch cell addresses, fixed by the target machine's calling
// convention: R4 is the canonical expression/condition result
// register, R5/R6 hold the materialized constants 0 and 1, R7/R8 are spare
// scratch used only by the multiply/divide/modulo expansions.
const (
	R1 = 1
	R2 = 2
	R3 = 3
	R4 = 4
	R5 = 5
	R6 = 6
	R7 = 7
	R8 = 8
)

// VM-ASM opcodes, used verbatim as the mnemonic half of every emitted line.
const (
	opLoad   = "LOAD"
	opStore  = "STORE"
	opLoadI  = "LOADI"
	opStoreI = "STOREI"
	opAdd    = "ADD"
	opSub    = "SUB"
	opSet    = "SET"
	opHalf   = "HALF"
	opGet    = "GET"
	opPut    = "PUT"
	opJump   = "JUMP"
	opJPos   = "JPOS"
	opJZero  = "JZERO"
	opJNeg   = "JNEG"
	opRtrn   = "RTRN"
	opHalt   = "HALT"
)

// Generator turns one annotated program into its VM-ASM text. It carries no
// state beyond the session it was built from (for symbol/procedure lookups
// during call emission) and the output buffer.
type Generator struct {
	sess *session.Session
	buf  strings.Builder
}

// New returns a Generator ready to emit code for sess's annotated program.
// Annotate must already have run: every Address field the generator reads
// is assumed non-NoAddress.
func New(sess *session.Session) *Generator {
	return &Generator{sess: sess}
}

// Build emits the full program rooted at root and returns the generated
// VM-ASM text, labels and `SET &N` markers unresolved.
// Running it on the same (sess, root) pair twice yields byte-identical text:
// emission reads only addresses and node ids that never change after
// annotation, never node state it could itself perturb.
func (g *Generator) Build(root *ast.Node) string {
	g.buf.Reset()
	g.buildProgramAll(root)
	return g.buf.String()
}

// --- raw emission helpers ---------------------------------------------------

// instr emits a one-operand instruction line.
func (g *Generator) instr(op string, operand int) {
	fmt.Fprintf(&g.buf, "%s %d\n", op, operand)
}

// instr0 emits a bare instruction (HALF, HALT) that takes no operand.
func (g *Generator) instr0(op string) {
	fmt.Fprintf(&g.buf, "%s\n", op)
}

// jump emits a symbolic jump/branch, resolved to a relative offset by
// pkg/resolve once the whole program has been generated.
func (g *Generator) jump(op, label string) {
	fmt.Fprintf(&g.buf, "%s *%s\n", op, label)
}

// setRel emits the address-relative "skip N lines from here" scratch marker
// pkg/resolve turns into an absolute line number.
func (g *Generator) setRel(n int) {
	fmt.Fprintf(&g.buf, "SET &%d\n", n)
}

// label emits a label declaration inline, with no trailing newline: the
// instruction that follows lands on the same physical output line. Several
// labels may stack this way on one line (e.g. a loop's END label landing
// right where its enclosing IF's END label also falls).
func (g *Generator) label(name string) {
	fmt.Fprintf(&g.buf, "*%s ", name)
}

// --- PROGRAM_ALL -------------------------------------------------------------

func (g *Generator) buildProgramAll(root *ast.Node) {
	// INIT constants: R6 = 1, R5 = 0.
	g.instr(opSet, 1)
	g.instr(opStore, R6)
	g.instr0(opHalf)
	g.instr(opStore, R5)

	// Materialize every distinct numeric literal interned during annotation,
	// in address order so two runs over the same program agree byte for
	// byte (the literal pool itself is a plain Go map with no ordering).
	for _, lit := range sortedLiterals(g.sess.Sema.InternedNumbers()) {
		g.instr(opSet, int(lit.value))
		g.instr(opStore, lit.addr)
	}

	g.jump(opJump, "MAIN")

	var main *ast.Node
	for _, child := range root.Children {
		switch child.Kind {
		case ast.KProcedures:
			g.buildProcedure(child)
		case ast.KMain:
			main = child
		}
	}

	g.label("MAIN")
	g.buildMain(main)
	g.instr0(opHalt)
}

type literal struct {
	value int64
	addr  int
}

func sortedLiterals(interned map[int64]int) []literal {
	out := make([]literal, 0, len(interned))
	for v, a := range interned {
		out = append(out, literal{value: v, addr: a})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].addr < out[j].addr })
	return out
}

// --- PROCEDURES / PROC_HEAD --------------------------------------------------

// buildProcedure emits one procedure's body. proc_head never emits anything
// of its own (formals were already annotated with addresses during
// semantic analysis); only its anchor token's resolved return-slot address
// is read here, for the closing RTRN.
func (g *Generator) buildProcedure(proc *ast.Node) {
	head, _, cmds := proc.Child(0), proc.Child(1), proc.Child(2)
	g.label("PROC_" + head.Anchor.Lexeme)
	g.buildCommands(cmds)
	g.instr(opRtrn, head.Anchor.Address)
}

// --- MAIN / COMMANDS ----------------------------------------------------------

func (g *Generator) buildMain(main *ast.Node) {
	_, cmds := main.Child(0), main.Child(1)
	g.buildCommands(cmds)
}

func (g *Generator) buildCommands(cmds *ast.Node) {
	for _, cmd := range cmds.Children {
		g.buildCommand(cmd)
	}
}

func (g *Generator) buildCommand(cmd *ast.Node) {
	switch cmd.Kind {
	case ast.KAssignment:
		g.buildAssignment(cmd)
	case ast.KIf:
		g.buildIf(cmd)
	case ast.KIfElse:
		g.buildIfElse(cmd)
	case ast.KWhile:
		g.buildWhile(cmd)
	case ast.KRepeat:
		g.buildRepeat(cmd)
	case ast.KForTo:
		g.buildForTo(cmd)
	case ast.KForDownTo:
		g.buildForDownTo(cmd)
	case ast.KRead:
		g.buildRead(cmd)
	case ast.KWrite:
		g.buildWrite(cmd)
	case ast.KProcCallCommand:
		g.buildProcCall(cmd.Child(0))
	}
}

// --- ASSIGNMENT_COMMAND -------------------------------------------------------

// buildAssignment implements the four lvalue cases: scalar vs array target,
// crossed with plain vs by-reference (ARG/T_ARG) role.
func (g *Generator) buildAssignment(cmd *ast.Node) {
	target, rvalue := cmd.Child(0), cmd.Child(1)
	isArray := len(target.Children) == 1

	switch {
	case !isArray && target.Anchor.Role != token.RoleArg:
		g.buildExpression(rvalue) // -> R4
		g.instr(opLoad, R4)
		g.instr(opStore, target.Anchor.Address)

	case !isArray && target.Anchor.Role == token.RoleArg:
		g.buildExpression(rvalue) // -> R4
		g.instr(opLoad, target.Anchor.Address)
		g.instr(opStore, R3)
		g.instr(opLoad, R4)
		g.instr(opStoreI, R3)

	case isArray && target.Anchor.Role != token.RoleTArg:
		g.buildExpression(rvalue) // -> R4
		g.instr(opLoad, R4)
		g.instr(opStore, R1)
		g.buildOperand(target.Children[0]) // index -> R4
		g.instr(opSet, target.Anchor.Address)
		g.instr(opAdd, R4)
		g.instr(opStore, R3)
		g.instr(opLoad, R1)
		g.instr(opStoreI, R3)

	default: // isArray && T_ARG
		// Same shape as the plain-array case: the rvalue is parked in R1
		// before the element address is formed, because the / and % expansions
		// use R3 as scratch and would clobber an address computed up front.
		// The index is always a bare number or scalar, so it can't disturb R1.
		g.buildExpression(rvalue) // -> R4
		g.instr(opLoad, R4)
		g.instr(opStore, R1)
		g.buildOperand(target.Children[0]) // index -> R4
		g.instr(opLoad, target.Anchor.Address)
		g.instr(opAdd, R4)
		g.instr(opStore, R3)
		g.instr(opLoad, R1)
		g.instr(opStoreI, R3)
	}
}

// --- VALUE / IDENTIFIER / NUMBER / TABLE --------------------------------------

// buildValue unwraps a KValue node and evaluates the operand it wraps.
func (g *Generator) buildValue(val *ast.Node) {
	g.buildOperand(val.Child(0))
}

// buildOperand evaluates a KNumber leaf or a KIdentifier leaf (scalar or,
// with one KNumber/KIdentifier index child, an array element) into R4.
func (g *Generator) buildOperand(n *ast.Node) {
	switch n.Kind {
	case ast.KNumber:
		g.instr(opLoad, n.Anchor.Address)
		g.instr(opStore, R4)

	case ast.KIdentifier:
		if len(n.Children) == 1 {
			g.buildOperand(n.Children[0]) // index -> R4
			if n.Anchor.Role == token.RoleTArg {
				g.instr(opLoad, n.Anchor.Address)
			} else {
				g.instr(opSet, n.Anchor.Address)
			}
			g.instr(opAdd, R4)
			g.instr(opLoadI, 0)
			g.instr(opStore, R4)
			return
		}
		if n.Anchor.Role == token.RoleArg {
			g.instr(opLoadI, n.Anchor.Address)
		} else {
			g.instr(opLoad, n.Anchor.Address)
		}
		g.instr(opStore, R4)
	}
}

// --- EXPRESSION ----------------------------------------------------------------

// buildExpression evaluates an Expression node into R4: a bare pass-through
// value, a +/- combination, or one of the */%% loop expansions in arith.go.
func (g *Generator) buildExpression(expr *ast.Node) {
	if expr.Op == "" {
		g.buildValue(expr.Child(0))
		return
	}

	switch expr.Op {
	case token.T_PLUS, token.T_MINUS:
		g.buildValue(expr.Child(1)) // b -> R4
		g.instr(opLoad, R4)
		g.instr(opStore, R1)
		g.buildValue(expr.Child(0)) // a -> R4
		g.instr(opLoad, R4)
		if expr.Op == token.T_PLUS {
			g.instr(opAdd, R1)
		} else {
			g.instr(opSub, R1)
		}
		g.instr(opStore, R4)

	case token.T_MUL:
		g.buildMultiply(expr)
	case token.T_DIV:
		g.buildDivide(expr)
	case token.T_MOD:
		g.buildModulo(expr)
	}
}

// --- CONDITION -------------------------------------------------------------

// buildCondition evaluates a Condition node into a 0/1 result in R4, using
// a fixed five-instruction decode of the sign of a-b. Unlike the
// loop bodies in arith.go, the decode's jump distances never depend on a
// child subtree's size (everything between the SUB and the decode is pure
// register traffic), so literal relative offsets are safe here and are not
// run through the label resolver.
func (g *Generator) buildCondition(cond *ast.Node) {
	g.buildValue(cond.Child(1)) // b -> R4
	g.instr(opLoad, R4)
	g.instr(opStore, R1)
	g.buildValue(cond.Child(0)) // a -> R4
	g.instr(opLoad, R4)
	g.instr(opSub, R1) // a - b

	var jop string
	var trueReg, falseReg int
	switch cond.Op {
	case token.T_LT:
		jop, trueReg, falseReg = opJNeg, R6, R5
	case token.T_LTE:
		jop, trueReg, falseReg = opJPos, R5, R6
	case token.T_EQ:
		jop, trueReg, falseReg = opJZero, R6, R5
	case token.T_NEQ:
		jop, trueReg, falseReg = opJZero, R5, R6
	case token.T_GT:
		jop, trueReg, falseReg = opJPos, R6, R5
	case token.T_GTE:
		jop, trueReg, falseReg = opJNeg, R5, R6
	}

	g.instr(jop, 3)
	g.instr(opLoad, falseReg)
	g.instr(opJump, 2)
	g.instr(opLoad, trueReg)
	g.instr(opStore, R4)
}

// --- IF / IF_ELSE / WHILE / REPEAT / FOR ---------------------------------------

func (g *Generator) buildIf(cmd *ast.Node) {
	cond, then := cmd.Child(0), cmd.Child(1)
	end := fmt.Sprintf("END_IF_%d", cmd.ID)

	g.buildCondition(cond)
	g.instr(opLoad, R4)
	g.jump(opJZero, end)
	g.buildCommands(then)
	g.label(end)
}

func (g *Generator) buildIfElse(cmd *ast.Node) {
	cond, then, els := cmd.Child(0), cmd.Child(1), cmd.Child(2)
	thenLabel := fmt.Sprintf("THEN_IF_%d", cmd.ID)
	end := fmt.Sprintf("END_IF_%d", cmd.ID)

	g.buildCondition(cond)
	g.instr(opLoad, R4)
	g.jump(opJPos, thenLabel)
	g.buildCommands(els)
	g.jump(opJump, end)
	g.label(thenLabel)
	g.buildCommands(then)
	g.label(end)
}

func (g *Generator) buildWhile(cmd *ast.Node) {
	cond, body := cmd.Child(0), cmd.Child(1)
	condLabel := fmt.Sprintf("COND_WHILE_%d", cmd.ID)
	end := fmt.Sprintf("END_WHILE_%d", cmd.ID)

	g.label(condLabel)
	g.buildCondition(cond)
	g.instr(opLoad, R4)
	g.jump(opJZero, end)
	g.buildCommands(body)
	g.jump(opJump, condLabel)
	g.label(end)
}

func (g *Generator) buildRepeat(cmd *ast.Node) {
	body, cond := cmd.Child(0), cmd.Child(1)
	start := fmt.Sprintf("REPEAT_START_%d", cmd.ID)

	g.label(start)
	g.buildCommands(body)
	g.buildCondition(cond)
	g.instr(opLoad, R4)
	g.jump(opJZero, start)
}

func (g *Generator) buildForTo(cmd *ast.Node) {
	lo, hi, body := cmd.Child(0), cmd.Child(1), cmd.Child(2)
	iter := cmd.Anchor.Address
	bodyLabel := fmt.Sprintf("FOR_BODY_%d", cmd.ID)
	end := fmt.Sprintf("FOR_END_%d", cmd.ID)

	g.buildValue(lo)
	g.instr(opLoad, R4)
	g.instr(opStore, iter)
	g.label(bodyLabel)
	g.buildValue(hi)
	g.instr(opLoad, iter)
	g.instr(opSub, R4)
	g.jump(opJPos, end)
	g.buildCommands(body)
	g.instr(opLoad, iter)
	g.instr(opAdd, R6)
	g.instr(opStore, iter)
	g.jump(opJump, bodyLabel)
	g.label(end)
}

func (g *Generator) buildForDownTo(cmd *ast.Node) {
	hi, lo, body := cmd.Child(0), cmd.Child(1), cmd.Child(2)
	iter := cmd.Anchor.Address
	bodyLabel := fmt.Sprintf("FOR_BODY_%d", cmd.ID)
	end := fmt.Sprintf("FOR_END_%d", cmd.ID)

	g.buildValue(hi)
	g.instr(opLoad, R4)
	g.instr(opStore, iter)
	g.label(bodyLabel)
	g.buildValue(lo)
	g.instr(opLoad, iter)
	g.instr(opSub, R4)
	g.jump(opJNeg, end)
	g.buildCommands(body)
	g.instr(opLoad, iter)
	g.instr(opSub, R6)
	g.instr(opStore, iter)
	g.jump(opJump, bodyLabel)
	g.label(end)
}

// --- READ / WRITE ----------------------------------------------------------

// buildRead reads a value into the target's cell. A plain scalar reads
// straight into its own cell; everything by-reference reads into R4 first
// and stores through the pointer the formal's cell holds.
func (g *Generator) buildRead(cmd *ast.Node) {
	target := cmd.Child(0)
	isArray := len(target.Children) == 1

	switch {
	case !isArray && target.Anchor.Role != token.RoleArg:
		g.instr(opGet, target.Anchor.Address)

	case !isArray && target.Anchor.Role == token.RoleArg:
		g.instr(opGet, R4)
		g.instr(opLoad, R4)
		g.instr(opStoreI, target.Anchor.Address)

	case isArray && target.Anchor.Role == token.RoleTArg:
		g.buildOperand(target.Children[0]) // index -> R4
		g.instr(opLoad, target.Anchor.Address)
		g.instr(opAdd, R4)
		g.instr(opStore, R3)
		g.instr(opGet, R4)
		g.instr(opLoad, R4)
		g.instr(opStoreI, R3)

	default: // isArray && PLAIN
		g.buildOperand(target.Children[0]) // index -> R4
		g.instr(opSet, target.Anchor.Address)
		g.instr(opAdd, R4)
		g.instr(opStore, R3)
		g.instr(opGet, R4)
		g.instr(opLoad, R4)
		g.instr(opStoreI, R3)
	}
}

func (g *Generator) buildWrite(cmd *ast.Node) {
	g.buildValue(cmd.Child(0))
	g.instr(opPut, R4)
}

// --- PROC_CALL_COMMAND / PROC_CALL ----------------------------------------------

// buildProcCall emits the argument-passing sequence and call jump for one
// procedure call. Arity/role mismatches were already logged to sess.Diag
// during annotation (pkg/sema); if the callee couldn't be resolved there is
// nothing safe left to emit and the call is silently skipped, matching the
// rest of the pipeline's best-effort continuation policy.
func (g *Generator) buildProcCall(call *ast.Node) {
	entry, ok := g.sess.Sema.LookupProc(call.Anchor.Lexeme)
	if !ok {
		return
	}

	args := call.Child(0)
	n := len(args.Children)
	if len(entry.Formals) < n {
		n = len(entry.Formals)
	}

	for i := 0; i < n; i++ {
		actual := args.Children[i].Anchor
		formal := entry.Formals[i].Tok
		if actual.Role == token.RoleArg || actual.Role == token.RoleTArg {
			g.instr(opLoad, actual.Address) // actual already holds an address: pass it through
		} else {
			g.instr(opSet, actual.Address) // materialize the actual's own address as a value
		}
		g.instr(opStore, formal.Address)
	}

	g.setRel(3)
	g.instr(opStore, entry.Name.Address)
	g.jump(opJump, "PROC_"+entry.Name.Lexeme)
}
