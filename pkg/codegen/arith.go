package codegen

import (
	"fmt"

	"imp.dev/compiler/pkg/ast"
)

// Multiplication, division and modulo each lower to a small loop instead of
// a single instruction, so unlike every other Expression case their jump
// targets can't be computed as a fixed literal offset: the distance between
// a branch and its target depends on how large the operand subtrees turned
// out to be. Every branch below is therefore a symbolic label, left for
// pkg/resolve to turn into a relative offset once the whole program is
// known — never a hand-counted number, which is exactly the kind of
// fragile magic offset this lowering is designed to avoid.

// buildMultiply evaluates a*b into R4 via sign-extraction followed by a
// binary shift-and-add loop over the absolute values: R1 holds the
// doubling multiplicand, R2 the halving multiplier, R4 the running sum.
func (g *Generator) buildMultiply(expr *ast.Node) {
	id := expr.ID
	loop := fmt.Sprintf("MUL_LOOP_%d", id)
	even := fmt.Sprintf("MUL_EVEN_%d", id)
	done := fmt.Sprintf("MUL_DONE_%d", id)
	pos := fmt.Sprintf("MUL_POS_%d", id)
	negA := fmt.Sprintf("MUL_NEG_A_%d", id)
	aDone := fmt.Sprintf("MUL_A_DONE_%d", id)
	negB := fmt.Sprintf("MUL_NEG_B_%d", id)
	bDone := fmt.Sprintf("MUL_B_DONE_%d", id)

	g.buildValue(expr.Child(1)) // b -> R4
	g.instr(opLoad, R4)
	g.instr(opStore, R2)
	g.buildValue(expr.Child(0)) // a -> R4
	g.instr(opLoad, R4)
	g.instr(opStore, R1)

	g.instr(opLoad, R5) // sign = 0 (even count of negative operands)
	g.instr(opStore, R7)

	// Negate R1 in place and flip the sign flag if a < 0.
	g.instr(opLoad, R1)
	g.jump(opJNeg, negA)
	g.jump(opJump, aDone)
	g.label(negA)
	g.instr(opLoad, R1)
	g.instr(opSub, R1)
	g.instr(opSub, R1)
	g.instr(opStore, R1)
	g.instr(opLoad, R6)
	g.instr(opSub, R7)
	g.instr(opStore, R7)
	g.label(aDone)

	// Same for R2/b.
	g.instr(opLoad, R2)
	g.jump(opJNeg, negB)
	g.jump(opJump, bDone)
	g.label(negB)
	g.instr(opLoad, R2)
	g.instr(opSub, R2)
	g.instr(opSub, R2)
	g.instr(opStore, R2)
	g.instr(opLoad, R6)
	g.instr(opSub, R7)
	g.instr(opStore, R7)
	g.label(bDone)

	g.instr(opLoad, R5) // accumulator = 0
	g.instr(opStore, R4)

	g.label(loop)
	g.instr(opLoad, R2)
	g.jump(opJZero, done)
	g.instr(opLoad, R2)
	g.instr0(opHalf)
	g.instr(opStore, R8) // R8 = floor(R2/2)
	g.instr(opAdd, R8)
	g.instr(opSub, R2) // 0 if R2 even, -1 if R2 odd
	g.jump(opJZero, even)
	g.instr(opLoad, R4)
	g.instr(opAdd, R1)
	g.instr(opStore, R4) // odd: accumulate the current multiplicand
	g.label(even)
	g.instr(opLoad, R1)
	g.instr(opAdd, R1)
	g.instr(opStore, R1) // R1 *= 2
	g.instr(opLoad, R8)
	g.instr(opStore, R2) // R2 = floor(R2/2)
	g.jump(opJump, loop)
	g.label(done)

	g.instr(opLoad, R7)
	g.jump(opJZero, pos)
	g.instr(opLoad, R4)
	g.instr(opSub, R4)
	g.instr(opSub, R4)
	g.instr(opStore, R4)
	g.label(pos)
}

// buildDivide evaluates a/b into R4. Magnitude division runs a
// restoring binary-long-division loop over |a|, |b|; the quotient's sign
// is then fixed up from the operand signs: equal signs keep |a|/|b|, and
// differing signs (exactly one of a, b negative) give -(|a|/|b|+1). That
// equals floor(a/b) whenever b does not divide a; for an exact division with
// differing signs (a = 0 with b < 0 included) it is one below floor(a/b).
// Division by zero yields 0.
func (g *Generator) buildDivide(expr *ast.Node) {
	id := expr.ID
	byZero := fmt.Sprintf("DIV_BY_ZERO_%d", id)
	negA := fmt.Sprintf("DIV_NEG_A_%d", id)
	aDone := fmt.Sprintf("DIV_A_DONE_%d", id)
	startLoop := fmt.Sprintf("DIV_START_LOOP_%d", id)
	innerLoop := fmt.Sprintf("DIV_LOOP_%d", id)
	endLoop := fmt.Sprintf("DIV_END_LOOP_%d", id)
	sign := fmt.Sprintf("DIV_SIGN_%d", id)
	pp := fmt.Sprintf("DIV_PP_%d", id)
	diff := fmt.Sprintf("DIV_DIFF_%d", id)
	end := fmt.Sprintf("DIV_END_%d", id)

	g.instr(opLoad, R5) // sign = 0
	g.instr(opStore, R7)

	g.buildValue(expr.Child(1)) // b -> R4
	g.instr(opLoad, R4)
	g.jump(opJZero, byZero)
	g.instr(opStore, R2)
	g.instr(opLoad, R2)
	g.jump(opJNeg, fmt.Sprintf("DIV_NEG_B_%d", id))
	g.jump(opJump, fmt.Sprintf("DIV_B_DONE_%d", id))
	g.label(fmt.Sprintf("DIV_NEG_B_%d", id))
	g.instr(opLoad, R2)
	g.instr(opSub, R2)
	g.instr(opSub, R2)
	g.instr(opStore, R2)
	g.instr(opLoad, R6)
	g.instr(opAdd, R6)
	g.instr(opStore, R7) // sign = 2 (b negative)
	g.label(fmt.Sprintf("DIV_B_DONE_%d", id))

	g.buildValue(expr.Child(0)) // a -> R4
	g.instr(opStore, R1)
	g.instr(opLoad, R1)
	g.jump(opJNeg, negA)
	g.jump(opJump, aDone)
	g.label(negA)
	g.instr(opLoad, R1)
	g.instr(opSub, R1)
	g.instr(opSub, R1)
	g.instr(opStore, R1)
	g.instr(opLoad, R7)
	g.instr(opAdd, R6)
	g.instr(opStore, R7) // sign += 1 (a negative)
	g.label(aDone)

	g.instr(opLoad, R6) // temp_counter = 1
	g.instr(opStore, R8)
	g.instr(opLoad, R5) // quotient = 0
	g.instr(opStore, R4)

	// |a| < |b|: the magnitude quotient is already 0, skip straight to the
	// sign fixup. The loop below assumes at least one doubling happens
	// before it halves, which only holds once |a| >= |b|.
	g.instr(opLoad, R1)
	g.instr(opSub, R2)
	g.jump(opJNeg, sign)

	g.label(startLoop)
	g.instr(opLoad, R2)
	g.instr(opStore, R3) // temp_b = |b|
	g.label(innerLoop)
	g.instr(opLoad, R1)
	g.instr(opSub, R3)
	g.jump(opJNeg, endLoop)
	g.instr(opLoad, R8)
	g.instr(opAdd, R8)
	g.instr(opStore, R8)
	g.instr(opLoad, R3)
	g.instr(opAdd, R3)
	g.instr(opStore, R3)
	g.jump(opJump, innerLoop)
	g.label(endLoop)
	g.instr(opLoad, R8)
	g.instr0(opHalf)
	g.instr(opStore, R8) // undo the last doubling
	g.instr(opLoad, R4)
	g.instr(opAdd, R8)
	g.instr(opStore, R4) // quotient += temp_counter
	g.instr(opLoad, R3)
	g.instr0(opHalf)
	g.instr(opStore, R3)
	g.instr(opLoad, R1)
	g.instr(opSub, R3)
	g.instr(opStore, R1) // remainder -= temp_b
	g.instr(opLoad, R1)
	g.instr(opSub, R2)
	g.jump(opJNeg, sign) // remainder < |b|: magnitude division is done
	g.instr(opLoad, R6)
	g.instr(opStore, R8)
	g.jump(opJump, startLoop)

	g.label(sign)
	g.instr(opLoad, R7)
	g.jump(opJZero, pp) // sign 0: both operands positive
	g.instr(opSub, R6)
	g.jump(opJZero, diff) // sign 1: a negative, b positive
	g.instr(opSub, R6)
	g.jump(opJZero, diff) // sign 2: a positive, b negative
	g.jump(opJump, pp)    // sign 3: both negative, same as pp

	g.label(pp)
	g.jump(opJump, end) // R4 already holds the correct magnitude quotient

	g.label(diff)
	g.instr(opLoad, R4)
	g.instr(opAdd, R6)
	g.instr(opStore, R8)
	g.instr(opSub, R8)
	g.instr(opSub, R8)
	g.instr(opStore, R4) // R4 = -(quotient + 1)
	g.jump(opJump, end)

	g.label(byZero)
	g.instr(opLoad, R5)
	g.instr(opStore, R4)

	g.label(end)
}

// buildModulo evaluates floor-mod(a, b) into R4. It runs the same
// restoring magnitude division buildDivide does (the remainder is a
// byproduct of long division regardless of whether the quotient is kept),
// then re-signs the |a| mod |b| remainder per floor semantics. Modulo by
// zero yields 0.
func (g *Generator) buildModulo(expr *ast.Node) {
	id := expr.ID
	byZero := fmt.Sprintf("MOD_BY_ZERO_%d", id)
	negA := fmt.Sprintf("MOD_NEG_A_%d", id)
	aDone := fmt.Sprintf("MOD_A_DONE_%d", id)
	startLoop := fmt.Sprintf("MOD_START_LOOP_%d", id)
	innerLoop := fmt.Sprintf("MOD_LOOP_%d", id)
	endLoop := fmt.Sprintf("MOD_END_LOOP_%d", id)
	sign := fmt.Sprintf("MOD_SIGN_%d", id)
	zero := fmt.Sprintf("MOD_ZERO_%d", id)
	pp := fmt.Sprintf("MOD_PP_%d", id)
	np := fmt.Sprintf("MOD_NP_%d", id)
	pn := fmt.Sprintf("MOD_PN_%d", id)
	nn := fmt.Sprintf("MOD_NN_%d", id)
	end := fmt.Sprintf("MOD_END_%d", id)

	g.instr(opLoad, R5) // sign = 0
	g.instr(opStore, R7)

	g.buildValue(expr.Child(1)) // b -> R4
	g.instr(opLoad, R4)
	g.jump(opJZero, byZero)
	g.instr(opStore, R2)
	g.instr(opLoad, R2)
	g.jump(opJNeg, fmt.Sprintf("MOD_NEG_B_%d", id))
	g.jump(opJump, fmt.Sprintf("MOD_B_DONE_%d", id))
	g.label(fmt.Sprintf("MOD_NEG_B_%d", id))
	g.instr(opLoad, R2)
	g.instr(opSub, R2)
	g.instr(opSub, R2)
	g.instr(opStore, R2)
	g.instr(opLoad, R6)
	g.instr(opAdd, R6)
	g.instr(opStore, R7) // sign = 2 (b negative)
	g.label(fmt.Sprintf("MOD_B_DONE_%d", id))

	g.buildValue(expr.Child(0)) // a -> R4
	g.instr(opStore, R1)
	g.instr(opLoad, R1)
	g.jump(opJNeg, negA)
	g.jump(opJump, aDone)
	g.label(negA)
	g.instr(opLoad, R1)
	g.instr(opSub, R1)
	g.instr(opSub, R1)
	g.instr(opStore, R1)
	g.instr(opLoad, R7)
	g.instr(opAdd, R6)
	g.instr(opStore, R7) // sign += 1 (a negative)
	g.label(aDone)

	// |a| < |b|: |a| already is the magnitude remainder, skip straight to
	// the sign fixup. The loop below halves temp_b on exit assuming at
	// least one doubling happened, which only holds once |a| >= |b|.
	g.instr(opLoad, R1)
	g.instr(opSub, R2)
	g.jump(opJNeg, sign)

	g.label(startLoop)
	g.instr(opLoad, R2)
	g.instr(opStore, R3) // temp_b = |b|
	g.label(innerLoop)
	g.instr(opLoad, R1)
	g.instr(opSub, R3)
	g.jump(opJNeg, endLoop)
	g.instr(opLoad, R3)
	g.instr(opAdd, R3)
	g.instr(opStore, R3)
	g.jump(opJump, innerLoop)
	g.label(endLoop)
	g.instr(opLoad, R3)
	g.instr0(opHalf)
	g.instr(opStore, R3) // undo the last doubling
	g.instr(opLoad, R1)
	g.instr(opSub, R3)
	g.instr(opStore, R1) // remainder -= temp_b
	g.instr(opLoad, R1)
	g.instr(opSub, R2)
	g.jump(opJNeg, sign) // remainder < |b|: magnitude remainder is final
	g.jump(opJump, startLoop)

	g.label(sign)
	g.instr(opLoad, R1)
	g.jump(opJZero, zero) // exact division: remainder is 0 regardless of sign
	g.instr(opLoad, R7)
	g.jump(opJZero, pp) // sign 0: a >= 0, b >= 0
	g.instr(opSub, R6)
	g.jump(opJZero, np) // sign 1: a < 0, b >= 0 (differing signs)
	g.instr(opSub, R6)
	g.jump(opJZero, pn) // sign 2: a >= 0, b < 0 (differing signs)
	g.jump(opJump, nn)  // sign 3: a < 0, b < 0

	g.label(pp)
	g.instr(opLoad, R1)
	g.instr(opStore, R4)
	g.jump(opJump, end)

	g.label(nn)
	g.instr(opLoad, R1)
	g.instr(opSub, R1)
	g.instr(opSub, R1)
	g.instr(opStore, R4) // same sign: result follows sign(a), here negative
	g.jump(opJump, end)

	g.label(np)
	g.instr(opLoad, R2)
	g.instr(opSub, R1)
	g.instr(opStore, R4) // |b| - remainder, sign(b) positive
	g.jump(opJump, end)

	g.label(pn)
	g.instr(opLoad, R1)
	g.instr(opSub, R2)
	g.instr(opStore, R4) // -(|b| - remainder), sign(b) negative
	g.jump(opJump, end)

	g.label(zero)
	g.instr(opLoad, R5)
	g.instr(opStore, R4)
	g.jump(opJump, end)

	g.label(byZero)
	g.instr(opLoad, R5)
	g.instr(opStore, R4)

	g.label(end)
}
