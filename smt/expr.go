package smt

import (
	"fmt"
	"math/big"
)

type exprOp int

const (
	opConst exprOp = iota
	opSymbol
	opAdd
	opSub
	opMul
	opUDiv
	opSDiv
	opURem
	opSRem
	opAnd
	opOr
	opXor
	opNot
	opNeg
	opShl
	opLShr
	opAShr
	opExtract
	opZExt
	opSExt
	opConcat
	opEq
	opNe
	opUlt
	opUle
	opUgt
	opUge
	opSlt
	opSle
	opSgt
	opSge
)

// Expr is an opaque handle to a symbolic or concrete fixed-width
// bitvector. Width is part of its identity: an Expr never changes width
// after construction.
type Expr struct {
	ctx   *Context
	id    uint64
	width uint32
	op    exprOp
	args  []*Expr
	value *big.Int // only populated for opConst
	hi, lo uint32  // only populated for opExtract
}

// Width returns the bit width of e.
func (e *Expr) Width() uint32 { return e.width }

// IsConst reports whether e folds to a concrete value without consulting
// a solver.
func (e *Expr) IsConst() bool { return e.op == opConst }

// ConstValue returns the concrete value of e. Only valid when IsConst()
// is true.
func (e *Expr) ConstValue() *big.Int {
	return new(big.Int).Set(e.value)
}

func (c *Context) fold(e *Expr) *Expr {
	for _, a := range e.args {
		if a.op != opConst {
			return e
		}
	}
	return c.ConstBig(e.width, eval(e, nil))
}

func (c *Context) bin(op exprOp, width uint32, a, b *Expr) *Expr {
	c.checkSameContext(a, b)
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: width, op: op, args: []*Expr{a, b}})
}

func (c *Context) un(op exprOp, width uint32, a *Expr) *Expr {
	c.checkSameContext(a)
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: width, op: op, args: []*Expr{a}})
}

func sameWidth(a, b *Expr) uint32 {
	if a.width != b.width {
		panic(fmt.Sprintf("smt: width mismatch %d vs %d", a.width, b.width))
	}
	return a.width
}

// Add, Sub, Mul, UDiv, SDiv, URem, SRem are the arithmetic bitvector
// operations. Division by a concrete zero folds to the all-ones pattern
// and remainder by a concrete zero to the dividend, rather than panicking.
func (c *Context) Add(a, b *Expr) *Expr { return c.bin(opAdd, sameWidth(a, b), a, b) }
func (c *Context) Sub(a, b *Expr) *Expr { return c.bin(opSub, sameWidth(a, b), a, b) }
func (c *Context) Mul(a, b *Expr) *Expr { return c.bin(opMul, sameWidth(a, b), a, b) }
func (c *Context) UDiv(a, b *Expr) *Expr { return c.bin(opUDiv, sameWidth(a, b), a, b) }
func (c *Context) SDiv(a, b *Expr) *Expr { return c.bin(opSDiv, sameWidth(a, b), a, b) }
func (c *Context) URem(a, b *Expr) *Expr { return c.bin(opURem, sameWidth(a, b), a, b) }
func (c *Context) SRem(a, b *Expr) *Expr { return c.bin(opSRem, sameWidth(a, b), a, b) }

// And, Or, Xor, Not are the bitwise logical operations.
func (c *Context) And(a, b *Expr) *Expr { return c.bin(opAnd, sameWidth(a, b), a, b) }
func (c *Context) Or(a, b *Expr) *Expr  { return c.bin(opOr, sameWidth(a, b), a, b) }
func (c *Context) Xor(a, b *Expr) *Expr { return c.bin(opXor, sameWidth(a, b), a, b) }
func (c *Context) Not(a *Expr) *Expr    { return c.un(opNot, a.width, a) }
func (c *Context) Neg(a *Expr) *Expr    { return c.un(opNeg, a.width, a) }

// Shl, LShr, AShr are raw shifts used by the Shift IR operation; amount is
// a same-width Expr so shifts by symbolic counts are representable.
func (c *Context) Shl(a, amount *Expr) *Expr  { return c.bin(opShl, sameWidth(a, amount), a, amount) }
func (c *Context) LShr(a, amount *Expr) *Expr { return c.bin(opLShr, sameWidth(a, amount), a, amount) }
func (c *Context) AShr(a, amount *Expr) *Expr { return c.bin(opAShr, sameWidth(a, amount), a, amount) }

// Extract returns bits [lo, hi] (inclusive) of a.
func (c *Context) Extract(a *Expr, hi, lo uint32) *Expr {
	c.checkSameContext(a)
	if hi < lo || hi >= a.width {
		panic("smt: invalid extract range")
	}
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: hi - lo + 1, op: opExtract, args: []*Expr{a}, hi: hi, lo: lo})
}

// ZeroExtend widens a to width with zero-fill in the new high bits.
func (c *Context) ZeroExtend(a *Expr, width uint32) *Expr {
	if width < a.width {
		panic("smt: zero-extend to a narrower width")
	}
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: width, op: opZExt, args: []*Expr{a}})
}

// SignExtend widens a to width, replicating a's sign bit.
func (c *Context) SignExtend(a *Expr, width uint32) *Expr {
	if width < a.width {
		panic("smt: sign-extend to a narrower width")
	}
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: width, op: opSExt, args: []*Expr{a}})
}

// Concat joins hi and lo into a single bitvector with hi occupying the
// most-significant bits.
func (c *Context) Concat(hi, lo *Expr) *Expr {
	c.checkSameContext(hi, lo)
	return c.fold(&Expr{ctx: c, id: c.nextExprID(), width: hi.width + lo.width, op: opConcat, args: []*Expr{hi, lo}})
}

// Eq, Ne and the unsigned/signed comparisons all return width-1 boolean
// Exprs (1 = true, 0 = false), the same representation used for flags.
func (c *Context) Eq(a, b *Expr) *Expr  { return c.bin(opEq, 1, a, b) }
func (c *Context) Ne(a, b *Expr) *Expr  { return c.bin(opNe, 1, a, b) }
func (c *Context) Ult(a, b *Expr) *Expr { return c.bin(opUlt, 1, a, b) }
func (c *Context) Ule(a, b *Expr) *Expr { return c.bin(opUle, 1, a, b) }
func (c *Context) Ugt(a, b *Expr) *Expr { return c.bin(opUgt, 1, a, b) }
func (c *Context) Uge(a, b *Expr) *Expr { return c.bin(opUge, 1, a, b) }
func (c *Context) Slt(a, b *Expr) *Expr { return c.bin(opSlt, 1, a, b) }
func (c *Context) Sle(a, b *Expr) *Expr { return c.bin(opSle, 1, a, b) }
func (c *Context) Sgt(a, b *Expr) *Expr { return c.bin(opSgt, 1, a, b) }
func (c *Context) Sge(a, b *Expr) *Expr { return c.bin(opSge, 1, a, b) }

// BoolAnd, BoolOr are convenience wrappers over And/Or for width-1 Exprs,
// used by Condition.Eval to combine flag predicates.
func (c *Context) BoolAnd(a, b *Expr) *Expr { return c.And(a, b) }
func (c *Context) BoolOr(a, b *Expr) *Expr  { return c.Or(a, b) }

// True and False return the width-1 constants used for unconditional
// branches and as default flag values.
func (c *Context) True() *Expr  { return c.Const(1, 1) }
func (c *Context) False() *Expr { return c.Const(1, 0) }
