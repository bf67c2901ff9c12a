// Package smt implements the bitvector constraint facade the rest of the
// engine drives: a Context mints Expr handles, a Solver tracks a push/pop
// assertion stack and answers satisfiability queries over them.
//
// There is no bundled SMT backend in the pack this was grown from, so the
// solver is a small bounded-model enumerator rather than a DPLL(T) engine:
// it answers exactly when every symbol is narrow enough to enumerate in
// full or a witness lies among its candidate values, and otherwise
// reports Unknown rather than guessing (a single wide symbol can already
// yield Unknown). See DESIGN.md for the grounding of this choice.
package smt

import "math/big"

// Context owns every Expr minted through it. Exprs from different Contexts
// must never be mixed; doing so panics the first time they're combined.
type Context struct {
	nextID uint64
}

// NewContext creates a fresh, empty bitvector context.
func NewContext() *Context {
	return &Context{}
}

func (c *Context) nextExprID() uint64 {
	c.nextID++
	return c.nextID
}

func mask(width uint32) *big.Int {
	if width == 0 {
		return big.NewInt(0)
	}
	m := new(big.Int).Lsh(big.NewInt(1), uint(width))
	return m.Sub(m, big.NewInt(1))
}

func maskTo(v *big.Int, width uint32) *big.Int {
	return new(big.Int).And(v, mask(width))
}

// Const returns a concrete bitvector of the given width holding value,
// truncated to width bits.
func (c *Context) Const(width uint32, value uint64) *Expr {
	return c.ConstBig(width, new(big.Int).SetUint64(value))
}

// ConstBig is Const for values that don't fit in a uint64 (wide widths).
func (c *Context) ConstBig(width uint32, value *big.Int) *Expr {
	return &Expr{
		ctx:   c,
		id:    c.nextExprID(),
		width: width,
		op:    opConst,
		value: maskTo(value, width),
	}
}

// Symbol returns a fresh, entirely unconstrained bitvector of the given
// width. Each call returns a distinct symbol even if the width matches an
// earlier call.
func (c *Context) Symbol(width uint32) *Expr {
	return &Expr{
		ctx:   c,
		id:    c.nextExprID(),
		width: width,
		op:    opSymbol,
	}
}

func (c *Context) checkSameContext(es ...*Expr) {
	for _, e := range es {
		if e != nil && e.ctx != c {
			panic("smt: expression belongs to a different Context")
		}
	}
}
