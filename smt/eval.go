package smt

import "math/big"

// assignment maps a symbol's Expr id to a concrete value, masked to that
// symbol's width.
type assignment map[uint64]*big.Int

// eval concretely evaluates e under the given (possibly partial)
// assignment. A symbol missing from the assignment evaluates to zero,
// which is only safe to call once every free symbol in e has a binding;
// the solver's search loop guarantees that.
func eval(e *Expr, a assignment) *big.Int {
	switch e.op {
	case opConst:
		return new(big.Int).Set(e.value)
	case opSymbol:
		if v, ok := a[e.id]; ok {
			return new(big.Int).Set(v)
		}
		return big.NewInt(0)
	}

	args := make([]*big.Int, len(e.args))
	for i, arg := range e.args {
		args[i] = eval(arg, a)
	}
	w := e.args[0].width

	switch e.op {
	case opAdd:
		return maskTo(new(big.Int).Add(args[0], args[1]), w)
	case opSub:
		return maskTo(new(big.Int).Sub(args[0], args[1]), w)
	case opMul:
		return maskTo(new(big.Int).Mul(args[0], args[1]), w)
	case opUDiv:
		if args[1].Sign() == 0 {
			return mask(w)
		}
		return maskTo(new(big.Int).Div(args[0], args[1]), w)
	case opSDiv:
		x, y := toSigned(args[0], w), toSigned(args[1], w)
		if y.Sign() == 0 {
			return mask(w)
		}
		return maskTo(new(big.Int).Quo(x, y), w)
	case opURem:
		if args[1].Sign() == 0 {
			return new(big.Int).Set(args[0])
		}
		return maskTo(new(big.Int).Mod(args[0], args[1]), w)
	case opSRem:
		x, y := toSigned(args[0], w), toSigned(args[1], w)
		if y.Sign() == 0 {
			return new(big.Int).Set(args[0])
		}
		return maskTo(new(big.Int).Rem(x, y), w)
	case opAnd:
		return maskTo(new(big.Int).And(args[0], args[1]), w)
	case opOr:
		return maskTo(new(big.Int).Or(args[0], args[1]), w)
	case opXor:
		return maskTo(new(big.Int).Xor(args[0], args[1]), w)
	case opNot:
		return maskTo(new(big.Int).Not(args[0]), w)
	case opNeg:
		return maskTo(new(big.Int).Neg(args[0]), w)
	case opShl:
		n := uint(args[1].Uint64())
		if n >= uint(w) {
			return big.NewInt(0)
		}
		return maskTo(new(big.Int).Lsh(args[0], n), w)
	case opLShr:
		n := uint(args[1].Uint64())
		if n >= uint(w) {
			return big.NewInt(0)
		}
		return maskTo(new(big.Int).Rsh(args[0], n), w)
	case opAShr:
		n := uint(args[1].Uint64())
		signed := toSigned(args[0], w)
		if n >= uint(w) {
			n = uint(w) - 1
		}
		return maskTo(new(big.Int).Rsh(signed, n), w)
	case opExtract:
		shifted := new(big.Int).Rsh(args[0], uint(e.lo))
		return maskTo(shifted, e.width)
	case opZExt:
		return new(big.Int).Set(args[0])
	case opSExt:
		return maskTo(toSigned(args[0], w), e.width)
	case opConcat:
		loWidth := e.args[1].width
		return maskTo(new(big.Int).Or(new(big.Int).Lsh(args[0], uint(loWidth)), args[1]), e.width)
	case opEq:
		return boolInt(args[0].Cmp(args[1]) == 0)
	case opNe:
		return boolInt(args[0].Cmp(args[1]) != 0)
	case opUlt:
		return boolInt(args[0].Cmp(args[1]) < 0)
	case opUle:
		return boolInt(args[0].Cmp(args[1]) <= 0)
	case opUgt:
		return boolInt(args[0].Cmp(args[1]) > 0)
	case opUge:
		return boolInt(args[0].Cmp(args[1]) >= 0)
	case opSlt:
		return boolInt(toSigned(args[0], w).Cmp(toSigned(args[1], w)) < 0)
	case opSle:
		return boolInt(toSigned(args[0], w).Cmp(toSigned(args[1], w)) <= 0)
	case opSgt:
		return boolInt(toSigned(args[0], w).Cmp(toSigned(args[1], w)) > 0)
	case opSge:
		return boolInt(toSigned(args[0], w).Cmp(toSigned(args[1], w)) >= 0)
	}
	panic("smt: unhandled op in eval")
}

func boolInt(b bool) *big.Int {
	if b {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

func toSigned(v *big.Int, width uint32) *big.Int {
	signBit := new(big.Int).Lsh(big.NewInt(1), uint(width-1))
	if new(big.Int).And(v, signBit).Sign() == 0 {
		return new(big.Int).Set(v)
	}
	return new(big.Int).Sub(v, new(big.Int).Lsh(big.NewInt(1), uint(width)))
}

// symbols collects the distinct free symbols reachable from e, in first
// sight order, deduplicated by id.
func symbols(e *Expr, seen map[uint64]bool, out *[]*Expr) {
	if e.op == opSymbol {
		if !seen[e.id] {
			seen[e.id] = true
			*out = append(*out, e)
		}
		return
	}
	for _, a := range e.args {
		symbols(a, seen, out)
	}
}

// constants collects every concrete value appearing anywhere in e,
// deduplicated. Used to seed candidate assignments for the bounded
// enumerator.
func constants(e *Expr, seen map[string]bool, out *[]*big.Int) {
	if e.op == opConst {
		k := e.value.String()
		if !seen[k] {
			seen[k] = true
			*out = append(*out, e.value)
		}
		return
	}
	for _, a := range e.args {
		constants(a, seen, out)
	}
}
