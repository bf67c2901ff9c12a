package ga

import "symexcore/smt"

// ShiftKind is one of the five ARM shift/rotate types.
type ShiftKind int

const (
	LSL ShiftKind = iota
	LSR
	ASR
	ROR
	RRX
)

func (k ShiftKind) String() string {
	switch k {
	case LSL:
		return "LSL"
	case LSR:
		return "LSR"
	case ASR:
		return "ASR"
	case ROR:
		return "ROR"
	case RRX:
		return "RRX"
	default:
		return "??"
	}
}

// Apply performs the shift on value by amount (both taken from the same
// Context), returning the shifted result. RRX ignores amount: it always
// rotates right by one bit through the carry flag.
func Apply(ctx *smt.Context, k ShiftKind, value, amount *smt.Expr, carryIn *smt.Expr) *smt.Expr {
	w := value.Width()
	switch k {
	case LSL:
		return ctx.Shl(value, amount)
	case LSR:
		return ctx.LShr(value, amount)
	case ASR:
		return ctx.AShr(value, amount)
	case ROR:
		// rotate right: (value >> amount) | (value << (w - amount)), amount
		// taken mod w to keep the shift amounts in range.
		modAmount := ctx.URem(amount, ctx.Const(w, uint64(w)))
		inv := ctx.Sub(ctx.Const(w, uint64(w)), modAmount)
		return ctx.Or(ctx.LShr(value, modAmount), ctx.Shl(value, inv))
	case RRX:
		// rotate right by one through carry: new MSB is carryIn, the
		// dropped LSB becomes the new carry (caller's concern).
		shifted := ctx.LShr(value, ctx.Const(w, 1))
		carryBit := ctx.ZeroExtend(carryIn, w)
		topBit := ctx.Shl(carryBit, ctx.Const(w, uint64(w-1)))
		return ctx.Or(shifted, topBit)
	default:
		panic("ga: unknown shift kind")
	}
}
