package ga

// OpKind tags the elementary Operation variants an Instruction is built
// from.
type OpKind int

const (
	OpMove OpKind = iota
	OpAdd
	OpSub
	OpAnd
	OpOr
	OpXor
	OpShift
	OpLoad
	OpStore
	OpSetFlag
	OpConditionalJump
	OpCall
	OpReturn
	OpIntrinsic
	OpAddCycles
	OpIncrementPC
)

// Operation is one elementary step of an Instruction. Which fields are
// meaningful depends on Kind; this uses a fixed-shape, tag-selected
// record rather than one interface type per variant, since every
// operation kind the executor dispatches on is known up front and
// fixed at translation time.
type Operation struct {
	Kind OpKind

	// Move/Add/Sub/And/Or/Xor/Shift: Dst := op(Src1, Src2).
	Dst, Src1, Src2 Operand
	ShiftKind       ShiftKind

	// Load/Store: value travels between Dst/Src1 and the address operand.
	Addr  Operand
	Width uint32 // access width in bits for Load/Store/AddressInLocal operands

	// SetFlag: flag name plus the operand computing its new value.
	FlagName string

	// ConditionalJump: branch to Target if Cond holds over current flags.
	Cond   Condition
	Target Operand

	// Call: target to jump to; caller's Instruction.WidthBytes gives the
	// return address to push.
	CallTarget Operand

	// Intrinsic: named runtime hook (memcpy, __symex_any_u32, ...) plus its
	// argument operands.
	IntrinsicName string
	IntrinsicArgs []Operand

	// AddCycles: cost to add to the path's cycle counter; may itself be an
	// Immediate or a Flag-derived Operand when cost depends on whether a
	// branch was taken.
	Cycles Operand
}

func Move(dst, src Operand) Operation { return Operation{Kind: OpMove, Dst: dst, Src1: src} }

func Arith(kind OpKind, dst, a, b Operand) Operation {
	return Operation{Kind: kind, Dst: dst, Src1: a, Src2: b}
}

func ShiftOp(dst, src, amount Operand, kind ShiftKind) Operation {
	return Operation{Kind: OpShift, Dst: dst, Src1: src, Src2: amount, ShiftKind: kind}
}

func Load(dst, addr Operand, width uint32) Operation {
	return Operation{Kind: OpLoad, Dst: dst, Addr: addr, Width: width}
}

func Store(addr, src Operand, width uint32) Operation {
	return Operation{Kind: OpStore, Src1: src, Addr: addr, Width: width}
}

func SetFlag(name string, value Operand) Operation {
	return Operation{Kind: OpSetFlag, FlagName: name, Src1: value}
}

func ConditionalJump(cond Condition, target Operand) Operation {
	return Operation{Kind: OpConditionalJump, Cond: cond, Target: target}
}

func Call(target Operand) Operation {
	return Operation{Kind: OpCall, CallTarget: target}
}

func Return() Operation { return Operation{Kind: OpReturn} }

func Intrinsic(name string, args ...Operand) Operation {
	return Operation{Kind: OpIntrinsic, IntrinsicName: name, IntrinsicArgs: args}
}

func AddCycles(cost Operand) Operation { return Operation{Kind: OpAddCycles, Cycles: cost} }

func IncrementPC(by Operand) Operation { return Operation{Kind: OpIncrementPC, Src1: by} }
