package ga

// Instruction is a sequence of elementary Operations produced by
// translating one unit of machine code. WidthBytes is the machine-level
// encoding width (for PC increment on fall-through); CycleCost is the
// instruction's static cost when it is not itself conditional on a taken
// branch (a branch's extra taken-vs-not-taken cost is expressed instead
// via an OpAddCycles operation inside Operations).
type Instruction struct {
	Operations []Operation
	WidthBytes uint32
	CycleCost  uint64
	Mnemonic   string // for debug/trace output only
}

// NewInstruction builds an Instruction from its operation sequence.
func NewInstruction(mnemonic string, widthBytes uint32, cycleCost uint64, ops ...Operation) Instruction {
	return Instruction{
		Operations: ops,
		WidthBytes: widthBytes,
		CycleCost:  cycleCost,
		Mnemonic:   mnemonic,
	}
}
