package armv6m

import (
	"fmt"

	"symexcore/ga"
	"symexcore/memory"
)

// decodeAddSub3 handles ADD/SUB (register or 3-bit immediate) encoding
// 000110/000111 ooooo mmm nnn ddd.
func decodeAddSub3(hw uint16) (ga.Instruction, uint32, error) {
	isImmediate := hw&0x0400 != 0
	isSub := hw&0x0200 != 0
	rm := (hw >> 6) & 0x7
	rn := (hw >> 3) & 0x7
	rd := hw & 0x7

	dst := ga.Register(regName(rd))
	a := ga.Register(regName(rn))
	var b ga.Operand
	if isImmediate {
		b = ga.Immediate(uint64(rm), 32)
	} else {
		b = ga.Register(regName(rm))
	}

	kind := ga.OpAdd
	mnemonic := "adds"
	if isSub {
		kind = ga.OpSub
		mnemonic = "subs"
	}

	ops := []ga.Operation{
		ga.Arith(kind, dst, a, b),
		flagsFromResult(dst),
	}
	return withFallthrough(mnemonic, 2, 1, ops...), 2, nil
}

// decodeShiftImm handles LSL/LSR/ASR immediate: 00 op iiiii mmm ddd.
func decodeShiftImm(hw uint16) (ga.Instruction, uint32, error) {
	op := (hw >> 11) & 0x3
	imm := (hw >> 6) & 0x1F
	rm := (hw >> 3) & 0x7
	rd := hw & 0x7

	var kind ga.ShiftKind
	mnemonic := "lsls"
	switch op {
	case 0:
		kind, mnemonic = ga.LSL, "lsls"
	case 1:
		kind, mnemonic = ga.LSR, "lsrs"
	case 2:
		kind, mnemonic = ga.ASR, "asrs"
	default:
		return ga.Instruction{}, 0, fmt.Errorf("%w: reserved shift-immediate op", errUnsupportedEncoding)
	}

	dst := ga.Register(regName(rd))
	src := ga.Register(regName(rm))
	amount := ga.Immediate(uint64(imm), 32)

	ops := []ga.Operation{
		ga.ShiftOp(dst, src, amount, kind),
		flagsFromResult(dst),
	}
	return withFallthrough(mnemonic, 2, 1, ops...), 2, nil
}

// decodeImm8 handles MOV/CMP/ADD/SUB with an 8-bit immediate:
// 001 op ddd iiiiiiii.
func decodeImm8(hw uint16) (ga.Instruction, uint32, error) {
	op := (hw >> 11) & 0x3
	rd := (hw >> 8) & 0x7
	imm := hw & 0xFF

	dst := ga.Register(regName(rd))
	immOp := ga.Immediate(uint64(imm), 32)

	switch op {
	case 0: // MOVS
		ops := []ga.Operation{ga.Move(dst, immOp), flagsFromResult(dst)}
		return withFallthrough("movs", 2, 1, ops...), 2, nil
	case 1: // CMP
		tmp := ga.Local("__cmp_tmp")
		ops := []ga.Operation{ga.Arith(ga.OpSub, tmp, dst, immOp), flagsFromResult(tmp)}
		return withFallthrough("cmp", 2, 1, ops...), 2, nil
	case 2: // ADDS
		ops := []ga.Operation{ga.Arith(ga.OpAdd, dst, dst, immOp), flagsFromResult(dst)}
		return withFallthrough("adds", 2, 1, ops...), 2, nil
	case 3: // SUBS
		ops := []ga.Operation{ga.Arith(ga.OpSub, dst, dst, immOp), flagsFromResult(dst)}
		return withFallthrough("subs", 2, 1, ops...), 2, nil
	}
	return ga.Instruction{}, 0, errUnsupportedEncoding
}

// decodeDataProcessing handles the 010000 oooo mmm ddd register ALU
// block (ANDS, EORS, ORRS, EORS, MULS, ...); only ANDS, EORS and ORRS
// are lifted, every other op in the block is rejected as an unsupported
// encoding.
func decodeDataProcessing(hw uint16) (ga.Instruction, uint32, error) {
	op := (hw >> 6) & 0xF
	rm := (hw >> 3) & 0x7
	rd := hw & 0x7

	dst := ga.Register(regName(rd))
	src := ga.Register(regName(rm))

	var kind ga.OpKind
	var mnemonic string
	switch op {
	case 0x0:
		kind, mnemonic = ga.OpAnd, "ands"
	case 0x1:
		kind, mnemonic = ga.OpXor, "eors"
	case 0xC:
		kind, mnemonic = ga.OpOr, "orrs"
	default:
		return ga.Instruction{}, 0, fmt.Errorf("%w: data-processing op 0x%x", errUnsupportedEncoding, op)
	}

	ops := []ga.Operation{
		ga.Arith(kind, dst, dst, src),
		flagsFromResult(dst),
	}
	return withFallthrough(mnemonic, 2, 1, ops...), 2, nil
}

// decodeHiRegister handles MOV/CMP/ADD on any register pair plus
// BX/BLX: 010001 oo D M mmmm ddd/nnn.
func decodeHiRegister(hw uint16) (ga.Instruction, uint32, error) {
	op := (hw >> 8) & 0x3
	dBit := (hw >> 7) & 0x1
	rm := (hw >> 3) & 0xF
	rdLow := hw & 0x7
	rd := rdLow | (dBit << 3)

	switch op {
	case 0: // ADD
		dst := ga.Register(hiRegName(rd))
		src := ga.Register(hiRegName(rm))
		ops := []ga.Operation{ga.Arith(ga.OpAdd, dst, dst, src)}
		return withFallthrough("add", 2, 1, ops...), 2, nil
	case 1: // CMP
		tmp := ga.Local("__cmp_tmp")
		a := ga.Register(hiRegName(rd))
		b := ga.Register(hiRegName(rm))
		ops := []ga.Operation{ga.Arith(ga.OpSub, tmp, a, b), flagsFromResult(tmp)}
		return withFallthrough("cmp", 2, 1, ops...), 2, nil
	case 2: // MOV
		dst := ga.Register(hiRegName(rd))
		src := ga.Register(hiRegName(rm))
		ops := []ga.Operation{ga.Move(dst, src)}
		return withFallthrough("mov", 2, 1, ops...), 2, nil
	case 3: // BX/BLX
		isLink := hw&0x0080 != 0
		target := ga.Register(hiRegName(rm))
		if isLink {
			return ga.NewInstruction("blx", 2, 3, ga.Call(target)), 2, nil
		}
		return ga.NewInstruction("bx", 2, 3, ga.ConditionalJump(ga.None, target)), 2, nil
	}
	return ga.Instruction{}, 0, errUnsupportedEncoding
}

// decodeLdrLiteral handles LDR Rd, [PC, #imm8*4]: 01001 ddd iiiiiiii.
func decodeLdrLiteral(hw uint16, pc uint64) (ga.Instruction, uint32, error) {
	rd := (hw >> 8) & 0x7
	imm := uint64(hw&0xFF) * 4
	// PC reads as the current instruction's address rounded down to a
	// word boundary, plus 4 (the pipeline's architectural PC bias).
	base := (pc &^ 3) + 4 + imm

	dst := ga.Register(regName(rd))
	ops := []ga.Operation{ga.Load(dst, ga.Immediate(base, 32), 32)}
	return withFallthrough("ldr", 2, 2, ops...), 2, nil
}

// decodeLoadStoreImm handles LDR/STR (register offset and 5-bit
// immediate offset, word/halfword/byte) encodings in the 0101/011x/1000
// ranges.
func decodeLoadStoreImm(hw uint16) (ga.Instruction, uint32, error) {
	rt := hw & 0x7
	rn := (hw >> 3) & 0x7
	reg := ga.Register(regName(rt))
	base := ga.Register(regName(rn))

	if hw&0xF000 == 0x5000 {
		// Register offset: STR/STRB/LDR/LDRB Rt, [Rn, Rm]; the halfword
		// and sign-extending forms are rejected as unsupported.
		rm := (hw >> 6) & 0x7
		opc := (hw >> 9) & 0x7
		offsetReg := ga.Register(regName(rm))
		addrLocal := ga.Local("__addr_tmp")
		addrCompute := ga.Arith(ga.OpAdd, addrLocal, base, offsetReg)
		switch opc {
		case 0: // STR
			return withFallthrough("str", 2, 2, addrCompute, ga.Store(addrLocal, reg, 32)), 2, nil
		case 2: // STRB
			return withFallthrough("strb", 2, 2, addrCompute, ga.Store(addrLocal, reg, 8)), 2, nil
		case 4: // LDR
			return withFallthrough("ldr", 2, 2, addrCompute, ga.Load(reg, addrLocal, 32)), 2, nil
		case 6: // LDRB
			return withFallthrough("ldrb", 2, 2, addrCompute, ga.Load(reg, addrLocal, 8)), 2, nil
		default:
			return ga.Instruction{}, 0, fmt.Errorf("%w: load/store register opc 0x%x", errUnsupportedEncoding, opc)
		}
	}

	// Immediate offset: STR/LDR/STRB/LDRB/STRH/LDRH Rt, [Rn, #imm5*scale].
	imm5 := (hw >> 6) & 0x1F
	isWord := hw&0xF000 == 0x6000
	isByte := hw&0xF000 == 0x7000
	isLoad := hw&0x0800 != 0

	var width uint32 = 32
	var scale uint64 = 4
	mnemonicBase := ""
	switch {
	case isWord:
		width, scale, mnemonicBase = 32, 4, ""
	case isByte:
		width, scale, mnemonicBase = 8, 1, "b"
	default: // halfword, 1000x range
		width, scale, mnemonicBase = 16, 2, "h"
	}

	offset := uint64(imm5) * scale
	addrLocal := ga.Local("__addr_tmp")
	addrCompute := ga.Arith(ga.OpAdd, addrLocal, base, ga.Immediate(offset, 32))

	if isLoad {
		return withFallthrough("ldr"+mnemonicBase, 2, 2, addrCompute, ga.Load(reg, addrLocal, width)), 2, nil
	}
	return withFallthrough("str"+mnemonicBase, 2, 2, addrCompute, ga.Store(addrLocal, reg, width)), 2, nil
}

// decodeLoadStoreSP handles LDR/STR Rd, [SP, #imm8*4]: 1001 L ddd iiiiiiii.
func decodeLoadStoreSP(hw uint16) (ga.Instruction, uint32, error) {
	isLoad := hw&0x0800 != 0
	rd := (hw >> 8) & 0x7
	imm := uint64(hw&0xFF) * 4

	reg := ga.Register(regName(rd))
	sp := ga.Register("SP")
	addrLocal := ga.Local("__addr_tmp")
	addrCompute := ga.Arith(ga.OpAdd, addrLocal, sp, ga.Immediate(imm, 32))

	if isLoad {
		return withFallthrough("ldr", 2, 2, addrCompute, ga.Load(reg, addrLocal, 32)), 2, nil
	}
	return withFallthrough("str", 2, 2, addrCompute, ga.Store(addrLocal, reg, 32)), 2, nil
}

// decodeAddSubSP handles ADD/SUB SP, SP, #imm7*4: 1011 0000 o iiiiiii.
func decodeAddSubSP(hw uint16) (ga.Instruction, uint32, error) {
	isSub := hw&0x0080 != 0
	imm := uint64(hw&0x7F) * 4
	sp := ga.Register("SP")
	kind := ga.OpAdd
	mnemonic := "add"
	if isSub {
		kind, mnemonic = ga.OpSub, "sub"
	}
	ops := []ga.Operation{ga.Arith(kind, sp, sp, ga.Immediate(imm, 32))}
	return withFallthrough(mnemonic, 2, 1, ops...), 2, nil
}

// decodePushPop handles PUSH/POP {reglist, LR/PC}: 1011 L10 R rrrrrrrr.
func decodePushPop(hw uint16) (ga.Instruction, uint32, error) {
	isPop := hw&0x0800 != 0
	extraBit := hw&0x0100 != 0 // LR on push, PC on pop
	regList := hw & 0xFF

	var ops []ga.Operation
	sp := ga.Register("SP")

	if isPop {
		for i := 0; i < 8; i++ {
			if regList&(1<<uint(i)) == 0 {
				continue
			}
			dst := ga.Register(regName(uint16(i)))
			ops = append(ops, ga.Load(dst, sp, 32), ga.Arith(ga.OpAdd, sp, sp, ga.Immediate(4, 32)))
		}
		if extraBit {
			ops = append(ops, ga.Load(ga.Register("PC"), sp, 32), ga.Arith(ga.OpAdd, sp, sp, ga.Immediate(4, 32)))
			// A pop into PC is a return, not a fall-through instruction.
			return ga.NewInstruction("pop", 2, uint64(popPopCycles(regList, extraBit)), ops...), 2, nil
		}
		return withFallthrough("pop", 2, uint64(popPopCycles(regList, extraBit)), ops...), 2, nil
	}

	for i := 7; i >= 0; i-- {
		if regList&(1<<uint(i)) == 0 {
			continue
		}
		src := ga.Register(regName(uint16(i)))
		ops = append(ops, ga.Arith(ga.OpSub, sp, sp, ga.Immediate(4, 32)), ga.Store(sp, src, 32))
	}
	if extraBit {
		ops = append(ops, ga.Arith(ga.OpSub, sp, sp, ga.Immediate(4, 32)), ga.Store(sp, ga.Register("LR"), 32))
	}
	return withFallthrough("push", 2, uint64(popPopCycles(regList, extraBit)), ops...), 2, nil
}

func popPopCycles(regList uint16, extraBit bool) int {
	n := 1
	for i := 0; i < 8; i++ {
		if regList&(1<<uint(i)) != 0 {
			n++
		}
	}
	if extraBit {
		n++
	}
	return n
}

// decodeCondBranch handles B<cond> #imm8: 1101 cccc iiiiiiii. The
// instruction carries a static CycleCost of 1 whichever way the branch
// resolves; no AddCycles operation is emitted, so a taken branch costs no
// more than a not-taken one.
func decodeCondBranch(hw uint16) (ga.Instruction, uint32, error) {
	condBits := (hw >> 8) & 0xF
	cond := condFromBits(condBits)
	if cond == ga.None {
		return ga.Instruction{}, 0, fmt.Errorf("%w: reserved branch condition", errUnsupportedEncoding)
	}
	imm := signExtend(uint32(hw&0xFF)<<1, 9)
	target := ga.Immediate(uint64(imm), 32) // relative to PC+4, resolved by the executor
	ops := []ga.Operation{ga.ConditionalJump(cond, target)}
	return ga.NewInstruction("b"+cond.String(), 2, 1, ops...), 2, nil
}

// decodeUncondBranch handles B #imm11: 11100 iiiiiiiiiii.
func decodeUncondBranch(hw uint16) (ga.Instruction, uint32, error) {
	imm := signExtend(uint32(hw&0x7FF)<<1, 12)
	target := ga.Immediate(uint64(imm), 32)
	ops := []ga.Operation{ga.ConditionalJump(ga.None, target)}
	return ga.NewInstruction("b", 2, 2, ops...), 2, nil
}

// decodeBL handles the 32-bit BL encoding: two halfwords,
// 11110 S iiiiiiiiii / 11 J1 1 J2 iiiiiiiiiii.
func decodeBL(bytes []byte, hw1 uint16, endian memory.Endianness) (ga.Instruction, uint32, error) {
	if len(bytes) < 4 {
		return ga.Instruction{}, 0, fmt.Errorf("armv6m: BL needs 4 bytes")
	}
	hw2 := readHalfword(bytes[2:4], endian)
	if hw2&0xC000 != 0xC000 {
		return ga.Instruction{}, 0, fmt.Errorf("%w: malformed BL second halfword", errUnsupportedEncoding)
	}

	s := uint32((hw1 >> 10) & 1)
	imm10 := uint32(hw1 & 0x3FF)
	j1 := uint32((hw2 >> 13) & 1)
	j2 := uint32((hw2 >> 11) & 1)
	imm11 := uint32(hw2 & 0x7FF)

	i1 := 1 - (j1 ^ s)
	i2 := 1 - (j2 ^ s)
	offset := (s << 24) | (i1 << 23) | (i2 << 22) | (imm10 << 12) | (imm11 << 1)
	target := int32(signExtend(offset, 25))

	ops := []ga.Operation{ga.Call(ga.Immediate(uint64(int64(target)), 32))}
	return ga.NewInstruction("bl", 4, 4, ops...), 4, nil
}

// flagsFromResult emits the operation that derives N and Z from the
// already-computed result operand. C and V are not derived: neither this
// helper nor the executor's add/sub evaluation sets them, so they keep
// whatever value they last held (zero in a fresh state).
func flagsFromResult(result ga.Operand) ga.Operation {
	// Reuses the Intrinsic operation as a lightweight "derive N/Z from
	// this operand" marker the executor recognizes, since Operation has
	// no dedicated multi-flag-from-value variant and adding one would
	// duplicate what Intrinsic already expresses generically.
	return ga.Intrinsic("__set_nz_flags", result)
}

func condFromBits(bits uint16) ga.Condition {
	switch bits {
	case 0x0:
		return ga.EQ
	case 0x1:
		return ga.NE
	case 0x2:
		return ga.CS
	case 0x3:
		return ga.CC
	case 0x4:
		return ga.MI
	case 0x5:
		return ga.PL
	case 0x6:
		return ga.VS
	case 0x7:
		return ga.VC
	case 0x8:
		return ga.HI
	case 0x9:
		return ga.LS
	case 0xA:
		return ga.GE
	case 0xB:
		return ga.LT
	case 0xC:
		return ga.GT
	case 0xD:
		return ga.LE
	default:
		return ga.None // 0xE reserved, 0xF is SVC's space
	}
}

// signExtend sign-extends the low bits-wide field of v.
func signExtend(v uint32, bits uint32) uint32 {
	shift := 32 - bits
	return uint32(int32(v<<shift) >> shift)
}
