// Package armv6m implements the Architecture interface for the ARMv6-M
// Thumb instruction set: it lowers raw machine code bytes into the
// General Assembly IR one instruction at a time.
package armv6m

import (
	"debug/elf"
	"fmt"

	"symexcore/ga"
	"symexcore/memory"
	"symexcore/project"
)

func init() {
	project.RegisterArchitecture(elf.EM_ARM, func() project.Architecture { return New() })
}

// Architecture lifts ARMv6-M Thumb (16-bit, plus the 32-bit BL/BLX
// encoding) into General Assembly IR. It covers the pragmatic subset
// exercised by straight-line, branching, and call/return firmware code:
// arithmetic and compare on low registers, hi-register MOV, PC-relative
// and SP-relative load/store, PUSH/POP, conditional and unconditional
// branches, and BL.
type Architecture struct{}

func New() *Architecture { return &Architecture{} }

func (*Architecture) Name() string { return "armv6m" }

// MaxInstructionBytes is 4: the widest encoding this lifter handles is
// the 32-bit BL.
func (*Architecture) MaxInstructionBytes() uint32 { return 4 }

// regName maps a 3-bit low-register field (r0-r7) to its architectural
// name.
func regName(n uint16) string { return fmt.Sprintf("R%d", n) }

// hiRegName maps a 4-bit register field (r0-r15, including SP/LR/PC) to
// its architectural name.
func hiRegName(n uint16) string {
	switch n {
	case 13:
		return "SP"
	case 14:
		return "LR"
	case 15:
		return "PC"
	default:
		return fmt.Sprintf("R%d", n)
	}
}

var errUnsupportedEncoding = fmt.Errorf("armv6m: unsupported or unimplemented instruction encoding")

// Translate decodes the 16-bit halfword at bytes[0:2] (and, for a BL
// encoding, the following halfword at bytes[2:4]) into IR.
func (a *Architecture) Translate(bytes []byte, pc uint64, endian memory.Endianness) (ga.Instruction, uint32, error) {
	if len(bytes) < 2 {
		return ga.Instruction{}, 0, fmt.Errorf("armv6m: need at least 2 bytes at pc 0x%x", pc)
	}
	hw := readHalfword(bytes[0:2], endian)

	switch {
	case hw&0xF800 == 0x1800: // ADD/SUB register, 3-bit immediate
		return decodeAddSub3(hw)
	case hw&0xE000 == 0x0000 && hw&0xF800 != 0x1800: // LSL/LSR/ASR immediate
		return decodeShiftImm(hw)
	case hw&0xE000 == 0x2000: // MOV/CMP/ADD/SUB immediate, 8-bit
		return decodeImm8(hw)
	case hw&0xFC00 == 0x4000: // data-processing register (AND..MVN)
		return decodeDataProcessing(hw)
	case hw&0xFC00 == 0x4400: // hi-register MOV/CMP/ADD, BX/BLX
		return decodeHiRegister(hw)
	case hw&0xF800 == 0x4800: // LDR literal (PC-relative)
		return decodeLdrLiteral(hw, pc)
	case hw&0xF000 == 0x5000 || hw&0xE000 == 0x6000 || hw&0xF000 == 0x8000: // LDR/STR register or immediate offset
		return decodeLoadStoreImm(hw)
	case hw&0xF000 == 0x9000: // LDR/STR SP-relative
		return decodeLoadStoreSP(hw)
	case hw&0xFF00 == 0xB000: // ADD/SUB SP, immediate
		return decodeAddSubSP(hw)
	case hw&0xFE00 == 0xB400 || hw&0xFE00 == 0xBC00: // PUSH/POP
		return decodePushPop(hw)
	case hw&0xF000 == 0xD000 && hw&0x0F00 != 0x0E00 && hw&0x0F00 != 0x0F00: // conditional branch
		return decodeCondBranch(hw)
	case hw&0xF800 == 0xE000: // unconditional branch
		return decodeUncondBranch(hw)
	case hw&0xF800 == 0xF000: // BL first halfword
		return decodeBL(bytes, hw, endian)
	case hw == 0xBF00: // NOP
		return nopInstruction(), 2, nil
	default:
		return ga.Instruction{}, 0, fmt.Errorf("%w: 0x%04x at pc 0x%x", errUnsupportedEncoding, hw, pc)
	}
}

func readHalfword(b []byte, endian memory.Endianness) uint16 {
	if endian == memory.BigEndian {
		return uint16(b[0])<<8 | uint16(b[1])
	}
	return uint16(b[1])<<8 | uint16(b[0])
}

func nopInstruction() ga.Instruction {
	return ga.NewInstruction("nop", 2, 1, ga.IncrementPC(ga.Immediate(2, 32)))
}

// withFallthrough appends the trailing "increment PC by width" operation
// every instruction that doesn't itself write PC needs. The instruction's
// static cost travels in
// Instruction.CycleCost; no instruction in this lifter emits an explicit
// OpAddCycles operation.
func withFallthrough(mnemonic string, width uint32, cycles uint64, ops ...ga.Operation) ga.Instruction {
	ops = append(ops, ga.IncrementPC(ga.Immediate(uint64(width), 32)))
	return ga.NewInstruction(mnemonic, width, cycles, ops...)
}
