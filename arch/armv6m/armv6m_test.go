package armv6m

import (
	"testing"

	"symexcore/ga"
	"symexcore/memory"
)

func encodeHalfword(hw uint16) []byte {
	return []byte{byte(hw), byte(hw >> 8)}
}

func TestTranslateMovsImmediate(t *testing.T) {
	a := New()
	// MOVS R0, #5 -> 0010 0 000 00000101
	bytes := encodeHalfword(0x2005)
	insn, consumed, err := a.Translate(bytes, 0x0800_0000, memory.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != 2 {
		t.Fatalf("consumed = %d, want 2", consumed)
	}
	if insn.Mnemonic != "movs" {
		t.Fatalf("mnemonic = %q, want movs", insn.Mnemonic)
	}
	if insn.Operations[0].Dst.Name != "R0" {
		t.Fatalf("dst = %q, want R0", insn.Operations[0].Dst.Name)
	}
	if insn.Operations[0].Src1.Value != 5 {
		t.Fatalf("immediate = %d, want 5", insn.Operations[0].Src1.Value)
	}
}

func TestTranslateAddsRegister(t *testing.T) {
	a := New()
	// ADDS R0, R1, R2 -> 0001100 010 001 000
	bytes := encodeHalfword(0x1888)
	insn, _, err := a.Translate(bytes, 0, memory.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.Mnemonic != "adds" {
		t.Fatalf("mnemonic = %q, want adds", insn.Mnemonic)
	}
	op := insn.Operations[0]
	if op.Kind != ga.OpAdd || op.Dst.Name != "R0" || op.Src1.Name != "R1" || op.Src2.Name != "R2" {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestTranslateConditionalBranch(t *testing.T) {
	a := New()
	// BEQ #0 -> 1101 0000 00000000
	bytes := encodeHalfword(0xD000)
	insn, consumed, err := a.Translate(bytes, 0, memory.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != 2 {
		t.Fatalf("consumed = %d, want 2", consumed)
	}
	op := insn.Operations[0]
	if op.Kind != ga.OpConditionalJump || op.Cond != ga.EQ {
		t.Fatalf("unexpected operation: %+v", op)
	}
}

func TestTranslateBL32Bit(t *testing.T) {
	a := New()
	// BL with a zero offset: S=0, imm10=0, J1=1, J2=1, imm11=0 gives
	// I1=I2=NOT(J XOR S)=0, offset bits all zero -> target relative offset 0.
	first := uint16(0xF000)
	second := uint16(0xF800 | (1 << 13) | (1 << 11))
	bytes := append(encodeHalfword(first), encodeHalfword(second)...)
	insn, consumed, err := a.Translate(bytes, 0, memory.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if consumed != 4 {
		t.Fatalf("consumed = %d, want 4", consumed)
	}
	if insn.Mnemonic != "bl" {
		t.Fatalf("mnemonic = %q, want bl", insn.Mnemonic)
	}
	if insn.Operations[0].Kind != ga.OpCall {
		t.Fatalf("expected a Call operation, got %+v", insn.Operations[0])
	}
}

func TestTranslatePushPop(t *testing.T) {
	a := New()
	// PUSH {R0, R1, LR} -> 1011 0101 00000011
	bytes := encodeHalfword(0xB503)
	insn, _, err := a.Translate(bytes, 0, memory.LittleEndian)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if insn.Mnemonic != "push" {
		t.Fatalf("mnemonic = %q, want push", insn.Mnemonic)
	}
	// Two registers + LR each contribute a sub+store pair.
	if len(insn.Operations) != 6+1 { // +1 for the trailing IncrementPC
		t.Fatalf("operations = %d, want 7", len(insn.Operations))
	}
}

func TestTranslateUnsupportedEncodingReturnsError(t *testing.T) {
	a := New()
	// UDF #0 -> 1101 1110 00000000, excluded from the conditional-branch case
	bytes := encodeHalfword(0xDE00)
	if _, _, err := a.Translate(bytes, 0, memory.LittleEndian); err == nil {
		t.Fatal("expected an error for an unhandled encoding")
	}
}
