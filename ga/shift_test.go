package ga

import (
	"testing"

	"symexcore/smt"
)

func TestApplyLSL(t *testing.T) {
	ctx := smt.NewContext()
	v := ctx.Const(8, 0x01)
	got := Apply(ctx, LSL, v, ctx.Const(8, 4), nil)
	if got.ConstValue().Int64() != 0x10 {
		t.Fatalf("LSL 0x01 by 4 = 0x%x, want 0x10", got.ConstValue())
	}
}

func TestApplyASRSignExtends(t *testing.T) {
	ctx := smt.NewContext()
	v := ctx.Const(8, 0x80) // -128 as int8
	got := Apply(ctx, ASR, v, ctx.Const(8, 4), nil)
	if got.ConstValue().Int64() != 0xF8 {
		t.Fatalf("ASR 0x80 by 4 = 0x%x, want 0xF8", got.ConstValue())
	}
}

func TestApplyRORWrapsAround(t *testing.T) {
	ctx := smt.NewContext()
	v := ctx.Const(8, 0x01)
	got := Apply(ctx, ROR, v, ctx.Const(8, 1), nil)
	if got.ConstValue().Int64() != 0x80 {
		t.Fatalf("ROR 0x01 by 1 = 0x%x, want 0x80", got.ConstValue())
	}
}

func TestApplyRRXPullsInCarry(t *testing.T) {
	ctx := smt.NewContext()
	v := ctx.Const(8, 0x02)
	carry := ctx.Const(1, 1)
	got := Apply(ctx, RRX, v, nil, carry)
	if got.ConstValue().Int64() != 0x81 {
		t.Fatalf("RRX 0x02 with carry=1 = 0x%x, want 0x81", got.ConstValue())
	}
}
