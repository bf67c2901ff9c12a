package state

import (
	"testing"

	"symexcore/arch/armv6m"
	"symexcore/memory"
	"symexcore/project"
	"symexcore/smt"
)

func newTestState() *GAState {
	ctx := smt.NewContext()
	solver := smt.NewSolver(ctx)
	proj := project.New(armv6m.New(), 32, memory.LittleEndian, 0x2000_1000, 0x0800_0000)
	mem := memory.NewArrayMemory(ctx, memory.LittleEndian, 1<<20)
	return New(proj, ctx, solver, mem, 0x0800_0000)
}

func TestRegisterDefaultsToZero(t *testing.T) {
	s := newTestState()
	r0 := s.GetRegister("R0")
	if !r0.IsConst() || r0.ConstValue().Sign() != 0 {
		t.Fatalf("expected a fresh zero register, got %v", r0)
	}
}

func TestSetRegisterConcretePC(t *testing.T) {
	s := newTestState()
	s.SetRegister("PC", s.Ctx.Const(32, 0x0800_0100))
	if s.PC != 0x0800_0100 {
		t.Fatalf("PC = 0x%x, want 0x0800_0100", s.PC)
	}
	if !s.HasJumped {
		t.Fatal("expected HasJumped to be set after a concrete PC write")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestState()
	s.SetRegister("R0", s.Ctx.Const(32, 1))

	clone := s.Clone()
	clone.SetRegister("R0", s.Ctx.Const(32, 2))

	if s.GetRegister("R0").ConstValue().Int64() != 1 {
		t.Fatal("original register mutated by writing through the clone")
	}
	if clone.GetRegister("R0").ConstValue().Int64() != 2 {
		t.Fatal("clone write didn't stick")
	}
}

func TestAssertRecordedForReplay(t *testing.T) {
	s := newTestState()
	cond := s.Ctx.Eq(s.GetRegister("R0"), s.Ctx.Const(32, 0))
	s.Assert(cond)
	if len(s.Constraints()) != 1 {
		t.Fatalf("expected 1 recorded constraint, got %d", len(s.Constraints()))
	}
	sat, err := s.Solver.IsSat(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sat != smt.Satisfied {
		t.Fatalf("expected sat, got %v", sat)
	}
}
