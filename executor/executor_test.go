package executor

import (
	"testing"

	"symexcore/arch/armv6m"
	"symexcore/ga"
	"symexcore/memory"
	"symexcore/project"
	"symexcore/smt"
	"symexcore/state"
)

type fakeFrontier struct {
	saved []*state.GAState
}

func (f *fakeFrontier) SavePath(s *state.GAState) { f.saved = append(f.saved, s) }

func newTestExecutor() (*Executor, *fakeFrontier) {
	ctx := smt.NewContext()
	solver := smt.NewSolver(ctx)
	proj := project.New(armv6m.New(), 32, memory.LittleEndian, 0x2000_1000, 0x0800_0000)
	mem := memory.NewArrayMemory(ctx, memory.LittleEndian, 1<<20)
	s := state.New(proj, ctx, solver, mem, 0x0800_0000)
	frontier := &fakeFrontier{}
	return New(s, frontier, 0x0800_0000, DefaultLimits()), frontier
}

func TestStepMoveAndAdd(t *testing.T) {
	e, _ := newTestExecutor()
	ctx := e.State.Ctx

	if _, done := e.step(ga.Move(ga.Register("R0"), ga.Immediate(5, 32))); done {
		t.Fatal("move terminated the path")
	}
	if v := e.State.GetRegister("R0"); !v.IsConst() || v.ConstValue().Uint64() != 5 {
		t.Fatalf("R0 = %v, want 5", v)
	}

	if _, done := e.step(ga.Arith(ga.OpAdd, ga.Register("R1"), ga.Register("R0"), ga.Immediate(3, 32))); done {
		t.Fatal("add terminated the path")
	}
	if v := e.State.GetRegister("R1"); !v.IsConst() || v.ConstValue().Uint64() != 8 {
		t.Fatalf("R1 = %v, want 8", v)
	}
	_ = ctx
}

func TestExecLoadStoreRoundTrip(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	addr, err := s.Memory.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	s.SetRegister("R0", s.Ctx.Const(32, addr))
	s.SetRegister("R1", s.Ctx.Const(32, 0xdeadbeef))

	store := ga.Store(ga.Register("R0"), ga.Register("R1"), 32)
	if _, done := e.step(store); done {
		t.Fatal("store terminated the path")
	}

	load := ga.Load(ga.Register("R2"), ga.Register("R0"), 32)
	if _, done := e.step(load); done {
		t.Fatal("load terminated the path")
	}
	v := e.State.GetRegister("R2")
	if !v.IsConst() || v.ConstValue().Uint64() != 0xdeadbeef {
		t.Fatalf("R2 = %v, want 0xdeadbeef", v)
	}
}

func TestExecConditionalJumpBothSatForks(t *testing.T) {
	e, frontier := newTestExecutor()
	s := e.State
	s.SetFlag("Z", s.Ctx.Symbol(1)) // unconstrained: EQ and NE are both satisfiable

	e.currentInsnPC = 0x0800_0100
	e.currentInsnWidth = 2
	op := ga.ConditionalJump(ga.EQ, ga.Immediate(0, 32)) // target = currentInsnPC+4

	result, done := e.execConditionalJump(op)
	if done {
		t.Fatalf("conditional jump should not itself terminate the path, got %v", result)
	}

	if !s.HasJumped || s.PC != 0x0800_0104 {
		t.Fatalf("live path should continue as taken: PC = 0x%x, HasJumped = %v, want 0x0800_0104, true", s.PC, s.HasJumped)
	}
	if len(s.Constraints()) != 1 {
		t.Fatalf("expected live path to record 1 constraint, got %d", len(s.Constraints()))
	}

	if len(frontier.saved) != 1 {
		t.Fatalf("expected 1 forked path, got %d", len(frontier.saved))
	}
	forked := frontier.saved[0]
	if !forked.HasJumped || forked.PC != 0x0800_0102 {
		t.Fatalf("forked fall-through path PC = 0x%x, HasJumped = %v, want 0x0800_0102, true", forked.PC, forked.HasJumped)
	}
}

func TestExecConditionalJumpConcreteDoesNotFork(t *testing.T) {
	e, frontier := newTestExecutor()
	s := e.State
	e.currentInsnPC = 0x0800_0200

	op := ga.ConditionalJump(ga.None, ga.Immediate(0, 32))
	if _, done := e.execConditionalJump(op); done {
		t.Fatal("unconditional jump should not terminate the path")
	}
	if !s.HasJumped || s.PC != 0x0800_0204 {
		t.Fatalf("PC = 0x%x, HasJumped = %v, want 0x0800_0204, true", s.PC, s.HasJumped)
	}
	if len(frontier.saved) != 0 {
		t.Fatalf("expected no forked paths for an unconditional jump, got %d", len(frontier.saved))
	}
}

func TestExecCallAndReturn(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	e.currentInsnPC = 0x0800_0300
	e.currentInsnWidth = 4

	call := ga.Call(ga.Immediate(0, 32)) // direct call to currentInsnPC+4
	if _, done := e.execCall(call); done {
		t.Fatal("call terminated the path")
	}
	if s.PC != 0x0800_0304 {
		t.Fatalf("PC after call = 0x%x, want 0x0800_0304", s.PC)
	}
	if s.CallDepth != 1 {
		t.Fatalf("CallDepth = %d, want 1", s.CallDepth)
	}
	if len(s.ShadowCallStack) != 1 || s.ShadowCallStack[0] != 0x0800_0304 {
		t.Fatalf("ShadowCallStack = %v, want [0x0800_0304]", s.ShadowCallStack)
	}

	if _, done := e.execReturn(); done {
		t.Fatal("return from a call terminated the path instead of resuming at the return address")
	}
	if s.PC != 0x0800_0304 {
		t.Fatalf("PC after return = 0x%x, want 0x0800_0304", s.PC)
	}
	if s.CallDepth != 0 || len(s.ShadowCallStack) != 0 {
		t.Fatalf("expected call stack fully unwound, got depth=%d stack=%v", s.CallDepth, s.ShadowCallStack)
	}

	// A further return with the call stack already empty ends the path.
	result, done := e.execReturn()
	if !done {
		t.Fatal("return with an empty call stack should terminate the path")
	}
	if result.Outcome != Success {
		t.Fatalf("expected Success, got %v", result)
	}
}

func TestExecConditionalJumpBackwardJumpHitsIterLimit(t *testing.T) {
	e, _ := newTestExecutor()
	e.Limits.MaxIterCount = 2
	e.currentInsnPC = 0x0800_0500
	e.currentInsnWidth = 2

	op := ga.ConditionalJump(ga.None, ga.Immediate(uint64(0xFFFFFFFC), 32)) // -4: targets currentInsnPC, a backedge

	for i := 0; i < 2; i++ {
		if _, done := e.execConditionalJump(op); done {
			t.Fatalf("iteration %d should not yet hit the limit", i)
		}
		e.State.PC = e.currentInsnPC // simulate looping back for the next iteration
	}

	result, done := e.execConditionalJump(op)
	if !done || result.Outcome != Failure || result.Reason != MaxIterations {
		t.Fatalf("expected MaxIterations failure on the 3rd backward jump, got %v (done=%v)", result, done)
	}
}

func TestExecCallMaxDepthFails(t *testing.T) {
	e, _ := newTestExecutor()
	e.Limits.MaxCallDepth = 1
	e.State.CallDepth = 1
	e.currentInsnPC = 0x0800_0400
	e.currentInsnWidth = 4

	result, done := e.execCall(ga.Call(ga.Immediate(0, 32)))
	if !done || result.Outcome != Failure || result.Reason != MaxCallDepth {
		t.Fatalf("expected MaxCallDepth failure, got %v (done=%v)", result, done)
	}
}

func TestDispatchIntrinsicSetNZFlags(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	s.SetRegister("R0", s.Ctx.Const(32, 0))

	_, done := e.dispatchIntrinsic("__set_nz_flags", []ga.Operand{ga.Register("R0")})
	if done {
		t.Fatal("__set_nz_flags terminated the path")
	}
	z := s.GetFlag("Z")
	if !z.IsConst() || z.ConstValue().Uint64() != 1 {
		t.Fatalf("Z = %v, want 1 for a zero result", z)
	}
}

func TestDispatchIntrinsicSymbolicInjection(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State

	_, done := e.dispatchIntrinsic("__symex_any_u32", []ga.Operand{ga.Register("R0")})
	if done {
		t.Fatal("__symex_any_u32 terminated the path")
	}
	v := s.GetRegister("R0")
	if v.IsConst() {
		t.Fatal("expected R0 to hold a fresh symbol, got a constant")
	}
	if v.Width() != 32 {
		t.Fatalf("Width = %d, want 32", v.Width())
	}
}

func TestDispatchIntrinsicIgnorePathSuppresses(t *testing.T) {
	e, _ := newTestExecutor()
	result, done := e.dispatchIntrinsic("__symex_ignore_path", nil)
	if !done || result.Outcome != Suppressed {
		t.Fatalf("expected Suppressed, got %v (done=%v)", result, done)
	}
}

func TestDispatchIntrinsicValidatorBridgeAssertsArgument(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	s.SetRegister("R0", s.Ctx.Const(1, 1))

	if _, done := e.dispatchIntrinsic("__symex_valid_pointer", []ga.Operand{ga.Register("R0")}); done {
		t.Fatal("__symex_valid_pointer terminated the path")
	}
	if sat, _ := s.Solver.IsSat(nil); sat != smt.Satisfied {
		t.Fatalf("asserting a concretely-true validator result should stay satisfiable, got %v", sat)
	}

	// A different validated type's name still matches the family and
	// asserts its own boolean argument.
	e2, _ := newTestExecutor()
	s2 := e2.State
	s2.SetRegister("R1", s2.Ctx.Const(1, 0))
	if _, done := e2.dispatchIntrinsic("__symex_valid_enum_e", []ga.Operand{ga.Register("R1")}); done {
		t.Fatal("__symex_valid_enum_e terminated the path")
	}
	if sat, _ := s2.Solver.IsSat(nil); sat != smt.Unsat {
		t.Fatalf("asserting a concretely-false validator result should be unsat, got %v", sat)
	}
}

func TestExecLoadHonorsMemoryReadHookSkip(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	addr, err := s.Memory.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := s.Memory.Write(addr, s.Ctx.Const(32, 0xdeadbeef), 32); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.Project.BindMemoryReadHook(addr, func(a uint64, width uint32) bool { return true })
	s.SetRegister("R0", s.Ctx.Const(32, addr))

	load := ga.Load(ga.Register("R1"), ga.Register("R0"), 32)
	if _, done := e.step(load); done {
		t.Fatal("load terminated the path")
	}
	v := s.GetRegister("R1")
	if v.IsConst() {
		t.Fatalf("expected a hooked read to yield a fresh symbol instead of the backing 0xdeadbeef, got %v", v)
	}
}

func TestExecStoreHonorsMemoryWriteHookSkip(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	addr, err := s.Memory.Allocate(32)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := s.Memory.Write(addr, s.Ctx.Const(32, 0x1111), 32); err != nil {
		t.Fatalf("write: %v", err)
	}
	s.Project.BindMemoryWriteHook(addr, func(a uint64, width uint32) bool { return true })
	s.SetRegister("R0", s.Ctx.Const(32, addr))
	s.SetRegister("R1", s.Ctx.Const(32, 0xdeadbeef))

	store := ga.Store(ga.Register("R0"), ga.Register("R1"), 32)
	if _, done := e.step(store); done {
		t.Fatal("store terminated the path")
	}
	v, err := s.Memory.Read(addr, 32)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !v.IsConst() || v.ConstValue().Uint64() != 0x1111 {
		t.Fatalf("expected a hooked write to leave backing memory untouched (0x1111), got %v", v)
	}
}

func TestEvalHonorsRegisterReadHookRedirect(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	s.SetRegister("R0", s.Ctx.Const(32, 1))
	s.SetRegister("R1", s.Ctx.Const(32, 42))
	s.Project.BindRegisterReadHook("R0", func(name string, op *ga.Operand) *ga.Operand {
		redirected := ga.Register("R1")
		return &redirected
	})

	v := e.eval(ga.Register("R0"))
	if !v.IsConst() || v.ConstValue().Uint64() != 42 {
		t.Fatalf("expected read of R0 to redirect to R1's value (42), got %v", v)
	}
}

func TestWriteOperandHonorsRegisterWriteHookRedirect(t *testing.T) {
	e, _ := newTestExecutor()
	s := e.State
	s.Project.BindRegisterWriteHook("R0", func(name string, op *ga.Operand) *ga.Operand {
		redirected := ga.Register("R1")
		return &redirected
	})

	writeOperand(s, ga.Register("R0"), s.Ctx.Const(32, 7))
	if v := s.GetRegister("R1"); !v.IsConst() || v.ConstValue().Uint64() != 7 {
		t.Fatalf("expected write to R0 to redirect to R1, R1 = %v, want 7", v)
	}
	if v := s.GetRegister("R0"); v.IsConst() && v.ConstValue().Uint64() == 7 {
		t.Fatal("R0 should not have received the redirected write")
	}
}

func TestResumeExecutionReachesEndSuccessHook(t *testing.T) {
	ctx := smt.NewContext()
	solver := smt.NewSolver(ctx)
	proj := project.New(armv6m.New(), 32, memory.LittleEndian, 0x2000_1000, 0x0800_0000)
	proj.AddSegment(project.Segment{VAddr: 0x0800_0000, Data: []byte{0x00, 0xbf}}) // NOP
	proj.SetSymbol("_exit", 0x0800_0002)
	proj.BindPCHook("_exit", project.PCHook{Kind: project.EndSuccess})

	mem := proj.NewMemory(ctx, 1<<20)
	s := state.New(proj, ctx, solver, mem, 0x0800_0000)
	frontier := &fakeFrontier{}
	exec := New(s, frontier, 0x0800_0002, DefaultLimits())

	result := exec.ResumeExecution()
	if result.Outcome != Success {
		t.Fatalf("expected Success, got %v", result)
	}
}
