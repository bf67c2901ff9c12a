package executor

import (
	"fmt"

	"symexcore/ga"
	"symexcore/project"
	"symexcore/smt"
	"symexcore/state"
)

// Limits bounds the resource-exhaustion paths this engine guards
// against: how deep calls may nest, how many backward jumps a path may
// take, and how many
// distinct concrete models a symbolic PC write, memory access, or
// intrinsic concretization is allowed to fan out into before the path
// gives up rather than exploring an unbounded number of siblings.
type Limits struct {
	MaxCallDepth                int
	MaxIterCount                int
	MaxFnPtrResolutions         int
	MaxMemoryAccessResolutions  int
	MaxIntrinsicConcretizations int
}

// DefaultLimits returns the baseline resource limits used when no
// configuration file overrides them.
func DefaultLimits() Limits {
	return Limits{
		MaxCallDepth:                1000,
		MaxIterCount:                1000,
		MaxFnPtrResolutions:         1,
		MaxMemoryAccessResolutions:  100,
		MaxIntrinsicConcretizations: 100,
	}
}

// Frontier is the mutable collaborator an Executor pushes forked paths
// into. The executor takes this explicit interface rather than a
// reference to the whole VM, which would otherwise need the VM and
// Executor to hold cyclic references to one another.
type Frontier interface {
	SavePath(s *state.GAState)
}

// Executor interprets Operations against one GAState until the path
// terminates.
type Executor struct {
	State    *state.GAState
	Frontier Frontier
	EndPC    uint64
	Limits   Limits

	// currentInsnPC/currentInsnWidth are snapshotted at the start of each
	// instruction, before any of its Operations run, so that PC-relative
	// branch/call targets and call return addresses resolve against the
	// instruction's own address rather than whatever State.PC has become
	// mid-instruction.
	currentInsnPC    uint64
	currentInsnWidth uint32
}

// New builds an Executor over s, forking into frontier, with program
// completion defined by reaching endPC with an empty call stack.
func New(s *state.GAState, frontier Frontier, endPC uint64, limits Limits) *Executor {
	return &Executor{State: s, Frontier: frontier, EndPC: endPC, Limits: limits}
}

// ResumeExecution runs s forward, instruction by instruction, until it
// terminates: success, a named failure, or silent suppression.
func (e *Executor) ResumeExecution() PathResult {
	for {
		if e.State.PC == e.EndPC && len(e.State.ShadowCallStack) == 0 {
			return successResult(e.State)
		}
		if hook, ok := e.State.Project.PCHookAt(e.State.PC); ok {
			if result, done := e.applyPCHook(hook); done {
				return result
			}
		}

		insn, _, err := e.State.Project.FetchInstruction(e.State.PC)
		if err != nil {
			return failureResult(e.State, UnreachableInstruction, err.Error())
		}

		e.currentInsnPC = e.State.PC
		e.currentInsnWidth = insn.WidthBytes
		e.State.CycleCount = e.State.Ctx.Add(extendTo(e.State.Ctx, e.State.CycleCount, 64), e.State.Ctx.Const(64, insn.CycleCost))
		e.State.HasJumped = false
		for _, op := range insn.Operations {
			if result, done := e.step(op); done {
				return result
			}
			if e.State.HasJumped {
				// A jump (conditional or unconditional) already
				// repositioned PC; remaining trailer operations in this
				// same Instruction (e.g. a stale IncrementPC) don't apply.
				break
			}
		}
	}
}

// applyPCHook executes a project-bound hook, reporting whether the path
// terminated here.
func (e *Executor) applyPCHook(hook project.PCHook) (PathResult, bool) {
	switch hook.Kind {
	case project.Continue:
		return PathResult{}, false
	case project.Suppress:
		return suppressedResult(), true
	case project.EndSuccess:
		return successResult(e.State), true
	case project.EndFailure:
		return failureResult(e.State, reasonFromName(hook.FailureReason), hook.FailureReason), true
	case project.IntrinsicHook:
		return e.dispatchIntrinsic(hook.IntrinsicName, nil)
	default:
		return PathResult{}, false
	}
}

func reasonFromName(name string) FailureReason {
	switch name {
	case "PanicReached":
		return PanicReached
	case "AssertionFailed":
		return AssertionFailed
	default:
		return UnreachableInstruction
	}
}

// step evaluates one Operation, returning (result, true) if it
// terminated the path.
func (e *Executor) step(op ga.Operation) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx

	switch op.Kind {
	case ga.OpMove:
		writeOperand(s, op.Dst, e.eval(op.Src1))
		return PathResult{}, false

	case ga.OpAdd, ga.OpSub, ga.OpAnd, ga.OpOr, ga.OpXor:
		a, b := e.eval(op.Src1), e.eval(op.Src2)
		result := applyArith(ctx, op.Kind, a, b)
		writeOperand(s, op.Dst, result)
		return PathResult{}, false

	case ga.OpShift:
		v, amount := e.eval(op.Src1), e.eval(op.Src2)
		result := ga.Apply(ctx, op.ShiftKind, v, amount, s.GetFlag("C"))
		writeOperand(s, op.Dst, result)
		return PathResult{}, false

	case ga.OpLoad:
		return e.execLoad(op)

	case ga.OpStore:
		return e.execStore(op)

	case ga.OpSetFlag:
		s.SetFlag(op.FlagName, e.eval(op.Src1))
		return PathResult{}, false

	case ga.OpConditionalJump:
		return e.execConditionalJump(op)

	case ga.OpCall:
		return e.execCall(op)

	case ga.OpReturn:
		return e.execReturn()

	case ga.OpIntrinsic:
		return e.dispatchIntrinsic(op.IntrinsicName, op.IntrinsicArgs)

	case ga.OpAddCycles:
		cost := e.eval(op.Cycles)
		s.CycleCount = ctx.Add(extendTo(ctx, s.CycleCount, 64), extendTo(ctx, cost, 64))
		return PathResult{}, false

	case ga.OpIncrementPC:
		by := e.eval(op.Src1)
		if by.IsConst() {
			s.PC += by.ConstValue().Uint64()
		}
		return PathResult{}, false

	default:
		return failureResult(s, UnreachableInstruction, "unhandled operation kind"), true
	}
}

func extendTo(ctx *smt.Context, e *smt.Expr, width uint32) *smt.Expr {
	if e.Width() == width {
		return e
	}
	if e.Width() > width {
		return ctx.Extract(e, width-1, 0)
	}
	return ctx.ZeroExtend(e, width)
}

func applyArith(ctx *smt.Context, kind ga.OpKind, a, b *smt.Expr) *smt.Expr {
	switch kind {
	case ga.OpAdd:
		return ctx.Add(a, b)
	case ga.OpSub:
		return ctx.Sub(a, b)
	case ga.OpAnd:
		return ctx.And(a, b)
	case ga.OpOr:
		return ctx.Or(a, b)
	case ga.OpXor:
		return ctx.Xor(a, b)
	default:
		panic("executor: not an arithmetic op kind")
	}
}

// eval resolves an Operand to its current Expr value.
func (e *Executor) eval(op ga.Operand) *smt.Expr {
	s := e.State
	switch op.Kind {
	case ga.OperandRegister:
		if hook, ok := s.Project.RegisterReadHook(op.Name); ok {
			if redirected := hook(op.Name, &op); redirected != nil {
				op = *redirected
			}
		}
		return s.GetRegister(op.Name)
	case ga.OperandLocal:
		width := op.Width
		if width == 0 {
			width = s.Project.WordSize
		}
		return s.GetLocal(op.Name, width)
	case ga.OperandImmediate:
		width := op.Width
		if width == 0 {
			width = s.Project.WordSize
		}
		return s.Ctx.Const(width, op.Value)
	case ga.OperandAddressInLocal:
		addr := s.GetLocal(op.Name, s.Project.WordSize)
		v, err := s.Memory.Read(concretize1(addr), op.Width)
		if err != nil {
			return s.Ctx.Const(op.Width, 0)
		}
		return v
	case ga.OperandFlag:
		return s.GetFlag(op.Name)
	default:
		panic("executor: unknown operand kind")
	}
}

// writeOperand stores value into the location op names.
func writeOperand(s *state.GAState, op ga.Operand, value *smt.Expr) {
	switch op.Kind {
	case ga.OperandRegister:
		if hook, ok := s.Project.RegisterWriteHook(op.Name); ok {
			if redirected := hook(op.Name, &op); redirected != nil {
				op = *redirected
			}
		}
		s.SetRegister(op.Name, value)
	case ga.OperandLocal:
		s.SetLocal(op.Name, value)
	case ga.OperandFlag:
		s.SetFlag(op.Name, value)
	default:
		panic(fmt.Sprintf("executor: cannot write to operand kind %v", op.Kind))
	}
}

// concretize1 returns addr's sole concrete value when it is already
// constant-folded; callers needing true concretization-with-forking use
// concretizeAddress (memory_ops.go) instead. This helper exists only for the
// AddressInLocal convenience path, which never arises from symbolic
// pointer arithmetic directly (the executor always funnels address
// computation through concretizeAddress first).
func concretize1(addr *smt.Expr) uint64 {
	if addr.IsConst() {
		return addr.ConstValue().Uint64()
	}
	return 0
}
