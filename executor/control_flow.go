package executor

import (
	"symexcore/ga"
	"symexcore/smt"
	"symexcore/state"
)

// resolveBranchTarget resolves a ConditionalJump/Call target operand to
// an absolute address Expr. An Immediate operand is the signed offset
// ARM Thumb branch/call encodings always carry relative to the
// instruction's own PC+4 (armv6m's decode comments call this out
// explicitly); a Register operand (BX/BLX) already holds an absolute
// address.
func (e *Executor) resolveBranchTarget(op ga.Operand) *smt.Expr {
	v := e.eval(op)
	if op.Kind != ga.OperandImmediate {
		return v
	}
	ctx := e.State.Ctx
	offset := signedValue(v)
	base := int64(e.currentInsnPC) + 4
	return ctx.Const(v.Width(), uint64(base+offset))
}

func signedValue(e *smt.Expr) int64 {
	v := e.ConstValue()
	width := e.Width()
	if width == 64 {
		return v.Int64()
	}
	signBit := uint64(1) << (width - 1)
	u := v.Uint64()
	if u&signBit != 0 {
		return int64(u) - int64(uint64(1)<<width)
	}
	return int64(u)
}

// checkBackwardJump enforces the iteration guard: a branch targeting
// its own instruction's address or earlier is a loop backedge, and each
// one taken counts against MaxIterCount so an unbounded loop terminates
// the path instead of exploring forever.
func (e *Executor) checkBackwardJump(s *state.GAState, targetPC uint64) (PathResult, bool) {
	if targetPC > e.currentInsnPC {
		return PathResult{}, false
	}
	s.IterCount++
	if s.IterCount > e.Limits.MaxIterCount {
		return failureResult(s, MaxIterations, "iteration limit exceeded"), true
	}
	return PathResult{}, false
}

// execConditionalJump implements the branch fork discipline: a concrete
// condition never forks, a symbolic one that's only satisfiable in one
// direction pins the live path to that direction, and a genuinely
// two-way condition continues the live path under the taken branch and
// saves the fall-through to the frontier. decodeCondBranch never emits
// a trailing IncrementPC (unlike withFallthrough's instructions), so
// both outcomes here are responsible for their own PC update.
func (e *Executor) execConditionalJump(op ga.Operation) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx
	cond := op.Cond.Eval(ctx, s.Flags())

	target := e.resolveBranchTarget(op.Target)
	if !target.IsConst() {
		return failureResult(s, UnreachableInstruction, "conditional jump target not concrete"), true
	}
	targetPC := target.ConstValue().Uint64()
	fallThroughPC := e.currentInsnPC + uint64(e.currentInsnWidth)

	if cond.IsConst() {
		if cond.ConstValue().Sign() != 0 {
			if result, done := e.checkBackwardJump(s, targetPC); done {
				return result, true
			}
			s.PC = targetPC
		} else {
			s.PC = fallThroughPC
		}
		s.HasJumped = true
		return PathResult{}, false
	}

	takenSat, err := s.Solver.IsSat(cond)
	if err != nil {
		return failureResult(s, SolverError, err.Error()), true
	}
	notCond := ctx.Not(cond)
	skipSat, err := s.Solver.IsSat(notCond)
	if err != nil {
		return failureResult(s, SolverError, err.Error()), true
	}

	switch {
	case takenSat == smt.Unsat && skipSat == smt.Unsat:
		return suppressedResult(), true
	case takenSat != smt.Unsat && skipSat == smt.Unsat:
		if result, done := e.checkBackwardJump(s, targetPC); done {
			return result, true
		}
		s.Assert(cond)
		s.PC = targetPC
		s.HasJumped = true
		return PathResult{}, false
	case takenSat == smt.Unsat && skipSat != smt.Unsat:
		s.Assert(notCond)
		s.PC = fallThroughPC
		s.HasJumped = true
		return PathResult{}, false
	default:
		forked := s.Clone()
		forked.RecordConstraint(notCond)
		forked.PC = fallThroughPC
		forked.HasJumped = true
		e.Frontier.SavePath(forked)

		if result, done := e.checkBackwardJump(s, targetPC); done {
			return result, true
		}
		s.Assert(cond)
		s.PC = targetPC
		s.HasJumped = true
		return PathResult{}, false
	}
}

// execCall resolves the call target (concretizing a register-held
// target up to MaxFnPtrResolutions candidates, forking one path per
// extra candidate), pushes the return address, and enforces the call
// depth limit.
func (e *Executor) execCall(op ga.Operation) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx

	target := e.resolveBranchTarget(op.CallTarget)
	var targets []uint64
	if target.IsConst() {
		targets = []uint64{target.ConstValue().Uint64()}
	} else {
		values, err := s.Solver.GetValues(target, e.Limits.MaxFnPtrResolutions)
		if err != nil && err != smt.ErrTooManySolutions {
			return failureResult(s, SolverError, err.Error()), true
		}
		if len(values) == 0 {
			return suppressedResult(), true
		}
		for _, v := range values {
			targets = append(targets, v.Uint64())
		}
	}

	if s.CallDepth+1 > e.Limits.MaxCallDepth {
		return failureResult(s, MaxCallDepth, "call depth limit exceeded"), true
	}

	returnAddr := e.currentInsnPC + uint64(e.currentInsnWidth)

	for _, extra := range targets[1:] {
		forked := s.Clone()
		if !target.IsConst() {
			forked.RecordConstraint(ctx.Eq(target, ctx.Const(target.Width(), extra)))
		}
		forked.ShadowCallStack = append(forked.ShadowCallStack, returnAddr)
		forked.CallDepth++
		forked.PC = extra
		forked.HasJumped = true
		e.Frontier.SavePath(forked)
	}

	if !target.IsConst() {
		s.Assert(ctx.Eq(target, ctx.Const(target.Width(), targets[0])))
	}
	s.ShadowCallStack = append(s.ShadowCallStack, returnAddr)
	s.CallDepth++
	s.PC = targets[0]
	s.HasJumped = true
	return PathResult{}, false
}

// execReturn pops the shadow call stack. An empty stack means this
// return falls off the top of the call tree: success if the path has
// reached the project's defined end point or never called anything.
func (e *Executor) execReturn() (PathResult, bool) {
	s := e.State
	if len(s.ShadowCallStack) == 0 {
		if s.CallDepth == 0 {
			return successResult(s), true
		}
		return failureResult(s, UnreachableInstruction, "return with empty shadow call stack"), true
	}
	ret := s.ShadowCallStack[len(s.ShadowCallStack)-1]
	s.ShadowCallStack = s.ShadowCallStack[:len(s.ShadowCallStack)-1]
	s.CallDepth--
	s.PC = ret
	s.HasJumped = true
	return PathResult{}, false
}
