package executor

import (
	"strings"

	"symexcore/ga"
	"symexcore/smt"
)

// validIntrinsicPrefix matches the whole __symex_valid_* family, one
// entry per validated type (__symex_valid_pointer, __symex_valid_enum_e,
// ...), each compiled from a real user-defined is_valid() that has
// already run by the time this intrinsic fires (see valid_derive's
// generated Valid::is_valid, which Validate-derived types compile down
// to) and handed its boolean result as the sole argument.
const validIntrinsicPrefix = "__symex_valid_"

// dispatchIntrinsic handles the small fixed vocabulary of runtime hooks
// a translated Instruction or a PC hook can name: the flag-derivation
// marker armv6m's lifter emits for every data-processing instruction,
// the symbolic-value injection family, the validator-bridge family,
// assumption/suppression helpers, and the two libc calls symbolic
// programs lean on most.
func (e *Executor) dispatchIntrinsic(name string, args []ga.Operand) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx

	switch {
	case name == "__set_nz_flags":
		value := e.eval(args[0])
		width := value.Width()
		s.SetFlag("N", ctx.Extract(value, width-1, width-1))
		s.SetFlag("Z", ctx.Eq(value, ctx.Const(width, 0)))
		return PathResult{}, false

	case name == "__symex_symbolic":
		return e.writeFreshSymbol(args[0], 0)
	case name == "__symex_any_u8":
		return e.writeFreshSymbol(args[0], 8)
	case name == "__symex_any_u16":
		return e.writeFreshSymbol(args[0], 16)
	case name == "__symex_any_u32":
		return e.writeFreshSymbol(args[0], 32)
	case name == "__symex_any_u64":
		return e.writeFreshSymbol(args[0], 64)

	// Any validator for any user type asserts its own already-evaluated
	// boolean result, exactly like __symex_assume below — the validation
	// logic itself lives in the compiled is_valid(), not in this engine.
	case strings.HasPrefix(name, validIntrinsicPrefix):
		s.Assert(e.eval(args[0]))
		return PathResult{}, false

	case name == "__symex_assume":
		s.Assert(e.eval(args[0]))
		return PathResult{}, false

	case name == "__symex_ignore_path", name == "__symex_suppress_path":
		return suppressedResult(), true

	case name == "memcpy":
		return e.execMemcpy(args)
	case name == "memset":
		return e.execMemset(args)

	default:
		return failureResult(s, UnreachableInstruction, "unknown intrinsic: "+name), true
	}
}

// evalAddress resolves op to an address, treating AddressInLocal as "the
// address held by this local" rather than eval's usual "the value
// stored at that address" reading.
func (e *Executor) evalAddress(op ga.Operand) *smt.Expr {
	if op.Kind == ga.OperandAddressInLocal {
		return e.State.GetLocal(op.Name, e.State.Project.WordSize)
	}
	return e.eval(op)
}

// writeFreshSymbol writes a brand-new, entirely unconstrained symbol of
// width bits (or dst's own declared width, or the architecture's word
// size, in that preference order) into dst.
func (e *Executor) writeFreshSymbol(dst ga.Operand, width uint32) (PathResult, bool) {
	s := e.State
	if width == 0 {
		width = dst.Width
		if width == 0 {
			width = s.Project.WordSize
		}
	}
	writeOperand(s, dst, s.Ctx.Symbol(width))
	return PathResult{}, false
}

// execMemcpy requires concrete source/destination addresses and a
// concrete length: a symbolic length would mean an unbounded number of
// possible byte-copy shapes, which this engine doesn't attempt to fork
// over. No intrinsic handler reads MaxIntrinsicConcretizations.
func (e *Executor) execMemcpy(args []ga.Operand) (PathResult, bool) {
	s := e.State
	if len(args) < 3 {
		return failureResult(s, UnreachableInstruction, "memcpy requires 3 arguments"), true
	}
	dstAddr := e.evalAddress(args[0])
	srcAddr := e.evalAddress(args[1])
	length := e.eval(args[2])
	if !dstAddr.IsConst() || !srcAddr.IsConst() || !length.IsConst() {
		return failureResult(s, SolverError, "memcpy requires concrete addresses and length"), true
	}
	dst := dstAddr.ConstValue().Uint64()
	src := srcAddr.ConstValue().Uint64()
	n := length.ConstValue().Uint64()
	for i := uint64(0); i < n; i++ {
		b, err := s.Memory.Read(src+i, 8)
		if err != nil {
			return failureResult(s, MemoryError, err.Error()), true
		}
		if err := s.Memory.Write(dst+i, b, 8); err != nil {
			return failureResult(s, MemoryError, err.Error()), true
		}
	}
	return PathResult{}, false
}

// execMemset requires a concrete address and length; the fill value may
// remain symbolic.
func (e *Executor) execMemset(args []ga.Operand) (PathResult, bool) {
	s := e.State
	if len(args) < 3 {
		return failureResult(s, UnreachableInstruction, "memset requires 3 arguments"), true
	}
	addrExpr := e.evalAddress(args[0])
	value := e.eval(args[1])
	length := e.eval(args[2])
	if !addrExpr.IsConst() || !length.IsConst() {
		return failureResult(s, SolverError, "memset requires a concrete address and length"), true
	}
	addr := addrExpr.ConstValue().Uint64()
	n := length.ConstValue().Uint64()
	byteValue := value
	if byteValue.Width() != 8 {
		byteValue = s.Ctx.Extract(byteValue, 7, 0)
	}
	for i := uint64(0); i < n; i++ {
		if err := s.Memory.Write(addr+i, byteValue, 8); err != nil {
			return failureResult(s, MemoryError, err.Error()), true
		}
	}
	return PathResult{}, false
}
