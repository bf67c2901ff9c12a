package executor

import (
	"symexcore/ga"
	"symexcore/smt"
	"symexcore/state"
)

// concretizeAddress resolves addr to its feasible concrete values,
// bounded by MaxMemoryAccessResolutions. A constant address short-
// circuits straight through; a symbolic one is handed to the solver's
// bounded enumerator.
func (e *Executor) concretizeAddress(addr *smt.Expr) ([]uint64, error) {
	if addr.IsConst() {
		return []uint64{addr.ConstValue().Uint64()}, nil
	}
	values, err := e.State.Solver.GetValues(addr, e.Limits.MaxMemoryAccessResolutions)
	if err != nil && err != smt.ErrTooManySolutions {
		return nil, err
	}
	out := make([]uint64, len(values))
	for i, v := range values {
		out[i] = v.Uint64()
	}
	return out, nil
}

// readAt honors a bound MemoryReadHook at addr: a hook that reports
// skip means this address is simulated elsewhere (a memory-mapped
// peripheral register, typically), so the backing memory model is never
// touched and the load instead yields a fresh symbol.
func readAt(s *state.GAState, addr uint64, width uint32) (*smt.Expr, error) {
	if hook, ok := s.Project.MemoryReadHook(addr); ok && hook(addr, width) {
		return s.Ctx.Symbol(width), nil
	}
	return s.Memory.Read(addr, width)
}

// writeAt honors a bound MemoryWriteHook at addr: skip means the store
// is dropped rather than applied to the backing memory model.
func writeAt(s *state.GAState, addr uint64, value *smt.Expr, width uint32) error {
	if hook, ok := s.Project.MemoryWriteHook(addr); ok && hook(addr, width) {
		return nil
	}
	return s.Memory.Write(addr, value, width)
}

// execLoad reads op.Width bits from op.Addr into op.Dst. A symbolic
// address that resolves to more than one feasible value forks one path
// per extra candidate, each pinned to its own address by an asserted
// equality; the live path continues with the first candidate.
func (e *Executor) execLoad(op ga.Operation) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx

	addr := e.eval(op.Addr)
	addrs, err := e.concretizeAddress(addr)
	if err != nil {
		return failureResult(s, SolverError, err.Error()), true
	}
	if len(addrs) == 0 {
		return suppressedResult(), true
	}

	for _, extra := range addrs[1:] {
		forked := s.Clone()
		if !addr.IsConst() {
			forked.RecordConstraint(ctx.Eq(addr, ctx.Const(addr.Width(), extra)))
		}
		v, err := readAt(forked, extra, op.Width)
		if err != nil {
			continue // infeasible candidate for this memory model, drop silently
		}
		writeOperand(forked, op.Dst, v)
		e.Frontier.SavePath(forked)
	}

	chosen := addrs[0]
	if !addr.IsConst() {
		s.Assert(ctx.Eq(addr, ctx.Const(addr.Width(), chosen)))
	}
	v, err := readAt(s, chosen, op.Width)
	if err != nil {
		return failureResult(s, MemoryError, err.Error()), true
	}
	writeOperand(s, op.Dst, v)
	return PathResult{}, false
}

// execStore writes op.Src1's value to op.Addr, with the same fork
// discipline execLoad uses for a multi-valued address.
func (e *Executor) execStore(op ga.Operation) (PathResult, bool) {
	s := e.State
	ctx := s.Ctx

	addr := e.eval(op.Addr)
	value := e.eval(op.Src1)
	addrs, err := e.concretizeAddress(addr)
	if err != nil {
		return failureResult(s, SolverError, err.Error()), true
	}
	if len(addrs) == 0 {
		return suppressedResult(), true
	}

	for _, extra := range addrs[1:] {
		forked := s.Clone()
		if !addr.IsConst() {
			forked.RecordConstraint(ctx.Eq(addr, ctx.Const(addr.Width(), extra)))
		}
		if err := writeAt(forked, extra, value, op.Width); err != nil {
			continue
		}
		e.Frontier.SavePath(forked)
	}

	chosen := addrs[0]
	if !addr.IsConst() {
		s.Assert(ctx.Eq(addr, ctx.Const(addr.Width(), chosen)))
	}
	if err := writeAt(s, chosen, value, op.Width); err != nil {
		return failureResult(s, MemoryError, err.Error()), true
	}
	return PathResult{}, false
}
