// Package state implements GAState: the per-path mutable snapshot an
// Executor advances one Operation at a time and that a fork point
// deep-copies onto the VM's frontier.
package state

import (
	"symexcore/ga"
	"symexcore/memory"
	"symexcore/project"
	"symexcore/smt"
)

// GAState is the per-path execution state: registers, flags, locals,
// memory, the constraint stack, and the bookkeeping the executor needs
// to detect call-depth/iteration limits and fall-through-vs-branch.
type GAState struct {
	Project *project.Project
	Ctx     *smt.Context
	Solver  *smt.Solver

	PC uint64

	registers map[string]*smt.Expr
	flags     map[string]*smt.Expr
	locals    map[string]*smt.Expr
	Memory    memory.Memory

	// constraints is the client-side replay list of everything this path
	// has asserted or recorded, kept because a forked Path carries its
	// full constraint history in the state rather than in the shared
	// solver stack.
	constraints []*smt.Expr

	CycleCount *smt.Expr
	CallDepth  int
	IterCount  int
	HasJumped  bool

	// ShadowCallStack holds return addresses pushed by Call when the
	// architecture doesn't model an addressable stack slot for them
	// (link-register architectures keep this instead of writing LR's
	// value into memory on every call).
	ShadowCallStack []uint64
}

// New builds the initial state for a path starting at pc with a fresh,
// all-zero flag quartet.
func New(proj *project.Project, ctx *smt.Context, solver *smt.Solver, mem memory.Memory, pc uint64) *GAState {
	s := &GAState{
		Project:    proj,
		Ctx:        ctx,
		Solver:     solver,
		PC:         pc,
		registers:  make(map[string]*smt.Expr),
		flags:      make(map[string]*smt.Expr),
		locals:     make(map[string]*smt.Expr),
		Memory:     mem,
		CycleCount: ctx.Const(64, 0),
	}
	for _, f := range []string{"N", "Z", "C", "V"} {
		s.flags[f] = ctx.Const(1, 0)
	}
	return s
}

// GetRegister returns name's current value, or a fresh zero constant if
// it has never been written (matching an architecturally-undefined
// reset value being concretely zero for this core's purposes).
func (s *GAState) GetRegister(name string) *smt.Expr {
	if e, ok := s.registers[name]; ok {
		return e
	}
	e := s.Ctx.Const(s.Project.WordSize, 0)
	s.registers[name] = e
	return e
}

// SetRegister assigns value to name. Writing "PC" with a constant value
// updates PC directly; a symbolic value is the caller's (executor's)
// responsibility to concretize first, up to MaxFnPtrResolutions models.
func (s *GAState) SetRegister(name string, value *smt.Expr) {
	if name == "PC" {
		if value.IsConst() {
			s.PC = value.ConstValue().Uint64()
			s.HasJumped = true
			return
		}
		panic("state: SetRegister(\"PC\", ...) requires the executor to concretize first")
	}
	s.registers[name] = value
}

// Flags returns the current N/Z/C/V quartet as a ga.Flags value for
// Condition.Eval.
func (s *GAState) Flags() ga.Flags {
	return ga.Flags{N: s.flags["N"], Z: s.flags["Z"], C: s.flags["C"], V: s.flags["V"]}
}

// GetFlag returns flag name's current value.
func (s *GAState) GetFlag(name string) *smt.Expr { return s.flags[name] }

// SetFlag assigns value to flag name.
func (s *GAState) SetFlag(name string, value *smt.Expr) { s.flags[name] = value }

// GetLocal returns local name's current value, or a fresh zero constant
// of width if it has never been written.
func (s *GAState) GetLocal(name string, width uint32) *smt.Expr {
	if e, ok := s.locals[name]; ok {
		return e
	}
	e := s.Ctx.Const(width, 0)
	s.locals[name] = e
	return e
}

// SetLocal assigns value to local name.
func (s *GAState) SetLocal(name string, value *smt.Expr) { s.locals[name] = value }

// Assert pushes e onto both the solver's current scope and the
// client-side replay list.
func (s *GAState) Assert(e *smt.Expr) {
	s.Solver.Assert(e)
	s.constraints = append(s.constraints, e)
}

// RecordConstraint appends e to the client-side replay list without
// touching Solver. A forked path parked on the VM's frontier isn't the
// live path, so asserting directly into the shared Solver would corrupt
// the active path's scope; the constraint is replayed into the solver,
// in a freshly pushed scope, by whatever resumes it (vm.runPath).
func (s *GAState) RecordConstraint(e *smt.Expr) {
	s.constraints = append(s.constraints, e)
}

// PushScope opens a new solver scope.
func (s *GAState) PushScope() { s.Solver.Push() }

// PopScope discards the most recently opened solver scope.
func (s *GAState) PopScope() { s.Solver.Pop() }

// Constraints returns the client-side replay list accumulated by
// Assert and RecordConstraint, for a forked Path to re-assert against a solver that has
// since been popped back past this state's scope.
func (s *GAState) Constraints() []*smt.Expr {
	return append([]*smt.Expr(nil), s.constraints...)
}

// Clone deep-copies registers/flags/locals/constraints and the memory
// handle, producing an independently-mutable state for a forked path.
// Solver and Ctx are shared: the solver's scope stack is what actually
// diverges between paths, handled by vm.runPath's push/replay/pop, not by
// cloning the Solver value itself.
func (s *GAState) Clone() *GAState {
	clone := &GAState{
		Project:    s.Project,
		Ctx:        s.Ctx,
		Solver:     s.Solver,
		PC:         s.PC,
		registers:  make(map[string]*smt.Expr, len(s.registers)),
		flags:      make(map[string]*smt.Expr, len(s.flags)),
		locals:     make(map[string]*smt.Expr, len(s.locals)),
		Memory:     s.Memory.Clone(),
		CycleCount: s.CycleCount,
		CallDepth:  s.CallDepth,
		IterCount:  s.IterCount,
		HasJumped:  s.HasJumped,
	}
	for k, v := range s.registers {
		clone.registers[k] = v
	}
	for k, v := range s.flags {
		clone.flags[k] = v
	}
	for k, v := range s.locals {
		clone.locals[k] = v
	}
	clone.constraints = append([]*smt.Expr(nil), s.constraints...)
	clone.ShadowCallStack = append([]uint64(nil), s.ShadowCallStack...)
	return clone
}
