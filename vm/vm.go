// Package vm drives the DFS exploration loop: it owns the path frontier,
// pops paths in last-saved-first-explored order, replays each one's
// accumulated constraints against the shared solver before handing it to
// an Executor, and aggregates every terminated path's PathResult into a
// run summary.
package vm

import (
	"log/slog"

	"github.com/google/uuid"

	"symexcore/executor"
	"symexcore/memory"
	"symexcore/project"
	"symexcore/smt"
	"symexcore/state"
)

// Path pairs a saved GAState with an identifier stable across the run,
// so a WCET report can correlate a PathResult back to the fork that
// produced it.
type Path struct {
	ID    uuid.UUID
	State *state.GAState
}

// PathSelector is the frontier VM.Run drives. executor.Executor only
// needs the SavePath half (it never pops); VM is the only caller of
// GetPath, keeping the push side and the pop side on one seam (the
// executor takes the frontier as an explicit mutable collaborator, not
// the whole VM).
type PathSelector interface {
	SavePath(s *state.GAState)
	GetPath() (*Path, bool)
	Len() int
}

// DFSPathSelection is a LIFO frontier: the branch saved most recently is
// explored next, so sibling forks explore depth-first along the taken
// edge before backtracking to the saved fall-through.
type DFSPathSelection struct {
	stack []Path
}

// NewDFSPathSelection returns an empty LIFO frontier.
func NewDFSPathSelection() *DFSPathSelection {
	return &DFSPathSelection{}
}

// SavePath pushes s, wrapped with a fresh path identifier, onto the LIFO.
func (d *DFSPathSelection) SavePath(s *state.GAState) {
	d.stack = append(d.stack, Path{ID: uuid.New(), State: s})
}

// GetPath pops the most recently saved path.
func (d *DFSPathSelection) GetPath() (*Path, bool) {
	if len(d.stack) == 0 {
		return nil, false
	}
	last := len(d.stack) - 1
	p := d.stack[last]
	d.stack = d.stack[:last]
	return &p, true
}

// Len reports how many paths are currently parked on the frontier.
func (d *DFSPathSelection) Len() int { return len(d.stack) }

// PathRecord is one terminated path's identity plus its outcome.
type PathRecord struct {
	PathID uuid.UUID
	Result executor.PathResult
}

// RunResult aggregates every path a run explored, plus the worst-case
// (maximum) cycle count among the paths that reached Success: the WCET
// figure a caller above this package (a WCET driver, out of scope here)
// would report.
type RunResult struct {
	RunID     uuid.UUID
	Paths     []PathRecord
	WorstCase uint64
}

// VM owns the shared solver Context, drives one Project's exploration to
// completion, and reports per-path results. It never mutates Project
// once built: every path's GAState holds its own register/flag/local
// maps and its own Memory handle (state.GAState.Clone).
type VM struct {
	Project  *project.Project
	Ctx      *smt.Context
	Solver   *smt.Solver
	Frontier PathSelector
	EndPC    uint64
	Limits   executor.Limits
	Log      *slog.Logger
}

// New builds a VM over an already-loaded Project, exploring until a path
// reaches endPC with an empty call stack, with a DFSPathSelection
// frontier — the only selector this engine ships, though PathSelector
// leaves room for swapping in another.
func New(proj *project.Project, ctx *smt.Context, solver *smt.Solver, endPC uint64, limits executor.Limits) *VM {
	return &VM{
		Project:  proj,
		Ctx:      ctx,
		Solver:   solver,
		Frontier: NewDFSPathSelection(),
		EndPC:    endPC,
		Limits:   limits,
		Log:      slog.Default().With("component", "vm"),
	}
}

// NewInitialState builds the initial Path at the entry symbol, with the
// stack pointer initialized to the project's declared stack base and
// the link register set to EndPC so that the top-level Return
// terminates cleanly.
func (vm *VM) NewInitialState(mem memory.Memory, entryPC uint64) *state.GAState {
	s := state.New(vm.Project, vm.Ctx, vm.Solver, mem, entryPC)
	s.SetRegister("SP", vm.Ctx.Const(vm.Project.WordSize, vm.Project.StackBase))
	s.SetRegister("LR", vm.Ctx.Const(vm.Project.WordSize, vm.EndPC))
	return s
}
