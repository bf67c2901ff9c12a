package vm

import (
	"fmt"
	"os"
	"runtime/debug"
	"strconv"

	"github.com/google/uuid"

	"symexcore/executor"
	"symexcore/state"
)

// recoverPath converts a panic escaping one path's exploration into a
// Failure PathResult instead of bringing down the whole run: one
// malformed path (an architecture bug, an unexpected nil) shouldn't cost
// every other path already sitting on the frontier.
func recoverPath(pc uint64, rec *PathRecord) {
	if r := recover(); r != nil {
		rec.Result = executor.PathResult{
			Outcome: executor.Failure,
			Reason:  executor.UnreachableInstruction,
			Detail:  fmt.Sprintf("panic: %v", r),
			PC:      pc,
		}
	}
}

// Run explores initial and everything it forks into, depth-first, until
// the frontier is empty, returning one PathRecord per terminated path.
//
// Instruction interpretation allocates heavily (fresh Exprs per
// operation, cloned GAStates per fork); GC is disabled for the
// duration of the loop and restored via GOGC (or 100, its default)
// afterward.
func (vm *VM) Run(initial *state.GAState) RunResult {
	gcPercent := 100
	if key, ok := os.LookupEnv("GOGC"); ok {
		if parsed, err := strconv.Atoi(key); err == nil {
			gcPercent = parsed
		}
	}
	debug.SetGCPercent(-1)
	defer debug.SetGCPercent(gcPercent)

	vm.Frontier.SavePath(initial)
	run := RunResult{RunID: uuid.New()}

	for vm.Frontier.Len() > 0 {
		path, ok := vm.Frontier.GetPath()
		if !ok {
			break
		}
		rec := vm.runPath(path)
		run.Paths = append(run.Paths, rec)
		if rec.Result.Outcome == executor.Success && rec.Result.CycleCount > run.WorstCase {
			run.WorstCase = rec.Result.CycleCount
		}
		vm.Log.Debug("path terminated", "path", rec.PathID, "outcome", rec.Result.Outcome, "frontier", vm.Frontier.Len())
	}
	return run
}

// runPath replays path's accumulated constraints into a fresh solver
// scope, hands the state to a new Executor, and pops the scope
// regardless of outcome — keeping the solver's assertion stack matched
// to exactly the path currently under interpretation: every SavePath
// must be paired with a matching push/pop around its later GetPath.
func (vm *VM) runPath(path *Path) (rec PathRecord) {
	rec = PathRecord{PathID: path.ID}
	defer recoverPath(path.State.PC, &rec)

	vm.Solver.Push()
	defer vm.Solver.Pop()
	for _, c := range path.State.Constraints() {
		vm.Solver.Assert(c)
	}

	exec := executor.New(path.State, vm.Frontier, vm.EndPC, vm.Limits)
	rec.Result = exec.ResumeExecution()
	return rec
}
