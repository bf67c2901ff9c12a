// Package executor interprets General Assembly Operations against a
// GAState until the path terminates, forking the VM's frontier at every
// non-deterministic choice it meets along the way.
package executor

import (
	"fmt"

	"symexcore/state"
)

// FailureReason enumerates why a path ended in Failure.
type FailureReason int

const (
	UnreachableInstruction FailureReason = iota
	PanicReached
	AssertionFailed
	MaxCallDepth
	MaxIterations
	MemoryError
	SolverError
)

func (r FailureReason) String() string {
	switch r {
	case UnreachableInstruction:
		return "UnreachableInstruction"
	case PanicReached:
		return "PanicReached"
	case AssertionFailed:
		return "AssertionFailed"
	case MaxCallDepth:
		return "MaxCallDepth"
	case MaxIterations:
		return "MaxIterations"
	case MemoryError:
		return "MemoryError"
	case SolverError:
		return "SolverError"
	default:
		return "Unknown"
	}
}

// Outcome tags which variant of PathResult this is.
type Outcome int

const (
	Success Outcome = iota
	Failure
	Suppressed
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "Success"
	case Failure:
		return "Failure"
	case Suppressed:
		return "Suppressed"
	default:
		return "Unknown"
	}
}

// PathResult is the terminal report for one explored path: a successful
// run's accumulated cycle count, or the reason and the PC a path died
// at, or silent suppression via an intrinsic.
type PathResult struct {
	Outcome    Outcome
	CycleCount uint64
	Reason     FailureReason
	Detail     string
	PC         uint64
}

func (r PathResult) String() string {
	switch r.Outcome {
	case Success:
		return fmt.Sprintf("Success(cycles=%d)", r.CycleCount)
	case Suppressed:
		return "Suppressed"
	default:
		return fmt.Sprintf("Failure(%s at 0x%x: %s)", r.Reason, r.PC, r.Detail)
	}
}

func successResult(s *state.GAState) PathResult {
	cycles := uint64(0)
	if s.CycleCount.IsConst() {
		cycles = s.CycleCount.ConstValue().Uint64()
	}
	return PathResult{Outcome: Success, CycleCount: cycles}
}

func failureResult(s *state.GAState, reason FailureReason, detail string) PathResult {
	return PathResult{Outcome: Failure, Reason: reason, Detail: detail, PC: s.PC}
}

func suppressedResult() PathResult {
	return PathResult{Outcome: Suppressed}
}
