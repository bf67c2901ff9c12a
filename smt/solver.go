package smt

import (
	"errors"
	"math/big"

	"golang.org/x/exp/slices"
)

// Sat is the three-valued result of a satisfiability query.
type Sat int

const (
	Unsat Sat = iota
	Satisfied
	UnknownSat
)

func (s Sat) String() string {
	switch s {
	case Unsat:
		return "unsat"
	case Satisfied:
		return "sat"
	default:
		return "unknown"
	}
}

// ErrUnknown is returned when the bounded enumerator can't determine
// satisfiability within its search budget. ErrTimeout names a timed-out
// query; the enumerator has no time limit, so no query in this package
// returns it. ErrTooManySolutions is returned by
// GetValues when more than limit distinct models exist.
var (
	ErrUnknown          = errors.New("smt: solver returned unknown")
	ErrTimeout          = errors.New("smt: solver timed out")
	ErrTooManySolutions = errors.New("smt: more solutions exist than the requested limit")
)

// maxCandidatesPerSymbol bounds how many candidate values the enumerator
// tries per free symbol before giving up and reporting UnknownSat.
const maxCandidatesPerSymbol = 48

// maxCombinations bounds the Cartesian product search size across all
// free symbols in a query.
const maxCombinations = 200000

// Solver tracks a strictly nested push/pop assertion stack over a single
// Context and answers satisfiability queries against the conjunction of
// everything currently asserted.
type Solver struct {
	ctx    *Context
	frames [][]*Expr
}

// NewSolver creates a solver over ctx with a single, empty base frame.
func NewSolver(ctx *Context) *Solver {
	return &Solver{ctx: ctx, frames: [][]*Expr{{}}}
}

// Push opens a new assertion scope nested inside the current one.
func (s *Solver) Push() {
	s.frames = append(s.frames, nil)
}

// Pop discards the most recently pushed scope and everything asserted in
// it. Popping the base frame is a programming error.
func (s *Solver) Pop() {
	if len(s.frames) == 1 {
		panic("smt: pop without matching push")
	}
	s.frames = s.frames[:len(s.frames)-1]
}

// Depth returns the current number of nested scopes above the base frame.
func (s *Solver) Depth() int { return len(s.frames) - 1 }

// Assert adds a width-1 boolean Expr to the current scope.
func (s *Solver) Assert(e *Expr) {
	s.ctx.checkSameContext(e)
	if e.width != 1 {
		panic("smt: Assert requires a width-1 boolean expression")
	}
	top := len(s.frames) - 1
	s.frames[top] = append(s.frames[top], e)
}

func (s *Solver) allAssertions() []*Expr {
	var all []*Expr
	for _, f := range s.frames {
		all = append(all, f...)
	}
	return all
}

// IsSat reports whether the conjunction of every currently asserted
// expression, together with extra (which may be nil), is satisfiable.
// extra is not added to the stack; it lets callers probe a candidate
// branch condition without a Push/Assert/Pop round trip.
//
// Unsat is only ever returned when search covered the full candidate
// space and proved no model exists; when the heuristic enumerator gives
// up without having covered that space, IsSat reports UnknownSat paired
// with ErrUnknown rather than silently treating "no witness found" as a
// proof of unsatisfiability.
func (s *Solver) IsSat(extra *Expr) (Sat, error) {
	all := s.allAssertions()
	if extra != nil {
		s.ctx.checkSameContext(extra)
		all = append(all, extra)
	}
	_, sat := search(all)
	if sat == UnknownSat {
		return UnknownSat, ErrUnknown
	}
	return sat, nil
}

// GetValues returns up to limit distinct concrete values e can take given
// the currently asserted constraints. If strictly more than limit values
// are feasible, it returns the limit values found plus ErrTooManySolutions.
func (s *Solver) GetValues(e *Expr, limit int) ([]*big.Int, error) {
	s.ctx.checkSameContext(e)
	base := s.allAssertions()

	var found []*big.Int
	seen := map[string]bool{}
	constraints := append([]*Expr(nil), base...)

	for len(found) < limit+1 {
		model, sat := search(constraints)
		if sat == UnknownSat {
			return found, ErrUnknown
		}
		if sat != Satisfied {
			break
		}
		v := eval(e, model)
		key := v.String()
		if !seen[key] {
			seen[key] = true
			found = append(found, v)
		}
		// Exclude this exact value from the next search.
		constraints = append(constraints, s.ctx.Ne(e, s.ctx.ConstBig(e.width, v)))
	}

	// Sort so that two GetValues calls against an equivalent constraint
	// set return candidates in the same order regardless of the
	// enumerator's internal search order — callers that fork one path
	// per candidate (executor's Load/Store/Call) get deterministic
	// fork ordering across runs.
	slices.SortFunc(found, func(a, b *big.Int) int { return a.Cmp(b) })

	if len(found) > limit {
		return found[:limit], ErrTooManySolutions
	}
	return found, nil
}

// search tries to find a satisfying assignment for the conjunction of
// constraints. It reports Satisfied with a model when one is found.
// Unsat is only reported when every symbol's candidate pool was an exact
// enumeration of its full domain and the Cartesian product over all of
// them was searched in full; any other "no witness found" outcome is
// UnknownSat, since the heuristic pool may simply have missed the
// witness rather than one not existing.
func search(constraints []*Expr) (assignment, Sat) {
	if len(constraints) == 0 {
		return assignment{}, Satisfied
	}
	// A direct conflict between two pinned-equality conjuncts (x==5 and
	// x==6, the shape consecutive branch Asserts on the same register
	// produce) is a proof of unsatisfiability regardless of what the
	// bounded enumerator's candidate pool happens to contain.
	if directEqualityConflict(constraints) {
		return nil, Unsat
	}

	seenSym := map[uint64]bool{}
	var syms []*Expr
	for _, c := range constraints {
		symbols(c, seenSym, &syms)
	}
	if len(syms) == 0 {
		// Fully concrete: just evaluate. Always exact.
		for _, c := range constraints {
			if eval(c, nil).Sign() == 0 {
				return nil, Unsat
			}
		}
		return assignment{}, Satisfied
	}

	candidates := make([][]*big.Int, len(syms))
	exhaustive := true
	combos := 1
	for i, sym := range syms {
		vals, exact := candidateValues(sym, constraints)
		candidates[i] = vals
		exhaustive = exhaustive && exact
		combos *= len(vals)
	}

	if combos > maxCombinations {
		// Budget exceeded: fall back to trying each symbol's candidates
		// independently with the others pinned to zero. Cheap and finds
		// the common single-symbol case even when sibling symbols blow
		// up the full product, but it never explores the full Cartesian
		// space, so failing here is never a proof of unsatisfiability.
		model := assignment{}
		for _, sym := range syms {
			model[sym.id] = big.NewInt(0)
		}
		if satisfies(constraints, model) {
			return model, Satisfied
		}
		for i, sym := range syms {
			for _, v := range candidates[i] {
				model[sym.id] = v
				if satisfies(constraints, model) {
					return model, Satisfied
				}
			}
			model[sym.id] = big.NewInt(0)
		}
		return nil, UnknownSat
	}

	model := assignment{}
	if searchCombo(syms, candidates, 0, model, constraints) {
		return model, Satisfied
	}
	if exhaustive {
		return nil, Unsat
	}
	return nil, UnknownSat
}

func searchCombo(syms []*Expr, candidates [][]*big.Int, idx int, model assignment, constraints []*Expr) bool {
	if idx == len(syms) {
		return satisfies(constraints, model)
	}
	for _, v := range candidates[idx] {
		model[syms[idx].id] = v
		if searchCombo(syms, candidates, idx+1, model, constraints) {
			return true
		}
	}
	delete(model, syms[idx].id)
	return false
}

// directEqualityConflict reports whether two constraints pin the same
// symbol to different concrete values via a top-level Eq, e.g. x==5
// alongside x==6. Detecting this syntactically sidesteps the enumerator
// entirely, so it is exact even when the candidate pool for that symbol
// is only a heuristic sample.
func directEqualityConflict(constraints []*Expr) bool {
	pinned := map[uint64]*big.Int{}
	for _, c := range constraints {
		sym, val, ok := asSymbolEquality(c)
		if !ok {
			continue
		}
		if prev, seen := pinned[sym]; seen {
			if prev.Cmp(val) != 0 {
				return true
			}
			continue
		}
		pinned[sym] = val
	}
	return false
}

// asSymbolEquality recognizes a top-level `symbol == constant` (in
// either operand order) constraint and returns the symbol's id and the
// pinned value.
func asSymbolEquality(e *Expr) (uint64, *big.Int, bool) {
	if e.op != opEq || len(e.args) != 2 {
		return 0, nil, false
	}
	a, b := e.args[0], e.args[1]
	if a.op == opSymbol && b.op == opConst {
		return a.id, b.value, true
	}
	if b.op == opSymbol && a.op == opConst {
		return b.id, a.value, true
	}
	return 0, nil, false
}

func satisfies(constraints []*Expr, model assignment) bool {
	for _, c := range constraints {
		if eval(c, model).Sign() == 0 {
			return false
		}
	}
	return true
}

// maxDivisorConstant bounds which constants are worth factoring in
// smallFactorPairs: trial division below this is cheap, above it isn't
// worth the cost for a heuristic pool.
const maxDivisorConstant = 1 << 20

// smallFactorPairs returns every divisor d of v (1 <= d <= v) found by
// trial division up to sqrt(v), along with its cofactor v/d. This is
// what lets the enumerator discover witnesses for constraints like
// x*y==1875: 1875's divisor pairs include (25, 75), neither of which is
// a boundary value or a literal already present in the formula.
func smallFactorPairs(v *big.Int) []*big.Int {
	if v.Sign() <= 0 || v.Cmp(big.NewInt(maxDivisorConstant)) > 0 {
		return nil
	}
	n := v.Int64()
	var out []*big.Int
	for d := int64(1); d*d <= n; d++ {
		if n%d == 0 {
			out = append(out, big.NewInt(d), big.NewInt(n/d))
		}
	}
	return out
}

// candidateValues builds a bounded pool of values worth trying for sym:
// the boundary values of its width, every constant that appears
// alongside it in the constraint set (and their immediate neighbours),
// and the divisor pairs of those constants — covering the
// equality/inequality/range idioms branch conditions produce as well as
// the product/sum relations a compiled multi-variable guard produces.
// The second return value reports whether the pool is an exact
// enumeration of sym's entire domain; callers may only treat an
// exhausted search as Unsat when every symbol's pool was exact.
func candidateValues(sym *Expr, constraints []*Expr) ([]*big.Int, bool) {
	w := sym.width

	// Small widths: just enumerate the full domain, it's cheap and exact
	// as long as it fits inside the per-symbol cap.
	if w <= 8 {
		n := 1 << w
		if n <= maxCandidatesPerSymbol {
			pool := make([]*big.Int, n)
			for i := 0; i < n; i++ {
				pool[i] = big.NewInt(int64(i))
			}
			return pool, true
		}
	}

	pool := []*big.Int{big.NewInt(0), big.NewInt(1)}
	if w > 1 {
		pool = append(pool, mask(w))                                   // all-ones / -1
		pool = append(pool, new(big.Int).Lsh(big.NewInt(1), uint(w-1))) // sign bit / INT_MIN
		pool = append(pool, new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), uint(w-1)), big.NewInt(1)))
	}

	seen := map[string]bool{}
	var consts []*big.Int
	for _, c := range constraints {
		constants(c, seen, &consts)
	}
	for _, v := range consts {
		pool = append(pool, v)
		pool = append(pool, maskTo(new(big.Int).Add(v, big.NewInt(1)), w))
		pool = append(pool, maskTo(new(big.Int).Sub(v, big.NewInt(1)), w))
		pool = append(pool, smallFactorPairs(v)...)
	}

	dedup := map[string]bool{}
	out := make([]*big.Int, 0, len(pool))
	for _, v := range pool {
		v = maskTo(v, w)
		k := v.String()
		if !dedup[k] {
			dedup[k] = true
			out = append(out, v)
		}
		if len(out) >= maxCandidatesPerSymbol {
			break
		}
	}
	return out, false
}
