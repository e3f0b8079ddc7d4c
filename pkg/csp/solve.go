package csp

import (
	"context"
	"fmt"
)

// Status classifies the outcome of a solve.
type Status int

const (
	// StatusUnknown: the deadline expired before any assignment was found.
	StatusUnknown Status = iota
	// StatusOptimal: search completed; the assignment is proven best
	// (for satisfaction models, simply proven feasible).
	StatusOptimal
	// StatusFeasible: the deadline expired with at least one incumbent;
	// the assignment is the best found so far.
	StatusFeasible
	// StatusInfeasible: no assignment satisfies the enforced constraints.
	StatusInfeasible
)

func (s Status) String() string {
	switch s {
	case StatusOptimal:
		return "optimal"
	case StatusFeasible:
		return "feasible"
	case StatusInfeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Result carries the solve status and, when solved, the assignment.
type Result struct {
	Status    Status
	Objective int64
	Nodes     uint64

	vals []int64
}

// Solved reports whether the result carries an assignment.
func (r Result) Solved() bool {
	return r.Status == StatusOptimal || r.Status == StatusFeasible
}

// Value returns the assigned value of v. Calling it on an unsolved
// result is a defect.
func (r Result) Value(v IntVar) int64 {
	if r.vals == nil {
		panic("csp: Value on an unsolved result")
	}
	if v < 0 || int(v) >= len(r.vals) {
		panic(fmt.Sprintf("csp: variable %d not in solution", v))
	}
	return r.vals[v]
}

// BoolValue returns the assigned truth of a literal.
func (r Result) BoolValue(l Literal) bool {
	val := r.Value(l.v) == 1
	if l.neg {
		return !val
	}
	return val
}

// Solve runs branch-and-bound search until the model is proven optimal
// or infeasible, or the context deadline expires.
func (m *Model) Solve(ctx context.Context) Result {
	s := &solver{m: m, ctx: ctx}
	if m.hasObj {
		s.obj = m.objective
		if !m.maximizeObj {
			s.obj = m.objective.Scale(-1)
		}
	}

	var best []int64
	haveBest := false
	for {
		vals, ok := s.dfs(clone(m.lo), clone(m.hi))
		if s.aborted {
			if haveBest {
				return m.result(StatusFeasible, best, s.nodes)
			}
			return Result{Status: StatusUnknown, Nodes: s.nodes}
		}
		if !ok {
			if haveBest {
				return m.result(StatusOptimal, best, s.nodes)
			}
			return Result{Status: StatusInfeasible, Nodes: s.nodes}
		}
		if !m.hasObj {
			return m.result(StatusOptimal, vals, s.nodes)
		}
		best = vals
		haveBest = true
		// Demand a strictly better incumbent next round.
		s.cutActive = true
		s.cutBound = evalExpr(s.obj, vals) + 1
	}
}

func (m *Model) result(st Status, vals []int64, nodes uint64) Result {
	r := Result{Status: st, vals: vals, Nodes: nodes}
	if m.hasObj {
		r.Objective = evalExpr(m.objective, vals)
	}
	return r
}

type solver struct {
	m   *Model
	ctx context.Context
	obj LinExpr

	cutActive bool
	cutBound  int64

	nodes   uint64
	aborted bool
}

func (s *solver) checkAbort() bool {
	s.nodes++
	if s.nodes%1024 == 0 && s.ctx.Err() != nil {
		s.aborted = true
	}
	return s.aborted
}

// dfs runs propagation, picks a branching variable and recurses. It
// returns the first complete assignment found under the current bounds.
func (s *solver) dfs(lo, hi []int64) ([]int64, bool) {
	if s.checkAbort() {
		return nil, false
	}
	if !s.propagate(lo, hi) {
		return nil, false
	}
	v := s.pickVar(lo, hi)
	if v < 0 {
		return clone(lo), true
	}

	// Left branch: booleans try true first (objectives generally reward
	// presence), integers try their lowest bound (schedule earliest).
	llo, lhi := clone(lo), clone(hi)
	if s.m.boolean[v] {
		llo[v] = 1
	} else {
		lhi[v] = lo[v]
	}
	if vals, ok := s.dfs(llo, lhi); ok {
		return vals, true
	}
	if s.aborted {
		return nil, false
	}

	rlo, rhi := clone(lo), clone(hi)
	if s.m.boolean[v] {
		rhi[v] = 0
	} else {
		rlo[v] = lo[v] + 1
	}
	return s.dfs(rlo, rhi)
}

// pickVar chooses the next branching variable: the first undecided
// boolean in creation order, otherwise the unfixed integer with the
// lowest lower bound. Returns -1 when everything is fixed.
func (s *solver) pickVar(lo, hi []int64) IntVar {
	first := IntVar(-1)
	for i := range lo {
		if lo[i] == hi[i] {
			continue
		}
		if s.m.boolean[i] {
			return IntVar(i)
		}
		if first < 0 || lo[i] < lo[first] {
			first = IntVar(i)
		}
	}
	return first
}

// propagate tightens bounds to fixpoint. Returns false on conflict.
func (s *solver) propagate(lo, hi []int64) bool {
	for {
		changed := false
		for ci := range s.m.cons {
			c := &s.m.cons[ci]
			ok, ch := s.propagateLinear(c.terms, c.lo, c.hi, c.enf, lo, hi)
			if !ok {
				return false
			}
			changed = changed || ch
		}
		if s.cutActive {
			ok, ch := s.propagateLinear(s.obj.terms, s.cutBound-s.obj.offset, int64(1)<<55, nil, lo, hi)
			if !ok {
				return false
			}
			changed = changed || ch
		}
		if !changed {
			return true
		}
	}
}

const (
	litTrue = iota
	litFalse
	litUnknown
)

func litState(l Literal, lo, hi []int64) int {
	switch {
	case lo[l.v] == 1:
		if l.neg {
			return litFalse
		}
		return litTrue
	case hi[l.v] == 0:
		if l.neg {
			return litTrue
		}
		return litFalse
	default:
		return litUnknown
	}
}

// forceFalse fixes the literal to false. Reports whether that was
// consistent with current bounds.
func forceFalse(l Literal, lo, hi []int64) bool {
	if l.neg {
		if hi[l.v] < 1 {
			return false
		}
		lo[l.v] = 1
	} else {
		if lo[l.v] > 0 {
			return false
		}
		hi[l.v] = 0
	}
	return true
}

func (s *solver) propagateLinear(terms []term, clo, chi int64, enf []Literal, lo, hi []int64) (ok, changed bool) {
	// Enforcement gate.
	unknown := Literal{v: -1}
	unknownCount := 0
	for _, l := range enf {
		switch litState(l, lo, hi) {
		case litFalse:
			return true, false // constraint inactive
		case litUnknown:
			unknown = l
			unknownCount++
		}
	}

	minSum, maxSum := int64(0), int64(0)
	for _, t := range terms {
		if t.coef >= 0 {
			minSum += t.coef * lo[t.v]
			maxSum += t.coef * hi[t.v]
		} else {
			minSum += t.coef * hi[t.v]
			maxSum += t.coef * lo[t.v]
		}
	}

	violated := minSum > chi || maxSum < clo
	if unknownCount > 0 {
		// Not yet binding: the only sound deduction is forcing the last
		// undecided enforcement literal false on necessary violation.
		if violated && unknownCount == 1 {
			if !forceFalse(unknown, lo, hi) {
				return false, false
			}
			return true, true
		}
		return true, false
	}
	if violated {
		return false, false
	}

	for _, t := range terms {
		var contribMin, contribMax int64
		if t.coef >= 0 {
			contribMin = t.coef * lo[t.v]
			contribMax = t.coef * hi[t.v]
		} else {
			contribMin = t.coef * hi[t.v]
			contribMax = t.coef * lo[t.v]
		}
		residMin := minSum - contribMin
		residMax := maxSum - contribMax
		if t.coef == 0 {
			continue
		}
		// t.coef*x must lie in [clo-residMax, chi-residMin].
		lowA := clo - residMax
		highA := chi - residMin
		var newLo, newHi int64
		if t.coef > 0 {
			newLo = ceilDiv(lowA, t.coef)
			newHi = floorDiv(highA, t.coef)
		} else {
			newLo = ceilDiv(highA, t.coef)
			newHi = floorDiv(lowA, t.coef)
		}
		if newLo > lo[t.v] {
			lo[t.v] = newLo
			changed = true
		}
		if newHi < hi[t.v] {
			hi[t.v] = newHi
			changed = true
		}
		if lo[t.v] > hi[t.v] {
			return false, changed
		}
	}
	return true, changed
}

func evalExpr(e LinExpr, vals []int64) int64 {
	sum := e.offset
	for _, t := range e.terms {
		sum += t.coef * vals[t.v]
	}
	return sum
}

func clone(a []int64) []int64 {
	b := make([]int64, len(a))
	copy(b, a)
	return b
}

// ceilDiv and floorDiv round toward +/- infinity for any sign of b.
func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
