package csp

import "fmt"

// MaxValue bounds every variable domain. It is chosen well inside the
// int64 range so that any linear combination a model can express stays
// wrap-safe: unix timestamps, durations in seconds and small reward
// scalars all fit with room for summation.
const MaxValue = int64(1) << 40

// MinValue is the symmetric lower bound.
const MinValue = -MaxValue

// Interval is a handle to an (optional) interval registered on a Model.
type Interval int32

type intervalDef struct {
	start    IntVar
	stop     IntVar
	size     int64
	presence Literal
}

type linCon struct {
	terms []term
	lo    int64
	hi    int64
	enf   []Literal
	name  string
}

// Model accumulates variables and constraints, then hands them to the
// solver. A Model is built single-threaded and solved once; it is not
// safe for concurrent mutation.
type Model struct {
	names     []string
	lo        []int64
	hi        []int64
	boolean   []bool
	cons      []linCon
	intervals []intervalDef
	consts    map[int64]IntVar

	objective   LinExpr
	hasObj      bool
	maximizeObj bool

	trueLit Literal
}

// NewModel returns an empty model.
func NewModel() *Model {
	m := &Model{consts: make(map[int64]IntVar)}
	// A constant-true literal used for non-optional intervals.
	always := m.NewBoolVar("always")
	m.addLinear(Term(always, 1), 1, 1, nil, "always")
	m.trueLit = Lit(always)
	return m
}

// TrueLiteral returns a literal that is true in every solution.
func (m *Model) TrueLiteral() Literal { return m.trueLit }

// NewIntVar creates an integer variable with the inclusive domain
// [lo, hi]. Inverted or out-of-range bounds are a defect.
func (m *Model) NewIntVar(lo, hi int64, name string) IntVar {
	if lo > hi {
		panic(fmt.Sprintf("csp: variable %q has inverted bounds [%d, %d]", name, lo, hi))
	}
	if lo < MinValue || hi > MaxValue {
		panic(fmt.Sprintf("csp: variable %q bounds [%d, %d] exceed +/-%d", name, lo, hi, MaxValue))
	}
	m.names = append(m.names, name)
	m.lo = append(m.lo, lo)
	m.hi = append(m.hi, hi)
	m.boolean = append(m.boolean, false)
	return IntVar(len(m.names) - 1)
}

// NewBoolVar creates a 0/1 variable usable as a literal.
func (m *Model) NewBoolVar(name string) IntVar {
	v := m.NewIntVar(0, 1, name)
	m.boolean[v] = true
	return v
}

// NewConstant returns a fixed variable holding value. Constants are
// cached per model.
func (m *Model) NewConstant(value int64) IntVar {
	if v, ok := m.consts[value]; ok {
		return v
	}
	v := m.NewIntVar(value, value, fmt.Sprintf("const_%d", value))
	m.consts[value] = v
	return v
}

func (m *Model) checkVar(v IntVar) {
	if v < 0 || int(v) >= len(m.names) {
		panic(fmt.Sprintf("csp: variable %d does not belong to this model", v))
	}
}

func (m *Model) checkLit(l Literal) {
	m.checkVar(l.v)
	if !m.boolean[l.v] {
		panic(fmt.Sprintf("csp: literal over non-boolean variable %q", m.names[l.v]))
	}
}

func (m *Model) addLinear(e LinExpr, lo, hi int64, enf []Literal, name string) {
	if lo > hi {
		panic(fmt.Sprintf("csp: constraint %q has inverted range [%d, %d]", name, lo, hi))
	}
	for _, t := range e.terms {
		m.checkVar(t.v)
	}
	for _, l := range enf {
		m.checkLit(l)
	}
	m.cons = append(m.cons, linCon{
		terms: append([]term(nil), e.terms...),
		lo:    clampBound(lo - e.offset),
		hi:    clampBound(hi - e.offset),
		enf:   append([]Literal(nil), enf...),
		name:  name,
	})
}

func clampBound(b int64) int64 {
	const guard = int64(1) << 50
	if b > guard {
		return guard
	}
	if b < -guard {
		return -guard
	}
	return b
}

// AddLinear constrains lo <= e <= hi while every enforcement literal is
// true. With no literals the constraint always binds.
func (m *Model) AddLinear(e LinExpr, lo, hi int64, enforce ...Literal) {
	m.addLinear(e, lo, hi, enforce, "linear")
}

// AddEquality constrains e == value under the enforcement literals.
func (m *Model) AddEquality(e LinExpr, value int64, enforce ...Literal) {
	m.addLinear(e, value, value, enforce, "eq")
}

// AddLessOrEqual constrains e <= value under the enforcement literals.
func (m *Model) AddLessOrEqual(e LinExpr, value int64, enforce ...Literal) {
	m.addLinear(e, MinValue, value, enforce, "le")
}

// AddGreaterOrEqual constrains e >= value under the enforcement literals.
func (m *Model) AddGreaterOrEqual(e LinExpr, value int64, enforce ...Literal) {
	m.addLinear(e, value, MaxValue, enforce, "ge")
}

// AddImplication forces then to hold whenever cond does.
func (m *Model) AddImplication(cond, then Literal) {
	m.addLinear(SumLits(then), 1, 1, []Literal{cond}, "imp")
}

// AddExactlyOne requires exactly one of the literals to be true while
// the enforcement literals hold. An empty literal set is a defect: it
// can never be satisfied by construction.
func (m *Model) AddExactlyOne(lits []Literal, enforce ...Literal) {
	if len(lits) == 0 {
		panic("csp: exactly-one over zero literals")
	}
	m.addLinear(SumLits(lits...), 1, 1, enforce, "xone")
}

// AddAtMost requires no more than k of the literals to be true.
func (m *Model) AddAtMost(k int64, lits []Literal, enforce ...Literal) {
	m.addLinear(SumLits(lits...), 0, k, enforce, "atmost")
}

// AddAtLeastOne requires one or more of the literals to be true while
// the enforcement literals hold.
func (m *Model) AddAtLeastOne(lits []Literal, enforce ...Literal) {
	if len(lits) == 0 {
		panic("csp: at-least-one over zero literals")
	}
	m.addLinear(SumLits(lits...), 1, int64(len(lits)), enforce, "atleast")
}

// AddMinEquality constrains target == min(vars...). Decomposed as
// target <= each var, plus selector booleans certifying that some var
// reaches down to target.
func (m *Model) AddMinEquality(target IntVar, vars []IntVar, name string) {
	if len(vars) == 0 {
		panic("csp: min over zero variables")
	}
	sel := make([]Literal, len(vars))
	for i, v := range vars {
		m.addLinear(Term(target, 1).Minus(Term(v, 1)), MinValue, 0, nil, name+"_min_le")
		b := m.NewBoolVar(fmt.Sprintf("%s_min_sel_%d", name, i))
		m.addLinear(Term(target, 1).Minus(Term(v, 1)), 0, MaxValue, []Literal{Lit(b)}, name+"_min_sel")
		sel[i] = Lit(b)
	}
	m.AddExactlyOne(sel)
}

// AddMaxEquality constrains target == max(vars...).
func (m *Model) AddMaxEquality(target IntVar, vars []IntVar, name string) {
	if len(vars) == 0 {
		panic("csp: max over zero variables")
	}
	sel := make([]Literal, len(vars))
	for i, v := range vars {
		m.addLinear(Term(target, 1).Minus(Term(v, 1)), 0, MaxValue, nil, name+"_max_ge")
		b := m.NewBoolVar(fmt.Sprintf("%s_max_sel_%d", name, i))
		m.addLinear(Term(target, 1).Minus(Term(v, 1)), MinValue, 0, []Literal{Lit(b)}, name+"_max_sel")
		sel[i] = Lit(b)
	}
	m.AddExactlyOne(sel)
}

// AddAbsEquality constrains target == |e| via a sign boolean.
func (m *Model) AddAbsEquality(target IntVar, e LinExpr, name string) {
	m.addLinear(Term(target, 1), 0, MaxValue, nil, name+"_abs_nonneg")
	m.addLinear(Term(target, 1).Minus(e), 0, MaxValue, nil, name+"_abs_ge_pos")
	m.addLinear(Term(target, 1).Plus(e), 0, MaxValue, nil, name+"_abs_ge_neg")
	pos := m.NewBoolVar(name + "_abs_sign")
	m.addLinear(Term(target, 1).Minus(e), 0, 0, []Literal{Lit(pos)}, name+"_abs_eq_pos")
	m.addLinear(Term(target, 1).Plus(e), 0, 0, []Literal{Not(pos)}, name+"_abs_eq_neg")
}

// NewOptionalInterval registers an interval [start, stop) of fixed size
// whose presence is controlled by a literal. stop = start + size binds
// only while the interval is present.
func (m *Model) NewOptionalInterval(start IntVar, size int64, stop IntVar, presence Literal, name string) Interval {
	m.checkVar(start)
	m.checkVar(stop)
	m.checkLit(presence)
	if size < 0 {
		panic(fmt.Sprintf("csp: interval %q has negative size %d", name, size))
	}
	m.addLinear(Term(stop, 1).Minus(Term(start, 1)), size, size, []Literal{presence}, name+"_size")
	m.intervals = append(m.intervals, intervalDef{start: start, stop: stop, size: size, presence: presence})
	return Interval(len(m.intervals) - 1)
}

// NewInterval registers an always-present interval.
func (m *Model) NewInterval(start IntVar, size int64, stop IntVar, name string) Interval {
	return m.NewOptionalInterval(start, size, stop, m.trueLit, name)
}

// AddNoOverlap forbids any two of the intervals from sharing time while
// both are present. Decomposed into one ordering boolean per pair.
func (m *Model) AddNoOverlap(intervals []Interval) {
	for i := 0; i < len(intervals); i++ {
		for j := i + 1; j < len(intervals); j++ {
			a := m.intervals[intervals[i]]
			b := m.intervals[intervals[j]]
			order := m.NewBoolVar(fmt.Sprintf("noov_%d_%d", intervals[i], intervals[j]))
			// order => a entirely before b; !order => b entirely before a.
			m.addLinear(Term(a.stop, 1).Minus(Term(b.start, 1)), MinValue, 0,
				[]Literal{Lit(order), a.presence, b.presence}, "noov_ab")
			m.addLinear(Term(b.stop, 1).Minus(Term(a.start, 1)), MinValue, 0,
				[]Literal{Not(order), a.presence, b.presence}, "noov_ba")
		}
	}
}

// Maximize sets the objective. Any previous objective is replaced.
func (m *Model) Maximize(e LinExpr) {
	m.objective = e
	m.hasObj = true
	m.maximizeObj = true
}

// Minimize sets the objective. Any previous objective is replaced.
func (m *Model) Minimize(e LinExpr) {
	m.objective = e
	m.hasObj = true
	m.maximizeObj = false
}

// Stats describes the size of a built model.
type Stats struct {
	Variables   int
	Booleans    int
	Constraints int
	Intervals   int
}

// Stats reports model size counters, mostly for logging.
func (m *Model) Stats() Stats {
	s := Stats{Variables: len(m.names), Constraints: len(m.cons), Intervals: len(m.intervals)}
	for _, b := range m.boolean {
		if b {
			s.Booleans++
		}
	}
	return s
}
