package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hora/pkg/csp"
)

// ErrUnsatisfiable is the domain outcome for a rule set the solver can
// prove (or must assume, on timeout without an incumbent) has no valid
// assignment. It carries no partial schedule.
var ErrUnsatisfiable = errors.New("sched: unsatisfiable schedule")

// Handle identifies a variable registered on a Builder.
type Handle int32

// IntervalHandle identifies an optional interval registered on a Builder.
type IntervalHandle int32

// Lit is an (optionally negated) boolean variable used to gate
// constraint enforcement.
type Lit struct {
	H   Handle
	Neg bool
}

// When gates on the variable being true.
func When(h Handle) Lit { return Lit{H: h} }

// Unless gates on the variable being false.
func Unless(h Handle) Lit { return Lit{H: h, Neg: true} }

// Builder is the narrow port onto the constraint engine. It owns the
// variable registry and the lowering of Exprs into engine primitives;
// no engine type crosses this boundary. A Builder backs exactly one
// solve and is not safe for concurrent use.
type Builder struct {
	model *csp.Model
	vars  []csp.IntVar
	los   []int64
	his   []int64
	ivals []csp.Interval
	names map[string]Handle

	scoreTerms []Expr
}

// NewBuilder returns an empty builder around a fresh model.
func NewBuilder() *Builder {
	return &Builder{model: csp.NewModel(), names: make(map[string]Handle)}
}

func (b *Builder) register(name string, v csp.IntVar, lo, hi int64) Handle {
	if _, dup := b.names[name]; dup {
		panic(fmt.Sprintf("sched: duplicate variable name %q", name))
	}
	b.vars = append(b.vars, v)
	b.los = append(b.los, lo)
	b.his = append(b.his, hi)
	h := Handle(len(b.vars) - 1)
	b.names[name] = h
	return h
}

// IntVar creates a bounded integer variable. Names must be unique; a
// collision is a defect in the calling layer.
func (b *Builder) IntVar(name string, lo, hi int64) Handle {
	return b.register(name, b.model.NewIntVar(lo, hi, name), lo, hi)
}

// BoolVar creates a boolean variable.
func (b *Builder) BoolVar(name string) Handle {
	return b.register(name, b.model.NewBoolVar(name), 0, 1)
}

// Constant returns a handle fixed to the given value. Constants share
// one underlying variable per distinct value but each call registers a
// fresh handle name internally.
func (b *Builder) Constant(value int64) Handle {
	v := b.model.NewConstant(value)
	b.vars = append(b.vars, v)
	b.los = append(b.los, value)
	b.his = append(b.his, value)
	return Handle(len(b.vars) - 1)
}

func (b *Builder) lit(l Lit) csp.Literal {
	v := b.vars[l.H]
	if l.Neg {
		return csp.Not(v)
	}
	return csp.Lit(v)
}

func (b *Builder) lits(ls []Lit) []csp.Literal {
	out := make([]csp.Literal, len(ls))
	for i, l := range ls {
		out[i] = b.lit(l)
	}
	return out
}

// lower translates an arithmetic Expr into an engine linear expression.
// This is the single evaluation function keyed on the op tag; a
// comparison node below the root is a defect.
func (b *Builder) lower(e Expr) csp.LinExpr {
	switch e.Op {
	case OpVar:
		return csp.Term(b.vars[e.Var], 1)
	case OpConst:
		return csp.Const(e.K)
	case OpAdd:
		return b.lower(e.Args[0]).Plus(b.lower(e.Args[1]))
	case OpSub:
		return b.lower(e.Args[0]).Minus(b.lower(e.Args[1]))
	case OpMul:
		return b.lower(e.Args[0]).Scale(e.K)
	default:
		panic(fmt.Sprintf("sched: %s is not an arithmetic op", e.Op))
	}
}

// Add lowers a comparison-rooted Expr into the model, binding only
// while every enforcement literal is true.
func (b *Builder) Add(e Expr, enforce ...Lit) {
	if !e.Op.Comparison() {
		panic(fmt.Sprintf("sched: constraint root must be a comparison, got %s", e.Op))
	}
	diff := b.lower(e.Args[0]).Minus(b.lower(e.Args[1]))
	enf := b.lits(enforce)
	switch e.Op {
	case OpLT:
		b.model.AddLessOrEqual(diff, -1, enf...)
	case OpLE:
		b.model.AddLessOrEqual(diff, 0, enf...)
	case OpGT:
		b.model.AddGreaterOrEqual(diff, 1, enf...)
	case OpGE:
		b.model.AddGreaterOrEqual(diff, 0, enf...)
	case OpEQ:
		b.model.AddEquality(diff, 0, enf...)
	}
}

// ExactlyOne requires exactly one of the literals true while the
// enforcement literals hold. Zero literals is a configuration error in
// the calling layer and a defect here.
func (b *Builder) ExactlyOne(lits []Lit, enforce ...Lit) {
	b.model.AddExactlyOne(b.lits(lits), b.lits(enforce)...)
}

// AtLeastOne requires one or more of the literals true.
func (b *Builder) AtLeastOne(lits []Lit, enforce ...Lit) {
	b.model.AddAtLeastOne(b.lits(lits), b.lits(enforce)...)
}

// AtMost caps how many of the literals may be true.
func (b *Builder) AtMost(k int64, lits []Lit, enforce ...Lit) {
	b.model.AddAtMost(k, b.lits(lits), b.lits(enforce)...)
}

// MinOf returns a fresh variable constrained to min(xs...), usable in
// further linear expressions.
func (b *Builder) MinOf(name string, xs ...Handle) Handle {
	lo, hi := b.rangeOf(xs)
	t := b.IntVar(name, lo, hi)
	b.model.AddMinEquality(b.vars[t], b.varsOf(xs), name)
	return t
}

// MaxOf returns a fresh variable constrained to max(xs...).
func (b *Builder) MaxOf(name string, xs ...Handle) Handle {
	lo, hi := b.rangeOf(xs)
	t := b.IntVar(name, lo, hi)
	b.model.AddMaxEquality(b.vars[t], b.varsOf(xs), name)
	return t
}

// AbsOf returns a fresh variable constrained to |e|.
func (b *Builder) AbsOf(name string, e Expr) Handle {
	t := b.IntVar(name, 0, csp.MaxValue)
	b.model.AddAbsEquality(b.vars[t], b.lower(e), name)
	return t
}

func (b *Builder) rangeOf(xs []Handle) (int64, int64) {
	if len(xs) == 0 {
		panic("sched: min/max over zero variables")
	}
	lo, hi := b.los[xs[0]], b.his[xs[0]]
	for _, x := range xs[1:] {
		if b.los[x] < lo {
			lo = b.los[x]
		}
		if b.his[x] > hi {
			hi = b.his[x]
		}
	}
	return lo, hi
}

func (b *Builder) varsOf(xs []Handle) []csp.IntVar {
	out := make([]csp.IntVar, len(xs))
	for i, x := range xs {
		out[i] = b.vars[x]
	}
	return out
}

// Interval registers an optional interval tying stop = start + size
// under the presence literal.
func (b *Builder) Interval(start Handle, size time.Duration, stop Handle, presence Lit, name string) IntervalHandle {
	iv := b.model.NewOptionalInterval(b.vars[start], int64(size/time.Second), b.vars[stop], b.lit(presence), name)
	b.ivals = append(b.ivals, iv)
	return IntervalHandle(len(b.ivals) - 1)
}

// MutualExclusion forbids pairwise overlap among the intervals when
// both members of a pair are present.
func (b *Builder) MutualExclusion(intervals []IntervalHandle) {
	ivs := make([]csp.Interval, len(intervals))
	for i, h := range intervals {
		ivs[i] = b.ivals[h]
	}
	b.model.AddNoOverlap(ivs)
}

// AddScore accumulates an arithmetic term into the objective.
func (b *Builder) AddScore(e Expr) {
	b.scoreTerms = append(b.scoreTerms, e)
}

// Stats exposes model size counters for logging.
func (b *Builder) Stats() (vars, bools, constraints, intervals int) {
	s := b.model.Stats()
	return s.Variables, s.Booleans, s.Constraints, s.Intervals
}

// Assignment is an immutable view of a solved model.
type Assignment struct {
	res       csp.Result
	Objective int64
	Nodes     uint64
	Optimal   bool
}

// Value returns the solved value of a variable.
func (a *Assignment) Value(b *Builder, h Handle) int64 { return a.res.Value(b.vars[h]) }

// BoolValue returns the solved truth of a literal.
func (a *Assignment) BoolValue(b *Builder, l Lit) bool { return a.res.BoolValue(b.lit(l)) }

// Solve maximizes the accumulated score terms and runs the engine under
// the timeout. Infeasibility and an empty-handed timeout both come back
// as ErrUnsatisfiable; a timeout with an incumbent is a valid,
// non-optimal assignment.
func (b *Builder) Solve(ctx context.Context, timeout time.Duration) (*Assignment, error) {
	if len(b.scoreTerms) > 0 {
		obj := b.lower(b.scoreTerms[0])
		for _, t := range b.scoreTerms[1:] {
			obj = obj.Plus(b.lower(t))
		}
		b.model.Maximize(obj)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	sctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res := b.model.Solve(sctx)
	switch res.Status {
	case csp.StatusOptimal, csp.StatusFeasible:
		return &Assignment{res: res, Objective: res.Objective, Nodes: res.Nodes, Optimal: res.Status == csp.StatusOptimal}, nil
	default:
		return nil, fmt.Errorf("%w: solver status %s", ErrUnsatisfiable, res.Status)
	}
}
