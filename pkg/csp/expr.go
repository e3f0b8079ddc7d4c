package csp

// IntVar is a handle to a bounded integer variable owned by a Model.
type IntVar int32

// Literal references a boolean variable, possibly negated.
type Literal struct {
	v   IntVar
	neg bool
}

// Lit returns the positive literal for a boolean variable.
func Lit(v IntVar) Literal { return Literal{v: v} }

// Not returns the negated literal for a boolean variable.
func Not(v IntVar) Literal { return Literal{v: v, neg: true} }

// Negated returns the opposite literal.
func (l Literal) Negated() Literal { return Literal{v: l.v, neg: !l.neg} }

// Var returns the underlying boolean variable.
func (l Literal) Var() IntVar { return l.v }

type term struct {
	v    IntVar
	coef int64
}

// LinExpr is an integer linear expression: a sum of coefficient*variable
// terms plus a constant offset. The zero value is the constant 0.
// LinExpr values are immutable; arithmetic returns fresh expressions.
type LinExpr struct {
	terms  []term
	offset int64
}

// Term builds the expression coef*v.
func Term(v IntVar, coef int64) LinExpr {
	return LinExpr{terms: []term{{v: v, coef: coef}}}
}

// Sum builds x1 + x2 + ... + xn.
func Sum(vars ...IntVar) LinExpr {
	ts := make([]term, len(vars))
	for i, v := range vars {
		ts[i] = term{v: v, coef: 1}
	}
	return LinExpr{terms: ts}
}

// Const builds a constant expression.
func Const(c int64) LinExpr { return LinExpr{offset: c} }

// SumLits builds the 0/1 sum of the given literals. A negated literal
// contributes (1 - v).
func SumLits(lits ...Literal) LinExpr {
	e := LinExpr{terms: make([]term, 0, len(lits))}
	for _, l := range lits {
		if l.neg {
			e.terms = append(e.terms, term{v: l.v, coef: -1})
			e.offset++
		} else {
			e.terms = append(e.terms, term{v: l.v, coef: 1})
		}
	}
	return e
}

// Plus returns e + o.
func (e LinExpr) Plus(o LinExpr) LinExpr {
	ts := make([]term, 0, len(e.terms)+len(o.terms))
	ts = append(ts, e.terms...)
	ts = append(ts, o.terms...)
	return LinExpr{terms: ts, offset: e.offset + o.offset}
}

// Minus returns e - o.
func (e LinExpr) Minus(o LinExpr) LinExpr {
	ts := make([]term, 0, len(e.terms)+len(o.terms))
	ts = append(ts, e.terms...)
	for _, t := range o.terms {
		ts = append(ts, term{v: t.v, coef: -t.coef})
	}
	return LinExpr{terms: ts, offset: e.offset - o.offset}
}

// Scale returns k*e.
func (e LinExpr) Scale(k int64) LinExpr {
	ts := make([]term, len(e.terms))
	for i, t := range e.terms {
		ts[i] = term{v: t.v, coef: t.coef * k}
	}
	return LinExpr{terms: ts, offset: e.offset * k}
}

// Offset returns e + c.
func (e LinExpr) Offset(c int64) LinExpr {
	ts := append([]term(nil), e.terms...)
	return LinExpr{terms: ts, offset: e.offset + c}
}
