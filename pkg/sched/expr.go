package sched

import (
	"fmt"
	"time"
)

// Op tags an expression node. Arithmetic ops build integer expressions;
// comparison ops form constraint roots.
type Op int

const (
	// OpVar is a leaf referencing a Builder variable.
	OpVar Op = iota
	// OpConst is a literal integer (seconds for times and durations).
	OpConst
	// OpAdd sums its operands.
	OpAdd
	// OpSub subtracts the second operand from the first.
	OpSub
	// OpMul scales its single operand by the node's constant K.
	OpMul
	// OpLT, OpLE, OpGT, OpGE, OpEQ compare two operands.
	OpLT
	OpLE
	OpGT
	OpGE
	OpEQ
)

func (o Op) String() string {
	switch o {
	case OpVar:
		return "var"
	case OpConst:
		return "const"
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "*"
	case OpLT:
		return "<"
	case OpLE:
		return "<="
	case OpGT:
		return ">"
	case OpGE:
		return ">="
	case OpEQ:
		return "=="
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Comparison reports whether the op forms a constraint root.
func (o Op) Comparison() bool {
	switch o {
	case OpLT, OpLE, OpGT, OpGE, OpEQ:
		return true
	}
	return false
}

// Expr is one node of the constraint AST: an operator tag plus an
// operand list. Leaves carry either a variable handle or a constant.
// Expr values are plain data; they can be built, compared and evaluated
// without any solver.
type Expr struct {
	Op   Op
	Args []Expr
	Var  Handle
	K    int64
}

// V references a Builder variable.
func V(h Handle) Expr { return Expr{Op: OpVar, Var: h} }

// K builds a constant node.
func K(v int64) Expr { return Expr{Op: OpConst, K: v} }

// T builds a constant node from an instant (unix seconds).
func T(t time.Time) Expr { return Expr{Op: OpConst, K: t.Unix()} }

// Add builds a + b.
func Add(a, b Expr) Expr { return Expr{Op: OpAdd, Args: []Expr{a, b}} }

// Sub builds a - b.
func Sub(a, b Expr) Expr { return Expr{Op: OpSub, Args: []Expr{a, b}} }

// Mul builds k * a.
func Mul(k int64, a Expr) Expr { return Expr{Op: OpMul, Args: []Expr{a}, K: k} }

// LT builds a < b.
func LT(a, b Expr) Expr { return Expr{Op: OpLT, Args: []Expr{a, b}} }

// LE builds a <= b.
func LE(a, b Expr) Expr { return Expr{Op: OpLE, Args: []Expr{a, b}} }

// GT builds a > b.
func GT(a, b Expr) Expr { return Expr{Op: OpGT, Args: []Expr{a, b}} }

// GE builds a >= b.
func GE(a, b Expr) Expr { return Expr{Op: OpGE, Args: []Expr{a, b}} }

// EQ builds a == b.
func EQ(a, b Expr) Expr { return Expr{Op: OpEQ, Args: []Expr{a, b}} }

// Eval computes the expression under an assignment of variable values.
// Comparison roots evaluate to 0 or 1. This is the solver-free
// evaluation path used to test constraint syntax in isolation.
func Eval(e Expr, value func(Handle) int64) int64 {
	switch e.Op {
	case OpVar:
		return value(e.Var)
	case OpConst:
		return e.K
	case OpAdd:
		return Eval(e.Args[0], value) + Eval(e.Args[1], value)
	case OpSub:
		return Eval(e.Args[0], value) - Eval(e.Args[1], value)
	case OpMul:
		return e.K * Eval(e.Args[0], value)
	case OpLT, OpLE, OpGT, OpGE, OpEQ:
		a, b := Eval(e.Args[0], value), Eval(e.Args[1], value)
		ok := false
		switch e.Op {
		case OpLT:
			ok = a < b
		case OpLE:
			ok = a <= b
		case OpGT:
			ok = a > b
		case OpGE:
			ok = a >= b
		case OpEQ:
			ok = a == b
		}
		if ok {
			return 1
		}
		return 0
	default:
		panic(fmt.Sprintf("sched: unknown expression op %d", int(e.Op)))
	}
}

func (e Expr) String() string {
	switch e.Op {
	case OpVar:
		return fmt.Sprintf("v%d", int(e.Var))
	case OpConst:
		return fmt.Sprintf("%d", e.K)
	case OpMul:
		return fmt.Sprintf("(%d * %s)", e.K, e.Args[0])
	default:
		return fmt.Sprintf("(%s %s %s)", e.Args[0], e.Op, e.Args[1])
	}
}
