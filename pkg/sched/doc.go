// Package sched compiles declarative scheduling rules into a constraint
// model and solves it, turning a named set of events with timing rules
// (daily windows, deadlines, orderings, minimum separations) into a
// non-overlapping set of interval.Tags.
//
// The package is built around three pieces:
//
//   - Expr: a small tagged-variant expression AST (operator kind plus
//     operand list) with one lowering function per backend concern, so
//     constraint syntax stays serializable and testable without a solver.
//   - Builder: the narrow port onto the underlying CSP engine. All
//     engine types stay behind it; callers see only Handles, Lits and
//     Exprs.
//   - Event and Schedule: the orchestration layer. Events carry solver
//     variable handles and a growable list of constraint builders;
//     a Schedule owns the name registry, merges pre-existing tags as
//     pinned events, wires everything into one single-use model and
//     converts the assignment back into tags.
//
// Configuration mistakes (duplicate names, between combined with by,
// zero candidate windows) surface as errors at construction or at the
// start of Populate, never mid-solve. An unsatisfiable rule set is the
// expected domain outcome ErrUnsatisfiable, carrying no partial result.
package sched
