// Package csp implements a small finite-domain constraint satisfaction
// and optimization engine over bounded integer and boolean variables.
//
// The engine supports exactly one constraint primitive: a linear
// expression confined to an inclusive range, optionally gated by
// enforcement literals (the constraint binds only while every literal
// is true). Everything else the callers need is decomposed onto that
// primitive at build time:
//
//   - exactly-one / at-most-k over literals (a 0/1 sum with tight bounds)
//   - min/max equality through a fresh variable plus selector booleans
//   - absolute value through a sign boolean
//   - optional intervals (stop = start + size under a presence literal)
//   - pairwise no-overlap over optional intervals (ordering booleans)
//
// Solving is depth-first search with bounds propagation to fixpoint.
// Boolean variables are branched first in creation order, then integer
// variables by lowest bound ("schedule earliest"); optimization is
// branch-and-bound with restarts, tightening an objective cut after
// each incumbent. Variable ordering is fixed, so identical models give
// identical assignments.
//
// Complexity is exponential in the worst case, as for any CSP search;
// bounds propagation keeps the scheduling models this package was built
// for (tens of events over a day horizon) well inside interactive time.
// A context deadline bounds the search: when it expires the best
// incumbent found so far is returned (StatusFeasible), or
// StatusUnknown when there is none.
//
// API misuse - inverted bounds, a literal over a non-boolean variable,
// variables from another model - is a programming defect and panics.
// Infeasibility and timeouts are ordinary statuses, never panics.
package csp
