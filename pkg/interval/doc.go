// Package interval holds the immutable time-interval algebra the
// scheduler operates over: Span (a possibly open-ended time range),
// Category (a hierarchical namespace), Tag (a named, categorized
// occurrence), and CategoryPool (path-keyed category cache).
//
// All types are value types. Operations never mutate; they return fresh
// values. A missing Span bound means unbounded in that direction, and
// every predicate treats it as +/- infinity.
package interval
