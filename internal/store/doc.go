package store

// Package store persists scheduler state in SQLite.
//
// It holds two kinds of data:
//   - Tags: solved or imported occurrences, queryable by time span
//   - Chores: recurring obligation definitions and their completions
