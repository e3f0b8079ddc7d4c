package interval

import (
	"fmt"
	"time"
)

// Tag is a named, categorized occurrence with a concrete or partially
// open time range. Tags are produced by the scheduler (a solved
// assignment) or supplied externally (pre-existing calendar events).
// The struct is a value: compare with ==, copy freely.
type Tag struct {
	Name      string
	Category  *Category
	ValidFrom *time.Time
	ValidTo   *time.Time
}

// NewTag builds a tag over the given span.
func NewTag(name string, category *Category, span Span) Tag {
	t := Tag{Name: name, Category: category}
	if from, ok := span.Start(); ok {
		t.ValidFrom = &from
	}
	if to, ok := span.End(); ok {
		t.ValidTo = &to
	}
	return t
}

// Span derives the tag's time range.
func (t Tag) Span() Span {
	return Span{start: copyTime(t.ValidFrom), end: copyTime(t.ValidTo)}
}

// Recategorize returns a copy of the tag under a different category.
func (t Tag) Recategorize(c *Category) Tag {
	t.Category = c
	return t
}

// SameOccurrence reports whether two tags describe the same named
// occurrence at the same times. Category is deliberately ignored:
// external calendars routinely re-deliver an event under a different
// calendar grouping.
func (t Tag) SameOccurrence(other Tag) bool {
	return t.Name == other.Name &&
		equalTimePtr(t.ValidFrom, other.ValidFrom) &&
		equalTimePtr(t.ValidTo, other.ValidTo)
}

func (t Tag) String() string {
	return fmt.Sprintf("%s %s", t.Name, t.Span())
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
