package interval

import (
	"errors"
	"fmt"
	"time"
)

// ErrInfiniteSpan is returned by operations that require both bounds.
var ErrInfiniteSpan = errors.New("interval: span must be finite")

// ErrZeroDuration is returned by Tile for non-positive piece sizes.
var ErrZeroDuration = errors.New("interval: tile duration must be positive")

// Span is a time range from Start to End. A nil bound means the span is
// unbounded in that direction. Both bounds present implies Start <= End;
// NewSpan enforces this. Start == End is a single instant and is not
// treated specially.
type Span struct {
	start *time.Time
	end   *time.Time
}

// NewSpan builds a span between two optional bounds.
func NewSpan(start, end *time.Time) (Span, error) {
	if start != nil && end != nil && end.Before(*start) {
		return Span{}, fmt.Errorf("interval: span end %s before start %s", end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Span{start: copyTime(start), end: copyTime(end)}, nil
}

// MustSpan is NewSpan for bounds already known to be ordered.
// It panics on inverted bounds.
func MustSpan(start, end time.Time) Span {
	s, err := NewSpan(&start, &end)
	if err != nil {
		panic(err)
	}
	return s
}

// Everything is the span with no bounds at all.
func Everything() Span { return Span{} }

// DaySpan covers one calendar day in the given location, from midnight
// up to (but not including) the next midnight.
func DaySpan(day time.Time, loc *time.Location) Span {
	if loc == nil {
		loc = time.Local
	}
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, loc)
	end := start.AddDate(0, 0, 1)
	return Span{start: &start, end: &end}
}

// Start returns the lower bound, or false when unbounded.
func (s Span) Start() (time.Time, bool) {
	if s.start == nil {
		return time.Time{}, false
	}
	return *s.start, true
}

// End returns the upper bound, or false when unbounded.
func (s Span) End() (time.Time, bool) {
	if s.end == nil {
		return time.Time{}, false
	}
	return *s.end, true
}

// Finite reports whether both bounds are present.
func (s Span) Finite() bool { return s.start != nil && s.end != nil }

// Duration returns End-Start, or the maximal duration when either bound
// is missing.
func (s Span) Duration() time.Duration {
	if !s.Finite() {
		return time.Duration(1<<63 - 1)
	}
	return s.end.Sub(*s.start)
}

// startOrMin / endOrMax realize missing bounds as the infinities the
// predicates need.
func (s Span) startOrMin() time.Time {
	if s.start == nil {
		return time.Time{} // year 1, effectively -infinity
	}
	return *s.start
}

func (s Span) endOrMax() time.Time {
	if s.end == nil {
		return time.Unix(1<<55, 0) // far future, effectively +infinity
	}
	return *s.end
}

// Overlaps reports whether the two spans share time. Two spans overlap
// unless one starts at or after the instant the other finishes.
func (s Span) Overlaps(other Span) bool {
	return s.startOrMin().Before(other.endOrMax()) && other.startOrMin().Before(s.endOrMax())
}

// Contains reports whether the instant t lies within the span.
func (s Span) Contains(t time.Time) bool {
	return !t.Before(s.startOrMin()) && !t.After(s.endOrMax())
}

// During reports whether s lies entirely within other.
func (s Span) During(other Span) bool {
	return !s.startOrMin().Before(other.startOrMin()) && !s.endOrMax().After(other.endOrMax())
}

// Clip intersects s with bounds, dropping any part outside them.
// The result may be empty (start == end) but never inverted; if the two
// spans are disjoint the boundary nearer to bounds wins.
func (s Span) Clip(bounds Span) Span {
	start := s.startOrMin()
	if b := bounds.startOrMin(); b.After(start) {
		start = b
	}
	end := s.endOrMax()
	if b := bounds.endOrMax(); b.Before(end) {
		end = b
	}
	if end.Before(start) {
		end = start
	}
	return Span{start: &start, end: &end}
}

// Tile cuts the span into consecutive pieces of the given duration. The
// final piece is clamped to the span's end and may be shorter. Only
// finite spans can be tiled.
func (s Span) Tile(d time.Duration) ([]Span, error) {
	if d <= 0 {
		return nil, ErrZeroDuration
	}
	if !s.Finite() {
		return nil, ErrInfiniteSpan
	}
	var out []Span
	cursor := *s.start
	for cursor.Before(*s.end) {
		stop := cursor.Add(d)
		if stop.After(*s.end) {
			stop = *s.end
		}
		piece := cursor
		pieceEnd := stop
		out = append(out, Span{start: &piece, end: &pieceEnd})
		cursor = stop
	}
	return out, nil
}

// Dates yields every calendar date the span touches, in the start
// bound's location. Only finite spans have an enumerable date range.
func (s Span) Dates() ([]time.Time, error) {
	if !s.Finite() {
		return nil, ErrInfiniteSpan
	}
	loc := s.start.Location()
	end := s.end.In(loc)
	var out []time.Time
	day := time.Date(s.start.Year(), s.start.Month(), s.start.Day(), 0, 0, 0, 0, loc)
	for day.Before(end) {
		out = append(out, day)
		day = day.AddDate(0, 0, 1)
	}
	return out, nil
}

func (s Span) String() string {
	from, to := "-inf", "+inf"
	if s.start != nil {
		from = s.start.Format(time.RFC3339)
	}
	if s.end != nil {
		to = s.end.Format(time.RFC3339)
	}
	return fmt.Sprintf("[%s, %s]", from, to)
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
