package sched

import (
	"context"
	"errors"
	"testing"
	"time"

	"hora/pkg/interval"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func daySpan(t *testing.T) interval.Span {
	t.Helper()
	return interval.MustSpan(testDay, testDay.AddDate(0, 0, 1))
}

func populate(t *testing.T, s *Schedule, span interval.Span, opts PopulateOptions) []interval.Tag {
	t.Helper()
	if opts.Timeout == 0 {
		opts.Timeout = 20 * time.Second
	}
	tags, err := s.Populate(context.Background(), span, opts)
	if err != nil {
		t.Fatalf("Populate error: %v", err)
	}
	return tags
}

func tagByName(t *testing.T, tags []interval.Tag, name string) interval.Tag {
	t.Helper()
	for _, tag := range tags {
		if tag.Name == name {
			return tag
		}
	}
	t.Fatalf("no tag named %q in %v", name, tags)
	return interval.Tag{}
}

func mustAdd(t *testing.T, s *Schedule, name string, d time.Duration, opts ...EventOption) *Event {
	t.Helper()
	e, err := s.AddEvent(name, d, opts...)
	if err != nil {
		t.Fatalf("AddEvent(%q): %v", name, err)
	}
	return e
}

func TestPopulateDay(t *testing.T) {
	t.Parallel()
	s := New("weekday", WithDayWindow(At(8, 0), At(22, 0)))
	mustAdd(t, s, "breakfast", 30*time.Minute, By(At(9, 0)))
	mustAdd(t, s, "workout", time.Hour, After("breakfast"))
	mustAdd(t, s, "dinner", time.Hour, Between(At(18, 0), At(20, 0)))

	tags := populate(t, s, daySpan(t), PopulateOptions{})
	if len(tags) != 3 {
		t.Fatalf("got %d tags, want 3", len(tags))
	}

	breakfast := tagByName(t, tags, "breakfast")
	if breakfast.ValidTo.After(At(9, 0).On(testDay)) {
		t.Fatalf("breakfast ends %v, deadline 09:00", breakfast.ValidTo)
	}
	if breakfast.ValidFrom.Before(At(8, 0).On(testDay)) {
		t.Fatalf("breakfast starts %v, before the day window", breakfast.ValidFrom)
	}

	workout := tagByName(t, tags, "workout")
	if !workout.ValidFrom.After(*breakfast.ValidTo) {
		t.Fatalf("workout at %v should start strictly after breakfast at %v",
			workout.ValidFrom, breakfast.ValidTo)
	}

	dinner := tagByName(t, tags, "dinner")
	if dinner.ValidFrom.Before(At(18, 0).On(testDay)) || dinner.ValidTo.After(At(20, 0).On(testDay)) {
		t.Fatalf("dinner %s outside its window", dinner.Span())
	}

	for i := range tags {
		for j := i + 1; j < len(tags); j++ {
			if tags[i].Span().Overlaps(tags[j].Span()) {
				t.Fatalf("%s overlaps %s", tags[i], tags[j])
			}
		}
	}
}

func TestPopulateUnsatisfiable(t *testing.T) {
	t.Parallel()
	s := New("cramped", WithDayWindow(At(8, 0), At(10, 0)))
	mustAdd(t, s, "first", 90*time.Minute)
	mustAdd(t, s, "second", 90*time.Minute)

	_, err := s.Populate(context.Background(), daySpan(t), PopulateOptions{Timeout: 20 * time.Second})
	if !errors.Is(err, ErrUnsatisfiable) {
		t.Fatalf("error = %v, want ErrUnsatisfiable", err)
	}
}

func TestPopulateEmpty(t *testing.T) {
	t.Parallel()
	s := New("idle")
	tags, err := s.Populate(context.Background(), daySpan(t), PopulateOptions{})
	if err != nil {
		t.Fatalf("Populate error: %v", err)
	}
	if tags != nil {
		t.Fatalf("empty schedule should yield nil tags, got %v", tags)
	}
}

func TestPopulateInfiniteSpan(t *testing.T) {
	t.Parallel()
	s := New("open")
	mustAdd(t, s, "x", time.Hour)
	_, err := s.Populate(context.Background(), interval.Everything(), PopulateOptions{})
	if !errors.Is(err, interval.ErrInfiniteSpan) {
		t.Fatalf("error = %v, want ErrInfiniteSpan", err)
	}
}

func TestOptionalEventsCompete(t *testing.T) {
	t.Parallel()
	s := New("tight", WithDayWindow(At(8, 0), At(10, 0)))
	mustAdd(t, s, "either", 90*time.Minute, Optional())
	mustAdd(t, s, "or", 90*time.Minute, Optional())

	tags := populate(t, s, daySpan(t), PopulateOptions{})
	// The window fits one of the two; the objective keeps one, not zero.
	if len(tags) != 1 {
		t.Fatalf("got %d tags, want exactly 1", len(tags))
	}
}

func TestEventTooLargeForWindow(t *testing.T) {
	t.Parallel()
	s := New("narrow")
	mustAdd(t, s, "epic", time.Hour, Between(At(8, 0), At(8, 30)))

	_, err := s.Populate(context.Background(), daySpan(t), PopulateOptions{Timeout: 5 * time.Second})
	if !errors.Is(err, ErrNoWindows) {
		t.Fatalf("error = %v, want ErrNoWindows", err)
	}
}

func TestWindowClippedAcrossDays(t *testing.T) {
	t.Parallel()
	s := New("trip")
	mustAdd(t, s, "early", 30*time.Minute, Between(At(8, 0), At(9, 0)))

	// The span starts mid-day, after the first day's window has passed,
	// and ends mid-day on the second. Only the second day's window
	// survives clipping.
	span := interval.MustSpan(testDay.Add(10*time.Hour), testDay.Add(36*time.Hour))
	tags := populate(t, s, span, PopulateOptions{})
	early := tagByName(t, tags, "early")

	day2 := testDay.AddDate(0, 0, 1)
	if early.ValidFrom.Before(At(8, 0).On(day2)) || early.ValidTo.After(At(9, 0).On(day2)) {
		t.Fatalf("early %s should sit inside 08:00-09:00 on the second day", early.Span())
	}
	if !span.Contains(*early.ValidFrom) {
		t.Fatalf("early starts %v, outside the span", early.ValidFrom)
	}
}

func TestWindowNeverInsideSpan(t *testing.T) {
	t.Parallel()
	s := New("latestart")
	mustAdd(t, s, "early", 30*time.Minute, Between(At(8, 0), At(9, 0)))

	span := interval.MustSpan(testDay.Add(10*time.Hour), testDay.Add(12*time.Hour))
	_, err := s.Populate(context.Background(), span, PopulateOptions{Timeout: 5 * time.Second})
	if !errors.Is(err, ErrNoWindows) {
		t.Fatalf("error = %v, want ErrNoWindows", err)
	}
}

func TestNotWithin(t *testing.T) {
	t.Parallel()
	s := New("spaced", WithDayWindow(At(8, 0), At(22, 0)))
	mustAdd(t, s, "deep work", time.Hour)
	mustAdd(t, s, "errands", time.Hour)
	if err := s.NotWithin("deep work", "errands", 2*time.Hour); err != nil {
		t.Fatalf("NotWithin: %v", err)
	}

	tags := populate(t, s, daySpan(t), PopulateOptions{})
	a := tagByName(t, tags, "deep work")
	b := tagByName(t, tags, "errands")
	gap := a.ValidFrom.Sub(*b.ValidTo)
	if alt := b.ValidFrom.Sub(*a.ValidTo); alt > gap {
		gap = alt
	}
	if gap < 2*time.Hour {
		t.Fatalf("nearer-edge gap = %v, want >= 2h", gap)
	}
}

func TestNotWithinUnknownEvent(t *testing.T) {
	t.Parallel()
	s := New("s")
	mustAdd(t, s, "a", time.Hour)
	if err := s.NotWithin("a", "ghost", time.Hour); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("error = %v, want ErrUnknownEvent", err)
	}
	if err := s.NotWithin("ghost", "a", time.Hour); !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("error = %v, want ErrUnknownEvent", err)
	}
}

func TestAddEventValidation(t *testing.T) {
	t.Parallel()
	s := New("s")
	mustAdd(t, s, "a", time.Hour)

	if _, err := s.AddEvent("a", time.Hour); !errors.Is(err, ErrDuplicateEvent) {
		t.Fatalf("duplicate error = %v, want ErrDuplicateEvent", err)
	}
	if _, err := s.AddEvent("b", 0); err == nil {
		t.Fatal("expected error for zero duration")
	}
	if _, err := s.AddEvent("", time.Hour); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := s.AddEvent("c", time.Hour, Between(At(8, 0), At(10, 0)), By(At(12, 0))); !errors.Is(err, ErrBetweenAndBy) {
		t.Fatalf("between+by error = %v, want ErrBetweenAndBy", err)
	}
	if _, err := s.AddEvent("d", time.Hour, By(At(12, 0)), Between(At(8, 0), At(10, 0))); !errors.Is(err, ErrBetweenAndBy) {
		t.Fatalf("by+between error = %v, want ErrBetweenAndBy", err)
	}
}

func TestPreserveScheduleRoundTrip(t *testing.T) {
	t.Parallel()
	build := func() *Schedule {
		s := New("daily", WithDayWindow(At(8, 0), At(12, 0)))
		mustAdd(t, s, "standup", 30*time.Minute, By(At(10, 0)))
		mustAdd(t, s, "review", time.Hour)
		return s
	}

	first := build()
	prior := populate(t, first, daySpan(t), PopulateOptions{})
	if len(prior) != 2 {
		t.Fatalf("first pass produced %d tags, want 2", len(prior))
	}

	second := build()
	mustAdd(t, second, "retro", time.Hour)
	tags := populate(t, second, daySpan(t), PopulateOptions{
		Context:          []TagSource{Tags(prior)},
		PreserveSchedule: true,
	})

	// Preserved events stay where they were; only the new event is
	// placed, and it dodges the preserved occurrences.
	if len(tags) != 1 || tags[0].Name != "retro" {
		t.Fatalf("second pass tags = %v, want just retro", tags)
	}
	for _, p := range prior {
		if tags[0].Span().Overlaps(p.Span()) {
			t.Fatalf("retro %s overlaps preserved %s", tags[0], p)
		}
	}
}

func TestContextIgnoredWithoutPreserve(t *testing.T) {
	t.Parallel()
	s := New("daily", WithDayWindow(At(8, 0), At(12, 0)))
	mustAdd(t, s, "standup", 30*time.Minute)

	old := At(9, 0).On(testDay)
	prior := Tags{interval.NewTag("standup", nil, interval.MustSpan(old, old.Add(30*time.Minute)))}

	tags := populate(t, s, daySpan(t), PopulateOptions{Context: []TagSource{prior}})
	// Without PreserveSchedule the old occurrence is discarded and the
	// event is placed fresh.
	if len(tags) != 1 || tags[0].Name != "standup" {
		t.Fatalf("tags = %v, want a re-optimized standup", tags)
	}
}

func TestForeignContextBlocksTime(t *testing.T) {
	t.Parallel()
	s := New("daily", WithDayWindow(At(8, 0), At(11, 0)))
	mustAdd(t, s, "focus", 2*time.Hour)

	// A meeting from an external calendar occupies 08:00-09:00.
	meeting := At(8, 0).On(testDay)
	ctx := Tags{interval.NewTag("ext meeting", nil, interval.MustSpan(meeting, meeting.Add(time.Hour)))}

	tags := populate(t, s, daySpan(t), PopulateOptions{Context: []TagSource{ctx}})
	focus := tagByName(t, tags, "focus")
	if focus.Span().Overlaps(ctx[0].Span()) {
		t.Fatalf("focus %s overlaps the external meeting", focus)
	}
	if focus.ValidFrom.Before(meeting.Add(time.Hour)) {
		t.Fatalf("focus starts %v, only 09:00-11:00 remains free", focus.ValidFrom)
	}
}

func TestAfterPinnedEvent(t *testing.T) {
	t.Parallel()
	s := New("daily", WithDayWindow(At(8, 0), At(22, 0)))
	mustAdd(t, s, "lunch", 30*time.Minute)
	mustAdd(t, s, "walk", 30*time.Minute, After("lunch"))

	old := At(12, 0).On(testDay)
	prior := Tags{interval.NewTag("lunch", nil, interval.MustSpan(old, old.Add(30*time.Minute)))}

	tags := populate(t, s, daySpan(t), PopulateOptions{
		Context:          []TagSource{prior},
		PreserveSchedule: true,
	})
	walk := tagByName(t, tags, "walk")
	if !walk.ValidFrom.After(old.Add(30 * time.Minute)) {
		t.Fatalf("walk starts %v, want strictly after pinned lunch stop %v",
			walk.ValidFrom, old.Add(30*time.Minute))
	}
}

func TestNoPickFirst(t *testing.T) {
	t.Parallel()
	s := New("daily", WithDayWindow(At(8, 0), At(22, 0)))
	mustAdd(t, s, "chosen", time.Hour)
	mustAdd(t, s, "witness", time.Hour)

	tags := populate(t, s, daySpan(t), PopulateOptions{
		NoPickFirst: map[string]time.Time{"chosen": testDay},
	})
	chosen := tagByName(t, tags, "chosen")
	witness := tagByName(t, tags, "witness")
	if !witness.ValidFrom.Before(*chosen.ValidFrom) {
		t.Fatalf("some candidate must start before chosen: witness %v, chosen %v",
			witness.ValidFrom, chosen.ValidFrom)
	}
}

func TestModelHook(t *testing.T) {
	t.Parallel()
	s := New("capped", WithDayWindow(At(8, 0), At(22, 0)))
	a := mustAdd(t, s, "a", time.Hour, Optional())
	bEv := mustAdd(t, s, "b", time.Hour, Optional())
	c := mustAdd(t, s, "c", time.Hour, Optional())
	s.AddModelHook(func(b *Builder) error {
		b.AtMost(1, []Lit{When(a.Presence()), When(bEv.Presence()), When(c.Presence())})
		return nil
	})

	tags := populate(t, s, daySpan(t), PopulateOptions{})
	if len(tags) != 1 {
		t.Fatalf("hook caps presences at 1, got %d tags", len(tags))
	}
}

func TestTagsSliceWithSpan(t *testing.T) {
	t.Parallel()
	in := At(9, 0).On(testDay)
	out := At(9, 0).On(testDay.AddDate(0, 0, 5))
	src := Tags{
		interval.NewTag("in", nil, interval.MustSpan(in, in.Add(time.Hour))),
		interval.NewTag("out", nil, interval.MustSpan(out, out.Add(time.Hour))),
	}
	got := src.SliceWithSpan(daySpan(t)).IterTags()
	if len(got) != 1 || got[0].Name != "in" {
		t.Fatalf("SliceWithSpan = %v, want only the overlapping tag", got)
	}
}
