package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"hora/pkg/chores"
	"hora/pkg/interval"
	"hora/pkg/logx"
	"hora/pkg/tension"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{Path: filepath.Join(t.TempDir(), "hora.db")}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func at(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return ts
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestTagsRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	pool := interval.NewCategoryPool()
	cat, err := pool.Get("Life/Chores")
	if err != nil {
		t.Fatalf("category: %v", err)
	}

	start := at(t, "2026-03-02T09:00:00Z")
	tag := interval.NewTag("dishes", cat, interval.MustSpan(start, start.Add(time.Hour)))
	if err := s.InsertTags(ctx, tag); err != nil {
		t.Fatalf("InsertTags: %v", err)
	}
	// Same occurrence again: idempotent.
	if err := s.InsertTags(ctx, tag); err != nil {
		t.Fatalf("InsertTags (repeat): %v", err)
	}

	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	got, err := s.TagsWithin(ctx, day)
	if err != nil {
		t.Fatalf("TagsWithin: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d tags, want 1", len(got))
	}
	if !got[0].SameOccurrence(tag) {
		t.Fatalf("round trip changed the occurrence: %v vs %v", got[0], tag)
	}
	if got[0].Category.FullPath() != "Life/Chores" {
		t.Fatalf("category = %q", got[0].Category.FullPath())
	}
}

func TestTagsWithinOverlapOnly(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()

	mk := func(name, from, to string) interval.Tag {
		return interval.NewTag(name, nil, interval.MustSpan(at(t, from), at(t, to)))
	}
	if err := s.InsertTags(ctx,
		mk("inside", "2026-03-02T09:00:00Z", "2026-03-02T10:00:00Z"),
		mk("before", "2026-03-01T09:00:00Z", "2026-03-01T10:00:00Z"),
		mk("straddles", "2026-03-01T23:00:00Z", "2026-03-02T01:00:00Z"),
		// Ends exactly at the window start: touching, not overlapping.
		mk("touches", "2026-03-01T23:00:00Z", "2026-03-02T00:00:00Z"),
	); err != nil {
		t.Fatalf("InsertTags: %v", err)
	}

	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	got, err := s.TagsWithin(ctx, day)
	if err != nil {
		t.Fatalf("TagsWithin: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d tags, want inside and straddles: %v", len(got), got)
	}
	for _, tag := range got {
		if tag.Name != "inside" && tag.Name != "straddles" {
			t.Fatalf("unexpected tag %q", tag.Name)
		}
	}
}

func TestRemoveTagsWithin(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()

	start := at(t, "2026-03-02T09:00:00Z")
	other := at(t, "2026-03-05T09:00:00Z")
	if err := s.InsertTags(ctx,
		interval.NewTag("gone", nil, interval.MustSpan(start, start.Add(time.Hour))),
		interval.NewTag("kept", nil, interval.MustSpan(other, other.Add(time.Hour))),
	); err != nil {
		t.Fatalf("InsertTags: %v", err)
	}

	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	n, err := s.RemoveTagsWithin(ctx, day)
	if err != nil {
		t.Fatalf("RemoveTagsWithin: %v", err)
	}
	if n != 1 {
		t.Fatalf("removed %d tags, want 1", n)
	}
	left, err := s.TagsWithin(ctx, interval.Everything())
	if err != nil {
		t.Fatalf("TagsWithin: %v", err)
	}
	if len(left) != 1 || left[0].Name != "kept" {
		t.Fatalf("remaining tags = %v", left)
	}
}

func TestChoreLifecycle(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	freq, err := tension.NewFrequency(24*time.Hour, 2*time.Hour, 0, 0)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}

	c := chores.Chore{Name: "dishes", Freq: freq, Duration: 30 * time.Minute}
	if err := s.UpsertChore(ctx, c); err != nil {
		t.Fatalf("UpsertChore: %v", err)
	}

	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	got, err := s.ApplicableChores(ctx, day)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 1 || !got[0].LastDone.IsZero() {
		t.Fatalf("fresh chore should be never-done: %v", got)
	}
	if got[0].Chore.Freq.Mean != freq.Mean || got[0].Chore.Duration != c.Duration {
		t.Fatalf("definition round trip changed: %+v", got[0].Chore)
	}

	first := at(t, "2026-02-27T18:00:00Z")
	second := at(t, "2026-03-01T18:00:00Z")
	if err := s.MarkDone(ctx, "dishes", first); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if err := s.MarkDone(ctx, "dishes", second); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}

	got, err = s.ApplicableChores(ctx, day)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if !got[0].LastDone.Equal(second) {
		t.Fatalf("LastDone = %v, want the latest completion %v", got[0].LastDone, second)
	}

	if err := s.MarkDone(ctx, "ghost", second); !errors.Is(err, ErrUnknownChore) {
		t.Fatalf("MarkDone(ghost) error = %v, want ErrUnknownChore", err)
	}

	if err := s.RemoveChore(ctx, "dishes"); err != nil {
		t.Fatalf("RemoveChore: %v", err)
	}
	got, err = s.ApplicableChores(ctx, day)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("removed chore still applicable: %v", got)
	}
}

func TestApplicableChoresSkipsOversized(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	freq, err := tension.Every(7 * 24 * time.Hour)
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	if err := s.UpsertChore(ctx, chores.Chore{Name: "deep clean", Freq: freq, Duration: 48 * time.Hour}); err != nil {
		t.Fatalf("UpsertChore: %v", err)
	}

	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	got, err := s.ApplicableChores(ctx, day)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("48h chore should not apply to a 24h span: %v", got)
	}
}

func TestChoreActiveWindow(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()
	freq, err := tension.Every(24 * time.Hour)
	if err != nil {
		t.Fatalf("Every: %v", err)
	}
	if err := s.UpsertChore(ctx, chores.Chore{Name: "water plants", Freq: freq, Duration: 15 * time.Minute}); err != nil {
		t.Fatalf("UpsertChore: %v", err)
	}
	window := interval.MustSpan(at(t, "2026-03-10T00:00:00Z"), at(t, "2026-03-20T00:00:00Z"))
	if err := s.SetChoreWindow(ctx, "water plants", window); err != nil {
		t.Fatalf("SetChoreWindow: %v", err)
	}
	if err := s.SetChoreWindow(ctx, "ghost", window); !errors.Is(err, ErrUnknownChore) {
		t.Fatalf("SetChoreWindow(ghost) error = %v, want ErrUnknownChore", err)
	}

	before := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	got, err := s.ApplicableChores(ctx, before)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("chore outside its active window should not apply: %v", got)
	}

	during := interval.MustSpan(at(t, "2026-03-12T00:00:00Z"), at(t, "2026-03-13T00:00:00Z"))
	got, err = s.ApplicableChores(ctx, during)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("chore inside its active window should apply: %v", got)
	}

	// clearing the window makes the chore always active again
	if err := s.SetChoreWindow(ctx, "water plants", interval.Everything()); err != nil {
		t.Fatalf("SetChoreWindow: %v", err)
	}
	got, err = s.ApplicableChores(ctx, before)
	if err != nil {
		t.Fatalf("ApplicableChores: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("unbounded chore should apply everywhere: %v", got)
	}
}

func TestSnapshotFeedsSchedule(t *testing.T) {
	t.Parallel()
	s := openTest(t)
	ctx := context.Background()

	start := at(t, "2026-03-02T09:00:00Z")
	if err := s.InsertTags(ctx, interval.NewTag("meeting", nil, interval.MustSpan(start, start.Add(time.Hour)))); err != nil {
		t.Fatalf("InsertTags: %v", err)
	}
	day := interval.MustSpan(at(t, "2026-03-02T00:00:00Z"), at(t, "2026-03-03T00:00:00Z"))
	src, err := s.Snapshot(ctx, day)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	tags := src.SliceWithSpan(day).IterTags()
	if len(tags) != 1 || tags[0].Name != "meeting" {
		t.Fatalf("snapshot tags = %v", tags)
	}
}
