package chores

import (
	"context"
	"errors"
	"testing"
	"time"

	"hora/pkg/interval"
	"hora/pkg/sched"
	"hora/pkg/tension"
)

var testDay = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

type staticStore struct {
	statuses []Status
	err      error
}

func (s staticStore) ApplicableChores(context.Context, interval.Span) ([]Status, error) {
	return s.statuses, s.err
}

func daily(t *testing.T) tension.Frequency {
	t.Helper()
	f, err := tension.NewFrequency(24*time.Hour, 2*time.Hour, 0, 0)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}
	return f
}

func daySpan(t *testing.T) interval.Span {
	t.Helper()
	return interval.MustSpan(testDay, testDay.AddDate(0, 0, 1))
}

func TestStatusElapsed(t *testing.T) {
	t.Parallel()
	f := daily(t)
	now := testDay

	done := Status{Chore: Chore{Name: "dishes", Freq: f}, LastDone: now.Add(-30 * time.Hour)}
	if got := done.Elapsed(now); got != 30*time.Hour {
		t.Fatalf("Elapsed = %v, want 30h", got)
	}

	never := Status{Chore: Chore{Name: "attic", Freq: f}}
	if got := never.Elapsed(now); got != 100*24*time.Hour {
		t.Fatalf("never-done Elapsed = %v, want 100x mean", got)
	}

	fMax, err := tension.NewFrequency(24*time.Hour, 2*time.Hour, 0, 96*time.Hour)
	if err != nil {
		t.Fatalf("NewFrequency: %v", err)
	}
	capped := Status{Chore: Chore{Name: "attic", Freq: fMax}}
	if got := capped.Elapsed(now); got != 96*time.Hour {
		t.Fatalf("never-done with max Elapsed = %v, want the max gap", got)
	}

	if never.Tension(now) < 0.99 {
		t.Fatalf("never-done tension = %v, want near 1", never.Tension(now))
	}
}

func TestPopulateNoStore(t *testing.T) {
	t.Parallel()
	s := Wrap(sched.New("s"), nil, 2)
	if _, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{}); !errors.Is(err, ErrNoStore) {
		t.Fatalf("error = %v, want ErrNoStore", err)
	}
}

func TestPopulateZeroSlotsPassesThrough(t *testing.T) {
	t.Parallel()
	base := sched.New("s", sched.WithDayWindow(sched.At(8, 0), sched.At(22, 0)))
	if _, err := base.AddEvent("lunch", time.Hour); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	store := staticStore{statuses: []Status{{Chore: Chore{Name: "dishes", Freq: daily(t), Duration: 30 * time.Minute}}}}

	s := Wrap(base, store, 0)
	tags, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{Timeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "lunch" {
		t.Fatalf("zero slots should add no chores, got %v", tags)
	}
}

func TestStoreErrorPropagates(t *testing.T) {
	t.Parallel()
	boom := errors.New("db down")
	s := Wrap(sched.New("s"), staticStore{err: boom}, 1)
	if _, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{}); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want the store error", err)
	}
}

func TestOverdueBeatsFresh(t *testing.T) {
	t.Parallel()
	f := daily(t)
	base := sched.New("s", sched.WithDayWindow(sched.At(8, 0), sched.At(22, 0)))
	store := staticStore{statuses: []Status{
		// Done an hour ago: scheduling it again is too early (reward 1).
		{Chore: Chore{Name: "fresh", Freq: f, Duration: time.Hour}, LastDone: testDay.Add(-time.Hour)},
		// Two days overdue: too late (reward 2).
		{Chore: Chore{Name: "overdue", Freq: f, Duration: time.Hour}, LastDone: testDay.Add(-72 * time.Hour)},
	}}

	s := Wrap(base, store, 1)
	tags, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{Timeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "overdue" {
		t.Fatalf("one slot must go to the overdue chore, got %v", tags)
	}
}

func TestSlotCap(t *testing.T) {
	t.Parallel()
	f := daily(t)
	base := sched.New("s", sched.WithDayWindow(sched.At(8, 0), sched.At(22, 0)))
	var statuses []Status
	for _, name := range []string{"dishes", "laundry", "vacuum", "plants"} {
		statuses = append(statuses, Status{
			Chore:    Chore{Name: name, Freq: f, Duration: time.Hour},
			LastDone: testDay.Add(-48 * time.Hour),
		})
	}

	s := Wrap(base, staticStore{statuses: statuses}, 2)
	tags, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{Timeout: 30 * time.Second})
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("slot cap is 2, got %d tags", len(tags))
	}
}

func TestChoresMixWithEvents(t *testing.T) {
	t.Parallel()
	base := sched.New("s", sched.WithDayWindow(sched.At(8, 0), sched.At(12, 0)))
	if _, err := base.AddEvent("standup", time.Hour, sched.Between(sched.At(9, 0), sched.At(10, 0))); err != nil {
		t.Fatalf("AddEvent: %v", err)
	}
	store := staticStore{statuses: []Status{{
		Chore:    Chore{Name: "dishes", Freq: daily(t), Duration: time.Hour},
		LastDone: testDay.Add(-48 * time.Hour),
	}}}

	s := Wrap(base, store, 1)
	tags, err := s.Populate(context.Background(), daySpan(t), sched.PopulateOptions{Timeout: 20 * time.Second})
	if err != nil {
		t.Fatalf("Populate: %v", err)
	}
	if len(tags) != 2 {
		t.Fatalf("got %d tags, want the event and the chore", len(tags))
	}
	standup := tags[0]
	dishes := tags[1]
	if standup.Name != "standup" {
		standup, dishes = dishes, standup
	}
	if dishes.Span().Overlaps(standup.Span()) {
		t.Fatalf("chore %s overlaps event %s", dishes, standup)
	}
}
