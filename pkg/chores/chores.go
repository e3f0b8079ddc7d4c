// Package chores layers recurring obligations onto a schedule. Each
// applicable chore becomes one optional event; a slot cap bounds how
// many may land in a single solve, and a tension-weighted score makes
// the objective prefer the most overdue chores when slots are scarce.
package chores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hora/pkg/interval"
	"hora/pkg/sched"
	"hora/pkg/tension"
)

// ErrNoStore is returned when a chore schedule has nowhere to look up
// completions.
var ErrNoStore = errors.New("chores: no chore store configured")

// Chore is a recurring obligation definition.
type Chore struct {
	Name     string
	Freq     tension.Frequency
	Duration time.Duration
}

// Status pairs a chore with its most recent completion. A zero
// LastDone means the chore has never been completed.
type Status struct {
	Chore    Chore
	LastDone time.Time
}

// Store is the chore-store capability: it knows which chores apply to
// a span and when each was last completed.
type Store interface {
	ApplicableChores(ctx context.Context, span interval.Span) ([]Status, error)
}

// Elapsed returns how long the chore has gone unattended as of now.
// Never-completed chores report a full maximum gap (or a large multiple
// of the mean when no maximum is set) so they rank as overdue.
func (s Status) Elapsed(now time.Time) time.Duration {
	if s.LastDone.IsZero() {
		if s.Chore.Freq.Max > 0 {
			return s.Chore.Freq.Max
		}
		return 100 * s.Chore.Freq.Mean
	}
	return now.Sub(s.LastDone)
}

// Tension is the chore's continuous tension as of now, for inspection
// and sorting outside the solver.
func (s Status) Tension(now time.Time) float64 {
	return s.Chore.Freq.Tension(s.Elapsed(now))
}

// Schedule wraps a sched.Schedule with chore slots.
type Schedule struct {
	*sched.Schedule

	store  Store
	slots  int
	weight int64
}

// ScheduleOption configures the chore layer.
type ScheduleOption func(*Schedule)

// WithWeight scales the tension reward against the base presence score
// (default 1).
func WithWeight(w int64) ScheduleOption {
	return func(s *Schedule) { s.weight = w }
}

// Wrap attaches chore slots to an existing schedule. slots bounds the
// number of chores one solve may place.
func Wrap(base *sched.Schedule, store Store, slots int, opts ...ScheduleOption) *Schedule {
	s := &Schedule{Schedule: base, store: store, slots: slots, weight: 1}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Populate adds one optional event per applicable chore, caps their
// presences by the slot limit, wires the tension rewards into the
// objective, and then runs the base schedule's Populate.
func (s *Schedule) Populate(ctx context.Context, span interval.Span, opts sched.PopulateOptions) ([]interval.Tag, error) {
	if s.store == nil {
		return nil, ErrNoStore
	}
	if s.slots <= 0 {
		return s.Schedule.Populate(ctx, span, opts)
	}
	statuses, err := s.store.ApplicableChores(ctx, span)
	if err != nil {
		return nil, fmt.Errorf("chores: loading applicable chores: %w", err)
	}

	spanStart, ok := span.Start()
	if !ok {
		return nil, interval.ErrInfiniteSpan
	}

	for _, st := range statuses {
		ev, err := s.Schedule.AddEvent(st.Chore.Name, st.Chore.Duration, sched.Optional())
		if err != nil {
			return nil, err
		}
		ev.SetScore(choreScore(st, spanStart, s.weight))
	}

	// The slot cap runs as a model hook: presence handles only exist
	// once the model is being baked.
	choreNames := make([]string, len(statuses))
	for i, st := range statuses {
		choreNames[i] = st.Chore.Name
	}
	s.Schedule.AddModelHook(func(b *sched.Builder) error {
		lits := make([]sched.Lit, 0, len(choreNames))
		for _, name := range choreNames {
			ev, ok := s.Schedule.Lookup(name)
			if !ok || ev.Pinned() {
				continue
			}
			lits = append(lits, sched.When(ev.Presence()))
		}
		if len(lits) == 0 {
			return nil
		}
		b.AtMost(int64(s.slots), lits)
		return nil
	})

	return s.Schedule.Populate(ctx, span, opts)
}

// choreScore builds presence + weight*reward, with the reward gated so
// an absent chore contributes nothing. The gate is linear: the gated
// term may rise to the bucket reward only while presence is 1, and the
// maximizing objective pushes it there.
func choreScore(st Status, spanStart time.Time, weight int64) sched.ScoreFunc {
	return func(b *sched.Builder, e *sched.Event) sched.Expr {
		elapsedSec := int64(st.Elapsed(spanStart) / time.Second)
		elapsed := b.Constant(elapsedSec)
		reward := st.Chore.Freq.Reward(b, "chore_"+st.Chore.Name, elapsed)

		gated := b.IntVar("chore_"+st.Chore.Name+"_gated", 0, tension.RewardJustRight)
		b.Add(sched.LE(sched.V(gated), sched.V(reward)))
		b.Add(sched.LE(sched.V(gated), sched.Mul(tension.RewardJustRight, sched.V(e.Presence()))))

		return sched.Add(sched.V(e.Presence()), sched.Mul(weight, sched.V(gated)))
	}
}
