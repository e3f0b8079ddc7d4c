package sched

import (
	"fmt"
	"time"

	"hora/pkg/interval"
)

// TimeOfDay is an offset from local midnight, e.g. At(8, 30).
type TimeOfDay time.Duration

// At builds a TimeOfDay from hours and minutes.
func At(hour, minute int) TimeOfDay {
	return TimeOfDay(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// EndOfDay marks the following midnight.
const EndOfDay = TimeOfDay(24 * time.Hour)

// On anchors the time-of-day to a calendar day in the day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	return midnight.Add(time.Duration(t))
}

func (t TimeOfDay) String() string {
	d := time.Duration(t)
	return fmt.Sprintf("%02d:%02d", int(d.Hours()), int(d.Minutes())%60)
}

// ScoreFunc produces an event's objective contribution. The default
// returns the presence indicator, so the objective counts scheduled
// optional events; the chore layer layers tension rewards on top.
type ScoreFunc func(b *Builder, e *Event) Expr

// builderFunc wires one declarative rule into the model. Builders run
// during Populate, after every event's variables exist, so they may
// reference other events through the schedule's registry.
type builderFunc func(b *Builder, s *Schedule, span interval.Span) error

type gapRule struct {
	other string
	gap   time.Duration
}

type betweenRule struct {
	start TimeOfDay
	stop  TimeOfDay
}

// Event is a schedulable unit: solver variable handles plus the rules
// that constrain them. Events are mutable while the schedule is being
// described and must not be touched once Populate has started.
type Event struct {
	name     string
	duration time.Duration
	optional bool

	// pinned occurrences from pre-existing tags. A pinned event has no
	// solver variables: its times are constants, it joins no overlap
	// set and produces no output tag.
	pinned   []interval.Span
	preserve bool

	start    Handle
	stop     Handle
	presence Handle
	ival     IntervalHandle

	builders []builderFunc
	score    ScoreFunc

	between   *betweenRule
	by        *TimeOfDay
	after     []string
	notWithin []gapRule
}

// Name returns the event's unique name within its schedule.
func (e *Event) Name() string { return e.name }

// Duration returns the event's fixed duration.
func (e *Event) Duration() time.Duration { return e.duration }

// Optional reports whether the solver may leave the event out.
func (e *Event) Optional() bool { return e.optional }

// Pinned reports whether the event's timing came from pre-existing tags.
func (e *Event) Pinned() bool { return len(e.pinned) > 0 }

// Presence returns the presence indicator handle (valid after the
// schedule has begun populating a model).
func (e *Event) Presence() Handle { return e.presence }

// SetScore overrides the default presence-counting score.
func (e *Event) SetScore(f ScoreFunc) { e.score = f }

// PinToTag fixes the event's timing to an already-observed occurrence.
// Pinning is idempotent: duplicate deliveries of the same occurrence
// merge silently, and distinct occurrences of the same logical event
// accumulate.
func (e *Event) PinToTag(t interval.Tag) {
	span := t.Span()
	for _, p := range e.pinned {
		if sameSpan(p, span) {
			return
		}
	}
	e.pinned = append(e.pinned, span)
}

func sameSpan(a, b interval.Span) bool {
	as, aok := a.Start()
	bs, bok := b.Start()
	if aok != bok || (aok && !as.Equal(bs)) {
		return false
	}
	ae, aok := a.End()
	be, bok := b.End()
	return aok == bok && (!aok || ae.Equal(be))
}

// pinnedStops returns each pinned occurrence's stop in unix seconds.
func (e *Event) pinnedStops() []int64 {
	out := make([]int64, 0, len(e.pinned))
	for _, p := range e.pinned {
		if end, ok := p.End(); ok {
			out = append(out, end.Unix())
		}
	}
	return out
}

// latestPinnedStop is the constant used when another event schedules
// itself after a merged pre-existing event.
func (e *Event) latestPinnedStop() (int64, bool) {
	stops := e.pinnedStops()
	if len(stops) == 0 {
		return 0, false
	}
	latest := stops[0]
	for _, s := range stops[1:] {
		if s > latest {
			latest = s
		}
	}
	return latest, true
}

// --- constraint builders -------------------------------------------------

// chooseWindow emits the exclusive-window encoding: one indicator per
// candidate span, each gating the event inside its window, exactly one
// true while the event is present. Zero candidates is a configuration
// error surfaced by the caller before this runs.
func (e *Event) chooseWindow(b *Builder, windows []interval.Span) {
	ind := make([]Lit, 0, len(windows))
	for i, w := range windows {
		day := b.BoolVar(fmt.Sprintf("%s_win_%d", e.name, i))
		ws, wok := w.Start()
		we, eok := w.End()
		if wok {
			b.Add(GE(V(e.start), T(ws)), When(day), When(e.presence))
		}
		if eok {
			b.Add(LE(V(e.stop), T(we)), When(day), When(e.presence))
		}
		ind = append(ind, When(day))
	}
	b.ExactlyOne(ind, When(e.presence))
}

// byDeadline: one indicator per day, true iff the event stops before
// that day's deadline instant; exactly one holds while present.
func (e *Event) byDeadline(b *Builder, days []time.Time, deadline TimeOfDay) {
	ind := make([]Lit, 0, len(days))
	for i, day := range days {
		at := deadline.On(day)
		d := b.BoolVar(fmt.Sprintf("%s_by_%d", e.name, i))
		b.Add(LT(V(e.stop), T(at)), When(d), When(e.presence))
		ind = append(ind, When(d))
	}
	b.ExactlyOne(ind, When(e.presence))
}

// afterEvent orders this event strictly after another. A pinned other
// contributes its latest occurrence stop as a constant.
func (e *Event) afterEvent(b *Builder, other *Event) error {
	if other.Pinned() {
		stop, ok := other.latestPinnedStop()
		if !ok {
			return fmt.Errorf("sched: event %q is pinned to an open-ended tag, cannot order %q after it", other.name, e.name)
		}
		b.Add(GT(V(e.start), K(stop)), When(e.presence))
		return nil
	}
	b.Add(GT(V(e.start), V(other.stop)), When(e.presence), When(other.presence))
	return nil
}

// notWithinEvent keeps a minimum gap between this event and another:
// min-stop and max-start helper variables bracket the pair, and the
// distance between them must cover the gap. Against a merged pinned
// event the rule holds for at least one of its occurrences.
func (e *Event) notWithinEvent(b *Builder, other *Event, gap time.Duration) error {
	gapSec := int64(gap / time.Second)
	if other.Pinned() {
		picks := make([]Lit, 0, len(other.pinned))
		for i, occ := range other.pinned {
			os, sok := occ.Start()
			oe, eok := occ.End()
			if !sok || !eok {
				continue
			}
			pick := b.BoolVar(fmt.Sprintf("%s_gap_%s_%d", e.name, other.name, i))
			firstStop := b.MinOf(fmt.Sprintf("%s_gap_%s_%d_fs", e.name, other.name, i), e.stop, b.Constant(oe.Unix()))
			lastStart := b.MaxOf(fmt.Sprintf("%s_gap_%s_%d_ls", e.name, other.name, i), e.start, b.Constant(os.Unix()))
			b.Add(GE(Sub(V(lastStart), V(firstStop)), K(gapSec)), When(pick), When(e.presence))
			picks = append(picks, When(pick))
		}
		if len(picks) == 0 {
			return fmt.Errorf("sched: event %q has no finite pinned occurrences for a separation rule", other.name)
		}
		b.AtLeastOne(picks, When(e.presence))
		return nil
	}

	firstStop := b.MinOf(fmt.Sprintf("%s_gap_%s_fs", e.name, other.name), e.stop, other.stop)
	lastStart := b.MaxOf(fmt.Sprintf("%s_gap_%s_ls", e.name, other.name), e.start, other.start)
	b.Add(GE(Sub(V(lastStart), V(firstStop)), K(gapSec)),
		When(e.presence), When(other.presence))
	return nil
}

// noPickFirst requires at least one other candidate to start before
// this event and no earlier than the cutoff, so regenerating a set of
// alternatives cannot trivially re-choose the current first option.
func (e *Event) noPickFirst(b *Builder, s *Schedule, cutoff time.Time, candidates []string) error {
	wits := make([]Lit, 0, len(candidates))
	for _, name := range candidates {
		if name == e.name {
			continue
		}
		other, ok := s.Lookup(name)
		if !ok {
			return fmt.Errorf("sched: no-pick-first candidate %q is not a declared event", name)
		}
		if other.Pinned() {
			continue
		}
		w := b.BoolVar(fmt.Sprintf("%s_npf_%s", e.name, other.name))
		b.Add(LT(V(other.start), V(e.start)), When(w))
		b.Add(GE(V(other.start), T(cutoff)), When(w))
		b.AtLeastOne([]Lit{When(other.presence)}, When(w))
		wits = append(wits, When(w))
	}
	if len(wits) == 0 {
		return fmt.Errorf("sched: no-pick-first for %q has no usable candidates", e.name)
	}
	b.AtLeastOne(wits, When(e.presence))
	return nil
}

// defaultScore counts the presence indicator.
func defaultScore(_ *Builder, e *Event) Expr { return V(e.presence) }
