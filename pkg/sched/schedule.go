package sched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hora/pkg/interval"
	"hora/pkg/logx"
)

// Configuration errors surfaced while describing a schedule.
var (
	ErrDuplicateEvent = errors.New("sched: duplicate event name")
	ErrBetweenAndBy   = errors.New("sched: cannot set both between and by")
	ErrUnknownEvent   = errors.New("sched: unknown event name")
	ErrNoWindows      = errors.New("sched: no candidate windows inside span")
)

// TagSource supplies pre-existing events as scheduling context. It is
// the read-only time-span capability: a store, a calendar feed, or a
// previous Populate result wrapped in Tags.
type TagSource interface {
	IterTags() []interval.Tag
	SliceWithSpan(interval.Span) TagSource
}

// Tags is the trivial in-memory TagSource.
type Tags []interval.Tag

// IterTags returns the tags as given.
func (t Tags) IterTags() []interval.Tag { return t }

// SliceWithSpan keeps only tags overlapping the span.
func (t Tags) SliceWithSpan(s interval.Span) TagSource {
	var out Tags
	for _, tag := range t {
		if tag.Span().Overlaps(s) {
			out = append(out, tag)
		}
	}
	return out
}

// Option configures a Schedule.
type Option func(*Schedule)

// WithDayWindow restricts scheduling to a daily window, e.g. 08:00 to
// 22:00. The default is the whole day.
func WithDayWindow(start, stop TimeOfDay) Option {
	return func(s *Schedule) {
		s.dayStart = start
		s.dayStop = stop
	}
}

// WithCategory emits solved tags under the given category.
func WithCategory(c *interval.Category) Option {
	return func(s *Schedule) { s.category = c }
}

// WithLogger attaches a structured logger; the default is silent.
func WithLogger(l logx.Logger) Option {
	return func(s *Schedule) { s.log = l }
}

// EventOption configures one event at declaration time.
type EventOption func(*Event) error

// Optional lets the solver leave the event unscheduled.
func Optional() EventOption {
	return func(e *Event) error {
		e.optional = true
		return nil
	}
}

// Between confines the event to a daily window on some single day of
// the schedule's span.
func Between(start, stop TimeOfDay) EventOption {
	return func(e *Event) error {
		if e.by != nil {
			return fmt.Errorf("%w: event %q", ErrBetweenAndBy, e.name)
		}
		if stop <= start {
			return fmt.Errorf("sched: event %q between window %s-%s is empty", e.name, start, stop)
		}
		e.between = &betweenRule{start: start, stop: stop}
		return nil
	}
}

// By requires the event to finish before a daily deadline.
func By(deadline TimeOfDay) EventOption {
	return func(e *Event) error {
		if e.between != nil {
			return fmt.Errorf("%w: event %q", ErrBetweenAndBy, e.name)
		}
		d := deadline
		e.by = &d
		return nil
	}
}

// After orders the event strictly after another, named event.
func After(other string) EventOption {
	return func(e *Event) error {
		e.after = append(e.after, other)
		return nil
	}
}

// Schedule is a named collection of events plus the registry that lets
// rules reference each other by name. One Schedule value drives one
// Populate; the model behind it is single-use.
type Schedule struct {
	name     string
	category *interval.Category
	dayStart TimeOfDay
	dayStop  TimeOfDay
	log      logx.Logger

	events []*Event
	index  map[string]int
	hooks  []func(*Builder) error
}

// AddModelHook registers extra model wiring to run after every event's
// constraints are in place, e.g. a cap across a group of presences.
func (s *Schedule) AddModelHook(f func(*Builder) error) {
	s.hooks = append(s.hooks, f)
}

// New creates an empty schedule.
func New(name string, opts ...Option) *Schedule {
	s := &Schedule{
		name:     name,
		dayStart: At(0, 0),
		dayStop:  EndOfDay,
		log:      logx.Nop(),
		index:    make(map[string]int),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Name returns the schedule's name.
func (s *Schedule) Name() string { return s.name }

// Events returns the declared events in declaration order.
func (s *Schedule) Events() []*Event { return s.events }

// Lookup resolves a declared event by name.
func (s *Schedule) Lookup(name string) (*Event, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.events[i], true
}

// AddEvent declares an event. Names must be unique within the
// schedule; conflicting options are rejected here, never at solve time.
func (s *Schedule) AddEvent(name string, duration time.Duration, opts ...EventOption) (*Event, error) {
	if name == "" {
		return nil, errors.New("sched: event name must not be empty")
	}
	if duration <= 0 {
		return nil, fmt.Errorf("sched: event %q needs a positive duration", name)
	}
	if _, dup := s.index[name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateEvent, name)
	}
	e := &Event{name: name, duration: duration, score: defaultScore}
	for _, o := range opts {
		if err := o(e); err != nil {
			return nil, err
		}
	}
	// After references may point forward; they are resolved in Populate.
	s.index[name] = len(s.events)
	s.events = append(s.events, e)
	return e, nil
}

// NotWithin requires a minimum separation between two declared events,
// measured between the nearer edges of the pair.
func (s *Schedule) NotWithin(a, b string, gap time.Duration) error {
	ea, ok := s.Lookup(a)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, a)
	}
	if _, ok := s.Lookup(b); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, b)
	}
	if gap <= 0 {
		return fmt.Errorf("sched: separation between %q and %q must be positive", a, b)
	}
	ea.notWithin = append(ea.notWithin, gapRule{other: b, gap: gap})
	return nil
}

// PopulateOptions tune one Populate call.
type PopulateOptions struct {
	// Context supplies pre-existing tags. Tags whose name matches a
	// declared event pin that event (subject to PreserveSchedule);
	// unknown names become pinned foreign events.
	Context []TagSource
	// PreserveSchedule keeps a declared event at its pre-existing time
	// instead of re-optimizing it.
	PreserveSchedule bool
	// NoPickFirst maps an event name to a cutoff instant; the event may
	// then only be scheduled if some other candidate starts before it
	// and no earlier than the cutoff.
	NoPickFirst map[string]time.Time
	// NoPickFirstCandidates names the candidate pool; defaults to every
	// declared event.
	NoPickFirstCandidates []string
	// Timeout bounds the solve (default 30s).
	Timeout time.Duration
}

// Populate compiles the declared events into a constraint model over
// the given span, solves it, and returns one tag per scheduled event.
// The span must be finite. Infeasibility comes back as
// ErrUnsatisfiable with no partial result.
func (s *Schedule) Populate(ctx context.Context, span interval.Span, opts PopulateOptions) ([]interval.Tag, error) {
	if !span.Finite() {
		return nil, interval.ErrInfiniteSpan
	}
	start := time.Now()

	pinned, err := s.mergeContext(span, opts)
	if err != nil {
		return nil, err
	}

	// Zero declared schedulable events: nothing to solve.
	if s.countSchedulable() == 0 {
		return nil, nil
	}

	b := NewBuilder()
	if err := s.bake(b, span, opts); err != nil {
		return nil, err
	}

	vars, bools, cons, ivals := b.Stats()
	s.log.Debug("schedule model built",
		logx.String("schedule", s.name),
		logx.Int("events", len(s.events)),
		logx.Int("pinned", pinned),
		logx.Int("vars", vars),
		logx.Int("bools", bools),
		logx.Int("constraints", cons),
		logx.Int("intervals", ivals))

	asg, err := b.Solve(ctx, opts.Timeout)
	if err != nil {
		s.log.Warn("schedule unsatisfiable",
			logx.String("schedule", s.name),
			logx.Duration("took", time.Since(start)),
			logx.Err(err))
		return nil, err
	}

	tags := s.extract(b, asg)
	s.log.Info("schedule populated",
		logx.String("schedule", s.name),
		logx.Int("tags", len(tags)),
		logx.Bool("optimal", asg.Optimal),
		logx.Int64("objective", asg.Objective),
		logx.Uint64("nodes", asg.Nodes),
		logx.Duration("took", time.Since(start)))
	return tags, nil
}

func (s *Schedule) countSchedulable() int {
	n := 0
	for _, e := range s.events {
		if !e.Pinned() {
			n++
		}
	}
	return n
}

// mergeContext folds pre-existing tags into pinned events. Duplicate
// occurrences of the same logical event merge rather than conflict.
func (s *Schedule) mergeContext(span interval.Span, opts PopulateOptions) (int, error) {
	for _, src := range opts.Context {
		for _, tag := range src.SliceWithSpan(span).IterTags() {
			if e, ok := s.Lookup(tag.Name); ok {
				if !opts.PreserveSchedule {
					continue // re-optimize: ignore the old occurrence
				}
				e.PinToTag(tag)
				e.preserve = true
				continue
			}
			e := &Event{name: tag.Name, duration: tag.Span().Duration(), score: defaultScore}
			e.PinToTag(tag)
			s.index[tag.Name] = len(s.events)
			s.events = append(s.events, e)
		}
	}
	n := 0
	for _, e := range s.events {
		if e.Pinned() {
			n++
		}
	}
	return n, nil
}

// bake creates variables for every schedulable event, then runs each
// event's constraint builders, then wires the shared pieces: mutual
// exclusion and the objective.
func (s *Schedule) bake(b *Builder, span interval.Span, opts PopulateOptions) error {
	spanStart, _ := span.Start()
	spanEnd, _ := span.End()
	lo, hi := spanStart.Unix(), spanEnd.Unix()

	var ivals []IntervalHandle

	// Pinned occurrences hold their time against everything the solver
	// places: each becomes a constant, always-present interval.
	var busy Handle
	haveBusy := false
	for _, e := range s.events {
		for i, occ := range e.pinned {
			from, okFrom := occ.Start()
			to, okTo := occ.End()
			if !okFrom || !okTo {
				continue
			}
			if !haveBusy {
				busy = b.BoolVar("context_present")
				b.Add(EQ(V(busy), K(1)))
				haveBusy = true
			}
			start := b.Constant(from.Unix())
			stop := b.Constant(to.Unix())
			ivals = append(ivals, b.Interval(start, to.Sub(from), stop, When(busy),
				fmt.Sprintf("%s_pinned_%d", e.name, i)))
		}
	}

	for _, e := range s.events {
		if e.Pinned() {
			continue
		}
		dur := int64(e.duration / time.Second)
		if hi-lo < dur {
			return fmt.Errorf("%w: event %q does not fit in %s", ErrNoWindows, e.name, span)
		}
		e.start = b.IntVar(e.name+"_start", lo, hi-dur)
		e.stop = b.IntVar(e.name+"_stop", lo+dur, hi)
		e.presence = b.BoolVar(e.name + "_present")
		if !e.optional {
			b.Add(EQ(V(e.presence), K(1)))
		}
		e.ival = b.Interval(e.start, e.duration, e.stop, When(e.presence), e.name)
		ivals = append(ivals, e.ival)
	}

	for _, e := range s.events {
		if e.Pinned() {
			continue
		}
		if err := s.wireEvent(b, e, span, opts); err != nil {
			return err
		}
		for _, extra := range e.builders {
			if err := extra(b, s, span); err != nil {
				return err
			}
		}
		b.AddScore(e.score(b, e))
	}

	for _, hook := range s.hooks {
		if err := hook(b); err != nil {
			return err
		}
	}

	b.MutualExclusion(ivals)
	return nil
}

// wireEvent turns one event's declarative rules into constraints.
func (s *Schedule) wireEvent(b *Builder, e *Event, span interval.Span, opts PopulateOptions) error {
	days, err := span.Dates()
	if err != nil {
		return err
	}

	if cutoff, ok := opts.NoPickFirst[e.name]; ok {
		candidates := opts.NoPickFirstCandidates
		if len(candidates) == 0 {
			candidates = s.eventNames()
		}
		if err := e.noPickFirst(b, s, cutoff, candidates); err != nil {
			return err
		}
	}

	windows := s.eventWindows(e, days, span)
	if len(windows) == 0 {
		return fmt.Errorf("%w: event %q", ErrNoWindows, e.name)
	}
	e.chooseWindow(b, windows)

	if e.by != nil {
		e.byDeadline(b, days, *e.by)
	}

	for _, name := range e.after {
		other, ok := s.Lookup(name)
		if !ok {
			return fmt.Errorf("%w: %q (after rule on %q)", ErrUnknownEvent, name, e.name)
		}
		if err := e.afterEvent(b, other); err != nil {
			return err
		}
	}

	for _, rule := range e.notWithin {
		other, ok := s.Lookup(rule.other)
		if !ok {
			return fmt.Errorf("%w: %q (separation rule on %q)", ErrUnknownEvent, rule.other, e.name)
		}
		if err := e.notWithinEvent(b, other, rule.gap); err != nil {
			return err
		}
	}
	return nil
}

// eventWindows yields the candidate windows for an event: its between
// rule anchored on each day, or the schedule's daily window, clipped to
// the span's edges on the first and last day. Windows too small for the
// event are dropped here rather than left to the solver.
func (s *Schedule) eventWindows(e *Event, days []time.Time, span interval.Span) []interval.Span {
	dayStart, dayStop := s.dayStart, s.dayStop
	if e.between != nil {
		dayStart, dayStop = e.between.start, e.between.stop
	}
	var out []interval.Span
	for _, day := range days {
		w := interval.MustSpan(dayStart.On(day), dayStop.On(day)).Clip(span)
		if w.Duration() >= e.duration {
			out = append(out, w)
		}
	}
	return out
}

func (s *Schedule) eventNames() []string {
	out := make([]string, len(s.events))
	for i, e := range s.events {
		out[i] = e.name
	}
	return out
}

// extract converts the assignment back into tags for present,
// non-pinned events.
func (s *Schedule) extract(b *Builder, asg *Assignment) []interval.Tag {
	tags := make([]interval.Tag, 0, len(s.events))
	for _, e := range s.events {
		if e.Pinned() {
			continue
		}
		if !asg.BoolValue(b, When(e.presence)) {
			continue
		}
		from := time.Unix(asg.Value(b, e.start), 0).UTC()
		to := time.Unix(asg.Value(b, e.stop), 0).UTC()
		tags = append(tags, interval.NewTag(e.name, s.category, interval.MustSpan(from, to)))
	}
	return tags
}
