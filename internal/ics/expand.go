package ics

import (
	"context"
	"fmt"

	"github.com/teambition/rrule-go"

	"hora/pkg/interval"
	"hora/pkg/logx"
)

// maxOccurrences caps per-event expansion so a runaway RRULE cannot
// flood the scheduler's context.
const maxOccurrences = 1000

// Expand turns parsed events into tags inside the span, expanding
// recurrences and applying exception dates. Tags are named by summary
// (UID as fallback) and filed under the given category.
func Expand(events []Event, span interval.Span, category *interval.Category, log logx.Logger) ([]interval.Tag, error) {
	if !span.Finite() {
		return nil, interval.ErrInfiniteSpan
	}
	var out []interval.Tag
	for _, ev := range events {
		occs, err := occurrences(ev, span)
		if err != nil {
			log.Warn("skipping unexpandable event",
				logx.String("uid", ev.UID), logx.Err(err))
			continue
		}
		name := ev.Summary
		if name == "" {
			name = ev.UID
		}
		for _, occ := range occs {
			out = append(out, interval.NewTag(name, category, occ))
		}
	}
	return out, nil
}

func occurrences(ev Event, span interval.Span) ([]interval.Span, error) {
	if ev.RawRRule == "" {
		occ := interval.MustSpan(ev.Start, ev.End)
		if !occ.Overlaps(span) {
			return nil, nil
		}
		return []interval.Span{occ}, nil
	}

	r, err := rrule.StrToRRule(ev.RawRRule)
	if err != nil {
		return nil, fmt.Errorf("bad RRULE %q: %w", ev.RawRRule, err)
	}
	r.DTStart(ev.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.ExDates {
		set.ExDate(ex.In(ev.Start.Location()))
	}

	from, _ := span.Start()
	to, _ := span.End()
	starts := set.Between(from.In(ev.Start.Location()), to.In(ev.Start.Location()), true)
	if len(starts) > maxOccurrences {
		starts = starts[:maxOccurrences]
	}

	dur := ev.End.Sub(ev.Start)
	out := make([]interval.Span, 0, len(starts))
	for _, s := range starts {
		out = append(out, interval.MustSpan(s, s.Add(dur)))
	}
	return out, nil
}

// LoadContext fetches, parses and expands every source into one tag
// list usable as Populate context. Feed failures degrade to a warning;
// planning proceeds on the feeds that worked.
func LoadContext(ctx context.Context, fetcher *Fetcher, sources []Source, span interval.Span, pool *interval.CategoryPool, log logx.Logger) ([]interval.Tag, error) {
	var out []interval.Tag
	for _, src := range sources {
		body, fromCache, err := fetcher.Fetch(ctx, src)
		if err != nil {
			log.Warn("feed unavailable", logx.String("feed", src.Name), logx.Err(err))
			continue
		}
		events, err := Parse(body, log)
		if err != nil {
			log.Warn("feed unparseable", logx.String("feed", src.Name), logx.Err(err))
			continue
		}
		var cat *interval.Category
		if src.Category != "" {
			cat, err = pool.Get(src.Category)
			if err != nil {
				return nil, fmt.Errorf("ics: feed %q: %w", src.Name, err)
			}
		}
		tags, err := Expand(events, span, cat, log)
		if err != nil {
			return nil, err
		}
		log.Info("feed loaded",
			logx.String("feed", src.Name),
			logx.Int("tags", len(tags)),
			logx.Bool("from_cache", fromCache))
		out = append(out, tags...)
	}
	return out, nil
}
