package config

import (
	"fmt"
	"time"

	"hora/internal/ics"
	"hora/pkg/chores"
	"hora/pkg/interval"
	"hora/pkg/logx"
	"hora/pkg/sched"
	"hora/pkg/tension"
)

// Defaults applied by the builders below.
const (
	defaultHorizon      = 24 * time.Hour
	defaultSolveTimeout = 30 * time.Second
	defaultCron         = "0 4 * * *"
	defaultCacheDir     = "./var/ics-cache"
	defaultChoreSlots   = 1
)

// Location resolves the schedule timezone; empty means local time.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Schedule.Timezone)
}

func (c *Config) Horizon() (time.Duration, error) {
	return ParseDurationOrDefault("schedule.horizon", c.Schedule.Horizon, defaultHorizon)
}

func (c *Config) SolveTimeout() (time.Duration, error) {
	return ParseDurationOrDefault("schedule.solve_timeout", c.Schedule.SolveTimeout, defaultSolveTimeout)
}

func (c *Config) CronSpec() string {
	if c.Daemon.Cron == "" {
		return defaultCron
	}
	return c.Daemon.Cron
}

func (c *Config) CacheDir() string {
	if c.Daemon.CacheDir == "" {
		return defaultCacheDir
	}
	return c.Daemon.CacheDir
}

// BuildSchedule turns the schedule section into a solver-backed schedule.
// The schedule is stateless between runs, so callers rebuild it whenever
// the config changes.
func (c *Config) BuildSchedule(pool *interval.CategoryPool, log logx.Logger) (*sched.Schedule, error) {
	opts := []sched.Option{sched.WithLogger(log)}

	dayStart, err := ParseTimeOfDayOrDefault("schedule.day_start", c.Schedule.DayStart, 0)
	if err != nil {
		return nil, err
	}
	dayStop, err := ParseTimeOfDayOrDefault("schedule.day_stop", c.Schedule.DayStop, 24*time.Hour)
	if err != nil {
		return nil, err
	}
	if dayStart != 0 || dayStop != 24*time.Hour {
		if dayStop <= dayStart {
			return nil, fmt.Errorf("schedule.day_stop must be after schedule.day_start")
		}
		opts = append(opts, sched.WithDayWindow(sched.TimeOfDay(dayStart), sched.TimeOfDay(dayStop)))
	}

	if c.Schedule.Category != "" {
		cat, err := pool.Get(c.Schedule.Category)
		if err != nil {
			return nil, fmt.Errorf("schedule.category: %w", err)
		}
		opts = append(opts, sched.WithCategory(cat))
	}

	s := sched.New(c.Schedule.Name, opts...)
	for i, ev := range c.Schedule.Events {
		path := fmt.Sprintf("schedule.events[%d]", i)
		d, err := ParseDurationField(path+".duration", ev.Duration)
		if err != nil {
			return nil, err
		}
		var eopts []sched.EventOption
		if ev.Optional {
			eopts = append(eopts, sched.Optional())
		}
		if ev.Between != nil {
			start, err := ParseTimeOfDay(path+".between.start", ev.Between.Start)
			if err != nil {
				return nil, err
			}
			stop, err := ParseTimeOfDay(path+".between.stop", ev.Between.Stop)
			if err != nil {
				return nil, err
			}
			eopts = append(eopts, sched.Between(sched.TimeOfDay(start), sched.TimeOfDay(stop)))
		}
		if ev.By != "" {
			by, err := ParseTimeOfDay(path+".by", ev.By)
			if err != nil {
				return nil, err
			}
			eopts = append(eopts, sched.By(sched.TimeOfDay(by)))
		}
		for _, other := range ev.After {
			eopts = append(eopts, sched.After(other))
		}
		if _, err := s.AddEvent(ev.Name, d, eopts...); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	for i, sep := range c.Schedule.Separations {
		path := fmt.Sprintf("schedule.separations[%d]", i)
		gap, err := ParseDurationField(path+".gap", sep.Gap)
		if err != nil {
			return nil, err
		}
		if err := s.NotWithin(sep.First, sep.Second, gap); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}
	return s, nil
}

// ChoreSlots returns how many chores one run may plan; zero disables the
// chore layer entirely.
func (c *Config) ChoreSlots() int {
	if len(c.Chores.Define) == 0 {
		return 0
	}
	if c.Chores.Slots <= 0 {
		return defaultChoreSlots
	}
	return c.Chores.Slots
}

// ChoreList converts the chores section into definitions ready for the
// store.
func (c *Config) ChoreList() ([]chores.Chore, error) {
	out := make([]chores.Chore, 0, len(c.Chores.Define))
	for i, ch := range c.Chores.Define {
		path := fmt.Sprintf("chores.define[%d]", i)
		mean, err := ParseDurationField(path+".every", ch.Every)
		if err != nil {
			return nil, err
		}
		tol, err := ParseDurationField(path+".tolerance", ch.Tolerance)
		if err != nil {
			return nil, err
		}
		min, err := ParseDurationField(path+".min", ch.Min)
		if err != nil {
			return nil, err
		}
		max, err := ParseDurationField(path+".max", ch.Max)
		if err != nil {
			return nil, err
		}
		freq, err := tension.NewFrequency(mean, tol, min, max)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		d, err := ParseDurationField(path+".duration", ch.Duration)
		if err != nil {
			return nil, err
		}
		out = append(out, chores.Chore{Name: ch.Name, Freq: freq, Duration: d})
	}
	return out, nil
}

// FeedSources converts the feeds section, defaulting each feed category
// to the schedule category.
func (c *Config) FeedSources() []ics.Source {
	out := make([]ics.Source, 0, len(c.Feeds))
	for _, f := range c.Feeds {
		cat := f.Category
		if cat == "" {
			cat = c.Schedule.Category
		}
		name := f.Name
		if name == "" {
			name = f.URL
		}
		out = append(out, ics.Source{Name: name, URL: f.URL, Category: cat})
	}
	return out
}
