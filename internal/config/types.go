package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Config is the whole configuration file.
//
// Durations are Go duration strings ("30m", "1h30m"); times of day are
// "HH:MM". The file may be YAML or JSON; unknown keys are rejected so a
// typo fails loudly instead of silently doing nothing.
type Config struct {
	Logging  LoggingConfig  `json:"logging"`
	Store    StoreConfig    `json:"store"`
	Schedule ScheduleConfig `json:"schedule"`
	Chores   ChoresConfig   `json:"chores,omitempty"`
	Feeds    []FeedConfig   `json:"feeds,omitempty"`
	Daemon   DaemonConfig   `json:"daemon,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// StoreConfig locates the SQLite database.
type StoreConfig struct {
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

// ScheduleConfig declares the schedule and its events.
type ScheduleConfig struct {
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Timezone string `json:"timezone,omitempty"` // default: Local

	// Daily planning window, e.g. "08:00" to "22:00".
	DayStart string `json:"day_start,omitempty"`
	DayStop  string `json:"day_stop,omitempty"`

	// Horizon is how far ahead a plan run covers (default "24h").
	Horizon string `json:"horizon,omitempty"`
	// SolveTimeout bounds one solver run (default "30s").
	SolveTimeout string `json:"solve_timeout,omitempty"`

	Events      []EventConfig      `json:"events"`
	Separations []SeparationConfig `json:"separations,omitempty"`
}

// EventConfig declares one recurring daily event.
type EventConfig struct {
	Name     string        `json:"name"`
	Duration string        `json:"duration"`
	Optional bool          `json:"optional,omitempty"`
	Between  *WindowConfig `json:"between,omitempty"`
	By       string        `json:"by,omitempty"` // "HH:MM" deadline
	After    []string      `json:"after,omitempty"`
}

// WindowConfig is a daily time window.
type WindowConfig struct {
	Start string `json:"start"`
	Stop  string `json:"stop"`
}

// SeparationConfig keeps two events a minimum distance apart.
type SeparationConfig struct {
	First  string `json:"first"`
	Second string `json:"second"`
	Gap    string `json:"gap"`
}

// ChoresConfig declares recurring obligations and how many may be
// planned per run.
type ChoresConfig struct {
	Slots  int           `json:"slots,omitempty"`
	Weight int64         `json:"weight,omitempty"`
	Define []ChoreConfig `json:"define,omitempty"`
}

// ChoreConfig is one chore definition; cadence fields mirror the
// frequency model (mean, tolerance, min, max).
type ChoreConfig struct {
	Name      string `json:"name"`
	Every     string `json:"every"`
	Tolerance string `json:"tolerance,omitempty"`
	Min       string `json:"min,omitempty"`
	Max       string `json:"max,omitempty"`
	Duration  string `json:"duration"`
}

// FeedConfig is one ICS subscription whose events become fixed context.
type FeedConfig struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Category string `json:"category,omitempty"`
}

// DaemonConfig controls the long-running planner.
type DaemonConfig struct {
	// Cron is a standard 5-field cron spec for re-planning runs
	// (default "0 4 * * *").
	Cron string `json:"cron,omitempty"`
	// CacheDir holds feed caches (default "./var/ics-cache").
	CacheDir string `json:"cache_dir,omitempty"`
}

// Validate checks cross-field consistency that the type system cannot.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Schedule.Name) == "" {
		return errors.New("schedule.name is required")
	}
	if len(c.Schedule.Events) == 0 && len(c.Chores.Define) == 0 && len(c.Feeds) == 0 {
		return errors.New("config declares no events, chores or feeds")
	}

	seen := make(map[string]bool, len(c.Schedule.Events))
	for i, ev := range c.Schedule.Events {
		path := fmt.Sprintf("schedule.events[%d]", i)
		if strings.TrimSpace(ev.Name) == "" {
			return fmt.Errorf("%s: name is required", path)
		}
		if seen[ev.Name] {
			return fmt.Errorf("%s: duplicate event name %q", path, ev.Name)
		}
		seen[ev.Name] = true
		if d, err := ParseDurationField(path+".duration", ev.Duration); err != nil {
			return err
		} else if d <= 0 {
			return fmt.Errorf("%s.duration must be positive", path)
		}
		if ev.Between != nil && ev.By != "" {
			return fmt.Errorf("%s: between and by are mutually exclusive", path)
		}
		if ev.Between != nil {
			if _, err := ParseTimeOfDay(path+".between.start", ev.Between.Start); err != nil {
				return err
			}
			if _, err := ParseTimeOfDay(path+".between.stop", ev.Between.Stop); err != nil {
				return err
			}
		}
		if ev.By != "" {
			if _, err := ParseTimeOfDay(path+".by", ev.By); err != nil {
				return err
			}
		}
		for _, other := range ev.After {
			if other == ev.Name {
				return fmt.Errorf("%s: cannot schedule after itself", path)
			}
		}
	}

	for i, sep := range c.Schedule.Separations {
		path := fmt.Sprintf("schedule.separations[%d]", i)
		if !seen[sep.First] || !seen[sep.Second] {
			return fmt.Errorf("%s: both events must be declared", path)
		}
		if d, err := ParseDurationField(path+".gap", sep.Gap); err != nil {
			return err
		} else if d <= 0 {
			return fmt.Errorf("%s.gap must be positive", path)
		}
	}

	choreSeen := make(map[string]bool, len(c.Chores.Define))
	for i, ch := range c.Chores.Define {
		path := fmt.Sprintf("chores.define[%d]", i)
		if strings.TrimSpace(ch.Name) == "" {
			return fmt.Errorf("%s: name is required", path)
		}
		if choreSeen[ch.Name] || seen[ch.Name] {
			return fmt.Errorf("%s: name %q collides with another event or chore", path, ch.Name)
		}
		choreSeen[ch.Name] = true
		if _, err := c.choreDurations(i); err != nil {
			return err
		}
	}

	for i, f := range c.Feeds {
		if strings.TrimSpace(f.URL) == "" {
			return fmt.Errorf("feeds[%d]: url is required", i)
		}
	}

	if c.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(c.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule.timezone: %w", err)
		}
	}
	return nil
}

func (c *Config) choreDurations(i int) (ChoreConfig, error) {
	ch := c.Chores.Define[i]
	path := fmt.Sprintf("chores.define[%d]", i)
	if d, err := ParseDurationField(path+".every", ch.Every); err != nil {
		return ch, err
	} else if d <= 0 {
		return ch, fmt.Errorf("%s.every must be positive", path)
	}
	if d, err := ParseDurationField(path+".duration", ch.Duration); err != nil {
		return ch, err
	} else if d <= 0 {
		return ch, fmt.Errorf("%s.duration must be positive", path)
	}
	for _, p := range []struct{ name, raw string }{
		{".tolerance", ch.Tolerance}, {".min", ch.Min}, {".max", ch.Max},
	} {
		if _, err := ParseDurationField(path+p.name, p.raw); err != nil {
			return ch, err
		}
	}
	return ch, nil
}
