package config

import (
	"reflect"
	"strings"

	"hora/pkg/logx"
)

// SummarizeChange returns a compact list of changed top-level sections and
// structured attrs describing the new state, for the reload log line. Feed
// URLs may carry credentials, so only counts and names are logged.
func SummarizeChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 6)
	attrs := make([]logx.Field, 0, 12)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Store != newCfg.Store {
		changed = append(changed, "store")
		attrs = append(attrs, logx.String("store.path", strings.TrimSpace(newCfg.Store.Path)))
	}

	if !reflect.DeepEqual(oldCfg.Schedule, newCfg.Schedule) {
		changed = append(changed, "schedule")
		attrs = append(attrs,
			logx.String("schedule.name", newCfg.Schedule.Name),
			logx.Int("schedule.events", len(newCfg.Schedule.Events)),
			logx.Int("schedule.separations", len(newCfg.Schedule.Separations)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Chores, newCfg.Chores) {
		changed = append(changed, "chores")
		attrs = append(attrs,
			logx.Int("chores.slots", newCfg.Chores.Slots),
			logx.Int("chores.defined", len(newCfg.Chores.Define)),
		)
	}

	if !reflect.DeepEqual(oldCfg.Feeds, newCfg.Feeds) {
		changed = append(changed, "feeds")
		names := make([]string, 0, len(newCfg.Feeds))
		for _, f := range newCfg.Feeds {
			names = append(names, f.Name)
		}
		attrs = append(attrs, logx.Int("feeds.count", len(newCfg.Feeds)),
			logx.String("feeds.names", strings.Join(names, ",")))
	}

	if oldCfg.Daemon != newCfg.Daemon {
		changed = append(changed, "daemon")
		attrs = append(attrs, logx.String("daemon.cron", newCfg.Daemon.Cron))
	}

	return changed, attrs
}
