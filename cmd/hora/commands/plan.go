package commands

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"hora/internal/config"
	"hora/internal/ics"
	"hora/pkg/chores"
	"hora/pkg/interval"
	"hora/pkg/logx"
	"hora/pkg/sched"
)

var (
	planDate    string
	planReplace bool
	planDryRun  bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Solve and store a timetable for the planning horizon",
	Long: `Runs one planning pass: merges stored tags and calendar feeds into
the solver context, places every declared event and due chore, and
stores the resulting tags.

By default pre-existing placements are kept and only new work is
scheduled around them; --replace clears the horizon and re-optimizes
everything.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		day, err := resolveDay(planDate, a.loc)
		if err != nil {
			return err
		}

		tags, err := runPlan(cmd.Context(), a, a.cfg, day, planReplace, planDryRun)
		if err != nil {
			return err
		}
		printTags(tags)
		return nil
	},
}

func init() {
	planCmd.Flags().StringVar(&planDate, "date", "", "first day to plan (YYYY-MM-DD, default today)")
	planCmd.Flags().BoolVar(&planReplace, "replace", false, "discard stored placements in the horizon and re-optimize")
	planCmd.Flags().BoolVar(&planDryRun, "dry-run", false, "solve and print without storing the result")
	rootCmd.AddCommand(planCmd)
}

func resolveDay(raw string, loc *time.Location) (time.Time, error) {
	if raw == "" {
		now := time.Now().In(loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc), nil
	}
	d, err := time.ParseInLocation("2006-01-02", raw, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --date %q (want YYYY-MM-DD)", raw)
	}
	return d, nil
}

// runPlan executes one planning pass over the configured horizon
// starting at day. It is shared by the plan command and the daemon.
func runPlan(ctx context.Context, a *app, cfg *config.Config, day time.Time, replace, dryRun bool) ([]interval.Tag, error) {
	runID := uuid.NewString()[:8]
	log := a.log.With(logx.String("run", runID))

	horizon, err := cfg.Horizon()
	if err != nil {
		return nil, err
	}
	span := interval.MustSpan(day, day.Add(horizon))
	log.Info("planning", logx.String("span", span.String()))

	// Declared chores must exist in the store before they can be
	// scheduled or marked done.
	defs, err := cfg.ChoreList()
	if err != nil {
		return nil, err
	}
	for _, c := range defs {
		if err := a.store.UpsertChore(ctx, c); err != nil {
			return nil, err
		}
	}

	var sources []sched.TagSource

	if replace {
		if !dryRun {
			n, err := a.store.RemoveTagsWithin(ctx, span)
			if err != nil {
				return nil, err
			}
			log.Info("cleared stored tags", logx.Int64("removed", n))
		}
	} else {
		stored, err := a.store.Snapshot(ctx, span)
		if err != nil {
			return nil, err
		}
		sources = append(sources, stored)
	}

	feedTags, err := ics.LoadContext(ctx, a.fetcher, cfg.FeedSources(), span, a.store.Pool(), log)
	if err != nil {
		return nil, err
	}
	if len(feedTags) > 0 {
		sources = append(sources, sched.Tags(feedTags))
	}

	s, err := cfg.BuildSchedule(a.store.Pool(), log)
	if err != nil {
		return nil, err
	}

	timeout, err := cfg.SolveTimeout()
	if err != nil {
		return nil, err
	}
	opts := sched.PopulateOptions{
		Context:          sources,
		PreserveSchedule: !replace,
		Timeout:          timeout,
	}

	var tags []interval.Tag
	if slots := cfg.ChoreSlots(); slots > 0 {
		var copts []chores.ScheduleOption
		if cfg.Chores.Weight > 0 {
			copts = append(copts, chores.WithWeight(cfg.Chores.Weight))
		}
		tags, err = chores.Wrap(s, a.store, slots, copts...).Populate(ctx, span, opts)
	} else {
		tags, err = s.Populate(ctx, span, opts)
	}
	if err != nil {
		return nil, err
	}

	if !dryRun && len(tags) > 0 {
		if err := a.store.InsertTags(ctx, tags...); err != nil {
			return nil, err
		}
	}
	log.Info("plan complete", logx.Int("tags", len(tags)), logx.Bool("stored", !dryRun))
	return tags, nil
}

func printTags(tags []interval.Tag) {
	sorted := make([]interval.Tag, len(tags))
	copy(sorted, tags)
	sort.Slice(sorted, func(i, j int) bool {
		a, _ := sorted[i].Span().Start()
		b, _ := sorted[j].Span().Start()
		return a.Before(b)
	})
	for _, t := range sorted {
		from, okFrom := t.Span().Start()
		to, okTo := t.Span().End()
		if !okFrom || !okTo {
			fmt.Printf("%-20s (open-ended)\n", t.Name)
			continue
		}
		fmt.Printf("%-20s %s - %s\n", t.Name,
			from.Local().Format("Mon 15:04"), to.Local().Format("15:04"))
	}
}
