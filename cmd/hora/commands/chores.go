package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"hora/pkg/interval"
)

var choresCmd = &cobra.Command{
	Use:   "chores",
	Short: "Inspect and update recurring obligations",
}

var choresStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List chores ordered by how overdue they are",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		defs, err := a.cfg.ChoreList()
		if err != nil {
			return err
		}
		for _, c := range defs {
			if err := a.store.UpsertChore(ctx, c); err != nil {
				return err
			}
		}

		statuses, err := a.store.ApplicableChores(ctx, interval.Everything())
		if err != nil {
			return err
		}
		now := time.Now()
		sort.Slice(statuses, func(i, j int) bool {
			return statuses[i].Tension(now) > statuses[j].Tension(now)
		})
		for _, st := range statuses {
			last := "never"
			if !st.LastDone.IsZero() {
				last = st.LastDone.Local().Format("2006-01-02 15:04")
			}
			fmt.Printf("%-20s tension %.2f  every %-8s last done %s\n",
				st.Chore.Name, st.Tension(now), st.Chore.Freq.Mean, last)
		}
		return nil
	},
}

var choresDoneAt string

var choresDoneCmd = &cobra.Command{
	Use:   "done <name>",
	Short: "Record a chore completion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()
		ctx := cmd.Context()

		// make sure declared chores exist before recording against them
		defs, err := a.cfg.ChoreList()
		if err != nil {
			return err
		}
		for _, c := range defs {
			if err := a.store.UpsertChore(ctx, c); err != nil {
				return err
			}
		}

		var at time.Time
		if choresDoneAt != "" {
			at, err = time.ParseInLocation("2006-01-02 15:04", choresDoneAt, a.loc)
			if err != nil {
				return fmt.Errorf("invalid --at %q (want \"YYYY-MM-DD HH:MM\")", choresDoneAt)
			}
		}
		if err := a.store.MarkDone(ctx, args[0], at); err != nil {
			return err
		}
		fmt.Printf("recorded completion of %q\n", args[0])
		return nil
	},
}

var choresRemoveCmd = &cobra.Command{
	Use:   "remove <name>",
	Short: "Delete a chore and its completion history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.store.RemoveChore(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("removed %q\n", args[0])
		return nil
	},
}

func init() {
	choresDoneCmd.Flags().StringVar(&choresDoneAt, "at", "", "completion time (default now)")
	choresCmd.AddCommand(choresStatusCmd, choresDoneCmd, choresRemoveCmd)
	rootCmd.AddCommand(choresCmd)
}
