package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"hora/internal/ics"
	"hora/pkg/interval"
)

var (
	showDate string
	showDays int
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored timetable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		span, err := resolveSpan(showDate, showDays, a.loc)
		if err != nil {
			return err
		}
		tags, err := a.store.TagsWithin(cmd.Context(), span)
		if err != nil {
			return err
		}
		if len(tags) == 0 {
			fmt.Println("nothing planned")
			return nil
		}
		printTags(tags)
		return nil
	},
}

var (
	exportDate string
	exportDays int
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the stored timetable as an iCalendar file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := setup()
		if err != nil {
			return err
		}
		defer a.Close()

		span, err := resolveSpan(exportDate, exportDays, a.loc)
		if err != nil {
			return err
		}
		tags, err := a.store.TagsWithin(cmd.Context(), span)
		if err != nil {
			return err
		}
		body := ics.Export(a.cfg.Schedule.Name, tags)
		if exportOut == "" || exportOut == "-" {
			_, err = os.Stdout.Write(body)
			return err
		}
		return os.WriteFile(exportOut, body, 0o644)
	},
}

func resolveSpan(date string, days int, loc *time.Location) (interval.Span, error) {
	day, err := resolveDay(date, loc)
	if err != nil {
		return interval.Span{}, err
	}
	if days < 1 {
		days = 1
	}
	return interval.MustSpan(day, day.AddDate(0, 0, days)), nil
}

func init() {
	showCmd.Flags().StringVar(&showDate, "date", "", "first day to show (YYYY-MM-DD, default today)")
	showCmd.Flags().IntVar(&showDays, "days", 1, "number of days to show")
	exportCmd.Flags().StringVar(&exportDate, "date", "", "first day to export (YYYY-MM-DD, default today)")
	exportCmd.Flags().IntVar(&exportDays, "days", 7, "number of days to export")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "-", "output path (default stdout)")
	rootCmd.AddCommand(showCmd, exportCmd)
}
