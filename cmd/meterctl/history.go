package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"meterease/internal/repository/sqlite"
)

var (
	historyLimit  int
	historyOffset int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored readings",
	Long:  `Displays image sets with their current and previous readings, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of entries")
	historyCmd.Flags().IntVar(&historyOffset, "offset", 0, "number of entries to skip")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 1 {
		return fmt.Errorf("limit must be positive, got %d", historyLimit)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	db, err := openMeterDB(cfg)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	readings := sqlite.NewReadingRepository(db)
	total, err := readings.Count(cmd.Context())
	if err != nil {
		return err
	}
	entries, err := readings.History(cmd.Context(), historyLimit, historyOffset)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "No readings found")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "IMAGE SET\tCAPTURED\tCURRENT\tPREVIOUS\tCONSUMPTION")
	for _, e := range entries {
		previous, consumption := "-", "-"
		if e.Previous != nil {
			previous = *e.Previous
		}
		if e.Consumption != nil {
			consumption = humanize.FtoaWithDigits(*e.Consumption, 2)
		}
		current := e.Current
		if current == "" {
			current = "(none)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ImageSetID, humanize.Time(e.CapturedAt), current, previous, consumption)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(out, "Showing %d of %s image sets\n", len(entries), humanize.Comma(int64(total)))
	return nil
}
