package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonathan/hiring-workflow/internal/observability"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/spf13/cobra"
)

var (
	statsStart string
	statsEnd   string
	statsJSON  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print feedback statistics",
	Long:  `Aggregate submitted stage feedback: approval counts, rating distribution, per-stage averages and evaluator activity.`,
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsStart, "start", "", "First day to include (YYYY-MM-DD)")
	statsCmd.Flags().StringVar(&statsEnd, "end", "", "Last day to include (YYYY-MM-DD)")
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print JSON instead of a report")
	rootCmd.AddCommand(statsCmd)
}

// parseDateRange turns inclusive YYYY-MM-DD bounds into a filter. The end day
// is included in full.
func parseDateRange(start, end string) (types.StatisticsFilter, error) {
	var filter types.StatisticsFilter
	if start != "" {
		t, err := time.Parse("2006-01-02", start)
		if err != nil {
			return filter, fmt.Errorf("invalid --start %q, expected YYYY-MM-DD", start)
		}
		filter.Start = &t
	}
	if end != "" {
		t, err := time.Parse("2006-01-02", end)
		if err != nil {
			return filter, fmt.Errorf("invalid --end %q, expected YYYY-MM-DD", end)
		}
		t = t.Add(24*time.Hour - time.Nanosecond)
		filter.End = &t
	}
	return filter, nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	filter, err := parseDateRange(statsStart, statsEnd)
	if err != nil {
		return err
	}
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	b, err := openBackend(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer b.close()
	if err := b.applySeed(cmd.Context()); err != nil {
		return err
	}

	stats, err := b.service(nil).ReportStatistics(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if statsJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(stats)
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintStatistics(stats)
	return nil
}
