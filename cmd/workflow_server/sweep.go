package main

import (
	"github.com/jonathan/hiring-workflow/internal/observability"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Send due deadline warnings once and exit",
	Long:  `Scan assigned stages for deadlines inside the warning window and notify their evaluators. Intended for cron.`,
	RunE:  runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, _ []string) error {
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

	sent, err := b.sweeper(b.dispatcher()).SweepOnce(cmd.Context())
	if err != nil {
		return err
	}
	observability.NewPrinter(cmd.OutOrStdout()).PrintSweepResult(sent)
	return nil
}
