package main

import (
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GaboAzorin/lotus-2026/internal/consolidate"
)

// consolidateCmd merges queued ticket files into the ledger.
var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge queued tickets into the durable ledger",
	Long: `Acquire the merge lock, fold every queued ticket file into the CSV
ledger and delete the consumed files. Re-running after a crash converges
to the same ledger. A lock timeout exits with code 2 and touches nothing.`,
	RunE: runConsolidate,
}

func init() {
	rootCmd.AddCommand(consolidateCmd)
}

func runConsolidate(cmd *cobra.Command, args []string) error {
	report, err := consolidate.New(cfg).Run()
	if err != nil {
		if errors.Is(err, consolidate.ErrLockTimeout) {
			met.LockTimeouts.Inc()
			os.Exit(2)
		}
		return err
	}
	met.TicketsConsolidated.Add(float64(report.Merged))
	met.QueueFilesSkipped.Add(float64(report.Skipped))
	log.Info().Int("merged", report.Merged).Int("skipped", report.Skipped).
		Int("ledger", report.LedgerSize).Msg("consolidate finished")
	return nil
}
