package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GaboAzorin/lotus-2026/internal/pipeline"
)

// learnCmd runs the incremental genome update and meta-model retrain.
var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Update the genome and retrain the meta model from audited tickets",
	Long: `Study every audited ticket newer than the genome checkpoint: blend
batch scores into the per-algorithm rankings, refresh the morphology
profiles, and advance the checkpoint. When enough audited history has
accumulated the meta-confidence model is retrained wholesale.`,
	RunE: runLearn,
}

func init() {
	rootCmd.AddCommand(learnCmd)
}

func runLearn(cmd *cobra.Command, args []string) error {
	report, err := newPipeline().Learn(context.Background())
	if err != nil {
		if errors.Is(err, pipeline.ErrLockTimeout) {
			met.LockTimeouts.Inc()
			os.Exit(2)
		}
		return err
	}
	if report.Genome.Skipped {
		log.Info().Msg("genome unchanged: not enough new audited tickets")
	} else {
		log.Info().Int("studied", report.Genome.Studied).
			Int64("checkpoint", report.Genome.CheckpointID).
			Int("excluded", len(report.Genome.ExcludedIDs)).
			Int("clamps", report.Genome.Clamps).
			Msg("genome updated")
	}
	if report.MetaTrained {
		log.Info().Int("rows", report.MetaRows).Msg("meta model retrained")
	}
	return nil
}
