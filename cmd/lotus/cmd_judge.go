package main

import (
	"context"
	"errors"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GaboAzorin/lotus-2026/internal/judge"
	"github.com/GaboAzorin/lotus-2026/internal/notify"
	"github.com/GaboAzorin/lotus-2026/internal/results"
)

// judgeCmd audits pending tickets against published draw results.
var judgeCmd = &cobra.Command{
	Use:   "judge",
	Short: "Score pending tickets against published draw results",
	Long: `Read the result feed under <data-dir>/results, score every pending
ledger ticket whose target draw has a published outcome, and flip it to
AUDITED. Tickets whose draw has no result yet stay pending. A lock
timeout exits with code 2 and touches nothing.`,
	RunE: runJudge,
}

func init() {
	rootCmd.AddCommand(judgeCmd)
}

func runJudge(cmd *cobra.Command, args []string) error {
	store, err := results.LoadDir(cfg.ResultsDir())
	if err != nil {
		return err
	}
	report, err := judge.New(cfg, store).Run()
	if err != nil {
		if errors.Is(err, judge.ErrLockTimeout) {
			met.LockTimeouts.Inc()
			os.Exit(2)
		}
		return err
	}
	for _, t := range report.Audited {
		met.TicketsAudited.WithLabelValues(t.Game).Inc()
	}

	notifier := notify.New(cfg.Notify, func() { met.NotifyFailures.Inc() })
	notifier.Send(context.Background(), notify.AuditSummary(report.Audited, report.AwaitingResult))

	log.Info().Int("audited", len(report.Audited)).
		Int("awaiting", report.AwaitingResult).Msg("judge finished")
	return nil
}
