package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var dreamGames []string

// dreamCmd runs one generation cycle and queues the produced tickets.
var dreamCmd = &cobra.Command{
	Use:   "dream",
	Short: "Generate and queue tickets for the upcoming draws",
	Long: `Run one generation cycle: every predictor in the panel proposes
candidates, the morphology gate curates them, and the weighted consensus
produces the final ticket per game. Tickets land in the queue; run
'lotus consolidate' to merge them into the ledger.

Examples:
  lotus dream
  lotus dream --game LOTO --game LOTO3`,
	RunE: runDream,
}

func init() {
	rootCmd.AddCommand(dreamCmd)
	dreamCmd.Flags().StringArrayVar(&dreamGames, "game", nil, "Restrict the cycle to specific games (repeatable)")
}

func runDream(cmd *cobra.Command, args []string) error {
	report, err := newPipeline().Dream(context.Background(), dreamGames)
	if err != nil {
		return err
	}
	for game, n := range report.ByGame {
		log.Info().Str("game", game).Int("tickets", n).Msg("queued")
	}
	return nil
}
