// Command lotus runs the lottery forecasting pipeline: generation cycles,
// queue consolidation, result auditing and learning, all as short-lived
// batch invocations over one shared data directory.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/GaboAzorin/lotus-2026/internal/config"
	"github.com/GaboAzorin/lotus-2026/internal/metrics"
	"github.com/GaboAzorin/lotus-2026/internal/notify"
	"github.com/GaboAzorin/lotus-2026/internal/pipeline"
)

// Global flags, shared by every subcommand.
var (
	flagConfig      string
	flagDataDir     string
	flagLogLevel    string
	flagMetricsAddr string
)

// Initialized in the persistent pre-run; subcommands consume these.
var (
	cfg config.Config
	met *metrics.Metrics
)

var rootCmd = &cobra.Command{
	Use:   "lotus",
	Short: "Adaptive lottery forecasting pipeline",
	Long: `Lotus is an adaptive ensemble forecaster for the Chilean lottery games
(LOTO, LOTO3, LOTO4, RACHA). A panel of predictors votes on candidate
tickets, a learned morphology profile vetoes malformed ones, and every
published draw result feeds back into the predictor rankings.

Typical loop:
  lotus dream          # generate and queue tickets for every game
  lotus consolidate    # merge queued tickets into the ledger
  lotus judge          # score pending tickets against published results
  lotus learn          # update the genome and the meta model
  lotus status         # inspect pipeline state`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(flagLogLevel); err != nil {
			return err
		}
		var err error
		cfg, err = config.Load(flagConfig, flagDataDir)
		if err != nil {
			return err
		}
		met = metrics.New()
		if flagMetricsAddr != "" {
			met.Serve(flagMetricsAddr)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to YAML config file (optional)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "data", "Root directory for durable pipeline state")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&flagMetricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (optional)")
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	return nil
}

// newPipeline wires the shared collaborators after the pre-run populated
// cfg and met.
func newPipeline() *pipeline.Pipeline {
	notifier := notify.New(cfg.Notify, func() { met.NotifyFailures.Inc() })
	return pipeline.New(cfg, met, notifier)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
