package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/nse-scanner/internal/config"
	"github.com/ahmethakanbesel/nse-scanner/internal/logger"
)

// annotationLogs marks commands whose logs go to stdout. The others print
// results there and log to stderr.
const annotationLogs = "logs"

var (
	cfg config.Config

	providerName string
	logLevel     string
)

// rootCmd runs the API server when invoked without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "nse-scanner",
	Short: "Technical screener for NSE-listed equities",
	Long: `nse-scanner evaluates technical strategies (RSI oversold, MACD and golden
crosses, 52-week breakouts, volume surges, EMA pullbacks, Everest) over NSE
index universes and serves the results over HTTP.

Configuration is read from the environment; flags override it.`,
	SilenceUsage: true,
	Annotations:  map[string]string{annotationLogs: "stdout"},
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		cfg = config.Load()
		if cmd.Flags().Changed("provider") {
			cfg.Provider = providerName
		}
		if cmd.Flags().Changed("log-level") {
			cfg.LogLevel = logLevel
		}
		if cmd.Annotations[annotationLogs] == "stdout" {
			logger.Init(cfg.LogFormat, cfg.LogLevel)
		} else {
			// Keep stdout free for command output.
			slog.SetDefault(logger.New(os.Stderr, cfg.LogFormat, cfg.LogLevel))
		}
		return nil
	},
	RunE: runServe,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&providerName, "provider", "upstox", "Price data provider (upstox|yahoo)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
}
