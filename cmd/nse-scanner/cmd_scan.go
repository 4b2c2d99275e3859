package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/nse-scanner/internal/scan"
	"github.com/ahmethakanbesel/nse-scanner/internal/universe"
)

const customUniverse = "Custom"

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and print the matches",
	Long: `Run a strategy over a universe and print the matches, strongest first.

Examples:
  nse-scanner scan --strategy "RSI Oversold" --universe "Nifty 50"
  nse-scanner scan --strategy "Everest" --symbols RELIANCE,TCS,INFY
  nse-scanner scan --strategy "Volume Surge" --provider yahoo --json`,
	RunE: runScan,
}

var (
	scanStrategy string
	scanUniverse string
	scanSymbols  []string
	scanWorkers  int
	scanJSON     bool
)

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVar(&scanStrategy, "strategy", "", "Strategy name (see 'nse-scanner strategies')")
	scanCmd.Flags().StringVar(&scanUniverse, "universe", "Nifty 50", "Universe name (see 'nse-scanner universes')")
	scanCmd.Flags().StringSliceVar(&scanSymbols, "symbols", nil, "Comma-separated symbols to scan instead of a universe")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Concurrent evaluations (overrides WORKERS)")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "Print the result as JSON")

	_ = scanCmd.MarkFlagRequired("strategy")
}

func runScan(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if scanWorkers > 0 {
		cfg.Workers = scanWorkers
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	var universes scan.Universes
	name := scanUniverse
	if len(scanSymbols) > 0 {
		name = customUniverse
		universes = universe.NewStatic(map[string][]string{name: scanSymbols})
	} else {
		universes = universe.NewNSE(universe.WithMetrics(a.metrics))
	}

	resp, err := a.scanService(ctx, universes).Run(ctx, scan.ScanRequest{Strategy: scanStrategy, Universe: name})
	if err != nil {
		return err
	}

	if scanJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}
	return printResults(cmd.OutOrStdout(), resp)
}

func printResults(out io.Writer, resp *scan.RunScanResponse) error {
	_, _ = fmt.Fprintf(out, "%s on %s: %d of %d matched\n\n", resp.Strategy, resp.Universe, resp.Matches, resp.TotalScanned)
	if len(resp.Results) == 0 {
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TICKER\tPRICE\tCHANGE\tSTRENGTH\tSIGNAL\tMETRIC")
	for _, r := range resp.Results {
		_, _ = fmt.Fprintf(w, "%s\t%.2f\t%+.2f%%\t%s\t%s\t%s\n",
			r.Ticker,
			r.Price,
			r.ChangePct,
			r.Strength,
			r.Signal,
			strings.TrimSpace(r.MetricLabel+" "+r.MetricValue),
		)
	}
	return w.Flush()
}
