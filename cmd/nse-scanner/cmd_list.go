package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ahmethakanbesel/nse-scanner/internal/market"
	"github.com/ahmethakanbesel/nse-scanner/internal/provider/upstox"
	"github.com/ahmethakanbesel/nse-scanner/internal/strategy"
	"github.com/ahmethakanbesel/nse-scanner/internal/universe"
)

var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the available strategies",
	RunE: func(cmd *cobra.Command, _ []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "NAME\tDESCRIPTION")
		for _, info := range strategy.Default().List() {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", info.Name, info.Description)
		}
		return w.Flush()
	},
}

var universesCount bool

var universesCmd = &cobra.Command{
	Use:   "universes",
	Short: "List the NSE index universes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var nse *universe.NSE
		if universesCount {
			nse = universe.NewNSE()
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		if universesCount {
			_, _ = fmt.Fprintln(w, "NAME\tINDEX\tMEMBERS")
		} else {
			_, _ = fmt.Fprintln(w, "NAME\tINDEX")
		}
		for _, idx := range universe.Indices {
			if nse == nil {
				_, _ = fmt.Fprintf(w, "%s\t%s\n", idx.Name, idx.Param)
				continue
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%d\n", idx.Name, idx.Param, len(nse.Get(ctx, idx.Name)))
		}
		return w.Flush()
	},
}

var instrumentsCmd = &cobra.Command{
	Use:   "instruments SYMBOL...",
	Short: "Resolve symbols to Upstox instrument keys",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		in := upstox.NewInstruments(&http.Client{Timeout: 60 * time.Second}, "")
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "SYMBOL\tINSTRUMENT KEY")
		for _, sym := range args {
			key, err := in.Resolve(ctx, market.CleanSymbol(sym))
			switch {
			case errors.Is(err, market.ErrNotFound):
				key = "-"
			case err != nil:
				return err
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", sym, key)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(strategiesCmd, universesCmd, instrumentsCmd)
	universesCmd.Flags().BoolVar(&universesCount, "count", false, "Fetch each index and show its member count")
}
