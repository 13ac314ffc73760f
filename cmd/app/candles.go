package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"TrendPull/internal/di"
	drepo "TrendPull/internal/domain/repository"
	internalrepo "TrendPull/internal/repository"

	"github.com/spf13/cobra"
)

func newCandlesCmd() *cobra.Command {
	var (
		tf    string
		limit int
		out   string
	)
	cmd := &cobra.Command{
		Use:   "candles",
		Short: "Download recent candles from OKX as backtest CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			l, err := di.ProvideLogger(cfg)
			if err != nil {
				return err
			}
			ex, err := di.ProvideExchange(cfg, l)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Exchange.Timeout+5*time.Second)
			defer cancel()

			series, err := ex.FetchOHLCV(ctx, cfg.Trading.Symbol, drepo.NormalizeTimeframe(tf), limit)
			if err != nil {
				return err
			}

			w := os.Stdout
			if out != "" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := internalrepo.WriteCandlesCSV(w, series); err != nil {
				return err
			}
			if out != "" {
				fmt.Fprintf(os.Stderr, "wrote %d candles to %s\n", series.Len(), out)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&tf, "tf", "15m", "timeframe: 1m, 5m, 15m, 1H")
	cmd.Flags().IntVar(&limit, "limit", 300, "number of bars (OKX caps a request at 300)")
	cmd.Flags().StringVar(&out, "out", "", "output file (default stdout)")
	return cmd
}
