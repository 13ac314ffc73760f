package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"TrendPull/internal/di"
	"TrendPull/internal/domain/models"
	"TrendPull/internal/usecase"
	"TrendPull/pkg/util"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func newSnapshotCmd() *cobra.Command {
	var balance float64
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Build one market snapshot and show the signal it would produce",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshot(cmd.Context(), balance)
		},
	}
	cmd.Flags().Float64Var(&balance, "balance", 0, "USDT balance for sizing (default: fetched when credentials are set)")
	return cmd
}

type snapshotReport struct {
	Snapshot models.MarketSnapshot   `json:"snapshot"`
	Signal   *models.TradeSignal     `json:"signal,omitempty"`
	Params   *models.TradeParameters `json:"params,omitempty"`
	Note     string                  `json:"note,omitempty"`
}

func runSnapshot(ctx context.Context, balance float64) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	l, err := di.ProvideLogger(cfg)
	if err != nil {
		return err
	}
	ex, err := di.ProvideExchange(cfg, l)
	if err != nil {
		return err
	}
	builder := di.ProvideSnapshotBuilder(ex, nil, cfg, l)

	ctx, cancel := context.WithTimeout(ctx, cfg.Trading.FetchTimeout+5*time.Second)
	defer cancel()

	snap, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	rep := snapshotReport{Snapshot: snap}

	st := models.TradingState{Date: util.DayKey(time.Now())}
	sig, ok := usecase.NewSignalEvaluator(cfg.Strategy, cfg.Risk).Evaluate(snap, st)
	if ok {
		rep.Signal = &sig
		if balance <= 0 && ex.HasCredentials() {
			b, err := ex.FetchBalance(ctx, "USDT")
			if err != nil {
				return err
			}
			balance = b.Free
		}
		if balance > 0 {
			p, err := usecase.NewPositionSizer(cfg.Risk, cfg.Trading).Size(sig, snap, balance)
			if err != nil {
				rep.Note = err.Error()
			} else {
				rep.Params = &p
			}
		} else {
			rep.Note = "no balance available for sizing"
		}
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	printSnapshot(rep)
	return nil
}

func printSnapshot(rep snapshotReport) {
	s := rep.Snapshot
	fmt.Printf("%s @ %s\n\n", s.Symbol, s.Timestamp.UTC().Format(time.RFC3339))

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Metric", "Value"}),
	)
	rows := [][]string{
		{"Price", fmt.Sprintf("%.2f", s.Price)},
		{"SMA short", fmt.Sprintf("%.2f", s.SMAShort)},
		{"SMA long", fmt.Sprintf("%.2f", s.SMALong)},
		{"Trend", string(s.Trend)},
		{"Support", fmt.Sprintf("%.2f", s.Support)},
		{"Resistance", fmt.Sprintf("%.2f", s.Resistance)},
		{"Price position", fmt.Sprintf("%.3f", s.PricePosition)},
		{"Volatility", fmt.Sprintf("%.2f%% (%s)", s.Volatility*100, s.VolTier)},
	}
	if s.Breakout != nil {
		rows = append(rows, []string{"Breakout", fmt.Sprintf("%s %.2f", s.Breakout.Direction, s.Breakout.Level)})
	}
	if s.Momentum != nil {
		rows = append(rows, []string{"Momentum", fmt.Sprintf("%s %.3f%%", s.Momentum.Direction, s.Momentum.Change*100)})
	}
	for _, r := range rows {
		table.Append(r)
	}
	table.Render()

	if rep.Signal == nil {
		fmt.Println("\nNo signal.")
		return
	}
	fmt.Printf("\nSignal: %s via %s (confidence %.2f)\n  %s\n",
		rep.Signal.Direction, rep.Signal.Strategy, rep.Signal.Confidence, rep.Signal.Reason)
	if p := rep.Params; p != nil {
		fmt.Printf("  contracts=%.2f leverage=%dx entry=%.2f sl=%.2f tp=%.2f risk=%.2f rr=%.2f\n",
			p.Contracts, p.Leverage, p.EntryPrice, p.StopLossPrice, p.TakeProfitPrice, p.RiskAmount, p.RiskRewardRatio)
	}
	if rep.Note != "" {
		fmt.Printf("  %s\n", rep.Note)
	}
}
