package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"TrendPull/internal/di"
	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	internalrepo "TrendPull/internal/repository"
	"TrendPull/internal/usecase"
	"TrendPull/pkg/config"
	"TrendPull/pkg/util"

	"github.com/olekukonko/tablewriter"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func newBacktestCmd() *cobra.Command {
	var (
		source  string
		csvPath string
		bars    int
		balance float64
		trades  bool
		from    string
		to      string
	)
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay historical candles through the signal and sizing pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			if cmd.Flags().Changed("source") {
				cfg.Backtest.Source = source
			}
			if cmd.Flags().Changed("csv") {
				cfg.Backtest.Source = "csv"
				cfg.Backtest.CSVPath = csvPath
			}
			if cmd.Flags().Changed("bars") {
				cfg.Backtest.Bars = bars
			}
			if cmd.Flags().Changed("balance") {
				cfg.Backtest.InitialBalance = balance
			}
			r, err := parseRange(from, to)
			if err != nil {
				return err
			}
			return runBacktest(cmd.Context(), cfg, r, trades)
		},
	}
	cmd.Flags().StringVar(&source, "source", "csv", "candle source: csv, clickhouse")
	cmd.Flags().StringVar(&csvPath, "csv", "", "CSV file with timestamp,open,high,low,close,volume rows")
	cmd.Flags().IntVar(&bars, "bars", 0, "number of most recent bars to replay from clickhouse")
	cmd.Flags().Float64Var(&balance, "balance", 0, "initial balance in USDT")
	cmd.Flags().BoolVar(&trades, "trades", false, "list every simulated trade")
	cmd.Flags().StringVar(&from, "from", "", "clickhouse range start (RFC3339 or unix ms); overrides --bars")
	cmd.Flags().StringVar(&to, "to", "", "clickhouse range end (default now)")
	return cmd
}

type timeRange struct {
	from, to time.Time
}

func parseRange(from, to string) (*timeRange, error) {
	if from == "" {
		return nil, nil
	}
	f, ok := util.ParseTime(from)
	if !ok {
		return nil, fmt.Errorf("invalid --from %q", from)
	}
	t := util.ParseTimeDefault(to, time.Now().UTC())
	if !t.After(f) {
		return nil, fmt.Errorf("--to must be after --from")
	}
	return &timeRange{from: f, to: t}, nil
}

func loadSeries(ctx context.Context, cfg *config.Config, r *timeRange) (models.CandleSeries, error) {
	tf := drepo.NormalizeTimeframe(cfg.Trading.PrimaryTimeframe)
	switch cfg.Backtest.Source {
	case "csv":
		if cfg.Backtest.CSVPath == "" {
			return models.CandleSeries{}, fmt.Errorf("backtest.csv_path is required for the csv source")
		}
		return internalrepo.LoadCandlesCSV(cfg.Backtest.CSVPath, cfg.Trading.Symbol, string(tf))
	case "clickhouse":
		cfg.ClickHouse.Enabled = true
		ch, err := di.ProvideClickHouseClient(cfg)
		if err != nil {
			return models.CandleSeries{}, err
		}
		defer ch.Close()
		store := internalrepo.NewCHCandleStore(ch, nil)
		if r != nil {
			from, to := util.AlignFromTo(r.from, r.to, string(tf))
			return store.GetCandles(ctx, cfg.Trading.Symbol, tf, from, to)
		}
		return store.GetLatestNCandles(ctx, cfg.Trading.Symbol, tf, cfg.Backtest.Bars)
	default:
		return models.CandleSeries{}, fmt.Errorf("unknown backtest source %q", cfg.Backtest.Source)
	}
}

func runBacktest(ctx context.Context, cfg *config.Config, r *timeRange, listTrades bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	series, err := loadSeries(ctx, cfg, r)
	if err != nil {
		return fmt.Errorf("loading candles: %w", err)
	}

	bt := usecase.NewBacktester(cfg)
	var bar *progressbar.ProgressBar
	if format != "json" {
		bt.OnProgress(func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionEnableColorCodes(true),
					progressbar.OptionShowCount(),
					progressbar.OptionSetWidth(40),
					progressbar.OptionSetDescription("[cyan]Replaying...[reset]"),
					progressbar.OptionSetTheme(progressbar.Theme{
						Saucer:        "[green]█[reset]",
						SaucerHead:    "[green]█[reset]",
						SaucerPadding: "░",
						BarStart:      "[",
						BarEnd:        "]",
					}),
				)
			}
			_ = bar.Add(1)
		})
	}

	res, err := bt.Run(ctx, series)
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if format == "json" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	printBacktest(res, listTrades)
	return nil
}

func printBacktest(res models.BacktestResult, listTrades bool) {
	fmt.Printf("\nBacktest %s → %s (%d bars)\n\n",
		res.From.UTC().Format(time.RFC3339), res.To.UTC().Format(time.RFC3339), res.Bars)

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Metric", "Value"}),
	)
	for _, r := range [][]string{
		{"Initial balance", fmt.Sprintf("%.2f", res.InitialBalance)},
		{"Final balance", fmt.Sprintf("%.2f", res.FinalBalance)},
		{"Total return", fmt.Sprintf("%.2f%%", res.TotalReturn)},
		{"Trades", fmt.Sprintf("%d", len(res.Trades))},
		{"Win rate", fmt.Sprintf("%.1f%% (%d/%d)", res.WinRate, res.Wins, res.Wins+res.Losses)},
		{"Max drawdown", fmt.Sprintf("%.2f%%", res.MaxDrawdown)},
		{"Profit factor", fmt.Sprintf("%.2f", res.ProfitFactor)},
		{"Rejected by sizer", fmt.Sprintf("%d", res.Rejected)},
	} {
		table.Append(r)
	}
	table.Render()

	if len(res.PerStrategy) > 0 {
		fmt.Println()
		strategies := make([]string, 0, len(res.PerStrategy))
		for s := range res.PerStrategy {
			strategies = append(strategies, string(s))
		}
		sort.Strings(strategies)
		st := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Strategy", "Trades"}),
		)
		for _, s := range strategies {
			st.Append([]string{s, fmt.Sprintf("%d", res.PerStrategy[models.Strategy(s)])})
		}
		st.Render()
	}

	if !listTrades || len(res.Trades) == 0 {
		return
	}
	fmt.Println()
	tt := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Entry", "Exit", "Side", "Strategy", "Entry Px", "Exit Px", "PnL", "Reason"}),
	)
	for _, t := range res.Trades {
		tt.Append([]string{
			t.EntryTime.UTC().Format("01-02 15:04"),
			t.ExitTime.UTC().Format("01-02 15:04"),
			string(t.Direction),
			string(t.Strategy),
			fmt.Sprintf("%.2f", t.EntryPrice),
			fmt.Sprintf("%.2f", t.ExitPrice),
			fmt.Sprintf("%+.4f", t.PnL),
			t.ExitReason,
		})
	}
	tt.Render()
}
