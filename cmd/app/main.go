package main

import (
	"errors"
	"fmt"
	"os"

	"TrendPull/internal/di"
	"TrendPull/pkg/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	format  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "trendpull",
		Short: "OKX BTC/USDT perpetual trend and breakout trader",
		Long: `TrendPull evaluates the BTC-USDT-SWAP market on a timer and opens at most one
position at a time, sized from volatility-tiered stop-loss and take-profit levels.

Examples:
  trendpull run --config config/config.yaml
  trendpull snapshot
  trendpull backtest --csv data/btc_15m.csv`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config/config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "output format: table, json")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "run",
			Short: "Run the trading loop with the status API",
			RunE:  runTrader,
		},
		newSnapshotCmd(),
		newBacktestCmd(),
		newCandlesCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the config file, falling back to defaults plus env when it is absent.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(cfgFile)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	cfg = config.Default()
	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func runTrader(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	return app.Run()
}
