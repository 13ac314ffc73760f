package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"TrendPull/pkg/util"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := strings.SplitN(f.Tag.Get("yaml"), ",", 2)[0]; name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

type Config struct {
	Environment string `yaml:"environment"`
	Server      struct {
		Enabled         bool          `yaml:"enabled"`
		Port            int           `yaml:"port"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
		RateLimitRPS    float64       `yaml:"rate_limit_rps"`
		RateLimitBurst  int           `yaml:"rate_limit_burst"`
		CORS            bool          `yaml:"cors"`
	} `yaml:"server"`
	Logging struct {
		Level     string `yaml:"level"`
		Format    string `yaml:"format"`
		Output    string `yaml:"output"`
		Collector struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic"`
			FlushInterval  time.Duration `yaml:"flush_interval"`
			CountThreshold int           `yaml:"count_threshold"`
		} `yaml:"collector"`
	} `yaml:"logging"`
	Exchange struct {
		BaseURL        string        `yaml:"base_url"`
		WebSocketURL   string        `yaml:"websocket_url"`
		APIKey         string        `yaml:"api_key"`
		SecretKey      string        `yaml:"secret_key"`
		Passphrase     string        `yaml:"passphrase"`
		Proxy          string        `yaml:"proxy"`
		Simulated      bool          `yaml:"simulated"`
		Timeout        time.Duration `yaml:"timeout"`
		RequestsPerSec float64       `yaml:"requests_per_sec"`
		Burst          int           `yaml:"burst"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		StreamEnabled  bool          `yaml:"stream_enabled"`
		StreamBuffer   int           `yaml:"stream_buffer"`
	} `yaml:"exchange"`
	Trading  Trading  `yaml:"trading"`
	Strategy Strategy `yaml:"strategy"`
	Risk     Risk     `yaml:"risk"`
	Interval Interval `yaml:"dynamic_interval"`
	TradeLog struct {
		Path  string `yaml:"path"`
		Fsync bool   `yaml:"fsync"`
	} `yaml:"trade_log"`
	State struct {
		Persist  bool          `yaml:"persist"`
		TTL      time.Duration `yaml:"ttl"`
		LockKey  string        `yaml:"lock_key"`
		LockTTL  time.Duration `yaml:"lock_ttl"`
		CacheTTL time.Duration `yaml:"snapshot_cache_ttl"`
	} `yaml:"state"`
	Cache struct {
		Backend         string        `yaml:"backend"` // memory, redis, layered
		MemoryMaxSize   int           `yaml:"memory_max_size"`
		CleanupInterval time.Duration `yaml:"cleanup_interval"`
	} `yaml:"cache"`
	Redis struct {
		Host         string        `yaml:"host"`
		Port         int           `yaml:"port"`
		Password     string        `yaml:"password"`
		DB           int           `yaml:"db"`
		Prefix       string        `yaml:"prefix"`
		PoolSize     int           `yaml:"pool_size"`
		MinIdleConns int           `yaml:"min_idle_conns"`
		PoolTimeout  time.Duration `yaml:"pool_timeout"`
	} `yaml:"redis"`
	Kafka struct {
		Enabled      bool     `yaml:"enabled"`
		Brokers      []string `yaml:"brokers"`
		TradeTopic   string   `yaml:"trade_topic"`
		RequiredAcks int      `yaml:"required_acks"`
		Compression  string   `yaml:"compression"`
		AutoCreate   bool     `yaml:"auto_create_topics"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts"`
			Linger       time.Duration `yaml:"linger"`
			BatchBytes   int           `yaml:"batch_bytes"`
			BatchSize    int           `yaml:"batch_size"`
			WriteTimeout time.Duration `yaml:"write_timeout"`
			ReadTimeout  time.Duration `yaml:"read_timeout"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id"`
			Workers    int           `yaml:"workers"`
			BufferSize int           `yaml:"buffer_size"`
			RetryMax   int           `yaml:"retry_max"`
			BackoffMin time.Duration `yaml:"backoff_min"`
			BackoffMax time.Duration `yaml:"backoff_max"`
			DLQTopic   string        `yaml:"dlq_topic"`
			MinBytes   int           `yaml:"min_bytes"`
			MaxBytes   int           `yaml:"max_bytes"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host"`
		Port             int           `yaml:"port"`
		Database         string        `yaml:"database"`
		User             string        `yaml:"user"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout"`
		ReadTimeout      time.Duration `yaml:"read_timeout"`
		WriteTimeout     time.Duration `yaml:"write_timeout"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	} `yaml:"clickhouse"`
	Backtest Backtest `yaml:"backtest"`
}

// Trading holds instrument and loop settings.
type Trading struct {
	Symbol             string        `yaml:"symbol"`
	ContractMultiplier float64       `yaml:"contract_multiplier"`
	LotStep            float64       `yaml:"lot_step"`
	PrimaryTimeframe   string        `yaml:"primary_timeframe"`
	PrimaryLimit       int           `yaml:"primary_limit"`
	MomentumTimeframe  string        `yaml:"momentum_timeframe"`
	MomentumLimit      int           `yaml:"momentum_limit"`
	CheckInterval      time.Duration `yaml:"check_interval"`
	FetchTimeout       time.Duration `yaml:"fetch_timeout"`
	MarginMode         string        `yaml:"margin_mode"`
	DryRun             bool          `yaml:"dry_run"`
	ArchiveCandles     bool          `yaml:"archive_candles"`
}

// Strategy holds the evaluator thresholds and feature windows.
type Strategy struct {
	SMAShort       int `yaml:"sma_short" validate:"gt=0"`
	SMALong        int `yaml:"sma_long" validate:"gtefield=SMAShort"`
	SupportWindow  int `yaml:"support_window" validate:"gt=0"`
	TrendFollowing struct {
		LongSupportThreshold     float64 `yaml:"long_support_threshold" validate:"gte=0,lte=1"`
		ShortResistanceThreshold float64 `yaml:"short_resistance_threshold" validate:"gte=0,lte=1"`
		Confidence               float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	} `yaml:"trend_following"`
	MeanReversion struct {
		Enabled                  bool    `yaml:"enabled"`
		VolatilityThreshold      float64 `yaml:"volatility_threshold" validate:"gte=0"`
		LongSupportThreshold     float64 `yaml:"long_support_threshold" validate:"gte=0,lte=1"`
		ShortResistanceThreshold float64 `yaml:"short_resistance_threshold" validate:"gte=0,lte=1"`
		Confidence               float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	} `yaml:"mean_reversion"`
	Breakout struct {
		Enabled    bool    `yaml:"enabled"`
		Period     int     `yaml:"period" validate:"required_if=Enabled true,gte=0"`
		Multiplier float64 `yaml:"multiplier" validate:"gte=1"`
		Confidence float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	} `yaml:"breakout"`
	Momentum struct {
		Enabled    bool    `yaml:"enabled"`
		Lookback   int     `yaml:"lookback" validate:"required_if=Enabled true,gte=0"`
		Threshold  float64 `yaml:"threshold" validate:"gte=0"`
		Confidence float64 `yaml:"confidence" validate:"gte=0,lte=1"`
	} `yaml:"momentum"`
}

// Tier is one row of the volatility-tiered risk table.
type Tier struct {
	Threshold  float64 `yaml:"threshold" validate:"gt=0"`
	StopLoss   float64 `yaml:"stop_loss" validate:"gt=0"`
	TakeProfit float64 `yaml:"take_profit" validate:"gt=0"`
	Leverage   int     `yaml:"leverage" validate:"gt=0,lte=125"`
}

// Risk holds the sizer and gate settings.
type Risk struct {
	RiskPerTrade         float64 `yaml:"risk_per_trade" validate:"gt=0,lt=1"`
	MinPositionSize      float64 `yaml:"min_position_size" validate:"gt=0"`
	MaxPositionSize      float64 `yaml:"max_position_size" validate:"gtefield=MinPositionSize"`
	MaxDailyTrades       int     `yaml:"max_daily_trades" validate:"gt=0"`
	ConsecutiveLossLimit int     `yaml:"consecutive_loss_limit" validate:"gt=0"`
	RiskRewardRatioMin   float64 `yaml:"risk_reward_ratio_min" validate:"gte=0"`
	Tiers                struct {
		Low    Tier `yaml:"low"`
		Medium Tier `yaml:"medium"`
		High   Tier `yaml:"high"`
	} `yaml:"volatility_tiers"`
}

// Interval configures the adaptive polling cadence.
type Interval struct {
	Enabled bool          `yaml:"enabled"`
	Min     time.Duration `yaml:"min"`
	Max     time.Duration `yaml:"max"`
}

// Backtest configures candle replay.
type Backtest struct {
	InitialBalance float64 `yaml:"initial_balance"`
	FeeRate        float64 `yaml:"fee_rate"`
	Source         string  `yaml:"source"` // clickhouse or csv
	CSVPath        string  `yaml:"csv_path"`
	Bars           int     `yaml:"bars"`
}

// Default returns a configuration populated with the tuned defaults.
func Default() *Config {
	c := &Config{Environment: "development"}

	c.Server.Enabled = true
	c.Server.Port = 8084
	c.Server.ReadTimeout = 10 * time.Second
	c.Server.WriteTimeout = 10 * time.Second
	c.Server.ShutdownTimeout = 10 * time.Second
	c.Server.RateLimitRPS = 5
	c.Server.RateLimitBurst = 10
	c.Server.CORS = true

	c.Logging.Level = "info"
	c.Logging.Format = "console"
	c.Logging.Output = "stdout"
	c.Logging.Collector.Topic = "trendpull-errors"
	c.Logging.Collector.FlushInterval = 30 * time.Second
	c.Logging.Collector.CountThreshold = 100

	c.Exchange.BaseURL = "https://www.okx.com"
	c.Exchange.WebSocketURL = "wss://ws.okx.com:8443/ws/v5/public"
	c.Exchange.Timeout = 15 * time.Second
	c.Exchange.RequestsPerSec = 5
	c.Exchange.Burst = 5
	c.Exchange.ReconnectDelay = 5 * time.Second
	c.Exchange.PingInterval = 20 * time.Second
	c.Exchange.StreamBuffer = 256

	c.Trading.Symbol = "BTC-USDT-SWAP"
	c.Trading.ContractMultiplier = 0.01
	c.Trading.LotStep = 0.01
	c.Trading.PrimaryTimeframe = "15m"
	c.Trading.PrimaryLimit = 100
	c.Trading.MomentumTimeframe = "5m"
	c.Trading.MomentumLimit = 50
	c.Trading.CheckInterval = 45 * time.Second
	c.Trading.FetchTimeout = 10 * time.Second
	c.Trading.MarginMode = "cross"

	s := &c.Strategy
	s.SMAShort = 20
	s.SMALong = 50
	s.SupportWindow = 20
	s.TrendFollowing.LongSupportThreshold = 0.4
	s.TrendFollowing.ShortResistanceThreshold = 0.6
	s.TrendFollowing.Confidence = 0.65
	s.MeanReversion.Enabled = true
	s.MeanReversion.VolatilityThreshold = 0.3
	s.MeanReversion.LongSupportThreshold = 0.35
	s.MeanReversion.ShortResistanceThreshold = 0.65
	s.MeanReversion.Confidence = 0.55
	s.Breakout.Enabled = true
	s.Breakout.Period = 20
	s.Breakout.Multiplier = 1.02
	s.Breakout.Confidence = 0.6
	s.Momentum.Lookback = 10
	s.Momentum.Threshold = 0.005
	s.Momentum.Confidence = 0.55

	r := &c.Risk
	r.RiskPerTrade = 0.01
	r.MinPositionSize = 0.01
	r.MaxPositionSize = 0.1
	r.MaxDailyTrades = 8
	r.ConsecutiveLossLimit = 4
	r.RiskRewardRatioMin = 1.3
	r.Tiers.Low = Tier{Threshold: 0.3, StopLoss: 1.0, TakeProfit: 2.0, Leverage: 20}
	r.Tiers.Medium = Tier{Threshold: 0.7, StopLoss: 1.3, TakeProfit: 2.6, Leverage: 15}
	r.Tiers.High = Tier{Threshold: 1.0, StopLoss: 1.8, TakeProfit: 3.6, Leverage: 8}

	c.Interval.Min = 5 * time.Second
	c.Interval.Max = 30 * time.Second

	c.TradeLog.Path = "logs/trades.jsonl"

	c.State.TTL = 48 * time.Hour
	c.State.LockKey = "trader:lock"
	c.State.LockTTL = 2 * time.Minute
	c.State.CacheTTL = 15 * time.Second

	c.Cache.Backend = "memory"
	c.Cache.MemoryMaxSize = 1000
	c.Cache.CleanupInterval = time.Minute

	c.Redis.Host = "localhost"
	c.Redis.Port = 6379
	c.Redis.Prefix = "trendpull"
	c.Redis.PoolSize = 10
	c.Redis.MinIdleConns = 2
	c.Redis.PoolTimeout = 4 * time.Second

	c.Kafka.TradeTopic = "trade-events"
	c.Kafka.RequiredAcks = -1
	c.Kafka.Compression = "gzip"
	c.Kafka.Consumer.GroupID = "trendpull-archiver"
	c.Kafka.Consumer.Workers = 1

	c.ClickHouse.Host = "localhost"
	c.ClickHouse.Port = 9000
	c.ClickHouse.Database = "trendpull"
	c.ClickHouse.DialTimeout = 5 * time.Second
	c.ClickHouse.ReadTimeout = 10 * time.Second
	c.ClickHouse.WriteTimeout = 10 * time.Second

	c.Backtest.InitialBalance = 1000
	c.Backtest.FeeRate = 0.0005
	c.Backtest.Source = "csv"
	c.Backtest.Bars = 2000

	return c
}

// Load reads a YAML configuration file on top of Default.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	c.ApplyEnv()
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// ApplyEnv overrides fields from the process environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("OKX_API_KEY"); v != "" {
		c.Exchange.APIKey = v
	}
	if v := os.Getenv("OKX_SECRET_KEY"); v != "" {
		c.Exchange.SecretKey = v
	}
	if v := os.Getenv("OKX_PASSPHRASE"); v != "" {
		c.Exchange.Passphrase = v
	}
	if v := os.Getenv("OKX_PROXY"); v != "" {
		c.Exchange.Proxy = v
	}
	if v := os.Getenv("OKX_SIMULATED"); v != "" {
		c.Exchange.Simulated, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("TRADING_DRY_RUN"); v != "" {
		c.Trading.DryRun, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		c.Redis.Host = v
	}
	if v := os.Getenv("REDIS_PORT"); v != "" {
		c.Redis.Port = util.ParseIntDefault(v, c.Redis.Port)
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Trading.Symbol == "" {
		return fmt.Errorf("trading.symbol is required")
	}
	if c.Trading.ContractMultiplier <= 0 {
		return fmt.Errorf("trading.contract_multiplier must be > 0")
	}
	if c.Trading.CheckInterval <= 0 {
		return fmt.Errorf("trading.check_interval must be > 0")
	}
	if err := validateSection("strategy", c.Strategy); err != nil {
		return err
	}
	if err := validateSection("risk", c.Risk); err != nil {
		return err
	}
	if c.Trading.PrimaryLimit <= c.Strategy.SMALong {
		return fmt.Errorf("trading.primary_limit must exceed strategy.sma_long (%d)", c.Strategy.SMALong)
	}
	if c.Risk.Tiers.Low.Threshold >= c.Risk.Tiers.Medium.Threshold {
		return fmt.Errorf("risk.volatility_tiers.low.threshold must be below medium.threshold")
	}
	if c.Interval.Enabled && (c.Interval.Min <= 0 || c.Interval.Max < c.Interval.Min) {
		return fmt.Errorf("dynamic_interval.max must be >= dynamic_interval.min > 0")
	}
	switch c.Cache.Backend {
	case "memory", "redis", "layered":
	default:
		return fmt.Errorf("cache.backend must be 'memory', 'redis' or 'layered', got '%s'", c.Cache.Backend)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if !c.Trading.DryRun && c.Exchange.APIKey != "" && (c.Exchange.SecretKey == "" || c.Exchange.Passphrase == "") {
		return fmt.Errorf("exchange.secret_key and exchange.passphrase are required with exchange.api_key")
	}
	return nil
}

// validateSection runs the struct tags of one config block and reports the first
// failure by its yaml path.
func validateSection(name string, v interface{}) error {
	err := structValidator.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("%s: %w", name, err)
	}
	fe := verrs[0]
	path := fe.Namespace()
	if i := strings.Index(path, "."); i >= 0 {
		path = path[i+1:]
	}
	rule := fe.Tag()
	if fe.Param() != "" {
		rule += "=" + fe.Param()
	}
	return fmt.Errorf("%s.%s: must satisfy %s, got %v", name, path, rule, fe.Value())
}
