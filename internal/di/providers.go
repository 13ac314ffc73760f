package di

import (
    "context"
    "fmt"
    "time"

    "TrendPull/internal/domain/repository"
    "TrendPull/internal/handler/api"
    "TrendPull/internal/middleware"
    internalrepo "TrendPull/internal/repository"
    "TrendPull/internal/service/okx"
    "TrendPull/internal/service/ratelimit"
    "TrendPull/internal/usecase"
    "TrendPull/pkg/cache"
    pkgch "TrendPull/pkg/clickhouse"
    "TrendPull/pkg/config"
    pkgkafka "TrendPull/pkg/kafka"
    applogger "TrendPull/pkg/logger"
    "TrendPull/pkg/metrics"
    "TrendPull/pkg/server"
)

// ProvideLogger creates the application logger from the logging section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
    l, err := applogger.New(&applogger.Config{
        Level:  cfg.Logging.Level,
        Format: cfg.Logging.Format,
        Output: cfg.Logging.Output,
    })
    if err != nil {
        return nil, fmt.Errorf("logger: %w", err)
    }
    return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
    return metrics.New()
}

// ProvideCache selects the cache backend: memory, redis or layered (memory over redis).
func ProvideCache(cfg *config.Config) (cache.Service, error) {
    switch cfg.Cache.Backend {
    case "", "memory":
        return cache.NewMemoryCache(
            cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
            cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
        ), nil
    case "redis", "layered":
        rc, err := cache.NewRedisCache(
            cache.WithRedisHost(cfg.Redis.Host),
            cache.WithRedisPort(cfg.Redis.Port),
            cache.WithRedisPassword(cfg.Redis.Password),
            cache.WithRedisDB(cfg.Redis.DB),
            cache.WithRedisPrefix(cfg.Redis.Prefix),
            cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
        )
        if err != nil {
            return nil, fmt.Errorf("redis cache: %w", err)
        }
        if cfg.Cache.Backend == "redis" {
            return rc, nil
        }
        return cache.NewLayeredCache(rc,
            cache.WithLayeredMemorySize(cfg.Cache.MemoryMaxSize),
            cache.WithLayeredMemoryTTL(cfg.State.CacheTTL),
        ), nil
    default:
        return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
    }
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
    if !cfg.ClickHouse.Enabled {
        return nil, nil
    }
    client, err := pkgch.NewClient(
        pkgch.WithHost(cfg.ClickHouse.Host),
        pkgch.WithPort(cfg.ClickHouse.Port),
        pkgch.WithDatabase(cfg.ClickHouse.Database),
        pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
        pkgch.WithMaxConnections(10, 5),
        pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
        pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
        pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
        pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
    )
    if err != nil {
        return nil, fmt.Errorf("clickhouse client: %w", err)
    }
    return client, nil
}

// ProvideCandleStore creates the candle archive and its table, or nil without ClickHouse.
func ProvideCandleStore(ch *pkgch.Client, l *applogger.Logger) (*internalrepo.CHCandleStore, error) {
    if ch == nil {
        return nil, nil
    }
    store := internalrepo.NewCHCandleStore(ch, l)
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := store.Init(ctx); err != nil {
        return nil, fmt.Errorf("candle schema: %w", err)
    }
    return store, nil
}

// ProvideTradeArchive creates the trade event archive, or nil without ClickHouse.
func ProvideTradeArchive(ch *pkgch.Client) (*internalrepo.CHTradeArchive, error) {
    if ch == nil {
        return nil, nil
    }
    archive := internalrepo.NewCHTradeArchive(ch)
    ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
    defer cancel()
    if err := archive.Init(ctx); err != nil {
        return nil, fmt.Errorf("trade schema: %w", err)
    }
    return archive, nil
}

// ProvideKafkaProducer creates a Kafka producer, or nil when disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
    if !cfg.Kafka.Enabled {
        return nil, nil
    }
    producer, err := pkgkafka.NewProducer(
        pkgkafka.WithBrokers(cfg.Kafka.Brokers),
        pkgkafka.WithCompression(cfg.Kafka.Compression),
        pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
        pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
        pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
        pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
        pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
        pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
        pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
        pkgkafka.WithHashByKey(true),
        pkgkafka.WithAutoCreateTopic(cfg.Kafka.AutoCreate),
    )
    if err != nil {
        return nil, fmt.Errorf("kafka producer: %w", err)
    }
    return producer, nil
}

// ProvideTradePublisher wraps the producer, or returns nil without Kafka.
func ProvideTradePublisher(producer *pkgkafka.Producer, m repository.Metrics, cfg *config.Config) *internalrepo.KafkaTradePublisher {
    if producer == nil {
        return nil
    }
    return internalrepo.NewKafkaTradePublisher(producer, cfg.Kafka.TradeTopic, m)
}

// ProvideKafkaConsumer creates the trade archiver consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
    if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
        return nil, nil
    }
    consumer, err := pkgkafka.NewConsumer(
        pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
        pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
        pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
        pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
        pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
        pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
        pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
        pkgkafka.WithConsumerLogger(l),
    )
    if err != nil {
        return nil, fmt.Errorf("kafka consumer: %w", err)
    }
    return consumer, nil
}

// ProvideTradeEventsHandler archives trade events, or nil without an archive.
func ProvideTradeEventsHandler(archive *internalrepo.CHTradeArchive, m repository.Metrics, cfg *config.Config) *usecase.TradeEventsHandler {
    if archive == nil {
        return nil
    }
    return usecase.NewTradeEventsHandler(cfg.Kafka.TradeTopic, archive, m)
}

// ProvideExchange creates the OKX REST client.
func ProvideExchange(cfg *config.Config, l *applogger.Logger) (*okx.Client, error) {
    ex := cfg.Exchange
    return okx.New(ex.BaseURL,
        okx.WithCredentials(ex.APIKey, ex.SecretKey, ex.Passphrase),
        okx.WithSimulated(ex.Simulated),
        okx.WithMarginMode(cfg.Trading.MarginMode),
        okx.WithProxy(ex.Proxy),
        okx.WithTimeout(ex.Timeout),
        okx.WithLimiter(ratelimit.New(ex.RequestsPerSec, ex.Burst)),
        okx.WithLogger(l),
    )
}

// ProvideTickerCollector streams public tickers, or returns nil when the stream is off.
func ProvideTickerCollector(cfg *config.Config, m repository.Metrics, c cache.Service, l *applogger.Logger) *usecase.TickerCollector {
    if !cfg.Exchange.StreamEnabled {
        return nil
    }
    stream := okx.NewStream(cfg.Exchange.WebSocketURL, cfg.Exchange.ReconnectDelay, cfg.Exchange.PingInterval, l)
    return usecase.NewTickerCollector(stream, []string{cfg.Trading.Symbol}, m, c, l,
        middleware.WithBufferSize(cfg.Exchange.StreamBuffer),
    )
}

// ProvideTradeLog opens the JSONL trade log.
func ProvideTradeLog(cfg *config.Config) (*internalrepo.FileTradeLog, error) {
    return internalrepo.NewFileTradeLog(cfg.TradeLog.Path, cfg.TradeLog.Fsync)
}

// ProvideStateStore creates the trading state, persisted in the cache when enabled.
func ProvideStateStore(cfg *config.Config, c cache.Service, l *applogger.Logger) *usecase.StateStore {
    var persist repository.StateStore
    if cfg.State.Persist {
        persist = internalrepo.NewCacheStateStore(c, cfg.State.TTL)
    }
    return usecase.NewStateStore(persist, l)
}

func ProvideSnapshotBuilder(ex *okx.Client, store *internalrepo.CHCandleStore, cfg *config.Config, l *applogger.Logger) *usecase.SnapshotBuilder {
    opts := []usecase.SnapshotOption{usecase.WithSnapshotLogger(l)}
    if store != nil && cfg.Trading.ArchiveCandles {
        opts = append(opts, usecase.WithCandleArchive(store))
    }
    return usecase.NewSnapshotBuilder(ex, cfg.Trading, cfg.Strategy, cfg.Risk, opts...)
}

func ProvideSignalEvaluator(cfg *config.Config) *usecase.SignalEvaluator {
    return usecase.NewSignalEvaluator(cfg.Strategy, cfg.Risk)
}

func ProvidePositionSizer(cfg *config.Config) *usecase.PositionSizer {
    return usecase.NewPositionSizer(cfg.Risk, cfg.Trading)
}

func ProvideIntervalScheduler(cfg *config.Config) *usecase.IntervalScheduler {
    return usecase.NewIntervalScheduler(cfg.Trading.CheckInterval, cfg.Interval)
}

// ProvideTradingLoop assembles the evaluation loop. Optional collaborators are attached
// only when present.
func ProvideTradingLoop(
    cfg *config.Config,
    ex *okx.Client,
    builder *usecase.SnapshotBuilder,
    evaluator *usecase.SignalEvaluator,
    sizer *usecase.PositionSizer,
    state *usecase.StateStore,
    tradeLog *internalrepo.FileTradeLog,
    scheduler *usecase.IntervalScheduler,
    pub *internalrepo.KafkaTradePublisher,
    collector *usecase.TickerCollector,
    m repository.Metrics,
    l *applogger.Logger,
) *usecase.TradingLoop {
    opts := []usecase.LoopOption{usecase.WithLoopLogger(l), usecase.WithLoopMetrics(m)}
    if pub != nil {
        opts = append(opts, usecase.WithPublisher(pub))
    }
    if collector != nil {
        opts = append(opts, usecase.WithPriceSource(collector))
    }
    return usecase.NewTradingLoop(ex, builder, evaluator, sizer, state, tradeLog, scheduler, cfg.Trading, opts...)
}

// ProvideStatusHandler creates the status API with health probes for enabled backends.
func ProvideStatusHandler(
    cfg *config.Config,
    loop *usecase.TradingLoop,
    state *usecase.StateStore,
    builder *usecase.SnapshotBuilder,
    sizer *usecase.PositionSizer,
    ex *okx.Client,
    tradeLog *internalrepo.FileTradeLog,
    c cache.Service,
    ch *pkgch.Client,
    collector *usecase.TickerCollector,
    l *applogger.Logger,
) *api.StatusEchoHandler {
    opts := []api.StatusOption{
        api.WithSnapshotCache(c, cfg.State.CacheTTL),
        api.WithHealthCheck("cache", func(ctx context.Context) error {
            _, err := c.Exists(ctx, "health")
            return err
        }),
    }
    if ch != nil {
        opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
    }
    if collector != nil {
        opts = append(opts, api.WithHealthCheck("ticker_stream", func(context.Context) error {
            if !collector.IsConnected() {
                return fmt.Errorf("disconnected")
            }
            return nil
        }))
    }
    return api.NewStatusEchoHandler(l, loop, state, builder, sizer, ex, tradeLog, opts...)
}

// ProvideApp creates the application server.
func ProvideApp(
    cfg *config.Config,
    l *applogger.Logger,
    loop *usecase.TradingLoop,
    state *usecase.StateStore,
    c cache.Service,
    tradeLog *internalrepo.FileTradeLog,
    pub *internalrepo.KafkaTradePublisher,
    collector *usecase.TickerCollector,
    consumer *pkgkafka.Consumer,
    kh *usecase.TradeEventsHandler,
    chClient *pkgch.Client,
    handler *api.StatusEchoHandler,
) *server.App {
    if pub != nil && cfg.Logging.Collector.Enabled {
        l.AddCollector(&applogger.CollectionConfig{
            TimeInterval:   cfg.Logging.Collector.FlushInterval,
            CountThreshold: cfg.Logging.Collector.CountThreshold,
            Topic:          cfg.Logging.Collector.Topic,
            Publisher:      pub,
        })
    }

    app := server.New(cfg, l, loop, state, c, tradeLog)
    app.SetHTTPHandler(handler)
    if pub != nil {
        app.SetPublisher(pub)
    }
    if collector != nil {
        app.SetCollector(collector)
    }
    if consumer != nil && kh != nil {
        consumer.WithConsumerHook(pkgkafka.NoopHook{})
        app.SetConsumer(consumer, kh)
    }
    if chClient != nil {
        app.SetClickHouse(chClient)
    }
    return app
}
