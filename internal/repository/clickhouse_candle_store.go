package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	pkgch "TrendPull/pkg/clickhouse"
	applogger "TrendPull/pkg/logger"
)

const candleTable = "candles"

// CandleSchema is the DDL for the candle archive. Re-inserted bars collapse on merge.
var CandleSchema = []string{
	`CREATE TABLE IF NOT EXISTS candles (
        symbol LowCardinality(String),
        tf     LowCardinality(String),
        bucket DateTime64(3, 'UTC'),
        open   Float64,
        high   Float64,
        low    Float64,
        close  Float64,
        vol    Float64,
        ingested_at DateTime64(3, 'UTC') DEFAULT now64(3)
    ) ENGINE = ReplacingMergeTree(ingested_at)
    ORDER BY (symbol, tf, bucket)`,
}

// CHCandleStore implements CandleStore backed by ClickHouse.
type CHCandleStore struct {
	ch *pkgch.Client
	db *sql.DB
	l  *applogger.Logger
}

var _ drepo.CandleStore = (*CHCandleStore)(nil)

func NewCHCandleStore(ch *pkgch.Client, l *applogger.Logger) *CHCandleStore {
	if l == nil {
		l = applogger.Nop()
	}
	return &CHCandleStore{ch: ch, db: ch.DB(), l: l}
}

func (s *CHCandleStore) Init(ctx context.Context) error {
	return s.ch.InitSchema(ctx, CandleSchema)
}

// SaveCandles inserts the series in chunks of multi-row VALUES.
func (s *CHCandleStore) SaveCandles(ctx context.Context, series models.CandleSeries) error {
	if series.Len() == 0 {
		return nil
	}
	const chunkSize = 2000
	tf := string(drepo.NormalizeTimeframe(series.Timeframe))
	for start := 0; start < series.Len(); start += chunkSize {
		end := start + chunkSize
		if end > series.Len() {
			end = series.Len()
		}
		q, args := candleInsert(series.Symbol, tf, series.Candles[start:end])
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			s.l.Error("clickhouse save_candles error",
				applogger.String("symbol", series.Symbol),
				applogger.String("tf", tf),
				applogger.Error(err),
			)
			return fmt.Errorf("save candles: %w", err)
		}
	}
	return nil
}

func candleInsert(symbol, tf string, candles []models.Candle) (string, []interface{}) {
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*8)
	for _, c := range candles {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, symbol, tf, c.Time.UTC(), c.Open, c.High, c.Low, c.Close, c.Volume)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, tf, bucket, open, high, low, close, vol) VALUES %s",
		candleTable, strings.Join(values, ","))
	return q, args
}

func (s *CHCandleStore) GetCandles(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time) (models.CandleSeries, error) {
	const q = `
        SELECT bucket, open, high, low, close, vol
        FROM candles FINAL
        WHERE symbol = ? AND tf = ? AND bucket >= ? AND bucket <= ?
        ORDER BY bucket ASC
    `
	return s.query(ctx, "get_candles", symbol, tf, false, q, symbol, string(tf), from.UTC(), to.UTC())
}

func (s *CHCandleStore) GetLatestNCandles(ctx context.Context, symbol string, tf drepo.Timeframe, n int) (models.CandleSeries, error) {
	const q = `
        SELECT bucket, open, high, low, close, vol
        FROM candles FINAL
        WHERE symbol = ? AND tf = ?
        ORDER BY bucket DESC
        LIMIT ?
    `
	return s.query(ctx, "latest_candles", symbol, tf, true, q, symbol, string(tf), n)
}

func (s *CHCandleStore) query(ctx context.Context, op, symbol string, tf drepo.Timeframe, reverse bool, q string, args ...interface{}) (models.CandleSeries, error) {
	start := time.Now()
	out := models.CandleSeries{Symbol: symbol, Timeframe: string(tf)}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Error(err),
		)
		return out, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return out, fmt.Errorf("scan candle: %w", err)
		}
		c.Time = c.Time.UTC()
		out.Candles = append(out.Candles, c)
	}
	if err := rows.Err(); err != nil {
		return out, fmt.Errorf("rows: %w", err)
	}
	if reverse {
		reverseCandles(out.Candles)
	}
	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", out.Len()),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

func reverseCandles(c []models.Candle) {
	for i, j := 0, len(c)-1; i < j; i, j = i+1, j-1 {
		c[i], c[j] = c[j], c[i]
	}
}
