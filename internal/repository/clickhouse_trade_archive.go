package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	pkgch "TrendPull/pkg/clickhouse"
)

const tradeTable = "trade_events"

// TradeSchema is the DDL for archived trade events. event_id dedupes redeliveries.
var TradeSchema = []string{
	`CREATE TABLE IF NOT EXISTS trade_events (
        event_id          String,
        ts                DateTime64(3, 'UTC'),
        symbol            LowCardinality(String),
        order_id          String,
        client_order_id   String,
        direction         LowCardinality(String),
        strategy          LowCardinality(String),
        status            LowCardinality(String),
        contracts         Float64,
        entry_price       Float64,
        stop_loss_price   Float64,
        take_profit_price Float64,
        leverage          UInt16,
        confidence        Float64,
        risk_amount       Float64,
        risk_reward_ratio Float64,
        reason            String
    ) ENGINE = ReplacingMergeTree
    ORDER BY (symbol, ts, event_id)`,
}

// CHTradeArchive implements TradeArchive backed by ClickHouse.
type CHTradeArchive struct {
	ch *pkgch.Client
	db *sql.DB
}

var _ drepo.TradeArchive = (*CHTradeArchive)(nil)

func NewCHTradeArchive(ch *pkgch.Client) *CHTradeArchive {
	return &CHTradeArchive{ch: ch, db: ch.DB()}
}

func (a *CHTradeArchive) Init(ctx context.Context) error {
	return a.ch.InitSchema(ctx, TradeSchema)
}

func (a *CHTradeArchive) StoreTrades(ctx context.Context, events []models.TradeEvent) error {
	q, args := tradeInsert(events)
	if q == "" {
		return nil
	}
	if _, err := a.db.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("store trades: %w", err)
	}
	return nil
}

func tradeInsert(events []models.TradeEvent) (string, []interface{}) {
	values := make([]string, 0, len(events))
	args := make([]interface{}, 0, len(events)*17)
	for _, ev := range events {
		if ev.EventID == "" || ev.Trade.Symbol == "" {
			continue
		}
		t := ev.Trade
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			ev.EventID,
			t.Timestamp.UTC(),
			t.Symbol,
			t.OrderID,
			t.ClientOrderID,
			string(t.Direction),
			string(t.Strategy),
			string(t.Status),
			t.Contracts,
			t.EntryPrice,
			t.StopLossPrice,
			t.TakeProfitPrice,
			uint16(t.Leverage),
			t.Confidence,
			t.RiskAmount,
			t.RiskRewardRatio,
			t.Reason,
		)
	}
	if len(values) == 0 {
		return "", nil
	}
	q := fmt.Sprintf(`INSERT INTO %s (event_id, ts, symbol, order_id, client_order_id, direction, strategy, status,
        contracts, entry_price, stop_loss_price, take_profit_price, leverage, confidence, risk_amount, risk_reward_ratio, reason)
        VALUES %s`, tradeTable, strings.Join(values, ","))
	return q, args
}
