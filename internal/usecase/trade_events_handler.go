package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	pkgkafka "TrendPull/pkg/kafka"
)

// TradeEventsHandler archives trade events consumed from Kafka.
type TradeEventsHandler struct {
	topic   string
	archive drepo.TradeArchive
	metrics drepo.Metrics
}

func NewTradeEventsHandler(topic string, archive drepo.TradeArchive, metrics drepo.Metrics) *TradeEventsHandler {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &TradeEventsHandler{topic: topic, archive: archive, metrics: metrics}
}

func (h *TradeEventsHandler) Topic() string { return h.topic }

// Handle decodes one event and stores it. Errors are retried and then dead-lettered by the consumer.
func (h *TradeEventsHandler) Handle(ctx context.Context, data []byte) error {
	var ev models.TradeEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		h.metrics.RecordError("trade_event_decode")
		return fmt.Errorf("decode trade event: %w", err)
	}
	if ev.EventID == "" || ev.Trade.Symbol == "" {
		h.metrics.RecordError("trade_event_invalid")
		return fmt.Errorf("trade event missing id or symbol")
	}
	h.metrics.RecordLatency("trade_event_e2e_seconds", time.Since(ev.Trade.Timestamp).Seconds())

	start := time.Now()
	err := h.archive.StoreTrades(ctx, []models.TradeEvent{ev})
	h.metrics.RecordLatency("ch_insert_seconds", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("trade_archive")
		return fmt.Errorf("archive trade %s: %w", ev.EventID, err)
	}
	h.metrics.RecordMessageSent("clickhouse", "trades")
	return nil
}

var _ pkgkafka.MessageHandler = (*TradeEventsHandler)(nil)
