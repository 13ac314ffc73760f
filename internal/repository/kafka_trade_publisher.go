package repository

import (
	"context"
	"fmt"

	"TrendPull/internal/domain/models"
	drepo "TrendPull/internal/domain/repository"
	pkgkafka "TrendPull/pkg/kafka"

	"github.com/google/uuid"
)

// KafkaTradePublisher emits a TradeEvent per trade, keyed by symbol.
// It also satisfies logger.Publisher for the error collector.
type KafkaTradePublisher struct {
	producer *pkgkafka.Producer
	topic    string
	metrics  drepo.Metrics
}

var _ drepo.TradeEventPublisher = (*KafkaTradePublisher)(nil)

func NewKafkaTradePublisher(producer *pkgkafka.Producer, topic string, metrics drepo.Metrics) *KafkaTradePublisher {
	if metrics == nil {
		metrics = drepo.NopMetrics{}
	}
	return &KafkaTradePublisher{producer: producer, topic: topic, metrics: metrics}
}

// NewTradeEvent wraps rec with a fresh event id.
func NewTradeEvent(rec models.TradeRecord) models.TradeEvent {
	return models.TradeEvent{EventID: uuid.NewString(), Trade: rec}
}

func (p *KafkaTradePublisher) PublishTrade(ctx context.Context, rec models.TradeRecord) error {
	ev := NewTradeEvent(rec)
	if err := p.producer.Publish(ctx, p.topic, []byte(rec.Symbol), ev); err != nil {
		p.metrics.RecordError("kafka_publish")
		return fmt.Errorf("publish trade %s: %w", ev.EventID, err)
	}
	p.metrics.RecordMessageSent("kafka", p.topic)
	return nil
}

// PublishMessage sends an arbitrary payload.
func (p *KafkaTradePublisher) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	if err := p.producer.Publish(ctx, topic, nil, payload); err != nil {
		p.metrics.RecordError("kafka_publish")
		return err
	}
	p.metrics.RecordMessageSent("kafka", topic)
	return nil
}

func (p *KafkaTradePublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
