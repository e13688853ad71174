package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/market-forecast/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer handles publishing pipeline events to Kafka
type Producer struct {
	writer messageWriter
	topic  string
	now    func() time.Time
}

// NewProducer creates a new Kafka producer
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
		now:    time.Now,
	}
}

// PublishPricesSynced publishes the outcome of a series sync
func (p *Producer) PublishPricesSynced(ctx context.Context, series models.Series, start, end time.Time, rows int, result models.BatchResult) error {
	event := models.PipelineEvent{
		EventType: models.EventPricesSynced,
		Series:    series,
		Start:     &start,
		End:       &end,
		Rows:      rows,
		Failed:    result.Failed,
		Timestamp: p.now(),
	}
	return p.publish(ctx, series.String(), event)
}

// PublishPredictionCreated publishes a stored prediction
func (p *Producer) PublishPredictionCreated(ctx context.Context, series models.Series, rec *models.PredictionRecord) error {
	event := models.PipelineEvent{
		EventType:  models.EventPredictionCreated,
		Series:     series,
		Symbol:     rec.Symbol,
		Prediction: rec,
		Timestamp:  p.now(),
	}
	return p.publish(ctx, rec.Symbol, event)
}

// PublishRankingUpdated publishes a freshly stored ranking
func (p *Producer) PublishRankingUpdated(ctx context.Context, records []models.RankRecord) error {
	event := models.PipelineEvent{
		EventType: models.EventRankingUpdated,
		Series:    models.SeriesStock,
		Ranking:   records,
		Timestamp: p.now(),
	}
	return p.publish(ctx, "ranking", event)
}

func (p *Producer) publish(ctx context.Context, key string, event models.PipelineEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to kafka: %w", err)
	}

	return nil
}

// Close closes the Kafka producer
func (p *Producer) Close() error {
	return p.writer.Close()
}
