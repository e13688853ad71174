package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/trogers1052/market-forecast/internal/models"
	"go.uber.org/zap"
)

// SyncTrigger runs the pipeline for a series, or every series when series is empty
type SyncTrigger interface {
	Trigger(ctx context.Context, series models.Series) error
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
	Config() kafka.ReaderConfig
}

// Consumer handles pipeline commands from Kafka
type Consumer struct {
	reader  messageReader
	trigger SyncTrigger
	logger  *zap.Logger
}

// NewConsumer creates a new Kafka consumer for pipeline commands
func NewConsumer(brokers []string, topic, groupID string, trigger SyncTrigger, logger *zap.Logger) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &Consumer{
		reader:  reader,
		trigger: trigger,
		logger:  logger,
	}
}

// Start begins consuming messages from Kafka
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting Kafka consumer", zap.String("topic", c.reader.Config().Topic))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Kafka consumer shutting down")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				c.logger.Error("Error reading message", zap.Error(err))
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				c.logger.Error("Error processing message",
					zap.Int("partition", msg.Partition),
					zap.Int64("offset", msg.Offset),
					zap.Error(err),
				)
			}
		}
	}
}

func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var cmd models.SyncCommand
	if err := json.Unmarshal(msg.Value, &cmd); err != nil {
		return fmt.Errorf("failed to unmarshal command: %w", err)
	}

	if cmd.EventType != models.EventSyncRequested {
		c.logger.Debug("Ignoring event type", zap.String("event_type", cmd.EventType))
		return nil
	}

	var series models.Series
	if cmd.Series != "" {
		s, err := models.ParseSeries(cmd.Series)
		if err != nil {
			return err
		}
		series = s
	}

	c.logger.Info("Sync requested",
		zap.String("series", series.String()),
		zap.String("source", cmd.Source),
	)
	if err := c.trigger.Trigger(ctx, series); err != nil {
		return fmt.Errorf("failed to run requested sync: %w", err)
	}
	return nil
}

// Close closes the Kafka consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
