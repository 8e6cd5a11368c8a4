package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"github.com/snappy-loop/paintchat/internal/models"
)

// messageReader is the subset of *kafka.Reader used by Consumer.
type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer reads relay events from Kafka
type Consumer struct {
	reader  messageReader
	handler EventHandler
}

// EventHandler processes relay events
type EventHandler interface {
	HandleEvent(ctx context.Context, ev *models.Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev *models.Event) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev *models.Event) error {
	return f(ctx, ev)
}

// NewConsumer creates a new Kafka consumer.
// fromStart selects FirstOffset when the group has no committed offset; otherwise only new events are read.
func NewConsumer(brokers []string, topic, groupID string, fromStart bool, handler EventHandler) *Consumer {
	startOffset := kafka.LastOffset
	if fromStart {
		startOffset = kafka.FirstOffset
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // manual commits
		StartOffset:    startOffset,
	})

	log.Info().
		Strs("brokers", brokers).
		Str("topic", topic).
		Str("group_id", groupID).
		Bool("from_start", fromStart).
		Msg("Kafka consumer initialized")

	return &Consumer{
		reader:  reader,
		handler: handler,
	}
}

// Start consumes events until ctx is cancelled.
// A failing event is retried with backoff and skipped after maxAttempts so one bad message cannot block the topic.
func (c *Consumer) Start(ctx context.Context) error {
	log.Info().Msg("Starting Kafka consumer")

	const (
		maxAttempts = 5
		baseDelay   = 500 * time.Millisecond
		maxDelay    = 10 * time.Second
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to fetch message")
			continue
		}

		var lastErr error
		for attempt := 0; attempt < maxAttempts; attempt++ {
			if lastErr = c.processMessage(ctx, msg); lastErr == nil {
				break
			}
			if errors.Is(lastErr, errMalformed) {
				break
			}
			log.Warn().
				Err(lastErr).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Int("attempt", attempt+1).
				Msg("Failed to process event - will retry")

			delay := min(baseDelay*time.Duration(1<<uint(attempt)), maxDelay)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		if lastErr != nil {
			log.Error().
				Err(lastErr).
				Int("partition", msg.Partition).
				Int64("offset", msg.Offset).
				Msg("Skipping event after failed processing")
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Msg("Failed to commit message")
		}
	}
}

var errMalformed = errors.New("malformed event")

// processMessage decodes a single Kafka message and hands it to the handler
func (c *Consumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var ev models.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return fmt.Errorf("%w: %v", errMalformed, err)
	}

	if err := c.handler.HandleEvent(ctx, &ev); err != nil {
		return fmt.Errorf("handler error: %w", err)
	}
	return nil
}

// Close closes the consumer
func (c *Consumer) Close() error {
	log.Info().Msg("Closing Kafka consumer")
	return c.reader.Close()
}
