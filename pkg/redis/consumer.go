package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StreamConsumerConfig configures a StreamConsumer.
type StreamConsumerConfig struct {
	// Stream is the Redis stream name to consume from (required).
	Stream string

	// Group is the consumer group name (required).
	Group string

	// Consumer is the consumer name within the group (required).
	Consumer string

	// Count is the max number of entries to read per batch. Default: 100.
	Count int64

	// Block is how long to wait for new entries. Default: 5 seconds.
	Block time.Duration

	// RetryInterval is how long to wait before retrying after an error.
	// Default: 1 second.
	RetryInterval time.Duration

	// MaxRetryInterval is the maximum retry interval (with exponential backoff).
	// Default: 30 seconds.
	MaxRetryInterval time.Duration

	// Logger for logging. If nil, uses a no-op logger.
	Logger *zap.Logger
}

// MessageHandler processes a stream message. Return nil to acknowledge,
// or return an error to leave the entry pending for redelivery.
type MessageHandler func(ctx context.Context, msg Message) error

// Message represents a single stream entry with parsed fields.
type Message struct {
	// ID is the Redis stream entry ID (e.g., "1234567890123-0").
	ID string

	// Stream is the stream name this message came from.
	Stream string

	// Values contains the entry fields as key-value pairs.
	Values map[string]interface{}
}

// StreamConsumer consumes a Redis stream through a consumer group with
// automatic reconnection. Entries left pending by a previous run of the same
// consumer are replayed first, giving at-least-once delivery.
type StreamConsumer struct {
	client *Client
	config StreamConsumerConfig
	logger *zap.Logger
}

// NewStreamConsumer creates a new stream consumer.
func NewStreamConsumer(client *Client, config StreamConsumerConfig) (*StreamConsumer, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.Stream == "" {
		return nil, errors.New("stream name is required")
	}
	if config.Group == "" || config.Consumer == "" {
		return nil, errors.New("consumer group and consumer name are required")
	}

	config = config.withDefaults()

	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &StreamConsumer{
		client: client,
		config: config,
		logger: logger,
	}, nil
}

func (c StreamConsumerConfig) withDefaults() StreamConsumerConfig {
	if c.Count == 0 {
		c.Count = 100
	}
	if c.Block == 0 {
		c.Block = 5 * time.Second
	}
	if c.RetryInterval == 0 {
		c.RetryInterval = 1 * time.Second
	}
	if c.MaxRetryInterval == 0 {
		c.MaxRetryInterval = 30 * time.Second
	}
	return c
}

// Run starts consuming messages and calls handler for each message.
// Blocks until context is cancelled. Automatically handles reconnection.
func (sc *StreamConsumer) Run(ctx context.Context, handler MessageHandler) error {
	if err := sc.client.XGroupCreateMkStream(ctx, sc.config.Stream, sc.config.Group, "0"); err != nil {
		return err
	}
	sc.logger.Info("Consumer group ready",
		zap.String("stream", sc.config.Stream),
		zap.String("group", sc.config.Group),
		zap.String("consumer", sc.config.Consumer))

	// "0" replays this consumer's pending entries; once drained switch to new ones
	lastID := "0"
	retryInterval := sc.config.RetryInterval

	for {
		select {
		case <-ctx.Done():
			sc.logger.Info("Stream consumer shutting down",
				zap.String("stream", sc.config.Stream),
				zap.String("group", sc.config.Group))
			return ctx.Err()
		default:
		}

		messages, err := sc.readMessages(ctx, lastID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if errors.Is(err, redis.Nil) {
				continue
			}

			sc.logger.Warn("Error reading from stream, will retry",
				zap.String("stream", sc.config.Stream),
				zap.Error(err),
				zap.Duration("retryIn", retryInterval))

			select {
			case <-time.After(retryInterval):
				retryInterval = min(retryInterval*2, sc.config.MaxRetryInterval)
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		retryInterval = sc.config.RetryInterval

		if lastID == "0" && len(messages) == 0 {
			lastID = ">"
			continue
		}

		for _, msg := range messages {
			if err := sc.processMessage(ctx, handler, msg); err != nil {
				sc.logger.Error("Error processing message",
					zap.String("stream", sc.config.Stream),
					zap.String("id", msg.ID),
					zap.Error(err))
			}
		}

		// a failed pending entry would be replayed forever; leave it for the next start
		if lastID == "0" {
			lastID = ">"
		}
	}
}

// readMessages reads a batch of messages from the stream.
func (sc *StreamConsumer) readMessages(ctx context.Context, lastID string) ([]Message, error) {
	block := sc.config.Block
	if lastID != ">" {
		// pending entries are returned immediately or not at all
		block = -1
	}
	streams, err := sc.client.XReadGroup(ctx,
		sc.config.Group,
		sc.config.Consumer,
		sc.config.Stream,
		lastID,
		sc.config.Count,
		block,
	)
	if err != nil {
		return nil, err
	}

	return toMessages(streams), nil
}

func toMessages(streams []redis.XStream) []Message {
	var messages []Message
	for _, stream := range streams {
		for _, xmsg := range stream.Messages {
			messages = append(messages, Message{
				ID:     xmsg.ID,
				Stream: stream.Stream,
				Values: xmsg.Values,
			})
		}
	}
	return messages
}

// processMessage processes a single message and acknowledges it on success.
func (sc *StreamConsumer) processMessage(ctx context.Context, handler MessageHandler, msg Message) error {
	if err := handler(ctx, msg); err != nil {
		return err
	}

	if _, ackErr := sc.client.XAck(ctx, sc.config.Stream, sc.config.Group, msg.ID); ackErr != nil {
		sc.logger.Warn("Failed to acknowledge message",
			zap.String("stream", sc.config.Stream),
			zap.String("id", msg.ID),
			zap.Error(ackErr))
	}

	return nil
}

// GetData is a helper to extract the "data" field from a message.
// Returns nil if not found.
func (m *Message) GetData() []byte {
	if data, ok := m.Values["data"].(string); ok {
		return []byte(data)
	}
	if data, ok := m.Values["data"].([]byte); ok {
		return data
	}
	return nil
}

// PublishData appends a payload to the stream under the "data" field read by GetData.
func (c *Client) PublishData(ctx context.Context, stream string, data []byte) (string, error) {
	return c.XAdd(ctx, stream, map[string]interface{}{"data": string(data)})
}
