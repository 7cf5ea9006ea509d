package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/groupchat/pollbot/pkg/db"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/redis"
	"go.uber.org/zap"
)

// Publisher appends events to a Redis stream for the consumer group to pick up.
type Publisher interface {
	PublishData(ctx context.Context, stream string, data []byte) (string, error)
}

// StreamInbox hands webhook events to the stream instead of the local pool.
type StreamInbox struct {
	publisher Publisher
	stream    string
}

func NewStreamInbox(publisher Publisher, stream string) *StreamInbox {
	return &StreamInbox{publisher: publisher, stream: stream}
}

func (s *StreamInbox) Enqueue(ctx context.Context, evt gateway.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", evt.ID, err)
	}
	if _, err := s.publisher.PublishData(ctx, s.stream, data); err != nil {
		return fmt.Errorf("publish event %s: %w", evt.ID, err)
	}
	return nil
}

// StreamHandler processes stream entries through the queue. Entries that do not
// decode, fail validation or are rejected by a store constraint are acknowledged
// and dropped. Other failures stay pending.
func StreamHandler(queue *Queue, logger *zap.Logger) redis.MessageHandler {
	return func(ctx context.Context, msg redis.Message) error {
		var evt gateway.Event
		if err := json.Unmarshal(msg.GetData(), &evt); err != nil {
			logger.Warn("Dropping undecodable stream entry",
				zap.String("entry_id", msg.ID),
				zap.Error(err))
			return nil
		}
		if evt.ID == "" {
			evt.ID = msg.ID
		}
		err := queue.Process(ctx, evt)
		if errors.Is(err, ErrInvalidEvent) {
			logger.Warn("Dropping invalid stream event",
				zap.String("entry_id", msg.ID),
				zap.Error(err))
			return nil
		}
		if db.IsConstraintViolation(err) {
			logger.Warn("Dropping stream event rejected by the store",
				zap.String("entry_id", msg.ID),
				zap.Error(err))
			return nil
		}
		return err
	}
}
