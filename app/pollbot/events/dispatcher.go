// Package events routes inbound gateway callbacks to the poll service.
package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupchat/pollbot/pkg/actions"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/polls"
	"go.uber.org/zap"
)

// Service is the part of polls.Service the dispatcher drives.
type Service interface {
	HandleText(ctx context.Context, msg polls.TextMessage) error
	HandleAction(ctx context.Context, conversationID string, action actions.Action) error
	Greet(ctx context.Context, conversationID string)
}

type Classifier interface {
	Classify(ctx context.Context, click actions.ButtonClick) (actions.Action, error)
}

// MemberSeeder learns conversation sizes from app_added events.
type MemberSeeder interface {
	SeedMemberCount(ctx context.Context, conversationID string, n int)
}

// ErrInvalidEvent marks events that can never be handled and should not be retried.
var ErrInvalidEvent = errors.New("invalid event")

// Dispatcher turns one Event into the matching service call.
type Dispatcher struct {
	service    Service
	classifier Classifier
	seeder     MemberSeeder
	logger     *zap.Logger
}

// NewDispatcher creates a dispatcher. seeder may be nil.
func NewDispatcher(service Service, classifier Classifier, seeder MemberSeeder, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		service:    service,
		classifier: classifier,
		seeder:     seeder,
		logger:     logger.With(zap.String("component", "dispatcher")),
	}
}

// Dispatch handles a single event. Errors are store failures the caller may retry.
func (d *Dispatcher) Dispatch(ctx context.Context, evt gateway.Event) error {
	if err := evt.Validate(); err != nil {
		return fmt.Errorf("%w %s: %w", ErrInvalidEvent, evt.ID, err)
	}

	switch evt.Type {
	case gateway.EventText:
		return d.service.HandleText(ctx, polls.TextMessage{
			ConversationID: evt.ConversationID,
			Sender:         evt.Sender,
			Text:           evt.Text,
			Mentions:       evt.Mentions,
		})

	case gateway.EventButton:
		action, err := d.classifier.Classify(ctx, actions.ButtonClick{
			MessageID: evt.MessageID,
			ButtonID:  evt.ButtonID,
			User:      evt.Sender,
		})
		if err != nil {
			return fmt.Errorf("classify click on %s: %w", evt.MessageID, err)
		}
		return d.service.HandleAction(ctx, evt.ConversationID, action)

	case gateway.EventAppAdded:
		if d.seeder != nil && len(evt.Members) > 0 {
			d.seeder.SeedMemberCount(ctx, evt.ConversationID, len(evt.Members))
		}
		d.logger.Info("Added to conversation",
			zap.String("conversation_id", evt.ConversationID),
			zap.Int("members", len(evt.Members)))
		d.service.Greet(ctx, evt.ConversationID)
		return nil
	}

	return fmt.Errorf("%w: unsupported type %q", ErrInvalidEvent, evt.Type)
}
