package gateway

import (
	"errors"
	"fmt"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// EventType names an inbound callback from the messaging backend.
type EventType string

const (
	EventText     EventType = "text"
	EventButton   EventType = "button"
	EventAppAdded EventType = "app_added"
)

// Event is an inbound callback, delivered by webhook or stream.
type Event struct {
	ID             string                   `json:"id,omitempty"`
	Type           EventType                `json:"type"`
	ConversationID string                   `json:"conversation_id"`
	Sender         pollmodels.QualifiedID   `json:"sender"`
	Text           string                   `json:"text,omitempty"`
	Mentions       []pollmodels.Mention     `json:"mentions,omitempty"`
	MessageID      string                   `json:"message_id,omitempty"`
	ButtonID       string                   `json:"button_id,omitempty"`
	Members        []pollmodels.QualifiedID `json:"members,omitempty"`
}

var errMissingField = errors.New("missing field")

// Validate checks that the fields required by the event type are present.
func (e Event) Validate() error {
	if e.ConversationID == "" {
		return fmt.Errorf("conversation_id: %w", errMissingField)
	}
	switch e.Type {
	case EventText:
		if e.Sender.ID == "" {
			return fmt.Errorf("sender: %w", errMissingField)
		}
	case EventButton:
		if e.Sender.ID == "" {
			return fmt.Errorf("sender: %w", errMissingField)
		}
		if e.MessageID == "" {
			return fmt.Errorf("message_id: %w", errMissingField)
		}
	case EventAppAdded:
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	return nil
}
