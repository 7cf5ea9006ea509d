// Package gateway talks to the messaging backend the bot lives in.
package gateway

import (
	"context"
	"errors"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// ErrEntityNotFound is returned when the conversation or message no longer exists.
var ErrEntityNotFound = errors.New("entity not found")

// Gateway sends and edits messages in conversations.
type Gateway interface {
	Send(ctx context.Context, conversationID string, content Content) (string, error)
	// Edit replaces the message and returns the id of the edited message, which may differ from the original.
	Edit(ctx context.Context, conversationID, originalMessageID string, content Content) (string, error)
	ConversationMemberCount(ctx context.Context, conversationID string) (int, error)
}

// Content is TextContent, CompositeContent or ButtonConfirmation.
type Content interface {
	Kind() string
}

// Button is an interactive control of a composite message.
type Button struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// TextContent is a plain message.
type TextContent struct {
	Text pollmodels.Text
}

// CompositeContent is a message with buttons. An empty Buttons list clears them on edit.
type CompositeContent struct {
	Text    pollmodels.Text
	Buttons []Button
}

// ButtonConfirmation acknowledges a click, marking ButtonID as selected on the referenced message.
type ButtonConfirmation struct {
	ReferenceMessageID string
	ButtonID           string
}

func (TextContent) Kind() string        { return "text" }
func (CompositeContent) Kind() string   { return "composite" }
func (ButtonConfirmation) Kind() string { return "button_confirmation" }

// Text returns a plain content with no mentions.
func Text(body string) TextContent {
	return TextContent{Text: pollmodels.Text{Body: body}}
}
