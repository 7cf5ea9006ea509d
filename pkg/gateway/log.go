package gateway

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v4"
	"go.uber.org/zap"
)

// Message is what the LogGateway recorded for a sent or edited message.
type Message struct {
	ID             string
	ConversationID string
	Content        Content
	// Replaces is the id of the message this one was edited from.
	Replaces string
}

// LogGateway writes outgoing messages to the log instead of a backend.
// It keeps every message and the member counts it was told about, so a bot can run
// locally without a messaging proxy.
type LogGateway struct {
	logger   *zap.Logger
	messages *xsync.Map[string, Message]
	members  *xsync.Map[string, int]
}

func NewLogGateway(logger *zap.Logger) *LogGateway {
	return &LogGateway{
		logger:   logger.With(zap.String("component", "gateway_log")),
		messages: xsync.NewMap[string, Message](),
		members:  xsync.NewMap[string, int](),
	}
}

func (g *LogGateway) Send(_ context.Context, conversationID string, content Content) (string, error) {
	id := uuid.NewString()
	g.messages.Store(id, Message{ID: id, ConversationID: conversationID, Content: content})
	g.logger.Debug("Send message",
		zap.String("conversation_id", conversationID),
		zap.String("message_id", id),
		zap.String("kind", content.Kind()),
		zap.String("body", body(content)))
	return id, nil
}

func (g *LogGateway) Edit(_ context.Context, conversationID, originalMessageID string, content Content) (string, error) {
	original, ok := g.messages.Load(originalMessageID)
	if !ok || original.ConversationID != conversationID {
		return "", fmt.Errorf("edit %s: %w", originalMessageID, ErrEntityNotFound)
	}
	id := uuid.NewString()
	g.messages.Store(id, Message{ID: id, ConversationID: conversationID, Content: content, Replaces: originalMessageID})
	g.logger.Debug("Edit message",
		zap.String("conversation_id", conversationID),
		zap.String("original_message_id", originalMessageID),
		zap.String("message_id", id),
		zap.String("kind", content.Kind()),
		zap.String("body", body(content)))
	return id, nil
}

func (g *LogGateway) ConversationMemberCount(_ context.Context, conversationID string) (int, error) {
	n, ok := g.members.Load(conversationID)
	if !ok {
		return 0, fmt.Errorf("conversation %s: %w", conversationID, ErrEntityNotFound)
	}
	return n, nil
}

// SetMemberCount registers the size of a conversation.
func (g *LogGateway) SetMemberCount(conversationID string, n int) {
	g.members.Store(conversationID, n)
}

// Message returns a recorded message.
func (g *LogGateway) Message(id string) (Message, bool) {
	return g.messages.Load(id)
}

func body(content Content) string {
	switch v := content.(type) {
	case TextContent:
		return v.Text.Body
	case CompositeContent:
		return v.Text.Body
	case ButtonConfirmation:
		return v.ButtonID
	}
	return ""
}
