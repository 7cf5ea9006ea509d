package polls

import (
	"context"
	"strings"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/parser"
	"go.uber.org/zap"
)

// TextMessage is an inbound text in a conversation.
type TextMessage struct {
	ConversationID string
	Sender         pollmodels.QualifiedID
	Text           string
	Mentions       []pollmodels.Mention
}

// normalize trims, collapses whitespace and lowercases a command for matching.
func normalize(text string) string {
	return strings.ToLower(strings.Join(strings.Fields(text), " "))
}

// HandleText routes a text message to the command it names. Texts that are not
// commands are ignored.
func (s *Service) HandleText(ctx context.Context, msg TextMessage) error {
	command := normalize(msg.Text)

	switch {
	case command == parser.Command+" version":
		s.send(ctx, msg.ConversationID, gateway.Text(VersionReply(s.version)))
	case command == parser.Command+" help":
		s.send(ctx, msg.ConversationID, gateway.Text(Help))
	case parser.HasCommandPrefix(command):
		return s.CreatePoll(ctx, msg)
	case command == "good app":
		s.send(ctx, msg.ConversationID, gateway.Text(GoodAppReply))
	default:
		s.logger.Debug("Ignoring text message",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("sender_id", msg.Sender.ID))
	}
	return nil
}

// Greet introduces the bot to a conversation it was just added to.
func (s *Service) Greet(ctx context.Context, conversationID string) {
	s.send(ctx, conversationID, gateway.Text(Greeting))
}
