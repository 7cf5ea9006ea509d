// Package polls drives poll creation, voting and the overview message of every poll.
package polls

import (
	"context"
	"errors"
	"fmt"

	"github.com/groupchat/pollbot/pkg/actions"
	"github.com/groupchat/pollbot/pkg/db"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/format"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/groupchat/pollbot/pkg/parser"
	"go.uber.org/zap"
)

// Service is the tally orchestrator. It holds no per-poll state: every refresh
// re-derives the overview from the store, so concurrent events for one poll
// at worst produce a redundant edit.
type Service struct {
	store   db.PollStore
	gateway gateway.Gateway
	logger  *zap.Logger
	version string
}

func NewService(store db.PollStore, gw gateway.Gateway, logger *zap.Logger, version string) *Service {
	return &Service{
		store:   store,
		gateway: gw,
		logger:  logger.With(zap.String("component", "polls")),
		version: version,
	}
}

// CreatePoll sends the poll message, stores the poll under the returned id and
// publishes its overview. A malformed /poll command gets the usage instead.
func (s *Service) CreatePoll(ctx context.Context, msg TextMessage) error {
	parsed, ok := parser.Parse(msg.Text, msg.Mentions)
	if !ok {
		if parser.HasCommandPrefix(msg.Text) {
			s.logger.Info("Invalid poll command, sending usage", zap.String("conversation_id", msg.ConversationID))
			s.send(ctx, msg.ConversationID, gateway.Text(WrongCommand))
		}
		return nil
	}
	if violations := parser.Validate(parsed); len(violations) > 0 {
		s.logger.Info("Poll failed validation",
			zap.String("conversation_id", msg.ConversationID),
			zap.Strings("violations", violations))
		s.send(ctx, msg.ConversationID, gateway.Text(invalidPollReply(violations)))
		return nil
	}

	buttons := make([]gateway.Button, len(parsed.Options))
	for i, option := range parsed.Options {
		buttons[i] = gateway.Button{ID: actions.ButtonID(i), Text: option}
	}
	messageID, ok := s.send(ctx, msg.ConversationID, gateway.CompositeContent{Text: parsed.Question, Buttons: buttons})
	if !ok {
		return nil
	}

	pollID, err := s.store.SavePoll(ctx, pollmodels.NewPoll{
		MessageID:      messageID,
		ConversationID: msg.ConversationID,
		Author:         msg.Sender,
		Question:       parsed.Question,
		Options:        parsed.Options,
	})
	if err != nil {
		return fmt.Errorf("save poll %s: %w", messageID, err)
	}

	s.logger.Info("Poll created",
		zap.String("poll_id", pollID),
		zap.String("conversation_id", msg.ConversationID),
		zap.Int("options", len(parsed.Options)))

	return s.RefreshOverview(ctx, msg.ConversationID, pollID)
}

// HandleAction dispatches a classified button click.
func (s *Service) HandleAction(ctx context.Context, conversationID string, action actions.Action) error {
	switch a := action.(type) {
	case actions.VoteAction:
		return s.ProcessVoteAction(ctx, conversationID, a)
	case actions.ShowResultsAction:
		return s.ProcessShowResultsAction(ctx, conversationID, a)
	case nil:
		return nil
	default:
		return fmt.Errorf("unsupported action %T", action)
	}
}

// ProcessVoteAction records the vote, reveals the results once everyone voted
// and refreshes the overview. Two concurrent last voters may both reveal; both
// writes are idempotent.
func (s *Service) ProcessVoteAction(ctx context.Context, conversationID string, action actions.VoteAction) error {
	if err := s.store.SaveVote(ctx, action.PollID, action.User, action.Option); err != nil {
		return fmt.Errorf("save vote in %s: %w", action.PollID, err)
	}
	s.logger.Info("Vote recorded",
		zap.String("poll_id", action.PollID),
		zap.String("user_id", action.User.ID),
		zap.Int("option", action.Option))

	s.send(ctx, conversationID, gateway.ButtonConfirmation{
		ReferenceMessageID: action.PollID,
		ButtonID:           actions.ButtonID(action.Option),
	})

	voted, err := s.store.VotingUserCount(ctx, action.PollID)
	if err != nil {
		return fmt.Errorf("count voters of %s: %w", action.PollID, err)
	}
	members, err := s.memberCount(ctx, conversationID)
	if err == nil && members > 0 && voted == members {
		if err := s.store.SetResultVisibility(ctx, action.PollID); err != nil {
			return fmt.Errorf("reveal results of %s: %w", action.PollID, err)
		}
		s.logger.Info("Everyone voted, results revealed",
			zap.String("poll_id", action.PollID),
			zap.Int("voted", voted))
	}

	return s.RefreshOverview(ctx, conversationID, action.PollID)
}

// ProcessShowResultsAction reveals the results early.
func (s *Service) ProcessShowResultsAction(ctx context.Context, conversationID string, action actions.ShowResultsAction) error {
	if err := s.store.SetResultVisibility(ctx, action.PollID); err != nil {
		return fmt.Errorf("reveal results of %s: %w", action.PollID, err)
	}
	s.logger.Info("Results revealed on request",
		zap.String("poll_id", action.PollID),
		zap.String("user_id", action.User.ID))

	return s.RefreshOverview(ctx, conversationID, action.PollID)
}

// refreshOutcome is what a refresh did to the overview message.
type refreshOutcome int

const (
	overviewUnchanged refreshOutcome = iota
	overviewWritten
	// the first overview send found no conversation; the poll is deactivated
	conversationGone
)

// RefreshOverview renders the overview from stored state and sends it, or edits
// the current overview message in place. The id the gateway returns is stored.
// Gateway failures are logged and leave the stored id untouched.
func (s *Service) RefreshOverview(ctx context.Context, conversationID, pollID string) error {
	_, err := s.refresh(ctx, conversationID, pollID)
	return err
}

func (s *Service) refresh(ctx context.Context, conversationID, pollID string) (refreshOutcome, error) {
	visible, err := s.store.IsResultVisible(ctx, pollID)
	if err != nil {
		return overviewUnchanged, fmt.Errorf("refresh %s: %w", pollID, err)
	}
	overview, err := s.store.OverviewMessage(ctx, pollID)
	if err != nil {
		return overviewUnchanged, fmt.Errorf("refresh %s: %w", pollID, err)
	}
	_, sent := overview.(pollmodels.Sent)
	voted, err := s.store.VotingUserCount(ctx, pollID)
	if err != nil {
		return overviewUnchanged, fmt.Errorf("refresh %s: %w", pollID, err)
	}
	members, err := s.memberCount(ctx, conversationID)
	if err != nil && sent {
		// an unknown size keeps the progress already on screen
		return overviewUnchanged, nil
	}

	progress := format.Progress(voted, members)
	content := progressContent(progress)

	if visible {
		results, err := s.results(ctx, pollID, members)
		switch {
		case errors.Is(err, format.ErrNoResults):
			s.send(ctx, conversationID, gateway.Text(NoData))
			if sent {
				return overviewUnchanged, nil
			}
		case err != nil:
			return overviewUnchanged, fmt.Errorf("refresh %s: %w", pollID, err)
		default:
			content = resultsContent(progress, results)
		}
	}

	var messageID string
	switch o := overview.(type) {
	case pollmodels.NotSent:
		messageID, err = s.gateway.Send(ctx, conversationID, content)
		if err != nil {
			s.logGatewayError("Overview send failed", conversationID, err, zap.String("poll_id", pollID))
			if errors.Is(err, gateway.ErrEntityNotFound) {
				return s.deactivate(ctx, pollID)
			}
			return overviewUnchanged, nil
		}
	case pollmodels.Sent:
		messageID, err = s.gateway.Edit(ctx, conversationID, o.MessageID, content)
		if err != nil {
			s.logGatewayError("Overview edit failed", conversationID, err,
				zap.String("poll_id", pollID),
				zap.String("message_id", o.MessageID))
			return overviewUnchanged, nil
		}
	default:
		return overviewUnchanged, fmt.Errorf("refresh %s: unknown overview state %T", pollID, overview)
	}

	if err := s.store.SetOverviewMessageID(ctx, pollID, messageID); err != nil {
		return overviewUnchanged, fmt.Errorf("store overview of %s: %w", pollID, err)
	}
	return overviewWritten, nil
}

func (s *Service) deactivate(ctx context.Context, pollID string) (refreshOutcome, error) {
	if err := s.store.DeactivatePoll(ctx, pollID); err != nil {
		return overviewUnchanged, fmt.Errorf("deactivate %s: %w", pollID, err)
	}
	s.logger.Info("Conversation gone, poll deactivated", zap.String("poll_id", pollID))
	return conversationGone, nil
}

func (s *Service) results(ctx context.Context, pollID string, members int) (pollmodels.Text, error) {
	question, err := s.store.PollQuestionAndOptions(ctx, pollID)
	if err != nil {
		return pollmodels.Text{}, err
	}
	counts, err := s.store.VoteCountsByOption(ctx, pollID)
	if err != nil {
		return pollmodels.Text{}, err
	}
	return format.Results(question.Question, counts, members)
}

func progressContent(progress string) gateway.CompositeContent {
	return gateway.CompositeContent{
		Text:    pollmodels.Text{Body: progress},
		Buttons: []gateway.Button{{ID: actions.ShowResultsButtonID, Text: ShowResultsText}},
	}
}

// resultsContent appends the results below the progress line and drops the buttons.
func resultsContent(progress string, results pollmodels.Text) gateway.CompositeContent {
	return gateway.CompositeContent{
		Text: pollmodels.Text{
			Body:     progress + "\n" + results.Body,
			Mentions: results.ShiftedMentions(pollmodels.TextLength(progress) + 1),
		},
	}
}

// memberCount logs a failed lookup and returns 0 with the error.
func (s *Service) memberCount(ctx context.Context, conversationID string) (int, error) {
	n, err := s.gateway.ConversationMemberCount(ctx, conversationID)
	if err != nil {
		s.logGatewayError("Member lookup failed", conversationID, err)
		return 0, err
	}
	return n, nil
}

// send delivers content and reports whether the gateway accepted it.
func (s *Service) send(ctx context.Context, conversationID string, content gateway.Content) (string, bool) {
	id, err := s.gateway.Send(ctx, conversationID, content)
	if err != nil {
		s.logGatewayError("Send failed", conversationID, err, zap.String("kind", content.Kind()))
		return "", false
	}
	return id, true
}

func (s *Service) logGatewayError(msg, conversationID string, err error, fields ...zap.Field) {
	fields = append(fields, zap.String("conversation_id", conversationID), zap.Error(err))
	if errors.Is(err, gateway.ErrEntityNotFound) {
		s.logger.Warn(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}
