// Package actions maps button clicks onto poll actions.
package actions

import (
	"context"
	"fmt"
	"strconv"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"go.uber.org/zap"
)

// ShowResultsButtonID is the button on the overview message that reveals the results.
const ShowResultsButtonID = "show_results"

// Action is VoteAction or ShowResultsAction.
type Action interface {
	action()
}

// VoteAction is a click on an option button of a poll message.
type VoteAction struct {
	PollID string
	Option int
	User   pollmodels.QualifiedID
}

// ShowResultsAction is a click on the show-results button of an overview message.
type ShowResultsAction struct {
	PollID string
	User   pollmodels.QualifiedID
}

func (VoteAction) action()        {}
func (ShowResultsAction) action() {}

// ButtonClick is an inbound click on a message button.
type ButtonClick struct {
	MessageID string
	ButtonID  string
	User      pollmodels.QualifiedID
}

// MessageLookup is the part of the poll store the classifier reads.
type MessageLookup interface {
	IsPollMessage(ctx context.Context, messageID string) (bool, error)
	IsOverviewMessage(ctx context.Context, messageID string) (bool, error)
	PollIDForOverview(ctx context.Context, overviewMessageID string) (string, bool, error)
}

type Classifier struct {
	store  MessageLookup
	logger *zap.Logger
}

func NewClassifier(store MessageLookup, logger *zap.Logger) *Classifier {
	return &Classifier{store: store, logger: logger.With(zap.String("component", "classifier"))}
}

// Classify returns the action behind the click, or nil when the click targets
// a message the bot does not own or a button it does not know (stale clicks).
// Only store failures are returned as errors.
func (c *Classifier) Classify(ctx context.Context, click ButtonClick) (Action, error) {
	if click.ButtonID == ShowResultsButtonID {
		isOverview, err := c.store.IsOverviewMessage(ctx, click.MessageID)
		if err != nil {
			return nil, fmt.Errorf("classify click on %s: %w", click.MessageID, err)
		}
		if isOverview {
			// the overview may have been replaced between the two reads
			pollID, ok, err := c.store.PollIDForOverview(ctx, click.MessageID)
			if err != nil {
				return nil, fmt.Errorf("classify click on %s: %w", click.MessageID, err)
			}
			if ok {
				return ShowResultsAction{PollID: pollID, User: click.User}, nil
			}
		}
	}

	if ordinal, ok := parseOrdinal(click.ButtonID); ok {
		isPoll, err := c.store.IsPollMessage(ctx, click.MessageID)
		if err != nil {
			return nil, fmt.Errorf("classify click on %s: %w", click.MessageID, err)
		}
		if isPoll {
			return VoteAction{PollID: click.MessageID, Option: ordinal, User: click.User}, nil
		}
	}

	c.logger.Debug("Ignoring button click",
		zap.String("message_id", click.MessageID),
		zap.String("button_id", click.ButtonID),
		zap.String("user_id", click.User.ID))
	return nil, nil
}

// parseOrdinal accepts plain decimal digits only, so "+1" or " 1" do not vote.
func parseOrdinal(buttonID string) (int, bool) {
	if buttonID == "" || len(buttonID) > 9 {
		return 0, false
	}
	for _, r := range buttonID {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(buttonID)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ButtonID renders the option ordinal as its button id.
func ButtonID(ordinal int) string {
	return strconv.Itoa(ordinal)
}
