package db

import (
	"context"
	"time"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// PollStore is the persistence contract of the tally engine.
// Implementations surface store errors unmodified and never retry.
type PollStore interface {
	// SavePoll stores the poll, its options (ordinal = list position), its mentions
	// and a hidden NotSent overview in one transaction.
	SavePoll(ctx context.Context, poll pollmodels.NewPoll) (string, error)
	// SaveVote upserts the vote on (pollID, user.ID).
	SaveVote(ctx context.Context, pollID string, user pollmodels.QualifiedID, option int) error
	VotingUserCount(ctx context.Context, pollID string) (int, error)

	SetResultVisibility(ctx context.Context, pollID string) error
	IsResultVisible(ctx context.Context, pollID string) (bool, error)
	OverviewMessage(ctx context.Context, pollID string) (pollmodels.OverviewMessage, error)
	SetOverviewMessageID(ctx context.Context, pollID, messageID string) error

	IsPollMessage(ctx context.Context, messageID string) (bool, error)
	IsOverviewMessage(ctx context.Context, messageID string) (bool, error)
	PollIDForOverview(ctx context.Context, overviewMessageID string) (string, bool, error)

	PollQuestionAndOptions(ctx context.Context, pollID string) (*pollmodels.PollQuestion, error)
	// VoteCountsByOption lists every option, including those without votes, by ordinal.
	VoteCountsByOption(ctx context.Context, pollID string) ([]pollmodels.OptionCount, error)
	// DeactivatePoll clears the active flag. Inactive polls are never listed as pending.
	DeactivatePoll(ctx context.Context, pollID string) error
	// PendingOverviews lists active polls created before olderThan whose overview is still NotSent.
	PendingOverviews(ctx context.Context, olderThan time.Time, limit int) ([]pollmodels.PendingOverview, error)

	Ping(ctx context.Context) error
	Close() error
}
