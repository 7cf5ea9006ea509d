package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/groupchat/pollbot/pkg/db"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

// Store is an in-process PollStore with the same integrity rules as the
// postgres schema: unique poll ids, votes referencing existing options and one
// vote per (poll, user).
type Store struct {
	mu sync.RWMutex

	polls     map[string]pollmodels.Poll
	votes     map[string]map[string]pollmodels.Vote
	overviews map[string]overviewRecord
	// overview message id -> poll id
	overviewIndex map[string]string

	now func() time.Time
}

type overviewRecord struct {
	messageID      string
	resultsVisible bool
}

var _ db.PollStore = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		polls:         make(map[string]pollmodels.Poll),
		votes:         make(map[string]map[string]pollmodels.Vote),
		overviews:     make(map[string]overviewRecord),
		overviewIndex: make(map[string]string),
		now:           time.Now,
	}
}

// WithClock replaces the creation timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) SavePoll(_ context.Context, poll pollmodels.NewPoll) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if poll.MessageID == "" {
		return "", fmt.Errorf("poll id is empty: %w", db.ErrConstraintViolation)
	}
	if _, exists := s.polls[poll.MessageID]; exists {
		return "", fmt.Errorf("poll %s already exists: %w", poll.MessageID, db.ErrConstraintViolation)
	}

	options := make([]pollmodels.Option, len(poll.Options))
	for i, text := range poll.Options {
		options[i] = pollmodels.Option{Ordinal: i, Text: text}
	}
	var mentions []pollmodels.Mention
	if len(poll.Question.Mentions) > 0 {
		mentions = append(mentions, poll.Question.Mentions...)
	}

	s.polls[poll.MessageID] = pollmodels.Poll{
		ID:             poll.MessageID,
		ConversationID: poll.ConversationID,
		Author:         poll.Author,
		Question:       pollmodels.Text{Body: poll.Question.Body, Mentions: mentions},
		Options:        options,
		CreatedAt:      s.now().UTC(),
		Active:         true,
	}
	s.votes[poll.MessageID] = make(map[string]pollmodels.Vote)
	s.overviews[poll.MessageID] = overviewRecord{}

	return poll.MessageID, nil
}

func (s *Store) SaveVote(_ context.Context, pollID string, user pollmodels.QualifiedID, option int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.polls[pollID]
	if !ok {
		return fmt.Errorf("vote for unknown poll %s: %w", pollID, db.ErrConstraintViolation)
	}
	if option < 0 || option >= len(record.Options) {
		return fmt.Errorf("vote for unknown option %d of poll %s: %w", option, pollID, db.ErrConstraintViolation)
	}

	s.votes[pollID][user.ID] = pollmodels.Vote{PollID: pollID, User: user, Option: option}
	return nil
}

func (s *Store) VotingUserCount(_ context.Context, pollID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.votes[pollID]), nil
}

func (s *Store) SetResultVisibility(_ context.Context, pollID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overview, ok := s.overviews[pollID]
	if !ok {
		return fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}
	overview.resultsVisible = true
	s.overviews[pollID] = overview
	return nil
}

func (s *Store) IsResultVisible(_ context.Context, pollID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overview, ok := s.overviews[pollID]
	if !ok {
		return false, fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}
	return overview.resultsVisible, nil
}

func (s *Store) OverviewMessage(_ context.Context, pollID string) (pollmodels.OverviewMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	overview, ok := s.overviews[pollID]
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}
	return pollmodels.OverviewFromID(&overview.messageID), nil
}

func (s *Store) SetOverviewMessageID(_ context.Context, pollID, messageID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	overview, ok := s.overviews[pollID]
	if !ok {
		return fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}
	if overview.messageID != "" {
		delete(s.overviewIndex, overview.messageID)
	}
	overview.messageID = messageID
	s.overviews[pollID] = overview
	if messageID != "" {
		s.overviewIndex[messageID] = pollID
	}
	return nil
}

func (s *Store) DeactivatePoll(_ context.Context, pollID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	poll, ok := s.polls[pollID]
	if !ok {
		return fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}
	poll.Active = false
	s.polls[pollID] = poll
	return nil
}

func (s *Store) IsPollMessage(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.polls[messageID]
	return ok, nil
}

func (s *Store) IsOverviewMessage(_ context.Context, messageID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.overviewIndex[messageID]
	return ok, nil
}

func (s *Store) PollIDForOverview(_ context.Context, overviewMessageID string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pollID, ok := s.overviewIndex[overviewMessageID]
	return pollID, ok, nil
}

func (s *Store) PollQuestionAndOptions(_ context.Context, pollID string) (*pollmodels.PollQuestion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.polls[pollID]
	if !ok {
		return nil, fmt.Errorf("poll %s: %w", pollID, db.ErrPollNotFound)
	}

	question := record.Question
	if len(question.Mentions) > 0 {
		question.Mentions = append([]pollmodels.Mention(nil), question.Mentions...)
	}
	return &pollmodels.PollQuestion{
		PollID:   pollID,
		Question: question,
		Options:  append([]pollmodels.Option(nil), record.Options...),
	}, nil
}

func (s *Store) VoteCountsByOption(_ context.Context, pollID string) ([]pollmodels.OptionCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.polls[pollID]
	if !ok {
		return nil, nil
	}

	counts := make([]pollmodels.OptionCount, len(record.Options))
	for i, option := range record.Options {
		counts[i] = pollmodels.OptionCount{Option: option}
	}
	for _, vote := range s.votes[pollID] {
		counts[vote.Option].Votes++
	}
	return counts, nil
}

func (s *Store) PendingOverviews(_ context.Context, olderThan time.Time, limit int) ([]pollmodels.PendingOverview, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var pending []pollmodels.PendingOverview
	for id, record := range s.polls {
		if !record.Active || !record.CreatedAt.Before(olderThan) {
			continue
		}
		if s.overviews[id].messageID != "" {
			continue
		}
		pending = append(pending, pollmodels.PendingOverview{
			PollID:         id,
			ConversationID: record.ConversationID,
			CreatedAt:      record.CreatedAt,
		})
	}

	sort.Slice(pending, func(i, j int) bool {
		if pending[i].CreatedAt.Equal(pending[j].CreatedAt) {
			return pending[i].PollID < pending[j].PollID
		}
		return pending[i].CreatedAt.Before(pending[j].CreatedAt)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}
	return pending, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
