package events_test

import (
	"context"
	"sync"

	"github.com/groupchat/pollbot/pkg/actions"
	"github.com/groupchat/pollbot/pkg/polls"
)

type actionCall struct {
	conversationID string
	action         actions.Action
}

type fakeService struct {
	mu        sync.Mutex
	texts     []polls.TextMessage
	actions   []actionCall
	greeted   []string
	handleErr error
}

func (s *fakeService) HandleText(_ context.Context, msg polls.TextMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, msg)
	return s.handleErr
}

func (s *fakeService) HandleAction(_ context.Context, conversationID string, action actions.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actions = append(s.actions, actionCall{conversationID: conversationID, action: action})
	return s.handleErr
}

func (s *fakeService) Greet(_ context.Context, conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.greeted = append(s.greeted, conversationID)
}

func (s *fakeService) textCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.texts)
}

type fakeClassifier struct {
	action actions.Action
	err    error
	clicks []actions.ButtonClick
}

func (c *fakeClassifier) Classify(_ context.Context, click actions.ButtonClick) (actions.Action, error) {
	c.clicks = append(c.clicks, click)
	return c.action, c.err
}

type fakeSeeder struct {
	counts map[string]int
}

func (s *fakeSeeder) SeedMemberCount(_ context.Context, conversationID string, n int) {
	if s.counts == nil {
		s.counts = make(map[string]int)
	}
	s.counts[conversationID] = n
}

type fakePublisher struct {
	stream string
	data   [][]byte
	err    error
}

func (p *fakePublisher) PublishData(_ context.Context, stream string, data []byte) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	p.stream = stream
	p.data = append(p.data, data)
	return "1-0", nil
}
