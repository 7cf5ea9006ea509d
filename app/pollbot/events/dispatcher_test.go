package events_test

import (
	"context"
	"errors"
	"testing"

	"github.com/groupchat/pollbot/app/pollbot/events"
	"github.com/groupchat/pollbot/pkg/actions"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var alice = pollmodels.QualifiedID{ID: "alice", Domain: "example.com"}

func TestDispatchText(t *testing.T) {
	service := &fakeService{}
	d := events.NewDispatcher(service, &fakeClassifier{}, nil, zaptest.NewLogger(t))

	mentions := []pollmodels.Mention{{User: alice, Offset: 7, Length: 6}}
	err := d.Dispatch(context.Background(), gateway.Event{
		Type:           gateway.EventText,
		ConversationID: "c1",
		Sender:         alice,
		Text:           `/poll "Hi @alice" "A" "B"`,
		Mentions:       mentions,
	})
	require.NoError(t, err)

	require.Len(t, service.texts, 1)
	assert.Equal(t, "c1", service.texts[0].ConversationID)
	assert.Equal(t, alice, service.texts[0].Sender)
	assert.Equal(t, mentions, service.texts[0].Mentions)
}

func TestDispatchButton(t *testing.T) {
	service := &fakeService{}
	vote := actions.VoteAction{PollID: "p1", Option: 1, User: alice}
	classifier := &fakeClassifier{action: vote}
	d := events.NewDispatcher(service, classifier, nil, zaptest.NewLogger(t))

	require.NoError(t, d.Dispatch(context.Background(), gateway.Event{
		Type:           gateway.EventButton,
		ConversationID: "c1",
		Sender:         alice,
		MessageID:      "p1",
		ButtonID:       "1",
	}))

	assert.Equal(t, []actions.ButtonClick{{MessageID: "p1", ButtonID: "1", User: alice}}, classifier.clicks)
	require.Len(t, service.actions, 1)
	assert.Equal(t, "c1", service.actions[0].conversationID)
	assert.Equal(t, vote, service.actions[0].action)
}

func TestDispatchButtonClassifierError(t *testing.T) {
	service := &fakeService{}
	classifier := &fakeClassifier{err: errors.New("db down")}
	d := events.NewDispatcher(service, classifier, nil, zaptest.NewLogger(t))

	err := d.Dispatch(context.Background(), gateway.Event{
		Type: gateway.EventButton, ConversationID: "c1", Sender: alice, MessageID: "p1", ButtonID: "0",
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, events.ErrInvalidEvent))
	assert.Empty(t, service.actions)
}

func TestDispatchAppAdded(t *testing.T) {
	service := &fakeService{}
	seeder := &fakeSeeder{}
	d := events.NewDispatcher(service, &fakeClassifier{}, seeder, zaptest.NewLogger(t))

	require.NoError(t, d.Dispatch(context.Background(), gateway.Event{
		Type:           gateway.EventAppAdded,
		ConversationID: "c1",
		Members:        []pollmodels.QualifiedID{alice, {ID: "bob"}, {ID: "pollbot"}},
	}))

	assert.Equal(t, []string{"c1"}, service.greeted)
	assert.Equal(t, map[string]int{"c1": 3}, seeder.counts)
}

func TestDispatchInvalid(t *testing.T) {
	d := events.NewDispatcher(&fakeService{}, &fakeClassifier{}, nil, zaptest.NewLogger(t))

	tests := []gateway.Event{
		{Type: gateway.EventText, Sender: alice},
		{Type: gateway.EventButton, ConversationID: "c1", Sender: alice},
		{Type: "reaction", ConversationID: "c1"},
	}
	for _, evt := range tests {
		err := d.Dispatch(context.Background(), evt)
		assert.ErrorIs(t, err, events.ErrInvalidEvent, "event %+v", evt)
	}
}
