package polls_test

import (
	"context"
	"testing"

	"github.com/groupchat/pollbot/pkg/actions"
	"github.com/groupchat/pollbot/pkg/polls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) text(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, f.service.HandleText(context.Background(), polls.TextMessage{
		ConversationID: conv, Sender: alice, Text: text,
	}))
}

func TestHandleTextReplies(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "help", text: "/poll help", want: []string{polls.Help}},
		{name: "help with spacing", text: "  /POLL   Help ", want: []string{polls.Help}},
		{name: "version", text: "/poll version", want: []string{"My version is: *1.2.3*"}},
		{name: "good app", text: "Good App", want: []string{polls.GoodAppReply}},
		{name: "plain chatter", text: "lunch anyone?", want: nil},
		{name: "version with trailing words", text: "/poll version pls", want: []string{polls.WrongCommand}},
		{name: "malformed poll", text: `/poll "Q" A`, want: []string{polls.WrongCommand}},
		{name: "unclosed quote", text: `/poll "Q" "A`, want: []string{polls.WrongCommand}},
		{name: "glued command", text: `/pollx "Q" "A" "B"`, want: []string{polls.WrongCommand}},
		{
			name: "single option",
			text: `/poll "Q" "A"`,
			want: []string{"There must be at least two options for answering the poll. " + polls.Usage},
		},
		{
			name: "empty option",
			text: `/poll "Q" "A" " "`,
			want: []string{"The option must not be empty! " + polls.Usage},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			f.text(t, tt.text)
			assert.Equal(t, tt.want, f.gateway.texts())
		})
	}
}

func TestRejectedPollIsNotPersisted(t *testing.T) {
	f := newFixture(t, 2)
	f.text(t, `/poll "Q" "A"`)

	require.Equal(t, 1, f.gateway.count())
	replyID := f.gateway.last().ReturnedID
	isPoll, err := f.store.IsPollMessage(context.Background(), replyID)
	require.NoError(t, err)
	assert.False(t, isPoll)
}

func TestHandleTextCreatesPoll(t *testing.T) {
	f := newFixture(t, 2)
	f.text(t, `/poll “Lunch?” “Pasta” “Salad”`)

	require.Equal(t, 2, f.gateway.count())
	pollID := f.gateway.calls[0].ReturnedID
	isPoll, err := f.store.IsPollMessage(context.Background(), pollID)
	require.NoError(t, err)
	assert.True(t, isPoll)
	assert.Equal(t, "Lunch?", composite(t, f.gateway.calls[0]).Text.Body)
}

func TestGreet(t *testing.T) {
	f := newFixture(t, 2)
	f.service.Greet(context.Background(), conv)
	assert.Equal(t, []string{polls.Greeting}, f.gateway.texts())
}

func TestHandleAction(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()
	pollID := f.createPoll(t, `/poll "Q" "A" "B"`)

	require.NoError(t, f.service.HandleAction(ctx, conv, nil))
	assert.Equal(t, 2, f.gateway.count())

	require.NoError(t, f.service.HandleAction(ctx, conv, actions.VoteAction{PollID: pollID, Option: 1, User: bob}))
	voted, err := f.store.VotingUserCount(ctx, pollID)
	require.NoError(t, err)
	assert.Equal(t, 1, voted)

	require.NoError(t, f.service.HandleAction(ctx, conv, actions.ShowResultsAction{PollID: pollID, User: bob}))
	assert.True(t, f.visible(t, pollID))
}
