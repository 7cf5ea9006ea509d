package polls_test

import (
	"testing"

	"github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextLengthCountsUTF16Units(t *testing.T) {
	assert.Equal(t, 0, polls.TextLength(""))
	assert.Equal(t, 5, polls.TextLength("Pizza"))
	assert.Equal(t, 2, polls.TextLength("🟢"))
	assert.Equal(t, 1, polls.TextLength("⚪"))
	assert.Equal(t, 4, polls.TextLength("é🍕!"))
}

func TestShiftedMentionsCopies(t *testing.T) {
	text := polls.Text{
		Body: "@bob?",
		Mentions: []polls.Mention{
			{User: polls.QualifiedID{ID: "bob", Domain: "example.com"}, Offset: 0, Length: 4},
		},
	}

	shifted := text.ShiftedMentions(10)
	require.Len(t, shifted, 1)
	assert.Equal(t, 10, shifted[0].Offset)
	assert.Equal(t, 0, text.Mentions[0].Offset)

	assert.Nil(t, polls.Text{Body: "x"}.ShiftedMentions(3))
}

func TestOverviewFromID(t *testing.T) {
	id := "msg-1"
	empty := ""

	assert.Equal(t, polls.NotSent{}, polls.OverviewFromID(nil))
	assert.Equal(t, polls.NotSent{}, polls.OverviewFromID(&empty))
	assert.Equal(t, polls.Sent{MessageID: "msg-1"}, polls.OverviewFromID(&id))
}
