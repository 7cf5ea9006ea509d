package gateway

import (
	"testing"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/stretchr/testify/assert"
)

func TestEventValidate(t *testing.T) {
	sender := pollmodels.QualifiedID{ID: "u1"}

	assert.NoError(t, Event{Type: EventText, ConversationID: "c", Sender: sender, Text: "/poll help"}.Validate())
	assert.NoError(t, Event{Type: EventButton, ConversationID: "c", Sender: sender, MessageID: "m", ButtonID: "0"}.Validate())
	assert.NoError(t, Event{Type: EventAppAdded, ConversationID: "c"}.Validate())

	assert.Error(t, Event{Type: EventText, Sender: sender}.Validate())
	assert.Error(t, Event{Type: EventButton, ConversationID: "c", Sender: sender}.Validate())
	assert.Error(t, Event{Type: "typing", ConversationID: "c"}.Validate())
}
