package parser_test

import (
	"testing"

	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
	"github.com/groupchat/pollbot/pkg/parser"
	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	valid := &pollmodels.ParsedPoll{Question: pollmodels.Text{Body: "Q"}, Options: []string{"A", "B"}}
	assert.Empty(t, parser.Validate(valid))

	oneOption := &pollmodels.ParsedPoll{Question: pollmodels.Text{Body: "Q"}, Options: []string{"A"}}
	assert.Equal(t, []string{"There must be at least two options for answering the poll."}, parser.Validate(oneOption))

	blank := &pollmodels.ParsedPoll{Question: pollmodels.Text{Body: " "}, Options: []string{"A", ""}}
	assert.Equal(t, []string{
		"The question must not be empty!",
		"The option must not be empty!",
	}, parser.Validate(blank))
}

func TestParsedCommandWithBlankOptionFailsValidation(t *testing.T) {
	poll, ok := parser.Parse(`/poll "Q" "A" " "`, nil)
	assert.True(t, ok)
	assert.NotEmpty(t, parser.Validate(poll))
}
