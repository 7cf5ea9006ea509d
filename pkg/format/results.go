package format

import (
	"errors"
	"strings"

	"github.com/dustin/go-humanize"
	pollmodels "github.com/groupchat/pollbot/pkg/db/models/polls"
)

const (
	// TitlePrefix precedes the question in the results title.
	TitlePrefix = `**Results** for poll *"`
	titleSuffix = `"*`

	// PlaceholderSlots is how many empty slots may follow the most voted option.
	PlaceholderSlots = 2
)

// ErrNoResults is returned when there is nothing to tally.
var ErrNoResults = errors.New("no results to render")

// Results renders the tally of a poll. The bar width is shared by all options:
// the most voted count plus PlaceholderSlots, capped at memberCount.
// Options tied at the maximum are all bold.
// Question mentions are shifted to stay on the question inside the title.
func Results(question pollmodels.Text, counts []pollmodels.OptionCount, memberCount int) (pollmodels.Text, error) {
	if len(counts) == 0 {
		return pollmodels.Text{}, ErrNoResults
	}

	maxVotes, total := 0, 0
	for _, c := range counts {
		maxVotes = max(maxVotes, c.Votes)
		total += c.Votes
	}
	if total == 0 {
		return pollmodels.Text{}, ErrNoResults
	}

	width := min(memberCount, maxVotes+PlaceholderSlots)

	var b strings.Builder
	b.WriteString(TitlePrefix)
	b.WriteString(question.Body)
	b.WriteString(titleSuffix)
	for _, c := range counts {
		style := "*"
		if c.Votes == maxVotes {
			style = "**"
		}
		b.WriteByte('\n')
		b.WriteString(bar(c.Votes, width-c.Votes))
		b.WriteByte(' ')
		b.WriteString(style)
		b.WriteString(c.Text)
		b.WriteString(style)
		b.WriteString(" (")
		b.WriteString(humanize.Comma(int64(c.Votes)))
		b.WriteByte(')')
	}

	return pollmodels.Text{
		Body:     b.String(),
		Mentions: question.ShiftedMentions(pollmodels.TextLength(TitlePrefix)),
	}, nil
}
